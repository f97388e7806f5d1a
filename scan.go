// Copyright 2020 Sebastian Lehmann. All rights reserved.
// Use of this source code is governed by a GNU-style
// license that can be found in the LICENSE file.

// this code is mainly inspired and based on the openocd project source code
// for detailed information see

// https://sourceforge.net/p/openocd/code

package goulink

import "context"

// ScanRequest describes one JTAG data-register or instruction-register scan
// to be queued. Tdi holds scan_size_bits worth of bits already packed
// LSB-first into bytes (byte-packing is the caller's job, same as OpenOCD's
// jtag_build_buffer); Dest receives the captured TDO bits in the same
// packing, and may be nil for a SCAN_OUT.
type ScanRequest struct {
	IrScan   bool
	Type     ScanType
	SizeBits int
	Tdi      []byte
	Dest     []byte
	EndState TapState
	Slow     bool
}

func bitsInLastByte(bits int) byte {
	b := bits % 8
	if b == 0 {
		b = 8
	}
	return byte(b)
}

// QueueScan splits req into one or more SCAN_{IN,OUT,IO} fragments no larger
// than maxScanFragmentLen bytes, threading the TAP through a SHIFT/PAUSE/
// SHIFT excursion between fragments, and appends them to q. A single TDO
// buffer is allocated for the whole scan; only the final fragment's
// postprocessor copies it into req.Dest, mirroring the original driver's
// free_payload_in_start ownership rule without manual memory management.
func QueueScan(ctx context.Context, q *CommandQueue, tap *TapShadow, req ScanRequest) error {
	if req.SizeBits <= 0 {
		return newBugError("scan request has non-positive size %d", req.SizeBits)
	}

	shiftState := TapDrShift
	pauseState := TapDrPause
	if req.IrScan {
		shiftState = TapIrShift
		pauseState = TapIrPause
	}

	firstPath, err := tap.PathTo(shiftState)
	if err != nil {
		return err
	}

	// Simulate arriving at the shift state so the path to the requested end
	// state can be computed, exactly as the original driver sets tap state
	// ahead of actual execution while building the queue.
	if err := tap.MoveTo(shiftState); err != nil {
		return err
	}
	lastPath, err := tap.PathTo(req.EndState)
	if err != nil {
		return err
	}

	pausePath := tmsPathTable[shiftState][pauseState]
	resumePath := tmsPathTable[pauseState][shiftState]

	scanSizeBytes := (req.SizeBits + 7) / 8
	fullFragments := scanSizeBytes / maxScanFragmentLen
	bitsLastFragment := req.SizeBits - fullFragments*maxScanFragmentLen*8

	var owner tdoView
	if req.Type.hasIn() {
		owner = newTdoView(scanSizeBytes)
	}

	remaining := scanSizeBytes
	tdiOffset := 0
	tdoOffset := 0
	first := true

	for remaining > 0 {
		tmsStart := resumePath
		if first {
			tmsStart = firstPath
		}

		var fragBytes, fragBits int
		var tmsEnd tmsPath
		var isLast bool

		switch {
		case remaining > maxScanFragmentLen:
			fragBytes = maxScanFragmentLen
			fragBits = maxScanFragmentLen * 8
			tmsEnd = pausePath
		case remaining == maxScanFragmentLen:
			fragBytes = maxScanFragmentLen
			fragBits = req.SizeBits - (scanSizeBytes-maxScanFragmentLen)*8
			tmsEnd = lastPath
			isLast = true
		default:
			fragBytes = remaining
			fragBits = bitsLastFragment
			tmsEnd = lastPath
			isLast = true
		}

		buf := NewBuffer(scanSetupBytes + fragBytes)
		buf.WriteByte(byte(fragBytes))
		buf.WriteByte(bitsInLastByte(fragBits))
		buf.WriteByte((byte(tmsStart.Count) << 4) | byte(tmsEnd.Count))
		buf.WriteByte(tmsStart.Bits)
		buf.WriteByte(tmsEnd.Bits)
		if req.Type.hasOut() {
			buf.Write(req.Tdi[tdiOffset : tdiOffset+fragBytes])
		}

		cmd := &queuedCommand{
			id:         req.Type.commandId(req.Slow),
			payloadOut: buf.Bytes(),
		}

		if req.Type.hasIn() {
			cmd.hasIn = true
			cmd.payloadIn = owner.subView(tdoOffset, fragBytes)
			if isLast {
				dest := req.Dest
				full := owner
				cmd.postProc = func() error {
					copy(dest, full.slice())
					return nil
				}
			}
		}

		if err := q.Append(ctx, cmd); err != nil {
			return err
		}

		remaining -= fragBytes
		tdiOffset += fragBytes
		tdoOffset += fragBytes
		first = false
	}

	return tap.MoveTo(req.EndState)
}
