// Copyright 2020 Sebastian Lehmann. All rights reserved.
// Use of this source code is governed by a GNU-style
// license that can be found in the LICENSE file.

// this code is mainly inspired and based on the openocd project source code
// for detailed information see

// https://sourceforge.net/p/openocd/code

package goulink

import (
	"context"
	"fmt"
)

// SignalState is the decoded result of a GET_SIGNALS command. TRST and SRST
// are reported in their logical (asserted = true) sense even though the
// hardware carries them active-low.
type SignalState struct {
	TDI, TDO, TMS, TCK bool
	TRST, SRST         bool
}

func decodeSignals(input, output byte) SignalState {
	return SignalState{
		TDI:  output&signalTDI != 0,
		TDO:  input&signalTDO != 0,
		TMS:  output&signalTMS != 0,
		TCK:  output&signalTCK != 0,
		TRST: output&signalTRST == 0,
		SRST: output&signalRST == 0,
	}
}

func (s SignalState) String() string {
	return fmt.Sprintf("TDI: %v, TDO: %v, TMS: %v, TCK: %v, TRST: %v, SRST: %v",
		s.TDI, s.TDO, s.TMS, s.TCK, s.TRST, s.SRST)
}

// QueueClockTms clocks up to 8 TMS transitions, LSB of sequence first.
func QueueClockTms(ctx context.Context, q *CommandQueue, count int, sequence byte, slow bool) error {
	if count < 0 || count > 8 {
		return newBugError("clock_tms count %d out of range", count)
	}

	id := cmdClockTMS
	if slow {
		id = cmdSlowClockTMS
	}

	return q.Append(ctx, &queuedCommand{id: id, payloadOut: []byte{byte(count), sequence}})
}

// QueueClockTck generates count TCK cycles without touching TMS/TDI.
func QueueClockTck(ctx context.Context, q *CommandQueue, count uint16) error {
	buf := NewBuffer(2)
	buf.WriteUint16LE(count)

	return q.Append(ctx, &queuedCommand{id: cmdClockTCK, payloadOut: buf.Bytes()})
}

// QueueGetSignals queues a signal readback; *out is populated once the queue
// is flushed and the reply has been scattered back.
func QueueGetSignals(ctx context.Context, q *CommandQueue, out *SignalState) error {
	view := newTdoView(2)

	cmd := &queuedCommand{
		id:        cmdGetSignals,
		hasIn:     true,
		payloadIn: view,
	}
	cmd.postProc = func() error {
		raw := view.slice()
		*out = decodeSignals(raw[0], raw[1])
		return nil
	}

	return q.Append(ctx, cmd)
}

// QueueSetSignals asserts the signals set in high and deasserts those set in
// low. A signal present in neither mask is left unchanged.
func QueueSetSignals(ctx context.Context, q *CommandQueue, low, high byte) error {
	return q.Append(ctx, &queuedCommand{id: cmdSetSignals, payloadOut: []byte{low, high}})
}

// QueueSleepUs queues a firmware-side sleep; it is never performed host-side
// because host sleeps would not account for queued-command latency.
func QueueSleepUs(ctx context.Context, q *CommandQueue, us uint16) error {
	buf := NewBuffer(2)
	buf.WriteUint16LE(us)

	return q.Append(ctx, &queuedCommand{id: cmdSleepUs, payloadOut: buf.Bytes()})
}

func QueueSleepMs(ctx context.Context, q *CommandQueue, ms uint16) error {
	buf := NewBuffer(2)
	buf.WriteUint16LE(ms)

	return q.Append(ctx, &queuedCommand{id: cmdSleepMs, payloadOut: buf.Bytes()})
}

// QueueConfigureTckFreq sets the firmware's busy-wait delay counters used by
// the SLOW_ command variants.
func QueueConfigureTckFreq(ctx context.Context, q *CommandQueue, delayScan, delayTck, delayTms byte) error {
	return q.Append(ctx, &queuedCommand{
		id:         cmdConfigureTckFreq,
		payloadOut: []byte{delayScan, delayTck, delayTms},
	})
}

// QueueSetLeds sets ULINK's COM/RUN LEDs. An off-bit beats the matching
// on-bit if both are set.
func QueueSetLeds(ctx context.Context, q *CommandQueue, state byte) error {
	return q.Append(ctx, &queuedCommand{id: cmdSetLeds, payloadOut: []byte{state}})
}

// QueueTest queues the adapter self-test command.
func QueueTest(ctx context.Context, q *CommandQueue) error {
	return q.Append(ctx, &queuedCommand{id: cmdTest})
}

// QueueTlrReset drives the TAP into Test-Logic-Reset with 5 TMS=1 clocks,
// the canonical unconditional reset regardless of current state.
func QueueTlrReset(ctx context.Context, q *CommandQueue, tap *TapShadow) error {
	if err := QueueClockTms(ctx, q, 5, 0xff, false); err != nil {
		return err
	}
	return tap.MoveTo(TapReset)
}

// QueueRunTest moves to IDLE if necessary, clocks cycles TCK pulses there,
// then moves on to endState.
func QueueRunTest(ctx context.Context, q *CommandQueue, tap *TapShadow, cycles uint16, endState TapState) error {
	if tap.State() != TapIdle {
		if err := queueStateMove(ctx, q, tap, TapIdle); err != nil {
			return err
		}
	}

	if err := QueueClockTck(ctx, q, cycles); err != nil {
		return err
	}

	if endState != tap.State() {
		return queueStateMove(ctx, q, tap, endState)
	}
	return nil
}

func queueStateMove(ctx context.Context, q *CommandQueue, tap *TapShadow, to TapState) error {
	path, err := tap.PathTo(to)
	if err != nil {
		return err
	}
	if path.Count == 0 {
		return tap.MoveTo(to)
	}
	if err := QueueClockTms(ctx, q, path.Count, path.Bits, false); err != nil {
		return err
	}
	return tap.MoveTo(to)
}

// QueueReset asserts or deasserts TRST/SRST. Both signals are active-low on
// the hardware; trst/srst here are the logical (true = asserted) values.
func QueueReset(ctx context.Context, q *CommandQueue, tap *TapShadow, trst, srst bool) error {
	var low, high byte

	if trst {
		high |= signalTRST
		if err := tap.MoveTo(TapReset); err != nil {
			return err
		}
	} else {
		low |= signalTRST
	}

	if srst {
		high |= signalRST
	} else {
		low |= signalRST
	}

	return QueueSetSignals(ctx, q, low, high)
}

// PathMoveStep is one requested TAP transition: the TMS bit (0 or 1) to clock.
// The state it lands in follows from the TAP state machine.
type PathMoveStep struct {
	TMS byte
}

// QueuePathMove drives the TAP through an explicit, caller-supplied sequence
// of TMS bits, in groups of up to 8 bits per CLOCK_TMS command, and verifies
// the walk lands in endState. Unlike the upstream driver (which left
// PATHMOVE unimplemented), this sends the literal requested bit sequence
// rather than re-deriving a canonical shortest path, since a caller choosing
// PATHMOVE over a plain state move is explicitly asking to visit particular
// intermediate states.
func QueuePathMove(ctx context.Context, q *CommandQueue, tap *TapShadow, steps []PathMoveStep, endState TapState) error {
	if len(steps) == 0 {
		return nil
	}

	for offset := 0; offset < len(steps); offset += 8 {
		groupLen := len(steps) - offset
		if groupLen > 8 {
			groupLen = 8
		}

		var bits byte
		for i := 0; i < groupLen; i++ {
			bits |= steps[offset+i].TMS << uint(i)
		}

		if err := QueueClockTms(ctx, q, groupLen, bits, false); err != nil {
			return err
		}
	}

	var allBits uint64
	for i, step := range steps {
		allBits |= uint64(step.TMS) << uint(i)
	}

	return tap.applyWide(allBits, len(steps), endState)
}
