// Copyright 2020 Sebastian Lehmann. All rights reserved.
// Use of this source code is governed by a GNU-style
// license that can be found in the LICENSE file.

// this code is mainly inspired and based on the openocd project source code
// for detailed information see

// https://sourceforge.net/p/openocd/code

package goulink

import (
	"context"
	"time"
)

// usbTransport is the minimal bulk-transfer surface the command queue needs
// from the adapter connection. usb.go's usbConn implements it; tests
// substitute a fake.
type usbTransport interface {
	BulkWrite(ctx context.Context, data []byte) (int, error)
	BulkRead(ctx context.Context, buf []byte) (int, error)
}

// tdoOwner is a single allocation backing the IN payload of every fragment of
// one split scan. Only the final fragment of a split scan holds the owning
// view; every earlier fragment gets a non-owning view into the same backing
// array. This mirrors ulink_cmd.free_payload_in_start without reintroducing
// manual free() bookkeeping.
type tdoOwner struct {
	buf []byte
}

// tdoView is a fragment's window into a (possibly shared) TDO buffer.
type tdoView struct {
	owner *tdoOwner
	start int
	len   int
}

func newTdoView(size int) tdoView {
	return tdoView{owner: &tdoOwner{buf: make([]byte, size)}, start: 0, len: size}
}

func (v tdoView) slice() []byte {
	return v.owner.buf[v.start : v.start+v.len]
}

func (v tdoView) subView(start, length int) tdoView {
	return tdoView{owner: v.owner, start: v.start + start, len: length}
}

// postprocessFunc runs once a queued command's IN payload has been scattered
// back into its tdoView. It is where scan results get copied into a caller's
// destination buffer.
type postprocessFunc func() error

// queuedCommand is one OpenULINK wire command waiting to be sent: command ID,
// OUT payload bytes, and, if it expects a reply, an IN payload view plus the
// postprocessing to run once that view is populated.
type queuedCommand struct {
	id         CommandId
	payloadOut []byte
	payloadIn  tdoView
	hasIn      bool
	postProc   postprocessFunc
}

func (c *queuedCommand) outSize() int {
	return 1 + len(c.payloadOut)
}

func (c *queuedCommand) inSize() int {
	if !c.hasIn {
		return 0
	}
	return c.payloadIn.len
}

// CommandQueue batches OpenULINK commands and flushes them as a single bulk
// OUT packet (and, if any command expects a reply, a matching bulk IN
// packet) once either 64 bytes of OUT or 64 bytes of IN payload would
// otherwise be exceeded. This lets a long sequence of JTAG operations pay
// for one USB round trip instead of one per command.
type CommandQueue struct {
	transport usbTransport
	timeoutMs int

	commands  []*queuedCommand
	bytesOut  int
	bytesIn   int
}

// NewCommandQueue returns an empty queue that flushes over transport, using
// timeoutMs for every bulk transfer it issues.
func NewCommandQueue(transport usbTransport, timeoutMs int) *CommandQueue {
	return &CommandQueue{transport: transport, timeoutMs: timeoutMs}
}

// Append adds cmd to the queue, flushing first if cmd would overflow the
// current packet. Append never leaves cmd split across two packets; a
// command that alone exceeds a packet is rejected as a bug.
func (q *CommandQueue) Append(ctx context.Context, cmd *queuedCommand) error {
	if cmd.outSize() > maxPacketBytes || cmd.inSize() > maxPacketBytes {
		return newBugError("%s command does not fit one packet: %d bytes out, %d bytes in",
			cmd.id, cmd.outSize(), cmd.inSize())
	}

	newOut := q.bytesOut + cmd.outSize()
	newIn := q.bytesIn + cmd.inSize()

	if newOut > maxPacketBytes || newIn > maxPacketBytes {
		if err := q.Flush(ctx); err != nil {
			return err
		}
		newOut = cmd.outSize()
		newIn = cmd.inSize()
	}

	q.commands = append(q.commands, cmd)
	q.bytesOut = newOut
	q.bytesIn = newIn

	return nil
}

// Flush packs every queued command into one OUT packet, writes it, reads the
// matching IN packet if any command expects a reply, scatters the IN bytes
// back to each command's view, runs every command's postprocessor, and
// clears the queue. Flush is a no-op on an empty queue.
func (q *CommandQueue) Flush(ctx context.Context) error {
	if len(q.commands) == 0 {
		return nil
	}

	if q.timeoutMs > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(q.timeoutMs)*time.Millisecond)
		defer cancel()
	}

	out := make([]byte, 0, q.bytesOut)
	for _, cmd := range q.commands {
		out = append(out, byte(cmd.id))
		out = append(out, cmd.payloadOut...)
	}

	n, err := q.transport.BulkWrite(ctx, out)
	if err != nil {
		q.clear()
		return newTransportError("bulk write failed: " + err.Error())
	}
	if n != len(out) {
		q.clear()
		return newTransportError("short bulk write to adapter")
	}

	if q.bytesIn > 0 {
		in := make([]byte, maxPacketBytes)
		n, err := q.transport.BulkRead(ctx, in)
		if err != nil {
			q.clear()
			return newTransportError("bulk read failed: " + err.Error())
		}
		if n != q.bytesIn {
			q.clear()
			return newTransportError("short bulk read from adapter")
		}

		index := 0
		for _, cmd := range q.commands {
			if !cmd.hasIn {
				continue
			}
			copy(cmd.payloadIn.slice(), in[index:index+cmd.payloadIn.len])
			index += cmd.payloadIn.len
		}
	}

	for _, cmd := range q.commands {
		if cmd.postProc == nil {
			continue
		}
		if err := cmd.postProc(); err != nil {
			q.clear()
			return err
		}
	}

	q.clear()
	return nil
}

func (q *CommandQueue) clear() {
	q.commands = nil
	q.bytesOut = 0
	q.bytesIn = 0
}

// Pending reports how many commands are buffered and not yet flushed.
func (q *CommandQueue) Pending() int {
	return len(q.commands)
}
