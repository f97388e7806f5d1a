// Copyright 2020 Sebastian Lehmann. All rights reserved.
// Use of this source code is governed by a GNU-style
// license that can be found in the LICENSE file.

package goulink

import (
	"context"
	"testing"
)

// fakeTransport records every bulk write and answers every bulk read from a
// preloaded reply queue, standing in for a real USB connection in tests.
type fakeTransport struct {
	writes   [][]byte
	replies  [][]byte
	writeErr error
	readErr  error
}

func (f *fakeTransport) BulkWrite(ctx context.Context, data []byte) (int, error) {
	if f.writeErr != nil {
		return 0, f.writeErr
	}
	cp := append([]byte(nil), data...)
	f.writes = append(f.writes, cp)
	return len(data), nil
}

func (f *fakeTransport) BulkRead(ctx context.Context, buf []byte) (int, error) {
	if f.readErr != nil {
		return 0, f.readErr
	}
	if len(f.replies) == 0 {
		return 0, nil
	}
	reply := f.replies[0]
	f.replies = f.replies[1:]
	n := copy(buf, reply)
	return n, nil
}

func TestQueueAppendFlushesOnOutOverflow(t *testing.T) {
	transport := &fakeTransport{replies: [][]byte{{}}}
	q := NewCommandQueue(transport, 1000)
	ctx := context.Background()

	big := &queuedCommand{id: cmdScanOut, payloadOut: make([]byte, 63)} // 64 bytes total, fills the packet exactly
	if err := q.Append(ctx, big); err != nil {
		t.Fatal(err)
	}
	if q.Pending() != 1 {
		t.Fatalf("expected 1 pending command, got %d", q.Pending())
	}

	small := &queuedCommand{id: cmdTest}
	if err := q.Append(ctx, small); err != nil {
		t.Fatal(err)
	}

	if len(transport.writes) != 1 {
		t.Fatalf("expected append overflow to flush exactly once, got %d flushes", len(transport.writes))
	}
	if q.Pending() != 1 {
		t.Fatalf("expected only the second command pending after overflow flush, got %d", q.Pending())
	}
}

func TestQueueFlushScattersInPayloadPerCommand(t *testing.T) {
	transport := &fakeTransport{replies: [][]byte{{0xAA, 0xBB, 0xCC}}}
	q := NewCommandQueue(transport, 1000)
	ctx := context.Background()

	var gotA, gotB byte
	cmdA := &queuedCommand{id: cmdGetSignals, hasIn: true, payloadIn: newTdoView(1)}
	cmdA.postProc = func() error { gotA = cmdA.payloadIn.slice()[0]; return nil }

	cmdB := &queuedCommand{id: cmdGetSignals, hasIn: true, payloadIn: newTdoView(2)}
	cmdB.postProc = func() error { gotB = cmdB.payloadIn.slice()[1]; return nil }

	if err := q.Append(ctx, cmdA); err != nil {
		t.Fatal(err)
	}
	if err := q.Append(ctx, cmdB); err != nil {
		t.Fatal(err)
	}
	if err := q.Flush(ctx); err != nil {
		t.Fatal(err)
	}

	if gotA != 0xAA {
		t.Errorf("command A should have received byte 0xAA, got %#x", gotA)
	}
	if gotB != 0xCC {
		t.Errorf("command B should have received its second byte 0xCC, got %#x", gotB)
	}
	if q.Pending() != 0 {
		t.Error("queue should be empty after flush")
	}
}

func TestQueueFlushIsNoOpWhenEmpty(t *testing.T) {
	transport := &fakeTransport{}
	q := NewCommandQueue(transport, 1000)

	if err := q.Flush(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(transport.writes) != 0 {
		t.Error("flushing an empty queue should not issue a bulk write")
	}
}

func TestQueueFlushPropagatesTransportError(t *testing.T) {
	transport := &fakeTransport{writeErr: errSentinel{}}
	q := NewCommandQueue(transport, 1000)
	ctx := context.Background()

	if err := q.Append(ctx, &queuedCommand{id: cmdTest}); err != nil {
		t.Fatal(err)
	}

	if err := q.Flush(ctx); err == nil {
		t.Fatal("expected flush to surface the transport error")
	}
	if q.Pending() != 0 {
		t.Error("queue should be cleared even after a failed flush")
	}
}

type errSentinel struct{}

func (errSentinel) Error() string { return "simulated transport failure" }
