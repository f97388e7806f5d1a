// Copyright 2020 Sebastian Lehmann. All rights reserved.
// Use of this source code is governed by a GNU-style
// license that can be found in the LICENSE file.

package goulink

import (
	"context"
	"testing"
)

func TestBitsInLastByte(t *testing.T) {
	cases := []struct {
		bits int
		want byte
	}{
		{1, 1},
		{7, 7},
		{8, 8},
		{9, 1},
		{464, 8},
		{465, 1},
	}

	for _, c := range cases {
		if got := bitsInLastByte(c.bits); got != c.want {
			t.Errorf("bitsInLastByte(%d) = %d, want %d", c.bits, got, c.want)
		}
	}
}

func TestQueueScanSingleFragmentShortScan(t *testing.T) {
	transport := &fakeTransport{replies: [][]byte{{0x5A}}}
	q := NewCommandQueue(transport, 1000)
	tap := NewTapShadow()
	ctx := context.Background()

	dest := make([]byte, 1)
	req := ScanRequest{
		Type:     ScanIn,
		SizeBits: 8,
		Dest:     dest,
		EndState: TapIdle,
	}

	if err := QueueScan(ctx, q, tap, req); err != nil {
		t.Fatal(err)
	}
	if err := q.Flush(ctx); err != nil {
		t.Fatal(err)
	}

	if dest[0] != 0x5A {
		t.Errorf("expected captured TDO byte 0x5A, got %#x", dest[0])
	}
	if tap.State() != TapIdle {
		t.Errorf("tap shadow should have settled in IDLE, got %s", tap.State())
	}
}

func TestQueueScanSplitsOverFragmentCeiling(t *testing.T) {
	sizeBytes := maxScanFragmentLen + 10
	sizeBits := sizeBytes * 8

	tdi := make([]byte, sizeBytes)
	for i := range tdi {
		tdi[i] = byte(i + 1)
	}

	// Two fragments expected: one full 58-byte fragment, one 10-byte remainder.
	reply1 := make([]byte, maxScanFragmentLen)
	for i := range reply1 {
		reply1[i] = byte(0x80 + i)
	}
	reply2 := make([]byte, 10)
	for i := range reply2 {
		reply2[i] = byte(0xC0 + i)
	}

	transport := &fakeTransport{replies: [][]byte{reply1, reply2}}
	q := NewCommandQueue(transport, 1000)
	tap := NewTapShadow()
	ctx := context.Background()

	dest := make([]byte, sizeBytes)
	req := ScanRequest{
		Type:     ScanIO,
		SizeBits: sizeBits,
		Tdi:      tdi,
		Dest:     dest,
		EndState: TapIdle,
	}

	if err := QueueScan(ctx, q, tap, req); err != nil {
		t.Fatal(err)
	}

	// The first 58-byte fragment plus the 10-byte remainder together would
	// overflow one 64-byte packet, so appending the second fragment forces
	// an automatic flush of the first; only the remainder is still queued.
	if q.Pending() != 1 {
		t.Fatalf("expected the remainder fragment still queued, got %d queued commands", q.Pending())
	}
	if len(transport.writes) != 1 {
		t.Fatalf("expected the first fragment to have auto-flushed already, got %d writes", len(transport.writes))
	}

	if err := q.Flush(ctx); err != nil {
		t.Fatal(err)
	}
	if len(transport.writes) != 2 {
		t.Fatalf("expected 2 total bulk writes across both fragments, got %d", len(transport.writes))
	}

	want := append(append([]byte{}, reply1...), reply2...)
	for i, b := range want {
		if dest[i] != b {
			t.Fatalf("dest[%d] = %#x, want %#x", i, dest[i], b)
		}
	}
}

func TestQueueScanRejectsNonPositiveSize(t *testing.T) {
	q := NewCommandQueue(&fakeTransport{}, 1000)
	tap := NewTapShadow()

	err := QueueScan(context.Background(), q, tap, ScanRequest{Type: ScanIn, SizeBits: 0, EndState: TapIdle})
	if err == nil {
		t.Fatal("expected error for non-positive scan size")
	}
}
