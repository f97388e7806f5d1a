// Copyright 2020 Sebastian Lehmann. All rights reserved.
// Use of this source code is governed by a GNU-style
// license that can be found in the LICENSE file.

package goulink

import "testing"

func TestBufferWriteUint16LERoundTrips(t *testing.T) {
	buf := NewBuffer(2)
	buf.WriteUint16LE(0x0400)

	want := []byte{0x00, 0x04}
	got := buf.Bytes()
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Fatalf("WriteUint16LE(0x0400) produced %#v, want %#v", got, want)
	}

	if got := buf.ReadUint16LE(); got != 0x0400 {
		t.Errorf("ReadUint16LE() = %#x, want %#x", got, 0x0400)
	}
}

func TestBufferReadUint16LETooShort(t *testing.T) {
	buf := NewBuffer(1)
	buf.WriteByte(0xAA)

	if got := buf.ReadUint16LE(); got != 0xFFFF {
		t.Errorf("ReadUint16LE() on a short buffer = %#x, want math.MaxUint16", got)
	}
}

func TestBufferWriteByteAccumulatesScanSetupBytes(t *testing.T) {
	buf := NewBuffer(scanSetupBytes)
	buf.WriteByte(1)
	buf.WriteByte(8)
	buf.WriteByte(0x12)
	buf.WriteByte(0xAB)
	buf.WriteByte(0xCD)
	buf.Write([]byte{0x5A})

	want := []byte{1, 8, 0x12, 0xAB, 0xCD, 0x5A}
	got := buf.Bytes()
	if len(got) != len(want) {
		t.Fatalf("expected %d accumulated bytes, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("byte %d = %#x, want %#x", i, got[i], want[i])
		}
	}
}
