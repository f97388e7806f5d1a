// Copyright 2020 Sebastian Lehmann. All rights reserved.
// Use of this source code is governed by a GNU-style
// license that can be found in the LICENSE file.

package goulink

import (
	"bytes"
	"math"
)

// Buffer is a small byte-accumulator used to assemble on-wire command
// payloads. Every multi-byte OpenULINK field is little-endian, so that is
// the only flavor this type needs to offer.
type Buffer struct {
	bytes.Buffer
}

func NewBuffer(initSize int) *Buffer {
	b := &Buffer{}

	b.Grow(initSize)

	return b
}

func (buf *Buffer) WriteUint16LE(value uint16) {
	buf.WriteByte(byte(value))
	buf.WriteByte(byte(value >> 8))
}

func (buf *Buffer) ReadUint16LE() uint16 {
	return convertToUint16LE(buf.Bytes())
}

func convertToUint16LE(buf []byte) uint16 {
	if len(buf) > 1 {
		return uint16(buf[0]) | (uint16(buf[1]) << 8)
	}

	logger.Errorf("could not read little-endian uint16 from given buffer")
	return math.MaxUint16
}
