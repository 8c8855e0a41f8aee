// SPDX-License-Identifier: MIT
// Copyright (c) 2020 Brian Starkey <stark3y@gmail.com>
package firmware

import (
	"encoding/binary"
	"fmt"
)

// ImageType identifies which of the two image banks an image was built
// for. The device runs one bank and accepts uploads for the other.
type ImageType int

const (
	TypeUnknown ImageType = iota
	TypeA
	TypeB
)

// uniqueID values of the two banks.
const (
	imageAID = "AAAA"
	imageBID = "BBBB"
)

func imageTypeForID(id []byte) ImageType {
	switch string(id) {
	case imageAID:
		return TypeA
	case imageBID:
		return TypeB
	}
	return TypeUnknown
}

func (it ImageType) String() string {
	switch it {
	case TypeA:
		return "A"
	case TypeB:
		return "B"
	}
	return "???"
}

// Metadata is the identifying triple of an image, as exchanged during
// the OAD identify handshake.
type Metadata struct {
	Version  uint16
	Length   uint16
	UniqueID []byte
}

func (md Metadata) Type() ImageType {
	return imageTypeForID(md.UniqueID)
}

func (md Metadata) String() string {
	return fmt.Sprintf("v%d type %s (%d bytes)", md.Version, md.Type(), md.Length)
}

// Block is a single transport packet. The first two bytes are the
// little-endian block index, the rest is image data.
type Block []byte

func (b Block) Index() uint16 {
	return binary.LittleEndian.Uint16(b[0:])
}

func (b Block) Payload() []byte {
	return b[2:]
}
