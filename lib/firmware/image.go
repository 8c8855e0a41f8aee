// SPDX-License-Identifier: MIT
// Copyright (c) 2020 Brian Starkey <stark3y@gmail.com>
package firmware

import (
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"github.com/usedbytes/bean-tools/lib/chunk"
)

const (
	// HeaderLen is the size of the image header.
	HeaderLen = 16

	// BlockPayloadLen is the number of image bytes carried per transport
	// block. BlockLen adds the two-byte block index on the front.
	BlockPayloadLen = 16
	BlockLen        = BlockPayloadLen + 2
)

// ParseError wraps whatever stopped a buffer being parsed as an image.
type ParseError struct {
	Err error
}

func (e *ParseError) Error() string {
	return "parsing firmware image: " + e.Err.Error()
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Image is a complete firmware image, header and payload. The header
// occupies the first HeaderLen bytes, little-endian words:
//
//     0x00: uint16 crc
//     0x02: uint16 crcShadow (0xffff until the bootloader writes it)
//     0x04: uint16 version
//     0x06: uint16 length
//     0x08: uint8  uniqueID[4]
//     0x0c: uint8  reserved[4]
//     0x10: payload...
//
// The buffer is held as-is and all accessors decode straight out of it.
type Image struct {
	rawData []byte
}

// NewImage wraps a buffer holding a complete image. The buffer is
// retained, not copied, and must not be modified afterwards. Nothing
// beyond the header length is validated here. Callers who care about
// crcShadow or the CRC itself check those separately.
func NewImage(rawData []byte) (*Image, error) {
	if len(rawData) < HeaderLen {
		return nil, &ParseError{
			Err: errors.Errorf("header out of range: need %d bytes, have %d", HeaderLen, len(rawData)),
		}
	}

	return &Image{
		rawData: rawData,
	}, nil
}

func (img *Image) Data() []byte {
	return img.rawData
}

func (img *Image) CRC() uint16 {
	return binary.LittleEndian.Uint16(img.rawData[0x0:])
}

func (img *Image) CRCShadow() uint16 {
	return binary.LittleEndian.Uint16(img.rawData[0x2:])
}

func (img *Image) Version() uint16 {
	return binary.LittleEndian.Uint16(img.rawData[0x4:])
}

func (img *Image) Length() uint16 {
	return binary.LittleEndian.Uint16(img.rawData[0x6:])
}

func (img *Image) UniqueID() []byte {
	return img.rawData[0x8:0xc]
}

func (img *Image) Reserved() []byte {
	return img.rawData[0xc:0x10]
}

func (img *Image) Type() ImageType {
	return imageTypeForID(img.UniqueID())
}

// Metadata builds the identifying triple afresh from the header.
func (img *Image) Metadata() Metadata {
	return Metadata{
		Version:  img.Version(),
		Length:   img.Length(),
		UniqueID: img.UniqueID(),
	}
}

// Blocks derives the transport packets for the whole buffer, header
// included. Window i of BlockPayloadLen bytes becomes:
//
//     0x00: uint16 blockIndex
//     0x02: uint8  payload[BlockPayloadLen]
//
// A short final window leaves the trailing payload bytes zero. The
// packets are built fresh on every call.
func (img *Image) Blocks() []Block {
	chunks := chunk.Chunks(img, BlockPayloadLen)

	blocks := make([]Block, 0, len(chunks))
	for i, c := range chunks {
		b := make(Block, BlockLen)
		binary.LittleEndian.PutUint16(b[0:], uint16(i))
		copy(b[2:], c)
		blocks = append(blocks, b)
	}

	return blocks
}

func hexByteString(a []byte) string {
	var chars []string
	for _, v := range a {
		chars = append(chars, fmt.Sprintf("%02x", v))
	}
	return strings.Join(chars, " ")
}

func (img *Image) String() string {
	nblocks := (len(img.rawData) + BlockPayloadLen - 1) / BlockPayloadLen

	s := fmt.Sprintf("Type:      %s\n", img.Type())
	s += fmt.Sprintf("Version:   %d\n", img.Version())
	s += fmt.Sprintf("Length:    %d bytes (buffer %d bytes)\n", img.Length(), len(img.rawData))
	s += fmt.Sprintf("Unique ID: %s\n", hexByteString(img.UniqueID()))
	s += fmt.Sprintf("Reserved:  %s\n", hexByteString(img.Reserved()))
	s += fmt.Sprintf("CRC:       0x%04x (shadow 0x%04x)\n", img.CRC(), img.CRCShadow())
	s += fmt.Sprintf("Blocks:    %d", nblocks)

	return s
}
