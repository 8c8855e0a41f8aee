// SPDX-License-Identifier: MIT
// Copyright (c) 2020 Brian Starkey <stark3y@gmail.com>
package crc

import (
	"github.com/sigurn/crc16"
)

// The boot image manager checks images with CRC16-CCITT (XMODEM).
var crct = crc16.MakeTable(crc16.CRC16_XMODEM)

// Checksum calculates the CRC16 of a whole buffer.
func Checksum(data []byte) uint16 {
	return crc16.Checksum(data, crct)
}

// ImageChecksum calculates the value an image's crc field should hold.
// The stored CRC word and its shadow occupy the first four bytes and
// aren't covered by their own checksum.
func ImageChecksum(data []byte) uint16 {
	if len(data) < 4 {
		return 0
	}

	return crc16.Checksum(data[4:], crct)
}
