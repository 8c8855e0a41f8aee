// SPDX-License-Identifier: MIT
// Copyright (c) 2020 Brian Starkey <stark3y@gmail.com>
package hexfile

import (
	"io"
	"os"

	"github.com/marcinbor85/gohex"
	"github.com/pkg/errors"
)

// Read parses Intel HEX records and flattens the data segments into a
// single contiguous binary, starting at the lowest segment address.
// Gaps between segments are filled with 0xff, matching erased flash.
func Read(r io.Reader) ([]byte, error) {
	mem := gohex.NewMemory()
	if err := mem.ParseIntelHex(r); err != nil {
		return nil, errors.Wrap(err, "Parsing Intel HEX")
	}

	segments := mem.GetDataSegments()
	if len(segments) == 0 {
		return nil, errors.New("No data records")
	}

	start := segments[0].Address
	end := start
	for _, s := range segments {
		if s.Address < start {
			start = s.Address
		}

		if sEnd := s.Address + uint32(len(s.Data)); sEnd > end {
			end = sEnd
		}
	}

	return mem.ToBinary(start, end-start, 0xff), nil
}

// ReadFile runs Read on the named file.
func ReadFile(fname string) ([]byte, error) {
	f, err := os.Open(fname)
	if err != nil {
		return nil, errors.Wrap(err, "Opening hex file")
	}
	defer f.Close()

	return Read(f)
}
