// SPDX-License-Identifier: MIT
// Copyright (c) 2020 Brian Starkey <stark3y@gmail.com>
package bean

import (
	"fmt"
	"strconv"

	"github.com/pkg/errors"
	"tinygo.org/x/bluetooth"
)

const (
	// NumBanks is how many scratch data banks the device exposes.
	NumBanks = 5

	// ScratchMaxLen is the largest payload a scratch bank holds.
	ScratchMaxLen = 20
)

// ScratchBank names one of the device's scratch data banks. The
// constant values are the wire encoding and must not change.
type ScratchBank int

const (
	Bank1 ScratchBank = 0
	Bank2 ScratchBank = 1
	Bank3 ScratchBank = 2
	Bank4 ScratchBank = 3
	Bank5 ScratchBank = 4
)

func (b ScratchBank) valid() bool {
	return b >= Bank1 && b <= Bank5
}

// RawValue is the bank's wire encoding.
func (b ScratchBank) RawValue() byte {
	return byte(b)
}

func (b ScratchBank) String() string {
	if !b.valid() {
		return "bank ?"
	}
	return fmt.Sprintf("bank %d", int(b)+1)
}

// ParseScratchBank maps the user-facing bank numbers, 1 to 5.
func ParseScratchBank(s string) (ScratchBank, error) {
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 || n > NumBanks {
		return 0, errors.Errorf("invalid scratch bank '%s'", s)
	}

	return ScratchBank(n - 1), nil
}

func (c *Context) scratchChar(bank ScratchBank) (*bluetooth.DeviceCharacteristic, error) {
	if !bank.valid() {
		return nil, errors.Errorf("invalid scratch bank %d", bank)
	}

	if !c.haveScratch[bank.RawValue()] {
		return nil, errors.Errorf("no characteristic for scratch %s", bank)
	}

	return &c.scratch[bank.RawValue()], nil
}

func (c *Context) ReadScratch(bank ScratchBank) ([]byte, error) {
	if c.closed {
		return nil, closedErr
	}

	ch, err := c.scratchChar(bank)
	if err != nil {
		return nil, err
	}

	buf := make([]byte, ScratchMaxLen)
	n, err := ch.Read(buf)
	if err != nil {
		return nil, errors.Wrapf(err, "Reading scratch %s", bank)
	}

	return buf[:n], nil
}

func (c *Context) WriteScratch(bank ScratchBank, data []byte) error {
	if c.closed {
		return closedErr
	}

	if len(data) > ScratchMaxLen {
		return errors.Errorf("scratch data too long: %d bytes, max %d", len(data), ScratchMaxLen)
	}

	ch, err := c.scratchChar(bank)
	if err != nil {
		return err
	}

	_, err = ch.WriteWithoutResponse(data)
	if err != nil {
		return errors.Wrapf(err, "Writing scratch %s", bank)
	}

	return nil
}
