// SPDX-License-Identifier: MIT
// Copyright (c) 2020 Brian Starkey <stark3y@gmail.com>
package bean

import (
	"testing"
)

func TestScratchBankRawValue(t *testing.T) {
	banks := []struct {
		bank ScratchBank
		raw  byte
	}{
		{Bank1, 0},
		{Bank2, 1},
		{Bank3, 2},
		{Bank4, 3},
		{Bank5, 4},
	}

	for _, tt := range banks {
		if got := tt.bank.RawValue(); got != tt.raw {
			t.Errorf("%s: got %d, want %d", tt.bank, got, tt.raw)
		}
	}
}

func TestParseScratchBank(t *testing.T) {
	good := map[string]ScratchBank{
		"1": Bank1,
		"3": Bank3,
		"5": Bank5,
	}

	for s, want := range good {
		got, err := ParseScratchBank(s)
		if err != nil {
			t.Fatal(err)
		}
		if got != want {
			t.Errorf("%q: got %v, want %v", s, got, want)
		}
	}

	for _, s := range []string{"0", "6", "abc", "", "-1"} {
		if _, err := ParseScratchBank(s); err == nil {
			t.Errorf("%q: expected an error", s)
		}
	}
}

func TestScratchBankString(t *testing.T) {
	if Bank1.String() != "bank 1" || Bank5.String() != "bank 5" {
		t.Errorf("got %q, %q", Bank1, Bank5)
	}

	if ScratchBank(9).String() != "bank ?" {
		t.Errorf("invalid bank: got %q", ScratchBank(9))
	}
}
