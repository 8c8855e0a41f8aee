// SPDX-License-Identifier: MIT
// Copyright (c) 2020 Brian Starkey <stark3y@gmail.com>
package config

import (
	"fmt"
)

func stringIfNotEmpty(prefix, val string) string {
	if len(val) > 0 {
		return fmt.Sprintf("%s %s\n", prefix, val)
	}
	return ""
}

type Device struct {
	Name           string `toml:"name,omitempty"`
	Address        string `toml:"address,omitempty"`
	ConnectTimeout int    `toml:"connect_timeout,omitempty"`
}

func (d *Device) String() string {
	var s string
	s += "Device:\n"
	s += stringIfNotEmpty("   Name:", d.Name)
	s += stringIfNotEmpty("   Address:", d.Address)
	if d.ConnectTimeout != 0 {
		s += fmt.Sprintf("   ConnectTimeout: %ds\n", d.ConnectTimeout)
	}
	return s
}

// Image is one bundled firmware file. Bundles carry a pair keyed by
// bank, "a" and "b"; the device runs one bank and gets sent the other.
type Image struct {
	DataFile string `toml:"data_file,omitempty"`
	Data     []byte `toml:"-"`
}

type Firmware struct {
	Name    string            `toml:"name,omitempty"`
	Version string            `toml:"version,omitempty"`
	Images  map[string]*Image `toml:"images,omitempty"`
}

func (f *Firmware) String() string {
	var s string
	s += "Firmware:\n"
	s += stringIfNotEmpty("   Name:", f.Name)
	s += stringIfNotEmpty("   Version:", f.Version)
	for k, v := range f.Images {
		s += fmt.Sprintf("   Image %s:\n", k)
		s += stringIfNotEmpty("      DataFile:", v.DataFile)
		if len(v.Data) != 0 {
			s += fmt.Sprintf("      Size: %d (0x%x) bytes\n", len(v.Data), len(v.Data))
		}
	}
	return s
}

type Config struct {
	Device   *Device   `toml:"device,omitempty"`
	Firmware *Firmware `toml:"firmware,omitempty"`
}
