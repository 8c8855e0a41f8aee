// SPDX-License-Identifier: MIT
// Copyright (c) 2020 Brian Starkey <stark3y@gmail.com>
package config

import (
	"bytes"
	"io/ioutil"
	"path/filepath"
	"testing"

	"github.com/BurntSushi/toml"
)

func TestParse(t *testing.T) {
	var tomlData = `
[device]
name = "Bean"
address = "d0:39:72:c4:1a:2f"
connect_timeout = 10

[firmware]
name = "sketches"
version = "2.0.1"

	[firmware.images.a]
	data_file = "bank_a.bin"

	[firmware.images.b]
	data_file = "bank_b.bin"
`

	var cfg Config
	_, err := toml.Decode(tomlData, &cfg)
	if err != nil {
		t.Fatal(err)
	}

	if cfg.Device == nil || cfg.Device.Name != "Bean" {
		t.Errorf("device name not decoded: %+v", cfg.Device)
	}

	if cfg.Device.ConnectTimeout != 10 {
		t.Errorf("connect_timeout: got %d, want 10", cfg.Device.ConnectTimeout)
	}

	if cfg.Firmware == nil || len(cfg.Firmware.Images) != 2 {
		t.Fatalf("expected 2 images, got: %+v", cfg.Firmware)
	}

	if cfg.Firmware.Images["a"].DataFile != "bank_a.bin" {
		t.Errorf("image a: %+v", cfg.Firmware.Images["a"])
	}
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()

	err := ioutil.WriteFile(filepath.Join(dir, "bank_a.bin"), []byte{1, 2, 3}, 0644)
	if err != nil {
		t.Fatal(err)
	}

	tomlData := `
[firmware]
	[firmware.images.a]
	data_file = "bank_a.bin"
`

	cfgFile := filepath.Join(dir, "bean.toml")
	err = ioutil.WriteFile(cfgFile, []byte(tomlData), 0644)
	if err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(cfgFile)
	if err != nil {
		t.Fatal(err)
	}

	img := cfg.Firmware.Images["a"]
	if img == nil || !bytes.Equal(img.Data, []byte{1, 2, 3}) {
		t.Errorf("image data not loaded: %+v", img)
	}
}

func TestWriteTOML(t *testing.T) {
	cfg := &Config{
		Device: &Device{Name: "Bean+"},
		Firmware: &Firmware{
			Version: "2.0.1",
			Images: map[string]*Image{
				"a": {DataFile: "bank_a.bin"},
			},
		},
	}

	fname := filepath.Join(t.TempDir(), "out.toml")
	if err := cfg.WriteTOML(fname); err != nil {
		t.Fatal(err)
	}

	var got Config
	if _, err := toml.DecodeFile(fname, &got); err != nil {
		t.Fatal(err)
	}

	if got.Device == nil || got.Device.Name != "Bean+" {
		t.Errorf("device didn't round trip: %+v", got.Device)
	}

	if got.Firmware == nil || got.Firmware.Version != "2.0.1" {
		t.Errorf("firmware didn't round trip: %+v", got.Firmware)
	}

	if got.Firmware.Images["a"].DataFile != "bank_a.bin" {
		t.Errorf("image entry missing: %+v", got.Firmware.Images)
	}
}
