// SPDX-License-Identifier: MIT
// Copyright (c) 2020 Brian Starkey <stark3y@gmail.com>
package main

import (
	"encoding/hex"
	"fmt"
	"time"

	"github.com/cheggaaa/pb/v3"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"github.com/usedbytes/log"

	"github.com/usedbytes/bean-tools/lib/bean"
	"github.com/usedbytes/bean-tools/lib/config"
	"github.com/usedbytes/bean-tools/lib/crc"
	"github.com/usedbytes/bean-tools/lib/firmware"
)

func deviceFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "TOML config describing the device (and firmware bundle)",
		},
		&cli.StringFlag{
			Name:    "device",
			Aliases: []string{"d"},
			Usage:   "Advertised name to connect to",
		},
		&cli.StringFlag{
			Name:    "address",
			Aliases: []string{"a"},
			Usage:   "Device address to connect to",
		},
	}
}

func loadDeviceConfig(ctx *cli.Context) (*config.Config, error) {
	if !ctx.IsSet("config") {
		return nil, nil
	}

	return config.LoadConfig(ctx.String("config"))
}

func deviceFromFlags(cfg *config.Config, ctx *cli.Context) *config.Device {
	var dev *config.Device
	if cfg != nil {
		dev = cfg.Device
	}
	if dev == nil {
		dev = &config.Device{}
	}

	if ctx.IsSet("device") {
		dev.Name = ctx.String("device")
	}
	if ctx.IsSet("address") {
		dev.Address = ctx.String("address")
	}

	return dev
}

func connectDevice(ctx *cli.Context) (*bean.Context, error) {
	cfg, err := loadDeviceConfig(ctx)
	if err != nil {
		return nil, err
	}

	return bean.NewContext(deviceFromFlags(cfg, ctx))
}

func scanAction(ctx *cli.Context) error {
	timeout := time.Duration(ctx.Int("timeout")) * time.Second

	log.Printf("Scanning for %s...\n", timeout)

	n := 0
	err := bean.Scan(timeout, func(address, name string, rssi int16) {
		n++
		log.Printf("%s %4ddBm %s\n", address, rssi, name)
	})
	if err != nil {
		return err
	}

	log.Printf("%d device(s) seen\n", n)

	return nil
}

func bundleImageFor(cfg *config.Config, running firmware.ImageType) (*firmware.Image, error) {
	if cfg == nil || cfg.Firmware == nil || len(cfg.Firmware.Images) == 0 {
		return nil, errors.New("config has no firmware images")
	}

	// Send the bank the device isn't running.
	var key string
	switch running {
	case firmware.TypeA:
		key = "b"
	case firmware.TypeB:
		key = "a"
	default:
		return nil, errors.New("can't pick a bank: the running image type is unknown")
	}

	entry := cfg.Firmware.Images[key]
	if entry == nil {
		return nil, errors.Errorf("config has no %s image", key)
	} else if len(entry.Data) == 0 {
		return nil, errors.Errorf("image %s has no data (missing data_file?)", key)
	}

	img, err := firmware.NewImage(entry.Data)
	if err != nil {
		return nil, err
	}

	log.Printf("Selected image %s: %s\n", key, img.Metadata())

	return img, nil
}

func uploadAction(ctx *cli.Context) error {
	cfg, err := loadDeviceConfig(ctx)
	if err != nil {
		return err
	}

	if cfg == nil && ctx.Args().Len() == 0 {
		return fmt.Errorf("IMAGE_FILE or --config is required")
	}

	var img *firmware.Image
	if ctx.Args().Len() > 0 {
		img, _, err = loadImageFile(ctx)
		if err != nil {
			return err
		}
	}

	log.Println(">>> Connecting...")
	bctx, err := bean.NewContext(deviceFromFlags(cfg, ctx))
	if err != nil {
		return err
	}
	defer bctx.Close()

	if rev, err := bctx.FirmwareRevision(); err == nil {
		log.Verboseln("Firmware revision:", rev)
	}

	log.Println(">>> Reading the running image header...")
	running, err := bctx.CurrentImage()
	if err != nil {
		return err
	}
	log.Println("Device is running:", running)

	if img == nil {
		img, err = bundleImageFor(cfg, running.Type())
		if err != nil {
			return err
		}
	} else if img.Type() != firmware.TypeUnknown && img.Type() == running.Type() && !ctx.Bool("force") {
		return fmt.Errorf("device is already running a type %s image (use --force to upload anyway)", img.Type())
	}

	if calc := crc.ImageChecksum(img.Data()); calc != img.CRC() {
		if !ctx.Bool("force") {
			return fmt.Errorf("image CRC mismatch: stored 0x%04x, calculated 0x%04x (use --force to upload anyway)", img.CRC(), calc)
		}
		log.Printf("WARNING: image CRC mismatch: stored 0x%04x, calculated 0x%04x\n", img.CRC(), calc)
	}

	log.Println(">>> Uploading:", img.Metadata())

	bar := pb.StartNew(len(img.Blocks()))
	err = bctx.Upload(img, func(sent, total int) {
		bar.SetCurrent(int64(sent))
	})
	bar.Finish()
	if err != nil {
		return err
	}

	log.Println(">>> Success! The device will verify and reboot.")

	return nil
}

func scratchReadAction(ctx *cli.Context) error {
	if ctx.Args().Len() != 1 {
		return fmt.Errorf("BANK is required")
	}

	bank, err := bean.ParseScratchBank(ctx.Args().First())
	if err != nil {
		return err
	}

	bctx, err := connectDevice(ctx)
	if err != nil {
		return err
	}
	defer bctx.Close()

	data, err := bctx.ReadScratch(bank)
	if err != nil {
		return err
	}

	log.Printf("%s (%d bytes):\n%s", bank, len(data), hex.Dump(data))

	return nil
}

func scratchWriteAction(ctx *cli.Context) error {
	if ctx.Args().Len() != 2 {
		return fmt.Errorf("BANK and HEXDATA are required")
	}

	bank, err := bean.ParseScratchBank(ctx.Args().First())
	if err != nil {
		return err
	}

	data, err := hex.DecodeString(ctx.Args().Get(1))
	if err != nil {
		return errors.Wrap(err, "Decoding HEXDATA")
	}

	bctx, err := connectDevice(ctx)
	if err != nil {
		return err
	}
	defer bctx.Close()

	err = bctx.WriteScratch(bank, data)
	if err != nil {
		return err
	}

	log.Printf("Wrote %d bytes to %s\n", len(data), bank)

	return nil
}
