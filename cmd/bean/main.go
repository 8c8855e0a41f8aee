// SPDX-License-Identifier: MIT
// Copyright (c) 2020 Brian Starkey <stark3y@gmail.com>
package main

import (
	"encoding/hex"
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"github.com/usedbytes/log"

	"github.com/usedbytes/bean-tools/lib/config"
	"github.com/usedbytes/bean-tools/lib/crc"
	"github.com/usedbytes/bean-tools/lib/firmware"
	"github.com/usedbytes/bean-tools/lib/hexfile"
)

func loadImageData(fname string) ([]byte, error) {
	if strings.EqualFold(filepath.Ext(fname), ".hex") {
		return hexfile.ReadFile(fname)
	}

	data, err := ioutil.ReadFile(fname)
	if err != nil {
		return nil, errors.Wrap(err, "Reading image file")
	}

	return data, nil
}

func loadImageFile(ctx *cli.Context) (*firmware.Image, string, error) {
	if ctx.Args().Len() != 1 {
		return nil, "", fmt.Errorf("IMAGE_FILE is required")
	}
	fname := ctx.Args().First()

	data, err := loadImageData(fname)
	if err != nil {
		return nil, fname, err
	}

	img, err := firmware.NewImage(data)
	if err != nil {
		return nil, fname, err
	}

	return img, fname, nil
}

func infoAction(ctx *cli.Context) error {
	img, fname, err := loadImageFile(ctx)
	if err != nil {
		return err
	}

	log.Println(fname + ":")
	log.Println(img)

	log.Verbosef("Header:\n%s", hex.Dump(img.Data()[:firmware.HeaderLen]))

	return nil
}

func blocksAction(ctx *cli.Context) error {
	img, fname, err := loadImageFile(ctx)
	if err != nil {
		return err
	}

	blocks := img.Blocks()

	var out []byte
	for _, b := range blocks {
		log.Verbosef("Block %d:\n%s", b.Index(), hex.Dump(b))
		out = append(out, b...)
	}

	bname := fname + ".blocks.bin"
	err = ioutil.WriteFile(bname, out, 0644)
	if err != nil {
		return err
	}

	log.Printf("Wrote %d blocks to %s\n", len(blocks), bname)

	return nil
}

func checkAction(ctx *cli.Context) error {
	img, fname, err := loadImageFile(ctx)
	if err != nil {
		return err
	}

	if img.CRCShadow() != 0xffff {
		log.Printf("WARNING: crcShadow is 0x%04x, expected 0xffff\n", img.CRCShadow())
	}

	calc := crc.ImageChecksum(img.Data())
	if calc != img.CRC() {
		return fmt.Errorf("CRC mismatch: stored 0x%04x, calculated 0x%04x", img.CRC(), calc)
	}

	log.Printf("%s: CRC OK (0x%04x)\n", fname, calc)

	return nil
}

func bundleAction(ctx *cli.Context) error {
	if ctx.Args().Len() != 2 {
		return fmt.Errorf("exactly two IMAGE_FILEs are required")
	}

	cfg := &config.Config{
		Firmware: &config.Firmware{
			Name:   ctx.String("name"),
			Images: make(map[string]*config.Image),
		},
	}

	for i := 0; i < 2; i++ {
		fname := ctx.Args().Get(i)

		data, err := loadImageData(fname)
		if err != nil {
			return err
		}

		img, err := firmware.NewImage(data)
		if err != nil {
			return err
		}

		var key string
		switch img.Type() {
		case firmware.TypeA:
			key = "a"
		case firmware.TypeB:
			key = "b"
		default:
			return fmt.Errorf("%s: image type is not A or B", fname)
		}

		if cfg.Firmware.Images[key] != nil {
			return fmt.Errorf("%s: already have a type %s image", fname, img.Type())
		}
		cfg.Firmware.Images[key] = &config.Image{
			DataFile: fname,
		}

		ver := fmt.Sprintf("%d", img.Version())
		if cfg.Firmware.Version == "" {
			cfg.Firmware.Version = ver
		} else if cfg.Firmware.Version != ver {
			log.Printf("WARNING: image versions differ (%s vs %s)\n", cfg.Firmware.Version, ver)
		}
	}

	out := ctx.String("out")
	err := cfg.WriteTOML(out)
	if err != nil {
		return err
	}

	log.Println("Wrote", out)

	return nil
}

func main() {
	app := &cli.App{
		Name:  "bean",
		Usage: "A tool for working with LightBlue Bean firmware images",
		// Just ignore errors - we'll handle them ourselves in main()
		ExitErrHandler: func(c *cli.Context, e error) {},
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:     "verbose",
				Aliases:  []string{"v"},
				Usage:    "Enable more output",
				Required: false,
				Value:    false,
			},
		},
	}

	app.Commands = []*cli.Command{
		{
			Name:      "info",
			Usage:     "Print the header of a firmware image",
			ArgsUsage: "IMAGE_FILE",
			Action:    infoAction,
		},
		{
			Name:      "blocks",
			Usage:     "Derive the transport blocks for a firmware image",
			ArgsUsage: "IMAGE_FILE",
			Action:    blocksAction,
		},
		{
			Name:      "check",
			Usage:     "Verify the stored CRC of a firmware image",
			ArgsUsage: "IMAGE_FILE",
			Action:    checkAction,
		},
		{
			Name:      "bundle",
			Usage:     "Write a bundle config for an A/B image pair",
			ArgsUsage: "IMAGE_FILE IMAGE_FILE",
			Action:    bundleAction,
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:    "out",
					Aliases: []string{"o"},
					Usage:   "Output filename",
					Value:   "bean.toml",
				},
				&cli.StringFlag{
					Name:  "name",
					Usage: "Bundle name",
				},
			},
		},
		{
			Name:   "scan",
			Usage:  "List advertising devices",
			Action: scanAction,
			Flags: []cli.Flag{
				&cli.IntFlag{
					Name:    "timeout",
					Aliases: []string{"t"},
					Usage:   "Scan duration in seconds",
					Value:   5,
				},
			},
		},
		{
			Name:      "upload",
			Usage:     "Upload a firmware image over the air",
			ArgsUsage: "[IMAGE_FILE]",
			Action:    uploadAction,
			Flags: append(deviceFlags(),
				&cli.BoolFlag{
					Name:    "force",
					Aliases: []string{"f"},
					Usage:   "Upload despite a failed CRC or same-bank check",
				}),
		},
		{
			Name:  "scratch",
			Usage: "Access the scratch data banks",
			Subcommands: []*cli.Command{
				{
					Name:      "read",
					Usage:     "Read a scratch bank",
					ArgsUsage: "BANK",
					Action:    scratchReadAction,
					Flags:     deviceFlags(),
				},
				{
					Name:      "write",
					Usage:     "Write hex data to a scratch bank",
					ArgsUsage: "BANK HEXDATA",
					Action:    scratchWriteAction,
					Flags:     deviceFlags(),
				},
			},
		},
	}

	app.Before = func(ctx *cli.Context) error {
		log.SetUseLog(false)

		log.SetVerbose(ctx.Bool("verbose"))
		log.Verboseln("Extra output enabled.")
		return nil
	}

	err := app.Run(os.Args)
	if err != nil {
		log.Println("ERROR:", err)
		if v, ok := err.(cli.ExitCoder); ok {
			os.Exit(v.ExitCode())
		} else {
			os.Exit(1)
		}
	}
}
