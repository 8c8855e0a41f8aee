// SPDX-License-Identifier: MIT
// Copyright (c) 2020 Brian Starkey <stark3y@gmail.com>
package bean

import (
	"encoding/binary"
	"time"

	"github.com/pkg/errors"
	"github.com/usedbytes/log"

	"github.com/usedbytes/bean-tools/lib/firmware"
)

// OAD identify payload:
//
//     0x00: uint16 version
//     0x02: uint16 length
//     0x04: uint8  uniqueID[4]
//
// Writing an image's header to the identify characteristic offers that
// image to the device, which accepts by requesting blocks. Writing a
// zeroed header makes the device notify the header of the image it is
// currently running.
const identifyLen = 8

const (
	identifyTimeout = 2 * time.Second
	blockReqTimeout = 5 * time.Second
)

func identifyPayload(md firmware.Metadata) []byte {
	buf := make([]byte, identifyLen)
	binary.LittleEndian.PutUint16(buf[0:], md.Version)
	binary.LittleEndian.PutUint16(buf[2:], md.Length)
	copy(buf[4:], md.UniqueID)

	return buf
}

func parseIdentify(data []byte) (firmware.Metadata, error) {
	if len(data) < identifyLen {
		return firmware.Metadata{}, errors.Errorf("identify header too short: %d bytes", len(data))
	}

	return firmware.Metadata{
		Version:  binary.LittleEndian.Uint16(data[0:]),
		Length:   binary.LittleEndian.Uint16(data[2:]),
		UniqueID: data[4:8],
	}, nil
}

// A failed or abandoned exchange can leave several notifications
// queued. The next exchange starts from an empty channel.
func (c *Context) drainIdentify() {
	for {
		select {
		case <-c.identifyNotif:
		default:
			return
		}
	}
}

func (c *Context) drainBlockReqs() {
	for {
		select {
		case <-c.blockReqs:
		default:
			return
		}
	}
}

// CurrentImage asks the device for the header of the image it is
// running. Uploads should send the bank the device is not running.
func (c *Context) CurrentImage() (firmware.Metadata, error) {
	if c.closed {
		return firmware.Metadata{}, closedErr
	}

	// Drop stale notifications from a previous exchange.
	c.drainIdentify()

	_, err := c.oadIdentify.WriteWithoutResponse(make([]byte, identifyLen))
	if err != nil {
		return firmware.Metadata{}, errors.Wrap(err, "Requesting current header")
	}

	select {
	case data := <-c.identifyNotif:
		return parseIdentify(data)
	case <-time.After(identifyTimeout):
		return firmware.Metadata{}, errors.New("timed out waiting for the identify header")
	}
}

type blockWriter interface {
	WriteWithoutResponse(p []byte) (int, error)
}

func serveBlocks(w blockWriter, reqs <-chan uint16, blocks []firmware.Block, progress func(sent, total int), timeout time.Duration) error {
	total := len(blocks)
	if total == 0 {
		return errors.New("no blocks to send")
	}

	served := 0
	for {
		var idx uint16
		select {
		case idx = <-reqs:
		case <-time.After(timeout):
			return errors.Errorf("timed out waiting for a block request after %d writes", served)
		}

		if int(idx) >= total {
			return errors.Errorf("block %d requested, only have %d", idx, total)
		}

		_, err := w.WriteWithoutResponse(blocks[idx])
		if err != nil {
			return errors.Wrapf(err, "Writing block %d", idx)
		}

		served++
		if progress != nil {
			progress(int(idx)+1, total)
		}

		// The transfer is done once the device has asked for the
		// final block. It re-requests anything it is missing before
		// getting there.
		if int(idx) == total-1 {
			return nil
		}
	}
}

// Upload streams img to the device. The device drives the transfer by
// requesting block indices through the block characteristic; after the
// final block it checksums the bank, and reboots into it if the image
// is good. Progress is reported after each served request.
func (c *Context) Upload(img *firmware.Image, progress func(sent, total int)) error {
	if c.closed {
		return closedErr
	}

	// Drop stale requests from a previous attempt.
	c.drainBlockReqs()

	log.Verboseln("Offering image:", img.Metadata())

	_, err := c.oadIdentify.WriteWithoutResponse(identifyPayload(img.Metadata()))
	if err != nil {
		return errors.Wrap(err, "Offering image header")
	}

	return serveBlocks(&c.oadBlock, c.blockReqs, img.Blocks(), progress, blockReqTimeout)
}
