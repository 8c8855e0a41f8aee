// SPDX-License-Identifier: MIT
// Copyright (c) 2020 Brian Starkey <stark3y@gmail.com>
package bean

import (
	"encoding/binary"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/usedbytes/log"
	"tinygo.org/x/bluetooth"

	"github.com/usedbytes/bean-tools/lib/config"
)

var closedErr error = errors.New("connection closed")

const (
	defaultName           = "Bean"
	defaultConnectTimeout = 10 * time.Second
)

// The OAD service is TI's over-air download profile from the CC254x
// SDK. The scratch service is Bean-specific.
var (
	oadServiceUUID  = mustUUID("f000ffc0-0451-4000-b000-000000000000")
	oadIdentifyUUID = mustUUID("f000ffc1-0451-4000-b000-000000000000")
	oadBlockUUID    = mustUUID("f000ffc2-0451-4000-b000-000000000000")

	scratchServiceUUID = mustUUID("a495ff20-c5b1-4b44-b512-1370f02d74de")
	scratchUUIDs       = [NumBanks]bluetooth.UUID{
		mustUUID("a495ff21-c5b1-4b44-b512-1370f02d74de"),
		mustUUID("a495ff22-c5b1-4b44-b512-1370f02d74de"),
		mustUUID("a495ff23-c5b1-4b44-b512-1370f02d74de"),
		mustUUID("a495ff24-c5b1-4b44-b512-1370f02d74de"),
		mustUUID("a495ff25-c5b1-4b44-b512-1370f02d74de"),
	}

	deviceInfoUUID  = bluetooth.New16BitUUID(0x180a)
	firmwareRevUUID = bluetooth.New16BitUUID(0x2a26)
)

func mustUUID(s string) bluetooth.UUID {
	u, err := bluetooth.ParseUUID(s)
	if err != nil {
		panic(err)
	}
	return u
}

type Context struct {
	adapter *bluetooth.Adapter
	dev     *bluetooth.Device

	oadIdentify bluetooth.DeviceCharacteristic
	oadBlock    bluetooth.DeviceCharacteristic
	scratch     [NumBanks]bluetooth.DeviceCharacteristic
	haveScratch [NumBanks]bool

	identifyNotif chan []byte
	blockReqs     chan uint16

	closed bool
}

func matches(result bluetooth.ScanResult, name, address string) bool {
	if address != "" {
		return strings.EqualFold(result.Address.String(), address)
	}

	if name != "" {
		return result.LocalName() == name
	}

	return strings.HasPrefix(result.LocalName(), defaultName)
}

func scanFor(adapter *bluetooth.Adapter, cfg *config.Device, timeout time.Duration) (bluetooth.ScanResult, error) {
	var name, address string
	if cfg != nil {
		name = cfg.Name
		address = cfg.Address
	}

	var found bluetooth.ScanResult
	ok := false

	t := time.AfterFunc(timeout, func() {
		adapter.StopScan()
	})
	defer t.Stop()

	err := adapter.Scan(func(a *bluetooth.Adapter, result bluetooth.ScanResult) {
		if !matches(result, name, address) {
			return
		}

		found = result
		ok = true
		a.StopScan()
	})
	if err != nil {
		return found, errors.Wrap(err, "Scanning")
	}

	if !ok {
		return found, errors.Errorf("no device found within %s", timeout)
	}

	return found, nil
}

// NewContext connects to a device and discovers its GATT profile. A nil
// cfg scans for anything advertising the default name.
func NewContext(cfg *config.Device) (*Context, error) {
	adapter := bluetooth.DefaultAdapter
	err := adapter.Enable()
	if err != nil {
		return nil, errors.Wrap(err, "Enabling adapter")
	}

	timeout := defaultConnectTimeout
	if cfg != nil && cfg.ConnectTimeout > 0 {
		timeout = time.Duration(cfg.ConnectTimeout) * time.Second
	}

	result, err := scanFor(adapter, cfg, timeout)
	if err != nil {
		return nil, err
	}

	log.Verboseln("Connecting to", result.Address.String())

	dev, err := adapter.Connect(result.Address, bluetooth.ConnectionParams{})
	if err != nil {
		return nil, errors.Wrap(err, "Connecting")
	}

	c := &Context{
		adapter:       adapter,
		dev:           dev,
		identifyNotif: make(chan []byte, 4),
		blockReqs:     make(chan uint16, 16),
	}

	err = c.discoverProfile()
	if err != nil {
		c.Close()
		return nil, err
	}

	return c, nil
}

func (c *Context) discoverProfile() error {
	srvs, err := c.dev.DiscoverServices(nil)
	if err != nil {
		return errors.Wrap(err, "Discovering services")
	}

	haveOAD := false
	for _, s := range srvs {
		switch s.UUID() {
		case oadServiceUUID:
			err = c.discoverOAD(s)
			if err != nil {
				return err
			}
			haveOAD = true
		case scratchServiceUUID:
			err = c.discoverScratch(s)
			if err != nil {
				return err
			}
		}
	}

	if !haveOAD {
		return errors.New("OAD service not found")
	}

	return nil
}

func (c *Context) discoverOAD(s bluetooth.DeviceService) error {
	chars, err := s.DiscoverCharacteristics(nil)
	if err != nil {
		return errors.Wrap(err, "Discovering OAD characteristics")
	}

	haveIdentify, haveBlock := false, false
	for _, ch := range chars {
		switch ch.UUID() {
		case oadIdentifyUUID:
			c.oadIdentify = ch
			haveIdentify = true
		case oadBlockUUID:
			c.oadBlock = ch
			haveBlock = true
		}
	}

	if !haveIdentify || !haveBlock {
		return errors.New("OAD service is missing characteristics")
	}

	err = c.oadIdentify.EnableNotifications(func(buf []byte) {
		data := make([]byte, len(buf))
		copy(data, buf)

		select {
		case c.identifyNotif <- data:
		default:
			log.Verboseln("Dropping identify notification")
		}
	})
	if err != nil {
		return errors.Wrap(err, "Subscribing to identify")
	}

	err = c.oadBlock.EnableNotifications(func(buf []byte) {
		if len(buf) < 2 {
			log.Verboseln("Short block request:", buf)
			return
		}

		select {
		case c.blockReqs <- binary.LittleEndian.Uint16(buf):
		default:
			log.Verboseln("Dropping block request")
		}
	})
	if err != nil {
		return errors.Wrap(err, "Subscribing to block requests")
	}

	return nil
}

func (c *Context) discoverScratch(s bluetooth.DeviceService) error {
	chars, err := s.DiscoverCharacteristics(nil)
	if err != nil {
		return errors.Wrap(err, "Discovering scratch characteristics")
	}

	for _, ch := range chars {
		for i, u := range scratchUUIDs {
			if ch.UUID() == u {
				c.scratch[i] = ch
				c.haveScratch[i] = true
			}
		}
	}

	return nil
}

// FirmwareRevision reads the Device Information firmware string.
func (c *Context) FirmwareRevision() (string, error) {
	if c.closed {
		return "", closedErr
	}

	srvs, err := c.dev.DiscoverServices([]bluetooth.UUID{deviceInfoUUID})
	if err != nil {
		return "", errors.Wrap(err, "Discovering device information")
	} else if len(srvs) == 0 {
		return "", errors.New("device information service not found")
	}

	chars, err := srvs[0].DiscoverCharacteristics([]bluetooth.UUID{firmwareRevUUID})
	if err != nil {
		return "", errors.Wrap(err, "Discovering firmware revision")
	} else if len(chars) == 0 {
		return "", errors.New("firmware revision not found")
	}

	buf := make([]byte, 32)
	n, err := chars[0].Read(buf)
	if err != nil {
		return "", errors.Wrap(err, "Reading firmware revision")
	}

	return string(buf[:n]), nil
}

func (c *Context) Close() {
	if c.closed {
		return
	}
	c.closed = true

	err := c.dev.Disconnect()
	if err != nil {
		log.Verboseln("Disconnect:", err)
	}
}

// Scan reports advertising devices until the timeout. Each address is
// reported once.
func Scan(timeout time.Duration, found func(address, name string, rssi int16)) error {
	adapter := bluetooth.DefaultAdapter
	err := adapter.Enable()
	if err != nil {
		return errors.Wrap(err, "Enabling adapter")
	}

	seen := make(map[string]bool)

	t := time.AfterFunc(timeout, func() {
		adapter.StopScan()
	})
	defer t.Stop()

	err = adapter.Scan(func(a *bluetooth.Adapter, result bluetooth.ScanResult) {
		addr := result.Address.String()
		if seen[addr] {
			return
		}
		seen[addr] = true

		found(addr, result.LocalName(), result.RSSI)
	})
	if err != nil {
		return errors.Wrap(err, "Scanning")
	}

	return nil
}
