// SPDX-License-Identifier: MIT
// Copyright (c) 2020 Brian Starkey <stark3y@gmail.com>
package bean

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"
	"time"

	"github.com/usedbytes/bean-tools/lib/firmware"
)

func testImage(t *testing.T, size int) *firmware.Image {
	t.Helper()

	data := make([]byte, size)
	copy(data, []byte{
		0x34, 0x12, 0xff, 0xff, 0x05, 0x00, 0x00, 0x00,
		'A', 'A', 'A', 'A', 0x00, 0x00, 0x00, 0x00,
	})
	binary.LittleEndian.PutUint16(data[6:], uint16(size))
	for i := firmware.HeaderLen; i < size; i++ {
		data[i] = byte(i)
	}

	img, err := firmware.NewImage(data)
	if err != nil {
		t.Fatal(err)
	}
	return img
}

func TestIdentifyRoundTrip(t *testing.T) {
	md := firmware.Metadata{
		Version:  0x0102,
		Length:   0x0a00,
		UniqueID: []byte("BBBB"),
	}

	buf := identifyPayload(md)
	want := []byte{0x02, 0x01, 0x00, 0x0a, 'B', 'B', 'B', 'B'}
	if !bytes.Equal(buf, want) {
		t.Fatalf("got % x, want % x", buf, want)
	}

	got, err := parseIdentify(buf)
	if err != nil {
		t.Fatal(err)
	}

	if got.Version != md.Version || got.Length != md.Length || !bytes.Equal(got.UniqueID, md.UniqueID) {
		t.Errorf("round trip mismatch: %+v", got)
	}

	if got.Type() != firmware.TypeB {
		t.Errorf("type: got %s, want B", got.Type())
	}
}

func TestParseIdentifyShort(t *testing.T) {
	_, err := parseIdentify([]byte{1, 2, 3})
	if err == nil {
		t.Fatal("expected an error")
	}
}

func TestDrainStaleIdentify(t *testing.T) {
	c := &Context{identifyNotif: make(chan []byte, 4)}
	for i := 0; i < 3; i++ {
		c.identifyNotif <- []byte{byte(i)}
	}

	c.drainIdentify()

	select {
	case data := <-c.identifyNotif:
		t.Errorf("stale notification left queued: %v", data)
	default:
	}
}

func TestDrainStaleBlockReqs(t *testing.T) {
	c := &Context{blockReqs: make(chan uint16, 16)}
	c.blockReqs <- 0
	c.blockReqs <- 1

	c.drainBlockReqs()

	select {
	case idx := <-c.blockReqs:
		t.Errorf("stale request left queued: %d", idx)
	default:
	}
}

type fakeBlockChar struct {
	writes []firmware.Block
	err    error
}

func (f *fakeBlockChar) WriteWithoutResponse(p []byte) (int, error) {
	if f.err != nil {
		return 0, f.err
	}

	b := make(firmware.Block, len(p))
	copy(b, p)
	f.writes = append(f.writes, b)

	return len(p), nil
}

func reqChan(indices ...uint16) chan uint16 {
	ch := make(chan uint16, len(indices))
	for _, i := range indices {
		ch <- i
	}
	return ch
}

func TestServeBlocks(t *testing.T) {
	blocks := testImage(t, 40).Blocks()

	w := &fakeBlockChar{}
	var last, total int
	err := serveBlocks(w, reqChan(0, 1, 2), blocks, func(sent, tot int) {
		last, total = sent, tot
	}, 100*time.Millisecond)
	if err != nil {
		t.Fatal(err)
	}

	if len(w.writes) != 3 {
		t.Fatalf("wrote %d blocks, want 3", len(w.writes))
	}

	for i, b := range w.writes {
		if !bytes.Equal(b, blocks[i]) {
			t.Errorf("write %d doesn't match block %d", i, i)
		}
	}

	if last != 3 || total != 3 {
		t.Errorf("progress: got %d/%d, want 3/3", last, total)
	}
}

func TestServeBlocksRerequest(t *testing.T) {
	blocks := testImage(t, 40).Blocks()

	w := &fakeBlockChar{}
	err := serveBlocks(w, reqChan(0, 1, 1, 2), blocks, nil, 100*time.Millisecond)
	if err != nil {
		t.Fatal(err)
	}

	if len(w.writes) != 4 {
		t.Fatalf("wrote %d blocks, want 4", len(w.writes))
	}

	if w.writes[2].Index() != 1 {
		t.Errorf("re-request served block %d, want 1", w.writes[2].Index())
	}
}

func TestServeBlocksOutOfRange(t *testing.T) {
	err := serveBlocks(&fakeBlockChar{}, reqChan(7), testImage(t, 40).Blocks(), nil, 100*time.Millisecond)
	if err == nil {
		t.Fatal("expected an error")
	}
}

func TestServeBlocksTimeout(t *testing.T) {
	start := time.Now()
	err := serveBlocks(&fakeBlockChar{}, make(chan uint16), testImage(t, 40).Blocks(), nil, 20*time.Millisecond)
	if err == nil {
		t.Fatal("expected a timeout error")
	}

	if time.Since(start) > time.Second {
		t.Errorf("timeout took %s", time.Since(start))
	}
}

func TestServeBlocksWriteError(t *testing.T) {
	w := &fakeBlockChar{err: errors.New("gatt failure")}
	err := serveBlocks(w, reqChan(0), testImage(t, 40).Blocks(), nil, 100*time.Millisecond)
	if err == nil {
		t.Fatal("expected an error")
	}
}

func TestServeBlocksEmpty(t *testing.T) {
	err := serveBlocks(&fakeBlockChar{}, reqChan(), nil, nil, 20*time.Millisecond)
	if err == nil {
		t.Fatal("expected an error")
	}
}
