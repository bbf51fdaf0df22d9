package vmm

import (
	"bytes"
	"errors"
	"testing"
)

type recordingPorts struct {
	reads  []uint16
	writes [][]byte
}

func (d *recordingPorts) ReadPort(port uint16, data []byte) error {
	d.reads = append(d.reads, port)
	for i := range data {
		data[i] = byte(port)
	}
	return nil
}

func (d *recordingPorts) WritePort(port uint16, data []byte) error {
	d.writes = append(d.writes, append([]byte(nil), data...))
	return nil
}

type ramDevice struct {
	base uint64
	mem  []byte
}

func (d *ramDevice) ReadMMIO(addr uint64, data []byte) error {
	copy(data, d.mem[addr-d.base:])
	return nil
}

func (d *ramDevice) WriteMMIO(addr uint64, data []byte) error {
	copy(d.mem[addr-d.base:], data)
	return nil
}

func TestBusPortDispatch(t *testing.T) {
	var bus Bus
	a, b := &recordingPorts{}, &recordingPorts{}
	if err := bus.AddPorts(0x60, 2, a); err != nil {
		t.Fatalf("AddPorts: %v", err)
	}
	if err := bus.AddPorts(0x70, 1, b); err != nil {
		t.Fatalf("AddPorts: %v", err)
	}

	data := make([]byte, 1)
	if err := bus.HandlePort(false, 0x61, 1, data); err != nil {
		t.Fatalf("HandlePort: %v", err)
	}
	if data[0] != 0x61 || len(a.reads) != 1 {
		t.Fatalf("read not routed to first device: %v %v", data, a.reads)
	}

	if err := bus.HandlePort(true, 0x70, 1, []byte{7}); err != nil {
		t.Fatalf("HandlePort: %v", err)
	}
	if len(b.writes) != 1 || b.writes[0][0] != 7 {
		t.Fatalf("write not routed to second device: %v", b.writes)
	}

	if err := bus.HandlePort(false, 0x62, 1, data); !errors.Is(err, ErrUnhandled) {
		t.Fatalf("expected ErrUnhandled, got %v", err)
	}
}

func TestBusStringIO(t *testing.T) {
	var bus Bus
	dev := &recordingPorts{}
	if err := bus.AddPorts(0x3f8, 1, dev); err != nil {
		t.Fatalf("AddPorts: %v", err)
	}
	if err := bus.HandlePort(true, 0x3f8, 2, []byte{1, 2, 3, 4, 5, 6}); err != nil {
		t.Fatalf("HandlePort: %v", err)
	}
	if len(dev.writes) != 3 || !bytes.Equal(dev.writes[2], []byte{5, 6}) {
		t.Fatalf("writes = %v", dev.writes)
	}
	if err := bus.HandlePort(true, 0x3f8, 4, []byte{1, 2}); err == nil {
		t.Fatal("expected error for truncated string access")
	}
}

func TestBusOverlap(t *testing.T) {
	var bus Bus
	if err := bus.AddPorts(0x3f8, 8, &recordingPorts{}); err != nil {
		t.Fatalf("AddPorts: %v", err)
	}
	if err := bus.AddPorts(0x3ff, 1, &recordingPorts{}); err == nil {
		t.Fatal("overlapping port range accepted")
	}
	if err := bus.AddPorts(0xffff, 1, &recordingPorts{}); err != nil {
		t.Fatalf("last port rejected: %v", err)
	}
	if err := bus.AddMMIO(0x1000, 0x1000, &ramDevice{}); err != nil {
		t.Fatalf("AddMMIO: %v", err)
	}
	if err := bus.AddMMIO(0x1800, 0x1000, &ramDevice{}); err == nil {
		t.Fatal("overlapping mmio range accepted")
	}
	if err := bus.AddMMIO(0x3000, 0, &ramDevice{}); err == nil {
		t.Fatal("empty mmio range accepted")
	}
}

func TestBusMMIO(t *testing.T) {
	var bus Bus
	dev := &ramDevice{base: 0xd0000000, mem: make([]byte, 16)}
	if err := bus.AddMMIO(dev.base, 16, dev); err != nil {
		t.Fatalf("AddMMIO: %v", err)
	}

	if err := bus.HandleMMIO(true, dev.base+4, []byte{0xaa, 0xbb, 0xcc, 0xdd}); err != nil {
		t.Fatalf("HandleMMIO write: %v", err)
	}
	got := make([]byte, 2)
	if err := bus.HandleMMIO(false, dev.base+5, got); err != nil {
		t.Fatalf("HandleMMIO read: %v", err)
	}
	if !bytes.Equal(got, []byte{0xbb, 0xcc}) {
		t.Fatalf("read %x", got)
	}

	// An access straddling the end of the range is not claimed.
	if err := bus.HandleMMIO(false, dev.base+14, make([]byte, 4)); !errors.Is(err, ErrUnhandled) {
		t.Fatalf("expected ErrUnhandled, got %v", err)
	}
}
