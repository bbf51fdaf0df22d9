// Package vmm is a small single-vCPU monitor built on package kvm: a run
// loop that forwards port and MMIO exits to devices on a Bus.
package vmm

import (
	"errors"
	"fmt"
	"slices"
)

// PortDevice handles x86 port I/O. data is exactly one access wide.
type PortDevice interface {
	ReadPort(port uint16, data []byte) error
	WritePort(port uint16, data []byte) error
}

// MMIODevice handles guest physical accesses that hit no memory slot.
type MMIODevice interface {
	ReadMMIO(addr uint64, data []byte) error
	WriteMMIO(addr uint64, data []byte) error
}

// ErrUnhandled is returned when no device covers an access.
var ErrUnhandled = errors.New("vmm: no device at address")

type portRange struct {
	base  uint16
	count uint16
	dev   PortDevice
}

func (r portRange) contains(port uint16) bool {
	return port >= r.base && uint32(port) < uint32(r.base)+uint32(r.count)
}

type mmioRange struct {
	base uint64
	size uint64
	dev  MMIODevice
}

func (r mmioRange) contains(addr uint64, n int) bool {
	return addr >= r.base && addr-r.base+uint64(n) <= r.size
}

// Bus routes accesses to devices by address range. It is not safe for
// concurrent registration and dispatch.
type Bus struct {
	ports []portRange
	mmio  []mmioRange
}

// AddPorts claims count ports starting at base.
func (b *Bus) AddPorts(base, count uint16, dev PortDevice) error {
	if count == 0 {
		return fmt.Errorf("vmm: empty port range at %#x", base)
	}
	nr := portRange{base: base, count: count, dev: dev}
	for _, r := range b.ports {
		if uint32(nr.base) < uint32(r.base)+uint32(r.count) && uint32(r.base) < uint32(nr.base)+uint32(nr.count) {
			return fmt.Errorf("vmm: ports %#x+%d overlap %#x+%d", base, count, r.base, r.count)
		}
	}
	b.ports = append(b.ports, nr)
	slices.SortFunc(b.ports, func(a, c portRange) int { return int(a.base) - int(c.base) })
	return nil
}

// AddMMIO claims size bytes of guest physical address space at base.
func (b *Bus) AddMMIO(base, size uint64, dev MMIODevice) error {
	if size == 0 || base+size < base {
		return fmt.Errorf("vmm: bad mmio range %#x+%#x", base, size)
	}
	for _, r := range b.mmio {
		if base < r.base+r.size && r.base < base+size {
			return fmt.Errorf("vmm: mmio %#x+%#x overlaps %#x+%#x", base, size, r.base, r.size)
		}
	}
	b.mmio = append(b.mmio, mmioRange{base: base, size: size, dev: dev})
	return nil
}

func (b *Bus) port(port uint16) PortDevice {
	for _, r := range b.ports {
		if r.contains(port) {
			return r.dev
		}
	}
	return nil
}

// HandlePort dispatches a port exit. data holds count accesses of size
// bytes each, as produced by string instructions.
func (b *Bus) HandlePort(write bool, port uint16, size int, data []byte) error {
	dev := b.port(port)
	if dev == nil {
		return fmt.Errorf("%w: port %#04x", ErrUnhandled, port)
	}
	if size <= 0 || len(data)%size != 0 {
		return fmt.Errorf("vmm: port %#04x: %d bytes is not a multiple of access size %d", port, len(data), size)
	}
	for off := 0; off < len(data); off += size {
		chunk := data[off : off+size]
		var err error
		if write {
			err = dev.WritePort(port, chunk)
		} else {
			err = dev.ReadPort(port, chunk)
		}
		if err != nil {
			return fmt.Errorf("port %#04x: %w", port, err)
		}
	}
	return nil
}

// HandleMMIO dispatches an MMIO exit.
func (b *Bus) HandleMMIO(write bool, addr uint64, data []byte) error {
	for _, r := range b.mmio {
		if !r.contains(addr, len(data)) {
			continue
		}
		var err error
		if write {
			err = r.dev.WriteMMIO(addr, data)
		} else {
			err = r.dev.ReadMMIO(addr, data)
		}
		if err != nil {
			return fmt.Errorf("mmio %#x: %w", addr, err)
		}
		return nil
	}
	return fmt.Errorf("%w: mmio %#x", ErrUnhandled, addr)
}
