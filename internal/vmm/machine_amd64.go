//go:build linux && amd64

package vmm

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"unsafe"

	"github.com/tinyrange/kvm"
	"golang.org/x/sys/unix"
)

// tssAddress sits just below the 4GiB BIOS area, clear of any RAM a flat
// real-mode guest can reach.
const tssAddress = 0xfffbd000

// MachineConfig describes a single-vCPU real-mode machine.
type MachineConfig struct {
	MemorySize uint64

	// IRQChip creates the in-kernel interrupt controller and PIT.
	IRQChip bool
}

// Machine is one VM with one vCPU and a single anonymous RAM slot at guest
// physical address 0.
type Machine struct {
	System *kvm.System
	VM     *kvm.VM
	VCPU   *kvm.VCPU
	Bus    *Bus
	Memory []byte
}

// NewMachine builds the VM and leaves the vCPU in real mode with CS:IP at
// 0000:0000.
func NewMachine(cfg MachineConfig) (m *Machine, err error) {
	if cfg.MemorySize == 0 || cfg.MemorySize%uint64(unix.Getpagesize()) != 0 {
		return nil, fmt.Errorf("vmm: memory size %#x is not a positive multiple of the page size", cfg.MemorySize)
	}

	m = &Machine{Bus: &Bus{}}
	defer func() {
		if err != nil {
			if cerr := m.Close(); cerr != nil {
				slog.Error("vmm: close machine after failed setup", "error", cerr)
			}
			m = nil
		}
	}()

	if m.System, err = kvm.Open(); err != nil {
		return m, err
	}
	if m.VM, err = kvm.NewVM(m.System); err != nil {
		return m, fmt.Errorf("create vm: %w", err)
	}
	if err = m.VM.SetTSSAddress(tssAddress); err != nil {
		return m, fmt.Errorf("set tss address: %w", err)
	}
	if cfg.IRQChip {
		if err = m.VM.CreateIRQChip(); err != nil {
			return m, fmt.Errorf("create irqchip: %w", err)
		}
		if err = m.VM.CreatePIT2(0); err != nil {
			return m, fmt.Errorf("create pit: %w", err)
		}
	}

	m.Memory, err = unix.Mmap(-1, 0, int(cfg.MemorySize),
		unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANONYMOUS|unix.MAP_NORESERVE)
	if err != nil {
		return m, fmt.Errorf("allocate guest memory: %w", err)
	}
	if err = m.VM.SetUserMemoryRegion(0, 0, cfg.MemorySize, uintptr(unsafe.Pointer(&m.Memory[0])), 0); err != nil {
		return m, fmt.Errorf("register guest memory: %w", err)
	}

	if m.VCPU, err = kvm.NewVCPU(0, m.VM); err != nil {
		return m, fmt.Errorf("create vcpu: %w", err)
	}
	if cpuid := m.VM.CPUID(); cpuid != nil {
		if err = m.VCPU.SetCPUID(cpuid); err != nil {
			return m, fmt.Errorf("set cpuid: %w", err)
		}
	}
	if err = m.SetEntry(0); err != nil {
		return m, err
	}
	return m, nil
}

// SetEntry points the vCPU at a flat real-mode entry: every segment base
// and selector zero, IP at addr, and a stack at the top of the first 64KiB.
func (m *Machine) SetEntry(addr uint64) error {
	if addr > 0xffff {
		return fmt.Errorf("vmm: real mode entry %#x beyond the first segment", addr)
	}
	sregs, err := m.VCPU.Sregs()
	if err != nil {
		return fmt.Errorf("get sregs: %w", err)
	}
	for _, seg := range []*kvm.Segment{&sregs.CS, &sregs.DS, &sregs.ES, &sregs.FS, &sregs.GS, &sregs.SS} {
		seg.Base = 0
		seg.Selector = 0
	}
	if err := m.VCPU.SetSregs(sregs); err != nil {
		return fmt.Errorf("set sregs: %w", err)
	}

	regs := kvm.Regs{
		Rip:    addr,
		Rsp:    0xfff0,
		Rflags: 0x2,
	}
	if err := m.VCPU.SetRegs(regs); err != nil {
		return fmt.Errorf("set regs: %w", err)
	}
	return nil
}

// Load copies an image into guest memory at addr.
func (m *Machine) Load(r io.Reader, addr uint64) (int64, error) {
	if addr >= uint64(len(m.Memory)) {
		return 0, fmt.Errorf("vmm: load address %#x outside %#x bytes of memory", addr, len(m.Memory))
	}
	dst := m.Memory[addr:]
	n, err := io.ReadFull(r, dst)
	switch {
	case err == nil:
		// The image may be exactly the size of the remaining memory.
		var probe [1]byte
		if k, _ := r.Read(probe[:]); k > 0 {
			return int64(n), fmt.Errorf("vmm: image does not fit below %#x", len(m.Memory))
		}
	case errors.Is(err, io.ErrUnexpectedEOF), errors.Is(err, io.EOF):
		err = nil
	}
	return int64(n), err
}

// Runner returns a Runner for the machine's vCPU and bus.
func (m *Machine) Runner() *Runner {
	return &Runner{VCPU: m.VCPU, Bus: m.Bus}
}

// Close tears the machine down, vCPU first.
func (m *Machine) Close() error {
	var errs []error
	if m.VCPU != nil {
		errs = append(errs, m.VCPU.Close())
		m.VCPU = nil
	}
	if m.VM != nil {
		errs = append(errs, m.VM.Close())
		m.VM = nil
	}
	if m.System != nil {
		errs = append(errs, m.System.Close())
		m.System = nil
	}
	if m.Memory != nil {
		errs = append(errs, unix.Munmap(m.Memory))
		m.Memory = nil
	}
	return errors.Join(errs...)
}
