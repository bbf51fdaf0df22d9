//go:build linux

package kvm

import (
	"log/slog"
	"unsafe"
)

// EventSource is anything backed by a descriptor the kernel can signal an
// interrupt through. *os.File and *EventFd both qualify.
type EventSource interface {
	Fd() uintptr
}

// VM is a virtual machine. It keeps its System's descriptor open until the
// VM and every VCPU created from it are closed.
type VM struct {
	h handle

	runSize  int
	maxVCPUs int
	cpuid    *CPUID
}

// NewVM creates a VM and caches the per-vCPU run block size, the
// recommended vCPU limit and, on x86, the supported CPUID table.
func NewVM(s *System) (*VM, error) {
	sfd, err := s.h.fd()
	if err != nil {
		return nil, err
	}

	fd, err := ioctl(sfd, kvmCreateVm, 0)
	if err != nil {
		return nil, err
	}

	vm := &VM{h: handle{ref: newFdRef("vm", int(fd), s.h.ref)}}

	vm.runSize, err = s.VCPUMmapSize()
	if err != nil {
		vm.closeAfterError()
		return nil, err
	}
	vm.maxVCPUs = s.NumVCPUs()

	if err := vm.initArch(s); err != nil {
		vm.closeAfterError()
		return nil, err
	}

	return vm, nil
}

func (vm *VM) closeAfterError() {
	if err := vm.h.close(); err != nil {
		slog.Error("kvm: close vm after failed setup", "error", err)
	}
}

// Fd returns the raw VM descriptor, or -1 after Close.
func (vm *VM) Fd() int {
	fd, _ := vm.h.fd()
	return fd
}

// Close drops the caller's reference to the VM.
func (vm *VM) Close() error {
	return vm.h.close()
}

// RunSize is the size of the kvm_run block each VCPU maps.
func (vm *VM) RunSize() int { return vm.runSize }

// MaxVCPUs is the recommended number of vCPUs for this VM.
func (vm *VM) MaxVCPUs() int { return vm.maxVCPUs }

// CPUID returns a copy of the CPUID table cached at creation, or nil on
// architectures without one.
func (vm *VM) CPUID() *CPUID {
	if vm.cpuid == nil {
		return nil
	}
	return vm.cpuid.Clone()
}

// SetUserMemoryRegion maps size bytes of host memory at hostAddr into the
// guest at guestPhysAddr. The arguments are passed through unchanged; the
// kernel rejects empty, misaligned or overlapping regions.
//
// hostAddr must stay mapped for as long as the slot is registered.
func (vm *VM) SetUserMemoryRegion(slot uint32, guestPhysAddr, size uint64, hostAddr uintptr, flags uint32) error {
	fd, err := vm.h.fd()
	if err != nil {
		return err
	}
	region := kvmUserspaceMemoryRegion{
		Slot:          slot,
		Flags:         flags,
		GuestPhysAddr: guestPhysAddr,
		MemorySize:    size,
		UserspaceAddr: uint64(hostAddr),
	}
	_, err = ioctlPtr(fd, kvmSetUserMemoryRegion, unsafe.Pointer(&region))
	return err
}

// CreateIRQChip creates the in-kernel interrupt controller model.
func (vm *VM) CreateIRQChip() error {
	fd, err := vm.h.fd()
	if err != nil {
		return err
	}
	_, err = ioctl(fd, kvmCreateIrqchip, 0)
	return err
}

// RegisterIRQFD raises gsi whenever evt is signalled. An interrupt
// controller must exist first.
func (vm *VM) RegisterIRQFD(evt EventSource, gsi uint32) error {
	return vm.irqfd(evt, gsi, 0)
}

// UnregisterIRQFD removes a binding made by RegisterIRQFD.
func (vm *VM) UnregisterIRQFD(evt EventSource, gsi uint32) error {
	return vm.irqfd(evt, gsi, kvmIrqfdFlagDeassign)
}

func (vm *VM) irqfd(evt EventSource, gsi uint32, flags uint32) error {
	fd, err := vm.h.fd()
	if err != nil {
		return err
	}
	args := kvmIrqfdArgs{
		Fd:    uint32(evt.Fd()),
		Gsi:   gsi,
		Flags: flags,
	}
	_, err = ioctlPtr(fd, kvmIrqfd, unsafe.Pointer(&args))
	return err
}

// SetIRQLine drives an interrupt line of the in-kernel controller.
func (vm *VM) SetIRQLine(irq uint32, level bool) error {
	fd, err := vm.h.fd()
	if err != nil {
		return err
	}
	req := kvmIRQLevel{IRQ: irq}
	if level {
		req.Level = 1
	}
	_, err = ioctlPtr(fd, kvmIrqLine, unsafe.Pointer(&req))
	return err
}

// PulseIRQ raises and then lowers an edge-triggered line.
func (vm *VM) PulseIRQ(irq uint32) error {
	if err := vm.SetIRQLine(irq, true); err != nil {
		return err
	}
	return vm.SetIRQLine(irq, false)
}
