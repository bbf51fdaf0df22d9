//go:build linux && amd64

package kvm

import "unsafe"

// PITSpeakerDummy asks the PIT model to emulate a dummy speaker port.
const PITSpeakerDummy uint32 = 1 << 0

type kvmPitConfig struct {
	Flags uint32
	_     [15]uint32
}

func (vm *VM) initArch(s *System) error {
	cpuid, err := s.SupportedCPUID(maxCPUIDEntries)
	if err != nil {
		return err
	}
	vm.cpuid = cpuid
	return nil
}

// SetTSSAddress places the three-page task state segment region Intel VMX
// needs for real mode. It must not overlap guest memory.
func (vm *VM) SetTSSAddress(addr uint64) error {
	fd, err := vm.h.fd()
	if err != nil {
		return err
	}
	_, err = ioctl(fd, kvmSetTssAddr, uintptr(addr))
	return err
}

// CreatePIT2 creates the in-kernel i8254 timer. CreateIRQChip must be
// called first.
func (vm *VM) CreatePIT2(flags uint32) error {
	fd, err := vm.h.fd()
	if err != nil {
		return err
	}
	cfg := kvmPitConfig{Flags: flags}
	_, err = ioctlPtr(fd, kvmCreatePit2, unsafe.Pointer(&cfg))
	return err
}
