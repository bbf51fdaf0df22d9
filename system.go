//go:build linux

package kvm

import (
	"fmt"
	"log/slog"

	"golang.org/x/sys/unix"
)

// System is an open connection to the hypervisor device. It is needed to
// create a VM and answers capability and sizing queries.
//
// The underlying descriptor is reference counted: every VM created from a
// System keeps it open, so closing the System before its VMs is safe.
type System struct {
	h handle
}

// Open opens /dev/kvm and checks that the kernel speaks API version 12.
func Open() (*System, error) {
	fd, err := unix.Open(kvmDevicePath, unix.O_RDWR|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, osError("open "+kvmDevicePath, err)
	}

	version, err := ioctl(fd, kvmGetApiVersion, 0)
	if err != nil {
		unix.Close(fd)
		return nil, err
	}
	if version != kvmApiVersion {
		unix.Close(fd)
		return nil, fmt.Errorf("kvm: unsupported API version %d, want %d", version, kvmApiVersion)
	}

	return &System{h: handle{ref: newFdRef("system", fd, nil)}}, nil
}

// Fd returns the raw descriptor, or -1 after Close.
func (s *System) Fd() int {
	fd, _ := s.h.fd()
	return fd
}

// Close drops the caller's reference. The descriptor itself is closed once
// every VM created from s has been closed too.
func (s *System) Close() error {
	return s.h.close()
}

// APIVersion returns the KVM_GET_API_VERSION result.
func (s *System) APIVersion() (int, error) {
	fd, err := s.h.fd()
	if err != nil {
		return 0, err
	}
	v, err := ioctl(fd, kvmGetApiVersion, 0)
	if err != nil {
		return 0, err
	}
	return int(v), nil
}

// ExtensionValue returns the raw KVM_CHECK_EXTENSION result for c. Failures
// are reported as -1.
func (s *System) ExtensionValue(c Cap) int {
	fd, err := s.h.fd()
	if err != nil {
		return -1
	}
	v, err := ioctl(fd, kvmCheckExtension, uintptr(c))
	if err != nil {
		return -1
	}
	return int(int32(v))
}

// CheckExtension reports whether c is available. Only a raw result of
// exactly 1 counts; capabilities that return a count or a size must be read
// with ExtensionValue.
func (s *System) CheckExtension(c Cap) bool {
	return s.ExtensionValue(c) == 1
}

// VCPUMmapSize returns the size of the per-vCPU run block.
func (s *System) VCPUMmapSize() (int, error) {
	fd, err := s.h.fd()
	if err != nil {
		return 0, err
	}
	v, err := ioctl(fd, kvmGetVcpuMmapSize, 0)
	if err != nil {
		return 0, err
	}
	if int(v) <= 0 {
		return 0, &OSError{Op: requestName(kvmGetVcpuMmapSize), Err: unix.EINVAL}
	}
	return int(v), nil
}

// NumVCPUs returns the recommended maximum number of vCPUs per VM, falling
// back to 4 when the kernel does not report a usable value.
func (s *System) NumVCPUs() int {
	return numVCPUsFromRaw(s.ExtensionValue(CapNrVCPUs))
}

func numVCPUsFromRaw(n int) int {
	switch {
	case n == 0:
		return defaultNumVCPUs
	case n < 0:
		slog.Warn("kvm: kernel returned invalid number of vCPUs", "value", n, "default", defaultNumVCPUs)
		return defaultNumVCPUs
	default:
		return n
	}
}
