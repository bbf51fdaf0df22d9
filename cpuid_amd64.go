//go:build linux && amd64

package kvm

// maxCPUIDEntries is the capacity requested when a VM caches the supported
// CPUID table.
const maxCPUIDEntries = 256

// SupportedCPUID asks the kernel which CPUID leaves it can expose to a guest.
// The result has capacity maxEntries; the kernel lowers the count to the
// number of entries it filled in.
func (s *System) SupportedCPUID(maxEntries int) (*CPUID, error) {
	fd, err := s.h.fd()
	if err != nil {
		return nil, err
	}
	cpuid := NewCPUID(maxEntries)
	if _, err := ioctlPtr(fd, kvmGetSupportedCpuid, cpuid.pointer()); err != nil {
		return nil, err
	}
	return cpuid, nil
}
