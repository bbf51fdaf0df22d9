//go:build linux

package kvm

import "unsafe"

// CPUIDEntry2 mirrors struct kvm_cpuid_entry2.
type CPUIDEntry2 struct {
	Function uint32
	Index    uint32
	Flags    uint32
	Eax      uint32
	Ebx      uint32
	Ecx      uint32
	Edx      uint32
	Padding  [3]uint32
}

// CPUIDFlagSignificantIndex marks an entry whose Index selects a subleaf.
const CPUIDFlagSignificantIndex = 1 << 0

// CPUID is a kvm_cpuid2 buffer: a header holding the entry count followed
// by a fixed number of entry slots. The count is never allowed to exceed
// the number of slots, whatever the kernel writes into it.
type CPUID struct {
	arr *flexArray[CPUIDEntry2]
}

// NewCPUID returns a zeroed descriptor with room for capacity entries. The
// count starts at capacity.
func NewCPUID(capacity int) *CPUID {
	return &CPUID{arr: newFlexArray[CPUIDEntry2](capacity)}
}

// Entries returns a mutable view of the valid entries.
func (c *CPUID) Entries() []CPUIDEntry2 { return c.arr.entries() }

// Len returns the clamped entry count.
func (c *CPUID) Len() int { return c.arr.len() }

// Cap returns the number of allocated entry slots.
func (c *CPUID) Cap() int { return c.arr.capacity }

// SetLen sets the entry count, clamped to [0, Cap()].
func (c *CPUID) SetLen(n int) { c.arr.setLen(n) }

// Clone returns a byte-for-byte copy with the same capacity.
func (c *CPUID) Clone() *CPUID { return &CPUID{arr: c.arr.clone()} }

// Bytes returns the raw kvm_cpuid2 encoding, header included.
func (c *CPUID) Bytes() []byte { return c.arr.bytes() }

// Find returns the entry for function/index, honouring the
// significant-index flag.
func (c *CPUID) Find(function, index uint32) (CPUIDEntry2, bool) {
	for _, e := range c.Entries() {
		if e.Function != function {
			continue
		}
		if e.Flags&CPUIDFlagSignificantIndex != 0 && e.Index != index {
			continue
		}
		return e, true
	}
	return CPUIDEntry2{}, false
}

func (c *CPUID) pointer() unsafe.Pointer {
	c.arr.len()
	return c.arr.pointer()
}
