//go:build linux

package kvm

import "unsafe"

// flexHeader is the fixed prefix shared by kvm_cpuid2 and kvm_msrs: an
// element count followed by 32 bits of padding.
type flexHeader struct {
	N   uint32
	Pad uint32
}

const flexHeaderSize = int(unsafe.Sizeof(flexHeader{}))

// flexArray is a kernel structure made of a flexHeader followed by a
// trailing array of E. The backing store is allocated as 64-bit words so
// the header and every entry are suitably aligned.
//
// The kernel may rewrite the header count. Every read clamps it back to the
// allocated capacity before it is used to size a slice.
type flexArray[E any] struct {
	buf      []uint64
	capacity int
}

func newFlexArray[E any](capacity int) *flexArray[E] {
	if capacity < 0 {
		capacity = 0
	}
	var e E
	size := flexHeaderSize + capacity*int(unsafe.Sizeof(e))
	f := &flexArray[E]{
		buf:      make([]uint64, (size+7)/8),
		capacity: capacity,
	}
	f.header().N = uint32(capacity)
	return f
}

func (f *flexArray[E]) header() *flexHeader {
	return (*flexHeader)(unsafe.Pointer(&f.buf[0]))
}

// size is the exact byte size of the structure, excluding word padding.
func (f *flexArray[E]) size() int {
	var e E
	return flexHeaderSize + f.capacity*int(unsafe.Sizeof(e))
}

func (f *flexArray[E]) len() int {
	h := f.header()
	if h.N > uint32(f.capacity) {
		h.N = uint32(f.capacity)
	}
	return int(h.N)
}

func (f *flexArray[E]) setLen(n int) {
	if n < 0 {
		n = 0
	}
	if n > f.capacity {
		n = f.capacity
	}
	f.header().N = uint32(n)
}

func (f *flexArray[E]) entries() []E {
	n := f.len()
	if n == 0 {
		// The entry area may be empty, so there is no first element to
		// point at.
		return nil
	}
	first := (*E)(unsafe.Add(unsafe.Pointer(&f.buf[0]), flexHeaderSize))
	return unsafe.Slice(first, n)
}

func (f *flexArray[E]) bytes() []byte {
	return unsafe.Slice((*byte)(unsafe.Pointer(&f.buf[0])), f.size())
}

func (f *flexArray[E]) clone() *flexArray[E] {
	c := &flexArray[E]{
		buf:      make([]uint64, len(f.buf)),
		capacity: f.capacity,
	}
	copy(c.buf, f.buf)
	return c
}

// pointer must only be passed straight into a single ioctl call.
func (f *flexArray[E]) pointer() unsafe.Pointer {
	return unsafe.Pointer(&f.buf[0])
}
