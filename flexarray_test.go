//go:build linux

package kvm

import (
	"testing"
	"unsafe"
)

func TestFlexArrayClampsCount(t *testing.T) {
	f := newFlexArray[CPUIDEntry2](4)
	if f.len() != 4 {
		t.Fatalf("len = %d, want 4", f.len())
	}

	// The kernel may write any count into the header.
	f.header().N = 1000
	if f.len() != 4 || len(f.entries()) != 4 {
		t.Fatalf("count not clamped: len %d entries %d", f.len(), len(f.entries()))
	}
	if f.header().N != 4 {
		t.Fatalf("header not rewritten: %d", f.header().N)
	}

	f.setLen(-3)
	if f.len() != 0 {
		t.Fatalf("len = %d after negative setLen", f.len())
	}
}

func TestFlexArrayAlignment(t *testing.T) {
	f := newFlexArray[CPUIDEntry2](3)
	if uintptr(f.pointer())%8 != 0 {
		t.Fatal("buffer not 8-byte aligned")
	}
	if got, want := len(f.bytes()), 8+3*int(unsafe.Sizeof(CPUIDEntry2{})); got != want {
		t.Fatalf("bytes = %d, want %d", got, want)
	}
}

func TestCPUID(t *testing.T) {
	if sz := unsafe.Sizeof(CPUIDEntry2{}); sz != 40 {
		t.Fatalf("sizeof(CPUIDEntry2) = %d, want 40", sz)
	}

	c := NewCPUID(3)
	if c.Len() != 3 || c.Cap() != 3 {
		t.Fatalf("Len %d Cap %d", c.Len(), c.Cap())
	}
	if len(c.Bytes()) != 8+3*40 {
		t.Fatalf("Bytes = %d", len(c.Bytes()))
	}

	e := c.Entries()
	e[0] = CPUIDEntry2{Function: 0, Eax: 0xd}
	e[1] = CPUIDEntry2{Function: 7, Index: 0, Flags: CPUIDFlagSignificantIndex, Ebx: 0x1}
	e[2] = CPUIDEntry2{Function: 7, Index: 1, Flags: CPUIDFlagSignificantIndex, Eax: 0x2}

	if got, ok := c.Find(7, 1); !ok || got.Eax != 0x2 {
		t.Fatalf("Find(7, 1) = %+v, %v", got, ok)
	}
	if got, ok := c.Find(0, 5); !ok || got.Eax != 0xd {
		t.Fatalf("Find(0, 5) = %+v, %v", got, ok)
	}
	if _, ok := c.Find(7, 2); ok {
		t.Fatal("Find(7, 2) matched a different subleaf")
	}

	clone := c.Clone()
	clone.Entries()[0].Eax = 0
	clone.SetLen(1)
	if c.Entries()[0].Eax != 0xd || c.Len() != 3 {
		t.Fatal("Clone shares storage with the original")
	}

	c.SetLen(10)
	if c.Len() != 3 {
		t.Fatalf("SetLen past capacity: Len = %d", c.Len())
	}
}

func TestFlexArrayZeroCapacity(t *testing.T) {
	c := NewCPUID(0)
	if c.Len() != 0 || c.Cap() != 0 {
		t.Fatalf("Len %d Cap %d", c.Len(), c.Cap())
	}
	if e := c.Entries(); e != nil {
		t.Fatalf("Entries = %v, want nil", e)
	}
	if len(c.Bytes()) != 8 {
		t.Fatalf("Bytes = %d, want header only", len(c.Bytes()))
	}
	if _, ok := c.Find(0, 0); ok {
		t.Fatal("Find matched in an empty table")
	}

	// The kernel claiming entries does not make room for them.
	c.arr.header().N = 5
	if c.Entries() != nil || c.Clone().Len() != 0 {
		t.Fatal("empty table grew")
	}

	f := newFlexArray[CPUIDEntry2](2)
	f.setLen(0)
	if f.entries() != nil {
		t.Fatal("entries of a zero count table not nil")
	}
}
