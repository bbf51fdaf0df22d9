//go:build linux

package kvm

import "unsafe"

// kvmRunData is the fixed prefix of struct kvm_run shared with the kernel
// through the vCPU mapping. Anon0 is the exit union; only the member
// selected by ExitReason may be read.
type kvmRunData struct {
	RequestInterruptWindow     uint8
	ImmediateExit              uint8
	_                          [6]uint8
	ExitReason                 uint32
	ReadyForInterruptInjection uint8
	IfFlag                     uint8
	Flags                      uint16
	Cr8                        uint64
	ApicBase                   uint64
	Anon0                      [256]byte
}

const (
	kvmRunUnionOffset = int(unsafe.Offsetof(kvmRunData{}.Anon0))
	kvmRunDataSize    = int(unsafe.Sizeof(kvmRunData{}))
)

const (
	kvmExitIoIn  = 0
	kvmExitIoOut = 1
)

type kvmExitIoData struct {
	Direction  uint8
	Size       uint8
	Port       uint16
	Count      uint32
	DataOffset uint64
}

type kvmExitMMIOData struct {
	PhysAddr uint64
	Data     [8]byte
	Len      uint32
	IsWrite  uint8
}

const kvmMMIODataOffset = int(unsafe.Offsetof(kvmExitMMIOData{}.Data))

type kvmExitUnknownData struct {
	HardwareExitReason uint64
}

type kvmExitFailEntryData struct {
	HardwareEntryFailureReason uint64
	CPU                        uint32
}

type kvmExitInternalErrorData struct {
	Suberror uint32
	Ndata    uint32
	Data     [16]uint64
}

type kvmExitSystemEventData struct {
	Type  uint32
	Ndata uint32
	Data  [16]uint64
}

func runData(run []byte) *kvmRunData {
	if len(run) < kvmRunDataSize {
		panic("kvm: run block smaller than struct kvm_run")
	}
	return (*kvmRunData)(unsafe.Pointer(&run[0]))
}
