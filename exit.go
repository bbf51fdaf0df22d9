//go:build linux

package kvm

import (
	"fmt"
	"sync/atomic"
	"unsafe"

	"golang.org/x/sys/unix"
)

// ExitReason is the kvm_run exit_reason tag.
type ExitReason uint32

const (
	ExitReasonUnknown        ExitReason = 0
	ExitReasonException      ExitReason = 1
	ExitReasonIO             ExitReason = 2
	ExitReasonHypercall      ExitReason = 3
	ExitReasonDebug          ExitReason = 4
	ExitReasonHLT            ExitReason = 5
	ExitReasonMMIO           ExitReason = 6
	ExitReasonIRQWindowOpen  ExitReason = 7
	ExitReasonShutdown       ExitReason = 8
	ExitReasonFailEntry      ExitReason = 9
	ExitReasonIntr           ExitReason = 10
	ExitReasonSetTPR         ExitReason = 11
	ExitReasonTPRAccess      ExitReason = 12
	ExitReasonS390Sieic      ExitReason = 13
	ExitReasonS390Reset      ExitReason = 14
	ExitReasonDCR            ExitReason = 15
	ExitReasonNMI            ExitReason = 16
	ExitReasonInternalError  ExitReason = 17
	ExitReasonOSI            ExitReason = 18
	ExitReasonPAPRHcall      ExitReason = 19
	ExitReasonS390UControl   ExitReason = 20
	ExitReasonWatchdog       ExitReason = 21
	ExitReasonS390TSCH       ExitReason = 22
	ExitReasonEPR            ExitReason = 23
	ExitReasonSystemEvent    ExitReason = 24
	ExitReasonS390STSI       ExitReason = 25
	ExitReasonIOAPICEOI      ExitReason = 26
	ExitReasonHyperV         ExitReason = 27
	ExitReasonARMNISV        ExitReason = 28
	ExitReasonX86RDMSR       ExitReason = 29
	ExitReasonX86WRMSR       ExitReason = 30
	ExitReasonDirtyRingFull  ExitReason = 31
	ExitReasonAPResetHold    ExitReason = 32
	ExitReasonX86BusLock     ExitReason = 33
	ExitReasonXen            ExitReason = 34
	ExitReasonRISCVSBI       ExitReason = 35
	ExitReasonRISCVCSR       ExitReason = 36
	ExitReasonNotify         ExitReason = 37
	ExitReasonLoongArchIOCSR ExitReason = 38
	ExitReasonMemoryFault    ExitReason = 39
	ExitReasonTDX            ExitReason = 40

	maxKnownExitReason = ExitReasonTDX
)

var exitReasonNames = [...]string{
	ExitReasonUnknown:        "UNKNOWN",
	ExitReasonException:      "EXCEPTION",
	ExitReasonIO:             "IO",
	ExitReasonHypercall:      "HYPERCALL",
	ExitReasonDebug:          "DEBUG",
	ExitReasonHLT:            "HLT",
	ExitReasonMMIO:           "MMIO",
	ExitReasonIRQWindowOpen:  "IRQ_WINDOW_OPEN",
	ExitReasonShutdown:       "SHUTDOWN",
	ExitReasonFailEntry:      "FAIL_ENTRY",
	ExitReasonIntr:           "INTR",
	ExitReasonSetTPR:         "SET_TPR",
	ExitReasonTPRAccess:      "TPR_ACCESS",
	ExitReasonS390Sieic:      "S390_SIEIC",
	ExitReasonS390Reset:      "S390_RESET",
	ExitReasonDCR:            "DCR",
	ExitReasonNMI:            "NMI",
	ExitReasonInternalError:  "INTERNAL_ERROR",
	ExitReasonOSI:            "OSI",
	ExitReasonPAPRHcall:      "PAPR_HCALL",
	ExitReasonS390UControl:   "S390_UCONTROL",
	ExitReasonWatchdog:       "WATCHDOG",
	ExitReasonS390TSCH:       "S390_TSCH",
	ExitReasonEPR:            "EPR",
	ExitReasonSystemEvent:    "SYSTEM_EVENT",
	ExitReasonS390STSI:       "S390_STSI",
	ExitReasonIOAPICEOI:      "IOAPIC_EOI",
	ExitReasonHyperV:         "HYPERV",
	ExitReasonARMNISV:        "ARM_NISV",
	ExitReasonX86RDMSR:       "X86_RDMSR",
	ExitReasonX86WRMSR:       "X86_WRMSR",
	ExitReasonDirtyRingFull:  "DIRTY_RING_FULL",
	ExitReasonAPResetHold:    "AP_RESET_HOLD",
	ExitReasonX86BusLock:     "X86_BUS_LOCK",
	ExitReasonXen:            "XEN",
	ExitReasonRISCVSBI:       "RISCV_SBI",
	ExitReasonRISCVCSR:       "RISCV_CSR",
	ExitReasonNotify:         "NOTIFY",
	ExitReasonLoongArchIOCSR: "LOONGARCH_IOCSR",
	ExitReasonMemoryFault:    "MEMORY_FAULT",
	ExitReasonTDX:            "TDX",
}

// Known reports whether r is part of the ABI this package decodes.
func (r ExitReason) Known() bool { return r <= maxKnownExitReason }

func (r ExitReason) String() string {
	if r.Known() {
		return "KVM_EXIT_" + exitReasonNames[r]
	}
	return fmt.Sprintf("KVM_EXIT_???(%d)", uint32(r))
}

// System event types reported with ExitReasonSystemEvent.
const (
	SystemEventShutdown = 1
	SystemEventReset    = 2
	SystemEventCrash    = 3
	SystemEventWakeup   = 4
	SystemEventSuspend  = 5
	SystemEventSEVTerm  = 6
)

// ExitKind classifies exits that carry a data view.
type ExitKind uint8

const (
	ExitNone ExitKind = iota
	ExitIOIn
	ExitIOOut
	ExitMMIORead
	ExitMMIOWrite
)

func (k ExitKind) String() string {
	switch k {
	case ExitNone:
		return "none"
	case ExitIOIn:
		return "io-in"
	case ExitIOOut:
		return "io-out"
	case ExitMMIORead:
		return "mmio-read"
	case ExitMMIOWrite:
		return "mmio-write"
	default:
		return fmt.Sprintf("ExitKind(%d)", uint8(k))
	}
}

// Exit describes why a Run call returned.
//
// For port and MMIO exits the data view points into the vCPU's shared run
// block. For IO-in and MMIO-read the caller fills it in before the next Run
// so the guest sees the value. The view is only valid until the next Run or
// Close of the VCPU; Data panics after that.
type Exit struct {
	Reason ExitReason
	Kind   ExitKind

	// Port and Size are set for port I/O. Count is the number of Size-wide
	// transfers packed into the data view (string instructions).
	Port  uint16
	Size  int
	Count int

	// Addr is the guest physical address of an MMIO access.
	Addr uint64

	// HardwareReason is hardware_exit_reason for ExitReasonUnknown and
	// hardware_entry_failure_reason for ExitReasonFailEntry.
	HardwareReason uint64

	// Suberror is set for ExitReasonInternalError.
	Suberror uint32

	// SystemEvent is the event type for ExitReasonSystemEvent.
	SystemEvent uint32

	data  []byte
	lease *atomic.Uint64
	gen   uint64
}

// Data returns the borrowed I/O or MMIO bytes, or nil for other exits.
func (e Exit) Data() []byte {
	if e.lease != nil && e.lease.Load() != e.gen {
		panic("kvm: exit data used after the vcpu was run again or closed")
	}
	return e.data
}

func (e Exit) String() string {
	switch e.Kind {
	case ExitIOIn, ExitIOOut:
		return fmt.Sprintf("%s port=%#x size=%d count=%d", e.Kind, e.Port, e.Size, e.Count)
	case ExitMMIORead, ExitMMIOWrite:
		return fmt.Sprintf("%s addr=%#x len=%d", e.Kind, e.Addr, len(e.data))
	}
	switch e.Reason {
	case ExitReasonUnknown, ExitReasonFailEntry:
		return fmt.Sprintf("%s hardware_reason=%#x", e.Reason, e.HardwareReason)
	case ExitReasonInternalError:
		return fmt.Sprintf("%s suberror=%d", e.Reason, e.Suberror)
	case ExitReasonSystemEvent:
		return fmt.Sprintf("%s type=%d", e.Reason, e.SystemEvent)
	}
	return e.Reason.String()
}

// decodeExit reads the exit tag from a kvm_run block and then only the
// union member it selects. lease and its current value guard any data view
// handed out. An unknown tag means the kernel speaks a different ABI and
// panics.
func decodeExit(run []byte, lease *atomic.Uint64) (Exit, error) {
	rd := runData(run)
	reason := ExitReason(rd.ExitReason)
	exit := Exit{Reason: reason}
	union := unsafe.Pointer(&rd.Anon0[0])

	switch reason {
	case ExitReasonIO:
		io := (*kvmExitIoData)(union)
		switch io.Direction {
		case kvmExitIoIn:
			exit.Kind = ExitIOIn
		case kvmExitIoOut:
			exit.Kind = ExitIOOut
		default:
			return Exit{}, &OSError{Op: "decode io exit", Err: unix.EINVAL}
		}
		exit.Port = io.Port
		exit.Size = int(io.Size)
		exit.Count = int(io.Count)

		start := io.DataOffset
		end := start + uint64(io.Size)*uint64(io.Count)
		if end < start || end > uint64(len(run)) {
			panic(fmt.Sprintf("kvm: io data [%d:%d] outside %d byte run block", start, end, len(run)))
		}
		exit.data = run[start:end:end]
	case ExitReasonMMIO:
		mmio := (*kvmExitMMIOData)(union)
		if mmio.IsWrite != 0 {
			exit.Kind = ExitMMIOWrite
		} else {
			exit.Kind = ExitMMIORead
		}
		exit.Addr = mmio.PhysAddr

		n := int(min(mmio.Len, uint32(len(mmio.Data))))
		start := kvmRunUnionOffset + kvmMMIODataOffset
		exit.data = run[start : start+n : start+n]
	case ExitReasonUnknown:
		exit.HardwareReason = (*kvmExitUnknownData)(union).HardwareExitReason
	case ExitReasonFailEntry:
		exit.HardwareReason = (*kvmExitFailEntryData)(union).HardwareEntryFailureReason
	case ExitReasonInternalError:
		exit.Suberror = (*kvmExitInternalErrorData)(union).Suberror
	case ExitReasonSystemEvent:
		exit.SystemEvent = (*kvmExitSystemEventData)(union).Type
	default:
		if !reason.Known() {
			panic(fmt.Sprintf("kvm: unknown exit reason %d", uint32(reason)))
		}
	}

	if exit.data != nil && lease != nil {
		exit.lease = lease
		exit.gen = lease.Load()
	}
	return exit, nil
}
