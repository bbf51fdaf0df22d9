//go:build linux

package kvm

const (
	kvmDevicePath = "/dev/kvm"
	kvmApiVersion = 12

	kvmGetApiVersion       = 0xae00
	kvmCreateVm            = 0xae01
	kvmCheckExtension      = 0xae03
	kvmGetVcpuMmapSize     = 0xae04
	kvmGetSupportedCpuid   = 0xc008ae05
	kvmCreateVcpu          = 0xae41
	kvmSetUserMemoryRegion = 0x4020ae46
	kvmSetTssAddr          = 0xae47
	kvmCreateIrqchip       = 0xae60
	kvmIrqLine             = 0x4008ae61
	kvmIrqfd               = 0x4020ae76
	kvmCreatePit2          = 0x4040ae77
	kvmRun                 = 0xae80
	kvmGetRegs             = 0x8090ae81
	kvmSetRegs             = 0x4090ae82
	kvmGetSregs            = 0x8138ae83
	kvmSetSregs            = 0x4138ae84
	kvmGetMsrs             = 0xc008ae88
	kvmSetMsrs             = 0x4008ae89
	kvmGetFpu              = 0x81a0ae8c
	kvmSetFpu              = 0x41a0ae8d
	kvmGetLapic            = 0x8400ae8e
	kvmSetLapic            = 0x4400ae8f
	kvmSetCpuid2           = 0x4008ae90
)

// requestNames is used for error messages and the trace log.
var requestNames = map[uint64]string{
	kvmGetApiVersion:       "KVM_GET_API_VERSION",
	kvmCreateVm:            "KVM_CREATE_VM",
	kvmCheckExtension:      "KVM_CHECK_EXTENSION",
	kvmGetVcpuMmapSize:     "KVM_GET_VCPU_MMAP_SIZE",
	kvmGetSupportedCpuid:   "KVM_GET_SUPPORTED_CPUID",
	kvmCreateVcpu:          "KVM_CREATE_VCPU",
	kvmSetUserMemoryRegion: "KVM_SET_USER_MEMORY_REGION",
	kvmSetTssAddr:          "KVM_SET_TSS_ADDR",
	kvmCreateIrqchip:       "KVM_CREATE_IRQCHIP",
	kvmIrqLine:             "KVM_IRQ_LINE",
	kvmIrqfd:               "KVM_IRQFD",
	kvmCreatePit2:          "KVM_CREATE_PIT2",
	kvmRun:                 "KVM_RUN",
	kvmGetRegs:             "KVM_GET_REGS",
	kvmSetRegs:             "KVM_SET_REGS",
	kvmGetSregs:            "KVM_GET_SREGS",
	kvmSetSregs:            "KVM_SET_SREGS",
	kvmGetMsrs:             "KVM_GET_MSRS",
	kvmSetMsrs:             "KVM_SET_MSRS",
	kvmGetFpu:              "KVM_GET_FPU",
	kvmSetFpu:              "KVM_SET_FPU",
	kvmGetLapic:            "KVM_GET_LAPIC",
	kvmSetLapic:            "KVM_SET_LAPIC",
	kvmSetCpuid2:           "KVM_SET_CPUID2",
}

// Memory region flags accepted by VM.SetUserMemoryRegion.
const (
	MemLogDirtyPages uint32 = 1 << 0
	MemReadonly      uint32 = 1 << 1
)

const (
	kvmIrqfdFlagDeassign = 1 << 0
)

// defaultNumVCPUs is the recommended vCPU count when the kernel does not
// report one (Documentation/virt/kvm/api.rst, KVM_CAP_NR_VCPUS).
const defaultNumVCPUs = 4

type kvmUserspaceMemoryRegion struct {
	Slot          uint32
	Flags         uint32
	GuestPhysAddr uint64
	MemorySize    uint64
	UserspaceAddr uint64
}

type kvmIrqfdArgs struct {
	Fd         uint32
	Gsi        uint32
	Flags      uint32
	Resamplefd uint32
	Pad        [16]uint8
}

type kvmIRQLevel struct {
	IRQ   uint32
	Level uint32
}
