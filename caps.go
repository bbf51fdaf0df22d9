//go:build linux

package kvm

import "fmt"

// Cap is a KVM_CAP_* extension number understood by KVM_CHECK_EXTENSION.
type Cap int

const (
	CapIRQChip                  Cap = 0
	CapHLT                      Cap = 1
	CapMMUShadowCacheControl    Cap = 2
	CapUserMemory               Cap = 3
	CapSetTSSAddr               Cap = 4
	CapVAPIC                    Cap = 6
	CapExtCPUID                 Cap = 7
	CapClocksource              Cap = 8
	CapNrVCPUs                  Cap = 9
	CapNrMemSlots               Cap = 10
	CapPIT                      Cap = 11
	CapNopIODelay               Cap = 12
	CapPVMMU                    Cap = 13
	CapMPState                  Cap = 14
	CapCoalescedMMIO            Cap = 15
	CapSyncMMU                  Cap = 16
	CapIOMMU                    Cap = 18
	CapDestroyMemoryRegionWorks Cap = 21
	CapUserNMI                  Cap = 22
	CapSetGuestDebug            Cap = 23
	CapReinjectControl          Cap = 24
	CapIRQRouting               Cap = 25
	CapIRQInjectStatus          Cap = 26
	CapAssignDevIRQ             Cap = 29
	CapJoinMemoryRegionsWorks   Cap = 30
	CapMCE                      Cap = 31
	CapIRQFD                    Cap = 32
	CapPIT2                     Cap = 33
	CapSetBootCPUID             Cap = 34
	CapPITState2                Cap = 35
	CapIOEventFD                Cap = 36
	CapSetIdentityMapAddr       Cap = 37
	CapXenHVM                   Cap = 38
	CapAdjustClock              Cap = 39
	CapInternalErrorData        Cap = 40
	CapVCPUEvents               Cap = 41
	CapS390PSW                  Cap = 42
	CapPPCSegState              Cap = 43
	CapHyperV                   Cap = 44
	CapHyperVVAPIC              Cap = 45
	CapHyperVSpin               Cap = 46
	CapPCISegment               Cap = 47
	CapPPCPairedSingles         Cap = 48
	CapIntrShadow               Cap = 49
	CapDebugRegs                Cap = 50
	CapX86RobustSinglestep      Cap = 51
	CapPPCOSI                   Cap = 52
	CapPPCUnsetIRQ              Cap = 53
	CapEnableCap                Cap = 54
	CapXSave                    Cap = 55
	CapXCRS                     Cap = 56
	CapPPCGetPVInfo             Cap = 57
	CapPPCIRQLevel              Cap = 58
	CapAsyncPF                  Cap = 59
	CapTSCControl               Cap = 60
	CapGetTSCKHz                Cap = 61
	CapPPCBookeSregs            Cap = 62
	CapSPAPRTCE                 Cap = 63
	CapPPCSMT                   Cap = 64
	CapPPCRMA                   Cap = 65
	CapMaxVCPUs                 Cap = 66
	CapPPCHIOR                  Cap = 67
	CapPPCPAPR                  Cap = 68
	CapSWTLB                    Cap = 69
	CapOneReg                   Cap = 70
	CapS390GMap                 Cap = 71
	CapTSCDeadlineTimer         Cap = 72
	CapS390UControl             Cap = 73
	CapSyncRegs                 Cap = 74
	CapPCI23                    Cap = 75
	CapKVMClockCtrl             Cap = 76
	CapSignalMSI                Cap = 77
	CapPPCGetSMMUInfo           Cap = 78
	CapS390COW                  Cap = 79
	CapPPCAllocHTAB             Cap = 80
	CapReadonlyMem              Cap = 81
	CapIRQFDResample            Cap = 82
	CapPPCBookeWatchdog         Cap = 83
	CapPPCHTABFD                Cap = 84
	CapS390CSSSupport           Cap = 85
	CapPPCEPR                   Cap = 86
	CapARMPSCI                  Cap = 87
	CapARMSetDeviceAddr         Cap = 88
	CapDeviceCtrl               Cap = 89
	CapIRQMPIC                  Cap = 90
	CapPPCRTAS                  Cap = 91
	CapIRQXICS                  Cap = 92
	CapARMEL132Bit              Cap = 93
	CapSPAPRMultiTCE            Cap = 94
	CapExtEmulCPUID             Cap = 95
	CapHyperVTime               Cap = 96
	CapIOAPICPolarityIgnored    Cap = 97
	CapEnableCapVM              Cap = 98
	CapS390IRQChip              Cap = 99
	CapIOEventFDNoLength        Cap = 100
	CapVMAttributes             Cap = 101
	CapARMPSCI02                Cap = 102
	CapPPCFixupHcall            Cap = 103
	CapPPCEnableHcall           Cap = 104
	CapCheckExtensionVM         Cap = 105
	CapS390UserSigp             Cap = 106
	CapSplitIRQChip             Cap = 121
	CapMaxVCPUID                Cap = 128
	CapX2APICAPI                Cap = 129
	CapImmediateExit            Cap = 136
	CapARMVMIPASize             Cap = 165
)

var capNames = map[Cap]string{
	CapIRQChip:                  "IRQCHIP",
	CapHLT:                      "HLT",
	CapMMUShadowCacheControl:    "MMU_SHADOW_CACHE_CONTROL",
	CapUserMemory:               "USER_MEMORY",
	CapSetTSSAddr:               "SET_TSS_ADDR",
	CapVAPIC:                    "VAPIC",
	CapExtCPUID:                 "EXT_CPUID",
	CapClocksource:              "CLOCKSOURCE",
	CapNrVCPUs:                  "NR_VCPUS",
	CapNrMemSlots:               "NR_MEMSLOTS",
	CapPIT:                      "PIT",
	CapNopIODelay:               "NOP_IO_DELAY",
	CapPVMMU:                    "PV_MMU",
	CapMPState:                  "MP_STATE",
	CapCoalescedMMIO:            "COALESCED_MMIO",
	CapSyncMMU:                  "SYNC_MMU",
	CapIOMMU:                    "IOMMU",
	CapDestroyMemoryRegionWorks: "DESTROY_MEMORY_REGION_WORKS",
	CapUserNMI:                  "USER_NMI",
	CapSetGuestDebug:            "SET_GUEST_DEBUG",
	CapReinjectControl:          "REINJECT_CONTROL",
	CapIRQRouting:               "IRQ_ROUTING",
	CapIRQInjectStatus:          "IRQ_INJECT_STATUS",
	CapAssignDevIRQ:             "ASSIGN_DEV_IRQ",
	CapJoinMemoryRegionsWorks:   "JOIN_MEMORY_REGIONS_WORKS",
	CapMCE:                      "MCE",
	CapIRQFD:                    "IRQFD",
	CapPIT2:                     "PIT2",
	CapSetBootCPUID:             "SET_BOOT_CPU_ID",
	CapPITState2:                "PIT_STATE2",
	CapIOEventFD:                "IOEVENTFD",
	CapSetIdentityMapAddr:       "SET_IDENTITY_MAP_ADDR",
	CapXenHVM:                   "XEN_HVM",
	CapAdjustClock:              "ADJUST_CLOCK",
	CapInternalErrorData:        "INTERNAL_ERROR_DATA",
	CapVCPUEvents:               "VCPU_EVENTS",
	CapS390PSW:                  "S390_PSW",
	CapPPCSegState:              "PPC_SEGSTATE",
	CapHyperV:                   "HYPERV",
	CapHyperVVAPIC:              "HYPERV_VAPIC",
	CapHyperVSpin:               "HYPERV_SPIN",
	CapPCISegment:               "PCI_SEGMENT",
	CapPPCPairedSingles:         "PPC_PAIRED_SINGLES",
	CapIntrShadow:               "INTR_SHADOW",
	CapDebugRegs:                "DEBUGREGS",
	CapX86RobustSinglestep:      "X86_ROBUST_SINGLESTEP",
	CapPPCOSI:                   "PPC_OSI",
	CapPPCUnsetIRQ:              "PPC_UNSET_IRQ",
	CapEnableCap:                "ENABLE_CAP",
	CapXSave:                    "XSAVE",
	CapXCRS:                     "XCRS",
	CapPPCGetPVInfo:             "PPC_GET_PVINFO",
	CapPPCIRQLevel:              "PPC_IRQ_LEVEL",
	CapAsyncPF:                  "ASYNC_PF",
	CapTSCControl:               "TSC_CONTROL",
	CapGetTSCKHz:                "GET_TSC_KHZ",
	CapPPCBookeSregs:            "PPC_BOOKE_SREGS",
	CapSPAPRTCE:                 "SPAPR_TCE",
	CapPPCSMT:                   "PPC_SMT",
	CapPPCRMA:                   "PPC_RMA",
	CapMaxVCPUs:                 "MAX_VCPUS",
	CapPPCHIOR:                  "PPC_HIOR",
	CapPPCPAPR:                  "PPC_PAPR",
	CapSWTLB:                    "SW_TLB",
	CapOneReg:                   "ONE_REG",
	CapS390GMap:                 "S390_GMAP",
	CapTSCDeadlineTimer:         "TSC_DEADLINE_TIMER",
	CapS390UControl:             "S390_UCONTROL",
	CapSyncRegs:                 "SYNC_REGS",
	CapPCI23:                    "PCI_2_3",
	CapKVMClockCtrl:             "KVMCLOCK_CTRL",
	CapSignalMSI:                "SIGNAL_MSI",
	CapPPCGetSMMUInfo:           "PPC_GET_SMMU_INFO",
	CapS390COW:                  "S390_COW",
	CapPPCAllocHTAB:             "PPC_ALLOC_HTAB",
	CapReadonlyMem:              "READONLY_MEM",
	CapIRQFDResample:            "IRQFD_RESAMPLE",
	CapPPCBookeWatchdog:         "PPC_BOOKE_WATCHDOG",
	CapPPCHTABFD:                "PPC_HTAB_FD",
	CapS390CSSSupport:           "S390_CSS_SUPPORT",
	CapPPCEPR:                   "PPC_EPR",
	CapARMPSCI:                  "ARM_PSCI",
	CapARMSetDeviceAddr:         "ARM_SET_DEVICE_ADDR",
	CapDeviceCtrl:               "DEVICE_CTRL",
	CapIRQMPIC:                  "IRQ_MPIC",
	CapPPCRTAS:                  "PPC_RTAS",
	CapIRQXICS:                  "IRQ_XICS",
	CapARMEL132Bit:              "ARM_EL1_32BIT",
	CapSPAPRMultiTCE:            "SPAPR_MULTITCE",
	CapExtEmulCPUID:             "EXT_EMUL_CPUID",
	CapHyperVTime:               "HYPERV_TIME",
	CapIOAPICPolarityIgnored:    "IOAPIC_POLARITY_IGNORED",
	CapEnableCapVM:              "ENABLE_CAP_VM",
	CapS390IRQChip:              "S390_IRQCHIP",
	CapIOEventFDNoLength:        "IOEVENTFD_NO_LENGTH",
	CapVMAttributes:             "VM_ATTRIBUTES",
	CapARMPSCI02:                "ARM_PSCI_0_2",
	CapPPCFixupHcall:            "PPC_FIXUP_HCALL",
	CapPPCEnableHcall:           "PPC_ENABLE_HCALL",
	CapCheckExtensionVM:         "CHECK_EXTENSION_VM",
	CapS390UserSigp:             "S390_USER_SIGP",
	CapSplitIRQChip:             "SPLIT_IRQCHIP",
	CapMaxVCPUID:                "MAX_VCPU_ID",
	CapX2APICAPI:                "X2APIC_API",
	CapImmediateExit:            "IMMEDIATE_EXIT",
	CapARMVMIPASize:             "ARM_VM_IPA_SIZE",
}

func (c Cap) String() string {
	if name, ok := capNames[c]; ok {
		return "KVM_CAP_" + name
	}
	return fmt.Sprintf("KVM_CAP_???(%d)", int(c))
}

// AllCaps returns every known capability in ascending numeric order.
func AllCaps() []Cap {
	caps := make([]Cap, 0, len(capNames))
	for c := Cap(0); c <= CapARMVMIPASize; c++ {
		if _, ok := capNames[c]; ok {
			caps = append(caps, c)
		}
	}
	return caps
}
