//go:build linux && amd64

package kvm

// Regs mirrors struct kvm_regs.
type Regs struct {
	Rax    uint64
	Rbx    uint64
	Rcx    uint64
	Rdx    uint64
	Rsi    uint64
	Rdi    uint64
	Rsp    uint64
	Rbp    uint64
	R8     uint64
	R9     uint64
	R10    uint64
	R11    uint64
	R12    uint64
	R13    uint64
	R14    uint64
	R15    uint64
	Rip    uint64
	Rflags uint64
}

// Segment mirrors struct kvm_segment.
type Segment struct {
	Base     uint64
	Limit    uint32
	Selector uint16
	Type     uint8
	Present  uint8
	DPL      uint8
	DB       uint8
	S        uint8
	L        uint8
	G        uint8
	AVL      uint8
	Unusable uint8
	_        uint8
}

// DTable mirrors struct kvm_dtable.
type DTable struct {
	Base  uint64
	Limit uint16
	_     [3]uint16
}

const nrInterrupts = 256

// Sregs mirrors struct kvm_sregs.
type Sregs struct {
	CS, DS, ES, FS, GS, SS Segment
	TR, LDT                Segment
	GDT, IDT               DTable
	CR0                    uint64
	CR2                    uint64
	CR3                    uint64
	CR4                    uint64
	CR8                    uint64
	EFER                   uint64
	APICBase               uint64
	InterruptBitmap        [(nrInterrupts + 63) / 64]uint64
}

// FPU mirrors struct kvm_fpu.
type FPU struct {
	FPR        [8][16]uint8
	FCW        uint16
	FSW        uint16
	FTWX       uint8
	_          uint8
	LastOpcode uint16
	LastIP     uint64
	LastDP     uint64
	XMM        [16][16]uint8
	MXCSR      uint32
	_          uint32
}

// LAPICState mirrors struct kvm_lapic_state: the 1KiB local APIC register
// page.
type LAPICState struct {
	Regs [1024]byte
}

// MSREntry mirrors struct kvm_msr_entry.
type MSREntry struct {
	Index    uint32
	Reserved uint32
	Data     uint64
}

func (v *VCPU) Regs() (Regs, error) {
	fd, err := v.h.fd()
	if err != nil {
		return Regs{}, err
	}
	return getFixed[Regs](fd, kvmGetRegs)
}

func (v *VCPU) SetRegs(regs Regs) error {
	fd, err := v.h.fd()
	if err != nil {
		return err
	}
	return setFixed(fd, kvmSetRegs, &regs)
}

func (v *VCPU) Sregs() (Sregs, error) {
	fd, err := v.h.fd()
	if err != nil {
		return Sregs{}, err
	}
	return getFixed[Sregs](fd, kvmGetSregs)
}

func (v *VCPU) SetSregs(sregs Sregs) error {
	fd, err := v.h.fd()
	if err != nil {
		return err
	}
	return setFixed(fd, kvmSetSregs, &sregs)
}

func (v *VCPU) FPU() (FPU, error) {
	fd, err := v.h.fd()
	if err != nil {
		return FPU{}, err
	}
	return getFixed[FPU](fd, kvmGetFpu)
}

func (v *VCPU) SetFPU(fpu FPU) error {
	fd, err := v.h.fd()
	if err != nil {
		return err
	}
	return setFixed(fd, kvmSetFpu, &fpu)
}

// LAPIC reads the local APIC page. The VM needs an in-kernel irqchip.
func (v *VCPU) LAPIC() (LAPICState, error) {
	fd, err := v.h.fd()
	if err != nil {
		return LAPICState{}, err
	}
	return getFixed[LAPICState](fd, kvmGetLapic)
}

func (v *VCPU) SetLAPIC(state LAPICState) error {
	fd, err := v.h.fd()
	if err != nil {
		return err
	}
	return setFixed(fd, kvmSetLapic, &state)
}

// MSRs reads the listed model specific registers. Only the entries the
// kernel actually read are returned, in request order, so a short result
// means the register at that position is not supported.
func (v *VCPU) MSRs(indices []uint32) ([]MSREntry, error) {
	fd, err := v.h.fd()
	if err != nil {
		return nil, err
	}

	msrs := newFlexArray[MSREntry](len(indices))
	entries := msrs.entries()
	for i := range entries {
		entries[i].Index = indices[i]
	}

	n, err := ioctlPtr(fd, kvmGetMsrs, msrs.pointer())
	if err != nil {
		return nil, err
	}
	msrs.setLen(int(n))

	return append([]MSREntry(nil), msrs.entries()...), nil
}

// SetMSRs writes the given model specific registers. The kernel stops at
// the first register it rejects and reports how many it wrote; that count
// is not surfaced, only whether the request itself failed.
func (v *VCPU) SetMSRs(entries []MSREntry) error {
	fd, err := v.h.fd()
	if err != nil {
		return err
	}

	msrs := newFlexArray[MSREntry](len(entries))
	copy(msrs.entries(), entries)

	_, err = ioctlPtr(fd, kvmSetMsrs, msrs.pointer())
	return err
}

// SetCPUID sets the CPUID leaves the guest sees. Usually called with
// VM.CPUID, possibly edited, before the first Run.
func (v *VCPU) SetCPUID(cpuid *CPUID) error {
	fd, err := v.h.fd()
	if err != nil {
		return err
	}
	_, err = ioctlPtr(fd, kvmSetCpuid2, cpuid.pointer())
	return err
}
