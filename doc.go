// Package kvm is a thin, safe layer over the Linux KVM ioctl interface.
//
// The object chain mirrors the kernel's: Open returns a System for
// /dev/kvm, NewVM creates a VM from it and NewVCPU creates virtual CPUs in
// a VM. Each level keeps its parent's descriptor alive, so handles may be
// closed in any order.
//
// A VCPU is driven by calling Run in a loop from one OS thread. Each call
// returns an Exit; port I/O and MMIO exits expose the access through
// Exit.Data, a view into the vCPU's shared run block that stays valid until
// the next Run.
//
//	sys, _ := kvm.Open()
//	vm, _ := kvm.NewVM(sys)
//	vm.SetUserMemoryRegion(0, 0, uint64(len(mem)), uintptr(unsafe.Pointer(&mem[0])), 0)
//	cpu, _ := kvm.NewVCPU(0, vm)
//	for {
//		exit, err := cpu.Run()
//		...
//	}
//
// The package does not emulate devices or load guests; see internal/vmm
// and cmd/kvmrun for a small example monitor.
package kvm
