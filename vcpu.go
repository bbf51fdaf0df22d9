//go:build linux

package kvm

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"golang.org/x/sys/unix"
)

// VCPU is one virtual CPU and its shared kvm_run block.
//
// Run must only be called from a single goroutine, which should be locked
// to its OS thread with runtime.LockOSThread so Kick can reach it. Kick and
// Close may be called from any goroutine. Close kicks an in-progress Run and
// waits for it to return before the run block is unmapped.
type VCPU struct {
	h  handle
	id int

	// running is held for reading by Run from the ioctl through decoding
	// the exit, and for writing by Close while it tears the run block down.
	running sync.RWMutex
	closing atomic.Bool

	// mu guards run and orders writes to immediate_exit.
	mu  sync.Mutex
	run []byte

	lease atomic.Uint64
	tid   atomic.Int32
}

// NewVCPU creates vCPU id in vm and maps its run block.
func NewVCPU(id int, vm *VM) (*VCPU, error) {
	vfd, err := vm.h.fd()
	if err != nil {
		return nil, err
	}

	fd, err := ioctl(vfd, kvmCreateVcpu, uintptr(id))
	if err != nil {
		return nil, err
	}
	ref := newFdRef(fmt.Sprintf("vcpu %d", id), int(fd), vm.h.ref)

	run, err := unix.Mmap(int(fd), 0, vm.runSize, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		if cerr := ref.release(); cerr != nil {
			slog.Error("kvm: close vcpu after failed mapping", "id", id, "error", cerr)
		}
		return nil, &MappingError{Size: vm.runSize, Err: err}
	}

	return &VCPU{h: handle{ref: ref}, id: id, run: run}, nil
}

// ID returns the vCPU index passed to NewVCPU.
func (v *VCPU) ID() int { return v.id }

// Fd returns the raw vCPU descriptor, or -1 after Close.
func (v *VCPU) Fd() int {
	fd, _ := v.h.fd()
	return fd
}

// Run enters the guest and blocks until it exits back to user space. The
// request is issued exactly once: a signal or Kick surfaces as an *OSError
// wrapping EINTR.
//
// Any Exit returned by a previous Run stops being usable.
func (v *VCPU) Run() (Exit, error) {
	v.running.RLock()
	defer v.running.RUnlock()

	if v.closing.Load() {
		return Exit{}, ErrClosed
	}
	fd, err := v.h.fd()
	if err != nil {
		return Exit{}, err
	}
	v.mu.Lock()
	run := v.run
	v.mu.Unlock()
	if run == nil {
		return Exit{}, ErrClosed
	}

	v.lease.Add(1)
	v.tid.Store(int32(unix.Gettid()))

	if _, err := ioctl(fd, kvmRun, 0); err != nil {
		if errors.Is(err, unix.EINTR) {
			v.clearImmediateExit()
		}
		return Exit{}, err
	}

	return decodeExit(run, &v.lease)
}

// Kick forces a pending or in-progress Run to return EINTR. If the vCPU is
// not in the guest the next Run returns immediately instead.
func (v *VCPU) Kick() error {
	v.mu.Lock()
	if v.run == nil {
		v.mu.Unlock()
		return ErrClosed
	}
	runData(v.run).ImmediateExit = 1
	v.mu.Unlock()

	tid := int(v.tid.Load())
	if tid == 0 {
		return nil
	}
	if err := unix.Tgkill(unix.Getpid(), tid, unix.SIGUSR1); err != nil {
		return osError("kick vcpu", err)
	}
	return nil
}

func (v *VCPU) clearImmediateExit() {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.run != nil {
		runData(v.run).ImmediateExit = 0
	}
}

// Close unmaps the run block and drops the caller's reference to the vCPU
// descriptor. A Run in progress on another goroutine is kicked and Close
// waits for it to return. Exit data obtained earlier becomes unusable.
func (v *VCPU) Close() error {
	if !v.closing.CompareAndSwap(false, true) {
		return ErrClosed
	}

	// Runs starting from here see closing and return ErrClosed; one already
	// past that check sees immediate_exit or the signal.
	if err := v.Kick(); err != nil {
		slog.Debug("kvm: kick vcpu before close", "id", v.id, "error", err)
	}

	v.running.Lock()
	v.mu.Lock()
	run := v.run
	v.run = nil
	v.mu.Unlock()
	v.running.Unlock()

	v.lease.Add(1)

	var unmapErr error
	if err := unix.Munmap(run); err != nil {
		unmapErr = osError("munmap run block", err)
	}
	if err := v.h.close(); err != nil {
		return err
	}
	return unmapErr
}
