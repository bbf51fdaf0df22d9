//go:build linux

package vmm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"

	"github.com/tinyrange/kvm"
	"github.com/tinyrange/kvm/internal/debug"
	"github.com/tinyrange/kvm/internal/timeslice"
	"golang.org/x/sys/unix"
)

var (
	tsGuest     = timeslice.RegisterKind("kvm_run_guest", timeslice.FlagGuest)
	tsExitIO    = timeslice.RegisterKind("kvm_exit_io", 0)
	tsExitMMIO  = timeslice.RegisterKind("kvm_exit_mmio", 0)
	tsExitOther = timeslice.RegisterKind("kvm_exit_other", 0)
	tsKick      = timeslice.RegisterKind("kvm_exit_kick", 0)
)

var trace = debug.WithSource("vmm")

// ExitError reports an exit the guest cannot be resumed from.
type ExitError struct {
	Exit kvm.Exit
}

func (e *ExitError) Error() string {
	return "vmm: guest stopped: " + e.Exit.String()
}

// Runner drives one vCPU, forwarding port and MMIO exits to a Bus.
type Runner struct {
	VCPU *kvm.VCPU
	Bus  *Bus

	// Strict makes an access no device claims fail the run. Otherwise
	// unclaimed reads return all ones and writes are dropped.
	Strict bool
}

// Run executes the guest until it halts, shuts down, hits a fatal exit or
// ctx is done. It returns the final exit for halt, shutdown and system
// events.
//
// Run locks the calling goroutine to its OS thread for its duration so a
// cancelled ctx can interrupt the guest.
func (r *Runner) Run(ctx context.Context) (kvm.Exit, error) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	stop := context.AfterFunc(ctx, func() {
		if err := r.VCPU.Kick(); err != nil && !errors.Is(err, kvm.ErrClosed) {
			slog.Error("vmm: kick vcpu", "id", r.VCPU.ID(), "error", err)
		}
	})
	defer stop()

	sw := timeslice.NewStopwatch()
	for {
		if err := ctx.Err(); err != nil {
			return kvm.Exit{}, err
		}

		sw.Reset()
		exit, err := r.VCPU.Run()
		sw.Lap(tsGuest)
		if err != nil {
			if errors.Is(err, unix.EINTR) {
				sw.Lap(tsKick)
				continue
			}
			return kvm.Exit{}, fmt.Errorf("vmm: run vcpu %d: %w", r.VCPU.ID(), err)
		}

		done, err := r.handle(exit)
		switch exit.Kind {
		case kvm.ExitIOIn, kvm.ExitIOOut:
			sw.Lap(tsExitIO)
		case kvm.ExitMMIORead, kvm.ExitMMIOWrite:
			sw.Lap(tsExitMMIO)
		default:
			sw.Lap(tsExitOther)
		}
		if err != nil || done {
			return exit, err
		}
	}
}

// handle processes one exit and reports whether the run loop should stop.
func (r *Runner) handle(exit kvm.Exit) (bool, error) {
	switch exit.Kind {
	case kvm.ExitIOIn, kvm.ExitIOOut:
		write := exit.Kind == kvm.ExitIOOut
		err := r.Bus.HandlePort(write, exit.Port, exit.Size, exit.Data())
		return false, r.unhandled(err, write, exit.Data(), exit)
	case kvm.ExitMMIORead, kvm.ExitMMIOWrite:
		write := exit.Kind == kvm.ExitMMIOWrite
		err := r.Bus.HandleMMIO(write, exit.Addr, exit.Data())
		return false, r.unhandled(err, write, exit.Data(), exit)
	}

	switch exit.Reason {
	case kvm.ExitReasonHLT, kvm.ExitReasonShutdown, kvm.ExitReasonSystemEvent:
		return true, nil
	case kvm.ExitReasonIntr, kvm.ExitReasonIRQWindowOpen:
		return false, nil
	case kvm.ExitReasonFailEntry, kvm.ExitReasonInternalError, kvm.ExitReasonUnknown, kvm.ExitReasonException:
		return true, &ExitError{Exit: exit}
	default:
		slog.Debug("vmm: ignoring exit", "exit", exit.String())
		return false, nil
	}
}

func (r *Runner) unhandled(err error, write bool, data []byte, exit kvm.Exit) error {
	if err == nil || !errors.Is(err, ErrUnhandled) || r.Strict {
		return err
	}
	trace.Writef("unhandled %s", exit)
	if !write {
		for i := range data {
			data[i] = 0xff
		}
	}
	return nil
}
