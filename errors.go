//go:build linux

package kvm

import (
	"errors"
	"fmt"

	"golang.org/x/sys/unix"
)

// ErrClosed is returned by operations on a handle after its Close.
var ErrClosed = errors.New("kvm: handle already closed")

// OSError is a failed request against the hypervisor device. It carries the
// raw errno reported by the kernel.
type OSError struct {
	Op  string
	Err unix.Errno
}

func (e *OSError) Error() string {
	return fmt.Sprintf("kvm: %s: %v", e.Op, e.Err)
}

func (e *OSError) Unwrap() error { return e.Err }

// MappingError is returned when the vCPU control block cannot be mapped.
// It matches unix.ENOSPC with errors.Is regardless of the underlying cause.
type MappingError struct {
	Size int
	Err  error
}

func (e *MappingError) Error() string {
	return fmt.Sprintf("kvm: map %d byte run block: %v", e.Size, e.Err)
}

func (e *MappingError) Unwrap() error { return e.Err }

func (e *MappingError) Is(target error) bool {
	return target == unix.ENOSPC
}

func osError(op string, err error) error {
	if err == nil {
		return nil
	}
	var errno unix.Errno
	if errors.As(err, &errno) {
		return &OSError{Op: op, Err: errno}
	}
	return fmt.Errorf("kvm: %s: %w", op, err)
}
