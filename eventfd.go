//go:build linux

package kvm

import (
	"encoding/binary"
	"sync/atomic"

	"golang.org/x/sys/unix"
)

// EventFd is a non-blocking eventfd counter, usable with VM.RegisterIRQFD.
type EventFd struct {
	fd     int
	closed atomic.Bool
}

func NewEventFd() (*EventFd, error) {
	fd, err := unix.Eventfd(0, unix.EFD_CLOEXEC|unix.EFD_NONBLOCK)
	if err != nil {
		return nil, osError("eventfd", err)
	}
	return &EventFd{fd: fd}, nil
}

func (e *EventFd) Fd() uintptr { return uintptr(e.fd) }

// Write adds v to the counter, signalling any registered interrupt.
func (e *EventFd) Write(v uint64) error {
	if e.closed.Load() {
		return ErrClosed
	}
	var buf [8]byte
	binary.NativeEndian.PutUint64(buf[:], v)
	if _, err := unix.Write(e.fd, buf[:]); err != nil {
		return osError("eventfd write", err)
	}
	return nil
}

// Read returns and resets the counter. It fails with EAGAIN when the
// counter is zero.
func (e *EventFd) Read() (uint64, error) {
	if e.closed.Load() {
		return 0, ErrClosed
	}
	var buf [8]byte
	if _, err := unix.Read(e.fd, buf[:]); err != nil {
		return 0, osError("eventfd read", err)
	}
	return binary.NativeEndian.Uint64(buf[:]), nil
}

func (e *EventFd) Close() error {
	if !e.closed.CompareAndSwap(false, true) {
		return ErrClosed
	}
	return osError("eventfd close", unix.Close(e.fd))
}
