//go:build linux

package kvm

import (
	"sync/atomic"

	"golang.org/x/sys/unix"
)

// fdRef is a descriptor shared between a handle and the handles created
// from it. A child holds a reference on its parent, so the parent
// descriptor stays open until its own Close has been called and every child
// has been closed.
type fdRef struct {
	name   string
	fd     int
	refs   atomic.Int32
	parent *fdRef
}

func newFdRef(name string, fd int, parent *fdRef) *fdRef {
	r := &fdRef{name: name, fd: fd, parent: parent}
	r.refs.Store(1)
	if parent != nil {
		parent.acquire()
	}
	return r
}

func (r *fdRef) acquire() {
	r.refs.Add(1)
}

func (r *fdRef) release() error {
	n := r.refs.Add(-1)
	if n > 0 {
		return nil
	}
	if n < 0 {
		panic("kvm: " + r.name + " descriptor released more than once")
	}

	trace.Writef("close %s fd=%d", r.name, r.fd)
	err := unix.Close(r.fd)

	var parentErr error
	if r.parent != nil {
		parentErr = r.parent.release()
	}

	if err != nil {
		return osError("close "+r.name, err)
	}
	return parentErr
}

// handle is the caller's reference to an fdRef.
type handle struct {
	ref    *fdRef
	closed atomic.Bool
}

func (h *handle) fd() (int, error) {
	if h.closed.Load() {
		return -1, ErrClosed
	}
	return h.ref.fd, nil
}

func (h *handle) close() error {
	if !h.closed.CompareAndSwap(false, true) {
		return ErrClosed
	}
	return h.ref.release()
}
