//go:build linux

package kvm

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"golang.org/x/sys/unix"
)

func TestOSError(t *testing.T) {
	err := osError("KVM_CREATE_VM", unix.ENOMEM)
	var osErr *OSError
	if !errors.As(err, &osErr) {
		t.Fatalf("%T is not an *OSError", err)
	}
	if osErr.Err != unix.ENOMEM || !errors.Is(err, unix.ENOMEM) {
		t.Fatalf("errno = %v", osErr.Err)
	}
	if !strings.Contains(err.Error(), "KVM_CREATE_VM") {
		t.Fatalf("Error = %q", err.Error())
	}

	if osError("noop", nil) != nil {
		t.Fatal("osError(nil) is not nil")
	}

	wrapped := osError("read", fmt.Errorf("short: %w", unix.EIO))
	if !errors.As(wrapped, &osErr) || osErr.Err != unix.EIO {
		t.Fatalf("wrapped errno lost: %v", wrapped)
	}
}

func TestMappingErrorIsENOSPC(t *testing.T) {
	err := error(&MappingError{Size: 12288, Err: unix.ENOMEM})
	if !errors.Is(err, unix.ENOSPC) {
		t.Fatal("MappingError does not match ENOSPC")
	}
	if !errors.Is(err, unix.ENOMEM) {
		t.Fatal("MappingError hides its cause")
	}
}

func TestCapString(t *testing.T) {
	if got := CapUserMemory.String(); got != "KVM_CAP_USER_MEMORY" {
		t.Fatalf("String = %q", got)
	}
	if got := Cap(9999).String(); got != "KVM_CAP_???(9999)" {
		t.Fatalf("String = %q", got)
	}

	caps := AllCaps()
	if len(caps) != len(capNames) {
		t.Fatalf("AllCaps returned %d of %d", len(caps), len(capNames))
	}
	for i := 1; i < len(caps); i++ {
		if caps[i] <= caps[i-1] {
			t.Fatalf("AllCaps not ascending at %d: %v", i, caps[i])
		}
	}
}
