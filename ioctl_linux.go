//go:build linux

package kvm

import (
	"fmt"
	"unsafe"

	"github.com/tinyrange/kvm/internal/debug"
	"golang.org/x/sys/unix"
)

var trace = debug.WithSource("kvm ioctl")

func requestName(request uint64) string {
	if name, ok := requestNames[request]; ok {
		return name
	}
	return fmt.Sprintf("ioctl(%#x)", request)
}

func ioctlResult(fd int, request uint64, v uintptr, errno unix.Errno) (uintptr, error) {
	if debug.Enabled() {
		trace.Ioctl(debug.IoctlRecord{
			Fd:      int32(fd),
			Errno:   errno,
			Request: request,
			Result:  uint64(v),
			Name:    requestNames[request],
		})
	}
	if errno != 0 {
		return 0, &OSError{Op: requestName(request), Err: errno}
	}
	return v, nil
}

// ioctl issues a single request with an integer argument. Requests are
// never retried, including on EINTR.
func ioctl(fd int, request uint64, arg uintptr) (uintptr, error) {
	v, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), uintptr(request), arg)
	return ioctlResult(fd, request, v, errno)
}

// ioctlPtr issues a single request whose argument points at a parameter
// structure. The pointer is only valid for the duration of the call.
func ioctlPtr(fd int, request uint64, arg unsafe.Pointer) (uintptr, error) {
	v, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), uintptr(request), uintptr(arg))
	return ioctlResult(fd, request, v, errno)
}

// getFixed and setFixed are the one pattern behind every fixed-layout
// register transfer.
func getFixed[T any](fd int, request uint64) (T, error) {
	var v T
	if _, err := ioctlPtr(fd, request, unsafe.Pointer(&v)); err != nil {
		var zero T
		return zero, err
	}
	return v, nil
}

func setFixed[T any](fd int, request uint64, v *T) error {
	_, err := ioctlPtr(fd, request, unsafe.Pointer(v))
	return err
}
