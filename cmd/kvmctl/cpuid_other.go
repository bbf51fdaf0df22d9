//go:build linux && !amd64

package main

import (
	"errors"
	"io"

	"github.com/tinyrange/kvm"
)

func printCPUID(w io.Writer, sys *kvm.System) error {
	return errors.New("CPUID is only available on x86")
}
