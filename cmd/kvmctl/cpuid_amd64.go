//go:build linux && amd64

package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/tinyrange/kvm"
)

func printCPUID(w io.Writer, sys *kvm.System) error {
	cpuid, err := sys.SupportedCPUID(256)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "FUNCTION\tINDEX\tEAX\tEBX\tECX\tEDX")
	for _, e := range cpuid.Entries() {
		fmt.Fprintf(tw, "%#x\t%d\t%08x\t%08x\t%08x\t%08x\n", e.Function, e.Index, e.Eax, e.Ebx, e.Ecx, e.Edx)
	}
	return tw.Flush()
}
