//go:build linux

// Command kvmctl reports what the host's KVM device supports.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/tinyrange/kvm"
)

func printSummary(w io.Writer, sys *kvm.System) error {
	version, err := sys.APIVersion()
	if err != nil {
		return err
	}
	mmapSize, err := sys.VCPUMmapSize()
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "api version:    %d\n", version)
	fmt.Fprintf(w, "vcpu mmap size: %d\n", mmapSize)
	fmt.Fprintf(w, "vcpus:          %d\n", sys.NumVCPUs())
	return printKernel(w)
}

func printCaps(w io.Writer, sys *kvm.System, all bool) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, c := range kvm.AllCaps() {
		v := sys.ExtensionValue(c)
		if v <= 0 && !all {
			continue
		}
		fmt.Fprintf(tw, "%s\t%d\n", c, v)
	}
	return tw.Flush()
}

func run() error {
	caps := flag.Bool("caps", false, "list supported capabilities and their values")
	all := flag.Bool("all", false, "with -caps, include unsupported capabilities")
	cpuid := flag.Bool("cpuid", false, "dump the CPUID leaves KVM can expose")
	flag.Parse()

	sys, err := kvm.Open()
	if err != nil {
		return err
	}
	defer sys.Close()

	switch {
	case *caps:
		return printCaps(os.Stdout, sys, *all)
	case *cpuid:
		return printCPUID(os.Stdout, sys)
	default:
		return printSummary(os.Stdout, sys)
	}
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "kvmctl: %v\n", err)
		os.Exit(1)
	}
}
