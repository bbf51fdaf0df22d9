//go:build linux

package main

import (
	"fmt"
	"io"
	"strings"

	"golang.org/x/mod/semver"
	"golang.org/x/sys/unix"
)

// kernelFeatures lists host kernel releases that introduced behaviour this
// package relies on.
var kernelFeatures = []struct {
	name    string
	version string
}{
	{"immediate_exit (VCPU.Kick)", "v4.11.0"},
	{"KVM_EXIT_MEMORY_FAULT", "v6.8.0"},
}

// canonicalKernel turns a release string such as "6.8.0-45-generic" into a
// semantic version ("v6.8.0"). It returns "" when no version can be read.
func canonicalKernel(release string) string {
	release = strings.TrimSpace(release)
	if i := strings.IndexAny(release, "-+_ "); i >= 0 {
		release = release[:i]
	}
	parts := strings.Split(release, ".")
	for len(parts) < 3 {
		parts = append(parts, "0")
	}
	v := "v" + strings.Join(parts[:3], ".")
	if !semver.IsValid(v) {
		return ""
	}
	return semver.Canonical(v)
}

func hostKernel() (string, error) {
	var uts unix.Utsname
	if err := unix.Uname(&uts); err != nil {
		return "", err
	}
	return unix.ByteSliceToString(uts.Release[:]), nil
}

func printKernel(w io.Writer) error {
	release, err := hostKernel()
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "kernel:         %s\n", release)

	v := canonicalKernel(release)
	if v == "" {
		return nil
	}
	for _, f := range kernelFeatures {
		if semver.Compare(v, f.version) < 0 {
			fmt.Fprintf(w, "  missing %s (needs %s)\n", f.name, f.version)
		}
	}
	return nil
}
