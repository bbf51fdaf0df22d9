//go:build linux && !amd64

package kvm

func (vm *VM) initArch(*System) error { return nil }
