//go:build !(linux && amd64)

package main

import (
	"context"
	"fmt"
	"runtime"
)

func runMachine(ctx context.Context, cfg Config, progress bool) error {
	return fmt.Errorf("real mode guests are not supported on %s/%s", runtime.GOOS, runtime.GOARCH)
}
