//go:build linux && amd64

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/schollz/progressbar/v3"
	"github.com/tinyrange/kvm"
	"github.com/tinyrange/kvm/internal/debug"
	"github.com/tinyrange/kvm/internal/timeslice"
	"github.com/tinyrange/kvm/internal/vmm"
	"golang.org/x/term"
)

// escapeByte (Ctrl-]) stops an interactive guest.
const escapeByte = 0x1d

const (
	screenCols = 80
	screenRows = 25
)

func runMachine(ctx context.Context, cfg Config, progress bool) error {
	if cfg.Trace != "" {
		if err := debug.OpenFile(cfg.Trace); err != nil {
			return fmt.Errorf("open trace: %w", err)
		}
		defer func() {
			if err := debug.Close(); err != nil {
				slog.Warn("close trace", "error", err)
			}
		}()
	}

	if cfg.Timeslice != "" {
		f, err := os.Create(cfg.Timeslice)
		if err != nil {
			return fmt.Errorf("create timeslice file: %w", err)
		}
		defer f.Close()
		rec, err := timeslice.Open(f)
		if err != nil {
			return err
		}
		defer func() {
			if err := rec.Close(); err != nil {
				slog.Warn("close timeslice recorder", "error", err)
			}
			if n := rec.Dropped(); n > 0 {
				slog.Warn("timeslice records dropped", "count", n)
			}
		}()
	}

	m, err := vmm.NewMachine(vmm.MachineConfig{
		MemorySize: uint64(cfg.Memory),
		IRQChip:    cfg.IRQChip,
	})
	if err != nil {
		return err
	}
	defer m.Close()

	if err := loadImage(m, cfg, progress); err != nil {
		return err
	}
	if err := m.SetEntry(cfg.Entry); err != nil {
		return err
	}

	stdinFd := int(os.Stdin.Fd())
	interactive := term.IsTerminal(stdinFd)

	var out io.Writer = os.Stdout
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		pw := newPlainWriter(os.Stdout)
		defer pw.Flush()
		out = pw
	}

	var serial *vmm.Serial
	var screen *vmm.Screen
	if cfg.Screen {
		// Guest output is rendered off-screen and printed once it stops.
		screen = vmm.NewScreen(screenCols, screenRows, func(reply []byte) { serial.Feed(reply) })
		defer screen.Close()
		serial = vmm.NewSerial(cfg.SerialPort, screen)
	} else {
		serial = vmm.NewSerial(cfg.SerialPort, out)
	}
	if err := serial.Attach(m.Bus); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if interactive {
		oldState, err := term.MakeRaw(stdinFd)
		if err != nil {
			return fmt.Errorf("enable raw mode: %w", err)
		}
		defer term.Restore(stdinFd, oldState)
	}
	go feedInput(os.Stdin, serial, interactive, cancel)

	runner := m.Runner()
	runner.Strict = cfg.Strict

	exit, err := runner.Run(ctx)
	slog.Debug("guest stopped", "exit", exit.String(), "serial_bytes", serial.Written())
	if screen != nil {
		fmt.Fprintln(out, screen.Snapshot())
	}

	var exitErr *vmm.ExitError
	switch {
	case err == nil:
		if exit.Reason == kvm.ExitReasonShutdown {
			return errors.New("guest triple faulted")
		}
		return nil
	case errors.Is(err, context.Canceled):
		return nil
	case errors.As(err, &exitErr):
		if regs, rerr := m.VCPU.Regs(); rerr == nil {
			slog.Error("guest state", "rip", fmt.Sprintf("%#x", regs.Rip), "rsp", fmt.Sprintf("%#x", regs.Rsp))
		}
		return err
	default:
		return err
	}
}

func loadImage(m *vmm.Machine, cfg Config, progress bool) error {
	f, err := os.Open(cfg.Image)
	if err != nil {
		return err
	}
	defer f.Close()

	var r io.Reader = f
	if progress {
		size := int64(-1)
		if info, err := f.Stat(); err == nil {
			size = info.Size()
		}
		bar := progressbar.DefaultBytes(size, "loading")
		defer bar.Close()
		r = io.TeeReader(f, bar)
	}

	n, err := m.Load(r, cfg.LoadAddr)
	if err != nil {
		return fmt.Errorf("load %s: %w", cfg.Image, err)
	}
	slog.Debug("loaded image", "path", cfg.Image, "addr", fmt.Sprintf("%#x", cfg.LoadAddr), "bytes", n)
	return nil
}

func feedInput(r io.Reader, serial *vmm.Serial, interactive bool, cancel context.CancelFunc) {
	buf := make([]byte, 256)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			data := buf[:n]
			if interactive {
				for i, c := range data {
					if c == escapeByte {
						serial.Feed(data[:i])
						cancel()
						return
					}
				}
			}
			serial.Feed(data)
		}
		if err != nil {
			return
		}
	}
}
