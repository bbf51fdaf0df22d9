// Command kvmrun boots a flat real-mode image in a single-vCPU KVM guest and
// connects a polled UART to the terminal.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"
)

func run() error {
	configPath := flag.String("config", "", "YAML config file")
	memory := flag.String("memory", "", "guest memory size (e.g. 1M)")
	loadAddr := flag.Uint64("load", 0, "guest physical address to load the image at")
	entry := flag.Uint64("entry", 0, "real mode entry IP")
	serialPort := flag.Uint("serial", 0, "UART base port")
	irqchip := flag.Bool("irqchip", false, "create the in-kernel interrupt controller and PIT")
	strict := flag.Bool("strict", false, "fail on accesses no device claims")
	screen := flag.Bool("screen", false, "render guest output on an 80x25 virtual terminal and print the final screen")
	timeout := flag.Duration("timeout", 0, "stop the guest after this long")
	timesliceFile := flag.String("timeslice", "", "write exit timing records to file")
	traceFile := flag.String("trace", "", "write the binary debug log to file")
	progress := flag.Bool("progress", false, "show a progress bar while loading the image")
	verbose := flag.Bool("v", false, "verbose logging")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, `kvmrun - run a flat real mode image under KVM

USAGE:
  kvmrun [flags] [image]

The image is copied to -load and executed from -entry with every segment
base at zero. Guest writes to the UART appear on stdout and stdin is fed
to it. Press Ctrl-] to stop an interactive guest.

FLAGS:
`)
		flag.PrintDefaults()
	}
	flag.Parse()

	if *verbose {
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})))
	}

	cfg := defaultConfig()
	if *configPath != "" {
		var err error
		if cfg, err = loadConfig(*configPath); err != nil {
			return err
		}
	}

	// Flags that were set override the config file.
	var flagErr error
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "memory":
			if err := cfg.Memory.Set(*memory); err != nil {
				flagErr = fmt.Errorf("-memory: %w", err)
			}
		case "load":
			cfg.LoadAddr = *loadAddr
		case "entry":
			cfg.Entry = *entry
		case "serial":
			cfg.SerialPort = uint16(*serialPort)
		case "irqchip":
			cfg.IRQChip = *irqchip
		case "strict":
			cfg.Strict = *strict
		case "screen":
			cfg.Screen = *screen
		case "timeout":
			cfg.Timeout = Duration(*timeout)
		case "timeslice":
			cfg.Timeslice = *timesliceFile
		case "trace":
			cfg.Trace = *traceFile
		}
	})
	if flagErr != nil {
		return flagErr
	}
	if flag.NArg() > 1 {
		flag.Usage()
		return errors.New("too many arguments")
	}
	if flag.NArg() == 1 {
		cfg.Image = flag.Arg(0)
	}
	if cfg.Image == "" {
		flag.Usage()
		return errors.New("no image given")
	}
	if err := cfg.validate(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(cfg.Timeout))
		defer cancel()
	}

	return runMachine(ctx, cfg, *progress)
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "kvmrun: %v\n", err)
		os.Exit(1)
	}
}
