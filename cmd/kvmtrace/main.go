// Command kvmtrace inspects binary debug logs written by kvmrun -trace.
package main

import (
	"flag"
	"fmt"
	"os"
	"regexp"
	"runtime/pprof"
	"time"

	"github.com/tinyrange/kvm/internal/debug"
)

func run() error {
	list := flag.Bool("list", false, "list all sources in the log")
	timeRange := flag.Bool("range", false, "print the earliest and latest timestamps")
	count := flag.Bool("count", false, "print the number of matching entries")
	source := flag.String("source", "", "regex to filter sources")
	match := flag.String("match", "", "regex to filter messages")
	since := flag.Duration("since", 0, "skip entries earlier than this offset from the first entry")
	limit := flag.Int("limit", 100, "limit the number of entries (0 for unlimited)")
	tail := flag.Bool("tail", false, "show last N entries instead of first N")
	cpuprofile := flag.String("cpuprofile", "", "write CPU profile to file")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, `kvmtrace - inspect binary debug logs

USAGE:
  kvmtrace [flags] <filename>

FLAGS:
  -list          List all unique source names in the log, one per line
  -range         Show earliest/latest timestamps and total duration
  -count         Print how many entries match instead of printing them
  -source REGEX  Only show entries where source matches regex
  -match REGEX   Only show entries where the formatted message matches regex
  -since DUR     Skip entries in the first DUR of the log
  -limit N       Max entries to return (default: 100). Errors if exceeded; use -tail or 0 for unlimited
  -tail          Show last N entries instead of first N (combine with -limit)

Ioctl records are decoded as: fd=N REQUEST ret=N (or err=ERRNO).

EXAMPLES:
  kvmtrace trace.bin                         Show entries (errors if >100)
  kvmtrace -source '^kvm ioctl' -tail trace.bin   Last 100 ioctl records
  kvmtrace -match 'KVM_RUN err' trace.bin    Interrupted or failed runs
  kvmtrace -source vmm -count trace.bin      Number of unhandled exits
`)
	}
	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(1)
	}

	if *cpuprofile != "" {
		f, err := os.Create(*cpuprofile)
		if err != nil {
			return fmt.Errorf("create CPU profile file: %w", err)
		}
		defer f.Close()
		if err := pprof.StartCPUProfile(f); err != nil {
			return fmt.Errorf("start CPU profile: %w", err)
		}
		defer pprof.StopCPUProfile()
	}

	reader, closer, err := debug.NewReaderFromFile(flag.Arg(0))
	if err != nil {
		return fmt.Errorf("failed to open debug file: %w", err)
	}
	defer closer.Close()

	if *list {
		for _, src := range reader.Sources() {
			fmt.Println(src)
		}
		return nil
	}

	earliest, latest := reader.TimeRange()
	if *timeRange {
		fmt.Printf("earliest: %s\nlatest:   %s\nduration: %s\n", earliest, latest, latest.Sub(earliest))
		return nil
	}

	var opts debug.SearchOptions
	if *since > 0 {
		opts.Start = earliest.Add(*since)
	}

	var sourceRe, matchRe *regexp.Regexp
	if *source != "" {
		if sourceRe, err = regexp.Compile(*source); err != nil {
			return fmt.Errorf("invalid source regex: %w", err)
		}
		for _, src := range reader.Sources() {
			if sourceRe.MatchString(src) {
				opts.Sources = append(opts.Sources, src)
			}
		}
		if len(opts.Sources) == 0 {
			return nil
		}
	}
	if *match != "" {
		if matchRe, err = regexp.Compile(*match); err != nil {
			return fmt.Errorf("invalid match regex: %w", err)
		}
	}

	var entries []debug.Entry
	if err := reader.Search(opts, func(e debug.Entry) error {
		if matchRe != nil && !matchRe.MatchString(debug.Format(e.Kind, e.Data)) {
			return nil
		}
		entries = append(entries, e)
		return nil
	}); err != nil {
		return fmt.Errorf("failed to read log: %w", err)
	}

	if *count {
		fmt.Println(len(entries))
		return nil
	}

	if *limit > 0 && len(entries) > *limit {
		switch {
		case *tail:
			entries = entries[len(entries)-*limit:]
		case !isFlagSet("limit"):
			return fmt.Errorf("too many entries: %d (limit is %d). Use -tail for last %d, or explicitly set a limit using -limit", len(entries), *limit, *limit)
		default:
			entries = entries[:*limit]
		}
	}

	for _, e := range entries {
		fmt.Printf("%s [%s] %s\n", e.Time.Format(time.RFC3339Nano), e.Source, debug.Format(e.Kind, e.Data))
	}
	return nil
}

func isFlagSet(name string) bool {
	set := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == name {
			set = true
		}
	})
	return set
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "kvmtrace: %v\n", err)
		os.Exit(1)
	}
}
