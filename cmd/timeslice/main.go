// Command timeslice prints the exit timing records written by kvmrun
// -timeslice.
package main

import (
	"cmp"
	"flag"
	"fmt"
	"os"
	"slices"
	"time"

	"github.com/tinyrange/kvm/internal/timeslice"
)

func main() {
	fs := flag.NewFlagSet(os.Args[0], flag.ExitOnError)

	filename := fs.String("filename", "", "Timeslice file to read")
	sums := fs.Bool("sums", false, "Print sums of timeslice durations")
	sortTotal := fs.Bool("sort", false, "With -sums, order kinds by total time")
	guestOnly := fs.Bool("guest", false, "Only include time spent in the guest")

	if err := fs.Parse(os.Args[1:]); err != nil {
		os.Exit(1)
	}

	if *filename == "" {
		fs.Usage()
		os.Exit(1)
	}

	f, err := os.Open(*filename)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to open timeslice file: %v\n", err)
		os.Exit(1)
	}
	defer f.Close()

	if *sums {
		records, err := timeslice.Summarize(f)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to read timeslice file: %v\n", err)
			os.Exit(1)
		}
		if *sortTotal {
			slices.SortStableFunc(records, func(a, b *timeslice.Sum) int {
				return cmp.Compare(b.Total, a.Total)
			})
		}
		var total time.Duration
		for _, record := range records {
			if *guestOnly && record.Flags&timeslice.FlagGuest == 0 {
				continue
			}
			total += record.Total
			fmt.Printf("%s\n", record.String())
		}
		fmt.Printf("total %s\n", total)
		return
	}

	if err := timeslice.ReadAllRecords(f, func(name string, flags timeslice.Flags, d time.Duration) error {
		if *guestOnly && flags&timeslice.FlagGuest == 0 {
			return nil
		}
		fmt.Printf("%s %s %s\n", name, flags, d)
		return nil
	}); err != nil {
		fmt.Fprintf(os.Stderr, "failed to read timeslice file: %v\n", err)
		os.Exit(1)
	}
}
