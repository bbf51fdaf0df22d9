package timeslice

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"
)

var (
	kindGuest = RegisterKind("test_guest", FlagGuest)
	kindExit  = RegisterKind("test_exit", 0)
)

func TestRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	rec, err := Open(&buf)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	Record(kindGuest, 100*time.Millisecond)
	Record(kindExit, 200*time.Millisecond)
	if err := rec.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	var names []string
	var total time.Duration
	if err := ReadAllRecords(bytes.NewReader(buf.Bytes()), func(name string, flags Flags, d time.Duration) error {
		names = append(names, name)
		total += d
		return nil
	}); err != nil {
		t.Fatalf("ReadAllRecords: %v", err)
	}
	if len(names) != 2 || names[0] != "test_guest" || names[1] != "test_exit" {
		t.Fatalf("names = %v", names)
	}
	if total != 300*time.Millisecond {
		t.Fatalf("total = %v", total)
	}
}

func TestOpenTwice(t *testing.T) {
	var buf bytes.Buffer
	rec, err := Open(&buf)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer rec.Close()

	if _, err := Open(&buf); err == nil {
		t.Fatal("second Open succeeded")
	}
	if err := rec.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := rec.Close(); err == nil {
		t.Fatal("second Close succeeded")
	}
}

func TestRecordWithoutRecorder(t *testing.T) {
	if Enabled() {
		t.Fatal("recorder unexpectedly open")
	}
	Record(kindExit, time.Second)
}

func TestSummarizeFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.timeslice")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	rec, err := Open(f)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	for _, d := range []time.Duration{1, 2, 3} {
		Record(kindExit, d*time.Microsecond)
	}
	Record(kindGuest, time.Millisecond)
	if err := rec.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	f.Close()

	f, err = os.Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer f.Close()

	sums, err := Summarize(f)
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if len(sums) != 2 {
		t.Fatalf("expected 2 sums, got %d", len(sums))
	}
	exit := sums[0]
	if exit.Name != "test_exit" || exit.Count != 3 || exit.Min != time.Microsecond || exit.Max != 3*time.Microsecond {
		t.Fatalf("unexpected sum %+v", exit)
	}
	if exit.Avg() != 2*time.Microsecond {
		t.Fatalf("avg = %v", exit.Avg())
	}
	if sums[1].Flags != FlagGuest {
		t.Fatalf("guest flags = %v", sums[1].Flags)
	}
}

func TestBadMagic(t *testing.T) {
	if err := ReadAllRecords(bytes.NewReader(make([]byte, 64)), func(string, Flags, time.Duration) error {
		return nil
	}); err == nil {
		t.Fatal("expected error for zeroed header")
	}
}

func BenchmarkRecord(b *testing.B) {
	var buf bytes.Buffer
	rec, err := Open(&buf)
	if err != nil {
		b.Fatalf("Open: %v", err)
	}
	defer rec.Close()

	sw := NewStopwatch()
	for b.Loop() {
		sw.Lap(kindExit)
	}
}
