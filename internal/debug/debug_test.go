package debug

import (
	"bytes"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"syscall"
	"testing"
	"time"
)

func openMemory(t testing.TB) *Memory {
	t.Helper()
	mem, err := OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	t.Cleanup(func() { Close() })
	return mem
}

func readAll(t testing.TB, mem *Memory) []Entry {
	t.Helper()
	reader, err := NewReader(bytes.NewReader(mem.Bytes()))
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}
	var entries []Entry
	if err := reader.Each(func(e Entry) error {
		entries = append(entries, e)
		return nil
	}); err != nil {
		t.Fatalf("Each: %v", err)
	}
	return entries
}

func TestWriteAndRead(t *testing.T) {
	mem := openMemory(t)
	Write("test", "hello, world")

	entries := readAll(t, mem)
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	if entries[0].Source != "test" || string(entries[0].Data) != "hello, world" {
		t.Fatalf("unexpected entry %+v", entries[0])
	}
	if entries[0].Kind != KindString {
		t.Fatalf("kind = %v, want string", entries[0].Kind)
	}
}

func TestTempFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trace.log")
	if err := OpenFile(path); err != nil {
		t.Fatalf("OpenFile: %v", err)
	}
	Writef("kvm ioctl", "fd=%d", 3)
	if err := Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	r, closer, err := NewReaderFromFile(path)
	if err != nil {
		t.Fatalf("NewReaderFromFile: %v", err)
	}
	defer closer.Close()

	if got := r.Sources(); len(got) != 1 || got[0] != "kvm ioctl" {
		t.Fatalf("Sources = %v", got)
	}
}

func TestDisabledWritesNothing(t *testing.T) {
	if Enabled() {
		t.Fatal("log unexpectedly open")
	}
	// Must not panic or allocate a writer.
	Writef("test", "%d", 1)
	WriteIoctl("test", IoctlRecord{Fd: 1})
}

func TestIoctlRecord(t *testing.T) {
	mem := openMemory(t)
	trace := WithSource("kvm ioctl")
	trace.Ioctl(IoctlRecord{Fd: 5, Request: 0xae80, Result: 0, Name: "KVM_RUN"})
	trace.Ioctl(IoctlRecord{Fd: 5, Request: 0xae46, Errno: syscall.EINVAL, Name: "KVM_SET_USER_MEMORY_REGION"})

	entries := readAll(t, mem)
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	rec, err := DecodeIoctl(entries[1].Data)
	if err != nil {
		t.Fatalf("DecodeIoctl: %v", err)
	}
	if rec.Errno != syscall.EINVAL || rec.Name != "KVM_SET_USER_MEMORY_REGION" || rec.Fd != 5 {
		t.Fatalf("unexpected record %+v", rec)
	}
	if got := Format(entries[0].Kind, entries[0].Data); got != "fd=5 KVM_RUN ret=0" {
		t.Fatalf("Format = %q", got)
	}
}

func TestSearch(t *testing.T) {
	mem := openMemory(t)
	for i := range 10 {
		Write("a", fmt.Sprintf("a%d", i))
		Write("b", fmt.Sprintf("b%d", i))
	}

	reader, err := NewReader(bytes.NewReader(mem.Bytes()))
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}

	n, err := reader.Count(SearchOptions{Sources: []string{"b"}})
	if err != nil || n != 10 {
		t.Fatalf("Count(b) = %d, %v", n, err)
	}

	var last []string
	if err := reader.Search(SearchOptions{Sources: []string{"a"}, Last: 3}, func(e Entry) error {
		last = append(last, string(e.Data))
		return nil
	}); err != nil {
		t.Fatalf("Search: %v", err)
	}
	if fmt.Sprint(last) != "[a7 a8 a9]" {
		t.Fatalf("last = %v", last)
	}

	if _, err := reader.Count(SearchOptions{First: 1, Last: 1}); err == nil {
		t.Fatal("expected error for First and Last together")
	}
}

func TestTimestampOrdering(t *testing.T) {
	mem := openMemory(t)

	var wg sync.WaitGroup
	for i := range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 10 {
				time.Sleep(time.Millisecond * time.Duration(i))
				Write("test", fmt.Sprintf("vcpu %d", i))
			}
		}()
	}
	wg.Wait()

	entries := readAll(t, mem)
	if len(entries) != 40 {
		t.Fatalf("expected 40 entries, got %d", len(entries))
	}
	for i := range len(entries) - 1 {
		if entries[i].Time.After(entries[i+1].Time) {
			t.Fatalf("entries out of order at %d", i)
		}
	}
}

func BenchmarkWriteIoctl(b *testing.B) {
	openMemory(b)
	rec := IoctlRecord{Fd: 5, Request: 0xae80, Name: "KVM_RUN"}
	for b.Loop() {
		WriteIoctl("kvm ioctl", rec)
	}
}

func BenchmarkDisabled(b *testing.B) {
	for b.Loop() {
		Writef("kvm ioctl", "fd=%d", 5)
	}
}

type closeCountingWriter struct {
	*Memory
	closes int
}

func (w *closeCountingWriter) Close() error {
	w.closes++
	return nil
}

func TestReopenClosesPrevious(t *testing.T) {
	first := &closeCountingWriter{Memory: &Memory{}}
	if err := Open(first); err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { Close() })

	second := &closeCountingWriter{Memory: &Memory{}}
	if err := Open(second); !errors.Is(err, ErrAlreadyOpen) {
		t.Fatalf("second Open = %v, want ErrAlreadyOpen", err)
	}
	if first.closes != 1 {
		t.Fatalf("previous writer closed %d times, want 1", first.closes)
	}

	Write("test", "after reopen")
	if len(first.Bytes()) != 0 {
		t.Fatal("record went to the replaced writer")
	}
	if len(second.Bytes()) == 0 {
		t.Fatal("record missing from the new writer")
	}

	if err := Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if second.closes != 1 {
		t.Fatalf("new writer closed %d times, want 1", second.closes)
	}
}
