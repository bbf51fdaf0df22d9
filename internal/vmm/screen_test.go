package vmm

import (
	"bytes"
	"sync"
	"testing"
	"time"
)

func TestScreenSnapshot(t *testing.T) {
	s := NewScreen(20, 5, nil)
	defer s.Close()

	if _, err := s.Write([]byte("hello\r\nworld\r\n\x1b[1mbold\x1b[0m")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if got, want := s.Snapshot(), "hello\nworld\nbold"; got != want {
		t.Fatalf("Snapshot = %q, want %q", got, want)
	}
}

func TestScreenRepliesReachGuest(t *testing.T) {
	var mu sync.Mutex
	var replies bytes.Buffer
	s := NewScreen(20, 5, func(p []byte) {
		mu.Lock()
		replies.Write(p)
		mu.Unlock()
	})

	// Cursor position report.
	if _, err := s.Write([]byte("\x1b[6n")); err != nil {
		t.Fatalf("Write: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		mu.Lock()
		n := replies.Len()
		mu.Unlock()
		if n > 0 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("no reply to cursor position query")
		}
		time.Sleep(5 * time.Millisecond)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}
