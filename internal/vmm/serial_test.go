package vmm

import (
	"bytes"
	"testing"
)

func TestSerialTransmit(t *testing.T) {
	var out bytes.Buffer
	var bus Bus
	s := NewSerial(COM1, &out)
	if err := s.Attach(&bus); err != nil {
		t.Fatalf("Attach: %v", err)
	}

	for _, c := range []byte("ok\n") {
		if err := bus.HandlePort(true, COM1, 1, []byte{c}); err != nil {
			t.Fatalf("HandlePort: %v", err)
		}
	}
	if out.String() != "ok\n" {
		t.Fatalf("output = %q", out.String())
	}
	if s.Written() != 3 {
		t.Fatalf("Written = %d", s.Written())
	}
}

func TestSerialReceive(t *testing.T) {
	var bus Bus
	s := NewSerial(COM1, &bytes.Buffer{})
	if err := s.Attach(&bus); err != nil {
		t.Fatalf("Attach: %v", err)
	}

	lsr := make([]byte, 1)
	if err := bus.HandlePort(false, COM1+serialLSR, 1, lsr); err != nil {
		t.Fatalf("HandlePort: %v", err)
	}
	if lsr[0]&lsrDataReady != 0 {
		t.Fatalf("data ready with empty input: %#x", lsr[0])
	}
	if lsr[0]&lsrTHREmpty == 0 {
		t.Fatalf("transmitter not reported empty: %#x", lsr[0])
	}

	s.Feed([]byte("x"))
	if err := bus.HandlePort(false, COM1+serialLSR, 1, lsr); err != nil {
		t.Fatalf("HandlePort: %v", err)
	}
	if lsr[0]&lsrDataReady == 0 {
		t.Fatalf("data ready not set: %#x", lsr[0])
	}

	rbr := make([]byte, 1)
	if err := bus.HandlePort(false, COM1, 1, rbr); err != nil {
		t.Fatalf("HandlePort: %v", err)
	}
	if rbr[0] != 'x' {
		t.Fatalf("read %q", rbr[0])
	}
}

func TestSerialScratch(t *testing.T) {
	s := NewSerial(COM1, &bytes.Buffer{})
	if err := s.WritePort(COM1+serialScratch, []byte{0x5a}); err != nil {
		t.Fatalf("WritePort: %v", err)
	}
	got := make([]byte, 1)
	if err := s.ReadPort(COM1+serialScratch, got); err != nil {
		t.Fatalf("ReadPort: %v", err)
	}
	if got[0] != 0x5a {
		t.Fatalf("scratch = %#x", got[0])
	}
}
