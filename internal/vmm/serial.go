package vmm

import (
	"io"
	"sync"
)

// COM1 is the conventional base port of the first serial port.
const COM1 = 0x3f8

// Serial register offsets from the base port.
const (
	serialData      = 0 // RBR on read, THR on write
	serialIER       = 1
	serialIIR       = 2
	serialLCR       = 3
	serialMCR       = 4
	serialLSR       = 5
	serialMSR       = 6
	serialScratch   = 7
	serialPortCount = 8
)

const (
	lsrDataReady       = 0x01
	lsrTHREmpty        = 0x20
	lsrTransmitterIdle = 0x40

	iirNoInterrupt = 0x01
)

// Serial is a polled 16550-style UART. It raises no interrupts: the guest
// polls LSR to see whether input is waiting.
type Serial struct {
	out io.Writer

	mu      sync.Mutex
	input   []byte
	regs    [serialPortCount]byte
	base    uint16
	written int64
}

func NewSerial(base uint16, out io.Writer) *Serial {
	return &Serial{base: base, out: out}
}

// Attach claims the UART's eight ports on bus.
func (s *Serial) Attach(bus *Bus) error {
	return bus.AddPorts(s.base, serialPortCount, s)
}

// Feed queues host input for the guest to read.
func (s *Serial) Feed(p []byte) {
	s.mu.Lock()
	s.input = append(s.input, p...)
	s.mu.Unlock()
}

// Written returns the number of bytes the guest has transmitted.
func (s *Serial) Written() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.written
}

func (s *Serial) ReadPort(port uint16, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var v byte
	switch reg := port - s.base; reg {
	case serialData:
		if len(s.input) > 0 {
			v = s.input[0]
			s.input = s.input[1:]
		}
	case serialIIR:
		v = iirNoInterrupt
	case serialLSR:
		v = lsrTHREmpty | lsrTransmitterIdle
		if len(s.input) > 0 {
			v |= lsrDataReady
		}
	default:
		v = s.regs[reg]
	}

	for i := range data {
		data[i] = 0
	}
	if len(data) > 0 {
		data[0] = v
	}
	return nil
}

func (s *Serial) WritePort(port uint16, data []byte) error {
	if len(data) == 0 {
		return nil
	}
	reg := port - s.base
	if reg == serialData {
		s.mu.Lock()
		s.written++
		s.mu.Unlock()
		_, err := s.out.Write(data[:1])
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	switch reg {
	case serialLSR, serialMSR, serialIIR:
		// read-only
	default:
		s.regs[reg] = data[0]
	}
	return nil
}
