package main

import (
	"bytes"
	"io"
	"sync"

	"github.com/charmbracelet/x/ansi"
)

// plainWriter strips terminal escape sequences from complete lines before
// passing them on. It is used when stdout is not a terminal so captured
// guest output stays readable.
type plainWriter struct {
	mu  sync.Mutex
	w   io.Writer
	buf []byte
}

func newPlainWriter(w io.Writer) *plainWriter {
	return &plainWriter{w: w}
}

func (p *plainWriter) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.buf = append(p.buf, b...)
	for {
		i := bytes.IndexByte(p.buf, '\n')
		if i < 0 {
			break
		}
		if err := p.emit(p.buf[:i+1]); err != nil {
			return 0, err
		}
		p.buf = p.buf[i+1:]
	}
	return len(b), nil
}

func (p *plainWriter) emit(line []byte) error {
	_, err := io.WriteString(p.w, ansi.Strip(string(line)))
	return err
}

// Flush writes any trailing partial line.
func (p *plainWriter) Flush() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.buf) == 0 {
		return nil
	}
	err := p.emit(p.buf)
	p.buf = nil
	return err
}
