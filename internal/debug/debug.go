// Package debug is a process-wide binary trace log.
//
// Writers reserve space by atomically advancing a shared offset and then
// write their record with WriteAt, so concurrent vCPU threads never take a
// lock. When no log is open every call returns before formatting anything.
//
// Record layout (little endian):
//
//	u16 kind | u16 source length | u32 data length | i64 unix nanos
//	source bytes | data bytes
package debug

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"
)

type Kind uint16

const (
	KindInvalid Kind = iota
	KindBytes
	KindString
	KindIoctl
)

func (k Kind) String() string {
	switch k {
	case KindBytes:
		return "bytes"
	case KindString:
		return "string"
	case KindIoctl:
		return "ioctl"
	default:
		return fmt.Sprintf("kind(%d)", uint16(k))
	}
}

const headerSize = 16

// Writer is the destination of an open log.
type Writer interface {
	io.WriterAt
	io.Closer
}

var (
	current atomic.Pointer[Writer]
	offset  atomic.Int64
)

// ErrAlreadyOpen is returned by Open when it replaces a log that was never
// closed. The new log is in place and the previous writer has been closed;
// records racing with the switch may have been lost.
var ErrAlreadyOpen = errors.New("debug: log already open, previous writer closed")

func Open(w Writer) error {
	offset.Store(0)
	prev := current.Swap(&w)
	if prev == nil {
		return nil
	}
	if err := (*prev).Close(); err != nil {
		return errors.Join(ErrAlreadyOpen, fmt.Errorf("debug: close previous writer: %w", err))
	}
	return ErrAlreadyOpen
}

// OpenFile truncates filename and logs to it.
func OpenFile(filename string) error {
	f, err := os.OpenFile(filename, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	return Open(f)
}

// OpenMemory logs to a new in-memory buffer.
func OpenMemory() (*Memory, error) {
	m := &Memory{}
	return m, Open(m)
}

func Close() error {
	w := current.Swap(nil)
	offset.Store(0)
	if w == nil {
		return nil
	}
	return (*w).Close()
}

// Enabled reports whether a log is open.
func Enabled() bool {
	return current.Load() != nil
}

func encodeHeader(kind Kind, source string, dataLen int, now int64) [headerSize]byte {
	var h [headerSize]byte
	binary.LittleEndian.PutUint16(h[0:2], uint16(kind))
	binary.LittleEndian.PutUint16(h[2:4], uint16(len(source)))
	binary.LittleEndian.PutUint32(h[4:8], uint32(dataLen))
	binary.LittleEndian.PutUint64(h[8:16], uint64(now))
	return h
}

func decodeHeader(h [headerSize]byte) (kind Kind, sourceLen int, dataLen int, unixNano int64) {
	kind = Kind(binary.LittleEndian.Uint16(h[0:2]))
	sourceLen = int(binary.LittleEndian.Uint16(h[2:4]))
	dataLen = int(binary.LittleEndian.Uint32(h[4:8]))
	unixNano = int64(binary.LittleEndian.Uint64(h[8:16]))
	return
}

func writeRecord(kind Kind, source string, data []byte) {
	wp := current.Load()
	if wp == nil {
		return
	}
	w := *wp

	rec := make([]byte, 0, headerSize+len(source)+len(data))
	h := encodeHeader(kind, source, len(data), time.Now().UnixNano())
	rec = append(rec, h[:]...)
	rec = append(rec, source...)
	rec = append(rec, data...)

	off := offset.Add(int64(len(rec))) - int64(len(rec))
	if _, err := w.WriteAt(rec, off); err != nil {
		panic(fmt.Sprintf("debug: write trace record: %v", err))
	}
}

func WriteBytes(source string, data []byte) {
	writeRecord(KindBytes, source, data)
}

func Write(source string, msg string) {
	if !Enabled() {
		return
	}
	writeRecord(KindString, source, []byte(msg))
}

func Writef(source string, format string, args ...any) {
	if !Enabled() {
		return
	}
	writeRecord(KindString, source, fmt.Appendf(nil, format, args...))
}

// Source writes records tagged with a fixed source name.
type Source struct {
	name string
}

func WithSource(name string) *Source {
	return &Source{name: name}
}

func (s *Source) Name() string { return s.name }

func (s *Source) WriteBytes(data []byte) { WriteBytes(s.name, data) }
func (s *Source) Write(msg string) { Write(s.name, msg) }
func (s *Source) Writef(format string, args ...any) { Writef(s.name, format, args...) }
func (s *Source) Ioctl(rec IoctlRecord) { WriteIoctl(s.name, rec) }

// Memory is an in-memory Writer. Records may arrive out of order; Bytes
// assembles them by offset.
type Memory struct {
	mu     sync.Mutex
	chunks map[int64][]byte
	size   int64
}

func (m *Memory) WriteAt(p []byte, off int64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.chunks == nil {
		m.chunks = make(map[int64][]byte)
	}
	m.chunks[off] = append([]byte(nil), p...)
	if end := off + int64(len(p)); end > m.size {
		m.size = end
	}
	return len(p), nil
}

func (m *Memory) Close() error { return nil }

func (m *Memory) Bytes() []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]byte, m.size)
	for off, p := range m.chunks {
		copy(out[off:], p)
	}
	return out
}

// WriteTo copies the assembled log to w.
func (m *Memory) WriteTo(w io.Writer) (int64, error) {
	n, err := w.Write(m.Bytes())
	return int64(n), err
}
