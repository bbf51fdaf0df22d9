// Package timeslice records how long a VMM spends in the guest and in each
// kind of exit handler.
//
// Durations are tagged with a registered kind and streamed to a file by a
// background goroutine. A file starts with a fixed header and a JSON table
// of the kinds, padded to 4KiB, followed by 16-byte records.
package timeslice

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

const (
	Magic   uint32 = 0x54534c46 // "TSLF"
	Version uint32 = 3

	pageSize = 4096
)

type header struct {
	Magic       uint32
	Version     uint32
	KindsLength uint32
}

type Kind uint64

const InvalidKind = Kind(0)

type Flags uint32

const (
	// FlagGuest marks time spent executing guest code.
	FlagGuest Flags = 1 << iota
	// FlagSetup marks one-off VM construction time.
	FlagSetup
)

func (f Flags) String() string {
	var s []string
	if f&FlagGuest != 0 {
		s = append(s, "guest")
	}
	if f&FlagSetup != 0 {
		s = append(s, "setup")
	}
	return strings.Join(s, ",")
}

type KindInfo struct {
	Name  string
	Flags Flags
}

var (
	kindsMu sync.Mutex
	kinds   = make(map[Kind]KindInfo)
)

// RegisterKind adds a kind. Kinds registered after Open are missing from
// that file's table and their records fail to decode.
func RegisterKind(name string, flags Flags) Kind {
	kindsMu.Lock()
	defer kindsMu.Unlock()
	id := Kind(len(kinds) + 1)
	kinds[id] = KindInfo{Name: name, Flags: flags}
	return id
}

type record struct {
	Kind     Kind
	Duration int64
}

var recordSize = binary.Size(record{})

// Recorder is the file-backed sink opened by Open.
type Recorder struct {
	w       io.Writer
	records chan record
	done    chan error
	dropped atomic.Uint64
}

var current atomic.Pointer[Recorder]

func (r *Recorder) run() {
	bw := bufio.NewWriterSize(r.w, pageSize)
	var buf [16]byte
	var err error
	for rec := range r.records {
		if err != nil {
			continue
		}
		binary.LittleEndian.PutUint64(buf[0:8], uint64(rec.Kind))
		binary.LittleEndian.PutUint64(buf[8:16], uint64(rec.Duration))
		_, err = bw.Write(buf[:])
	}
	if err == nil {
		err = bw.Flush()
	}
	r.done <- err
}

// Dropped is the number of records discarded because the writer could
// not keep up.
func (r *Recorder) Dropped() uint64 { return r.dropped.Load() }

// Close stops recording and flushes everything queued so far.
func (r *Recorder) Close() error {
	if !current.CompareAndSwap(r, nil) {
		return errors.New("timeslice: already closed")
	}
	close(r.records)
	if err := <-r.done; err != nil {
		return fmt.Errorf("timeslice: write records: %w", err)
	}
	return nil
}

// Open writes the file header and starts recording to w. Only one recorder
// may be open at a time.
func Open(w io.Writer) (*Recorder, error) {
	if current.Load() != nil {
		return nil, errors.New("timeslice: already open")
	}

	kindsMu.Lock()
	table, err := json.Marshal(kinds)
	kindsMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("timeslice: marshal kinds: %w", err)
	}

	hdr := make([]byte, 0, pageSize)
	hdr, _ = binary.Append(hdr, binary.LittleEndian, header{
		Magic:       Magic,
		Version:     Version,
		KindsLength: uint32(len(table)),
	})
	hdr = append(hdr, table...)
	if pad := len(hdr) % pageSize; pad != 0 {
		hdr = append(hdr, make([]byte, pageSize-pad)...)
	}
	if _, err := w.Write(hdr); err != nil {
		return nil, fmt.Errorf("timeslice: write header: %w", err)
	}

	r := &Recorder{
		w:       w,
		records: make(chan record, 4096),
		done:    make(chan error, 1),
	}
	if !current.CompareAndSwap(nil, r) {
		return nil, errors.New("timeslice: already open")
	}
	go r.run()
	return r, nil
}

// Record queues one duration. It never blocks; when the queue is full the
// record is counted as dropped.
func Record(kind Kind, d time.Duration) {
	r := current.Load()
	if r == nil {
		return
	}
	select {
	case r.records <- record{Kind: kind, Duration: d.Nanoseconds()}:
	default:
		r.dropped.Add(1)
	}
}

// Enabled reports whether a recorder is open.
func Enabled() bool { return current.Load() != nil }

// Stopwatch attributes the time between successive Lap calls. It is owned
// by a single goroutine.
type Stopwatch struct {
	last time.Time
}

func NewStopwatch() *Stopwatch {
	return &Stopwatch{last: time.Now()}
}

// Lap records the time since the previous Lap (or NewStopwatch) as kind.
func (s *Stopwatch) Lap(kind Kind) {
	now := time.Now()
	Record(kind, now.Sub(s.last))
	s.last = now
}

// Reset restarts the current lap without recording anything.
func (s *Stopwatch) Reset() {
	s.last = time.Now()
}

// ReadAllRecords decodes a file written by a Recorder.
func ReadAllRecords(r io.Reader, fn func(name string, flags Flags, d time.Duration) error) error {
	br := bufio.NewReaderSize(r, pageSize)

	var hdr header
	if err := binary.Read(br, binary.LittleEndian, &hdr); err != nil {
		return fmt.Errorf("timeslice: read header: %w", err)
	}
	if hdr.Magic != Magic {
		return fmt.Errorf("timeslice: bad magic %#x", hdr.Magic)
	}
	if hdr.Version != Version {
		return fmt.Errorf("timeslice: unsupported version %d", hdr.Version)
	}

	table := make([]byte, hdr.KindsLength)
	if _, err := io.ReadFull(br, table); err != nil {
		return fmt.Errorf("timeslice: read kinds: %w", err)
	}
	var fileKinds map[Kind]KindInfo
	if err := json.Unmarshal(table, &fileKinds); err != nil {
		return fmt.Errorf("timeslice: decode kinds: %w", err)
	}

	off := binary.Size(hdr) + len(table)
	if pad := off % pageSize; pad != 0 {
		if _, err := br.Discard(pageSize - pad); err != nil {
			return fmt.Errorf("timeslice: skip padding: %w", err)
		}
	}

	var buf [16]byte
	for {
		if _, err := io.ReadFull(br, buf[:]); err != nil {
			if err == io.EOF {
				return nil
			}
			return fmt.Errorf("timeslice: read record: %w", err)
		}
		kind := Kind(binary.LittleEndian.Uint64(buf[0:8]))
		info, ok := fileKinds[kind]
		if !ok {
			return fmt.Errorf("timeslice: unknown kind %d", kind)
		}
		d := time.Duration(binary.LittleEndian.Uint64(buf[8:16]))
		if err := fn(info.Name, info.Flags, d); err != nil {
			return err
		}
	}
}

// Sum aggregates the records of one kind.
type Sum struct {
	Name  string
	Flags Flags
	Count int
	Total time.Duration
	Min   time.Duration
	Max   time.Duration
}

func (s *Sum) add(d time.Duration) {
	s.Count++
	s.Total += d
	if s.Count == 1 || d < s.Min {
		s.Min = d
	}
	if d > s.Max {
		s.Max = d
	}
}

func (s *Sum) Avg() time.Duration {
	if s.Count == 0 {
		return 0
	}
	return s.Total / time.Duration(s.Count)
}

func (s *Sum) String() string {
	return fmt.Sprintf("%40s flags=%10s count=%8d sum=%16s min=%16s max=%16s avg=%16s",
		s.Name, s.Flags, s.Count, s.Total, s.Min, s.Max, s.Avg())
}

// Summarize reads a whole file and returns one Sum per kind in first-seen
// order.
func Summarize(r io.Reader) ([]*Sum, error) {
	var order []*Sum
	byName := make(map[string]*Sum)
	err := ReadAllRecords(r, func(name string, flags Flags, d time.Duration) error {
		s, ok := byName[name]
		if !ok {
			s = &Sum{Name: name, Flags: flags}
			byName[name] = s
			order = append(order, s)
		}
		s.add(d)
		return nil
	})
	return order, err
}
