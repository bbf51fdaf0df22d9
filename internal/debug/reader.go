package debug

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"slices"
	"time"
)

// Entry is one decoded record.
type Entry struct {
	Time   time.Time
	Kind   Kind
	Source string
	Data   []byte
}

func (e Entry) String() string {
	return fmt.Sprintf("%s [%s] %s", e.Time.Format("15:04:05.000000"), e.Source, Format(e.Kind, e.Data))
}

type SearchOptions struct {
	Start time.Time
	End   time.Time

	// First keeps only the first N matches, Last only the last N. Setting
	// both is an error.
	First int
	Last  int

	// Sources restricts the search to the named sources.
	Sources []string
}

type indexEntry struct {
	offset   int64
	unixNano int64
	source   int
}

// Reader indexes a trace log once and then serves searches from it.
type Reader struct {
	r io.ReaderAt

	sources  []string
	sourceID map[string]int
	index    []indexEntry

	earliest int64
	latest   int64
}

func NewReader(r io.ReaderAt) (*Reader, error) {
	rd := &Reader{r: r, sourceID: make(map[string]int)}
	if err := rd.indexAll(); err != nil {
		return nil, fmt.Errorf("index trace log: %w", err)
	}
	return rd, nil
}

// NewReaderFromFile opens and indexes filename. The caller closes the
// returned file when done with the Reader.
func NewReaderFromFile(filename string) (*Reader, io.Closer, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, nil, err
	}
	rd, err := NewReader(f)
	if err != nil {
		f.Close()
		return nil, nil, err
	}
	return rd, f, nil
}

func (r *Reader) indexAll() error {
	br := bufio.NewReaderSize(io.NewSectionReader(r.r, 0, 1<<62), 1<<20)

	var (
		off    int64
		header [headerSize]byte
		source = make([]byte, 0, 64)
	)
	for {
		if _, err := io.ReadFull(br, header[:]); err != nil {
			if err == io.EOF {
				break
			}
			return fmt.Errorf("record at %d: %w", off, err)
		}
		kind, sourceLen, dataLen, ts := decodeHeader(header)
		if kind == KindInvalid {
			// Zero header: a writer reserved space but never filled it.
			return fmt.Errorf("record at %d: invalid header", off)
		}

		source = slices.Grow(source[:0], sourceLen)[:sourceLen]
		if _, err := io.ReadFull(br, source); err != nil {
			return fmt.Errorf("record at %d: source: %w", off, err)
		}
		if _, err := br.Discard(dataLen); err != nil {
			return fmt.Errorf("record at %d: data: %w", off, err)
		}

		id, ok := r.sourceID[string(source)]
		if !ok {
			id = len(r.sources)
			r.sources = append(r.sources, string(source))
			r.sourceID[string(source)] = id
		}
		r.index = append(r.index, indexEntry{offset: off, unixNano: ts, source: id})

		if r.earliest == 0 || ts < r.earliest {
			r.earliest = ts
		}
		if ts > r.latest {
			r.latest = ts
		}

		off += int64(headerSize + sourceLen + dataLen)
	}

	slices.SortStableFunc(r.index, func(a, b indexEntry) int {
		switch {
		case a.unixNano < b.unixNano:
			return -1
		case a.unixNano > b.unixNano:
			return 1
		}
		return 0
	})
	return nil
}

// Sources lists source names in first-seen order.
func (r *Reader) Sources() []string {
	return slices.Clone(r.sources)
}

func (r *Reader) TimeRange() (time.Time, time.Time) {
	return time.Unix(0, r.earliest), time.Unix(0, r.latest)
}

func (r *Reader) match(opts SearchOptions) ([]indexEntry, error) {
	if opts.First > 0 && opts.Last > 0 {
		return nil, fmt.Errorf("debug: First and Last are mutually exclusive")
	}

	var want map[int]bool
	if len(opts.Sources) > 0 {
		want = make(map[int]bool)
		for _, s := range opts.Sources {
			if id, ok := r.sourceID[s]; ok {
				want[id] = true
			}
		}
	}

	var out []indexEntry
	for _, ie := range r.index {
		if want != nil && !want[ie.source] {
			continue
		}
		if !opts.Start.IsZero() && ie.unixNano < opts.Start.UnixNano() {
			continue
		}
		if !opts.End.IsZero() && ie.unixNano > opts.End.UnixNano() {
			continue
		}
		out = append(out, ie)
	}

	if opts.First > 0 && len(out) > opts.First {
		out = out[:opts.First]
	}
	if opts.Last > 0 && len(out) > opts.Last {
		out = out[len(out)-opts.Last:]
	}
	return out, nil
}

// Search calls fn for each matching record in time order.
func (r *Reader) Search(opts SearchOptions, fn func(Entry) error) error {
	matches, err := r.match(opts)
	if err != nil {
		return err
	}
	for _, ie := range matches {
		var header [headerSize]byte
		if _, err := r.r.ReadAt(header[:], ie.offset); err != nil {
			return err
		}
		kind, sourceLen, dataLen, _ := decodeHeader(header)

		data := make([]byte, dataLen)
		if _, err := r.r.ReadAt(data, ie.offset+int64(headerSize+sourceLen)); err != nil {
			return err
		}
		if err := fn(Entry{
			Time:   time.Unix(0, ie.unixNano),
			Kind:   kind,
			Source: r.sources[ie.source],
			Data:   data,
		}); err != nil {
			return err
		}
	}
	return nil
}

func (r *Reader) Count(opts SearchOptions) (int, error) {
	matches, err := r.match(opts)
	return len(matches), err
}

func (r *Reader) Each(fn func(Entry) error) error {
	return r.Search(SearchOptions{}, fn)
}
