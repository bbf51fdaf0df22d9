package vmm

import (
	"strings"
	"sync"

	"github.com/charmbracelet/x/vt"
)

// Screen is a virtual terminal fed by guest output. Replies the terminal
// generates (cursor position reports and the like) are sent back to the
// guest through reply.
type Screen struct {
	emu *vt.SafeEmulator

	closeOnce sync.Once
	done      chan struct{}
}

// NewScreen creates a cols x rows terminal. reply may be nil, in which case
// terminal replies are discarded.
func NewScreen(cols, rows int, reply func([]byte)) *Screen {
	s := &Screen{
		emu:  vt.NewSafeEmulator(cols, rows),
		done: make(chan struct{}),
	}
	go s.drain(reply)
	return s
}

// The emulator's reply pipe blocks writers until it is read.
func (s *Screen) drain(reply func([]byte)) {
	defer close(s.done)
	buf := make([]byte, 1024)
	for {
		n, err := s.emu.Read(buf)
		if n > 0 && reply != nil {
			reply(append([]byte(nil), buf[:n]...))
		}
		if err != nil {
			return
		}
	}
}

func (s *Screen) Write(p []byte) (int, error) {
	return s.emu.Write(p)
}

// Snapshot renders the visible screen as plain text, one line per row,
// with trailing blanks and empty trailing rows removed.
func (s *Screen) Snapshot() string {
	var lines []string
	for y := 0; y < s.emu.Height(); y++ {
		var row strings.Builder
		for x := 0; x < s.emu.Width(); {
			cell := s.emu.CellAt(x, y)
			w := 1
			content := " "
			if cell != nil {
				if cell.Content != "" {
					content = cell.Content
				}
				if cell.Width > 1 {
					w = cell.Width
				}
			}
			row.WriteString(content)
			x += w
		}
		lines = append(lines, strings.TrimRight(row.String(), " "))
	}
	for len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return strings.Join(lines, "\n")
}

func (s *Screen) Close() error {
	var err error
	s.closeOnce.Do(func() {
		err = s.emu.Close()
		<-s.done
	})
	return err
}
