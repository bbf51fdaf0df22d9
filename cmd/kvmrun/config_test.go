package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestParseSize(t *testing.T) {
	tests := []struct {
		in   string
		want Size
	}{
		{"4096", 4096},
		{"64K", 64 << 10},
		{"2M", 2 << 20},
		{"1G", 1 << 30},
		{"0x2000", 0x2000},
	}
	for _, tt := range tests {
		got, err := parseSize(tt.in)
		if err != nil {
			t.Fatalf("parseSize(%q): %v", tt.in, err)
		}
		if got != tt.want {
			t.Errorf("parseSize(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
	for _, bad := range []string{"", "M", "12X", "99999999999999999999G"} {
		if _, err := parseSize(bad); err == nil {
			t.Errorf("parseSize(%q) accepted", bad)
		}
	}
	if s := Size(2 << 20).String(); s != "2M" {
		t.Errorf("String = %q", s)
	}
}

func TestParseConfig(t *testing.T) {
	cfg := defaultConfig()
	err := parseConfig([]byte(`
memory: 2M
image: boot.bin
load_addr: 0x7c00
entry: 0x7c00
serial_port: 0x2f8
strict: true
timeout: 5s
timeslice: run.ts
`), &cfg)
	if err != nil {
		t.Fatalf("parseConfig: %v", err)
	}
	if cfg.Memory != 2<<20 || cfg.Image != "boot.bin" || cfg.LoadAddr != 0x7c00 || cfg.Entry != 0x7c00 {
		t.Fatalf("cfg = %+v", cfg)
	}
	if cfg.SerialPort != 0x2f8 || !cfg.Strict || time.Duration(cfg.Timeout) != 5*time.Second {
		t.Fatalf("cfg = %+v", cfg)
	}
	if cfg.Timeslice != "run.ts" || cfg.Trace != "" {
		t.Fatalf("cfg = %+v", cfg)
	}
}

func TestParseConfigRejects(t *testing.T) {
	tests := map[string]string{
		"unknown key":    "memroy: 1M\n",
		"bad duration":   "timeout: soon\n",
		"unaligned":      "memory: 1000\n",
		"load past end":  "memory: 64K\nload_addr: 0x20000\n",
		"entry too high": "entry: 0x10000\n",
	}
	for name, doc := range tests {
		cfg := defaultConfig()
		if err := parseConfig([]byte(doc), &cfg); err == nil {
			t.Errorf("%s: accepted %q", name, doc)
		}
	}
}

func TestLoadConfigEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.yaml")
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := loadConfig(path)
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg != defaultConfig() {
		t.Fatalf("cfg = %+v, want defaults", cfg)
	}
}

func TestPlainWriter(t *testing.T) {
	var out bytes.Buffer
	w := newPlainWriter(&out)

	if _, err := w.Write([]byte("\x1b[1mbo")); err != nil {
		t.Fatal(err)
	}
	if out.Len() != 0 {
		t.Fatalf("partial line written: %q", out.String())
	}
	if _, err := w.Write([]byte("ld\x1b[0m\nnext")); err != nil {
		t.Fatal(err)
	}
	if err := w.Flush(); err != nil {
		t.Fatal(err)
	}
	if got := out.String(); got != "bold\nnext" {
		t.Fatalf("output = %q", got)
	}
	if strings.Contains(out.String(), "\x1b") {
		t.Fatal("escape sequence survived")
	}
}
