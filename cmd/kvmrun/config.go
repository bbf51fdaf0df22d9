package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Size is a byte count that accepts K, M and G suffixes in YAML.
type Size uint64

func parseSize(s string) (Size, error) {
	s = strings.TrimSpace(s)
	mult := uint64(1)
	switch {
	case strings.HasSuffix(s, "G"):
		mult, s = 1<<30, strings.TrimSuffix(s, "G")
	case strings.HasSuffix(s, "M"):
		mult, s = 1<<20, strings.TrimSuffix(s, "M")
	case strings.HasSuffix(s, "K"):
		mult, s = 1<<10, strings.TrimSuffix(s, "K")
	}
	n, err := strconv.ParseUint(s, 0, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid size %q: %w", s, err)
	}
	if n > ^uint64(0)/mult {
		return 0, fmt.Errorf("size %q overflows", s)
	}
	return Size(n * mult), nil
}

// UnmarshalYAML implements yaml.Unmarshaler for Size.
func (s *Size) UnmarshalYAML(value *yaml.Node) error {
	var str string
	if err := value.Decode(&str); err != nil {
		return err
	}
	v, err := parseSize(str)
	if err != nil {
		return err
	}
	*s = v
	return nil
}

func (s Size) String() string {
	switch {
	case s != 0 && s%(1<<30) == 0:
		return fmt.Sprintf("%dG", s>>30)
	case s != 0 && s%(1<<20) == 0:
		return fmt.Sprintf("%dM", s>>20)
	case s != 0 && s%(1<<10) == 0:
		return fmt.Sprintf("%dK", s>>10)
	}
	return strconv.FormatUint(uint64(s), 10)
}

// Set implements flag.Value.
func (s *Size) Set(v string) error {
	parsed, err := parseSize(v)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// Duration wraps time.Duration for YAML unmarshaling.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler for Duration.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	if s == "" {
		return nil
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// Config describes one guest run. Flags given on the command line override
// the values loaded from a config file.
type Config struct {
	Memory     Size     `yaml:"memory"`
	Image      string   `yaml:"image"`
	LoadAddr   uint64   `yaml:"load_addr"`
	Entry      uint64   `yaml:"entry"`
	SerialPort uint16   `yaml:"serial_port"`
	IRQChip    bool     `yaml:"irqchip"`
	Strict     bool     `yaml:"strict"`
	Screen     bool     `yaml:"screen"`
	Timeout    Duration `yaml:"timeout"`

	// Timeslice and Trace are output paths for the timing and debug logs.
	Timeslice string `yaml:"timeslice"`
	Trace     string `yaml:"trace"`
}

func defaultConfig() Config {
	return Config{
		Memory:     1 << 20,
		LoadAddr:   0x1000,
		Entry:      0x1000,
		SerialPort: 0x3f8,
	}
}

// maxConfigSize bounds how much of a config file is read.
const maxConfigSize = 1 << 20

func loadConfig(path string) (Config, error) {
	cfg := defaultConfig()

	info, err := os.Stat(path)
	if err != nil {
		return cfg, err
	}
	if info.Size() > maxConfigSize {
		return cfg, fmt.Errorf("config %s too large (%d bytes)", path, info.Size())
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := parseConfig(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}

func parseConfig(data []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		// An empty document leaves the defaults in place.
		if errors.Is(err, io.EOF) {
			return nil
		}
		return err
	}
	return cfg.validate()
}

func (c *Config) validate() error {
	if c.Memory == 0 || c.Memory%4096 != 0 {
		return fmt.Errorf("memory %s is not a positive multiple of 4K", c.Memory)
	}
	if c.LoadAddr >= uint64(c.Memory) {
		return fmt.Errorf("load_addr %#x outside %s of memory", c.LoadAddr, c.Memory)
	}
	if c.Entry > 0xffff {
		return fmt.Errorf("entry %#x is beyond the first real mode segment", c.Entry)
	}
	return nil
}
