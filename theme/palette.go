package theme

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// RGB is one palette entry
type RGB [3]uint8

// Palette is an ordered color ramp
type Palette struct {
	Name   string
	Colors []RGB
}

// LoadGPL reads a GIMP palette file
func LoadGPL(path string) (*Palette, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	p, err := ParseGPL(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return p, nil
}

// ParseGPL decodes the GIMP palette format: a header, optional Name and
// Columns attributes, '#' comments and one "R G B [label]" row per color.
// Rows that are not three channel values in 0-255 are rejected.
func ParseGPL(r io.Reader) (*Palette, error) {
	p := &Palette{}
	sc := bufio.NewScanner(r)
	for n := 1; sc.Scan(); n++ {
		line := strings.TrimSpace(sc.Text())
		if name, ok := strings.CutPrefix(line, "Name:"); ok {
			p.Name = strings.TrimSpace(name)
			continue
		}
		if isGPLMeta(line) {
			continue
		}
		c, err := parseRGB(strings.Fields(line))
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", n, err)
		}
		p.Colors = append(p.Colors, c)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if len(p.Colors) == 0 {
		return nil, fmt.Errorf("no colors in palette")
	}
	return p, nil
}

func isGPLMeta(line string) bool {
	return line == "" ||
		strings.HasPrefix(line, "#") ||
		strings.HasPrefix(line, "GIMP Palette") ||
		strings.HasPrefix(line, "Columns:")
}

func parseRGB(fields []string) (RGB, error) {
	var c RGB
	if len(fields) < len(c) {
		return c, fmt.Errorf("want R G B, got %q", strings.Join(fields, " "))
	}
	for i := range c {
		v, err := strconv.ParseUint(fields[i], 10, 8)
		if err != nil {
			return c, fmt.Errorf("channel %d: %w", i, err)
		}
		c[i] = uint8(v)
	}
	return c, nil
}

// LoadOrDefault loads the palette at path, falling back to the built-in
// one when path is empty or unreadable
func LoadOrDefault(path string) (*Palette, error) {
	if path == "" {
		return DefaultPalette(), nil
	}
	p, err := LoadGPL(path)
	if err != nil {
		return DefaultPalette(), fmt.Errorf("load palette: %w", err)
	}
	return p, nil
}

// DefaultPalette is a plasma-like ramp from deep purple to yellow
func DefaultPalette() *Palette {
	return &Palette{
		Name: "plasma",
		Colors: []RGB{
			{13, 8, 135},
			{84, 2, 163},
			{139, 10, 165},
			{185, 50, 137},
			{219, 92, 104},
			{244, 136, 73},
			{254, 188, 43},
			{240, 249, 33},
		},
	}
}

// Lookup blends the two entries either side of norm, clamped to [0, 1]
func (p *Palette) Lookup(norm float64) RGB {
	last := len(p.Colors) - 1
	pos := min(max(norm, 0), 1) * float64(last)
	i := min(int(pos), last)
	if i == last {
		return p.Colors[last]
	}

	t := pos - float64(i)
	from, to := p.Colors[i], p.Colors[i+1]
	var out RGB
	for ch := range out {
		d := float64(int(to[ch])-int(from[ch])) * t
		out[ch] = uint8(int(from[ch]) + int(d))
	}
	return out
}
