package widgets

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var sparks = []rune("▁▂▃▄▅▆▇█")

// RenderBar renders a horizontal level bar of width cells
func RenderBar(level uint8, width int, full, empty rune, color lipgloss.Color) string {
	if width <= 0 {
		return ""
	}
	lit := (int(level)*width + 127) / 255
	style := lipgloss.NewStyle().Foreground(color)
	return style.Render(strings.Repeat(string(full), lit)) + strings.Repeat(string(empty), width-lit)
}

// RenderSpark renders one channel as a single block whose height follows
// the level. Zero renders as a dot.
func RenderSpark(level uint8) string {
	if level == 0 {
		return "·"
	}
	return string(sparks[int(level)*(len(sparks)-1)/255])
}

// RenderChannels renders levels as rows of sparks, perRow channels per
// line, each row prefixed with its first one-based channel number
func RenderChannels(levels []byte, perRow int, color func(uint8) lipgloss.Color) string {
	if perRow <= 0 {
		perRow = 32
	}
	var lines []string
	for start := 0; start < len(levels); start += perRow {
		end := min(start+perRow, len(levels))
		var line strings.Builder
		fmt.Fprintf(&line, "%3d ", start+1)
		for _, v := range levels[start:end] {
			s := RenderSpark(v)
			if color != nil {
				s = lipgloss.NewStyle().Foreground(color(v)).Render(s)
			}
			line.WriteString(s)
		}
		lines = append(lines, line.String())
	}
	return strings.Join(lines, "\n")
}

// RenderKeyHelp formats key bindings in a friendly way
func RenderKeyHelp(sections []KeySection) string {
	var lines []string
	for _, sec := range sections {
		if sec.Title != "" {
			lines = append(lines, sec.Title)
		}
		for _, k := range sec.Keys {
			lines = append(lines, fmt.Sprintf("  %-12s %s", k.Key, k.Desc))
		}
	}
	return strings.Join(lines, "\n")
}

// KeySection groups related key bindings
type KeySection struct {
	Title string
	Keys  []KeyBinding
}

// KeyBinding is a single key and its description
type KeyBinding struct {
	Key  string
	Desc string
}
