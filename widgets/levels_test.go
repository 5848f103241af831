package widgets

import (
	"strings"
	"testing"

	"github.com/charmbracelet/lipgloss"
	"github.com/stretchr/testify/assert"
)

func TestRenderBar(t *testing.T) {
	bar := RenderBar(255, 10, '#', '.', lipgloss.Color("#ffffff"))
	assert.Equal(t, 10, lipgloss.Width(bar))
	assert.Equal(t, 10, strings.Count(bar, "#"))

	bar = RenderBar(0, 10, '#', '.', lipgloss.Color("#ffffff"))
	assert.Equal(t, strings.Repeat(".", 10), bar)

	bar = RenderBar(128, 10, '#', '.', lipgloss.Color("#ffffff"))
	assert.Equal(t, 5, strings.Count(bar, "#"))
	assert.Equal(t, 5, strings.Count(bar, "."))

	assert.Empty(t, RenderBar(255, 0, '#', '.', lipgloss.Color("#ffffff")))
}

func TestRenderSpark(t *testing.T) {
	assert.Equal(t, "·", RenderSpark(0))
	assert.Equal(t, "▁", RenderSpark(1))
	assert.Equal(t, "█", RenderSpark(255))
}

func TestRenderChannels(t *testing.T) {
	levels := make([]byte, 10)
	levels[0] = 255
	out := RenderChannels(levels, 4, nil)

	lines := strings.Split(out, "\n")
	assert.Equal(t, []string{
		"  1 █···",
		"  5 ····",
		"  9 ··",
	}, lines)
}

func TestRenderKeyHelp(t *testing.T) {
	out := RenderKeyHelp([]KeySection{
		{Title: "Desk", Keys: []KeyBinding{{Key: "s", Desc: "stop all"}}},
	})
	assert.Equal(t, "Desk\n  s            stop all", out)
}
