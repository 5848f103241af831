package tui

import (
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"go-lightdesk/engine"
	"go-lightdesk/midi"
	"go-lightdesk/output"
	"go-lightdesk/source"
	"go-lightdesk/theme"
	"go-lightdesk/widgets"
)

const refreshRate = 100 * time.Millisecond

// Desk is what the model controls
type Desk struct {
	Scheduler *engine.Scheduler
	Monitor   *output.Monitor
	Sliders   *source.Sliders
	Functions []engine.Function
	DeviceMgr *midi.DeviceManager // may be nil
	FadeOutMs int
}

type Model struct {
	Desk     Desk
	Theme    *theme.Theme
	updates  chan struct{}
	activity *ccActivity
	selected int
	status   string
	quitting bool
}

// ccActivity is the last control moved on any fader box. Written from the
// MIDI routing goroutines, read by View.
type ccActivity struct {
	mu   sync.Mutex
	last midi.CCEvent
	seen bool
}

type UpdateMsg struct{}

type RefreshMsg time.Time

// NewModel creates the model and subscribes to running set changes
func NewModel(desk Desk, th *theme.Theme) Model {
	m := Model{
		Desk:    desk,
		Theme:   th,
		updates:  make(chan struct{}, 1),
		activity: &ccActivity{},
	}
	updates := m.updates
	desk.Scheduler.OnFunctionListChanged(func() {
		select {
		case updates <- struct{}{}:
		default:
		}
	})
	return m
}

// RecordCC notes a control change for display. Safe to call from any
// goroutine.
func (m Model) RecordCC(ev midi.CCEvent) {
	m.activity.mu.Lock()
	defer m.activity.mu.Unlock()
	m.activity.last = ev
	m.activity.seen = true
}

func (m Model) lastCC() (midi.CCEvent, bool) {
	m.activity.mu.Lock()
	defer m.activity.mu.Unlock()
	return m.activity.last, m.activity.seen
}

func ListenForUpdates(updates <-chan struct{}) tea.Cmd {
	return func() tea.Msg {
		<-updates
		return UpdateMsg{}
	}
}

func refresh() tea.Cmd {
	return tea.Tick(refreshRate, func(t time.Time) tea.Msg {
		return RefreshMsg(t)
	})
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(
		ListenForUpdates(m.updates),
		refresh(),
	)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	s := m.Desk.Scheduler

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch key := msg.String(); key {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit

		case "p":
			if s.Running() {
				s.Stop()
				m.status = "output paused"
			} else {
				s.Start()
				m.status = "output running"
			}

		case "s":
			s.StopAllFunctions()
			m.status = "stop all"

		case "f":
			s.FadeAndStopAll(m.Desk.FadeOutMs)
			m.status = fmt.Sprintf("fade out %dms", m.Desk.FadeOutMs)

		case "+", "=":
			gm := s.GrandMaster()
			gm.SetValue(uint8(min(255, int(gm.Value())+5)))

		case "-", "_":
			gm := s.GrandMaster()
			gm.SetValue(uint8(max(0, int(gm.Value())-5)))

		case "1", "2", "3", "4", "5", "6", "7", "8", "9":
			idx := int(key[0] - '1')
			if idx < len(m.Desk.Functions) {
				f := m.Desk.Functions[idx]
				s.StartFunction(f)
				m.status = "start " + f.Name()
			}

		case "left", "h":
			if m.selected > 0 {
				m.selected--
			}

		case "right", "l":
			if m.Desk.Sliders != nil && m.selected < m.Desk.Sliders.Len()-1 {
				m.selected++
			}

		case "up", "k":
			m.nudge(5)
		case "down", "j":
			m.nudge(-5)
		case "K", "pgup":
			m.nudge(255)
		case "J", "pgdown":
			m.nudge(-255)
		}

	case UpdateMsg:
		return m, ListenForUpdates(m.updates)

	case RefreshMsg:
		return m, refresh()
	}

	return m, nil
}

func (m Model) nudge(delta int) {
	if m.Desk.Sliders != nil {
		m.Desk.Sliders.Nudge(m.selected, delta)
	}
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}

	s := m.Desk.Scheduler
	th := m.Theme

	// Styles
	headerStyle := lipgloss.NewStyle().Foreground(th.Accent())
	dimStyle := lipgloss.NewStyle().Foreground(th.Muted())
	activeStyle := lipgloss.NewStyle().Foreground(th.Active())
	cursorStyle := lipgloss.NewStyle().Foreground(th.Cursor())

	state := "STOP"
	if s.Running() {
		state = "RUN"
	}
	gm := s.GrandMaster().Value()

	var devices []string
	if m.Desk.DeviceMgr != nil {
		for id := range m.Desk.DeviceMgr.Controllers() {
			devices = append(devices, id)
		}
		slices.Sort(devices)
	}
	deviceStatus := ""
	if len(devices) > 0 {
		deviceStatus = "  midi:" + strings.Join(devices, ",")
	}

	header := headerStyle.Render(fmt.Sprintf("go-lightdesk  %s  %dHz  tick:%d  GM %3d%s",
		state, s.Frequency(), s.Ticks(), gm, deviceStatus))

	var out strings.Builder
	out.WriteString("\n")
	out.WriteString(header)
	out.WriteString("\n")
	out.WriteString(widgets.RenderBar(gm, 32, th.Symbols.BarFull, th.Symbols.BarEmpty, th.Warning()))
	out.WriteString("\n")
	if ev, ok := m.lastCC(); ok {
		out.WriteString(dimStyle.Render(fmt.Sprintf("last cc: %s ch:%d cc:%d value:%d",
			ev.Controller, ev.Channel+1, ev.CC, ev.Value)))
		out.WriteString("\n")
	}
	out.WriteString("\n")

	// Functions
	running := s.RunningFunctionNames()
	out.WriteString(dimStyle.Render(fmt.Sprintf("functions (%d running)", s.RunningFunctions())))
	out.WriteString("\n")
	for i, f := range m.Desk.Functions {
		sym, style := th.Symbols.Idle, dimStyle
		if slices.Contains(running, f.Name()) {
			sym, style = th.Symbols.Running, activeStyle
		}
		label := fmt.Sprintf(" %c %s", sym, f.Name())
		if i < 9 {
			label = fmt.Sprintf("%d%s", i+1, label)
		} else {
			label = " " + label
		}
		out.WriteString(style.Render(label))
		out.WriteString("\n")
	}
	out.WriteString("\n")

	// Sliders
	if sl := m.Desk.Sliders; sl != nil && sl.Len() > 0 {
		out.WriteString(dimStyle.Render("sliders"))
		out.WriteString("\n")
		for i, n := 0, sl.Len(); i < n; i++ {
			cursor := " "
			if i == m.selected {
				cursor = cursorStyle.Render(string(th.Symbols.Cursor))
			}
			level := sl.Level(i)
			fmt.Fprintf(&out, "%s %3d ", cursor, sl.Slider(i).Address+1)
			out.WriteString(widgets.RenderBar(level, 16, th.Symbols.BarFull, th.Symbols.BarEmpty, th.Level(level)))
			fmt.Fprintf(&out, " %3d\n", level)
		}
		out.WriteString("\n")
	}

	// Output
	if m.Desk.Monitor != nil {
		frame := m.Desk.Monitor.Snapshot()
		if len(frame) > 64 {
			frame = frame[:64]
		}
		out.WriteString(dimStyle.Render("output"))
		out.WriteString("\n")
		out.WriteString(widgets.RenderChannels(frame, 32, th.Level))
		out.WriteString("\n\n")
	}

	help := dimStyle.Render("1-9:start  s:stop all  f:fade out  h/l:slider  j/k:level  +/-:GM  p:pause  q:quit")
	out.WriteString(help)
	if m.status != "" {
		out.WriteString("\n")
		out.WriteString(activeStyle.Render(m.status))
	}

	return out.String()
}
