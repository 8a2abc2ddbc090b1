package overlay

import (
	"fmt"
	"math"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"dictate/session"
)

// Keys receives the gestures typed into the overlay.
type Keys interface {
	Key(k session.Key)
}

type KeysFunc func(session.Key)

func (f KeysFunc) Key(k session.Key) { f(k) }

type viewMsg session.ViewState
type tickMsg time.Time

const (
	tickInterval = 80 * time.Millisecond
	levelWidth   = 24
	// levelGain maps RMS levels of normal speech onto most of the bar.
	levelGain    = 8.0
)

var spinner = []string{"◐", "◓", "◑", "◒"}

var (
	recStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	busyStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	okStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	warnStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("208"))
	dimStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	helpStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("239"))
	boldHelpStyle = helpStyle.Bold(true)
	textStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("4"))
	modeStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Padding(0, 1)
	activeStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("0")).Background(lipgloss.Color("214")).Bold(true).Padding(0, 1)
	queuedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Underline(true).Padding(0, 1)
	levelOn       = lipgloss.NewStyle().Foreground(lipgloss.Color("160"))
	levelOff      = lipgloss.NewStyle().Foreground(lipgloss.Color("236"))
)

type model struct {
	keys    Keys
	view    session.ViewState
	frame   int
	level   float64
	width   int
	height  int
	trigger string
	version string
}

func newModel(keys Keys, trigger, version string) model {
	return model{
		keys:    keys,
		view:    session.ViewState{Phase: session.Idle, Enabled: true},
		trigger: trigger,
		version: version,
	}
}

func tick() tea.Cmd {
	return tea.Tick(tickInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m model) Init() tea.Cmd {
	return tick()
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tickMsg:
		m.frame++
		return m, tick()

	case viewMsg:
		v := session.ViewState(msg)
		if v.Phase == session.Recording {
			m.level = m.level*0.6 + v.Level*0.4
		} else {
			m.level = 0
		}
		m.view = v

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		if k, ok := m.gesture(msg); ok {
			return m, m.forward(k)
		}
	}
	return m, nil
}

// gesture maps a key press to a controller key.
func (m model) gesture(msg tea.KeyMsg) (session.Key, bool) {
	var k session.Key
	switch msg.Type {
	case tea.KeyEsc:
		k = session.KeyEsc
	case tea.KeyTab:
		k = session.KeyTab
	case tea.KeyShiftTab:
		k = session.KeyShiftTab
	case tea.KeyEnter:
		k = session.KeyEnter
	default:
		return 0, false
	}
	return k, accepts(m.view, k)
}

// forward delivers k off the UI goroutine.
func (m model) forward(k session.Key) tea.Cmd {
	keys := m.keys
	return func() tea.Msg {
		keys.Key(k)
		return nil
	}
}

func (m model) View() string {
	v := m.view
	var lines []string
	lines = append(lines, m.status())
	if v.Phase == session.Recording {
		lines = append(lines, levelBar(m.level, levelWidth))
		if v.NoVoice {
			lines = append(lines, warnStyle.Render("⚠ no voice detected"))
		}
	}
	if v.ModeBarVisible() {
		lines = append(lines, "", modeBar(v))
	}
	if v.Degraded {
		lines = append(lines, warnStyle.Render("raw transcript, processing failed"))
	}
	if v.Text != "" {
		width := m.width - 2
		if width < 20 {
			width = 60
		}
		lines = append(lines, "", textStyle.Width(width).Render(v.Text))
	}
	lines = append(lines, "", m.help())
	return lipgloss.NewStyle().PaddingLeft(1).Render(strings.Join(lines, "\n"))
}

func (m model) status() string {
	v := m.view
	spin := spinner[m.frame%len(spinner)]
	switch v.Phase {
	case session.Recording:
		return recStyle.Render(fmt.Sprintf("● REC %.1fs", float64(v.ElapsedRecordingMs)/1000))
	case session.Transcribing:
		return busyStyle.Render(spin + " transcribing")
	case session.Processing:
		return busyStyle.Render(fmt.Sprintf("%s %s", spin, v.CurrentModeLabel))
	case session.Interactive:
		return okStyle.Render("✓ inserted " + v.CurrentModeLabel)
	case session.Accepted:
		return okStyle.Render("✓ accepted")
	case session.Cancelled:
		if v.Failure != "" {
			return warnStyle.Render("✕ " + v.Failure)
		}
		return dimStyle.Render("✕ cancelled")
	}
	if !v.Enabled {
		return dimStyle.Render("○ PAUSED")
	}
	return dimStyle.Render("○ STANDBY")
}

func (m model) help() string {
	var parts []string
	switch {
	case m.view.ModeBarVisible():
		parts = append(parts,
			boldHelpStyle.Render("tab")+helpStyle.Render(" mode  "),
			boldHelpStyle.Render("enter")+helpStyle.Render(" accept  "),
			boldHelpStyle.Render("esc")+helpStyle.Render(" undo"))
	case !m.view.Phase.Resting():
		parts = append(parts, boldHelpStyle.Render("esc")+helpStyle.Render(" cancel"))
	case m.trigger != "":
		parts = append(parts, boldHelpStyle.Render(m.trigger)+helpStyle.Render(" to dictate"))
	}
	if m.version != "" {
		parts = append(parts, helpStyle.Render("   dictate "+m.version))
	}
	return strings.Join(parts, "")
}

// modeBar lists the cycle with the current mode highlighted.
func modeBar(v session.ViewState) string {
	cells := make([]string, len(v.Modes))
	for i, label := range v.Modes {
		switch {
		case i != v.ModeIndex:
			cells[i] = modeStyle.Render(label)
		case v.Rerun:
			cells[i] = queuedStyle.Render(label)
		default:
			cells[i] = activeStyle.Render(label)
		}
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, cells...)
}

func levelBar(level float64, width int) string {
	fill := int(math.Round(math.Min(math.Max(level*levelGain, 0), 1) * float64(width)))
	return levelOn.Render(strings.Repeat("█", fill)) + levelOff.Render(strings.Repeat("░", width-fill))
}

// TUI is the terminal overlay. OnStateChange may be called from any
// goroutine once Run has started.
type TUI struct {
	program *tea.Program
}

func NewTUI(keys Keys, trigger, version string, opts ...tea.ProgramOption) *TUI {
	return &TUI{program: tea.NewProgram(newModel(keys, trigger, version), opts...)}
}

// Run blocks until the user quits with Ctrl+C or Quit is called.
func (t *TUI) Run() error {
	_, err := t.program.Run()
	return err
}

func (t *TUI) OnStateChange(v session.ViewState) {
	t.program.Send(viewMsg(v))
}

func (t *TUI) Quit() {
	t.program.Quit()
}
