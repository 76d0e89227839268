// Package tui is the interactive explore view: a parameter list, the current
// layout's panels and keys for fresh and continued runs.
package tui

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/san-kum/fmuexplore/internal/params"
	"github.com/san-kum/fmuexplore/internal/plot"
	"github.com/san-kum/fmuexplore/internal/session"
)

var (
	cyan    = lipgloss.NewStyle().Foreground(lipgloss.Color("86"))
	white   = lipgloss.NewStyle().Foreground(lipgloss.Color("255"))
	dim     = lipgloss.NewStyle().Foreground(lipgloss.Color("242"))
	dimmer  = lipgloss.NewStyle().Foreground(lipgloss.Color("238"))
	green   = lipgloss.NewStyle().Foreground(lipgloss.Color("82"))
	yellow  = lipgloss.NewStyle().Foreground(lipgloss.Color("220"))
	magenta = lipgloss.NewStyle().Foreground(lipgloss.Color("213"))
)

type runDoneMsg struct {
	res *session.Result
	err error
}

type explorer struct {
	ctx      context.Context
	sess     *session.Session
	canvas   *plot.Canvas
	layouts  []string
	layout   int
	panel    int
	duration float64

	entries []params.Entry
	cursor  int
	editing bool
	editBuf string

	running bool
	status  string
	failed  bool

	width  int
	height int
}

// NewExplore builds the explore model. The session must render into canvas.
func NewExplore(ctx context.Context, s *session.Session, canvas *plot.Canvas, duration float64) *explorer {
	m := &explorer{
		ctx:      ctx,
		sess:     s,
		canvas:   canvas,
		layouts:  s.Layouts(),
		duration: duration,
		entries:  s.Entries(),
		width:    100,
		height:   30,
		status:   "f fresh run",
	}
	if l, ok := s.Layout(); ok {
		for i, name := range m.layouts {
			if name == l.Name {
				m.layout = i
			}
		}
	}
	return m
}

func (m explorer) Init() tea.Cmd { return nil }

func (m explorer) run(mode session.Mode) tea.Cmd {
	ctx, s, d := m.ctx, m.sess, m.duration
	return func() tea.Msg {
		var (
			res *session.Result
			err error
		)
		if mode == session.ModeContinue {
			res, err = s.Continue(ctx, d)
		} else {
			res, err = s.Fresh(ctx, d)
		}
		return runDoneMsg{res: res, err: err}
	}
}

func (m explorer) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.editing {
			return m.editKey(msg)
		}
		return m.key(msg)
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil
	case runDoneMsg:
		m.running = false
		if msg.err != nil {
			m.failed = true
			m.status = msg.err.Error()
			return m, nil
		}
		m.failed = false
		m.status = fmt.Sprintf("%s run [%g, %g], %d samples", msg.res.Mode, msg.res.Start, msg.res.Stop, msg.res.Table.Len())
		return m, nil
	}
	return m, nil
}

func (m explorer) key(msg tea.KeyMsg) (explorer, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "f", "c":
		if m.running {
			return m, nil
		}
		m.running = true
		mode := session.ModeFresh
		if msg.String() == "c" {
			mode = session.ModeContinue
		}
		m.status = string(mode) + " running..."
		return m, m.run(mode)
	case "l":
		if len(m.layouts) == 0 {
			return m, nil
		}
		m.layout = (m.layout + 1) % len(m.layouts)
		m.selectLayout()
	case "tab", "right":
		if l, ok := m.sess.Layout(); ok && len(l.Panels) > 0 {
			m.panel = (m.panel + 1) % len(l.Panels)
		}
	case "shift+tab", "left":
		if l, ok := m.sess.Layout(); ok && len(l.Panels) > 0 {
			m.panel = (m.panel - 1 + len(l.Panels)) % len(l.Panels)
		}
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(m.entries)-1 {
			m.cursor++
		}
	case "enter":
		if len(m.entries) > 0 {
			m.editing = true
			m.editBuf = ""
		}
	case "+", "=":
		m.duration *= 2
	case "-":
		if m.duration > 0.01 {
			m.duration /= 2
		}
	}
	return m, nil
}

func (m *explorer) selectLayout() {
	name := m.layouts[m.layout]
	if err := m.sess.SelectLayout(name); err != nil {
		m.failed = true
		m.status = err.Error()
		return
	}
	m.panel = 0
	m.failed = false
	m.status = "layout " + name
}

func (m explorer) editKey(msg tea.KeyMsg) (explorer, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.editing = false
	case "backspace":
		if len(m.editBuf) > 0 {
			m.editBuf = m.editBuf[:len(m.editBuf)-1]
		}
	case "enter":
		m.editing = false
		m.apply()
	default:
		if s := msg.String(); len(s) == 1 && strings.ContainsAny(s, "0123456789.-e") {
			m.editBuf += s
		}
	}
	return m, nil
}

func (m *explorer) apply() {
	e := m.entries[m.cursor]
	v, err := strconv.ParseFloat(m.editBuf, 64)
	if err != nil {
		m.failed = true
		m.status = fmt.Sprintf("%s: %q is not a number", e.Name, m.editBuf)
		return
	}
	err = m.sess.SetParameters(map[string]any{e.Name: v})
	m.entries = m.sess.Entries()
	if err != nil {
		m.failed = true
		m.status = err.Error()
		return
	}
	m.failed = false
	m.status = fmt.Sprintf("%s = %g", e.Name, v)
}

func (m explorer) View() string {
	var b strings.Builder

	title := "no layout"
	var panel string
	if l, ok := m.sess.Layout(); ok {
		title = l.Name
		if m.panel < len(l.Panels) {
			panel = m.canvas.RenderPanel(l.Panels[m.panel].ID)
		}
	}

	b.WriteString("\n  " + cyan.Render(m.sess.Model().Name()) + "  " + dim.Render(title))
	b.WriteString("  " + dimmer.Render(fmt.Sprintf("t=%g  step=%g", m.sess.Clock(), m.duration)) + "\n")
	b.WriteString(dimmer.Render("  "+strings.Repeat("─", 60)) + "\n\n")

	left := m.viewParams()
	right := plot.Panel.Render(panel)
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, left, "  ", right))
	b.WriteString("\n\n")

	switch {
	case m.running:
		b.WriteString("  " + yellow.Render(m.status))
	case m.failed:
		b.WriteString("  " + magenta.Render(m.status))
	default:
		b.WriteString("  " + green.Render(m.status))
	}
	b.WriteString("\n\n")
	b.WriteString(dim.Render("  f fresh  c continue  l layout  ←→ panel  ↑↓ select  enter edit  +/- step  q quit") + "\n")
	return b.String()
}

func (m explorer) viewParams() string {
	var b strings.Builder
	rows := m.height - 12
	if rows < 5 {
		rows = 5
	}
	first := 0
	if m.cursor >= rows {
		first = m.cursor - rows + 1
	}
	for i := first; i < len(m.entries) && i < first+rows; i++ {
		e := m.entries[i]
		val := fmt.Sprintf("%8v", e.Value)
		if m.editing && i == m.cursor {
			val = fmt.Sprintf("%8s", m.editBuf+"▋")
		}
		if i == m.cursor {
			b.WriteString(cyan.Render("▸ ") + white.Render(fmt.Sprintf("%-18s", e.Name)) + magenta.Render(val) + "\n")
		} else {
			b.WriteString("  " + dim.Render(fmt.Sprintf("%-18s", e.Name)) + dim.Render(val) + "\n")
		}
	}
	return b.String()
}

// Run starts the explore program on the alternate screen.
func Run(ctx context.Context, s *session.Session, canvas *plot.Canvas, duration float64) error {
	p := tea.NewProgram(NewExplore(ctx, s, canvas, duration), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	return err
}
