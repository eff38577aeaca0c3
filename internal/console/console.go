// Package console mirrors log entries to a terminal, coloured by kind.
package console

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"github.com/runnerr0/runtimelog/internal/logstore"
)

// Colours by entry kind.
const (
	ColorLive   = lipgloss.Color("#4ade80")
	ColorSaved  = lipgloss.Color("#60a5fa")
	ColorTick   = lipgloss.Color("#a3a3a3")
	ColorError  = lipgloss.Color("#f87171")
	ColorManual = lipgloss.Color("#facc15")
	ColorStop   = lipgloss.Color("#fb923c")
)

// Mirror writes formatted entries to w.
type Mirror struct {
	mu       sync.Mutex
	w        io.Writer
	renderer *lipgloss.Renderer
}

// New returns a Mirror writing to w. With color false all styling is
// stripped; otherwise the profile is detected from w.
func New(w io.Writer, color bool) *Mirror {
	r := lipgloss.NewRenderer(w)
	if !color {
		r.SetColorProfile(termenv.Ascii)
	}
	return &Mirror{w: w, renderer: r}
}

// ForceColor renders with a true-colour profile regardless of w.
func (m *Mirror) ForceColor() {
	m.renderer.SetColorProfile(termenv.TrueColor)
}

// Live writes a freshly dispatched entry. Ticks print as "....".
func (m *Mirror) Live(e logstore.Entry, _ string) error {
	return m.write(m.Style(e, false).Render(FormatLive(e)))
}

// Saved writes a stored entry the way an export line looks.
func (m *Mirror) Saved(e logstore.Entry) error {
	return m.write(m.Style(e, true).Render(logstore.FormatLine(e)))
}

// Header writes a page separator.
func (m *Mirror) Header(pageKey string) error {
	style := m.renderer.NewStyle().Bold(true)
	return m.write(style.Render("--- PAGE: " + pageKey + " ---"))
}

func (m *Mirror) write(line string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, err := fmt.Fprintln(m.w, line)
	return err
}

// Style returns the lipgloss style for e. old marks entries loaded from
// storage rather than logged live.
func (m *Mirror) Style(e logstore.Entry, old bool) lipgloss.Style {
	s := m.renderer.NewStyle().Foreground(ColorFor(e, old))
	if e.IsStop() {
		s = s.Bold(true)
	}
	return s
}

// ColorFor picks the colour for e. Later rules win: stop over manual over
// error over tick over saved over live.
func ColorFor(e logstore.Entry, old bool) lipgloss.Color {
	c := ColorLive
	if old {
		c = ColorSaved
	}
	if e.IsTick() {
		c = ColorTick
	}
	lower := strings.ToLower(e.Text)
	if strings.Contains(lower, "error") {
		c = ColorError
	}
	if strings.Contains(lower, "manual") {
		c = ColorManual
	}
	if e.IsStop() {
		c = ColorStop
	}
	return c
}

// FormatLive renders a live line: "[datetime] [time] text", with "...."
// in place of the text for ticks.
func FormatLive(e logstore.Entry) string {
	dt := ""
	if e.Datetime != "" {
		dt = "[" + e.Datetime + "] "
	}
	if e.IsTick() {
		return dt + "[" + e.Time + "] ...."
	}
	return dt + "[" + e.Time + "] " + e.Text
}
