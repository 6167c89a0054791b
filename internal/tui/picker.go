// Package tui provides an interactive terminal picker for enabling and
// disabling renditions.
package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/agleyzer/renditionctl/internal/events"
	"github.com/agleyzer/renditionctl/internal/rendition"
)

// EventMsg carries a rendition event into the picker.
type EventMsg events.Event

type refreshMsg struct{}

// Picker lists representations and toggles them.
type Picker struct {
	lister       rendition.Lister
	title        string
	reps         []rendition.Representation
	lastEvent    string
	cursor       int
	scrollOffset int
	visibleRows  int
	width        int
	height       int
	quitting     bool
}

// NewPicker creates a picker over the representations of lister.
func NewPicker(lister rendition.Lister, title string) *Picker {
	p := &Picker{
		lister:      lister,
		title:       title,
		width:       80,
		height:      24,
		visibleRows: 15,
	}
	p.refresh()
	return p
}

// Run shows the picker until the user quits or ctx is done. Events on bus
// are shown as they happen.
func Run(ctx context.Context, picker *Picker, bus *events.Bus) error {
	program := tea.NewProgram(picker, tea.WithAltScreen(), tea.WithContext(ctx))

	send := func(e events.Event) { program.Send(EventMsg(e)) }
	defer bus.Subscribe(events.RenditionEnabled, send)()
	defer bus.Subscribe(events.RenditionDisabled, send)()

	if _, err := program.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("rendition picker error: %w", err)
	}
	return nil
}

func (p *Picker) Init() tea.Cmd {
	return nil
}

func (p *Picker) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			p.quitting = true
			return p, tea.Quit

		case "up", "k":
			if p.cursor > 0 {
				p.cursor--
				p.adjustScroll()
			}

		case "down", "j":
			if p.cursor < len(p.reps)-1 {
				p.cursor++
				p.adjustScroll()
			}

		case " ", "x":
			if p.cursor < len(p.reps) {
				return p, toggle(p.reps[p.cursor])
			}

		case "r":
			p.refresh()
		}

	case EventMsg:
		info := msg.Metadata.RenditionInfo
		p.lastEvent = fmt.Sprintf("%s %s", msg.Type, info.ID)
		if msg.Metadata.Cause != "" {
			p.lastEvent += " (" + msg.Metadata.Cause + ")"
		}
		p.refresh()

	case refreshMsg:
		p.refresh()

	case tea.WindowSizeMsg:
		p.width = msg.Width
		p.height = msg.Height
		p.visibleRows = max(msg.Height-12, 3)
		p.adjustScroll()
	}

	return p, nil
}

// toggle flips a representation outside the update loop: SetEnabled emits
// events synchronously and those are sent back into the program.
func toggle(rep rendition.Representation) tea.Cmd {
	return func() tea.Msg {
		rep.SetEnabled(!rep.Enabled())
		return refreshMsg{}
	}
}

func (p *Picker) refresh() {
	p.reps = p.lister.List()
	if p.cursor >= len(p.reps) {
		p.cursor = max(len(p.reps)-1, 0)
	}
	p.adjustScroll()
}

func (p *Picker) adjustScroll() {
	if p.cursor < p.scrollOffset {
		p.scrollOffset = p.cursor
	}
	if p.cursor >= p.scrollOffset+p.visibleRows {
		p.scrollOffset = p.cursor - p.visibleRows + 1
	}
}

func (p *Picker) View() string {
	if p.quitting {
		return ""
	}

	w := clamp(p.width-4, 60, 100)

	var b strings.Builder

	title := titleStyle.Render("renditionctl")
	subtitle := dimStyle.Render(" - " + p.title)
	b.WriteString(headerStyle.Width(w).Render(title + subtitle))
	b.WriteString("\n\n")

	if len(p.reps) == 0 {
		b.WriteString(dimStyle.Render("  no selectable renditions"))
		b.WriteString("\n")
	}

	if p.scrollOffset > 0 {
		b.WriteString(dimStyle.Render("  ↑ more renditions above"))
		b.WriteString("\n")
	}

	enabled := 0
	for _, rep := range p.reps {
		if rep.Enabled() {
			enabled++
		}
	}

	end := min(p.scrollOffset+p.visibleRows, len(p.reps))
	for i := p.scrollOffset; i < end; i++ {
		b.WriteString(renderRow(p.reps[i], i == p.cursor))
		b.WriteString("\n")
	}

	if end < len(p.reps) {
		b.WriteString(dimStyle.Render("  ↓ more renditions below"))
		b.WriteString("\n")
	}
	b.WriteString("\n")

	b.WriteString(dimStyle.Render(fmt.Sprintf("Enabled: %d/%d", enabled, len(p.reps))))
	b.WriteString("\n")
	if p.lastEvent != "" {
		b.WriteString(eventStyle.Render("Last event: " + p.lastEvent))
		b.WriteString("\n")
	}
	b.WriteString("\n")

	b.WriteString(helpStyle.Render(
		keyHelpStyle.Render("↑/↓") + " navigate  " +
			keyHelpStyle.Render("space") + " toggle  " +
			keyHelpStyle.Render("r") + " refresh  " +
			keyHelpStyle.Render("q") + " quit",
	))

	return contentStyle.Width(w).Render(b.String())
}

func renderRow(rep rendition.Representation, cursor bool) string {
	var b strings.Builder

	if cursor {
		b.WriteString(selectedStyle.Render("▸ "))
	} else {
		b.WriteString("  ")
	}

	if rep.Enabled() {
		b.WriteString(enabledStyle.Render("[✓] "))
	} else {
		b.WriteString(disabledStyle.Render("[ ] "))
	}

	quality := ""
	if rep.Height != nil {
		quality = fmt.Sprintf("%dp", *rep.Height)
	}
	b.WriteString(normalStyle.Render(fmt.Sprintf("%-6s", quality)))
	b.WriteString(" ")
	b.WriteString(normalStyle.Render(fmt.Sprintf("%-24s", rep.Codecs)))

	if rep.Bandwidth != nil {
		b.WriteString(dimStyle.Render(" • "))
		b.WriteString(dimStyle.Render(formatBandwidth(*rep.Bandwidth)))
	}

	b.WriteString(dimStyle.Render(" • " + rep.ID))

	return b.String()
}

func formatBandwidth(bw int) string {
	if bw >= 1000000 {
		return fmt.Sprintf("%.1f Mbps", float64(bw)/1000000)
	}
	if bw >= 1000 {
		return fmt.Sprintf("%.0f kbps", float64(bw)/1000)
	}
	return fmt.Sprintf("%d bps", bw)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
