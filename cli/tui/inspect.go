package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/justapithecus/pngdoctor/doctor"
)

// InspectModel is a Bubble Tea model for inspect views.
type InspectModel struct {
	viewType string
	data     any
	width    int
	height   int
	offset   int
	quitting bool
}

// NewInspectModel creates a new inspect model.
func NewInspectModel(viewType string, data any) InspectModel {
	return InspectModel{
		viewType: viewType,
		data:     data,
	}
}

// Init implements tea.Model.
func (m InspectModel) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m InspectModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Quit):
			m.quitting = true
			return m, tea.Quit
		case key.Matches(msg, keys.Up):
			if m.offset > 0 {
				m.offset--
			}
		case key.Matches(msg, keys.Down):
			m.offset++
		}
	}

	return m, nil
}

// View implements tea.Model.
func (m InspectModel) View() string {
	if m.quitting {
		return ""
	}

	var content string
	switch m.viewType {
	case ViewInspectReport:
		content = m.renderInspectReport()
	default:
		content = fmt.Sprintf("Unknown view type: %s", m.viewType)
	}

	help := HelpStyle.Render("↑/↓ scroll • q quit")
	return m.scroll(content) + "\n" + help
}

// scroll drops the first offset lines when the content is taller than
// the window.
func (m InspectModel) scroll(content string) string {
	if m.height <= 0 {
		return content
	}
	lines := strings.Split(content, "\n")
	visible := max(m.height-2, 1)
	if len(lines) <= visible {
		return content
	}
	start := min(m.offset, len(lines)-visible)
	return strings.Join(lines[start:start+visible], "\n")
}

func (m InspectModel) renderInspectReport() string {
	data, ok := m.data.(*doctor.Report)
	if !ok {
		return "Invalid data type for inspect_report"
	}

	var b strings.Builder
	b.WriteString(TitleStyle.Render("Stream Report"))
	b.WriteString("\n")

	rows := [][]string{
		{"Source", data.Source},
		{"Pass ID", data.PassID},
		{"Outcome", string(data.Outcome)},
		{"Mode", data.Mode},
		{"Policy", data.Policy},
		{"Started At", data.StartedAt.Format("2006-01-02 15:04:05")},
		{"Duration", fmt.Sprintf("%dms", data.DurationMs)},
	}
	if data.BytesRead > 0 {
		rows = append(rows, []string{"Bytes Read", fmt.Sprintf("%d", data.BytesRead)})
	}
	if data.Decision != nil {
		rows = append(rows, []string{"Decision", data.Decision.Action})
		if len(data.Decision.Ignore) > 0 {
			rows = append(rows, []string{"Ignore", strings.Join(data.Decision.Ignore, ", ")})
		}
	}
	if data.Stopped {
		rows = append(rows, []string{"Stopped", "fail-fast"})
	}

	for _, row := range rows {
		label := LabelStyle.Render(row[0] + ":")
		value := ValueStyle.Render(row[1])
		if row[0] == "Outcome" || row[0] == "Decision" {
			value = StateStyle(row[1]).Render(row[1])
		}
		fmt.Fprintf(&b, "%s %s\n", label, value)
	}

	if data.FramingError != "" {
		b.WriteString("\n")
		b.WriteString(ErrorStyle.Render("Framing error: " + data.FramingError))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(SectionStyle.Render(fmt.Sprintf("Chunks (%d)", len(data.Chunks))))
	b.WriteString("\n")
	for _, c := range data.Chunks {
		offset := "-"
		if c.Offset >= 0 {
			offset = fmt.Sprintf("%d", c.Offset)
		}
		fmt.Fprintf(&b, "%s %s %s\n",
			MutedStyle.Render(fmt.Sprintf("%4d", c.Ordinal)),
			ValueStyle.Render(fmt.Sprintf("%-4s", c.Type)),
			MutedStyle.Render(fmt.Sprintf("len=%d off=%s", c.Length, offset)))
	}

	b.WriteString("\n")
	b.WriteString(SectionStyle.Render(fmt.Sprintf("Violations (%d)", len(data.Violations))))
	b.WriteString("\n")
	if len(data.Violations) == 0 {
		b.WriteString(SuccessStyle.Render("none"))
		b.WriteString("\n")
	}
	for _, v := range data.Violations {
		style := WarningStyle
		if v.Blocking {
			style = ErrorStyle
		}
		fmt.Fprintf(&b, "%s %s\n",
			style.Render(fmt.Sprintf("[%s]", v.Category)),
			ValueStyle.Render(v.Message))
	}

	return BoxStyle.Render(strings.TrimRight(b.String(), "\n"))
}

// RenderInspectStatic renders inspect data without full TUI (for fallback).
func RenderInspectStatic(viewType string, data any) string {
	model := NewInspectModel(viewType, data)
	model.width = 80
	return lipgloss.NewStyle().Padding(1, 2).Render(model.View())
}
