package tui

import (
	"fmt"
	"slices"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/justapithecus/pngdoctor/cli/reader"
)

// StatsModel is a Bubble Tea model for stats views.
type StatsModel struct {
	viewType string
	data     any
	width    int
	height   int
	quitting bool
}

// NewStatsModel creates a new stats model.
func NewStatsModel(viewType string, data any) StatsModel {
	return StatsModel{
		viewType: viewType,
		data:     data,
	}
}

// Init implements tea.Model.
func (m StatsModel) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m StatsModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		if key.Matches(msg, keys.Quit) {
			m.quitting = true
			return m, tea.Quit
		}
	}

	return m, nil
}

// View implements tea.Model.
func (m StatsModel) View() string {
	if m.quitting {
		return ""
	}

	var content string
	switch m.viewType {
	case ViewStatsReports:
		content = m.renderStatsReports()
	case ViewStatsMetrics:
		content = m.renderStatsMetrics()
	default:
		content = fmt.Sprintf("Unknown view type: %s", m.viewType)
	}

	help := HelpStyle.Render("Press q or Ctrl+C to quit")
	return content + "\n" + help
}

func (m StatsModel) renderStatsReports() string {
	data, ok := m.data.(*reader.ReportStats)
	if !ok {
		return "Invalid data type for stats_reports"
	}

	var b strings.Builder
	b.WriteString(TitleStyle.Render("Report Statistics"))
	b.WriteString("\n\n")

	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top,
		m.renderStatBox("Total", int64(data.Total), highlightColor),
		m.renderStatBox("Accepted", int64(data.Accepted), successColor),
		m.renderStatBox("Rejected", int64(data.Rejected), warningColor),
		m.renderStatBox("Failed", int64(data.Failed), errorColor),
	))
	b.WriteString("\n")
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top,
		m.renderStatBox("Halted", int64(data.Halted), errorColor),
		m.renderStatBox("Degraded", int64(data.Degraded), warningColor),
		m.renderStatBox("Chunks", data.Chunks, mutedColor),
		m.renderStatBox("Violations", data.Violations, mutedColor),
	))

	if len(data.ByCategory) > 0 {
		b.WriteString("\n\n")
		b.WriteString(SectionStyle.Render("Reports by category"))
		b.WriteString("\n")
		b.WriteString(renderCounts(data.ByCategory))
	}
	if len(data.BySource) > 0 {
		bySource := make(map[string]int64, len(data.BySource))
		for k, v := range data.BySource {
			bySource[k] = int64(v)
		}
		b.WriteString("\n")
		b.WriteString(SectionStyle.Render("Reports by source"))
		b.WriteString("\n")
		b.WriteString(renderCounts(bySource))
	}

	return b.String()
}

func (m StatsModel) renderStatsMetrics() string {
	data, ok := m.data.(*reader.MetricsSnapshot)
	if !ok {
		return "Invalid data type for stats_metrics"
	}

	var b strings.Builder
	b.WriteString(TitleStyle.Render("Run Metrics"))
	b.WriteString("\n")

	for _, row := range [][]string{
		{"Run ID", data.RunID},
		{"Source", data.Source},
		{"Policy", data.Policy},
		{"Mode", data.Mode},
		{"Storage", data.StorageBackend},
		{"Recorded At", data.Ts},
	} {
		fmt.Fprintf(&b, "%s %s\n", LabelStyle.Render(row[0]+":"), ValueStyle.Render(row[1]))
	}
	b.WriteString("\n")

	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top,
		m.renderStatBox("Passes", data.PassesStarted, highlightColor),
		m.renderStatBox("Accepted", data.PassesAccepted, successColor),
		m.renderStatBox("Rejected", data.PassesRejected, warningColor),
		m.renderStatBox("Framing", data.FramingErrors, errorColor),
	))
	b.WriteString("\n")
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top,
		m.renderStatBox("Proceed", data.DecisionsProceed, successColor),
		m.renderStatBox("Degraded", data.DecisionsDegraded, warningColor),
		m.renderStatBox("Halt", data.DecisionsHalt, errorColor),
		m.renderStatBox("Chunks", data.ChunksObserved, mutedColor),
	))

	b.WriteString("\n\n")
	for _, row := range []struct {
		label string
		ok    int64
		fail  int64
	}{
		{"Lode writes", data.LodeWriteSuccess, data.LodeWriteFailure},
		{"Adapter", data.AdapterPublishSuccess, data.AdapterPublishFailure},
	} {
		fmt.Fprintf(&b, "%s %s %s\n",
			LabelStyle.Render(row.label+":"),
			SuccessStyle.Render(fmt.Sprintf("%d ok", row.ok)),
			ErrorStyle.Render(fmt.Sprintf("%d failed", row.fail)))
	}

	if len(data.ViolationsByCategory) > 0 {
		b.WriteString("\n")
		b.WriteString(SectionStyle.Render(fmt.Sprintf("Violations (%d)", data.ViolationsTotal)))
		b.WriteString("\n")
		b.WriteString(renderCounts(data.ViolationsByCategory))
	}

	return b.String()
}

func (m StatsModel) renderStatBox(label string, value int64, color lipgloss.Color) string {
	boxStyle := StatBoxStyle.BorderForeground(color)

	valueStr := StatValueStyle.Foreground(color).Render(fmt.Sprintf("%d", value))
	labelStr := StatLabelStyle.Render(label)

	content := lipgloss.JoinVertical(lipgloss.Center, valueStr, labelStr)

	return boxStyle.Render(content)
}

// renderCounts renders a count map as label/value lines, sorted by key.
func renderCounts(counts map[string]int64) string {
	names := make([]string, 0, len(counts))
	for k := range counts {
		names = append(names, k)
	}
	slices.Sort(names)

	var b strings.Builder
	for _, k := range names {
		fmt.Fprintf(&b, "%s %s\n",
			LabelStyle.Width(24).Render(k),
			ValueStyle.Render(fmt.Sprintf("%d", counts[k])))
	}
	return b.String()
}

// RenderStatsStatic renders stats data without full TUI (for fallback).
func RenderStatsStatic(viewType string, data any) string {
	model := NewStatsModel(viewType, data)
	model.width = 80
	model.height = 24
	return lipgloss.NewStyle().Padding(1, 2).Render(model.View())
}
