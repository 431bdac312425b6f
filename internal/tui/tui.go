package tui

import (
	"fmt"
	"strings"
	"time"

	"quorum-indexer/internal/correlator"
	"quorum-indexer/internal/models"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
)

var stateStyles = map[correlator.State]lipgloss.Style{
	correlator.StateRunning: lipgloss.NewStyle().Foreground(lipgloss.Color("10")),
	correlator.StateIdle:    lipgloss.NewStyle().Foreground(lipgloss.Color("12")),
	correlator.StateBackoff: lipgloss.NewStyle().Foreground(lipgloss.Color("11")),
	correlator.StateStopped: lipgloss.NewStyle().Foreground(lipgloss.Color("8")),
	correlator.StateFatal:   lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true),
}

func padToWidth(s string, width int) string {
	current := runewidth.StringWidth(s)
	if current >= width {
		return s
	}
	return s + strings.Repeat(" ", width-current)
}

// truncate cuts s to width display cells, marking the cut with "...".
func truncate(s string, width int) string {
	if runewidth.StringWidth(s) <= width {
		return s
	}
	if width <= 3 {
		return runewidth.Truncate(s, width, "")
	}
	return runewidth.Truncate(s, width, "...")
}

func separatorLine(width int) string {
	if width < 2 {
		return strings.Repeat("─", width)
	}
	return "├" + strings.Repeat("─", width-2) + "┤"
}

func formatInfoLine(text string, width int) string {
	if width < 2 {
		return padToWidth(text, width)
	}
	return "│" + padToWidth(truncate(text, width-2), width-2) + "│"
}

// Header is the static part of the dashboard.
type Header struct {
	HiveAPI string
	NetID   string
	Started time.Time
}

// UpdateMsg carries fresh correlator statuses.
type UpdateMsg struct {
	Statuses []correlator.Status
}

type tickMsg time.Time

const minWidth = 40

// Model holds the TUI state
type Model struct {
	header   Header
	statuses []correlator.Status
	now      time.Time
	width    int
	height   int
}

func NewModel(h Header) Model {
	return Model{header: h, now: h.Started}
}

func tick() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m Model) Init() tea.Cmd {
	return tick()
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case UpdateMsg:
		m.statuses = msg.Statuses
		return m, nil

	case tickMsg:
		m.now = time.Time(msg)
		return m, tick()

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		}
	}

	return m, nil
}

func (m Model) View() string {
	if m.width == 0 {
		return "Loading..."
	}
	if m.width < minWidth {
		return "Terminal too narrow"
	}
	return lipgloss.JoinVertical(lipgloss.Left, m.renderHeader(), m.renderCorrelators())
}

func (m Model) renderHeader() string {
	colWidth := (m.width - 4) / 2
	rightColWidth := m.width - colWidth - 3

	uptime := m.now.Sub(m.header.Started).Truncate(time.Second)
	if uptime < 0 {
		uptime = 0
	}
	var enriched, skipped uint64
	for _, st := range m.statuses {
		enriched += st.Enriched
		skipped += st.Skipped
	}

	leftLines := []string{
		fmt.Sprintf("hive: %s", m.header.HiveAPI),
		fmt.Sprintf("network: %s", m.header.NetID),
	}
	rightLines := []string{
		fmt.Sprintf("uptime: %s", uptime),
		fmt.Sprintf("enriched=%d skipped=%d", enriched, skipped),
	}

	var rows []string
	for i := range leftLines {
		left := padToWidth(truncate(leftLines[i], colWidth-2), colWidth-2)
		right := padToWidth(truncate(rightLines[i], rightColWidth-2), rightColWidth-2)
		rows = append(rows, fmt.Sprintf("│ %s │ %s │", left, right))
	}

	topBorder := fmt.Sprintf("┌%s┬%s┐",
		strings.Repeat("─", colWidth),
		strings.Repeat("─", rightColWidth))
	separator := fmt.Sprintf("├%s┴%s┤",
		strings.Repeat("─", colWidth),
		strings.Repeat("─", rightColWidth))

	return topBorder + "\n" + strings.Join(rows, "\n") + "\n" + separator
}

// column widths of the correlator table, the last one takes the rest
var columns = []struct {
	title string
	width int
}{
	{"NAME", 8},
	{"STATE", 9},
	{"CHECKPOINT", 20},
	{"BATCH", 6},
	{"ENRICHED", 9},
	{"SKIPPED", 8},
	{"LAST TALLY", 26},
}

func checkpointString(st correlator.Status) string {
	cp := st.Checkpoint
	if cp.ID == models.CheckpointEpochs {
		return fmt.Sprintf("epoch=%d", cp.Epoch)
	}
	return fmt.Sprintf("l1=%d l2=%d", cp.L1Height, cp.L2Height)
}

func (m Model) formatRow(cells []string, style *lipgloss.Style) string {
	var b strings.Builder
	used := 1
	for i, col := range columns {
		cell := padToWidth(truncate(cells[i], col.width), col.width)
		if i == 1 && style != nil {
			cell = style.Render(cell)
		}
		b.WriteString(cell)
		b.WriteString(" ")
		used += col.width + 1
	}
	rest := m.width - used - 1
	if rest > 0 {
		b.WriteString(padToWidth(truncate(cells[len(columns)], rest), rest))
	}
	return "│" + b.String() + "│"
}

func (m Model) renderCorrelators() string {
	titles := make([]string, 0, len(columns)+1)
	for _, col := range columns {
		titles = append(titles, col.title)
	}
	titles = append(titles, "LAST ERROR")

	lines := []string{m.formatRow(titles, nil)}
	for _, st := range m.statuses {
		style, ok := stateStyles[st.State]
		var sp *lipgloss.Style
		if ok {
			sp = &style
		}
		lines = append(lines, m.formatRow([]string{
			st.Name,
			string(st.State),
			checkpointString(st),
			fmt.Sprintf("%d", st.LastBatch),
			fmt.Sprintf("%d", st.Enriched),
			fmt.Sprintf("%d", st.Skipped),
			st.LastTally,
			st.LastError,
		}, sp))
	}

	bottomBorder := "└" + strings.Repeat("─", max(m.width-2, 0)) + "┘"
	return strings.Join(lines, "\n") + "\n" + separatorLine(m.width) + "\n" +
		formatInfoLine("q to quit, logs in indexer.log", m.width) + "\n" + bottomBorder
}

// Run starts the TUI program and feeds it from updateCh until the channel is
// closed or the user quits.
func Run(h Header, updateCh <-chan []correlator.Status) error {
	p := tea.NewProgram(NewModel(h), tea.WithAltScreen())

	go func() {
		for statuses := range updateCh {
			p.Send(UpdateMsg{Statuses: statuses})
		}
		// Channel closed, quit TUI
		p.Quit()
	}()

	_, err := p.Run()
	return err
}
