package cli

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/valter-silva-au/conductor/internal/observability"
	"github.com/valter-silva-au/conductor/pkg/models"
)

// Board panel indices.
const (
	panelPlan = iota
	panelRecords
	panelEvents
	panelCount
)

type boardModel struct {
	activePanel int
	width       int
	height      int

	// Data.
	subtasks  []models.Subtask
	currentID string
	records   []models.ExecutionRecord
	events    []observability.Event

	// State.
	loading bool
	err     error
}

// boardDataMsg carries loaded data back to the model.
type boardDataMsg struct {
	subtasks  []models.Subtask
	currentID string
	records   []models.ExecutionRecord
	events    []observability.Event
	err       error
}

// Style definitions.
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("230")).
			Background(lipgloss.Color("62")).
			Padding(0, 1)

	panelStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(1, 2)

	activePanelStyle = lipgloss.NewStyle().
				BorderStyle(lipgloss.RoundedBorder()).
				BorderForeground(lipgloss.Color("62")).
				Padding(1, 2)

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("62")).
			MarginBottom(1)

	statusNew        = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	statusDone       = lipgloss.NewStyle().Foreground(lipgloss.Color("46"))
	statusIncomplete = lipgloss.NewStyle().Foreground(lipgloss.Color("226"))
	statusSkipped    = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))

	currentMarkStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("62")).Bold(true)

	helpStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

func newBoardModel() boardModel {
	return boardModel{
		activePanel: panelPlan,
		loading:     true,
	}
}

func (m boardModel) Init() tea.Cmd {
	return loadBoardData
}

func (m boardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			return m, tea.Quit
		case "tab":
			m.activePanel = (m.activePanel + 1) % panelCount
			return m, nil
		case "shift+tab":
			m.activePanel = (m.activePanel - 1 + panelCount) % panelCount
			return m, nil
		case "r":
			m.loading = true
			return m, loadBoardData
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case boardDataMsg:
		m.loading = false
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.subtasks = msg.subtasks
		m.currentID = msg.currentID
		m.records = msg.records
		m.events = msg.events
		m.err = nil
		return m, nil
	}

	return m, nil
}

func (m boardModel) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	title := titleStyle.Render(" Conductor Board ")
	help := helpStyle.Render("tab: switch panel | r: refresh | q: quit")

	if m.loading {
		return fmt.Sprintf("%s\n\n  Loading data...\n\n%s", title, help)
	}

	if m.err != nil {
		return fmt.Sprintf("%s\n\n  Error: %s\n\n%s", title, m.err, help)
	}

	planPanel := m.renderPlanPanel()
	recordsPanel := m.renderRecordsPanel()
	eventsPanel := m.renderEventsPanel()

	// Available width for panels after accounting for margins.
	availableWidth := m.width - 2

	var body string
	if availableWidth > 120 {
		// Horizontal layout: three columns.
		colWidth := availableWidth / 3
		planPanel = m.applyPanelStyle(panelPlan, planPanel, colWidth-4)
		recordsPanel = m.applyPanelStyle(panelRecords, recordsPanel, colWidth-4)
		eventsPanel = m.applyPanelStyle(panelEvents, eventsPanel, colWidth-4)
		body = lipgloss.JoinHorizontal(lipgloss.Top, planPanel, recordsPanel, eventsPanel)
	} else {
		// Vertical layout: stacked.
		panelWidth := availableWidth - 4
		if panelWidth < 20 {
			panelWidth = 20
		}
		planPanel = m.applyPanelStyle(panelPlan, planPanel, panelWidth)
		recordsPanel = m.applyPanelStyle(panelRecords, recordsPanel, panelWidth)
		eventsPanel = m.applyPanelStyle(panelEvents, eventsPanel, panelWidth)
		body = lipgloss.JoinVertical(lipgloss.Left, planPanel, recordsPanel, eventsPanel)
	}

	return fmt.Sprintf("%s\n\n%s\n\n%s", title, body, help)
}

func (m boardModel) applyPanelStyle(panel int, content string, width int) string {
	style := panelStyle
	if m.activePanel == panel {
		style = activePanelStyle
	}
	return style.Width(width).Render(content)
}

func (m boardModel) renderPlanPanel() string {
	var b strings.Builder
	b.WriteString(headerStyle.Render("Plan"))
	b.WriteString("\n")

	if len(m.subtasks) == 0 {
		b.WriteString("  No subtasks.")
		return b.String()
	}

	for _, sub := range m.subtasks {
		marker := "  "
		if sub.ID == m.currentID {
			marker = currentMarkStyle.Render("> ")
		}
		indent := strings.Repeat("  ", strings.Count(sub.ID, "."))
		label := fmt.Sprintf("%s%-8s %s", indent, sub.ID, sub.Title)
		b.WriteString(marker + styleForStatus(sub.Status).Render(label))
		b.WriteString("\n")
	}

	b.WriteString(fmt.Sprintf("\n  Total: %d", len(m.subtasks)))

	return b.String()
}

func (m boardModel) renderRecordsPanel() string {
	var b strings.Builder
	b.WriteString(headerStyle.Render("Records"))
	b.WriteString("\n")

	if len(m.records) == 0 {
		b.WriteString("  No execution records.")
		return b.String()
	}

	// Newest last; show the tail.
	records := m.records
	if len(records) > 10 {
		records = records[len(records)-10:]
	}
	for _, rec := range records {
		label := fmt.Sprintf("  %-8s %s", rec.TaskID, rec.Summary)
		b.WriteString(styleForStatus(rec.Status).Render(label))
		b.WriteString("\n")
	}

	b.WriteString(fmt.Sprintf("\n  Total: %d", len(m.records)))

	return b.String()
}

func (m boardModel) renderEventsPanel() string {
	var b strings.Builder
	b.WriteString(headerStyle.Render("Events (24h)"))
	b.WriteString("\n")

	if len(m.events) == 0 {
		b.WriteString("  No events.")
		return b.String()
	}

	events := m.events
	if len(events) > 10 {
		events = events[len(events)-10:]
	}
	for _, e := range events {
		b.WriteString(fmt.Sprintf("  %s %-20s %s\n", e.Time.Format("15:04"), e.Type, e.TaskID))
	}

	return b.String()
}

func styleForStatus(status models.TaskStatus) lipgloss.Style {
	switch status {
	case models.StatusNew:
		return statusNew
	case models.StatusDone:
		return statusDone
	case models.StatusIncomplete:
		return statusIncomplete
	case models.StatusSkipped:
		return statusSkipped
	default:
		return lipgloss.NewStyle()
	}
}

func loadBoardData() tea.Msg {
	var result boardDataMsg

	if Mgr != nil {
		subtasks, err := Mgr.List()
		if err != nil {
			result.err = fmt.Errorf("loading subtasks: %w", err)
			return result
		}
		result.subtasks = subtasks

		cur, err := Mgr.CurrentSubtask()
		if err != nil {
			result.err = fmt.Errorf("loading current subtask: %w", err)
			return result
		}
		if cur != nil {
			result.currentID = cur.ID
		}

		records, err := Mgr.Records()
		if err != nil {
			result.err = fmt.Errorf("loading records: %w", err)
			return result
		}
		result.records = records
	}

	if EventLog != nil {
		since := time.Now().UTC().Add(-24 * time.Hour)
		events, err := EventLog.Read(observability.EventFilter{Since: &since})
		if err != nil {
			result.err = fmt.Errorf("loading events: %w", err)
			return result
		}
		result.events = events
	}

	return result
}

var boardCmd = &cobra.Command{
	Use:   "board",
	Short: "Interactive TUI view of the plan, records, and events",
	Long: `Launch an interactive terminal board showing the subtask plan with the
current pointer, recent execution records, and recent events.

Navigate between panels with Tab, refresh with r, quit with q.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if Mgr == nil {
			return fmt.Errorf("manager not initialized")
		}
		p := tea.NewProgram(newBoardModel(), tea.WithAltScreen())
		_, err := p.Run()
		return err
	},
}

func init() {
	rootCmd.AddCommand(boardCmd)
}
