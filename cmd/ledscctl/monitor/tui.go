package monitor

import (
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/mdouchement/ledscd"
)

// historyLen bounds how many applied commands the table keeps.
const historyLen = 64

type model struct {
	table   table.Model
	applied []ledscd.Applied
}

func newTUI() *model {
	columns := []table.Column{
		{Title: "Time", Width: 10},
		{Title: "Operation", Width: 14},
		{Title: "Value", Width: 24},
	}

	t := table.New(
		table.WithColumns(columns),
		table.WithFocused(false),
	)

	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		Foreground(lipgloss.Color("#00afff")).
		BorderForeground(lipgloss.Color("#00afff")).
		BorderBottom(true).
		Bold(false)
	s.Selected = s.Selected.
		Foreground(lipgloss.Color("#ffffff")).
		Bold(false)
	t.SetStyles(s)

	return &model{
		table: t,
	}
}

func (m *model) Init() tea.Cmd {
	return nil
}

func (m *model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.table.SetWidth(msg.Width)
		m.table.SetHeight(msg.Height)
	case ledscd.Applied:
		m.update(msg)
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		}
	}
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func (m *model) View() string {
	return m.table.View()
}

func (m *model) update(applied ledscd.Applied) {
	m.applied = append(m.applied, applied)
	if len(m.applied) > historyLen {
		m.applied = m.applied[len(m.applied)-historyLen:]
	}

	rows := make([]table.Row, 0, len(m.applied))
	for i := len(m.applied) - 1; i >= 0; i-- {
		a := m.applied[i]
		rows = append(rows, table.Row{
			a.At.Format("15:04:05"),
			a.Op,
			a.Value,
		})
	}

	m.table.SetRows(rows)
}
