package view

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/MrJamesThe3rd/pocketbook/internal/facade"
	"github.com/MrJamesThe3rd/pocketbook/internal/ledger"
)

type goalsState int

const (
	goalsStateBrowse goalsState = iota
	goalsStateAdd
)

type GoalsModel struct {
	CommonModel
	engine *facade.Service

	state goalsState
	table table.Model
	goals []*ledger.Goal
	form  *huh.Form

	err    error
	status string

	formName     string
	formTarget   string
	formDeadline string
}

func NewGoalsModel(engine *facade.Service) GoalsModel {
	columns := []table.Column{
		{Title: "Name", Width: 26},
		{Title: "Target", Width: 12},
		{Title: "Saved", Width: 12},
		{Title: "Deadline", Width: 12},
		{Title: "Done", Width: 6},
	}

	t := table.New(
		table.WithColumns(columns),
		table.WithFocused(true),
		table.WithHeight(12),
	)

	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		BorderBottom(true).
		Bold(false)
	s.Selected = s.Selected.
		Foreground(lipgloss.Color("229")).
		Background(lipgloss.Color("57")).
		Bold(false)
	t.SetStyles(s)

	return GoalsModel{
		engine: engine,
		table:  t,
	}
}

func (m GoalsModel) Title() string { return "Goals" }

func (m GoalsModel) ShortHelp() string {
	if m.state == goalsStateAdd {
		return "Navigate form | Esc: cancel"
	}

	return "Esc: back | a: add | x: delete | r: refresh"
}

func (m GoalsModel) Init() tea.Cmd {
	return m.loadCmd()
}

type goalsLoadedMsg struct {
	goals []*ledger.Goal
	err   error
}

type goalSavedMsg struct {
	err error
}

func (m GoalsModel) loadCmd() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := OpCtx()
		defer cancel()

		goals, err := m.engine.Goals(ctx)

		return goalsLoadedMsg{goals: goals, err: err}
	}
}

func (m GoalsModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case goalsLoadedMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}

		m.err = nil
		m.goals = msg.goals
		m.refreshTable()

		return m, nil

	case goalSavedMsg:
		if msg.err != nil {
			m.status = fmt.Sprintf("Error: %v", msg.err)
		} else {
			m.status = "Saved"
		}

		m.state = goalsStateBrowse
		m.form = nil
		m.table.Focus()

		return m, m.loadCmd()
	}

	if m.state == goalsStateAdd {
		return m.updateAdd(msg)
	}

	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.String() {
		case "esc":
			return m, Back
		case "r":
			return m, m.loadCmd()
		case "a":
			return m.startAdd()
		case "x":
			return m.deleteSelected()
		}
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)

	return m, cmd
}

func (m GoalsModel) startAdd() (tea.Model, tea.Cmd) {
	m.formName = ""
	m.formTarget = ""
	m.formDeadline = ""

	m.form = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Name").
				Value(&m.formName),
			huh.NewInput().
				Title("Target amount").
				Placeholder("1000.00").
				Value(&m.formTarget),
			huh.NewInput().
				Title("Deadline (YYYY-MM-DD, optional)").
				Value(&m.formDeadline),
		),
	)

	m.state = goalsStateAdd
	m.table.Blur()

	return m, m.form.Init()
}

func (m GoalsModel) updateAdd(msg tea.Msg) (tea.Model, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok && key.String() == "esc" {
		m.state = goalsStateBrowse
		m.form = nil
		m.table.Focus()

		return m, nil
	}

	form, cmd := m.form.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		m.form = f
	}

	if m.form.State == huh.StateCompleted {
		name := m.formName
		targetStr := m.formTarget
		deadline := strings.TrimSpace(m.formDeadline)

		return m, func() tea.Msg {
			target, err := ParseAmount(targetStr)
			if err != nil {
				return goalSavedMsg{err: err}
			}

			ctx, cancel := OpCtx()
			defer cancel()

			return goalSavedMsg{err: m.engine.AddGoal(ctx, &ledger.Goal{
				Name:         name,
				TargetAmount: target,
				Deadline:     deadline,
			})}
		}
	}

	return m, cmd
}

func (m GoalsModel) deleteSelected() (tea.Model, tea.Cmd) {
	idx := m.table.Cursor()
	if idx < 0 || idx >= len(m.goals) {
		return m, nil
	}

	id := m.goals[idx].ID

	return m, func() tea.Msg {
		ctx, cancel := OpCtx()
		defer cancel()

		return goalSavedMsg{err: m.engine.RemoveGoal(ctx, id)}
	}
}

func (m *GoalsModel) refreshTable() {
	rows := make([]table.Row, len(m.goals))
	for i, g := range m.goals {
		done := ""
		if g.IsCompleted {
			done = "yes"
		}

		rows[i] = table.Row{
			g.Name,
			FormatAmount(g.TargetAmount),
			FormatAmount(g.CurrentAmount),
			g.Deadline,
			done,
		}
	}

	m.table.SetRows(rows)
}

func (m GoalsModel) View() string {
	if m.state == goalsStateAdd && m.form != nil {
		return m.form.View()
	}

	var b strings.Builder

	b.WriteString(m.table.View())
	b.WriteString("\n")

	if m.err != nil {
		b.WriteString(lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Render(m.err.Error()))
		b.WriteString("\n")
	}

	if m.status != "" {
		b.WriteString(m.status)
		b.WriteString("\n")
	}

	return b.String()
}
