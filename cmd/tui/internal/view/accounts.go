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

type accountsState int

const (
	accountsStateBrowse accountsState = iota
	accountsStateAdd
)

type AccountsModel struct {
	CommonModel
	engine *facade.Service

	state    accountsState
	table    table.Model
	accounts []*ledger.Account
	form     *huh.Form

	err    error
	status string

	formName string
	formType string
}

func NewAccountsModel(engine *facade.Service) AccountsModel {
	columns := []table.Column{
		{Title: "Name", Width: 28},
		{Title: "Type", Width: 12},
		{Title: "Balance", Width: 12},
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

	return AccountsModel{
		engine: engine,
		table:  t,
	}
}

func (m AccountsModel) Title() string { return "Accounts" }

func (m AccountsModel) ShortHelp() string {
	if m.state == accountsStateAdd {
		return "Navigate form | Esc: cancel"
	}

	return "Esc: back | a: add | x: delete | r: refresh"
}

func (m AccountsModel) Init() tea.Cmd {
	return m.loadCmd()
}

type accountsLoadedMsg struct {
	accounts []*ledger.Account
	err      error
}

type accountSavedMsg struct {
	err error
}

func (m AccountsModel) loadCmd() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := OpCtx()
		defer cancel()

		accounts, err := m.engine.Accounts(ctx)

		return accountsLoadedMsg{accounts: accounts, err: err}
	}
}

func (m AccountsModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case accountsLoadedMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}

		m.err = nil
		m.accounts = msg.accounts
		m.refreshTable()

		return m, nil

	case accountSavedMsg:
		if msg.err != nil {
			m.status = fmt.Sprintf("Error: %v", msg.err)
		} else {
			m.status = "Saved"
		}

		m.state = accountsStateBrowse
		m.form = nil
		m.table.Focus()

		return m, m.loadCmd()
	}

	if m.state == accountsStateAdd {
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

func (m AccountsModel) startAdd() (tea.Model, tea.Cmd) {
	m.formName = ""
	m.formType = string(ledger.AccountWallet)

	m.form = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Name").
				Value(&m.formName),
			huh.NewSelect[string]().
				Title("Type").
				Options(
					huh.NewOption("Wallet", string(ledger.AccountWallet)),
					huh.NewOption("Savings", string(ledger.AccountSavings)),
					huh.NewOption("Investment", string(ledger.AccountInvestment)),
				).
				Value(&m.formType),
		),
	)

	m.state = accountsStateAdd
	m.table.Blur()

	return m, m.form.Init()
}

func (m AccountsModel) updateAdd(msg tea.Msg) (tea.Model, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok && key.String() == "esc" {
		m.state = accountsStateBrowse
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
		accountType := ledger.AccountType(m.formType)

		return m, func() tea.Msg {
			ctx, cancel := OpCtx()
			defer cancel()

			return accountSavedMsg{err: m.engine.AddAccount(ctx, &ledger.Account{
				Name: name,
				Type: accountType,
			})}
		}
	}

	return m, cmd
}

func (m AccountsModel) deleteSelected() (tea.Model, tea.Cmd) {
	idx := m.table.Cursor()
	if idx < 0 || idx >= len(m.accounts) {
		return m, nil
	}

	id := m.accounts[idx].ID

	return m, func() tea.Msg {
		ctx, cancel := OpCtx()
		defer cancel()

		return accountSavedMsg{err: m.engine.RemoveAccount(ctx, id)}
	}
}

func (m *AccountsModel) refreshTable() {
	rows := make([]table.Row, len(m.accounts))
	for i, a := range m.accounts {
		rows[i] = table.Row{a.Name, string(a.Type), FormatAmount(a.Balance)}
	}

	m.table.SetRows(rows)
}

func (m AccountsModel) View() string {
	if m.state == accountsStateAdd && m.form != nil {
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
