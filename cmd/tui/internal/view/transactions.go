package view

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/MrJamesThe3rd/pocketbook/internal/facade"
	"github.com/MrJamesThe3rd/pocketbook/internal/ledger"
)

type txState int

const (
	txStateBrowse txState = iota
	txStateAdd
)

type TransactionsModel struct {
	CommonModel
	engine *facade.Service

	state txState
	table table.Model
	txs   []*ledger.Transaction
	form  *huh.Form

	loading bool
	err     error
	status  string

	// Form bindings
	formAccount     string
	formCategory    string
	formType        string
	formAmount      string
	formDescription string
	formDate        string
	formTags        string
}

func NewTransactionsModel(engine *facade.Service) TransactionsModel {
	columns := []table.Column{
		{Title: "Date", Width: 12},
		{Title: "Type", Width: 8},
		{Title: "Amount", Width: 10},
		{Title: "Description", Width: 34},
		{Title: "Tags", Width: 20},
		{Title: "State", Width: 8},
	}

	t := table.New(
		table.WithColumns(columns),
		table.WithFocused(true),
		table.WithHeight(15),
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

	return TransactionsModel{
		engine: engine,
		table:  t,
	}
}

func (m TransactionsModel) Title() string { return "Transactions" }

func (m TransactionsModel) ShortHelp() string {
	if m.state == txStateAdd {
		return "Navigate form | Esc: cancel"
	}

	return "Esc: back | a: add | x: delete | s: sync now | r: refresh"
}

func (m TransactionsModel) Init() tea.Cmd {
	return m.loadCmd()
}

type txLoadedMsg struct {
	txs []*ledger.Transaction
	err error
}

type txSavedMsg struct {
	err error
}

type txSyncedMsg struct {
	processed int
	err       error
}

func (m TransactionsModel) loadCmd() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := OpCtx()
		defer cancel()

		txs, err := m.engine.Transactions(ctx)

		return txLoadedMsg{txs: txs, err: err}
	}
}

func (m TransactionsModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case txLoadedMsg:
		m.loading = false
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}

		m.err = nil
		m.txs = msg.txs
		m.refreshTable()

		return m, nil

	case txSavedMsg:
		if msg.err != nil {
			m.status = fmt.Sprintf("Error: %v", msg.err)
		} else {
			m.status = "Saved"
		}

		m.state = txStateBrowse
		m.form = nil
		m.table.Focus()

		return m, m.loadCmd()

	case txSyncedMsg:
		if msg.err != nil {
			m.status = fmt.Sprintf("Sync failed: %v", msg.err)
		} else {
			m.status = fmt.Sprintf("Synced %d operations", msg.processed)
		}

		return m, m.loadCmd()

	case tea.WindowSizeMsg:
		m.table.SetHeight(msg.Height - 10)
		return m, nil
	}

	switch m.state {
	case txStateBrowse:
		return m.updateBrowse(msg)
	case txStateAdd:
		return m.updateAdd(msg)
	}

	return m, nil
}

func (m TransactionsModel) updateBrowse(msg tea.Msg) (tea.Model, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.String() {
		case "esc":
			return m, Back
		case "r":
			m.loading = true
			return m, m.loadCmd()
		case "s":
			return m, func() tea.Msg {
				ctx, cancel := OpCtx()
				defer cancel()

				n, err := m.engine.ProcessPending(ctx)

				return txSyncedMsg{processed: n, err: err}
			}
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

func (m TransactionsModel) startAdd() (tea.Model, tea.Cmd) {
	ctx, cancel := OpCtx()
	defer cancel()

	accounts, err := m.engine.Accounts(ctx)
	if err != nil || len(accounts) == 0 {
		m.status = "Add an account first"
		return m, nil
	}

	categories, err := m.engine.Categories(ctx)
	if err != nil || len(categories) == 0 {
		m.status = "No categories available"
		return m, nil
	}

	accountOpts := make([]huh.Option[string], len(accounts))
	for i, a := range accounts {
		accountOpts[i] = huh.NewOption(a.Name, a.ID)
	}

	categoryOpts := make([]huh.Option[string], len(categories))
	for i, c := range categories {
		categoryOpts[i] = huh.NewOption(c.Name, c.ID)
	}

	m.formAccount = accounts[0].ID
	m.formCategory = categories[0].ID
	m.formType = string(ledger.TypeExpense)
	m.formAmount = ""
	m.formDescription = ""
	m.formDate = time.Now().Format(time.DateOnly)
	m.formTags = ""

	m.form = huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Account").
				Options(accountOpts...).
				Value(&m.formAccount),
			huh.NewSelect[string]().
				Title("Type").
				Options(
					huh.NewOption("Expense", string(ledger.TypeExpense)),
					huh.NewOption("Income", string(ledger.TypeIncome)),
				).
				Value(&m.formType),
			huh.NewInput().
				Title("Amount").
				Placeholder("12.34").
				Value(&m.formAmount),
			huh.NewSelect[string]().
				Title("Category").
				Options(categoryOpts...).
				Value(&m.formCategory),
			huh.NewInput().
				Title("Description").
				Value(&m.formDescription),
			huh.NewInput().
				Title("Date").
				Value(&m.formDate),
			huh.NewInput().
				Title("Tags (comma separated)").
				Value(&m.formTags),
		),
	)

	m.state = txStateAdd
	m.table.Blur()

	return m, m.form.Init()
}

func (m TransactionsModel) updateAdd(msg tea.Msg) (tea.Model, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok && key.String() == "esc" {
		m.state = txStateBrowse
		m.form = nil
		m.table.Focus()

		return m, nil
	}

	form, cmd := m.form.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		m.form = f
	}

	if m.form.State == huh.StateCompleted {
		return m, m.saveCmd()
	}

	return m, cmd
}

func (m TransactionsModel) saveCmd() tea.Cmd {
	accountID := m.formAccount
	categoryID := m.formCategory
	txType := ledger.TransactionType(m.formType)
	amountStr := m.formAmount
	description := m.formDescription
	date := m.formDate
	tags := splitTags(m.formTags)

	return func() tea.Msg {
		amount, err := ParseAmount(amountStr)
		if err != nil {
			return txSavedMsg{err: err}
		}

		ctx, cancel := OpCtx()
		defer cancel()

		err = m.engine.AddTransaction(ctx, &ledger.Transaction{
			AccountID:   accountID,
			Type:        txType,
			Amount:      amount,
			CategoryID:  categoryID,
			Description: description,
			Date:        date,
			Tags:        tags,
		})

		return txSavedMsg{err: err}
	}
}

func (m TransactionsModel) deleteSelected() (tea.Model, tea.Cmd) {
	idx := m.table.Cursor()
	if idx < 0 || idx >= len(m.txs) {
		return m, nil
	}

	id := m.txs[idx].ID

	return m, func() tea.Msg {
		ctx, cancel := OpCtx()
		defer cancel()

		return txSavedMsg{err: m.engine.RemoveTransaction(ctx, id)}
	}
}

func (m *TransactionsModel) refreshTable() {
	rows := make([]table.Row, len(m.txs))
	for i, t := range m.txs {
		state := "synced"
		if facade.IsTempID(t.ID) {
			state = "pending"
		}

		rows[i] = table.Row{
			t.Date,
			string(t.Type),
			FormatAmount(t.Amount),
			t.Description,
			strings.Join(t.Tags, ", "),
			state,
		}
	}

	m.table.SetRows(rows)
}

func (m TransactionsModel) View() string {
	if m.state == txStateAdd && m.form != nil {
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

func splitTags(s string) []string {
	parts := strings.Split(s, ",")

	tags := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			tags = append(tags, p)
		}
	}

	return tags
}
