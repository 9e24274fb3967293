package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/joho/godotenv"

	"github.com/MrJamesThe3rd/pocketbook/cmd/tui/internal/view"
	"github.com/MrJamesThe3rd/pocketbook/internal/config"
	"github.com/MrJamesThe3rd/pocketbook/internal/connectivity"
	"github.com/MrJamesThe3rd/pocketbook/internal/database"
	"github.com/MrJamesThe3rd/pocketbook/internal/docstore"
	"github.com/MrJamesThe3rd/pocketbook/internal/facade"
	"github.com/MrJamesThe3rd/pocketbook/internal/gateway"
	"github.com/MrJamesThe3rd/pocketbook/internal/listener"
	"github.com/MrJamesThe3rd/pocketbook/internal/queue"
	"github.com/MrJamesThe3rd/pocketbook/internal/syncer"
)

type View int

const (
	ViewMenu View = iota
	ViewTransactions
	ViewAccounts
	ViewGoals
)

// notifyMsg carries a user-facing message from the sync engine.
type notifyMsg string

type channelNotifier struct {
	ch chan string
}

func (n channelNotifier) Notify(message string) {
	select {
	case n.ch <- message:
	default:
	}
}

type model struct {
	engine  *facade.Service
	monitor *connectivity.Monitor
	notify  chan string

	currentView View
	lastNotice  string

	transactionsView view.TransactionsModel
	accountsView     view.AccountsModel
	goalsView        view.GoalsModel
}

func initialModel() model {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()

	// A reachable database gives the full remote-backed experience; without
	// one the TUI still works against an in-memory store so queued writes
	// and the sync flow can be exercised anywhere.
	var store docstore.Store

	db, err := database.New(cfg.ConnectionString())
	if err == nil {
		if err := database.EnsureSchema(ctx, db); err != nil {
			slog.Error("failed to ensure schema", "error", err)
			os.Exit(1)
		}

		store = docstore.NewPostgres(db, cfg.Sync.PollInterval)
	} else {
		slog.Warn("database unreachable, running against in-memory store", "error", err)
		store = docstore.NewMemory()
	}

	pending, err := queue.Open(cfg.Queue.Path)
	if err != nil {
		slog.Error("failed to open pending queue", "error", err)
		os.Exit(1)
	}

	notifyCh := make(chan string, 8)

	var (
		gw        = gateway.New(store)
		monitor   = connectivity.NewMonitor(true)
		processor = syncer.New(pending, gw, monitor)
	)

	if err := gw.EnsureDefaultCategories(ctx, cfg.Sync.Owner); err != nil {
		slog.Warn("failed to seed default categories", "error", err)
	}

	// The listener feeds the facade confirmed snapshots and doubles as its
	// read cache when a remote fetch fails. It is created first; the closure
	// bridges the cycle.
	var engine *facade.Service

	lst := listener.New(store, cfg.Sync.Owner, listener.Options{
		Debounce:   cfg.Sync.Debounce,
		StaleAfter: cfg.Sync.StaleAfter,
	}, func(u listener.Update) { engine.HandleUpdate(u) })

	engine = facade.New(cfg.Sync.Owner, gw, pending, monitor, processor, facade.Options{
		Notifier: channelNotifier{ch: notifyCh},
		Cache:    lst,
	})

	if err := lst.Start(ctx); err != nil {
		slog.Error("failed to start change listener", "error", err)
		os.Exit(1)
	}

	engine.Start(ctx)

	return model{
		engine:           engine,
		monitor:          monitor,
		notify:           notifyCh,
		currentView:      ViewMenu,
		transactionsView: view.NewTransactionsModel(engine),
		accountsView:     view.NewAccountsModel(engine),
		goalsView:        view.NewGoalsModel(engine),
	}
}

func (m model) waitForNotice() tea.Cmd {
	return func() tea.Msg {
		return notifyMsg(<-m.notify)
	}
}

func (m model) Init() tea.Cmd {
	return m.waitForNotice()
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case notifyMsg:
		m.lastNotice = string(msg)
		return m, m.waitForNotice()

	case tea.KeyMsg:
		if m.currentView == ViewMenu {
			switch msg.String() {
			case "ctrl+c", "q":
				return m, tea.Quit
			case "o":
				m.monitor.SetOnline(!m.monitor.Online())
				return m, nil
			case "1":
				m.currentView = ViewTransactions
				m.transactionsView = view.NewTransactionsModel(m.engine)

				return m, m.transactionsView.Init()
			case "2":
				m.currentView = ViewAccounts
				m.accountsView = view.NewAccountsModel(m.engine)

				return m, m.accountsView.Init()
			case "3":
				m.currentView = ViewGoals
				m.goalsView = view.NewGoalsModel(m.engine)

				return m, m.goalsView.Init()
			}
		}
	case view.BackMsg:
		m.currentView = ViewMenu
		return m, nil
	}

	switch m.currentView {
	case ViewTransactions:
		var newModel tea.Model
		newModel, cmd = m.transactionsView.Update(msg)
		m.transactionsView = newModel.(view.TransactionsModel)
	case ViewAccounts:
		var newModel tea.Model
		newModel, cmd = m.accountsView.Update(msg)
		m.accountsView = newModel.(view.AccountsModel)
	case ViewGoals:
		var newModel tea.Model
		newModel, cmd = m.goalsView.Update(msg)
		m.goalsView = newModel.(view.GoalsModel)
	}

	return m, cmd
}

func (m model) statusLine() string {
	state := "online"
	if !m.monitor.Online() {
		state = "OFFLINE"
	}

	pending := 0
	if n, err := m.engine.PendingCount(context.Background()); err == nil {
		pending = n
	}

	line := fmt.Sprintf("[%s] pending: %d", state, pending)
	if m.lastNotice != "" {
		line += " | " + m.lastNotice
	}

	return line
}

func (m model) View() string {
	status := lipgloss.NewStyle().Faint(true).Render(m.statusLine())

	switch m.currentView {
	case ViewMenu:
		return lipgloss.NewStyle().Padding(2).Render(
			"Pocketbook\n\n"+
				"1. Transactions\n"+
				"2. Accounts\n"+
				"3. Goals\n\n"+
				"o. Toggle online/offline\n"+
				"q. Quit",
		) + "\n" + status
	case ViewTransactions:
		return m.transactionsView.View() + "\n" + status
	case ViewAccounts:
		return m.accountsView.View() + "\n" + status
	case ViewGoals:
		return m.goalsView.View() + "\n" + status
	}

	return "Unknown View"
}

func main() {
	p := tea.NewProgram(initialModel())
	if _, err := p.Run(); err != nil {
		slog.Error("failed to run TUI", "error", err)
		os.Exit(1)
	}
}
