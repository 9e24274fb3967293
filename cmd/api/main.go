package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/joho/godotenv"

	"github.com/MrJamesThe3rd/pocketbook/internal/config"
	"github.com/MrJamesThe3rd/pocketbook/internal/connectivity"
	"github.com/MrJamesThe3rd/pocketbook/internal/database"
	"github.com/MrJamesThe3rd/pocketbook/internal/docstore"
	"github.com/MrJamesThe3rd/pocketbook/internal/facade"
	"github.com/MrJamesThe3rd/pocketbook/internal/gateway"
	pocketbookHttp "github.com/MrJamesThe3rd/pocketbook/internal/http"
	accountHandler "github.com/MrJamesThe3rd/pocketbook/internal/http/account"
	categoryHandler "github.com/MrJamesThe3rd/pocketbook/internal/http/category"
	goalHandler "github.com/MrJamesThe3rd/pocketbook/internal/http/goal"
	importHandler "github.com/MrJamesThe3rd/pocketbook/internal/http/importcsv"
	syncHandler "github.com/MrJamesThe3rd/pocketbook/internal/http/sync"
	txHandler "github.com/MrJamesThe3rd/pocketbook/internal/http/transaction"
	"github.com/MrJamesThe3rd/pocketbook/internal/importer"
	"github.com/MrJamesThe3rd/pocketbook/internal/matching"
	"github.com/MrJamesThe3rd/pocketbook/internal/queue"
	"github.com/MrJamesThe3rd/pocketbook/internal/syncer"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	if cfg.Auth.JWTSecret == "" {
		slog.Error("JWT_SECRET must be set")
		os.Exit(1)
	}

	ctx := context.Background()

	db, err := database.New(cfg.ConnectionString())
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := database.EnsureSchema(ctx, db); err != nil {
		slog.Error("failed to ensure schema", "error", err)
		os.Exit(1)
	}

	pending, err := queue.Open(cfg.Queue.Path)
	if err != nil {
		slog.Error("failed to open pending queue", "error", err)
		os.Exit(1)
	}
	defer pending.Close()

	var (
		store     = docstore.NewPostgres(db, cfg.Sync.PollInterval)
		gw        = gateway.New(store)
		monitor   = connectivity.NewMonitor(true)
		processor = syncer.New(pending, gw, monitor)
		engine    = facade.New(cfg.Sync.Owner, gw, pending, monitor, processor, facade.Options{})
	)

	engine.Start(ctx)
	defer engine.Close()

	// Replay anything a previous run left behind.
	if n, err := engine.ProcessPending(ctx); err != nil {
		slog.Warn("failed to drain pending queue at startup", "error", err)
	} else if n > 0 {
		slog.Info("drained pending queue at startup", "operations", n)
	}

	var (
		importService = importer.NewService()
		matchService  = matching.NewService(gw)
	)

	var (
		accountsH     = accountHandler.NewHandler(gw)
		transactionsH = txHandler.NewHandler(gw)
		categoriesH   = categoryHandler.NewHandler(gw)
		goalsH        = goalHandler.NewHandler(gw)
		importH       = importHandler.NewHandler(importService, matchService, gw)
		syncH         = syncHandler.NewHandler(engine, monitor)
	)

	router := pocketbookHttp.New(cfg.Auth.JWTSecret, accountsH, transactionsH, categoriesH, goalsH, importH, syncH)

	port := fmt.Sprintf(":%d", cfg.App.Port)
	slog.Info("starting server", "app", cfg.App.Name, "port", port)

	if err := http.ListenAndServe(port, router); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}
