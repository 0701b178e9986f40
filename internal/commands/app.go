package commands

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	_ "github.com/mattn/go-sqlite3"

	"github.com/example/resortledger/internal/config"
	"github.com/example/resortledger/internal/posting"
	"github.com/example/resortledger/internal/reports"
	"github.com/example/resortledger/internal/store"
	"github.com/example/resortledger/internal/store/postgres"
	"github.com/example/resortledger/pkg/audit"
)

// app holds everything a command needs once the environment is wired up.
type app struct {
	cfg      *config.Config
	accounts *config.Accounts
	logger   *slog.Logger
	pool     *pgxpool.Pool
	auditDB  *sql.DB
	store    store.Store
	journal  *audit.Journal
	posting  *posting.Service
	reporter *reports.Reporter
}

func newApp(ctx context.Context) (*app, error) {
	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	accounts, err := config.LoadAccounts(cfg.AccountsPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load account mappings: %w", err)
	}

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create postgres pool: %w", err)
	}

	auditDB, err := sql.Open("sqlite3", cfg.AuditDBPath)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to open audit database: %w", err)
	}

	journal, err := audit.Open(ctx, auditDB)
	if err != nil {
		pool.Close()
		auditDB.Close()
		return nil, err
	}

	st := postgres.New(pool, logger)
	return &app{
		cfg:      cfg,
		accounts: accounts,
		logger:   logger,
		pool:     pool,
		auditDB:  auditDB,
		store:    st,
		journal:  journal,
		posting:  posting.NewService(st, accounts, journal, logger),
		reporter: reports.NewReporter(st, accounts.PresentationCurrency),
	}, nil
}

func (a *app) Close() {
	a.pool.Close()
	_ = a.auditDB.Close()
}
