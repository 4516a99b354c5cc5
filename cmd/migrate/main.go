package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"go.uber.org/zap"

	"bookinventory/internal/config"
	"bookinventory/internal/platform/logging"
)

func main() {
	var (
		command = flag.String("command", "up", "Migration command: up, down, status, create")
		name    = flag.String("name", "", "Name for 'create' command")
	)
	flag.Parse()

	logger, err := logging.New("info")
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()

	s := loadSettings()
	logger = logger.With(zap.String("command", *command), zap.String("dir", s.migrationsDir))

	if *command == "create" {
		if err := create(s.migrationsDir, *name); err != nil {
			logger.Fatal("create migration", zap.Error(err))
		}
		logger.Info("migration created", zap.String("name", *name))
		return
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, s.dsn)
	if err != nil {
		logger.Fatal("connect to database", zap.String("dsn", config.RedactDSN(s.dsn)), zap.Error(err))
	}
	defer pool.Close()

	db := stdlib.OpenDBFromPool(pool)
	defer db.Close()

	if err := run(db, *command, s.migrationsDir); err != nil {
		logger.Fatal("migration failed", zap.Error(err))
	}
	logger.Info("migration command finished")
}

func run(db *sql.DB, command, dir string) error {
	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}
	goose.SetBaseFS(nil)

	switch command {
	case "up":
		return goose.Up(db, dir)
	case "down":
		return goose.Down(db, dir)
	case "status":
		return goose.Status(db, dir)
	default:
		return fmt.Errorf("unknown command %q, use one of: up, down, status, create", command)
	}
}

func create(dir, name string) error {
	if name == "" {
		return fmt.Errorf("name is required for 'create' command")
	}
	return goose.Create(nil, dir, name, "sql")
}
