package internal

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"

	_ "modernc.org/sqlite"

	"github.com/beanbocchi/cumulus/config"
	"github.com/beanbocchi/cumulus/internal/db"
	"github.com/beanbocchi/cumulus/internal/service"
	"github.com/beanbocchi/cumulus/internal/transport"
)

// NewConfig provides the application configuration
func NewConfig() *config.Config {
	return config.GetConfig()
}

func SetupLogger() {
	cfg := config.GetConfig().Log

	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: cfg.AddSource,
	}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))
}

// Start wires the gateway together and brings up the reader and writer
// listeners. It returns once both are accepting; the listeners run until
// the process exits.
func Start() error {
	cfg := NewConfig()
	SetupLogger()

	sqliteDB, err := sql.Open("sqlite", cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	if err := db.Migrate(sqliteDB); err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}

	svc, err := service.NewService(cfg, sqliteDB)
	if err != nil {
		return fmt.Errorf("build service: %w", err)
	}

	reader, err := transport.NewReaderEcho(svc)
	if err != nil {
		return fmt.Errorf("build reader: %w", err)
	}
	writer, err := transport.NewWriterEcho(svc)
	if err != nil {
		return fmt.Errorf("build writer: %w", err)
	}

	go func() {
		if err := reader.Start(cfg.App.ReaderListen); err != nil {
			slog.Error("reader listener stopped", "error", err)
			os.Exit(1)
		}
	}()
	go func() {
		if err := writer.Start(cfg.App.WriterListen); err != nil {
			slog.Error("writer listener stopped", "error", err)
			os.Exit(1)
		}
	}()

	slog.Info("gateway started",
		"reader", cfg.App.ReaderListen,
		"writer", cfg.App.WriterListen)
	return nil
}
