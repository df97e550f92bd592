package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/streamminer/streamminer/internal/audit"
	"github.com/streamminer/streamminer/internal/config"
	"github.com/streamminer/streamminer/internal/constraints"
	"github.com/streamminer/streamminer/internal/engine"
	"github.com/streamminer/streamminer/internal/httpapi"
	"github.com/streamminer/streamminer/internal/item"
	"github.com/streamminer/streamminer/internal/migrations"
	"github.com/streamminer/streamminer/internal/ttw"
)

func main() {
	configPath := flag.String("config", "", "Path to configuration file")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}
	slog.Info("Loaded config", "config", cfg)

	// 1. Tilted time window definition + item interner.
	def, err := ttw.ParseDefinition(cfg.Engine.TTWDefinition)
	if err != nil {
		slog.Error("Invalid TTW definition", "value", cfg.Engine.TTWDefinition, "error", err)
		os.Exit(1)
	}
	interner := item.NewInterner()

	// 2. Load the engine's own preprocess/report constraint groups and the
	// query surface's rule-antecedent/rule-consequent groups from disk.
	preprocessCons := constraints.New()
	if _, err := constraints.LoadDir(cfg.Constraints.PreprocessDir, preprocessCons); err != nil {
		slog.Error("Failed to load preprocess constraints", "dir", cfg.Constraints.PreprocessDir, "error", err)
		os.Exit(1)
	}
	reportCons := constraints.New()
	if _, err := constraints.LoadDir(cfg.Constraints.ReportDir, reportCons); err != nil {
		slog.Error("Failed to load report constraints", "dir", cfg.Constraints.ReportDir, "error", err)
		os.Exit(1)
	}
	antecedentCons := constraints.New()
	if _, err := constraints.LoadDir(cfg.Constraints.RuleAntecedentDir, antecedentCons); err != nil {
		slog.Error("Failed to load rule-antecedent constraints", "dir", cfg.Constraints.RuleAntecedentDir, "error", err)
		os.Exit(1)
	}
	consequentCons := constraints.New()
	if _, err := constraints.LoadDir(cfg.Constraints.RuleConsequentDir, consequentCons); err != nil {
		slog.Error("Failed to load rule-consequent constraints", "dir", cfg.Constraints.RuleConsequentDir, "error", err)
		os.Exit(1)
	}

	// 3. Construct the mining engine.
	params := engine.Params{
		MinSupport:      cfg.Engine.MinSupport,
		MaxSupportError: cfg.Engine.MaxSupportError,
		StrictTailDrop:  cfg.Engine.StrictTailDrop,
	}
	eng := engine.New(def, params, interner, preprocessCons, reportCons)

	if cfg.Engine.PersistPath != "" {
		if _, statErr := os.Stat(cfg.Engine.PersistPath); statErr == nil {
			if err := eng.LoadState(cfg.Engine.PersistPath); err != nil {
				slog.Error("Failed to load persisted state", "path", cfg.Engine.PersistPath, "error", err)
				os.Exit(1)
			}
			slog.Info("Loaded persisted state", "path", cfg.Engine.PersistPath)
		}
	}

	// 4. Optional Postgres audit store.
	var auditStore audit.Store = audit.NoopStore{}
	if cfg.Audit.Enabled {
		db, err := audit.OpenDB(cfg.Audit.DSN, cfg.Audit.MaxOpenConns, cfg.Audit.MaxIdleConns)
		if err != nil {
			slog.Error("Failed to open audit database", "error", err)
			os.Exit(1)
		}
		defer db.Close()

		if err := migrations.RunMigrations(db, cfg.Audit.AutoMigrate); err != nil {
			slog.Error("Failed to run audit database migrations", "error", err)
			os.Exit(1)
		}

		pgStore, err := audit.NewPostgresStoreFromDB(db)
		if err != nil {
			slog.Error("Failed to initialize audit store", "error", err)
			os.Exit(1)
		}
		auditStore = pgStore
	}

	// 5. HTTP query surface.
	if cfg.Server.Mode == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.Default()
	svc := httpapi.New(eng, interner, auditStore, cfg.Engine.MinConfidence, reportCons, antecedentCons, consequentCons)
	svc.RegisterRoutes(r)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{Addr: addr, Handler: r}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
		<-quit
		slog.Info("Signal received, shutting down...")
		if cfg.Engine.PersistPath != "" {
			if err := eng.SaveState(cfg.Engine.PersistPath); err != nil {
				slog.Error("Failed to save state on shutdown", "path", cfg.Engine.PersistPath, "error", err)
			} else {
				slog.Info("Saved state on shutdown", "path", cfg.Engine.PersistPath)
			}
		}
		cancel()
	}()

	go func() {
		<-ctx.Done()
		slog.Info("Stopping HTTP Server...")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("HTTP Server forced to shutdown", "error", err)
		}
	}()

	slog.Info("Starting HTTP Server...", "address", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("Server stopped with error", "error", err)
	}

	slog.Info("Shutdown complete")
}
