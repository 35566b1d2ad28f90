package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/otriage/otriage/internal/config"
	"github.com/otriage/otriage/internal/domain/cases"
	"github.com/otriage/otriage/internal/domain/triage"
	"github.com/otriage/otriage/internal/platform/auth"
	"github.com/otriage/otriage/internal/platform/db"
	"github.com/otriage/otriage/internal/platform/extract"
	"github.com/otriage/otriage/internal/platform/middleware"
	"github.com/otriage/otriage/internal/platform/normalizer"
	"github.com/otriage/otriage/internal/platform/registry"
	"github.com/otriage/otriage/internal/platform/report"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "triage-server",
		Short: "ENT triage inference API server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(rulesCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the triage API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	newMigrator := func(ctx context.Context, dir string) (*db.Migrator, func(), error) {
		cfg, err := config.Load()
		if err != nil {
			return nil, nil, err
		}
		if cfg.DatabaseURL == "" {
			return nil, nil, fmt.Errorf("DATABASE_URL is required for migrations")
		}
		pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
		if err != nil {
			return nil, nil, err
		}
		if dir != "" {
			return db.NewMigratorFromDir(pool, dir), pool.Close, nil
		}
		return db.NewMigrator(pool), pool.Close, nil
	}

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")
			ctx := context.Background()

			migrator, closePool, err := newMigrator(ctx, dir)
			if err != nil {
				return err
			}
			defer closePool()

			count, err := migrator.Up(ctx)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			fmt.Printf("Applied %d migration(s) successfully.\n", count)
			return nil
		},
	}
	upCmd.Flags().String("dir", "", "Path to migrations directory (default: embedded)")
	cmd.AddCommand(upCmd)

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")
			ctx := context.Background()

			migrator, closePool, err := newMigrator(ctx, dir)
			if err != nil {
				return err
			}
			defer closePool()

			statuses, err := migrator.Status(ctx)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}

			fmt.Printf("%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
			fmt.Println("---------- ---------------------------------------- ---------- --------------------")
			for _, s := range statuses {
				status := "pending"
				appliedAt := ""
				if s.Applied {
					status = "applied"
					if s.AppliedAt != nil {
						appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
					}
				}
				fmt.Printf("%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
			}
			return nil
		},
	}
	statusCmd.Flags().String("dir", "", "Path to migrations directory (default: embedded)")
	cmd.AddCommand(statusCmd)

	return cmd
}

func rulesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "Inspect the clinical rule base",
	}

	validateCmd := &cobra.Command{
		Use:   "validate",
		Short: "Load the rule base and report consistency findings",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")
			logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

			var src registry.Source = registry.EmbedSource{}
			if dir != "" {
				src = registry.DirSource{Dir: dir}
			}

			reg, err := registry.NewFileLoader(src, logger).Load(context.Background())
			if err != nil {
				return fmt.Errorf("rule base failed to load: %w", err)
			}

			fmt.Printf("Areas:      %d (%v)\n", len(reg.Areas), reg.Areas)
			fmt.Printf("Conditions: %d\n", len(reg.GlobalIDs))
			fmt.Printf("Features:   %d\n", len(reg.Features))
			fmt.Printf("Red flags:  %d\n", len(reg.RedFlagIDs))
			fmt.Printf("Warnings:   %d\n", len(reg.Warnings))
			for _, w := range reg.Warnings {
				fmt.Printf("  - %s\n", w)
			}
			return nil
		},
	}
	validateCmd.Flags().String("dir", "", "Path to a rule directory (default: embedded)")
	cmd.AddCommand(validateCmd)

	return cmd
}

func runServer() error {
	// Logger
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if os.Getenv("ENV") == "development" || os.Getenv("ENV") == "" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}

	// Config
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid configuration")
	}

	// Rule registry, loaded once up front so a broken rule base fails fast
	var src registry.Source = registry.EmbedSource{}
	if cfg.RulesDir != "" {
		src = registry.DirSource{Dir: cfg.RulesDir}
		logger.Info().Str("dir", cfg.RulesDir).Msg("loading rules from directory")
	}
	rules := registry.NewCached(registry.NewFileLoader(src, logger))

	loadCtx, cancelLoad := context.WithTimeout(context.Background(),
		time.Duration(cfg.RegistryLoadTimeoutMS)*time.Millisecond)
	reg, err := rules.Load(loadCtx)
	cancelLoad()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load rule registry")
	}
	logger.Info().
		Strs("areas", reg.Areas).
		Int("conditions", len(reg.GlobalIDs)).
		Int("warnings", len(reg.Warnings)).
		Msg("rule registry loaded")

	// Triage service
	triageOpts := []triage.Option{
		triage.WithQuestionBudget(cfg.NBQTopK, cfg.NBQCap),
	}
	if cfg.ExtractAPIURL != "" {
		triageOpts = append(triageOpts,
			triage.WithExtractor(extract.NewClient(cfg.ExtractAPIURL, cfg.ExtractAPIKey, logger)))
		logger.Info().Str("url", cfg.ExtractAPIURL).Msg("free-text extraction enabled")
	}
	triageSvc := triage.NewService(rules, normalizer.New(), logger, triageOpts...)

	// Case persistence: Postgres when configured, in-memory otherwise
	ctx := context.Background()
	caseRepo := cases.NewRepoMem()
	var pool *pgxpool.Pool
	if cfg.DatabaseURL != "" {
		pool, err = db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to database")
		}
		defer pool.Close()
		caseRepo = cases.NewRepoPG(pool)
		logger.Info().Msg("connected to database")
	} else {
		logger.Warn().Msg("no DATABASE_URL configured; cases are kept in memory only")
	}
	caseSvc := cases.NewService(caseRepo, report.NewRenderer(), logger)

	// Echo server
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Global middleware
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
	}))

	// Auth middleware
	if cfg.IsDev() {
		e.Use(auth.DevAuthMiddleware())
	} else {
		e.Use(auth.JWTMiddleware(auth.JWTConfig{
			Issuer:   cfg.AuthIssuer,
			Audience: cfg.AuthAudience,
			JWKSURL:  cfg.AuthJWKSURL,
		}))
	}

	// API group with rate limiting
	apiV1 := e.Group("/api/v1")
	rateLimitCfg := middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
	}
	if rateLimitCfg.RequestsPerSecond <= 0 {
		rateLimitCfg = middleware.DefaultRateLimitConfig()
	}
	apiV1.Use(middleware.RateLimit(rateLimitCfg))

	// Handlers
	triageHandler := triage.NewHandler(triageSvc, rules,
		triage.WithRecorder(func(ctx context.Context, raw triage.RawInput, res *triage.Result) error {
			_, err := caseSvc.Record(ctx, raw, res)
			return err
		}))
	triageHandler.RegisterRoutes(apiV1)

	cases.NewHandler(caseSvc).RegisterRoutes(apiV1)

	// Health checks
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": "0.1.0",
		})
	})
	if pool != nil {
		e.GET("/health/db", db.HealthHandler(pool))
	}

	// Graceful shutdown
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Fatal().Err(err).Msg("server shutdown failed")
	}
	logger.Info().Msg("server stopped")
	return nil
}
