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

	"github.com/labflow/labflow/internal/config"
	"github.com/labflow/labflow/internal/domain/billing"
	"github.com/labflow/labflow/internal/domain/callcenter"
	"github.com/labflow/labflow/internal/domain/cases"
	"github.com/labflow/labflow/internal/domain/identity"
	"github.com/labflow/labflow/internal/domain/laboratory"
	"github.com/labflow/labflow/internal/domain/patients"
	"github.com/labflow/labflow/internal/domain/reports"
	"github.com/labflow/labflow/internal/platform/auth"
	"github.com/labflow/labflow/internal/platform/db"
	"github.com/labflow/labflow/internal/platform/email"
	"github.com/labflow/labflow/internal/platform/features"
	"github.com/labflow/labflow/internal/platform/middleware"
	"github.com/labflow/labflow/internal/platform/nav"
	"github.com/labflow/labflow/internal/platform/realtime"
	"github.com/labflow/labflow/internal/platform/retry"
	"github.com/labflow/labflow/internal/platform/telemetry"
)

// countingPublisher layers the per-table operation counter over the hub so
// domain services stay unaware of metrics.
type countingPublisher struct {
	hub     *realtime.Hub
	metrics *telemetry.Provider
}

func (p *countingPublisher) Publish(ctx context.Context, event realtime.Event) error {
	p.metrics.CountOperation(event.Table, string(event.Type))
	return p.hub.Publish(ctx, event)
}

func main() {
	rootCmd := &cobra.Command{
		Use:   "labflow-server",
		Short: "LabFlow laboratory management API server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(tenantCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the LabFlow API server",
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

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			schema, _ := cmd.Flags().GetString("schema")
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			migrator := db.NewMigrator(pool, dir)
			fmt.Printf("Running migrations on schema: %s\n", schema)

			count, err := migrator.Up(ctx, schema)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}

			fmt.Printf("Applied %d migration(s) successfully.\n", count)
			return nil
		},
	}
	upCmd.Flags().String("schema", "tenant_default", "Target schema for migrations")
	upCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(upCmd)

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			schema, _ := cmd.Flags().GetString("schema")
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			migrator := db.NewMigrator(pool, dir)
			statuses, err := migrator.Status(ctx, schema)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}

			fmt.Printf("Migration status for schema: %s\n", schema)
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
	statusCmd.Flags().String("schema", "tenant_default", "Target schema for migrations")
	statusCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(statusCmd)

	return cmd
}

func tenantCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tenant",
		Short: "Manage laboratory tenants",
	}

	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Create a new tenant schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			name, _ := cmd.Flags().GetString("name")
			dir, _ := cmd.Flags().GetString("dir")
			if name == "" {
				return fmt.Errorf("--name is required")
			}

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			fmt.Printf("Creating tenant schema: tenant_%s\n", name)
			if err := db.CreateTenantSchema(ctx, pool, name, dir); err != nil {
				return err
			}
			fmt.Println("Tenant created successfully.")
			return nil
		},
	}
	createCmd.Flags().String("name", "", "Tenant identifier (alphanumeric)")
	createCmd.Flags().String("dir", "./migrations", "Path to migrations directory")

	cmd.AddCommand(createCmd)
	return cmd
}

func runServer() error {
	// Logger
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if os.Getenv("ENV") == "development" {
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

	// Database
	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	// Metrics
	metrics := telemetry.NewProvider()

	// Echo server
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Global middleware
	e.Use(middleware.Recovery(logger))
	e.Use(echomw.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(metrics.Middleware())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID", "X-Tenant-ID"},
	}))

	// Auth middleware
	if cfg.IsDev() {
		e.Use(auth.DevAuthMiddleware())
	} else {
		e.Use(auth.JWTMiddleware(auth.JWTConfig{
			Issuer:     cfg.AuthIssuer,
			Audience:   cfg.AuthAudience,
			SigningKey: []byte(cfg.JWTSecret),
		}))
	}

	// Tenant middleware
	e.Use(db.TenantMiddleware(pool, cfg.DefaultTenant))

	// Realtime hub + cache invalidation bridge
	hub := realtime.NewHub(logger)
	events := &countingPublisher{hub: hub, metrics: metrics}

	queryCache, err := realtime.NewQueryCache(512)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create query cache")
	}
	bridge := realtime.NewBridge(hub, queryCache, logger)
	for _, table := range []string{cases.Table, patients.Table, billing.Table, callcenter.Table} {
		sub := bridge.Subscribe(table, realtime.SubscribeOptions{Debounce: 250 * time.Millisecond}, "list:"+table)
		defer sub.Close()
	}

	// Pool and websocket gauges for /metrics
	gaugeCtx, gaugeCancel := context.WithCancel(ctx)
	defer gaugeCancel()
	go pollGauges(gaugeCtx, metrics, pool, hub)

	// Feature flag resolver, backed by the laboratory record
	labRepo := laboratory.NewPgRepository()
	resolver := features.NewResolver(laboratory.NewFeatureSource(labRepo))

	// Domain services
	caseSvc := cases.NewService(cases.NewPgRepository(), events, logger)
	caseHandler := cases.NewHandler(caseSvc, logger)

	patientSvc := patients.NewService(patients.NewPgRepository(), events, logger)
	patientHandler := patients.NewHandler(patientSvc, logger)

	identitySvc := identity.NewService(identity.NewPgRepository(), logger)
	identityHandler := identity.NewHandler(identitySvc, logger)

	billingSvc := billing.NewService(billing.NewPgRepository(), events, logger)
	billingHandler := billing.NewHandler(billingSvc, logger)

	ccSvc := callcenter.NewService(callcenter.NewPgRepository(), events, logger)
	ccHandler := callcenter.NewHandler(ccSvc, logger)

	labSvc := laboratory.NewService(labRepo, resolver, logger)
	labHandler := laboratory.NewHandler(labSvc, logger)

	emailClient := email.NewClient(cfg.ResendAPIKey, cfg.EmailFrom, cfg.EmailFromName)
	templates := email.NewTemplateEngine()

	reportSvc := reports.NewService(caseSvc, emailClient, templates, retry.DefaultPDFPolicy, cfg.EmailFromName, logger)
	reportHandler := reports.NewHandler(reportSvc, logger)

	// Guarded route table. Role guards redirect to the role's landing path,
	// feature guards redirect to the entry path (or hold while the tenant
	// record is still loading).
	nav.Register(e, []nav.RouteDescriptor{
		{
			Path:  "/api/cases",
			Roles: []auth.Role{auth.RoleOwner, auth.RoleEmployee, auth.RoleResidente},
			Mount: caseHandler.RegisterRoutes,
		},
		{
			Path:  "/api/screening",
			Roles: []auth.Role{auth.RoleOwner, auth.RoleCitotecno},
			Mount: caseHandler.RegisterRoutes,
		},
		{
			Path:  "/api/review",
			Roles: []auth.Role{auth.RoleOwner, auth.RolePatologo},
			Mount: caseHandler.RegisterRoutes,
		},
		{
			Path:  "/api/patients",
			Mount: patientHandler.RegisterRoutes,
		},
		{
			Path:  "/api",
			Mount: identityHandler.RegisterRoutes,
		},
		{
			Path:    "/api/billing",
			Roles:   []auth.Role{auth.RoleOwner, auth.RoleEmployee},
			Feature: features.KeyBilling,
			Mount:   billingHandler.RegisterRoutes,
		},
		{
			Path:    "/api/insurance",
			Roles:   []auth.Role{auth.RoleOwner, auth.RoleEmployee},
			Feature: features.KeyInsurance,
			Mount:   billingHandler.RegisterInsuranceRoutes,
		},
		{
			Path:    "/api/callcenter",
			Feature: features.KeyCallCenter,
			Mount:   ccHandler.RegisterRoutes,
		},
		{
			Path:    "/api/reports",
			Feature: features.KeyEmail,
			Mount:   reportHandler.RegisterRoutes,
		},
		{
			Path:    "/api/cases",
			Feature: features.KeyExport,
			Mount:   reportHandler.RegisterExportRoutes,
		},
		{
			Path:  "/api/laboratory",
			Roles: []auth.Role{auth.RoleOwner},
			Mount: labHandler.RegisterRoutes,
		},
	}, resolver, logger)

	// Email side channel; mirrors the standalone serverless endpoint, no
	// role guard.
	emailHandler := email.NewHandler(emailClient, templates, cfg.EmailFromName, cfg.Env, logger)
	emailHandler.RegisterRoutes(e.Group("/api"))

	// Websocket endpoint
	realtime.NewHandler(hub).RegisterRoutes(e.Group(""))

	// Metrics and health
	e.GET("/metrics", metrics.Handler())
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": "0.1.0",
		})
	})

	// Start server with graceful shutdown
	go func() {
		addr := ":" + cfg.Port
		var err error
		if cfg.TLSEnabled {
			err = e.StartTLS(addr, cfg.TLSCertFile, cfg.TLSKeyFile)
		} else {
			err = e.Start(addr)
		}
		if err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server stopped")
		}
	}()
	logger.Info().Str("port", cfg.Port).Str("env", cfg.Env).Msg("labflow server started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("forced shutdown")
		return err
	}
	return nil
}

// pollGauges samples pool and hub stats for the metrics endpoint.
func pollGauges(ctx context.Context, metrics *telemetry.Provider, pool *pgxpool.Pool, hub *realtime.Hub) {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			stat := pool.Stat()
			metrics.SetGauge("db.pool.active_connections", int64(stat.AcquiredConns()))
			metrics.SetGauge("db.pool.idle_connections", int64(stat.IdleConns()))
			metrics.SetGauge("ws.clients.connected", int64(hub.ClientCount()))
		}
	}
}
