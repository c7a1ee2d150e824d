package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/pharmstock/pharmstock/internal/config"
	"github.com/pharmstock/pharmstock/internal/domain/inventory"
	"github.com/pharmstock/pharmstock/internal/platform/db"
	"github.com/pharmstock/pharmstock/internal/platform/middleware"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "pharmstock-server",
		Short: "Pharmacy inventory API server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the inventory API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations (postgres only; sqlite applies its schema on startup)",
	}

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if cfg.DBDriver != config.DriverPostgres {
				return fmt.Errorf("migrate up requires DB_DRIVER=postgres, got %q", cfg.DBDriver)
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			migrator := db.NewMigrator(pool, dir)
			count, err := migrator.Up(ctx)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}

			fmt.Printf("Applied %d migration(s) successfully.\n", count)
			return nil
		},
	}
	upCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(upCmd)

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if cfg.DBDriver != config.DriverPostgres {
				return fmt.Errorf("migrate status requires DB_DRIVER=postgres, got %q", cfg.DBDriver)
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			migrator := db.NewMigrator(pool, dir)
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
	statusCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(statusCmd)

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

	// Database
	ctx := context.Background()
	var (
		medicineRepo inventory.MedicineRepository
		batchRepo    inventory.BatchRepository
		healthCheck  echo.HandlerFunc
	)
	switch cfg.DBDriver {
	case config.DriverSQLite:
		var conn *sqlx.DB
		conn, err = db.NewSQLite(ctx, cfg.SQLitePath)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to open sqlite database")
		}
		defer conn.Close()
		logger.Info().Str("path", cfg.SQLitePath).Msg("connected to sqlite database")

		medicineRepo = inventory.NewMedicineRepoSQLite(conn)
		batchRepo = inventory.NewBatchRepoSQLite(conn)
		healthCheck = db.HealthHandler(db.SQLitePinger{Conn: conn}, func() *db.PoolStats {
			return db.GetSQLiteStats(conn)
		})
	default:
		pool, perr := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
		if perr != nil {
			logger.Fatal().Err(perr).Msg("failed to connect to database")
		}
		defer pool.Close()
		logger.Info().Msg("connected to postgres database")

		medicineRepo = inventory.NewMedicineRepoPG(pool)
		batchRepo = inventory.NewBatchRepoPG(pool)
		healthCheck = db.HealthHandler(pool, func() *db.PoolStats {
			return db.GetPoolStats(pool)
		})
	}

	// Echo server
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Errors reach the client as {success:false, error}; internal causes are
	// logged, never exposed.
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		code := http.StatusInternalServerError
		msg := "Internal server error"
		var httpErr *echo.HTTPError
		if errors.As(err, &httpErr) {
			code = httpErr.Code
			if m, ok := httpErr.Message.(string); ok {
				msg = m
			}
			if httpErr.Internal != nil {
				logger.Error().Err(httpErr.Internal).
					Str("path", c.Request().URL.Path).
					Int("status", code).
					Msg("request failed")
			}
		} else {
			logger.Error().Err(err).
				Str("path", c.Request().URL.Path).
				Msg("unhandled error")
		}
		if c.Response().Committed {
			return
		}
		if c.Request().Method == http.MethodHead {
			_ = c.NoContent(code)
			return
		}
		_ = c.JSON(code, map[string]interface{}{
			"success": false,
			"error":   msg,
		})
	}

	// Global middleware
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.SecurityHeaders())
	e.Use(middleware.BodyLimit("1M"))
	e.Use(middleware.RequestTimeout(30 * time.Second))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowHeaders: []string{"Content-Type", "X-Request-ID"},
	}))

	// Inventory domain
	svc := inventory.NewService(medicineRepo, batchRepo, cfg.LowStockThreshold, cfg.ExpiryWindowDays)
	handler := inventory.NewHandler(svc)
	handler.RegisterRoutes(e.Group("/api/medicines"))

	// Health check
	e.GET("/health", healthCheck)

	// API index
	e.GET("/", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]interface{}{
			"message": "Pharmacy Inventory API",
			"endpoints": map[string]string{
				"medicines": "/api/medicines",
				"barcode":   "/api/medicines/barcode/:barcode",
				"alerts":    "/api/medicines/alerts",
				"health":    "/health",
			},
		})
	})

	// Start with graceful shutdown
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Msg("starting server")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server stopped")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return nil
}
