// Command agilewatch fetches Octopus Agile electricity prices and UK carbon
// intensity, indexes them in memory, and serves price queries over HTTP.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	httpapi "github.com/agilewatch/agilewatch/internal/api/http"
	"github.com/agilewatch/agilewatch/internal/carbon"
	"github.com/agilewatch/agilewatch/internal/config"
	"github.com/agilewatch/agilewatch/internal/octopus"
	"github.com/agilewatch/agilewatch/internal/scheduler"
	"github.com/agilewatch/agilewatch/internal/service"
	"github.com/agilewatch/agilewatch/internal/store"
)

var verbose bool

var rootCmd = &cobra.Command{
	Use:   "agilewatch",
	Short: "Half-hourly electricity price index and query service",
	Long: `agilewatch ingests Octopus Agile and Tracker tariff rates plus UK grid
carbon intensity, keeps them in an in-memory interval index, and answers
price queries: the rate right now, the cheapest window in the next N hours,
per-day statistics, and the multi-day daily shape curve.`,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the refresh scheduler and the HTTP query API",
	RunE:  runServe,
}

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Run one refresh cycle and print the current stats",
	RunE:  runFetch,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(fetchCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger() (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// buildService wires the store, upstream clients, and orchestration service
// from config.
func buildService(cfg *config.AppConfig, log *zap.Logger) *service.Service {
	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}

	octo := octopus.NewClient(cfg.OctopusConfig(), httpClient, log)
	octo.Retry.MaxAttempts = cfg.MaxRetryAttempts
	octo.PageDelay = cfg.PageDelay

	carbonClient := carbon.NewClient(httpClient, log)
	carbonClient.BaseURL = cfg.CarbonBaseURL
	carbonClient.Retry.MaxAttempts = cfg.MaxRetryAttempts

	return service.New(octo, carbonClient, store.NewMemory(), cfg.HistoryDays, log)
}

func runServe(cmd *cobra.Command, args []string) error {
	log, err := newLogger()
	if err != nil {
		return err
	}
	defer log.Sync()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	log.Info("starting",
		zap.String("region", cfg.Region.String()),
		zap.Duration("refresh_interval", cfg.RefreshInterval),
	)

	svc := buildService(cfg, log)

	sched := scheduler.New(svc, cfg.RefreshInterval, log)
	if err := sched.Start(); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}
	defer sched.Stop()

	app := fiber.New(fiber.Config{
		AppName:               "agilewatch",
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          10 * time.Second,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error":   true,
				"message": err.Error(),
			})
		},
	})

	app.Use(logger.New())
	app.Use(recover.New())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"service": "agilewatch",
			"region":  cfg.Region.Code(),
		})
	})

	httpapi.RegisterRoutes(app, svc)

	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Error("http server stopped", zap.Error(err))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error("error during shutdown", zap.Error(err))
	}
	return nil
}

func runFetch(cmd *cobra.Command, args []string) error {
	log, err := newLogger()
	if err != nil {
		return err
	}
	defer log.Sync()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	svc := buildService(cfg, log)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	if err := svc.RefreshAll(ctx); err != nil {
		return err
	}

	now := time.Now().UTC()
	out := make(map[string]any)

	if stats, err := svc.CurrentStats(now); err == nil {
		out["stats"] = stats
	}
	if daily, err := svc.Daily(now); err == nil {
		out["daily"] = daily
	}
	if prices, err := svc.Tracker(now); err == nil {
		out["tracker"] = prices
	}
	if snap, err := svc.Carbon(); err == nil {
		out["carbon"] = snap
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
