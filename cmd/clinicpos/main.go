package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"clinicpos/m/domain"
	"clinicpos/m/internal/api"
	"clinicpos/m/internal/cache"
	"clinicpos/m/internal/config"
	"clinicpos/m/internal/database"
	"clinicpos/m/internal/migrations"
	"clinicpos/m/internal/printer"
	"clinicpos/m/internal/receipt"
	"clinicpos/m/internal/sales"
	"clinicpos/m/internal/seed"
	"clinicpos/m/internal/store"
	"clinicpos/m/internal/telemetry"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry, err := telemetry.Init(ctx, cfg.OTLPEndpoint, cfg.ServiceName)
	if err != nil {
		log.Fatalf("telemetry init failed: %v", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(flushCtx); err != nil {
			log.Printf("telemetry shutdown: %v", err)
		}
	}()

	db, err := database.Connect(cfg.DatabaseDriver, cfg.DatabaseDSN)
	if err != nil {
		log.Fatalf("database error: %v", err)
	}
	defer db.Close()

	if err := migrations.Run(ctx, db); err != nil {
		log.Fatalf("%v", err)
	}

	st := store.New(db, store.WithNegativeStock(cfg.AllowNegativeStock))
	policy := domain.NewCategoryPolicy(cfg.ServiceCategories...)

	if cfg.SeedCatalog {
		if _, err := seed.LoadCatalog(ctx, st, policy); err != nil {
			log.Printf("unable to seed catalog: %v", err)
		}
	}
	if err := seed.EnsureAdmin(ctx, st, cfg.AdminEmail, cfg.AdminPassword); err != nil {
		log.Printf("unable to create admin account: %v", err)
	}

	c := cache.New(st)
	if err := c.Load(ctx); err != nil {
		log.Fatalf("%v", err)
	}

	opts := api.Options{
		Secret:         cfg.Secret,
		Policy:         policy,
		Receipts:       receipt.New(receipt.Header{ClinicName: cfg.ClinicName, Subtitle: cfg.ClinicSubtitle, Currency: cfg.Currency}),
		DefaultPrinter: cfg.DefaultPrinter,
		AllowedOrigins: cfg.AllowedOrigins,
	}
	if cfg.PrintServerURL != "" {
		opts.Printer = printer.NewClient(cfg.PrintServerURL)
	}
	handler := api.New(st, c, sales.NewService(st, c), opts)

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      handler.Router(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Printf("clinic POS server starting on :%s", cfg.HTTPPort)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("server error: %v", err)
	}
	log.Printf("server stopped")
}
