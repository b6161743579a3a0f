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

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"confreg/internal/app"
	"confreg/internal/platform/config"
	"confreg/internal/platform/httpserver"
	"confreg/internal/platform/logger"
	"confreg/internal/receipt/handler"
	"confreg/pkg/platform/httputil"
)

// main wires dependencies once, serves HTTP and shuts down on SIGINT or
// SIGTERM. Business logic lives in internal packages.
func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "confreg:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.FromEnv()
	if err != nil {
		return err
	}
	log := logger.New(cfg.LogLevel)
	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", "error", err)
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	startCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	a, err := app.Build(startCtx, cfg, log, app.WithGateways())
	cancel()
	if err != nil {
		return fmt.Errorf("build: %w", err)
	}
	defer a.Close()

	router := chi.NewRouter()
	router.Handle("/metrics", promhttp.HandlerFor(a.Registry, promhttp.HandlerOpts{}))
	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		hctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()
		if err := a.Health(hctx); err != nil {
			httputil.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded", "error": err.Error()})
			return
		}
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	handlerOpts := []handler.Option{
		handler.WithWebhookVerifier(a.Razorpay),
		handler.WithAdminToken(cfg.Server.AdminToken),
		handler.WithTimeout(cfg.Server.RequestTimeout),
	}
	if cfg.PayPal.WebhookID != "" {
		handlerOpts = append(handlerOpts, handler.WithPayPalWebhookVerifier(a.PayPal))
	} else {
		log.Warn("PAYPAL_WEBHOOK_ID not set, /paypal/webhook disabled")
	}
	handler.New(a.Receipts, log, a.HTTPMetrics, handlerOpts...).Register(router)

	srv := httpserver.New(cfg.Server.Addr, router, cfg.Server.RequestTimeout)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting confreg", "addr", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")
		sctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(sctx)
	})
	return g.Wait()
}
