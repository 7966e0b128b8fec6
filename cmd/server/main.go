package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"routeaudit/internal/auth"
	"routeaudit/internal/inspection"
	inspectionstore "routeaudit/internal/inspection/store"
	"routeaudit/internal/platform/config"
	"routeaudit/internal/platform/httpserver"
	"routeaudit/internal/platform/logger"
	"routeaudit/internal/platform/metrics"
	"routeaudit/internal/refdata"
	refstore "routeaudit/internal/refdata/store"
	"routeaudit/internal/report"
	httptransport "routeaudit/internal/transport/http"
)

// main wires dependencies and keeps the server lifecycle small. Business
// logic lives in the internal service packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New()

	gateway, reference, err := buildStores(cfg)
	if err != nil {
		log.Error("store initialization failed", "backend", cfg.Backend, "error", err)
		os.Exit(1)
	}

	m := metrics.New()
	refService := refdata.NewService(reference, cfg.ReferenceCacheTTL, refdata.WithLogger(log))
	sessions := inspection.NewManager(gateway, refService, report.Render, report.Filename, log, m)
	authService := auth.New(auth.Credentials{
		LoginUser:     cfg.LoginUser,
		LoginPassword: cfg.LoginPassword,
		AdminPassword: cfg.AdminPassword,
	}, cfg.JWTSigningKey, cfg.SessionTTL)

	handler := httptransport.New(authService, refService, sessions, log)
	srv := httpserver.New(cfg.Addr, httptransport.NewRouter(handler))

	log.Info("starting routeaudit", "addr", cfg.Addr, "backend", cfg.Backend)

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
		os.Exit(1)
	}
	log.Info("shutdown complete")
}

// buildStores picks the persistence medium for both the audit gateway and the
// reference data store. One medium per deployment, never a mix.
func buildStores(cfg config.Server) (inspectionstore.Gateway, refstore.Store, error) {
	switch cfg.Backend {
	case config.BackendMemory:
		return inspectionstore.NewMemory(), refstore.NewMemory(), nil
	case config.BackendFile:
		gateway, err := inspectionstore.NewFile(cfg.DataDir)
		if err != nil {
			return nil, nil, err
		}
		// Reference lists are tabular; the file backend keeps them in a
		// workbook alongside the audit directory tree.
		reference, err := refstore.NewWorkbook(cfg.ReferenceWorkbookPath)
		if err != nil {
			return nil, nil, err
		}
		return gateway, reference, nil
	case config.BackendWorkbook:
		gateway, err := inspectionstore.NewWorkbook(cfg.WorkbookPath)
		if err != nil {
			return nil, nil, err
		}
		reference, err := refstore.NewWorkbook(cfg.ReferenceWorkbookPath)
		if err != nil {
			return nil, nil, err
		}
		return gateway, reference, nil
	default:
		return nil, nil, errors.New("unknown backend: " + string(cfg.Backend))
	}
}
