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

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/avialu/dixit-sub000/internal/auth"
	"github.com/avialu/dixit-sub000/internal/config"
	"github.com/avialu/dixit-sub000/internal/httpapi"
	"github.com/avialu/dixit-sub000/internal/hub"
	"github.com/avialu/dixit-sub000/internal/lobby"
	"github.com/avialu/dixit-sub000/internal/logging"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return err
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	h := hub.NewHub(context.Background(), hub.Config{
		Rules: cfg.Rules(),
		Lobby: lobby.Config{
			SweepInterval: cfg.SweepInterval,
			IdleTimeout:   cfg.IdleRoomTimeout,
		},
		Logger: log,
	})

	// Build the router *with* the hub injected
	handler := httpapi.SetupRoutes(h, auth.NewIssuer(cfg.TokenSecret, cfg.TokenTTL), httpapi.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		MaxCardBytes:   int64(cfg.MaxCardBytes),
		Logger:         log,
	})
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("listening", zap.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		log.Info("shutting down")
		sctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		// Closing the lobbies first ends every websocket, which hijacked
		// connections would otherwise keep open past srv.Shutdown.
		herr := h.Shutdown(sctx)
		if herr != nil {
			log.Warn("hub shutdown", zap.Error(herr))
		}
		return multierr.Combine(srv.Shutdown(sctx), herr)
	})
	return g.Wait()
}
