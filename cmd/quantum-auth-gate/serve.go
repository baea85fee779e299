package main

import (
	"context"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/gin-gonic/gin"
	"github.com/quantumauth-io/quantum-go-utils/log"
	"github.com/spf13/cobra"

	"github.com/quantumauth-io/quantum-auth-gate/cmd/quantum-auth-gate/config"
	"github.com/quantumauth-io/quantum-auth-gate/internal/consent"
	"github.com/quantumauth-io/quantum-auth-gate/internal/constants"
	"github.com/quantumauth-io/quantum-auth-gate/internal/dispatch"
	gatehttp "github.com/quantumauth-io/quantum-auth-gate/internal/http"
	"github.com/quantumauth-io/quantum-auth-gate/internal/permissions"
	"github.com/quantumauth-io/quantum-auth-gate/internal/popup"
	"github.com/quantumauth-io/quantum-auth-gate/internal/provider"
)

const (
	shutdownTimeout      = 5 * time.Second
	upstreamCheckTimeout = 3 * time.Second
)

func newServeCmd(load loadFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the gate on the loopback interface",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := load()
			if err != nil {
				return errors.Wrap(err, "failed to parse config")
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg)
		},
	}
}

func serve(ctx context.Context, cfg *config.Config) error {
	log.Info(constants.AppName,
		"version", Version,
		"commit", Commit,
		"build_date", BuildDate,
	)

	store, closeStore, err := openStore(cfg, envOrPromptPassword)
	if err != nil {
		return err
	}
	defer func() {
		if err := closeStore(); err != nil {
			log.Error("permission store close failed", "error", err)
		}
	}()

	cache, err := permissions.NewCache(ctx, store)
	if err != nil {
		return err
	}
	log.Info("permission store ready", "driver", cfg.Storage.Driver, "grants", len(cache.Snapshot()))

	upstream, err := dispatch.DialUpstream(ctx, dispatch.UpstreamConfig{
		URL:        cfg.Upstream.URL,
		AuthHeader: cfg.Upstream.AuthHeader,
		AuthToken:  cfg.Upstream.AuthToken,
	})
	if err != nil {
		return err
	}
	defer upstream.Close()

	checkCtx, cancelCheck := context.WithTimeout(ctx, upstreamCheckTimeout)
	if got, err := upstream.ChainID(checkCtx); err != nil {
		log.Warn("upstream chain id check failed", "error", err)
	} else if got != cfg.Wallet.ChainIDHex {
		log.Warn("upstream chain differs from configured chain", "upstream", got, "configured", cfg.Wallet.ChainIDHex)
	}
	cancelCheck()

	hub := popup.NewHub()
	svc := provider.New(provider.Deps{
		Store:      cache,
		Table:      consent.NewTable(),
		Popups:     popup.NewManager(hub, hub, cfg.Popup.PageURL),
		Dispatcher: upstream,
		Publisher:  hub,
		OnClaimReferrer: func(referrer string) {
			log.Info("claim referrer recorded", "referrer", referrer)
		},
	}, provider.Config{
		Account:       cfg.Wallet.Account,
		ChainIDHex:    cfg.Wallet.ChainIDHex,
		DefaultWallet: cfg.Wallet.DefaultWallet,
		ClaimOrigin:   cfg.Provider.ClaimOrigin,
	})

	gin.SetMode(gin.ReleaseMode)
	srv, err := gatehttp.NewServer(gatehttp.Options{
		Service:          svc,
		Hub:              hub,
		UIAllowedOrigins: cfg.Server.UIAllowedOrigins,
		UIBaseURL:        cfg.Server.UIBaseURL,
		PortName:         cfg.Provider.PortName,
		ReadLimit:        cfg.Provider.ReadLimit,
	})
	if err != nil {
		return err
	}

	link, err := srv.NewPairing()
	if err != nil {
		return err
	}
	log.Info("open this link to pair the consent UI", "url", link, "expires_in", gatehttp.PairingExchangeTTL.String())

	server := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           srv,
		ReadHeaderTimeout: 10 * time.Second,
		// websocket handlers are hijacked and outlive Shutdown; they end with ctx
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("HTTP server listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			return errors.Wrap(err, "HTTP server")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown failed", "error", err)
		return err
	}
	log.Info("HTTP server gracefully stopped")
	return nil
}
