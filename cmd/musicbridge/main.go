package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dgnsrekt/musicbridge/internal/api"
	"github.com/dgnsrekt/musicbridge/internal/browser"
	"github.com/dgnsrekt/musicbridge/internal/cdpcontrol"
	"github.com/dgnsrekt/musicbridge/internal/config"
	"github.com/dgnsrekt/musicbridge/internal/events"
	"github.com/dgnsrekt/musicbridge/internal/hint"
	"github.com/dgnsrekt/musicbridge/internal/journal"
	"github.com/dgnsrekt/musicbridge/internal/logging"
	"github.com/dgnsrekt/musicbridge/internal/netutil"
	"github.com/dgnsrekt/musicbridge/internal/router"
	"github.com/dgnsrekt/musicbridge/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	if err := logging.Setup(cfg.LogLevel, cfg.LogFile, true); err != nil {
		if _, writeErr := io.WriteString(os.Stderr, "logger setup failed: "+err.Error()+"\n"); writeErr != nil {
			slog.Debug("logger setup stderr write failed", "error", writeErr)
		}
		os.Exit(1)
	}

	slog.Info("musicbridge config loaded",
		"bind_addr", cfg.BindAddr,
		"cdp_url", cfg.CDPURL(),
		"eval_timeout_ms", cfg.EvalTimeoutMS,
		"relay_timeout_ms", cfg.RelayTimeoutMS,
		"port_auto_fallback", cfg.PortAutoFallback,
		"port_candidates", cfg.PortCandidates,
		"hint_file", cfg.HintFile,
		"event_log_dir", cfg.EventLogDir,
		"launch_browser", cfg.LaunchBrowser,
		"log_level", cfg.LogLevel,
		"log_file", cfg.LogFile,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.LaunchBrowser {
		launcher := browser.NewLauncher(browser.Config{
			CDPAddress: cfg.CDPAddress,
			CDPPort:    cfg.CDPPort,
			StartURLs:  []string{service.Default().FallbackURL},
			ProfileDir: cfg.ProfileDir,
		})
		if err := launcher.Launch(ctx); err != nil {
			slog.Error("failed to launch browser", "error", err)
			os.Exit(1)
		}
		defer launcher.Stop()
	}

	ln, err := netutil.Listen(cfg.BindAddr, cfg.PortCandidates, cfg.PortAutoFallback)
	if err != nil {
		slog.Error("failed to bind API address", "preferred", cfg.BindAddr, "error", err)
		os.Exit(1)
	}
	addr := ln.Addr().String()

	cdpClient := cdpcontrol.NewClient(cfg.CDPURL(), cfg.EvalTimeout())
	if err := cdpClient.Connect(ctx); err != nil {
		slog.Error("failed to connect CDP", "cdp_url", cfg.CDPURL(), "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := cdpClient.Close(); err != nil {
			slog.Debug("CDP client close failed", "error", err)
		}
	}()

	broker := events.NewBroker()
	if cfg.EventLogDir != "" {
		jw, err := journal.NewWriter(cfg.EventLogDir)
		if err != nil {
			slog.Error("failed to open event journal", "dir", cfg.EventLogDir, "error", err)
			os.Exit(1)
		}
		defer func() {
			if err := jw.Close(); err != nil {
				slog.Debug("event journal close failed", "error", err)
			}
		}()
		go jw.Follow(ctx, broker)
	}
	opts := []router.Option{
		router.WithPanel(cfg.ControlPanelURL(addr), cfg.PanelWidth, cfg.PanelHeight),
		router.WithRelayTimeout(cfg.RelayTimeout()),
		router.WithEvents(broker),
	}
	if cfg.HintFile != "" {
		hints, err := hint.NewStore(cfg.HintFile)
		if err != nil {
			slog.Error("failed to open hint store", "path", cfg.HintFile, "error", err)
			os.Exit(1)
		}
		opts = append(opts, router.WithHints(hints))
	}
	rt := router.New(router.CDP(cdpClient), router.NewState(), opts...)
	defer rt.Close()

	srv := &http.Server{Handler: api.NewServer(rt, broker)}
	go func() {
		slog.Info("musicbridge listening", "addr", addr, "docs", "http://"+addr+"/docs")
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("musicbridge server failed", "error", err)
			os.Exit(1)
		}
	}()

	if err := rt.OpenOrFocusControlWindow(ctx); err != nil {
		slog.Error("failed to open control window", "panel_url", cfg.ControlPanelURL(addr), "error", err)
		os.Exit(1)
	}
	go rt.WatchControlWindow(ctx, cfg.WindowPoll())

	<-ctx.Done()
	slog.Info("musicbridge shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("musicbridge shutdown failed", "error", err)
	}
}
