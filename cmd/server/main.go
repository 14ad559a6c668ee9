package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"

	"github.com/tracklane/tracklane/internal/api"
	"github.com/tracklane/tracklane/internal/auth"
	"github.com/tracklane/tracklane/internal/bridge"
	"github.com/tracklane/tracklane/internal/config"
	"github.com/tracklane/tracklane/internal/notify"
	"github.com/tracklane/tracklane/internal/store"
	"github.com/tracklane/tracklane/internal/ws"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	uiDir := flag.String("ui-dir", "", "serve the web UI static files from this directory (e.g. ui/dist); leave empty to disable")
	watch := flag.Bool("watch", false, "hot-reload notification rules when the config file changes")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	slog.Info("tracklane-server starting", "config", *configPath)

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}

	slog.Info("config loaded",
		"http_port", cfg.Server.HTTPPort,
		"db_path", cfg.Server.DBPath,
		"auth_mode", cfg.Auth.Mode,
		"notify_rules", len(cfg.Notify.Rules),
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	st, err := store.Open(cfg.Server.DBPath)
	if err != nil {
		slog.Error("failed to open store", "db_path", cfg.Server.DBPath, "err", err)
		os.Exit(1)
	}
	defer st.Close()

	// WebSocket hub — one broadcast room per project.
	hub := ws.New(ws.Options{
		SendBuffer:   cfg.WS.SendBuffer,
		InboundRate:  cfg.WS.InboundRate,
		InboundBurst: cfg.WS.InboundBurst,
	})
	go hub.Run(ctx)

	// Webhook notifier — evaluates rules on every published task event.
	// Held behind an atomic pointer so a config reload can swap it in place.
	var notifier atomic.Pointer[notify.Notifier]
	notifier.Store(notify.New(cfg.Notify))

	pub := bridge.New(hub, notifierFunc(func(projectKey string, payload []byte) {
		notifier.Load().Evaluate(projectKey, payload)
	}))

	if *watch {
		go func() {
			err := config.Watch(ctx, *configPath, func(next *config.Config) {
				notifier.Store(notify.New(next.Notify))
				slog.Info("notification rules reloaded", "rules", len(next.Notify.Rules))
			})
			if err != nil {
				slog.Error("config watch stopped", "err", err)
			}
		}()
	}

	// Combined HTTP server: REST API + WebSocket hub on HTTPPort.
	apiHandler := api.New(st, pub, hub)
	apiKey := auth.APIKey(cfg.Auth.Mode, cfg.Auth.EffectiveHeader(), cfg.Auth.Key())
	tenant := auth.Tenant(st)

	httpMux := http.NewServeMux()
	httpMux.Handle("/api/", apiKey(tenant(apiHandler)))
	httpMux.Handle("/ws/tasks/", hub)

	// Optional: serve a pre-built web UI from a local directory.
	// The "/" catch-all serves index.html for any unknown path (SPA routing).
	if *uiDir != "" {
		fs := http.FileServer(http.Dir(*uiDir))
		httpMux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
			// SPA fallback: if the requested file doesn't exist, serve index.html.
			path := *uiDir + r.URL.Path
			if _, err := os.Stat(path); os.IsNotExist(err) {
				http.ServeFile(w, r, *uiDir+"/index.html")
				return
			}
			fs.ServeHTTP(w, r)
		})
		slog.Info("serving UI static files", "dir", *uiDir)
	}

	httpSrv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.HTTPPort),
		Handler: httpMux,
	}
	go func() {
		slog.Info("HTTP server listening", "port", cfg.Server.HTTPPort)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server stopped", "err", err)
		}
	}()

	<-ctx.Done()
	slog.Info("tracklane-server shutting down")
	httpSrv.Shutdown(context.Background()) //nolint:errcheck
}

// notifierFunc adapts a function to the bridge.Notifier interface.
type notifierFunc func(projectKey string, payload []byte)

func (f notifierFunc) Evaluate(projectKey string, payload []byte) { f(projectKey, payload) }
