// Command serve runs the local read-only vault viewer.
package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"vaultpin/internal/config"
	"vaultpin/internal/gateway"
	"vaultpin/internal/pinning"
	"vaultpin/internal/resolve"
	"vaultpin/internal/vault"
	"vaultpin/internal/web"
)

func main() {
	var cfgPath string
	flag.StringVar(&cfgPath, "config", "vaultpin.yaml", "config file path")
	flag.Parse()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		slog.Error("load config", "err", err)
		os.Exit(1)
	}
	setupLogging(cfg.LogLevel)

	if cfg.Mode == config.ModePrivate && cfg.APIToken == "" {
		slog.Error("private mode requires an api token")
		os.Exit(1)
	}

	v := vault.Open(cfg.VaultPath)
	client := pinning.New(cfg.Endpoint, cfg.APIToken, &http.Client{})
	builder := gateway.NewBuilder(cfg, client)

	var refresher *resolve.Refresher
	if cfg.Mode == config.ModePrivate {
		refresher = resolve.NewRefresher(builder, cfg.RefreshInterval)
		refresher.Start(context.Background())
	}
	resolver := resolve.New(builder, refresher)

	srv := web.NewServer(cfg, v, resolver)
	slog.Info("listening", "addr", cfg.ListenAddr, "vault", cfg.VaultPath, "mode", cfg.Mode)
	if err := http.ListenAndServe(cfg.ListenAddr, srv.Handler()); err != nil {
		slog.Error("server error", "err", err)
		os.Exit(1)
	}
}

func setupLogging(level string) {
	lvl := new(slog.LevelVar)
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		lvl.Set(slog.LevelDebug)
	case "warn", "warning":
		lvl.Set(slog.LevelWarn)
	case "error":
		lvl.Set(slog.LevelError)
	default:
		lvl.Set(slog.LevelInfo)
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})))
}
