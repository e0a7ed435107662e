package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/redis/go-redis/v9"

	"github.com/odyssey-erp/dbguard/internal/access"
	"github.com/odyssey-erp/dbguard/internal/app"
	"github.com/odyssey-erp/dbguard/internal/audit"
	"github.com/odyssey-erp/dbguard/internal/security"
	"github.com/odyssey-erp/dbguard/internal/secutil"
	"github.com/odyssey-erp/dbguard/internal/vault"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := app.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := app.NewLogger(cfg)

	sink, err := buildSink(cfg)
	if err != nil {
		return fmt.Errorf("build audit sink: %w", err)
	}

	hasher := secutil.NewHasher(cfg.KDFIterations)
	auditSvc := audit.NewService(logger, cfg.AuditCapacity, sink)
	defer func() {
		if err := auditSvc.Close(); err != nil {
			logger.Warn("close audit sink", slog.Any("error", err))
		}
	}()

	accessSvc := access.NewService(logger, hasher, access.Options{
		SessionTTL:       cfg.SessionTTL,
		LockoutThreshold: cfg.LockoutThreshold,
		LockoutWindow:    cfg.LockoutWindow,
	})
	vaultSvc := vault.NewService(logger, hasher)

	manager := security.NewManager(logger, accessSvc, auditSvc, vaultSvc)
	manager.Initialize()

	// Short demonstration flow: a login, one authorized and one denied
	// query, then the dashboard.
	token, ok := manager.Login("readonly", "readonly123", "127.0.0.1")
	if !ok {
		return fmt.Errorf("seeded readonly login failed")
	}
	authorized, msg := manager.ExecuteSecureQuery(token, map[string]any{"SELECT": []string{"*"}, "FROM": "orders"}, "127.0.0.1")
	logger.Info("select query", slog.Bool("authorized", authorized), slog.String("message", msg))
	authorized, msg = manager.ExecuteSecureQuery(token, map[string]any{"DROP": true, "TABLE": "orders"}, "127.0.0.1")
	logger.Info("drop query", slog.Bool("authorized", authorized), slog.String("message", msg))
	manager.Logout(token)

	dash, err := manager.Dashboard(context.Background())
	if err != nil {
		return fmt.Errorf("build dashboard: %w", err)
	}
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(dash)
}

func buildSink(cfg *app.Config) (audit.Sink, error) {
	switch cfg.AuditSink {
	case "file":
		return audit.NewFileSink(cfg.AuditFile)
	case "redis":
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		return audit.NewRedisSink(client, cfg.AuditRedisKey, int64(cfg.AuditCapacity)), nil
	default:
		return audit.NopSink{}, nil
	}
}
