// Copyright 2026 The tgForwardbot Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"

	"github.com/haiyewei/tgForwardbot/lib/config"
	"github.com/haiyewei/tgForwardbot/lib/ctlsock"
	"github.com/haiyewei/tgForwardbot/relay"
	"github.com/haiyewei/tgForwardbot/telegram"
)

const version = "1.2.0"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configPath  string
		envFile     string
		logLevel    string
		showVersion bool
	)

	pflag.StringVar(&configPath, "config", "", "path to the config file (default: $TGFORWARDBOT_CONFIG)")
	pflag.StringVar(&envFile, "env-file", ".env", "dotenv file to load before reading the environment")
	pflag.StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn, error")
	pflag.BoolVar(&showVersion, "version", false, "print version information and exit")
	pflag.Parse()

	if showVersion {
		fmt.Printf("tgforwardbot %s\n", version)
		return nil
	}

	// The dotenv file is optional; a missing file is the normal case
	// outside development.
	if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("loading %s: %w", envFile, err)
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(logLevel)); err != nil {
		return fmt.Errorf("invalid --log-level %q: %w", logLevel, err)
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	var cfg *config.Config
	var err error
	if configPath != "" {
		cfg, err = config.LoadFile(configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return err
	}

	token := os.Getenv("TELEGRAM_BOT_TOKEN")
	if token == "" {
		return fmt.Errorf("TELEGRAM_BOT_TOKEN environment variable not set")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client, err := telegram.NewClient(telegram.ClientConfig{
		Token:   token,
		BaseURL: cfg.Telegram.APIBaseURL,
		Logger:  logger,
	})
	if err != nil {
		return err
	}

	// Token and reachability check before touching anything on disk.
	bot, err := client.GetMe(ctx)
	if err != nil {
		return fmt.Errorf("verifying bot token: %w", err)
	}
	logger.Info("bot identity verified",
		"bot_id", bot.ID,
		"username", bot.Username,
	)

	// Continuing against a group without topics would scatter every
	// relayed message into the general timeline.
	chat, err := client.GetChat(ctx, cfg.Telegram.GroupID)
	if err != nil {
		return fmt.Errorf("inspecting group %d: %w", cfg.Telegram.GroupID, err)
	}
	if !chat.IsForum {
		return fmt.Errorf("group %d (%s) is not a forum supergroup", chat.ID, chat.Title)
	}

	if err := os.MkdirAll(cfg.Paths.DataDir, 0o755); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}
	userLedgerPath := filepath.Join(cfg.Paths.DataDir, "user_info.txt")
	auditLedgerPath := filepath.Join(cfg.Paths.DataDir, "forwardlog.log")

	// Bootstrap the two well-known topics. Failure here is fatal:
	// restart retries.
	adminBootstrap := relay.NewTopicBootstrap(client, cfg.Telegram.GroupID,
		userLedgerPath, cfg.Telegram.UserInfoTopicName, logger)
	adminThreadID, adminCreated, err := adminBootstrap.Resolve(ctx)
	if err != nil {
		return err
	}

	auditBootstrap := relay.NewTopicBootstrap(client, cfg.Telegram.GroupID,
		auditLedgerPath, cfg.Telegram.LogTopicName, logger)
	auditThreadID, _, err := auditBootstrap.Resolve(ctx)
	if err != nil {
		return err
	}

	store := relay.NewStore(userLedgerPath, logger)
	if err := store.Load(); err != nil {
		return err
	}

	audit, err := relay.NewAuditLog(relay.AuditLogConfig{
		LedgerPath:    auditLedgerPath,
		RotateDir:     filepath.Join(cfg.Paths.DataDir, "backup", "rotate"),
		ExportDir:     filepath.Join(cfg.Paths.DataDir, "backup", "export"),
		Store:         store,
		API:           client,
		GroupID:       cfg.Telegram.GroupID,
		AuditThreadID: auditThreadID,
		OwnerID:       cfg.Telegram.OwnerID,
		RotateBytes:   cfg.Audit.RotateBytes,
		ExportKeep:    cfg.Audit.ExportKeep,
		RotateKeep:    cfg.Audit.RotateKeep,
		Logger:        logger,
	})
	if err != nil {
		return err
	}

	resolver := relay.NewResolver(store, client, cfg.Telegram.GroupID, adminThreadID, logger)
	watcher := telegram.NewUpdateWatcher(client, logger)

	engine := relay.NewEngine(relay.EngineConfig{
		Store:           store,
		Resolver:        resolver,
		Audit:           audit,
		API:             client,
		Updates:         watcher,
		GroupID:         cfg.Telegram.GroupID,
		AdminThreadID:   adminThreadID,
		AuditThreadID:   auditThreadID,
		OwnerID:         cfg.Telegram.OwnerID,
		UserLedgerPath:  userLedgerPath,
		AuditLedgerPath: auditLedgerPath,
		Logger:          logger,
	})

	announceStartup(ctx, client, cfg.Telegram.GroupID, adminThreadID, adminCreated, store.Len(), logger)

	// The control socket runs alongside the engine so operators can
	// trigger exports even when the chat transport is down.
	socketDone := make(chan error, 1)
	if cfg.Paths.ControlSocket != "" {
		server := ctlsock.NewServer(cfg.Paths.ControlSocket, logger)
		registerControlActions(server, engine, store, adminThreadID, auditThreadID)
		go func() { socketDone <- server.Serve(ctx) }()
	} else {
		close(socketDone)
	}

	logger.Info("relay started",
		"group_id", cfg.Telegram.GroupID,
		"admin_thread", adminThreadID,
		"audit_thread", auditThreadID,
		"mappings", store.Len(),
	)

	runErr := engine.Run(ctx)

	// Wait for the socket server to drain before exiting.
	stop()
	if err := <-socketDone; err != nil {
		logger.Warn("control socket shutdown", "error", err)
	}

	return runErr
}

// announcer is the slice of the client the startup notices need.
type announcer interface {
	SendMessage(ctx context.Context, chatID int64, threadID int64, text string) (*telegram.Message, error)
	SendSilentMessage(ctx context.Context, chatID int64, threadID int64, text string) (*telegram.Message, error)
}

// announceStartup posts the startup notice and the loaded-mapping
// summary into the admin topic. The summary is sent silently so a
// routine restart does not ping the whole group. Best-effort: the
// relay works without the notices.
func announceStartup(ctx context.Context, client announcer, groupID, adminThreadID int64, created bool, mappings int, logger *slog.Logger) {
	notice := "✅ 机器人启动成功"
	if created {
		notice = "✅ 初始化成功"
	}
	if _, err := client.SendMessage(ctx, groupID, adminThreadID, notice); err != nil {
		logger.Warn("failed to post startup notice", "error", err)
		return
	}

	summary := "⚠️ 未找到历史用户数据"
	if mappings > 0 {
		summary = fmt.Sprintf("📊 已加载用户数据：%d 条映射关系", mappings)
	}
	if _, err := client.SendSilentMessage(ctx, groupID, adminThreadID, summary); err != nil {
		logger.Warn("failed to post mapping summary", "error", err)
	}
}
