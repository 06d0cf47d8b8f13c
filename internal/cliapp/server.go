package cliapp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/claudecube/claudecube/internal/approval"
	"github.com/claudecube/claudecube/internal/audit"
	"github.com/claudecube/claudecube/internal/chat"
	"github.com/claudecube/claudecube/internal/config"
	"github.com/claudecube/claudecube/internal/ingress"
	"github.com/claudecube/claudecube/internal/llm"
	"github.com/claudecube/claudecube/internal/pipeline"
	"github.com/claudecube/claudecube/internal/policy"
	"github.com/claudecube/claudecube/internal/session"
	"github.com/claudecube/claudecube/internal/tmux"
	"github.com/claudecube/claudecube/internal/watcher"
)

func runRoot(cmd *cobra.Command, f *rootFlags) error {
	switch {
	case f.install:
		return runInstall(cmd, f)
	case f.uninstall:
		return runUninstall(cmd, f)
	case f.status:
		return runStatus(cmd, f)
	default:
		return runServe(cmd, f)
	}
}

func runServe(cmd *cobra.Command, f *rootFlags) error {
	level := slog.LevelInfo
	if f.verbose {
		level = slog.LevelDebug
	}
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	configPath := defaultConfigPath(f.configPath)
	rulesPath := defaultRulesPath(f.rulesPath)
	dataDir := filepath.Dir(configPath)
	if dataDir == "." {
		dataDir = ".claudecube"
	}

	mgr := config.NewManager(configPath)
	cfg, err := mgr.Get()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if f.port != 0 {
		cfg.Server.Port = f.port
	}

	rw, err := watcher.New(rulesPath, log)
	if err != nil {
		return fmt.Errorf("load rules: %w", err)
	}
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rw.Start(ctx); err != nil {
		log.Warn("rules hot-reload disabled", "error", err)
	}

	sessions := session.New(tmux.New())
	sessions.RegisterFromTmux()

	auditSink := audit.NewAuditSink(filepath.Join(dataDir, "audit"), log)
	defer auditSink.Close()
	costSink := audit.NewCostSink(filepath.Join(dataDir, "audit"), log)
	defer costSink.Close()

	policies, err := policy.Load(filepath.Join(dataDir, "policies.yaml"))
	if err != nil {
		return fmt.Errorf("load policies: %w", err)
	}

	llmClient := llm.New(os.Getenv("ANTHROPIC_API_KEY"), cfg.Escalation.EvaluatorModel, costSink)

	var notifier pipeline.Notifier
	var coordinator *approval.Coordinator
	token := os.Getenv("TELEGRAM_BOT_TOKEN")
	chatIDStr := os.Getenv("TELEGRAM_CHAT_ID")
	if cfg.Telegram.Enabled && token != "" && chatIDStr != "" {
		chatID, parseErr := strconv.ParseInt(chatIDStr, 10, 64)
		if parseErr != nil {
			return fmt.Errorf("parse TELEGRAM_CHAT_ID: %w", parseErr)
		}
		chatAdapter := chat.New(token, chatID)
		notifier = chatAdapter
		coordinator = approval.New(chatAdapter, tmux.New(), llmClient, cfg.Escalation.TelegramTimeout.Duration, log)
		go chatAdapter.Poll(ctx, func(callbackID, data string) {
			coordinator.OnButton(ctx, callbackID, data)
		}, func(replyToMessageID, text string) {
			coordinator.OnTextReply(ctx, replyToMessageID, text)
		})
	}

	var approvals pipeline.ApprovalCoordinator
	if coordinator != nil {
		approvals = coordinator
	}

	handler := pipeline.New(rw, sessions, llmClient, approvals, llmClient, auditSink, policies, notifier, rulesPath, cfg, log)
	if coordinator != nil {
		coordinator.SetDetailsProvider(handler)
		coordinator.SetRuleAppender(handler)
	}

	srv := ingress.New(handler, sessions, func() int { return rw.Current().Version() }, log)

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           srv.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ln, err := net.Listen("tcp", httpServer.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", httpServer.Addr, err)
	}

	errCh := make(chan error, 1)
	go func() {
		if err := httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	log.Info("claudecube listening", "port", cfg.Server.Port)

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		return fmt.Errorf("server: %w", err)
	}
}
