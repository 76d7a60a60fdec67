package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awsssm "github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"support-bot/handler"
	"support-bot/internal/config"
	"support-bot/internal/integrations/paramstore"
	"support-bot/internal/integrations/telegram"
	"support-bot/internal/logging"
	"support-bot/internal/session"
	"support-bot/internal/usecase"
)

const statsInterval = 5 * time.Minute

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		configPath string
		logAppend  bool
	)
	cmd := &cobra.Command{
		Use:           "support-bot",
		Short:         "Telegram bot that collects problem reports in group chats",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				fmt.Fprintln(os.Stderr, "load config:", err)
				return err
			}
			if cmd.Flags().Changed("log-append") {
				cfg.Log.Append = logAppend
			}

			logger, closeLog, err := logging.New(cfg.Log)
			if err != nil {
				fmt.Fprintln(os.Stderr, "init logging:", err)
				return err
			}
			defer func() { _ = closeLog() }()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if err := run(ctx, cfg, logger); err != nil {
				logger.Error("bot stopped", "err", err)
				return err
			}
			logger.Info("bot stopped")
			return nil
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "", "path to a YAML config file (default: $CONFIG_PATH or ./config.yaml)")
	cmd.Flags().BoolVar(&logAppend, "log-append", false, "append to the log file instead of truncating it")
	return cmd
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	tokens, err := tokenProvider(ctx, cfg.Telegram)
	if err != nil {
		return err
	}

	client, err := telegram.NewClient(tokens,
		telegram.WithBaseURL(cfg.Telegram.BaseURL),
		// Long polls hold the connection for PollTimeout.
		telegram.WithHTTPClient(&http.Client{Timeout: cfg.Telegram.RequestTimeout + cfg.Telegram.PollTimeout}),
	)
	if err != nil {
		return err
	}

	me, err := client.GetMe(ctx)
	if err != nil {
		return fmt.Errorf("get bot account: %w", err)
	}
	if cfg.Telegram.DropPending {
		if err := client.DropPendingUpdates(ctx); err != nil {
			return fmt.Errorf("drop pending updates: %w", err)
		}
	}
	if err := client.SetGroupCommands(ctx, []telegram.Command{
		{Command: "report", Description: cfg.Messages.CommandDescription},
	}); err != nil {
		logger.Warn("set commands failed", "err", err)
	}

	registry := session.NewRegistry()
	intake, err := usecase.NewIntakeService(registry, client, cfg.Intake, cfg.Messages, me.Username, logger)
	if err != nil {
		return err
	}
	dispatcher, err := handler.NewDispatcher(intake, logger)
	if err != nil {
		return err
	}

	logger.Info("bot started",
		"username", me.Username,
		"poll_timeout", cfg.Telegram.PollTimeout.String(),
		"quiet_interval", cfg.Intake.QuietInterval.String(),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return handler.Poll(gctx, client, dispatcher, cfg.Telegram.PollTimeout, logger)
	})
	g.Go(func() error {
		ticker := time.NewTicker(statsInterval)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				logger.Info("live sessions", "count", registry.Len())
			}
		}
	})
	err = g.Wait()

	dispatcher.Wait()
	intake.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// tokenProvider picks the token source: an explicit token, then an SSM
// parameter, then the token file.
func tokenProvider(ctx context.Context, cfg config.TelegramConfig) (telegram.TokenProvider, error) {
	if tok := strings.TrimSpace(cfg.Token); tok != "" {
		return telegram.StaticToken(tok), nil
	}
	if name := strings.TrimSpace(cfg.TokenParameter); name != "" {
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			return nil, fmt.Errorf("load AWS config: %w", err)
		}
		return paramstore.NewTokenSource(awsssm.NewFromConfig(awsCfg), name)
	}
	return telegram.FileToken(cfg.TokenFile), nil
}
