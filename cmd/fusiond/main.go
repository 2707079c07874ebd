package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/catalogfi/fusion/daemon"
	jsonrpc "github.com/catalogfi/fusion/daemon/rpc"
	"github.com/catalogfi/fusion/pkg/process"
	"github.com/catalogfi/fusion/utils"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	// Load config
	envConfig, err := utils.LoadConfig(utils.DefaultConfigPath())
	if err != nil {
		return fmt.Errorf("could not load config: %w", err)
	}
	if envConfig.JWTSecret == "" {
		return fmt.Errorf("jwt secret must be specified")
	}

	logger, err := utils.NewLogger(envConfig)
	if err != nil {
		return fmt.Errorf("could not build logger: %w", err)
	}
	defer logger.Sync()

	pidManager := process.NewPidManager(utils.DefaultPidPath())
	if err := pidManager.Write(); err != nil {
		return err
	}
	defer pidManager.Remove()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	coreConfig, err := daemon.Build(ctx, envConfig, logger)
	if err != nil {
		logger.Error("failed to start", zap.Error(err))
		return err
	}

	opts := jsonrpc.DefaultOptions().
		WithJWTSecret(envConfig.JWTSecret).
		WithDomain(envConfig.Domain)
	server := jsonrpc.NewRpcServer(coreConfig, opts)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.Run(ctx, envConfig.Listen)
	})
	logger.Info("fusiond started",
		zap.String("listen", envConfig.Listen),
		zap.String("store", envConfig.Store),
		zap.Bool("openAccess", envConfig.OpenAccess))

	if err := g.Wait(); err != nil {
		logger.Error("stopped with error", zap.Error(err))
		return err
	}
	return nil
}
