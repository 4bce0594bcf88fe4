// Command snapshot computes one distribution manifest without Temporal. The manifest is written
// to SNAPSHOT_OUTPUT, or stdout when unset.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/canopy-network/stakedrop/pkg/logging"
	"github.com/canopy-network/stakedrop/pkg/snapshot"
	"go.uber.org/zap"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger, err := logging.New("snapshot")
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(ctx, logger); err != nil {
		logger.Error("Snapshot failed", zap.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *zap.Logger) error {
	cfg, err := snapshot.ConfigFromEnv()
	if err != nil {
		return err
	}
	req, err := cfg.Request(time.Now().UTC())
	if err != nil {
		return err
	}

	services, err := snapshot.NewServices(ctx, logger, cfg, snapshot.ServiceOpts{
		Component: "snapshot",
		Store:     cfg.Persist,
	})
	if err != nil {
		return err
	}
	defer services.Close()

	m, err := services.Runner.Run(ctx, req)
	if err != nil {
		return err
	}
	if services.Store != nil {
		if err := services.Store.SaveSnapshot(ctx, string(req.Subject), m); err != nil {
			return err
		}
	}

	if cfg.Output == "" {
		return snapshot.EncodeManifest(os.Stdout, m)
	}
	if err := snapshot.WriteManifest(cfg.Output, m); err != nil {
		return err
	}
	logger.Info("Manifest written", zap.String("path", cfg.Output), zap.String("root", m.MerkleTree.Root.Hex()))
	return nil
}
