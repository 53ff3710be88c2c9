package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"wgobfs/internal/conf"
	"wgobfs/internal/flog"
	"wgobfs/internal/relay"
)

func newRunCommand() *cobra.Command {
	var configPath string
	var logLevel string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start the relay using a YAML config file",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRelay(configPath, logLevel)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to config.yaml (required)")
	cmd.Flags().StringVar(&logLevel, "log-level", "", "override the config file's log.level (debug, info, warn, error)")
	cmd.MarkFlagRequired("config")
	return cmd
}

func runRelay(configPath, logLevel string) error {
	cfg, err := conf.LoadFromFile(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	if err := flog.Configure(cfg.Log.Level, cfg.Log.Format); err != nil {
		return fmt.Errorf("configuring logging: %w", err)
	}

	r, err := relay.New(relay.Config{
		LocalPort:         cfg.Listen.Port,
		RemoteAddr:        cfg.Remote.Addr,
		Key:               cfg.Obfuscation.Key,
		MaxDummyData:      cfg.Obfuscation.MaxDummyData,
		Masking:           cfg.Masking.Mode,
		KeepaliveInterval: cfg.Masking.KeepaliveInterval,
		MaxPeers:          cfg.Session.MaxPeers,
		SessionBackend:    cfg.Session.Backend,
		RedisAddr:         cfg.Session.RedisAddr,
		RedisKey:          cfg.Session.RedisKey,
		RedisTTL:          cfg.Session.RedisTTL,
	})
	if err != nil {
		return fmt.Errorf("constructing relay: %w", err)
	}

	flog.Infof("starting relay...")
	port, err := r.Start()
	if err != nil {
		return fmt.Errorf("starting relay: %w", err)
	}
	flog.Infof("relay listening on 127.0.0.1:%d, forwarding to %s", port, cfg.Remote.Addr)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sig
		flog.Infof("shutdown signal received, stopping relay...")
		cancel()
	}()

	go logMetricsPeriodically(ctx, r)

	<-ctx.Done()
	r.Stop()
	flog.Infof("relay stopped")
	return nil
}

func logMetricsPeriodically(ctx context.Context, r *relay.Relay) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			snap := r.Metrics()
			flog.WithFields(map[string]any{
				"packets_in":  snap.PacketsIn,
				"packets_out": snap.PacketsOut,
				"bytes_in":    snap.BytesIn,
				"bytes_out":   snap.BytesOut,
				"dropped":     snap.Dropped,
				"keepalives":  snap.Keepalives,
			}).Info("relay metrics")
		}
	}
}
