package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/harshithgowdakt/widepart/internal/config"
	"github.com/harshithgowdakt/widepart/internal/logging"
	"github.com/harshithgowdakt/widepart/internal/server"
	"github.com/harshithgowdakt/widepart/internal/storage"
)

func main() {
	configPath := flag.String("config", "widepart.yaml", "Path to the YAML config file")
	dataDir := flag.String("data-dir", "", "Data directory path (overrides config)")
	addr := flag.String("addr", "", "HTTP server address (overrides config)")
	flag.Parse()

	if err := run(*configPath, *dataDir, *addr); err != nil {
		fmt.Fprintf(os.Stderr, "widepartd: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath, dataDir, addr string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if dataDir != "" {
		cfg.DataDir = dataDir
	}
	if addr != "" {
		cfg.Server.Addr = addr
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := logging.Init(cfg.Log.Level, cfg.Log.Pretty); err != nil {
		return err
	}
	log := logging.With("main")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	d, err := cfg.OpenDisk(ctx)
	if err != nil {
		return fmt.Errorf("opening %s disk: %w", cfg.Disk.Type, err)
	}
	db, err := storage.NewDatabase(ctx, d, cfg.MergeTree, cfg.AttachConcurrency)
	if err != nil {
		return fmt.Errorf("initializing database: %w", err)
	}
	log.Info().
		Str("disk", d.Name()).
		Str("data_dir", cfg.DataDir).
		Strs("tables", db.TableNames()).
		Msg("database loaded")

	marks, err := storage.NewMarkCache(cfg.Cache.MarkCacheEntries)
	if err != nil {
		return err
	}
	blocks, err := storage.NewUncompressedCache(cfg.Cache.UncompressedCacheEntries)
	if err != nil {
		return err
	}

	srv, err := server.NewServer(db, cfg.Server.Addr, prometheus.NewRegistry(),
		server.Caches{Marks: marks, Uncompressed: blocks})
	if err != nil {
		return err
	}
	return srv.Start(ctx)
}
