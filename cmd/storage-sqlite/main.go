// Command storage-sqlite runs the FogLAMP SQLite readings storage engine
// as a standalone process: it opens the store, starts the scheduled purge
// task, and serves the HTTP façade filter plugins and the north-bound
// sending service talk to.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/foglamp-io/storage-sqlite/internal/config"
	"github.com/foglamp-io/storage-sqlite/notify"
	"github.com/foglamp-io/storage-sqlite/readings"
	"github.com/foglamp-io/storage-sqlite/storageclient"
)

func main() {
	configPath := flag.String("config", "storage.yaml", "path to the process YAML configuration")
	flag.Parse()

	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	if err := run(*configPath, log); err != nil {
		log.Error("storage-sqlite exited", "error", err)
		os.Exit(1)
	}
}

func run(configPath string, log *slog.Logger) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return fmt.Errorf("create data dir %s: %w", cfg.DataDir, err)
	}

	store, err := readings.Open(cfg.StoreConfig(), log)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer store.Close()

	var hub *notify.Hub
	if cfg.HTTP.NotifyWebsocket {
		hub = notify.NewHub(notify.DefaultConfig())
		store.SetNotifier(hub)
	}

	var auth *storageclient.AdminAuth
	if cfg.Admin.APIKey != "" {
		auth, err = storageclient.NewAdminAuth(cfg.Admin.APIKey)
		if err != nil {
			return fmt.Errorf("configure admin auth: %w", err)
		}
	}

	server := storageclient.NewServer(store, hub, auth, log)
	httpServer := &http.Server{
		Addr:              cfg.HTTP.Bind,
		Handler:           server,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Purge.Enabled {
		go runPurgeLoop(ctx, store, cfg, log)
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info("storage-sqlite listening", "bind", cfg.HTTP.Bind, "data_dir", cfg.DataDir)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serveErr <- err
			return
		}
		serveErr <- nil
	}()

	select {
	case <-ctx.Done():
		log.Info("shutting down")
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}

func runPurgeLoop(ctx context.Context, store *readings.Store, cfg *config.Config, log *slog.Logger) {
	ticker := time.NewTicker(cfg.PurgeInterval())
	defer ticker.Stop()

	var flags readings.PurgeFlags
	if cfg.Purge.RetainUnsent {
		flags |= readings.RetainUnsent
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			var result *readings.PurgeResult
			var err error
			switch {
			case cfg.Purge.SizeThreshold > 0:
				result, err = store.PurgeBySize(ctx, cfg.Purge.SizeThreshold, flags, 0)
			default:
				result, err = store.PurgeByAge(ctx, cfg.Purge.AgeHours, flags, 0)
			}
			if err != nil {
				log.Error("scheduled purge failed", "error", err)
				continue
			}
			log.Info("scheduled purge complete",
				"removed", result.Removed,
				"unsent_purged", result.UnsentPurged,
				"unsent_retained", result.UnsentRetained,
				"readings_remaining", result.ReadingsRemaining,
			)
		}
	}
}
