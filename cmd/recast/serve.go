package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"recast/internal/auth"
	"recast/internal/logging"
	"recast/internal/server"
	"recast/internal/watcher"
)

var (
	serveHost   string
	servePort   int
	serveNoAuth bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	Long: `Start the recast HTTP API server, exposing every transformation and
query over REST endpoints. The workspace is watched for changes and
the snapshot is refreshed automatically, so long-running sessions do
not serve stale results.

Server settings load from .recast/server.toml when present; --host and
--port override it.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveHost, "host", "", "Host to bind to (default: from server.toml)")
	serveCmd.Flags().IntVar(&servePort, "port", 0, "Port to listen on (default: from server.toml)")
	serveCmd.Flags().BoolVar(&serveNoAuth, "no-auth", false, "Disable authentication regardless of configuration")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	logger := logging.NewLogger(logging.Config{
		Format: logging.HumanFormat,
		Level:  logging.InfoLevel,
	})

	root := mustGetWorkspaceRoot()
	eng := mustGetEngine(root, logger)
	defer func() { _ = eng.Close() }()

	srvCfg, err := server.LoadConfig(root, eng.Config().Server)
	if err != nil {
		return fmt.Errorf("loading server config: %w", err)
	}
	if cmd.Flags().Changed("host") {
		srvCfg.Bind = serveHost
	}
	if cmd.Flags().Changed("port") {
		srvCfg.Port = servePort
	}
	if serveNoAuth {
		srvCfg.Auth.Enabled = false
	}

	// The key store only matters when auth is on; opening it lazily
	// keeps plain serve runs from creating auth.db.
	var store *auth.KeyStore
	if srvCfg.Auth.Enabled {
		store, err = auth.OpenKeyStore(root, logger)
		if err != nil {
			logger.Warn("Key store unavailable, static tokens only", map[string]interface{}{
				"error": err.Error(),
			})
			store = nil
		} else {
			defer func() { _ = store.Close() }()
		}
	}

	manager, err := auth.NewManager(srvCfg.Auth, store, logger)
	if err != nil {
		return fmt.Errorf("creating auth manager: %w", err)
	}

	srv := server.New(eng, srvCfg, manager, logger)

	// Refresh the snapshot when workspace files change. A failed
	// reload marks the model stale so responses advertise it.
	if eng.Config().Watcher.Enabled {
		w, werr := watcher.New(root, eng.Config().Watcher, eng.Config().Workspace.Ignore, logger, func(changed []string) {
			if rerr := eng.Reload(context.Background(), changed); rerr != nil {
				logger.Error("Snapshot reload failed", map[string]interface{}{
					"error": rerr.Error(),
				})
				eng.MarkStale()
			}
		})
		if werr != nil {
			logger.Warn("File watcher unavailable", map[string]interface{}{
				"error": werr.Error(),
			})
		} else if werr := w.Start(); werr != nil {
			logger.Warn("File watcher failed to start", map[string]interface{}{
				"error": werr.Error(),
			})
		} else {
			defer w.Stop()
		}
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("Starting recast HTTP API server", map[string]interface{}{
			"addr":        srvCfg.Addr(),
			"authEnabled": srvCfg.Auth.Enabled,
		})
		fmt.Printf("recast HTTP API server listening on http://%s\n", srvCfg.Addr())
		fmt.Println("Press Ctrl+C to stop")
		serverErr <- srv.Start()
	}()

	select {
	case err := <-serverErr:
		if err != nil {
			logger.Error("Server error", map[string]interface{}{
				"error": err.Error(),
			})
			return err
		}
	case <-srv.ShutdownRequested():
		logger.Info("Shutdown requested over HTTP", nil)
	case sig := <-shutdown:
		logger.Info("Received shutdown signal", map[string]interface{}{
			"signal": sig.String(),
		})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Error during shutdown", map[string]interface{}{
			"error": err.Error(),
		})
		return err
	}

	logger.Info("Server stopped gracefully", nil)
	return nil
}
