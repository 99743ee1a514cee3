package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"
	"golang.org/x/net/netutil"
	"golang.org/x/sync/errgroup"

	"github.com/kalambet/provform/internal/api"
	"github.com/kalambet/provform/internal/catalog"
	"github.com/kalambet/provform/internal/config"
	"github.com/kalambet/provform/internal/notify"
	"github.com/kalambet/provform/internal/profile"
	"github.com/kalambet/provform/internal/storage"
)

const shutdownTimeout = 5 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and the notify worker (foreground)",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("mcp") {
			cfg.Server.MCPStdio, _ = cmd.Flags().GetBool("mcp")
		}

		setupLogging(cfg.Log.Level)

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return runServer(ctx, cfg)
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show server health and storage settings",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			// Still show partial status even if config fails.
			printError("config error: %v", err)
			return nil
		}
		client := &apiClient{
			baseURL:    fmt.Sprintf("http://127.0.0.1:%d", cfg.Server.Port),
			httpClient: &http.Client{Timeout: 2 * time.Second},
		}
		showStatus(cmd.Context(), cfg, client)
		showQueueStatus(cmd.Context(), cfg)
		return nil
	},
}

func init() {
	serveCmd.Flags().Bool("mcp", false, "also serve MCP tools on stdin/stdout")
}

func setupLogging(level string) {
	var logLevel slog.Level
	if err := logLevel.UnmarshalText([]byte(level)); err != nil {
		printWarning("unknown log level %q, using info", level)
		logLevel = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})))
}

func runServer(ctx context.Context, cfg config.Config) error {
	fmt.Fprintf(os.Stderr, "provform version %s\n", version)

	b, err := openBackends(ctx, cfg)
	if err != nil {
		return err
	}
	defer b.Close()

	cat, err := catalog.Load(cfg.Catalog.Path)
	if err != nil {
		return err
	}

	publisher, err := notify.NewAMQPPublisher(cfg.Notify.AMQPURL, cfg.Notify.Exchange)
	if err != nil {
		return err
	}
	defer publisher.Close()

	metrics := api.NewMetrics()
	profileMgr := profile.NewManager(b.kv)
	notifier := notify.NewQueueNotifier(b.jobs)

	handler := api.NewAppHandler(api.AppDeps{
		Profile:  profileMgr,
		Notifier: notifier,
		Catalog:  cat,
		Metrics:  metrics,
		Health:   b.health,
	})

	addr := fmt.Sprintf("127.0.0.1:%d", cfg.Server.Port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}
	ln = netutil.LimitListener(ln, cfg.Server.MaxConns)

	srv := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	worker := notify.NewWorker(b.jobs, publisher, cfg.Notify.PollInterval)
	worker.OnPublished = func(notify.Event) { metrics.EventPublished() }

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		worker.Run(gctx)
		return nil
	})

	g.Go(func() error {
		slog.Info("provform listening", "addr", addr, "max_conns", cfg.Server.MaxConns)
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	if cfg.Server.MCPStdio {
		mcpSrv := api.NewMCPServer(api.MCPDeps{
			Profile:  profileMgr,
			Notifier: notifier,
			Catalog:  cat,
		})
		stdioSrv := server.NewStdioServer(mcpSrv)
		g.Go(func() error {
			if err := stdioSrv.Listen(gctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
				slog.Error("MCP stdio server error", "error", err)
			}
			return nil
		})
		slog.Info("MCP server started (stdio transport)")
	}

	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func showStatus(ctx context.Context, cfg config.Config, client *apiClient) {
	resp, err := client.get(ctx, "/health")
	running := false
	if err != nil {
		printStatus("Server", "stopped")
	} else {
		resp.Body.Close()
		if resp.StatusCode == http.StatusOK {
			running = true
			printStatus("Server", "running on port %d", cfg.Server.Port)
		} else {
			printStatus("Server", "error (HTTP %d)", resp.StatusCode)
		}
	}

	if running {
		var list []api.ProfileSummary
		if err := client.getJSON(ctx, "/profiles", &list); err == nil {
			printStatus("Saved profiles", "%d", len(list))
		}
	}

	printStatus("Storage", "%s", cfg.Storage.Backend)
	if cfg.Storage.Backend == config.BackendRedis {
		printStatus("Redis", "%s (db %d)", cfg.Redis.Addr, cfg.Redis.DB)
	}
	printStatus("Data dir", "%s", cfg.Storage.DataDir)
	if cfg.Notify.AMQPURL == "" {
		printStatus("Events", "disabled")
	} else {
		printStatus("Events", "publishing to exchange %s", cfg.Notify.Exchange)
	}
}

// showQueueStatus reads job counts straight from the local database, so it
// works whether or not the server is running.
func showQueueStatus(ctx context.Context, cfg config.Config) {
	store, err := storage.Open(cfg.Storage.DataDir)
	if err != nil {
		printStatus("Event queue", "unavailable (%v)", err)
		return
	}
	defer store.Close()

	counts, err := store.JobCounts(ctx)
	if err != nil {
		printStatus("Event queue", "unavailable (%v)", err)
		return
	}
	printStatus("Event queue", "%d pending, %d published, %d failed",
		counts[storage.JobPending]+counts[storage.JobRunning], counts[storage.JobCompleted], counts[storage.JobFailed])
}
