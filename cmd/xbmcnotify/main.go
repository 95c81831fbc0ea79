package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/server"

	"github.com/btouchard/xbmcnotify/internal/api"
	"github.com/btouchard/xbmcnotify/internal/auth"
	"github.com/btouchard/xbmcnotify/internal/bus"
	"github.com/btouchard/xbmcnotify/internal/config"
	"github.com/btouchard/xbmcnotify/internal/delivery"
	"github.com/btouchard/xbmcnotify/internal/dispatcher"
	xbmcmcp "github.com/btouchard/xbmcnotify/internal/mcp"
	"github.com/btouchard/xbmcnotify/internal/store"
	"github.com/btouchard/xbmcnotify/internal/telemetry"
)

var version = "dev"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "serve":
		cmdServe(os.Args[2:])
	case "version":
		fmt.Printf("xbmcnotify %s\n", version)
	case "check":
		cmdCheck(os.Args[2:])
	case "token":
		cmdToken(os.Args[2:])
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintf(os.Stderr, "Usage: xbmcnotify <command> [flags]\n\n")
	fmt.Fprintf(os.Stderr, "Commands:\n")
	fmt.Fprintf(os.Stderr, "  serve     Start forwarding notifications\n")
	fmt.Fprintf(os.Stderr, "  check     Validate configuration\n")
	fmt.Fprintf(os.Stderr, "  token     Print or rotate the generated API token\n")
	fmt.Fprintf(os.Stderr, "  version   Print version\n")
}

func cmdServe(args []string) {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	configPath := fs.String("config", "", "path to config file")
	_ = fs.Parse(args) // ExitOnError handles errors

	cfg, err := loadConfig(*configPath)
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	setupLogging(cfg)

	slog.Info("starting xbmcnotify",
		"version", version,
		"host", cfg.Server.Host,
		"port", cfg.Server.Port)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}

func cmdCheck(args []string) {
	fs := flag.NewFlagSet("check", flag.ExitOnError)
	configPath := fs.String("config", "", "path to config file")
	_ = fs.Parse(args) // ExitOnError handles errors

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	summary, err := describeForwarding(cfg.Forwarding)
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("configuration is valid")
	fmt.Print(summary)
}

func describeForwarding(props map[string]string) (string, error) {
	if len(props) == 0 {
		return "", nil
	}
	fwd, err := config.ParseForwarding(props)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("  servers: %v\n  topics:  %v\n", fwd.Servers, fwd.Topics), nil
}

func cmdToken(args []string) {
	fs := flag.NewFlagSet("token", flag.ExitOnError)
	configPath := fs.String("config", "", "path to config file")
	rotate := fs.Bool("rotate", false, "replace the token with a new one")
	_ = fs.Parse(args) // ExitOnError handles errors

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}
	if cfg.Server.APIToken != auth.Auto {
		fmt.Fprintf(os.Stderr, "server.api_token is not %q; nothing to manage\n", auth.Auto)
		os.Exit(1)
	}

	dir := stateDir(cfg)
	var token string
	if *rotate {
		token, err = auth.RotateToken(dir)
	} else {
		token, err = auth.LoadOrCreateToken(dir)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "token error: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(token)
}

// stateDir is where generated state lives, next to the database.
func stateDir(cfg *config.Config) string {
	return filepath.Dir(config.ExpandHome(cfg.Database.Path))
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFromFile(path)
	}
	return config.Load()
}

func parseLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func setupLogging(cfg *config.Config) {
	level := parseLevel(cfg.Server.LogLevel)

	handlers := []slog.Handler{
		slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}),
	}

	if cfg.Server.LogFile != "" {
		f, err := os.OpenFile(config.ExpandHome(cfg.Server.LogFile), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0640)
		if err != nil {
			slog.Warn("failed to open log file, using stdout only", "path", cfg.Server.LogFile, "error", err)
		} else {
			handlers = append(handlers, slog.NewJSONHandler(f, &slog.HandlerOptions{Level: level}))
		}
	}

	logger := slog.New(slog.NewMultiHandler(handlers...))
	slog.SetDefault(logger)
}

// ForwardingLoader reads the forwarding properties pushed at runtime.
type ForwardingLoader interface {
	LoadForwarding() (map[string]string, error)
}

// restoreForwarding applies the startup configuration: the last update pushed
// at runtime wins over the file. Neither source is written back, so edits to
// the file take effect as long as nothing was pushed at runtime.
func restoreForwarding(disp *dispatcher.Dispatcher, loader ForwardingLoader, fromFile map[string]string) error {
	persisted, err := loader.LoadForwarding()
	if err != nil {
		slog.Warn("failed to load persisted forwarding configuration", "error", err)
	}

	props, source := fromFile, "file"
	if len(persisted) > 0 {
		props, source = persisted, "runtime"
	}
	if len(props) == 0 {
		return nil
	}

	slog.Info("restoring forwarding configuration", "source", source)
	return disp.Restore(props)
}

func run(ctx context.Context, cfg *config.Config) error {
	// --- SQLite Store ---
	dbPath := config.ExpandHome(cfg.Database.Path)
	db, err := store.NewSQLiteStore(dbPath)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() { _ = db.Close() }()

	slog.Info("database opened", "path", dbPath)

	retention := time.Duration(cfg.Database.RetentionDays) * 24 * time.Hour
	go db.StartCleanupLoop(ctx.Done(), retention)

	// --- Telemetry ---
	tp, err := telemetry.NewProvider(ctx, telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		OTLPEndpoint:   cfg.Telemetry.OTLPEndpoint,
		OTLPInsecure:   cfg.Telemetry.OTLPInsecure,
		MetricInterval: cfg.Telemetry.MetricInterval,
		ServiceVersion: version,
		Environment:    cfg.Telemetry.Environment,
	})
	if err != nil {
		return fmt.Errorf("initializing telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(shutdownCtx); err != nil {
			slog.Warn("telemetry shutdown", "error", err)
		}
	}()

	// --- Event Bus ---
	eventBus := bus.NewMemory(bus.Config{BufferSize: cfg.Bus.BufferSize})
	defer eventBus.Close()

	// --- Delivery ---
	sender := delivery.NewSender(delivery.SenderOptions{
		RequestTimeout: cfg.Delivery.RequestTimeout,
		Title:          cfg.Delivery.Title,
		Image:          cfg.Delivery.Image,
		Journal:        db,
		MeterProvider:  tp.MeterProvider(),
	})
	queue := delivery.NewQueue(sender, cfg.Delivery.Workers, tp.MeterProvider())
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*cfg.Delivery.RequestTimeout+5*time.Second)
		defer cancel()
		if err := queue.Shutdown(shutdownCtx); err != nil {
			slog.Warn("delivery queue shutdown", "error", err)
		}
	}()

	// --- Dispatcher ---
	disp := dispatcher.New(dispatcher.BusRegistrar{Bus: eventBus}, queue, dispatcher.WithPersister(db))

	if err := restoreForwarding(disp, db, cfg.Forwarding); err != nil {
		slog.Warn("initial forwarding configuration rejected", "error", err)
	}
	if err := disp.Activate(); err != nil {
		return fmt.Errorf("activating dispatcher: %w", err)
	}
	defer disp.Deactivate()

	// --- API Token ---
	apiToken, err := auth.ResolveToken(cfg.Server.APIToken, stateDir(cfg))
	if err != nil {
		return fmt.Errorf("resolving api token: %w", err)
	}
	if apiToken == "" {
		slog.Warn("api token not set, control API is unauthenticated")
	}

	// --- MCP Server ---
	mcpServer := xbmcmcp.NewServer(&xbmcmcp.Deps{
		Forwarder:  disp,
		Publisher:  eventBus,
		Deliveries: db,
		Version:    version,
	})
	mcpHTTP := server.NewStreamableHTTPServer(mcpServer)

	// --- HTTP Router ---
	router := api.NewRouter(&api.Deps{
		Forwarder:  disp,
		Publisher:  eventBus,
		Deliveries: db,
		MCP:        mcpHTTP,
		APIToken:   apiToken,
		RateLimit:  cfg.RateLimit,
	})

	// --- HTTP Server ---
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 2 * time.Minute,
		IdleTimeout:  2 * time.Minute,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("xbmcnotify is ready", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	slog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return srv.Shutdown(shutdownCtx)
}
