// Package main is the entry point for the venue gateway.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"

	"github.com/fd1az/venue-gateway/internal/apm"
	"github.com/fd1az/venue-gateway/internal/app"
	"github.com/fd1az/venue-gateway/internal/config"
	"github.com/fd1az/venue-gateway/internal/dispatch"
	"github.com/fd1az/venue-gateway/internal/logger"
	"github.com/fd1az/venue-gateway/internal/metrics"
	"github.com/fd1az/venue-gateway/internal/wire"
	"github.com/fd1az/venue-gateway/pkg/ui"
)

var (
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"
)

func main() {
	_ = godotenv.Load()

	configPath := flag.String("config", "", "Path to configuration file")
	cliMode := flag.Bool("cli", false, "Run in CLI mode with logs (no TUI)")
	showVersion := flag.Bool("version", false, "Show version information")
	flag.Parse()

	if *showVersion {
		fmt.Printf("venue-gateway %s (commit: %s, built: %s)\n", version, commit, buildDate)
		os.Exit(0)
	}

	tuiMode := !*cliMode

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		if !tuiMode {
			fmt.Fprintf(os.Stderr, "received shutdown signal: %v\n", sig)
		}
		cancel()
	}()

	if err := run(ctx, *configPath, tuiMode); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath string, tuiMode bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	cfg.Gateway.TUIMode = tuiMode

	logLevel := logger.LevelInfo
	switch cfg.App.LogLevel {
	case "debug":
		logLevel = logger.LevelDebug
	case "warn":
		logLevel = logger.LevelWarn
	case "error":
		logLevel = logger.LevelError
	}

	var log *logger.Logger
	if tuiMode {
		log = logger.New(io.Discard, logLevel, cfg.App.Name, nil)
	} else {
		log = logger.New(os.Stderr, logLevel, cfg.App.Name, nil)
		log.Info(ctx, "starting venue gateway",
			"version", version,
			"venue", cfg.Venue.Name,
			"environment", cfg.App.Environment,
		)
	}

	var traceProvider apm.TraceProvider
	if cfg.Telemetry.Enabled {
		if cfg.Telemetry.ServiceName != "" {
			os.Setenv("OTEL_SERVICE_NAME", cfg.Telemetry.ServiceName)
		}
		if cfg.Telemetry.OTLPEndpoint != "" {
			os.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", cfg.Telemetry.OTLPEndpoint)
		}

		traceProvider = apm.NewTraceProvider(log, apm.WithProvider(apm.ZipkinProvider, log))
		log.Info(ctx, "tracing initialized", "provider", "zipkin", "endpoint", cfg.Telemetry.OTLPEndpoint)

		metrics.NewMetricProvider(
			metrics.WithServiceName(cfg.Telemetry.ServiceName),
			metrics.WithProviderConfig(metrics.ProviderCfg{
				Provider: metrics.PrometheusProvider,
			}),
		)

		port := cfg.Telemetry.PrometheusPort
		if port == 0 {
			port = 9090
		}
		go metrics.ServePrometheusMetrics(metrics.WithPort(strconv.Itoa(port)))
		log.Info(ctx, "prometheus metrics server started", "port", port)
	}
	defer func() {
		if traceProvider != nil {
			traceProvider.Stop()
		}
	}()

	gw, err := app.New(cfg, log, version)
	if err != nil {
		return fmt.Errorf("failed to build gateway: %w", err)
	}

	connections := make(chan *dispatch.Connection)
	acceptor := dispatch.NewAcceptor(connections, log)

	ln, err := net.Listen("tcp", cfg.Gateway.ListenAddr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", cfg.Gateway.ListenAddr, err)
	}

	startFunc := func() error {
		if err := gw.Connect(ctx); err != nil {
			return fmt.Errorf("failed to connect gateway: %w", err)
		}
		go func() {
			if err := acceptor.Serve(ln); err != nil && log != nil {
				log.Error(ctx, "acceptor stopped", "error", err.Error())
			}
		}()
		return gw.Run(ctx, connections)
	}
	stopFunc := func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		_ = acceptor.Shutdown(shutdownCtx)
		_ = gw.Close(shutdownCtx)
	}

	if tuiMode {
		return runTUI(ctx, gw, startFunc, stopFunc)
	}

	return runCLI(ctx, gw, startFunc, stopFunc, log)
}

func runCLI(ctx context.Context, gw *app.App, startFunc func() error, stopFunc func(), log *logger.Logger) error {
	log.Info(ctx, "dialing upstream venue")

	errCh := make(chan error, 1)
	go func() { errCh <- startFunc() }()

	select {
	case err := <-errCh:
		stopFunc()
		return err
	case <-ctx.Done():
	}

	log.Info(ctx, "shutting down")
	stopFunc()
	return nil
}

func runTUI(ctx context.Context, gw *app.App, startFunc func() error, stopFunc func()) error {
	startSignal := make(chan struct{}, 1)
	ui.OnStartModules = func() {
		select {
		case startSignal <- struct{}{}:
		default:
		}
	}

	p := tea.NewProgram(ui.New(), tea.WithAltScreen())
	ui.Program = p

	errCh := make(chan error, 1)
	go func() {
		select {
		case <-startSignal:
		case <-ctx.Done():
			errCh <- nil
			return
		}

		go reportGatewayStatus(ctx, gw)

		if err := startFunc(); err != nil {
			ui.Send(ui.ErrorMsg{Error: err})
			errCh <- err
			return
		}

		<-ctx.Done()
		stopFunc()
		errCh <- nil
	}()

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}

	select {
	case err := <-errCh:
		return err
	default:
		return nil
	}
}

// reportGatewayStatus polls the gateway's component state and pushes it to
// the TUI. The dashboard has no direct event hooks into the dispatch hub,
// so a short poll loop is the simplest way to keep it reasonably live.
func reportGatewayStatus(ctx context.Context, gw *app.App) {
	gw.Trade.OnOrderEvent = func(o wire.Order) {
		ui.Send(ui.OrderEventMsg{
			Timestamp: time.Now(),
			Symbol:    o.Symbol,
			Side:      string(o.Side),
			Status:    string(o.State),
			OrderID:   o.OrderID,
		})
	}

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			ui.Send(ui.ConnectionStatusMsg{Name: "market", Connected: !gw.Market.Disconnected()})
			ui.Send(ui.ConnectionStatusMsg{Name: "account", Connected: !gw.Trade.Disconnected(), State: string(gw.Session.State())})
			ui.Send(ui.ClientCountMsg{Count: gw.Market.ClientCount()})

			rows := make([]ui.SubscriptionRow, 0)
			for stream, n := range gw.Market.Subscriptions() {
				rows = append(rows, ui.SubscriptionRow{Stream: stream, Subscribers: int(n)})
			}
			ui.Send(ui.SubscriptionSnapshotMsg{Rows: rows})

			stats := gw.Trade.Stats()
			framesIn, framesOut := gw.Session.FrameCounts()
			ui.Send(ui.StatsMsg{
				FramesIn:        framesIn,
				FramesOut:       framesOut,
				OrdersPlaced:    stats.OrdersPlaced,
				OrdersCancelled: stats.OrdersCancelled,
				Errors:          stats.Errors,
			})
		}
	}
}
