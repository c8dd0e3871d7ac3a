// Package app wires every gateway component (C1-C10) into one running
// process for one venue account: a plain constructor function rather than
// a generic DI container, matching the single fixed ownership graph §3
// specifies (Trade owns Session owns the private wsclient.Client; Market
// owns the public wsclient.Client; Handler owns neither, it only routes).
package app

import (
	"context"
	"fmt"

	"github.com/fd1az/venue-gateway/internal/config"
	"github.com/fd1az/venue-gateway/internal/dispatch"
	"github.com/fd1az/venue-gateway/internal/health"
	"github.com/fd1az/venue-gateway/internal/logger"
	"github.com/fd1az/venue-gateway/internal/market"
	"github.com/fd1az/venue-gateway/internal/productcatalog"
	"github.com/fd1az/venue-gateway/internal/protocol"
	"github.com/fd1az/venue-gateway/internal/ratelimit"
	"github.com/fd1az/venue-gateway/internal/session"
	"github.com/fd1az/venue-gateway/internal/trade/binancetrade"
	"github.com/fd1az/venue-gateway/internal/wsclient"
)

// App owns every long-lived component for one account's gateway process.
type App struct {
	Market  *market.Market
	Session *session.Manager
	Trade   *binancetrade.Adapter
	Handler *dispatch.Handler

	health *health.Server
	log    logger.LoggerInterface
}

// New builds the full component graph from cfg but does not start anything
// (no dial, no listener, no health server) — call Connect then Run to
// start it. version is surfaced on the health endpoint.
func New(cfg *config.Config, log logger.LoggerInterface, version string) (*App, error) {
	publicProto, privateProto, err := protocolsFor(cfg.Venue.Name)
	if err != nil {
		return nil, err
	}
	cred := credentialsFor(cfg.Venue)

	publicCfg := wsclient.DefaultConfig(cfg.Venue.Name+"-public", publicProto)
	publicCfg.URL = cfg.Venue.PublicURL
	applyTimings(&publicCfg, cfg.Gateway)
	publicClient, err := wsclient.New(publicCfg)
	if err != nil {
		return nil, fmt.Errorf("app: public client: %w", err)
	}

	privateCfg := wsclient.DefaultConfig(cfg.Venue.Name+"-account", privateProto)
	privateCfg.URL = cfg.Venue.PrivateURL
	privateCfg.IsPrivate = true
	privateCfg.Credentials = cred
	applyTimings(&privateCfg, cfg.Gateway)

	catalogCfg := productcatalog.DefaultConfig()
	if cfg.Gateway.ProductCatalogURL != "" {
		catalogCfg.BaseURL = cfg.Gateway.ProductCatalogURL
	}
	catalog, err := productcatalog.NewClient(catalogCfg, log)
	if err != nil {
		return nil, fmt.Errorf("app: product catalog: %w", err)
	}

	// Adapter and Manager are mutually referential (Manager's constructor
	// needs the Adapter as its wire.UserDataHandler; the Adapter needs the
	// Manager to issue requests), so they are bound in two steps.
	adapter := binancetrade.NewAdapter(nil, catalog, log)
	if cfg.Gateway.RequestsPerMinute > 0 {
		adapter.SetOrderLimiter(ratelimit.New(cfg.Gateway.RequestsPerMinute))
	}
	privateClient, err := wsclient.New(privateCfg)
	if err != nil {
		return nil, fmt.Errorf("app: private client: %w", err)
	}
	sessionMgr := session.NewManager(privateClient, adapter, log)
	adapter.BindSession(sessionMgr)

	mkt := market.New(publicClient, log)
	handler := dispatch.New(mkt, adapter, log)

	return &App{
		Market:  mkt,
		Session: sessionMgr,
		Trade:   adapter,
		Handler: handler,
		health:  health.NewServer(cfg.Gateway.HealthPort, version),
		log:     log,
	}, nil
}

// Connect dials both upstream legs and fetches the initial product
// catalog. Call before Run.
func (a *App) Connect(ctx context.Context) error {
	if err := a.Trade.FetchProducts(ctx); err != nil {
		return fmt.Errorf("app: fetch products: %w", err)
	}
	if err := a.Market.Connect(ctx); err != nil {
		return fmt.Errorf("app: connect public: %w", err)
	}
	if err := a.Session.Connect(ctx); err != nil {
		return fmt.Errorf("app: connect account: %w", err)
	}

	a.health.RegisterCheck("market", func(context.Context) (bool, string) {
		if a.Market.Disconnected() {
			return false, "public upstream disconnected"
		}
		return true, ""
	})
	a.health.RegisterCheck("account", func(context.Context) (bool, string) {
		if a.Trade.Disconnected() {
			return false, "account upstream disconnected"
		}
		return true, ""
	})
	if err := a.health.Start(); err != nil {
		return fmt.Errorf("app: health server: %w", err)
	}
	return nil
}

// Run drives the dispatch hub until ctx is cancelled. connections delivers
// newly-accepted strategy-client sockets from an Acceptor.
func (a *App) Run(ctx context.Context, connections <-chan *dispatch.Connection) error {
	return a.Handler.Run(ctx, connections)
}

// Close stops the health server. The dispatch loop and upstream clients
// are stopped by cancelling Run's context; nothing further to release here.
func (a *App) Close(ctx context.Context) error {
	if a.health == nil {
		return nil
	}
	return a.health.Stop(ctx)
}

// protocolsFor returns the public (market-data) and private (account/order)
// wire dialects for a venue. OKX multiplexes both over the same protocol,
// differentiated only by URL; Binance splits them into separate WS
// services (the plain stream API has no login, the WS-API service is
// request/response and signed).
func protocolsFor(name string) (public, private protocol.WsProtocol, err error) {
	switch name {
	case "okx":
		return protocol.Okx{}, protocol.Okx{}, nil
	case "binance":
		return protocol.BinanceStream{}, protocol.BinanceWsApi{}, nil
	default:
		return nil, nil, fmt.Errorf("app: unknown venue %q", name)
	}
}

func credentialsFor(v config.VenueConfig) protocol.Credentials {
	secret := v.Secret
	if v.Name == "binance" {
		secret = v.PEM
	}
	return protocol.Credentials{
		APIKey:      v.APIKey,
		APISecret:   secret,
		Passphrase:  v.Passphrase,
		IsSimulated: v.Local,
	}
}

func applyTimings(cfg *wsclient.Config, g config.GatewayConfig) {
	if g.ConnectTimeout > 0 {
		cfg.ConnectTimeout = g.ConnectTimeout
	}
	if g.HeartbeatPeriod > 0 {
		cfg.HeartbeatPeriod = g.HeartbeatPeriod
	}
	if g.WatchdogPeriod > 0 {
		cfg.WatchdogPeriod = g.WatchdogPeriod
	}
	if g.IdleTimeout > 0 {
		cfg.IdleTimeout = g.IdleTimeout
	}
}
