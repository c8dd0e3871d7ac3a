package app

import (
	"io"
	"testing"

	"github.com/fd1az/venue-gateway/internal/config"
	"github.com/fd1az/venue-gateway/internal/logger"
)

func testLogger() logger.LoggerInterface {
	return logger.New(io.Discard, logger.LevelError, "test", nil)
}

func TestNewWiresBinance(t *testing.T) {
	cfg := &config.Config{
		Venue:   config.VenueConfig{Name: "binance", APIKey: "key", PEM: "pem"},
		Gateway: config.GatewayConfig{ListenAddr: ":0", RequestsPerMinute: 60},
	}
	a, err := New(cfg, testLogger(), "test")
	if err != nil {
		t.Fatal(err)
	}
	if a.Market == nil || a.Session == nil || a.Trade == nil || a.Handler == nil {
		t.Fatal("expected every component to be wired")
	}
}

func TestNewWiresOkx(t *testing.T) {
	cfg := &config.Config{
		Venue:   config.VenueConfig{Name: "okx", APIKey: "key", Secret: "secret", Passphrase: "pass"},
		Gateway: config.GatewayConfig{ListenAddr: ":0"},
	}
	a, err := New(cfg, testLogger(), "test")
	if err != nil {
		t.Fatal(err)
	}
	if a.Market == nil || a.Session == nil {
		t.Fatal("expected okx wiring to succeed")
	}
}

func TestNewRejectsUnknownVenue(t *testing.T) {
	cfg := &config.Config{
		Venue:   config.VenueConfig{Name: "kraken", APIKey: "key"},
		Gateway: config.GatewayConfig{ListenAddr: ":0"},
	}
	if _, err := New(cfg, testLogger(), "test"); err == nil {
		t.Fatal("expected an error for an unknown venue")
	}
}
