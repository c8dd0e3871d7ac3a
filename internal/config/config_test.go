package config

import "testing"

func TestValidate(t *testing.T) {
	base := func() Config {
		return Config{
			Venue:   VenueConfig{Name: "binance", APIKey: "key", PEM: "pem"},
			Gateway: GatewayConfig{ListenAddr: ":8900"},
		}
	}

	t.Run("valid binance", func(t *testing.T) {
		cfg := base()
		if err := cfg.Validate(); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})

	t.Run("binance missing pem", func(t *testing.T) {
		cfg := base()
		cfg.Venue.PEM = ""
		if err := cfg.Validate(); err == nil {
			t.Fatal("expected error for missing pem")
		}
	})

	t.Run("okx requires secret and passphrase", func(t *testing.T) {
		cfg := base()
		cfg.Venue.Name = "okx"
		if err := cfg.Validate(); err == nil {
			t.Fatal("expected error for missing okx secret/passphrase")
		}
		cfg.Venue.Secret = "s"
		cfg.Venue.Passphrase = "p"
		if err := cfg.Validate(); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})

	t.Run("unknown venue rejected", func(t *testing.T) {
		cfg := base()
		cfg.Venue.Name = "kraken"
		if err := cfg.Validate(); err == nil {
			t.Fatal("expected error for unknown venue")
		}
	})

	t.Run("missing listen addr", func(t *testing.T) {
		cfg := base()
		cfg.Gateway.ListenAddr = ""
		if err := cfg.Validate(); err == nil {
			t.Fatal("expected error for missing listen addr")
		}
	})
}

func TestLoadAppliesDefaults(t *testing.T) {
	t.Setenv("GATEWAY_API_KEY", "test-key")
	t.Setenv("GATEWAY_PEM", "test-pem")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Gateway.ListenAddr != ":8900" {
		t.Fatalf("expected default listen_addr, got %q", cfg.Gateway.ListenAddr)
	}
	if cfg.Venue.Name != "binance" {
		t.Fatalf("expected default venue binance, got %q", cfg.Venue.Name)
	}
}
