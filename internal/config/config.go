// Package config provides configuration loading and validation.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Venue     VenueConfig     `mapstructure:"venue"`
	Gateway   GatewayConfig   `mapstructure:"gateway"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// AppConfig holds general application settings.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
	LogLevel    string `mapstructure:"log_level"`
}

// VenueConfig selects and authenticates the upstream exchange account this
// process owns. Field names mirror the CLI's documented config keys:
// apikey, pem, local.
type VenueConfig struct {
	// Name selects the wire protocol: "okx" or "binance".
	Name string `mapstructure:"name"`

	APIKey string `mapstructure:"apikey"`
	// Secret is OKX's HMAC-SHA256 request-signing secret. Unused for
	// Binance.
	Secret string `mapstructure:"secret"`
	// PEM is Binance's Ed25519 WS-API key: an inline PEM string, or a path
	// to a PEM/PKCS#8-DER file. Unused for OKX.
	PEM string `mapstructure:"pem"`
	// Passphrase is OKX's third signing credential. Unused for Binance.
	Passphrase string `mapstructure:"passphrase"`
	// Local runs against the venue's demo/testnet endpoints instead of
	// production.
	Local bool `mapstructure:"local"`

	// PublicURL/PrivateURL override the protocol's default endpoints when
	// non-empty.
	PublicURL  string `mapstructure:"public_url"`
	PrivateURL string `mapstructure:"private_url"`
}

// GatewayConfig holds the strategy-client-facing surface and ambient
// service knobs.
type GatewayConfig struct {
	ListenAddr        string        `mapstructure:"listen_addr"`
	HealthPort        int           `mapstructure:"health_port"`
	RequestsPerMinute int           `mapstructure:"requests_per_minute"`
	ProductCatalogURL string        `mapstructure:"product_catalog_url"`
	ConnectTimeout    time.Duration `mapstructure:"connect_timeout"`
	HeartbeatPeriod   time.Duration `mapstructure:"heartbeat_period"`
	WatchdogPeriod    time.Duration `mapstructure:"watchdog_period"`
	IdleTimeout       time.Duration `mapstructure:"idle_timeout"`
	// TUIMode is set at runtime (true unless the --cli flag is given), never
	// from config.
	TUIMode bool `mapstructure:"-"`
}

// TelemetryConfig holds observability configuration.
type TelemetryConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	ServiceName    string `mapstructure:"service_name"`
	OTLPEndpoint   string `mapstructure:"otlp_endpoint"`
	OTLPHeaders    string `mapstructure:"otlp_headers"`
	PrometheusPort int    `mapstructure:"prometheus_port"`
}

// Load loads configuration from file and environment variables. configPath
// may be JSON or YAML; viper infers the format from its extension, falling
// back to YAML when empty.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	v.SetEnvPrefix("GATEWAY")
	v.AutomaticEnv()

	bindEnvVars(v)
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

func bindEnvVars(v *viper.Viper) {
	// App
	v.BindEnv("app.name", "GATEWAY_APP_NAME", "SERVICE_NAME")
	v.BindEnv("app.environment", "GATEWAY_ENVIRONMENT", "ENVIRONMENT")
	v.BindEnv("app.log_level", "GATEWAY_LOG_LEVEL", "LOG_LEVEL")

	// Venue
	v.BindEnv("venue.name", "GATEWAY_VENUE")
	v.BindEnv("venue.apikey", "GATEWAY_API_KEY")
	v.BindEnv("venue.secret", "GATEWAY_API_SECRET")
	v.BindEnv("venue.pem", "GATEWAY_PEM")
	v.BindEnv("venue.passphrase", "GATEWAY_PASSPHRASE")
	v.BindEnv("venue.local", "GATEWAY_LOCAL")

	// Gateway
	v.BindEnv("gateway.listen_addr", "GATEWAY_LISTEN_ADDR")
	v.BindEnv("gateway.health_port", "GATEWAY_HEALTH_PORT")
	v.BindEnv("gateway.product_catalog_url", "GATEWAY_PRODUCT_CATALOG_URL")

	// Telemetry
	v.BindEnv("telemetry.enabled", "GATEWAY_OTEL_ENABLED", "OTEL_ENABLED")
	v.BindEnv("telemetry.service_name", "GATEWAY_OTEL_SERVICE_NAME", "OTEL_SERVICE_NAME")
	v.BindEnv("telemetry.otlp_endpoint", "GATEWAY_OTEL_ENDPOINT", "OTEL_EXPORTER_OTLP_ENDPOINT")
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "venue-gateway")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.log_level", "info")

	v.SetDefault("venue.name", "binance")
	v.SetDefault("venue.local", false)

	v.SetDefault("gateway.listen_addr", ":8900")
	v.SetDefault("gateway.health_port", 8081)
	v.SetDefault("gateway.requests_per_minute", 1200)
	v.SetDefault("gateway.connect_timeout", "3s")
	v.SetDefault("gateway.heartbeat_period", "15s")
	v.SetDefault("gateway.watchdog_period", "5s")
	v.SetDefault("gateway.idle_timeout", "30s")

	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.service_name", "venue-gateway")
	v.SetDefault("telemetry.prometheus_port", 9090)
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	switch c.Venue.Name {
	case "okx":
		if c.Venue.Secret == "" {
			return fmt.Errorf("venue.secret is required for okx")
		}
		if c.Venue.Passphrase == "" {
			return fmt.Errorf("venue.passphrase is required for okx")
		}
	case "binance":
		if c.Venue.PEM == "" {
			return fmt.Errorf("venue.pem is required for binance")
		}
	default:
		return fmt.Errorf("venue.name must be one of {okx, binance}, got %q", c.Venue.Name)
	}
	if c.Venue.APIKey == "" {
		return fmt.Errorf("venue.apikey is required")
	}
	if c.Gateway.ListenAddr == "" {
		return fmt.Errorf("gateway.listen_addr is required")
	}
	return nil
}
