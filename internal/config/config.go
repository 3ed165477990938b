package config

import (
	"bytes"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Mode string

type Driver string

type OrderTransport string

const (
	ModeTestnet Mode = "testnet"
	ModeLive    Mode = "live"
)

const (
	DriverREST Driver = "rest"
	DriverSDK  Driver = "sdk"
)

const (
	TransportREST OrderTransport = "rest"
	TransportWS   OrderTransport = "ws"
)

const (
	EnvAPIKey    = "BINANCE_API_KEY"
	EnvAPISecret = "BINANCE_API_SECRET"
	EnvMode      = "FUTURES_BOT_MODE"
	EnvLogFile   = "FUTURES_BOT_LOG_FILE"
)

type Config struct {
	Mode          Mode                `yaml:"mode"`
	Exchange      ExchangeConfig      `yaml:"exchange"`
	Log           LogConfig           `yaml:"log"`
	Observability ObservabilityConfig `yaml:"observability"`
}

type ExchangeConfig struct {
	Driver              Driver         `yaml:"driver"`
	OrderTransport      OrderTransport `yaml:"order_transport"`
	APIKey              string         `yaml:"api_key"`
	APISecret           string         `yaml:"api_secret"`
	RestBaseURL         string         `yaml:"rest_base_url"`
	WSBaseURL           string         `yaml:"ws_base_url"`
	RecvWindowMs        int64          `yaml:"recv_window_ms"`
	HTTPTimeoutSec      int64          `yaml:"http_timeout_sec"`
	OrderWSKeepaliveSec int64          `yaml:"order_ws_keepalive_sec"`
	ClientOrderPrefix   string         `yaml:"client_order_prefix"`
}

type LogConfig struct {
	File  string `yaml:"file"`
	Level string `yaml:"level"`
}

type ObservabilityConfig struct {
	Telegram           TelegramConfig `yaml:"telegram"`
	AlertDropReportSec int64          `yaml:"alert_drop_report_sec"`
}

type TelegramConfig struct {
	Enabled    bool   `yaml:"enabled"`
	BotToken   string `yaml:"bot_token"`
	ChatID     string `yaml:"chat_id"`
	APIBaseURL string `yaml:"api_base_url"`
	TimeoutSec int64  `yaml:"timeout_sec"`
}

// Load reads the YAML config at path (skipped when path is empty), then
// layers .env and process environment on top. Environment wins.
func Load(path string) (Config, error) {
	var cfg Config
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, err
		}
		if err := decode(data, &cfg); err != nil {
			return Config{}, err
		}
	}
	// .env is optional
	_ = godotenv.Load()
	cfg.applyEnv()
	cfg.normalize()
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func decode(data []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		if err == io.EOF {
			return nil
		}
		return err
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		if err == nil {
			return fmt.Errorf("config must contain a single YAML document")
		}
		return err
	}
	return nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv(EnvAPIKey); v != "" {
		c.Exchange.APIKey = v
	}
	if v := os.Getenv(EnvAPISecret); v != "" {
		c.Exchange.APISecret = v
	}
	if v := os.Getenv(EnvMode); v != "" {
		c.Mode = Mode(v)
	}
	if v := os.Getenv(EnvLogFile); v != "" {
		c.Log.File = v
	}
}

func (c *Config) normalize() {
	c.Mode = Mode(strings.ToLower(strings.TrimSpace(string(c.Mode))))
	c.Exchange.Driver = Driver(strings.ToLower(strings.TrimSpace(string(c.Exchange.Driver))))
	c.Exchange.OrderTransport = OrderTransport(strings.ToLower(strings.TrimSpace(string(c.Exchange.OrderTransport))))
	c.Exchange.APIKey = strings.TrimSpace(c.Exchange.APIKey)
	c.Exchange.APISecret = strings.TrimSpace(c.Exchange.APISecret)
	c.Exchange.RestBaseURL = strings.TrimSpace(c.Exchange.RestBaseURL)
	c.Exchange.WSBaseURL = strings.TrimSpace(c.Exchange.WSBaseURL)
	c.Exchange.ClientOrderPrefix = strings.ToLower(strings.TrimSpace(c.Exchange.ClientOrderPrefix))
	c.Log.File = strings.TrimSpace(c.Log.File)
	c.Log.Level = strings.ToLower(strings.TrimSpace(c.Log.Level))
	c.Observability.Telegram.BotToken = strings.TrimSpace(c.Observability.Telegram.BotToken)
	c.Observability.Telegram.ChatID = strings.TrimSpace(c.Observability.Telegram.ChatID)
	c.Observability.Telegram.APIBaseURL = strings.TrimSpace(c.Observability.Telegram.APIBaseURL)
}

func (c *Config) applyDefaults() {
	if c.Mode == "" {
		c.Mode = ModeTestnet
	}
	if c.Exchange.Driver == "" {
		c.Exchange.Driver = DriverREST
	}
	if c.Exchange.OrderTransport == "" {
		c.Exchange.OrderTransport = TransportREST
	}
	if c.Exchange.RecvWindowMs == 0 {
		c.Exchange.RecvWindowMs = 5000
	}
	if c.Exchange.HTTPTimeoutSec == 0 {
		c.Exchange.HTTPTimeoutSec = 15
	}
	if c.Exchange.OrderWSKeepaliveSec == 0 {
		c.Exchange.OrderWSKeepaliveSec = 30
	}
	if c.Exchange.ClientOrderPrefix == "" {
		c.Exchange.ClientOrderPrefix = "fb"
	}
	if c.Exchange.RestBaseURL == "" {
		switch c.Mode {
		case ModeTestnet:
			c.Exchange.RestBaseURL = "https://testnet.binancefuture.com"
		case ModeLive:
			c.Exchange.RestBaseURL = "https://fapi.binance.com"
		}
	}
	if c.Exchange.WSBaseURL == "" {
		switch c.Mode {
		case ModeTestnet:
			c.Exchange.WSBaseURL = "wss://testnet.binancefuture.com/ws-fapi/v1"
		case ModeLive:
			c.Exchange.WSBaseURL = "wss://ws-fapi.binance.com/ws-fapi/v1"
		}
	}
	if c.Log.File == "" {
		c.Log.File = "trading_bot.log"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Observability.Telegram.APIBaseURL == "" {
		c.Observability.Telegram.APIBaseURL = "https://api.telegram.org"
	}
	if c.Observability.Telegram.TimeoutSec == 0 {
		c.Observability.Telegram.TimeoutSec = 10
	}
	if c.Observability.AlertDropReportSec == 0 {
		c.Observability.AlertDropReportSec = 60
	}
}

func (c Config) Validate() error {
	switch c.Mode {
	case ModeTestnet, ModeLive:
	default:
		return fmt.Errorf("mode must be testnet or live")
	}
	switch c.Exchange.Driver {
	case DriverREST, DriverSDK:
	default:
		return fmt.Errorf("exchange driver must be rest or sdk")
	}
	switch c.Exchange.OrderTransport {
	case TransportREST:
	case TransportWS:
		if c.Exchange.Driver != DriverREST {
			return fmt.Errorf("exchange order_transport ws requires driver rest")
		}
	default:
		return fmt.Errorf("exchange order_transport must be rest or ws")
	}
	if c.Exchange.RecvWindowMs < 1 || c.Exchange.RecvWindowMs > 60000 {
		return fmt.Errorf("exchange recv_window_ms must be between 1 and 60000")
	}
	if c.Exchange.HTTPTimeoutSec < 1 || c.Exchange.HTTPTimeoutSec > 120 {
		return fmt.Errorf("exchange http_timeout_sec must be between 1 and 120")
	}
	if c.Exchange.OrderWSKeepaliveSec < 1 || c.Exchange.OrderWSKeepaliveSec > 300 {
		return fmt.Errorf("exchange order_ws_keepalive_sec must be between 1 and 300")
	}
	if !isValidPrefix(c.Exchange.ClientOrderPrefix) {
		return fmt.Errorf("exchange client_order_prefix must match [a-z0-9_-], length 1..12")
	}
	if err := validateURL(c.Exchange.RestBaseURL, "http", "https"); err != nil {
		return fmt.Errorf("exchange rest_base_url %v", err)
	}
	if c.Exchange.OrderTransport == TransportWS {
		if err := validateURL(c.Exchange.WSBaseURL, "ws", "wss"); err != nil {
			return fmt.Errorf("exchange ws_base_url %v", err)
		}
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log level must be debug, info, warn, or error")
	}
	if c.Observability.AlertDropReportSec < 0 || c.Observability.AlertDropReportSec > 3600 {
		return fmt.Errorf("observability.alert_drop_report_sec must be between 0 and 3600")
	}
	if tg := c.Observability.Telegram; tg.Enabled {
		if tg.BotToken == "" {
			return fmt.Errorf("observability.telegram.bot_token is required when telegram enabled")
		}
		if tg.ChatID == "" {
			return fmt.Errorf("observability.telegram.chat_id is required when telegram enabled")
		}
		if tg.TimeoutSec < 1 || tg.TimeoutSec > 120 {
			return fmt.Errorf("observability.telegram.timeout_sec must be between 1 and 120")
		}
		if err := validateURL(tg.APIBaseURL, "http", "https"); err != nil {
			return fmt.Errorf("observability.telegram.api_base_url %v", err)
		}
	}
	return nil
}

// ValidateCredentials is checked after the interactive prompt had a chance
// to fill missing keys.
func (c Config) ValidateCredentials() error {
	if c.Exchange.APIKey == "" || c.Exchange.APISecret == "" {
		return fmt.Errorf("exchange api_key/api_secret are required for %s mode", c.Mode)
	}
	return nil
}

func isValidPrefix(v string) bool {
	if len(v) < 1 || len(v) > 12 {
		return false
	}
	for _, r := range v {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_' || r == '-' {
			continue
		}
		return false
	}
	return true
}

func validateURL(raw string, schemes ...string) error {
	parsed, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("must be a valid URL: %w", err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("must include scheme and host")
	}
	for _, s := range schemes {
		if parsed.Scheme == s {
			return nil
		}
	}
	return fmt.Errorf("scheme must be %s", strings.Join(schemes, " or "))
}
