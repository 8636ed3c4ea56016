package config

import (
	"bytes"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

type Env string

const (
	EnvProduction Env = "production"
	EnvSandbox    Env = "sandbox"
)

type Config struct {
	Env         Env            `yaml:"-"`
	Credentials Credentials    `yaml:"-"`
	Exchange    ExchangeConfig `yaml:"exchange"`
	Trade       TradeConfig    `yaml:"trade"`
	Server      ServerConfig   `yaml:"server"`
	Telegram    TelegramConfig `yaml:"telegram"`
}

// Credentials are never read from the config file; they come from the
// environment so the file can be committed without secrets.
type Credentials struct {
	Key        string
	Secret     string
	Passphrase string
}

type ExchangeConfig struct {
	RestBaseURL    string `yaml:"rest_base_url"`
	WSFeedURL      string `yaml:"ws_feed_url"`
	HTTPTimeoutSec int64  `yaml:"http_timeout_sec"`
}

type TradeConfig struct {
	PollIntervalSec   int64   `yaml:"poll_interval_sec"`
	ConfirmTimeoutSec int64   `yaml:"confirm_timeout_sec"`
	MaxFunds          Decimal `yaml:"max_funds"`
	UseFillFeed       bool    `yaml:"use_fill_feed"`
}

type ServerConfig struct {
	ListenAddr string `yaml:"listen_addr"`
}

type TelegramConfig struct {
	Enabled    bool   `yaml:"enabled"`
	BotToken   string `yaml:"bot_token"`
	ChatID     string `yaml:"chat_id"`
	APIBaseURL string `yaml:"api_base_url"`
	TimeoutSec int64  `yaml:"timeout_sec"`
}

// Load reads the optional yaml config at path and the credential environment.
// A missing file is not an error: defaults plus environment variables are a
// complete configuration. ENV=PRODUCTION selects the production credential
// triple and endpoints, anything else selects the sandbox ones.
func Load(path string) (Config, error) {
	_ = godotenv.Load()

	var cfg Config
	data, err := os.ReadFile(path)
	if err == nil {
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&cfg); err != nil && err != io.EOF {
			return Config{}, err
		}
		if err := dec.Decode(&struct{}{}); err != io.EOF {
			if err == nil {
				return Config{}, fmt.Errorf("config must contain a single YAML document")
			}
			return Config{}, err
		}
	} else if !os.IsNotExist(err) {
		return Config{}, err
	}

	if strings.EqualFold(strings.TrimSpace(os.Getenv("ENV")), "PRODUCTION") {
		cfg.Env = EnvProduction
		cfg.Credentials = Credentials{
			Key:        envStr("CBPRO_API_KEY", ""),
			Secret:     envStr("CBPRO_SECRET_KEY", ""),
			Passphrase: envStr("CBPRO_PASSPHRASE", ""),
		}
	} else {
		cfg.Env = EnvSandbox
		cfg.Credentials = Credentials{
			Key:        envStr("CBPRO_API_KEY_SANDBOX", ""),
			Secret:     envStr("CBPRO_SECRET_KEY_SANDBOX", ""),
			Passphrase: envStr("CBPRO_PASSPHRASE_SANDBOX", ""),
		}
	}

	cfg.normalize()
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) normalize() {
	c.Exchange.RestBaseURL = strings.TrimRight(strings.TrimSpace(c.Exchange.RestBaseURL), "/")
	c.Exchange.WSFeedURL = strings.TrimRight(strings.TrimSpace(c.Exchange.WSFeedURL), "/")
	c.Server.ListenAddr = strings.TrimSpace(c.Server.ListenAddr)
	c.Telegram.BotToken = strings.TrimSpace(c.Telegram.BotToken)
	c.Telegram.ChatID = strings.TrimSpace(c.Telegram.ChatID)
	c.Telegram.APIBaseURL = strings.TrimSpace(c.Telegram.APIBaseURL)
	c.Credentials.Key = strings.TrimSpace(c.Credentials.Key)
	c.Credentials.Secret = strings.TrimSpace(c.Credentials.Secret)
	c.Credentials.Passphrase = strings.TrimSpace(c.Credentials.Passphrase)
}

func (c *Config) applyDefaults() {
	if c.Exchange.RestBaseURL == "" {
		switch c.Env {
		case EnvProduction:
			c.Exchange.RestBaseURL = "https://api.exchange.coinbase.com"
		default:
			c.Exchange.RestBaseURL = "https://api-public.sandbox.exchange.coinbase.com"
		}
	}
	if c.Exchange.WSFeedURL == "" {
		switch c.Env {
		case EnvProduction:
			c.Exchange.WSFeedURL = "wss://ws-feed.exchange.coinbase.com"
		default:
			c.Exchange.WSFeedURL = "wss://ws-feed-public.sandbox.exchange.coinbase.com"
		}
	}
	if c.Exchange.HTTPTimeoutSec == 0 {
		c.Exchange.HTTPTimeoutSec = 15
	}
	if c.Trade.PollIntervalSec == 0 {
		c.Trade.PollIntervalSec = 5
	}
	if c.Trade.ConfirmTimeoutSec == 0 {
		c.Trade.ConfirmTimeoutSec = 300
	}
	if c.Telegram.APIBaseURL == "" {
		c.Telegram.APIBaseURL = "https://api.telegram.org"
	}
	if c.Telegram.TimeoutSec == 0 {
		c.Telegram.TimeoutSec = 10
	}
}

func (c Config) Validate() error {
	if err := validateURL(c.Exchange.RestBaseURL, "http", "https"); err != nil {
		return fmt.Errorf("exchange rest_base_url %v", err)
	}
	if err := validateURL(c.Exchange.WSFeedURL, "ws", "wss"); err != nil {
		return fmt.Errorf("exchange ws_feed_url %v", err)
	}
	if c.Exchange.HTTPTimeoutSec < 1 || c.Exchange.HTTPTimeoutSec > 120 {
		return fmt.Errorf("exchange http_timeout_sec must be between 1 and 120")
	}
	if c.Trade.PollIntervalSec < 1 || c.Trade.PollIntervalSec > 60 {
		return fmt.Errorf("trade poll_interval_sec must be between 1 and 60")
	}
	// The confirm timeout must stay below whatever execution limit the
	// invoking platform enforces; 3600 is a ceiling, not a recommendation.
	if c.Trade.ConfirmTimeoutSec < c.Trade.PollIntervalSec || c.Trade.ConfirmTimeoutSec > 3600 {
		return fmt.Errorf("trade confirm_timeout_sec must be between poll_interval_sec and 3600")
	}
	if c.Trade.MaxFunds.Cmp(decimal.Zero) < 0 {
		return fmt.Errorf("trade max_funds must be >= 0")
	}
	if c.Telegram.Enabled {
		if c.Telegram.BotToken == "" {
			return fmt.Errorf("telegram bot_token is required when telegram enabled")
		}
		if c.Telegram.ChatID == "" {
			return fmt.Errorf("telegram chat_id is required when telegram enabled")
		}
		if c.Telegram.TimeoutSec < 1 || c.Telegram.TimeoutSec > 120 {
			return fmt.Errorf("telegram timeout_sec must be between 1 and 120")
		}
		if err := validateURL(c.Telegram.APIBaseURL, "http", "https"); err != nil {
			return fmt.Errorf("telegram api_base_url %v", err)
		}
	}
	return nil
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
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
