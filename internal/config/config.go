package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type ServerConfig struct {
	Port int `yaml:"port"`
}

type AdminConfig struct {
	APIKey        string        `yaml:"api_key"`
	SessionSecret string        `yaml:"session_secret"`
	SessionTTL    time.Duration `yaml:"session_ttl"`
	SecureCookie  bool          `yaml:"secure_cookie"`
	CookieDomain  string        `yaml:"cookie_domain"`
}

type DatabaseConfig struct {
	URL string `yaml:"url"`
}

type RedisConfig struct {
	URL      string        `yaml:"url"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	LockTTL  time.Duration `yaml:"lock_ttl"`
}

type PaystackConfig struct {
	SecretKey   string `yaml:"secret_key"`
	PublicKey   string `yaml:"public_key"`
	BaseURL     string `yaml:"base_url"` // default https://api.paystack.co
	CallbackURL string `yaml:"callback_url"`
	// CheckoutTTL bounds how long a hosted checkout may stay pending
	// without a callback before it is dismissed.
	CheckoutTTL time.Duration `yaml:"checkout_ttl"`
}

type VerificationConfig struct {
	Timeout time.Duration `yaml:"timeout"` // bound on one verify call
	// FallbackPolicy decides what an unreachable authority means:
	// "strict" fails the attempt, "permissive" confirms it. Permissive must
	// be written out explicitly; anything else is a config error.
	FallbackPolicy string `yaml:"fallback_policy"`
}

type PaymentConfig struct {
	Namespace    string             `yaml:"namespace"` // reference prefix, e.g. "EDU"
	Currency     string             `yaml:"currency"`  // default currency for lessons without one
	Channels     []string           `yaml:"channels"`  // card|bank_transfer|ussd|mobile_money
	Paystack     PaystackConfig     `yaml:"paystack"`
	Verification VerificationConfig `yaml:"verification"`
}

type ReconcilerConfig struct {
	Interval   time.Duration `yaml:"interval"`
	StaleAfter time.Duration `yaml:"stale_after"`
}

type RateLimitConfig struct {
	CheckoutPerMinute int `yaml:"checkout_per_minute"`
}

type Config struct {
	Log        LogConfig        `yaml:"log"`
	Server     ServerConfig     `yaml:"server"`
	Admin      AdminConfig      `yaml:"admin"`
	Database   DatabaseConfig   `yaml:"database"`
	Redis      RedisConfig      `yaml:"redis"`
	Payment    PaymentConfig    `yaml:"payment"`
	Reconciler ReconcilerConfig `yaml:"reconciler"`
	RateLimit  RateLimitConfig  `yaml:"rate_limit"`

	Runtime RuntimeConfig `yaml:"-"`
}

func LoadConfig(path string, dev bool) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	cfg := &Config{}
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg.Runtime.Dev = dev
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Payment.Namespace == "" {
		c.Payment.Namespace = "EDU"
	}
	if c.Payment.Currency == "" {
		c.Payment.Currency = "NGN"
	}
	if len(c.Payment.Channels) == 0 {
		c.Payment.Channels = []string{"card", "bank_transfer", "ussd", "mobile_money"}
	}
	if c.Payment.Paystack.BaseURL == "" {
		c.Payment.Paystack.BaseURL = "https://api.paystack.co"
	}
	if c.Payment.Paystack.CheckoutTTL == 0 {
		c.Payment.Paystack.CheckoutTTL = 15 * time.Minute
	}
	if c.Payment.Verification.Timeout == 0 {
		c.Payment.Verification.Timeout = 10 * time.Second
	}
	if c.Payment.Verification.FallbackPolicy == "" {
		// Safe default. Permissive is opt-in only.
		c.Payment.Verification.FallbackPolicy = "strict"
	}
	if c.Redis.LockTTL == 0 {
		c.Redis.LockTTL = 15 * time.Minute
	}
	if c.Reconciler.Interval == 0 {
		c.Reconciler.Interval = time.Minute
	}
	if c.Reconciler.StaleAfter == 0 {
		c.Reconciler.StaleAfter = 10 * time.Minute
	}
	if c.RateLimit.CheckoutPerMinute == 0 {
		c.RateLimit.CheckoutPerMinute = 5
	}
	if c.Admin.SessionTTL == 0 {
		c.Admin.SessionTTL = 30 * time.Minute
	}
}

func (c *Config) validate() error {
	switch c.Payment.Verification.FallbackPolicy {
	case "strict", "permissive":
	default:
		return fmt.Errorf("payment.verification.fallback_policy must be \"strict\" or \"permissive\", got %q", c.Payment.Verification.FallbackPolicy)
	}
	if !c.Runtime.Dev && c.Payment.Paystack.SecretKey == "" {
		return fmt.Errorf("payment.paystack.secret_key is required outside dev mode")
	}
	for _, ch := range c.Payment.Channels {
		switch ch {
		case "card", "bank_transfer", "ussd", "mobile_money":
		default:
			return fmt.Errorf("unknown payment channel %q", ch)
		}
	}
	return nil
}
