package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

type Config struct {
	Debug bool `env:"DEBUG" envDefault:"false"`

	Server struct {
		Addr    string   `env:"HTTP_ADDR" envDefault:":9000"`
		Origins []string `env:"CORS_ORIGINS" envSeparator:"," envDefault:"http://localhost:3000"`
	}

	// Empty RedisURL keeps accounts, nonces and revocations in memory.
	RedisURL string `env:"REDIS_URL"`

	Chain struct {
		RPCURL       string `env:"RPC_URL"`
		NetworkName  string `env:"NETWORK_NAME" envDefault:"sepolia"`
		ChainID      uint64 `env:"CHAIN_ID" envDefault:"11155111"`
		NativeSymbol string `env:"NATIVE_SYMBOL" envDefault:"ETH"`
	}

	Session struct {
		TTL                 time.Duration `env:"SESSION_TTL" envDefault:"24h"`
		ExpiryCheckInterval time.Duration `env:"EXPIRY_CHECK_INTERVAL" envDefault:"60s"`
		TermsVersion        string        `env:"TERMS_VERSION" envDefault:"1.0"`
		SignatureTimeout    time.Duration `env:"SIGNATURE_TIMEOUT" envDefault:"0"`
		SigningKey          string        `env:"SESSION_SIGNING_KEY"`
	}

	Payments struct {
		SettleDelay         time.Duration `env:"SETTLE_DELAY" envDefault:"500ms"`
		ReceiptPollInterval time.Duration `env:"RECEIPT_POLL_INTERVAL" envDefault:"2s"`
		BlockPollInterval   time.Duration `env:"BLOCK_POLL_INTERVAL" envDefault:"12s"`
		ConfirmationTimeout time.Duration `env:"CONFIRMATION_TIMEOUT" envDefault:"0"`
	}

	Verification struct {
		ChallengeTTL    time.Duration `env:"CHALLENGE_TTL" envDefault:"5m"`
		VerifierURL     string        `env:"VERIFIER_URL"`
		VerifyTimeout   time.Duration `env:"VERIFY_TIMEOUT" envDefault:"10s"`
		AccountCacheTTL time.Duration `env:"ACCOUNT_CACHE_TTL" envDefault:"5m"`
	}

	// Hex secp256k1 key of the operator wallet; empty runs without one.
	WalletPrivateKey string `env:"WALLET_PRIVATE_KEY"`
}

// Load reads .env, when present, and the environment
func Load() (*Config, error) {
	// A missing .env is normal outside development
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the services cannot run with
func (c *Config) Validate() error {
	positive := map[string]time.Duration{
		"SESSION_TTL":           c.Session.TTL,
		"EXPIRY_CHECK_INTERVAL": c.Session.ExpiryCheckInterval,
		"SETTLE_DELAY":          c.Payments.SettleDelay,
		"RECEIPT_POLL_INTERVAL": c.Payments.ReceiptPollInterval,
		"BLOCK_POLL_INTERVAL":   c.Payments.BlockPollInterval,
		"CHALLENGE_TTL":         c.Verification.ChallengeTTL,
		"VERIFY_TIMEOUT":        c.Verification.VerifyTimeout,
	}
	var errs []error
	for key, d := range positive {
		if d <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %s", key, d))
		}
	}
	if c.Session.SignatureTimeout < 0 {
		errs = append(errs, errors.New("SIGNATURE_TIMEOUT must not be negative"))
	}
	if c.Payments.ConfirmationTimeout < 0 {
		errs = append(errs, errors.New("CONFIRMATION_TIMEOUT must not be negative"))
	}
	if c.Verification.AccountCacheTTL < 0 {
		errs = append(errs, errors.New("ACCOUNT_CACHE_TTL must not be negative"))
	}
	if c.Chain.NetworkName == "" {
		errs = append(errs, errors.New("NETWORK_NAME is required"))
	}
	return errors.Join(errs...)
}
