package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/kelseyhightower/envconfig"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/AlexZinkM/avian-backup/internal/crypto"
	"github.com/AlexZinkM/avian-backup/internal/qrchunk"
)

// Prefix of every environment variable, e.g. BACKUP_PORT.
const Prefix = "BACKUP"

// Storage drivers.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config contains all configuration parameters for the application.
// Passwords are never part of it: they are prompted at runtime.
type Config struct {
	Port            string `envconfig:"PORT" default:"8080"`
	DBDriver        string `envconfig:"DB_DRIVER" default:"sqlite"`
	DBDSN           string `envconfig:"DB_DSN" default:"avian-wallet.db"`
	ScryptLogN      uint8  `envconfig:"SCRYPT_LOG_N" default:"18"`
	MaxChunkPayload int    `envconfig:"MAX_CHUNK_PAYLOAD" default:"1000"`
	QRPNGSize       int    `envconfig:"QR_PNG_SIZE" default:"512"`
	ParseRatePerMin int    `envconfig:"PARSE_RATE_PER_MIN" default:"30"`
	LogDev          bool   `envconfig:"LOG_DEV" default:"false"`
}

// cfg is the global configuration instance
var cfg *Config

// Init loads configuration from environment variables.
func Init() error {
	c, err := Load()
	if err != nil {
		return err
	}
	cfg = c
	return nil
}

// Load reads and checks configuration without touching the global instance.
func Load() (*Config, error) {
	c := &Config{}
	if err := envconfig.Process(Prefix, c); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Get returns the global configuration instance.
// Panics if Init() was not called.
func Get() *Config {
	if cfg == nil {
		panic("config not initialized, call Init() first")
	}
	return cfg
}

// Validate checks values envconfig cannot.
func (c *Config) Validate() error {
	switch c.DBDriver {
	case DriverMemory, DriverSQLite, DriverPostgres:
	default:
		return fmt.Errorf("unknown %s_DB_DRIVER %q", Prefix, c.DBDriver)
	}
	if c.DBDriver != DriverMemory && c.DBDSN == "" {
		return fmt.Errorf("%s_DB_DSN is required for %s", Prefix, c.DBDriver)
	}
	if _, err := crypto.NewBox(c.CryptoParams()); err != nil {
		return fmt.Errorf("%s_SCRYPT_LOG_N: %w", Prefix, err)
	}
	if c.MaxChunkPayload < 0 || c.MaxChunkPayload > qrchunk.MaxChunkStringLen {
		return fmt.Errorf("%s_MAX_CHUNK_PAYLOAD must be between 0 and %d", Prefix, qrchunk.MaxChunkStringLen)
	}
	if c.ParseRatePerMin <= 0 {
		return fmt.Errorf("%s_PARSE_RATE_PER_MIN must be positive", Prefix)
	}
	return nil
}

// CryptoParams returns the scrypt parameters for new containers.
func (c *Config) CryptoParams() crypto.Params {
	p := crypto.DefaultParams
	p.LogN = c.ScryptLogN
	return p
}

// Logger builds the process logger.
func (c *Config) Logger() (*zap.Logger, error) {
	if c.LogDev {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// PromptPassword reads a password from the terminal without echoing it.
// Caller must zero the returned slice after use.
func PromptPassword(label string) ([]byte, error) {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return nil, errors.New("stdin is not a terminal: run interactively to enter the password")
	}
	fmt.Fprintf(os.Stderr, "%s: ", label)
	defer fmt.Fprintln(os.Stderr)

	raw, err := term.ReadPassword(int(os.Stdin.Fd()))
	if err != nil {
		return nil, fmt.Errorf("failed to read password: %w", err)
	}
	if len(raw) == 0 {
		return nil, errors.New("password cannot be empty")
	}
	return raw, nil
}

// PromptNewPassword asks twice and fails when the entries differ.
func PromptNewPassword(label string) ([]byte, error) {
	first, err := PromptPassword(label)
	if err != nil {
		return nil, err
	}
	second, err := PromptPassword("Repeat " + label)
	if err != nil {
		clear(first)
		return nil, err
	}
	defer clear(second)

	if string(first) != string(second) {
		clear(first)
		return nil, errors.New("passwords do not match")
	}
	return first, nil
}
