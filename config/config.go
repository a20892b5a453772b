// Package config reads server settings from the environment.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	Port           int      `env:"PORT"            envDefault:"5200"`
	DatabaseDriver string   `env:"DATABASE_DRIVER" envDefault:"postgres"`
	DatabaseURL    string   `env:"DATABASE_URL,required,notEmpty"`
	AllowedOrigins []string `env:"ALLOWED_ORIGINS" envDefault:"http://localhost:3000" envSeparator:","`

	JWTSecret string        `env:"JWT_SECRET,required,notEmpty"`
	TokenTTL  time.Duration `env:"TOKEN_TTL" envDefault:"24h"`

	RootAdminIdentity   string `env:"ROOT_ADMIN_IDENTITY"   envDefault:"admin"`
	RootAdminCredential string `env:"ROOT_ADMIN_CREDENTIAL,required,notEmpty"`

	ScoreAggregation  string        `env:"SCORE_AGGREGATION"   envDefault:"sum"`
	DuelTTL           time.Duration `env:"DUEL_TTL"            envDefault:"10m"`
	DuelSweepInterval time.Duration `env:"DUEL_SWEEP_INTERVAL" envDefault:"1m"`
	ArchiveInterval   time.Duration `env:"ARCHIVE_INTERVAL"    envDefault:"1m"`

	Archive ArchiveConfig
}

// ArchiveConfig points at the Cloudflare R2 bucket closed rounds are copied
// to. Archiving is off when AccountID is empty.
type ArchiveConfig struct {
	AccountID       string `env:"CLOUDFLARE_ACCOUNT_ID"`
	AccessKeyID     string `env:"R2_ACCESS_KEY_ID"`
	AccessKeySecret string `env:"R2_ACCESS_KEY_SECRET"`
	Bucket          string `env:"R2_BUCKET_NAME"`
	CDNBaseURL      string `env:"CDN_BASE_URL"`
}

func (a ArchiveConfig) Enabled() bool { return a.AccountID != "" }

// Load reads env files and then the environment. Values already set in the
// environment win over the files. Without files a missing .env is fine; a
// named file must exist.
func Load(files ...string) (Config, error) {
	if len(files) > 0 {
		if err := godotenv.Load(files...); err != nil {
			return Config{}, fmt.Errorf("load env file: %w", err)
		}
	} else {
		_ = godotenv.Load()
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	for i, o := range c.AllowedOrigins {
		c.AllowedOrigins[i] = strings.TrimSpace(o)
	}
	switch c.DatabaseDriver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("DATABASE_DRIVER must be postgres or sqlite, got %q", c.DatabaseDriver)
	}
	if c.DuelTTL <= 0 || c.DuelSweepInterval <= 0 || c.ArchiveInterval <= 0 {
		return errors.New("DUEL_TTL, DUEL_SWEEP_INTERVAL and ARCHIVE_INTERVAL must be positive")
	}
	if c.Archive.Enabled() && (c.Archive.AccessKeyID == "" || c.Archive.AccessKeySecret == "" || c.Archive.Bucket == "") {
		return errors.New("R2 archive needs R2_ACCESS_KEY_ID, R2_ACCESS_KEY_SECRET and R2_BUCKET_NAME")
	}
	return nil
}
