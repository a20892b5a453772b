package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Setenv("DATABASE_URL", "file:test?mode=memory")
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("ROOT_ADMIN_CREDENTIAL", "root")
}

func TestLoad_Defaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 5200, cfg.Port)
	assert.Equal(t, "postgres", cfg.DatabaseDriver)
	assert.Equal(t, []string{"http://localhost:3000"}, cfg.AllowedOrigins)
	assert.Equal(t, 24*time.Hour, cfg.TokenTTL)
	assert.Equal(t, "admin", cfg.RootAdminIdentity)
	assert.Equal(t, "sum", cfg.ScoreAggregation)
	assert.Equal(t, 10*time.Minute, cfg.DuelTTL)
	assert.Equal(t, time.Minute, cfg.DuelSweepInterval)
	assert.False(t, cfg.Archive.Enabled())
}

func TestLoad_Overrides(t *testing.T) {
	setRequired(t)
	t.Setenv("DATABASE_DRIVER", "sqlite")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("DUEL_TTL", "90s")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "sqlite", cfg.DatabaseDriver)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.AllowedOrigins)
	assert.Equal(t, 90*time.Second, cfg.DuelTTL)
}

func TestLoad_Rejects(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"unknown driver", map[string]string{"DATABASE_DRIVER": "mysql"}},
		{"zero ttl", map[string]string{"DUEL_TTL": "0s"}},
		{"partial archive", map[string]string{"CLOUDFLARE_ACCOUNT_ID": "acct"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setRequired(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestLoad_MissingRequired(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("JWT_SECRET", "")
	t.Setenv("ROOT_ADMIN_CREDENTIAL", "")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoad_EnvFile(t *testing.T) {
	setRequired(t)
	t.Cleanup(func() { _ = os.Unsetenv("ARCHIVE_INTERVAL") })

	cfg, err := Load("testdata/app.env")
	require.NoError(t, err)
	assert.Equal(t, 5*time.Minute, cfg.ArchiveInterval)
}

func TestLoad_NamedEnvFileMustExist(t *testing.T) {
	setRequired(t)

	_, err := Load("testdata/missing.env")
	assert.Error(t, err)
}
