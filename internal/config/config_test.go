package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"
)

const secret = "0123456789abcdef0123"

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("DIXIT_TOKEN_SECRET", secret)

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, 6, cfg.HandSize)
	assert.Equal(t, 3, cfg.MinPlayers)
	assert.Equal(t, 200, cfg.CardQuota)
	assert.Equal(t, 5<<20, cfg.MaxCardBytes)
	assert.Equal(t, 30, cfg.WinTarget)
	assert.Equal(t, 90*time.Second, cfg.StorytellerTimeout)
	assert.Equal(t, 30*time.Second, cfg.AdminGrace)
	assert.Equal(t, 5*time.Minute, cfg.DisconnectTimeout)

	r := cfg.Rules()
	assert.Equal(t, cfg.WinTarget, r.DefaultWinTarget)
	assert.Equal(t, cfg.RevealTimeout, r.RevealTimeout)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("DIXIT_TOKEN_SECRET", secret)
	t.Setenv("DIXIT_WIN_TARGET", "15")
	t.Setenv("DIXIT_VOTING_TIMEOUT", "2m")
	t.Setenv("DIXIT_ALLOWED_ORIGINS", "localhost:*,example.com")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)
	assert.Equal(t, 15, cfg.WinTarget)
	assert.Equal(t, 2*time.Minute, cfg.VotingTimeout)
	assert.Equal(t, []string{"localhost:*", "example.com"}, cfg.AllowedOrigins)
}

func TestLoad_DotEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(path, []byte("DIXIT_TOKEN_SECRET="+secret+"\nDIXIT_HAND_SIZE=7\n"), 0o600))
	t.Cleanup(func() {
		_ = os.Unsetenv("DIXIT_TOKEN_SECRET")
		_ = os.Unsetenv("DIXIT_HAND_SIZE")
	})

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.HandSize)
}

func TestValidate_ReportsEveryProblem(t *testing.T) {
	t.Setenv("DIXIT_TOKEN_SECRET", "short")
	t.Setenv("DIXIT_MIN_PLAYERS", "2")
	t.Setenv("DIXIT_WIN_TARGET", "500")
	t.Setenv("DIXIT_SECRET_COST", "0")
	t.Setenv("DIXIT_ADMIN_GRACE", "0s")
	t.Setenv("DIXIT_DISCONNECT_TIMEOUT", "0s")
	t.Setenv("DIXIT_IDLE_ROOM_TIMEOUT", "-1s")
	t.Setenv("DIXIT_SHUTDOWN_TIMEOUT", "0s")

	_, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.Error(t, err)
	errs := multierr.Errors(err)
	assert.Len(t, errs, 8)
	for _, name := range []string{
		"DIXIT_TOKEN_SECRET", "DIXIT_MIN_PLAYERS", "DIXIT_WIN_TARGET", "DIXIT_SECRET_COST",
		"DIXIT_ADMIN_GRACE", "DIXIT_DISCONNECT_TIMEOUT", "DIXIT_IDLE_ROOM_TIMEOUT", "DIXIT_SHUTDOWN_TIMEOUT",
	} {
		assert.ErrorContains(t, err, name)
	}
}

func TestValidate_SecretCostBounds(t *testing.T) {
	t.Setenv("DIXIT_TOKEN_SECRET", secret)
	t.Setenv("DIXIT_SECRET_COST", "32")

	_, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.ErrorContains(t, err, "DIXIT_SECRET_COST")
}

func TestLoad_BadValue(t *testing.T) {
	t.Setenv("DIXIT_TOKEN_SECRET", secret)
	t.Setenv("DIXIT_HAND_SIZE", "six")

	_, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.ErrorContains(t, err, "parse env")
}
