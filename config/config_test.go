package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/hassan3xl/taxation-backend/config"
	"github.com/hassan3xl/taxation-backend/generic"
	"github.com/hassan3xl/taxation-backend/taxation"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "taxation.db", cfg.DBPath)
	assert.Equal(t, 24*time.Hour, cfg.JWTExpiry)
	assert.Equal(t, time.Hour, cfg.SweepInterval)
	assert.True(t, cfg.SweepEnabled)
	assert.True(t, cfg.UsesDevSecret())
	assert.Equal(t, []string{"http://localhost:5173", "http://localhost:8080"}, cfg.AllowedOrigins)
	require.NoError(t, cfg.Validate())

	policy, err := cfg.Policy()
	require.NoError(t, err)
	assert.Equal(t, 16, policy.CutoffHour)
	assert.Equal(t, int64(7), policy.DebtDays)
	assert.Equal(t, "150.00", policy.DefaultDailyRate.String())
}

func TestLoad_FromEnvironment(t *testing.T) {
	t.Setenv("TAX_PORT", "9090")
	t.Setenv("TAX_DEBT_DAYS", "3")
	t.Setenv("TAX_CUTOFF_HOUR", "0")
	t.Setenv("TAX_DEFAULT_DAILY_RATE", "200")
	t.Setenv("TAX_EXEMPTION_OVERLAP", "union")
	t.Setenv("TAX_ALLOWED_ORIGINS", "https://tax.example.ng")
	t.Setenv("TAX_JWT_SECRET", "s3cret")
	t.Setenv("TAX_SWEEP_INTERVAL", "15m")

	cfg, err := config.Load()
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 9090, cfg.Port)
	assert.False(t, cfg.UsesDevSecret())
	assert.Equal(t, 15*time.Minute, cfg.SweepInterval)
	assert.Equal(t, []string{"https://tax.example.ng"}, cfg.AllowedOrigins)

	policy, err := cfg.Policy()
	require.NoError(t, err)
	assert.Equal(t, int64(3), policy.DebtDays)
	assert.Equal(t, 0, policy.CutoffHour)
	assert.Equal(t, "200.00", policy.DefaultDailyRate.String())
	assert.Equal(t, taxation.OverlapUnion, policy.ExemptionOverlap)
}

func TestLoad_DotEnvFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("TAX_DB_PATH=from-dotenv.db\n"), 0o600))
	t.Cleanup(func() { os.Unsetenv("TAX_DB_PATH") })

	// GIVEN: A .env file and a second file that does not exist
	cfg, err := config.Load(path, filepath.Join(dir, "missing.env"))

	// THEN: The file value is used and the missing file is ignored
	require.NoError(t, err)
	assert.Equal(t, "from-dotenv.db", cfg.DBPath)
}

func TestLoad_ProcessEnvWinsOverDotEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("TAX_DB_PATH=from-dotenv.db\n"), 0o600))
	t.Setenv("TAX_DB_PATH", "from-process.db")

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-process.db", cfg.DBPath)
}

func TestLoad_MalformedValue(t *testing.T) {
	t.Setenv("TAX_PORT", "eighty")

	_, err := config.Load()
	assert.Error(t, err)
}

func TestValidate_Rejects(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{"port out of range", "TAX_PORT", "70000"},
		{"negative debt days", "TAX_DEBT_DAYS", "-1"},
		{"cutoff out of range", "TAX_CUTOFF_HOUR", "24"},
		{"unknown zone", "TAX_TIME_ZONE", "Mars/Olympus"},
		{"bad rate", "TAX_DEFAULT_DAILY_RATE", "cheap"},
		{"bad overlap", "TAX_EXEMPTION_OVERLAP", "max"},
		{"bad log level", "TAX_LOG_LEVEL", "loud"},
		{"bad log format", "TAX_LOG_FORMAT", "xml"},
		{"zero sweep interval", "TAX_SWEEP_INTERVAL", "0s"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.val)

			cfg, err := config.Load()
			require.NoError(t, err)
			assert.Error(t, cfg.Validate())
		})
	}

	t.Run("validation errors are classified", func(t *testing.T) {
		t.Setenv("TAX_PORT", "0")
		cfg, err := config.Load()
		require.NoError(t, err)
		assert.ErrorIs(t, cfg.Validate(), generic.ErrValidation)
	})
}

func TestPolicy_FromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"id": "kano", "debt_days": 10}`), 0o600))
	t.Setenv("TAX_POLICY_FILE", path)
	t.Setenv("TAX_DEBT_DAYS", "2")

	cfg, err := config.Load()
	require.NoError(t, err)

	// THEN: The file replaces the individual policy keys
	policy, err := cfg.Policy()
	require.NoError(t, err)
	assert.Equal(t, "kano", policy.ID)
	assert.Equal(t, int64(10), policy.DebtDays)
}

func TestLogger(t *testing.T) {
	t.Setenv("TAX_LOG_LEVEL", "debug")
	t.Setenv("TAX_LOG_FORMAT", "json")

	cfg, err := config.Load()
	require.NoError(t, err)

	log, err := cfg.Logger()
	require.NoError(t, err)
	assert.Equal(t, logrus.DebugLevel, log.GetLevel())
	assert.IsType(t, &logrus.JSONFormatter{}, log.Formatter)
}
