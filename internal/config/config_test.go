package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func env(vars map[string]string) func(string) string {
	return func(k string) string { return vars[k] }
}

func TestLoad_Defaults(t *testing.T) {
	t.Parallel()

	cfg, err := Load(nil, env(nil))
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Port)
	assert.Empty(t, cfg.DatabaseURL)
	assert.Equal(t, 30*time.Second, cfg.CacheTTL)
	assert.Equal(t, DefaultProgramID, cfg.ProgramID)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.False(t, cfg.Verbose)
	assert.Equal(t, 256, cfg.MaxParticipants)
	assert.Equal(t, 2*time.Minute, cfg.MaxTransactionAge)
}

func TestLoad_EnvironmentAndFlags(t *testing.T) {
	t.Parallel()

	programID := DefaultProgramID.String()
	cfg, err := Load(
		[]string{"--port", "9090", "--log-format=text"},
		env(map[string]string{
			"PORT":                     "7070",
			"DATABASE_URL":             "postgres://localhost/tokens",
			"REDIS_URL":                "redis://localhost:6379/0",
			"CACHE_TTL":                "5s",
			"PROGRAM_ID":               programID,
			"ADMIN_TOKEN":              "secret",
			"VERBOSE":                  "true",
			"MAX_LOTTERY_PARTICIPANTS": "10",
		}),
	)
	require.NoError(t, err)
	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, "postgres://localhost/tokens", cfg.DatabaseURL)
	assert.Equal(t, "redis://localhost:6379/0", cfg.RedisURL)
	assert.Equal(t, 5*time.Second, cfg.CacheTTL)
	assert.Equal(t, "secret", cfg.AdminToken)
	assert.True(t, cfg.Verbose)
	assert.Equal(t, 10, cfg.MaxParticipants)
	assert.Equal(t, programID, cfg.ProgramID.String())
}

func TestLoad_Invalid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		args []string
		env  map[string]string
	}{
		{name: "bad duration env", env: map[string]string{"CACHE_TTL": "soon"}},
		{name: "bad program id", args: []string{"--program-id", "0OIl"}},
		{name: "unknown log format", args: []string{"--log-format", "xml"}},
		{name: "redis without database", env: map[string]string{"REDIS_URL": "redis://localhost"}},
		{name: "zero participants", args: []string{"--max-lottery-participants", "0"}},
		{name: "unknown flag", args: []string{"--nope"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(tt.args, env(tt.env))
			require.Error(t, err)
		})
	}
}

func TestEnvName(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "MAX_LOTTERY_PARTICIPANTS", EnvName("max-lottery-participants"))
}
