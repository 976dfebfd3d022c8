package config

import (
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fromTOML(t *testing.T, body string) (*Config, error) {
	t.Helper()
	v := viper.New()
	v.SetConfigType("toml")
	require.NoError(t, v.ReadConfig(strings.NewReader(body)))
	return FromViper(v)
}

func TestFromViper_Defaults(t *testing.T) {
	cfg, err := fromTOML(t, `
[database]
url = "postgres://dairy@localhost/dairy"
`)
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.App.Port)
	assert.Equal(t, int32(10), cfg.Database.MaxConns)
	assert.Equal(t, 30*time.Second, cfg.Database.StatementTimeout)
	assert.Equal(t, "Africa/Nairobi", cfg.Collection.Timezone)
	assert.Equal(t, 0.01, cfg.Reconcile.Tolerance)
	assert.Equal(t, "*/5 * * * *", cfg.Scheduler.AutoCloseCron)
	assert.False(t, cfg.IsProduction())
}

func TestFromViper_EnvOverridesFile(t *testing.T) {
	t.Setenv("DAIRY_APP_PORT", "9090")
	t.Setenv("DAIRY_RECONCILE_TOLERANCE", "0.5")

	cfg, err := fromTOML(t, `
[app]
port = "8081"
env = "production"

[database]
url = "postgres://dairy@localhost/dairy"
`)
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.App.Port)
	assert.Equal(t, 0.5, cfg.Reconcile.Tolerance)
	assert.True(t, cfg.IsProduction())
}

func TestFromViper_Invalid(t *testing.T) {
	tests := []struct {
		name string
		toml string
		want string
	}{
		{
			name: "missing database url",
			toml: ``,
			want: "database.url is required",
		},
		{
			name: "unknown timezone",
			toml: `
[database]
url = "postgres://localhost/dairy"
[collection]
timezone = "Mars/Olympus"
`,
			want: "collection.timezone",
		},
		{
			name: "bad cron",
			toml: `
[database]
url = "postgres://localhost/dairy"
[scheduler]
auto_close_cron = "every five minutes"
`,
			want: "scheduler.auto_close_cron",
		},
		{
			name: "pool bounds",
			toml: `
[database]
url = "postgres://localhost/dairy"
min_conns = 20
max_conns = 5
`,
			want: "exceeds max_conns",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := fromTOML(t, tt.toml)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestCollectionLocation(t *testing.T) {
	loc, err := CollectionConfig{Timezone: "UTC"}.Location()
	require.NoError(t, err)
	assert.Equal(t, time.UTC, loc)
}
