package serve

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/statuspage/internal/server"
)

func TestParseConfigDefaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("HTTP_HOST", "")
	cmd := NewCommand(nil)
	require.NoError(t, cmd.ParseFlags(nil))

	cfg := parseConfig(cmd)
	def := server.DefaultConfig()
	assert.Equal(t, def.Port, cfg.Port)
	assert.Equal(t, def.WSPath, cfg.WSPath)
	assert.Equal(t, def.CacheTTL, cfg.CacheTTL)
	assert.Equal(t, 0, cfg.MaxConnectionsPerRoom)
	assert.False(t, cfg.AuthEnabled)
}

func TestParseConfigFlags(t *testing.T) {
	t.Setenv("PORT", "9999")
	cmd := NewCommand(nil)
	require.NoError(t, cmd.ParseFlags([]string{
		"--port", "8081",
		"--ws-path", "/rt",
		"--max-connections-per-room", "50",
		"--cors-origins", "https://a.example,https://b.example",
		"--auth",
		"--cache-ttl", "5s",
	}))

	cfg := parseConfig(cmd)
	assert.Equal(t, 8081, cfg.Port, "explicit flag beats PORT")
	assert.Equal(t, "/rt", cfg.WSPath)
	assert.Equal(t, 50, cfg.MaxConnectionsPerRoom)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSOrigins)
	assert.True(t, cfg.AuthEnabled)
	assert.Equal(t, 5*time.Second, cfg.CacheTTL)
}

func TestParseConfigPortFromEnv(t *testing.T) {
	t.Setenv("PORT", "4000")
	cmd := NewCommand(nil)
	require.NoError(t, cmd.ParseFlags(nil))
	assert.Equal(t, 4000, parseConfig(cmd).Port)
}

func TestParsePort(t *testing.T) {
	tests := []struct {
		in      string
		want    int
		wantErr bool
	}{
		{"3000", 3000, false},
		{"65535", 65535, false},
		{"0", 0, true},
		{"70000", 0, true},
		{"abc", 0, true},
	}
	for _, tt := range tests {
		got, err := parsePort(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
	}
}
