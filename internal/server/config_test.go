package server

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lox/pokerrooms/internal/pot"
	"github.com/lox/pokerrooms/internal/room"
)

const sampleConfig = `
server {
  port      = 9090
  log_level = "debug"
  jwt_secret = "from-file"
}

timers {
  turn_timeout    = "20s"
  reconnect_grace = "1m"
}

equity {
  trials    = 5000
  max_runs  = 2
  remainder = "largest_stack"
}

room "high-stakes" {
  small_blind = 50
  big_blind   = 100
  max_players = 6
}

room "sunday" {
  mode           = "tournament"
  structure      = "TURBO"
  starting_stack = 3000
  level_duration = "5m"
}
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "server.hcl")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadConfigMissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "nope.hcl"))
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "localhost:8080", cfg.GetServerAddress())
	assert.Equal(t, "token", cfg.Server.AuthMode)
	require.Len(t, cfg.Rooms, 1)
	assert.Equal(t, "main", cfg.Rooms[0].Name)
}

func TestLoadConfigFromHCL(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, sampleConfig))
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "debug", cfg.Server.LogLevel)

	base, err := cfg.RoomDefaults()
	require.NoError(t, err)
	assert.Equal(t, 20*time.Second, base.TurnTimeout)
	assert.Equal(t, time.Minute, base.ReconnectGrace)
	assert.Equal(t, 15*time.Second, base.NegotiationTimeout, "unset timers keep defaults")
	assert.Equal(t, 5000, base.EquityTrials)
	assert.Equal(t, 2, base.MaxRuns)
	assert.Equal(t, pot.RemainderLargestStack, base.Remainder)

	require.Len(t, cfg.Rooms, 2)
	cash, err := cfg.Rooms[0].Apply(base)
	require.NoError(t, err)
	assert.Equal(t, "high-stakes", cash.Name)
	assert.Equal(t, 100, cash.Blinds.BigBlind)
	assert.Equal(t, 2000, cash.MinBuyIn)
	assert.Equal(t, 10000, cash.MaxBuyIn)
	assert.Equal(t, 6, cash.MaxPlayers)

	tourney, err := cfg.Rooms[1].Apply(base)
	require.NoError(t, err)
	assert.Equal(t, room.Tournament, tourney.Mode)
	assert.Equal(t, room.Turbo, tourney.Structure)
	assert.Equal(t, 3000, tourney.StartingStack)
	assert.Equal(t, 5*time.Minute, tourney.LevelDuration)
}

func TestLoadConfigEnvironmentOverrides(t *testing.T) {
	t.Setenv("POKER_PORT", "7000")
	t.Setenv("POKER_JWT_SECRET", "from-env")

	cfg, err := LoadConfig(writeConfig(t, sampleConfig))
	require.NoError(t, err)
	assert.Equal(t, 7000, cfg.Server.Port)
	assert.Equal(t, "from-env", cfg.Server.JWTSecret)
}

func TestLoadConfigParseError(t *testing.T) {
	_, err := LoadConfig(writeConfig(t, `server {`))
	assert.Error(t, err)
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"port", func(c *Config) { c.Server.Port = 0 }},
		{"auth mode", func(c *Config) { c.Server.AuthMode = "kerberos" }},
		{"http without url", func(c *Config) { c.Server.AuthMode = "http" }},
		{"token ttl", func(c *Config) { c.Server.TokenTTL = "soon" }},
		{"timer", func(c *Config) { c.Timers.TurnTimeout = "-1s" }},
		{"remainder", func(c *Config) { c.Equity.Remainder = "dealer" }},
		{"duplicate room", func(c *Config) { c.Rooms = append(c.Rooms, RoomSettings{Name: "main"}) }},
		{"room mode", func(c *Config) { c.Rooms[0].Mode = "sit-and-go" }},
		{"room seats", func(c *Config) { c.Rooms[0].MaxPlayers = 11 }},
		{"room blinds", func(c *Config) { c.Rooms[0].SmallBlind, c.Rooms[0].BigBlind = 20, 10 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
