package server

import (
	"fmt"
	"os"
	"time"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/kelseyhightower/envconfig"

	"github.com/lox/pokerrooms/internal/pot"
	"github.com/lox/pokerrooms/internal/room"
)

// Config represents the complete server configuration
type Config struct {
	Server ServerSettings  `hcl:"server,block"`
	Timers *TimerSettings  `hcl:"timers,block"`
	Equity *EquitySettings `hcl:"equity,block"`
	Rooms  []RoomSettings  `hcl:"room,block"`
}

// ServerSettings contains server-level configuration
type ServerSettings struct {
	Address        string   `hcl:"address,optional"`
	Port           int      `hcl:"port,optional"`
	LogLevel       string   `hcl:"log_level,optional"`
	AllowedOrigins []string `hcl:"allowed_origins,optional"`

	// AuthMode is "token" (local accounts and signed tokens), "http"
	// (delegate to AuthURL) or "guest".
	AuthMode    string `hcl:"auth_mode,optional"`
	AuthURL     string `hcl:"auth_url,optional"`
	AdminSecret string `hcl:"admin_secret,optional"`
	JWTSecret   string `hcl:"jwt_secret,optional"`
	TokenTTL    string `hcl:"token_ttl,optional"`
}

// TimerSettings are durations in time.ParseDuration syntax. Empty values
// keep the room defaults.
type TimerSettings struct {
	TurnTimeout        string `hcl:"turn_timeout,optional"`
	NegotiationTimeout string `hcl:"negotiation_timeout,optional"`
	ReconnectGrace     string `hcl:"reconnect_grace,optional"`
	ShowdownDelay      string `hcl:"showdown_delay,optional"`
	NextHandDelay      string `hcl:"next_hand_delay,optional"`
	StreetDelay        string `hcl:"street_delay,optional"`
	MultiRunDelay      string `hcl:"multi_run_delay,optional"`
}

type EquitySettings struct {
	Trials             int     `hcl:"trials,optional"`
	DrawingDeadPercent float64 `hcl:"drawing_dead_percent,optional"`
	MaxRuns            int     `hcl:"max_runs,optional"`
	Remainder          string  `hcl:"remainder,optional"`
}

// RoomSettings describes a room, either preconfigured in the server file or
// requested over HTTP.
type RoomSettings struct {
	Name          string `hcl:"name,label" json:"name"`
	Mode          string `hcl:"mode,optional" json:"mode,omitempty"`
	MaxPlayers    int    `hcl:"max_players,optional" json:"maxPlayers,omitempty"`
	SmallBlind    int    `hcl:"small_blind,optional" json:"smallBlind,omitempty"`
	BigBlind      int    `hcl:"big_blind,optional" json:"bigBlind,omitempty"`
	BuyInMin      int    `hcl:"buy_in_min,optional" json:"minBuyIn,omitempty"`
	BuyInMax      int    `hcl:"buy_in_max,optional" json:"maxBuyIn,omitempty"`
	StartingStack int    `hcl:"starting_stack,optional" json:"startingStack,omitempty"`
	Structure     string `hcl:"structure,optional" json:"structure,omitempty"`
	LevelDuration string `hcl:"level_duration,optional" json:"levelDuration,omitempty"`
}

// envOverrides are read from POKER_* variables.
type envOverrides struct {
	Address   string `envconfig:"ADDRESS"`
	Port      int    `envconfig:"PORT"`
	LogLevel  string `envconfig:"LOG_LEVEL"`
	AuthMode  string `envconfig:"AUTH_MODE"`
	AuthURL   string `envconfig:"AUTH_URL"`
	JWTSecret string `envconfig:"JWT_SECRET"`
}

// DefaultConfig returns default server configuration
func DefaultConfig() *Config {
	cfg := &Config{
		Rooms: []RoomSettings{{Name: "main"}},
	}
	cfg.applyDefaults()
	return cfg
}

// LoadConfig loads the HCL file at filename, falling back to defaults when
// it does not exist, then applies POKER_* environment overrides.
func LoadConfig(filename string) (*Config, error) {
	var config *Config
	if _, err := os.Stat(filename); os.IsNotExist(err) {
		config = DefaultConfig()
	} else {
		parser := hclparse.NewParser()
		file, diags := parser.ParseHCLFile(filename)
		if diags.HasErrors() {
			return nil, fmt.Errorf("failed to parse HCL file: %s", diags.Error())
		}

		config = &Config{}
		if diags := gohcl.DecodeBody(file.Body, nil, config); diags.HasErrors() {
			return nil, fmt.Errorf("failed to decode HCL: %s", diags.Error())
		}
		config.applyDefaults()
	}

	if err := config.applyEnv(); err != nil {
		return nil, err
	}
	return config, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Address == "" {
		c.Server.Address = "localhost"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.LogLevel == "" {
		c.Server.LogLevel = "info"
	}
	if c.Server.AuthMode == "" {
		c.Server.AuthMode = "token"
	}
	if c.Timers == nil {
		c.Timers = &TimerSettings{}
	}
	if c.Equity == nil {
		c.Equity = &EquitySettings{}
	}
}

func (c *Config) applyEnv() error {
	var env envOverrides
	if err := envconfig.Process("poker", &env); err != nil {
		return fmt.Errorf("environment: %w", err)
	}
	if env.Address != "" {
		c.Server.Address = env.Address
	}
	if env.Port != 0 {
		c.Server.Port = env.Port
	}
	if env.LogLevel != "" {
		c.Server.LogLevel = env.LogLevel
	}
	if env.AuthMode != "" {
		c.Server.AuthMode = env.AuthMode
	}
	if env.AuthURL != "" {
		c.Server.AuthURL = env.AuthURL
	}
	if env.JWTSecret != "" {
		c.Server.JWTSecret = env.JWTSecret
	}
	return nil
}

// Validate validates the server configuration
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Server.Port)
	}

	switch c.Server.AuthMode {
	case "token", "guest":
	case "http":
		if c.Server.AuthURL == "" {
			return fmt.Errorf("auth_mode http requires auth_url")
		}
	default:
		return fmt.Errorf("invalid auth mode: %s", c.Server.AuthMode)
	}
	if _, err := parseDuration(c.Server.TokenTTL); err != nil {
		return fmt.Errorf("token_ttl: %w", err)
	}

	base, err := c.RoomDefaults()
	if err != nil {
		return err
	}

	seen := make(map[string]bool)
	for _, rs := range c.Rooms {
		if seen[rs.Name] {
			return fmt.Errorf("room %s: duplicate name", rs.Name)
		}
		seen[rs.Name] = true

		rc, err := rs.Apply(base)
		if err != nil {
			return fmt.Errorf("room %s: %w", rs.Name, err)
		}
		if err := rc.Validate(); err != nil {
			return fmt.Errorf("room %s: %w", rs.Name, err)
		}
	}

	return nil
}

// GetServerAddress returns the full server address
func (c *Config) GetServerAddress() string {
	return fmt.Sprintf("%s:%d", c.Server.Address, c.Server.Port)
}

// TokenTTL returns the configured token lifetime, zero meaning the default.
func (c *Config) TokenTTL() time.Duration {
	d, _ := parseDuration(c.Server.TokenTTL)
	return d
}

// RoomDefaults returns the room configuration shared by every room, with
// the timers and equity blocks applied.
func (c *Config) RoomDefaults() (room.Config, error) {
	rc := room.DefaultConfig()

	if t := c.Timers; t != nil {
		timers := []struct {
			name  string
			value string
			dst   *time.Duration
		}{
			{"turn_timeout", t.TurnTimeout, &rc.TurnTimeout},
			{"negotiation_timeout", t.NegotiationTimeout, &rc.NegotiationTimeout},
			{"reconnect_grace", t.ReconnectGrace, &rc.ReconnectGrace},
			{"showdown_delay", t.ShowdownDelay, &rc.ShowdownDelay},
			{"next_hand_delay", t.NextHandDelay, &rc.NextHandDelay},
			{"street_delay", t.StreetDelay, &rc.StreetDelay},
			{"multi_run_delay", t.MultiRunDelay, &rc.MultiRunDelay},
		}
		for _, tm := range timers {
			if tm.value == "" {
				continue
			}
			d, err := parseDuration(tm.value)
			if err != nil {
				return rc, fmt.Errorf("timers.%s: %w", tm.name, err)
			}
			*tm.dst = d
		}
	}

	if eq := c.Equity; eq != nil {
		if eq.Trials > 0 {
			rc.EquityTrials = eq.Trials
		}
		if eq.DrawingDeadPercent > 0 {
			rc.DrawingDeadPercent = eq.DrawingDeadPercent
		}
		if eq.MaxRuns > 0 {
			rc.MaxRuns = eq.MaxRuns
		}
		policy, err := pot.ParseRemainderPolicy(eq.Remainder)
		if err != nil {
			return rc, fmt.Errorf("equity.remainder: %w", err)
		}
		rc.Remainder = policy
	}

	return rc, nil
}

// Apply overlays the settings onto base.
func (rs RoomSettings) Apply(base room.Config) (room.Config, error) {
	rc := base
	if rs.Name != "" {
		rc.Name = rs.Name
	}
	if rs.Mode != "" {
		mode, err := room.ParseMode(rs.Mode)
		if err != nil {
			return rc, err
		}
		rc.Mode = mode
	}
	if rs.MaxPlayers != 0 {
		rc.MaxPlayers = rs.MaxPlayers
	}
	if rs.SmallBlind != 0 || rs.BigBlind != 0 {
		rc.Blinds = room.BlindLevel{Level: 1, SmallBlind: rs.SmallBlind, BigBlind: rs.BigBlind}
		if rs.BuyInMin == 0 && rs.BuyInMax == 0 {
			rc.MinBuyIn = rs.BigBlind * 20
			rc.MaxBuyIn = rs.BigBlind * 100
		}
	}
	if rs.BuyInMin != 0 {
		rc.MinBuyIn = rs.BuyInMin
	}
	if rs.BuyInMax != 0 {
		rc.MaxBuyIn = rs.BuyInMax
	}
	if rs.StartingStack != 0 {
		rc.StartingStack = rs.StartingStack
	}
	if rs.Structure != "" {
		s, err := room.ParseStructure(rs.Structure)
		if err != nil {
			return rc, err
		}
		rc.Structure = s
	}
	if rs.LevelDuration != "" {
		d, err := parseDuration(rs.LevelDuration)
		if err != nil {
			return rc, fmt.Errorf("level_duration: %w", err)
		}
		rc.LevelDuration = d
	}
	return rc, nil
}

func parseDuration(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, fmt.Errorf("negative duration %s", s)
	}
	return d, nil
}
