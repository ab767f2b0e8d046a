package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/charmbracelet/log"
	"github.com/coder/quartz"

	"github.com/lox/pokerrooms/internal/auth"
	"github.com/lox/pokerrooms/internal/server"
)

var CLI struct {
	Config   string `short:"c" long:"config" default:"pokerrooms.hcl" help:"Path to HCL configuration file"`
	Addr     string `short:"a" long:"addr" help:"Server address to bind to (overrides config)"`
	Port     int    `short:"p" long:"port" help:"Port to listen on (overrides config)"`
	LogLevel string `short:"l" long:"log-level" help:"Log level (overrides config)"`
	Guest    bool   `long:"guest" help:"Accept any token as a guest name"`
}

func main() {
	ctx := kong.Parse(&CLI,
		kong.Name("pokerrooms"),
		kong.Description("Multi-room Texas Hold'em server"))

	cfg, err := server.LoadConfig(CLI.Config)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		ctx.Exit(1)
	}

	if CLI.Addr != "" {
		cfg.Server.Address = CLI.Addr
	}
	if CLI.Port != 0 {
		cfg.Server.Port = CLI.Port
	}
	if CLI.LogLevel != "" {
		cfg.Server.LogLevel = CLI.LogLevel
	}
	if CLI.Guest {
		cfg.Server.AuthMode = "guest"
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		ctx.Exit(1)
	}

	logger := log.NewWithOptions(os.Stderr, log.Options{ReportTimestamp: true})
	level, err := log.ParseLevel(cfg.Server.LogLevel)
	if err != nil {
		level = log.InfoLevel
	}
	logger.SetLevel(level)

	if err := run(cfg, logger); err != nil {
		logger.Error("Server failed", "error", err)
		ctx.Exit(1)
	}
}

func run(cfg *server.Config, logger *log.Logger) error {
	clock := quartz.NewReal()

	opts := server.Options{
		Addr:           cfg.GetServerAddress(),
		AllowedOrigins: cfg.Server.AllowedOrigins,
		Clock:          clock,
	}

	secret := cfg.Server.JWTSecret
	if secret == "" {
		secret = randomSecret()
		logger.Warn("No jwt_secret configured, tokens will not survive a restart")
	}
	tokens, err := auth.NewTokenIssuer(secret, cfg.TokenTTL(), clock)
	if err != nil {
		return err
	}
	opts.Users = auth.NewStore(0)
	opts.Tokens = tokens

	switch cfg.Server.AuthMode {
	case "guest":
		opts.Validator = auth.NewGuestValidator()
	case "http":
		opts.Validator = auth.NewHTTPValidator(cfg.Server.AuthURL, cfg.Server.AdminSecret)
	default:
		opts.Validator = tokens
	}

	base, err := cfg.RoomDefaults()
	if err != nil {
		return err
	}
	opts.RoomDefaults = base

	srv := server.NewServer(opts, logger)
	directory := server.NewDirectory(srv, logger, clock)
	srv.SetDirectory(directory)

	for _, rs := range cfg.Rooms {
		rc, err := rs.Apply(base)
		if err != nil {
			return fmt.Errorf("room %s: %w", rs.Name, err)
		}
		engine, err := directory.CreateRoom(rc)
		if err != nil {
			return err
		}
		logger.Info("Created room",
			"id", engine.ID(),
			"name", rc.Name,
			"mode", rc.Mode,
			"stakes", fmt.Sprintf("%d/%d", rc.Blinds.SmallBlind, rc.Blinds.BigBlind),
			"maxPlayers", rc.MaxPlayers)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("Starting poker rooms server", "addr", opts.Addr, "rooms", len(cfg.Rooms), "auth", cfg.Server.AuthMode)
	return srv.Start(ctx)
}

func randomSecret() string {
	buf := make([]byte, 32)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}
