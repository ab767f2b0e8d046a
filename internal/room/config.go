package room

import (
	"fmt"
	"time"

	"github.com/lox/pokerrooms/internal/evaluator"
	"github.com/lox/pokerrooms/internal/pot"
)

// Config holds the rules and clocks of one room.
type Config struct {
	Name       string
	Mode       Mode
	MaxPlayers int
	MinBuyIn   int
	MaxBuyIn   int
	// StartingStack replaces the buy-in in tournaments.
	StartingStack int
	// Blinds apply to cash rooms.
	Blinds        BlindLevel
	Structure     Structure
	LevelDuration time.Duration

	TurnTimeout        time.Duration
	NegotiationTimeout time.Duration
	ReconnectGrace     time.Duration
	ShowdownDelay      time.Duration
	NextHandDelay      time.Duration
	StreetDelay        time.Duration
	MultiRunDelay      time.Duration

	MaxRuns            int
	MissedTurnLimit    int
	EquityTrials       int
	DrawingDeadPercent float64
	Remainder          pot.RemainderPolicy
}

// DefaultConfig returns a nine-seat cash room at 10/20.
func DefaultConfig() Config {
	return Config{
		Name:               "Table",
		Mode:               Cash,
		MaxPlayers:         9,
		MinBuyIn:           400,
		MaxBuyIn:           2000,
		StartingStack:      1500,
		Blinds:             CashBlinds,
		Structure:          Standard,
		LevelDuration:      DefaultLevelDuration,
		TurnTimeout:        30 * time.Second,
		NegotiationTimeout: 15 * time.Second,
		ReconnectGrace:     30 * time.Second,
		ShowdownDelay:      8 * time.Second,
		NextHandDelay:      3 * time.Second,
		StreetDelay:        3 * time.Second,
		MultiRunDelay:      10 * time.Second,
		MaxRuns:            3,
		MissedTurnLimit:    3,
		EquityTrials:       evaluator.DefaultTrials,
		DrawingDeadPercent: evaluator.DefaultDrawingDeadPercent,
	}
}

// Validate checks the configuration for errors
func (c Config) Validate() error {
	if c.MaxPlayers < 2 || c.MaxPlayers > 10 {
		return fmt.Errorf("max players must be between 2 and 10, got %d", c.MaxPlayers)
	}
	if c.Mode == Cash {
		if c.MinBuyIn <= 0 || c.MaxBuyIn < c.MinBuyIn {
			return fmt.Errorf("invalid buy-in range [%d, %d]", c.MinBuyIn, c.MaxBuyIn)
		}
		if c.Blinds.SmallBlind <= 0 || c.Blinds.BigBlind < c.Blinds.SmallBlind {
			return fmt.Errorf("invalid blinds %d/%d", c.Blinds.SmallBlind, c.Blinds.BigBlind)
		}
	}
	if c.Mode == Tournament {
		if c.StartingStack <= 0 {
			return fmt.Errorf("starting stack must be positive")
		}
		if _, err := Levels(c.Structure); err != nil {
			return err
		}
	}
	if c.TurnTimeout < 0 || c.NegotiationTimeout <= 0 || c.ReconnectGrace < 0 {
		return fmt.Errorf("timeouts must not be negative and negotiation timeout must be positive")
	}
	if c.MaxRuns < 1 {
		return fmt.Errorf("max runs must be at least 1")
	}
	if c.MissedTurnLimit < 1 {
		return fmt.Errorf("missed turn limit must be at least 1")
	}
	return nil
}
