package room

import (
	"fmt"
	"time"

	"github.com/lox/pokerrooms/internal/deck"
)

// Stage is the betting round of a hand.
type Stage int

const (
	PreFlop Stage = iota
	Flop
	Turn
	River
	Showdown
)

func (s Stage) String() string {
	switch s {
	case PreFlop:
		return "PRE_FLOP"
	case Flop:
		return "FLOP"
	case Turn:
		return "TURN"
	case River:
		return "RIVER"
	case Showdown:
		return "SHOWDOWN"
	default:
		return "UNKNOWN"
	}
}

// MarshalText encodes the stage for the wire.
func (s Stage) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Stage) UnmarshalText(text []byte) error {
	for st := PreFlop; st <= Showdown; st++ {
		if st.String() == string(text) {
			*s = st
			return nil
		}
	}
	return fmt.Errorf("unknown stage %q", text)
}

// PlayerStatus is a room member's seat state.
type PlayerStatus int

const (
	Spectating PlayerStatus = iota
	SittingOut
	InHand
)

func (s PlayerStatus) String() string {
	switch s {
	case SittingOut:
		return "SITTING_OUT"
	case InHand:
		return "IN_HAND"
	default:
		return "SPECTATING"
	}
}

// MarshalText encodes the status for the wire.
func (s PlayerStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *PlayerStatus) UnmarshalText(text []byte) error {
	for _, st := range []PlayerStatus{Spectating, SittingOut, InHand} {
		if st.String() == string(text) {
			*s = st
			return nil
		}
	}
	return fmt.Errorf("unknown player status %q", text)
}

// Mode selects cash or tournament play.
type Mode int

const (
	Cash Mode = iota
	Tournament
)

func (m Mode) String() string {
	if m == Tournament {
		return "tournament"
	}
	return "cash"
}

// MarshalText encodes the mode for the wire.
func (m Mode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

func (m *Mode) UnmarshalText(text []byte) error {
	mode, err := ParseMode(string(text))
	if err != nil {
		return err
	}
	*m = mode
	return nil
}

// ParseMode maps a config or request value to a Mode.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "", "cash":
		return Cash, nil
	case "tournament":
		return Tournament, nil
	default:
		return 0, fmt.Errorf("unknown game mode %q", s)
	}
}

// Player is a member of a room. Stack is authoritative between hands;
// during a hand the hand's PlayerState carries the live stack.
type Player struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	Seat        int          `json:"seat"`
	Stack       int          `json:"stack"`
	Status      PlayerStatus `json:"status"`
	Ready       bool         `json:"ready"`
	Connected   bool         `json:"connected"`
	MissedTurns int          `json:"missedTurns"`
}

// PlayerState is a player's view inside one hand.
type PlayerState struct {
	PlayerID     string      `json:"playerId"`
	Name         string      `json:"name"`
	Seat         int         `json:"seat"`
	Stack        int         `json:"stack"`
	HoleCards    []deck.Card `json:"holeCards,omitempty"`
	CurrentBet   int         `json:"currentBet"`
	Contribution int         `json:"contribution"`
	Folded       bool        `json:"folded"`
	AllIn        bool        `json:"allIn"`
	HasActed     bool        `json:"hasActed"`
	LastAction   string      `json:"lastAction,omitempty"`
}

// canAct reports whether the player still has betting decisions.
func (p *PlayerState) canAct() bool {
	return !p.Folded && !p.AllIn
}

// GameState is the state of the hand in progress (or the last one played).
// Pot always equals the sum of Contribution and CurrentBet over Players.
type GameState struct {
	HandID        string         `json:"handId"`
	Stage         Stage          `json:"stage"`
	Board         []deck.Card    `json:"board"`
	Players       []*PlayerState `json:"players"`
	Dealer        int            `json:"dealer"`
	Active        int            `json:"active"`
	Pot           int            `json:"pot"`
	AmountToCall  int            `json:"amountToCall"`
	LastRaise     int            `json:"lastRaise"`
	LastAggressor int            `json:"lastAggressor"`
	Blinds        BlindLevel     `json:"blinds"`
	RunIndex      *int           `json:"runIndex,omitempty"`
	Runs          int            `json:"runs,omitempty"`
	Reveal        bool           `json:"reveal"`
	TurnExpiresAt *time.Time     `json:"turnExpiresAt,omitempty"`
}

func (g *GameState) player(id string) (int, *PlayerState) {
	for i, p := range g.Players {
		if p.PlayerID == id {
			return i, p
		}
	}
	return -1, nil
}

// contenders returns the players who have not folded, in seat order.
func (g *GameState) contenders() []*PlayerState {
	var out []*PlayerState
	for _, p := range g.Players {
		if !p.Folded {
			out = append(out, p)
		}
	}
	return out
}

func (g *GameState) ableToAct() int {
	n := 0
	for _, p := range g.Players {
		if p.canAct() {
			n++
		}
	}
	return n
}

// owesDecision reports whether ps must still act on this street, given
// how many players are able to act.
func (g *GameState) owesDecision(ps *PlayerState, able int) bool {
	if !ps.canAct() {
		return false
	}
	return ps.CurrentBet < g.AmountToCall || (able >= 2 && !ps.HasActed)
}

// committed is the sum the pot must equal.
func (g *GameState) committed() int {
	total := 0
	for _, p := range g.Players {
		total += p.Contribution + p.CurrentBet
	}
	return total
}

// seatOrderFromButton lists player ids starting left of the dealer.
func (g *GameState) seatOrderFromButton() []string {
	n := len(g.Players)
	ids := make([]string, 0, n)
	for i := 1; i <= n; i++ {
		ids = append(ids, g.Players[(g.Dealer+i)%n].PlayerID)
	}
	return ids
}

// clone deep-copies the state so it can leave the room's lock.
func (g *GameState) clone() *GameState {
	if g == nil {
		return nil
	}
	out := *g
	out.Board = append([]deck.Card(nil), g.Board...)
	out.Players = make([]*PlayerState, len(g.Players))
	for i, p := range g.Players {
		cp := *p
		cp.HoleCards = append([]deck.Card(nil), p.HoleCards...)
		out.Players[i] = &cp
	}
	if g.RunIndex != nil {
		idx := *g.RunIndex
		out.RunIndex = &idx
	}
	if g.TurnExpiresAt != nil {
		at := *g.TurnExpiresAt
		out.TurnExpiresAt = &at
	}
	return &out
}
