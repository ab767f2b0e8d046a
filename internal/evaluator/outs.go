package evaluator

import (
	"fmt"

	"github.com/lox/pokerrooms/internal/deck"
)

// DefaultDrawingDeadPercent is the equity at or below which a hand with no
// outs is reported as drawing dead.
const DefaultDrawingDeadPercent = 1.0

// OutsKind classifies a trailing hand's chances.
type OutsKind int

const (
	// OutsNone means no classification applies (no cards to come, or the
	// hand survives only through ties).
	OutsNone OutsKind = iota
	OutsDirect
	OutsRunnerRunner
	OutsDrawingDead
)

func (k OutsKind) String() string {
	switch k {
	case OutsDirect:
		return "direct"
	case OutsRunnerRunner:
		return "runner_runner"
	case OutsDrawingDead:
		return "drawing_dead"
	default:
		return "none"
	}
}

// MarshalText encodes the kind for the wire.
func (k OutsKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Outs is the result of an exact outs search.
type Outs struct {
	Kind  OutsKind    `json:"kind"`
	Cards []deck.Card `json:"cards,omitempty"`
}

// FindOuts searches the unseen deck exhaustively for cards that let hand
// beat every opponent. equityPercent is the hand's current equity and
// deadPercent the drawing dead threshold (DefaultDrawingDeadPercent if
// not positive).
func FindOuts(hand []deck.Card, opponents [][]deck.Card, board []deck.Card, equityPercent, deadPercent float64) (Outs, error) {
	if len(opponents) == 0 {
		return Outs{}, ErrTooFewHands
	}
	if err := validateEquityInput(append([][]deck.Card{hand}, opponents...), board); err != nil {
		return Outs{}, err
	}
	if deadPercent <= 0 {
		deadPercent = DefaultDrawingDeadPercent
	}

	dead := func() Outs {
		if equityPercent <= deadPercent {
			return Outs{Kind: OutsDrawingDead}
		}
		return Outs{Kind: OutsNone}
	}

	// outs are only defined once the flop is out and a card is still to come
	if len(board) < 3 || len(board) >= 5 {
		return dead(), nil
	}

	remaining := deck.Without(append([][]deck.Card{hand, board}, opponents...)...)

	var direct []deck.Card
	for _, c := range remaining {
		if winsOnBoard(hand, opponents, board, c) {
			direct = append(direct, c)
		}
	}
	if len(direct) > 0 {
		return Outs{Kind: OutsDirect, Cards: direct}, nil
	}

	if len(board) == 3 {
		for i, first := range remaining {
			for _, second := range remaining[i+1:] {
				if winsOnBoard(hand, opponents, board, first, second) {
					return Outs{Kind: OutsRunnerRunner}, nil
				}
			}
		}
	}

	return dead(), nil
}

func winsOnBoard(hand []deck.Card, opponents [][]deck.Card, board []deck.Card, extra ...deck.Card) bool {
	full := make([]deck.Card, 0, 7)
	full = append(full, board...)
	full = append(full, extra...)

	mine := bestScore(append(append([]deck.Card(nil), hand...), full...))
	for _, opp := range opponents {
		if bestScore(append(append([]deck.Card(nil), opp...), full...)) >= mine {
			return false
		}
	}
	return true
}

// String renders the outs for logs and the odds tool.
func (o Outs) String() string {
	if o.Kind != OutsDirect {
		return o.Kind.String()
	}
	return fmt.Sprintf("%d outs: %s", len(o.Cards), deck.FormatCards(o.Cards))
}
