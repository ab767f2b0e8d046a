package room

import (
	"slices"

	"github.com/lox/pokerrooms/internal/deck"
	"github.com/lox/pokerrooms/internal/evaluator"
	"github.com/lox/pokerrooms/internal/pot"
)

func (e *Engine) showdown() {
	st := e.state
	e.stopTurnTimer()
	st.Stage = Showdown
	st.Active = -1
	st.TurnExpiresAt = nil

	payouts, hands := e.payBoard(st.Board, st.pots())
	e.logger.Info("Showdown",
		"hand", st.HandID,
		"board", deck.FormatCards(st.Board),
		"pot", st.Pot,
		"winners", recipients(payouts))
	e.transport.Broadcast(e.id, BoardResultEvent{
		Board:    slices.Clone(st.Board),
		Winners:  recipients(payouts),
		Payments: payouts,
		Hands:    hands,
	})
	e.settle(e.cfg.ShowdownDelay)
}

// pots builds main and side pots from everything committed so far.
func (g *GameState) pots() []pot.Pot {
	contribs := make([]pot.Contribution, len(g.Players))
	for i, ps := range g.Players {
		contribs[i] = pot.Contribution{
			PlayerID: ps.PlayerID,
			Seat:     ps.Seat,
			Amount:   ps.Contribution + ps.CurrentBet,
			Folded:   ps.Folded,
		}
	}
	return pot.Build(contribs)
}

// payBoard evaluates every contender on board, pays pots and returns the
// payouts together with a description of each contender's hand.
func (e *Engine) payBoard(board []deck.Card, pots []pot.Pot) ([]pot.Payout, map[string]string) {
	st := e.state
	strengths := make(map[string]uint32)
	hands := make(map[string]string)
	stacks := make(map[string]int)
	for _, ps := range st.contenders() {
		stacks[ps.PlayerID] = ps.Stack
		h, err := evaluator.Evaluate(append(slices.Clone(ps.HoleCards), board...))
		if err != nil {
			e.logger.Error("Failed to evaluate hand", "player", ps.PlayerID, "error", err)
			continue
		}
		strengths[ps.PlayerID] = uint32(h.Score())
		hands[ps.PlayerID] = h.String()
	}

	settlement := pot.Settlement{
		Policy:    e.cfg.Remainder,
		SeatOrder: st.seatOrderFromButton(),
		Stacks:    stacks,
	}
	payouts := settlement.Distribute(pots, func(id string) uint32 { return strengths[id] })
	for _, p := range payouts {
		if _, ps := st.player(p.PlayerID); ps != nil {
			ps.Stack += p.Amount
		}
	}
	return payouts, hands
}

func payoutsFor(playerID string, amount int) []pot.Payout {
	return []pot.Payout{{PlayerID: playerID, Amount: amount}}
}

// recipients lists each paid player once, in payout order.
func recipients(payouts []pot.Payout) []string {
	var ids []string
	for _, p := range payouts {
		if !slices.Contains(ids, p.PlayerID) {
			ids = append(ids, p.PlayerID)
		}
	}
	return ids
}
