package room

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/lox/pokerrooms/internal/deck"
	"github.com/lox/pokerrooms/internal/evaluator"
	"github.com/lox/pokerrooms/internal/pot"
)

// runItState tracks a pending "run it multiple times" negotiation.
type runItState struct {
	underdog  string
	favorites []string
	maxRuns   int
	// runs is zero until the underdog has chosen.
	runs      int
	agreed    map[string]bool
	expiresAt time.Time
}

func (r *runItState) involves(userID string) bool {
	return r.underdog == userID || slices.Contains(r.favorites, userID)
}

// maxRuns is how many independent run outs the unseen cards can supply,
// capped at limit.
func maxRuns(contenders, board, limit int) int {
	need := 5 - board
	if need <= 0 {
		return 1
	}
	n := (52 - contenders*2 - board) / need
	if n > limit {
		n = limit
	}
	return max(n, 1)
}

// beginAllIn starts the run out once no more betting is possible. When more
// than one board could be dealt the trailing player is offered the choice.
func (e *Engine) beginAllIn() {
	st := e.state
	st.Reveal = true
	contenders := st.contenders()

	equities, err := e.equities(contenders, st.Board)
	if err != nil {
		e.logger.Error("Failed to compute equity", "hand", st.HandID, "error", err)
		e.runOut(1)
		return
	}
	e.broadcastState()
	e.broadcastEquity(contenders, st.Board, equities, nil)

	limit := maxRuns(len(contenders), len(st.Board), e.cfg.MaxRuns)
	if limit <= 1 {
		e.runOut(1)
		return
	}

	underdog := contenders[0]
	for _, c := range contenders[1:] {
		if equities[c.PlayerID] < equities[underdog.PlayerID] {
			underdog = c
		}
	}
	var favorites []string
	for _, c := range contenders {
		if c != underdog {
			favorites = append(favorites, c.PlayerID)
		}
	}

	e.phase = phaseNegotiating
	e.runIt = &runItState{
		underdog:  underdog.PlayerID,
		favorites: favorites,
		maxRuns:   limit,
		agreed:    make(map[string]bool),
	}
	expires := e.startOfferTimer()
	e.logger.Info("Offering multiple run outs", "hand", st.HandID, "underdog", underdog.PlayerID, "maxRuns", limit)
	e.transport.Send(e.id, underdog.PlayerID, RunOfferUnderdogEvent{
		MaxRuns:   limit,
		Equities:  equities,
		ExpiresAt: expires,
	})
}

func (e *Engine) chooseRuns(userID string, times int) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	r := e.runIt
	if e.phase != phaseNegotiating || r == nil || r.runs != 0 || r.underdog != userID {
		return ErrNoOffer
	}
	if times < 1 {
		return fmt.Errorf("%w: got %d", ErrInvalidRunCount, times)
	}
	times = min(times, r.maxRuns)
	if times == 1 {
		e.runOut(1)
		return nil
	}

	r.runs = times
	expires := e.startOfferTimer()
	e.logger.Info("Underdog asked for multiple runs", "hand", e.state.HandID, "runs", times)
	for _, id := range r.favorites {
		e.transport.Send(e.id, id, RunMultipleOfferEvent{UnderdogID: userID, Times: times, ExpiresAt: expires})
	}
	return nil
}

func (e *Engine) agreeRuns(userID string, agree bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	r := e.runIt
	if e.phase != phaseNegotiating || r == nil || r.runs == 0 || !slices.Contains(r.favorites, userID) {
		return ErrNoOffer
	}
	if !agree {
		e.logger.Info("Multiple runs declined", "hand", e.state.HandID, "player", userID)
		e.runOut(1)
		return nil
	}
	r.agreed[userID] = true
	if len(r.agreed) == len(r.favorites) {
		e.runOut(r.runs)
	}
	return nil
}

func (e *Engine) startOfferTimer() time.Time {
	e.stopOfferTimer()
	expires := e.clock.Now().Add(e.cfg.NegotiationTimeout)
	e.runIt.expiresAt = expires
	gen := e.offerGen
	e.offerTimer = e.clock.AfterFunc(e.cfg.NegotiationTimeout, func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		if e.closed || gen != e.offerGen || e.phase != phaseNegotiating {
			return
		}
		e.offerTimer = nil
		e.logger.Info("Run out negotiation timed out", "hand", e.state.HandID)
		e.runOut(1)
	})
	return expires
}

func (e *Engine) stopOfferTimer() {
	if e.offerTimer != nil {
		e.offerTimer.Stop()
		e.offerTimer = nil
	}
	e.offerGen++
}

// runOut deals the remaining board runs times and pays each run an equal
// share of every pot. Chips that do not divide go to the eligible player
// with the largest stack.
func (e *Engine) runOut(runs int) {
	e.stopOfferTimer()
	e.runIt = nil
	e.phase = phaseRunning

	st := e.state
	st.Reveal = true
	st.Runs = runs
	contenders := st.contenders()
	base := slices.Clone(st.Board)
	baseStage := st.Stage
	pots := st.pots()
	stacks := make([]int, len(st.Players))
	for i, ps := range st.Players {
		stacks[i] = ps.Stack
	}

	source := e.deck
	if runs > 1 {
		excluded := [][]deck.Card{base}
		for _, c := range contenders {
			excluded = append(excluded, c.HoleCards)
		}
		source = deck.NewDeckWithout(e.rng, excluded...)
		source.Shuffle()
	}

	shares := make([]pot.Pot, len(pots))
	for i, p := range pots {
		shares[i] = pot.Pot{Amount: p.Amount / runs, Eligible: p.Eligible}
	}

	e.logger.Info("Running out the board", "hand", st.HandID, "runs", runs, "board", deck.FormatCards(base))

	var steps []func() bool
	for r := 0; r < runs; r++ {
		steps = append(steps, func() bool {
			idx := r
			st.RunIndex = &idx
			st.Board = slices.Clone(base)
			st.Stage = baseStage
			if runs > 1 {
				e.transport.Broadcast(e.id, StartBoardRunEvent{RunIndex: r, TotalRuns: runs})
			}
			e.broadcastState()
			return true
		})
		for street := len(base); street < 5; street = nextStreetSize(street) {
			steps = append(steps, func() bool {
				if err := e.dealStreet(source); err != nil {
					e.logger.Error("Run out deck exhausted", "hand", st.HandID, "run", r, "error", err)
					// undo earlier runs' payouts before refunding the hand
					for i, ps := range st.Players {
						ps.Stack = stacks[i]
					}
					e.abortHand()
					return false
				}
				e.broadcastState()
				if len(st.Board) < 5 {
					idx := r
					if equities, err := e.equities(contenders, st.Board); err == nil {
						e.broadcastEquity(contenders, st.Board, equities, &idx)
					}
				}
				return true
			})
		}
		steps = append(steps, func() bool {
			st.Stage = Showdown
			payouts, hands := e.payBoard(st.Board, shares)
			e.transport.Broadcast(e.id, BoardResultEvent{
				RunIndex: r,
				Board:    slices.Clone(st.Board),
				Winners:  recipients(payouts),
				Payments: payouts,
				Hands:    hands,
			})
			e.broadcastState()
			return true
		})
	}

	delay := e.cfg.ShowdownDelay
	if runs > 1 {
		delay = e.cfg.MultiRunDelay
	}
	e.runSequence(steps, e.cfg.StreetDelay, func() {
		e.sweepRemainders(pots, runs)
		e.settle(delay)
	})
}

func nextStreetSize(n int) int {
	if n == 0 {
		return 3
	}
	return n + 1
}

// sweepRemainders pays what integer division left in each pot.
func (e *Engine) sweepRemainders(pots []pot.Pot, runs int) {
	st := e.state
	stacks := make(map[string]int)
	for _, ps := range st.Players {
		stacks[ps.PlayerID] = ps.Stack
	}
	settlement := pot.Settlement{
		Policy:    pot.RemainderLargestStack,
		SeatOrder: st.seatOrderFromButton(),
		Stacks:    stacks,
	}
	for _, p := range pots {
		rest := p.Amount % runs
		if rest == 0 {
			continue
		}
		id := settlement.Recipient(p.Eligible)
		if _, ps := st.player(id); ps != nil {
			ps.Stack += rest
			e.logger.Debug("Swept run out remainder", "player", id, "chips", rest)
		}
	}
}

func (e *Engine) equities(contenders []*PlayerState, board []deck.Card) (map[string]float64, error) {
	hands := make([][]deck.Card, len(contenders))
	for i, c := range contenders {
		hands[i] = c.HoleCards
	}
	res, err := evaluator.Equity(context.Background(), hands, board, evaluator.EquityOptions{
		Trials: e.cfg.EquityTrials,
		Rand:   e.rng,
	})
	if err != nil {
		return nil, err
	}
	out := make(map[string]float64, len(contenders))
	for i, c := range contenders {
		out[c.PlayerID] = res.Percent[i]
	}
	return out, nil
}

// broadcastEquity publishes equities together with the outs of every
// player trailing the leader.
func (e *Engine) broadcastEquity(contenders []*PlayerState, board []deck.Card, equities map[string]float64, runIndex *int) {
	leader := contenders[0]
	for _, c := range contenders[1:] {
		if equities[c.PlayerID] > equities[leader.PlayerID] {
			leader = c
		}
	}

	outs := make(map[string]evaluator.Outs)
	for _, c := range contenders {
		if c == leader {
			continue
		}
		var opponents [][]deck.Card
		for _, o := range contenders {
			if o != c {
				opponents = append(opponents, o.HoleCards)
			}
		}
		o, err := evaluator.FindOuts(c.HoleCards, opponents, board, equities[c.PlayerID], e.cfg.DrawingDeadPercent)
		if err != nil {
			e.logger.Warn("Failed to find outs", "player", c.PlayerID, "error", err)
			continue
		}
		if o.Kind != evaluator.OutsNone {
			outs[c.PlayerID] = o
		}
	}

	e.transport.Broadcast(e.id, EquityUpdateEvent{Equities: equities, Outs: outs, RunIndex: runIndex})
}
