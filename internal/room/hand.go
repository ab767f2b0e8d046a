package room

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/lox/pokerrooms/internal/deck"
)

type actionKind int

const (
	actFold actionKind = iota
	actCheck
	actCall
	actBet
)

// startHand deals the next hand, or ends the session when fewer than two
// players can play.
func (e *Engine) startHand() {
	e.stopTurnTimer()
	e.demoteAbsent()

	var eligible []*Player
	for _, p := range e.seated() {
		if p.Stack > 0 {
			eligible = append(eligible, p)
		}
	}
	if len(eligible) < 2 {
		e.endSession(eligible)
		return
	}

	dealer := 0
	for i, p := range eligible {
		if p.Seat > e.button {
			dealer = i
			break
		}
	}
	e.button = eligible[dealer].Seat

	blinds := e.currentBlinds()
	st := &GameState{
		HandID:        uuid.NewString(),
		Stage:         PreFlop,
		Dealer:        dealer,
		Active:        -1,
		LastAggressor: -1,
		Blinds:        blinds,
	}
	for _, p := range eligible {
		p.Status = InHand
		st.Players = append(st.Players, &PlayerState{PlayerID: p.ID, Name: p.Name, Seat: p.Seat, Stack: p.Stack})
	}
	e.state = st
	e.phase = phaseBetting
	e.runIt = nil
	e.deck = e.newDeck()

	n := len(st.Players)
	if blinds.Ante > 0 {
		for _, ps := range st.Players {
			amount := min(ps.Stack, blinds.Ante)
			ps.Stack -= amount
			ps.Contribution += amount
			st.Pot += amount
			if ps.Stack == 0 {
				ps.AllIn = true
			}
		}
	}

	sb, bb, first := (dealer+1)%n, (dealer+2)%n, (dealer+3)%n
	if n == 2 {
		sb, bb, first = dealer, (dealer+1)%n, dealer
	}
	e.post(st.Players[sb], blinds.SmallBlind)
	st.Players[sb].LastAction = "small_blind"
	e.post(st.Players[bb], blinds.BigBlind)
	st.Players[bb].LastAction = "big_blind"
	st.AmountToCall = blinds.BigBlind
	st.LastRaise = blinds.BigBlind

	for i := 1; i <= n; i++ {
		ps := st.Players[(dealer+i)%n]
		cards, err := e.deck.Deal(2)
		if err != nil {
			e.logger.Error("Failed to deal hole cards", "hand", st.HandID, "error", err)
			e.abortHand()
			return
		}
		ps.HoleCards = cards
	}

	e.logger.Info("Hand started",
		"hand", st.HandID,
		"players", n,
		"dealer", st.Players[dealer].PlayerID,
		"blinds", fmt.Sprintf("%d/%d", blinds.SmallBlind, blinds.BigBlind))

	e.progress(first)
}

// demoteAbsent returns players who missed too many turns in a row to the
// rail.
func (e *Engine) demoteAbsent() {
	for _, id := range e.joinOrder {
		p := e.members[id]
		if p.Status == Spectating || p.MissedTurns < e.cfg.MissedTurnLimit {
			continue
		}
		e.logger.Info("Moving inactive player to spectators", "player", id, "missed", p.MissedTurns)
		p.Status = Spectating
		p.Seat = -1
		p.Ready = false
		p.MissedTurns = 0
		e.transport.Broadcast(e.id, PlayerStatusEvent{PlayerID: id, Status: p.Status, Seat: p.Seat, Stack: p.Stack})
	}
}

func (e *Engine) endSession(remaining []*Player) {
	e.running = false
	e.phase = phaseIdle
	e.stopBlindClock()

	if e.cfg.Mode == Tournament && len(remaining) == 1 {
		w := remaining[0]
		e.logger.Info("Tournament won", "player", w.ID, "stack", w.Stack)
		e.transport.Broadcast(e.id, TournamentWinnerEvent{PlayerID: w.ID, Name: w.Name, Stack: w.Stack})
	} else {
		e.logger.Info("Session paused", "players", len(remaining))
	}

	for _, p := range e.members {
		if p.Status == InHand {
			p.Status = SittingOut
		}
		p.Ready = false
	}
	e.broadcastState()
}

// post moves up to amount from the player's stack into their street bet.
func (e *Engine) post(ps *PlayerState, amount int) int {
	amount = min(ps.Stack, amount)
	ps.Stack -= amount
	ps.CurrentBet += amount
	e.state.Pot += amount
	if ps.Stack == 0 {
		ps.AllIn = true
	}
	return amount
}

func (e *Engine) act(userID string, kind actionKind, amount int) error {
	if !e.inFlight.CompareAndSwap(false, true) {
		return ErrActionInFlight
	}
	defer e.inFlight.Store(false)

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return ErrClosed
	}
	if e.phase != phaseBetting {
		return ErrInvalidStage
	}
	idx, ps := e.state.player(userID)
	if ps == nil || idx != e.state.Active {
		return ErrNotYourTurn
	}

	if err := e.apply(idx, kind, amount); err != nil {
		return err
	}
	if m := e.members[userID]; m != nil {
		m.MissedTurns = 0
	}
	e.stopTurnTimer()

	e.logger.Debug("Player acted",
		"hand", e.state.HandID,
		"player", userID,
		"action", ps.LastAction,
		"bet", ps.CurrentBet,
		"pot", e.state.Pot)

	e.progress(idx + 1)
	return nil
}

// apply validates and applies one action for the seat at idx.
func (e *Engine) apply(idx int, kind actionKind, amount int) error {
	st := e.state
	ps := st.Players[idx]

	switch kind {
	case actFold:
		ps.Folded = true
		ps.LastAction = "fold"
	case actCheck:
		if ps.CurrentBet < st.AmountToCall {
			return fmt.Errorf("%w: %d to call", ErrIllegalCheck, st.AmountToCall-ps.CurrentBet)
		}
		ps.LastAction = "check"
	case actCall:
		if ps.CurrentBet >= st.AmountToCall {
			ps.LastAction = "check"
			break
		}
		e.post(ps, st.AmountToCall-ps.CurrentBet)
		ps.LastAction = "call"
		if ps.AllIn {
			ps.LastAction = "all_in"
		}
	case actBet:
		if err := e.bet(idx, amount); err != nil {
			return err
		}
	}
	ps.HasActed = true
	return nil
}

// bet handles a bet or raise to a street total of amount. Only a full raise
// resets the other players' turns and the minimum raise size.
func (e *Engine) bet(idx, amount int) error {
	st := e.state
	ps := st.Players[idx]

	available := ps.Stack + ps.CurrentBet
	if amount > available {
		return fmt.Errorf("%w: %d with %d available", ErrBetExceedsStack, amount, available)
	}
	allIn := amount == available
	if amount <= 0 || (amount < st.AmountToCall && !allIn) {
		return fmt.Errorf("%w: %d to call %d", ErrBetTooSmall, amount, st.AmountToCall)
	}

	if amount <= st.AmountToCall {
		e.post(ps, amount-ps.CurrentBet)
		ps.LastAction = "call"
		if ps.AllIn {
			ps.LastAction = "all_in"
		}
		return nil
	}

	// Only a full raise reopens the betting to a player who has acted.
	if ps.HasActed {
		return fmt.Errorf("%w: action was not reopened, call or fold", ErrRaiseTooSmall)
	}
	raise := amount - st.AmountToCall
	if raise < st.LastRaise && !allIn {
		return fmt.Errorf("%w: raise of %d, minimum %d", ErrRaiseTooSmall, raise, st.LastRaise)
	}

	opening := st.AmountToCall == 0
	e.post(ps, amount-ps.CurrentBet)
	if raise >= st.LastRaise {
		st.LastRaise = raise
		st.LastAggressor = idx
		for _, other := range st.Players {
			if other != ps && other.canAct() {
				other.HasActed = false
			}
		}
	}
	st.AmountToCall = amount

	switch {
	case ps.AllIn:
		ps.LastAction = "all_in"
	case opening:
		ps.LastAction = "bet"
	default:
		ps.LastAction = "raise"
	}
	return nil
}

// progress hands the turn to the next seat from `from` that owes a
// decision, or closes the street when none does.
func (e *Engine) progress(from int) {
	st := e.state
	if len(st.contenders()) <= 1 {
		e.awardUncontested()
		return
	}

	able := st.ableToAct()
	n := len(st.Players)
	for i := 0; i < n; i++ {
		idx := (from + i) % n
		if st.owesDecision(st.Players[idx], able) {
			e.setActive(idx)
			e.broadcastState()
			return
		}
	}
	e.closeStreet()
}

// closeStreet sweeps street bets into contributions and moves the hand on.
func (e *Engine) closeStreet() {
	st := e.state
	e.stopTurnTimer()
	if st.Pot != st.committed() {
		e.logger.Error("Pot out of balance", "hand", st.HandID, "pot", st.Pot, "committed", st.committed())
	}
	st.Active = -1
	st.TurnExpiresAt = nil
	for _, ps := range st.Players {
		ps.Contribution += ps.CurrentBet
		ps.CurrentBet = 0
		ps.HasActed = false
	}
	st.AmountToCall = 0
	st.LastRaise = st.Blinds.BigBlind
	st.LastAggressor = -1

	switch {
	case st.Stage == River:
		e.showdown()
	case st.ableToAct() < 2:
		e.beginAllIn()
	default:
		if err := e.dealStreet(e.deck); err != nil {
			e.logger.Error("Failed to deal street", "hand", st.HandID, "error", err)
			e.abortHand()
			return
		}
		e.progress(st.Dealer + 1)
	}
}

// dealStreet deals the next street from d onto the board.
func (e *Engine) dealStreet(d *deck.Deck) error {
	st := e.state
	n := 1
	if len(st.Board) == 0 {
		n = 3
	}
	cards, err := d.Deal(n)
	if err != nil {
		return err
	}
	st.Board = append(st.Board, cards...)
	st.Stage = stageForBoard(len(st.Board))
	e.logger.Debug("Dealt street", "hand", st.HandID, "stage", st.Stage, "board", deck.FormatCards(st.Board))
	return nil
}

func stageForBoard(n int) Stage {
	switch {
	case n >= 5:
		return River
	case n == 4:
		return Turn
	case n == 3:
		return Flop
	default:
		return PreFlop
	}
}

func (e *Engine) setActive(idx int) {
	st := e.state
	e.stopTurnTimer()
	st.Active = idx
	st.TurnExpiresAt = nil
	if e.cfg.TurnTimeout <= 0 {
		return
	}

	expires := e.clock.Now().Add(e.cfg.TurnTimeout)
	st.TurnExpiresAt = &expires
	gen, playerID := e.turnGen, st.Players[idx].PlayerID
	e.turnTimer = e.clock.AfterFunc(e.cfg.TurnTimeout, func() {
		e.onTurnTimeout(gen, playerID)
	})
}

func (e *Engine) stopTurnTimer() {
	if e.turnTimer != nil {
		e.turnTimer.Stop()
		e.turnTimer = nil
	}
	e.turnGen++
}

// onTurnTimeout checks for the absent player when that is free and folds
// them otherwise.
func (e *Engine) onTurnTimeout(gen uint64, playerID string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed || gen != e.turnGen || e.phase != phaseBetting {
		return
	}
	idx, ps := e.state.player(playerID)
	if ps == nil || idx != e.state.Active {
		return
	}
	e.turnTimer = nil

	if m := e.members[playerID]; m != nil {
		m.MissedTurns++
	}
	kind := actFold
	if ps.CurrentBet >= e.state.AmountToCall {
		kind = actCheck
	}
	_ = e.apply(idx, kind, 0)
	e.logger.Info("Turn timed out", "hand", e.state.HandID, "player", playerID, "action", ps.LastAction)

	e.progress(idx + 1)
}

// awardUncontested pays the whole pot to the last player standing.
func (e *Engine) awardUncontested() {
	st := e.state
	e.stopTurnTimer()
	st.Active = -1
	st.TurnExpiresAt = nil
	for _, ps := range st.Players {
		ps.Contribution += ps.CurrentBet
		ps.CurrentBet = 0
	}

	winner := st.contenders()[0]
	winner.Stack += st.Pot
	e.logger.Info("Hand won uncontested", "hand", st.HandID, "player", winner.PlayerID, "pot", st.Pot)
	e.transport.Broadcast(e.id, BoardResultEvent{
		Board:    append([]deck.Card(nil), st.Board...),
		Winners:  []string{winner.PlayerID},
		Payments: payoutsFor(winner.PlayerID, st.Pot),
	})
	e.settle(e.cfg.NextHandDelay)
}

// abortHand refunds every chip committed to the hand.
func (e *Engine) abortHand() {
	st := e.state
	e.stopTurnTimer()
	for _, ps := range st.Players {
		ps.Stack += ps.Contribution + ps.CurrentBet
		ps.Contribution, ps.CurrentBet = 0, 0
	}
	st.Pot = 0
	st.Active = -1
	e.logger.Warn("Hand aborted, bets returned", "hand", st.HandID)
	e.settle(e.cfg.NextHandDelay)
}

// settle copies hand stacks back to the players and queues the next hand.
func (e *Engine) settle(delay time.Duration) {
	st := e.state
	e.phase = phaseSettled
	st.RunIndex = nil

	for _, ps := range st.Players {
		p, ok := e.members[ps.PlayerID]
		if !ok {
			continue
		}
		p.Stack = ps.Stack
		if p.Stack > 0 || p.Status != InHand {
			continue
		}
		if e.cfg.Mode == Tournament {
			p.Status = Spectating
			p.Seat = -1
		} else {
			p.Status = SittingOut
		}
		p.Ready = false
		e.logger.Info("Player busted", "player", p.ID)
		e.transport.Broadcast(e.id, PlayerStatusEvent{PlayerID: p.ID, Status: p.Status, Seat: p.Seat, Stack: 0})
	}

	e.broadcastState()
	e.schedule(delay, e.startHand)
}
