// Package room runs one poker table: membership, the betting state
// machine, showdowns and all-in run outs.
//
// An Engine owns all of a room's mutable state. Every entry point takes the
// room lock, and betting actions additionally pass an in-flight gate so at
// most one is applied at a time; a second concurrent action is dropped with
// ErrActionInFlight. Timers run on an injected quartz.Clock and carry a
// generation token, so a timer that fires after being superseded does
// nothing. Events leave through a Transport that must never block.
package room

import (
	"errors"
	"fmt"
	rand "math/rand/v2"
	"slices"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"

	"github.com/lox/pokerrooms/internal/deck"
	"github.com/lox/pokerrooms/internal/randutil"
)

// Transport delivers events to room members. Implementations must return
// without waiting on slow receivers.
type Transport interface {
	Send(roomID, userID string, ev Event)
	Broadcast(roomID string, ev Event)
}

type phase int

const (
	phaseIdle phase = iota
	phaseBetting
	phaseNegotiating
	phaseRunning
	phaseSettled
)

// Option customises an Engine.
type Option func(*Engine)

// WithRand sets the generator used for shuffles and equity seeds.
func WithRand(rng *rand.Rand) Option {
	return func(e *Engine) { e.rng = rng }
}

// WithDeck replaces the per-hand deck source. The returned deck is dealt
// as is, without shuffling.
func WithDeck(fn func() *deck.Deck) Option {
	return func(e *Engine) { e.newDeck = fn }
}

type graceTimer struct {
	timer *quartz.Timer
	gen   uint64
}

// Summary describes a room for lobby listings.
type Summary struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	Mode       Mode       `json:"mode"`
	Members    int        `json:"members"`
	Seated     int        `json:"seated"`
	MaxPlayers int        `json:"maxPlayers"`
	Running    bool       `json:"running"`
	Blinds     BlindLevel `json:"blinds"`
}

// Engine is the authoritative state machine of one room.
type Engine struct {
	id        string
	cfg       Config
	transport Transport
	logger    *log.Logger
	clock     quartz.Clock
	rng       *rand.Rand
	newDeck   func() *deck.Deck
	levels    []BlindLevel

	inFlight atomic.Bool

	mu          sync.Mutex
	closed      bool
	members     map[string]*Player
	joinOrder   []string
	running     bool
	phase       phase
	state       *GameState
	deck        *deck.Deck
	button      int
	level       int
	nextLevelAt *time.Time
	runIt       *runItState

	turnTimer  *quartz.Timer
	turnGen    uint64
	blindTimer *quartz.Timer
	blindGen   uint64
	offerTimer *quartz.Timer
	offerGen   uint64
	pending    *quartz.Timer
	pendingGen uint64
	grace      map[string]graceTimer
	graceSeq   uint64
}

// New creates an idle room.
func New(id string, cfg Config, transport Transport, logger *log.Logger, clock quartz.Clock, opts ...Option) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("room %s: %w", id, err)
	}

	levels := []BlindLevel{cfg.Blinds}
	if cfg.Mode == Tournament {
		var err error
		if levels, err = Levels(cfg.Structure); err != nil {
			return nil, err
		}
	}

	e := &Engine{
		id:        id,
		cfg:       cfg,
		transport: transport,
		logger:    logger.WithPrefix("room").With("room", id),
		clock:     clock,
		rng:       randutil.NewSecure(),
		levels:    levels,
		members:   make(map[string]*Player),
		button:    -1,
		grace:     make(map[string]graceTimer),
	}
	e.newDeck = func() *deck.Deck {
		d := deck.NewDeckWithRand(e.rng)
		d.Shuffle()
		return d
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// ID returns the room id.
func (e *Engine) ID() string {
	return e.id
}

// Config returns the room's configuration.
func (e *Engine) Config() Config {
	return e.cfg
}

// Join adds a spectator, or reconnects a member still inside their grace
// period.
func (e *Engine) Join(userID, name string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return ErrClosed
	}

	if p, ok := e.members[userID]; ok {
		e.stopGrace(userID)
		p.Connected = true
		e.logger.Info("Player reconnected", "player", userID)
		e.transport.Broadcast(e.id, ConnectionStatusEvent{PlayerID: userID, Connected: true})
		e.sendState(userID)
		return nil
	}

	e.members[userID] = &Player{ID: userID, Name: name, Seat: -1, Status: Spectating, Connected: true}
	e.joinOrder = append(e.joinOrder, userID)
	e.logger.Info("Player joined", "player", userID, "name", name)
	e.transport.Broadcast(e.id, PlayerJoinedEvent{PlayerID: userID, Name: name})
	e.broadcastState()
	return nil
}

// Leave removes a member, folding any live hand they hold.
func (e *Engine) Leave(userID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.members[userID]; !ok {
		return ErrUnknownPlayer
	}
	e.remove(userID)
	return nil
}

// Disconnect marks a member's connection as lost. A live hand is folded at
// once; the member is removed if they do not return within the grace
// period.
func (e *Engine) Disconnect(userID string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	p, ok := e.members[userID]
	if !ok || e.closed {
		return
	}
	p.Connected = false
	e.logger.Info("Player disconnected", "player", userID, "grace", e.cfg.ReconnectGrace)
	e.transport.Broadcast(e.id, ConnectionStatusEvent{PlayerID: userID, Connected: false})
	e.forfeit(userID)

	e.stopGrace(userID)
	e.graceSeq++
	gen := e.graceSeq
	e.grace[userID] = graceTimer{
		gen: gen,
		timer: e.clock.AfterFunc(e.cfg.ReconnectGrace, func() {
			e.mu.Lock()
			defer e.mu.Unlock()
			g, ok := e.grace[userID]
			if e.closed || !ok || g.gen != gen {
				return
			}
			delete(e.grace, userID)
			e.logger.Info("Reconnect grace expired", "player", userID)
			e.remove(userID)
		}),
	}
}

// Handle applies a member's intent. Rejected intents are reported to the
// member as an error event, except concurrent betting actions which are
// dropped silently.
func (e *Engine) Handle(userID string, in Intent) error {
	var err error
	switch in := in.(type) {
	case FoldIntent:
		err = e.act(userID, actFold, 0)
	case CheckIntent:
		err = e.act(userID, actCheck, 0)
	case CallIntent:
		err = e.act(userID, actCall, 0)
	case BetIntent:
		err = e.act(userID, actBet, in.Amount)
	case RunCountIntent:
		err = e.chooseRuns(userID, in.Times)
	case AgreeRunCountIntent:
		err = e.agreeRuns(userID, in.Agree)
	case SocialIntent:
		err = e.social(userID, in)
	case SetReadyIntent:
		err = e.setReady(userID, in.Ready)
	case SitIntent:
		err = e.sit(userID, in.BuyIn)
	default:
		err = fmt.Errorf("%w: %T", ErrUnsupportedInput, in)
	}

	if err != nil && !errors.Is(err, ErrActionInFlight) {
		e.logger.Debug("Rejected intent", "player", userID, "intent", fmt.Sprintf("%T", in), "error", err)
		e.transport.Send(e.id, userID, ErrorEvent{Code: ErrorCode(err), Message: err.Error()})
	}
	return err
}

// Snapshot returns the room as viewerID may see it.
func (e *Engine) Snapshot(viewerID string) Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshot(viewerID)
}

// Summary returns the lobby listing for the room.
func (e *Engine) Summary() Summary {
	e.mu.Lock()
	defer e.mu.Unlock()
	return Summary{
		ID:         e.id,
		Name:       e.cfg.Name,
		Mode:       e.cfg.Mode,
		Members:    len(e.members),
		Seated:     e.seatedCount(),
		MaxPlayers: e.cfg.MaxPlayers,
		Running:    e.running,
		Blinds:     e.currentBlinds(),
	}
}

// Close stops every timer. Intents received afterwards are ignored.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.closed = true
	e.stopTurnTimer()
	e.stopOfferTimer()
	e.stopBlindClock()
	e.stopPending()
	for id := range e.grace {
		e.stopGrace(id)
	}
}

func (e *Engine) sit(userID string, buyIn int) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	p, ok := e.members[userID]
	if !ok {
		return ErrUnknownPlayer
	}
	rebuy := p.Status == SittingOut && p.Stack == 0
	if p.Status != Spectating && !rebuy {
		return ErrAlreadySeated
	}

	stack := buyIn
	if e.cfg.Mode == Tournament {
		if e.running || rebuy {
			return fmt.Errorf("%w: tournament already started", ErrInvalidStage)
		}
		stack = e.cfg.StartingStack
	} else if buyIn < e.cfg.MinBuyIn || buyIn > e.cfg.MaxBuyIn {
		return fmt.Errorf("%w: %d not in [%d, %d]", ErrBuyIn, buyIn, e.cfg.MinBuyIn, e.cfg.MaxBuyIn)
	}

	if !rebuy {
		if e.seatedCount() >= e.cfg.MaxPlayers {
			return ErrTableFull
		}
		p.Seat = e.freeSeat()
	}
	p.Status = SittingOut
	p.Stack = stack
	p.Ready = false
	p.MissedTurns = 0

	e.logger.Info("Player sat down", "player", userID, "seat", p.Seat, "stack", stack)
	e.transport.Broadcast(e.id, PlayerStatusEvent{PlayerID: userID, Status: p.Status, Seat: p.Seat, Stack: p.Stack})
	e.broadcastState()
	return nil
}

func (e *Engine) setReady(userID string, ready bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	p, ok := e.members[userID]
	if !ok {
		return ErrUnknownPlayer
	}
	if p.Status == Spectating {
		return ErrNotSeated
	}
	p.Ready = ready
	e.transport.Broadcast(e.id, PlayerReadyEvent{PlayerID: userID, Ready: ready})
	e.maybeStart()
	return nil
}

func (e *Engine) social(userID string, in SocialIntent) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.members[userID]; !ok {
		return ErrUnknownPlayer
	}
	e.transport.Broadcast(e.id, SocialActionEvent{PlayerID: userID, Kind: in.Kind, Payload: in.Payload})
	return nil
}

// maybeStart begins a session once at least two players are seated and all
// of them are ready.
func (e *Engine) maybeStart() {
	if e.running || e.closed {
		return
	}
	seated := e.seated()
	if len(seated) < 2 {
		return
	}
	for _, p := range seated {
		if !p.Ready || p.Stack <= 0 {
			return
		}
	}
	for _, p := range seated {
		p.Status = InHand
	}
	e.running = true
	e.logger.Info("Session starting", "players", len(seated), "mode", e.cfg.Mode)
	if e.cfg.Mode == Tournament {
		e.level = 0
		e.scheduleLevel()
	}
	e.startHand()
}

// remove drops a member, folding their hand first.
func (e *Engine) remove(userID string) {
	e.stopGrace(userID)
	delete(e.members, userID)
	e.joinOrder = slices.DeleteFunc(e.joinOrder, func(id string) bool { return id == userID })
	e.forfeit(userID)

	e.logger.Info("Player left", "player", userID)
	e.transport.Broadcast(e.id, PlayerLeftEvent{PlayerID: userID})
	e.broadcastState()
	e.maybeStart()
}

// forfeit folds userID's live hand. All-in players keep their stake, and a
// pending run-it negotiation involving them resolves to a single run.
func (e *Engine) forfeit(userID string) {
	if e.state == nil {
		return
	}
	idx, ps := e.state.player(userID)
	if ps == nil {
		return
	}

	switch e.phase {
	case phaseBetting:
		if !ps.canAct() {
			return
		}
		ps.Folded = true
		ps.HasActed = true
		ps.LastAction = "fold"
		e.logger.Info("Folded absent player", "player", userID)
		st := e.state
		if idx == st.Active || len(st.contenders()) <= 1 {
			e.stopTurnTimer()
			e.progress(idx + 1)
			return
		}
		// The fold may leave the active player with nobody to bet against.
		if st.Active >= 0 && !st.owesDecision(st.Players[st.Active], st.ableToAct()) {
			e.stopTurnTimer()
			e.progress(st.Active)
			return
		}
		e.broadcastState()
	case phaseNegotiating:
		if e.runIt != nil && e.runIt.involves(userID) {
			e.runOut(1)
		}
	}
}

func (e *Engine) stopGrace(userID string) {
	if g, ok := e.grace[userID]; ok {
		g.timer.Stop()
		delete(e.grace, userID)
	}
}

func (e *Engine) seated() []*Player {
	var out []*Player
	for _, id := range e.joinOrder {
		if p := e.members[id]; p.Status != Spectating {
			out = append(out, p)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Seat < out[j].Seat })
	return out
}

func (e *Engine) seatedCount() int {
	return len(e.seated())
}

func (e *Engine) freeSeat() int {
	taken := make(map[int]bool)
	for _, p := range e.members {
		if p.Status != Spectating {
			taken[p.Seat] = true
		}
	}
	for seat := 0; ; seat++ {
		if !taken[seat] {
			return seat
		}
	}
}

func (e *Engine) currentBlinds() BlindLevel {
	return e.levels[min(e.level, len(e.levels)-1)]
}

func (e *Engine) snapshot(viewerID string) Snapshot {
	s := Snapshot{
		RoomID:  e.id,
		Name:    e.cfg.Name,
		Mode:    e.cfg.Mode,
		Running: e.running,
		Blinds:  e.currentBlinds(),
	}
	if e.nextLevelAt != nil {
		at := *e.nextLevelAt
		s.NextLevelAt = &at
	}

	members := make([]Player, 0, len(e.members))
	for _, id := range e.joinOrder {
		members = append(members, *e.members[id])
	}
	sort.SliceStable(members, func(i, j int) bool {
		si, sj := members[i].Seat, members[j].Seat
		if si < 0 || sj < 0 {
			return si >= 0 && sj < 0
		}
		return si < sj
	})
	s.Members = members

	if e.state != nil {
		s.Hand = e.state.clone()
		redact(s.Hand, viewerID)
	}
	return s
}

func (e *Engine) sendState(userID string) {
	e.transport.Send(e.id, userID, GameStateEvent{Snapshot: e.snapshot(userID)})
}

// broadcastState sends every member their own redacted snapshot.
func (e *Engine) broadcastState() {
	for _, id := range e.joinOrder {
		e.sendState(id)
	}
}
