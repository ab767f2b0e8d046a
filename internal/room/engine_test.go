package room

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lox/pokerrooms/internal/deck"
	"github.com/lox/pokerrooms/internal/randutil"
)

// recorder is an in-memory Transport.
type recorder struct {
	mu         sync.Mutex
	sent       map[string][]Event
	broadcasts []Event
	// onBroadcast runs on the engine's goroutine, under the room lock.
	onBroadcast func(Event)
}

func newRecorder() *recorder {
	return &recorder{sent: make(map[string][]Event)}
}

func (r *recorder) Send(_, userID string, ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent[userID] = append(r.sent[userID], ev)
}

func (r *recorder) Broadcast(_ string, ev Event) {
	r.mu.Lock()
	r.broadcasts = append(r.broadcasts, ev)
	hook := r.onBroadcast
	r.mu.Unlock()
	if hook != nil {
		hook(ev)
	}
}

func (r *recorder) broadcastsOf(typ EventType) []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Event
	for _, ev := range r.broadcasts {
		if ev.Type() == typ {
			out = append(out, ev)
		}
	}
	return out
}

func (r *recorder) sentTo(userID string, typ EventType) []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Event
	for _, ev := range r.sent[userID] {
		if ev.Type() == typ {
			out = append(out, ev)
		}
	}
	return out
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.MinBuyIn = 10
	cfg.MaxBuyIn = 5000
	cfg.StreetDelay = 0
	cfg.EquityTrials = 2000
	return cfg
}

func newTestEngine(t *testing.T, cfg Config, opts ...Option) (*Engine, *recorder, *quartz.Mock) {
	t.Helper()
	mClock := quartz.NewMock(t)
	logger := log.NewWithOptions(io.Discard, log.Options{Level: log.ErrorLevel})
	rec := newRecorder()
	e, err := New("room-1", cfg, rec, logger, mClock, append([]Option{WithRand(randutil.New(7))}, opts...)...)
	require.NoError(t, err)
	t.Cleanup(e.Close)
	return e, rec, mClock
}

func stacked(cards string) Option {
	top := deck.MustParseCards(cards)
	return WithDeck(func() *deck.Deck { return deck.NewStackedDeck(top) })
}

func testContext(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// seat joins, seats and readies players in order, which starts the session.
func seat(t *testing.T, e *Engine, stacks []int, ids ...string) {
	t.Helper()
	for i, id := range ids {
		require.NoError(t, e.Join(id, "player-"+id))
		require.NoError(t, e.Handle(id, SitIntent{BuyIn: stacks[i%len(stacks)]}))
	}
	for _, id := range ids {
		require.NoError(t, e.Handle(id, SetReadyIntent{Ready: true}))
	}
}

func act(t *testing.T, e *Engine, id string, in Intent) {
	t.Helper()
	require.NoError(t, e.Handle(id, in))
	requirePotBalanced(t, e)
}

func requirePotBalanced(t *testing.T, e *Engine) {
	t.Helper()
	e.mu.Lock()
	defer e.mu.Unlock()
	require.NotNil(t, e.state)
	require.Equal(t, e.state.committed(), e.state.Pot, "pot must equal committed chips")
}

func activeID(t *testing.T, e *Engine) string {
	t.Helper()
	h := e.Snapshot("").Hand
	require.NotNil(t, h)
	require.GreaterOrEqual(t, h.Active, 0)
	return h.Players[h.Active].PlayerID
}

func member(t *testing.T, e *Engine, id string) Player {
	t.Helper()
	for _, p := range e.Snapshot("").Members {
		if p.ID == id {
			return p
		}
	}
	t.Fatalf("no member %s", id)
	return Player{}
}

func TestHeadsUpHandEndToEnd(t *testing.T) {
	e, rec, _ := newTestEngine(t, testConfig(), stacked("2c7dAsAhKd9s4h3c8d"))
	seat(t, e, []int{1000}, "A", "B")

	h := e.Snapshot("A").Hand
	require.NotNil(t, h)
	assert.Equal(t, PreFlop, h.Stage)
	assert.Equal(t, 30, h.Pot)
	assert.Equal(t, "A", activeID(t, e), "dealer acts first heads-up")

	act(t, e, "A", CallIntent{})
	act(t, e, "B", CheckIntent{})

	h = e.Snapshot("A").Hand
	assert.Equal(t, Flop, h.Stage)
	assert.Equal(t, 40, h.Pot)
	assert.Equal(t, "B", activeID(t, e))

	for _, next := range []Stage{Turn, River, Showdown} {
		act(t, e, "B", CheckIntent{})
		act(t, e, "A", CheckIntent{})
		assert.Equal(t, next, e.Snapshot("A").Hand.Stage)
	}

	h = e.Snapshot("B").Hand
	assert.Equal(t, 1020, h.Players[0].Stack)
	assert.Equal(t, 980, h.Players[1].Stack)
	assert.NotEmpty(t, h.Players[0].HoleCards, "showdown shows contenders' cards")
	assert.Equal(t, 1020, member(t, e, "A").Stack)
	assert.Equal(t, 980, member(t, e, "B").Stack)

	results := rec.broadcastsOf(EventBoardResult)
	require.Len(t, results, 1)
	assert.Equal(t, []string{"A"}, results[0].(BoardResultEvent).Winners)
}

func TestFourSeatTurnOrder(t *testing.T) {
	e, _, _ := newTestEngine(t, testConfig())
	seat(t, e, []int{1000}, "A", "B", "C", "D")

	var visited []string
	for i := 0; e.Snapshot("").Hand.Stage == PreFlop; i++ {
		require.Less(t, i, 8)
		id := activeID(t, e)
		visited = append(visited, id)
		act(t, e, id, CallIntent{})
	}
	assert.Equal(t, []string{"D", "A", "B", "C"}, visited)

	visited = nil
	for i := 0; e.Snapshot("").Hand.Stage == Flop; i++ {
		require.Less(t, i, 8)
		id := activeID(t, e)
		visited = append(visited, id)
		act(t, e, id, CheckIntent{})
	}
	assert.Equal(t, []string{"B", "C", "D", "A"}, visited)
	assert.Equal(t, 80, e.Snapshot("").Hand.Pot)
}

func TestPotStaysBalancedThroughRaises(t *testing.T) {
	e, _, _ := newTestEngine(t, testConfig())
	seat(t, e, []int{1000}, "A", "B", "C")

	// dealer A, small blind B, big blind C
	act(t, e, "A", BetIntent{Amount: 60})
	act(t, e, "B", BetIntent{Amount: 200})
	act(t, e, "C", CallIntent{})
	assert.Equal(t, "A", activeID(t, e), "raise reopens action")
	act(t, e, "A", FoldIntent{})

	h := e.Snapshot("").Hand
	assert.Equal(t, Flop, h.Stage)
	assert.Equal(t, 460, h.Pot)

	act(t, e, "B", BetIntent{Amount: 100})
	act(t, e, "C", BetIntent{Amount: 300})
	act(t, e, "B", CallIntent{})

	h = e.Snapshot("").Hand
	assert.Equal(t, Turn, h.Stage)
	assert.Equal(t, 1060, h.Pot)
	assert.Equal(t, 500, h.Players[1].Stack)
	assert.Equal(t, 500, h.Players[2].Stack)
}

func TestShortAllInDoesNotReopenBetting(t *testing.T) {
	e, _, _ := newTestEngine(t, testConfig())
	seat(t, e, []int{1000, 1000, 150}, "A", "B", "C")

	// dealer A, small blind B, big blind C
	act(t, e, "A", BetIntent{Amount: 100})
	act(t, e, "B", CallIntent{})
	act(t, e, "C", BetIntent{Amount: 150})
	require.Equal(t, "A", activeID(t, e))

	before := e.Snapshot("").Hand
	assert.ErrorIs(t, e.Handle("A", BetIntent{Amount: 400}), ErrRaiseTooSmall)
	assert.Equal(t, before, e.Snapshot("").Hand)

	act(t, e, "A", CallIntent{})
	assert.ErrorIs(t, e.Handle("B", BetIntent{Amount: 300}), ErrRaiseTooSmall)
	act(t, e, "B", CallIntent{})

	h := e.Snapshot("").Hand
	assert.Equal(t, Flop, h.Stage)
	assert.Equal(t, 450, h.Pot)
}

func TestFullRaiseReopensBetting(t *testing.T) {
	e, _, _ := newTestEngine(t, testConfig())
	seat(t, e, []int{1000, 1000, 300}, "A", "B", "C")

	act(t, e, "A", BetIntent{Amount: 100})
	act(t, e, "B", CallIntent{})
	act(t, e, "C", BetIntent{Amount: 300})
	act(t, e, "A", BetIntent{Amount: 600})
	assert.Equal(t, "B", activeID(t, e))
}

func TestRejectedActions(t *testing.T) {
	e, rec, _ := newTestEngine(t, testConfig())
	seat(t, e, []int{1000}, "A", "B")

	tests := []struct {
		name   string
		player string
		intent Intent
		err    error
	}{
		{"out of turn", "B", CheckIntent{}, ErrNotYourTurn},
		{"check facing a bet", "A", CheckIntent{}, ErrIllegalCheck},
		{"below the call", "A", BetIntent{Amount: 15}, ErrBetTooSmall},
		{"short raise", "A", BetIntent{Amount: 30}, ErrRaiseTooSmall},
		{"more than the stack", "A", BetIntent{Amount: 5000}, ErrBetExceedsStack},
		{"no run offer", "A", RunCountIntent{Times: 2}, ErrNoOffer},
		{"spectator", "Z", FoldIntent{}, ErrNotYourTurn},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := e.Snapshot("A").Hand
			err := e.Handle(tt.player, tt.intent)
			assert.ErrorIs(t, err, tt.err)
			assert.Equal(t, before, e.Snapshot("A").Hand, "rejected intents leave state untouched")
			assert.NotEmpty(t, rec.sentTo(tt.player, EventError))
		})
	}
}

func TestConcurrentActionIsDropped(t *testing.T) {
	e, rec, _ := newTestEngine(t, testConfig())
	seat(t, e, []int{1000}, "A", "B")

	e.inFlight.Store(true)
	err := e.Handle("A", CallIntent{})
	assert.ErrorIs(t, err, ErrActionInFlight)
	assert.Empty(t, rec.sentTo("A", EventError))

	e.inFlight.Store(false)
	act(t, e, "A", CallIntent{})
}

func TestSidePotsAtShowdown(t *testing.T) {
	cfg := testConfig()
	cfg.MaxRuns = 1
	// dealer A, small blind B, big blind C; cards go B, C, A
	e, rec, _ := newTestEngine(t, cfg, stacked("KsKhQsQhAsAh2c7d9hJc3s"))
	seat(t, e, []int{50, 150, 150}, "A", "B", "C")

	act(t, e, "A", BetIntent{Amount: 50})
	act(t, e, "B", BetIntent{Amount: 150})
	act(t, e, "C", CallIntent{})

	h := e.Snapshot("").Hand
	assert.Equal(t, Showdown, h.Stage)
	assert.Equal(t, 350, h.Pot)
	assert.Equal(t, 150, h.Players[0].Stack)
	assert.Equal(t, 200, h.Players[1].Stack)
	assert.Equal(t, 0, h.Players[2].Stack)

	result := rec.broadcastsOf(EventBoardResult)[0].(BoardResultEvent)
	assert.Equal(t, []string{"A", "B"}, result.Winners)

	c := member(t, e, "C")
	assert.Equal(t, SittingOut, c.Status, "busted cash player keeps the seat")
	assert.Equal(t, 0, c.Stack)
}

func TestTurnTimeoutFolds(t *testing.T) {
	e, _, mClock := newTestEngine(t, testConfig())
	seat(t, e, []int{1000}, "A", "B")

	mClock.Advance(30 * time.Second).MustWait(testContext(t))

	h := e.Snapshot("").Hand
	assert.True(t, h.Players[0].Folded)
	assert.Equal(t, 990, member(t, e, "A").Stack)
	assert.Equal(t, 1010, member(t, e, "B").Stack)
	assert.Equal(t, 1, member(t, e, "A").MissedTurns)
}

func TestTurnTimeoutChecksWhenFree(t *testing.T) {
	e, _, mClock := newTestEngine(t, testConfig())
	seat(t, e, []int{1000}, "A", "B")
	act(t, e, "A", CallIntent{})

	mClock.Advance(30 * time.Second).MustWait(testContext(t))

	h := e.Snapshot("").Hand
	assert.Equal(t, Flop, h.Stage)
	assert.False(t, h.Players[1].Folded)
	assert.Equal(t, "check", h.Players[1].LastAction)
}

func TestActionCancelsTurnTimer(t *testing.T) {
	e, _, mClock := newTestEngine(t, testConfig())
	seat(t, e, []int{1000}, "A", "B")

	mClock.Advance(20 * time.Second).MustWait(testContext(t))
	act(t, e, "A", CallIntent{})
	mClock.Advance(20 * time.Second).MustWait(testContext(t))

	h := e.Snapshot("").Hand
	assert.False(t, h.Players[0].Folded)
	assert.Equal(t, "B", activeID(t, e), "B's clock started when A acted")
	assert.Equal(t, 0, member(t, e, "A").MissedTurns)
}

func TestMissedTurnsMoveToSpectators(t *testing.T) {
	cfg := testConfig()
	cfg.MissedTurnLimit = 1
	e, _, mClock := newTestEngine(t, cfg)
	seat(t, e, []int{1000}, "A", "B")

	mClock.Advance(30 * time.Second).MustWait(testContext(t))
	mClock.Advance(cfg.NextHandDelay).MustWait(testContext(t))

	assert.Equal(t, Spectating, member(t, e, "A").Status)
	assert.Equal(t, SittingOut, member(t, e, "B").Status)
	assert.False(t, e.Snapshot("").Running)
}

func TestDisconnectFoldsAndGraceRemoves(t *testing.T) {
	e, rec, mClock := newTestEngine(t, testConfig())
	seat(t, e, []int{1000}, "A", "B")

	e.Disconnect("B")
	h := e.Snapshot("").Hand
	assert.True(t, h.Players[1].Folded)
	assert.Equal(t, 1020, member(t, e, "A").Stack)

	statuses := rec.broadcastsOf(EventConnectionStatus)
	require.NotEmpty(t, statuses)
	assert.Equal(t, ConnectionStatusEvent{PlayerID: "B", Connected: false}, statuses[len(statuses)-1])

	// the next hand starts with B still seated, then the grace period ends
	cfg := e.Config()
	mClock.Advance(cfg.NextHandDelay).MustWait(testContext(t))
	mClock.Advance(cfg.ReconnectGrace - cfg.NextHandDelay).MustWait(testContext(t))

	assert.Len(t, e.Snapshot("").Members, 1)
	assert.NotEmpty(t, rec.broadcastsOf(EventPlayerLeft))
}

func TestDisconnectClosesStreetWithOneBettorLeft(t *testing.T) {
	e, rec, _ := newTestEngine(t, testConfig())
	seat(t, e, []int{1000, 1000, 150}, "A", "B", "C")

	// dealer A, small blind B, big blind C
	act(t, e, "A", CallIntent{})
	act(t, e, "B", CallIntent{})
	act(t, e, "C", BetIntent{Amount: 150})
	act(t, e, "A", CallIntent{})
	act(t, e, "B", CallIntent{})
	require.Equal(t, Flop, e.Snapshot("").Hand.Stage)
	require.Equal(t, "B", activeID(t, e))

	e.Disconnect("A")

	h := e.Snapshot("").Hand
	assert.True(t, h.Players[0].Folded)
	assert.Equal(t, -1, h.Active, "nobody is left to bet against B")
	assert.True(t, h.Reveal)
	assert.ErrorIs(t, e.Handle("B", CheckIntent{}), ErrInvalidStage)
	offers := len(rec.sentTo("B", EventRunOfferUnderdog)) + len(rec.sentTo("C", EventRunOfferUnderdog))
	assert.Equal(t, 1, offers)
}

func TestReconnectWithinGrace(t *testing.T) {
	e, rec, mClock := newTestEngine(t, testConfig())
	require.NoError(t, e.Join("A", "alice"))

	e.Disconnect("A")
	assert.False(t, member(t, e, "A").Connected)

	mClock.Advance(10 * time.Second).MustWait(testContext(t))
	require.NoError(t, e.Join("A", "alice"))
	mClock.Advance(20 * time.Second).MustWait(testContext(t))

	assert.True(t, member(t, e, "A").Connected)
	assert.Empty(t, rec.broadcastsOf(EventPlayerLeft))
}

func TestRedaction(t *testing.T) {
	e, _, _ := newTestEngine(t, testConfig())
	seat(t, e, []int{1000}, "A", "B")
	require.NoError(t, e.Join("S", "spectator"))

	h := e.Snapshot("A").Hand
	assert.Len(t, h.Players[0].HoleCards, 2)
	assert.Empty(t, h.Players[1].HoleCards)

	h = e.Snapshot("S").Hand
	assert.Empty(t, h.Players[0].HoleCards)
	assert.Empty(t, h.Players[1].HoleCards)

	// snapshots are copies
	h.Players[0].Stack = 1
	assert.NotEqual(t, 1, e.Snapshot("A").Hand.Players[0].Stack)
}

func TestLobbyRules(t *testing.T) {
	cfg := testConfig()
	cfg.MaxPlayers = 2
	e, rec, _ := newTestEngine(t, cfg)

	require.NoError(t, e.Join("A", "alice"))
	assert.Equal(t, Spectating, member(t, e, "A").Status)
	assert.ErrorIs(t, e.Handle("A", SetReadyIntent{Ready: true}), ErrNotSeated)
	assert.ErrorIs(t, e.Handle("A", SitIntent{BuyIn: 1}), ErrBuyIn)

	require.NoError(t, e.Handle("A", SitIntent{BuyIn: 500}))
	assert.ErrorIs(t, e.Handle("A", SitIntent{BuyIn: 500}), ErrAlreadySeated)
	require.NoError(t, e.Handle("A", SetReadyIntent{Ready: true}))
	assert.False(t, e.Snapshot("").Running, "one ready player does not start a game")

	require.NoError(t, e.Join("B", "bob"))
	require.NoError(t, e.Join("C", "carol"))
	require.NoError(t, e.Handle("B", SitIntent{BuyIn: 500}))
	assert.ErrorIs(t, e.Handle("C", SitIntent{BuyIn: 500}), ErrTableFull)

	require.NoError(t, e.Handle("B", SetReadyIntent{Ready: true}))
	assert.True(t, e.Snapshot("").Running)
	assert.Equal(t, InHand, member(t, e, "A").Status)
	assert.Len(t, rec.broadcastsOf(EventPlayerReady), 2)
}

func TestSocialActionIsBroadcast(t *testing.T) {
	e, rec, _ := newTestEngine(t, testConfig())
	require.NoError(t, e.Join("A", "alice"))

	require.NoError(t, e.Handle("A", SocialIntent{Kind: "emoji", Payload: []byte(`"wave"`)}))
	events := rec.broadcastsOf(EventSocialAction)
	require.Len(t, events, 1)
	assert.Equal(t, "emoji", events[0].(SocialActionEvent).Kind)
}

func TestTournamentBlindClock(t *testing.T) {
	cfg := testConfig()
	cfg.Mode = Tournament
	cfg.Structure = Turbo
	cfg.TurnTimeout = 0
	e, rec, mClock := newTestEngine(t, cfg)
	seat(t, e, []int{0}, "A", "B")

	assert.Equal(t, 1500, e.Snapshot("").Hand.Players[0].Stack+e.Snapshot("").Hand.Players[0].CurrentBet)
	assert.Equal(t, 100, e.Snapshot("").Hand.Blinds.BigBlind)

	var armedAtBroadcast bool
	rec.mu.Lock()
	rec.onBroadcast = func(ev Event) {
		if ev.Type() == EventBlindsUp {
			armedAtBroadcast = e.blindTimer != nil
		}
	}
	rec.mu.Unlock()

	mClock.Advance(DefaultLevelDuration).MustWait(testContext(t))
	assert.False(t, armedAtBroadcast, "blinds_up goes out before the next level is armed")

	ups := rec.broadcastsOf(EventBlindsUp)
	require.Len(t, ups, 1)
	assert.Equal(t, BlindLevel{Level: 2, SmallBlind: 100, BigBlind: 200}, ups[0].(BlindsUpEvent).BlindLevel)
	assert.Equal(t, 100, e.Snapshot("").Hand.Blinds.BigBlind, "new blinds wait for the next hand")
	assert.Equal(t, 200, e.Snapshot("").Blinds.BigBlind)
}

func TestTournamentWinner(t *testing.T) {
	cfg := testConfig()
	cfg.Mode = Tournament
	cfg.Structure = Turbo
	cfg.MaxRuns = 1
	e, rec, mClock := newTestEngine(t, cfg, stacked("7c2dAsAhKdQs9h4c3d"))
	seat(t, e, []int{0}, "A", "B")

	act(t, e, "A", BetIntent{Amount: 1500})
	act(t, e, "B", CallIntent{})
	assert.Equal(t, Spectating, member(t, e, "B").Status)

	mClock.Advance(cfg.ShowdownDelay).MustWait(testContext(t))

	winners := rec.broadcastsOf(EventTournamentWinner)
	require.Len(t, winners, 1)
	assert.Equal(t, TournamentWinnerEvent{PlayerID: "A", Name: "player-A", Stack: 3000}, winners[0])
	assert.False(t, e.Snapshot("").Running)
}
