package room

import (
	"encoding/json"
	"time"

	"github.com/lox/pokerrooms/internal/deck"
	"github.com/lox/pokerrooms/internal/evaluator"
	"github.com/lox/pokerrooms/internal/pot"
)

// EventType names an outbound message.
type EventType string

const (
	EventGameState        EventType = "game_state"
	EventPlayerJoined     EventType = "player_joined"
	EventPlayerLeft       EventType = "player_left"
	EventPlayerStatus     EventType = "player_status_update"
	EventPlayerReady      EventType = "player_ready_update"
	EventConnectionStatus EventType = "connection_status"
	EventBlindsUp         EventType = "blinds_up"
	EventTournamentWinner EventType = "tournament_winner"
	EventEquityUpdate     EventType = "equity_update"
	EventStartBoardRun    EventType = "start_board_run"
	EventBoardResult      EventType = "board_result"
	EventRunOfferUnderdog EventType = "run_offer_underdog"
	EventRunMultipleOffer EventType = "run_multiple_offer"
	EventSocialAction     EventType = "social_action_broadcast"
	EventError            EventType = "error"
)

// Event is a message from a room to its members. The set of
// implementations is closed.
type Event interface {
	Type() EventType
	event()
}

// Snapshot is a viewer's redacted picture of the room.
type Snapshot struct {
	RoomID  string     `json:"roomId"`
	Name    string     `json:"name"`
	Mode    Mode       `json:"mode"`
	Running bool       `json:"running"`
	Members []Player   `json:"members"`
	Blinds  BlindLevel `json:"blinds"`
	// NextLevelAt is set for tournaments while the blind clock runs.
	NextLevelAt *time.Time `json:"nextLevelAt,omitempty"`
	Hand        *GameState `json:"hand,omitempty"`
}

type GameStateEvent struct {
	Snapshot
}

type PlayerJoinedEvent struct {
	PlayerID string `json:"playerId"`
	Name     string `json:"name"`
}

type PlayerLeftEvent struct {
	PlayerID string `json:"playerId"`
}

type PlayerStatusEvent struct {
	PlayerID string       `json:"playerId"`
	Status   PlayerStatus `json:"status"`
	Seat     int          `json:"seat"`
	Stack    int          `json:"stack"`
}

type PlayerReadyEvent struct {
	PlayerID string `json:"playerId"`
	Ready    bool   `json:"ready"`
}

type ConnectionStatusEvent struct {
	PlayerID  string `json:"playerId"`
	Connected bool   `json:"connected"`
}

type BlindsUpEvent struct {
	BlindLevel
	NextLevelAt *time.Time `json:"nextLevelAt,omitempty"`
}

type TournamentWinnerEvent struct {
	PlayerID string `json:"playerId"`
	Name     string `json:"name"`
	Stack    int    `json:"stack"`
}

type EquityUpdateEvent struct {
	Equities map[string]float64        `json:"equities"`
	Outs     map[string]evaluator.Outs `json:"outs,omitempty"`
	RunIndex *int                      `json:"runIndex,omitempty"`
}

type StartBoardRunEvent struct {
	RunIndex  int `json:"runIndex"`
	TotalRuns int `json:"totalRuns"`
}

type BoardResultEvent struct {
	RunIndex int               `json:"runIndex"`
	Board    []deck.Card       `json:"board"`
	Winners  []string          `json:"winners"`
	Payments []pot.Payout      `json:"payments"`
	Hands    map[string]string `json:"hands,omitempty"`
}

type RunOfferUnderdogEvent struct {
	MaxRuns   int                `json:"maxRuns"`
	Equities  map[string]float64 `json:"equities"`
	ExpiresAt time.Time          `json:"expiresAt"`
}

type RunMultipleOfferEvent struct {
	UnderdogID string    `json:"underdogId"`
	Times      int       `json:"times"`
	ExpiresAt  time.Time `json:"expiresAt"`
}

type SocialActionEvent struct {
	PlayerID string          `json:"playerId"`
	Kind     string          `json:"kind"`
	Payload  json.RawMessage `json:"payload,omitempty"`
}

type ErrorEvent struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (GameStateEvent) Type() EventType        { return EventGameState }
func (PlayerJoinedEvent) Type() EventType     { return EventPlayerJoined }
func (PlayerLeftEvent) Type() EventType       { return EventPlayerLeft }
func (PlayerStatusEvent) Type() EventType     { return EventPlayerStatus }
func (PlayerReadyEvent) Type() EventType      { return EventPlayerReady }
func (ConnectionStatusEvent) Type() EventType { return EventConnectionStatus }
func (BlindsUpEvent) Type() EventType         { return EventBlindsUp }
func (TournamentWinnerEvent) Type() EventType { return EventTournamentWinner }
func (EquityUpdateEvent) Type() EventType     { return EventEquityUpdate }
func (StartBoardRunEvent) Type() EventType    { return EventStartBoardRun }
func (BoardResultEvent) Type() EventType      { return EventBoardResult }
func (RunOfferUnderdogEvent) Type() EventType { return EventRunOfferUnderdog }
func (RunMultipleOfferEvent) Type() EventType { return EventRunMultipleOffer }
func (SocialActionEvent) Type() EventType     { return EventSocialAction }
func (ErrorEvent) Type() EventType            { return EventError }

func (GameStateEvent) event()        {}
func (PlayerJoinedEvent) event()     {}
func (PlayerLeftEvent) event()       {}
func (PlayerStatusEvent) event()     {}
func (PlayerReadyEvent) event()      {}
func (ConnectionStatusEvent) event() {}
func (BlindsUpEvent) event()         {}
func (TournamentWinnerEvent) event() {}
func (EquityUpdateEvent) event()     {}
func (StartBoardRunEvent) event()    {}
func (BoardResultEvent) event()      {}
func (RunOfferUnderdogEvent) event() {}
func (RunMultipleOfferEvent) event() {}
func (SocialActionEvent) event()     {}
func (ErrorEvent) event()            {}
