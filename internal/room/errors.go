package room

import "errors"

var (
	ErrNotYourTurn      = errors.New("not your turn")
	ErrInvalidStage     = errors.New("action not allowed at this stage")
	ErrActionInFlight   = errors.New("another action is being processed")
	ErrIllegalCheck     = errors.New("cannot check facing a bet")
	ErrBetExceedsStack  = errors.New("bet exceeds stack")
	ErrBetTooSmall      = errors.New("bet is below the amount to call")
	ErrRaiseTooSmall    = errors.New("raise is below the minimum raise")
	ErrTableFull        = errors.New("table is full")
	ErrUnknownPlayer    = errors.New("player is not in this room")
	ErrNotSeated        = errors.New("player is not seated")
	ErrAlreadySeated    = errors.New("player is already seated")
	ErrBuyIn            = errors.New("buy-in outside the allowed range")
	ErrNoOffer          = errors.New("no run-it offer pending for this player")
	ErrInvalidRunCount  = errors.New("run count must be at least one")
	ErrUnsupportedInput = errors.New("unsupported intent")
	ErrClosed           = errors.New("room is closed")
)

// ErrorCode maps an engine error to the code sent in error events.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrNotYourTurn):
		return "not_your_turn"
	case errors.Is(err, ErrInvalidStage):
		return "invalid_stage"
	case errors.Is(err, ErrIllegalCheck), errors.Is(err, ErrBetExceedsStack),
		errors.Is(err, ErrBetTooSmall), errors.Is(err, ErrRaiseTooSmall):
		return "invalid_action"
	case errors.Is(err, ErrTableFull):
		return "table_full"
	case errors.Is(err, ErrBuyIn):
		return "invalid_buy_in"
	case errors.Is(err, ErrUnknownPlayer), errors.Is(err, ErrNotSeated), errors.Is(err, ErrAlreadySeated):
		return "invalid_seat"
	case errors.Is(err, ErrNoOffer), errors.Is(err, ErrInvalidRunCount):
		return "invalid_run_count"
	default:
		return "error"
	}
}
