package room

import "encoding/json"

// Intent is a message from a member to a room. The set of implementations
// is closed; Engine.Handle switches over all of them.
type Intent interface {
	intent()
}

type FoldIntent struct{}

type CheckIntent struct{}

type CallIntent struct{}

// BetIntent commits chips up to Amount for the street. It opens the
// betting or raises, depending on the table.
type BetIntent struct {
	Amount int `json:"amount"`
}

// RunCountIntent is the underdog's choice of how many boards to deal.
type RunCountIntent struct {
	Times int `json:"times"`
}

// AgreeRunCountIntent is a favourite's answer to a multi-run offer.
type AgreeRunCountIntent struct {
	Agree bool `json:"agree"`
}

type SocialIntent struct {
	Kind    string          `json:"kind"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type SetReadyIntent struct {
	Ready bool `json:"ready"`
}

type SitIntent struct {
	BuyIn int `json:"buyIn"`
}

func (FoldIntent) intent()          {}
func (CheckIntent) intent()         {}
func (CallIntent) intent()          {}
func (BetIntent) intent()           {}
func (RunCountIntent) intent()      {}
func (AgreeRunCountIntent) intent() {}
func (SocialIntent) intent()        {}
func (SetReadyIntent) intent()      {}
func (SitIntent) intent()           {}
