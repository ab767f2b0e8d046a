package pot

import (
	"fmt"
	"sort"
)

// RemainderPolicy decides who receives odd chips left by integer division.
type RemainderPolicy int

const (
	// RemainderLeftOfButton hands odd chips one at a time to tied winners in
	// seat order starting left of the button.
	RemainderLeftOfButton RemainderPolicy = iota
	// RemainderLargestStack hands odd chips to tied winners by descending
	// stack, seat order breaking equal stacks.
	RemainderLargestStack
)

// ParseRemainderPolicy maps a config value to a policy.
func ParseRemainderPolicy(s string) (RemainderPolicy, error) {
	switch s {
	case "", "left_of_button":
		return RemainderLeftOfButton, nil
	case "largest_stack":
		return RemainderLargestStack, nil
	default:
		return 0, fmt.Errorf("unknown remainder policy %q", s)
	}
}

func (p RemainderPolicy) String() string {
	if p == RemainderLargestStack {
		return "largest_stack"
	}
	return "left_of_button"
}

// Strength reports a contender's hand strength. Higher is stronger.
type Strength func(playerID string) uint32

// Payout is the share of one pot paid to one winner.
type Payout struct {
	PlayerID string `json:"playerId"`
	Amount   int    `json:"amount"`
	Pot      int    `json:"pot"`
}

// Settlement carries the table context needed to break odd chips.
type Settlement struct {
	Policy RemainderPolicy
	// SeatOrder lists players starting left of the button.
	SeatOrder []string
	// Stacks are consulted by RemainderLargestStack.
	Stacks map[string]int
}

// Distribute awards every pot to its strongest eligible contenders. A pot
// with one eligible player is awarded without consulting strength.
func (s Settlement) Distribute(pots []Pot, strength Strength) []Payout {
	var payouts []Payout
	for i, p := range pots {
		if p.Amount == 0 || len(p.Eligible) == 0 {
			continue
		}
		winners := p.Eligible
		if len(winners) > 1 {
			winners = best(p.Eligible, strength)
		}
		for id, amount := range s.Split(p.Amount, winners) {
			payouts = append(payouts, Payout{PlayerID: id, Amount: amount, Pot: i})
		}
	}
	sort.SliceStable(payouts, func(a, b int) bool {
		if payouts[a].Pot != payouts[b].Pot {
			return payouts[a].Pot < payouts[b].Pot
		}
		return s.less(payouts[a].PlayerID, payouts[b].PlayerID)
	})
	return payouts
}

// Split divides amount evenly among winners; the remainder follows the policy.
func (s Settlement) Split(amount int, winners []string) map[string]int {
	out := make(map[string]int, len(winners))
	if len(winners) == 0 {
		return out
	}
	share := amount / len(winners)
	for _, id := range winners {
		out[id] = share
	}
	odd := amount - share*len(winners)
	for i, id := range s.oddChipOrder(winners) {
		if i >= odd {
			break
		}
		out[id]++
	}
	return out
}

// Recipient returns the player first in line for odd chips among ids.
func (s Settlement) Recipient(ids []string) string {
	order := s.oddChipOrder(ids)
	if len(order) == 0 {
		return ""
	}
	return order[0]
}

func (s Settlement) oddChipOrder(winners []string) []string {
	ordered := append([]string(nil), winners...)
	sort.SliceStable(ordered, func(a, b int) bool {
		if s.Policy == RemainderLargestStack {
			sa, sb := s.Stacks[ordered[a]], s.Stacks[ordered[b]]
			if sa != sb {
				return sa > sb
			}
		}
		return s.less(ordered[a], ordered[b])
	})
	return ordered
}

// less orders players by SeatOrder, then by id for players not seated.
func (s Settlement) less(a, b string) bool {
	ra, rb := s.rank(a), s.rank(b)
	if ra != rb {
		return ra < rb
	}
	return a < b
}

func (s Settlement) rank(id string) int {
	for i, p := range s.SeatOrder {
		if p == id {
			return i
		}
	}
	return len(s.SeatOrder)
}

func best(eligible []string, strength Strength) []string {
	var top uint32
	var winners []string
	for _, id := range eligible {
		v := strength(id)
		switch {
		case len(winners) == 0 || v > top:
			top = v
			winners = []string{id}
		case v == top:
			winners = append(winners, id)
		}
	}
	return winners
}

// Totals sums payouts per player.
func Totals(payouts []Payout) map[string]int {
	out := make(map[string]int)
	for _, p := range payouts {
		out[p.PlayerID] += p.Amount
	}
	return out
}
