// Package pot splits hand contributions into main and side pots and pays
// them out.
package pot

import (
	"slices"
	"sort"
)

// Contribution is one player's chips committed over a whole hand.
type Contribution struct {
	PlayerID string
	Seat     int
	Amount   int
	Folded   bool
}

// Pot is a main or side pot with the players who can win it, in seat order.
type Pot struct {
	Amount   int      `json:"amount"`
	Eligible []string `json:"eligible"`
}

// Total returns the combined total of all pots
func Total(pots []Pot) int {
	total := 0
	for _, p := range pots {
		total += p.Amount
	}
	return total
}

// Build partitions contributions into pots. Levels come from live players'
// contributions; each slice holds every chip committed between the previous
// level and this one, and only live players who reached the level may win
// it. Folded chips above the top live level join the last pot. The result
// does not depend on the order of contributions.
func Build(contributions []Contribution) []Pot {
	sorted := slices.Clone(contributions)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Amount != sorted[j].Amount {
			return sorted[i].Amount < sorted[j].Amount
		}
		return sorted[i].Seat < sorted[j].Seat
	})

	var levels []int
	for _, c := range sorted {
		if !c.Folded && c.Amount > 0 && (len(levels) == 0 || levels[len(levels)-1] != c.Amount) {
			levels = append(levels, c.Amount)
		}
	}

	total := 0
	for _, c := range sorted {
		total += c.Amount
	}
	if len(levels) == 0 {
		if total == 0 {
			return nil
		}
		return []Pot{{Amount: total, Eligible: live(sorted, 0)}}
	}

	var pots []Pot
	prev := 0
	for _, level := range levels {
		amount := 0
		for _, c := range sorted {
			amount += min(c.Amount, level) - min(c.Amount, prev)
		}
		pots = append(pots, Pot{Amount: amount, Eligible: live(sorted, level)})
		prev = level
	}

	// folded chips beyond the highest live contribution
	for _, c := range sorted {
		if c.Amount > prev {
			pots[len(pots)-1].Amount += c.Amount - prev
		}
	}

	return merge(pots)
}

// live returns live players contributing at least level, ordered by seat.
func live(sorted []Contribution, level int) []string {
	var eligible []Contribution
	for _, c := range sorted {
		if !c.Folded && c.Amount >= level {
			eligible = append(eligible, c)
		}
	}
	sort.Slice(eligible, func(i, j int) bool { return eligible[i].Seat < eligible[j].Seat })
	ids := make([]string, len(eligible))
	for i, c := range eligible {
		ids[i] = c.PlayerID
	}
	return ids
}

func merge(pots []Pot) []Pot {
	out := make([]Pot, 0, len(pots))
	for _, p := range pots {
		if n := len(out); n > 0 && slices.Equal(out[n-1].Eligible, p.Eligible) {
			out[n-1].Amount += p.Amount
			continue
		}
		out = append(out, p)
	}
	return out
}
