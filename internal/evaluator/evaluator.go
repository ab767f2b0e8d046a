// Package evaluator ranks hold'em hands and estimates equity between them.
package evaluator

import (
	"errors"
	"fmt"

	"github.com/lox/pokerrooms/internal/deck"
)

// ErrCardCount is returned when fewer than five or more than seven cards are evaluated.
var ErrCardCount = errors.New("evaluate needs between 5 and 7 cards")

// ErrDuplicateCard is returned when the same card appears twice in an input.
var ErrDuplicateCard = errors.New("duplicate card")

// Evaluate returns the best five card hand among 5 to 7 cards.
func Evaluate(cards []deck.Card) (Hand, error) {
	if len(cards) < 5 || len(cards) > 7 {
		return Hand{}, fmt.Errorf("%w: got %d", ErrCardCount, len(cards))
	}
	if err := checkDuplicates(cards); err != nil {
		return Hand{}, err
	}

	var best Hand
	var five [5]deck.Card
	first := true
	forEachFive(cards, func(idx [5]int) {
		for i, j := range idx {
			five[i] = cards[j]
		}
		h := evaluateFive(five)
		if first || h.score > best.score {
			best = h
			first = false
		}
	})
	return best, nil
}

// MustEvaluate evaluates cards and panics on error (for tests)
func MustEvaluate(cards []deck.Card) Hand {
	h, err := Evaluate(cards)
	if err != nil {
		panic(err)
	}
	return h
}

// bestScore is the allocation free path used by simulation loops. The
// caller guarantees 5 to 7 distinct cards.
func bestScore(cards []deck.Card) Score {
	var best Score
	var five [5]deck.Card
	forEachFive(cards, func(idx [5]int) {
		for i, j := range idx {
			five[i] = cards[j]
		}
		if s := scoreFive(five); s > best {
			best = s
		}
	})
	return best
}

func forEachFive(cards []deck.Card, fn func([5]int)) {
	n := len(cards)
	for a := 0; a < n-4; a++ {
		for b := a + 1; b < n-3; b++ {
			for c := b + 1; c < n-2; c++ {
				for d := c + 1; d < n-1; d++ {
					for e := d + 1; e < n; e++ {
						fn([5]int{a, b, c, d, e})
					}
				}
			}
		}
	}
}

func checkDuplicates(cards []deck.Card) error {
	var seen [52]bool
	for _, c := range cards {
		i := c.Index()
		if i < 0 || i >= 52 {
			return fmt.Errorf("invalid card %v", c)
		}
		if seen[i] {
			return fmt.Errorf("%w: %s", ErrDuplicateCard, c)
		}
		seen[i] = true
	}
	return nil
}

func evaluateFive(five [5]deck.Card) Hand {
	cat, ranks := classify(five)
	sorted := five
	sortByRankDesc(sorted[:])
	return Hand{
		Category: cat,
		Ranks:    append([]deck.Rank(nil), ranks...),
		Cards:    sorted[:],
		score:    packScore(cat, ranks),
	}
}

func scoreFive(five [5]deck.Card) Score {
	cat, ranks := classify(five)
	return packScore(cat, ranks)
}

// classify returns the category and tie-break ranks of exactly five cards.
func classify(five [5]deck.Card) (Category, []deck.Rank) {
	var ranks [5]deck.Rank
	flush := true
	for i, c := range five {
		ranks[i] = c.Rank
		if c.Suit != five[0].Suit {
			flush = false
		}
	}
	sortRanksDesc(ranks[:])

	high, straight := straightHigh(ranks)

	if straight && flush {
		if high == deck.Ace {
			return RoyalFlush, []deck.Rank{deck.Ace}
		}
		return StraightFlush, []deck.Rank{high}
	}

	// group ranks by multiplicity, larger groups first then higher rank
	var counts [15]int
	for _, r := range ranks {
		counts[r]++
	}
	groups := make([]deck.Rank, 0, 5)
	for n := 4; n >= 1; n-- {
		for r := deck.Ace; r >= deck.Two; r-- {
			if counts[r] == n {
				groups = append(groups, r)
			}
		}
	}
	top := counts[groups[0]]

	switch {
	case top == 4:
		return FourOfAKind, groups
	case top == 3 && counts[groups[1]] == 2:
		return FullHouse, groups
	case flush:
		return Flush, ranks[:]
	case straight:
		return Straight, []deck.Rank{high}
	case top == 3:
		return ThreeOfAKind, groups
	case top == 2 && counts[groups[1]] == 2:
		return TwoPair, groups
	case top == 2:
		return OnePair, groups
	default:
		return HighCard, ranks[:]
	}
}

// straightHigh expects ranks sorted descending.
func straightHigh(r [5]deck.Rank) (deck.Rank, bool) {
	for i := 1; i < 5; i++ {
		if r[i] == r[i-1] {
			return 0, false
		}
	}
	if r[0]-r[4] == 4 {
		return r[0], true
	}
	if r[0] == deck.Ace && r[1] == deck.Five && r[4] == deck.Two {
		return deck.Five, true
	}
	return 0, false
}

func sortRanksDesc(r []deck.Rank) {
	for i := 1; i < len(r); i++ {
		for j := i; j > 0 && r[j] > r[j-1]; j-- {
			r[j], r[j-1] = r[j-1], r[j]
		}
	}
}

func sortByRankDesc(c []deck.Card) {
	for i := 1; i < len(c); i++ {
		for j := i; j > 0 && (c[j].Rank > c[j-1].Rank || (c[j].Rank == c[j-1].Rank && c[j].Suit < c[j-1].Suit)); j-- {
			c[j], c[j-1] = c[j-1], c[j]
		}
	}
}
