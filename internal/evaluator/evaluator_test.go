package evaluator

import (
	"testing"

	"github.com/lox/pokerrooms/internal/deck"
	"github.com/lox/pokerrooms/internal/randutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func eval(t *testing.T, s string) Hand {
	t.Helper()
	h, err := Evaluate(deck.MustParseCards(s))
	require.NoError(t, err)
	return h
}

func TestEvaluateCategories(t *testing.T) {
	tests := []struct {
		name     string
		cards    string
		expected Category
		ranks    []deck.Rank
	}{
		{"royal flush", "AsKsQsJsTs9h8h", RoyalFlush, []deck.Rank{deck.Ace}},
		{"straight flush", "9s8s7s6s5s4h3h", StraightFlush, []deck.Rank{deck.Nine}},
		{"steel wheel", "As2s3s4s5sKhKd", StraightFlush, []deck.Rank{deck.Five}},
		{"four of a kind", "AsAhAdAcKs2h3h", FourOfAKind, []deck.Rank{deck.Ace, deck.King}},
		{"full house", "AsAhAdKsKh2h3h", FullHouse, []deck.Rank{deck.Ace, deck.King}},
		{"full house from two trips", "KsKhKd2s2h2dAc", FullHouse, []deck.Rank{deck.King, deck.Two}},
		{"flush keeps top five", "AsKsQs8s6s4s3h", Flush, []deck.Rank{deck.Ace, deck.King, deck.Queen, deck.Eight, deck.Six}},
		{"straight", "AsKhQdJcTs9h8h", Straight, []deck.Rank{deck.Ace}},
		{"wheel", "Ah2c3d4s5h9cKd", Straight, []deck.Rank{deck.Five}},
		{"highest of two straights", "4h5c6d7s8h9cTd", Straight, []deck.Rank{deck.Ten}},
		{"three of a kind", "AsAhAdKs9c7h5h", ThreeOfAKind, []deck.Rank{deck.Ace, deck.King, deck.Nine}},
		{"two pair picks best kicker", "AsAhKdKs9c7hQh", TwoPair, []deck.Rank{deck.Ace, deck.King, deck.Queen}},
		{"three pairs", "AsAhKdKsQcQh2d", TwoPair, []deck.Rank{deck.Ace, deck.King, deck.Queen}},
		{"one pair", "AsAhKdQs9c7h5h", OnePair, []deck.Rank{deck.Ace, deck.King, deck.Queen, deck.Nine}},
		{"high card", "AsKhQd9s7c5h3h", HighCard, []deck.Rank{deck.Ace, deck.King, deck.Queen, deck.Nine, deck.Seven}},
		{"five cards", "2h3h4h5h7d", HighCard, []deck.Rank{deck.Seven, deck.Five, deck.Four, deck.Three, deck.Two}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := eval(t, tt.cards)
			assert.Equal(t, tt.expected, h.Category, h.String())
			assert.Equal(t, tt.ranks, h.Ranks)
			assert.Len(t, h.Cards, 5)
		})
	}
}

func TestCategoryOrdering(t *testing.T) {
	ordered := []string{
		"AsKsQsJsTs",
		"AsAhAdAc2h",
		"KsKhKd2c2h",
		"AhJh9h6h3h",
		"AsKhQdJcTs",
	}
	for i := 1; i < len(ordered); i++ {
		stronger := eval(t, ordered[i-1])
		weaker := eval(t, ordered[i])
		assert.Equal(t, 1, stronger.Compare(weaker), "%s should beat %s", stronger, weaker)
		assert.Equal(t, -1, weaker.Compare(stronger))
	}
}

func TestTieBreaks(t *testing.T) {
	tests := []struct {
		name   string
		a, b   string
		expect int
	}{
		{"kicker decides pair", "AsAhKd9c4h", "AdAcQs9d4c", 1},
		{"second pair decides", "AsAhKdKc4h", "AdAcQsQd4c", 1},
		{"wheel loses to six high", "Ah2c3d4s5h", "2d3h4c5d6s", -1},
		{"flush compares all five", "AhJh9h6h3h", "AsJs9s6s2s", 1},
		{"suits never break ties", "AhKdQc9s7h", "AsKhQd9c7s", 0},
		{"full house trips first", "3s3h3d2c2h", "2s2h2dAcAh", 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expect, eval(t, tt.a).Compare(eval(t, tt.b)))
		})
	}
}

func TestEvaluateErrors(t *testing.T) {
	_, err := Evaluate(deck.MustParseCards("AsKs"))
	assert.ErrorIs(t, err, ErrCardCount)

	_, err = Evaluate(deck.MustParseCards("AsKsQsJsTs9s8s7s"))
	assert.ErrorIs(t, err, ErrCardCount)

	_, err = Evaluate(deck.MustParseCards("AsAsQsJsTs"))
	assert.ErrorIs(t, err, ErrDuplicateCard)
}

// Equal scores must mean identical category and tie-break ranks.
func TestScoreIsTotalOrder(t *testing.T) {
	rng := randutil.New(2024)
	seen := make(map[Score]Hand)
	for i := 0; i < 20000; i++ {
		d := deck.NewDeckWithRand(rng)
		d.Shuffle()
		cards, err := d.Deal(5)
		require.NoError(t, err)
		h := MustEvaluate(cards)
		if prev, ok := seen[h.Score()]; ok {
			require.Equal(t, prev.Category, h.Category)
			require.Equal(t, prev.Ranks, h.Ranks)
		}
		seen[h.Score()] = h
	}
}

func TestEvaluateMatchesBestScore(t *testing.T) {
	rng := randutil.New(77)
	for i := 0; i < 2000; i++ {
		d := deck.NewDeckWithRand(rng)
		d.Shuffle()
		cards, err := d.Deal(7)
		require.NoError(t, err)
		assert.Equal(t, MustEvaluate(cards).Score(), bestScore(cards))
	}
}
