package evaluator

import (
	"testing"

	"github.com/lox/pokerrooms/internal/deck"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindOutsFlushDrawAgainstStraight(t *testing.T) {
	hand := deck.MustParseCards("Ah3h")
	opponent := deck.MustParseCards("9sTs")
	board := deck.MustParseCards("QhJh8d2c")

	outs, err := FindOuts(hand, [][]deck.Card{opponent}, board, 20, 0)
	require.NoError(t, err)
	assert.Equal(t, OutsDirect, outs.Kind)

	want := deck.MustParseCards("2h4h5h6h7h8h9hThKh")
	assert.ElementsMatch(t, want, outs.Cards)
	for _, c := range outs.Cards {
		assert.Equal(t, deck.Hearts, c.Suit, "%s does not complete the flush", c)
	}
}

func TestFindOutsRunnerRunner(t *testing.T) {
	hand := deck.MustParseCards("5c6c")
	opponent := deck.MustParseCards("AsAh")
	board := deck.MustParseCards("KhKd2s")

	outs, err := FindOuts(hand, [][]deck.Card{opponent}, board, 5, 0)
	require.NoError(t, err)
	assert.Equal(t, OutsRunnerRunner, outs.Kind)
	assert.Empty(t, outs.Cards)
}

func TestFindOutsDrawingDead(t *testing.T) {
	hand := deck.MustParseCards("2c2d")
	opponent := deck.MustParseCards("AsAh")
	board := deck.MustParseCards("AdAcKh7s")

	outs, err := FindOuts(hand, [][]deck.Card{opponent}, board, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, OutsDrawingDead, outs.Kind)
}

func TestFindOutsWithoutCardsToCome(t *testing.T) {
	hand := deck.MustParseCards("2c2d")
	opponent := deck.MustParseCards("AsAh")
	board := deck.MustParseCards("AdKcKh7s3d")

	outs, err := FindOuts(hand, [][]deck.Card{opponent}, board, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, OutsDrawingDead, outs.Kind)

	outs, err = FindOuts(hand, [][]deck.Card{opponent}, board, 50, 0)
	require.NoError(t, err)
	assert.Equal(t, OutsNone, outs.Kind)
}

func TestFindOutsThresholdIsConfigurable(t *testing.T) {
	hand := deck.MustParseCards("2c2d")
	opponent := deck.MustParseCards("AsAh")

	outs, err := FindOuts(hand, [][]deck.Card{opponent}, nil, 4, 5)
	require.NoError(t, err)
	assert.Equal(t, OutsDrawingDead, outs.Kind)

	outs, err = FindOuts(hand, [][]deck.Card{opponent}, nil, 4, 0)
	require.NoError(t, err)
	assert.Equal(t, OutsNone, outs.Kind)
}
