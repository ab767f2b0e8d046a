package evaluator

import (
	"context"
	"testing"

	"github.com/lox/pokerrooms/internal/deck"
	"github.com/lox/pokerrooms/internal/randutil"
)

func BenchmarkEvaluate7(b *testing.B) {
	rng := randutil.New(1)
	hands := make([][]deck.Card, 1024)
	for i := range hands {
		d := deck.NewDeckWithRand(rng)
		d.Shuffle()
		hands[i], _ = d.Deal(7)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = bestScore(hands[i%len(hands)])
	}
}

func BenchmarkEquityPreflop(b *testing.B) {
	players := [][]deck.Card{deck.MustParseCards("AsKs"), deck.MustParseCards("QdQh")}
	for i := 0; i < b.N; i++ {
		_, _ = Equity(context.Background(), players, nil, EquityOptions{Trials: DefaultTrials, Rand: randutil.New(int64(i))})
	}
}

func BenchmarkFindOutsFlop(b *testing.B) {
	hand := deck.MustParseCards("5c6c")
	opp := [][]deck.Card{deck.MustParseCards("AsAh")}
	board := deck.MustParseCards("KhKd2s")
	for i := 0; i < b.N; i++ {
		_, _ = FindOuts(hand, opp, board, 5, 0)
	}
}
