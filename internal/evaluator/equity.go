package evaluator

import (
	"context"
	"errors"
	"fmt"
	rand "math/rand/v2"
	"runtime"

	"github.com/lox/pokerrooms/internal/deck"
	"github.com/lox/pokerrooms/internal/randutil"
	"golang.org/x/sync/errgroup"
)

// DefaultTrials is the number of Monte Carlo boards simulated when none is given.
const DefaultTrials = 10000

const maxWorkers = 8

// ErrTooFewHands is returned when equity is requested for fewer than two hands.
var ErrTooFewHands = errors.New("equity needs at least two hands")

// EquityResult holds the simulated share of the pot for each hand.
type EquityResult struct {
	// Percent is each hand's equity in percent, in input order. The values
	// sum to 100 up to floating point rounding.
	Percent []float64
	// Wins counts trials each hand won outright.
	Wins []int
	// Ties counts trials each hand split.
	Ties   []int
	Trials int
}

// workerResult holds the results from a Monte Carlo worker
type workerResult struct {
	points []float64
	wins   []int
	ties   []int
}

// EquityOptions tune a simulation.
type EquityOptions struct {
	Trials  int
	Workers int
	// Rand seeds the per-worker generators. Nil uses a crypto-seeded source.
	Rand *rand.Rand
}

// Equity estimates each hand's share of the pot by dealing the missing
// community cards at random. Hands must hold two cards each and the board
// at most five.
func Equity(ctx context.Context, hands [][]deck.Card, board []deck.Card, opts EquityOptions) (EquityResult, error) {
	if err := validateEquityInput(hands, board); err != nil {
		return EquityResult{}, err
	}

	trials := opts.Trials
	if trials <= 0 {
		trials = DefaultTrials
	}

	missing := 5 - len(board)
	if missing == 0 {
		return showdownEquity(hands, board), nil
	}

	available := deck.Without(append([][]deck.Card{board}, hands...)...)

	workers := opts.Workers
	if workers <= 0 {
		workers = min(runtime.NumCPU(), maxWorkers)
	}
	workers = max(1, min(workers, trials))

	parent := opts.Rand
	if parent == nil {
		parent = randutil.NewSecure()
	}
	seeds := randutil.Seeds(parent, workers)

	results := make([]workerResult, workers)
	g, gctx := errgroup.WithContext(ctx)
	for w := 0; w < workers; w++ {
		share := trials / workers
		if w < trials%workers {
			share++
		}
		g.Go(func() error {
			res, err := runEquityWorker(gctx, hands, board, available, share, randutil.New(seeds[w]))
			if err != nil {
				return err
			}
			results[w] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return EquityResult{}, fmt.Errorf("equity simulation: %w", err)
	}

	out := EquityResult{
		Percent: make([]float64, len(hands)),
		Wins:    make([]int, len(hands)),
		Ties:    make([]int, len(hands)),
		Trials:  trials,
	}
	points := make([]float64, len(hands))
	for _, r := range results {
		for i := range hands {
			points[i] += r.points[i]
			out.Wins[i] += r.wins[i]
			out.Ties[i] += r.ties[i]
		}
	}
	for i := range points {
		out.Percent[i] = points[i] * 100 / float64(trials)
	}
	return out, nil
}

func runEquityWorker(ctx context.Context, hands [][]deck.Card, board, available []deck.Card, trials int, rng *rand.Rand) (workerResult, error) {
	res := workerResult{
		points: make([]float64, len(hands)),
		wins:   make([]int, len(hands)),
		ties:   make([]int, len(hands)),
	}

	pool := append([]deck.Card(nil), available...)
	missing := 5 - len(board)
	full := make([]deck.Card, 5)
	copy(full, board)
	seven := make([]deck.Card, 0, 7)
	scores := make([]Score, len(hands))

	for t := 0; t < trials; t++ {
		if t&255 == 0 {
			if err := ctx.Err(); err != nil {
				return res, err
			}
		}

		// partial Fisher-Yates: the first missing slots become the runout
		for i := 0; i < missing; i++ {
			j := i + rng.IntN(len(pool)-i)
			pool[i], pool[j] = pool[j], pool[i]
			full[len(board)+i] = pool[i]
		}

		var best Score
		for i, h := range hands {
			seven = append(seven[:0], h...)
			seven = append(seven, full...)
			scores[i] = bestScore(seven)
			if scores[i] > best {
				best = scores[i]
			}
		}
		award(scores, best, res.points, res.wins, res.ties)
	}
	return res, nil
}

func award(scores []Score, best Score, points []float64, wins, ties []int) {
	winners := 0
	for _, s := range scores {
		if s == best {
			winners++
		}
	}
	share := 1 / float64(winners)
	for i, s := range scores {
		if s != best {
			continue
		}
		points[i] += share
		if winners == 1 {
			wins[i]++
		} else {
			ties[i]++
		}
	}
}

func showdownEquity(hands [][]deck.Card, board []deck.Card) EquityResult {
	out := EquityResult{
		Percent: make([]float64, len(hands)),
		Wins:    make([]int, len(hands)),
		Ties:    make([]int, len(hands)),
		Trials:  1,
	}
	scores := make([]Score, len(hands))
	var best Score
	for i, h := range hands {
		scores[i] = bestScore(append(append([]deck.Card(nil), h...), board...))
		if scores[i] > best {
			best = scores[i]
		}
	}
	points := make([]float64, len(hands))
	award(scores, best, points, out.Wins, out.Ties)
	for i := range points {
		out.Percent[i] = points[i] * 100
	}
	return out
}

func validateEquityInput(hands [][]deck.Card, board []deck.Card) error {
	if len(hands) < 2 {
		return ErrTooFewHands
	}
	if len(board) > 5 {
		return fmt.Errorf("board has %d cards, at most 5 allowed", len(board))
	}
	all := append([]deck.Card(nil), board...)
	for i, h := range hands {
		if len(h) != 2 {
			return fmt.Errorf("hand %d has %d cards, want 2", i+1, len(h))
		}
		all = append(all, h...)
	}
	return checkDuplicates(all)
}
