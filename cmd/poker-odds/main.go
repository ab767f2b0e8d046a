package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	rand "math/rand/v2"

	"github.com/alecthomas/kong"
	"github.com/charmbracelet/lipgloss"

	"github.com/lox/pokerrooms/internal/deck"
	"github.com/lox/pokerrooms/internal/evaluator"
	"github.com/lox/pokerrooms/internal/randutil"
)

type CLI struct {
	Hands      []string `arg:"" help:"Player hands, e.g. 'AcKd' 'QhJs'" required:"true"`
	Board      string   `short:"b" help:"Community board cards (e.g., 'Td7s8h')"`
	Outs       bool     `short:"o" help:"Show outs for every hand that is behind"`
	Iterations int      `short:"i" help:"Number of Monte Carlo iterations" default:"100000"`
	Seed       *int64   `help:"Random seed for reproducible results"`
}

var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15"))

	handStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("14"))

	winStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("10"))

	tieStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("11"))

	categoryStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("12"))
)

func main() {
	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("poker-odds"),
		kong.Description("Hold'em equity and outs calculator"))

	if err := run(context.Background(), os.Stdout, cli); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		ctx.Exit(1)
	}
}

type report struct {
	hands    [][]deck.Card
	board    []deck.Card
	equity   evaluator.EquityResult
	outs     []*evaluator.Outs
	made     []string
	duration time.Duration
}

func run(ctx context.Context, w io.Writer, cli CLI) error {
	hands, err := parseHands(cli.Hands)
	if err != nil {
		return fmt.Errorf("parsing hands: %w", err)
	}
	if len(hands) < 2 {
		return fmt.Errorf("need at least two hands, got %d", len(hands))
	}

	var board []deck.Card
	if cli.Board != "" {
		if board, err = deck.ParseCards(cli.Board); err != nil {
			return fmt.Errorf("parsing board: %w", err)
		}
		if len(board) > 5 {
			return fmt.Errorf("board cannot have more than 5 cards")
		}
	}

	if err := validateNoDuplicates(hands, board); err != nil {
		return err
	}

	rep, err := calculate(ctx, hands, board, cli.Iterations, rngFor(cli.Seed), cli.Outs)
	if err != nil {
		return err
	}
	display(w, rep)
	return nil
}

func rngFor(seed *int64) *rand.Rand {
	if seed != nil {
		return randutil.New(*seed)
	}
	return randutil.NewSecure()
}

func parseHands(handStrings []string) ([][]deck.Card, error) {
	var hands [][]deck.Card

	for i, handStr := range handStrings {
		hand, err := deck.ParseCards(strings.ReplaceAll(strings.TrimSpace(handStr), " ", ""))
		if err != nil {
			return nil, fmt.Errorf("hand %d: %v", i+1, err)
		}
		if len(hand) != 2 {
			return nil, fmt.Errorf("hand %d: must contain exactly 2 cards, got %d", i+1, len(hand))
		}
		hands = append(hands, hand)
	}

	return hands, nil
}

func validateNoDuplicates(hands [][]deck.Card, board []deck.Card) error {
	seen := make(map[deck.Card]bool)

	for _, card := range board {
		if seen[card] {
			return fmt.Errorf("duplicate card found: %s", card)
		}
		seen[card] = true
	}

	for i, hand := range hands {
		for _, card := range hand {
			if seen[card] {
				return fmt.Errorf("duplicate card found in hand %d: %s", i+1, card)
			}
			seen[card] = true
		}
	}

	return nil
}

func calculate(ctx context.Context, hands [][]deck.Card, board []deck.Card, iterations int, rng *rand.Rand, withOuts bool) (report, error) {
	start := time.Now()
	eq, err := evaluator.Equity(ctx, hands, board, evaluator.EquityOptions{Trials: iterations, Rand: rng})
	if err != nil {
		return report{}, err
	}

	rep := report{
		hands:  hands,
		board:  board,
		equity: eq,
		outs:   make([]*evaluator.Outs, len(hands)),
		made:   make([]string, len(hands)),
	}

	leader := 0
	for i, pct := range eq.Percent {
		if pct > eq.Percent[leader] {
			leader = i
		}
	}

	for i, hand := range hands {
		if len(board) >= 3 {
			made, err := evaluator.Evaluate(append(append([]deck.Card(nil), hand...), board...))
			if err != nil {
				return report{}, err
			}
			rep.made[i] = made.Category.String()
		}

		if !withOuts || i == leader {
			continue
		}
		opponents := make([][]deck.Card, 0, len(hands)-1)
		for j, other := range hands {
			if j != i {
				opponents = append(opponents, other)
			}
		}
		outs, err := evaluator.FindOuts(hand, opponents, board, eq.Percent[i], 0)
		if err != nil {
			return report{}, err
		}
		rep.outs[i] = &outs
	}

	rep.duration = time.Since(start)
	return rep, nil
}

func display(out io.Writer, rep report) {
	if len(rep.board) > 0 {
		fmt.Fprintf(out, "%s\n", headerStyle.Render("board"))
		fmt.Fprintf(out, "%s\n\n", deck.FormatCards(rep.board))
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)

	header := []string{headerStyle.Render("hand"), headerStyle.Render("equity"), headerStyle.Render("win"), headerStyle.Render("tie")}
	if len(rep.board) >= 3 {
		header = append(header, headerStyle.Render("made"))
	}
	header = append(header, headerStyle.Render("outs"))
	fmt.Fprintln(w, strings.Join(header, "\t"))

	trials := float64(rep.equity.Trials)
	for i, hand := range rep.hands {
		row := []string{
			handStyle.Render(deck.FormatCards(hand)),
			winStyle.Render(fmt.Sprintf("%.1f%%", rep.equity.Percent[i])),
			winStyle.Render(fmt.Sprintf("%.1f%%", float64(rep.equity.Wins[i])/trials*100)),
			tieStyle.Render(fmt.Sprintf("%.1f%%", float64(rep.equity.Ties[i])/trials*100)),
		}
		if len(rep.board) >= 3 {
			row = append(row, categoryStyle.Render(rep.made[i]))
		}
		outs := "."
		if rep.outs[i] != nil {
			outs = rep.outs[i].String()
		}
		row = append(row, categoryStyle.Render(outs))
		fmt.Fprintln(w, strings.Join(row, "\t"))
	}

	_ = w.Flush()

	fmt.Fprintf(out, "\n%d iterations in %v\n", rep.equity.Trials, rep.duration.Truncate(time.Millisecond))
}
