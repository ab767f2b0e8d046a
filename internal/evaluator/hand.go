package evaluator

import (
	"fmt"
	"strings"

	"github.com/lox/pokerrooms/internal/deck"
)

// Category is the poker category of a five card hand
type Category int

const (
	HighCard Category = iota
	OnePair
	TwoPair
	ThreeOfAKind
	Straight
	Flush
	FullHouse
	FourOfAKind
	StraightFlush
	RoyalFlush
)

// String returns the string representation of a category
func (c Category) String() string {
	switch c {
	case HighCard:
		return "High Card"
	case OnePair:
		return "One Pair"
	case TwoPair:
		return "Two Pair"
	case ThreeOfAKind:
		return "Three of a Kind"
	case Straight:
		return "Straight"
	case Flush:
		return "Flush"
	case FullHouse:
		return "Full House"
	case FourOfAKind:
		return "Four of a Kind"
	case StraightFlush:
		return "Straight Flush"
	case RoyalFlush:
		return "Royal Flush"
	default:
		return "Unknown"
	}
}

// Hand is the best five card hand found in a set of cards.
type Hand struct {
	Category Category
	// Ranks are the tie-break ranks, primary ranks first then kickers,
	// highest first. A wheel straight reports Five as its high rank.
	Ranks []deck.Rank
	Cards []deck.Card
	score Score
}

// Score packs category and tie-break ranks into one comparable integer.
type Score uint32

func packScore(cat Category, ranks []deck.Rank) Score {
	s := Score(cat) << 20
	for i, r := range ranks {
		s |= Score(r) << (16 - 4*i)
	}
	return s
}

// Score returns the packed strength of the hand.
func (h Hand) Score() Score {
	return h.score
}

// String returns a string representation of the hand
func (h Hand) String() string {
	cardStrs := make([]string, len(h.Cards))
	for i, card := range h.Cards {
		cardStrs[i] = card.String()
	}
	return fmt.Sprintf("%s [%s]", h.Category, strings.Join(cardStrs, " "))
}

// Compare compares two hands and returns:
// -1 if h is weaker than other
//
//	0 if they tie
//	1 if h is stronger than other
func (h Hand) Compare(other Hand) int {
	switch {
	case h.score < other.score:
		return -1
	case h.score > other.score:
		return 1
	default:
		return 0
	}
}

// Beats reports whether h is strictly stronger than other.
func (h Hand) Beats(other Hand) bool {
	return h.score > other.score
}
