package deck

import (
	"errors"
	"fmt"
	rand "math/rand/v2"

	"github.com/lox/pokerrooms/internal/randutil"
)

// ErrNotEnoughCards is returned when a deal asks for more cards than remain.
var ErrNotEnoughCards = errors.New("not enough cards in deck")

// Deck represents a deck of playing cards
type Deck struct {
	cards []Card
	rng   *rand.Rand
}

// NewDeck creates a standard 52-card deck, unshuffled, that shuffles with a
// crypto-seeded generator.
func NewDeck() *Deck {
	return NewDeckWithRand(randutil.NewSecure())
}

// NewDeckWithRand creates a standard 52-card deck shuffled by rng.
func NewDeckWithRand(rng *rand.Rand) *Deck {
	return &Deck{cards: FullDeck(), rng: rng}
}

// NewDeckWithout creates a deck holding every card except the excluded ones.
func NewDeckWithout(rng *rand.Rand, excluded ...[]Card) *Deck {
	d := NewDeckWithRand(rng)
	for _, cards := range excluded {
		d.Remove(cards...)
	}
	return d
}

// NewStackedDeck creates a deck that deals top first, in order, followed by
// the remaining cards in suit then rank order. Shuffling it discards the
// arrangement.
func NewStackedDeck(top []Card) *Deck {
	cards := append(append([]Card(nil), top...), Without(top)...)
	return &Deck{cards: cards, rng: randutil.New(0)}
}

// FullDeck returns all 52 cards in suit then rank order.
func FullDeck() []Card {
	cards := make([]Card, 0, 52)
	for suit := Spades; suit <= Clubs; suit++ {
		for rank := Two; rank <= Ace; rank++ {
			cards = append(cards, NewCard(suit, rank))
		}
	}
	return cards
}

// Without returns every card of a full deck except the excluded ones, in
// suit then rank order.
func Without(excluded ...[]Card) []Card {
	var drop [52]bool
	for _, cards := range excluded {
		for _, c := range cards {
			drop[c.Index()] = true
		}
	}
	out := make([]Card, 0, 52)
	for _, c := range FullDeck() {
		if !drop[c.Index()] {
			out = append(out, c)
		}
	}
	return out
}

// Shuffle randomizes the order of the remaining cards (Fisher-Yates).
func (d *Deck) Shuffle() {
	for i := len(d.cards) - 1; i > 0; i-- {
		j := d.rng.IntN(i + 1)
		d.cards[i], d.cards[j] = d.cards[j], d.cards[i]
	}
}

// Deal removes and returns the top n cards. It fails without dealing
// anything when fewer than n remain.
func (d *Deck) Deal(n int) ([]Card, error) {
	if n < 0 || n > len(d.cards) {
		return nil, fmt.Errorf("deal %d with %d remaining: %w", n, len(d.cards), ErrNotEnoughCards)
	}

	cards := make([]Card, n)
	copy(cards, d.cards[:n])
	d.cards = d.cards[n:]
	return cards, nil
}

// DealOne removes and returns the top card.
func (d *Deck) DealOne() (Card, error) {
	cards, err := d.Deal(1)
	if err != nil {
		return Card{}, err
	}
	return cards[0], nil
}

// Remove takes the given cards out of the deck if present.
func (d *Deck) Remove(cards ...Card) {
	if len(cards) == 0 {
		return
	}
	var drop [52]bool
	for _, c := range cards {
		drop[c.Index()] = true
	}
	kept := d.cards[:0]
	for _, c := range d.cards {
		if !drop[c.Index()] {
			kept = append(kept, c)
		}
	}
	d.cards = kept
}

// Cards returns a copy of the remaining cards in deal order.
func (d *Deck) Cards() []Card {
	out := make([]Card, len(d.cards))
	copy(out, d.cards)
	return out
}

// CardsRemaining returns the number of cards left in the deck
func (d *Deck) CardsRemaining() int {
	return len(d.cards)
}

// Reset restores the deck to a full 52-card deck and shuffles it
func (d *Deck) Reset() {
	d.cards = append(d.cards[:0], FullDeck()...)
	d.Shuffle()
}
