package uno

import (
	"fmt"
	"math/rand/v2"
)

type Color string

const (
	Red    Color = "red"
	Blue   Color = "blue"
	Green  Color = "green"
	Yellow Color = "yellow"
	Wild   Color = "wild"
)

// BaseColors are the four colors a wild card can name.
var BaseColors = []Color{Red, Blue, Green, Yellow}

func (c Color) IsBase() bool {
	switch c {
	case Red, Blue, Green, Yellow:
		return true
	}
	return false
}

type Value string

const (
	Skip      Value = "skip"
	Reverse   Value = "reverse"
	DrawTwo   Value = "draw2"
	WildCard  Value = "wild"
	WildDraw4 Value = "wild-draw4"
)

// Number returns the value for a numeral card.
func Number(n int) Value {
	return Value(fmt.Sprint(n))
}

func (v Value) IsNumber() bool {
	return len(v) == 1 && v[0] >= '0' && v[0] <= '9'
}

type Card struct {
	Color Color `json:"color"`
	Value Value `json:"value"`
}

func (c Card) IsWild() bool {
	return c.Color == Wild
}

func (c Card) String() string {
	if c.IsWild() {
		return string(c.Value)
	}
	return fmt.Sprintf("%s %s", c.Color, c.Value)
}

// DeckSize is the number of cards in a standard UNO deck.
const DeckSize = 108

// Deck is a pile of cards drawn from the end of the slice.
type Deck struct {
	Cards []Card `json:"cards"`
}

// NewDeck builds the 108-card deck: per color one 0, two of each 1-9, two of
// each action card; plus four wilds and four wild draw fours.
func NewDeck() *Deck {
	cards := make([]Card, 0, DeckSize)
	for _, color := range BaseColors {
		cards = append(cards, Card{color, Number(0)})
		for range 2 {
			for n := 1; n <= 9; n++ {
				cards = append(cards, Card{color, Number(n)})
			}
			cards = append(cards, Card{color, Skip}, Card{color, Reverse}, Card{color, DrawTwo})
		}
	}
	for range 4 {
		cards = append(cards, Card{Wild, WildCard}, Card{Wild, WildDraw4})
	}
	return &Deck{cards}
}

func (d *Deck) Count() int {
	return len(d.Cards)
}

// Draw takes up to n cards off the top.
func (d *Deck) Draw(n int) []Card {
	n = min(n, len(d.Cards))
	drawn := make([]Card, n)
	for i := range n {
		drawn[i] = d.Cards[len(d.Cards)-1-i]
	}
	d.Cards = d.Cards[:len(d.Cards)-n]
	return drawn
}

// PutUnder slides cards beneath the pile.
func (d *Deck) PutUnder(cards ...Card) {
	d.Cards = append(append(make([]Card, 0, len(cards)+len(d.Cards)), cards...), d.Cards...)
}

func (d *Deck) Shuffle(r *rand.Rand) {
	r.Shuffle(len(d.Cards), func(i, j int) {
		d.Cards[i], d.Cards[j] = d.Cards[j], d.Cards[i]
	})
}
