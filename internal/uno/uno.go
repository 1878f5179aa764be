package uno

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"slices"
)

const (
	MinPlayers = 2
	MaxPlayers = 4
	HandSize   = 7
)

type Player struct {
	Pseudo string `json:"pseudo"`
	Hand   []Card `json:"hand"`
}

// Game holds one UNO deal. Cards only ever move between the deck, the hands
// and the discard pile, so CardCount stays at DeckSize for the whole game.
type Game struct {
	Players   []*Player `json:"players"`
	Deck      *Deck     `json:"deck"`
	Discard   []Card    `json:"discard"`
	Color     Color     `json:"color"`
	Direction int       `json:"direction"`
	Turn      int       `json:"turn"`

	rng *rand.Rand
}

type Option func(*Game)

// WithRand fixes the shuffle source, for reproducible deals.
func WithRand(r *rand.Rand) Option {
	return func(g *Game) {
		g.rng = r
	}
}

func NewGame(opts ...Option) *Game {
	g := &Game{
		Direction: 1,
		rng:       rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *Game) MinPlayers() int { return MinPlayers }
func (g *Game) MaxPlayers() int { return MaxPlayers }

// Start shuffles a fresh deck, deals HandSize cards to each player in turn
// order and turns up the first numeral card. The first player to join leads.
func (g *Game) Start(players []string) error {
	if len(players) < MinPlayers || len(players) > MaxPlayers {
		return fmt.Errorf("uno needs %d to %d players, got %d", MinPlayers, MaxPlayers, len(players))
	}

	g.Deck = NewDeck()
	g.Deck.Shuffle(g.rng)
	g.Players = make([]*Player, len(players))
	for i, pseudo := range players {
		g.Players[i] = &Player{Pseudo: pseudo, Hand: make([]Card, 0, HandSize)}
	}
	for range HandSize {
		for _, p := range g.Players {
			p.Hand = append(p.Hand, g.Deck.Draw(1)...)
		}
	}

	// Action and wild cards go back under the pile until a numeral turns up.
	for {
		card := g.Deck.Draw(1)[0]
		if card.Value.IsNumber() {
			g.Discard = []Card{card}
			g.Color = card.Color
			break
		}
		g.Deck.PutUnder(card)
	}

	g.Direction = 1
	g.Turn = 0
	return nil
}

func (g *Game) Current() int { return g.Turn }

// Top is the card that sets the value to match.
func (g *Game) Top() Card {
	return g.Discard[len(g.Discard)-1]
}

// CanPlay reports whether card may go on the discard pile. Wild draw fours
// are allowed whatever else the player holds.
func (g *Game) CanPlay(card Card) bool {
	return card.IsWild() || card.Color == g.Color || card.Value == g.Top().Value
}

// CardCount totals every card in the deck, the discard pile and the hands.
func (g *Game) CardCount() int {
	n := g.Deck.Count() + len(g.Discard)
	for _, p := range g.Players {
		n += len(p.Hand)
	}
	return n
}

// Remove returns a departing player's hand under the deck and hands the turn
// to whoever would have played after them.
func (g *Game) Remove(player int) error {
	if player < 0 || player >= len(g.Players) {
		return fmt.Errorf("no player at index %d", player)
	}
	if len(g.Players) <= MinPlayers {
		return errors.New("too few players to continue")
	}

	g.Deck.PutUnder(g.Players[player].Hand...)

	switch {
	case player < g.Turn:
		g.Turn--
	case player == g.Turn && g.Direction < 0:
		g.Turn = player - 1
	}
	g.Players = slices.Delete(g.Players, player, player+1)
	g.Turn = mod(g.Turn, len(g.Players))
	return nil
}

// next is the seat steps turns away from from, following the direction of play.
func (g *Game) next(from, steps int) int {
	return mod(from+g.Direction*steps, len(g.Players))
}

// drawOne takes the top of the deck, first shuffling the discard pile (all
// but its top card) back in when the deck has run out.
func (g *Game) drawOne() (Card, bool) {
	if g.Deck.Count() == 0 {
		g.reshuffle()
	}
	if g.Deck.Count() == 0 {
		return Card{}, false
	}
	return g.Deck.Draw(1)[0], true
}

func (g *Game) reshuffle() {
	if len(g.Discard) <= 1 {
		return
	}
	top := g.Top()
	g.Deck.Cards = append(g.Deck.Cards, g.Discard[:len(g.Discard)-1]...)
	g.Discard = []Card{top}
	g.Deck.Shuffle(g.rng)
}

// give deals up to n cards to a player and reports how many they got.
func (g *Game) give(player, n int) int {
	got := 0
	for range n {
		card, ok := g.drawOne()
		if !ok {
			break
		}
		g.Players[player].Hand = append(g.Players[player].Hand, card)
		got++
	}
	return got
}

func mod(a, n int) int {
	return ((a % n) + n) % n
}
