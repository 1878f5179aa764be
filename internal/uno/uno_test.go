package uno_test

import (
	"encoding/json"
	"math/rand/v2"
	"testing"

	"gameshub-server/internal/game"
	"gameshub-server/internal/uno"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seeded() uno.Option {
	return uno.WithRand(rand.New(rand.NewPCG(7, 11)))
}

// rigged starts a game and then replaces the top card and the hands so a
// test controls exactly what can be played.
func rigged(t *testing.T, top uno.Card, hands ...[]uno.Card) *uno.Game {
	t.Helper()
	names := []string{"A", "B", "C", "D"}[:len(hands)]
	g := uno.NewGame(seeded())
	require.NoError(t, g.Start(names))
	g.Discard = []uno.Card{top}
	g.Color = top.Color
	for i, hand := range hands {
		g.Players[i].Hand = hand
	}
	return g
}

func card(c uno.Color, v uno.Value) uno.Card {
	return uno.Card{Color: c, Value: v}
}

func TestNewDeck(t *testing.T) {
	assert := assert.New(t)

	deck := uno.NewDeck()
	assert.Equal(uno.DeckSize, deck.Count())

	perColor := map[uno.Color]int{}
	for _, c := range deck.Cards {
		perColor[c.Color]++
	}
	for _, color := range uno.BaseColors {
		assert.Equal(25, perColor[color], "color %s", color)
	}
	assert.Equal(8, perColor[uno.Wild])
}

func TestDeckDrawPastEnd(t *testing.T) {
	deck := &uno.Deck{Cards: []uno.Card{card(uno.Red, uno.Number(1)), card(uno.Blue, uno.Number(2))}}
	drawn := deck.Draw(5)
	assert.Equal(t, []uno.Card{card(uno.Blue, uno.Number(2)), card(uno.Red, uno.Number(1))}, drawn)
	assert.Zero(t, deck.Count())
}

func TestStartDeals(t *testing.T) {
	assert := assert.New(t)

	g := uno.NewGame(seeded())
	require.NoError(t, g.Start([]string{"A", "B", "C"}))

	for _, p := range g.Players {
		assert.Len(p.Hand, uno.HandSize)
	}
	assert.Len(g.Discard, 1)
	assert.True(g.Top().Value.IsNumber(), "first card %s should be a numeral", g.Top())
	assert.Equal(g.Top().Color, g.Color)
	assert.Equal(0, g.Current())
	assert.Equal(uno.DeckSize, g.CardCount())
}

func TestStartPlayerCount(t *testing.T) {
	g := uno.NewGame()
	assert.Error(t, g.Start([]string{"A"}))
	assert.Error(t, g.Start([]string{"A", "B", "C", "D", "E"}))
}

func TestSkipPassesOverNextPlayer(t *testing.T) {
	assert := assert.New(t)

	g := rigged(t, card(uno.Red, uno.Number(5)),
		[]uno.Card{card(uno.Red, uno.Skip), card(uno.Red, uno.Number(1))},
		[]uno.Card{card(uno.Blue, uno.Number(1))},
		[]uno.Card{card(uno.Blue, uno.Number(2))},
	)

	out, err := g.Play(0, 0, "")
	require.NoError(t, err)
	assert.False(out.Finished)
	assert.Equal(2, g.Current())
	assert.Contains(out.Message, "B is skipped")
}

func TestReverseWithTwoPlayersActsAsSkip(t *testing.T) {
	assert := assert.New(t)

	g := rigged(t, card(uno.Green, uno.Number(5)),
		[]uno.Card{card(uno.Green, uno.Reverse), card(uno.Red, uno.Number(1))},
		[]uno.Card{card(uno.Blue, uno.Number(1))},
	)

	_, err := g.Play(0, 0, "")
	require.NoError(t, err)
	assert.Equal(-1, g.Direction)
	assert.Equal(0, g.Current())
}

func TestReverseWithThreePlayers(t *testing.T) {
	assert := assert.New(t)

	g := rigged(t, card(uno.Green, uno.Number(5)),
		[]uno.Card{card(uno.Green, uno.Reverse), card(uno.Red, uno.Number(1))},
		[]uno.Card{card(uno.Blue, uno.Number(1))},
		[]uno.Card{card(uno.Blue, uno.Number(2))},
	)

	_, err := g.Play(0, 0, "")
	require.NoError(t, err)
	assert.Equal(2, g.Current())
}

func TestDrawTwoPenalizesNextPlayer(t *testing.T) {
	assert := assert.New(t)

	g := rigged(t, card(uno.Yellow, uno.Number(5)),
		[]uno.Card{card(uno.Yellow, uno.DrawTwo), card(uno.Red, uno.Number(1))},
		[]uno.Card{card(uno.Blue, uno.Number(1))},
		[]uno.Card{card(uno.Blue, uno.Number(2))},
	)

	out, err := g.Play(0, 0, "")
	require.NoError(t, err)
	assert.Len(g.Players[1].Hand, 3)
	assert.Equal(2, g.Current())
	assert.Contains(out.Message, "B draws 2")
}

func TestWildDrawFour(t *testing.T) {
	assert := assert.New(t)

	g := rigged(t, card(uno.Yellow, uno.Number(5)),
		[]uno.Card{card(uno.Wild, uno.WildDraw4), card(uno.Yellow, uno.Number(1))},
		[]uno.Card{card(uno.Blue, uno.Number(1))},
	)

	out, err := g.Play(0, 0, uno.Blue)
	require.NoError(t, err)
	assert.Equal(uno.Blue, g.Color)
	assert.Len(g.Players[1].Hand, 5)
	assert.Equal(0, g.Current())
	assert.Contains(out.Message, "chose blue")
}

func TestWildNeedsColor(t *testing.T) {
	assert := assert.New(t)

	hand := []uno.Card{card(uno.Wild, uno.WildCard), card(uno.Red, uno.Number(1))}
	g := rigged(t, card(uno.Yellow, uno.Number(5)), hand, []uno.Card{card(uno.Blue, uno.Number(1))})

	_, err := g.Play(0, 0, "")
	assert.ErrorIs(err, game.ErrMissingColor)
	_, err = g.Play(0, 0, uno.Wild)
	assert.ErrorIs(err, game.ErrMissingColor)

	assert.Len(g.Players[0].Hand, 2)
	assert.Len(g.Discard, 1)
	assert.Equal(0, g.Current())
}

func TestMismatchedCardRejected(t *testing.T) {
	assert := assert.New(t)

	g := rigged(t, card(uno.Yellow, uno.Number(5)),
		[]uno.Card{card(uno.Red, uno.Number(1)), card(uno.Red, uno.Number(5))},
		[]uno.Card{card(uno.Blue, uno.Number(1))},
	)

	_, err := g.Play(0, 0, "")
	assert.ErrorIs(err, game.ErrInvalidCard)
	_, err = g.Play(0, 9, "")
	assert.ErrorIs(err, game.ErrInvalidCard)
	assert.Len(g.Players[0].Hand, 2)

	// Same value, different color.
	_, err = g.Play(0, 1, "")
	assert.NoError(err)
	assert.Equal(uno.Red, g.Color)
}

func TestLastCardWins(t *testing.T) {
	assert := assert.New(t)

	g := rigged(t, card(uno.Red, uno.Number(5)),
		[]uno.Card{card(uno.Red, uno.DrawTwo)},
		[]uno.Card{card(uno.Blue, uno.Number(1))},
	)

	out, err := g.Play(0, 0, "")
	require.NoError(t, err)
	assert.True(out.Finished)
	assert.Equal(0, out.Winner)
	assert.Len(g.Players[1].Hand, 1, "winning card has no effect")
}

func TestDrawAlwaysPasses(t *testing.T) {
	assert := assert.New(t)

	g := rigged(t, card(uno.Red, uno.Number(5)),
		[]uno.Card{card(uno.Red, uno.Number(1))},
		[]uno.Card{card(uno.Blue, uno.Number(1))},
	)

	out := g.Draw(0)
	assert.False(out.Finished)
	assert.Len(g.Players[0].Hand, 2)
	assert.Equal(1, g.Current())
}

func TestDrawReshufflesDiscard(t *testing.T) {
	assert := assert.New(t)

	g := rigged(t, card(uno.Red, uno.Number(5)),
		[]uno.Card{card(uno.Red, uno.Number(1))},
		[]uno.Card{card(uno.Blue, uno.Number(1))},
	)
	g.Deck.Cards = nil
	g.Discard = []uno.Card{
		card(uno.Green, uno.Number(1)),
		card(uno.Green, uno.Number(2)),
		card(uno.Green, uno.Number(3)),
		card(uno.Red, uno.Number(5)),
	}

	g.Draw(0)
	assert.Equal([]uno.Card{card(uno.Red, uno.Number(5))}, g.Discard)
	assert.Equal(2, g.Deck.Count())
	assert.Len(g.Players[0].Hand, 2)
}

func TestDrawWithNothingLeft(t *testing.T) {
	g := rigged(t, card(uno.Red, uno.Number(5)),
		[]uno.Card{card(uno.Red, uno.Number(1))},
		[]uno.Card{card(uno.Blue, uno.Number(1))},
	)
	g.Deck.Cards = nil

	out := g.Draw(0)
	assert.Contains(t, out.Message, "passed")
	assert.Len(t, g.Players[0].Hand, 1)
	assert.Equal(t, 1, g.Current())
}

func TestTimeoutDrawsOneAndPasses(t *testing.T) {
	assert := assert.New(t)

	g := uno.NewGame(seeded())
	require.NoError(t, g.Start([]string{"A", "B"}))

	out, ok := g.Timeout(0)
	assert.True(ok)
	assert.Equal("A ran out of time and drew a card automatically", out.Message)
	assert.Len(g.Players[0].Hand, uno.HandSize+1)
	assert.Equal(1, g.Current())
	assert.Equal(uno.DeckSize, g.CardCount())
}

func TestRemovePlayer(t *testing.T) {
	assert := assert.New(t)

	g := uno.NewGame(seeded())
	require.NoError(t, g.Start([]string{"A", "B", "C"}))
	g.Turn = 1

	require.NoError(t, g.Remove(1))
	assert.Len(g.Players, 2)
	assert.Equal("C", g.Players[g.Current()].Pseudo)
	assert.Equal(uno.DeckSize, g.CardCount())

	assert.Error(g.Remove(0), "cannot drop below two players")
}

func TestRemovePlayerCounterClockwise(t *testing.T) {
	g := uno.NewGame(seeded())
	require.NoError(t, g.Start([]string{"A", "B", "C", "D"}))
	g.Direction = -1
	g.Turn = 0

	require.NoError(t, g.Remove(0))
	assert.Equal(t, "D", g.Players[g.Current()].Pseudo)

	g.Turn = 0
	require.NoError(t, g.Remove(2))
	assert.Equal(t, "B", g.Players[g.Current()].Pseudo)
}

func TestDecodeMove(t *testing.T) {
	assert := assert.New(t)
	g := uno.NewGame()

	m, err := g.DecodeMove("play", json.RawMessage(`{"cardIndex":2,"color":"green"}`))
	require.NoError(t, err)
	assert.Equal(uno.Move{Type: uno.MovePlay, CardIndex: 2, Color: uno.Green}, m)

	m, err = g.DecodeMove("draw", nil)
	require.NoError(t, err)
	assert.Equal(uno.MoveDraw, m.Type)

	_, err = g.DecodeMove("play", json.RawMessage(`{}`))
	assert.ErrorIs(err, game.ErrInvalidMove)
	_, err = g.DecodeMove("play", json.RawMessage(`nope`))
	assert.ErrorIs(err, game.ErrInvalidMove)
	_, err = g.DecodeMove("shuffle", nil)
	assert.ErrorIs(err, game.ErrUnknownAction)
}

// TestCardConservation plays whole games by always taking the first legal
// card and checks no card is ever created or lost.
func TestCardConservation(t *testing.T) {
	for seed := range uint64(20) {
		g := uno.NewGame(uno.WithRand(rand.New(rand.NewPCG(seed, seed+1))))
		require.NoError(t, g.Start([]string{"A", "B", "C", "D"}))

		for turn := 0; turn < 2000; turn++ {
			p := g.Current()
			var out game.Outcome
			var err error

			state := g.View(p).(*uno.ClientState)
			if len(state.Playable) > 0 {
				out, err = g.Apply(p, uno.Move{Type: uno.MovePlay, CardIndex: state.Playable[0], Color: uno.Red})
			} else {
				out, err = g.Apply(p, uno.Move{Type: uno.MoveDraw})
			}
			require.NoError(t, err)
			require.Equal(t, uno.DeckSize, g.CardCount(), "seed %d turn %d", seed, turn)
			if out.Finished {
				assert.Empty(t, g.Players[out.Winner].Hand)
				break
			}
		}
	}
}

func TestViewHidesOtherHands(t *testing.T) {
	assert := assert.New(t)

	g := uno.NewGame(seeded())
	require.NoError(t, g.Start([]string{"A", "B"}))

	mine := g.View(0).(*uno.ClientState)
	assert.Equal(g.Players[0].Hand, mine.Hand)
	assert.Equal([]uno.OtherPlayerState{{Pseudo: "A", CardCount: 7}, {Pseudo: "B", CardCount: 7}}, mine.Players)

	theirs := g.View(1).(*uno.ClientState)
	assert.Equal(g.Players[1].Hand, theirs.Hand)
	assert.Empty(theirs.Playable, "not their turn")

	spectator := g.View(game.Spectator).(*uno.ClientState)
	assert.Nil(spectator.Hand)
	assert.Nil(spectator.Playable)
	assert.Equal(mine.TopCard, spectator.TopCard)

	raw, err := json.Marshal(spectator)
	require.NoError(t, err)
	assert.NotContains(string(raw), `"hand"`)
}
