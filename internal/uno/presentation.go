package uno

import "gameshub-server/internal/game"

type ClientState struct {
	Hand         []Card             `json:"hand,omitempty"`
	Playable     []int              `json:"playable,omitempty"`
	TopCard      Card               `json:"topCard"`
	Color        Color              `json:"color"`
	Direction    int                `json:"direction"`
	DeckCount    int                `json:"deckCount"`
	DiscardCount int                `json:"discardCount"`
	Players      []OtherPlayerState `json:"players"`
}

// OtherPlayerState is all anyone learns about a hand that is not theirs.
type OtherPlayerState struct {
	Pseudo    string `json:"pseudo"`
	CardCount int    `json:"cardCount"`
}

// View shows the viewer their own hand and only card counts for everyone
// else. Spectators get counts only.
func (g *Game) View(viewer int) any {
	players := make([]OtherPlayerState, len(g.Players))
	for i, p := range g.Players {
		players[i] = OtherPlayerState{Pseudo: p.Pseudo, CardCount: len(p.Hand)}
	}

	state := &ClientState{
		TopCard:      g.Top(),
		Color:        g.Color,
		Direction:    g.Direction,
		DeckCount:    g.Deck.Count(),
		DiscardCount: len(g.Discard),
		Players:      players,
	}

	if viewer == game.Spectator || viewer < 0 || viewer >= len(g.Players) {
		return state
	}

	hand := g.Players[viewer].Hand
	state.Hand = append([]Card{}, hand...)
	if viewer == g.Turn {
		for i, card := range hand {
			if g.CanPlay(card) {
				state.Playable = append(state.Playable, i)
			}
		}
	}
	return state
}
