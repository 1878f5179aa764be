package uno

import (
	"encoding/json"
	"fmt"
	"slices"

	"gameshub-server/internal/game"
)

type MoveType string

const (
	MovePlay MoveType = "play"
	MoveDraw MoveType = "draw"
)

type Move struct {
	Type      MoveType
	CardIndex int
	Color     Color
}

// PlayRequest is the payload of uno:play.
type PlayRequest struct {
	CardIndex *int  `json:"cardIndex"`
	Color     Color `json:"color,omitempty"`
}

func (g *Game) DecodeMove(action string, payload json.RawMessage) (Move, error) {
	switch MoveType(action) {
	case MovePlay:
		var req PlayRequest
		if err := json.Unmarshal(payload, &req); err != nil {
			return Move{}, fmt.Errorf("%w: %v", game.ErrInvalidMove, err)
		}
		if req.CardIndex == nil {
			return Move{}, fmt.Errorf("%w: cardIndex is required", game.ErrInvalidMove)
		}
		return Move{Type: MovePlay, CardIndex: *req.CardIndex, Color: req.Color}, nil
	case MoveDraw:
		return Move{Type: MoveDraw}, nil
	}
	return Move{}, game.ErrUnknownAction
}

func (g *Game) Apply(player int, m Move) (game.Outcome, error) {
	switch m.Type {
	case MovePlay:
		return g.Play(player, m.CardIndex, m.Color)
	case MoveDraw:
		return g.Draw(player), nil
	}
	return game.Outcome{}, game.ErrUnknownAction
}

// Play puts the card at index on the discard pile and applies its effect.
// Emptying the hand wins on the spot, before any effect.
func (g *Game) Play(player, index int, color Color) (game.Outcome, error) {
	p := g.Players[player]
	if index < 0 || index >= len(p.Hand) {
		return game.Outcome{}, fmt.Errorf("%w: no card at index %d", game.ErrInvalidCard, index)
	}

	card := p.Hand[index]
	if !g.CanPlay(card) {
		return game.Outcome{}, fmt.Errorf("%w: %s does not match %s %s", game.ErrInvalidCard, card, g.Color, g.Top().Value)
	}
	if card.IsWild() && !color.IsBase() {
		return game.Outcome{}, game.ErrMissingColor
	}

	p.Hand = slices.Delete(p.Hand, index, index+1)
	g.Discard = append(g.Discard, card)
	g.Color = card.Color
	if card.IsWild() {
		g.Color = color
	}

	msg := fmt.Sprintf("%s played %s", p.Pseudo, card)
	if card.IsWild() {
		msg += fmt.Sprintf(" and chose %s", color)
	}
	if len(p.Hand) == 0 {
		return game.Win(player, fmt.Sprintf("%s, %s wins!", msg, p.Pseudo)), nil
	}

	switch card.Value {
	case Skip:
		msg += fmt.Sprintf(", %s is skipped", g.Players[g.next(player, 1)].Pseudo)
		g.Turn = g.next(player, 2)
	case Reverse:
		g.Direction = -g.Direction
		if len(g.Players) == 2 {
			g.Turn = g.next(player, 2)
		} else {
			g.Turn = g.next(player, 1)
		}
	case DrawTwo:
		msg += g.penalize(player, 2)
	case WildDraw4:
		msg += g.penalize(player, 4)
	default:
		g.Turn = g.next(player, 1)
	}

	return game.Continue(msg), nil
}

// penalize makes the next player draw n cards and lose their turn.
func (g *Game) penalize(player, n int) string {
	victim := g.next(player, 1)
	got := g.give(victim, n)
	g.Turn = g.next(player, 2)
	return fmt.Sprintf(", %s draws %d", g.Players[victim].Pseudo, got)
}

// Draw takes one card and ends the turn, even when the new card is playable.
func (g *Game) Draw(player int) game.Outcome {
	return g.drawAndPass(player, "%s drew a card")
}

// Timeout is the forced draw-and-pass for a player who ran out of time.
func (g *Game) Timeout(player int) (game.Outcome, bool) {
	return g.drawAndPass(player, "%s ran out of time and drew a card automatically"), true
}

func (g *Game) drawAndPass(player int, format string) game.Outcome {
	p := g.Players[player]
	msg := fmt.Sprintf(format, p.Pseudo)
	if _, ok := g.drawOneInto(player); !ok {
		msg = fmt.Sprintf("%s passed, no cards left to draw", p.Pseudo)
	}
	g.Turn = g.next(player, 1)
	return game.Continue(msg)
}

func (g *Game) drawOneInto(player int) (Card, bool) {
	card, ok := g.drawOne()
	if ok {
		g.Players[player].Hand = append(g.Players[player].Hand, card)
	}
	return card, ok
}
