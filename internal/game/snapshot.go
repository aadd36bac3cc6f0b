package game

import (
	"sequence/internal/apperr"
	"sequence/internal/boards"
	"sequence/internal/boardstate"
	"sequence/internal/cards"
	"sequence/internal/deck"
	"sequence/internal/registry"
	"sequence/internal/sequence"
)

// Reconstructed is a full game-state rebuild derived only from
// (deckSeed, boardType, players, turnHistory) -- never from the live
// mutable Board/Sequences/hand fields. session-status uses this instead of
// the in-memory snapshot directly so a reconnecting client's view is
// trustworthy even if it raced a concurrent mutation mid-read; it also
// gives the deck-determinism and hand-size invariants (spec §8) something
// to check against independently of the mutable path.
type Reconstructed struct {
	Board     boardstate.Board
	Sequences []boardstate.Sequence
	Hands     map[string][]cards.Card
}

// Reconstruct replays deal + every recorded turn from scratch.
func Reconstruct(g *registry.Game) (*Reconstructed, error) {
	shuffled := deck.Shuffle(g.DeckSeed)
	layout := boards.For(g.BoardType)
	board := boardstate.New(layout)

	hs := deck.HandSize(len(g.Players))
	hands := make(map[string][]cards.Card, len(g.Players))
	cursor := 0
	for _, p := range g.Players {
		hand := make([]cards.Card, hs)
		copy(hand, shuffled[cursor:cursor+hs])
		cursor += hs
		hands[p.PlayerID] = hand
	}

	colorOf := make(map[string]boardstate.Color, len(g.Players))
	for _, p := range g.Players {
		colorOf[p.PlayerID] = p.TeamColor
	}

	var sequences []boardstate.Sequence
	for _, t := range g.TurnHistory {
		hand := hands[t.PlayerID]
		idx := -1
		for i, c := range hand {
			if c == t.CardPlayed {
				idx = i
				break
			}
		}
		if idx < 0 {
			return nil, apperr.New(apperr.Internal, "turn history references a card not in the replayed hand")
		}

		cell := &board[t.Row][t.Col]
		card := t.CardPlayed
		team := colorOf[t.PlayerID]
		if card.IsOneEyedJack() {
			cell.Chip = boardstate.None
			cell.PartOfSequence = false
		} else {
			cell.Chip = team
			cell.PartOfSequence = false
		}

		alreadyRecorded := countFor(sequences, team)
		fresh := sequence.DetectNew(&board, team, alreadyRecorded)
		if len(fresh) > 0 {
			sequence.Mark(&board, fresh)
			sequences = append(sequences, fresh...)
		}

		hand = append(hand[:idx], hand[idx+1:]...)
		if cursor < deck.Size && cursorFor(t) {
			hand = append(hand, shuffled[cursor])
			cursor++
		}
		hands[t.PlayerID] = hand
	}

	return &Reconstructed{Board: board, Sequences: sequences, Hands: hands}, nil
}

// cursorFor always draws, matching the live turn path's unconditional
// "draw unless the deck is exhausted" rule; kept as a named predicate so a
// future rule change (e.g. skip draw after the game-ending move) has one
// place to land.
func cursorFor(_ boardstate.Turn) bool { return true }

func countFor(seqs []boardstate.Sequence, team boardstate.Color) int {
	n := 0
	for _, s := range seqs {
		if s.Team == team {
			n++
		}
	}
	return n
}
