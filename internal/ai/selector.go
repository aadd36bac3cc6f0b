// Package ai implements the three greedy AI move-selector policies (spec
// C4, §4.4.3). None perform lookahead; each is a short priority list of
// "try this shape of move, otherwise fall through". Grounded on the
// teacher's pkg/ai behavior tree (internal/server/room.go's updateAI calls
// controller.Decide(game), a single-shot per-tick decision with no
// planning) -- reproduced here as an ordered slice of candidate-generating
// steps instead of a behavior tree, since the spec's policies are flat
// priority lists rather than a reactive safety/attack split.
package ai

import (
	"math/rand/v2"

	"sequence/internal/boardstate"
	"sequence/internal/cards"
)

// Move is a selected (cardIndex, row, col) to execute through the normal
// turn path.
type Move struct {
	CardIndex int
	Row, Col  int
}

// Difficulty selects which policy Select runs.
type Difficulty string

const (
	Easy   Difficulty = "easy"
	Medium Difficulty = "medium"
	Hard   Difficulty = "hard"
)

// Select runs the requested policy and returns the chosen move. ok is false
// only if no legal move exists at all, which per spec §4.4 is a fatal bug
// given a double deck and always-playable Jacks -- callers should treat a
// false return as an internal error, never as "pass".
func Select(d Difficulty, hand []cards.Card, board *boardstate.Board, aiColor, oppColor boardstate.Color, turnNumber int) (Move, bool) {
	switch d {
	case Easy:
		return easy(hand, board, aiColor, oppColor, turnNumber)
	case Hard:
		return hard(hand, board, aiColor, oppColor)
	default:
		return medium(hand, board, aiColor, oppColor)
	}
}

// --- shared candidate generation -------------------------------------------------

type potentialLine struct {
	cells   []boardstate.CellCoord
	ownChip int
}

// potentialLines enumerates every 5-to-10-cell contiguous window in the four
// directions whose cells are all either empty, corner, or the team's own
// color (no blocking opponent chip present), sorted by descending count of
// own chips already in the window.
func potentialLines(b *boardstate.Board, team boardstate.Color) []potentialLine {
	dirs := []struct{ dr, dc int }{{0, 1}, {1, 0}, {1, 1}, {1, -1}}
	var out []potentialLine
	for _, d := range dirs {
		for row := 0; row < 10; row++ {
			for col := 0; col < 10; col++ {
				for length := minLen; length <= maxLen; length++ {
					endRow := row + d.dr*(length-1)
					endCol := col + d.dc*(length-1)
					if !inBounds(endRow, endCol) {
						continue
					}
					cells, own, ok := scanWindow(b, row, col, d.dr, d.dc, length, team)
					if !ok {
						continue
					}
					out = append(out, potentialLine{cells: cells, ownChip: own})
				}
			}
		}
	}
	sortDescByOwn(out)
	return out
}

func scanWindow(b *boardstate.Board, row, col, dr, dc, length int, team boardstate.Color) ([]boardstate.CellCoord, int, bool) {
	cells := make([]boardstate.CellCoord, 0, length)
	own := 0
	r, c := row, col
	for i := 0; i < length; i++ {
		cell := b[r][c]
		switch {
		case cell.Card.IsCorner():
			// wild, contributes nothing to own-chip count but doesn't block
		case cell.Chip == boardstate.None:
			// empty, fine
		case cell.Chip == team:
			own++
		default:
			return nil, 0, false // blocked by opponent chip
		}
		cells = append(cells, boardstate.CellCoord{Row: r, Col: c})
		r += dr
		c += dc
	}
	return cells, own, true
}

func sortDescByOwn(lines []potentialLine) {
	for i := 1; i < len(lines); i++ {
		for j := i; j > 0 && lines[j].ownChip > lines[j-1].ownChip; j-- {
			lines[j], lines[j-1] = lines[j-1], lines[j]
		}
	}
}

// existingLines enumerates every maximal contiguous run of own-color-or-
// corner cells of length >= 5 (i.e. sequence-forming runs, whether or not
// they've been recorded as a scored sequence yet).
func existingLines(b *boardstate.Board, team boardstate.Color) [][]boardstate.CellCoord {
	dirs := []struct{ dr, dc int }{{0, 1}, {1, 0}, {1, 1}, {1, -1}}
	var out [][]boardstate.CellCoord
	for _, d := range dirs {
		for row := 0; row < 10; row++ {
			for col := 0; col < 10; col++ {
				if b.CellColor(row, col, team) != team {
					continue
				}
				pr, pc := row-d.dr, col-d.dc
				if inBounds(pr, pc) && b.CellColor(pr, pc, team) == team {
					continue
				}
				var run []boardstate.CellCoord
				r, c := row, col
				for inBounds(r, c) && b.CellColor(r, c, team) == team {
					run = append(run, boardstate.CellCoord{Row: r, Col: c})
					r += d.dr
					c += d.dc
				}
				if len(run) >= minLen {
					out = append(out, run)
				}
			}
		}
	}
	return out
}

const minLen = 5
const maxLen = 10

func inBounds(row, col int) bool {
	return row >= 0 && row < 10 && col >= 0 && col < 10
}

// emptyExtensionPoints returns the empty, non-corner cells of a candidate
// line/run that could still receive a chip.
func emptyExtensionPoints(b *boardstate.Board, cells []boardstate.CellCoord) []boardstate.CellCoord {
	var out []boardstate.CellCoord
	for _, cc := range cells {
		cell := b[cc.Row][cc.Col]
		if cell.Card.IsCorner() {
			continue
		}
		if cell.Chip == boardstate.None {
			out = append(out, cc)
		}
	}
	return out
}

// findPlayableCard locates a hand card for the given empty cell: an exact
// (rank, suit) match is preferred; otherwise any two-eyed Jack.
func findPlayableCard(hand []cards.Card, b *boardstate.Board, row, col int) (int, bool) {
	target := b[row][col].Card
	for i, c := range hand {
		if c == target {
			return i, true
		}
	}
	for i, c := range hand {
		if c.IsTwoEyedJack() {
			return i, true
		}
	}
	return 0, false
}

// anyLegalMove returns any legal move at all: an ordinary card on its
// matching cell, or a two-eyed Jack on any empty non-corner cell. Used as
// the final fallback of every policy.
func anyLegalMove(hand []cards.Card, b *boardstate.Board) (Move, bool) {
	for row := 0; row < 10; row++ {
		for col := 0; col < 10; col++ {
			cell := b[row][col]
			if cell.Card.IsCorner() || cell.Chip != boardstate.None {
				continue
			}
			if idx, ok := findPlayableCard(hand, b, row, col); ok {
				return Move{CardIndex: idx, Row: row, Col: col}, true
			}
		}
	}
	return Move{}, false
}

func randomLegalMove(hand []cards.Card, b *boardstate.Board) (Move, bool) {
	var candidates []Move
	for row := 0; row < 10; row++ {
		for col := 0; col < 10; col++ {
			cell := b[row][col]
			if cell.Card.IsCorner() || cell.Chip != boardstate.None {
				continue
			}
			if idx, ok := findPlayableCard(hand, b, row, col); ok {
				candidates = append(candidates, Move{CardIndex: idx, Row: row, Col: col})
			}
		}
	}
	if len(candidates) == 0 {
		return Move{}, false
	}
	return candidates[rand.IntN(len(candidates))], true
}

// removableOpponentChips returns cells holding an opponent chip not yet
// part of a sequence, i.e. legal one-eyed-Jack targets.
func removableOpponentChips(b *boardstate.Board, oppColor boardstate.Color) []boardstate.CellCoord {
	var out []boardstate.CellCoord
	for row := 0; row < 10; row++ {
		for col := 0; col < 10; col++ {
			cell := b[row][col]
			if cell.Chip == oppColor && !cell.PartOfSequence {
				out = append(out, boardstate.CellCoord{Row: row, Col: col})
			}
		}
	}
	return out
}

func findOneEyedJack(hand []cards.Card) (int, bool) {
	for i, c := range hand {
		if c.IsOneEyedJack() {
			return i, true
		}
	}
	return 0, false
}

// --- easy -------------------------------------------------------------------------

func easy(hand []cards.Card, b *boardstate.Board, aiColor, oppColor boardstate.Color, turnNumber int) (Move, bool) {
	// 1. A one-eyed Jack is used as soon as any opponent chip is removable,
	// regardless of strategic value -- matches source behavior verbatim,
	// including its lack of discrimination between targets.
	if jackIdx, ok := findOneEyedJack(hand); ok {
		if targets := removableOpponentChips(b, oppColor); len(targets) > 0 {
			t := targets[rand.IntN(len(targets))]
			return Move{CardIndex: jackIdx, Row: t.Row, Col: t.Col}, true
		}
	}

	// 2. On even turns, try to extend an own potential line.
	if turnNumber%2 == 0 {
		for _, line := range potentialLines(b, aiColor) {
			for _, ext := range emptyExtensionPoints(b, line.cells) {
				if idx, ok := findPlayableCard(hand, b, ext.Row, ext.Col); ok {
					return Move{CardIndex: idx, Row: ext.Row, Col: ext.Col}, true
				}
			}
		}
	}

	// 3. Otherwise a uniformly random legal move.
	return randomLegalMove(hand, b)
}

// --- medium -----------------------------------------------------------------------

func medium(hand []cards.Card, b *boardstate.Board, aiColor, oppColor boardstate.Color) (Move, bool) {
	// 1. Extend an existing own line of length 5-9 along its direction if a
	// card is playable at the adjacent empty cell.
	for _, run := range existingLines(b, aiColor) {
		if len(run) < 5 || len(run) > 9 {
			continue
		}
		for _, ext := range adjacentExtensions(b, run) {
			if idx, ok := findPlayableCard(hand, b, ext.Row, ext.Col); ok {
				return Move{CardIndex: idx, Row: ext.Row, Col: ext.Col}, true
			}
		}
	}

	// 2. From potential lines with >=3 own chips, play any extension.
	for _, line := range potentialLines(b, aiColor) {
		if line.ownChip < 3 {
			continue
		}
		for _, ext := range emptyExtensionPoints(b, line.cells) {
			if idx, ok := findPlayableCard(hand, b, ext.Row, ext.Col); ok {
				return Move{CardIndex: idx, Row: ext.Row, Col: ext.Col}, true
			}
		}
	}

	// 3. Else any extension of any potential line.
	for _, line := range potentialLines(b, aiColor) {
		for _, ext := range emptyExtensionPoints(b, line.cells) {
			if idx, ok := findPlayableCard(hand, b, ext.Row, ext.Col); ok {
				return Move{CardIndex: idx, Row: ext.Row, Col: ext.Col}, true
			}
		}
	}

	// 4. Else a uniformly random legal move.
	return randomLegalMove(hand, b)
}

// adjacentExtensions returns the empty cells immediately beyond either end
// of a run, along the run's own direction.
func adjacentExtensions(b *boardstate.Board, run []boardstate.CellCoord) []boardstate.CellCoord {
	if len(run) < 2 {
		return nil
	}
	dr := run[1].Row - run[0].Row
	dc := run[1].Col - run[0].Col
	var out []boardstate.CellCoord
	before := boardstate.CellCoord{Row: run[0].Row - dr, Col: run[0].Col - dc}
	after := boardstate.CellCoord{Row: run[len(run)-1].Row + dr, Col: run[len(run)-1].Col + dc}
	for _, cc := range []boardstate.CellCoord{before, after} {
		if !inBounds(cc.Row, cc.Col) {
			continue
		}
		cell := b[cc.Row][cc.Col]
		if cell.Card.IsCorner() || cell.Chip != boardstate.None {
			continue
		}
		out = append(out, cc)
	}
	return out
}

// --- hard -------------------------------------------------------------------------

func hard(hand []cards.Card, b *boardstate.Board, aiColor, oppColor boardstate.Color) (Move, bool) {
	// 1. Extend an existing own line of length 5-9 to 10 (win).
	for _, run := range existingLines(b, aiColor) {
		if len(run) < 5 || len(run) > 9 {
			continue
		}
		for _, ext := range adjacentExtensions(b, run) {
			if idx, ok := findPlayableCard(hand, b, ext.Row, ext.Col); ok {
				return Move{CardIndex: idx, Row: ext.Row, Col: ext.Col}, true
			}
		}
	}

	// 2. From potential lines with exactly 4 own chips and an extension
	// point, complete to 5.
	for _, line := range potentialLines(b, aiColor) {
		if line.ownChip != 4 {
			continue
		}
		for _, ext := range emptyExtensionPoints(b, line.cells) {
			if idx, ok := findPlayableCard(hand, b, ext.Row, ext.Col); ok {
				return Move{CardIndex: idx, Row: ext.Row, Col: ext.Col}, true
			}
		}
	}

	// 3. If hand holds a one-eyed Jack, remove an opponent chip sitting on a
	// potential opponent line of >=4 chips, not already part of a sequence.
	if jackIdx, ok := findOneEyedJack(hand); ok {
		threatCells := map[boardstate.CellCoord]bool{}
		for _, line := range potentialLines(b, oppColor) {
			if line.ownChip < 4 {
				continue
			}
			for _, cc := range line.cells {
				cell := b[cc.Row][cc.Col]
				if cell.Chip == oppColor && !cell.PartOfSequence {
					threatCells[cc] = true
				}
			}
		}
		for cc := range threatCells {
			return Move{CardIndex: jackIdx, Row: cc.Row, Col: cc.Col}, true
		}
	}

	// 4. From opponent potential lines with >=3 chips, play a non-Jack chip
	// on an extension point (block).
	for _, line := range potentialLines(b, oppColor) {
		if line.ownChip < 3 {
			continue
		}
		for _, ext := range emptyExtensionPoints(b, line.cells) {
			if idx, ok := findNonJackPlayableCard(hand, b, ext.Row, ext.Col); ok {
				return Move{CardIndex: idx, Row: ext.Row, Col: ext.Col}, true
			}
		}
	}

	// 5. Any extension of any own potential line.
	for _, line := range potentialLines(b, aiColor) {
		for _, ext := range emptyExtensionPoints(b, line.cells) {
			if idx, ok := findPlayableCard(hand, b, ext.Row, ext.Col); ok {
				return Move{CardIndex: idx, Row: ext.Row, Col: ext.Col}, true
			}
		}
	}

	// 6. Else a random legal move.
	return randomLegalMove(hand, b)
}

// findNonJackPlayableCard mirrors findPlayableCard but never substitutes a
// two-eyed Jack: a block has to actually land an ordinary chip, not open up
// a new wild placement the AI didn't intend to spend.
func findNonJackPlayableCard(hand []cards.Card, b *boardstate.Board, row, col int) (int, bool) {
	target := b[row][col].Card
	if target.IsCorner() {
		return 0, false
	}
	for i, c := range hand {
		if c == target && !c.IsJack() {
			return i, true
		}
	}
	return 0, false
}
