// Package sequence implements the sequence detector (spec C3, §4.4.1):
// finding 5-in-a-row (or 10-in-a-row, worth two) team lines after a move,
// deduplicating by line identity, and marking the chips that belong to a
// found line. Grounded on the teacher's pkg/core/explosion.go, which also
// walks a fixed set of directions outward from a triggering cell and
// collects affected coordinates into a result list -- the same
// step-until-it-stops shape, generalized from 4 blast directions to the 4
// line directions and from "destroy tile" to "mark chip".
package sequence

import "sequence/internal/boardstate"

// direction is one of the four line directions a sequence can run in.
type direction struct{ dRow, dCol int }

var directions = [4]direction{
	{0, 1},  // horizontal
	{1, 0},  // vertical
	{1, 1},  // diagonal \
	{1, -1}, // diagonal /
}

const minLen = 5
const maxLen = 10

// lineKey deduplicates by (startRow, startCol, dRow, dCol) per spec.
type lineKey struct {
	startRow, startCol, dRow, dCol int
}

// CountSequences returns how many sequences (10-length counts as 2) the
// given team currently has on the board, scanning every line in every
// direction and deduplicating by line identity.
func CountSequences(b *boardstate.Board, team boardstate.Color) int {
	lines := findLines(b, team)
	total := 0
	for _, ln := range lines {
		total += scoreFor(len(ln))
	}
	return total
}

func scoreFor(length int) int {
	if length >= 10 {
		return 2
	}
	if length >= minLen {
		return 1
	}
	return 0
}

// findLines enumerates every maximal run (length >= minLen) of the team's
// color (corners counting as wild) in every direction, each line
// represented once via its dedup key.
func findLines(b *boardstate.Board, team boardstate.Color) map[lineKey][]boardstate.CellCoord {
	seen := make(map[lineKey][]boardstate.CellCoord)
	for row := 0; row < 10; row++ {
		for col := 0; col < 10; col++ {
			if b.CellColor(row, col, team) != team {
				continue
			}
			for _, d := range directions {
				// Only walk a direction from the line's earliest cell, found
				// by stepping backwards until the color breaks.
				pr, pc := row-d.dRow, col-d.dCol
				if inBounds(pr, pc) && b.CellColor(pr, pc, team) == team {
					continue // not the start of the line
				}
				cells := walk(b, row, col, d, team)
				if len(cells) < minLen {
					continue
				}
				key := lineKey{row, col, d.dRow, d.dCol}
				seen[key] = capped(cells)
			}
		}
	}
	return seen
}

// capped trims a line to at most maxLen cells (a line can't score above a
// 10-in-a-row even if the board geometry allowed a longer walk, which it
// never does on a 10x10 board, but this keeps the contract explicit).
func capped(cells []boardstate.CellCoord) []boardstate.CellCoord {
	if len(cells) > maxLen {
		return cells[:maxLen]
	}
	return cells
}

func walk(b *boardstate.Board, startRow, startCol int, d direction, team boardstate.Color) []boardstate.CellCoord {
	var cells []boardstate.CellCoord
	r, c := startRow, startCol
	for inBounds(r, c) && b.CellColor(r, c, team) == team {
		cells = append(cells, boardstate.CellCoord{Row: r, Col: c})
		r += d.dRow
		c += d.dCol
	}
	return cells
}

func inBounds(row, col int) bool {
	return row >= 0 && row < 10 && col >= 0 && col < 10
}

// DetectNew compares the team's current sequence count on the board to
// alreadyRecorded and, if it increased, returns the freshly-discovered
// Sequence records (always batched into one call per move, per spec). It
// locates a line containing at least one chip not yet marked
// PartOfSequence to avoid re-reporting a line that was already recorded.
func DetectNew(b *boardstate.Board, team boardstate.Color, alreadyRecorded int) []boardstate.Sequence {
	total := CountSequences(b, team)
	delta := total - alreadyRecorded
	if delta <= 0 {
		return nil
	}

	lines := findLines(b, team)
	var fresh []lineKey
	for key, cells := range lines {
		if hasFreshChip(b, cells) {
			fresh = append(fresh, key)
		}
	}

	var out []boardstate.Sequence
	remaining := delta
	for _, key := range fresh {
		if remaining <= 0 {
			break
		}
		cells := lines[key]
		score := scoreFor(len(cells))
		if score > remaining {
			score = remaining
		}
		for i := 0; i < score; i++ {
			out = append(out, boardstate.Sequence{Team: team, Cells: cells})
		}
		remaining -= score
	}
	return out
}

func hasFreshChip(b *boardstate.Board, cells []boardstate.CellCoord) bool {
	for _, cc := range cells {
		cell := b[cc.Row][cc.Col]
		if cell.Card.IsCorner() {
			continue
		}
		if !cell.PartOfSequence {
			return true
		}
	}
	return false
}

// Mark sets PartOfSequence=true on every cell of each sequence, then traces
// the full maximal line through the sequence's first cell in all four
// directions so a 10-in-a-row correctly locks all ten chips even though the
// recorded Sequence itself may have been capped or only covers one overlap.
func Mark(b *boardstate.Board, seqs []boardstate.Sequence) {
	for _, s := range seqs {
		if len(s.Cells) == 0 {
			continue
		}
		for _, cc := range s.Cells {
			markCell(b, cc.Row, cc.Col)
		}
		first := s.Cells[0]
		for _, d := range directions {
			for _, cc := range walk(b, first.Row, first.Col, d, s.Team) {
				markCell(b, cc.Row, cc.Col)
			}
			opp := direction{-d.dRow, -d.dCol}
			for _, cc := range walk(b, first.Row, first.Col, opp, s.Team) {
				markCell(b, cc.Row, cc.Col)
			}
		}
	}
}

func markCell(b *boardstate.Board, row, col int) {
	cell := &b[row][col]
	if cell.Card.IsCorner() {
		return
	}
	cell.PartOfSequence = true
}
