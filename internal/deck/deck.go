// Package deck implements the seeded shuffled double deck (spec C2, §4.4.2).
// The shuffle must be bit-for-bit reproducible from (seed) alone so a
// reconnecting client can rebuild its hand from (deckSeed, deckCursor)
// without trusting the server's live board snapshot -- this is why the PRNG
// is a hand-rolled mulberry32 rather than math/rand: math/rand's algorithm
// and stream are not part of its compatibility promise, so no stdlib or
// third-party generator can be swapped in without breaking that contract.
package deck

import (
	"crypto/rand"
	"math"
	"math/big"

	"sequence/internal/cards"
)

const Size = 104

// rng is the mulberry32 generator, reproduced exactly per spec so every
// implementation of this protocol derives the same deck from the same seed.
type rng struct {
	state uint32
}

func newRNG(seed uint32) *rng {
	return &rng{state: seed}
}

// next returns the next value in [0, 1).
func (r *rng) next() float64 {
	r.state += 0x6D2B79F5
	t := r.state
	t = imul(t^(t>>15), t|1)
	t ^= t + imul(t^(t>>7), t|61)
	return float64((t^(t>>14))>>0) / 4294967296.0
}

func imul(a, b uint32) uint32 {
	return uint32(int64(int32(a)) * int64(int32(b)))
}

// ordered returns the 104 cards of two standard decks in a fixed order:
// two copies of (suit, rank) for suit in {S,H,D,C}, rank A..K.
func ordered() [Size]cards.Card {
	var out [Size]cards.Card
	i := 0
	for copyN := 0; copyN < 2; copyN++ {
		for suit := cards.Spades; suit <= cards.Clubs; suit++ {
			for rank := cards.Ace; rank <= cards.King; rank++ {
				out[i] = cards.Card{Rank: rank, Suit: suit}
				i++
			}
		}
	}
	return out
}

// Shuffle returns the 104-card deck produced by seeding mulberry32 with seed
// and running Fisher-Yates from the top down, exactly as specified: i from
// n-1 downto 1, j = floor(next()*(i+1)), swap(i, j).
func Shuffle(seed int32) [Size]cards.Card {
	out := ordered()
	r := newRNG(uint32(seed))
	for i := Size - 1; i >= 1; i-- {
		j := int(math.Floor(r.next() * float64(i+1)))
		out[i], out[j] = out[j], out[i]
	}
	return out
}

// HandSize returns 7 for a 2-player game, 6 otherwise (spec glossary).
func HandSize(playerCount int) int {
	if playerCount == 2 {
		return 7
	}
	return 6
}

// GenerateSeed returns a uniformly random value in [0, 2^31).
func GenerateSeed() int32 {
	n, err := rand.Int(rand.Reader, big.NewInt(1<<31))
	if err != nil {
		// crypto/rand failure on this platform is unrecoverable for any
		// caller that needs real randomness; surfacing a panic here matches
		// the stdlib's own behavior in the rare cases it gives up (e.g.
		// x/crypto's use of crypto/rand panics rather than degrading silently).
		panic("deck: crypto/rand unavailable: " + err.Error())
	}
	return int32(n.Int64())
}
