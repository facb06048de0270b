package randomizer

import "trivia-room-service/internal/domain"

// The constants below are part of the wire contract shared with every client
// that renders options. Changing any of them desynchronizes displayed order
// from canonical answers for rooms already in flight.
const (
	seedQuestionFactor = 31
	lcgMultiplier      = 9301
	lcgIncrement       = 49297
	lcgModulus         = 233280
)

// OptionOrder lists canonical option indexes in display order:
// order[displayPosition] == canonicalIndex.
type OptionOrder [domain.OptionCount]int

// Canonical maps a display position to the canonical option index.
func (o OptionOrder) Canonical(position int) (int, bool) {
	if position < 0 || position >= len(o) {
		return 0, false
	}
	return o[position], true
}

// Position maps a canonical option index to where it is displayed.
func (o OptionOrder) Position(canonical int) (int, bool) {
	for pos, idx := range o {
		if idx == canonical {
			return pos, true
		}
	}
	return 0, false
}

// Inverse returns the canonical -> display mapping.
func (o OptionOrder) Inverse() OptionOrder {
	var inv OptionOrder
	for pos, idx := range o {
		inv[idx] = pos
	}
	return inv
}

// Apply reorders options for display.
func (o OptionOrder) Apply(options [domain.OptionCount]string) [domain.OptionCount]string {
	var out [domain.OptionCount]string
	for pos, idx := range o {
		out[pos] = options[idx]
	}
	return out
}

// OptionSeed derives the generator seed for one question in one room.
func OptionSeed(questionID int, roomCode string) int64 {
	var seed int64
	for i, c := range []rune(roomCode) {
		seed += int64(c) * int64(i+1)
	}
	return seed + int64(questionID)*seedQuestionFactor
}

// OptionOrderFor derives the display order of a question's options in a room.
// It needs no stored state: any client holding the question id and the room
// code computes the same order.
func OptionOrderFor(questionID int, roomCode string) OptionOrder {
	gen := lcg{seed: OptionSeed(questionID, roomCode)}
	order := OptionOrder{0, 1, 2, 3}
	for i := len(order) - 1; i > 0; i-- {
		j := int(gen.next() * float64(i+1))
		if j < 0 || j > i {
			// only reachable with a negative question id
			j = 0
		}
		order[i], order[j] = order[j], order[i]
	}
	return order
}

type lcg struct {
	seed int64
}

// next advances the seed and returns a fraction in [0, 1).
func (g *lcg) next() float64 {
	g.seed = (g.seed*lcgMultiplier + lcgIncrement) % lcgModulus
	return float64(g.seed) / lcgModulus
}
