// Package dice provides the randomness abstraction shared by battle
// resolution, monster spawning, and reward rolls.
package dice

import "fmt"

// Source is the randomness provider for every random decision in a battle.
//
// Implementations MUST be safe for concurrent use.
type Source interface {
	// Intn returns a non-negative random int in [0, n).
	//
	// Precondition: n > 0.
	Intn(n int) int
}

// floatResolution is the granularity used to derive fractions from Intn.
const floatResolution = 1 << 30

// Float returns a uniform value in [0, 1) drawn from src.
//
// Postcondition: 0 <= result < 1.
func Float(src Source) float64 {
	return float64(src.Intn(floatResolution)) / floatResolution
}

// Chance reports whether an event with probability p occurs.
//
// Postcondition: p <= 0 never succeeds; p >= 1 always succeeds.
func Chance(src Source, p float64) bool {
	if p <= 0 {
		return false
	}
	if p >= 1 {
		return true
	}
	return Float(src) < p
}

// Between returns a uniform int in [lo, hi].
//
// Precondition: lo <= hi.
func Between(src Source, lo, hi int) int {
	if hi <= lo {
		return lo
	}
	return lo + src.Intn(hi-lo+1)
}

// RollResult holds the full audit trail for a single dice roll evaluation.
//
// Postcondition: Total() == sum(Dice) + Modifier.
type RollResult struct {
	Expression string
	Dice       []int
	Modifier   int
}

// Total returns the sum of all die results plus the modifier.
func (r RollResult) Total() int {
	total := r.Modifier
	for _, d := range r.Dice {
		total += d
	}
	return total
}

// String returns a human-readable audit string, e.g. "1d3+1 = [2] +1 = 3".
func (r RollResult) String() string {
	return fmt.Sprintf("%s = %v %+d = %d", r.Expression, r.Dice, r.Modifier, r.Total())
}
