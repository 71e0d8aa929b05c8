package dice_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"pgregory.net/rapid"

	"github.com/cory-johannsen/idlebattle/internal/game/dice"
)

func TestRollResult_Total(t *testing.T) {
	r := dice.RollResult{Expression: "2d6+3", Dice: []int{4, 5}, Modifier: 3}
	assert.Equal(t, 12, r.Total())
	assert.True(t, strings.HasSuffix(r.String(), "= 12"))
}

func TestParse(t *testing.T) {
	cases := []struct {
		in    string
		count int
		sides int
		mod   int
	}{
		{"3", 0, 0, 3},
		{"d6", 1, 6, 0},
		{"2d4", 2, 4, 0},
		{"1d3+1", 1, 3, 1},
		{"2D8-2", 2, 8, -2},
	}
	for _, tc := range cases {
		e, err := dice.Parse(tc.in)
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.count, e.Count, tc.in)
		assert.Equal(t, tc.sides, e.Sides, tc.in)
		assert.Equal(t, tc.mod, e.Modifier, tc.in)
	}
}

func TestParse_Invalid(t *testing.T) {
	for _, in := range []string{"", "x", "0d6", "2d1", "2dx", "1d6+x"} {
		_, err := dice.Parse(in)
		assert.Error(t, err, in)
	}
	assert.Panics(t, func() { dice.MustParse("bogus") })
}

func TestRoll_ConstantHasNoDice(t *testing.T) {
	r := dice.Roll(dice.MustParse("2"), dice.NewCryptoSource())
	assert.Empty(t, r.Dice)
	assert.Equal(t, 2, r.Total())
}

func TestRoll_Property(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		count := rapid.IntRange(1, 10).Draw(rt, "count")
		sides := rapid.IntRange(2, 20).Draw(rt, "sides")
		seed := rapid.Uint64().Draw(rt, "seed")
		e := dice.Expression{Raw: "x", Count: count, Sides: sides}
		r := dice.Roll(e, dice.NewSeededSource(seed))
		require.Len(rt, r.Dice, count)
		for _, d := range r.Dice {
			assert.GreaterOrEqual(rt, d, 1)
			assert.LessOrEqual(rt, d, sides)
		}
	})
}

func TestCryptoSource_Intn_InRange(t *testing.T) {
	src := dice.NewCryptoSource()
	for i := 0; i < 1000; i++ {
		v := src.Intn(6)
		assert.GreaterOrEqual(t, v, 0)
		assert.Less(t, v, 6)
	}
	assert.Panics(t, func() { src.Intn(0) })
}

func TestSeededSource_Reproducible(t *testing.T) {
	a := dice.NewSeededSource(42)
	b := dice.NewSeededSource(42)
	for i := 0; i < 100; i++ {
		assert.Equal(t, a.Intn(1000), b.Intn(1000))
	}
}

func TestSequenceSource_Cycles(t *testing.T) {
	src := dice.NewSequenceSource(1, 7)
	assert.Equal(t, 1, src.Intn(10))
	assert.Equal(t, 2, src.Intn(5))
	assert.Equal(t, 1, src.Intn(10))
}

func TestChance_Bounds(t *testing.T) {
	src := dice.NewSequenceSource(0)
	assert.False(t, dice.Chance(src, 0))
	assert.True(t, dice.Chance(src, 1))
	assert.True(t, dice.Chance(src, 0.3), "zero draw is below any positive p")
}

func TestFloat_Property(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		f := dice.Float(dice.NewSeededSource(rapid.Uint64().Draw(rt, "seed")))
		assert.GreaterOrEqual(rt, f, 0.0)
		assert.Less(rt, f, 1.0)
	})
}

func TestBetween(t *testing.T) {
	src := dice.NewSeededSource(7)
	for i := 0; i < 200; i++ {
		v := dice.Between(src, -2, 2)
		assert.GreaterOrEqual(t, v, -2)
		assert.LessOrEqual(t, v, 2)
	}
	assert.Equal(t, 5, dice.Between(src, 5, 5))
}

func TestLoggedRoller(t *testing.T) {
	r := dice.NewLoggedRoller(dice.NewSequenceSource(2), zaptest.NewLogger(t))
	res := r.Roll(dice.MustParse("1d6"))
	assert.Equal(t, 3, res.Total())
	assert.True(t, r.Chance("drop", 1))
	assert.NotNil(t, r.Source())
}
