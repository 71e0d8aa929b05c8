package character

// ClampResources forces HP and MP into [0, max].
func (c *Character) ClampResources() {
	c.HP = clamp(c.HP, 0, c.MaxHP)
	c.MP = clamp(c.MP, 0, c.MaxMP)
}

// SetBattleResult writes the final battle hp/mp back onto the character.
// A character that ends at 0 hp takes the death penalty instead of staying at 0.
//
// Postcondition: HP >= 1 on return. Returns true if the death penalty applied.
func (c *Character) SetBattleResult(hp, mp, penaltyPercent int) bool {
	c.HP = clamp(hp, 0, c.MaxHP)
	c.MP = clamp(mp, 0, c.MaxMP)
	if c.HP == 0 {
		c.ApplyDeathPenalty(penaltyPercent)
		return true
	}
	return false
}

// ApplyDeathPenalty leaves the character at 1 hp and 0 mp and deducts
// percent of each soft currency, rounded down.
//
// Precondition: 0 <= percent <= 100.
func (c *Character) ApplyDeathPenalty(percent int) {
	c.HP = min(1, c.MaxHP)
	c.MP = 0
	c.Qi -= c.Qi * int64(percent) / 100
	c.SpiritStones -= c.SpiritStones * int64(percent) / 100
}

// Grant adds experience and qi earned from a battle.
//
// Precondition: exp >= 0 and qi >= 0.
func (c *Character) Grant(exp, qi int64) {
	c.Experience += exp
	c.Qi += qi
}

func clamp(v, lo, hi int) int {
	if hi < lo {
		hi = lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
