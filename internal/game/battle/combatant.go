// Package battle implements the pure turn-based battle domain: combatants,
// rooms, commands, initiative, and the turn resolution step.
//
// Nothing in this package performs I/O or holds locks. Callers serialize
// access to a Room and persist side effects reported by ResolveTurn.
package battle

// Side distinguishes player-controlled combatants from monsters.
type Side string

const (
	SidePlayer  Side = "player"
	SideMonster Side = "monster"
)

// Status is a combatant's battle status.
type Status string

const (
	StatusAlive     Status = "alive"
	StatusDead      Status = "dead"
	StatusEscaped   Status = "escaped"
	StatusDefending Status = "defending"
)

// Position is a cell on the 10x10 battle board.
type Position struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Consumable is a usable inventory stack carried into battle by a player.
type Consumable struct {
	// Ref is the inventory instance id.
	Ref      string `json:"ref"`
	ItemID   string `json:"itemId"`
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
	// Target is the allowed target scope: self, ally, enemy or any.
	Target string `json:"target"`
	Effect string `json:"effect"`
	Value  int    `json:"value"`
}

// Combatant is one fighter in a room.
//
// Invariant: 0 <= HP <= MaxHP; Status == StatusDead iff HP == 0 and the
// combatant did not escape.
type Combatant struct {
	ID       string   `json:"id"`
	Side     Side     `json:"side"`
	Name     string   `json:"name"`
	Level    int      `json:"level"`
	HP       int      `json:"hp"`
	MaxHP    int      `json:"maxHp"`
	MP       int      `json:"mp"`
	MaxMP    int      `json:"maxMp"`
	Speed    int      `json:"speed"`
	Attack   int      `json:"attack"`
	Defense  int      `json:"defense"`
	Status   Status   `json:"status"`
	Position Position `json:"position"`
	// AccountID is set for players only.
	AccountID string `json:"accountId,omitempty"`
	// TemplateID is set for monsters only.
	TemplateID string `json:"templateId,omitempty"`
	// Items is the player's consumable snapshot taken when joining.
	Items []Consumable `json:"-"`
}

// IsPlayer reports whether c is player-controlled.
func (c *Combatant) IsPlayer() bool { return c.Side == SidePlayer }

// Active reports whether c can still act and be targeted.
func (c *Combatant) Active() bool {
	return c.Status == StatusAlive || c.Status == StatusDefending
}

// Out reports whether c no longer counts toward its side: dead or escaped.
func (c *Combatant) Out() bool {
	return c.Status == StatusDead || c.Status == StatusEscaped
}

// HPFraction returns HP/MaxHP, or 0 for a degenerate MaxHP.
func (c *Combatant) HPFraction() float64 {
	if c.MaxHP <= 0 {
		return 0
	}
	return float64(c.HP) / float64(c.MaxHP)
}

// ApplyDamage reduces HP by amount, flooring at zero, and marks the
// combatant dead when it reaches zero.
//
// Precondition: amount >= 0.
// Postcondition: HP >= 0; HP == 0 implies Status == StatusDead.
func (c *Combatant) ApplyDamage(amount int) {
	c.HP -= amount
	if c.HP <= 0 {
		c.HP = 0
		c.Status = StatusDead
	}
}

// Heal adds amount HP, capped at MaxHP. Returns the HP actually restored.
func (c *Combatant) Heal(amount int) int {
	before := c.HP
	c.HP = min(c.MaxHP, c.HP+amount)
	return c.HP - before
}

// RestoreMP adds amount MP, capped at MaxMP. Returns the MP actually restored.
func (c *Combatant) RestoreMP(amount int) int {
	before := c.MP
	c.MP = min(c.MaxMP, c.MP+amount)
	return c.MP - before
}

// Clone returns a deep copy of c.
func (c Combatant) Clone() Combatant {
	if c.Items != nil {
		items := make([]Consumable, len(c.Items))
		copy(items, c.Items)
		c.Items = items
	}
	return c
}

// Enemy reports whether a and b are on opposite sides.
func Enemy(a, b *Combatant) bool { return a.Side != b.Side }
