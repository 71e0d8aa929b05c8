package monster

import (
	"fmt"

	"github.com/cory-johannsen/idlebattle/internal/game/dice"
)

// MaterialDrop is the sentinel item id that draws from the level-tiered material pool.
const MaterialDrop = "@material"

// Drop is one entry of a monster's drop table.
type Drop struct {
	// ItemID names an item template, or MaterialDrop.
	ItemID string  `yaml:"item"`
	Chance float64 `yaml:"chance"`
	// Quantity is a dice expression ("1", "1d3") for stackable drops; defaults to 1.
	Quantity string `yaml:"quantity"`

	qty dice.Expression
}

// DropTable lists independent drop rolls for one defeated monster.
type DropTable []Drop

// Validate checks each entry and pre-parses quantity expressions.
//
// Postcondition: Returns nil iff every chance is in (0,1] and every quantity parses.
func (dt DropTable) Validate() error {
	for i := range dt {
		d := &dt[i]
		if d.ItemID == "" {
			return fmt.Errorf("drops[%d] must have a non-empty item id", i)
		}
		if d.Chance <= 0 || d.Chance > 1.0 {
			return fmt.Errorf("drops[%d] chance must be in (0, 1.0], got %f", i, d.Chance)
		}
		q := d.Quantity
		if q == "" {
			q = "1"
		}
		e, err := dice.Parse(q)
		if err != nil {
			return fmt.Errorf("drops[%d] quantity: %w", i, err)
		}
		d.qty = e
	}
	return nil
}

// Rolled is one drop that passed its chance roll.
type Rolled struct {
	ItemID   string
	Quantity int
}

// Roll rolls every entry independently.
//
// Precondition: dt has passed Validate.
// Postcondition: every returned Quantity is >= 1.
func (dt DropTable) Roll(r *dice.Roller) []Rolled {
	var out []Rolled
	for _, d := range dt {
		if !r.Chance("drop:"+d.ItemID, d.Chance) {
			continue
		}
		qty := 1
		if d.qty.Raw != "" {
			qty = max(1, r.Roll(d.qty).Total())
		}
		out = append(out, Rolled{ItemID: d.ItemID, Quantity: qty})
	}
	return out
}
