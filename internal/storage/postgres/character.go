package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cory-johannsen/idlebattle/internal/game/character"
	"github.com/cory-johannsen/idlebattle/internal/game/inventory"
)

// ErrCharacterExists is returned when creating a character for an account that already has one.
var ErrCharacterExists = errors.New("character already exists")

// CharacterRepository provides character persistence operations.
type CharacterRepository struct {
	db *pgxpool.Pool
}

// NewCharacterRepository creates a CharacterRepository backed by the given pool.
//
// Precondition: db must be a valid, open connection pool.
func NewCharacterRepository(db *pgxpool.Pool) *CharacterRepository {
	return &CharacterRepository{db: db}
}

const characterColumns = `account_id, name, level, experience, hp, max_hp, mp, max_mp,
	pdmg, mdmg, pdef, mdef, spd, qi, spirit_stones, inventory, created_at, updated_at`

// Create inserts a new character and returns it with timestamps set.
//
// Precondition: c.AccountID and c.Name must be non-empty.
// Postcondition: Returns the stored character, or ErrCharacterExists when the
// account already owns one.
func (r *CharacterRepository) Create(ctx context.Context, c *character.Character) (*character.Character, error) {
	inv, err := encodeInventory(c.Inventory)
	if err != nil {
		return nil, err
	}
	row := r.db.QueryRow(ctx, `
		INSERT INTO characters
			(account_id, name, level, experience, hp, max_hp, mp, max_mp,
			 pdmg, mdmg, pdef, mdef, spd, qi, spirit_stones, inventory)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)
		RETURNING `+characterColumns,
		c.AccountID, c.Name, c.Level, c.Experience, c.HP, c.MaxHP, c.MP, c.MaxMP,
		c.Stats.PhysicalDamage, c.Stats.MagicDamage, c.Stats.PhysicalDefense,
		c.Stats.MagicDefense, c.Stats.Speed, c.Qi, c.SpiritStones, inv,
	)
	out, err := scanCharacter(row)
	if err != nil {
		if isDuplicateKeyError(err) {
			return nil, fmt.Errorf("account %q: %w", c.AccountID, ErrCharacterExists)
		}
		return nil, fmt.Errorf("inserting character: %w", err)
	}
	return out, nil
}

// Load retrieves the character owned by accountID.
//
// Postcondition: Returns the Character or an error wrapping character.ErrNotFound.
func (r *CharacterRepository) Load(ctx context.Context, accountID string) (*character.Character, error) {
	row := r.db.QueryRow(ctx, `SELECT `+characterColumns+` FROM characters WHERE account_id = $1`, accountID)
	c, err := scanCharacter(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("account %q: %w", accountID, character.ErrNotFound)
		}
		return nil, fmt.Errorf("loading character: %w", err)
	}
	return c, nil
}

// Save writes every mutable column of c back to its row and bumps updated_at.
//
// Precondition: c.AccountID must reference an existing character.
// Postcondition: Returns nil on success, or an error wrapping character.ErrNotFound
// when no row matches.
func (r *CharacterRepository) Save(ctx context.Context, c *character.Character) error {
	inv, err := encodeInventory(c.Inventory)
	if err != nil {
		return err
	}
	tag, err := r.db.Exec(ctx, `
		UPDATE characters SET
			name = $2, level = $3, experience = $4, hp = $5, max_hp = $6, mp = $7, max_mp = $8,
			pdmg = $9, mdmg = $10, pdef = $11, mdef = $12, spd = $13,
			qi = $14, spirit_stones = $15, inventory = $16, updated_at = NOW()
		WHERE account_id = $1`,
		c.AccountID, c.Name, c.Level, c.Experience, c.HP, c.MaxHP, c.MP, c.MaxMP,
		c.Stats.PhysicalDamage, c.Stats.MagicDamage, c.Stats.PhysicalDefense,
		c.Stats.MagicDefense, c.Stats.Speed, c.Qi, c.SpiritStones, inv,
	)
	if err != nil {
		return fmt.Errorf("saving character: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("account %q: %w", c.AccountID, character.ErrNotFound)
	}
	return nil
}

func scanCharacter(row pgx.Row) (*character.Character, error) {
	var (
		c   character.Character
		inv []byte
	)
	if err := row.Scan(
		&c.AccountID, &c.Name, &c.Level, &c.Experience, &c.HP, &c.MaxHP, &c.MP, &c.MaxMP,
		&c.Stats.PhysicalDamage, &c.Stats.MagicDamage, &c.Stats.PhysicalDefense,
		&c.Stats.MagicDefense, &c.Stats.Speed, &c.Qi, &c.SpiritStones, &inv,
		&c.CreatedAt, &c.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(inv, &c.Inventory); err != nil {
		return nil, fmt.Errorf("decoding inventory for %q: %w", c.AccountID, err)
	}
	return &c, nil
}

func encodeInventory(slots []inventory.Slot) ([]byte, error) {
	if slots == nil {
		slots = []inventory.Slot{}
	}
	b, err := json.Marshal(slots)
	if err != nil {
		return nil, fmt.Errorf("encoding inventory: %w", err)
	}
	return b, nil
}

// isDuplicateKeyError checks if a pgx error is a unique constraint violation.
func isDuplicateKeyError(err error) bool {
	// SQLSTATE 23505 is unique_violation.
	var pgErr interface{ SQLState() string }
	if errors.As(err, &pgErr) {
		return pgErr.SQLState() == "23505"
	}
	return false
}
