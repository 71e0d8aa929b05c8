// Package redis provides an alternate character store backed by Redis.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/cory-johannsen/idlebattle/internal/config"
	"github.com/cory-johannsen/idlebattle/internal/game/character"
	"github.com/cory-johannsen/idlebattle/internal/game/inventory"
	"github.com/cory-johannsen/idlebattle/internal/pkg/clock"
)

// ErrCharacterExists is returned when creating a character for an account that already has one.
var ErrCharacterExists = errors.New("character already exists")

const characterKeyPrefix = "character:"

// NewClient opens a go-redis client from cfg and verifies it with PING.
//
// Postcondition: Returns a connected client or a non-nil error.
func NewClient(ctx context.Context, cfg config.RedisConfig) (*goredis.Client, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("pinging redis at %s: %w", cfg.Addr, err)
	}
	return client, nil
}

// record is the JSON document stored per character.
type record struct {
	AccountID    string                `json:"accountId"`
	Name         string                `json:"name"`
	Level        int                   `json:"level"`
	Experience   int64                 `json:"experience"`
	HP           int                   `json:"hp"`
	MaxHP        int                   `json:"maxHp"`
	MP           int                   `json:"mp"`
	MaxMP        int                   `json:"maxMp"`
	Stats        character.CombatStats `json:"stats"`
	Qi           int64                 `json:"qi"`
	SpiritStones int64                 `json:"spiritStones"`
	Inventory    []inventory.Slot      `json:"inventory"`
	CreatedAt    time.Time             `json:"createdAt"`
	UpdatedAt    time.Time             `json:"updatedAt"`
}

func toRecord(c *character.Character) record {
	inv := c.Inventory
	if inv == nil {
		inv = []inventory.Slot{}
	}
	return record{
		AccountID:    c.AccountID,
		Name:         c.Name,
		Level:        c.Level,
		Experience:   c.Experience,
		HP:           c.HP,
		MaxHP:        c.MaxHP,
		MP:           c.MP,
		MaxMP:        c.MaxMP,
		Stats:        c.Stats,
		Qi:           c.Qi,
		SpiritStones: c.SpiritStones,
		Inventory:    inv,
		CreatedAt:    c.CreatedAt,
		UpdatedAt:    c.UpdatedAt,
	}
}

func (r record) character() *character.Character {
	return &character.Character{
		AccountID:    r.AccountID,
		Name:         r.Name,
		Level:        r.Level,
		Experience:   r.Experience,
		HP:           r.HP,
		MaxHP:        r.MaxHP,
		MP:           r.MP,
		MaxMP:        r.MaxMP,
		Stats:        r.Stats,
		Qi:           r.Qi,
		SpiritStones: r.SpiritStones,
		Inventory:    r.Inventory,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
}

// CharacterRepository stores one JSON document per account under a key prefix.
type CharacterRepository struct {
	client goredis.UniversalClient
	prefix string
	clock  clock.Clock
}

// NewCharacterRepository creates a CharacterRepository.
//
// Precondition: client must be non-nil. A nil clk uses the real clock.
func NewCharacterRepository(client goredis.UniversalClient, keyPrefix string, clk clock.Clock) *CharacterRepository {
	if clk == nil {
		clk = clock.New()
	}
	return &CharacterRepository{client: client, prefix: keyPrefix, clock: clk}
}

func (r *CharacterRepository) key(accountID string) string {
	return r.prefix + characterKeyPrefix + accountID
}

// Create stores a new character.
//
// Postcondition: Returns the stored character with timestamps set, or
// ErrCharacterExists when the account already owns one.
func (r *CharacterRepository) Create(ctx context.Context, c *character.Character) (*character.Character, error) {
	out := c.Clone()
	now := r.clock.Now().UTC()
	out.CreatedAt, out.UpdatedAt = now, now

	data, err := json.Marshal(toRecord(out))
	if err != nil {
		return nil, fmt.Errorf("encoding character: %w", err)
	}
	ok, err := r.client.SetNX(ctx, r.key(c.AccountID), data, 0).Result()
	if err != nil {
		return nil, fmt.Errorf("creating character: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("account %q: %w", c.AccountID, ErrCharacterExists)
	}
	return out, nil
}

// Load retrieves the character owned by accountID.
//
// Postcondition: Returns the Character or an error wrapping character.ErrNotFound.
func (r *CharacterRepository) Load(ctx context.Context, accountID string) (*character.Character, error) {
	raw, err := r.client.Get(ctx, r.key(accountID)).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, fmt.Errorf("account %q: %w", accountID, character.ErrNotFound)
		}
		return nil, fmt.Errorf("loading character: %w", err)
	}
	var rec record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("decoding character %q: %w", accountID, err)
	}
	return rec.character(), nil
}

// Save overwrites an existing character document and bumps UpdatedAt.
//
// Postcondition: Returns nil on success, or an error wrapping
// character.ErrNotFound when the account has no stored character.
func (r *CharacterRepository) Save(ctx context.Context, c *character.Character) error {
	rec := toRecord(c)
	rec.UpdatedAt = r.clock.Now().UTC()
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encoding character: %w", err)
	}
	ok, err := r.client.SetXX(ctx, r.key(c.AccountID), data, 0).Result()
	if err != nil {
		return fmt.Errorf("saving character: %w", err)
	}
	if !ok {
		return fmt.Errorf("account %q: %w", c.AccountID, character.ErrNotFound)
	}
	return nil
}

// Health reports whether redis answers PING within timeout.
func (r *CharacterRepository) Health(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return r.client.Ping(ctx).Err()
}
