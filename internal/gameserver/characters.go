package gameserver

//go:generate mockgen -destination=mock/mock_character_store.go -package=gameservermock github.com/cory-johannsen/idlebattle/internal/gameserver CharacterStore

import (
	"context"

	"github.com/cory-johannsen/idlebattle/internal/game/character"
)

// CharacterStore loads and saves persistent characters by account.
//
// Load returns an error wrapping character.ErrNotFound when the account has
// no character.
type CharacterStore interface {
	Load(ctx context.Context, accountID string) (*character.Character, error)
	Save(ctx context.Context, c *character.Character) error
}
