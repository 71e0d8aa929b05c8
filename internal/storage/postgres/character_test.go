package postgres_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/cory-johannsen/idlebattle/internal/game/character"
	"github.com/cory-johannsen/idlebattle/internal/game/inventory"
	"github.com/cory-johannsen/idlebattle/internal/storage/postgres"
	"github.com/cory-johannsen/idlebattle/internal/testutil"
)

func uniqueAccount(prefix string) string {
	return fmt.Sprintf("%s_%d", prefix, time.Now().UnixNano())
}

func setupCharRepo(t *testing.T) *postgres.CharacterRepository {
	t.Helper()
	return postgres.NewCharacterRepository(testutil.NewPool(t))
}

func TestCharacterRepository_CreateAndLoad(t *testing.T) {
	repo := setupCharRepo(t)
	ctx := context.Background()

	c := character.New(uniqueAccount("acct"), "Lin")
	c.Qi = 120
	c.Inventory = []inventory.Slot{{InstanceID: "i-1", ItemID: "potion", Quantity: 3, Level: 1}}

	created, err := repo.Create(ctx, c)
	require.NoError(t, err)
	assert.Equal(t, c.AccountID, created.AccountID)
	assert.False(t, created.CreatedAt.IsZero())

	loaded, err := repo.Load(ctx, c.AccountID)
	require.NoError(t, err)
	assert.Equal(t, "Lin", loaded.Name)
	assert.Equal(t, 1, loaded.Level)
	assert.Equal(t, 100, loaded.HP)
	assert.Equal(t, 50, loaded.MaxMP)
	assert.Equal(t, int64(120), loaded.Qi)
	assert.Equal(t, c.Stats, loaded.Stats)
	assert.Equal(t, c.Inventory, loaded.Inventory)
}

func TestCharacterRepository_CreateDuplicate(t *testing.T) {
	repo := setupCharRepo(t)
	ctx := context.Background()

	c := character.New(uniqueAccount("acct"), "Lin")
	_, err := repo.Create(ctx, c)
	require.NoError(t, err)

	_, err = repo.Create(ctx, c)
	require.Error(t, err)
	assert.ErrorIs(t, err, postgres.ErrCharacterExists)
}

func TestCharacterRepository_LoadNotFound(t *testing.T) {
	repo := setupCharRepo(t)
	_, err := repo.Load(context.Background(), "nobody")
	require.Error(t, err)
	assert.ErrorIs(t, err, character.ErrNotFound)
}

func TestCharacterRepository_Save(t *testing.T) {
	repo := setupCharRepo(t)
	ctx := context.Background()

	c := character.New(uniqueAccount("acct"), "Lin")
	created, err := repo.Create(ctx, c)
	require.NoError(t, err)

	created.HP = 1
	created.MP = 0
	created.Experience = 450
	created.SpiritStones = 9
	created.Inventory = []inventory.Slot{{InstanceID: "i-2", ItemID: "iron_ore", Quantity: 2, Level: 5}}
	require.NoError(t, repo.Save(ctx, created))

	loaded, err := repo.Load(ctx, c.AccountID)
	require.NoError(t, err)
	assert.Equal(t, 1, loaded.HP)
	assert.Equal(t, 0, loaded.MP)
	assert.Equal(t, int64(450), loaded.Experience)
	assert.Equal(t, int64(9), loaded.SpiritStones)
	assert.Equal(t, created.Inventory, loaded.Inventory)
	assert.False(t, loaded.UpdatedAt.Before(created.UpdatedAt))
}

func TestCharacterRepository_SaveEmptyInventory(t *testing.T) {
	repo := setupCharRepo(t)
	ctx := context.Background()

	c := character.New(uniqueAccount("acct"), "Lin")
	c.Inventory = []inventory.Slot{{InstanceID: "i-1", ItemID: "potion", Quantity: 1, Level: 1}}
	_, err := repo.Create(ctx, c)
	require.NoError(t, err)

	c.Inventory = nil
	require.NoError(t, repo.Save(ctx, c))

	loaded, err := repo.Load(ctx, c.AccountID)
	require.NoError(t, err)
	assert.Empty(t, loaded.Inventory)
}

func TestCharacterRepository_SaveNotFound(t *testing.T) {
	repo := setupCharRepo(t)
	err := repo.Save(context.Background(), character.New("missing", "Ghost"))
	require.Error(t, err)
	assert.ErrorIs(t, err, character.ErrNotFound)
}

// TestCharacterRepository_Property_SaveThenLoad verifies that resources written
// by Save are exactly what Load returns.
func TestCharacterRepository_Property_SaveThenLoad(t *testing.T) {
	repo := setupCharRepo(t)
	ctx := context.Background()

	rapid.Check(t, func(rt *rapid.T) {
		c := character.New(uniqueAccount("prop"), "Lin")
		_, err := repo.Create(ctx, c)
		require.NoError(rt, err)

		c.MaxHP = rapid.IntRange(1, 5000).Draw(rt, "max_hp")
		c.HP = rapid.IntRange(0, c.MaxHP).Draw(rt, "hp")
		c.Qi = rapid.Int64Range(0, 1<<40).Draw(rt, "qi")
		c.Level = rapid.IntRange(1, 200).Draw(rt, "level")
		require.NoError(rt, repo.Save(ctx, c))

		loaded, err := repo.Load(ctx, c.AccountID)
		require.NoError(rt, err)
		assert.Equal(rt, c.MaxHP, loaded.MaxHP)
		assert.Equal(rt, c.HP, loaded.HP)
		assert.Equal(rt, c.Qi, loaded.Qi)
		assert.Equal(rt, c.Level, loaded.Level)
	})
}
