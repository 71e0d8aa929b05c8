package redis_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/suite"

	"github.com/cory-johannsen/idlebattle/internal/config"
	"github.com/cory-johannsen/idlebattle/internal/game/character"
	"github.com/cory-johannsen/idlebattle/internal/game/inventory"
	"github.com/cory-johannsen/idlebattle/internal/pkg/clock"
	"github.com/cory-johannsen/idlebattle/internal/storage/redis"
)

type CharacterRepositorySuite struct {
	suite.Suite
	mr     *miniredis.Miniredis
	client *goredis.Client
	clock  *clock.Manual
	repo   *redis.CharacterRepository
	ctx    context.Context
}

func (s *CharacterRepositorySuite) SetupTest() {
	s.mr = miniredis.RunT(s.T())
	s.client = goredis.NewClient(&goredis.Options{Addr: s.mr.Addr()})
	s.clock = clock.NewManual(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	s.repo = redis.NewCharacterRepository(s.client, "test:", s.clock)
	s.ctx = context.Background()
}

func (s *CharacterRepositorySuite) TearDownTest() {
	s.Require().NoError(s.client.Close())
}

func (s *CharacterRepositorySuite) TestCreateAndLoad() {
	c := character.New("acct-1", "Lin")
	c.Inventory = []inventory.Slot{{InstanceID: "i-1", ItemID: "potion", Quantity: 2, Level: 1}}

	created, err := s.repo.Create(s.ctx, c)
	s.Require().NoError(err)
	s.Equal(s.clock.Now().UTC(), created.CreatedAt)
	s.True(s.mr.Exists("test:character:acct-1"))

	loaded, err := s.repo.Load(s.ctx, "acct-1")
	s.Require().NoError(err)
	s.Equal("Lin", loaded.Name)
	s.Equal(c.Stats, loaded.Stats)
	s.Equal(c.Inventory, loaded.Inventory)
	s.True(created.CreatedAt.Equal(loaded.CreatedAt))
}

func (s *CharacterRepositorySuite) TestCreateDoesNotAliasInput() {
	c := character.New("acct-1", "Lin")
	c.Inventory = []inventory.Slot{{InstanceID: "i-1", ItemID: "potion", Quantity: 2, Level: 1}}
	created, err := s.repo.Create(s.ctx, c)
	s.Require().NoError(err)

	created.Inventory[0].Quantity = 50
	s.Equal(2, c.Inventory[0].Quantity)
}

func (s *CharacterRepositorySuite) TestCreateDuplicate() {
	c := character.New("acct-1", "Lin")
	_, err := s.repo.Create(s.ctx, c)
	s.Require().NoError(err)

	_, err = s.repo.Create(s.ctx, c)
	s.ErrorIs(err, redis.ErrCharacterExists)
}

func (s *CharacterRepositorySuite) TestLoadNotFound() {
	_, err := s.repo.Load(s.ctx, "nobody")
	s.ErrorIs(err, character.ErrNotFound)
}

func (s *CharacterRepositorySuite) TestLoadCorruptDocument() {
	s.Require().NoError(s.mr.Set("test:character:acct-1", "{not json"))
	_, err := s.repo.Load(s.ctx, "acct-1")
	s.Error(err)
	s.NotErrorIs(err, character.ErrNotFound)
}

func (s *CharacterRepositorySuite) TestSave() {
	c := character.New("acct-1", "Lin")
	created, err := s.repo.Create(s.ctx, c)
	s.Require().NoError(err)

	s.clock.Advance(time.Minute)
	created.HP = 1
	created.Qi = 900
	created.Inventory = nil
	s.Require().NoError(s.repo.Save(s.ctx, created))

	loaded, err := s.repo.Load(s.ctx, "acct-1")
	s.Require().NoError(err)
	s.Equal(1, loaded.HP)
	s.Equal(int64(900), loaded.Qi)
	s.Empty(loaded.Inventory)
	s.Equal(s.clock.Now().UTC(), loaded.UpdatedAt)
}

func (s *CharacterRepositorySuite) TestSaveNotFound() {
	err := s.repo.Save(s.ctx, character.New("missing", "Ghost"))
	s.ErrorIs(err, character.ErrNotFound)
	s.False(s.mr.Exists("test:character:missing"))
}

func (s *CharacterRepositorySuite) TestHealth() {
	s.NoError(s.repo.Health(s.ctx, time.Second))
	s.mr.Close()
	s.Error(s.repo.Health(s.ctx, time.Second))
}

func (s *CharacterRepositorySuite) TestNewClient() {
	client, err := redis.NewClient(s.ctx, config.RedisConfig{Addr: s.mr.Addr()})
	s.Require().NoError(err)
	s.NoError(client.Close())

	_, err = redis.NewClient(s.ctx, config.RedisConfig{Addr: "127.0.0.1:1"})
	s.Error(err)
}

func TestCharacterRepositorySuite(t *testing.T) {
	suite.Run(t, new(CharacterRepositorySuite))
}
