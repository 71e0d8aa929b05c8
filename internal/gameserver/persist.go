package gameserver

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/cory-johannsen/idlebattle/internal/game/battle"
	"github.com/cory-johannsen/idlebattle/internal/game/inventory"
)

const settleConcurrency = 4

// Persister writes battle side effects through to the CharacterStore in the
// background. Writes for one account are serialized; failures are logged and
// never surface to the room.
type Persister struct {
	store    CharacterStore
	adapter  *CombatantAdapter
	rewards  *RewardService
	accounts *KeyedLocks
	timeout  time.Duration
	logger   *zap.Logger

	wg sync.WaitGroup
}

// NewPersister creates a Persister.
//
// Precondition: all pointers must be non-nil; timeout > 0.
func NewPersister(store CharacterStore, adapter *CombatantAdapter, rewards *RewardService, timeout time.Duration, logger *zap.Logger) *Persister {
	return &Persister{
		store:    store,
		adapter:  adapter,
		rewards:  rewards,
		accounts: NewKeyedLocks(),
		timeout:  timeout,
		logger:   logger,
	}
}

// UseItems removes each consumed item from its owner's stored inventory.
func (p *Persister) UseItems(roomID string, uses []battle.ItemUse) {
	for _, u := range uses {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
			defer cancel()
			err := p.update(ctx, u.AccountID, func(bp *inventory.Backpack) error {
				_, err := bp.Consume(u.ItemRef)
				return err
			})
			if err != nil {
				p.logger.Error("persisting item use",
					zap.String("room_id", roomID),
					zap.String("account_id", u.AccountID),
					zap.String("item_ref", u.ItemRef),
					zap.Error(err),
				)
			}
		}()
	}
}

func (p *Persister) update(ctx context.Context, accountID string, fn func(*inventory.Backpack) error) error {
	unlock := p.accounts.Lock(accountID)
	defer unlock()
	c, err := p.store.Load(ctx, accountID)
	if err != nil {
		return fmt.Errorf("loading character: %w", err)
	}
	bp := inventory.NewBackpack(max(len(c.Inventory), p.rewards.capacity), c.Inventory)
	if err := fn(bp); err != nil {
		return err
	}
	c.Inventory = bp.Slots()
	if err := p.store.Save(ctx, c); err != nil {
		return fmt.Errorf("saving character: %w", err)
	}
	return nil
}

// Settle writes every player's final hp/mp and any reward for a finished room.
func (p *Persister) Settle(room *battle.Room, rewards []Reward) {
	byAccount := make(map[string]Reward, len(rewards))
	for _, r := range rewards {
		byAccount[r.AccountID] = r
	}
	var players []battle.Combatant
	for _, c := range room.Participants {
		if c.IsPlayer() {
			players = append(players, c)
		}
	}

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
		defer cancel()
		var g errgroup.Group
		g.SetLimit(settleConcurrency)
		for _, cb := range players {
			g.Go(func() error {
				reward, ok := byAccount[cb.AccountID]
				return p.settleOne(ctx, cb, reward, ok)
			})
		}
		if err := g.Wait(); err != nil {
			p.logger.Error("settling battle", zap.String("room_id", room.ID), zap.Error(err))
		}
	}()
}

func (p *Persister) settleOne(ctx context.Context, cb battle.Combatant, reward Reward, rewarded bool) error {
	unlock := p.accounts.Lock(cb.AccountID)
	defer unlock()
	c, err := p.store.Load(ctx, cb.AccountID)
	if err != nil {
		return fmt.Errorf("loading character %s: %w", cb.AccountID, err)
	}
	if p.adapter.ApplyFinalState(cb, c) {
		p.logger.Info("death penalty applied", zap.String("account_id", cb.AccountID))
	}
	if rewarded {
		p.rewards.Apply(c, reward)
	}
	if err := p.store.Save(ctx, c); err != nil {
		return fmt.Errorf("saving character %s: %w", cb.AccountID, err)
	}
	return nil
}

// Wait blocks until every write issued so far has finished.
func (p *Persister) Wait() {
	p.wg.Wait()
}
