package rolls

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/cory-johannsen/multiroll/internal/chat"
	"github.com/cory-johannsen/multiroll/internal/game/item"
)

// Patcher installs the auto-roll and damage aggregation middleware over the
// host's base operations. Each entry point installs at most once per Patcher;
// later calls return the already installed operation.
type Patcher struct {
	baseItem   ItemRollFunc
	baseDamage DamageRollFunc
	orch       *Orchestrator
	roller     *DamageRoller
	logger     *zap.Logger

	itemOnce   sync.Once
	damageOnce sync.Once
	mu         sync.RWMutex
	itemRoll   ItemRollFunc
	damageRoll DamageRollFunc
}

// NewPatcher creates a Patcher over the host's base item roll and base
// single-formula damage roll.
//
// Precondition: all arguments must be non-nil.
func NewPatcher(baseItem ItemRollFunc, baseDamage DamageRollFunc, orch *Orchestrator, roller *DamageRoller, logger *zap.Logger) *Patcher {
	return &Patcher{
		baseItem:   baseItem,
		baseDamage: baseDamage,
		orch:       orch,
		roller:     roller,
		logger:     logger.Named("patcher"),
	}
}

// PatchItemRoll installs the auto-roll middleware over the base item roll.
// The damage sub-roll resolves the damage operation on every call, so it
// uses the aggregation once PatchItemDamageRoll has been installed.
func (p *Patcher) PatchItemRoll() ItemRollFunc {
	p.itemOnce.Do(func() {
		op := Chain(p.baseItem, p.orch.Middleware(p.damage))
		p.mu.Lock()
		p.itemRoll = op
		p.mu.Unlock()
		p.logger.Info("installed item roll patch")
	})
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.itemRoll
}

// PatchItemDamageRoll installs the damage aggregation middleware over the
// base damage roll.
func (p *Patcher) PatchItemDamageRoll() DamageRollFunc {
	p.damageOnce.Do(func() {
		op := Chain(p.baseDamage, p.roller.Middleware())
		p.mu.Lock()
		p.damageRoll = op
		p.mu.Unlock()
		p.logger.Info("installed item damage roll patch")
	})
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.damageRoll
}

// RollItem invokes the current item roll operation.
func (p *Patcher) RollItem(ctx context.Context, it *item.Item, req ItemRollRequest) (chat.Payload, error) {
	p.mu.RLock()
	op := p.itemRoll
	p.mu.RUnlock()
	if op == nil {
		op = p.baseItem
	}
	return op(ctx, it, req)
}

// RollDamage invokes the current damage roll operation.
func (p *Patcher) RollDamage(ctx context.Context, it *item.Item, req DamageRequest) (*DamageRoll, error) {
	return p.damage(ctx, it, req)
}

func (p *Patcher) damage(ctx context.Context, it *item.Item, req DamageRequest) (*DamageRoll, error) {
	p.mu.RLock()
	op := p.damageRoll
	p.mu.RUnlock()
	if op == nil {
		op = p.baseDamage
	}
	return op(ctx, it, req)
}
