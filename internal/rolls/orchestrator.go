package rolls

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/cory-johannsen/multiroll/internal/chat"
	"github.com/cory-johannsen/multiroll/internal/game/dice"
	"github.com/cory-johannsen/multiroll/internal/game/item"
	"github.com/cory-johannsen/multiroll/internal/i18n"
)

// ItemRollRequest is the input of a generic item roll (an item use).
type ItemRollRequest struct {
	// SpellLevel overrides the item level for the damage roll when set.
	SpellLevel *int
	// Options are inserted into the item card payload where the key is free.
	Options map[string]any
}

// ItemRollFunc is a generic item roll. A nil payload means the user aborted
// the item use.
type ItemRollFunc = Operation[ItemRollRequest, chat.Payload]

// OrchestratorDeps are the collaborators of an Orchestrator.
type OrchestratorDeps struct {
	Flags      FlagStore
	Settings   SettingStore
	Primitives Primitives
	Modifiers  ModifierTracker
	Localizer  *i18n.Localizer
	Logger     *zap.Logger
}

// Orchestrator chains the check, damage and other-formula rolls after an
// item use.
type Orchestrator struct {
	deps   OrchestratorDeps
	logger *zap.Logger
}

// NewOrchestrator creates an Orchestrator.
//
// Precondition: every dependency must be non-nil.
func NewOrchestrator(deps OrchestratorDeps) *Orchestrator {
	return &Orchestrator{deps: deps, logger: deps.Logger.Named("autoroll")}
}

// Middleware returns the auto-roll middleware. damage is the damage roll
// operation invoked for the damage sub-roll.
//
// Postcondition: the wrapped item roll runs exactly once and its payload is
// returned unchanged.
func (o *Orchestrator) Middleware(damage DamageRollFunc) Middleware[ItemRollRequest, chat.Payload] {
	return Stages[ItemRollRequest, chat.Payload]{
		Post: func(ctx context.Context, it *item.Item, req ItemRollRequest, card chat.Payload) (chat.Payload, error) {
			return card, o.followUp(ctx, it, req, card, damage)
		},
	}.Middleware()
}

type toggles struct {
	check, damage, other bool
}

func (o *Orchestrator) resolveToggles(ctx context.Context, it *item.Item) (toggles, error) {
	var t toggles
	var err error
	if t.check, err = resolveToggle(ctx, o.deps.Flags, o.deps.Settings, it, item.FlagAutoRollAttack, SettingAutoRollCheck); err != nil {
		return t, err
	}
	if t.damage, err = resolveToggle(ctx, o.deps.Flags, o.deps.Settings, it, item.FlagAutoRollDamage, SettingAutoRollDamage); err != nil {
		return t, err
	}
	if t.other, err = resolveToggle(ctx, o.deps.Flags, o.deps.Settings, it, item.FlagAutoRollOther, SettingAutoRollOther); err != nil {
		return t, err
	}
	return t, nil
}

// followUp runs the sub-rolls enabled for it. Any sub-roll error aborts the
// remaining ones.
func (o *Orchestrator) followUp(ctx context.Context, it *item.Item, req ItemRollRequest, card chat.Payload, damage DamageRollFunc) error {
	t, err := o.resolveToggles(ctx, it)
	if err != nil {
		return fmt.Errorf("auto roll for item %s: %w", it.ID, err)
	}
	if card == nil || (!t.check && !t.damage && !t.other) {
		return nil
	}

	if err := InitializeFormulaGroups(ctx, o.deps.Flags, it, o.deps.Localizer.Localize(i18n.KeyDefaultGroup)); err != nil {
		return err
	}
	ev := o.deps.Modifiers.Snapshot()

	var check *dice.Roll
	if t.check {
		switch {
		case it.HasAttack():
			check, err = o.deps.Primitives.RollAttack(ctx, it, ev)
		case it.IsTool():
			check, err = o.deps.Primitives.RollToolCheck(ctx, it, ev)
		}
		if err != nil {
			return fmt.Errorf("check roll for item %s: %w", it.ID, err)
		}
	}

	if it.HasDamage() && t.damage {
		level := it.Level
		if req.SpellLevel != nil {
			level = *req.SpellLevel
		}
		dreq := DamageRequest{Event: &ev, SpellLevel: &level}
		if check != nil {
			dreq.Critical = check.IsCritical()
		}
		if _, err := damage(ctx, it, dreq); err != nil {
			return fmt.Errorf("damage roll for item %s: %w", it.ID, err)
		}
	}

	if it.Formula != "" && t.other {
		if _, err := o.deps.Primitives.RollFormula(ctx, it, ev); err != nil {
			return fmt.Errorf("other formula roll for item %s: %w", it.ID, err)
		}
	}

	o.logger.Debug("auto roll complete",
		zap.String("item", it.ID),
		zap.Bool("check", check != nil),
		zap.Bool("damage", it.HasDamage() && t.damage),
	)
	return nil
}
