package rolls

import (
	"context"
	"errors"
	"fmt"
	"maps"

	"go.uber.org/zap"

	"github.com/cory-johannsen/multiroll/internal/chat"
	"github.com/cory-johannsen/multiroll/internal/game/dice"
	"github.com/cory-johannsen/multiroll/internal/game/item"
	"github.com/cory-johannsen/multiroll/internal/i18n"
)

// Options configures one roll invocation.
type Options struct {
	// ChatMessage disables message creation when set to false.
	ChatMessage *bool
	// FastForward skips any dialog of the primitive itself.
	FastForward bool
	// RollMode overrides the configured visibility when non-empty.
	RollMode chat.RollMode
	// MessageData is merged into the outbound payload, overriding its keys.
	MessageData map[string]any
	// Extra holds caller options inserted into the payload where the key is free.
	Extra map[string]any
}

// CreatesMessage reports whether the roll should persist a message.
func (o Options) CreatesMessage() bool {
	return o.ChatMessage == nil || *o.ChatMessage
}

// forPart returns the options handed to the primitive for one damage part.
func (o Options) forPart() Options {
	out := o
	out.ChatMessage = Bool(false)
	out.FastForward = true
	out.MessageData = maps.Clone(o.MessageData)
	out.Extra = maps.Clone(o.Extra)
	return out
}

// Bool returns a pointer to v.
func Bool(v bool) *bool {
	return &v
}

// DamageRequest is the input of a damage roll.
type DamageRequest struct {
	// Event is the interaction that triggered the roll; nil when rolled programmatically.
	Event        *Modifiers
	FormulaGroup int
	Critical     bool
	SpellLevel   *int
	Versatile    bool
	Options      Options
	// View restricts the roll to a single damage part. The aggregation sets it
	// for every part it hands to the wrapped primitive.
	View *item.DamageView
}

// DamagePart is one independently rolled damage formula.
type DamagePart struct {
	Roll   *dice.Roll `json:"roll"`
	Flavor string     `json:"flavor"`
}

// DamageRoll is the outcome of a damage roll.
type DamageRoll struct {
	Parts    []DamagePart
	Title    string
	Critical bool
	RollMode chat.RollMode
	// Payload is the assembled message, set even when no message is created.
	Payload chat.Payload
	// MessageID is empty when no message was created.
	MessageID string
}

// Roll returns the roll of the first part, or nil when nothing was rolled.
func (d *DamageRoll) Roll() *dice.Roll {
	if d == nil || len(d.Parts) == 0 {
		return nil
	}
	return d.Parts[0].Roll
}

// DamageRollFunc is a damage roll operation.
type DamageRollFunc = Operation[DamageRequest, *DamageRoll]

// DamageDeps are the collaborators of a DamageRoller. Dialog and Animator are
// optional.
type DamageDeps struct {
	Flags     FlagStore
	Settings  SettingStore
	Messages  MessageStore
	Dialog    DamageDialog
	Notifier  Notifier
	Animator  Animator
	Dice      *dice.Roller
	Localizer *i18n.Localizer
	Audience  chat.Audience
	Logger    *zap.Logger
}

// DamageRoller aggregates the parts of a formula group into one damage message.
type DamageRoller struct {
	deps   DamageDeps
	logger *zap.Logger
}

// NewDamageRoller creates a DamageRoller.
//
// Precondition: every dependency except Dialog and Animator must be non-nil.
func NewDamageRoller(deps DamageDeps) *DamageRoller {
	return &DamageRoller{deps: deps, logger: deps.Logger.Named("damage")}
}

// Middleware returns the aggregation middleware. The wrapped operation is
// the single-formula damage primitive; it is invoked once per part with a
// single-part view and message creation disabled.
func (r *DamageRoller) Middleware() Middleware[DamageRequest, *DamageRoll] {
	return Stages[DamageRequest, *DamageRoll]{
		Pre:  r.checkSupported,
		Core: r.rollParts,
		Post: r.publish,
	}.Middleware()
}

// RollDamage rolls req against base without going through a Patcher.
func (r *DamageRoller) RollDamage(ctx context.Context, it *item.Item, base DamageRollFunc, req DamageRequest) (*DamageRoll, error) {
	return Chain(base, r.Middleware())(ctx, it, req)
}

func (r *DamageRoller) checkSupported(_ context.Context, it *item.Item, req DamageRequest) (DamageRequest, error) {
	if it.Damage == nil {
		return req, fmt.Errorf("item %s: %w", it.ID, item.ErrUnsupportedItem)
	}
	return req, nil
}

func (r *DamageRoller) rollParts(ctx context.Context, it *item.Item, req DamageRequest, next DamageRollFunc) (*DamageRoll, error) {
	loc := r.deps.Localizer
	title := fmt.Sprintf("%s - %s", it.Name, loc.Localize(i18n.KeyDamageRoll))

	mode := req.Options.RollMode
	if mode == "" {
		s, err := r.deps.Settings.String(ctx, SettingRollMode)
		if err != nil {
			return nil, fmt.Errorf("reading setting %s: %w", SettingRollMode, err)
		}
		if mode, err = chat.ParseRollMode(s); err != nil {
			return nil, fmt.Errorf("setting %s: %w", SettingRollMode, err)
		}
	}

	critical := req.Critical
	var bonus *dice.Formula
	if req.Event != nil && r.deps.Dialog != nil {
		key, err := r.deps.Settings.String(ctx, SettingDialogModifier)
		if err != nil {
			return nil, fmt.Errorf("reading setting %s: %w", SettingDialogModifier, err)
		}
		if req.Event.Held(key) {
			answer, err := r.deps.Dialog.PromptDamage(ctx, dialogRequest(title, mode, *req.Event, loc))
			if err != nil {
				return nil, fmt.Errorf("damage dialog: %w", err)
			}
			if answer == nil {
				r.logger.Debug("damage dialog dismissed", zap.String("item", it.ID))
				return nil, nil
			}
			critical = answer.Critical
			if answer.Bonus != "" {
				f, err := bonusFormula(answer.Bonus, critical)
				if err != nil {
					return nil, err
				}
				bonus = &f
			}
			if answer.RollMode != "" {
				mode = answer.RollMode
			}
		}
	}

	groups, ok, err := LoadFormulaGroups(ctx, r.deps.Flags, it)
	if err != nil {
		return nil, err
	}
	if !ok {
		groups = item.DefaultFormulaGroups(it, loc.Localize(i18n.KeyDefaultGroup))
	}
	group, parts, err := item.ResolveGroup(it, groups, req.FormulaGroup)
	if err != nil {
		var empty *item.EmptyGroupError
		if errors.As(err, &empty) {
			r.deps.Notifier.Error(ctx, loc.Format(i18n.KeyGroupEmpty, empty.Group.Label))
		}
		return nil, fmt.Errorf("rolling damage for item %s: %w", it.ID, err)
	}
	title = fmt.Sprintf("%s (%s)", title, group.Label)

	out := &DamageRoll{Title: title, Critical: critical, RollMode: mode}
	sub := req
	sub.Critical = critical
	sub.Options = req.Options.forPart()
	for i, part := range parts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		view := it.SinglePartView(part)
		sub.View = &view
		res, err := next(ctx, it, sub)
		if err != nil {
			r.logger.Warn("damage part roll failed",
				zap.String("item", it.ID),
				zap.Int("part", i),
				zap.String("formula", part.Formula),
				zap.Error(err),
			)
			continue
		}
		roll := res.Roll()
		if roll == nil {
			r.logger.Debug("damage part not rolled", zap.String("item", it.ID), zap.Int("part", i))
			continue
		}
		out.Parts = append(out.Parts, DamagePart{Roll: roll, Flavor: item.TypeLabel(part.Type)})
	}

	if bonus != nil {
		roll, err := r.deps.Dice.Roll(*bonus)
		if err != nil {
			return nil, fmt.Errorf("situational bonus %q: %w", bonus.Raw, err)
		}
		out.Parts = append(out.Parts, DamagePart{Roll: roll, Flavor: loc.Label(i18n.KeySituationalBonus)})
	}
	return out, nil
}

// bonusFormula parses the situational bonus. On a critical only its first
// dice term is doubled.
func bonusFormula(expr string, critical bool) (dice.Formula, error) {
	f, err := dice.ParseFormula(expr)
	if err != nil {
		return dice.Formula{}, fmt.Errorf("situational bonus %q: %w", expr, err)
	}
	if critical {
		if f, err = f.Alter(2, 0); err != nil {
			return dice.Formula{}, fmt.Errorf("situational bonus %q: %w", expr, err)
		}
	}
	return f, nil
}
