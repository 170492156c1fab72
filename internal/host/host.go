// Package host is the reference tabletop host: it owns the base item roll and
// the single-purpose roll primitives that the rolls package decorates.
package host

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"strings"

	"go.uber.org/zap"

	"github.com/cory-johannsen/multiroll/internal/chat"
	"github.com/cory-johannsen/multiroll/internal/game/dice"
	"github.com/cory-johannsen/multiroll/internal/game/item"
	"github.com/cory-johannsen/multiroll/internal/i18n"
	"github.com/cory-johannsen/multiroll/internal/rolls"
)

var cardTemplate = template.Must(template.New("card").Parse(
	`<div class="dnd5e chat-card item-card" data-actor-id="{{.ActorID}}" data-item-id="{{.ID}}">` +
		`<header class="card-header flexrow"><h3 class="item-name">{{.Name}}</h3></header>` +
		`<div class="card-content">{{.Type}}</div>` +
		`</div>`))

// Host rolls items for one user.
type Host struct {
	dice     *dice.Roller
	messages rolls.MessageStore
	settings rolls.SettingStore
	loc      *i18n.Localizer
	audience chat.Audience
	logger   *zap.Logger
}

// New creates a Host.
//
// Precondition: all arguments must be non-nil.
func New(roller *dice.Roller, messages rolls.MessageStore, settings rolls.SettingStore, loc *i18n.Localizer, audience chat.Audience, logger *zap.Logger) *Host {
	return &Host{
		dice:     roller,
		messages: messages,
		settings: settings,
		loc:      loc,
		audience: audience,
		logger:   logger.Named("host"),
	}
}

// RollItem uses it: an item card is posted and returned.
func (h *Host) RollItem(ctx context.Context, it *item.Item, req rolls.ItemRollRequest) (chat.Payload, error) {
	var buf bytes.Buffer
	if err := cardTemplate.Execute(&buf, it); err != nil {
		return nil, fmt.Errorf("rendering item card for %s: %w", it.ID, err)
	}
	mode, err := h.rollMode(ctx, "")
	if err != nil {
		return nil, err
	}
	card := chat.Payload{
		chat.KeyUser:    h.audience.UserID,
		chat.KeyContent: buf.String(),
		chat.KeySpeaker: speaker(it),
		chat.KeyType:    chat.TypeOther,
	}
	chat.ApplyRollMode(card, mode, h.audience)
	if err := chat.MergeOptions(card, req.Options); err != nil {
		return nil, err
	}
	id, err := h.messages.Create(ctx, card)
	if err != nil {
		return nil, fmt.Errorf("creating item card for %s: %w", it.ID, err)
	}
	card[chat.KeyID] = id
	return card, nil
}

// AttackFormula returns the attack roll formula of it. Holding alt rolls
// with advantage.
//
// Precondition: it.HasAttack() must be true.
func AttackFormula(it *item.Item, ev rolls.Modifiers) (dice.Formula, error) {
	d20 := "1d20"
	if ev.Alt {
		d20 = "2d20kh1"
	}
	if cs := it.Attack.CriticalThreshold; cs > 0 && cs < 20 {
		d20 += fmt.Sprintf("cs>=%d", cs)
	}
	return dice.ParseFormula(withBonus(d20, it.Attack.Bonus))
}

// RollAttack rolls the attack of it and posts the result.
func (h *Host) RollAttack(ctx context.Context, it *item.Item, ev rolls.Modifiers) (*dice.Roll, error) {
	if !it.HasAttack() {
		return nil, fmt.Errorf("item %s has no attack", it.ID)
	}
	f, err := AttackFormula(it, ev)
	if err != nil {
		return nil, fmt.Errorf("attack formula of %s: %w", it.ID, err)
	}
	return h.rollAndPost(ctx, it, f, fmt.Sprintf("%s - Attack Roll", it.Name), rolls.Options{})
}

// RollToolCheck rolls the tool check of it and posts the result.
func (h *Host) RollToolCheck(ctx context.Context, it *item.Item, _ rolls.Modifiers) (*dice.Roll, error) {
	f, err := dice.ParseFormula(withBonus("1d20", it.ToolBonus))
	if err != nil {
		return nil, fmt.Errorf("tool formula of %s: %w", it.ID, err)
	}
	return h.rollAndPost(ctx, it, f, fmt.Sprintf("%s - Tool Check", it.Name), rolls.Options{})
}

// RollFormula rolls the free-form formula of it and posts the result.
func (h *Host) RollFormula(ctx context.Context, it *item.Item, _ rolls.Modifiers) (*dice.Roll, error) {
	f, err := dice.ParseFormula(it.Formula)
	if err != nil {
		return nil, fmt.Errorf("other formula of %s: %w", it.ID, err)
	}
	return h.rollAndPost(ctx, it, f, fmt.Sprintf("%s - Other Formula", it.Name), rolls.Options{})
}

// RollDamage is the single-formula damage primitive. It rolls every damage
// part of it, or only the part of req.View when set, as one summed formula.
// A critical doubles every dice term.
func (h *Host) RollDamage(ctx context.Context, it *item.Item, req rolls.DamageRequest) (*rolls.DamageRoll, error) {
	parts := it.DamageParts()
	versatile := ""
	if it.Damage != nil {
		versatile = it.Damage.Versatile
	}
	if req.View != nil {
		parts = req.View.Parts()
		versatile = req.View.Versatile
	}
	if len(parts) == 0 {
		return nil, nil
	}

	exprs := make([]string, len(parts))
	for i, p := range parts {
		exprs[i] = p.Formula
	}
	if req.Versatile && versatile != "" {
		exprs[0] = versatile
	}
	f, err := dice.ParseFormula(strings.Join(exprs, " + "))
	if err != nil {
		return nil, fmt.Errorf("damage formula of %s: %w", it.ID, err)
	}
	if req.Critical {
		if f, err = f.DoubleDice(); err != nil {
			return nil, fmt.Errorf("damage formula of %s: %w", it.ID, err)
		}
	}

	title := fmt.Sprintf("%s - %s", it.Name, h.loc.Localize(i18n.KeyDamageRoll))
	if req.Critical {
		title = fmt.Sprintf("%s (%s)", title, h.loc.Localize(i18n.KeyCritical))
	}
	roll, err := h.rollAndPost(ctx, it, f, title, req.Options)
	if err != nil {
		return nil, err
	}
	return &rolls.DamageRoll{
		Parts:    []rolls.DamagePart{{Roll: roll, Flavor: item.TypeLabel(parts[0].Type)}},
		Title:    title,
		Critical: req.Critical,
		RollMode: req.Options.RollMode,
	}, nil
}

func (h *Host) rollAndPost(ctx context.Context, it *item.Item, f dice.Formula, flavor string, opts rolls.Options) (*dice.Roll, error) {
	roll, err := h.dice.Roll(f)
	if err != nil {
		return nil, fmt.Errorf("rolling %q for %s: %w", f.Raw, it.ID, err)
	}
	if !opts.CreatesMessage() {
		return roll, nil
	}

	content, err := chat.RenderRoll(roll)
	if err != nil {
		return nil, err
	}
	mode, err := h.rollMode(ctx, opts.RollMode)
	if err != nil {
		return nil, err
	}
	p := chat.Payload{
		chat.KeyUser:    h.audience.UserID,
		chat.KeyContent: content,
		chat.KeyFlavor:  flavor,
		chat.KeyRoll:    roll,
		chat.KeySpeaker: speaker(it),
		chat.KeySound:   chat.SoundDice,
		chat.KeyType:    chat.TypeRoll,
	}
	chat.ApplyRollMode(p, mode, h.audience)
	if err := chat.MergeOptions(p, opts.Extra); err != nil {
		return nil, err
	}
	if err := chat.MergeMessageData(p, opts.MessageData); err != nil {
		return nil, err
	}
	if _, err := h.messages.Create(ctx, p); err != nil {
		return nil, fmt.Errorf("creating roll message for %s: %w", it.ID, err)
	}
	h.logger.Debug("roll posted", zap.String("item", it.ID), zap.String("flavor", flavor), zap.Int("total", roll.Total))
	return roll, nil
}

func (h *Host) rollMode(ctx context.Context, override chat.RollMode) (chat.RollMode, error) {
	if override != "" {
		return override, nil
	}
	s, err := h.settings.String(ctx, rolls.SettingRollMode)
	if err != nil {
		return "", fmt.Errorf("reading setting %s: %w", rolls.SettingRollMode, err)
	}
	return chat.ParseRollMode(s)
}

func speaker(it *item.Item) chat.Speaker {
	return chat.Speaker{Actor: it.ActorID, Alias: it.ActorName}
}

func withBonus(die string, bonus int) string {
	switch {
	case bonus > 0:
		return fmt.Sprintf("%s + %d", die, bonus)
	case bonus < 0:
		return fmt.Sprintf("%s - %d", die, -bonus)
	}
	return die
}
