package rolls

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/cory-johannsen/multiroll/internal/chat"
	"github.com/cory-johannsen/multiroll/internal/game/dice"
	"github.com/cory-johannsen/multiroll/internal/game/item"
)

// Setting keys read from the SettingStore.
const (
	SettingAutoRollCheck  = "autoRollCheck"
	SettingAutoRollDamage = "autoRollDamage"
	SettingAutoRollOther  = "autoRollOther"
	SettingRollMode       = "rollMode"
	SettingDialogModifier = "showRollDialogModifier"
)

// MessageStore persists chat messages.
type MessageStore interface {
	// Create persists p and returns the assigned message ID.
	Create(ctx context.Context, p chat.Payload) (string, error)
	// List returns every stored message in creation order.
	List(ctx context.Context) ([]chat.Payload, error)
}

// FlagStore holds per-item flags. It is the only write channel to an item.
type FlagStore interface {
	// ItemFlag returns the flag value and whether it is set.
	ItemFlag(ctx context.Context, itemID, key string) (any, bool, error)
	SetItemFlag(ctx context.Context, itemID, key string, value any) error
}

// SettingStore exposes global settings.
type SettingStore interface {
	Bool(ctx context.Context, key string) (bool, error)
	String(ctx context.Context, key string) (string, error)
}

// Notifier shows user-facing notices.
type Notifier interface {
	Error(ctx context.Context, message string)
}

// Visibility is the audience restriction of a message.
type Visibility struct {
	Whisper []string `json:"whisper,omitempty"`
	Blind   bool     `json:"blind,omitempty"`
}

// VisibilityOf extracts the whisper and blind keys of p.
func VisibilityOf(p chat.Payload) Visibility {
	return Visibility{Whisper: p.Whisper(), Blind: p.Blind()}
}

// Animator presents a roll as animated dice.
type Animator interface {
	Animate(ctx context.Context, r *dice.Roll, vis Visibility) error
}

// Primitives are the host's sibling roll primitives, invoked as opaque calls.
type Primitives interface {
	RollAttack(ctx context.Context, it *item.Item, ev Modifiers) (*dice.Roll, error)
	RollToolCheck(ctx context.Context, it *item.Item, ev Modifiers) (*dice.Roll, error)
	RollFormula(ctx context.Context, it *item.Item, ev Modifiers) (*dice.Roll, error)
}

// Resolve returns the per-item override when present and the global setting
// otherwise.
func Resolve(override *bool, setting bool) bool {
	if override != nil {
		return *override
	}
	return setting
}

// resolveToggle applies Resolve to the item flag key and the setting key.
func resolveToggle(ctx context.Context, flags FlagStore, settings SettingStore, it *item.Item, flagKey, settingKey string) (bool, error) {
	setting, err := settings.Bool(ctx, settingKey)
	if err != nil {
		return false, fmt.Errorf("reading setting %s: %w", settingKey, err)
	}
	v, ok, err := flags.ItemFlag(ctx, it.ID, flagKey)
	if err != nil {
		return false, fmt.Errorf("reading flag %s of item %s: %w", flagKey, it.ID, err)
	}
	var override *bool
	if b, isBool := v.(bool); ok && isBool {
		override = &b
	}
	return Resolve(override, setting), nil
}

// LoadFormulaGroups returns the formula groups stored on it. ok is false
// when none are stored.
func LoadFormulaGroups(ctx context.Context, flags FlagStore, it *item.Item) (groups []item.FormulaGroup, ok bool, err error) {
	v, ok, err := flags.ItemFlag(ctx, it.ID, item.FlagFormulaGroups)
	if err != nil {
		return nil, false, fmt.Errorf("reading formula groups of item %s: %w", it.ID, err)
	}
	if !ok || v == nil {
		return nil, false, nil
	}
	if typed, isTyped := v.([]item.FormulaGroup); isTyped {
		return typed, true, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, false, fmt.Errorf("encoding formula groups of item %s: %w", it.ID, err)
	}
	if err := json.Unmarshal(data, &groups); err != nil {
		return nil, false, fmt.Errorf("decoding formula groups of item %s: %w", it.ID, err)
	}
	return groups, true, nil
}

// InitializeFormulaGroups stores the default single group on it when the
// item has no formula groups yet.
//
// Postcondition: on success the item has at least one stored formula group.
func InitializeFormulaGroups(ctx context.Context, flags FlagStore, it *item.Item, label string) error {
	_, ok, err := LoadFormulaGroups(ctx, flags, it)
	if err != nil || ok {
		return err
	}
	if err := flags.SetItemFlag(ctx, it.ID, item.FlagFormulaGroups, item.DefaultFormulaGroups(it, label)); err != nil {
		return fmt.Errorf("initializing formula groups of item %s: %w", it.ID, err)
	}
	return nil
}
