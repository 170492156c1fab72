// Package memory provides in-process message, item-flag and settings stores.
// All stores are safe for concurrent use.
package memory

import (
	"context"
	"fmt"
	"maps"
	"sync"

	"github.com/google/uuid"

	"github.com/cory-johannsen/multiroll/internal/chat"
	"github.com/cory-johannsen/multiroll/internal/config"
	"github.com/cory-johannsen/multiroll/internal/game/item"
	"github.com/cory-johannsen/multiroll/internal/rolls"
)

// MessageStore keeps created messages in creation order.
type MessageStore struct {
	mu   sync.RWMutex
	msgs []chat.Payload
}

// NewMessageStore returns an empty MessageStore.
func NewMessageStore() *MessageStore {
	return &MessageStore{}
}

// Create stores a copy of p under a fresh ID.
//
// Postcondition: the stored copy carries the returned ID under chat.KeyID.
func (s *MessageStore) Create(_ context.Context, p chat.Payload) (string, error) {
	id := uuid.NewString()
	stored := p.Clone()
	stored[chat.KeyID] = id

	s.mu.Lock()
	defer s.mu.Unlock()
	s.msgs = append(s.msgs, stored)
	return id, nil
}

// List returns copies of every stored message.
func (s *MessageStore) List(_ context.Context) ([]chat.Payload, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]chat.Payload, len(s.msgs))
	for i, m := range s.msgs {
		out[i] = m.Clone()
	}
	return out, nil
}

// Len returns the number of stored messages.
func (s *MessageStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.msgs)
}

// FlagStore keeps item flags keyed by item ID.
type FlagStore struct {
	mu    sync.RWMutex
	flags map[string]map[string]any
}

// NewFlagStore returns an empty FlagStore.
func NewFlagStore() *FlagStore {
	return &FlagStore{flags: make(map[string]map[string]any)}
}

// Seed copies the catalogue flags of items into the store.
func (s *FlagStore) Seed(items ...*item.Item) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, it := range items {
		if len(it.Flags) == 0 {
			continue
		}
		if s.flags[it.ID] == nil {
			s.flags[it.ID] = make(map[string]any, len(it.Flags))
		}
		maps.Copy(s.flags[it.ID], it.Flags)
	}
}

// ItemFlag returns the flag key of itemID.
func (s *FlagStore) ItemFlag(_ context.Context, itemID, key string) (any, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.flags[itemID][key]
	return v, ok, nil
}

// SetItemFlag sets the flag key of itemID.
func (s *FlagStore) SetItemFlag(_ context.Context, itemID, key string, value any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.flags[itemID] == nil {
		s.flags[itemID] = make(map[string]any)
	}
	s.flags[itemID][key] = value
	return nil
}

// SettingStore holds global settings.
type SettingStore struct {
	mu     sync.RWMutex
	values map[string]any
}

// NewSettingStore returns a SettingStore holding a copy of values.
func NewSettingStore(values map[string]any) *SettingStore {
	return &SettingStore{values: maps.Clone(values)}
}

// SettingsFromConfig returns the settings registered from cfg.
func SettingsFromConfig(cfg config.RollsConfig) *SettingStore {
	return NewSettingStore(map[string]any{
		rolls.SettingAutoRollCheck:  cfg.AutoRollCheck,
		rolls.SettingAutoRollDamage: cfg.AutoRollDamage,
		rolls.SettingAutoRollOther:  cfg.AutoRollOther,
		rolls.SettingRollMode:       cfg.RollMode,
		rolls.SettingDialogModifier: cfg.DialogModifier,
	})
}

// Set replaces the value of key.
func (s *SettingStore) Set(key string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.values == nil {
		s.values = make(map[string]any)
	}
	s.values[key] = value
}

// Bool returns the boolean setting key.
//
// Postcondition: returns an error when key is unregistered or not a bool.
func (s *SettingStore) Bool(_ context.Context, key string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	if !ok {
		return false, fmt.Errorf("setting %q is not registered", key)
	}
	b, ok := v.(bool)
	if !ok {
		return false, fmt.Errorf("setting %q is %T, not bool", key, v)
	}
	return b, nil
}

// String returns the string setting key.
//
// Postcondition: returns an error when key is unregistered or not a string.
func (s *SettingStore) String(_ context.Context, key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	if !ok {
		return "", fmt.Errorf("setting %q is not registered", key)
	}
	str, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("setting %q is %T, not string", key, v)
	}
	return str, nil
}
