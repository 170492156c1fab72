// Package redis stores item flags and setting overrides in Redis hashes.
// Values are JSON encoded so flags keep their structure across processes.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	goredis "github.com/redis/go-redis/v9"

	"github.com/cory-johannsen/multiroll/internal/config"
	"github.com/cory-johannsen/multiroll/internal/rolls"
)

const (
	itemFlagsPrefix = "item_flags:"
	settingsKey     = "settings"
)

// NewClient connects to the Redis server described by cfg.
//
// Postcondition: Returns a client that answered PING, or a non-nil error.
func NewClient(ctx context.Context, cfg config.RedisConfig) (*goredis.Client, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("pinging redis at %s: %w", cfg.Addr, err)
	}
	return client, nil
}

// FlagStore keeps each item's flags in the hash "item_flags:<itemID>".
type FlagStore struct {
	client goredis.Cmdable
}

// NewFlagStore creates a FlagStore over client.
//
// Precondition: client must be non-nil.
func NewFlagStore(client goredis.Cmdable) *FlagStore {
	return &FlagStore{client: client}
}

func flagsKey(itemID string) string {
	return itemFlagsPrefix + itemID
}

// ItemFlag returns the decoded flag key of itemID.
//
// Postcondition: ok is false and err nil when the flag is unset.
func (s *FlagStore) ItemFlag(ctx context.Context, itemID, key string) (any, bool, error) {
	raw, err := s.client.HGet(ctx, flagsKey(itemID), key).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("reading flag %s of item %s: %w", key, itemID, err)
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, false, fmt.Errorf("decoding flag %s of item %s: %w", key, itemID, err)
	}
	return v, true, nil
}

// SetItemFlag encodes value and stores it as flag key of itemID.
func (s *FlagStore) SetItemFlag(ctx context.Context, itemID, key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encoding flag %s of item %s: %w", key, itemID, err)
	}
	if err := s.client.HSet(ctx, flagsKey(itemID), key, raw).Err(); err != nil {
		return fmt.Errorf("writing flag %s of item %s: %w", key, itemID, err)
	}
	return nil
}

// SettingStore reads setting overrides from the "settings" hash and falls
// back to another store for keys without an override.
type SettingStore struct {
	client   goredis.Cmdable
	fallback rolls.SettingStore
}

// NewSettingStore creates a SettingStore over client.
//
// Precondition: client and fallback must be non-nil.
func NewSettingStore(client goredis.Cmdable, fallback rolls.SettingStore) *SettingStore {
	return &SettingStore{client: client, fallback: fallback}
}

// Override stores value as the override of key.
func (s *SettingStore) Override(ctx context.Context, key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encoding setting %s: %w", key, err)
	}
	if err := s.client.HSet(ctx, settingsKey, key, raw).Err(); err != nil {
		return fmt.Errorf("writing setting %s: %w", key, err)
	}
	return nil
}

func (s *SettingStore) override(ctx context.Context, key string, dst any) (bool, error) {
	raw, err := s.client.HGet(ctx, settingsKey, key).Bytes()
	if errors.Is(err, goredis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("reading setting %s: %w", key, err)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return false, fmt.Errorf("decoding setting %s: %w", key, err)
	}
	return true, nil
}

// Bool returns the override of key, or the fallback value.
func (s *SettingStore) Bool(ctx context.Context, key string) (bool, error) {
	var b bool
	ok, err := s.override(ctx, key, &b)
	if err != nil || ok {
		return b, err
	}
	return s.fallback.Bool(ctx, key)
}

// String returns the override of key, or the fallback value.
func (s *SettingStore) String(ctx context.Context, key string) (string, error) {
	var str string
	ok, err := s.override(ctx, key, &str)
	if err != nil || ok {
		return str, err
	}
	return s.fallback.String(ctx, key)
}
