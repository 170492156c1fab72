package main

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/multiroll/internal/animation"
	"github.com/cory-johannsen/multiroll/internal/chat"
	"github.com/cory-johannsen/multiroll/internal/config"
	"github.com/cory-johannsen/multiroll/internal/game/dice"
	"github.com/cory-johannsen/multiroll/internal/game/item"
	"github.com/cory-johannsen/multiroll/internal/host"
	"github.com/cory-johannsen/multiroll/internal/i18n"
	"github.com/cory-johannsen/multiroll/internal/observability"
	"github.com/cory-johannsen/multiroll/internal/rolls"
	"github.com/cory-johannsen/multiroll/internal/scripting"
	"github.com/cory-johannsen/multiroll/internal/storage/memory"
	"github.com/cory-johannsen/multiroll/internal/storage/postgres"
	redisstore "github.com/cory-johannsen/multiroll/internal/storage/redis"
)

type appOptions struct {
	configPath string
	itemsDir   string
	userID     string
	gmIDs      []string
	seed       uint64
	// withHub attaches the websocket hub as animator and notifier.
	withHub bool
}

// app is the fully wired roll engine.
type app struct {
	cfg      config.Config
	logger   *zap.Logger
	registry *item.Registry
	messages rolls.MessageStore
	flags    rolls.FlagStore
	settings rolls.SettingStore
	keys     *rolls.KeyState
	hub      *animation.Hub
	patcher  *rolls.Patcher
	checks   []healthCheck
	closers  []func()
}

// healthCheck probes one external store for GET /healthz.
type healthCheck struct {
	name  string
	check func(ctx context.Context) error
}

// storeHealthTimeout bounds each store check.
const storeHealthTimeout = 2 * time.Second

// newApp loads the configuration and catalogue and wires the stores, the
// host primitives and the patched roll operations.
//
// Postcondition: Returns an app whose two patches are installed, or an error.
// The caller must call close.
func newApp(ctx context.Context, o appOptions) (_ *app, err error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	logger, err := observability.NewLogger(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("initializing logger: %w", err)
	}
	a := &app{cfg: cfg, logger: logger, keys: &rolls.KeyState{}}
	a.closers = append(a.closers, func() { _ = logger.Sync() })
	defer func() {
		if err != nil {
			a.close()
		}
	}()

	items, err := item.LoadItems(o.itemsDir)
	if err != nil {
		return nil, err
	}
	a.registry = item.NewRegistry()
	for _, it := range items {
		if err := a.registry.Register(it); err != nil {
			return nil, err
		}
	}

	var src dice.Source
	if o.seed != 0 {
		src = dice.NewSeededSource(o.seed)
	} else {
		src = dice.NewCryptoSource()
	}
	roller := dice.NewLoggedRoller(src, logger)

	loc, err := i18n.New(cfg.Rolls.Locale)
	if err != nil {
		return nil, err
	}
	logger.Info("localizer ready",
		zap.String("requested", cfg.Rolls.Locale),
		zap.Stringer("locale", loc.Locale()),
	)

	if err := a.openStores(ctx, items); err != nil {
		return nil, err
	}

	audience := chat.Audience{UserID: o.userID, GMIDs: o.gmIDs}
	deps := rolls.DamageDeps{
		Flags:     a.flags,
		Settings:  a.settings,
		Messages:  a.messages,
		Notifier:  observability.NewLogNotifier(logger),
		Dice:      roller,
		Localizer: loc,
		Audience:  audience,
		Logger:    logger,
	}
	if o.withHub {
		a.hub = animation.NewHub(cfg.Animation.WriteTimeout, logger)
		a.closers = append(a.closers, a.hub.Close)
		deps.Notifier = a.hub
		deps.Animator = a.hub
	}
	if cfg.Scripting.DialogScript != "" {
		mgr := scripting.NewManager(roller, logger, cfg.Scripting.InstructionLimit)
		a.closers = append(a.closers, mgr.Close)
		if err := mgr.LoadFile(ctx, cfg.Scripting.DialogScript); err != nil {
			return nil, err
		}
		deps.Dialog = scripting.NewLuaDialog(mgr)
	}

	h := host.New(roller, a.messages, a.settings, loc, audience, logger)
	orch := rolls.NewOrchestrator(rolls.OrchestratorDeps{
		Flags:      a.flags,
		Settings:   a.settings,
		Primitives: h,
		Modifiers:  a.keys,
		Localizer:  loc,
		Logger:     logger,
	})
	a.patcher = rolls.NewPatcher(h.RollItem, h.RollDamage, orch, rolls.NewDamageRoller(deps), logger)
	a.patcher.PatchItemDamageRoll()
	a.patcher.PatchItemRoll()
	return a, nil
}

func (a *app) openStores(ctx context.Context, items []*item.Item) error {
	base := memory.SettingsFromConfig(a.cfg.Rolls)
	a.settings = base

	switch a.cfg.Storage.Messages {
	case "postgres":
		pool, err := postgres.NewPool(ctx, a.cfg.Database)
		if err != nil {
			return err
		}
		a.closers = append(a.closers, pool.Close)
		a.checks = append(a.checks, healthCheck{name: "postgres", check: func(ctx context.Context) error {
			return pool.Health(ctx, storeHealthTimeout)
		}})
		a.messages = pool.Messages()
	default:
		a.messages = memory.NewMessageStore()
	}

	switch a.cfg.Storage.Flags {
	case "redis":
		client, err := redisstore.NewClient(ctx, a.cfg.Redis)
		if err != nil {
			return err
		}
		a.closers = append(a.closers, func() { _ = client.Close() })
		a.checks = append(a.checks, healthCheck{name: "redis", check: func(ctx context.Context) error {
			ctx, cancel := context.WithTimeout(ctx, storeHealthTimeout)
			defer cancel()
			return client.Ping(ctx).Err()
		}})
		flags := redisstore.NewFlagStore(client)
		if err := seedFlags(ctx, flags, items); err != nil {
			return err
		}
		a.flags = flags
		a.settings = redisstore.NewSettingStore(client, base)
	default:
		flags := memory.NewFlagStore()
		flags.Seed(items...)
		a.flags = flags
	}
	return nil
}

// seedFlags copies catalogue flags into a persistent store without
// overwriting flags already set there.
func seedFlags(ctx context.Context, flags rolls.FlagStore, items []*item.Item) error {
	for _, it := range items {
		for key, value := range it.Flags {
			_, ok, err := flags.ItemFlag(ctx, it.ID, key)
			if err != nil {
				return err
			}
			if ok {
				continue
			}
			if err := flags.SetItemFlag(ctx, it.ID, key, value); err != nil {
				return err
			}
		}
	}
	return nil
}

func (a *app) item(id string) (*item.Item, error) {
	it, ok := a.registry.Item(id)
	if !ok {
		return nil, fmt.Errorf("unknown item %q", id)
	}
	return it, nil
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}
