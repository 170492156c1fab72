package rolls_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/cory-johannsen/multiroll/internal/chat"
	"github.com/cory-johannsen/multiroll/internal/config"
	"github.com/cory-johannsen/multiroll/internal/game/dice"
	"github.com/cory-johannsen/multiroll/internal/game/item"
	"github.com/cory-johannsen/multiroll/internal/i18n"
	"github.com/cory-johannsen/multiroll/internal/rolls"
	"github.com/cory-johannsen/multiroll/internal/storage/memory"
)

// fixedSource always rolls the same zero-based value.
type fixedSource struct{ v int }

func (s fixedSource) Intn(n int) int { return s.v % n }

type fakeDialog struct {
	result *rolls.DialogResult
	err    error
	calls  int
	last   rolls.DialogRequest
}

func (d *fakeDialog) PromptDamage(_ context.Context, req rolls.DialogRequest) (*rolls.DialogResult, error) {
	d.calls++
	d.last = req
	return d.result, d.err
}

type recordingNotifier struct {
	mu   sync.Mutex
	msgs []string
}

func (n *recordingNotifier) Error(_ context.Context, msg string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.msgs = append(n.msgs, msg)
}

type fakeAnimator struct {
	calls atomic.Int32
	err   error
	vis   atomic.Value
}

func (a *fakeAnimator) Animate(_ context.Context, _ *dice.Roll, vis rolls.Visibility) error {
	a.calls.Add(1)
	a.vis.Store(vis)
	return a.err
}

// baseDamage is a single-formula damage primitive that records every request.
type baseDamage struct {
	mu   sync.Mutex
	reqs []rolls.DamageRequest
	fail map[string]bool
	skip map[string]bool
}

func (b *baseDamage) roll(_ context.Context, it *item.Item, req rolls.DamageRequest) (*rolls.DamageRoll, error) {
	b.mu.Lock()
	b.reqs = append(b.reqs, req)
	b.mu.Unlock()

	parts := it.DamageParts()
	if req.View != nil {
		parts = req.View.Parts()
	}
	formula := parts[0].Formula
	if b.fail[formula] {
		return nil, errors.New("primitive failure")
	}
	if b.skip[formula] {
		return nil, nil
	}
	r, err := dice.EvaluateExpr(formula, fixedSource{v: 2})
	if err != nil {
		return nil, err
	}
	return &rolls.DamageRoll{Parts: []rolls.DamagePart{{Roll: r}}}, nil
}

func (b *baseDamage) requests() []rolls.DamageRequest {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]rolls.DamageRequest(nil), b.reqs...)
}

type rig struct {
	flags    *memory.FlagStore
	settings *memory.SettingStore
	messages *memory.MessageStore
	notifier *recordingNotifier
	animator *fakeAnimator
	dialog   *fakeDialog
	base     *baseDamage
	roller   *rolls.DamageRoller
	loc      *i18n.Localizer
	logger   *zap.Logger
}

func newRig(t *testing.T) *rig {
	t.Helper()
	logger := zaptest.NewLogger(t)
	loc, err := i18n.New("en-US")
	require.NoError(t, err)
	r := &rig{
		flags: memory.NewFlagStore(),
		settings: memory.SettingsFromConfig(config.RollsConfig{
			AutoRollCheck:  true,
			AutoRollDamage: true,
			RollMode:       "publicroll",
			DialogModifier: "shiftKey",
		}),
		messages: memory.NewMessageStore(),
		notifier: &recordingNotifier{},
		animator: &fakeAnimator{},
		dialog:   &fakeDialog{},
		base:     &baseDamage{fail: map[string]bool{}, skip: map[string]bool{}},
		loc:      loc,
		logger:   logger,
	}
	r.roller = rolls.NewDamageRoller(rolls.DamageDeps{
		Flags:     r.flags,
		Settings:  r.settings,
		Messages:  r.messages,
		Dialog:    r.dialog,
		Notifier:  r.notifier,
		Animator:  r.animator,
		Dice:      dice.NewLoggedRoller(fixedSource{v: 2}, logger),
		Localizer: loc,
		Audience:  chat.Audience{UserID: "u1", GMIDs: []string{"gm1"}},
		Logger:    logger,
	})
	return r
}

func (r *rig) damage() rolls.DamageRollFunc {
	return rolls.Chain(r.base.roll, r.roller.Middleware())
}

// threeParts is an item with slashing, fire and cold damage parts.
func threeParts() *item.Item {
	return &item.Item{
		ID:        "blade",
		Name:      "Frost Brand",
		Type:      item.TypeWeapon,
		ActorID:   "actor-1",
		ActorName: "Aria",
		Attack:    &item.Attack{Bonus: 5},
		Damage: &item.Damage{Parts: []item.DamagePart{
			{Formula: "1d8", Type: "slashing"},
			{Formula: "1d4", Type: "fire"},
			{Formula: "2d6", Type: "cold"},
		}},
	}
}

func (r *rig) setGroups(t *testing.T, it *item.Item, groups ...item.FormulaGroup) {
	t.Helper()
	if err := r.flags.SetItemFlag(context.Background(), it.ID, item.FlagFormulaGroups, groups); err != nil {
		t.Fatal(err)
	}
}
