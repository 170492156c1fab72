package rolls_test

import (
	"context"
	"errors"
	"slices"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/cory-johannsen/multiroll/internal/chat"
	"github.com/cory-johannsen/multiroll/internal/game/item"
	"github.com/cory-johannsen/multiroll/internal/rolls"
)

func TestRollDamage_GroupSelectsParts(t *testing.T) {
	r := newRig(t)
	it := threeParts()
	r.setGroups(t, it, item.FormulaGroup{Label: "Main", FormulaSet: []int{0, 2}})

	res, err := r.damage()(context.Background(), it, rolls.DamageRequest{})
	require.NoError(t, err)
	require.Len(t, res.Parts, 2)
	assert.Equal(t, "Slashing", res.Parts[0].Flavor)
	assert.Equal(t, "Cold", res.Parts[1].Flavor)
	assert.Equal(t, "1d8", res.Parts[0].Roll.Formula)
	assert.Equal(t, "2d6", res.Parts[1].Roll.Formula)
	assert.Equal(t, "Frost Brand - Damage Roll (Main)", res.Title)

	msgs, err := r.messages.List(context.Background())
	require.NoError(t, err)
	require.Len(t, msgs, 1, "exactly one aggregate message")
	msg := msgs[0]
	assert.Equal(t, res.MessageID, msg.ID())
	assert.Equal(t, "Frost Brand - Damage Roll (Main)", msg.Flavor())
	assert.Len(t, msg.PartRolls(), 2)
	assert.Equal(t, map[string]any{"type": "damage", "itemId": "blade"}, msg.RollFlags())
	assert.Equal(t, chat.SoundDice, msg[chat.KeySound])
	assert.Equal(t, chat.TypeRoll, msg[chat.KeyType])
	assert.Equal(t, "u1", msg[chat.KeyUser])
	assert.Equal(t, chat.Speaker{Actor: "actor-1", Alias: "Aria"}, msg[chat.KeySpeaker])

	types, err := chat.DamageTypes(msg.Content())
	require.NoError(t, err)
	assert.Equal(t, []string{"Slashing", "Cold"}, types)
	rolled, rules, err := chat.CountFragments(msg.Content())
	require.NoError(t, err)
	assert.Equal(t, 2, rolled)
	assert.Equal(t, 1, rules)
}

func TestRollDamage_DecoyRollIsZero(t *testing.T) {
	r := newRig(t)
	res, err := r.damage()(context.Background(), threeParts(), rolls.DamageRequest{})
	require.NoError(t, err)
	decoy, ok := res.Payload[chat.KeyRoll].(interface{ String() string })
	require.True(t, ok)
	assert.Equal(t, "0 → [] +0 = 0", decoy.String())
}

func TestRollDamage_DefaultsToAllPartsWithoutStoredGroups(t *testing.T) {
	r := newRig(t)
	res, err := r.damage()(context.Background(), threeParts(), rolls.DamageRequest{})
	require.NoError(t, err)
	assert.Len(t, res.Parts, 3)
	assert.Equal(t, "Frost Brand - Damage Roll (All)", res.Title)
}

func TestRollDamage_EmptyGroupReportsTwice(t *testing.T) {
	r := newRig(t)
	it := threeParts()
	r.setGroups(t, it, item.FormulaGroup{Label: "Ghost", FormulaSet: []int{5, 7}})

	res, err := r.damage()(context.Background(), it, rolls.DamageRequest{})
	assert.Nil(t, res)
	var empty *item.EmptyGroupError
	require.ErrorAs(t, err, &empty)
	assert.Equal(t, "Ghost", empty.Group.Label)
	require.Len(t, r.notifier.msgs, 1)
	assert.Contains(t, r.notifier.msgs[0], "Ghost")
	assert.Zero(t, r.messages.Len())
	assert.Empty(t, r.base.requests())
}

func TestRollDamage_InvalidGroup(t *testing.T) {
	r := newRig(t)
	it := threeParts()
	r.setGroups(t, it, item.FormulaGroup{Label: "Main", FormulaSet: []int{0}})

	_, err := r.damage()(context.Background(), it, rolls.DamageRequest{FormulaGroup: 3})
	var invalid *item.InvalidGroupError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, 3, invalid.Index)
	assert.Empty(t, r.notifier.msgs)
	assert.Zero(t, r.messages.Len())
}

func TestRollDamage_UnsupportedItem(t *testing.T) {
	r := newRig(t)
	_, err := r.damage()(context.Background(), &item.Item{ID: "rope"}, rolls.DamageRequest{})
	assert.ErrorIs(t, err, item.ErrUnsupportedItem)
	assert.Zero(t, r.messages.Len())
}

func TestRollDamage_PartRequestsAreIsolated(t *testing.T) {
	r := newRig(t)
	it := threeParts()
	ev := rolls.Modifiers{Alt: true}
	_, err := r.damage()(context.Background(), it, rolls.DamageRequest{
		Event:    &ev,
		Critical: true,
		Options:  rolls.Options{Extra: map[string]any{"emote": true}},
	})
	require.NoError(t, err)

	reqs := r.base.requests()
	require.Len(t, reqs, 3)
	for i, req := range reqs {
		require.NotNil(t, req.View)
		assert.Equal(t, it.Damage.Parts[i], req.View.Part)
		assert.False(t, req.Options.CreatesMessage())
		assert.True(t, req.Options.FastForward)
		assert.True(t, req.Critical)
		assert.Equal(t, &ev, req.Event)
	}
}

func TestRollDamage_ItemPartsUnchanged(t *testing.T) {
	r := newRig(t)
	it := threeParts()
	before := slices.Clone(it.Damage.Parts)
	r.base.fail["1d4"] = true

	_, err := r.damage()(context.Background(), it, rolls.DamageRequest{})
	require.NoError(t, err)
	assert.Equal(t, before, it.Damage.Parts)
}

func TestRollDamage_FailedAndEmptyPartsAreSkipped(t *testing.T) {
	r := newRig(t)
	it := threeParts()
	r.base.fail["1d4"] = true
	r.base.skip["1d8"] = true

	res, err := r.damage()(context.Background(), it, rolls.DamageRequest{})
	require.NoError(t, err)
	require.Len(t, res.Parts, 1)
	assert.Equal(t, "Cold", res.Parts[0].Flavor)
	assert.Len(t, r.base.requests(), 3, "every part is attempted")
	assert.Equal(t, 1, r.messages.Len())
}

func TestRollDamage_UnknownTypeHasEmptyFlavor(t *testing.T) {
	r := newRig(t)
	it := threeParts()
	it.Damage.Parts = []item.DamagePart{{Formula: "1d6", Type: "sonic"}, {Formula: "1d6", Type: "healing"}}
	res, err := r.damage()(context.Background(), it, rolls.DamageRequest{})
	require.NoError(t, err)
	assert.Equal(t, "", res.Parts[0].Flavor)
	assert.Equal(t, "Healing", res.Parts[1].Flavor)
}

func TestRollDamage_CriticalBonusDoublesFirstDiceTerm(t *testing.T) {
	for _, critical := range []bool{false, true} {
		r := newRig(t)
		r.dialog.result = &rolls.DialogResult{Critical: critical, Bonus: "1d6 + 1d4 + 2"}
		ev := rolls.Modifiers{Shift: true}

		res, err := r.damage()(context.Background(), threeParts(), rolls.DamageRequest{Event: &ev})
		require.NoError(t, err)
		require.Len(t, res.Parts, 4, "bonus appended after the group parts")
		bonus := res.Parts[3]
		assert.Equal(t, "Situational Bonus", bonus.Flavor)
		if critical {
			assert.Equal(t, "2d6 + 1d4 + 2", bonus.Roll.Formula)
			assert.True(t, res.Payload.Critical())
			assert.True(t, strings.HasSuffix(res.Payload.Flavor(), " (Critical)"))
		} else {
			assert.Equal(t, "1d6 + 1d4 + 2", bonus.Roll.Formula)
			assert.False(t, res.Payload.Critical())
			_, set := res.Payload.RollFlags()["critical"]
			assert.False(t, set)
		}
	}
}

func TestRollDamage_InvalidBonus(t *testing.T) {
	r := newRig(t)
	r.dialog.result = &rolls.DialogResult{Bonus: "lots"}
	ev := rolls.Modifiers{Shift: true}
	_, err := r.damage()(context.Background(), threeParts(), rolls.DamageRequest{Event: &ev})
	assert.Error(t, err)
	assert.Zero(t, r.messages.Len())
}

func TestRollDamage_DialogOnlyWithModifier(t *testing.T) {
	r := newRig(t)
	r.dialog.result = &rolls.DialogResult{Bonus: "1d6"}
	ev := rolls.Modifiers{Alt: true}
	res, err := r.damage()(context.Background(), threeParts(), rolls.DamageRequest{Event: &ev})
	require.NoError(t, err)
	assert.Zero(t, r.dialog.calls)
	assert.Len(t, res.Parts, 3)

	_, err = r.damage()(context.Background(), threeParts(), rolls.DamageRequest{})
	require.NoError(t, err)
	assert.Zero(t, r.dialog.calls, "no event, no dialog")
}

func TestRollDamage_DialogRequest(t *testing.T) {
	r := newRig(t)
	r.dialog.result = &rolls.DialogResult{RollMode: chat.RollModeBlind}
	ev := rolls.Modifiers{Shift: true, ClientX: 300, ClientY: 200}
	res, err := r.damage()(context.Background(), threeParts(), rolls.DamageRequest{Event: &ev})
	require.NoError(t, err)

	assert.Equal(t, "Frost Brand - Damage Roll", r.dialog.last.Title)
	assert.Equal(t, chat.RollModePublic, r.dialog.last.RollMode)
	assert.Equal(t, 120, r.dialog.last.Top)
	assert.Equal(t, 300, r.dialog.last.Left)
	assert.Equal(t, "Critical Hit", r.dialog.last.CriticalLabel)
	assert.Equal(t, "Normal", r.dialog.last.NormalLabel)

	assert.Equal(t, chat.RollModeBlind, res.RollMode)
	assert.True(t, res.Payload.Blind())
	assert.Equal(t, []string{"gm1"}, res.Payload.Whisper())
	vis, ok := r.animator.vis.Load().(rolls.Visibility)
	require.True(t, ok)
	assert.True(t, vis.Blind, "animations honour the message visibility")
}

func TestRollDamage_OversizedBonusRejected(t *testing.T) {
	for _, critical := range []bool{false, true} {
		r := newRig(t)
		r.dialog.result = &rolls.DialogResult{Critical: critical, Bonus: "4611686018427387904d6"}
		ev := rolls.Modifiers{Shift: true}
		res, err := r.damage()(context.Background(), threeParts(), rolls.DamageRequest{Event: &ev})
		require.Error(t, err, "critical=%v", critical)
		assert.Nil(t, res)
		assert.Zero(t, r.messages.Len(), "no message for a rejected bonus")
		assert.Empty(t, r.base.requests(), "parts are not rolled")
	}
}

func TestRollDamage_CriticalBonusPastMaxDice(t *testing.T) {
	r := newRig(t)
	r.dialog.result = &rolls.DialogResult{Critical: true, Bonus: "600d6"}
	ev := rolls.Modifiers{Shift: true}
	_, err := r.damage()(context.Background(), threeParts(), rolls.DamageRequest{Event: &ev})
	require.Error(t, err)
	assert.Zero(t, r.messages.Len())
}

func TestRollDamage_UnknownRollModeSetting(t *testing.T) {
	r := newRig(t)
	r.settings.Set(rolls.SettingRollMode, "shout")
	res, err := r.damage()(context.Background(), threeParts(), rolls.DamageRequest{})
	require.Error(t, err)
	assert.Nil(t, res)
	assert.Zero(t, r.messages.Len())
}

func TestRollDamage_DialogCancelled(t *testing.T) {
	r := newRig(t)
	ev := rolls.Modifiers{Shift: true}
	res, err := r.damage()(context.Background(), threeParts(), rolls.DamageRequest{Event: &ev})
	require.NoError(t, err)
	assert.Nil(t, res)
	assert.Equal(t, 1, r.dialog.calls)
	assert.Empty(t, r.base.requests())
	assert.Zero(t, r.messages.Len())
	assert.Zero(t, r.animator.calls.Load())
}

func TestRollDamage_DialogError(t *testing.T) {
	r := newRig(t)
	r.dialog.err = errors.New("script failed")
	ev := rolls.Modifiers{Shift: true}
	_, err := r.damage()(context.Background(), threeParts(), rolls.DamageRequest{Event: &ev})
	assert.Error(t, err)
}

func TestRollDamage_NoChatMessage(t *testing.T) {
	r := newRig(t)
	res, err := r.damage()(context.Background(), threeParts(), rolls.DamageRequest{
		Options: rolls.Options{ChatMessage: rolls.Bool(false)},
	})
	require.NoError(t, err)
	assert.Len(t, res.Parts, 3)
	assert.Empty(t, res.MessageID)
	assert.NotNil(t, res.Payload)
	assert.Zero(t, r.messages.Len())
	assert.Zero(t, r.animator.calls.Load())
}

func TestRollDamage_AnimatesEveryPart(t *testing.T) {
	r := newRig(t)
	_, err := r.damage()(context.Background(), threeParts(), rolls.DamageRequest{})
	require.NoError(t, err)
	assert.Equal(t, int32(3), r.animator.calls.Load())
}

func TestRollDamage_AnimationFailureDoesNotBlock(t *testing.T) {
	r := newRig(t)
	r.animator.err = errors.New("socket closed")
	res, err := r.damage()(context.Background(), threeParts(), rolls.DamageRequest{})
	require.NoError(t, err)
	assert.NotEmpty(t, res.MessageID)
	assert.Equal(t, 1, r.messages.Len())
}

func TestRollDamage_MergePolicies(t *testing.T) {
	r := newRig(t)
	res, err := r.damage()(context.Background(), threeParts(), rolls.DamageRequest{
		Options: rolls.Options{
			Extra: map[string]any{
				chat.KeyContent: "hijack",
				chat.KeyFlavor:  "hijack",
				chat.KeySound:   "hijack",
				chat.KeyType:    "hijack",
				chat.KeySpeaker: "hijack",
				chat.KeyRoll:    "hijack",
				"emote":         true,
			},
			MessageData: map[string]any{chat.KeyFlavor: "Custom Flavor"},
		},
	})
	require.NoError(t, err)
	p := res.Payload
	assert.NotEqual(t, "hijack", p.Content())
	assert.Equal(t, chat.SoundDice, p[chat.KeySound])
	assert.Equal(t, chat.TypeRoll, p[chat.KeyType])
	assert.NotEqual(t, "hijack", p[chat.KeySpeaker])
	assert.NotEqual(t, "hijack", p[chat.KeyRoll])
	assert.Equal(t, true, p["emote"])
	assert.Equal(t, "Custom Flavor", p.Flavor(), "message data overrides")
}

func TestRollDamage_RollModeOption(t *testing.T) {
	r := newRig(t)
	res, err := r.damage()(context.Background(), threeParts(), rolls.DamageRequest{
		Options: rolls.Options{RollMode: chat.RollModeSelf},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"u1"}, res.Payload.Whisper())
}

func TestRollDamage_CancelledContext(t *testing.T) {
	r := newRig(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := r.damage()(ctx, threeParts(), rolls.DamageRequest{})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, r.messages.Len())
}

func TestRollDamage_GroupsFromDecodedFlag(t *testing.T) {
	r := newRig(t)
	it := threeParts()
	require.NoError(t, r.flags.SetItemFlag(context.Background(), it.ID, item.FlagFormulaGroups, []any{
		map[string]any{"label": "Elements", "formulaSet": []any{float64(1), float64(2)}},
	}))
	res, err := r.damage()(context.Background(), it, rolls.DamageRequest{})
	require.NoError(t, err)
	require.Len(t, res.Parts, 2)
	assert.Equal(t, "Fire", res.Parts[0].Flavor)
}

// TestRollDamage_PartCountProperty verifies the part count equals the number
// of present slots plus one for a bonus, and that the item is never modified.
func TestRollDamage_PartCountProperty(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		r := newRig(t)
		it := threeParts()
		before := slices.Clone(it.Damage.Parts)
		set := rapid.SliceOfN(rapid.IntRange(-2, 6), 1, 6).Draw(rt, "set")
		withBonus := rapid.Bool().Draw(rt, "bonus")
		if err := r.flags.SetItemFlag(context.Background(), it.ID, item.FlagFormulaGroups, []item.FormulaGroup{{Label: "G", FormulaSet: set}}); err != nil {
			rt.Fatal(err)
		}
		req := rolls.DamageRequest{}
		if withBonus {
			r.dialog.result = &rolls.DialogResult{Bonus: "1d6"}
			req.Event = &rolls.Modifiers{Shift: true}
		}

		present := 0
		for _, idx := range set {
			if idx >= 0 && idx < len(before) {
				present++
			}
		}

		res, err := r.damage()(context.Background(), it, req)
		assert.Equal(rt, before, it.Damage.Parts)
		if present == 0 {
			var empty *item.EmptyGroupError
			assert.ErrorAs(rt, err, &empty)
			assert.Zero(rt, r.messages.Len())
			return
		}
		if err != nil {
			rt.Fatalf("RollDamage: %v", err)
		}
		want := present
		if withBonus {
			want++
		}
		assert.Len(rt, res.Parts, want)
	})
}

func TestInitializeFormulaGroups(t *testing.T) {
	r := newRig(t)
	it := threeParts()
	ctx := context.Background()

	require.NoError(t, rolls.InitializeFormulaGroups(ctx, r.flags, it, "All"))
	groups, ok, err := rolls.LoadFormulaGroups(ctx, r.flags, it)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []item.FormulaGroup{{Label: "All", FormulaSet: []int{0, 1, 2}}}, groups)

	r.setGroups(t, it, item.FormulaGroup{Label: "Custom", FormulaSet: []int{1}})
	require.NoError(t, rolls.InitializeFormulaGroups(ctx, r.flags, it, "All"))
	groups, _, _ = rolls.LoadFormulaGroups(ctx, r.flags, it)
	assert.Equal(t, "Custom", groups[0].Label, "existing groups are kept")
}
