package item_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/cory-johannsen/multiroll/internal/game/item"
)

func threePartItem() *item.Item {
	return &item.Item{
		ID:   "frost-brand",
		Name: "Frost Brand",
		Type: item.TypeWeapon,
		Damage: &item.Damage{Parts: []item.DamagePart{
			{Formula: "1d8", Type: "slashing"},
			{Formula: "1d4", Type: "fire"},
			{Formula: "2d6", Type: "cold"},
		}},
	}
}

func TestLoadItems(t *testing.T) {
	items, err := item.LoadItems("testdata")
	require.NoError(t, err)
	require.Len(t, items, 2)

	sword := items[0]
	assert.Equal(t, "longsword", sword.ID)
	assert.True(t, sword.HasAttack())
	assert.True(t, sword.HasDamage())
	assert.Equal(t, "fire", sword.Damage.Parts[1].Type)
	assert.Equal(t, true, sword.Flags[item.FlagAutoRollDamage])

	tools := items[1]
	assert.True(t, tools.IsTool())
	assert.False(t, tools.HasDamage())
}

func TestLoadItems_InvalidFormula(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.yaml"), []byte(`
id: bad
name: Bad
damage:
  parts:
    - formula: 1dx
      type: fire
`), 0o644))
	_, err := item.LoadItems(dir)
	assert.Error(t, err)
}

func TestLoadItems_MissingDir(t *testing.T) {
	_, err := item.LoadItems("/nonexistent")
	assert.Error(t, err)
}

func TestRegistry(t *testing.T) {
	r := item.NewRegistry()
	require.NoError(t, r.Register(threePartItem()))
	assert.Error(t, r.Register(threePartItem()), "duplicate ID must be rejected")

	got, ok := r.Item("frost-brand")
	require.True(t, ok)
	assert.Equal(t, "Frost Brand", got.Name)
	assert.Len(t, r.All(), 1)
}

func TestResolveGroup_SelectsInOrder(t *testing.T) {
	it := threePartItem()
	groups := []item.FormulaGroup{{Label: "Main", FormulaSet: []int{0, 2}}}

	group, parts, err := item.ResolveGroup(it, groups, 0)
	require.NoError(t, err)
	assert.Equal(t, "Main", group.Label)
	require.Len(t, parts, 2)
	assert.Equal(t, "slashing", parts[0].Type)
	assert.Equal(t, "cold", parts[1].Type)
}

func TestResolveGroup_SkipsAbsentSlots(t *testing.T) {
	it := threePartItem()
	groups := []item.FormulaGroup{{Label: "Sparse", FormulaSet: []int{5, 1, -1}}}

	_, parts, err := item.ResolveGroup(it, groups, 0)
	require.NoError(t, err)
	require.Len(t, parts, 1)
	assert.Equal(t, "fire", parts[0].Type)
}

func TestResolveGroup_InvalidIndex(t *testing.T) {
	it := threePartItem()
	_, _, err := item.ResolveGroup(it, item.DefaultFormulaGroups(it, "All"), 3)

	var invalid *item.InvalidGroupError
	require.True(t, errors.As(err, &invalid))
	assert.Equal(t, 3, invalid.Index)
}

func TestResolveGroup_AllSlotsAbsent(t *testing.T) {
	it := threePartItem()
	groups := []item.FormulaGroup{{Label: "Ghost", FormulaSet: []int{7, 9}}}

	_, parts, err := item.ResolveGroup(it, groups, 0)
	var empty *item.EmptyGroupError
	require.True(t, errors.As(err, &empty))
	assert.Equal(t, "Ghost", empty.Group.Label)
	assert.Nil(t, parts)
}

func TestDefaultFormulaGroups(t *testing.T) {
	groups := item.DefaultFormulaGroups(threePartItem(), "All")
	require.Len(t, groups, 1)
	assert.Equal(t, []int{0, 1, 2}, groups[0].FormulaSet)
}

func TestSinglePartView_DoesNotTouchItem(t *testing.T) {
	it := threePartItem()
	before := it.DamageParts()
	view := it.SinglePartView(it.Damage.Parts[2])
	assert.Equal(t, []item.DamagePart{{Formula: "2d6", Type: "cold"}}, view.Parts())
	assert.Equal(t, before, it.Damage.Parts)
}

func TestTypeLabel(t *testing.T) {
	assert.Equal(t, "Slashing", item.TypeLabel("slashing"))
	assert.Equal(t, "Healing", item.TypeLabel("healing"))
	assert.Equal(t, "", item.TypeLabel("sonic"))
	assert.Equal(t, "", item.TypeLabel(""))
}

// TestResolveGroup_Property verifies the resolved count equals the number of
// in-range slots, or an EmptyGroupError when there are none.
func TestResolveGroup_Property(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		it := threePartItem()
		set := rapid.SliceOf(rapid.IntRange(-2, 6)).Draw(rt, "set")
		groups := []item.FormulaGroup{{Label: "G", FormulaSet: set}}

		present := 0
		for _, s := range set {
			if s >= 0 && s < 3 {
				present++
			}
		}
		_, parts, err := item.ResolveGroup(it, groups, 0)
		if present == 0 {
			var empty *item.EmptyGroupError
			if !errors.As(err, &empty) {
				rt.Fatalf("expected EmptyGroupError, got %v", err)
			}
			return
		}
		if err != nil {
			rt.Fatalf("unexpected error: %v", err)
		}
		assert.Len(rt, parts, present)
	})
}
