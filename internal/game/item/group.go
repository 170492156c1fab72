package item

import (
	"errors"
	"fmt"
)

// ErrUnsupportedItem is returned when an item has no damage block at all.
var ErrUnsupportedItem = errors.New("you cannot roll damage for this item")

// InvalidGroupError reports a formula-group index that is not stored on the item.
type InvalidGroupError struct {
	Index int
}

func (e *InvalidGroupError) Error() string {
	return fmt.Sprintf("invalid formula group index provided: %d", e.Index)
}

// EmptyGroupError reports a group whose every slot is absent from the item's
// current damage formulas.
type EmptyGroupError struct {
	Group FormulaGroup
}

func (e *EmptyGroupError) Error() string {
	return fmt.Sprintf("formula group %q does not reference any damage formula", e.Group.Label)
}

// FormulaGroup is a named, ordered subset of an item's damage formulas.
type FormulaGroup struct {
	Label      string `json:"label" yaml:"label"`
	FormulaSet []int  `json:"formulaSet" yaml:"formula_set"`
}

// DefaultFormulaGroups returns the single group holding every damage formula
// of it, in order.
func DefaultFormulaGroups(it *Item, label string) []FormulaGroup {
	set := make([]int, 0, len(it.DamageParts()))
	for i := range it.DamageParts() {
		set = append(set, i)
	}
	return []FormulaGroup{{Label: label, FormulaSet: set}}
}

// ResolveGroup returns group idx of groups and the damage formulas it
// references, in formula-set order. Indices outside the item's current
// formula list are skipped.
//
// Postcondition: returns *InvalidGroupError when idx is not in groups, and
// *EmptyGroupError when no referenced slot is present.
func ResolveGroup(it *Item, groups []FormulaGroup, idx int) (FormulaGroup, []DamagePart, error) {
	if idx < 0 || idx >= len(groups) {
		return FormulaGroup{}, nil, &InvalidGroupError{Index: idx}
	}
	group := groups[idx]
	parts := it.DamageParts()

	var resolved []DamagePart
	for _, slot := range group.FormulaSet {
		if slot < 0 || slot >= len(parts) {
			continue
		}
		resolved = append(resolved, parts[slot])
	}
	if len(resolved) == 0 {
		return group, nil, &EmptyGroupError{Group: group}
	}
	return group, resolved, nil
}

// DamageView is an immutable single-part view of an item's damage data,
// handed to the single-formula damage primitive in place of the item's own
// formula list.
type DamageView struct {
	ItemID    string
	ItemName  string
	Level     int
	Part      DamagePart
	Versatile string
}

// Parts returns the one-element formula list of the view.
func (v DamageView) Parts() []DamagePart {
	return []DamagePart{v.Part}
}

// SinglePartView builds the view of it restricted to part.
func (it *Item) SinglePartView(part DamagePart) DamageView {
	v := DamageView{
		ItemID:   it.ID,
		ItemName: it.Name,
		Level:    it.Level,
		Part:     part,
	}
	if it.Damage != nil {
		v.Versatile = it.Damage.Versatile
	}
	return v
}
