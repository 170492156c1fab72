// Package item provides the rollable item model, its YAML catalogue loader,
// and the formula-group resolution used by the damage roll.
package item

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/cory-johannsen/multiroll/internal/game/dice"
)

// Type is the item category.
type Type string

const (
	TypeWeapon     Type = "weapon"
	TypeSpell      Type = "spell"
	TypeTool       Type = "tool"
	TypeConsumable Type = "consumable"
	TypeFeat       Type = "feat"
)

// Flag keys understood by the roll automation.
const (
	FlagAutoRollAttack = "autoRollAttack"
	FlagAutoRollDamage = "autoRollDamage"
	FlagAutoRollOther  = "autoRollOther"
	FlagFormulaGroups  = "formulaGroups"
)

// DamagePart is one independent damage formula and its damage type.
type DamagePart struct {
	Formula string `yaml:"formula" json:"formula"`
	Type    string `yaml:"type" json:"type"`
}

// Damage is the damage block of an item.
type Damage struct {
	Parts     []DamagePart `yaml:"parts"`
	Versatile string       `yaml:"versatile"`
}

// Attack describes an item's attack capability.
type Attack struct {
	Bonus int `yaml:"bonus"`
	// CriticalThreshold is the lowest d20 face that is a critical hit; 0 means 20.
	CriticalThreshold int `yaml:"critical_threshold"`
}

// Item is a rollable item owned by an actor.
type Item struct {
	ID        string         `yaml:"id"`
	Name      string         `yaml:"name"`
	Type      Type           `yaml:"type"`
	Level     int            `yaml:"level"`
	ActorID   string         `yaml:"actor_id"`
	ActorName string         `yaml:"actor_name"`
	Attack    *Attack        `yaml:"attack"`
	ToolBonus int            `yaml:"tool_bonus"`
	Damage    *Damage        `yaml:"damage"`
	Formula   string         `yaml:"formula"`
	Flags     map[string]any `yaml:"flags"`
}

// HasAttack reports whether the item can make an attack roll.
func (it *Item) HasAttack() bool {
	return it.Attack != nil
}

// HasDamage reports whether the item declares at least one damage formula.
func (it *Item) HasDamage() bool {
	return it.Damage != nil && len(it.Damage.Parts) > 0
}

// IsTool reports whether the item is a tool.
func (it *Item) IsTool() bool {
	return it.Type == TypeTool
}

// DamageParts returns a copy of the item's damage formula list.
func (it *Item) DamageParts() []DamagePart {
	if it.Damage == nil {
		return nil
	}
	out := make([]DamagePart, len(it.Damage.Parts))
	copy(out, it.Damage.Parts)
	return out
}

// Validate checks that the Item satisfies its invariants.
// Precondition: it is non-nil.
// Postcondition: returns nil iff all fields are valid.
func (it *Item) Validate() error {
	var errs []error
	if it.ID == "" {
		errs = append(errs, errors.New("ID must not be empty"))
	}
	if it.Name == "" {
		errs = append(errs, errors.New("Name must not be empty"))
	}
	if it.Damage != nil {
		for i, p := range it.Damage.Parts {
			if _, err := dice.ParseFormula(p.Formula); err != nil {
				errs = append(errs, fmt.Errorf("damage part %d: %w", i, err))
			}
		}
	}
	if it.Formula != "" {
		if _, err := dice.ParseFormula(it.Formula); err != nil {
			errs = append(errs, fmt.Errorf("formula: %w", err))
		}
	}
	if it.Attack != nil && (it.Attack.CriticalThreshold < 0 || it.Attack.CriticalThreshold > 20) {
		errs = append(errs, fmt.Errorf("attack critical_threshold %d must be within 0..20", it.Attack.CriticalThreshold))
	}
	if len(errs) > 0 {
		return fmt.Errorf("item validation failed: %w", errors.Join(errs...))
	}
	return nil
}

// LoadItems reads all *.yaml files from dir, parses each as an Item,
// validates it, and returns the collected slice ordered by file name.
// Precondition: dir is a readable directory path.
// Postcondition: returns all valid Items or the first encountered error.
func LoadItems(dir string) ([]*Item, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("LoadItems: cannot read directory %q: %w", dir, err)
	}

	var items []*Item
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".yaml" {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("LoadItems: cannot read file %q: %w", path, err)
		}
		var it Item
		if err := yaml.Unmarshal(data, &it); err != nil {
			return nil, fmt.Errorf("LoadItems: cannot parse file %q: %w", path, err)
		}
		if err := it.Validate(); err != nil {
			return nil, fmt.Errorf("LoadItems: invalid item in %q: %w", path, err)
		}
		items = append(items, &it)
	}
	return items, nil
}

// Registry holds loaded items indexed by ID.
type Registry struct {
	items map[string]*Item
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{items: make(map[string]*Item)}
}

// Register adds it to the registry.
//
// Precondition: it must not be nil.
// Postcondition: Item(it.ID) returns (it, true); returns error if it.ID already registered.
func (r *Registry) Register(it *Item) error {
	if _, exists := r.items[it.ID]; exists {
		return fmt.Errorf("item: Registry.Register: item ID %q already registered", it.ID)
	}
	r.items[it.ID] = it
	return nil
}

// Item returns the item for the given id and whether it was found.
func (r *Registry) Item(id string) (*Item, bool) {
	it, ok := r.items[id]
	return it, ok
}

// All returns every registered item ordered by ID.
func (r *Registry) All() []*Item {
	out := make([]*Item, 0, len(r.items))
	for _, it := range r.items {
		out = append(out, it)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
