package item

// DamageTypes maps ordinary damage type keys to their display labels.
var DamageTypes = map[string]string{
	"acid":        "Acid",
	"bludgeoning": "Bludgeoning",
	"cold":        "Cold",
	"fire":        "Fire",
	"force":       "Force",
	"lightning":   "Lightning",
	"necrotic":    "Necrotic",
	"piercing":    "Piercing",
	"poison":      "Poison",
	"psychic":     "Psychic",
	"radiant":     "Radiant",
	"slashing":    "Slashing",
	"thunder":     "Thunder",
}

// HealingTypes maps healing type keys to their display labels.
var HealingTypes = map[string]string{
	"healing": "Healing",
	"temphp":  "Healing (Temporary)",
}

// TypeLabel resolves a damage type key against the ordinary table first and
// the healing table second. Unknown or empty keys yield "".
func TypeLabel(damageType string) string {
	if label, ok := DamageTypes[damageType]; ok {
		return label
	}
	return HealingTypes[damageType]
}
