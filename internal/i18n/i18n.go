// Package i18n holds the localized strings shown on roll cards and notices.
package i18n

import (
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"
)

// Message keys.
const (
	KeyDamageRoll       = "DamageRoll"
	KeyCritical         = "Critical"
	KeyCriticalHit      = "CriticalHit"
	KeyNormal           = "Normal"
	KeySituationalBonus = "RollSituationalBonus"
	KeyGroupEmpty       = "FormulaGroup.GroupEmptyError"
	KeyDefaultGroup     = "FormulaGroup.DefaultLabel"
)

// BaseLocale is the fallback locale.
var BaseLocale = language.AmericanEnglish

var messages = map[language.Tag]map[string]string{
	language.AmericanEnglish: {
		KeyDamageRoll:       "Damage Roll",
		KeyCritical:         "Critical",
		KeyCriticalHit:      "Critical Hit",
		KeyNormal:           "Normal",
		KeySituationalBonus: "Situational Bonus?",
		KeyGroupEmpty:       "Formula group %s does not reference any damage formula of this item",
		KeyDefaultGroup:     "All",
	},
	language.French: {
		KeyDamageRoll:       "Jet de dégâts",
		KeyCritical:         "Critique",
		KeyCriticalHit:      "Coup critique",
		KeyNormal:           "Normal",
		KeySituationalBonus: "Bonus de situation ?",
		KeyGroupEmpty:       "Le groupe de formules %s ne référence aucune formule de dégâts de cet objet",
		KeyDefaultGroup:     "Tout",
	},
}

// Localizer resolves message keys for one locale.
type Localizer struct {
	tag     language.Tag
	printer *message.Printer
}

// New returns a Localizer for the best catalogue match of locale.
//
// Precondition: locale must be a BCP 47 tag, e.g. "en-US".
// Postcondition: Returns a Localizer or a parse error; unknown languages fall
// back to BaseLocale.
func New(locale string) (*Localizer, error) {
	requested, err := language.Parse(locale)
	if err != nil {
		return nil, fmt.Errorf("i18n: parsing locale %q: %w", locale, err)
	}
	cat, err := newCatalog()
	if err != nil {
		return nil, err
	}
	tags := cat.Languages()
	_, idx, conf := language.NewMatcher(tags).Match(requested)
	tag := tags[idx]
	if conf == language.No {
		tag = BaseLocale
	}
	return &Localizer{tag: tag, printer: message.NewPrinter(tag, message.Catalog(cat))}, nil
}

func newCatalog() (*catalog.Builder, error) {
	b := catalog.NewBuilder(catalog.Fallback(BaseLocale))
	for tag, entries := range messages {
		for key, msg := range entries {
			if err := b.SetString(tag, key, msg); err != nil {
				return nil, fmt.Errorf("i18n: registering %s/%s: %w", tag, key, err)
			}
		}
	}
	return b, nil
}

// Locale returns the resolved catalogue locale.
func (l *Localizer) Locale() language.Tag {
	return l.tag
}

// Localize returns the message for key, or key itself when unknown.
func (l *Localizer) Localize(key string) string {
	return l.printer.Sprintf(key)
}

// Format returns the message for key with args substituted.
func (l *Localizer) Format(key string, args ...any) string {
	return l.printer.Sprintf(key, args...)
}

// Label returns the message for key without its trailing punctuation, so a
// prompt string like "Situational Bonus?" can be used as a part label.
func (l *Localizer) Label(key string) string {
	return StripTrailingPunct(l.Localize(key))
}

// StripTrailingPunct removes trailing punctuation and the spacing some
// locales put before it.
func StripTrailingPunct(s string) string {
	return strings.TrimRightFunc(s, func(r rune) bool {
		return unicode.IsPunct(r) || unicode.IsSpace(r)
	})
}
