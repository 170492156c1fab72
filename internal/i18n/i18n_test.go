package i18n_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"

	"github.com/cory-johannsen/multiroll/internal/i18n"
)

func TestLocalize_English(t *testing.T) {
	l, err := i18n.New("en-US")
	require.NoError(t, err)
	assert.Equal(t, "Damage Roll", l.Localize(i18n.KeyDamageRoll))
	assert.Equal(t, "Situational Bonus", l.Label(i18n.KeySituationalBonus))
}

func TestLocalize_FrenchStripsSpacedPunctuation(t *testing.T) {
	l, err := i18n.New("fr-FR")
	require.NoError(t, err)
	assert.Equal(t, "Bonus de situation", l.Label(i18n.KeySituationalBonus))
	assert.Equal(t, "Critique", l.Localize(i18n.KeyCritical))
}

func TestLocalize_UnknownLanguageFallsBack(t *testing.T) {
	l, err := i18n.New("ja-JP")
	require.NoError(t, err)
	assert.Equal(t, language.AmericanEnglish, l.Locale())
	assert.Equal(t, "Critical", l.Localize(i18n.KeyCritical))
}

func TestLocalize_InvalidTag(t *testing.T) {
	_, err := i18n.New("not a tag!")
	assert.Error(t, err)
}

func TestFormat_GroupEmpty(t *testing.T) {
	l, err := i18n.New("en-US")
	require.NoError(t, err)
	msg := l.Format(i18n.KeyGroupEmpty, "Main")
	assert.Contains(t, msg, "Formula group Main")
}

func TestStripTrailingPunct(t *testing.T) {
	assert.Equal(t, "Bonus", i18n.StripTrailingPunct("Bonus:"))
	assert.Equal(t, "Bonus", i18n.StripTrailingPunct("Bonus :"))
	assert.Equal(t, "Bonus", i18n.StripTrailingPunct("Bonus"))
	assert.Equal(t, "", i18n.StripTrailingPunct("?!"))
}
