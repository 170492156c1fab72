package rolls

import (
	"context"

	"github.com/cory-johannsen/multiroll/internal/chat"
	"github.com/cory-johannsen/multiroll/internal/i18n"
)

// DialogRequest is the input of the damage dialog.
type DialogRequest struct {
	Title    string
	RollMode chat.RollMode
	// Top and Left position the dialog near the pointer; 0 leaves placement to the host.
	Top  int
	Left int
	// CriticalLabel and NormalLabel caption the two answer buttons.
	CriticalLabel string
	NormalLabel   string
}

// DialogResult is the answer of the damage dialog.
type DialogResult struct {
	Critical bool
	// Bonus is a dice expression; empty means none.
	Bonus string
	// RollMode is empty when the dialog did not change it.
	RollMode chat.RollMode
}

// DamageDialog asks the user for a critical flag, a situational bonus and a
// roll mode that apply to every damage part.
type DamageDialog interface {
	// PromptDamage blocks until the user answers. A nil result with a nil
	// error means the user dismissed the dialog.
	PromptDamage(ctx context.Context, req DialogRequest) (*DialogResult, error)
}

// dialogRequest places the dialog relative to the triggering pointer and
// captions its buttons in the active locale.
func dialogRequest(title string, mode chat.RollMode, ev Modifiers, loc *i18n.Localizer) DialogRequest {
	req := DialogRequest{
		Title:         title,
		RollMode:      mode,
		CriticalLabel: loc.Localize(i18n.KeyCriticalHit),
		NormalLabel:   loc.Localize(i18n.KeyNormal),
	}
	if ev.ClientY > 0 {
		req.Top = max(ev.ClientY-80, 0)
	}
	if ev.ClientX > 0 {
		req.Left = ev.ClientX
	}
	return req
}
