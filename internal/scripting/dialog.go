package scripting

import (
	"context"
	"fmt"

	lua "github.com/yuin/gopher-lua"

	"github.com/cory-johannsen/multiroll/internal/chat"
	"github.com/cory-johannsen/multiroll/internal/rolls"
)

// DialogHook is the Lua global answering the damage dialog. It is called as
// damage_dialog(title, roll_mode, top, left, critical_label, normal_label)
// and returns nil to cancel or a table
// {critical = bool, bonus = string, roll_mode = string}.
const DialogHook = "damage_dialog"

// LuaDialog is a rolls.DamageDialog answered by the DialogHook script.
type LuaDialog struct {
	m *Manager
}

// NewLuaDialog creates a LuaDialog running hooks on m.
//
// Precondition: m must be non-nil.
func NewLuaDialog(m *Manager) *LuaDialog {
	return &LuaDialog{m: m}
}

// PromptDamage calls the dialog hook. Without a hook the dialog answers a
// normal roll with no bonus.
func (d *LuaDialog) PromptDamage(ctx context.Context, req rolls.DialogRequest) (*rolls.DialogResult, error) {
	if !d.m.HasHook(DialogHook) {
		return &rolls.DialogResult{RollMode: req.RollMode}, nil
	}
	ret, err := d.m.CallHook(ctx, DialogHook,
		lua.LString(req.Title),
		lua.LString(string(req.RollMode)),
		lua.LNumber(req.Top),
		lua.LNumber(req.Left),
		lua.LString(req.CriticalLabel),
		lua.LString(req.NormalLabel),
	)
	if err != nil {
		return nil, err
	}

	switch v := ret.(type) {
	case *lua.LNilType:
		return nil, nil
	case lua.LBool:
		if !bool(v) {
			return nil, nil
		}
		return &rolls.DialogResult{RollMode: req.RollMode}, nil
	case *lua.LTable:
		return parseAnswer(v, req.RollMode)
	}
	return nil, fmt.Errorf("scripting: %s returned %s, want table or nil", DialogHook, ret.Type())
}

func parseAnswer(t *lua.LTable, mode chat.RollMode) (*rolls.DialogResult, error) {
	res := &rolls.DialogResult{
		Critical: lua.LVAsBool(t.RawGetString("critical")),
		RollMode: mode,
	}
	switch b := t.RawGetString("bonus").(type) {
	case lua.LString:
		res.Bonus = string(b)
	case lua.LNumber:
		res.Bonus = b.String()
	}
	if m, ok := t.RawGetString("roll_mode").(lua.LString); ok && m != "" {
		parsed, err := chat.ParseRollMode(string(m))
		if err != nil {
			return nil, fmt.Errorf("scripting: %s: %w", DialogHook, err)
		}
		res.RollMode = parsed
	}
	return res, nil
}
