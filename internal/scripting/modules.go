package scripting

import (
	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"

	"github.com/cory-johannsen/multiroll/internal/game/dice"
)

// RegisterModules registers the engine.log and engine.dice Lua tables into L.
//
// Precondition: L must be from NewSandboxedState.
// Postcondition: engine global is defined in L.
func (m *Manager) RegisterModules(L *lua.LState) {
	engine := L.NewTable()

	log := L.NewTable()
	for name, fn := range map[string]func(string, ...zap.Field){
		"debug": m.logger.Debug,
		"info":  m.logger.Info,
		"warn":  m.logger.Warn,
		"error": m.logger.Error,
	} {
		L.SetField(log, name, L.NewFunction(func(L *lua.LState) int {
			fn(L.CheckString(1), zap.String("source", "lua"))
			return 0
		}))
	}
	L.SetField(engine, "log", log)

	diceMod := L.NewTable()
	L.SetField(diceMod, "roll", L.NewFunction(m.luaRoll))
	L.SetField(engine, "dice", diceMod)

	L.SetGlobal("engine", engine)
}

// luaRoll implements engine.dice.roll(expr): it returns a table with the
// total, the sum of active dice, and the flat modifier.
func (m *Manager) luaRoll(L *lua.LState) int {
	expr := L.CheckString(1)
	r, err := m.roller.RollExpr(expr)
	if err != nil {
		L.RaiseError("engine.dice.roll(%q): %s", expr, err.Error())
		return 0
	}
	diceSum, modifier := 0, 0
	for _, t := range r.Terms {
		if t.Kind == dice.TermNumber {
			modifier += t.Total()
			continue
		}
		diceSum += t.Total()
	}
	out := L.NewTable()
	L.SetField(out, "total", lua.LNumber(r.Total))
	L.SetField(out, "dice", lua.LNumber(diceSum))
	L.SetField(out, "modifier", lua.LNumber(modifier))
	L.SetField(out, "formula", lua.LString(r.Formula))
	L.Push(out)
	return 1
}
