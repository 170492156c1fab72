package scripting

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"

	"github.com/cory-johannsen/multiroll/internal/game/dice"
)

// Manager owns one sandboxed LState holding every loaded roll script and
// exposes hook dispatch.
//
// Manager is safe for concurrent use; calls into the VM are serialized.
type Manager struct {
	mu     sync.Mutex
	L      *lua.LState
	limit  int
	roller *dice.Roller
	logger *zap.Logger
}

// NewManager creates a Manager whose executions are bounded by instLimit
// opcodes each.
//
// Precondition: roller and logger must be non-nil; instLimit >= 0, 0 uses
// DefaultInstructionLimit.
// Postcondition: Returns a Manager with the engine.* modules registered.
func NewManager(roller *dice.Roller, logger *zap.Logger, instLimit int) *Manager {
	m := &Manager{
		L:      NewSandboxedState(),
		limit:  instLimit,
		roller: roller,
		logger: logger.Named("scripting"),
	}
	m.RegisterModules(m.L)
	return m
}

// LoadDir executes every *.lua file in dir in lexicographic order.
//
// Precondition: dir must be a readable directory.
func (m *Manager) LoadDir(ctx context.Context, dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("scripting: reading script dir %q: %w", dir, err)
	}
	var luaFiles []string
	for _, e := range entries {
		if !e.IsDir() && filepath.Ext(e.Name()) == ".lua" {
			luaFiles = append(luaFiles, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(luaFiles)
	for _, path := range luaFiles {
		if err := m.LoadFile(ctx, path); err != nil {
			return err
		}
	}
	return nil
}

// LoadFile executes the script at path.
func (m *Manager) LoadFile(ctx context.Context, path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	defer limitInstructions(ctx, m.L, m.limit)()
	if err := m.L.DoFile(path); err != nil {
		return fmt.Errorf("scripting: loading %q: %w", path, err)
	}
	return nil
}

// LoadString executes src.
func (m *Manager) LoadString(ctx context.Context, src string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	defer limitInstructions(ctx, m.L, m.limit)()
	if err := m.L.DoString(src); err != nil {
		return fmt.Errorf("scripting: loading script: %w", err)
	}
	return nil
}

// HasHook reports whether the global function hook is defined.
func (m *Manager) HasHook(hook string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.L.GetGlobal(hook).(*lua.LFunction)
	return ok
}

// CallHook calls the named Lua global function. Returns (LNil, nil) if the
// hook is not defined. Lua runtime errors, including an exceeded instruction
// limit, are logged at Warn level and returned.
//
// Precondition: args must be valid lua.LValue instances.
// Postcondition: Returns the first return value of the hook, or LNil.
func (m *Manager) CallHook(ctx context.Context, hook string, args ...lua.LValue) (lua.LValue, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	fn := m.L.GetGlobal(hook)
	if fn == lua.LNil {
		return lua.LNil, nil
	}

	defer limitInstructions(ctx, m.L, m.limit)()
	if err := m.L.CallByParam(lua.P{
		Fn:      fn,
		NRet:    1,
		Protect: true,
	}, args...); err != nil {
		m.logger.Warn("Lua runtime error", zap.String("hook", hook), zap.Error(err))
		return lua.LNil, fmt.Errorf("scripting: hook %s: %w", hook, err)
	}

	ret := m.L.Get(-1)
	m.L.Pop(1)
	return ret, nil
}

// Close releases the VM.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.L.Close()
}
