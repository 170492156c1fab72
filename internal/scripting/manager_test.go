package scripting_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"pgregory.net/rapid"

	"github.com/cory-johannsen/multiroll/internal/game/dice"
	"github.com/cory-johannsen/multiroll/internal/scripting"
)

func newTestManager(t testing.TB, limit int) (*scripting.Manager, *observer.ObservedLogs) {
	t.Helper()
	core, logs := observer.New(zap.DebugLevel)
	logger := zap.New(core)
	roller := dice.NewLoggedRoller(dice.NewCryptoSource(), logger)
	m := scripting.NewManager(roller, logger, limit)
	t.Cleanup(m.Close)
	return m, logs
}

func writeTempLua(t testing.TB, filename, src string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, filename), []byte(src), 0644))
	return dir
}

func TestManager_LoadDir_CallsHook(t *testing.T) {
	mgr, _ := newTestManager(t, 0)
	dir := writeTempLua(t, "hooks.lua", `
		function test_hook(a, b)
			return a + b
		end
	`)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.md"), []byte("not lua"), 0644))
	require.NoError(t, mgr.LoadDir(context.Background(), dir))
	assert.True(t, mgr.HasHook("test_hook"))

	ret, err := mgr.CallHook(context.Background(), "test_hook", lua.LNumber(3), lua.LNumber(4))
	require.NoError(t, err)
	assert.Equal(t, lua.LNumber(7), ret)
}

func TestManager_LoadDir_Missing(t *testing.T) {
	mgr, _ := newTestManager(t, 0)
	assert.Error(t, mgr.LoadDir(context.Background(), "/nonexistent/scripts"))
}

func TestManager_LoadString_SyntaxError(t *testing.T) {
	mgr, _ := newTestManager(t, 0)
	assert.Error(t, mgr.LoadString(context.Background(), `function broken(`))
}

func TestManager_CallHook_MissingHook_NoOp(t *testing.T) {
	mgr, _ := newTestManager(t, 0)
	require.NoError(t, mgr.LoadString(context.Background(), `-- no functions`))
	assert.False(t, mgr.HasHook("nonexistent_hook"))
	ret, err := mgr.CallHook(context.Background(), "nonexistent_hook")
	require.NoError(t, err)
	assert.Equal(t, lua.LNil, ret)
}

func TestManager_CallHook_RuntimeError_WarnLogged(t *testing.T) {
	mgr, logs := newTestManager(t, 0)
	require.NoError(t, mgr.LoadString(context.Background(), `
		function bad_hook()
			error("intentional error")
		end
	`))
	_, err := mgr.CallHook(context.Background(), "bad_hook")
	assert.Error(t, err)
	assert.Equal(t, 1, logs.FilterLevelExact(zap.WarnLevel).Len())
}

func TestManager_InstructionLimitPerCall(t *testing.T) {
	mgr, _ := newTestManager(t, 200)
	require.NoError(t, mgr.LoadString(context.Background(), `
		function spin() while true do end end
		function quick() return 1 end
	`))
	_, err := mgr.CallHook(context.Background(), "spin")
	assert.Error(t, err, "expected instruction limit error")

	for i := 0; i < 5; i++ {
		ret, err := mgr.CallHook(context.Background(), "quick")
		require.NoError(t, err, "limit is per call, not per VM")
		assert.Equal(t, lua.LNumber(1), ret)
	}
}

func TestManager_CancelledContextStopsScript(t *testing.T) {
	mgr, _ := newTestManager(t, 1_000_000_000)
	require.NoError(t, mgr.LoadString(context.Background(), `function spin() while true do end end`))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := mgr.CallHook(ctx, "spin")
	assert.Error(t, err)
}

func TestEngineLog_AllLevels(t *testing.T) {
	mgr, logs := newTestManager(t, 0)
	require.NoError(t, mgr.LoadString(context.Background(), `
		function do_all_logs()
			engine.log.debug("d")
			engine.log.info("i")
			engine.log.warn("w")
			engine.log.error("e")
		end
	`))
	_, err := mgr.CallHook(context.Background(), "do_all_logs")
	require.NoError(t, err)

	levels := map[string]bool{}
	for _, e := range logs.All() {
		levels[e.Level.String()] = true
	}
	for _, l := range []string{"debug", "info", "warn", "error"} {
		assert.True(t, levels[l], "expected %s log", l)
	}
}

func TestEngineDice_RollBadExpression(t *testing.T) {
	mgr, _ := newTestManager(t, 0)
	require.NoError(t, mgr.LoadString(context.Background(), `function bad() return engine.dice.roll("nope") end`))
	_, err := mgr.CallHook(context.Background(), "bad")
	assert.Error(t, err)
}

func TestProperty_DiceRoll_TotalEqualsDicePlusModifier(t *testing.T) {
	mgr, _ := newTestManager(t, 0)
	require.NoError(t, mgr.LoadString(context.Background(), `
		function check_invariant(expr)
			local r = engine.dice.roll(expr)
			return r.total == r.dice + r.modifier
		end
	`))
	rapid.Check(t, func(rt *rapid.T) {
		expr := rapid.SampledFrom([]string{"1d6", "2d6 + 3", "1d4 - 1", "4d6kh3 + 2"}).Draw(rt, "expr")
		ret, err := mgr.CallHook(context.Background(), "check_invariant", lua.LString(expr))
		if err != nil {
			rt.Fatalf("CallHook: %v", err)
		}
		assert.Equal(rt, lua.LTrue, ret, "total must equal dice + modifier for expr %s", expr)
	})
}
