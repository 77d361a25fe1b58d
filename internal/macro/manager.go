package macro

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
)

// Manager owns a single sandboxed LState holding all loaded macros and
// exposes macro dispatch by global function name.
//
// Manager is safe for concurrent Call after Load completes. The LState is
// single-threaded; the mutex serializes concurrent macro executions.
type Manager struct {
	mu     sync.Mutex
	state  *lua.LState
	cancel func()
	limit  int
	logger *zap.Logger

	// Injected after construction. nil = the coffers.* function reports an
	// error into Lua instead of acting.
	Pay     func(characterID int64, command string) (string, error)
	Credit  func(characterID int64, command string) (string, error)
	Balance func(characterID int64) (int, error)
}

// NewManager creates a Manager with no macros loaded.
//
// Precondition: logger must be non-nil.
func NewManager(logger *zap.Logger) *Manager {
	return &Manager{
		logger: logger,
	}
}

// Load creates a fresh sandboxed VM, registers the coffers.* module, then
// executes every *.lua file in macroDir in lexicographic order. Each file
// loads under its own instruction budget. Any previously loaded VM is closed
// and replaced.
//
// Precondition: macroDir must be a readable directory.
// Postcondition: Macros are loaded; returns error on Lua load failure.
func (m *Manager) Load(macroDir string, instLimit int) error {
	L, cancel := NewSandboxedState(instLimit)
	m.registerModules(L)

	entries, err := os.ReadDir(macroDir)
	if err != nil {
		cancel()
		L.Close()
		return fmt.Errorf("macro: reading macro dir %q: %w", macroDir, err)
	}

	var luaFiles []string
	for _, e := range entries {
		if !e.IsDir() && filepath.Ext(e.Name()) == ".lua" {
			luaFiles = append(luaFiles, filepath.Join(macroDir, e.Name()))
		}
	}
	sort.Strings(luaFiles)

	for _, path := range luaFiles {
		cancel()
		cancel = armBudget(L, instLimit)
		if err := L.DoFile(path); err != nil {
			cancel()
			L.Close()
			return fmt.Errorf("macro: loading %q: %w", path, err)
		}
	}

	m.mu.Lock()
	if m.state != nil {
		if m.cancel != nil {
			m.cancel()
		}
		m.state.Close()
	}
	m.state = L
	m.cancel = cancel
	m.limit = instLimit
	m.mu.Unlock()

	m.logger.Info("macros loaded",
		zap.String("dir", macroDir),
		zap.Int("files", len(luaFiles)),
	)
	return nil
}

// Call invokes the named Lua global function under a fresh instruction
// budget. Returns (LNil, nil) if the macro is not defined or no VM is loaded.
// Lua runtime errors, including an exhausted budget, are logged at Warn level
// and never propagated; the VM stays usable for the next invocation.
//
// Precondition: args must be valid lua.LValue instances.
// Postcondition: Returns the first return value of the macro, or LNil.
func (m *Manager) Call(name string, args ...lua.LValue) (lua.LValue, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state == nil {
		m.logger.Info("macro: no VM loaded",
			zap.String("macro", name),
		)
		return lua.LNil, nil
	}

	fn := m.state.GetGlobal(name)
	if fn == lua.LNil {
		return lua.LNil, nil
	}

	if m.cancel != nil {
		m.cancel()
	}
	m.cancel = armBudget(m.state, m.limit)

	if err := m.state.CallByParam(lua.P{
		Fn:      fn,
		NRet:    1,
		Protect: true,
	}, args...); err != nil {
		m.logger.Warn("macro: Lua runtime error",
			zap.String("macro", name),
			zap.Error(err),
		)
		return lua.LNil, nil
	}

	ret := m.state.Get(-1)
	m.state.Pop(1)
	return ret, nil
}

// Close releases the VM and its instruction-limit context.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
	if m.state != nil {
		m.state.Close()
		m.state = nil
	}
}
