package macro

import (
	lua "github.com/yuin/gopher-lua"

	"github.com/tmarsden/coffers/internal/ledger"
)

// registerModules registers the coffers.* Lua table into L.
//
// Precondition: L must be from NewSandboxedState.
// Postcondition: coffers global is defined in L with pay, credit, balance,
// and format functions.
func (m *Manager) registerModules(L *lua.LState) {
	coffers := L.NewTable()
	L.SetFuncs(coffers, map[string]lua.LGFunction{
		"pay":     m.luaPay,
		"credit":  m.luaCredit,
		"balance": m.luaBalance,
		"format":  luaFormat,
	})
	L.SetGlobal("coffers", coffers)
}

// luaPay implements coffers.pay(character_id, command) -> summary | nil, err.
func (m *Manager) luaPay(L *lua.LState) int {
	characterID := int64(L.CheckInt(1))
	command := L.CheckString(2)
	if m.Pay == nil {
		L.Push(lua.LNil)
		L.Push(lua.LString("pay is not available"))
		return 2
	}
	summary, err := m.Pay(characterID, command)
	if err != nil {
		L.Push(lua.LNil)
		L.Push(lua.LString(err.Error()))
		return 2
	}
	L.Push(lua.LString(summary))
	return 1
}

// luaCredit implements coffers.credit(character_id, command) -> summary | nil, err.
func (m *Manager) luaCredit(L *lua.LState) int {
	characterID := int64(L.CheckInt(1))
	command := L.CheckString(2)
	if m.Credit == nil {
		L.Push(lua.LNil)
		L.Push(lua.LString("credit is not available"))
		return 2
	}
	summary, err := m.Credit(characterID, command)
	if err != nil {
		L.Push(lua.LNil)
		L.Push(lua.LString(err.Error()))
		return 2
	}
	L.Push(lua.LString(summary))
	return 1
}

// luaBalance implements coffers.balance(character_id) -> total | nil, err.
// The total is expressed in base units of the current region.
func (m *Manager) luaBalance(L *lua.LState) int {
	characterID := int64(L.CheckInt(1))
	if m.Balance == nil {
		L.Push(lua.LNil)
		L.Push(lua.LString("balance is not available"))
		return 2
	}
	total, err := m.Balance(characterID)
	if err != nil {
		L.Push(lua.LNil)
		L.Push(lua.LString(err.Error()))
		return 2
	}
	L.Push(lua.LNumber(total))
	return 1
}

// luaFormat implements coffers.format(total) -> string, rendering a base-unit
// total as canonical gold/silver/brass notation.
func luaFormat(L *lua.LState) int {
	total := L.CheckInt(1)
	if total < 0 {
		L.Push(lua.LNil)
		L.Push(lua.LString("total must be >= 0"))
		return 2
	}
	L.Push(lua.LString(ledger.Normalize(total).Format()))
	return 1
}
