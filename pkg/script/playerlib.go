package script

import (
	"github.com/Shopify/go-lua"

	"github.com/ashen-labs/luamod/pkg/player"
)

const playerTypeName = "luamod.player"

func (h *Host) registerPlayerType() {
	l := h.state

	lua.NewMetaTable(l, playerTypeName)
	l.NewTable()
	lua.SetFunctions(l, playerMethods, 0)
	l.SetField(-2, "__index")
	l.Pop(1)

	l.NewTable()
	lua.SetFunctions(l, h.playerLib(), 0)
	l.SetGlobal("player")
}

func (h *Host) pushPlayer(pl *player.Player) {
	h.state.PushUserData(pl)
	lua.SetMetaTableNamed(h.state, playerTypeName)
}

func checkPlayer(l *lua.State) *player.Player {
	ud := lua.CheckUserData(l, 1, playerTypeName)
	if pl, ok := ud.(*player.Player); ok && pl != nil {
		return pl
	}
	lua.ArgumentError(l, 1, "player expected")
	return nil
}

func (h *Host) playerLib() []lua.RegistryFunction {
	return []lua.RegistryFunction{
		{Name: "get", Function: func(l *lua.State) int {
			id := int32(lua.CheckInteger(l, 1))
			pl, ok := h.pool.Get(id)
			if !ok {
				l.PushNil()
				return 1
			}
			h.pushPlayer(pl)
			return 1
		}},
		{Name: "by_name", Function: func(l *lua.State) int {
			pl, ok := h.pool.ByName(lua.CheckString(l, 1))
			if !ok {
				l.PushNil()
				return 1
			}
			h.pushPlayer(pl)
			return 1
		}},
		{Name: "count", Function: func(l *lua.State) int {
			l.PushInteger(h.pool.Count())
			return 1
		}},
	}
}

var playerMethods = []lua.RegistryFunction{
	{Name: "id", Function: func(l *lua.State) int {
		l.PushInteger(int(checkPlayer(l).ID()))
		return 1
	}},
	{Name: "name", Function: func(l *lua.State) int {
		l.PushString(checkPlayer(l).Name())
		return 1
	}},
	{Name: "authority", Function: func(l *lua.State) int {
		pl := checkPlayer(l)
		if l.IsNoneOrNil(2) {
			l.PushInteger(pl.Authority())
			return 1
		}
		pl.SetAuthority(lua.CheckInteger(l, 2))
		return 0
	}},
	{Name: "send", Function: func(l *lua.State) int {
		checkPlayer(l).Send(lua.CheckString(l, 2))
		return 0
	}},
}
