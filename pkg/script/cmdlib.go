package script

import (
	"log"

	"github.com/Shopify/go-lua"

	"github.com/ashen-labs/luamod/pkg/command"
	"github.com/ashen-labs/luamod/pkg/player"
)

const commandTypeName = "luamod.command"

func (h *Host) registerCommandLib() {
	l := h.state

	lua.NewMetaTable(l, commandTypeName)
	l.NewTable()
	lua.SetFunctions(l, h.commandMethods(), 0)
	l.SetField(-2, "__index")
	l.Pop(1)

	l.NewTable()
	lua.SetFunctions(l, h.commandLib(), 0)
	l.SetGlobal("cmd")
}

func (h *Host) pushCommand(c *command.Command) {
	h.state.PushUserData(c)
	lua.SetMetaTableNamed(h.state, commandTypeName)
}

func checkCommand(l *lua.State) *command.Command {
	ud := lua.CheckUserData(l, 1, commandTypeName)
	if c, ok := ud.(*command.Command); ok && c != nil {
		return c
	}
	lua.ArgumentError(l, 1, "command expected")
	return nil
}

// invokerID reads a dispatch identity at index: player userdata or a bare
// integer id.
func invokerID(l *lua.State, index int) int32 {
	if pl, ok := l.ToUserData(index).(*player.Player); ok && pl != nil {
		return pl.ID()
	}
	return int32(lua.CheckInteger(l, index))
}

func (h *Host) commandLib() []lua.RegistryFunction {
	return []lua.RegistryFunction{
		{Name: "create", Function: func(l *lua.State) int {
			name := lua.CheckString(l, 1)
			spec := lua.OptString(l, 2, "")
			tags := optStringList(l, 3)
			min := lua.OptInteger(l, 4, 0)
			max := lua.OptInteger(l, 5, command.MaxArguments-1)
			c, err := h.mgr.Create(name, spec, tags, min, max)
			if err != nil {
				lua.Errorf(l, "%s", err.Error())
				return 0
			}
			h.pushCommand(c)
			return 1
		}},
		{Name: "run", Function: func(l *lua.State) int {
			id := invokerID(l, 1)
			line := lua.CheckString(l, 2)
			l.PushInteger(h.mgr.Run(id, line))
			return 1
		}},
		{Name: "find", Function: func(l *lua.State) int {
			name := lua.CheckString(l, 1)
			c := h.mgr.Find(name)
			if c == nil {
				l.PushNil()
			} else {
				h.pushCommand(c)
			}
			return 1
		}},
		{Name: "count", Function: func(l *lua.State) int {
			l.PushInteger(h.mgr.Count())
			return 1
		}},
		{Name: "sort", Function: func(l *lua.State) int {
			h.mgr.Sort()
			return 0
		}},
		{Name: "on_auth", Function: func(l *lua.State) int {
			lua.CheckType(l, 1, lua.TypeFunction)
			slot := h.ref(1)
			h.mgr.SetOnAuth(func(inv command.Invoker) (bool, error) {
				return h.callAuth(slot, inv)
			})
			return 0
		}},
		{Name: "on_error", Function: func(l *lua.State) int {
			lua.CheckType(l, 1, lua.TypeFunction)
			slot := h.ref(1)
			h.mgr.SetOnError(func(code command.ErrCode, msg string, ctx any) {
				h.pushRef(slot)
				h.state.PushInteger(int(code))
				h.state.PushString(msg)
				pushAny(h.state, ctx)
				if err := h.pcall(3, 0); err != nil {
					// Never feed a sink failure back into the sink.
					log.Printf("SCRIPT: error sink failed: %v", err)
				}
			})
			return 0
		}},
		{Name: "invoker", Function: func(l *lua.State) int {
			if !h.mgr.InContext() {
				l.PushNil()
				return 1
			}
			h.pushInvokerID(h.mgr.Current().Invoker())
			return 1
		}},
		{Name: "name", Function: func(l *lua.State) int {
			if !h.mgr.InContext() {
				l.PushNil()
				return 1
			}
			l.PushString(h.mgr.Current().CommandName())
			return 1
		}},
		{Name: "text", Function: func(l *lua.State) int {
			if !h.mgr.InContext() {
				l.PushNil()
				return 1
			}
			l.PushString(h.mgr.Current().ArgumentText())
			return 1
		}},
	}
}

func (h *Host) pushInvokerID(id int32) {
	if h.pool != nil {
		if pl, ok := h.pool.Get(id); ok {
			h.pushPlayer(pl)
			return
		}
	}
	h.state.PushInteger(int(id))
}

func (h *Host) commandMethods() []lua.RegistryFunction {
	return []lua.RegistryFunction{
		{Name: "bind", Function: func(l *lua.State) int {
			c := checkCommand(l)
			if l.IsNoneOrNil(2) {
				c.BindExec(nil)
				return 0
			}
			lua.CheckType(l, 2, lua.TypeFunction)
			slot := h.ref(2)
			c.BindExec(func(inv command.Invoker, args command.Args) (int, error) {
				return h.callExec(slot, inv, args)
			})
			return 0
		}},
		{Name: "auth", Function: func(l *lua.State) int {
			c := checkCommand(l)
			if l.IsNoneOrNil(2) {
				c.BindAuth(nil)
				return 0
			}
			lua.CheckType(l, 2, lua.TypeFunction)
			slot := h.ref(2)
			c.BindAuth(func(inv command.Invoker) (bool, error) {
				return h.callAuth(slot, inv)
			})
			return 0
		}},
		{Name: "post", Function: func(l *lua.State) int {
			c := checkCommand(l)
			if l.IsNoneOrNil(2) {
				c.BindPost(nil)
				return 0
			}
			lua.CheckType(l, 2, lua.TypeFunction)
			slot := h.ref(2)
			c.BindPost(func(inv command.Invoker, result int) error {
				return h.callResult(slot, inv, result)
			})
			return 0
		}},
		{Name: "fail", Function: func(l *lua.State) int {
			c := checkCommand(l)
			if l.IsNoneOrNil(2) {
				c.BindFail(nil)
				return 0
			}
			lua.CheckType(l, 2, lua.TypeFunction)
			slot := h.ref(2)
			c.BindFail(func(inv command.Invoker, result int) error {
				return h.callResult(slot, inv, result)
			})
			return 0
		}},
		{Name: "name", Function: func(l *lua.State) int {
			l.PushString(checkCommand(l).Name())
			return 1
		}},
		{Name: "spec", Function: func(l *lua.State) int {
			c := checkCommand(l)
			if l.IsNoneOrNil(2) {
				l.PushString(c.Spec())
				return 1
			}
			if err := c.SetSpec(lua.CheckString(l, 2)); err != nil {
				lua.Errorf(l, "%s", err.Error())
			}
			return 0
		}},
		{Name: "help", Function: func(l *lua.State) int {
			c := checkCommand(l)
			if l.IsNoneOrNil(2) {
				l.PushString(c.Help())
				return 1
			}
			c.SetHelp(lua.CheckString(l, 2))
			return 0
		}},
		{Name: "info", Function: func(l *lua.State) int {
			c := checkCommand(l)
			if l.IsNoneOrNil(2) {
				l.PushString(c.Info())
				return 1
			}
			c.SetInfo(lua.CheckString(l, 2))
			return 0
		}},
		{Name: "usage", Function: func(l *lua.State) int {
			c := checkCommand(l)
			c.GenerateInfo(true)
			l.PushString(c.Info())
			return 1
		}},
		{Name: "authority", Function: func(l *lua.State) int {
			c := checkCommand(l)
			if l.IsNoneOrNil(2) {
				l.PushInteger(c.Authority())
				return 1
			}
			c.SetAuthority(lua.CheckInteger(l, 2))
			return 0
		}},
		{Name: "protected", Function: func(l *lua.State) int {
			c := checkCommand(l)
			if l.IsNoneOrNil(2) {
				l.PushBoolean(c.Protected())
				return 1
			}
			c.SetProtected(l.ToBoolean(2))
			return 0
		}},
		{Name: "suspended", Function: func(l *lua.State) int {
			c := checkCommand(l)
			if l.IsNoneOrNil(2) {
				l.PushBoolean(c.Suspended())
				return 1
			}
			c.SetSuspended(l.ToBoolean(2))
			return 0
		}},
		{Name: "associate", Function: func(l *lua.State) int {
			c := checkCommand(l)
			if l.IsNoneOrNil(2) {
				l.PushBoolean(c.Associate())
				return 1
			}
			c.SetAssociate(l.ToBoolean(2))
			return 0
		}},
		{Name: "min_args", Function: func(l *lua.State) int {
			c := checkCommand(l)
			if l.IsNoneOrNil(2) {
				l.PushInteger(c.MinArgs())
				return 1
			}
			if err := c.SetMinArgs(lua.CheckInteger(l, 2)); err != nil {
				lua.Errorf(l, "%s", err.Error())
			}
			return 0
		}},
		{Name: "max_args", Function: func(l *lua.State) int {
			c := checkCommand(l)
			if l.IsNoneOrNil(2) {
				l.PushInteger(c.MaxArgs())
				return 1
			}
			if err := c.SetMaxArgs(lua.CheckInteger(l, 2)); err != nil {
				lua.Errorf(l, "%s", err.Error())
			}
			return 0
		}},
		{Name: "arg_tag", Function: func(l *lua.State) int {
			c := checkCommand(l)
			idx := lua.CheckInteger(l, 2)
			if l.IsNoneOrNil(3) {
				tag, err := c.ArgTag(idx)
				if err != nil {
					lua.Errorf(l, "%s", err.Error())
					return 0
				}
				l.PushString(tag)
				return 1
			}
			if err := c.SetArgTag(idx, lua.CheckString(l, 3)); err != nil {
				lua.Errorf(l, "%s", err.Error())
			}
			return 0
		}},
		{Name: "detach", Function: func(l *lua.State) int {
			checkCommand(l).Detach()
			return 0
		}},
		{Name: "attached", Function: func(l *lua.State) int {
			l.PushBoolean(checkCommand(l).Attached())
			return 1
		}},
	}
}
