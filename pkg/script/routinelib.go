package script

import (
	"fmt"
	"time"

	"github.com/Shopify/go-lua"

	"github.com/ashen-labs/luamod/pkg/routine"
)

const routineTypeName = "luamod.routine"

func (h *Host) registerRoutineLib() {
	l := h.state

	lua.NewMetaTable(l, routineTypeName)
	l.NewTable()
	lua.SetFunctions(l, routineMethods, 0)
	l.SetField(-2, "__index")
	l.Pop(1)

	l.NewTable()
	lua.SetFunctions(l, h.routineLib(), 0)
	l.SetGlobal("routine")
}

func (h *Host) pushRoutine(r *routine.Routine) {
	h.state.PushUserData(r)
	lua.SetMetaTableNamed(h.state, routineTypeName)
}

func checkRoutine(l *lua.State) *routine.Routine {
	ud := lua.CheckUserData(l, 1, routineTypeName)
	if r, ok := ud.(*routine.Routine); ok && r != nil {
		return r
	}
	lua.ArgumentError(l, 1, "routine expected")
	return nil
}

func (h *Host) routineLib() []lua.RegistryFunction {
	return []lua.RegistryFunction{
		{Name: "create", Function: func(l *lua.State) int {
			ms := lua.CheckInteger(l, 1)
			iterations := lua.CheckInteger(l, 2)
			lua.CheckType(l, 3, lua.TypeFunction)
			slot := h.ref(3)

			var args []any
			for i := 4; i <= l.Top(); i++ {
				args = append(args, toAny(l, i))
			}

			h.nextTag++
			tag := fmt.Sprintf("lua:%d", h.nextTag)
			r, err := h.sched.New(tag, time.Duration(ms)*time.Millisecond, iterations,
				func(captured []any) error {
					h.pushRef(slot)
					for _, a := range captured {
						pushAny(h.state, a)
					}
					return h.pcall(len(captured), 0)
				}, args...)
			if err != nil {
				lua.Errorf(l, "%s", err.Error())
				return 0
			}
			h.pushRoutine(r)
			return 1
		}},
		{Name: "find", Function: func(l *lua.State) int {
			r, ok := h.sched.FindByTag(lua.CheckString(l, 1))
			if !ok {
				l.PushNil()
				return 1
			}
			h.pushRoutine(r)
			return 1
		}},
		{Name: "count", Function: func(l *lua.State) int {
			l.PushInteger(h.sched.Count())
			return 1
		}},
	}
}

var routineMethods = []lua.RegistryFunction{
	{Name: "tag", Function: func(l *lua.State) int {
		l.PushString(checkRoutine(l).Tag())
		return 1
	}},
	{Name: "suspend", Function: func(l *lua.State) int {
		checkRoutine(l).Suspend()
		return 0
	}},
	{Name: "resume", Function: func(l *lua.State) int {
		checkRoutine(l).Resume()
		return 0
	}},
	{Name: "suspended", Function: func(l *lua.State) int {
		l.PushBoolean(checkRoutine(l).Suspended())
		return 1
	}},
	{Name: "quiet", Function: func(l *lua.State) int {
		r := checkRoutine(l)
		if l.IsNoneOrNil(2) {
			l.PushBoolean(r.Quiet())
			return 1
		}
		r.SetQuiet(l.ToBoolean(2))
		return 0
	}},
	{Name: "endure", Function: func(l *lua.State) int {
		r := checkRoutine(l)
		if l.IsNoneOrNil(2) {
			l.PushBoolean(r.Endure())
			return 1
		}
		r.SetEndure(l.ToBoolean(2))
		return 0
	}},
	{Name: "terminate", Function: func(l *lua.State) int {
		checkRoutine(l).Terminate()
		return 0
	}},
	{Name: "terminated", Function: func(l *lua.State) int {
		l.PushBoolean(checkRoutine(l).Terminated())
		return 1
	}},
}
