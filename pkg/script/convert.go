package script

import (
	"fmt"
	"math"

	"github.com/Shopify/go-lua"

	"github.com/ashen-labs/luamod/pkg/command"
)

// pushValue pushes one parsed argument with its native type.
func pushValue(l *lua.State, v command.Value) {
	switch v.Kind {
	case command.ArgInteger:
		l.PushInteger(int(v.Int))
	case command.ArgFloat:
		l.PushNumber(v.Float)
	case command.ArgBoolean:
		l.PushBoolean(v.Bool)
	default:
		l.PushString(v.Str)
	}
}

// pushArgs shapes the parsed arguments the way the command asked for them:
// a sequence table for positional commands, a keyed table for associative
// ones.
func pushArgs(l *lua.State, args command.Args) {
	l.NewTable()
	if args.Named != nil {
		for key, v := range args.Named {
			pushValue(l, v)
			l.SetField(-2, key)
		}
		return
	}
	for i, v := range args.Values {
		pushValue(l, v)
		l.RawSetInt(-2, i+1)
	}
}

// pushAny pushes a captured Go value back into the VM. Routine arguments
// round-trip through this pair.
func pushAny(l *lua.State, v any) {
	switch x := v.(type) {
	case nil:
		l.PushNil()
	case bool:
		l.PushBoolean(x)
	case int:
		l.PushInteger(x)
	case int64:
		l.PushInteger(int(x))
	case float64:
		l.PushNumber(x)
	case string:
		l.PushString(x)
	default:
		l.PushString(fmt.Sprint(x))
	}
}

// toAny converts the value at index to a plain Go value.
func toAny(l *lua.State, index int) any {
	switch l.TypeOf(index) {
	case lua.TypeString:
		s, _ := l.ToString(index)
		return s
	case lua.TypeNumber:
		n, _ := l.ToNumber(index)
		if math.Mod(n, 1) == 0 {
			return int(n)
		}
		return n
	case lua.TypeBoolean:
		return l.ToBoolean(index)
	default:
		return nil
	}
}

// optStringList reads an optional sequence table of strings at index.
func optStringList(l *lua.State, index int) []string {
	if l.IsNoneOrNil(index) {
		return nil
	}
	lua.CheckType(l, index, lua.TypeTable)
	index = l.AbsIndex(index)
	var out []string
	for i := 1; ; i++ {
		l.RawGetInt(index, i)
		if l.TypeOf(-1) == lua.TypeNil {
			l.Pop(1)
			break
		}
		s, _ := l.ToString(-1)
		out = append(out, s)
		l.Pop(1)
	}
	return out
}
