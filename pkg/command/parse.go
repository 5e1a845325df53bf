package command

import (
	"strconv"
	"strings"
)

func isSpace(c byte) bool {
	switch c {
	case ' ', '\t', '\n', '\v', '\f', '\r':
		return true
	}
	return false
}

// parse tokenizes the context's argument text into typed values according to
// the command's per-position flags. It consumes up to one argument more than
// the command's maximum so that extraneous input is caught by validation;
// anything beyond that is left unparsed without error. Reports false after
// delivering a structured error.
func (m *Manager) parse(ctx *Context) bool {
	arg := ctx.argument
	if arg == "" {
		return true
	}
	limit := ctx.cmd.maxArgs + 1
	if limit > MaxArguments {
		limit = MaxArguments
	}

	i := 0
	for i < len(arg) && len(ctx.argv) < limit {
		flags := ctx.cmd.argSpec[len(ctx.argv)]

		// A greedy position swallows the remainder as one string.
		if flags&ArgGreedy != 0 {
			for i < len(arg) && isSpace(arg[i]) {
				i++
			}
			ctx.argv = append(ctx.argv, StringValue(arg[i:]))
			return true
		}

		c := arg[i]
		if isSpace(c) {
			i++
			continue
		}

		if (c == '\'' || c == '"') && (i == 0 || arg[i-1] != '\\') {
			next, ok := m.parseQuoted(ctx, arg, i, c, flags)
			if !ok {
				return false
			}
			i = next
			continue
		}

		j := i
		for j < len(arg) && !isSpace(arg[j]) {
			j++
		}
		ctx.argv = append(ctx.argv, classify(arg[i:j], flags))
		i = j
	}
	return true
}

// parseQuoted extracts a quoted string starting at the opening quote in
// arg[start]. Backslash-escaped quotes are copied as the literal quote
// character; anything else is copied verbatim. Returns the index just past
// the closing quote.
func (m *Manager) parseQuoted(ctx *Context, arg string, start int, quote byte, flags ArgFlags) (int, bool) {
	buf := ctx.buffer[:0]
	prev := quote
	i := start + 1
	for {
		if i >= len(arg) {
			m.error(ErrSyntaxError, "string argument not closed properly", len(ctx.argv))
			return 0, false
		}
		c := arg[i]
		if c == quote {
			if prev != '\\' {
				i++
				break
			}
			// Replace the copied backslash with the quote itself.
			buf = buf[:len(buf)-1]
		}
		// The scratch buffer is sized to the whole input, so running out of
		// room means the extraction itself went wrong.
		if len(buf) >= cap(ctx.buffer) {
			m.error(ErrBufferOverflow, "command buffer was exceeded unexpectedly", ctx.invoker)
			return 0, false
		}
		buf = append(buf, c)
		prev = c
		i++
	}
	s := string(buf)
	if flags&ArgLower != 0 {
		s = strings.ToLower(s)
	} else if flags&ArgUpper != 0 {
		s = strings.ToUpper(s)
	}
	ctx.argv = append(ctx.argv, StringValue(s))
	return i, true
}

// classify runs the type inference cascade over a whitespace-delimited run.
// The fixed priority is integer, float, boolean, string; only the first
// classification the position accepts and the whole run satisfies is used.
func classify(run string, flags ArgFlags) Value {
	if flags&ArgInteger != 0 {
		if v, err := strconv.ParseInt(run, 10, 64); err == nil {
			return IntValue(v)
		}
	}
	if flags&ArgFloat != 0 {
		if v, err := strconv.ParseFloat(run, 64); err == nil {
			return FloatValue(v)
		}
	}
	if flags&ArgBoolean != 0 && len(run) <= 5 {
		switch strings.ToLower(run) {
		case "true", "on":
			return BoolValue(true)
		case "false", "off":
			return BoolValue(false)
		}
	}
	if flags&ArgLower != 0 {
		return StringValue(strings.ToLower(run))
	}
	if flags&ArgUpper != 0 {
		return StringValue(strings.ToUpper(run))
	}
	return StringValue(run)
}
