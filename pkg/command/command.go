package command

import (
	"strings"
)

// ExecFunc is a command executer. The returned integer is the command result:
// negative means failure, zero means explicit abort, positive is a
// handler-defined payload code. A non-nil error (or a panic) counts as a
// failed execution.
type ExecFunc func(invoker Invoker, args Args) (int, error)

// AuthFunc decides whether an invoker may execute a command. An error means
// the decision could not be made and execution is denied.
type AuthFunc func(invoker Invoker) (bool, error)

// ResultFunc receives the result of an execution, either after success
// (post-processing) or after failure/abort (failure handling).
type ResultFunc func(invoker Invoker, result int) error

// Invoker is the opaque reference to a calling entity. The engine reads only
// the identifier and the authority attribute; everything else is for handlers.
type Invoker interface {
	ID() int32
	Authority() int
}

// Command is a registered command: a name, an argument contract and up to four
// handler slots. Commands are created through Manager.Create and remain bound
// to that manager.
type Command struct {
	mgr  *Manager
	name string

	spec    string
	argSpec [MaxArguments]ArgFlags
	argTags [MaxArguments]string

	minArgs int
	maxArgs int

	authority int
	protected bool
	suspended bool
	associate bool

	help string
	info string

	onExec ExecFunc
	onAuth AuthFunc
	onPost ResultFunc
	onFail ResultFunc
}

func newCommand(mgr *Manager, name, spec string, tags []string, minArgs, maxArgs int) (*Command, error) {
	c := &Command{
		mgr:       mgr,
		name:      name,
		minArgs:   0,
		maxArgs:   MaxArguments - 1,
		authority: -1,
	}
	if err := c.SetMinArgs(minArgs); err != nil {
		return nil, err
	}
	if err := c.SetMaxArgs(maxArgs); err != nil {
		return nil, err
	}
	if err := c.SetArgTags(tags); err != nil {
		return nil, err
	}
	if err := c.SetSpec(spec); err != nil {
		return nil, err
	}
	return c, nil
}

// Name returns the command name.
func (c *Command) Name() string { return c.name }

// Spec returns the raw argument specification string.
func (c *Command) Spec() string { return c.spec }

// SetSpec compiles a new argument specification. On error every position
// reverts to ArgAny; a partially applied spec is never left in place.
func (c *Command) SetSpec(spec string) error {
	compiled, err := compileSpec(c.name, spec)
	if err != nil {
		c.argSpec = [MaxArguments]ArgFlags{}
		return err
	}
	c.argSpec = compiled
	c.spec = spec
	c.GenerateInfo(false)
	return nil
}

// ArgFlags returns the flag set at the given position, ArgAny when out of range.
func (c *Command) ArgFlags(idx int) ArgFlags {
	if idx < 0 || idx >= MaxArguments {
		return ArgAny
	}
	return c.argSpec[idx]
}

// ArgTag returns the display name of the given position.
func (c *Command) ArgTag(idx int) (string, error) {
	if idx < 0 || idx >= MaxArguments {
		return "", regErrorf(ErrUnknownTypeSpecifier, c.name,
			"argument (%d) is out of total range (%d)", idx, MaxArguments)
	}
	return c.argTags[idx], nil
}

// SetArgTag assigns a display name to the given position.
func (c *Command) SetArgTag(idx int, tag string) error {
	if idx < 0 || idx >= MaxArguments {
		return regErrorf(ErrUnknownTypeSpecifier, c.name,
			"argument (%d) is out of total range (%d)", idx, MaxArguments)
	}
	c.argTags[idx] = tag
	return nil
}

// ArgTags returns a copy of all position display names.
func (c *Command) ArgTags() []string {
	tags := make([]string, MaxArguments)
	copy(tags, c.argTags[:])
	return tags
}

// SetArgTags replaces all position display names. A nil or empty slice clears
// every tag.
func (c *Command) SetArgTags(tags []string) error {
	if len(tags) >= MaxArguments {
		return regErrorf(ErrUnknownTypeSpecifier, c.name,
			"argument tag (%d) is out of range (%d)", len(tags), MaxArguments)
	}
	for i := range c.argTags {
		if i < len(tags) {
			c.argTags[i] = tags[i]
		} else {
			c.argTags[i] = ""
		}
	}
	return nil
}

// MinArgs returns the minimum accepted argument count.
func (c *Command) MinArgs() int { return c.minArgs }

// SetMinArgs updates the minimum accepted argument count.
func (c *Command) SetMinArgs(v int) error {
	if v < 0 || v >= MaxArguments {
		return regErrorf(ErrUnknownTypeSpecifier, c.name,
			"argument (%d) is out of total range (%d)", v, MaxArguments)
	}
	if v > c.maxArgs {
		return regErrorf(ErrUnknownTypeSpecifier, c.name,
			"minimum argument (%d) exceeds maximum (%d)", v, c.maxArgs)
	}
	c.minArgs = v
	return nil
}

// MaxArgs returns the maximum accepted argument count.
func (c *Command) MaxArgs() int { return c.maxArgs }

// SetMaxArgs updates the maximum accepted argument count.
func (c *Command) SetMaxArgs(v int) error {
	if v < 0 || v >= MaxArguments {
		return regErrorf(ErrUnknownTypeSpecifier, c.name,
			"argument (%d) is out of total range (%d)", v, MaxArguments)
	}
	if v < c.minArgs {
		return regErrorf(ErrUnknownTypeSpecifier, c.name,
			"minimum argument (%d) exceeds maximum (%d)", c.minArgs, v)
	}
	c.maxArgs = v
	return nil
}

// Authority returns the authority threshold, -1 when no default check applies.
func (c *Command) Authority() int { return c.authority }

// SetAuthority updates the authority threshold.
func (c *Command) SetAuthority(level int) { c.authority = level }

// Protected reports whether authority is checked at all.
func (c *Command) Protected() bool { return c.protected }

// SetProtected toggles the authority check.
func (c *Command) SetProtected(v bool) { c.protected = v }

// Suspended reports whether the command currently refuses execution. The
// engine itself does not honor this flag; the hosting layer gates on it
// before dispatching.
func (c *Command) Suspended() bool { return c.suspended }

// SetSuspended toggles the suspension flag.
func (c *Command) SetSuspended(v bool) { c.suspended = v }

// Associate reports whether arguments are delivered as a name-keyed map.
func (c *Command) Associate() bool { return c.associate }

// SetAssociate toggles associative argument delivery.
func (c *Command) SetAssociate(v bool) { c.associate = v }

// Help returns the help text.
func (c *Command) Help() string { return c.help }

// SetHelp updates the help text.
func (c *Command) SetHelp(s string) { c.help = s }

// Info returns the informational/usage text.
func (c *Command) Info() string { return c.info }

// SetInfo overrides the informational/usage text.
func (c *Command) SetInfo(s string) { c.info = s }

// BindExec sets the executer callback.
func (c *Command) BindExec(fn ExecFunc) { c.onExec = fn }

// BindAuth sets the authority inspector, overriding the default check.
func (c *Command) BindAuth(fn AuthFunc) { c.onAuth = fn }

// BindPost sets the post-processing callback, invoked after a truthy result.
func (c *Command) BindPost(fn ResultFunc) { c.onPost = fn }

// BindFail sets the failure callback, invoked after a falsy result or an
// execution error.
func (c *Command) BindFail(fn ResultFunc) { c.onFail = fn }

// Attached reports whether the command is still registered with its manager.
func (c *Command) Attached() bool { return c.mgr != nil && c.mgr.AttachedCommand(c) }

// Detach removes the command from its manager. Idempotent.
func (c *Command) Detach() {
	if c.mgr != nil {
		c.mgr.DetachCommand(c)
	}
}

// ArgCheck reports whether a value of the given kind is acceptable at the
// given position: the position accepts anything, the kind matches one of the
// position's flags, or the position is greedy and the kind is string.
func (c *Command) ArgCheck(idx int, kind ArgFlags) bool {
	f := c.ArgFlags(idx)
	return f == ArgAny || f&kind != 0 || (f&ArgGreedy != 0 && kind&ArgString != 0)
}

// AuthCheck decides whether the invoker may execute this command. Unprotected
// commands always pass. For protected commands the per-command inspector wins,
// then the manager's default inspector, then the authority threshold; both
// inspectors fail closed when they error out.
func (c *Command) AuthCheck(inv Invoker) bool {
	if !c.protected {
		return true
	}
	if c.onAuth != nil {
		ok, err := c.onAuth(inv)
		return err == nil && ok
	}
	if c.mgr != nil && c.mgr.onAuth != nil {
		ok, err := c.mgr.onAuth(inv)
		return err == nil && ok
	}
	if c.authority >= 0 {
		return inv != nil && inv.Authority() >= c.authority
	}
	return true
}

// GenerateInfo rebuilds the usage string from the argument flags and tags.
// Rendering is deterministic for a fixed spec+tags pair. When full is false,
// trailing positions with neither a tag nor a type specifier are omitted.
func (c *Command) GenerateInfo(full bool) {
	var b strings.Builder
	for arg := 0; arg < c.maxArgs; arg++ {
		if !full {
			stop := true
			for idx := arg; idx < c.maxArgs; idx++ {
				if c.argTags[idx] != "" || c.argSpec[idx] != ArgAny {
					stop = false
					break
				}
			}
			if stop {
				break
			}
		}
		b.WriteByte('<')
		if arg >= c.minArgs {
			b.WriteByte('*')
		}
		if c.argTags[arg] != "" {
			b.WriteString(c.argTags[arg])
			b.WriteByte(':')
		}
		spec := c.argSpec[arg]
		switch {
		case spec&ArgGreedy != 0:
			b.WriteString("...")
		case spec != ArgAny:
			first := true
			for _, t := range []struct {
				flag ArgFlags
				name string
			}{
				{ArgInteger, "integer"},
				{ArgFloat, "float"},
				{ArgBoolean, "boolean"},
				{ArgString, "string"},
			} {
				if spec&t.flag == 0 {
					continue
				}
				if !first {
					b.WriteByte(',')
				}
				b.WriteString(t.name)
				first = false
			}
		default:
			b.WriteString("any")
		}
		b.WriteByte('>')
		if spec&ArgGreedy != 0 {
			break
		}
		if arg+1 != c.maxArgs {
			b.WriteByte(' ')
		}
	}
	c.info = b.String()
}
