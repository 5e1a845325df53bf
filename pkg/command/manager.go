// Package command implements the command dispatch engine: a registry of named
// commands, a tokenizer that turns raw input text into typed arguments, and a
// dispatcher that validates arguments and caller authority before invoking the
// bound handlers.
//
// The engine is single threaded by design: it expects to run on the one
// goroutine that owns the scripting state, the same model the scripting VM
// imposes. Nested dispatch (a handler invoking Run again) is supported through
// a context stack.
package command

import (
	"hash/fnv"
	"log"
	"sort"
)

// Resolver maps an invoker identifier to the opaque invoker reference passed
// to handlers. The engine inspects nothing but the authority attribute.
type Resolver interface {
	Resolve(id int32) (Invoker, bool)
}

// ResolverFunc adapts a function to the Resolver interface.
type ResolverFunc func(id int32) (Invoker, bool)

// Resolve calls fn.
func (fn ResolverFunc) Resolve(id int32) (Invoker, bool) { return fn(id) }

// ErrorFunc receives every structured dispatch error. It must not block and
// must not panic.
type ErrorFunc func(code ErrCode, msg string, ctx any)

// hashName produces the lookup key for a command name. Declared as a variable
// so tests can force hash collisions.
var hashName = func(name string) uint64 {
	h := fnv.New64a()
	h.Write([]byte(name))
	return h.Sum64()
}

type entry struct {
	hash uint64
	name string
	cmd  *Command
}

// Manager owns the command registry and performs dispatch. Construct one
// explicitly with New; there is no process-wide instance.
type Manager struct {
	commands []entry
	stack    []*Context

	resolve Resolver
	onError ErrorFunc
	onAuth  AuthFunc
}

// New returns an empty command manager. Errors are logged until an error sink
// is installed with SetOnError.
func New() *Manager {
	m := &Manager{}
	m.onError = func(code ErrCode, msg string, ctx any) {
		log.Printf("CMD: [%s] %s (%v)", code, msg, ctx)
	}
	return m
}

// SetResolver installs the invoker lookup facility.
func (m *Manager) SetResolver(r Resolver) { m.resolve = r }

// SetOnError installs the structured error sink. A nil sink silences reports.
func (m *Manager) SetOnError(fn ErrorFunc) { m.onError = fn }

// SetOnAuth installs the manager-wide default authority inspector, consulted
// for protected commands that have no inspector of their own.
func (m *Manager) SetOnAuth(fn AuthFunc) { m.onAuth = fn }

func (m *Manager) error(code ErrCode, msg string, ctx any) {
	if m.onError != nil {
		m.onError(code, msg, ctx)
	}
}

// Create registers a new command. The spec string, tags and argument bounds
// follow the rules in SetSpec, SetArgTags, SetMinArgs and SetMaxArgs; any
// violation fails the whole registration.
func (m *Manager) Create(name, spec string, tags []string, minArgs, maxArgs int) (*Command, error) {
	if err := validateName(name); err != nil {
		return nil, err
	}
	if err := m.checkAttachable(name); err != nil {
		return nil, err
	}
	cmd, err := newCommand(m, name, spec, tags, minArgs, maxArgs)
	if err != nil {
		return nil, err
	}
	m.commands = append(m.commands, entry{hash: hashName(name), name: name, cmd: cmd})
	return cmd, nil
}

// checkAttachable enforces name uniqueness under hashing. A hash match with a
// differing name is a collision, distinct from a true duplicate, so that the
// rare case stays diagnosable.
func (m *Manager) checkAttachable(name string) error {
	hash := hashName(name)
	for _, e := range m.commands {
		if e.hash != hash {
			continue
		}
		if e.name != name {
			return regErrorf(ErrNameCollision, name,
				"name collides with existing command %q under hash %d", e.name, hash)
		}
		return regErrorf(ErrDuplicateCommand, name, "command already exists")
	}
	return nil
}

// Detach removes the command registered under name. No-op if absent.
func (m *Manager) Detach(name string) {
	hash := hashName(name)
	for i, e := range m.commands {
		if e.hash == hash && e.name == name {
			m.commands = append(m.commands[:i], m.commands[i+1:]...)
			return
		}
	}
}

// DetachCommand removes the given command instance. No-op if absent.
func (m *Manager) DetachCommand(cmd *Command) {
	for i, e := range m.commands {
		if e.cmd == cmd {
			m.commands = append(m.commands[:i], m.commands[i+1:]...)
			return
		}
	}
}

// Attached reports whether a command is registered under name.
func (m *Manager) Attached(name string) bool { return m.Find(name) != nil }

// AttachedCommand reports whether the given command instance is registered.
func (m *Manager) AttachedCommand(cmd *Command) bool {
	for _, e := range m.commands {
		if e.cmd == cmd {
			return true
		}
	}
	return false
}

// Find returns the command registered under name, nil if absent.
func (m *Manager) Find(name string) *Command {
	hash := hashName(name)
	for _, e := range m.commands {
		if e.hash == hash && e.name == name {
			return e.cmd
		}
	}
	return nil
}

// Count returns the number of registered commands.
func (m *Manager) Count() int { return len(m.commands) }

// Each calls fn for every registered command in registry order.
func (m *Manager) Each(fn func(*Command)) {
	for _, e := range m.commands {
		fn(e.cmd)
	}
}

// Sort stable-orders the registry by name, descending. The direction is a
// confirmed product decision; see DESIGN.md.
func (m *Manager) Sort() {
	sort.SliceStable(m.commands, func(i, j int) bool {
		return m.commands[j].name < m.commands[i].name
	})
}

// Clear detaches every command and drops all handler references. Called on
// scripting state teardown.
func (m *Manager) Clear() {
	for _, e := range m.commands {
		e.cmd.onExec = nil
		e.cmd.onAuth = nil
		e.cmd.onPost = nil
		e.cmd.onFail = nil
	}
	m.commands = nil
}

// InContext reports whether a dispatch is currently in progress.
func (m *Manager) InContext() bool { return len(m.stack) > 0 }

// Current returns the execution context of the innermost active dispatch,
// nil outside of dispatch.
func (m *Manager) Current() *Context {
	if len(m.stack) == 0 {
		return nil
	}
	return m.stack[len(m.stack)-1]
}

// pushContext installs ctx as current. The caller must pair it with
// popContext on every exit path.
func (m *Manager) pushContext(ctx *Context) {
	m.stack = append(m.stack, ctx)
}

func (m *Manager) popContext() {
	m.stack = m.stack[:len(m.stack)-1]
}

func (m *Manager) resolveInvoker(id int32) (Invoker, bool) {
	if m.resolve == nil {
		return anonInvoker(id), false
	}
	if inv, ok := m.resolve.Resolve(id); ok {
		return inv, true
	}
	return anonInvoker(id), false
}

// anonInvoker stands in for an invoker the resolver does not know. It carries
// no authority, so default authority checks fail closed.
type anonInvoker int32

func (a anonInvoker) ID() int32      { return int32(a) }
func (a anonInvoker) Authority() int { return -1 }

func validateName(name string) error {
	if name == "" {
		return regErrorf(ErrInvalidCommand, name, "invalid or empty command name")
	}
	for i := 0; i < len(name); i++ {
		if isSpace(name[i]) {
			return regErrorf(ErrInvalidCommand, name, "command names cannot contain spaces")
		}
	}
	return nil
}
