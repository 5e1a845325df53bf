// Package script hosts the Lua VM and exposes the command engine, routine
// scheduler and player pool to scripts. One Host owns one VM; the server
// rebuilds the whole Host to reload scripts, which releases every command
// and routine the old VM registered.
package script

import (
	"fmt"
	"log"
	"path/filepath"
	"sort"

	"github.com/Shopify/go-lua"

	"github.com/ashen-labs/luamod/pkg/command"
	"github.com/ashen-labs/luamod/pkg/player"
	"github.com/ashen-labs/luamod/pkg/routine"
)

// callbackTable is the registry slot holding script callbacks referenced
// from Go closures.
const callbackTable = "luamod.callbacks"

// Host binds one Lua state to the engine. All VM access must come from the
// dispatch goroutine; the Host itself does no locking.
type Host struct {
	state   *lua.State
	mgr     *command.Manager
	sched   *routine.Scheduler
	pool    *player.Pool
	nextRef int
	nextTag int
}

// NewHost creates a VM with the standard libraries plus the cmd, routine
// and player bindings.
func NewHost(mgr *command.Manager, sched *routine.Scheduler, pool *player.Pool) *Host {
	l := lua.NewState()
	lua.OpenLibraries(l)

	h := &Host{state: l, mgr: mgr, sched: sched, pool: pool}

	l.NewTable()
	l.SetField(lua.RegistryIndex, callbackTable)

	h.registerCommandLib()
	h.registerRoutineLib()
	h.registerPlayerType()
	return h
}

// Close releases everything the VM registered with the engine. Commands and
// routines hold references into this VM, so they go down with it.
func (h *Host) Close() {
	h.mgr.Clear()
	h.sched.Clear()
}

// Manager returns the command engine this host feeds.
func (h *Host) Manager() *command.Manager { return h.mgr }

// LoadFile loads and runs one script.
func (h *Host) LoadFile(path string) error {
	if err := lua.LoadFile(h.state, path, ""); err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	if err := h.state.ProtectedCall(0, 0, 0); err != nil {
		return fmt.Errorf("run %s: %w", path, err)
	}
	return nil
}

// LoadDir runs every *.lua file in dir in lexical order.
func (h *Host) LoadDir(dir string) error {
	paths, err := filepath.Glob(filepath.Join(dir, "*.lua"))
	if err != nil {
		return err
	}
	sort.Strings(paths)
	for _, p := range paths {
		if err := h.LoadFile(p); err != nil {
			return err
		}
	}
	log.Printf("SCRIPT: loaded %d script(s) from %s", len(paths), dir)
	return nil
}

// RunString runs a chunk of source. Used by tests and the maintenance
// console.
func (h *Host) RunString(src string) error {
	if err := lua.LoadString(h.state, src); err != nil {
		return err
	}
	return h.state.ProtectedCall(0, 0, 0)
}

// ref stores the value at index in the callback table and returns its slot.
func (h *Host) ref(index int) int {
	index = h.state.AbsIndex(index)
	h.nextRef++
	h.state.Field(lua.RegistryIndex, callbackTable)
	h.state.PushValue(index)
	h.state.RawSetInt(-2, h.nextRef)
	h.state.Pop(1)
	return h.nextRef
}

// pushRef pushes the callback stored in the given slot.
func (h *Host) pushRef(slot int) {
	h.state.Field(lua.RegistryIndex, callbackTable)
	h.state.RawGetInt(-1, slot)
	h.state.Remove(-2)
}

// pcall wraps ProtectedCall and pops the error object a failed call leaves
// behind, so the stack stays balanced no matter how often handlers fail.
func (h *Host) pcall(nargs, nresults int) error {
	if err := h.state.ProtectedCall(nargs, nresults, 0); err != nil {
		h.state.Pop(1)
		return err
	}
	return nil
}

// callExec invokes a script executer: callback(invoker, args) -> result.
// nil counts as success, false as an explicit abort, a number is passed
// through as the result.
func (h *Host) callExec(slot int, inv command.Invoker, args command.Args) (int, error) {
	h.pushRef(slot)
	h.pushInvoker(inv)
	pushArgs(h.state, args)
	if err := h.pcall(2, 1); err != nil {
		return 0, err
	}
	defer h.state.Pop(1)
	switch h.state.TypeOf(-1) {
	case lua.TypeBoolean:
		if h.state.ToBoolean(-1) {
			return 1, nil
		}
		return 0, nil
	case lua.TypeNumber:
		n, _ := h.state.ToInteger(-1)
		return n, nil
	default:
		return 1, nil
	}
}

// callAuth invokes a script authority inspector: callback(invoker) -> bool.
func (h *Host) callAuth(slot int, inv command.Invoker) (bool, error) {
	h.pushRef(slot)
	h.pushInvoker(inv)
	if err := h.pcall(1, 1); err != nil {
		return false, err
	}
	allowed := h.state.ToBoolean(-1)
	h.state.Pop(1)
	return allowed, nil
}

// callResult invokes a post-processing or failure callback:
// callback(invoker, result).
func (h *Host) callResult(slot int, inv command.Invoker, result int) error {
	h.pushRef(slot)
	h.pushInvoker(inv)
	h.state.PushInteger(result)
	return h.pcall(2, 0)
}

// pushInvoker pushes the richest identity available: player userdata when
// the pool knows the id, the bare id otherwise.
func (h *Host) pushInvoker(inv command.Invoker) {
	h.pushInvokerID(inv.ID())
}
