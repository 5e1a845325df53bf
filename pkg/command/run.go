package command

import (
	"fmt"
	"strconv"
)

// Run executes a raw command line on behalf of the given invoker. The text is
// split into a command name and argument text, the command is resolved,
// authority and arguments are validated and the executer is invoked.
//
// The return value is the command result: negative for any engine- or
// handler-reported failure, zero for an explicit abort, positive for success
// with a handler-defined payload code. Run never panics and never lets a
// handler error escape; every failure is delivered through the error sink.
func (m *Manager) Run(invoker int32, line string) int {
	i := 0
	for i < len(line) && isSpace(line[i]) {
		i++
	}
	if i >= len(line) {
		m.error(ErrEmptyCommand, "invalid or empty command name", invoker)
		return -1
	}
	split := i
	for split < len(line) && !isSpace(line[split]) {
		split++
	}
	name := line[i:split]
	for split < len(line) && isSpace(line[split]) {
		split++
	}
	argument := line[split:]

	// Unreachable given the split above, but kept as defense in depth.
	if err := validateName(name); err != nil {
		m.error(ErrInvalidCommand, err.Error(), invoker)
		return -1
	}

	ctx := newContext(invoker, name, argument)
	m.pushContext(ctx)
	defer m.popContext()

	ctx.cmd = m.Find(name)
	if ctx.cmd == nil {
		m.error(ErrUnknownCommand, "unable to find the specified command", name)
		return -1
	}

	return m.exec(ctx)
}

// exec drives the validation and invocation stages for a resolved context.
func (m *Manager) exec(ctx *Context) int {
	cmd := ctx.cmd
	inv, _ := m.resolveInvoker(ctx.invoker)

	if !cmd.AuthCheck(inv) {
		m.error(ErrInsufficientAuth, "insufficient authority to execute command", ctx.invoker)
		return -1
	}
	if cmd.onExec == nil {
		m.error(ErrMissingExecuter, "no executer was specified for this command", ctx.invoker)
		return -1
	}
	if ctx.argument != "" && !m.parse(ctx) {
		// The specific error was reported while parsing.
		return -1
	}
	if len(ctx.argv) < cmd.minArgs {
		m.error(ErrIncompleteArgs, "incomplete command arguments", cmd.minArgs)
		return -1
	}
	if len(ctx.argv) > cmd.maxArgs {
		m.error(ErrExtraneousArgs, "extraneous command arguments", cmd.maxArgs)
		return -1
	}
	for i, v := range ctx.argv {
		if !cmd.ArgCheck(i, v.Kind) {
			m.error(ErrUnsupportedArg, "unsupported command argument", i)
			return -1
		}
	}

	args := buildArgs(cmd, ctx.argv)
	result, failMsg, failed := invoke(cmd.onExec, inv, args)

	if failed {
		m.error(ErrExecutionFailed, "command execution failed", failMsg)
		m.relayFailure(cmd, inv, result)
		return -1
	}
	if result == 0 {
		m.error(ErrExecutionAborted, "command execution aborted", result)
		m.relayFailure(cmd, inv, result)
		return result
	}
	if cmd.onPost != nil {
		if err := protect(func() error { return cmd.onPost(inv, result) }); err != nil {
			m.error(ErrPostProcessingFailed, "unable to complete command post processing", err.Error())
		}
	}
	return result
}

// relayFailure hands the result to the command's failure callback, if bound.
// Its own errors are reported and go no further, so a throwing failure
// handler cannot mask the already-decided result.
func (m *Manager) relayFailure(cmd *Command, inv Invoker, result int) {
	if cmd.onFail == nil {
		return
	}
	if err := protect(func() error { return cmd.onFail(inv, result) }); err != nil {
		m.error(ErrUnresolvedFailure, "unable to resolve command failure", err.Error())
	}
}

// buildArgs shapes the parsed values into the container the command expects:
// a positional list, or a name-keyed map where untagged positions key by
// their decimal index.
func buildArgs(cmd *Command, argv []Value) Args {
	if !cmd.associate {
		return Args{Values: argv}
	}
	named := make(map[string]Value, len(argv))
	for i, v := range argv {
		key := cmd.argTags[i]
		if key == "" {
			key = strconv.Itoa(i)
		}
		named[key] = v
	}
	return Args{Named: named}
}

// invoke runs the executer, converting both returned errors and panics into a
// failed execution.
func invoke(fn ExecFunc, inv Invoker, args Args) (result int, failMsg string, failed bool) {
	defer func() {
		if r := recover(); r != nil {
			result, failed = -1, true
			failMsg = fmt.Sprintf("execution panic: %v", r)
		}
	}()
	res, err := fn(inv, args)
	if err != nil {
		return res, err.Error(), true
	}
	return res, "", false
}

// protect runs a result callback, converting panics into errors.
func protect(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("callback panic: %v", r)
		}
	}()
	return fn()
}
