package command

// Context is the short-lived state of a single dispatch: one instance per Run
// call, discarded when the call returns. The scratch buffer is sized to the
// input once and reused across string extraction steps.
type Context struct {
	invoker  int32
	command  string
	argument string

	cmd  *Command
	argv []Value

	buffer []byte
}

func newContext(invoker int32, command, argument string) *Context {
	return &Context{
		invoker:  invoker,
		command:  command,
		argument: argument,
		buffer:   make([]byte, 0, len(argument)),
	}
}

// Invoker returns the identifier of the calling entity.
func (c *Context) Invoker() int32 { return c.invoker }

// CommandName returns the extracted command name.
func (c *Context) CommandName() string { return c.command }

// ArgumentText returns the raw text following the command name.
func (c *Context) ArgumentText() string { return c.argument }

// Command returns the resolved command, nil before lookup completes. The
// reference stays valid for the lifetime of the context even if the command
// is detached from the registry mid-dispatch.
func (c *Context) Command() *Command { return c.cmd }

// Argv returns the parsed arguments in order.
func (c *Context) Argv() []Value { return c.argv }
