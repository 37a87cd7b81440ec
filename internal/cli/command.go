package cli

// Command assembles an argument vector as an ordered list of
// subcommands, flags, and positional arguments. It exists so argument
// construction can be tested without executing anything.
type Command struct {
	executable string
	args       []string
}

// NewCommand starts a Command for executable, optionally seeded with
// leading arguments.
func NewCommand(executable string, args ...string) *Command {
	return &Command{executable: executable, args: args}
}

// Flag appends a flag and its values, if any.
func (c *Command) Flag(name string, values ...string) *Command {
	c.args = append(c.args, name)
	c.args = append(c.args, values...)
	return c
}

// Arg appends positional arguments.
func (c *Command) Arg(values ...string) *Command {
	c.args = append(c.args, values...)
	return c
}

// Argv returns the executable and the assembled argument vector.
func (c *Command) Argv() (string, []string) {
	return c.executable, c.args
}
