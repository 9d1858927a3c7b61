package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"text/tabwriter"

	"github.com/josephlewis42/msh/core/jobs"
	"github.com/josephlewis42/msh/core/line"
	"github.com/pborman/getopt/v2"
)

// AllBuiltins holds a list of all registered shell builtins
var AllBuiltins = make(map[string]Builtin)

type ShellBuiltin interface {
	Main(ctx context.Context, s *Shell, args []string) int
}

type ShellBuiltinFunc func(ctx context.Context, s *Shell, args []string) int

func (f ShellBuiltinFunc) Main(ctx context.Context, s *Shell, args []string) int {
	return f(ctx, s, args)
}

var _ ShellBuiltin = (ShellBuiltinFunc)(nil)

// Builtin is a command run inside the shell process.
type Builtin struct {
	ShellBuiltin

	// Params describes the positional parameters e.g. "[dir]".
	Params string
	// Short is a one line description.
	Short string
}

// BuiltinError is reported when a builtin fails.
type BuiltinError struct {
	Name string
	Err  error
}

func (e *BuiltinError) Error() string {
	return fmt.Sprintf("%s: %v", e.Name, e.Err)
}

func (e *BuiltinError) Unwrap() error {
	return e.Err
}

// ListBuiltins returns the names of the builtins in sorted order.
func ListBuiltins() []string {
	var out []string
	for name := range AllBuiltins {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// lookupBuiltin finds the builtin for a line. Builtins only run as the sole
// stage of a line, redirections don't apply to them.
func lookupBuiltin(l *line.Line) (Builtin, bool) {
	if len(l.Stages) != 1 {
		return Builtin{}, false
	}
	b, ok := AllBuiltins[l.First().Name()]
	return b, ok
}

// parseFlags parses the builtin's options, printing usage on -h or on error.
// It returns the positional arguments, ok is false if the builtin should
// return status.
func parseFlags(s *Shell, args []string, params string) (positional []string, status int, ok bool) {
	opts := getopt.New()
	opts.SetProgram(args[0])
	opts.SetParameters(params)
	helpOpt := opts.BoolLong("help", 'h', "show help and exit")

	if err := opts.Getopt(args, nil); err != nil {
		fmt.Fprintln(s.Stderr(), err)
		opts.PrintUsage(s.Stderr())
		return nil, 2, false
	}

	if *helpOpt {
		fmt.Fprintln(s.Stdout(), AllBuiltins[args[0]].Short)
		opts.PrintUsage(s.Stdout())
		return nil, 0, false
	}

	return opts.Args(), 0, true
}

// Cd is the cd shell builtin
func Cd(ctx context.Context, s *Shell, args []string) int {
	positional, status, ok := parseFlags(s, args, "[dir]")
	if !ok {
		return status
	}

	var dir string
	switch len(positional) {
	case 0:
		dir = os.Getenv(EnvHome)
		if dir == "" {
			return s.fail(&BuiltinError{Name: "cd", Err: errors.New("HOME not set")})
		}
	case 1:
		dir = positional[0]
	default:
		return s.fail(&BuiltinError{Name: "cd", Err: errors.New("too many arguments")})
	}

	if err := os.Chdir(dir); err != nil {
		var pathErr *os.PathError
		if errors.As(err, &pathErr) {
			err = fmt.Errorf("%s: %w", dir, pathErr.Err)
		}
		return s.fail(&BuiltinError{Name: "cd", Err: err})
	}

	if wd, err := os.Getwd(); err == nil {
		os.Setenv(EnvPWD, wd)
	}
	return 0
}

// Jobs lists the running background jobs.
func Jobs(ctx context.Context, s *Shell, args []string) int {
	if _, status, ok := parseFlags(s, args, ""); !ok {
		return status
	}

	for _, job := range s.Jobs.Running() {
		s.printJob(job)
	}
	return 0
}

// Fg waits for a background job to finish.
func Fg(ctx context.Context, s *Shell, args []string) int {
	positional, status, ok := parseFlags(s, args, "[job]")
	if !ok {
		return status
	}

	var arg string
	switch len(positional) {
	case 0:
	case 1:
		arg = positional[0]
	default:
		return s.fail(&BuiltinError{Name: "fg", Err: errors.New("too many arguments")})
	}

	job, err := jobs.Foreground(ctx, s.Jobs, arg, func(job jobs.Job) {
		fmt.Fprintf(s.Stdout(), "[%d] %s\n", job.ID, job.Name)
	})
	if err != nil {
		return s.fail(err)
	}

	// The user already saw it finish.
	s.Jobs.Acknowledge(job.ID)
	return 0
}

// Exit quits the shell
func Exit(ctx context.Context, s *Shell, args []string) int {
	positional, status, ok := parseFlags(s, args, "[status]")
	if !ok {
		return status
	}

	s.exited = true
	switch len(positional) {
	case 0:
		return s.status
	case 1:
		code, err := strconv.Atoi(positional[0])
		if err != nil {
			s.fail(&BuiltinError{Name: "exit", Err: fmt.Errorf("%s: numeric argument required", positional[0])})
			s.status = 2
			return s.status
		}
		s.status = code & 0xff
		return s.status
	default:
		s.exited = false
		return s.fail(&BuiltinError{Name: "exit", Err: errors.New("too many arguments")})
	}
}

// Help lists the builtins.
func Help(ctx context.Context, s *Shell, args []string) int {
	if _, status, ok := parseFlags(s, args, ""); !ok {
		return status
	}

	w := s.Stdout()
	fmt.Fprintln(w, "msh, a job control shell.")
	fmt.Fprintln(w, "These commands are defined internally.  Type `help' to see this list.")
	fmt.Fprintln(w, "Type `name -h' to find out more about the command `name'.")
	fmt.Fprintln(w)
	WriteBuiltinTable(w)
	return 0
}

// WriteBuiltinTable prints each builtin with its description.
func WriteBuiltinTable(w io.Writer) {
	tw := tabwriter.NewWriter(w, 0, 8, 2, ' ', 0)
	defer tw.Flush()

	for _, name := range ListBuiltins() {
		b := AllBuiltins[name]
		usage := name
		if b.Params != "" {
			usage += " " + b.Params
		}
		fmt.Fprintf(tw, "  %s\t%s\n", usage, b.Short)
	}
}

func register(name, params, short string, fn ShellBuiltinFunc) {
	AllBuiltins[name] = Builtin{ShellBuiltin: fn, Params: params, Short: short}
}

func init() {
	register("cd", "[dir]", "change the working directory", Cd)
	register("exit", "[status]", "leave the shell", Exit)
	register("fg", "[job]", "wait for a background job to finish", Fg)
	register("help", "", "list the builtin commands", Help)
	register("jobs", "", "list running background jobs", Jobs)
}
