package proc

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/josephlewis42/msh/core/line"
)

const (
	// stageArg0 marks a re-executed copy of the interpreter that should become
	// a pipeline stage.
	stageArg0 = "msh:stage"

	modeForeground = "fg"
	modeBackground = "bg"

	// ExitNotFound is the status a stage exits with if its program doesn't
	// exist.
	ExitNotFound = 127
	// ExitNotExecutable is the status a stage exits with if its program exists
	// but can't be run.
	ExitNotExecutable = 126
)

// ErrNotFound is reported for programs that couldn't be resolved.
var ErrNotFound = errors.New("command not found")

// ExecutionError is printed by a stage whose program couldn't be started.
type ExecutionError struct {
	Name string
	Err  error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("%s: %v", e.Name, e.Err)
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}

// Child is the stage side of a launch, it replaces itself with the stage's
// program.
type Child struct {
	line.Stage
	Background bool
}

// Current returns the stage this process was started as, if any. Programs
// that launch pipelines must check it before doing anything else:
//
//	if child, ok := proc.Current(); ok {
//		child.Exec()
//	}
func Current() (*Child, bool) {
	return parseArgs(os.Args)
}

func parseArgs(args []string) (*Child, bool) {
	if len(args) < 3 || args[0] != stageArg0 {
		return nil, false
	}

	child := &Child{Stage: line.Stage{Path: args[2], Args: args[3:]}}
	switch args[1] {
	case modeForeground:
	case modeBackground:
		child.Background = true
	default:
		return nil, false
	}
	return child, true
}

func stageArgs(path string, args []string, background bool) []string {
	mode := modeForeground
	if background {
		mode = modeBackground
	}
	return append([]string{stageArg0, mode, path}, args...)
}

// Exec replaces the process with the stage's program. It never returns, if
// the program can't be started an ExecutionError is printed and the process
// exits with ExitNotFound or ExitNotExecutable.
func (c *Child) Exec() {
	if c.Background {
		// Ignored signals stay ignored across exec.
		signal.Ignore(syscall.SIGINT, syscall.SIGQUIT)
	} else {
		// Handled signals go back to their default action on exec.
		signal.Notify(make(chan os.Signal, 1), syscall.SIGINT, syscall.SIGQUIT)
	}

	err := c.exec(syscall.Exec)
	fmt.Fprintf(os.Stderr, "msh: %v\n", err)
	os.Exit(exitStatus(err))
}

func exitStatus(err error) int {
	if errors.Is(err, ErrNotFound) || errors.Is(err, syscall.ENOENT) {
		return ExitNotFound
	}
	return ExitNotExecutable
}

func (c *Child) exec(execve func(string, []string, []string) error) error {
	if !c.Resolved() {
		return &ExecutionError{Name: c.Name(), Err: ErrNotFound}
	}

	return &ExecutionError{Name: c.Name(), Err: execve(c.Path, c.Args, os.Environ())}
}
