// Package core contains the interactive command loop and its builtins.
package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os/signal"
	"syscall"

	"github.com/abiosoft/readline"
	"github.com/josephlewis42/msh/core/config"
	"github.com/josephlewis42/msh/core/jobs"
	"github.com/josephlewis42/msh/core/line"
	"github.com/josephlewis42/msh/core/logger"
	"github.com/josephlewis42/msh/core/pipeline"
	"github.com/josephlewis42/msh/core/proc"
)

const (
	EnvHome = "HOME"
	EnvPWD  = "PWD"
)

// Shell reads command lines and runs them as pipelines of processes.
type Shell struct {
	Config *config.Configuration
	Jobs   *jobs.Table

	std      pipeline.Streams
	events   logger.Recorder
	reaper   *jobs.Reaper
	launcher *proc.Launcher
	color    *ColorPrinter
	resolve  line.Resolver

	status int
	exited bool
}

// NewShell creates a shell using the given standard streams and starts
// reaping children. Callers must Close the shell.
//
// The process ignores SIGINT and SIGQUIT from then on so terminal interrupts
// only reach foreground stages.
func NewShell(std pipeline.Streams, cfg *config.Configuration, events logger.Recorder) *Shell {
	if events == nil {
		events = logger.NewNopLogger().Sessionless()
	}

	table := jobs.NewTable(events)
	reaper := jobs.NewReaper(table, nil)

	s := &Shell{
		Config:   cfg,
		Jobs:     table,
		std:      std,
		events:   events,
		reaper:   reaper,
		launcher: proc.NewLauncher(table, reaper, events),
		color:    NewColorPrinter(cfg, std.Stderr),
		resolve:  line.LookPath,
	}

	signal.Ignore(syscall.SIGINT, syscall.SIGQUIT)
	reaper.Start()
	return s
}

// Stdout is where builtins write their output.
func (s *Shell) Stdout() io.Writer {
	return s.std.Stdout
}

// Stderr is where builtins write diagnostics.
func (s *Shell) Stderr() io.Writer {
	return s.std.Stderr
}

// Exited reports whether the exit builtin was run.
func (s *Shell) Exited() bool {
	return s.exited
}

// Run reads and executes lines until the input ends or exit is called. It
// returns the shell's exit status.
func (s *Shell) Run(ctx context.Context) int {
	input, err := newLineReader(s.std.Stdin, s.std.Stdout, s.std.Stderr)
	if err != nil {
		log.Printf("Error opening input: %v", err)
		return 1
	}
	defer input.Close()

	for !s.exited {
		s.notifyDone()

		text, err := input.ReadLine(s.Config.Prompt)
		switch {
		case err == io.EOF:
			return s.status // Input closed, quit.

		case err == readline.ErrInterrupt:
			continue // Abandon the line.

		case err != nil:
			log.Printf("Error reading input: %v", err)
			return 1
		}

		s.RunCommand(ctx, text)
	}

	return s.status
}

// RunCommand parses and executes a single line. Errors are printed and
// logged, they never stop the shell.
func (s *Shell) RunCommand(ctx context.Context, text string) int {
	l, err := line.Parse(text, s.resolve)
	switch {
	case err != nil:
		return s.fail(err)
	case l == nil:
		return s.status // Blank line.
	}

	if builtin, ok := lookupBuiltin(l); ok {
		s.status = builtin.Main(ctx, s, l.First().Args)
		return s.status
	}

	plan, err := pipeline.Build(l, s.std)
	if err != nil {
		return s.fail(err)
	}

	started, err := s.launcher.Run(ctx, plan)
	if err != nil {
		return s.fail(err)
	}

	for _, job := range started {
		fmt.Fprintf(s.Stdout(), "[%d] %d\n", job.ID, job.Pid)
	}

	s.status = 0
	return s.status
}

// Close stops reaping children.
func (s *Shell) Close() error {
	return s.reaper.Close()
}

func (s *Shell) notifyDone() {
	if !s.Config.NotifyDone {
		return
	}

	for _, job := range s.Jobs.Finished() {
		s.printJob(job)
	}
}

func (s *Shell) printJob(job jobs.Job) {
	status := fmt.Sprintf("%-7s", job.Status)
	if job.Status == jobs.Running {
		status = s.color.Sprintf(ColorBoldGreen, "%s", status)
	} else {
		status = s.color.Sprintf(ColorBoldBlue, "%s", status)
	}
	fmt.Fprintf(s.Stdout(), "[%d]+ %s %s\n", job.ID, status, job.Name)
}

// fail prints the error, records it and returns the failing status.
func (s *Shell) fail(err error) int {
	fmt.Fprintln(s.Stderr(), s.color.Sprintf(ColorBoldRed, "msh: %v", err))

	event := logger.CommandError{Kind: errorKind(err), Message: err.Error()}
	if recErr := s.events.Record(event); recErr != nil {
		log.Printf("Error recording event: %v", recErr)
	}

	s.status = 1
	return s.status
}

func errorKind(err error) string {
	var (
		syntaxErr   *line.SyntaxError
		redirectErr *pipeline.RedirectionError
		launchErr   *proc.LaunchError
		noJobErr    *jobs.NoSuchJobError
		builtinErr  *BuiltinError
	)

	switch {
	case errors.As(err, &syntaxErr):
		return "syntax"
	case errors.As(err, &redirectErr):
		return "redirection"
	case errors.As(err, &launchErr):
		return "launch"
	case errors.As(err, &noJobErr):
		return "job"
	case errors.As(err, &builtinErr):
		return "builtin"
	default:
		return "unknown"
	}
}
