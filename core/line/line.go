// Package line describes one parsed command line: the stages of a pipeline,
// the boundary redirections and whether it runs in the background.
package line

// Stage is one program invocation within a pipeline.
type Stage struct {
	// Path is the resolved executable, it's empty if the program couldn't be
	// found.
	Path string
	// Args holds the argument vector, Args[0] is the program as typed.
	Args []string
}

// Name returns the program name as the user typed it.
func (s Stage) Name() string {
	if len(s.Args) == 0 {
		return s.Path
	}
	return s.Args[0]
}

// Resolved returns true if the stage refers to an executable that was found.
func (s Stage) Resolved() bool {
	return s.Path != ""
}

// Line is an immutable description of a single user command.
type Line struct {
	// Text holds the source the line was parsed from.
	Text string
	// Stages holds the pipeline stages in order, it always has at least one.
	Stages []Stage

	// Input, if non-empty, replaces the first stage's standard input.
	Input string
	// Output, if non-empty, replaces the last stage's standard output.
	Output string
	// Error, if non-empty, replaces the last stage's standard error.
	Error string

	// Background is set if the interpreter shouldn't wait for the pipeline.
	Background bool
}

// First returns the first stage of the line.
func (l *Line) First() Stage {
	return l.Stages[0]
}
