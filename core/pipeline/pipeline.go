// Package pipeline turns a parsed line into a plan of which descriptor feeds
// each stage's standard input, output and error.
package pipeline

import (
	"errors"
	"fmt"
	"os"

	"github.com/josephlewis42/msh/core/line"
)

const redirectPerm = 0644

// Streams holds the interpreter's own standard streams, used by the stages at
// the pipeline boundaries that aren't redirected.
type Streams struct {
	Stdin  *os.File
	Stdout *os.File
	Stderr *os.File
}

// OSStreams returns the process's standard streams.
func OSStreams() Streams {
	return Streams{Stdin: os.Stdin, Stdout: os.Stdout, Stderr: os.Stderr}
}

// Target identifies which boundary a redirection applies to.
type Target string

const (
	TargetInput  Target = "input"
	TargetOutput Target = "output"
	TargetError  Target = "error"
)

// RedirectionError is returned if a redirection target can't be opened.
type RedirectionError struct {
	Target Target
	Path   string
	Err    error
}

func (e *RedirectionError) Error() string {
	return fmt.Sprintf("can't open %s redirection %q: %v", e.Target, e.Path, unwrapPathError(e.Err))
}

func (e *RedirectionError) Unwrap() error {
	return e.Err
}

func unwrapPathError(err error) error {
	var pathErr *os.PathError
	if errors.As(err, &pathErr) {
		return pathErr.Err
	}
	return err
}

// Channel connects the output of one stage to the input of the next.
type Channel struct {
	R *os.File
	W *os.File
}

// Wiring holds the descriptors a single stage runs with.
type Wiring struct {
	Stdin  *os.File
	Stdout *os.File
	Stderr *os.File
}

// Plan is the transient description of a pipeline about to be launched.
type Plan struct {
	// Text is the source of the line, used for logging.
	Text       string
	Stages     []line.Stage
	Background bool

	// Channels holds len(Stages)-1 inter-stage pipes, Channels[i] connects
	// Stages[i] to Stages[i+1].
	Channels []Channel

	// Input, Output and Error are the opened redirection targets, nil if the
	// boundary isn't redirected.
	Input  *os.File
	Output *os.File
	Error  *os.File

	std    Streams
	closed bool
}

// Build opens the redirections of the line and allocates the channels
// between its stages. If anything fails, everything opened so far is closed.
func Build(l *line.Line, std Streams) (*Plan, error) {
	if l == nil || len(l.Stages) == 0 {
		return nil, errors.New("pipeline: no stages")
	}

	plan := &Plan{
		Text:       l.Text,
		Stages:     l.Stages,
		Background: l.Background,
		std:        std,
	}

	if err := plan.openRedirects(l); err != nil {
		plan.Close()
		return nil, err
	}

	for i := 0; i < len(l.Stages)-1; i++ {
		r, w, err := os.Pipe()
		if err != nil {
			plan.Close()
			return nil, fmt.Errorf("pipeline: allocating channel %d: %w", i, err)
		}
		plan.Channels = append(plan.Channels, Channel{R: r, W: w})
	}

	return plan, nil
}

func (p *Plan) openRedirects(l *line.Line) error {
	var err error

	if l.Input != "" {
		if p.Input, err = os.Open(l.Input); err != nil {
			return &RedirectionError{Target: TargetInput, Path: l.Input, Err: err}
		}
	}

	if l.Output != "" {
		if p.Output, err = openTruncated(l.Output); err != nil {
			return &RedirectionError{Target: TargetOutput, Path: l.Output, Err: err}
		}
	}

	if l.Error != "" {
		// Writing both streams to one file shares the offset so they don't
		// overwrite each other.
		if l.Error == l.Output {
			p.Error = p.Output
			return nil
		}
		if p.Error, err = openTruncated(l.Error); err != nil {
			return &RedirectionError{Target: TargetError, Path: l.Error, Err: err}
		}
		if p.Output != nil && sameFile(p.Output, p.Error) {
			p.Error.Close()
			p.Error = p.Output
		}
	}

	return nil
}

// sameFile reports whether a and b were opened from the same file, e.g. via
// two spellings of one path.
func sameFile(a, b *os.File) bool {
	ai, err := a.Stat()
	if err != nil {
		return false
	}
	bi, err := b.Stat()
	if err != nil {
		return false
	}
	return os.SameFile(ai, bi)
}

func openTruncated(path string) (*os.File, error) {
	return os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, redirectPerm)
}

// Len returns the number of stages in the plan.
func (p *Plan) Len() int {
	return len(p.Stages)
}

// Wiring returns the descriptors stage i should use.
func (p *Plan) Wiring(i int) Wiring {
	last := len(p.Stages) - 1
	w := Wiring{
		Stdin:  p.std.Stdin,
		Stdout: p.std.Stdout,
		Stderr: p.std.Stderr,
	}

	switch {
	case i > 0:
		w.Stdin = p.Channels[i-1].R
	case p.Input != nil:
		w.Stdin = p.Input
	}

	switch {
	case i < last:
		w.Stdout = p.Channels[i].W
	case p.Output != nil:
		w.Stdout = p.Output
	}

	if i == last && p.Error != nil {
		w.Stderr = p.Error
	}

	return w
}

// Files returns every descriptor owned by the plan: channel ends and opened
// redirections. The interpreter's own streams are never included.
func (p *Plan) Files() []*os.File {
	var out []*os.File
	for _, c := range p.Channels {
		out = append(out, c.R, c.W)
	}
	if p.Input != nil {
		out = append(out, p.Input)
	}
	if p.Output != nil {
		out = append(out, p.Output)
	}
	if p.Error != nil && p.Error != p.Output {
		out = append(out, p.Error)
	}
	return out
}

// Close releases every descriptor owned by the plan. It's safe to call more
// than once.
func (p *Plan) Close() error {
	if p.closed {
		return nil
	}
	p.closed = true

	var firstErr error
	for _, f := range p.Files() {
		if err := f.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
