package core

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/josephlewis42/msh/core/config"
	"github.com/josephlewis42/msh/core/logger"
	"github.com/josephlewis42/msh/core/logger/loggertest"
	"github.com/josephlewis42/msh/core/pipeline"
	"github.com/stretchr/testify/assert"
)

type fixture struct {
	dir    string
	shell  *Shell
	events *loggertest.Memory
}

// newFixture creates a shell whose streams are files in a temporary
// directory. If combined is set stdout and stderr share a file.
func newFixture(t *testing.T, combined bool) *fixture {
	t.Helper()

	f := &fixture{
		dir:    t.TempDir(),
		events: &loggertest.Memory{},
	}

	std := pipeline.Streams{
		Stdin:  f.create(t, "stdin"),
		Stdout: f.create(t, "stdout"),
	}
	std.Stderr = std.Stdout
	if !combined {
		std.Stderr = f.create(t, "stderr")
	}

	cfg := config.Default()
	cfg.Color = config.ColorNever
	cfg.NotifyDone = false

	f.shell = NewShell(std, cfg, f.events)
	t.Cleanup(func() { f.shell.Close() })
	return f
}

func (f *fixture) path(name string) string {
	return filepath.Join(f.dir, name)
}

func (f *fixture) create(t *testing.T, name string) *os.File {
	fd, err := os.Create(f.path(name))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { fd.Close() })
	return fd
}

func (f *fixture) read(t *testing.T, name string) string {
	b, err := os.ReadFile(f.path(name))
	assert.NoError(t, err)
	return string(b)
}

// runScript feeds the script to the shell's standard input and runs it.
func (f *fixture) runScript(t *testing.T, script string) int {
	t.Helper()

	assert.NoError(t, os.WriteFile(f.path("stdin"), []byte(script), 0644))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return f.shell.Run(ctx)
}

func requirePrograms(t *testing.T, names ...string) {
	t.Helper()

	for _, name := range names {
		if _, err := exec.LookPath(name); err != nil {
			t.Skipf("%s not available: %v", name, err)
		}
	}
}

func TestShell_pipeline(t *testing.T) {
	requirePrograms(t, "printf", "sort", "tr")
	f := newFixture(t, false)

	status := f.runScript(t, "printf 'b\\na\\n' | sort | tr a-z A-Z\n")

	assert.Equal(t, 0, status)
	assert.Equal(t, "A\nB\n", f.read(t, "stdout"))
	assert.Empty(t, f.read(t, "stderr"))
	assert.Equal(t, []string{logger.EventPipelineStart}, f.events.Named())
}

func TestShell_redirection(t *testing.T) {
	requirePrograms(t, "cat", "sort")
	f := newFixture(t, false)
	assert.NoError(t, os.WriteFile(f.path("in.txt"), []byte("3\n1\n2\n"), 0644))

	f.runScript(t, "cat < "+f.path("in.txt")+" | sort > "+f.path("out.txt")+"\n")

	assert.Equal(t, "1\n2\n3\n", f.read(t, "out.txt"))
	assert.Empty(t, f.read(t, "stdout"))
}

func TestShell_redirectionError(t *testing.T) {
	requirePrograms(t, "cat")
	f := newFixture(t, false)

	status := f.runScript(t, "cat < /nonexistent/msh/input\n")

	assert.Equal(t, 1, status)
	assert.Equal(t, "msh: can't open input redirection \"/nonexistent/msh/input\": no such file or directory\n", f.read(t, "stderr"))

	events := f.events.Events()
	if assert.Len(t, events, 1) {
		assert.Equal(t, logger.CommandError{
			Kind:    "redirection",
			Message: "can't open input redirection \"/nonexistent/msh/input\": no such file or directory",
		}, events[0])
	}
}

func TestShell_syntaxError(t *testing.T) {
	f := newFixture(t, false)

	status := f.runScript(t, "echo $HOME\nls && ls\n")

	assert.Equal(t, 1, status)
	lines := strings.Split(strings.TrimSpace(f.read(t, "stderr")), "\n")
	if assert.Len(t, lines, 2) {
		assert.True(t, strings.HasPrefix(lines[0], "msh: syntax error"), lines[0])
		assert.Contains(t, lines[1], `unsupported operator "&&"`)
	}
	assert.Equal(t, []string{logger.EventCommandError, logger.EventCommandError}, f.events.Named())
}

func TestShell_commandNotFound(t *testing.T) {
	f := newFixture(t, false)

	f.runScript(t, "nosuchprogram-msh --flag\n")

	assert.Equal(t, "msh: nosuchprogram-msh: command not found\n", f.read(t, "stderr"))
}

func TestShell_background(t *testing.T) {
	requirePrograms(t, "sleep")
	f := newFixture(t, false)

	f.runScript(t, "sleep 0.1 &\nsleep 0.1 &\n")

	output := f.read(t, "stdout")
	assert.Regexp(t, `^\[1\] \d+\n\[2\] \d+\n$`, output)

	assert.Eventually(t, func() bool {
		return len(f.shell.Jobs.Running()) == 0
	}, 10*time.Second, 10*time.Millisecond)
	assert.Len(t, f.shell.Jobs.All(), 2)
}

func TestShell_fg(t *testing.T) {
	requirePrograms(t, "sleep")
	f := newFixture(t, false)

	status := f.runScript(t, "sleep 0.2 &\nfg\njobs\n")

	assert.Equal(t, 0, status)
	assert.Regexp(t, `^\[1\] \d+\n\[1\] sleep\n$`, f.read(t, "stdout"))
	assert.Empty(t, f.shell.Jobs.Running())
	assert.Contains(t, f.events.Named(), logger.EventForeground)
}

func TestShell_exit(t *testing.T) {
	f := newFixture(t, false)

	status := f.runScript(t, "exit 3\nnosuchprogram-msh\n")

	assert.Equal(t, 3, status)
	assert.True(t, f.shell.Exited())
	assert.Empty(t, f.read(t, "stderr"), "lines after exit aren't run")
}

func TestShell_blankLines(t *testing.T) {
	f := newFixture(t, false)

	status := f.runScript(t, "\n   \n# just a comment\n")

	assert.Equal(t, 0, status)
	assert.Empty(t, f.read(t, "stdout"))
	assert.Empty(t, f.read(t, "stderr"))
	assert.Empty(t, f.events.Named())
}

func TestShell_lastLineWithoutNewline(t *testing.T) {
	f := newFixture(t, false)

	status := f.runScript(t, "exit 4")

	assert.Equal(t, 4, status)
}

func TestShell_RunCommand_cd(t *testing.T) {
	f := newFixture(t, false)

	wd, err := os.Getwd()
	assert.NoError(t, err)
	t.Cleanup(func() { os.Chdir(wd) })
	t.Setenv(EnvPWD, os.Getenv(EnvPWD))

	dir, err := filepath.EvalSymlinks(t.TempDir())
	assert.NoError(t, err)

	assert.Equal(t, 0, f.shell.RunCommand(context.Background(), "cd "+dir))
	got, err := os.Getwd()
	assert.NoError(t, err)
	assert.Equal(t, dir, got)
	assert.Equal(t, dir, os.Getenv(EnvPWD))

	t.Setenv(EnvHome, wd)
	assert.Equal(t, 0, f.shell.RunCommand(context.Background(), "cd"))
	got, err = os.Getwd()
	assert.NoError(t, err)
	assert.Equal(t, wd, got)
}

func TestErrorKind(t *testing.T) {
	f := newFixture(t, false)

	cases := map[string]string{
		"syntax":      "echo $x",
		"redirection": "cat < /nonexistent/x",
		"job":         "fg 3",
		"builtin":     "cd a b",
	}

	for wantKind, command := range cases {
		t.Run(wantKind, func(t *testing.T) {
			before := len(f.events.Events())
			f.shell.RunCommand(context.Background(), command)

			events := f.events.Events()
			if assert.Len(t, events, before+1) {
				got, ok := events[before].(logger.CommandError)
				assert.True(t, ok)
				assert.Equal(t, wantKind, got.Kind)
			}
		})
	}
}
