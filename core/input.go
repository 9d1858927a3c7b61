package core

import (
	"bufio"
	"io"
	"os"
	"strings"

	"github.com/abiosoft/readline"
	"github.com/mattn/go-isatty"
)

// lineReader reads one command line at a time.
type lineReader interface {
	ReadLine(prompt string) (string, error)
	io.Closer
}

func newLineReader(stdin, stdout, stderr *os.File) (lineReader, error) {
	if !isatty.IsTerminal(stdin.Fd()) {
		return &bufferedReader{r: bufio.NewReader(stdin)}, nil
	}

	cfg := &readline.Config{
		Stdin:        readline.NewCancelableStdin(stdin),
		Stdout:       stdout,
		Stderr:       stderr,
		HistoryLimit: -1,
	}
	if err := cfg.Init(); err != nil {
		return nil, err
	}

	rl, err := readline.NewEx(cfg)
	if err != nil {
		return nil, err
	}
	return &terminalReader{rl: rl}, nil
}

// terminalReader reads lines from an interactive terminal.
type terminalReader struct {
	rl *readline.Instance
}

func (t *terminalReader) ReadLine(prompt string) (string, error) {
	t.rl.SetPrompt(prompt)
	return t.rl.Readline()
}

func (t *terminalReader) Close() error {
	return t.rl.Close()
}

// bufferedReader reads lines from a file or pipe without echoing a prompt.
type bufferedReader struct {
	r *bufio.Reader
}

func (b *bufferedReader) ReadLine(string) (string, error) {
	text, err := b.r.ReadString('\n')
	if err == io.EOF && text != "" {
		// The final line had no newline, EOF is returned on the next call.
		err = nil
	}
	return strings.TrimRight(text, "\r\n"), err
}

func (b *bufferedReader) Close() error {
	return nil
}
