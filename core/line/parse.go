package line

import (
	"fmt"
	"os/exec"
	"strings"

	"mvdan.cc/sh/v3/syntax"
)

// Resolver finds the executable for a program name. It returns the empty
// string if there's no such program.
type Resolver func(name string) string

// LookPath resolves programs using the PATH environment variable.
func LookPath(name string) string {
	path, err := exec.LookPath(name)
	if err != nil {
		return ""
	}
	return path
}

// SyntaxError is returned when a line can't be turned into a pipeline.
type SyntaxError struct {
	// Col is the 1-based column of the offending input, 0 if unknown.
	Col uint
	Msg string
	Err error
}

func (e *SyntaxError) Error() string {
	if e.Col > 0 {
		return fmt.Sprintf("syntax error near column %d: %s", e.Col, e.Msg)
	}
	return fmt.Sprintf("syntax error: %s", e.Msg)
}

func (e *SyntaxError) Unwrap() error {
	return e.Err
}

func syntaxErrorAt(node syntax.Node, format string, a ...interface{}) *SyntaxError {
	return &SyntaxError{
		Col: node.Pos().Col(),
		Msg: fmt.Sprintf(format, a...),
	}
}

// Parse turns a line of user input into a Line. Blank lines and lines only
// containing comments return nil without error.
//
// Only pipelines of simple commands are understood, input redirection is
// allowed on the first stage and output/error redirection on the last.
func Parse(text string, resolve Resolver) (*Line, error) {
	if resolve == nil {
		resolve = LookPath
	}

	file, err := syntax.NewParser().Parse(strings.NewReader(text), "")
	if err != nil {
		return nil, &SyntaxError{Msg: err.Error(), Err: err}
	}

	switch len(file.Stmts) {
	case 0:
		return nil, nil
	case 1:
	default:
		return nil, syntaxErrorAt(file.Stmts[1], "only one command per line is supported")
	}

	stmt := file.Stmts[0]
	if stmt.Negated || stmt.Coprocess {
		return nil, syntaxErrorAt(stmt, "unsupported statement")
	}

	stmts, err := flatten(stmt)
	if err != nil {
		return nil, err
	}

	out := &Line{
		Text:       text,
		Background: stmt.Background,
	}
	for i, s := range stmts {
		stage, err := parseStage(s, resolve)
		if err != nil {
			return nil, err
		}
		if err := parseRedirects(out, s, i == 0, i == len(stmts)-1); err != nil {
			return nil, err
		}
		out.Stages = append(out.Stages, stage)
	}

	return out, nil
}

// flatten converts a tree of pipes into its stages, left to right.
func flatten(stmt *syntax.Stmt) ([]*syntax.Stmt, error) {
	switch cmd := stmt.Cmd.(type) {
	case *syntax.CallExpr:
		return []*syntax.Stmt{stmt}, nil

	case *syntax.BinaryCmd:
		if cmd.Op != syntax.Pipe {
			return nil, syntaxErrorAt(cmd, "unsupported operator %q", cmd.Op.String())
		}
		if len(stmt.Redirs) > 0 {
			return nil, syntaxErrorAt(stmt.Redirs[0], "redirection of a whole pipeline")
		}
		left, err := flatten(cmd.X)
		if err != nil {
			return nil, err
		}
		right, err := flatten(cmd.Y)
		if err != nil {
			return nil, err
		}
		return append(left, right...), nil

	case nil:
		return nil, syntaxErrorAt(stmt, "missing command")

	default:
		return nil, syntaxErrorAt(stmt, "unsupported command")
	}
}

func parseStage(stmt *syntax.Stmt, resolve Resolver) (Stage, error) {
	call := stmt.Cmd.(*syntax.CallExpr)
	if len(call.Assigns) > 0 {
		return Stage{}, syntaxErrorAt(call.Assigns[0], "variable assignment is not supported")
	}

	var args []string
	for _, word := range call.Args {
		arg, err := evalWord(word)
		if err != nil {
			return Stage{}, err
		}
		args = append(args, arg)
	}
	if len(args) == 0 {
		return Stage{}, syntaxErrorAt(stmt, "missing command")
	}

	return Stage{
		Path: resolve(args[0]),
		Args: args,
	}, nil
}

func parseRedirects(out *Line, stmt *syntax.Stmt, first, last bool) error {
	for _, redirect := range stmt.Redirs {
		if redirect.Word == nil {
			return syntaxErrorAt(redirect, "missing redirection target")
		}
		target, err := evalWord(redirect.Word)
		if err != nil {
			return err
		}
		if target == "" {
			return syntaxErrorAt(redirect, "empty redirection target")
		}

		from := ""
		if redirect.N != nil {
			from = redirect.N.Value
		}

		switch op := redirect.Op; {
		case op == syntax.RdrIn && (from == "" || from == "0"):
			if !first {
				return syntaxErrorAt(redirect, "input can only be redirected on the first command")
			}
			out.Input = target

		case (op == syntax.RdrOut || op == syntax.ClbOut) && (from == "" || from == "1"):
			if !last {
				return syntaxErrorAt(redirect, "output can only be redirected on the last command")
			}
			out.Output = target

		case (op == syntax.RdrOut || op == syntax.ClbOut) && from == "2":
			if !last {
				return syntaxErrorAt(redirect, "errors can only be redirected on the last command")
			}
			out.Error = target

		case op == syntax.RdrAll:
			if !last {
				return syntaxErrorAt(redirect, "output can only be redirected on the last command")
			}
			out.Output = target
			out.Error = target

		default:
			return syntaxErrorAt(redirect, "unsupported redirection %s%s", from, op.String())
		}
	}
	return nil
}

func evalWord(word *syntax.Word) (string, error) {
	var sb strings.Builder
	for _, part := range word.Parts {
		s, err := evalWordPart(part, false)
		if err != nil {
			return "", err
		}
		sb.WriteString(s)
	}
	return sb.String(), nil
}

func evalWordPart(part syntax.WordPart, quoted bool) (string, error) {
	switch part := part.(type) {
	case *syntax.Lit:
		return unescape(part.Value, quoted), nil

	case *syntax.SglQuoted:
		if part.Dollar {
			return "", syntaxErrorAt(part, "$'...' quoting is not supported")
		}
		return part.Value, nil

	case *syntax.DblQuoted:
		if part.Dollar {
			return "", syntaxErrorAt(part, "$\"...\" quoting is not supported")
		}
		var sb strings.Builder
		for _, sub := range part.Parts {
			s, err := evalWordPart(sub, true)
			if err != nil {
				return "", err
			}
			sb.WriteString(s)
		}
		return sb.String(), nil

	default:
		return "", syntaxErrorAt(part, "expansions are not supported")
	}
}

// unescape removes backslash escapes from a literal. Inside double quotes a
// backslash only escapes $, `, ", \ and newlines.
func unescape(lit string, quoted bool) string {
	if !strings.Contains(lit, `\`) {
		return lit
	}

	var sb strings.Builder
	for i := 0; i < len(lit); i++ {
		c := lit[i]
		if c != '\\' || i+1 == len(lit) {
			sb.WriteByte(c)
			continue
		}

		next := lit[i+1]
		switch {
		case next == '\n':
			// Line continuation.
		case !quoted || strings.IndexByte("$`\"\\", next) >= 0:
			sb.WriteByte(next)
		default:
			sb.WriteByte(c)
			sb.WriteByte(next)
		}
		i++
	}
	return sb.String()
}
