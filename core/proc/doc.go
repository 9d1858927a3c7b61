// Package proc launches the stages of a pipeline as operating system
// processes.
//
// Each stage starts as a re-executed copy of the interpreter that fixes up its
// signal dispositions and then replaces itself with the stage's program, so a
// failed exec is reported by the stage and never returns into the
// interpreter.
package proc
