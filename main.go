package main

import (
	"github.com/josephlewis42/msh/cmd"
	"github.com/josephlewis42/msh/core/proc"
)

func main() {
	// Pipeline stages are started as copies of this program.
	if child, ok := proc.Current(); ok {
		child.Exec()
	}

	cmd.Execute()
}
