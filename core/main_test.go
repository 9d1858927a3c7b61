package core

import (
	"os"
	"testing"

	"github.com/josephlewis42/msh/core/proc"
)

func TestMain(m *testing.M) {
	if child, ok := proc.Current(); ok {
		child.Exec()
	}

	os.Exit(m.Run())
}
