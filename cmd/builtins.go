package cmd

import (
	"github.com/josephlewis42/msh/core"
	"github.com/spf13/cobra"
)

// builtinsCmd lists the commands the shell runs itself
var builtinsCmd = &cobra.Command{
	Use:   "builtins",
	Short: "Show the builtin commands of the shell.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		core.WriteBuiltinTable(cmd.OutOrStdout())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(builtinsCmd)
}
