package cmd

import (
	"context"
	"io"
	"log"
	"os"
	"path/filepath"

	"github.com/josephlewis42/msh/core"
	"github.com/josephlewis42/msh/core/config"
	"github.com/josephlewis42/msh/core/logger"
	"github.com/josephlewis42/msh/core/pipeline"
	"github.com/spf13/cobra"
)

var (
	cfgPath  string
	command  string
	exitCode int
)

func defaultConfigPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "."
	}
	return filepath.Join(dir, "msh")
}

func loadConfig() (*config.Configuration, error) {
	return config.Load(cfgPath)
}

// openEventLog returns a session logger writing to the configured event log.
func openEventLog(configuration *config.Configuration) (*logger.SessionLogger, io.Closer) {
	if !configuration.EventLog {
		return logger.NewNopLogger().NewSession(), io.NopCloser(nil)
	}

	fd, err := configuration.OpenEventLog()
	if err != nil {
		log.Printf("Couldn't open event log, events won't be recorded: %v", err)
		return logger.NewNopLogger().NewSession(), io.NopCloser(nil)
	}

	return logger.NewJsonLinesLogRecorder(fd).NewSession(), fd
}

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "msh",
	Short: "A job control shell",
	Long: `A small interactive shell that runs pipelines of programs, keeps track
of jobs left running in the background and brings them back with fg.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		log.SetFlags(0)
		log.SetPrefix("[msh] ")

		configuration, err := loadConfig()
		if err != nil {
			return err
		}

		events, eventLog := openEventLog(configuration)
		defer eventLog.Close()

		shell := core.NewShell(pipeline.OSStreams(), configuration, events)
		defer shell.Close()

		ctx := context.Background()
		if cmd.Flags().Changed("command") {
			exitCode = shell.RunCommand(ctx, command)
		} else {
			exitCode = shell.Run(ctx)
		}

		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	cobra.CheckErr(rootCmd.Execute())
	os.Exit(exitCode)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", defaultConfigPath(), "config path")
	rootCmd.Flags().StringVarP(&command, "command", "c", "", "run a single command and exit")
}
