// Package commands implements the webpush command line tool.
package commands

import (
	"context"
	"errors"
	"io/fs"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

type app struct {
	configPath string
	envFile    string
	verbose    bool

	log *logrus.Logger
}

func (a *app) loadConfig() (*Config, error) {
	return LoadConfig(a.configPath)
}

func newRootCmd() *cobra.Command {
	a := &app{log: logrus.New()}
	root := &cobra.Command{
		Use:          "webpush",
		Short:        "Send encrypted Web Push notifications",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			a.log.SetOutput(cmd.ErrOrStderr())
			if a.verbose {
				a.log.SetLevel(logrus.DebugLevel)
				a.log.Debug("Verbose logging enabled")
			}
			// A missing .env is fine, a broken one is not.
			if err := godotenv.Load(a.envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
				return err
			}
			return nil
		},
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&a.configPath, "config", "c", "", "YAML config file")
	flags.StringVar(&a.envFile, "env-file", ".env", "dotenv file loaded before reading the environment")
	flags.BoolVarP(&a.verbose, "verbose", "v", false, "verbose logging")

	root.AddCommand(keysCmd(a), sendCmd(a), serveCmd(a))
	return root
}

// Execute runs the command line tool until ctx is cancelled.
func Execute(ctx context.Context) error {
	return newRootCmd().ExecuteContext(ctx)
}
