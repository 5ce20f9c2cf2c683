// Command cam-worker runs the autonomous outreach worker.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ignite/aicmo-cam/internal/pkg/logger"
)

// Version is set via ldflags during build.
var Version = "dev"

var configPath string

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		logger.Error("command failed", "error", err)
		logger.Sync()
		os.Exit(1)
	}
	logger.Sync()
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "cam-worker",
		Short:         "Autonomous outreach worker",
		Long:          "cam-worker sends outreach email, polls the reply mailbox, classifies replies,\nadvances nurture sequences, pauses weak campaigns and alerts on qualified interest.",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", os.Getenv("CAM_CONFIG"), "config file path (YAML)")

	root.AddCommand(newRunCommand())
	root.AddCommand(newClassifyCommand())
	root.AddCommand(newHealthCommand())
	root.AddCommand(newMigrateCommand())
	return root
}

func exitf(cmd *cobra.Command, format string, args ...interface{}) {
	fmt.Fprintf(cmd.ErrOrStderr(), format+"\n", args...)
}
