package cli

import (
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
)

// Execute runs the llmconfig command line with args (without the program name).
func Execute(args []string) error {
	cmd := newRootCmd()
	cmd.SetArgs(args)
	return cmd.Execute()
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "llmconfig",
		Short:         "Natural-language HTTP call builder for gin route tables",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(*cobra.Command, []string) {
			gin.SetMode(gin.ReleaseMode)
		},
	}
	cmd.PersistentFlags().StringP("config", "c", "", "config yaml path (defaults + LLMCFG_* env when empty)")
	cmd.AddCommand(
		newServeCmd(),
		newRoutesCmd(),
		newPromptCmd(),
		newAskCmd(),
		newVersionCmd(),
	)
	return cmd
}
