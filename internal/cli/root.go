// Package cli wires the cobra command tree: a long-running HTTP server and
// a one-shot local conversion command sharing the same core pipeline.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var cfgFile string

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "clefshift",
		Short:         "Convert scanned alto-clef scores to treble clef",
		Long:          "clefshift recognizes notes in scanned score images and re-engraves them under a different clef without changing a single pitch.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default clefshift.yaml in the working directory)")

	root.AddCommand(newServeCmd())
	root.AddCommand(newConvertCmd())
	return root
}

// Execute runs the command tree and returns the process exit code.
func Execute() int {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return 1
	}
	return 0
}
