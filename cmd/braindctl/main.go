// Braindctl is the operator CLI for braind: it drives session indexing,
// memory inspection, and code indexing directly against the configured
// memory store, without going through the braind daemon's HTTP surface.
// It is the binary Claude Code hooks invoke after a session ends.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	configPath string
	version    = "dev"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "braindctl",
	Short:   "CLI for braind session indexing, memory inspection, and code indexing",
	Version: version,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config.yaml (default: ~/.config/braind/config.yaml)")
	rootCmd.AddCommand(
		indexSessionCmd,
		listMemoriesCmd,
		viewMemoryCmd,
		refreshMemoryCmd,
		deleteMemoryCmd,
		backfillEmbeddingsCmd,
		indexCodeCmd,
		backfillCodeEmbeddingsCmd,
		getProjectKnowledgeCmd,
	)
}
