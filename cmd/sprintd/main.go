// Sprintd runs autonomous development sprints against a target repository:
// an LLM plans, codes, tests and reviews in a bounded loop, steered by a
// learned policy and grounded by semantic retrieval over the working tree.
//
// Usage:
//
//	# Run the configured number of sprints
//	sprintd run --config sprintd.yaml
//
//	# Continue an interrupted run from its last snapshot
//	sprintd resume
//
//	# Query the retrieval index
//	sprintd search "where is the retry loop"
//
// Configuration is loaded from a YAML file with SPRINTD_* environment
// overrides. See internal/config for the full schema.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:           "sprintd",
	Short:         "Autonomous sprint engine",
	Long:          "sprintd drives plan/code/test/review sprints on a repository, learning which remedial actions pay off and grounding every turn in retrieved context.",
	SilenceUsage:  true,
	SilenceErrors: false,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "sprintd.yaml", "path to the YAML config file")
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(resumeCmd)
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("sprintd\n")
		fmt.Printf("Version:    %s\n", version)
		fmt.Printf("Commit:     %s\n", gitCommit)
		fmt.Printf("Build Date: %s\n", buildDate)
	},
}
