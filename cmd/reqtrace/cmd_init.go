package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"reqtrace/internal/config"
)

const starterRequirements = `# Requirement definitions for reqtrace.
#
# Source comments reference these IDs with a requirement tag, e.g.
# FR:sample-feature/auth.login above the login function.
requirements:
  - id: FR:sample-feature/auth.login
    title: User login
    status: draft
`

// initCmd sets up reqtrace in a workspace.
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize reqtrace in the workspace",
	Long: `Creates the .reqtrace/ directory with a default configuration and a
starter requirements.yaml if the workspace has none.`,
	RunE: runInit,
}

func runInit(cmd *cobra.Command, args []string) error {
	configPath := filepath.Join(workspace, ".reqtrace", "config.yaml")
	if _, err := os.Stat(configPath); err == nil {
		fmt.Fprintf(cmd.OutOrStdout(), "Already initialized: %s\n", configPath)
		return nil
	}

	cfg := config.DefaultConfig()
	if err := cfg.Save(configPath); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", configPath)

	reqPath := filepath.Join(workspace, "requirements.yaml")
	if _, err := os.Stat(reqPath); os.IsNotExist(err) {
		if err := os.WriteFile(reqPath, []byte(starterRequirements), 0644); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", reqPath)
	}

	fmt.Fprintln(cmd.OutOrStdout(), "\nRun 'reqtrace scan' to build the first trace.")
	return nil
}
