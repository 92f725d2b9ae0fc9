package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/mark3labs/prdloop/internal/config"
	"github.com/spf13/cobra"
)

var setupFlags struct {
	project      bool
	force        bool
	agentCommand string
}

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Create a prdloop configuration file",
	Long: `Create a prdloop configuration file with sensible defaults.

By default, creates a global config at ~/.config/prdloop/prdloop.yml.
Use --project to create a project-local config in the current directory.`,
	RunE: runSetup,
}

func init() {
	setupCmd.Flags().BoolVarP(&setupFlags.project, "project", "p", false, "Create config in current directory instead of global location")
	setupCmd.Flags().BoolVarP(&setupFlags.force, "force", "f", false, "Overwrite existing config file")
	setupCmd.Flags().StringVar(&setupFlags.agentCommand, "agent-command", "", "Agent command to write into the config")
}

func runSetup(cmd *cobra.Command, args []string) error {
	targetPath := config.GlobalPath()
	if setupFlags.project {
		targetPath = config.ProjectPath()
	}

	if !setupFlags.force {
		if _, err := os.Stat(targetPath); err == nil {
			return fmt.Errorf("config file already exists at %s\n\nUse --force to overwrite", targetPath)
		}
	}

	cfg := &config.Config{
		AgentCommand:  setupFlags.agentCommand,
		AgentTimeout:  900,
		DataDir:       ".prdloop",
		LogLevel:      "info",
		LogFile:       "",
		MaxIterations: 10,
		FailStreak:    3,
	}

	if setupFlags.project {
		if err := config.WriteProject(cfg); err != nil {
			return err
		}
	} else {
		if err := os.MkdirAll(filepath.Dir(targetPath), 0755); err != nil {
			return fmt.Errorf("creating config directory: %w", err)
		}
		if err := config.WriteTo(targetPath, cfg); err != nil {
			return err
		}
	}

	fmt.Printf("Created config at %s\n", targetPath)
	if cfg.AgentCommand == "" {
		fmt.Println("Set agent_command before running iterations (or export PRDLOOP_AGENT_COMMAND)")
	}
	return nil
}
