// Package cliapp implements the claudecube CLI surface: the server
// entrypoint, hook-transport bridge, settings installer, and status query.
package cliapp

import (
	"github.com/spf13/cobra"
)

type rootFlags struct {
	port         int
	configPath   string
	rulesPath    string
	verbose      bool
	install      bool
	uninstall    bool
	status       bool
	settingsPath string
}

// NewRoot builds the claudecube root command.
func NewRoot(version string) *cobra.Command {
	flags := &rootFlags{}

	cmd := &cobra.Command{
		Use:           "claudecube",
		Short:         "claudecube: escalation pipeline for Claude Code tool calls",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRoot(cmd, flags)
		},
	}
	cmd.Version = version
	cmd.SetVersionTemplate("claudecube {{.Version}}\n")

	cmd.PersistentFlags().IntVar(&flags.port, "port", 7080, "HTTP ingress port")
	cmd.PersistentFlags().StringVarP(&flags.configPath, "config", "c", "", "path to the orchestrator config YAML (default .claudecube/config.yaml)")
	cmd.PersistentFlags().StringVarP(&flags.rulesPath, "rules", "r", "", "path to the rules YAML (default .claudecube/rules.yaml)")
	cmd.PersistentFlags().BoolVarP(&flags.verbose, "verbose", "v", false, "debug-level logging")

	cmd.Flags().BoolVar(&flags.install, "install", false, "register the hook bridge in the agent's settings file")
	cmd.Flags().BoolVar(&flags.uninstall, "uninstall", false, "remove the hook bridge from the agent's settings file")
	cmd.Flags().BoolVar(&flags.status, "status", false, "query a running daemon's /status endpoint")
	cmd.Flags().StringVar(&flags.settingsPath, "settings", "", "agent settings file path (default ~/.claude/settings.json)")

	cmd.AddCommand(newHookCmd())

	return cmd
}

func defaultConfigPath(configured string) string {
	if configured != "" {
		return configured
	}
	return ".claudecube/config.yaml"
}

func defaultRulesPath(configured string) string {
	if configured != "" {
		return configured
	}
	return ".claudecube/rules.yaml"
}
