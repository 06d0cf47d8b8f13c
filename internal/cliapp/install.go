package cliapp

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/claudecube/claudecube/internal/installer"
)

func defaultSettingsPath(configured string) (string, error) {
	if configured != "" {
		return configured, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, ".claude", "settings.json"), nil
}

func runInstall(cmd *cobra.Command, f *rootFlags) error {
	settingsPath, err := defaultSettingsPath(f.settingsPath)
	if err != nil {
		return err
	}
	binary, err := os.Executable()
	if err != nil {
		return fmt.Errorf("resolve own executable path: %w", err)
	}
	if err := installer.Install(settingsPath, binary, f.port); err != nil {
		return fmt.Errorf("install hooks: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "registered claudecube hooks in %s (port %d)\n", settingsPath, f.port)
	return nil
}

func runUninstall(cmd *cobra.Command, f *rootFlags) error {
	settingsPath, err := defaultSettingsPath(f.settingsPath)
	if err != nil {
		return err
	}
	if err := installer.Uninstall(settingsPath); err != nil {
		return fmt.Errorf("uninstall hooks: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "removed claudecube hooks from %s\n", settingsPath)
	return nil
}

func runStatus(cmd *cobra.Command, f *rootFlags) error {
	url := fmt.Sprintf("http://127.0.0.1:%d/status", f.port)
	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("query %s: %w (is the daemon running?)", url, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read status response: %w", err)
	}

	var pretty bytes.Buffer
	if err := json.Indent(&pretty, body, "", "  "); err != nil {
		fmt.Fprintln(cmd.OutOrStdout(), string(body))
		return nil
	}
	fmt.Fprintln(cmd.OutOrStdout(), pretty.String())
	return nil
}
