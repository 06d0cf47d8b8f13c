package cliapp

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/spf13/cobra"
)

// newHookCmd builds the hidden "hook <event>" subcommand: the shell bridge
// that --install registers as the settings.json hook command. It reads one
// JSON object from stdin, posts it to the running daemon, echoes the
// response to stdout, and always exits 0 so a dead or slow daemon never
// blocks the agent.
func newHookCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:    "hook <event>",
		Short:  "internal: forward a Claude Code hook payload to the daemon",
		Args:   cobra.ExactArgs(1),
		Hidden: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			port, err := cmd.Flags().GetInt("port")
			if err != nil {
				return err
			}
			runHookTransport(cmd, args[0], port)
			return nil
		},
	}
	return cmd
}

// runHookTransport never returns an error to the caller: any failure is
// swallowed after writing "{}" to stdout, per the transport's read-only,
// fail-open contract.
func runHookTransport(cmd *cobra.Command, event string, port int) {
	body, err := io.ReadAll(cmd.InOrStdin())
	if err != nil {
		fmt.Fprint(cmd.OutOrStdout(), "{}")
		return
	}

	if stopHookActive(body) {
		fmt.Fprint(cmd.OutOrStdout(), "{}")
		return
	}

	url := fmt.Sprintf("http://127.0.0.1:%d/hooks/%s", port, event)
	client := &http.Client{Timeout: 60 * time.Second}
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		fmt.Fprint(cmd.OutOrStdout(), "{}")
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		fmt.Fprint(cmd.OutOrStdout(), "{}")
		return
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		fmt.Fprint(cmd.OutOrStdout(), "{}")
		return
	}
	cmd.OutOrStdout().Write(respBody)
}

// stopHookActive peeks the inbound payload for stop_hook_active:true without
// fully decoding it, so the transport can short-circuit before the HTTP
// round-trip instead of relying solely on the handler-layer loop guard.
func stopHookActive(body []byte) bool {
	var peek struct {
		StopHookActive bool `json:"stop_hook_active"`
	}
	if err := json.Unmarshal(body, &peek); err != nil {
		return false
	}
	return peek.StopHookActive
}
