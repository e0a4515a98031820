package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/spf13/cobra"
)

const defaultAPIUrl = "http://127.0.0.1:8093"

func createStatusCommand(flags *StatusFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the current activity snapshot from a running daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := getJSON(flags.APIUrl + "/status")
			if err != nil {
				return err
			}
			cmd.Println(body)
			return nil
		},
	}

	cmd.Flags().StringVar(&flags.APIUrl, "api-url", defaultAPIUrl, "daemon base URL")

	return cmd
}

func getJSON(url string) (string, error) {
	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get(url)
	if err != nil {
		return "", fmt.Errorf("daemon not reachable: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("daemon returned %d: %s", resp.StatusCode, raw)
	}
	var pretty map[string]any
	if err := json.Unmarshal(raw, &pretty); err != nil {
		return string(raw), nil
	}
	out, err := json.MarshalIndent(pretty, "", "  ")
	if err != nil {
		return string(raw), nil
	}
	return string(out), nil
}
