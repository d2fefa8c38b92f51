package cmd

import (
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/spf13/cobra"
)

var statusServer string

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Query the health endpoint of a running levelogd instance",
	RunE:  runStatus,
}

func init() {
	statusCmd.Flags().StringVar(&statusServer, "server", "http://localhost:8080", "levelogd server URL")
	rootCmd.AddCommand(statusCmd)
}

type healthReport struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Uptime  string `json:"uptime"`
	Storage struct {
		Mode     string `json:"mode"`
		Readings int    `json:"readings"`
	} `json:"storage"`
	Subscribers int `json:"subscribers"`
}

func runStatus(cmd *cobra.Command, args []string) error {
	client := &http.Client{
		Timeout: 5 * time.Second,
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{MinVersion: tls.VersionTLS12},
		},
	}
	resp, err := client.Get(statusServer + "/api/v1/health")
	if err != nil {
		return fmt.Errorf("connecting to %s: %w", statusServer, err)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned %s", resp.Status)
	}

	var health healthReport
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&health); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}

	printHealth(cmd.OutOrStdout(), health)
	return nil
}

func printHealth(w io.Writer, health healthReport) {
	fmt.Fprintf(w, "levelogd %s\n", health.Version)
	fmt.Fprintf(w, "Status: %s\n", health.Status)
	fmt.Fprintf(w, "Uptime: %s\n", health.Uptime)
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Storage: %s\n", health.Storage.Mode)
	fmt.Fprintf(w, "  Readings: %s\n", formatNumber(health.Storage.Readings))
	if health.Subscribers > 0 {
		fmt.Fprintf(w, "  Live subscribers: %d\n", health.Subscribers)
	}
}

// formatNumber formats an integer with comma separators (e.g., 1,247,832).
func formatNumber(n int) string {
	s := fmt.Sprintf("%d", n)
	if len(s) <= 3 {
		return s
	}
	var result []byte
	for i, c := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			result = append(result, ',')
		}
		result = append(result, byte(c))
	}
	return string(result)
}
