package cli

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/beam-cloud/gmail2tg/pkg/relay"
	"github.com/spf13/cobra"
)

var statusAddr string

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the status of a running instance",
	Long:  `Query the status endpoint of a running gmail2tg.`,
	RunE:  runStatus,
}

func init() {
	statusCmd.Flags().StringVar(&statusAddr, "addr", "http://localhost:10000", "Base URL of the running instance")
}

func runStatus(cmd *cobra.Command, args []string) error {
	status, err := FetchStatus(&http.Client{Timeout: 10 * time.Second}, statusAddr)
	if err != nil {
		return err
	}
	if PrintJSON(status) {
		return nil
	}

	now := time.Now()
	fmt.Println()
	switch {
	case !status.Started:
		PrintKeyValue("Status", DimStyle.Render("starting"))
	case status.Standby:
		PrintKeyValue("Status", WarningStyle.Render("standby"))
	default:
		PrintKeyValue("Status", SuccessStyle.Render("running"))
	}
	if status.Watermark != nil {
		PrintKeyValue("Watermark", status.Watermark.Format(time.RFC3339))
	}
	if status.Degraded {
		PrintKeyValue("Label", WarningStyle.Render("unavailable, marking read only"))
	} else if status.MarkerLabelID != "" {
		PrintKeyValue("Label", status.MarkerLabelID)
	}
	PrintKeyValue("Processed", fmt.Sprintf("%d", status.Processed))
	PrintKeyValue("Forwarded", fmt.Sprintf("%d in %d ticks", status.Forwarded, status.Ticks))
	if status.LastTickAt != nil {
		PrintKeyValue("Last tick", FormatRelativeTime(*status.LastTickAt, now))
	}
	if status.LastError != "" {
		PrintKeyValueStyled("Last error", status.LastError, ErrorStyle)
	}
	fmt.Println()

	return nil
}

// FetchStatus reads the poller status from a running instance at base
func FetchStatus(client *http.Client, base string) (*relay.Status, error) {
	resp, err := client.Get(strings.TrimRight(base, "/") + "/api/v1/status")
	if err != nil {
		return nil, fmt.Errorf("instance at %s is not responding: %w", base, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status endpoint returned %s", resp.Status)
	}

	var body struct {
		Success bool         `json:"success"`
		Data    relay.Status `json:"data"`
		Error   string       `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode status: %w", err)
	}
	if !body.Success {
		return nil, fmt.Errorf("status endpoint: %s", body.Error)
	}
	return &body.Data, nil
}
