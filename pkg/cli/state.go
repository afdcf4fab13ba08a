package cli

import (
	"fmt"
	"sort"
	"time"

	"github.com/beam-cloud/gmail2tg/pkg/server"
	"github.com/beam-cloud/gmail2tg/pkg/types"
	"github.com/spf13/cobra"
)

var stateRecent int

var stateCmd = &cobra.Command{
	Use:   "state",
	Short: "Show the persisted watermark and processed messages",
	Long: `Read the state of the configured backend without starting the poller.

With --json the stored state is printed as is.`,
	RunE: runState,
}

func init() {
	stateCmd.Flags().IntVar(&stateRecent, "recent", 5, "How many of the latest processed ids to list")
}

// StateSummary is the readable view of a PersistedState
type StateSummary struct {
	Watermark *time.Time
	Processed int
	Recent    []ProcessedEntry
}

type ProcessedEntry struct {
	ID string
	At time.Time
}

func runState(cmd *cobra.Command, args []string) error {
	config, err := loadConfig()
	if err != nil {
		return err
	}

	repo, closeRepo, err := server.OpenStateRepository(cmd.Context(), config.State)
	if err != nil {
		return err
	}
	defer closeRepo()

	state, err := repo.Load(cmd.Context())
	if err != nil {
		return err
	}
	if PrintJSON(state) {
		return nil
	}

	now := time.Now()
	summary := SummarizeState(state, stateRecent)

	PrintHeader("gmail2tg state")
	PrintKeyValue("Backend", config.State.Backend)
	if summary.Watermark == nil {
		PrintKeyValueStyled("Watermark", "not set", DimStyle)
	} else {
		PrintKeyValue("Watermark", fmt.Sprintf("%s (%s)", summary.Watermark.Format(time.RFC3339), FormatRelativeTime(*summary.Watermark, now)))
	}
	PrintKeyValue("Processed", fmt.Sprintf("%d", summary.Processed))

	if len(summary.Recent) > 0 {
		fmt.Println()
		table := NewTable("MESSAGE ID", "FORWARDED")
		for _, e := range summary.Recent {
			table.AddRow(e.ID, FormatRelativeTime(e.At, now))
		}
		table.Print()
	}

	if summary.Watermark == nil {
		PrintHint("The watermark is set on the first run, older mail is never forwarded")
	}
	return nil
}

// SummarizeState returns the watermark, the processed count and the recent
// most recently processed ids, newest first
func SummarizeState(state *types.PersistedState, recent int) StateSummary {
	summary := StateSummary{Processed: len(state.Processed)}
	if wm, ok := state.Watermark(); ok {
		summary.Watermark = &wm
	}

	entries := make([]ProcessedEntry, 0, len(state.Processed))
	for id, ms := range state.Processed {
		entries = append(entries, ProcessedEntry{ID: id, At: time.UnixMilli(ms)})
	}
	sort.Slice(entries, func(i, j int) bool {
		if !entries[i].At.Equal(entries[j].At) {
			return entries[i].At.After(entries[j].At)
		}
		return entries[i].ID < entries[j].ID
	})

	if recent < len(entries) {
		entries = entries[:max(recent, 0)]
	}
	summary.Recent = entries
	return summary
}
