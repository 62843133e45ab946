package main

// #region imports
import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/GDogMcCoy/PanDerm-IOS-App/go-engine/internal/archive"
	"github.com/GDogMcCoy/PanDerm-IOS-App/go-engine/internal/config"
)

// #endregion

var (
	inspectDB   string
	inspectLast int
	inspectJSON bool
)

// #region inspect

func runInspect(cmd *cobra.Command, args []string) error {
	dbPath := inspectDB
	if dbPath == "" {
		cfg, err := config.LoadOrDefault(configFlag)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		dbPath = cfg.Archive.Path
	}
	if dbPath == "" {
		fmt.Fprintln(os.Stderr, "usage: dermengined inspect --db path/to/journal.db [--last N] [--json]")
		os.Exit(2)
	}

	store, err := archive.NewStore(dbPath)
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}
	defer store.Close()

	ctx := context.Background()
	entries, err := store.Recent(ctx, inspectLast)
	if err != nil {
		return fmt.Errorf("recent analyses: %w", err)
	}
	outcomes, err := store.OutcomeSummary(ctx)
	if err != nil {
		return fmt.Errorf("outcome summary: %w", err)
	}

	if inspectJSON {
		return printJSON(map[string]any{
			"analyses": entries,
			"outcomes": outcomes,
		})
	}

	printEntries(entries)
	printOutcomes(outcomes)
	return nil
}

// #endregion

// #region tables

func printEntries(entries []archive.Entry) {
	if len(entries) == 0 {
		fmt.Fprintln(os.Stderr, "no analyses recorded")
		return
	}

	fmt.Printf("%-12s  %-24s  %-10s  %5s  %5s  %8s  %s\n",
		"Request", "Top Label", "Provider", "Conf", "Risk", "Total", "Time")
	fmt.Printf("%-12s+-%-24s+-%-10s+-%5s+-%5s+-%8s+-%s\n",
		"------------", "------------------------", "----------", "-----", "-----", "--------", "--------------------")

	for _, e := range entries {
		fmt.Printf("%-12s  %-24s  %-10s  %5.2f  %5.2f  %6dms  %s\n",
			shortID(e.RequestID), e.TopLabel, e.ProducedBy,
			e.TopConfidence, e.RiskScore, e.TotalMS,
			e.CreatedAt.Format("2006-01-02T15:04:05Z"))
	}
}

func printOutcomes(rows []archive.OutcomeRow) {
	if len(rows) == 0 {
		return
	}

	fmt.Printf("\nProvider outcomes:\n")
	fmt.Printf("  %-10s  %8s  %9s  %8s  %8s\n",
		"Provider", "Attempts", "Successes", "Avg Conf", "Avg Time")
	for _, r := range rows {
		fmt.Printf("  %-10s  %8d  %9d  %8.2f  %6dms\n",
			r.Provider, r.Attempts, r.Successes, r.AvgConfidence, r.AvgDurationMS)
	}
}

// #endregion

// #region output

func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal json: %w", err)
	}
	fmt.Println(string(data))
	return nil
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}

// #endregion
