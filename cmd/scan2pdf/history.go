package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/ironsheep/scan2pdf/internal/history"
	"github.com/ironsheep/scan2pdf/internal/scan"
	"github.com/spf13/cobra"
)

// NewHistoryCmd creates the history command.
func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent scan runs",
		Long: `Show the run journal, newest first. Failed runs whose pages were kept
show the working directory; "scan2pdf clean" removes those.`,
		Args: cobra.NoArgs,
		RunE: runHistoryCmd,
	}
	cmd.Flags().IntP("limit", "n", 20, "Number of runs to show (0 for all)")
	cmd.Flags().BoolP("json", "j", false, "Output as JSON")
	return cmd
}

func runHistoryCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	store, err := openJournal(cfg)
	if err != nil {
		return err
	}
	if store == nil {
		return errHistoryDisabled
	}
	defer store.Close()

	limit, _ := cmd.Flags().GetInt("limit")
	runs, err := store.List(limit)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(runs)
	}

	if len(runs) == 0 {
		fmt.Fprintln(out, "No runs recorded.")
		return nil
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "STARTED\tSTATE\tPAGES\tSOURCE\tDETAIL")
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\n",
			r.Started.Local().Format(time.DateTime), r.State, r.PageCount, r.Source, runDetail(r))
	}
	return tw.Flush()
}

// runDetail is the most useful single fact about a run.
func runDetail(r history.Run) string {
	if r.State == scan.StageSucceeded {
		if r.PublishedURL != "" {
			return r.OutputPath + " -> " + r.PublishedURL
		}
		return r.OutputPath
	}
	detail := string(r.Kind)
	if r.Page > 0 {
		detail += fmt.Sprintf(" (page %d)", r.Page)
	}
	if r.Retained {
		detail += ", pages kept in " + r.WorkDir
	}
	return detail
}
