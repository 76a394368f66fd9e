package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// NewCleanCmd creates the clean command.
func NewCleanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "clean",
		Short: "Remove pages kept from failed runs",
		Long: `A failed run leaves its scanned pages in its working directory so nothing
has to be rescanned. clean deletes those directories once they are no
longer needed.`,
		Args: cobra.NoArgs,
		RunE: runCleanCmd,
	}
	cmd.Flags().Bool("dry-run", false, "List directories without removing them")
	return cmd
}

func runCleanCmd(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := setup(cmd)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck // stderr sync errors are not actionable

	store, err := openJournal(cfg)
	if err != nil {
		return err
	}
	if store == nil {
		return errHistoryDisabled
	}
	defer store.Close()

	runs, err := store.Retained()
	if err != nil {
		return err
	}
	dryRun, _ := cmd.Flags().GetBool("dry-run")
	out := cmd.OutOrStdout()

	removed := 0
	for _, r := range runs {
		if dryRun {
			fmt.Fprintf(out, "would remove %s\n", r.WorkDir)
			continue
		}
		if err := os.RemoveAll(r.WorkDir); err != nil {
			logger.Warn("failed to remove working directory", zap.String("dir", r.WorkDir), zap.Error(err))
			continue
		}
		if err := store.MarkCleaned(r.ID); err != nil {
			return err
		}
		fmt.Fprintf(out, "removed %s\n", r.WorkDir)
		removed++
	}
	if !dryRun {
		fmt.Fprintf(out, "%d of %d kept directories removed\n", removed, len(runs))
	}
	return nil
}
