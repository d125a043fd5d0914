package cmd

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/aleister1102/hotpatch/internal/datastore"
	"github.com/spf13/cobra"
)

const historyTimeLayout = "2006-01-02 15:04:05"

func newHistoryCmd() *cobra.Command {
	var (
		limit     int
		showFiles bool
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent update runs or applied files",
		Long: `History lists recent update runs from the run database. With --files it
lists individual applied files from the parquet audit trail instead.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := bootstrap()
			if err != nil {
				return err
			}

			if showFiles {
				return printFileHistory(app, limit)
			}
			return printRunHistory(app, limit)
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of entries to list")
	cmd.Flags().BoolVar(&showFiles, "files", false, "List applied files instead of runs")
	return cmd
}

func printRunHistory(app *appContext, limit int) error {
	runDB, err := datastore.NewRunDB(resolveUnderRoot(app.cfg.SchedulerConfig.SQLiteDBPath), app.logger)
	if err != nil {
		return err
	}
	defer runDB.Close()

	runs, err := runDB.ListRecentRuns(limit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("No update runs recorded yet.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "STARTED\tSTATUS\tTRIGGER\tVERSION\tAPPLIED\tRESTART\tERROR")
	for _, run := range runs {
		version := "-"
		if run.ManifestVersion.Valid {
			version = run.ManifestVersion.String
		}
		errSummary := ""
		if run.ErrorSummary.Valid {
			errSummary = run.ErrorSummary.String
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d/%d\t%t\t%s\n",
			run.RunStartTime.Local().Format(historyTimeLayout),
			run.Status,
			run.Trigger,
			version,
			run.FilesApplied,
			run.FilesPlanned,
			run.RequiresRestart,
			errSummary,
		)
	}
	return w.Flush()
}

func printFileHistory(app *appContext, limit int) error {
	path := app.cfg.StorageConfig.AuditParquetPath
	if path == "" {
		fmt.Println("Audit trail is not configured (storage_config.audit_parquet_path).")
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	records, err := newAuditStore(app, path).Query(ctx, limit)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Println("No applied files recorded yet.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "APPLIED\tPATH\tVERSION\tSIZE\tRESTART\tOUTCOME\t+LINES\t-LINES")
	for _, record := range records {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%t\t%s\t%d\t%d\n",
			record.AppliedAt.Local().Format(historyTimeLayout),
			record.Path,
			record.ManifestVersion,
			record.SizeBytes,
			record.RequiresRestart,
			record.Outcome,
			record.LinesAdded,
			record.LinesRemoved,
		)
	}
	return w.Flush()
}
