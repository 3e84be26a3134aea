package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/your-org/reid/internal/audit"
	"github.com/your-org/reid/internal/storage"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Summarize the identity assignment audit log",
	Long: `Reads assignment audit records from a local JSONL file or from the audit
objects uploaded by the identity workers, then prints the assignment report.`,
	RunE: runAnalyze,
}

func init() {
	rootCmd.AddCommand(analyzeCmd)
	analyzeCmd.Flags().String("file", "", "local audit JSONL file; when empty the audit bucket is read")
	analyzeCmd.Flags().String("from", "", "first UTC day to read from the bucket (YYYY-MM-DD, default today)")
	analyzeCmd.Flags().String("to", "", "last UTC day to read from the bucket (YYYY-MM-DD, default --from)")
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	var (
		records []audit.Record
		err     error
	)
	if path := mustGetString(cmd, "file"); path != "" {
		records, err = readAuditFile(path)
	} else {
		records, err = readAuditBucket(cmd)
	}
	if err != nil {
		return err
	}

	audit.Analyze(records).Print(os.Stdout)
	return nil
}

func readAuditFile(path string) ([]audit.Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	records, err := audit.ReadJSONL(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return records, nil
}

func readAuditBucket(cmd *cobra.Command) ([]audit.Record, error) {
	from, to, err := parseDayRange(mustGetString(cmd, "from"), mustGetString(cmd, "to"), time.Now())
	if err != nil {
		return nil, err
	}

	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	store, err := storage.NewMinIOStore(cfg.MinIO)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MinIO: %w", err)
	}

	ctx := cmd.Context()
	keys, err := store.AuditKeys(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit objects: %w", err)
	}
	fmt.Printf("Reading %d audit objects (%s to %s)\n\n", len(keys), from.Format(time.DateOnly), to.Format(time.DateOnly))

	records, err := store.LoadAudit(ctx, keys)
	if err != nil {
		return nil, fmt.Errorf("failed to load audit objects: %w", err)
	}
	return records, nil
}

// parseDayRange resolves the --from/--to flags to UTC days. An empty from
// means the UTC day of now; an empty to means the same day as from.
func parseDayRange(fromFlag, toFlag string, now time.Time) (time.Time, time.Time, error) {
	now = now.UTC()
	from := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	if fromFlag != "" {
		d, err := time.Parse(time.DateOnly, fromFlag)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid --from: %w", err)
		}
		from = d
	}
	to := from
	if toFlag != "" {
		d, err := time.Parse(time.DateOnly, toFlag)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid --to: %w", err)
		}
		to = d
	}
	if to.Before(from) {
		return time.Time{}, time.Time{}, fmt.Errorf("--to %s is before --from %s", to.Format(time.DateOnly), from.Format(time.DateOnly))
	}
	return from, to, nil
}
