package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/lucasnoah/commitly/internal/audit"
	"github.com/lucasnoah/commitly/internal/report"
)

var (
	reportFrom   string
	reportTo     string
	reportFormat string
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Render the audit trail for a date range",
	RunE: func(cmd *cobra.Command, args []string) error {
		workspace, err := os.Getwd()
		if err != nil {
			return err
		}
		return runReport(cmd, workspace)
	},
}

func init() {
	reportCmd.Flags().StringVar(&reportFrom, "from", "", "start date (YYYY-MM-DD)")
	reportCmd.Flags().StringVar(&reportTo, "to", "", "end date (YYYY-MM-DD)")
	reportCmd.Flags().StringVar(&reportFormat, "format", "md", "output format (md|pdf|html; pdf and html degrade to md)")
}

func runReport(cmd *cobra.Command, workspace string) error {
	now := time.Now()
	from := now.AddDate(0, 0, -30)
	to := now

	var err error
	if reportFrom != "" {
		if from, err = time.Parse("2006-01-02", reportFrom); err != nil {
			return configError(fmt.Errorf("bad --from date: %w", err))
		}
	}
	if reportTo != "" {
		if to, err = time.Parse("2006-01-02", reportTo); err != nil {
			return configError(fmt.Errorf("bad --to date: %w", err))
		}
		to = to.Add(24*time.Hour - time.Second)
	}

	db, err := audit.Open(audit.DefaultPath(workspace))
	if err != nil {
		return err
	}
	defer db.Close()
	if err := db.Migrate(); err != nil {
		return err
	}

	rendered, err := report.RangeReport(db, from, to)
	if err != nil {
		return err
	}

	dir := filepath.Join(workspace, ".commitly", "reports")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	path := filepath.Join(dir, fmt.Sprintf("%s-%s-report.md",
		from.Format("2006-01-02"), to.Format("2006-01-02")))
	if err := os.WriteFile(path, []byte(rendered), 0o644); err != nil {
		return err
	}

	cmd.Print(rendered)
	cmd.Println("saved: " + path)
	return nil
}
