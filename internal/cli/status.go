package cli

import (
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/lucasnoah/commitly/internal/pipeline"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print the last run summary",
	RunE: func(cmd *cobra.Command, args []string) error {
		workspace, err := os.Getwd()
		if err != nil {
			return err
		}
		store := pipeline.NewStore(workspace)
		run, err := store.LoadRun()
		if err != nil {
			cmd.Println("no runs recorded yet")
			return nil
		}

		elapsed := run.EndedAt.Sub(run.StartedAt).Round(time.Millisecond)
		cmd.Printf("run %s: %s (%s)\n", run.ID, run.Status, elapsed)
		for _, name := range []string{"clone", "code", "test", "refactor", "sync", "notify", "report"} {
			out, ok := run.Outcomes[name]
			if !ok {
				continue
			}
			line := "  " + name + ": " + string(out.Status)
			if out.Error != nil {
				line += " — " + out.Error.Error()
			}
			cmd.Println(line)
		}
		return nil
	},
}
