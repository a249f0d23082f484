package agents

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/lucasnoah/commitly/internal/pipeline"
	"github.com/lucasnoah/commitly/internal/report"
)

// Report renders the run's agent caches into a markdown document under
// .commitly/reports. Non-blocking: failures are recorded only.
type Report struct {
	Store *pipeline.Store
	Clock func() time.Time
}

func (a *Report) Name() string { return "report" }

// ReportData is the report agent's structured output.
type ReportData struct {
	ReportPath string `json:"report_path"`
	Format     string `json:"format"`
}

func (a *Report) Execute(ctx context.Context, rc *pipeline.RunContext, log *zap.Logger) (any, error) {
	clock := a.Clock
	if clock == nil {
		clock = time.Now
	}

	format := report.NormalizeFormat(rc.Config.Report.Format)
	if format != rc.Config.Report.Format && rc.Config.Report.Format != "" {
		log.Warn("report format degraded to markdown", zap.String("requested", rc.Config.Report.Format))
	}

	path, err := report.RunReport(a.Store, rc, clock())
	if err != nil {
		return nil, err
	}
	log.Info("report written", zap.String("path", path))
	return &ReportData{ReportPath: path, Format: format}, nil
}
