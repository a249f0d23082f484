// Package logging builds the per-agent log sinks used across a pipeline run.
//
// Every agent gets its own JSON log file under .commitly/logs/<name>/, opened
// when the agent starts and closed when it returns. The git gateway gets the
// same treatment under logs/git/.
package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Factory creates per-agent loggers rooted at a .commitly/logs directory.
type Factory struct {
	logsDir string
	level   zapcore.Level
	clock   func() time.Time
}

// NewFactory creates a Factory writing under <workspace>/.commitly/logs.
func NewFactory(workspace string) *Factory {
	return &Factory{
		logsDir: filepath.Join(workspace, ".commitly", "logs"),
		level:   zapcore.DebugLevel,
		clock:   time.Now,
	}
}

// SetClock overrides the timestamp source (for testing).
func (f *Factory) SetClock(clock func() time.Time) {
	f.clock = clock
}

// LogsDir returns the root logs directory.
func (f *Factory) LogsDir() string {
	return f.logsDir
}

// Open creates a logger named after the agent, writing JSON lines to
// .commitly/logs/<name>/<ISO-timestamp>.log. The caller must invoke the
// returned close function when the agent finishes; it syncs and closes the
// underlying file on every exit path.
func (f *Factory) Open(name string) (*zap.Logger, string, func() error, error) {
	dir := filepath.Join(f.logsDir, name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, "", nil, fmt.Errorf("create log dir %s: %w", dir, err)
	}

	stamp := f.clock().UTC().Format("2006-01-02T15-04-05Z")
	path := filepath.Join(dir, stamp+".log")
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, "", nil, fmt.Errorf("open log file %s: %w", path, err)
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	core := zapcore.NewCore(zapcore.NewJSONEncoder(encCfg), zapcore.AddSync(file), f.level)

	logger := zap.New(core).Named(name)
	closeFn := func() error {
		_ = logger.Sync()
		return file.Close()
	}
	return logger, path, closeFn, nil
}

// Nop returns a no-op logger, used where a collaborator is optional.
func Nop() *zap.Logger {
	return zap.NewNop()
}
