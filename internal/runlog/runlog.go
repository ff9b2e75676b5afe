// Package runlog builds the per-run loggers: a human readable run log and a
// structured error log that records every isolated data error.
package runlog

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// RunLog bundles the loggers of one engine run.
type RunLog struct {
	ID     string
	Logger *zap.Logger
	Errors *ErrorLog

	logPath string
	errPath string
	files   []*os.File
}

// New creates <dir>/<base>.<module>.log and <dir>/<base>.<module>.err.
// The run log is mirrored to stderr.
func New(dir, base, module string, level zapcore.Level) (*RunLog, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}
	rl := &RunLog{
		ID:      uuid.NewString(),
		logPath: filepath.Join(dir, base+"."+module+".log"),
		errPath: filepath.Join(dir, base+"."+module+".err"),
	}

	logFile, err := os.Create(rl.logPath)
	if err != nil {
		return nil, fmt.Errorf("create run log: %w", err)
	}
	errFile, err := os.Create(rl.errPath)
	if err != nil {
		logFile.Close()
		return nil, fmt.Errorf("create error log: %w", err)
	}
	rl.files = []*os.File{logFile, errFile}

	atom := zap.NewAtomicLevelAt(level)
	console := zapcore.NewConsoleEncoder(consoleEncoderConfig())
	runCore := zapcore.NewTee(
		zapcore.NewCore(console, zapcore.AddSync(logFile), atom),
		zapcore.NewCore(console, zapcore.Lock(os.Stderr), atom),
	)
	errCore := zapcore.NewCore(zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()), zapcore.AddSync(errFile), zap.DebugLevel)

	fields := []zap.Field{zap.String("run_id", rl.ID), zap.String("module", module)}
	rl.Logger = zap.New(runCore).With(fields...)
	rl.Errors = NewErrorLog(rl.Logger, zap.New(errCore).With(fields...))
	return rl, nil
}

func consoleEncoderConfig() zapcore.EncoderConfig {
	cfg := zap.NewDevelopmentEncoderConfig()
	cfg.TimeKey = "time"
	cfg.EncodeTime = zapcore.TimeEncoderOfLayout("Jan _2 15:04:05.000000000")
	cfg.StacktraceKey = ""
	return cfg
}

// LogPath returns the run log file path.
func (rl *RunLog) LogPath() string { return rl.logPath }

// ErrPath returns the error log file path.
func (rl *RunLog) ErrPath() string { return rl.errPath }

// Close flushes both loggers and closes their files.
func (rl *RunLog) Close() error {
	_ = rl.Logger.Sync()
	_ = rl.Errors.errLog.Sync()
	var firstErr error
	for _, f := range rl.files {
		if err := f.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
