package events

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/edgecomet/blogkeywords/internal/common/configtypes"
)

const (
	DefaultMaxSize    = 100 // MB
	DefaultMaxAge     = 30  // days
	DefaultMaxBackups = 10
)

// FileEmitter writes formatted events to a rotating log file
type FileEmitter struct {
	writer    *lumberjack.Logger
	formatter *TemplateFormatter
	logger    *zap.Logger
}

// NewFileEmitter creates the parent directory and validates the template
func NewFileEmitter(config configtypes.EventFileConfig, logger *zap.Logger) (*FileEmitter, error) {
	dir := filepath.Dir(config.Path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create event log directory %s: %w", dir, err)
	}

	template := config.Template
	if template == "" {
		template = DefaultTemplate
	}
	formatter, err := NewTemplateFormatter(template)
	if err != nil {
		return nil, fmt.Errorf("invalid template for event log %s: %w", config.Path, err)
	}

	writer := &lumberjack.Logger{
		Filename:   config.Path,
		MaxSize:    orDefault(config.Rotation.MaxSize, DefaultMaxSize),
		MaxAge:     orDefault(config.Rotation.MaxAge, DefaultMaxAge),
		MaxBackups: orDefault(config.Rotation.MaxBackups, DefaultMaxBackups),
		Compress:   config.Rotation.Compress,
	}

	return &FileEmitter{writer: writer, formatter: formatter, logger: logger}, nil
}

// Emit appends one line for the event
func (f *FileEmitter) Emit(event *PageEvent) {
	line := f.formatter.Format(event)
	if _, err := f.writer.Write([]byte(line + "\n")); err != nil {
		f.logger.Warn("Failed to write page event",
			zap.String("run_id", event.RunID),
			zap.String("url", event.URL),
			zap.Error(err))
	}
}

func (f *FileEmitter) Close() error {
	return f.writer.Close()
}

// NewFromConfig builds the emitter described by cfg; disabled or missing config yields a NoopEmitter
func NewFromConfig(cfg *configtypes.EventLoggingConfig, logger *zap.Logger) (EventEmitter, error) {
	if cfg == nil || !cfg.File.Enabled {
		return NoopEmitter{}, nil
	}
	return NewFileEmitter(cfg.File, logger)
}

func orDefault(v, def int) int {
	if v == 0 {
		return def
	}
	return v
}
