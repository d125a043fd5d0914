package logger

import (
	"github.com/aleister1102/hotpatch/internal/config"

	"github.com/rs/zerolog"
)

// New creates a new logger instance from the application log config
func New(cfg config.LogConfig) (zerolog.Logger, error) {
	return NewLoggerBuilder().WithConfig(cfg).Build()
}
