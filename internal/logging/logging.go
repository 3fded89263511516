// Package logging builds the process-wide zerolog logger, rotating the file
// sink the way the reference implementation's RotatingFileHandler did.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	lumberjack "gopkg.in/natefinch/lumberjack.v2"

	"github.com/vinith200527/webcamrng/internal/config"
)

// New builds a logger that writes structured entries to both stderr and a
// size-rotated log file, mirroring the dual StreamHandler/RotatingFileHandler
// setup of the Python reference.
func New(cfg config.Logging) zerolog.Logger {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil {
		level = zerolog.InfoLevel
	}

	rotating := &lumberjack.Logger{
		Filename:   cfg.File,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		Compress:   false,
	}

	console := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"}
	multi := io.MultiWriter(rotating, console)

	return zerolog.New(multi).Level(level).With().Timestamp().Logger()
}
