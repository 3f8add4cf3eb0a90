package utils

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

// InitLogger configures the global logger. Console output goes to stderr at
// error level unless debug is set; a non-empty logFile switches to rotated
// JSON logs so the live display is left alone.
func InitLogger(debug bool, logFile string) {
	level := zerolog.ErrorLevel
	if debug {
		level = zerolog.DebugLevel
	}
	var out io.Writer = zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: time.DateTime,
	}
	if logFile != "" {
		out = &lumberjack.Logger{
			Filename:   logFile,
			MaxSize:    10, // megabytes
			MaxBackups: 3,
			MaxAge:     14, // days
		}
		if !debug {
			level = zerolog.InfoLevel
		}
	}
	zerolog.SetGlobalLevel(level)
	log.Logger = zerolog.New(out).With().Timestamp().Logger()
}
