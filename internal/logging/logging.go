package logging

import (
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Init sets up the global logger. With an empty path logs go to stdout
// only, otherwise to stdout and the named file.
func Init(level zerolog.Level, path string) {
	var w io.Writer = os.Stdout
	if path != "" {
		logFile, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			panic(fmt.Errorf("failed to open log file: %w", err))
		}
		w = zerolog.MultiLevelWriter(os.Stdout, logFile)
	}

	logger := zerolog.New(w).Level(level).With().Timestamp().Logger()
	log.Logger = logger

	if level == zerolog.DebugLevel {
		log.Debug().Msg("Log level set to DEBUG")
	}
}
