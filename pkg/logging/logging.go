package logging

import (
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"
)

// Setup configures the global logrus logger from the configured level and
// optional log file. When no file is given, logs go to stderr.
func Setup(level, file string) error {
	lvl, err := log.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", level, err)
	}
	log.SetLevel(lvl)

	if file != "" {
		f, err := os.OpenFile(file, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o640)
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}
		log.SetOutput(f)
	}

	log.SetFormatter(&log.TextFormatter{
		FullTimestamp: true,
	})

	return nil
}
