// Package logger builds the zerolog loggers shared by the HTTP service and
// the ingestion commands.
package logger

import (
	"os"

	"github.com/rs/zerolog"
)

// New returns a JSON logger on stdout tagged with the emitting service
// (archivist, archivist-ingest, archivist-thumbnails).
func New(serviceName string) zerolog.Logger {
	return zerolog.New(os.Stdout).With().
		Str("service", serviceName).
		Timestamp().
		Logger()
}
