package vmkit

import (
	"github.com/joeycumines/logiface"
	"github.com/joeycumines/stumpy"
)

type (
	// Logger is the structured logger used throughout the substrate: a thin
	// alias over logiface.Logger, typed over stumpy's (JSON) event, so vmkit
	// depends on stumpy directly. A host can supply its own Logger of this
	// type via WithLogger, for example one configured with its own Writer.
	Logger = logiface.Logger[*stumpy.Event]

	// LoggerOption configures the default Logger; see stumpy.Option and
	// logiface.Option[*stumpy.Event].
	LoggerOption = logiface.Option[*stumpy.Event]
)

// defaultLogger builds the stumpy-backed Logger used when a Config does not
// supply one explicitly. It logs at LevelInformational and above by default.
func defaultLogger(level logiface.Level) *Logger {
	return stumpy.L.New(
		stumpy.L.WithStumpy(),
		stumpy.L.WithLevel(level),
	)
}
