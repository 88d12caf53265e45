// Package logger provides the structured logging interface used across igmedia.
//
// It wraps zerolog behind a small Logger interface so components can be given
// a logger explicitly and tests can substitute TestLogger or NewNopLogger.
//
// Basic usage:
//
//	if err := logger.Initialize(&cfg.Logging); err != nil {
//	    return err
//	}
//	log := logger.GetLogger().WithField("username", "natgeo")
//	log.InfoWithFields("Timeline page fetched", map[string]interface{}{
//	    "page":  2,
//	    "edges": 12,
//	})
//
// Console output is written to stderr in a compact coloured format. When
// LoggingConfig.File is set, JSON lines are also appended to that file.
package logger
