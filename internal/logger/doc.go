// Package logger provides levelled, coloured logging for the tryon companion.
//
// Verbosity is controlled by two switches taken from the config file or the
// command line:
//
//   - Verbose: shows info messages
//   - Debug: shows debug messages as well
//
// Warnings and errors are always written to stderr. Components that degrade
// silently, like the credential vault and the asset cache, report their
// swallowed failures through Warnf so they stay visible.
//
// # Usage
//
//	log := logger.Logger{Verbose: cfg.Log.Verbose, Debug: cfg.Log.Debug}
//	log.Infof("asset store opened at %s", path)
package logger
