// Package logging provides structured logging for actbridge.
//
// It wraps Go's log/slog with a JSON handler and adds persistent attributes
// (component, handle, runtime kind) through child loggers. Logs go either to
// stderr or to {dir}/actbridge.log behind a size-based [RotatingWriter].
//
// # Thread Safety
//
// All types in this package are safe for concurrent use. Child loggers created
// via With* methods share the underlying writer.
//
// # Basic Usage
//
//	logger, err := logging.NewLogger(logging.Options{Dir: dir, Level: "INFO"})
//	if err != nil {
//	    return err
//	}
//	defer logger.Close()
//
//	bridgeLog := logger.WithComponent("bridge")
//	bridgeLog.Info("handle received", "handle", h)
package logging
