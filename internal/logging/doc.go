// Package logging provides the process-wide structured logger.
//
// It wraps a zap logger behind package-level functions so that discovery,
// ranging and the radios can log without carrying a logger around. Output
// is silent until Initialize is given a level, either from a flag or from
// the NANRTT_LOG_LEVEL environment variable, which keeps the terminal
// monitor's screen clean by default.
//
// # Log Levels
//
//   - Debug: session events, raw message frames, per-peer ranging outcomes
//   - Info: node and radio lifecycle
//   - Warn: recoverable radio failures
//   - Error: failures that end a session or a command
//
// # Usage
//
//	if err := logging.Initialize("debug"); err != nil {
//	    return err
//	}
//	defer logging.Sync()
//
//	logging.Info("Node started", zap.String("device", name))
//	logging.LogSessionEvent("subscribe", "General", "peer_discovered",
//	    zap.Int("peer", 3))
//	logging.LogRawBytes("Message received", payload)
//
// Logs are written to stderr with the console encoder. Tests can swap the
// logger with Use, typically with a zaptest observer core.
//
// All functions are safe for concurrent use.
package logging
