// Package logger provides structured logging for igcrawler on top of zerolog.
//
// Console output is colourised for humans. When a log file is configured,
// JSON lines are also written to it and rotated by size through lumberjack.
//
//	log, err := logger.New(&cfg.Logging)
//	log.WithField("target", "natgeo").Info("Crawl started")
//
// Tests use NewTestLogger to capture messages or NewNopLogger to drop them.
package logger
