// Package iox holds cleanup helpers for the files, sinks, adapters, and
// loggers pngdoctor opens during a run.
//
// Close and flush errors on these paths are unactionable once a verdict
// has been produced: an input PNG is read-only, and sink and adapter
// failures are already counted when the write itself fails.
package iox

import "io"

// DiscardClose closes c and drops the error.
//
//	defer iox.DiscardClose(f) // input PNG or record stream
func DiscardClose(c io.Closer) { _ = c.Close() }

// CloseFunc returns a func that closes c, for t.Cleanup:
//
//	t.Cleanup(iox.CloseFunc(adapter))
func CloseFunc(c io.Closer) func() {
	return func() { _ = c.Close() }
}

// DiscardErr calls fn and drops the error.
//
//	defer iox.DiscardErr(logger.Sync)
func DiscardErr(fn func() error) { _ = fn() }
