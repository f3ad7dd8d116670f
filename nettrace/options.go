package nettrace

import "go.uber.org/zap"

// ProgressFunc is invoked after every successfully decoded block or
// blob with the running totals of bytes consumed and events decoded so
// far. fraction estimates how much of the input has been consumed, in
// [0, 1]; it is 0 when the source's total length isn't known (Parse
// was not given an io.Reader implementing Len() int).
type ProgressFunc func(bytesRead, eventsRead int64, fraction float64)

type config struct {
	logger           *zap.Logger
	progress         ProgressFunc
	maxReaderVersion int32
}

func defaultConfig() config {
	return config{
		logger:           zap.NewNop(),
		maxReaderVersion: readerVersion,
	}
}

// Option configures a call to Parse.
type Option func(*config)

// WithLogger routes Parse's structured diagnostic logging through l
// instead of discarding it. A nil l keeps the default no-op logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *config) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithProgress registers a callback invoked as input is consumed.
func WithProgress(f ProgressFunc) Option {
	return func(c *config) { c.progress = f }
}

// WithMaxReaderVersion overrides the highest minReaderVersion Parse will
// attempt to decode rather than skip as forward-compatible. Exposed
// mainly for testing the skip path without a fixture requiring a truly
// future format version.
func WithMaxReaderVersion(v int32) Option {
	return func(c *config) { c.maxReaderVersion = v }
}
