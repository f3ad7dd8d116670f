// Package nettrace decodes the .nettrace event-pipe binary format into an
// in-memory Trace: a chronologically ordered event list, a table of event
// metadata, and resolved per-event stack traces.
//
// The decoder is streaming: Parse consumes an io.Reader that may deliver
// bytes slowly or in small chunks. Input is read ahead in 64 KiB chunks,
// and bytes already decoded are dropped from the buffer as new chunks
// arrive, so the whole stream is never held in memory at once.
package nettrace
