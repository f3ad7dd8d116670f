package nettrace

import (
	"context"
	"fmt"

	"github.com/nettrace-go/nettrace/container"
	"github.com/nettrace-go/nettrace/mem"
	"go.uber.org/zap"
)

// growStep is how many additional bytes decoder.ensure pulls in at a
// time when a read comes up short, so a single long string doesn't
// trigger one channel receive per missing byte.
const growStep = 4096

// decoder holds all mutable state accumulated while walking a stream.
// It is not safe for concurrent use; Parse runs it in a single
// goroutine fed by a separate producer goroutine (byteSource).
type decoder struct {
	ctx    context.Context
	r      *Reader
	chunks <-chan []byte
	eof    bool

	cfg config
	log *zap.Logger

	bytesRead int64
	totalHint int64

	sawTrace bool
	metadata TraceMetadata

	eventMetadata map[int32]*EventMetadata
	metaOrder     []int32

	// events grows one bucket at a time rather than doubling, so a trace
	// with millions of events doesn't repeatedly copy an ever-larger
	// contiguous slice while it's still being accumulated.
	events mem.BucketSlice[Event]

	intern *internPool
	stacks *stackResolver

	stackIndexOffset int64
	lastStackIndex   int64

	diagnostics []Diagnostic
	stats       Stats

	warnedSkip container.Set[string]
}

func newDecoder(ctx context.Context, chunks <-chan []byte, cfg config) *decoder {
	return &decoder{
		ctx:           ctx,
		r:             newReader(),
		chunks:        chunks,
		cfg:           cfg,
		log:           cfg.logger,
		eventMetadata: make(map[int32]*EventMetadata),
		intern:        newInternPool(),
		stacks:        newStackResolver(),
		warnedSkip:    make(container.Set[string]),
		stats: Stats{
			BlockCounts:  make(map[string]int),
			BytesByBlock: make(map[string]int64),
		},
	}
}

// ensure blocks until at least n bytes are buffered or the producer is
// done, in which case it reports a truncated stream. markFloor is the
// earliest stream offset a Mark still live on the call stack refers
// to; bytes before it are dropped from the buffer as they arrive, so a
// long stream doesn't keep every byte it has already decoded in memory.
func (d *decoder) ensure(n int, markFloor int64) error {
	for d.r.Buffered() < n {
		if d.eof {
			return newTruncatedStreamError(d.r.Pos())
		}
		select {
		case chunk, ok := <-d.chunks:
			if !ok {
				d.eof = true
				continue
			}
			d.r.feed(chunk)
			d.bytesRead += int64(len(chunk))
			d.r.discardConsumed(markFloor)
		case <-d.ctx.Done():
			return d.ctx.Err()
		}
	}
	return nil
}

// reportProgress invokes the configured progress callback, if any, with
// the running totals after a block or blob has been fully decoded.
func (d *decoder) reportProgress() {
	if d.cfg.progress == nil {
		return
	}
	var fraction float64
	if d.totalHint > 0 {
		fraction = float64(d.bytesRead) / float64(d.totalHint)
	}
	d.cfg.progress(d.bytesRead, int64(d.events.Len()), fraction)
}

// readWithRetry runs try, which should attempt one or more Reader.Try*
// calls and return false if any of them ran out of buffered bytes. On
// false, readWithRetry pulls in more input and retries from the mark
// try started at; try must not have any side effect beyond advancing
// the Reader, since it may run more than once.
func (d *decoder) readWithRetry(try func(r *Reader) bool) error {
	mark := d.r.Mark()
	want := growStep
	for {
		if try(d.r) {
			if err := d.r.Err(); err != nil {
				return err
			}
			return nil
		}
		if err := d.r.Err(); err != nil {
			return err
		}
		d.r.Rewind(mark)
		before := d.r.Buffered()
		if err := d.ensure(before+want, mark); err != nil {
			// The producer may finish having delivered fewer than want
			// bytes; retry with whatever arrived before reporting the
			// stream as truncated.
			if !d.eof || d.r.Buffered() == before {
				return err
			}
		}
		want += growStep
	}
}

// readPrim wraps a single Reader.Try* style method with the ensure/retry
// loop, for call sites that only need one primitive value.
func readPrim[T any](d *decoder, try func(*Reader) (T, bool)) (T, error) {
	var out T
	err := d.readWithRetry(func(r *Reader) bool {
		v, ok := try(r)
		if ok {
			out = v
		}
		return ok
	})
	return out, err
}

func (d *decoder) addDiagnostic(kind DiagnosticKind, pos int64, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	d.diagnostics = append(d.diagnostics, Diagnostic{Kind: kind, Pos: pos, Message: msg})
	d.log.Debug(msg, zap.Stringer("kind", kind), zap.Int64("pos", pos))
}

// qpcToNs converts a QPC timestamp delta from the trace's sync point
// into nanoseconds using the trace's QPCFrequency.
func (d *decoder) qpcToNs(qpc int64) int64 {
	if d.metadata.QPCFrequency == 0 {
		return 0
	}
	delta := qpc - d.metadata.QPCSyncTime
	freq := d.metadata.QPCFrequency
	// Split into whole seconds and remainder so delta*1e9 cannot overflow.
	return delta/freq*1_000_000_000 + delta%freq*1_000_000_000/freq
}
