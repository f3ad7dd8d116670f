package nettrace

import (
	"context"
	"io"

	"golang.org/x/sync/errgroup"
)

// Parse decodes a complete .nettrace stream from r. It returns once the
// stream's NullReference terminator has been consumed and every event's
// stack has been resolved.
//
// Parse is streaming: the producer goroutine reading from r and the
// decoding goroutine run concurrently, connected by a bounded channel,
// so a slow or chunked r does not need to be buffered in full before
// decoding can begin. Cancelling ctx stops both goroutines and causes
// Parse to return ctx.Err().
func Parse(ctx context.Context, r io.Reader, opts ...Option) (*Trace, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	eg, egCtx := errgroup.WithContext(ctx)
	source := newByteSource(r)

	d := newDecoder(egCtx, source.chunks, cfg)
	if lr, ok := r.(interface{ Len() int }); ok {
		d.totalHint = int64(lr.Len())
	}

	eg.Go(func() error {
		return source.run(egCtx, nil)
	})

	var trace *Trace
	eg.Go(func() error {
		defer cancel()
		if err := d.parse(); err != nil {
			return err
		}
		t, err := d.assemble()
		if err != nil {
			return err
		}
		trace = t
		return nil
	})

	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return trace, nil
}
