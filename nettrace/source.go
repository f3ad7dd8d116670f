package nettrace

import (
	"context"
	"io"
)

// sourceChunkSize is the minimum size byteSource asks its underlying
// reader to fill before handing a chunk to the decoder. Reading in
// coarse chunks keeps the producer from context-switching on every
// handful of bytes when the source is something like a pipe.
const sourceChunkSize = 64 * 1024

// byteSource pumps bytes from src into a channel of owned buffers,
// decoupling the pace at which the underlying reader delivers data from
// the pace at which the decoder consumes it. It is grounded on the
// streaming walker's producer goroutine: a buffered channel plus an
// errgroup-cancellable read loop.
type byteSource struct {
	src       io.Reader
	chunkSize int
	chunks    chan []byte
}

func newByteSource(src io.Reader) *byteSource {
	return &byteSource{
		src:       src,
		chunkSize: sourceChunkSize,
		chunks:    make(chan []byte, 4),
	}
}

// run reads from src until EOF or ctx is cancelled, sending each chunk
// read on s.chunks and closing it when done. onRead, if non-nil, is
// called after every successful read with the number of bytes read so
// far in total, for progress reporting.
//
// A cancelled ctx ends the loop quietly (returning nil): the consumer
// side of Parse reports its own ctx.Err() when cancellation is the
// actual cause of failure, so run need not duplicate that error.
func (s *byteSource) run(ctx context.Context, onRead func(total int64)) error {
	defer close(s.chunks)

	var total int64
	buf := make([]byte, s.chunkSize)
	for {
		n, err := io.ReadFull(s.src, buf)
		if n > 0 {
			owned := make([]byte, n)
			copy(owned, buf[:n])
			total += int64(n)
			select {
			case s.chunks <- owned:
			case <-ctx.Done():
				return nil
			}
			if onRead != nil {
				onRead(total)
			}
		}
		switch err {
		case nil:
			continue
		case io.EOF, io.ErrUnexpectedEOF:
			return nil
		default:
			return err
		}
	}
}
