package nettrace

import (
	"sort"

	"github.com/nettrace-go/nettrace/mem"
	"github.com/pkg/errors"
)

// eventsByTime sorts a decoder's bucketed event storage in place, without
// requiring it to be copied into one contiguous slice first.
type eventsByTime struct {
	events *mem.BucketSlice[Event]
}

func (s eventsByTime) Len() int { return s.events.Len() }

func (s eventsByTime) Less(i, j int) bool {
	return s.events.Get(i).TimeStampNs < s.events.Get(j).TimeStampNs
}

func (s eventsByTime) Swap(i, j int) {
	a, b := s.events.Get(i), s.events.Get(j)
	s.events.Set(i, b)
	s.events.Set(j, a)
}

// assemble finalizes decoder state into a Trace: events are stably
// sorted into chronological order (blobs arrive grouped by thread, not
// by time), and each event with a captured stack gets its resolved
// frames attached now that every rundown method record has been seen.
func (d *decoder) assemble() (*Trace, error) {
	if !d.sawTrace {
		return nil, errors.New("nettrace: stream ended without a Trace object")
	}

	sort.Stable(eventsByTime{&d.events})

	n := d.events.Len()
	events := make([]Event, n)
	for i := 0; i < n; i++ {
		e := d.events.Get(i)
		e.Stack = d.stacks.resolve(e.StackIndex)
		events[i] = e
	}

	metas := make([]*EventMetadata, 0, len(d.metaOrder))
	for _, id := range d.metaOrder {
		metas = append(metas, d.eventMetadata[id])
	}

	return &Trace{
		Metadata:      d.metadata,
		EventMetadata: metas,
		Events:        events,
		Diagnostics:   d.diagnostics,
		Stats:         d.stats,
	}, nil
}
