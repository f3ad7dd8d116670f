package nettrace

import (
	"fmt"

	"github.com/nettrace-go/nettrace/container"
)

// stackResolver accumulates raw stack address lists keyed by their
// globally-uniquified index, and the method-description intervals
// needed to symbolize each address, resolving both lazily at assemble
// time once every rundown record has been seen.
type stackResolver struct {
	stacks  map[int64][]uint64
	methods *container.IntervalTree[uint64, *MethodDescription]
}

func newStackResolver() *stackResolver {
	return &stackResolver{
		stacks:  make(map[int64][]uint64),
		methods: container.NewIntervalTree[uint64, *MethodDescription](),
	}
}

func (s *stackResolver) addStack(index int64, addresses []uint64) {
	s.stacks[index] = addresses
}

func (s *stackResolver) addMethod(start, size uint64, m *MethodDescription) {
	end := start + size
	if size == 0 {
		end = start
	}
	s.methods.Insert(start, end, m)
}

// resolve returns the symbolized frames for stackIndex. Zero is a
// legitimate global index: the first sequence-point epoch's raw stack
// IDs start at zero, so a StackBlock with firstId=0 stores real
// addresses there. An event with no captured stack simply has no
// entry under its index and resolves to nil.
func (s *stackResolver) resolve(stackIndex int64) []Frame {
	addrs, ok := s.stacks[stackIndex]
	if !ok {
		return nil
	}
	frames := make([]Frame, len(addrs))
	for i, addr := range addrs {
		m, ok := s.methods.FindPoint(addr)
		if !ok {
			m = &MethodDescription{Name: fmt.Sprintf("0x%x", addr)}
		}
		frames[i] = Frame{Address: addr, Method: m}
	}
	return frames
}
