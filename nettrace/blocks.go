package nettrace

import (
	"time"

	"github.com/nettrace-go/nettrace/mem"
)

// readTraceBody decodes the fixed-layout Trace object: a date split
// into individual i16 fields, followed by the QPC synchronization
// values and a handful of process-level facts.
func (d *decoder) readTraceBody(objectVersion int32) error {
	type dateParts struct {
		year, month, day, dayOfWeek, hour, minute, second, millisecond int16
	}

	var dp dateParts
	var qpcSyncTime, qpcFrequency int64
	var pointerSize, processID, numberOfProcessors, cpuSamplingRate int32

	err := d.readWithRetry(func(r *Reader) bool {
		var ok bool
		if dp.year, ok = r.TryInt16(); !ok {
			return false
		}
		if dp.month, ok = r.TryInt16(); !ok {
			return false
		}
		if dp.dayOfWeek, ok = r.TryInt16(); !ok {
			return false
		}
		if dp.day, ok = r.TryInt16(); !ok {
			return false
		}
		if dp.hour, ok = r.TryInt16(); !ok {
			return false
		}
		if dp.minute, ok = r.TryInt16(); !ok {
			return false
		}
		if dp.second, ok = r.TryInt16(); !ok {
			return false
		}
		if dp.millisecond, ok = r.TryInt16(); !ok {
			return false
		}
		if qpcSyncTime, ok = r.TryInt64(); !ok {
			return false
		}
		if qpcFrequency, ok = r.TryInt64(); !ok {
			return false
		}
		if pointerSize, ok = r.TryInt32(); !ok {
			return false
		}
		if processID, ok = r.TryInt32(); !ok {
			return false
		}
		if numberOfProcessors, ok = r.TryInt32(); !ok {
			return false
		}
		if cpuSamplingRate, ok = r.TryInt32(); !ok {
			return false
		}
		return true
	})
	if err != nil {
		return err
	}

	if qpcFrequency <= 0 {
		return newMalformedFormatError(d.r.Pos(), "non-positive QPC frequency %d", qpcFrequency)
	}

	d.metadata = TraceMetadata{
		Date: time.Date(int(dp.year), time.Month(dp.month), int(dp.day),
			int(dp.hour), int(dp.minute), int(dp.second), int(dp.millisecond)*int(time.Millisecond), time.UTC),
		QPCSyncTime:        qpcSyncTime,
		QPCFrequency:       qpcFrequency,
		PointerSize:        pointerSize,
		ProcessID:          processID,
		NumberOfProcessors: numberOfProcessors,
		CPUSamplingRate:    cpuSamplingRate,
	}
	return nil
}

// readStackBlock decodes a run of raw stack address lists. Each stack's
// raw index (firstID + position in the block) is uniquified into a
// global index via resolveStackIndex before being stored.
func (d *decoder) readStackBlock(blockEnd int64) error {
	firstID, err := readPrim(d, (*Reader).TryInt32)
	if err != nil {
		return err
	}
	count, err := readPrim(d, (*Reader).TryInt32)
	if err != nil {
		return err
	}

	pointerSize := int(d.metadata.PointerSize)
	if pointerSize != 4 && pointerSize != 8 {
		pointerSize = 8
	}

	for i := int32(0); i < count; i++ {
		stackSize, err := readPrim(d, (*Reader).TryInt32)
		if err != nil {
			return err
		}
		raw, err := readPrim(d, func(r *Reader) ([]byte, bool) { return r.TryBytes(int(stackSize)) })
		if err != nil {
			return err
		}
		// Every address in a stack is the same width, so the final
		// length is known up front; grow the slice to it in one shot
		// instead of letting append double it as each address is
		// decoded.
		addresses := mem.GrowLen[[]uint64](nil, len(raw)/pointerSize)
		for j := range addresses {
			off := j * pointerSize
			var addr uint64
			for b := pointerSize - 1; b >= 0; b-- {
				addr = addr<<8 | uint64(raw[off+b])
			}
			addresses[j] = addr
		}
		globalIndex := d.resolveStackIndex(firstID + i)
		d.stacks.addStack(globalIndex, addresses)
		d.stats.StackCount++
	}

	return nil
}

// resolveStackIndex maps a block-local raw stack ID to a globally
// unique index by adding the offset established by the most recent
// sequence point, so that stack IDs from different sequence-point
// epochs (which each restart their raw IDs near zero) don't collide.
// Raw ID zero is not special: it is the first valid raw ID of every
// epoch, and a StackBlock with firstId=0 stores a real address list
// under the resulting global index.
func (d *decoder) resolveStackIndex(rawID int32) int64 {
	global := d.stackIndexOffset + int64(rawID)
	if global+1 > d.lastStackIndex {
		d.lastStackIndex = global + 1
	}
	return global
}

// readSPBlock decodes a sequence-point block: a timestamp and a list of
// per-thread (threadID, sequenceNumber) pairs that this decoder does
// not otherwise need, followed by advancing the stack index epoch.
func (d *decoder) readSPBlock(blockEnd int64) error {
	_, err := readPrim(d, (*Reader).TryInt64) // timestamp
	if err != nil {
		return err
	}
	threadCount, err := readPrim(d, (*Reader).TryInt32)
	if err != nil {
		return err
	}
	for i := int32(0); i < threadCount; i++ {
		if _, err := readPrim(d, (*Reader).TryInt64); err != nil { // threadID
			return err
		}
		if _, err := readPrim(d, (*Reader).TryInt32); err != nil { // sequenceNumber
			return err
		}
	}
	d.onSequencePoint()
	d.stats.SequencePointCount++
	return nil
}

// onSequencePoint starts a new stack-index epoch: subsequent raw stack
// IDs are offset by lastStackIndex, which holds one past the highest
// global stack index used so far, guaranteeing the new epoch's indices
// never collide with any earlier epoch's.
func (d *decoder) onSequencePoint() {
	d.stackIndexOffset = d.lastStackIndex
}
