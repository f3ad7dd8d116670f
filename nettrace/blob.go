package nettrace

import "github.com/nettrace-go/nettrace/container"

const (
	flagMetadataID = 1 << iota
	flagSeqCaptProc
	flagThreadID
	flagStackID
	flagActivityID
	flagRelatedActivityID
	flagIsSorted
	flagPayloadSize
)

// blobState carries the nine "previous" values a compressed blob header
// may omit and inherit from, one instance per block (MetadataBlock and
// EventBlock each start a fresh zero-valued state).
type blobState struct {
	metadataID        int32
	sequenceNumber    int32
	captureThreadID   int64
	processorNumber   int32
	threadID          int64
	stackID           int32
	timestamp         int64
	activityID        Guid
	relatedActivityID Guid
	payloadSize       int32
}

// readBlobBlock decodes a MetadataBlock or EventBlock: a small fixed
// prelude describing the compression in use, followed by a run of
// delta-compressed blob records until blockEnd.
func (d *decoder) readBlobBlock(blockEnd int64, isMetadataBlock bool) error {
	headerSize, err := readPrim(d, (*Reader).TryInt16)
	if err != nil {
		return err
	}
	flags, err := readPrim(d, (*Reader).TryInt16)
	if err != nil {
		return err
	}
	if _, err := readPrim(d, (*Reader).TryInt64); err != nil { // min timestamp
		return err
	}
	if _, err := readPrim(d, (*Reader).TryInt64); err != nil { // max timestamp
		return err
	}
	reserved := int(headerSize) - 20
	if reserved > 0 {
		if _, err := readPrim(d, func(r *Reader) ([]byte, bool) { return r.TryBytes(reserved) }); err != nil {
			return err
		}
	}

	const headerFlagCompressed = 1
	if flags&headerFlagCompressed == 0 {
		return newMalformedFormatError(d.r.Pos(), "uncompressed %s blocks are not supported", blockName(isMetadataBlock))
	}

	state := blobState{}
	for d.r.Pos() < blockEnd {
		if err := d.readBlob(&state); err != nil {
			return err
		}
	}
	return nil
}

func blockName(isMetadataBlock bool) string {
	if isMetadataBlock {
		return "MetadataBlock"
	}
	return "EventBlock"
}

// readBlob decodes one compressed blob header and its payload per the
// per-field presence flags, mutating state to the values this blob
// actually carried (read or inherited) once done.
func (d *decoder) readBlob(state *blobState) error {
	flags, err := readPrim(d, (*Reader).TryUint8)
	if err != nil {
		return err
	}

	if flags&flagMetadataID != 0 {
		v, err := readPrim(d, (*Reader).TryVarUint32)
		if err != nil {
			return err
		}
		state.metadataID = int32(v)
	}

	if flags&flagSeqCaptProc != 0 {
		delta, err := readPrim(d, (*Reader).TryVarUint32)
		if err != nil {
			return err
		}
		state.sequenceNumber += int32(delta)
		tid, err := readPrim(d, (*Reader).TryVarUint64)
		if err != nil {
			return err
		}
		state.captureThreadID = int64(tid)
		proc, err := readPrim(d, (*Reader).TryVarUint32)
		if err != nil {
			return err
		}
		state.processorNumber = int32(proc)
	}

	if flags&flagThreadID != 0 {
		v, err := readPrim(d, (*Reader).TryVarUint64)
		if err != nil {
			return err
		}
		state.threadID = int64(v)
	}

	if flags&flagStackID != 0 {
		v, err := readPrim(d, (*Reader).TryVarUint32)
		if err != nil {
			return err
		}
		state.stackID = int32(v)
	}

	tsDelta, err := readPrim(d, (*Reader).TryVarUint64)
	if err != nil {
		return err
	}
	state.timestamp += int64(tsDelta)

	if flags&flagActivityID != 0 {
		v, err := readPrim(d, (*Reader).TryGUID)
		if err != nil {
			return err
		}
		state.activityID = v
	}
	if flags&flagRelatedActivityID != 0 {
		v, err := readPrim(d, (*Reader).TryGUID)
		if err != nil {
			return err
		}
		state.relatedActivityID = v
	}

	if flags&flagPayloadSize != 0 {
		v, err := readPrim(d, (*Reader).TryVarUint32)
		if err != nil {
			return err
		}
		state.payloadSize = int32(v)
	}

	// The sequence number applies only to real events: a metadata
	// definition blob (metadataID == 0) never advances it.
	if state.metadataID != 0 {
		state.sequenceNumber++
	}

	payloadEnd := d.r.Pos() + int64(state.payloadSize)

	if state.metadataID == 0 {
		if err := d.readMetadataDefinitionPayload(payloadEnd); err != nil {
			return err
		}
	} else {
		if err := d.readEventBlob(state, payloadEnd); err != nil {
			return err
		}
	}

	if d.r.Pos() != payloadEnd {
		return newMalformedFormatError(d.r.Pos(), "blob payload consumed %d bytes short of declared size", payloadEnd-d.r.Pos())
	}

	d.reportProgress()
	return nil
}

// readEventBlob decodes one event's payload and records the resulting
// Event, given the header fields already parsed into state.
func (d *decoder) readEventBlob(state *blobState, payloadEnd int64) error {
	meta, ok := d.eventMetadata[state.metadataID]
	if !ok {
		return newMalformedFormatError(d.r.Pos(), "event references unknown metadata ID %d", state.metadataID)
	}

	var payload map[string]any
	if parser, ok := lookupKnownEventParser(meta.ProviderName, meta.EventID, meta.Version); ok {
		p, err := parser(d, payloadEnd)
		if err != nil {
			return err
		}
		payload = p
	} else {
		p, err := d.readEventPayloadFields(meta.Fields)
		if err != nil {
			return err
		}
		payload = p
	}

	globalStack := d.resolveStackIndex(state.stackID)

	event := Event{
		Index:             int64(d.events.Len()),
		SequenceNumber:    state.sequenceNumber,
		CaptureThreadID:   state.captureThreadID,
		ThreadID:          state.threadID,
		StackIndex:        globalStack,
		TimeStampNs:       d.qpcToNs(state.timestamp),
		ActivityID:        state.activityID,
		RelatedActivityID: state.relatedActivityID,
		Payload:           payload,
		Metadata:          meta,
	}
	d.events.Append(event)
	d.stats.EventCount++

	if meta.ProviderName == rundownProviderName && meta.EventID == rundownMethodDCEndEventID {
		d.registerRundownMethod(payload)
	}

	return nil
}

func (d *decoder) registerRundownMethod(payload map[string]any) {
	if payload == nil {
		return
	}
	start, _ := payload["MethodStartAddress"].(int64)
	size, _ := payload["MethodSize"].(int32)
	name, _ := payload["MethodName"].(string)
	namespace, _ := payload["MethodNamespace"].(string)
	signature, _ := payload["MethodSignature"].(string)

	m := &MethodDescription{
		Name:         name,
		Namespace:    namespace,
		StartAddress: container.Some(uint64(start)),
		Size:         container.Some(uint64(size)),
	}
	if signature != "" {
		m.Signature = container.Some(signature)
	}
	d.stacks.addMethod(uint64(start), uint64(size), m)
}
