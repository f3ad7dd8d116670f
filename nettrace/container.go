package nettrace

import "go.uber.org/zap"

const (
	tagNullReference      = 1
	tagBeginPrivateObject = 5
	tagEndObject          = 6
)

// readerVersion is the highest FastSerialization minReaderVersion this
// decoder understands. Objects declaring a higher minReaderVersion are
// forward-compatible blocks this decoder cannot interpret, and are
// skipped wholesale rather than treated as an error.
const readerVersion = 4

const magic = "Nettrace"
const signaturePrefix = "!FastSerialization."

// parse drives the top-level container: the fixed magic and signature,
// then a sequence of tagged objects terminated by a NullReference tag.
func (d *decoder) parse() error {
	if err := d.expectMagic(); err != nil {
		return err
	}
	if err := d.expectSignature(); err != nil {
		return err
	}

	for {
		tag, err := readPrim(d, (*Reader).TryUint8)
		if err != nil {
			return err
		}
		switch tag {
		case tagNullReference:
			return nil
		case tagBeginPrivateObject:
			if err := d.readObject(); err != nil {
				return err
			}
		default:
			return newMalformedFormatError(d.r.Pos()-1, "unexpected top-level tag %d", tag)
		}
	}
}

func (d *decoder) expectMagic() error {
	start := d.r.Mark()
	var b []byte
	err := d.readWithRetry(func(r *Reader) bool {
		v, ok := r.TryBytes(len(magic))
		if ok {
			b = append([]byte(nil), v...)
		}
		return ok
	})
	if err != nil {
		return err
	}
	if string(b) != magic {
		return newMalformedFormatError(start, "bad magic %q", b)
	}
	return nil
}

// expectSignature reads the length-prefixed ASCII signature string and
// verifies it begins with "!FastSerialization." — the trailing digit is
// a FastSerialization protocol version this decoder doesn't otherwise
// interpret.
func (d *decoder) expectSignature() error {
	start := d.r.Mark()
	s, err := d.readLengthPrefixedASCII()
	if err != nil {
		return err
	}
	if len(s) < len(signaturePrefix) || s[:len(signaturePrefix)] != signaturePrefix {
		return newMalformedFormatError(start, "bad signature %q", s)
	}
	return nil
}

// readLengthPrefixedASCII reads an i32 byte count followed by that many
// raw ASCII bytes, used for the FastSerialization signature and every
// object's type name.
func (d *decoder) readLengthPrefixedASCII() (string, error) {
	start := d.r.Mark()
	var out string
	err := d.readWithRetry(func(r *Reader) bool {
		n, ok := r.TryInt32()
		if !ok {
			return false
		}
		if n < 0 {
			r.fail(newMalformedFormatError(start, "negative name length %d", n))
			return false
		}
		b, ok := r.TryBytes(int(n))
		if !ok {
			return false
		}
		out = string(b)
		return true
	})
	return out, err
}

// readObject decodes one FastSerialization object envelope: a nested
// NullReference-tagged serialization-type descriptor giving the
// object's type name and version, followed by the object body and a
// trailing EndObject tag.
func (d *decoder) readObject() error {
	// The serialization type descriptor is itself a nested private
	// object whose own "type" is the well-known NullReference sentinel.
	tag, err := readPrim(d, (*Reader).TryUint8)
	if err != nil {
		return err
	}
	if tag != tagBeginPrivateObject {
		return newMalformedFormatError(d.r.Pos()-1, "expected BeginPrivateObject introducing serialization type, got tag %d", tag)
	}

	tag, err = readPrim(d, (*Reader).TryUint8)
	if err != nil {
		return err
	}
	if tag != tagNullReference {
		return newMalformedFormatError(d.r.Pos()-1, "expected NullReference introducing serialization type, got tag %d", tag)
	}

	objectVersion, err := readPrim(d, (*Reader).TryInt32)
	if err != nil {
		return err
	}
	minReaderVersion, err := readPrim(d, (*Reader).TryInt32)
	if err != nil {
		return err
	}
	name, err := d.readLengthPrefixedASCII()
	if err != nil {
		return err
	}

	tag, err = readPrim(d, (*Reader).TryUint8)
	if err != nil {
		return err
	}
	if tag != tagEndObject {
		return newMalformedFormatError(d.r.Pos()-1, "expected EndObject after serialization type, got tag %d", tag)
	}

	if name == "Trace" {
		if err := d.readTraceBody(objectVersion); err != nil {
			return err
		}
		d.sawTrace = true
		return d.expectEndObject()
	}

	return d.readBlockObject(name, minReaderVersion)
}

// readBlockObject reads the generic block framing shared by every
// object other than Trace: an i32 block size, padding to the next
// 4-byte boundary, and that many bytes of body.
func (d *decoder) readBlockObject(name string, minReaderVersion int32) error {
	blockSize, err := readPrim(d, (*Reader).TryInt32)
	if err != nil {
		return err
	}
	if blockSize < 0 {
		return newMalformedFormatError(d.r.Pos()-4, "negative block size %d", blockSize)
	}

	padStart := d.r.Pos()
	padding := int((4 - padStart%4) % 4)
	if padding > 0 {
		pad, err := readPrim(d, func(r *Reader) ([]byte, bool) { return r.TryBytes(padding) })
		if err != nil {
			return err
		}
		for _, b := range pad {
			if b != 0 {
				d.addDiagnostic(DiagnosticPaddingNotZero, padStart, "non-zero alignment padding in %s block", name)
				break
			}
		}
	}

	bodyStart := d.r.Pos()
	blockEnd := bodyStart + int64(blockSize)

	d.stats.BlockCounts[name]++
	d.stats.BytesByBlock[name] += int64(blockSize)

	if minReaderVersion > d.cfg.maxReaderVersion {
		if _, warned := d.warnedSkip[name]; !warned {
			d.addDiagnostic(DiagnosticForwardCompatibleSkip, bodyStart, "skipping %s block (minReaderVersion %d)", name, minReaderVersion)
			d.warnedSkip.Add(name)
		}
		d.stats.SkipCount++
		if err := d.skipTo(blockEnd); err != nil {
			return err
		}
		d.reportProgress()
		return d.expectEndObject()
	}

	switch name {
	case "StackBlock":
		err = d.readStackBlock(blockEnd)
	case "MetadataBlock":
		err = d.readBlobBlock(blockEnd, true)
	case "EventBlock":
		err = d.readBlobBlock(blockEnd, false)
	case "SPBlock":
		err = d.readSPBlock(blockEnd)
	default:
		d.log.Debug("skipping unknown block", zap.String("name", name))
		d.stats.SkipCount++
		err = d.skipTo(blockEnd)
	}
	if err != nil {
		return err
	}

	// MetadataBlock/EventBlock already reported progress once per blob;
	// every other block type reports once here, after the whole block.
	if name != "MetadataBlock" && name != "EventBlock" {
		d.reportProgress()
	}

	if d.r.Pos() != blockEnd {
		return newMalformedFormatError(d.r.Pos(), "%s block consumed %d bytes, expected %d", name, d.r.Pos()-bodyStart, blockSize)
	}

	return d.expectEndObject()
}

func (d *decoder) expectEndObject() error {
	tag, err := readPrim(d, (*Reader).TryUint8)
	if err != nil {
		return err
	}
	if tag != tagEndObject {
		return newMalformedFormatError(d.r.Pos()-1, "expected EndObject, got tag %d", tag)
	}
	return nil
}

// skipTo discards bytes up to (not including) offset end, pulling in more
// input as needed without decoding it.
func (d *decoder) skipTo(end int64) error {
	for d.r.Pos() < end {
		pos := d.r.Pos()
		want := int(end - pos)
		if err := d.ensure(want, pos); err != nil {
			return err
		}
		d.r.TryBytes(want)
	}
	return nil
}
