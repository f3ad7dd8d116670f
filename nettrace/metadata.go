package nettrace

import (
	"strconv"

	"github.com/nettrace-go/nettrace/container"
)

const (
	metadataTagOpcode          = 1
	metadataTagParameterPayload = 2
)

// readFieldDefinitions decodes a field-definition list: an i32 count
// followed by that many fields. Each field's type code precedes its
// name on the wire; version 2 field definitions additionally carry an
// array element type code when the field itself is an array. In either
// version, an Object field is followed by a nested field list.
func (d *decoder) readFieldDefinitions(version int32) ([]EventFieldDefinition, error) {
	count, err := readPrim(d, (*Reader).TryInt32)
	if err != nil {
		return nil, err
	}
	if count < 0 {
		return nil, newMalformedFormatError(d.r.Pos(), "negative field count %d", count)
	}

	fields := make([]EventFieldDefinition, count)
	for i := range fields {
		typeCode, err := readPrim(d, (*Reader).TryInt32)
		if err != nil {
			return nil, err
		}
		field := EventFieldDefinition{TypeCode: TypeCode(typeCode)}

		if version >= 2 && field.TypeCode == TypeCodeArray {
			elemCode, err := readPrim(d, (*Reader).TryInt32)
			if err != nil {
				return nil, err
			}
			field.ArrayElementTypeCode = container.Some(TypeCode(elemCode))
		}

		if field.TypeCode == TypeCodeObject {
			sub, err := d.readFieldDefinitions(version)
			if err != nil {
				return nil, err
			}
			field.SubFields = sub
		}

		name, err := readPrim(d, (*Reader).TryUTF16NullTerminated)
		if err != nil {
			return nil, err
		}
		field.Name = d.intern.String(name)

		fields[i] = field
	}
	return fields, nil
}

// readMetadataDefinitionPayload decodes a MetadataBlock blob whose
// MetadataID is zero: the definition of a new event type. A later
// definition reusing the same MetadataID replaces the earlier one and
// is recorded as a diagnostic rather than an error, per the block's
// last-write-wins semantics.
func (d *decoder) readMetadataDefinitionPayload(payloadEnd int64) error {
	metadataID, err := readPrim(d, (*Reader).TryInt32)
	if err != nil {
		return err
	}
	providerName, err := readPrim(d, (*Reader).TryUTF16NullTerminated)
	if err != nil {
		return err
	}
	eventID, err := readPrim(d, (*Reader).TryInt32)
	if err != nil {
		return err
	}
	eventName, err := readPrim(d, (*Reader).TryUTF16NullTerminated)
	if err != nil {
		return err
	}
	keywords, err := readPrim(d, (*Reader).TryInt64)
	if err != nil {
		return err
	}
	version, err := readPrim(d, (*Reader).TryInt32)
	if err != nil {
		return err
	}
	level, err := readPrim(d, (*Reader).TryInt32)
	if err != nil {
		return err
	}

	fields, err := d.readFieldDefinitions(1)
	if err != nil {
		return err
	}

	meta := &EventMetadata{
		MetadataID:   metadataID,
		ProviderName: d.intern.String(providerName),
		EventID:      eventID,
		EventName:    d.intern.String(eventName),
		Keywords:     keywords,
		Version:      version,
		Level:        level,
		Fields:       fields,
	}

	for d.r.Pos() < payloadEnd {
		tagPayloadBytes, err := readPrim(d, (*Reader).TryInt32)
		if err != nil {
			return err
		}
		tag, err := readPrim(d, (*Reader).TryUint8)
		if err != nil {
			return err
		}
		tagEnd := d.r.Pos() + int64(tagPayloadBytes)

		switch tag {
		case metadataTagOpcode:
			opcode, err := readPrim(d, (*Reader).TryUint8)
			if err != nil {
				return err
			}
			meta.Opcode = container.Some(opcode)
		case metadataTagParameterPayload:
			v2Fields, err := d.readFieldDefinitions(2)
			if err != nil {
				return err
			}
			meta.Fields = v2Fields
		}

		if d.r.Pos() != tagEnd {
			if err := d.skipTo(tagEnd); err != nil {
				return err
			}
		}
	}

	if meta.EventName == "" {
		meta.EventName = sprintfEventName(eventID)
	}

	if known, ok := lookupKnownEventDefinition(meta.ProviderName, meta.EventID, meta.Version); ok {
		meta.Fields = known.Fields
	}

	if _, exists := d.eventMetadata[metadataID]; exists {
		d.addDiagnostic(DiagnosticMetadataRedefinition, d.r.Pos(), "metadata ID %d redefined", metadataID)
	} else {
		d.metaOrder = append(d.metaOrder, metadataID)
	}
	d.eventMetadata[metadataID] = meta

	return nil
}

func sprintfEventName(eventID int32) string {
	return "Event " + strconv.Itoa(int(eventID))
}

// readEventPayloadFields decodes a payload according to its field
// definitions, producing a map keyed by field name. Fields of type
// Object recurse into a nested map; Array fields produce a slice.
func (d *decoder) readEventPayloadFields(fields []EventFieldDefinition) (map[string]any, error) {
	out := make(map[string]any, len(fields))
	for _, f := range fields {
		v, err := d.readFieldValue(f)
		if err != nil {
			return nil, err
		}
		out[f.Name] = v
	}
	return out, nil
}

func (d *decoder) readFieldValue(f EventFieldDefinition) (any, error) {
	switch f.TypeCode {
	case TypeCodeBoolean:
		v, err := readPrim(d, (*Reader).TryInt32)
		if err != nil {
			return nil, err
		}
		return d.intern.Bool(v != 0), nil
	case TypeCodeSByte:
		v, err := readPrim(d, (*Reader).TryUint8)
		if err != nil {
			return nil, err
		}
		return d.intern.Int8(int8(v)), nil
	case TypeCodeByte:
		v, err := readPrim(d, (*Reader).TryUint8)
		if err != nil {
			return nil, err
		}
		return d.intern.Uint8(v), nil
	case TypeCodeInt16, TypeCodeChar:
		v, err := readPrim(d, (*Reader).TryInt16)
		if err != nil {
			return nil, err
		}
		return d.intern.Int16(v), nil
	case TypeCodeUInt16:
		v, err := readPrim(d, (*Reader).TryUint16)
		if err != nil {
			return nil, err
		}
		return d.intern.Uint16(v), nil
	case TypeCodeInt32:
		return readPrim(d, (*Reader).TryInt32)
	case TypeCodeUInt32:
		return readPrim(d, (*Reader).TryUint32)
	case TypeCodeInt64:
		return readPrim(d, (*Reader).TryInt64)
	case TypeCodeUInt64:
		return readPrim(d, (*Reader).TryUint64)
	case TypeCodeSingle:
		return readPrim(d, (*Reader).TryFloat32)
	case TypeCodeDouble:
		return readPrim(d, (*Reader).TryFloat64)
	case TypeCodeString:
		s, err := readPrim(d, (*Reader).TryUTF16NullTerminated)
		if err != nil {
			return nil, err
		}
		return s, nil
	case TypeCodeGuid:
		return readPrim(d, (*Reader).TryGUID)
	case TypeCodeObject:
		return d.readEventPayloadFields(f.SubFields)
	case TypeCodeArray:
		return d.readArrayValue(f)
	default:
		return nil, newMalformedFormatError(d.r.Pos(), "unsupported field type code %d for field %q", f.TypeCode, f.Name)
	}
}

func (d *decoder) readArrayValue(f EventFieldDefinition) (any, error) {
	elemCode, ok := f.ArrayElementTypeCode.Get()
	if !ok {
		return nil, newMalformedFormatError(d.r.Pos(), "array field %q missing element type", f.Name)
	}
	count, err := readPrim(d, (*Reader).TryInt32)
	if err != nil {
		return nil, err
	}
	if count < 0 {
		return nil, newMalformedFormatError(d.r.Pos(), "negative array length %d", count)
	}
	elemField := EventFieldDefinition{Name: f.Name, TypeCode: elemCode, SubFields: f.SubFields}
	out := make([]any, count)
	for i := range out {
		v, err := d.readFieldValue(elemField)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}
