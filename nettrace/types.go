package nettrace

import (
	"fmt"
	"time"

	"github.com/nettrace-go/nettrace/container"
)

// Guid holds a 16-byte GUID exactly as it appears on the wire: the first
// three fields little-endian, the trailing 8 bytes as-is (the Microsoft
// mixed-endian layout).
type Guid [16]byte

func (g Guid) String() string {
	return fmt.Sprintf("%08x-%04x-%04x-%04x-%012x",
		uint32(g[0])|uint32(g[1])<<8|uint32(g[2])<<16|uint32(g[3])<<24,
		uint16(g[4])|uint16(g[5])<<8,
		uint16(g[6])|uint16(g[7])<<8,
		uint16(g[8])<<8|uint16(g[9]),
		g[10:16])
}

func (g Guid) IsZero() bool {
	return g == Guid{}
}

// TypeCode identifies the wire type of an event field. The values follow
// the System.TypeCode layout used by the real EventPipe field encoding,
// extended with Guid and Array for the trace-specific additions.
type TypeCode int32

const (
	TypeCodeObject  TypeCode = 1
	TypeCodeBoolean TypeCode = 3
	TypeCodeChar    TypeCode = 4
	TypeCodeSByte   TypeCode = 5
	TypeCodeByte    TypeCode = 6
	TypeCodeInt16   TypeCode = 7
	TypeCodeUInt16  TypeCode = 8
	TypeCodeInt32   TypeCode = 9
	TypeCodeUInt32  TypeCode = 10
	TypeCodeInt64   TypeCode = 11
	TypeCodeUInt64  TypeCode = 12
	TypeCodeSingle  TypeCode = 13
	TypeCodeDouble  TypeCode = 14
	TypeCodeString  TypeCode = 18
	TypeCodeGuid    TypeCode = 19
	TypeCodeArray   TypeCode = 20
)

func (c TypeCode) String() string {
	switch c {
	case TypeCodeObject:
		return "Object"
	case TypeCodeBoolean:
		return "Boolean"
	case TypeCodeChar:
		return "Char"
	case TypeCodeSByte:
		return "SByte"
	case TypeCodeByte:
		return "Byte"
	case TypeCodeInt16:
		return "Int16"
	case TypeCodeUInt16:
		return "UInt16"
	case TypeCodeInt32:
		return "Int32"
	case TypeCodeUInt32:
		return "UInt32"
	case TypeCodeInt64:
		return "Int64"
	case TypeCodeUInt64:
		return "UInt64"
	case TypeCodeSingle:
		return "Single"
	case TypeCodeDouble:
		return "Double"
	case TypeCodeString:
		return "String"
	case TypeCodeGuid:
		return "Guid"
	case TypeCodeArray:
		return "Array"
	default:
		return fmt.Sprintf("TypeCode(%d)", int32(c))
	}
}

// EventFieldDefinition describes one field of an event's payload, as
// declared by its EventMetadata.
type EventFieldDefinition struct {
	Name                 string
	TypeCode             TypeCode
	ArrayElementTypeCode container.Option[TypeCode]
	SubFields            []EventFieldDefinition
}

// EventMetadata describes one event type: the provider/id/version triple
// that events reference by MetadataID, and the field layout of its
// payload. Every Event sharing a MetadataID holds a pointer to the same
// EventMetadata instance (see Trace.EventMetadata).
type EventMetadata struct {
	MetadataID   int32
	ProviderName string
	EventID      int32
	EventName    string
	Keywords     int64
	Version      int32
	Level        int32
	Opcode       container.Option[uint8]
	Fields       []EventFieldDefinition
}

// MethodDescription identifies the managed method that a resolved stack
// frame's address falls within. StartAddress and Size are absent for
// synthetic descriptions manufactured for addresses with no matching
// rundown record.
type MethodDescription struct {
	Name          string
	Namespace     string
	Signature     container.Option[string]
	StartAddress  container.Option[uint64]
	Size          container.Option[uint64]
}

// Frame is one resolved stack frame: a raw instruction address and the
// method it falls within, if known.
type Frame struct {
	Address uint64
	Method  *MethodDescription
}

// Event is one decoded trace event, in stream order prior to the final
// sort by TimeStampNs.
type Event struct {
	Index             int64
	SequenceNumber    int32
	CaptureThreadID   int64
	ThreadID          int64
	StackIndex        int64
	TimeStampNs       int64
	ActivityID        Guid
	RelatedActivityID Guid
	Payload           map[string]any
	// Stack holds the resolved call stack for StackIndex, populated once
	// parsing completes and every rundown method record has been seen.
	// Nil when no StackBlock entry was ever recorded under this index.
	Stack []Frame
	// Metadata is shared with the Trace.EventMetadata entry of the same
	// MetadataID: identical pointers, never copies.
	Metadata *EventMetadata
}

// TraceMetadata carries the fixed header fields from the stream's Trace
// object. Populated exactly once and never mutated afterward.
type TraceMetadata struct {
	Date               time.Time
	QPCSyncTime        int64
	QPCFrequency       int64
	PointerSize        int32
	ProcessID          int32
	NumberOfProcessors int32
	CPUSamplingRate    int32
}

// DiagnosticKind classifies a non-fatal event surfaced during parsing.
type DiagnosticKind int

const (
	DiagnosticForwardCompatibleSkip DiagnosticKind = iota
	DiagnosticPaddingNotZero
	DiagnosticMetadataRedefinition
)

func (k DiagnosticKind) String() string {
	switch k {
	case DiagnosticForwardCompatibleSkip:
		return "forward-compatible-skip"
	case DiagnosticPaddingNotZero:
		return "padding-not-zero"
	case DiagnosticMetadataRedefinition:
		return "metadata-redefinition"
	default:
		return "unknown"
	}
}

// Diagnostic is a non-fatal event recorded during parsing: spec.md §7
// calls these "silent but may be surfaced as diagnostics."
type Diagnostic struct {
	Kind    DiagnosticKind
	Pos     int64
	Message string
}

// Stats summarizes what a parse actually consumed: block counts and byte
// totals per block kind, plus event/stack/sequence-point counts.
type Stats struct {
	BlockCounts  map[string]int
	BytesByBlock map[string]int64
	EventCount   int
	StackCount   int
	SequencePointCount int
	SkipCount    int
}

// Trace is the fully parsed, fully resolved result of Parse.
type Trace struct {
	Metadata      TraceMetadata
	EventMetadata []*EventMetadata
	Events        []Event
	Diagnostics   []Diagnostic
	Stats         Stats
}
