package nettrace

const (
	rundownProviderName       = "Microsoft-Windows-DotNETRuntimeRundown"
	rundownMethodDCEndEventID = 144

	// rundownModuleDCEndEventID and rundownAssemblyDCEndEventID round
	// out the rundown table with the other two record kinds a rundown
	// emits alongside method records: one per loaded module and one
	// per loaded assembly. Their field layouts are not hand-parsed
	// (no Parse function), so they decode through the generic
	// field-definition walker like any other known field list.
	rundownModuleDCEndEventID   = 152
	rundownAssemblyDCEndEventID = 156

	tplEventSourceProviderName = "System.Threading.Tasks.TplEventSource"
	tplTaskWaitBeginEventID    = 10
)

// versionWildcard matches a known-event registration against any
// EventMetadata version, used for events (like the rundown method
// record) whose field layout has stayed stable across versions.
const versionWildcard = -1

type knownEventKey struct {
	provider string
	eventID  int32
	version  int32
}

// knownEventParser decodes an event payload without going through the
// generic field-definition walker, for events whose layout this
// decoder understands well enough to parse directly. payloadEnd bounds
// how much of the blob belongs to this event.
type knownEventParser func(d *decoder, payloadEnd int64) (map[string]any, error)

type knownEventDefinition struct {
	Fields []EventFieldDefinition
	Parse  knownEventParser
}

var knownEvents = map[knownEventKey]knownEventDefinition{
	{tplEventSourceProviderName, tplTaskWaitBeginEventID, 3}: {
		Fields: []EventFieldDefinition{
			{Name: "OriginatingTaskSchedulerID", TypeCode: TypeCodeInt32},
			{Name: "OriginatingTaskID", TypeCode: TypeCodeInt32},
			{Name: "TaskID", TypeCode: TypeCodeInt32},
			{Name: "Behavior", TypeCode: TypeCodeInt32},
			{Name: "ContinueWithTaskID", TypeCode: TypeCodeInt32},
		},
		Parse: parseTplTaskWaitBegin,
	},
	{rundownProviderName, rundownMethodDCEndEventID, versionWildcard}: {
		Fields: []EventFieldDefinition{
			{Name: "MethodStartAddress", TypeCode: TypeCodeInt64},
			{Name: "MethodSize", TypeCode: TypeCodeInt32},
			{Name: "MethodNamespace", TypeCode: TypeCodeString},
			{Name: "MethodName", TypeCode: TypeCodeString},
			{Name: "MethodSignature", TypeCode: TypeCodeString},
		},
		Parse: parseRundownMethodDCEnd,
	},
	{rundownProviderName, rundownModuleDCEndEventID, versionWildcard}: {
		Fields: []EventFieldDefinition{
			{Name: "ModuleID", TypeCode: TypeCodeInt64},
			{Name: "AssemblyID", TypeCode: TypeCodeInt64},
			{Name: "ModuleFlags", TypeCode: TypeCodeInt32},
			{Name: "ModuleILPath", TypeCode: TypeCodeString},
			{Name: "ModuleNativePath", TypeCode: TypeCodeString},
		},
	},
	{rundownProviderName, rundownAssemblyDCEndEventID, versionWildcard}: {
		Fields: []EventFieldDefinition{
			{Name: "AssemblyID", TypeCode: TypeCodeInt64},
			{Name: "AssemblyFlags", TypeCode: TypeCodeInt32},
			{Name: "FullyQualifiedAssemblyName", TypeCode: TypeCodeString},
		},
	},
}

func lookupKnownEventDefinition(provider string, eventID, version int32) (knownEventDefinition, bool) {
	if def, ok := knownEvents[knownEventKey{provider, eventID, version}]; ok {
		return def, true
	}
	def, ok := knownEvents[knownEventKey{provider, eventID, versionWildcard}]
	return def, ok
}

func lookupKnownEventParser(provider string, eventID, version int32) (knownEventParser, bool) {
	def, ok := lookupKnownEventDefinition(provider, eventID, version)
	if !ok || def.Parse == nil {
		return nil, false
	}
	return def.Parse, true
}

func parseTplTaskWaitBegin(d *decoder, payloadEnd int64) (map[string]any, error) {
	schedulerID, err := readPrim(d, (*Reader).TryInt32)
	if err != nil {
		return nil, err
	}
	originatingTaskID, err := readPrim(d, (*Reader).TryInt32)
	if err != nil {
		return nil, err
	}
	taskID, err := readPrim(d, (*Reader).TryInt32)
	if err != nil {
		return nil, err
	}
	behavior, err := readPrim(d, (*Reader).TryInt32)
	if err != nil {
		return nil, err
	}
	continueWithTaskID, err := readPrim(d, (*Reader).TryInt32)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"OriginatingTaskSchedulerID": schedulerID,
		"OriginatingTaskID":          originatingTaskID,
		"TaskID":                     taskID,
		"Behavior":                   behavior,
		"ContinueWithTaskID":         continueWithTaskID,
	}, nil
}

func parseRundownMethodDCEnd(d *decoder, payloadEnd int64) (map[string]any, error) {
	startAddress, err := readPrim(d, (*Reader).TryInt64)
	if err != nil {
		return nil, err
	}
	size, err := readPrim(d, (*Reader).TryInt32)
	if err != nil {
		return nil, err
	}
	namespace, err := readPrim(d, (*Reader).TryUTF16NullTerminated)
	if err != nil {
		return nil, err
	}
	name, err := readPrim(d, (*Reader).TryUTF16NullTerminated)
	if err != nil {
		return nil, err
	}
	signature, err := readPrim(d, (*Reader).TryUTF16NullTerminated)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"MethodStartAddress": startAddress,
		"MethodSize":         size,
		"MethodNamespace":    d.intern.String(namespace),
		"MethodName":         d.intern.String(name),
		"MethodSignature":    d.intern.String(signature),
	}, nil
}
