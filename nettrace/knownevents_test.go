package nettrace

import (
	"bytes"
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestRegisterRundownMethodSymbolizesStack(t *testing.T) {
	d := newDecoder(context.Background(), make(chan []byte), defaultConfig())

	d.registerRundownMethod(map[string]any{
		"MethodStartAddress": int64(0x1000),
		"MethodSize":         int32(0x100),
		"MethodNamespace":    "N",
		"MethodName":         "M",
		"MethodSignature":    "void M()",
	})

	idx := d.resolveStackIndex(1)
	d.stacks.addStack(idx, []uint64{0x1050})

	frames := d.stacks.resolve(idx)
	if len(frames) != 1 {
		t.Fatalf("frames = %d, want 1", len(frames))
	}
	m := frames[0].Method
	if m.Name != "M" || m.Namespace != "N" {
		t.Fatalf("resolved method = %+v, want Name=M Namespace=N", m)
	}
	sig, ok := m.Signature.Get()
	if !ok || sig != "void M()" {
		t.Fatalf("Signature = %q, %v", sig, ok)
	}
}

func TestRegisterRundownMethodOutOfRangeAddressIsUnresolved(t *testing.T) {
	d := newDecoder(context.Background(), make(chan []byte), defaultConfig())
	d.registerRundownMethod(map[string]any{
		"MethodStartAddress": int64(0x1000),
		"MethodSize":         int32(0x100),
		"MethodName":         "M",
	})

	idx := d.resolveStackIndex(1)
	d.stacks.addStack(idx, []uint64{0x2000})

	frames := d.stacks.resolve(idx)
	if len(frames) != 1 {
		t.Fatalf("frames = %d, want 1", len(frames))
	}
	if frames[0].Method.Name != "0x2000" {
		t.Fatalf("unresolved address got method %q, want synthesized %q", frames[0].Method.Name, "0x2000")
	}
}

// TestKnownEventParserMatchesGenericWalker checks that the hand-written
// TplTaskWaitBegin parser and the generic field-definition walker decode
// the same bytes to the same payload, given the known event's own field
// layout. The two paths must never diverge for an event this decoder
// claims to know.
func TestKnownEventParserMatchesGenericWalker(t *testing.T) {
	values := [5]int32{7, 8, 9, 10, 11}
	payload := buildTplEventPayload(values)

	def, ok := lookupKnownEventDefinition(tplEventSourceProviderName, tplTaskWaitBeginEventID, 3)
	if !ok {
		t.Fatal("TplEventSource/TaskWaitBegin/v3 is not registered as a known event")
	}

	dParser := newTestDecoder(payload)
	got, err := def.Parse(dParser, int64(len(payload)))
	if err != nil {
		t.Fatalf("known parser: %v", err)
	}

	dWalker := newTestDecoder(payload)
	want, err := dWalker.readEventPayloadFields(def.Fields)
	if err != nil {
		t.Fatalf("generic walker: %v", err)
	}

	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("known parser and generic walker disagree (-walker +parser):\n%s", diff)
	}
}

func TestLookupKnownEventDefinitionModuleAndAssemblyRecords(t *testing.T) {
	moduleDef, ok := lookupKnownEventDefinition(rundownProviderName, rundownModuleDCEndEventID, 2)
	if !ok {
		t.Fatal("module rundown record is not registered as a known event")
	}
	if moduleDef.Parse != nil {
		t.Fatal("module rundown record should decode via the generic walker, not a hand-written parser")
	}
	if len(moduleDef.Fields) != 5 {
		t.Fatalf("module rundown fields = %d, want 5", len(moduleDef.Fields))
	}

	assemblyDef, ok := lookupKnownEventDefinition(rundownProviderName, rundownAssemblyDCEndEventID, 1)
	if !ok {
		t.Fatal("assembly rundown record is not registered as a known event")
	}
	if len(assemblyDef.Fields) != 3 {
		t.Fatalf("assembly rundown fields = %d, want 3", len(assemblyDef.Fields))
	}

	var p bytes.Buffer
	p.Write(int32LE(0)) // AssemblyID low
	p.Write(int32LE(0)) // AssemblyID high
	p.Write(int32LE(7)) // AssemblyFlags
	p.Write(utf16NullTerminated("MyAssembly, Version=1.0.0.0"))

	d := newTestDecoder(p.Bytes())
	got, err := d.readEventPayloadFields(assemblyDef.Fields)
	if err != nil {
		t.Fatalf("readEventPayloadFields: %v", err)
	}
	if got["AssemblyFlags"] != int32(7) {
		t.Fatalf("AssemblyFlags = %v, want 7", got["AssemblyFlags"])
	}
	if got["FullyQualifiedAssemblyName"] != "MyAssembly, Version=1.0.0.0" {
		t.Fatalf("FullyQualifiedAssemblyName = %v", got["FullyQualifiedAssemblyName"])
	}
}

func TestLookupKnownEventDefinitionWildcardVersion(t *testing.T) {
	_, ok := lookupKnownEventDefinition(rundownProviderName, rundownMethodDCEndEventID, 7)
	if !ok {
		t.Fatal("rundown method record should match any version via the wildcard")
	}
	_, ok = lookupKnownEventDefinition("SomeOtherProvider", 1, 1)
	if ok {
		t.Fatal("unrelated provider/event should not match")
	}
}
