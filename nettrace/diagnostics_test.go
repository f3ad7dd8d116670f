package nettrace

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDiagnosticsErrorNilWhenEmpty(t *testing.T) {
	trace := &Trace{}
	require.NoError(t, trace.DiagnosticsError())
}

func TestDiagnosticsErrorAggregatesAll(t *testing.T) {
	trace := &Trace{
		Diagnostics: []Diagnostic{
			{Kind: DiagnosticPaddingNotZero, Pos: 10, Message: "bad padding"},
			{Kind: DiagnosticMetadataRedefinition, Pos: 20, Message: "redefined"},
		},
	}
	err := trace.DiagnosticsError()
	require.Error(t, err)
	require.Contains(t, err.Error(), "bad padding")
	require.Contains(t, err.Error(), "redefined")
}
