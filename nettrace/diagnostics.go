package nettrace

import (
	"fmt"

	"github.com/hashicorp/go-multierror"
)

// DiagnosticsError aggregates t.Diagnostics into a single error for
// callers that want to treat non-fatal parse events as failures (for
// example, a strict validation mode in a CLI). Returns nil when there
// are no diagnostics.
func (t *Trace) DiagnosticsError() error {
	var result *multierror.Error
	for _, diag := range t.Diagnostics {
		result = multierror.Append(result, fmt.Errorf("%s at offset %d: %s", diag.Kind, diag.Pos, diag.Message))
	}
	return result.ErrorOrNil()
}
