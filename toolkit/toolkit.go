// Package toolkit holds example tools built on top of the generic
// Tool / TypedTool contract in the root agentcore package. Concrete
// tool implementations (file I/O, shell commands, web access) are out
// of this module's scope; the one example tool here exists to give the
// Tool Registry's dispatch path a real tool to exercise in tests.
package toolkit

import "github.com/localllm/agentcore"

// NewToolResultError and NewToolResultText are re-exported for callers
// that only import toolkit, mirroring the teacher's re-export shim.
var (
	NewToolResultError = agentcore.NewToolResultError
	NewToolResultText  = agentcore.NewToolResultText
)
