// Package advisor is the boundary to the external advisory service.
//
// One optimization iteration makes three staged calls: "analysis" (judge the
// measured metrics against targets), "optimize" (propose concrete component
// changes), and "sizing" (produce a full replacement netlist). The service
// returns loosely structured text; extraction and normalization into the
// canonical record types here happen before any business logic sees the
// response.
package advisor

import (
	"context"
)

// Stage names for Advisor.Call.
const (
	StageAnalysis = "analysis"
	StageOptimize = "optimize"
	StageSizing   = "sizing"
)

// Advisor sends one staged request and returns the raw response text.
//
// The response may be a bare JSON object, JSON wrapped in code fences or
// prose, or several concatenated objects; callers run it through the Decode
// functions, which own extraction and validation.
type Advisor interface {
	Call(ctx context.Context, stage string, payload any) (string, error)
}
