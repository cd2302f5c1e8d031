package advisor

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
)

// Mock is a deterministic advisor for headless runs and tests. It mirrors
// the service contract: analysis flags metrics below target, optimize
// translates suggestions into changes, sizing appends a comment block
// recording the applied changes.
type Mock struct{}

var _ Advisor = (*Mock)(nil)

// Call dispatches on stage and returns a canned JSON response.
func (m *Mock) Call(_ context.Context, stage string, payload any) (string, error) {
	// round-trip through JSON so the mock sees exactly what a remote
	// service would
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal %s payload: %w", stage, err)
	}
	var p map[string]any
	if err := json.Unmarshal(data, &p); err != nil {
		return "", fmt.Errorf("mock %s payload is not an object: %w", stage, err)
	}

	var resp any
	switch stage {
	case StageAnalysis:
		resp = m.analysis(p)
	case StageOptimize:
		resp = m.optimize(p)
	case StageSizing:
		resp = m.sizing(p)
	default:
		resp = map[string]any{"text": string(data)}
	}

	out, err := json.Marshal(resp)
	if err != nil {
		return "", fmt.Errorf("failed to marshal mock %s response: %w", stage, err)
	}
	return string(out), nil
}

func (m *Mock) analysis(p map[string]any) map[string]any {
	metrics, _ := p["metrics"].(map[string]any)
	targets, _ := p["targets"].(map[string]any)

	// deterministic ordering for reproducible runs
	keys := make([]string, 0, len(metrics))
	for k := range metrics {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var reasons []string
	var suggestions []map[string]any
	for _, k := range keys {
		tgt, ok := asFloat(targets[k])
		if !ok {
			continue
		}
		v, ok := asFloat(metrics[k])
		if !ok {
			continue
		}
		if v < tgt {
			reasons = append(reasons, fmt.Sprintf("%s below target: %g < %g", k, v, tgt))
			suggestions = append(suggestions, map[string]any{
				"component": "transistor_m1",
				"param":     "width",
				"action":    "increase",
				"magnitude": "10%",
				"rationale": fmt.Sprintf("%s below target", k),
			})
		}
	}
	if reasons == nil {
		reasons = []string{}
	}
	if suggestions == nil {
		suggestions = []map[string]any{}
	}
	return map[string]any{"pass": len(reasons) == 0, "reasons": reasons, "suggestions": suggestions}
}

func (m *Mock) optimize(p map[string]any) map[string]any {
	analysis, _ := p["analysis"].(map[string]any)
	suggestions, _ := analysis["suggestions"].([]any)

	changes := make([]map[string]any, 0, len(suggestions))
	for _, s := range suggestions {
		sm, _ := s.(map[string]any)
		changes = append(changes, map[string]any{
			"component": strOr(sm["component"], "transistor_m1"),
			"param":     strOr(sm["param"], "width"),
			"action":    strOr(sm["action"], "increase"),
			"value":     strOr(sm["magnitude"], "10%"),
			"rationale": strOr(sm["rationale"], "auto-suggestion"),
		})
	}
	return map[string]any{"changes": changes}
}

func (m *Mock) sizing(p map[string]any) map[string]any {
	base, _ := p["base_netlist"].(string)
	if base == "" {
		return map[string]any{"error": "no base netlist provided"}
	}
	changes, _ := p["changes"].([]any)

	patched := base + "\n* patched netlist by mock advisor"
	for _, c := range changes {
		cm, _ := c.(map[string]any)
		patched += fmt.Sprintf("\n* change: %v %v %v %v",
			cm["component"], cm["param"], cm["action"], cm["value"])
	}
	return map[string]any{"netlist_text": patched}
}

func asFloat(v any) (float64, bool) {
	f, ok := v.(float64)
	return f, ok
}

func strOr(v any, fallback string) string {
	if s, ok := v.(string); ok && s != "" {
		return s
	}
	return fallback
}
