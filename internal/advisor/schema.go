package advisor

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// FlexString decodes a JSON string, number or bool into its string form.
// Advisory models are inconsistent about quoting change values ("10%" vs 2e-6).
type FlexString string

// UnmarshalJSON implements json.Unmarshaler.
func (f *FlexString) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*f = FlexString(s)
		return nil
	}
	var n float64
	if err := json.Unmarshal(data, &n); err == nil {
		*f = FlexString(strconv.FormatFloat(n, 'g', -1, 64))
		return nil
	}
	var b bool
	if err := json.Unmarshal(data, &b); err == nil {
		*f = FlexString(strconv.FormatBool(b))
		return nil
	}
	return fmt.Errorf("value is not a string, number or bool: %s", string(data))
}

// Suggestion is one edit the analysis stage recommends investigating.
type Suggestion struct {
	Component string     `json:"component"`
	Param     string     `json:"param"`
	Action    string     `json:"action"`
	Magnitude FlexString `json:"magnitude,omitempty"`
	Rationale string     `json:"rationale,omitempty"`
}

// Analysis is the canonical, validated form of the "analysis" stage
// response.
type Analysis struct {
	Pass        bool         `json:"pass"`
	Reasons     []string     `json:"reasons"`
	Suggestions []Suggestion `json:"suggestions"`
}

// Change is one concrete parameter edit from the "optimize" stage.
type Change struct {
	Component string     `json:"component"`
	Param     string     `json:"param"`
	Action    string     `json:"action"`
	Value     FlexString `json:"value,omitempty"`
	Rationale string     `json:"rationale,omitempty"`
}

// ChangeSet is the canonical form of the "optimize" stage response.
type ChangeSet struct {
	Changes []Change `json:"changes"`
}

// Sizing is the canonical form of the "sizing" stage response. NetlistText
// may legitimately be empty: the service can decline to produce an edit.
type Sizing struct {
	NetlistText string `json:"netlist_text"`
	Notes       string `json:"notes,omitempty"`
}

// DecodeAnalysis extracts and validates an analysis response. It is the
// single normalization point: whatever shape the service returned, business
// logic only ever sees a checked Analysis value.
func DecodeAnalysis(text string) (*Analysis, error) {
	raw, err := ExtractJSON(text)
	if err != nil {
		return nil, fmt.Errorf("analysis response: %w", err)
	}

	// "pass" must be present and boolean; probe before decoding so a
	// missing flag is distinguishable from an explicit false
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(raw, &probe); err != nil {
		return nil, fmt.Errorf("analysis response is not a JSON object: %w", err)
	}
	passRaw, ok := probe["pass"]
	if !ok {
		return nil, fmt.Errorf("analysis response missing required field %q", "pass")
	}
	var pass bool
	if err := json.Unmarshal(passRaw, &pass); err != nil {
		return nil, fmt.Errorf("analysis %q field is not a boolean: %w", "pass", err)
	}

	var a Analysis
	if err := json.Unmarshal(raw, &a); err != nil {
		return nil, fmt.Errorf("malformed analysis response: %w", err)
	}
	for i, s := range a.Suggestions {
		if err := requireFields("suggestion", i, s.Component, s.Param, s.Action); err != nil {
			return nil, err
		}
	}
	if a.Reasons == nil {
		a.Reasons = []string{}
	}
	if a.Suggestions == nil {
		a.Suggestions = []Suggestion{}
	}
	return &a, nil
}

// DecodeOptimize extracts and validates an optimize response.
func DecodeOptimize(text string) (*ChangeSet, error) {
	raw, err := ExtractJSON(text)
	if err != nil {
		return nil, fmt.Errorf("optimize response: %w", err)
	}

	var probe map[string]json.RawMessage
	if err := json.Unmarshal(raw, &probe); err != nil {
		return nil, fmt.Errorf("optimize response is not a JSON object: %w", err)
	}
	if _, ok := probe["changes"]; !ok {
		return nil, fmt.Errorf("optimize response missing required field %q", "changes")
	}

	var cs ChangeSet
	if err := json.Unmarshal(raw, &cs); err != nil {
		return nil, fmt.Errorf("malformed optimize response: %w", err)
	}
	for i, c := range cs.Changes {
		if err := requireFields("change", i, c.Component, c.Param, c.Action); err != nil {
			return nil, err
		}
	}
	if cs.Changes == nil {
		cs.Changes = []Change{}
	}
	return &cs, nil
}

// DecodeSizing extracts and validates a sizing response. An empty
// netlist_text is valid; callers decide what an absent edit means.
func DecodeSizing(text string) (*Sizing, error) {
	raw, err := ExtractJSON(text)
	if err != nil {
		return nil, fmt.Errorf("sizing response: %w", err)
	}

	var s Sizing
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("malformed sizing response: %w", err)
	}
	return &s, nil
}

func requireFields(kind string, idx int, component, param, action string) error {
	var missing []string
	if component == "" {
		missing = append(missing, "component")
	}
	if param == "" {
		missing = append(missing, "param")
	}
	if action == "" {
		missing = append(missing, "action")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%s[%d] missing required fields: %s", kind, idx, strings.Join(missing, ", "))
	}
	return nil
}
