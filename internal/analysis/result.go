package analysis

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"telehealth-platform/internal/vapi"
)

// Result is the normalized view of a vendor analysis. It is built once per
// call and never mutated afterwards.
type Result struct {
	HasAnalysis       bool               `json:"hasAnalysis"`
	Summary           *string            `json:"summary"`
	StructuredData    map[string]any     `json:"structuredData"`
	SuccessEvaluation *SuccessEvaluation `json:"successEvaluation"`

	// Errors holds non-fatal problems found while normalizing.
	Errors []string `json:"errors,omitempty"`
}

// SuccessEvaluation keeps the vendor's raw judgement next to a strict
// boolean reading of it: only a literal true counts as successful here.
type SuccessEvaluation struct {
	IsSuccessful bool            `json:"isSuccessful"`
	Value        json.RawMessage `json:"value"`
}

// Complete reports whether the result carries everything persistence needs.
func (r Result) Complete() bool {
	return r.HasAnalysis && r.Summary != nil && r.SuccessEvaluation != nil
}

// BuildResult normalizes the analysis attached to a call.
func BuildResult(call vapi.Call) Result {
	out := Result{HasAnalysis: call.HasAnalysis()}
	if !out.HasAnalysis {
		return out
	}
	a := call.Analysis

	out.Summary = a.Summary

	if vapi.Present(a.StructuredData) {
		data, err := parseStructuredData(a.StructuredData)
		if err != nil {
			out.Errors = append(out.Errors, err.Error())
		} else {
			out.StructuredData = data
		}
	}

	if vapi.Present(a.SuccessEvaluation) {
		var literal bool
		isTrue := json.Unmarshal(a.SuccessEvaluation, &literal) == nil && literal
		out.SuccessEvaluation = &SuccessEvaluation{
			IsSuccessful: isTrue,
			Value:        append(json.RawMessage(nil), a.SuccessEvaluation...),
		}
	}
	return out
}

// parseStructuredData accepts either a JSON object or a string holding one.
func parseStructuredData(raw json.RawMessage) (map[string]any, error) {
	payload := []byte(raw)
	if trimmed := strings.TrimSpace(string(raw)); strings.HasPrefix(trimmed, `"`) {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, fmt.Errorf("structuredData parse error: %v", err)
		}
		payload = []byte(s)
	}
	var out map[string]any
	if err := json.Unmarshal(payload, &out); err != nil {
		if json.Valid(payload) {
			return nil, errors.New("structuredData is not an object")
		}
		return nil, fmt.Errorf("structuredData parse error: %v", err)
	}
	return out, nil
}

// lookupID returns the first non-empty value for any of keys.
func lookupID(m map[string]any, keys ...string) string {
	for _, k := range keys {
		v, ok := m[k]
		if !ok || v == nil {
			continue
		}
		var s string
		switch t := v.(type) {
		case string:
			s = t
		case float64:
			s = fmt.Sprintf("%.0f", t)
		default:
			s = fmt.Sprint(t)
		}
		if s = strings.TrimSpace(s); s != "" {
			return s
		}
	}
	return ""
}
