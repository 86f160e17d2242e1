package analysis

import (
	"encoding/json"
	"strings"
	"testing"

	"telehealth-platform/internal/calls"
	"telehealth-platform/internal/vapi"
)

func strPtr(s string) *string { return &s }

func TestBuildResult_NoAnalysis(t *testing.T) {
	r := BuildResult(vapi.Call{ID: "c1", Status: calls.StatusEnded})
	if r.HasAnalysis || r.Summary != nil || r.SuccessEvaluation != nil || r.StructuredData != nil {
		t.Fatalf("expected empty result, got %+v", r)
	}
	if r.Complete() {
		t.Fatalf("empty result must not be complete")
	}
}

func TestBuildResult_StructuredDataParseFailureIsNonFatal(t *testing.T) {
	call := vapi.Call{ID: "c1", Analysis: &vapi.Analysis{
		Summary:           strPtr("ok"),
		SuccessEvaluation: json.RawMessage(`true`),
		StructuredData:    json.RawMessage(`"{not valid json"`),
	}}
	r := BuildResult(call)
	if r.StructuredData != nil {
		t.Fatalf("expected nil structured data, got %v", r.StructuredData)
	}
	if len(r.Errors) != 1 {
		t.Fatalf("expected one error, got %v", r.Errors)
	}
	if !r.Complete() {
		t.Fatalf("parse failure must not block persistence eligibility")
	}
}

func TestBuildResult_StructuredDataNotAnObject(t *testing.T) {
	for _, raw := range []string{`[1,2]`, `"[\"a\"]"`, `42`} {
		r := BuildResult(vapi.Call{ID: "c1", Analysis: &vapi.Analysis{StructuredData: json.RawMessage(raw)}})
		if r.StructuredData != nil {
			t.Fatalf("raw %s: expected nil structured data, got %v", raw, r.StructuredData)
		}
		if len(r.Errors) != 1 || r.Errors[0] != "structuredData is not an object" {
			t.Fatalf("raw %s: unexpected errors %v", raw, r.Errors)
		}
	}

	r := BuildResult(vapi.Call{ID: "c1", Analysis: &vapi.Analysis{StructuredData: json.RawMessage(`"{broken"`)}})
	if len(r.Errors) != 1 || !strings.HasPrefix(r.Errors[0], "structuredData parse error") {
		t.Fatalf("malformed payload must stay a parse error, got %v", r.Errors)
	}
}

func TestBuildResult_StructuredDataStringAndObject(t *testing.T) {
	for _, raw := range []string{`{"patientId":"p1"}`, `"{\"patientId\":\"p1\"}"`} {
		r := BuildResult(vapi.Call{ID: "c1", Analysis: &vapi.Analysis{StructuredData: json.RawMessage(raw)}})
		if got := r.StructuredData["patientId"]; got != "p1" {
			t.Fatalf("raw %s: expected patientId p1, got %v", raw, got)
		}
	}
}

func TestBuildResult_SuccessEvaluationPresenceEvenWhenFalse(t *testing.T) {
	r := BuildResult(vapi.Call{ID: "c1", Analysis: &vapi.Analysis{
		Summary:           strPtr("s"),
		SuccessEvaluation: json.RawMessage(`false`),
	}})
	if r.SuccessEvaluation == nil {
		t.Fatalf("expected success evaluation to be present")
	}
	if r.SuccessEvaluation.IsSuccessful {
		t.Fatalf("false must not be successful")
	}

	r = BuildResult(vapi.Call{ID: "c1", Analysis: &vapi.Analysis{
		Summary:           strPtr("s"),
		SuccessEvaluation: json.RawMessage(`"true"`),
	}})
	if r.SuccessEvaluation == nil || r.SuccessEvaluation.IsSuccessful {
		t.Fatalf("only literal true sets isSuccessful, got %+v", r.SuccessEvaluation)
	}
}

func TestLookupID(t *testing.T) {
	m := map[string]any{"patient_id": float64(42), "appointmentId": " a1 "}
	if got := lookupID(m, "patientId", "patient_id"); got != "42" {
		t.Fatalf("got %q", got)
	}
	if got := lookupID(m, "appointmentId"); got != "a1" {
		t.Fatalf("got %q", got)
	}
	if got := lookupID(m, "missing"); got != "" {
		t.Fatalf("got %q", got)
	}
}
