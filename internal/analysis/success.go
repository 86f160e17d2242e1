package analysis

import (
	"encoding/json"
	"strings"
)

// Phrase lists for the success-text heuristic. This is keyword matching,
// nothing more: failure phrases always win, and text with neither class of
// phrase counts as unsuccessful.
var (
	successPhrases = []string{
		"successful",
		"successfully",
		"completed successfully",
		"gathered the necessary information",
		"all required areas",
	}
	failurePhrases = []string{
		"unsuccessful",
		"not successful",
		"failed",
		"incomplete",
		"missing information",
		"missing",
		"unclear",
		"insufficient",
	}
)

// ClassifySuccessText applies the keyword heuristic to free text.
func ClassifySuccessText(text string) bool {
	lower := strings.ToLower(text)
	hasSuccess := containsAny(lower, successPhrases)
	hasFailure := containsAny(lower, failurePhrases)
	return hasSuccess && !hasFailure
}

// ClassifySuccessEvaluation reads a raw vendor success evaluation. Booleans
// and "true"/"false" strings are taken literally; other text goes through
// ClassifySuccessText.
func ClassifySuccessEvaluation(raw json.RawMessage) bool {
	var b bool
	if err := json.Unmarshal(raw, &b); err == nil {
		return b
	}
	text := SuccessText(raw)
	switch strings.ToLower(strings.TrimSpace(text)) {
	case "true":
		return true
	case "false":
		return false
	}
	return ClassifySuccessText(text)
}

// SuccessText renders a raw success evaluation as text.
func SuccessText(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return strings.TrimSpace(string(raw))
}

func containsAny(s string, phrases []string) bool {
	for _, p := range phrases {
		if strings.Contains(s, p) {
			return true
		}
	}
	return false
}
