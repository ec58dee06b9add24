// Package ai provides the LLM and embeddings client plus response handling
// utilities for malformed model output.
package ai

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/talentsift/talentsift/internal/domain"
)

var trailingCommaRe = regexp.MustCompile(`,(\s*[}\]])`)

// CleanJSONResponse applies exactly one sanitize pass to raw model output:
// strip markdown code fences, extract the outermost {...} span, and remove
// trailing commas. No further string surgery is attempted; if the result
// still fails to decode the caller must fail closed.
func CleanJSONResponse(response string) string {
	response = stripFences(response)
	response = extractObject(response)
	response = trailingCommaRe.ReplaceAllString(response, "$1")
	return strings.TrimSpace(response)
}

func stripFences(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// extractObject returns the first balanced {...} span, or the input unchanged
// when no object is found.
func extractObject(s string) string {
	start := strings.Index(s, "{")
	if start == -1 {
		return s
	}
	depth := 0
	for i := start; i < len(s); i++ {
		switch s[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}
	return s
}

// DecodeStrict sanitizes raw model output once and decodes it into v with
// unknown fields rejected. Any failure wraps domain.ErrParse.
func DecodeStrict(raw string, v any) error {
	cleaned := CleanJSONResponse(raw)
	dec := json.NewDecoder(strings.NewReader(cleaned))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: decode llm response: %v", domain.ErrParse, err)
	}
	return nil
}

// DecodeLoose sanitizes raw model output once and decodes it into v, ignoring
// unknown fields. Used where the prompt schema allows the model to add extra
// keys (analysis payloads are stored as a superset anyway).
func DecodeLoose(raw string, v any) error {
	cleaned := CleanJSONResponse(raw)
	if err := json.Unmarshal([]byte(cleaned), v); err != nil {
		return fmt.Errorf("%w: decode llm response: %v", domain.ErrParse, err)
	}
	return nil
}
