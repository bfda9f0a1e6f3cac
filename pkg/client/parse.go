package client

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/menta2k/composition-guide/pkg/types"
)

var (
	reBlock    = regexp.MustCompile(`(?s)/\*.*?\*/`)
	reLine     = regexp.MustCompile(`(?m)^\s*//.*$`)
	reInline   = regexp.MustCompile(`(?m)//.*$`)
	reTrailing = regexp.MustCompile(`,(\s*[}\]])`)
)

// ParseDetectionResult decodes the JSON a vision model produced.
// Output that cannot be decoded yields an empty object list tagged as a
// fallback, so the frame is treated as one with nothing detected.
func ParseDetectionResult(raw string) *types.DetectionResult {
	raw = SanitizeModelJSON(raw)

	if !strings.HasPrefix(raw, "{") {
		return fallbackResult("Model returned non-JSON response", "non-json")
	}

	var result types.DetectionResult
	if err := json.Unmarshal([]byte(raw), &result); err != nil {
		return fallbackResult("Failed to parse model response", "parse-error")
	}
	if result.Objects == nil {
		result.Objects = []types.Object{}
	}
	return &result
}

func fallbackResult(description, tag string) *types.DetectionResult {
	return &types.DetectionResult{
		Objects:     []types.Object{},
		Description: description,
		Tags:        []string{tag, "fallback"},
	}
}

// SanitizeModelJSON removes code fences, comments, and trailing commas from a model response
func SanitizeModelJSON(raw string) string {
	raw = strings.TrimSpace(raw)

	// Strip triple-backtick fences if present
	if strings.HasPrefix(raw, "```") {
		if i := strings.Index(raw, "\n"); i >= 0 {
			raw = raw[i+1:]
		}
		if j := strings.LastIndex(raw, "```"); j >= 0 {
			raw = raw[:j]
		}
	}
	raw = strings.TrimSpace(raw)
	raw = strings.Trim(raw, "`")

	raw = reBlock.ReplaceAllString(raw, "")
	raw = reLine.ReplaceAllString(raw, "")
	raw = reInline.ReplaceAllString(raw, "")
	raw = reTrailing.ReplaceAllString(raw, "$1")

	// Keep only the outermost {...}
	if start := strings.Index(raw, "{"); start >= 0 {
		if end := strings.LastIndex(raw, "}"); end > start {
			raw = raw[start : end+1]
		}
	}
	return strings.TrimSpace(raw)
}
