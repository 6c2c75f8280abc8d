package llm

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"hybrid_copilot/pkg"

	"github.com/bytedance/sonic"
)

// DefaultConfidence replaces confidence values that do not parse as a number
const DefaultConfidence = 0.5

const citationDelimiter = "::"

var (
	// Only known dialect names count as a language tag, so a one-line
	// fence such as ```SELECT 1``` keeps its first keyword.
	leadingFence  = regexp.MustCompile("^```(?:(?i:sqlite|sql|postgresql|postgres|mysql)(?:[ \t]*\n|[ \t]+))?")
	trailingFence = regexp.MustCompile("\n?[ \t]*```$")
)

// StripCodeFence removes a markdown code fence (three backticks with an
// optional language tag) from the start and end of s.
func StripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	s = leadingFence.ReplaceAllString(s, "")
	s = trailingFence.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}

// ParseCitations splits a comma separated citation string and keeps the
// tokens that carry the "::" delimiter. It never fails; bad input gives an
// empty list.
func ParseCitations(raw string) []string {
	citations := []string{}
	for _, tok := range strings.Split(raw, ",") {
		tok = strings.Trim(strings.TrimSpace(tok), `"'[]`)
		if strings.Contains(tok, citationDelimiter) {
			citations = append(citations, tok)
		}
	}
	return citations
}

// ParseConfidence coerces raw to a number clamped to [0, 1]. The boolean
// is false when the value did not parse and DefaultConfidence was used.
func ParseConfidence(raw string) (float64, bool) {
	value, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil || math.IsNaN(value) {
		return DefaultConfidence, false
	}
	return Clamp(value), true
}

// Clamp limits a confidence value to [0, 1]
func Clamp(value float64) float64 {
	if math.IsNaN(value) {
		return DefaultConfidence
	}
	return math.Max(0, math.Min(1, value))
}

// parseSynthesis decodes the synthesizer reply. A reply that is not a JSON
// object becomes the final answer as plain text.
func parseSynthesis(content string) pkg.SynthesisOutput {
	text := StripCodeFence(content)

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		var fields map[string]any
		if err := sonic.UnmarshalString(text[start:end+1], &fields); err == nil {
			return pkg.SynthesisOutput{
				FinalAnswer: fields["final_answer"],
				Citations:   stringify(fields["citations"]),
				Confidence:  stringify(fields["confidence"]),
				Explanation: stringify(fields["explanation"]),
				Structured:  true,
			}
		}
	}

	return pkg.SynthesisOutput{FinalAnswer: text}
}

// stringify renders a decoded JSON value as the text the parsers expect
func stringify(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	case []any:
		parts := make([]string, 0, len(val))
		for _, item := range val {
			parts = append(parts, stringify(item))
		}
		return strings.Join(parts, ", ")
	default:
		out, err := sonic.MarshalString(val)
		if err != nil {
			return ""
		}
		return out
	}
}
