package nodes

import (
	"context"
	"fmt"
	"strings"

	"hybrid_copilot/internal/core"
	"hybrid_copilot/internal/llm"
	"hybrid_copilot/internal/logger"
	"hybrid_copilot/pkg"

	"github.com/bytedance/sonic"
)

// SynthesizerNode composes the answer from passages and query rows
type SynthesizerNode struct {
	synthesizer  core.Synthesizer
	snippetChars int
	maxRows      int
}

// NewSynthesizerNode creates a new synthesizer node
func NewSynthesizerNode(synthesizer core.Synthesizer, snippetChars, maxRows int) *SynthesizerNode {
	return &SynthesizerNode{
		synthesizer:  synthesizer,
		snippetChars: snippetChars,
		maxRows:      maxRows,
	}
}

// Execute sets the answer fields. Bad citation or confidence values fall
// back to safe defaults and the fallback is traced.
func (n *SynthesizerNode) Execute(ctx context.Context, s *core.Session) (*core.Session, error) {
	out, err := n.synthesizer.Synthesize(ctx, pkg.SynthesisInput{
		Question:   s.Question,
		FormatHint: s.FormatHint,
		Passages:   RenderPassages(s.Passages, n.snippetChars),
		Rows:       RenderRows(s.QueryResult, n.maxRows),
		Query:      s.Query,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to synthesize answer: %w", err)
	}
	s.Syntheses++

	parsedCitations := llm.ParseCitations(out.Citations)
	citationsDefaulted := len(parsedCitations) == 0 && strings.Trim(out.Citations, " \t\n\"'[]") != ""
	citations, dropped := filterCitations(parsedCitations, s.Passages)
	confidence, parsed := llm.ParseConfidence(out.Confidence)

	s.FinalAnswer = out.FinalAnswer
	s.Citations = citations
	s.Confidence = confidence
	s.Explanation = out.Explanation

	fields := map[string]any{
		"confidence":    confidence,
		"num_citations": len(citations),
	}
	if !parsed {
		fields["confidence_defaulted"] = true
		fields["raw_confidence"] = out.Confidence
	}
	if citationsDefaulted {
		fields["citations_defaulted"] = true
		fields["raw_citations"] = out.Citations
	}
	if len(dropped) > 0 {
		fields["dropped_citations"] = dropped
	}
	if !out.Structured {
		fields["unstructured_reply"] = true
	}
	if !parsed || citationsDefaulted || len(dropped) > 0 {
		logger.Warn().
			Str("run_id", s.RunID).
			Bool("confidence_defaulted", !parsed).
			Bool("citations_defaulted", citationsDefaulted).
			Strs("dropped_citations", dropped).
			Msg("Synthesizer output repaired")
	}
	s.Record(core.NodeSynthesizer, fields)

	return s, nil
}

// GetName returns the node name
func (n *SynthesizerNode) GetName() string {
	return core.NodeSynthesizer
}

// RenderPassages formats passages for the synthesizer prompt
func RenderPassages(passages []pkg.Passage, snippetChars int) string {
	if len(passages) == 0 {
		return "No documents retrieved"
	}
	parts := make([]string, 0, len(passages))
	for _, p := range passages {
		parts = append(parts, fmt.Sprintf("[%s] %s...", p.ID, truncate(p.Content, snippetChars)))
	}
	return strings.Join(parts, "\n\n")
}

// RenderRows formats the first maxRows rows as indented JSON
func RenderRows(result pkg.QueryResult, maxRows int) string {
	if result.Failed() {
		return "SQL Error: " + result.Error
	}
	if len(result.Rows) == 0 {
		return "No SQL results"
	}
	rows := result.Rows
	if len(rows) > maxRows {
		rows = rows[:maxRows]
	}
	out, err := sonic.ConfigStd.MarshalIndent(rows, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", rows)
	}
	return string(out)
}

// filterCitations keeps the ids of retrieved passages, in order, without
// duplicates
func filterCitations(citations []string, passages []pkg.Passage) (kept, dropped []string) {
	known := make(map[string]bool, len(passages))
	for _, p := range passages {
		known[p.ID] = true
	}
	seen := make(map[string]bool, len(citations))
	kept = []string{}
	for _, c := range citations {
		switch {
		case seen[c]:
		case known[c]:
			kept = append(kept, c)
		default:
			dropped = append(dropped, c)
		}
		seen[c] = true
	}
	return kept, dropped
}
