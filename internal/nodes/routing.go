package nodes

import (
	"context"
	"fmt"

	"hybrid_copilot/internal/core"
	"hybrid_copilot/internal/logger"
	"hybrid_copilot/pkg"
)

const questionPreviewChars = 100

// RouterNode classifies the question into a processing mode
type RouterNode struct {
	classifier core.Classifier
}

// NewRouterNode creates a new router node
func NewRouterNode(classifier core.Classifier) *RouterNode {
	return &RouterNode{classifier: classifier}
}

// Execute sets the session mode. Labels outside rag, sql and hybrid fall
// back to hybrid; the fallback is logged and traced.
func (r *RouterNode) Execute(ctx context.Context, s *core.Session) (*core.Session, error) {
	raw, err := r.classifier.Classify(ctx, s.Question)
	if err != nil {
		return nil, fmt.Errorf("failed to classify question: %w", err)
	}

	mode, ok := pkg.ParseMode(raw)
	s.Mode = mode

	fields := map[string]any{
		"mode":             string(mode),
		"question_preview": truncate(s.Question, questionPreviewChars),
		"coerced":          !ok,
	}
	if !ok {
		fields["raw_mode"] = raw
		logger.Warn().
			Str("run_id", s.RunID).
			Str("raw_mode", raw).
			Msg("Classifier returned an unknown mode, using hybrid")
	}
	s.Record(core.NodeRouter, fields)

	return s, nil
}

// GetName returns the node name
func (r *RouterNode) GetName() string {
	return core.NodeRouter
}

// truncate cuts s to at most n runes
func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
