package nodes

import (
	"context"
	"fmt"

	"hybrid_copilot/internal/core"
	"hybrid_copilot/pkg"
)

// RetrieverNode fetches the passages most relevant to the question
type RetrieverNode struct {
	retriever core.Retriever
	topK      int
}

// NewRetrieverNode creates a new retriever node
func NewRetrieverNode(retriever core.Retriever, topK int) *RetrieverNode {
	return &RetrieverNode{retriever: retriever, topK: topK}
}

// Execute stores the ranked passages in arrival order
func (r *RetrieverNode) Execute(ctx context.Context, s *core.Session) (*core.Session, error) {
	passages, err := r.retriever.Retrieve(ctx, s.Question, r.topK)
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve passages: %w", err)
	}
	if passages == nil {
		passages = []pkg.Passage{}
	}
	s.Passages = passages

	ids := make([]string, 0, len(passages))
	for _, p := range passages {
		ids = append(ids, p.ID)
	}
	s.Record(core.NodeRetriever, map[string]any{
		"num_chunks": len(passages),
		"chunk_ids":  ids,
	})

	return s, nil
}

// GetName returns the node name
func (r *RetrieverNode) GetName() string {
	return core.NodeRetriever
}
