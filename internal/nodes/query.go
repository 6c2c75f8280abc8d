package nodes

import (
	"context"
	"fmt"

	"hybrid_copilot/internal/core"
	"hybrid_copilot/internal/logger"
)

// NL2SQLNode generates the structured query
type NL2SQLNode struct {
	generator core.QueryGenerator
	schema    string
}

// NewNL2SQLNode creates a new query generation node. schema is the
// executor's schema summary, passed verbatim to the generator.
func NewNL2SQLNode(generator core.QueryGenerator, schema string) *NL2SQLNode {
	return &NL2SQLNode{generator: generator, schema: schema}
}

// Execute stores a new query. On a repair pass the previous error is added
// to the constraints for this call only.
func (n *NL2SQLNode) Execute(ctx context.Context, s *core.Session) (*core.Session, error) {
	constraints := s.Constraints
	repair := s.Attempts > 0
	if repair {
		constraints += fmt.Sprintf(" Previous SQL failed with: %s. Please fix the SQL.", s.QueryResult.Error)
		logger.Debug().Str("run_id", s.RunID).Int("attempts", s.Attempts).Msg("Repairing query")
	}

	query, err := n.generator.Generate(ctx, s.Question, constraints, n.schema)
	if err != nil {
		return nil, fmt.Errorf("failed to generate query: %w", err)
	}
	s.Query = query

	s.Record(core.NodeNL2SQL, map[string]any{
		"sql":     query,
		"attempt": s.Attempts + 1,
		"repair":  repair,
	})

	return s, nil
}

// GetName returns the node name
func (n *NL2SQLNode) GetName() string {
	return core.NodeNL2SQL
}

// ExecutorNode runs the current query
type ExecutorNode struct {
	executor core.QueryExecutor
}

// NewExecutorNode creates a new executor node
func NewExecutorNode(executor core.QueryExecutor) *ExecutorNode {
	return &ExecutorNode{executor: executor}
}

// Execute stores the query result and counts the attempt, whether or not
// the query succeeded
func (e *ExecutorNode) Execute(ctx context.Context, s *core.Session) (*core.Session, error) {
	s.QueryResult = e.executor.Execute(ctx, s.Query)
	s.Attempts++

	var errField any
	if s.QueryResult.Failed() {
		errField = s.QueryResult.Error
		logger.Warn().
			Str("run_id", s.RunID).
			Int("attempts", s.Attempts).
			Str("error", s.QueryResult.Error).
			Msg("Query failed")
	}
	s.Record(core.NodeExecutor, map[string]any{
		"success":  !s.QueryResult.Failed(),
		"num_rows": len(s.QueryResult.Rows),
		"error":    errField,
	})

	return s, nil
}

// GetName returns the node name
func (e *ExecutorNode) GetName() string {
	return core.NodeExecutor
}
