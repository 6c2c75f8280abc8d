package nodes

import (
	"context"
	"fmt"

	"hybrid_copilot/internal/config"
	"hybrid_copilot/internal/core"
)

// Collaborators are the capabilities the pipeline states call into
type Collaborators struct {
	Retriever   core.Retriever
	Executor    core.QueryExecutor
	Classifier  core.Classifier
	Generator   core.QueryGenerator
	Synthesizer core.Synthesizer
}

// NewPipeline creates every state node and compiles the processor
func NewPipeline(ctx context.Context, cfg config.PipelineConfig, c Collaborators, observer core.Observer) (*core.Processor, error) {
	schema, err := c.Executor.SchemaSummary(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read database schema: %w", err)
	}

	return core.NewProcessor(ctx,
		core.Config{
			MaxAttempts:        cfg.MaxAttempts,
			MaxSynthesisPasses: cfg.MaxSynthesisPasses,
			MaxRunSteps:        cfg.MaxRunSteps,
		},
		observer,
		NewRouterNode(c.Classifier),
		NewRetrieverNode(c.Retriever, cfg.TopK),
		NewPlannerNode(),
		NewNL2SQLNode(c.Generator, schema),
		NewExecutorNode(c.Executor),
		NewSynthesizerNode(c.Synthesizer, cfg.SnippetChars, cfg.MaxResultRows),
		NewValidatorNode(cfg.MaxAttempts, cfg.MaxSynthesisPasses),
	)
}
