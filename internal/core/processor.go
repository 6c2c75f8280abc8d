package core

import (
	"context"
	"fmt"
	"time"

	"hybrid_copilot/internal/logger"

	"github.com/cloudwego/eino/compose"
	"github.com/google/uuid"
)

// Processor drives a session through the compiled pipeline graph
type Processor struct {
	runnable compose.Runnable[*Session, *Session]
	nodes    map[string]Node
	config   Config
	observer Observer
}

// NewProcessor builds and compiles the graph. Fixed edges run
// retriever -> planner and nl2sql -> executor -> synthesizer -> validator.
// Branches pick the route after the router, the planner and the validator;
// the validator branch is the only way back into the loop.
func NewProcessor(ctx context.Context, config Config, observer Observer, nodes ...Node) (*Processor, error) {
	p := &Processor{
		nodes:    make(map[string]Node),
		config:   config,
		observer: observer,
	}

	for _, node := range nodes {
		if err := p.addNode(node); err != nil {
			return nil, err
		}
	}
	for _, name := range []string{NodeRouter, NodeRetriever, NodePlanner, NodeNL2SQL, NodeExecutor, NodeSynthesizer, NodeValidator} {
		if _, ok := p.nodes[name]; !ok {
			return nil, fmt.Errorf("node not found: %s", name)
		}
	}

	graph := compose.NewGraph[*Session, *Session]()
	for name, node := range p.nodes {
		if err := graph.AddLambdaNode(name, compose.InvokableLambda(p.wrap(node))); err != nil {
			return nil, fmt.Errorf("error adding node %s: %w", name, err)
		}
	}

	edges := [][2]string{
		{compose.START, NodeRouter},
		{NodeRetriever, NodePlanner},
		{NodeNL2SQL, NodeExecutor},
		{NodeExecutor, NodeSynthesizer},
		{NodeSynthesizer, NodeValidator},
	}
	for _, e := range edges {
		if err := graph.AddEdge(e[0], e[1]); err != nil {
			return nil, fmt.Errorf("error adding edge %s -> %s: %w", e[0], e[1], err)
		}
	}

	branches := []struct {
		from   string
		cond   func(*Session) string
		target []string
	}{
		{NodeRouter, RouteAfterRouter, []string{NodeRetriever, NodePlanner}},
		{NodePlanner, RouteAfterPlanner, []string{NodeNL2SQL, NodeSynthesizer}},
		{NodeValidator, RouteAfterValidation, []string{NodeNL2SQL, NodeSynthesizer, compose.END}},
	}
	for _, b := range branches {
		cond := b.cond
		ends := make(map[string]bool, len(b.target))
		for _, t := range b.target {
			ends[t] = true
		}
		branch := compose.NewGraphBranch[*Session](func(ctx context.Context, s *Session) (string, error) {
			return cond(s), nil
		}, ends)
		if err := graph.AddBranch(b.from, branch); err != nil {
			return nil, fmt.Errorf("error adding branch after %s: %w", b.from, err)
		}
	}

	runnable, err := graph.Compile(ctx,
		compose.WithGraphName("hybrid_copilot"),
		compose.WithMaxRunSteps(p.maxRunSteps()),
	)
	if err != nil {
		return nil, fmt.Errorf("error compiling graph: %w", err)
	}
	p.runnable = runnable

	logger.Debug().Int("nodes", len(p.nodes)).Int("max_run_steps", p.maxRunSteps()).Msg("Pipeline graph compiled")

	return p, nil
}

func (p *Processor) addNode(node Node) error {
	if node == nil {
		return fmt.Errorf("node cannot be nil")
	}
	name := node.GetName()
	if name == "" {
		return fmt.Errorf("node name cannot be empty")
	}
	if _, dup := p.nodes[name]; dup {
		return fmt.Errorf("duplicate node: %s", name)
	}
	p.nodes[name] = node
	return nil
}

// maxRunSteps is never below the longest path the attempt and synthesis
// caps allow, so the step limit only trips on a broken cap.
func (p *Processor) maxRunSteps() int {
	// router, retriever, planner, then per pass nl2sql, executor,
	// synthesizer and validator
	bound := 3 + 4*(p.config.MaxAttempts+p.config.MaxSynthesisPasses) + 2
	if p.config.MaxRunSteps > bound {
		return p.config.MaxRunSteps
	}
	return bound
}

// wrap adapts a node to an eino lambda that logs, observes and checks the
// one-record-per-invocation trace rule
func (p *Processor) wrap(node Node) func(context.Context, *Session) (*Session, error) {
	name := node.GetName()
	return func(ctx context.Context, s *Session) (*Session, error) {
		start := time.Now()
		before := len(s.Trace)

		out, err := node.Execute(ctx, s)
		elapsed := time.Since(start)
		if p.observer != nil {
			p.observer.ObserveNode(name, elapsed.Seconds(), err)
		}

		if err != nil {
			logger.Error().Err(err).Str("run_id", s.RunID).Str("node", name).Msg("Node failed")
			return nil, fmt.Errorf("error executing node %s: %w", name, err)
		}
		if out == nil {
			return nil, fmt.Errorf("node %s returned no session", name)
		}
		if len(out.Trace) != before+1 {
			return nil, fmt.Errorf("node %s appended %d trace records, want 1", name, len(out.Trace)-before)
		}

		logger.Debug().
			Str("run_id", out.RunID).
			Str("id", out.ID).
			Str("node", name).
			Int("attempts", out.Attempts).
			Dur("duration", elapsed).
			Msg("Node executed")

		return out, nil
	}
}

// Run processes one question end to end
func (p *Processor) Run(ctx context.Context, id, question, formatHint string) (*Session, error) {
	session := NewSession(id, question, formatHint)
	session.RunID = uuid.NewString()

	logger.Info().Str("run_id", session.RunID).Str("id", id).Msg("Starting run")
	start := time.Now()

	out, err := p.runnable.Invoke(ctx, session)
	elapsed := time.Since(start)
	if err != nil {
		p.observeRun(session, elapsed, err)
		return nil, fmt.Errorf("run %s failed: %w", id, err)
	}
	p.observeRun(out, elapsed, nil)

	logger.Info().
		Str("run_id", out.RunID).
		Str("id", id).
		Str("mode", string(out.Mode)).
		Int("attempts", out.Attempts).
		Int("steps", len(out.Trace)).
		Strs("unresolved", out.Issues).
		Dur("duration", elapsed).
		Msg("Run completed")

	return out, nil
}

func (p *Processor) observeRun(s *Session, elapsed time.Duration, err error) {
	if p.observer != nil {
		p.observer.ObserveRun(s.Mode, s.Attempts, elapsed.Seconds(), err)
	}
}

// RouteAfterRouter skips retrieval for pure query questions
func RouteAfterRouter(s *Session) string {
	if s.Mode.NeedsRetrieval() {
		return NodeRetriever
	}
	return NodePlanner
}

// RouteAfterPlanner skips query generation for pure document questions
func RouteAfterPlanner(s *Session) string {
	if s.Mode.NeedsQuery() {
		return NodeNL2SQL
	}
	return NodeSynthesizer
}

// RouteAfterValidation ends a done run, repairs a failed query, and
// otherwise re-synthesizes
func RouteAfterValidation(s *Session) string {
	switch {
	case s.Done:
		return compose.END
	case s.QueryResult.Failed():
		return NodeNL2SQL
	default:
		return NodeSynthesizer
	}
}
