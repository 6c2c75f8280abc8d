package core

import (
	"context"

	"hybrid_copilot/pkg"
)

// Node represents a single state of the pipeline graph. Execute returns the
// amended session and must append exactly one trace record.
type Node interface {
	Execute(ctx context.Context, session *Session) (*Session, error)
	GetName() string
}

// Node names, also used as the "node" tag of trace records
const (
	NodeRouter      = "router"
	NodeRetriever   = "retriever"
	NodePlanner     = "planner"
	NodeNL2SQL      = "nl2sql"
	NodeExecutor    = "executor"
	NodeSynthesizer = "synthesizer"
	NodeValidator   = "validator"
)

// Session is the state of one question, owned by the processor for the
// lifetime of a run
type Session struct {
	ID         string `json:"id"`
	Question   string `json:"question"`
	FormatHint string `json:"format_hint"`
	RunID      string `json:"run_id"`

	Mode        pkg.Mode        `json:"mode"`
	Passages    []pkg.Passage   `json:"retrieved_passages"`
	Constraints string          `json:"constraints"`
	Query       string          `json:"query"`
	QueryResult pkg.QueryResult `json:"query_result"`
	Attempts    int             `json:"attempts"`
	Syntheses   int             `json:"syntheses"`

	FinalAnswer any      `json:"final_answer"`
	Citations   []string `json:"citations"`
	Confidence  float64  `json:"confidence"`
	Explanation string   `json:"explanation"`

	Issues []string         `json:"issues"`
	Done   bool             `json:"done"`
	Trace  []pkg.StepRecord `json:"trace"`
}

// NewSession creates the initial state for a question
func NewSession(id, question, formatHint string) *Session {
	if formatHint == "" {
		formatHint = "text"
	}
	return &Session{
		ID:          id,
		Question:    question,
		FormatHint:  formatHint,
		Passages:    []pkg.Passage{},
		QueryResult: pkg.QueryResult{Columns: []string{}, Rows: []map[string]any{}},
		FinalAnswer: "",
		Citations:   []string{},
		Issues:      []string{},
		Trace:       []pkg.StepRecord{},
	}
}

// Record appends a trace record for node
func (s *Session) Record(node string, fields map[string]any) {
	s.Trace = append(s.Trace, pkg.NewStepRecord(node, fields))
}

// Result converts the session to a batch output record. Issues left after
// the repair cap are surfaced as unresolved.
func (s *Session) Result() pkg.Result {
	result := pkg.Result{
		ID:          s.ID,
		Question:    s.Question,
		FinalAnswer: s.FinalAnswer,
		Citations:   s.Citations,
		Confidence:  s.Confidence,
		Explanation: s.Explanation,
		Trace:       s.Trace,
	}
	if result.Citations == nil {
		result.Citations = []string{}
	}
	if len(s.Issues) > 0 {
		result.UnresolvedIssues = append([]string(nil), s.Issues...)
	}
	return result
}

// Retriever ranks document passages for a query
type Retriever interface {
	Retrieve(ctx context.Context, query string, k int) ([]pkg.Passage, error)
}

// QueryExecutor runs structured queries. Faults are reported in the result.
type QueryExecutor interface {
	Execute(ctx context.Context, query string) pkg.QueryResult
	SchemaSummary(ctx context.Context) (string, error)
}

// Classifier labels the mode of a question. The label is not validated.
type Classifier interface {
	Classify(ctx context.Context, question string) (string, error)
}

// QueryGenerator writes a query for a question
type QueryGenerator interface {
	Generate(ctx context.Context, question, constraints, schema string) (string, error)
}

// Synthesizer composes the answer from the rendered context
type Synthesizer interface {
	Synthesize(ctx context.Context, in pkg.SynthesisInput) (pkg.SynthesisOutput, error)
}

// Config holds the orchestration limits
type Config struct {
	MaxAttempts        int
	MaxSynthesisPasses int
	MaxRunSteps        int
}

// Observer is notified after each node and run
type Observer interface {
	ObserveNode(node string, seconds float64, err error)
	ObserveRun(mode pkg.Mode, attempts int, seconds float64, err error)
}
