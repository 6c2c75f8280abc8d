package pkg

import "strings"

// Shared types for the hybrid analytics copilot

// Mode classifies how a question is answered
type Mode string

const (
	ModeRAG    Mode = "rag"    // document retrieval only
	ModeSQL    Mode = "sql"    // structured data lookup only
	ModeHybrid Mode = "hybrid" // both
)

// ParseMode normalizes a classifier output. Anything that is not a known
// mode is reported as invalid and the hybrid mode is returned.
func ParseMode(raw string) (Mode, bool) {
	switch Mode(normalize(raw)) {
	case ModeRAG:
		return ModeRAG, true
	case ModeSQL:
		return ModeSQL, true
	case ModeHybrid:
		return ModeHybrid, true
	default:
		return ModeHybrid, false
	}
}

func normalize(raw string) string {
	return strings.Trim(strings.ToLower(strings.TrimSpace(raw)), "'\"`.")
}

// NeedsRetrieval reports whether the mode uses the document corpus
func (m Mode) NeedsRetrieval() bool {
	return m == ModeRAG || m == ModeHybrid
}

// NeedsQuery reports whether the mode uses the structured dataset
func (m Mode) NeedsQuery() bool {
	return m == ModeSQL || m == ModeHybrid
}

// Passage is a citable excerpt of a source document
type Passage struct {
	ID      string  `json:"id"`     // <source base>::chunk<N>
	Source  string  `json:"source"` // file name
	Content string  `json:"content"`
	Score   float64 `json:"score"` // retrieval-time only
}

// QueryResult is the outcome of one structured query execution
type QueryResult struct {
	Columns []string         `json:"columns"`
	Rows    []map[string]any `json:"rows"`
	Error   string           `json:"error,omitempty"`
}

// Failed reports whether the execution produced an error
func (r QueryResult) Failed() bool {
	return r.Error != ""
}

// StepRecord is one entry of a run trace. Every record carries a "node" key.
type StepRecord map[string]any

// NewStepRecord creates a trace record tagged with the node name
func NewStepRecord(node string, fields map[string]any) StepRecord {
	record := StepRecord{"node": node}
	for k, v := range fields {
		record[k] = v
	}
	return record
}

// Node returns the step name of the record
func (r StepRecord) Node() string {
	name, _ := r["node"].(string)
	return name
}

// BatchInput is one line of the batch input file
type BatchInput struct {
	ID         string `json:"id"`
	Question   string `json:"question" validate:"required"`
	FormatHint string `json:"format_hint"`
}

// Result is one line of the batch output file
type Result struct {
	ID               string       `json:"id"`
	Question         string       `json:"question"`
	FinalAnswer      any          `json:"final_answer"`
	Citations        []string     `json:"citations"`
	Confidence       float64      `json:"confidence"`
	Explanation      string       `json:"explanation"`
	Trace            []StepRecord `json:"trace"`
	UnresolvedIssues []string     `json:"unresolved_issues,omitempty"`
}

// SynthesisInput is the rendered context handed to the answer synthesizer
type SynthesisInput struct {
	Question   string
	FormatHint string
	Passages   string // rendered passages
	Rows       string // rendered query results
	Query      string
}

// SynthesisOutput is the raw synthesizer answer. Citations and Confidence
// are left as text so the caller decides how to recover from bad values.
type SynthesisOutput struct {
	FinalAnswer any
	Citations   string
	Confidence  string
	Explanation string
	Structured  bool // false when the model reply was not a JSON object
}
