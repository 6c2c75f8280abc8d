package nodes

import (
	"context"
	"errors"
	"sync"

	"hybrid_copilot/internal/config"
	"hybrid_copilot/pkg"
)

type fakeClassifier struct {
	label string
	err   error
}

func (f *fakeClassifier) Classify(context.Context, string) (string, error) {
	return f.label, f.err
}

type fakeRetriever struct {
	passages []pkg.Passage
	calls    int
}

func (f *fakeRetriever) Retrieve(_ context.Context, _ string, k int) ([]pkg.Passage, error) {
	f.calls++
	if k < len(f.passages) {
		return f.passages[:k], nil
	}
	return f.passages, nil
}

// fakeGenerator returns queries in order and repeats the last one
type fakeGenerator struct {
	mu          sync.Mutex
	queries     []string
	constraints []string
}

func (f *fakeGenerator) Generate(_ context.Context, _, constraints, _ string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.constraints = append(f.constraints, constraints)
	if len(f.queries) == 0 {
		return "", errors.New("no query scripted")
	}
	i := len(f.constraints) - 1
	if i >= len(f.queries) {
		i = len(f.queries) - 1
	}
	return f.queries[i], nil
}

// fakeExecutor returns results in order and repeats the last one
type fakeExecutor struct {
	results []pkg.QueryResult
	queries []string
}

func (f *fakeExecutor) Execute(_ context.Context, query string) pkg.QueryResult {
	f.queries = append(f.queries, query)
	i := len(f.queries) - 1
	if i >= len(f.results) {
		i = len(f.results) - 1
	}
	return f.results[i]
}

func (f *fakeExecutor) SchemaSummary(context.Context) (string, error) {
	return "Table: Sales\n  - Quantity (INTEGER)\n", nil
}

type fakeSynthesizer struct {
	out    pkg.SynthesisOutput
	inputs []pkg.SynthesisInput
}

func (f *fakeSynthesizer) Synthesize(_ context.Context, in pkg.SynthesisInput) (pkg.SynthesisOutput, error) {
	f.inputs = append(f.inputs, in)
	return f.out, nil
}

func rowsResult(rows ...map[string]any) pkg.QueryResult {
	if rows == nil {
		rows = []map[string]any{}
	}
	columns := []string{}
	for _, row := range rows {
		for col := range row {
			columns = append(columns, col)
		}
		break
	}
	return pkg.QueryResult{Columns: columns, Rows: rows}
}

func errorResult(msg string) pkg.QueryResult {
	return pkg.QueryResult{Columns: []string{}, Rows: []map[string]any{}, Error: msg}
}

func testPipelineConfig() config.PipelineConfig {
	return config.DefaultYAMLConfig().Pipeline
}
