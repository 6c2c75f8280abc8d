package nodes

import (
	"context"
	"strings"
	"testing"

	"hybrid_copilot/internal/core"
	"hybrid_copilot/pkg"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var samplePassages = []pkg.Passage{
	{
		ID:      "marketing_calendar::chunk1",
		Source:  "marketing_calendar.md",
		Content: "## Summer Beverages 1997\nDates: June 1997 to july 1997. Focus on beverages.",
	},
	{
		ID:      "kpi_definitions::chunk1",
		Source:  "kpi_definitions.md",
		Content: "## Average Order Value\nFormula: SUM(UnitPrice * Quantity) / COUNT(DISTINCT OrderID)",
	},
	{
		ID:      "product_policy::chunk1",
		Source:  "product_policy.md",
		Content: "Returns are accepted within 14 days for unopened beverages.",
	},
}

func TestExtractConstraints(t *testing.T) {
	got := ExtractConstraints(samplePassages)

	assert.Equal(t,
		"Relevant dates: June 1997, july 1997; KPI formula found in kpi_definitions.md",
		got)
	assert.Equal(t, got, ExtractConstraints(samplePassages))
}

func TestExtractConstraintsFallback(t *testing.T) {
	assert.Equal(t, NoConstraints, ExtractConstraints(nil))
	assert.Equal(t, NoConstraints, ExtractConstraints(samplePassages[2:]))
}

func TestExtractConstraintsSelectMarker(t *testing.T) {
	got := ExtractConstraints([]pkg.Passage{{Source: "kpi.md", Content: "Use SELECT COUNT(*) FROM Orders in March 1997"}})
	assert.Equal(t, "Relevant dates: March 1997; KPI formula found in kpi.md", got)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		session func(s *core.Session)
		want    []string
	}{
		{
			name: "valid sql number",
			session: func(s *core.Session) {
				s.Mode, s.FormatHint, s.FinalAnswer = pkg.ModeSQL, "number", "$1,234.50"
				s.QueryResult = rowsResult(map[string]any{"n": 1})
			},
			want: []string{},
		},
		{
			name: "numeric answer value",
			session: func(s *core.Session) {
				s.Mode, s.FormatHint, s.FinalAnswer = pkg.ModeSQL, "number", 42.5
				s.QueryResult = rowsResult(map[string]any{"n": 1})
			},
			want: []string{},
		},
		{
			name: "not a number",
			session: func(s *core.Session) {
				s.Mode, s.FormatHint, s.FinalAnswer = pkg.ModeSQL, "number", "about twelve"
				s.QueryResult = rowsResult(map[string]any{"n": 1})
			},
			want: []string{"Answer should be a number"},
		},
		{
			name: "hybrid with failed query reports every issue",
			session: func(s *core.Session) {
				s.Mode, s.FinalAnswer = pkg.ModeHybrid, "unknown"
				s.QueryResult = errorResult("no such table: Foo")
			},
			want: []string{"Missing citations", "SQL error: no such table: Foo", "SQL returned no rows"},
		},
		{
			name: "rag ignores the query",
			session: func(s *core.Session) {
				s.Mode, s.FinalAnswer = pkg.ModeRAG, "14 days"
				s.Citations = []string{"product_policy::chunk1"}
			},
			want: []string{},
		},
		{
			name: "unserializable answer",
			session: func(s *core.Session) {
				s.Mode, s.FinalAnswer = pkg.ModeRAG, make(chan int)
				s.Citations = []string{"product_policy::chunk1"}
			},
			want: []string{"Answer is not JSON serializable"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := core.NewSession("q1", "question", "")
			tt.session(s)
			assert.Equal(t, tt.want, Validate(s))
		})
	}
}

func TestValidatorNodeDone(t *testing.T) {
	node := NewValidatorNode(2, 3)
	ctx := context.Background()

	s := core.NewSession("q1", "question", "")
	s.Mode = pkg.ModeSQL
	s.QueryResult = errorResult("syntax error")
	s.Attempts = 1
	s, err := node.Execute(ctx, s)
	require.NoError(t, err)
	assert.False(t, s.Done)

	s.Attempts = 2
	s, err = node.Execute(ctx, s)
	require.NoError(t, err)
	assert.True(t, s.Done)
	assert.NotEmpty(t, s.Issues)
	require.Len(t, s.Trace, 2)
	assert.Equal(t, true, s.Trace[1]["done"])
	assert.Equal(t, 2, s.Trace[1]["attempts"])
}

func TestRouterNode(t *testing.T) {
	tests := []struct {
		label   string
		mode    pkg.Mode
		coerced bool
	}{
		{"sql", pkg.ModeSQL, false},
		{" RAG. ", pkg.ModeRAG, false},
		{"Hybrid", pkg.ModeHybrid, false},
		{"banana", pkg.ModeHybrid, true},
		{"", pkg.ModeHybrid, true},
	}
	for _, tt := range tests {
		node := NewRouterNode(&fakeClassifier{label: tt.label})
		s, err := node.Execute(context.Background(), core.NewSession("q1", "How many?", ""))
		require.NoError(t, err)

		assert.Equal(t, tt.mode, s.Mode, tt.label)
		require.Len(t, s.Trace, 1)
		assert.Equal(t, tt.coerced, s.Trace[0]["coerced"], tt.label)
		if tt.coerced {
			assert.Equal(t, tt.label, s.Trace[0]["raw_mode"])
		}
	}
}

func TestSynthesizerNodeConfidence(t *testing.T) {
	tests := []struct {
		raw       string
		want      float64
		defaulted bool
	}{
		{"1.5", 1.0, false},
		{"abc", 0.5, true},
		{"", 0.5, true},
		{"-3", 0.0, false},
		{"0.42", 0.42, false},
	}
	for _, tt := range tests {
		node := NewSynthesizerNode(&fakeSynthesizer{out: pkg.SynthesisOutput{FinalAnswer: "x", Confidence: tt.raw}}, 200, 5)
		s, err := node.Execute(context.Background(), core.NewSession("q1", "question", ""))
		require.NoError(t, err)

		assert.Equal(t, tt.want, s.Confidence, tt.raw)
		_, traced := s.Trace[0]["confidence_defaulted"]
		assert.Equal(t, tt.defaulted, traced, tt.raw)
	}
}

func TestSynthesizerNodeCitations(t *testing.T) {
	synth := &fakeSynthesizer{out: pkg.SynthesisOutput{
		FinalAnswer: "see docs",
		Citations:   "doca::chunk1, not-a-citation, docb::chunk2, docz::chunk9, doca::chunk1",
		Confidence:  "0.7",
	}}
	node := NewSynthesizerNode(synth, 200, 5)

	s := core.NewSession("q1", "question", "")
	s.Passages = []pkg.Passage{
		{ID: "doca::chunk1", Source: "doca.md", Content: "alpha"},
		{ID: "docb::chunk2", Source: "docb.md", Content: "beta"},
	}
	s, err := node.Execute(context.Background(), s)
	require.NoError(t, err)

	assert.Equal(t, []string{"doca::chunk1", "docb::chunk2"}, s.Citations)
	assert.Equal(t, []string{"docz::chunk9"}, s.Trace[0]["dropped_citations"])
	assert.Equal(t, 1, s.Syntheses)
	require.Len(t, synth.inputs, 1)
	assert.Equal(t, "[doca::chunk1] alpha...\n\n[docb::chunk2] beta...", synth.inputs[0].Passages)
	assert.Equal(t, "No SQL results", synth.inputs[0].Rows)
}

func TestSynthesizerNodeCitationsDefaulted(t *testing.T) {
	cases := map[string]bool{
		"see the calendar document": true,
		"":                          false,
		"[]":                        false,
		"doca::chunk1":              false,
	}
	for raw, defaulted := range cases {
		synth := &fakeSynthesizer{out: pkg.SynthesisOutput{FinalAnswer: "x", Citations: raw, Confidence: "0.5"}}
		s := core.NewSession("q1", "question", "")
		s.Passages = []pkg.Passage{{ID: "doca::chunk1", Source: "doca.md", Content: "alpha"}}

		s, err := NewSynthesizerNode(synth, 200, 5).Execute(context.Background(), s)
		require.NoError(t, err, raw)

		entry := s.Trace[0]
		if defaulted {
			assert.Empty(t, s.Citations, raw)
			assert.Equal(t, true, entry["citations_defaulted"], raw)
			assert.Equal(t, raw, entry["raw_citations"], raw)
		} else {
			assert.NotContains(t, entry, "citations_defaulted", raw)
			assert.NotContains(t, entry, "raw_citations", raw)
		}
	}
}

func TestRenderPassages(t *testing.T) {
	assert.Equal(t, "No documents retrieved", RenderPassages(nil, 200))

	long := strings.Repeat("é", 300)
	out := RenderPassages([]pkg.Passage{{ID: "a::chunk1", Content: long}}, 200)
	assert.Equal(t, "[a::chunk1] "+strings.Repeat("é", 200)+"...", out)
}

func TestRenderRows(t *testing.T) {
	assert.Equal(t, "SQL Error: boom", RenderRows(errorResult("boom"), 5))
	assert.Equal(t, "No SQL results", RenderRows(rowsResult(), 5))

	var rows []map[string]any
	for i := 0; i < 8; i++ {
		rows = append(rows, map[string]any{"n": i})
	}
	out := RenderRows(rowsResult(rows...), 5)
	assert.Contains(t, out, `"n": 4`)
	assert.NotContains(t, out, `"n": 5`)
	assert.True(t, strings.HasPrefix(out, "[\n  {"))
}
