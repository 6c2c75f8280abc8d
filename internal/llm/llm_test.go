package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	"hybrid_copilot/internal/config"
	"hybrid_copilot/pkg"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeChatModel replies with a fixed text and remembers the last prompt
type fakeChatModel struct {
	reply string
	err   error
	delay time.Duration
	last  []*schema.Message
}

func (f *fakeChatModel) Generate(ctx context.Context, input []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	f.last = input
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return schema.AssistantMessage(f.reply, nil), nil
}

func (f *fakeChatModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	msg, err := f.Generate(ctx, input, opts...)
	if err != nil {
		return nil, err
	}
	return schema.StreamReaderFromArray([]*schema.Message{msg}), nil
}

func TestStripCodeFence(t *testing.T) {
	cases := map[string]string{
		"```sql\nSELECT 1\n```":   "SELECT 1",
		"```\nSELECT 1\n```":      "SELECT 1",
		"SELECT 1":                "SELECT 1",
		"  ```sqlite SELECT 1```": "SELECT 1",
		"SELECT 1\n```":           "SELECT 1",
		"```SELECT 1```":          "SELECT 1",
		"```SQL\nSELECT 1\n```":   "SELECT 1",
		"```select a FROM t```":   "select a FROM t",
		"```sqlfoo```":            "sqlfoo",
	}
	for in, want := range cases {
		assert.Equal(t, want, StripCodeFence(in), in)
	}

	cte := "WITH x AS (SELECT 1) SELECT * FROM x"
	assert.Equal(t, cte, StripCodeFence("```"+cte+"```"))
}

func TestParseCitations(t *testing.T) {
	got := ParseCitations("doca::chunk1, not-a-citation, docb::chunk2")
	assert.Equal(t, []string{"doca::chunk1", "docb::chunk2"}, got)

	assert.Equal(t, []string{}, ParseCitations(""))
	assert.Equal(t, []string{}, ParseCitations("none"))
	assert.Equal(t, []string{"a::chunk1"}, ParseCitations(`["a::chunk1"]`))
}

func TestParseConfidence(t *testing.T) {
	value, ok := ParseConfidence("1.5")
	assert.True(t, ok)
	assert.Equal(t, 1.0, value)

	value, ok = ParseConfidence("abc")
	assert.False(t, ok)
	assert.Equal(t, 0.5, value)

	value, ok = ParseConfidence("-0.2")
	assert.True(t, ok)
	assert.Equal(t, 0.0, value)

	value, ok = ParseConfidence(" 0.75 ")
	assert.True(t, ok)
	assert.Equal(t, 0.75, value)

	value, ok = ParseConfidence("NaN")
	assert.False(t, ok)
	assert.Equal(t, 0.5, value)
}

func TestParseSynthesis(t *testing.T) {
	out := parseSynthesis("```json\n{\"final_answer\": 42, \"citations\": [\"a::chunk1\", \"b::chunk2\"], \"confidence\": 0.9, \"explanation\": \"sum\"}\n```")

	assert.True(t, out.Structured)
	assert.Equal(t, float64(42), out.FinalAnswer)
	assert.Equal(t, "a::chunk1, b::chunk2", out.Citations)
	assert.Equal(t, "0.9", out.Confidence)
	assert.Equal(t, "sum", out.Explanation)
}

func TestParseSynthesisPlainText(t *testing.T) {
	out := parseSynthesis("The answer is 42.")

	assert.False(t, out.Structured)
	assert.Equal(t, "The answer is 42.", out.FinalAnswer)
	assert.Empty(t, out.Citations)
	assert.Empty(t, out.Confidence)
}

func TestClassifier(t *testing.T) {
	ctx := context.Background()
	fake := &fakeChatModel{reply: "\nMode: sql\nbecause numbers"}

	c, err := NewClassifier(ctx, fake, 0)
	require.NoError(t, err)

	mode, err := c.Classify(ctx, "Total units sold in March?")
	require.NoError(t, err)
	assert.Equal(t, "sql", mode)

	require.Len(t, fake.last, 2)
	assert.Equal(t, schema.System, fake.last[0].Role)
	assert.Contains(t, fake.last[1].Content, "Total units sold in March?")
}

func TestQueryGeneratorStripsFence(t *testing.T) {
	ctx := context.Background()
	fake := &fakeChatModel{reply: "```sql\nSELECT SUM(Quantity) FROM \"Order Details\"\n```"}

	g, err := NewQueryGenerator(ctx, fake, 0)
	require.NoError(t, err)

	query, err := g.Generate(ctx, "units?", "Relevant dates: March 1997", "Table: Orders")
	require.NoError(t, err)
	assert.Equal(t, `SELECT SUM(Quantity) FROM "Order Details"`, query)
	assert.Contains(t, fake.last[0].Content, "Table: Orders")
	assert.Contains(t, fake.last[1].Content, "Relevant dates: March 1997")
}

func TestSynthesizer(t *testing.T) {
	ctx := context.Background()
	fake := &fakeChatModel{reply: `{"final_answer": "14", "citations": "kpi::chunk1", "confidence": "0.8", "explanation": "from rows"}`}

	s, err := NewSynthesizer(ctx, fake, 0)
	require.NoError(t, err)

	out, err := s.Synthesize(ctx, pkg.SynthesisInput{
		Question:   "q",
		FormatHint: "number",
		Passages:   "[kpi::chunk1] AOV = ...",
		Rows:       `[{"n": 14}]`,
		Query:      "SELECT 14 AS n",
	})
	require.NoError(t, err)
	assert.Equal(t, "14", out.FinalAnswer)
	assert.Equal(t, "kpi::chunk1", out.Citations)
	assert.Equal(t, "0.8", out.Confidence)
	assert.Contains(t, fake.last[1].Content, `[{"n": 14}]`)
}

func TestTransformError(t *testing.T) {
	ctx := context.Background()
	c, err := NewClassifier(ctx, &fakeChatModel{err: errors.New("connection refused")}, 0)
	require.NoError(t, err)

	_, err = c.Classify(ctx, "q")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestTransformTimeout(t *testing.T) {
	ctx := context.Background()
	c, err := NewClassifier(ctx, &fakeChatModel{reply: "sql", delay: time.Second}, 10*time.Millisecond)
	require.NoError(t, err)

	_, err = c.Classify(ctx, "q")
	assert.Error(t, err)
}

func TestNewChatModelUnknownProvider(t *testing.T) {
	_, err := NewChatModel(context.Background(), config.LLMConfig{Provider: "bogus"})
	assert.Error(t, err)
}

func TestNewChatModelOllama(t *testing.T) {
	m, err := NewChatModel(context.Background(), config.LLMConfig{Provider: "ollama", Model: "phi3.5", MaxTokens: 100})
	require.NoError(t, err)
	assert.NotNil(t, m)
}
