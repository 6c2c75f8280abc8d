package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"hybrid_copilot/internal/logger"
	"hybrid_copilot/pkg"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
)

// transform is a compiled Template → ChatModel chain with an optional
// per-call deadline
type transform struct {
	name    string
	chain   compose.Runnable[map[string]any, *schema.Message]
	timeout time.Duration
}

func newTransform(ctx context.Context, name string, tpl prompt.ChatTemplate, cm model.BaseChatModel, timeout time.Duration) (*transform, error) {
	chain, err := compose.NewChain[map[string]any, *schema.Message]().
		AppendChatTemplate(tpl).
		AppendChatModel(cm).
		Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("error creating %s chain: %w", name, err)
	}
	return &transform{name: name, chain: chain, timeout: timeout}, nil
}

func (t *transform) invoke(ctx context.Context, vars map[string]any) (string, error) {
	if t.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}

	start := time.Now()
	out, err := t.chain.Invoke(ctx, vars)
	if err != nil {
		return "", fmt.Errorf("%s call failed: %w", t.name, err)
	}

	logger.Debug().
		Str("transform", t.name).
		Int("reply_length", len(out.Content)).
		Dur("duration", time.Since(start)).
		Msg("Model reply received")

	return out.Content, nil
}

// Classifier asks the model which mode a question needs
type Classifier struct {
	*transform
}

// NewClassifier builds the routing transform
func NewClassifier(ctx context.Context, cm model.BaseChatModel, timeout time.Duration) (*Classifier, error) {
	t, err := newTransform(ctx, "router", createRouterTemplate(), cm, timeout)
	if err != nil {
		return nil, err
	}
	return &Classifier{t}, nil
}

// Classify returns the model's mode label, unvalidated. Only the first
// non-empty line is kept and a leading "mode:" label is removed.
func (c *Classifier) Classify(ctx context.Context, question string) (string, error) {
	reply, err := c.invoke(ctx, map[string]any{"question": question})
	if err != nil {
		return "", err
	}

	for _, line := range strings.Split(reply, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if strings.HasPrefix(strings.ToLower(line), "mode:") {
			line = strings.TrimSpace(line[len("mode:"):])
		}
		return line, nil
	}
	return "", nil
}

// QueryGenerator turns a question into SQL
type QueryGenerator struct {
	*transform
}

// NewQueryGenerator builds the NL to SQL transform
func NewQueryGenerator(ctx context.Context, cm model.BaseChatModel, timeout time.Duration) (*QueryGenerator, error) {
	t, err := newTransform(ctx, "nl2sql", createNL2SQLTemplate(), cm, timeout)
	if err != nil {
		return nil, err
	}
	return &QueryGenerator{t}, nil
}

// Generate returns the query with surrounding code fences removed
func (g *QueryGenerator) Generate(ctx context.Context, question, constraints, dbSchema string) (string, error) {
	reply, err := g.invoke(ctx, map[string]any{
		"question":    question,
		"constraints": constraints,
		"db_schema":   dbSchema,
	})
	if err != nil {
		return "", err
	}
	return StripCodeFence(reply), nil
}

// Synthesizer composes the final answer
type Synthesizer struct {
	*transform
}

// NewSynthesizer builds the answer synthesis transform
func NewSynthesizer(ctx context.Context, cm model.BaseChatModel, timeout time.Duration) (*Synthesizer, error) {
	t, err := newTransform(ctx, "synthesizer", createSynthesizerTemplate(), cm, timeout)
	if err != nil {
		return nil, err
	}
	return &Synthesizer{t}, nil
}

// Synthesize returns the raw answer fields. Malformed replies are not an
// error; see pkg.SynthesisOutput.Structured.
func (s *Synthesizer) Synthesize(ctx context.Context, in pkg.SynthesisInput) (pkg.SynthesisOutput, error) {
	reply, err := s.invoke(ctx, map[string]any{
		"question":       in.Question,
		"format_hint":    in.FormatHint,
		"retrieved_docs": in.Passages,
		"sql_rows":       in.Rows,
		"sql":            in.Query,
	})
	if err != nil {
		return pkg.SynthesisOutput{}, err
	}

	out := parseSynthesis(reply)
	if !out.Structured {
		logger.Warn().Int("reply_length", len(reply)).Msg("Synthesizer reply is not JSON, using it as plain answer")
	}
	return out, nil
}
