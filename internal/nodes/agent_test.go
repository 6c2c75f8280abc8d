package nodes

import (
	"context"
	"errors"
	"testing"

	"hybrid_copilot/pkg"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedModel replies in order and records every conversation it sees
type scriptedModel struct {
	replies []*schema.Message
	bound   []*schema.ToolInfo
	seen    [][]*schema.Message
}

func (m *scriptedModel) Generate(_ context.Context, input []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	m.seen = append(m.seen, append([]*schema.Message(nil), input...))
	if len(m.seen) > len(m.replies) {
		return nil, errors.New("no reply scripted")
	}
	return m.replies[len(m.seen)-1], nil
}

func (m *scriptedModel) Stream(context.Context, []*schema.Message, ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, errors.New("streaming not supported")
}

func (m *scriptedModel) WithTools(tools []*schema.ToolInfo) (model.ToolCallingChatModel, error) {
	m.bound = tools
	return m, nil
}

func toolCallMessage(id, name, args string) *schema.Message {
	return schema.AssistantMessage("", []schema.ToolCall{{
		ID:       id,
		Function: schema.FunctionCall{Name: name, Arguments: args},
	}})
}

func TestToolAgentCallsToolsThenAnswers(t *testing.T) {
	exec := &fakeExecutor{results: []pkg.QueryResult{rowsResult(map[string]any{"units": 22})}}
	box := newTestToolbox(t, exec)
	cm := &scriptedModel{replies: []*schema.Message{
		toolCallMessage("call_1", ToolSQLQuery, `{"query": "SELECT SUM(Quantity) AS units FROM Sales"}`),
		schema.AssistantMessage(" 22 units were sold. ", nil),
	}}

	agent, err := NewToolAgent(cm, box, 3)
	require.NoError(t, err)
	assert.Equal(t, box.Infos(), cm.bound)

	reply, err := agent.Ask(context.Background(), "Total units sold?")
	require.NoError(t, err)
	assert.Equal(t, "22 units were sold.", reply.Answer)
	assert.Equal(t, []string{ToolSQLQuery}, reply.ToolCalls)
	assert.Equal(t, 2, reply.Rounds)
	assert.Equal(t, []string{"SELECT SUM(Quantity) AS units FROM Sales"}, exec.queries)

	require.Len(t, cm.seen, 2)
	last := cm.seen[1][len(cm.seen[1])-1]
	assert.Equal(t, schema.Tool, last.Role)
	assert.Equal(t, "call_1", last.ToolCallID)
	assert.Contains(t, last.Content, `"units":22`)
}

func TestToolAgentReportsToolErrorsToModel(t *testing.T) {
	box := newTestToolbox(t, &fakeExecutor{results: []pkg.QueryResult{rowsResult()}})
	cm := &scriptedModel{replies: []*schema.Message{
		toolCallMessage("call_1", "drop_tables", `{}`),
		schema.AssistantMessage("I cannot do that.", nil),
	}}

	agent, err := NewToolAgent(cm, box, 3)
	require.NoError(t, err)

	reply, err := agent.Ask(context.Background(), "Drop everything")
	require.NoError(t, err)
	assert.Equal(t, "I cannot do that.", reply.Answer)

	last := cm.seen[1][len(cm.seen[1])-1]
	assert.Equal(t, "call_1", last.ToolCallID)
	assert.Equal(t, "error: tool not found: drop_tables", last.Content)
}

func TestToolAgentStopsAfterMaxRounds(t *testing.T) {
	box := newTestToolbox(t, &fakeExecutor{results: []pkg.QueryResult{rowsResult()}})
	cm := &scriptedModel{replies: []*schema.Message{
		toolCallMessage("call_1", ToolSchema, `{}`),
		toolCallMessage("call_2", ToolSchema, `{}`),
	}}

	agent, err := NewToolAgent(cm, box, 2)
	require.NoError(t, err)

	_, err = agent.Ask(context.Background(), "Loop forever")
	assert.EqualError(t, err, "no answer after 2 rounds")
	assert.Len(t, cm.seen, 2)
}

func TestToolAgentRejectsBadInput(t *testing.T) {
	box := newTestToolbox(t, &fakeExecutor{results: []pkg.QueryResult{rowsResult()}})

	_, err := NewToolAgent(&scriptedModel{}, box, 0)
	assert.Error(t, err)

	agent, err := NewToolAgent(&scriptedModel{}, box, 1)
	require.NoError(t, err)
	_, err = agent.Ask(context.Background(), "   ")
	assert.Error(t, err)

	_, err = agent.Ask(context.Background(), "anything")
	assert.ErrorContains(t, err, "no reply scripted")
}
