package nodes

import (
	"context"
	"fmt"
	"strings"

	"hybrid_copilot/internal/llm"
	"hybrid_copilot/internal/logger"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

// AgentReply is the outcome of one agent conversation
type AgentReply struct {
	Answer    string
	ToolCalls []string // tool names in call order
	Rounds    int
}

// ToolAgent lets a tool-calling model answer a question by calling the
// toolbox until it replies without tool calls
type ToolAgent struct {
	model     model.ToolCallingChatModel
	box       *Toolbox
	maxRounds int
}

// NewToolAgent binds the toolbox to the model
func NewToolAgent(cm model.ToolCallingChatModel, box *Toolbox, maxRounds int) (*ToolAgent, error) {
	if maxRounds < 1 {
		return nil, fmt.Errorf("max rounds must be at least 1, got %d", maxRounds)
	}
	bound, err := cm.WithTools(box.Infos())
	if err != nil {
		return nil, fmt.Errorf("failed to bind tools: %w", err)
	}
	return &ToolAgent{model: bound, box: box, maxRounds: maxRounds}, nil
}

// Ask runs the conversation. A failing tool call is reported back to the
// model as the tool result so it can correct itself.
func (a *ToolAgent) Ask(ctx context.Context, question string) (*AgentReply, error) {
	if strings.TrimSpace(question) == "" {
		return nil, fmt.Errorf("question cannot be empty")
	}

	messages := []*schema.Message{
		schema.SystemMessage(llm.AgentInstructions()),
		schema.UserMessage(question),
	}
	reply := &AgentReply{}

	for reply.Rounds < a.maxRounds {
		reply.Rounds++
		msg, err := a.model.Generate(ctx, messages)
		if err != nil {
			return nil, fmt.Errorf("agent generation failed: %w", err)
		}
		messages = append(messages, msg)

		if len(msg.ToolCalls) == 0 {
			reply.Answer = strings.TrimSpace(msg.Content)
			logger.Info().
				Int("rounds", reply.Rounds).
				Strs("tools", reply.ToolCalls).
				Msg("Agent answered")
			return reply, nil
		}

		for _, call := range msg.ToolCalls {
			reply.ToolCalls = append(reply.ToolCalls, call.Function.Name)
			result, err := a.box.RunCall(ctx, call)
			if err != nil {
				result = schema.ToolMessage("error: "+err.Error(), call.ID)
			}
			messages = append(messages, result)
		}
	}

	return nil, fmt.Errorf("no answer after %d rounds", a.maxRounds)
}
