package nodes

import (
	"context"
	"fmt"
	"sort"

	"hybrid_copilot/internal/logger"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"
)

// Toolbox dispatches tool calls by name
type Toolbox struct {
	tools map[string]tool.InvokableTool
	infos []*schema.ToolInfo
}

// NewToolbox indexes tools by the name in their info
func NewToolbox(ctx context.Context, tools ...tool.InvokableTool) (*Toolbox, error) {
	box := &Toolbox{tools: make(map[string]tool.InvokableTool, len(tools))}
	for _, t := range tools {
		info, err := t.Info(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to read tool info: %w", err)
		}
		if _, dup := box.tools[info.Name]; dup {
			return nil, fmt.Errorf("duplicate tool: %s", info.Name)
		}
		box.tools[info.Name] = t
		box.infos = append(box.infos, info)
	}
	sort.Slice(box.infos, func(i, j int) bool { return box.infos[i].Name < box.infos[j].Name })
	return box, nil
}

// Infos returns the tool descriptions, sorted by name, for binding to a
// tool-calling model
func (b *Toolbox) Infos() []*schema.ToolInfo {
	return b.infos
}

// Run invokes the named tool with JSON arguments and returns its JSON result
func (b *Toolbox) Run(ctx context.Context, name, arguments string) (string, error) {
	t, ok := b.tools[name]
	if !ok {
		return "", fmt.Errorf("tool not found: %s", name)
	}

	out, err := t.InvokableRun(ctx, arguments)
	if err != nil {
		logger.Error().Err(err).Str("tool", name).Msg("Tool failed")
		return "", fmt.Errorf("tool %s failed: %w", name, err)
	}

	logger.Debug().Str("tool", name).Int("result_length", len(out)).Msg("Tool executed")
	return out, nil
}

// RunCall executes a tool call emitted by a chat model
func (b *Toolbox) RunCall(ctx context.Context, call schema.ToolCall) (*schema.Message, error) {
	out, err := b.Run(ctx, call.Function.Name, call.Function.Arguments)
	if err != nil {
		return nil, err
	}
	return schema.ToolMessage(out, call.ID), nil
}
