package llm

import (
	"context"
	"encoding/json"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// anthropicClient speaks the Anthropic content-block format. The system
// message is hoisted to the top-level system field, assistant tool calls
// become tool_use blocks and tool results become user tool_result blocks.
type anthropicClient struct {
	client *anthropic.Client
	cfg    ProviderConfig
}

func newAnthropicClient(apiKey string, cfg ProviderConfig) *anthropicClient {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	return &anthropicClient{
		client: anthropic.NewClient(opts...),
		cfg:    cfg,
	}
}

func (c *anthropicClient) send(ctx context.Context, msgs []Message, req Request) (*Response, error) {
	req = applyDefaults(req)

	system, messages := toAnthropicMessages(msgs)

	params := anthropic.MessageNewParams{
		Model:     anthropic.F(c.cfg.Model),
		MaxTokens: anthropic.F(int64(req.MaxTokens)),
		Messages:  anthropic.F(messages),
	}
	if system != "" {
		params.System = anthropic.F([]anthropic.TextBlockParam{
			{
				Type: anthropic.F(anthropic.TextBlockParamTypeText),
				Text: anthropic.F(system),
			},
		})
	}
	if len(req.Tools) > 0 {
		params.Tools = anthropic.F(toAnthropicTools(req.Tools))
	}

	resp, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return nil, &ProviderCallError{Provider: c.cfg.Code, Body: err.Error()}
	}

	return fromAnthropicMessage(resp, c.cfg.Model), nil
}

// toAnthropicMessages splits out the system prompt and rewrites the generic
// message list into Anthropic block-structured messages. Plain strings are
// promoted to single text blocks so the list stays structurally consistent
// once any tool exchange has introduced block content.
func toAnthropicMessages(msgs []Message) (string, []anthropic.MessageParam) {
	var system string
	out := make([]anthropic.MessageParam, 0, len(msgs))

	for _, m := range msgs {
		switch m.Role {
		case RoleSystem:
			system = m.Content
		case RoleAssistant:
			blocks := make([]anthropic.ContentBlockParamUnion, 0, 1+len(m.ToolCalls))
			if m.Content != "" {
				blocks = append(blocks, textBlock(m.Content))
			}
			for _, tc := range m.ToolCalls {
				blocks = append(blocks, anthropic.ToolUseBlockParam{
					Type:  anthropic.F(anthropic.ToolUseBlockParamTypeToolUse),
					ID:    anthropic.F(tc.ID),
					Name:  anthropic.F(tc.Name),
					Input: anthropic.F[interface{}](json.RawMessage(tc.Arguments)),
				})
			}
			out = append(out, anthropic.MessageParam{
				Role:    anthropic.F(anthropic.MessageParamRoleAssistant),
				Content: anthropic.F(blocks),
			})
		case RoleTool:
			out = append(out, anthropic.MessageParam{
				Role: anthropic.F(anthropic.MessageParamRoleUser),
				Content: anthropic.F([]anthropic.ContentBlockParamUnion{
					anthropic.ToolResultBlockParam{
						Type:      anthropic.F(anthropic.ToolResultBlockParamTypeToolResult),
						ToolUseID: anthropic.F(m.ToolCallID),
						Content: anthropic.F([]anthropic.ToolResultBlockParamContentUnion{
							anthropic.ToolResultBlockParamContent{
								Type: anthropic.F(anthropic.ToolResultBlockParamContentTypeText),
								Text: anthropic.F(m.Content),
							},
						}),
					},
				}),
			})
		default:
			out = append(out, anthropic.MessageParam{
				Role:    anthropic.F(anthropic.MessageParamRoleUser),
				Content: anthropic.F([]anthropic.ContentBlockParamUnion{textBlock(m.Content)}),
			})
		}
	}

	return system, out
}

func textBlock(text string) anthropic.TextBlockParam {
	return anthropic.TextBlockParam{
		Type: anthropic.F(anthropic.TextBlockParamTypeText),
		Text: anthropic.F(text),
	}
}

// toAnthropicTools translates the generic tool catalog into the Anthropic
// {name, description, input_schema} shape.
func toAnthropicTools(tools []Tool) []anthropic.ToolParam {
	out := make([]anthropic.ToolParam, 0, len(tools))
	for _, t := range tools {
		out = append(out, anthropic.ToolParam{
			Name:        anthropic.F(t.Name),
			Description: anthropic.F(t.Description),
			InputSchema: anthropic.F[interface{}](t.Parameters),
		})
	}
	return out
}

// fromAnthropicMessage normalizes a response: text blocks populate Content,
// tool_use blocks become generic tool calls with JSON-stringified arguments,
// and input/output token counters map onto the prompt/completion shape.
func fromAnthropicMessage(msg *anthropic.Message, fallbackModel string) *Response {
	out := &Response{
		Model: msg.Model,
		Usage: Usage{
			PromptTokens:     int(msg.Usage.InputTokens),
			CompletionTokens: int(msg.Usage.OutputTokens),
			TotalTokens:      int(msg.Usage.InputTokens + msg.Usage.OutputTokens),
		},
	}
	if out.Model == "" {
		out.Model = fallbackModel
	}

	for _, block := range msg.Content {
		switch block.Type {
		case anthropic.ContentBlockTypeText:
			out.Content += block.Text
		case anthropic.ContentBlockTypeToolUse:
			out.ToolCalls = append(out.ToolCalls, ToolCall{
				ID:        block.ID,
				Name:      block.Name,
				Arguments: string(block.Input),
			})
		}
	}
	return out
}
