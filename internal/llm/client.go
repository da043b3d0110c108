// Package llm provides a uniform chat contract over two incompatible wire
// families: the Anthropic content-block format and the OpenAI-style
// chat-completions format. Each family owns its own message-shape and
// tool-schema translation; callers only ever see the generic types below.
package llm

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"
)

// Wire-protocol families.
const (
	FamilyAnthropic        = "anthropic"
	FamilyOpenAICompatible = "openai_compatible"
)

// Message roles. Tool results travel as RoleTool messages carrying the
// originating ToolCallID; each family client rewrites them into its own
// convention.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

var (
	// ErrProviderNotConfigured means the provider code is unknown.
	ErrProviderNotConfigured = errors.New("provider not configured")
	// ErrCredentialMissing means the provider's API key is absent from the
	// environment.
	ErrCredentialMissing = errors.New("provider credential missing")
)

// ProviderCallError carries the raw provider error body for a non-success
// response. This layer never retries; callers decide.
type ProviderCallError struct {
	Provider string
	Body     string
}

func (e *ProviderCallError) Error() string {
	return fmt.Sprintf("provider %s call failed: %s", e.Provider, e.Body)
}

// ToolCall is a structured request from the model to invoke a domain tool.
// Arguments is a JSON-encoded object.
type ToolCall struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// Tool describes one entry of the tool catalog in provider-neutral form.
// Parameters is a JSON schema object.
type Tool struct {
	Name        string
	Description string
	Parameters  map[string]any
}

// Message is one provider-neutral conversation entry.
type Message struct {
	Role    string
	Content string
	// ToolCalls is set on assistant messages that invoked tools.
	ToolCalls []ToolCall
	// ToolCallID links a RoleTool result message to its originating call.
	ToolCallID string
}

// Request tunes one model invocation.
type Request struct {
	MaxTokens   int
	Temperature float64
	Tools       []Tool
}

// Usage normalizes the differently-named token counters of both families.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Response is the normalized model response shape.
type Response struct {
	Content   string
	ToolCalls []ToolCall
	Usage     Usage
	Model     string
}

// ProviderConfig is one entry of the fixed provider table.
type ProviderConfig struct {
	Code    string
	Name    string
	Model   string
	Family  string
	BaseURL string
	EnvKey  string
}

// DefaultProviderCode is used when no customer-chat provider is configured.
const DefaultProviderCode = "anthropic_claude"

var providers = map[string]ProviderConfig{
	"anthropic_claude": {
		Code:    "anthropic_claude",
		Name:    "Anthropic Claude",
		Model:   "claude-sonnet-4-20250514",
		Family:  FamilyAnthropic,
		BaseURL: "https://api.anthropic.com",
		EnvKey:  "ANTHROPIC_API_KEY",
	},
	"xai_grok": {
		Code:    "xai_grok",
		Name:    "xAI Grok",
		Model:   "grok-4",
		Family:  FamilyOpenAICompatible,
		BaseURL: "https://api.x.ai/v1",
		EnvKey:  "GROK_API_KEY",
	},
	"openai_gpt4o": {
		Code:    "openai_gpt4o",
		Name:    "OpenAI GPT-4o",
		Model:   "gpt-4o",
		Family:  FamilyOpenAICompatible,
		BaseURL: "https://api.openai.com/v1",
		EnvKey:  "OPENAI_API_KEY",
	},
	"openai_gpt4o_mini": {
		Code:    "openai_gpt4o_mini",
		Name:    "OpenAI GPT-4o Mini",
		Model:   "gpt-4o-mini",
		Family:  FamilyOpenAICompatible,
		BaseURL: "https://api.openai.com/v1",
		EnvKey:  "OPENAI_API_KEY",
	},
}

// client is one wire-family implementation.
type client interface {
	send(ctx context.Context, msgs []Message, req Request) (*Response, error)
}

// Registry resolves provider codes and dispatches calls to the matching
// family client.
type Registry struct {
	credential func(envKey string) string
	timeout    time.Duration
}

// NewRegistry creates a registry. credential defaults to os.Getenv; timeout
// bounds every outbound provider call.
func NewRegistry(credential func(string) string, timeout time.Duration) *Registry {
	if credential == nil {
		credential = os.Getenv
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Registry{credential: credential, timeout: timeout}
}

// Lookup resolves a provider code against the fixed table.
func (r *Registry) Lookup(code string) (ProviderConfig, error) {
	cfg, ok := providers[code]
	if !ok {
		return ProviderConfig{}, fmt.Errorf("%w: %s", ErrProviderNotConfigured, code)
	}
	return cfg, nil
}

// Validate checks that the code resolves and its credential is present.
func (r *Registry) Validate(code string) error {
	cfg, err := r.Lookup(code)
	if err != nil {
		return err
	}
	if r.credential(cfg.EnvKey) == "" {
		return fmt.Errorf("%w: %s (%s)", ErrCredentialMissing, cfg.Name, cfg.EnvKey)
	}
	return nil
}

// CallByCode sends one chat request through the provider selected by code
// and returns the normalized response.
func (r *Registry) CallByCode(ctx context.Context, code string, msgs []Message, req Request) (*Response, error) {
	cfg, err := r.Lookup(code)
	if err != nil {
		return nil, err
	}
	apiKey := r.credential(cfg.EnvKey)
	if apiKey == "" {
		return nil, fmt.Errorf("%w: %s (%s)", ErrCredentialMissing, cfg.Name, cfg.EnvKey)
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var c client
	switch cfg.Family {
	case FamilyAnthropic:
		c = newAnthropicClient(apiKey, cfg)
	default:
		c = newOpenAIClient(apiKey, cfg)
	}
	return c.send(ctx, msgs, req)
}

func applyDefaults(req Request) Request {
	if req.MaxTokens <= 0 {
		req.MaxTokens = 1024
	}
	if req.Temperature == 0 {
		req.Temperature = 0.7
	}
	return req
}
