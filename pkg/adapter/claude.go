package adapter

import (
	"context"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/m-mizutani/ermine/pkg/model"
	"github.com/m-mizutani/goerr/v2"
)

// ClaudeClient is an alternative completion backend using the Anthropic API.
type ClaudeClient struct {
	client    *anthropic.Client
	modelName anthropic.Model
	maxTokens int64
}

type ClaudeOption func(*ClaudeClient)

func WithClaudeModel(m anthropic.Model) ClaudeOption {
	return func(c *ClaudeClient) {
		c.modelName = m
	}
}

func NewClaude(apiKey string, opts ...ClaudeOption) *ClaudeClient {
	client := anthropic.NewClient(
		option.WithAPIKey(apiKey),
	)
	c := &ClaudeClient{
		client:    &client,
		modelName: anthropic.ModelClaudeSonnet4_20250514,
		maxTokens: 4096,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *ClaudeClient) Complete(ctx context.Context, messages []*model.Message) (string, error) {
	var system []anthropic.TextBlockParam
	var params []anthropic.MessageParam

	for _, msg := range messages {
		switch msg.Role {
		case model.RoleSystem:
			system = append(system, anthropic.TextBlockParam{Text: msg.Content})
		case model.RoleUser:
			params = append(params, anthropic.NewUserMessage(anthropic.NewTextBlock(msg.Content)))
		case model.RoleAssistant:
			params = append(params, anthropic.NewAssistantMessage(anthropic.NewTextBlock(msg.Content)))
		default:
			return "", goerr.New("unknown message role", goerr.V("role", msg.Role))
		}
	}

	resp, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     c.modelName,
		MaxTokens: c.maxTokens,
		System:    system,
		Messages:  params,
	})
	if err != nil {
		return "", goerr.Wrap(err, "failed to call Claude API")
	}

	var parts []string
	for _, block := range resp.Content {
		if block.Type == "text" {
			parts = append(parts, block.Text)
		}
	}
	if len(parts) == 0 {
		return "", goerr.New("no text content in Claude response")
	}
	return strings.Join(parts, "\n"), nil
}
