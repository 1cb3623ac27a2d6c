package adapter

import (
	"context"
	"strings"

	"github.com/m-mizutani/ermine/pkg/model"
	"github.com/m-mizutani/goerr/v2"
	"google.golang.org/genai"
)

// GeminiClient provides both embedding and completion via Vertex AI.
type GeminiClient struct {
	client          *genai.Client
	generativeModel string
	embeddingModel  string
}

type GeminiOption func(*GeminiClient)

func WithGenerativeModel(m string) GeminiOption {
	return func(g *GeminiClient) {
		g.generativeModel = m
	}
}

func WithEmbeddingModel(m string) GeminiOption {
	return func(g *GeminiClient) {
		g.embeddingModel = m
	}
}

func NewGemini(ctx context.Context, projectID, location string, opts ...GeminiOption) (*GeminiClient, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		Project:  projectID,
		Location: location,
		Backend:  genai.BackendVertexAI,
	})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create genai client")
	}

	g := &GeminiClient{
		client:          client,
		generativeModel: "gemini-2.5-flash",
		embeddingModel:  "gemini-embedding-001",
	}

	for _, opt := range opts {
		opt(g)
	}

	return g, nil
}

// Embed returns the embedding vector of text.
func (g *GeminiClient) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := g.client.Models.EmbedContent(ctx, g.embeddingModel, genai.Text(text), &genai.EmbedContentConfig{})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to embed content")
	}
	if len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Values) == 0 {
		return nil, goerr.New("empty embedding response")
	}
	return resp.Embeddings[0].Values, nil
}

// Complete generates a reply for the conversation. The leading system
// message becomes the system instruction; user and assistant messages map
// to the user and model roles.
func (g *GeminiClient) Complete(ctx context.Context, messages []*model.Message) (string, error) {
	var config genai.GenerateContentConfig
	var contents []*genai.Content

	for _, msg := range messages {
		switch msg.Role {
		case model.RoleSystem:
			config.SystemInstruction = genai.NewContentFromText(msg.Content, "")
		case model.RoleUser:
			contents = append(contents, genai.NewContentFromText(msg.Content, genai.RoleUser))
		case model.RoleAssistant:
			contents = append(contents, genai.NewContentFromText(msg.Content, genai.RoleModel))
		default:
			return "", goerr.New("unknown message role", goerr.V("role", msg.Role))
		}
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.generativeModel, contents, &config)
	if err != nil {
		return "", goerr.Wrap(err, "failed to generate content")
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", goerr.New("no completion candidates")
	}

	var parts []string
	for _, part := range resp.Candidates[0].Content.Parts {
		if part.Text != "" {
			parts = append(parts, part.Text)
		}
	}
	return strings.Join(parts, "\n"), nil
}
