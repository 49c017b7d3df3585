package gemini

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"recipechat/internal/recipe"
)

// ErrEmptyResponse is returned when Gemini answers without any usable text.
var ErrEmptyResponse = errors.New("empty response from Gemini")

// Client is a client for the Gemini API.
type Client struct {
	client   *genai.Client
	model    *genai.GenerativeModel
	embedder *genai.EmbeddingModel
}

// NewClient creates a new Gemini client for the given generation and
// embedding models.
func NewClient(ctx context.Context, apiKey, model, embeddingModel string) (*Client, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, err
	}

	gm := client.GenerativeModel(model)
	gm.ResponseMIMEType = "application/json"
	gm.SetTemperature(0.7)

	em := client.EmbeddingModel(embeddingModel)
	em.TaskType = genai.TaskTypeSemanticSimilarity

	return &Client{client: client, model: gm, embedder: em}, nil
}

// Close releases the underlying connection.
func (c *Client) Close() error {
	return c.client.Close()
}

// GenerateRecipe generates a recipe for a free-text dish request.
func (c *Client) GenerateRecipe(ctx context.Context, query, dietaryPreference, cuisine string) (*recipe.Recipe, error) {
	text, err := c.generate(ctx, recipe.GenerationPrompt(query, dietaryPreference, cuisine))
	if err != nil {
		return nil, err
	}

	r, err := recipe.ParseGenerated(text)
	if err != nil {
		return nil, err
	}
	r.ApplyRequestFilters(dietaryPreference, cuisine)

	return r, nil
}

// EditRecipe asks Gemini to apply e to r and returns the revised recipe.
// r itself is not modified.
func (c *Client) EditRecipe(ctx context.Context, r *recipe.Recipe, e recipe.Edit) (*recipe.Recipe, error) {
	prompt, err := recipe.EditPrompt(r, e)
	if err != nil {
		return nil, err
	}

	text, err := c.generate(ctx, prompt)
	if err != nil {
		return nil, err
	}
	return recipe.ParseGenerated(text)
}

// Embed returns the embedding vector for text.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	res, err := c.embedder.EmbedContent(ctx, genai.Text(text))
	if err != nil {
		return nil, fmt.Errorf("failed to embed content: %w", err)
	}
	if res == nil || res.Embedding == nil || len(res.Embedding.Values) == 0 {
		return nil, fmt.Errorf("%w: no embedding values", ErrEmptyResponse)
	}
	return res.Embedding.Values, nil
}

func (c *Client) generate(ctx context.Context, prompt string) (string, error) {
	resp, err := c.model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", err
	}
	return responseText(resp)
}

// responseText concatenates the text parts of the first candidate.
func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil ||
		len(resp.Candidates[0].Content.Parts) == 0 {
		return "", ErrEmptyResponse
	}

	var out string
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			out += string(text)
		}
	}
	if out == "" {
		return "", fmt.Errorf("unexpected response format from Gemini: %w", ErrEmptyResponse)
	}
	return out, nil
}
