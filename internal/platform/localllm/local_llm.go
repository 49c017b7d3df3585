package localllm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"recipechat/internal/recipe"
)

// Defaults for an LM Studio style server on the local machine.
const (
	DefaultURL   = "http://localhost:1234/v1/chat/completions"
	DefaultModel = "gemma-3-12b-it:2"
)

// Client represents a client for an OpenAI-compatible local LLM.
type Client struct {
	httpClient *http.Client
	apiURL     string
	model      string
	log        logrus.FieldLogger
}

// NewClient creates a new client for the local LLM. Empty arguments fall back
// to DefaultURL and DefaultModel.
func NewClient(apiURL, model string, log logrus.FieldLogger) *Client {
	if apiURL == "" {
		apiURL = DefaultURL
	}
	if model == "" {
		model = DefaultModel
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Client{
		httpClient: &http.Client{Timeout: 2 * time.Minute},
		apiURL:     apiURL,
		model:      model,
		log:        log.WithField("component", "localllm"),
	}
}

// Request represents the request body for the local LLM.
type Request struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens"`
}

// Message represents a chat message.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Response represents the response from the local LLM.
type Response struct {
	Choices []Choice `json:"choices"`
}

// Choice represents a choice in the response.
type Choice struct {
	Message Message `json:"message"`
}

// GenerateContent sends a single user message to the local LLM and returns the
// reply text.
func (c *Client) GenerateContent(ctx context.Context, text string) (string, error) {
	reqBody := Request{
		Model:       c.model,
		Messages:    []Message{{Role: "user", Content: text}},
		Temperature: 0.7,
		MaxTokens:   2048,
	}

	reqBytes, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, bytes.NewBuffer(reqBytes))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("received non-OK status code: %d", resp.StatusCode)
	}

	var llmResp Response
	if err := json.NewDecoder(resp.Body).Decode(&llmResp); err != nil {
		return "", fmt.Errorf("failed to decode response body: %w", err)
	}

	if len(llmResp.Choices) == 0 {
		return "", fmt.Errorf("no content found in response")
	}

	content := llmResp.Choices[0].Message.Content
	c.log.WithField("chars", len(content)).Debug("local LLM responded")
	return content, nil
}

// GenerateRecipe generates a recipe for a free-text dish request.
func (c *Client) GenerateRecipe(ctx context.Context, query, dietaryPreference, cuisine string) (*recipe.Recipe, error) {
	responseText, err := c.GenerateContent(ctx, recipe.GenerationPrompt(query, dietaryPreference, cuisine))
	if err != nil {
		return nil, fmt.Errorf("failed to generate content: %w", err)
	}

	r, err := recipe.ParseGenerated(responseText)
	if err != nil {
		return nil, err
	}
	r.ApplyRequestFilters(dietaryPreference, cuisine)

	return r, nil
}

// EditRecipe asks the local LLM to apply e to r.
func (c *Client) EditRecipe(ctx context.Context, r *recipe.Recipe, e recipe.Edit) (*recipe.Recipe, error) {
	prompt, err := recipe.EditPrompt(r, e)
	if err != nil {
		return nil, err
	}

	responseText, err := c.GenerateContent(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("failed to generate content: %w", err)
	}
	return recipe.ParseGenerated(responseText)
}
