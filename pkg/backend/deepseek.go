package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

const (
	deepseekBaseURL      = "https://api.deepseek.com/v1"
	defaultDeepSeekModel = "deepseek-chat"
)

// DeepSeek implements Client for DeepSeek models.
// DeepSeek exposes an OpenAI-compatible API format.
type DeepSeek struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
}

// deepseekRequest is the OpenAI-compatible request format.
type deepseekRequest struct {
	Model       string            `json:"model"`
	Messages    []deepseekMessage `json:"messages"`
	MaxTokens   int               `json:"max_tokens,omitempty"`
	Temperature float64           `json:"temperature,omitempty"`
}

// deepseekMessage is a chat message.
type deepseekMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// deepseekResponse is the OpenAI-compatible response format.
type deepseekResponse struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	Created int64  `json:"created"`
	Model   string `json:"model"`
	Choices []struct {
		Index   int `json:"index"`
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code"`
	} `json:"error,omitempty"`
}

// NewDeepSeek creates a DeepSeek-backed client bound to one model.
func NewDeepSeek(apiKey, model string) (*DeepSeek, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("deepseek API key is required")
	}
	if model == "" {
		model = defaultDeepSeekModel
	}

	return &DeepSeek{
		apiKey:     apiKey,
		baseURL:    deepseekBaseURL,
		model:      model,
		httpClient: &http.Client{},
	}, nil
}

// Name returns the provider identifier.
func (c *DeepSeek) Name() string {
	return "deepseek"
}

// Process sends the text to DeepSeek and returns the response text.
func (c *DeepSeek) Process(ctx context.Context, text string) (any, error) {
	reqBody := deepseekRequest{
		Model: c.model,
		Messages: []deepseekMessage{
			{Role: "user", Content: text},
		},
		MaxTokens: 4096,
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/chat/completions", bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("deepseek API request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	var dsResp deepseekResponse
	if err := json.Unmarshal(body, &dsResp); err != nil {
		if resp.StatusCode != http.StatusOK {
			return nil, &ClientError{
				Status: resp.StatusCode,
				Err:    fmt.Errorf("deepseek API returned status %d: %s", resp.StatusCode, string(body)),
			}
		}
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	if dsResp.Error != nil {
		return nil, &ClientError{
			Status: resp.StatusCode,
			Err: fmt.Errorf("deepseek API error: %s (type: %s, code: %s)",
				dsResp.Error.Message, dsResp.Error.Type, dsResp.Error.Code),
		}
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &ClientError{
			Status: resp.StatusCode,
			Err:    fmt.Errorf("deepseek API returned status %d: %s", resp.StatusCode, string(body)),
		}
	}

	if len(dsResp.Choices) == 0 {
		return nil, fmt.Errorf("deepseek returned no choices")
	}

	return dsResp.Choices[0].Message.Content, nil
}
