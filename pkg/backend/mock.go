package backend

import (
	"context"
	"fmt"
)

// Mock returns deterministic responses for local runs and tests.
// Canned responses may be any value the normalizer accepts, so structured
// outputs can be exercised without a live provider.
type Mock struct {
	responses       map[string]any
	defaultResponse string
}

// NewMock creates a mock client with a default echo response.
func NewMock() *Mock {
	return &Mock{
		responses:       make(map[string]any),
		defaultResponse: "mock response:",
	}
}

// NewMockWithResponses creates a mock client with predefined responses
// keyed by exact request text.
func NewMockWithResponses(responses map[string]any, defaultResponse string) *Mock {
	if defaultResponse == "" {
		defaultResponse = "mock response:"
	}
	if responses == nil {
		responses = make(map[string]any)
	}
	return &Mock{responses: responses, defaultResponse: defaultResponse}
}

// Name returns the provider identifier.
func (c *Mock) Name() string {
	return "mock"
}

// Process returns the canned response for the text, or the default echo.
func (c *Mock) Process(_ context.Context, text string) (any, error) {
	if response, ok := c.responses[text]; ok {
		return response, nil
	}
	return fmt.Sprintf("%s\n%s", c.defaultResponse, text), nil
}
