package backend

import "context"

// Client is the single capability every backend exposes to the router:
// given request text, produce a response or fail.
type Client interface {
	// Process sends the request text to the model and returns its raw
	// output. The result is a bare string for most providers, but may be
	// any structured value carrying a content field; the router
	// normalizes both shapes.
	Process(ctx context.Context, text string) (any, error)

	// Name returns the provider identifier (e.g. "anthropic").
	Name() string
}
