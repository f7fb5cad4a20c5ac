// Package suggest asks an LLM for likely knowledge-base properties for the
// source fields nobody has mapped yet. Suggestions are hints for the user,
// never applied automatically.
package suggest

import "context"

// Config represents one completion request to an LLM provider.
type Config struct {
	Model       string
	Temperature float64
	Prompt      string
}

// Provider defines the interface for an LLM provider.
type Provider interface {
	Complete(ctx context.Context, config Config) (string, error)
}
