package suggest

import (
	"context"
	"errors"
	"testing"

	"github.com/glam-tools/wikimapper/internal/mapping"
)

type stubProvider struct {
	reply string
	err   error
}

func (s *stubProvider) Complete(ctx context.Context, config Config) (string, error) {
	return s.reply, s.err
}

func testKeys() []mapping.KeyRecord {
	return []mapping.KeyRecord{
		{Key: "creator", Type: "string", SampleValue: "Rembrandt"},
		{Key: "materials", Type: "array", SampleValue: "canvas"},
	}
}

func TestSuggestMappings(t *testing.T) {
	provider := &stubProvider{reply: `[
		{"key": "creator", "property": "P170", "label": "creator", "confidence": 0.9},
		{"key": "materials", "property": "P186", "label": "made from material", "confidence": 0.8}
	]`}

	got := SuggestMappings(context.Background(), provider, Config{Model: "test"}, testKeys())
	if len(got) != 2 {
		t.Fatalf("expected 2 suggestions, got %d", len(got))
	}
	if got[0].PropertyID != "P170" || got[1].PropertyID != "P186" {
		t.Errorf("unexpected suggestions: %+v", got)
	}
}

func TestSuggestMappingsUnwrapsMarkdownFences(t *testing.T) {
	provider := &stubProvider{reply: "```json\n[{\"key\": \"creator\", \"property\": \"P170\", \"label\": \"creator\", \"confidence\": 0.9}]\n```"}

	got := SuggestMappings(context.Background(), provider, Config{}, testKeys())
	if len(got) != 1 || got[0].PropertyID != "P170" {
		t.Errorf("expected fenced reply to parse, got %+v", got)
	}
}

func TestSuggestMappingsDropsInvalidEntries(t *testing.T) {
	provider := &stubProvider{reply: `[
		{"key": "creator", "property": "Q5", "label": "not a property", "confidence": 0.9},
		{"key": "no_such_key", "property": "P170", "label": "creator", "confidence": 0.9},
		{"key": "materials", "property": "P186", "label": "made from material", "confidence": 0.8}
	]`}

	got := SuggestMappings(context.Background(), provider, Config{}, testKeys())
	if len(got) != 1 || got[0].Key != "materials" {
		t.Errorf("expected only the valid suggestion to survive, got %+v", got)
	}
}

func TestSuggestMappingsBestEffort(t *testing.T) {
	if got := SuggestMappings(context.Background(), &stubProvider{err: errors.New("quota")}, Config{}, testKeys()); got != nil {
		t.Errorf("provider failure should yield no suggestions, got %+v", got)
	}
	if got := SuggestMappings(context.Background(), &stubProvider{reply: "sorry, I cannot"}, Config{}, testKeys()); got != nil {
		t.Errorf("unparseable reply should yield no suggestions, got %+v", got)
	}
	if got := SuggestMappings(context.Background(), &stubProvider{}, Config{}, nil); got != nil {
		t.Errorf("no keys should yield no suggestions, got %+v", got)
	}
}
