package suggest

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/glam-tools/wikimapper/internal/mapping"
)

// Suggestion proposes a property for one source field.
type Suggestion struct {
	Key        string  `json:"key"`
	PropertyID string  `json:"property"`
	Label      string  `json:"label"`
	Reason     string  `json:"reason,omitempty"`
	Confidence float64 `json:"confidence"`
}

var propertyIDShape = regexp.MustCompile(`^P\d+$`)

const promptTemplate = `You map museum collection metadata fields to Wikidata properties.
For each field below, suggest the most likely Wikidata property id.
Reply with a JSON array only, no prose. Each element:
{"key": "<field>", "property": "P...", "label": "<property label>", "confidence": <0..1>, "reason": "<short reason>"}
Omit fields you cannot map confidently.

Fields:
%s`

// SuggestMappings asks the provider for property suggestions covering the
// given keys. Best effort: provider failures and unusable replies log a
// warning and yield no suggestions.
func SuggestMappings(ctx context.Context, provider Provider, cfg Config, keys []mapping.KeyRecord) []Suggestion {
	if len(keys) == 0 {
		return nil
	}

	var fields strings.Builder
	for _, k := range keys {
		fmt.Fprintf(&fields, "- %s (type %s, e.g. %q)\n", k.Key, k.Type, k.SampleValue)
	}
	cfg.Prompt = fmt.Sprintf(promptTemplate, fields.String())

	reply, err := provider.Complete(ctx, cfg)
	if err != nil {
		slog.Warn("Mapping suggestion request failed", "err", err)
		return nil
	}
	return parseSuggestions(reply, keys)
}

// parseSuggestions extracts valid suggestions from the model reply. Replies
// wrapped in markdown fences are unwrapped; suggestions for unknown keys or
// with malformed property ids are dropped.
func parseSuggestions(reply string, keys []mapping.KeyRecord) []Suggestion {
	known := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		known[k.Key] = struct{}{}
	}

	cleaned := strings.TrimSpace(reply)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")
	cleaned = strings.TrimSpace(cleaned)

	var raw []Suggestion
	if err := json.Unmarshal([]byte(cleaned), &raw); err != nil {
		slog.Warn("Discarding unparseable suggestion reply", "err", err)
		return nil
	}

	var out []Suggestion
	for _, s := range raw {
		if _, ok := known[s.Key]; !ok {
			slog.Debug("Dropping suggestion for unknown key", "key", s.Key)
			continue
		}
		if !propertyIDShape.MatchString(s.PropertyID) {
			slog.Debug("Dropping suggestion with malformed property id", "key", s.Key, "property", s.PropertyID)
			continue
		}
		out = append(out, s)
	}
	return out
}
