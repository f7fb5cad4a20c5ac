package propcache

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
)

// Wikidata constraint vocabulary. A private Wikibase with different ids can
// remap these through the variables below.
var (
	FormatConstraintType    = "Q21502404"
	ValueTypeConstraintType = "Q21510865"

	RegexQualifier         = "P1793"
	ClassQualifier         = "P2308"
	ClarificationQualifier = "P2916"
)

const rankDeprecated = "deprecated"

// GetPropertyConstraints fetches, filters and classifies the constraint
// statements of one property. Deprecated-rank statements are excluded.
// Referenced class ids get human-readable labels through a batched entity
// lookup. On total failure the result is empty constraint sets, never an
// error: constraints improve matching, they are not required for it.
func (c *Cache) GetPropertyConstraints(ctx context.Context, id string) Constraints {
	key := cacheKey{id: id, kind: kindConstraints}
	if entry, ok := c.lookup(key); ok {
		c.augmentRecord(id, &entry.constraints, nil)
		return entry.constraints
	}

	claims, err := c.api.GetConstraintStatements(ctx, id, c.constraintProperty)
	if err != nil {
		slog.Warn("Constraint fetch failed, continuing without constraints", "property", id, "err", err)
		c.augmentRecord(id, nil, err)
		return Constraints{}
	}

	constraints := Constraints{}
	var classIDs []string
	for _, claim := range claims {
		if claim.Rank == rankDeprecated {
			continue
		}
		switch claim.TypeID {
		case FormatConstraintType:
			for _, regex := range claim.Qualifiers[RegexQualifier] {
				clarification := firstQualifier(claim.Qualifiers, ClarificationQualifier)
				constraints.Format = append(constraints.Format, FormatConstraint{
					Regex:       regex,
					Description: humanizeFormat(regex, clarification),
					Rank:        claim.Rank,
				})
			}
		case ValueTypeConstraintType:
			classes := claim.Qualifiers[ClassQualifier]
			if len(classes) == 0 {
				continue
			}
			constraints.ValueType = append(constraints.ValueType, ValueTypeConstraint{
				Classes:     classes,
				ClassLabels: make(map[string]string, len(classes)),
				Rank:        claim.Rank,
			})
			classIDs = append(classIDs, classes...)
		default:
			if claim.TypeID != "" {
				constraints.Other = append(constraints.Other, claim.TypeID)
			}
		}
	}

	c.resolveClassLabels(ctx, &constraints, classIDs)
	c.store(key, cacheEntry{constraints: constraints})
	c.augmentRecord(id, &constraints, nil)
	return constraints
}

// augmentRecord attaches the constraint-fetch outcome to the cached info
// record for id, if one exists. A caller that never asked for the property's
// info has no record to augment; the constraints themselves are cached either
// way.
func (c *Cache) augmentRecord(id string, constraints *Constraints, fetchErr error) {
	key := cacheKey{id: id, kind: kindInfo}
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[key]
	if !ok {
		return
	}
	entry.record.Constraints = constraints
	entry.record.ConstraintsFetched = fetchErr == nil
	entry.record.ConstraintsError = ""
	if fetchErr != nil {
		entry.record.ConstraintsError = fetchErr.Error()
	}
	c.entries[key] = entry
}

// resolveClassLabels fills ClassLabels for every value-type constraint. The
// wikibase client chunks the lookup to the API's per-call entity limit.
// Failure leaves the ids unlabeled; the ids themselves still work as filters.
func (c *Cache) resolveClassLabels(ctx context.Context, constraints *Constraints, classIDs []string) {
	if len(classIDs) == 0 {
		return
	}
	entities, err := c.api.GetEntities(ctx, dedupe(classIDs))
	if err != nil {
		slog.Warn("Class label lookup failed", "count", len(classIDs), "err", err)
		return
	}
	for i := range constraints.ValueType {
		for _, classID := range constraints.ValueType[i].Classes {
			if entity, ok := entities[classID]; ok && entity.Label != "" {
				constraints.ValueType[i].ClassLabels[classID] = entity.Label
			}
		}
	}
}

func firstQualifier(qualifiers map[string][]string, prop string) string {
	if values := qualifiers[prop]; len(values) > 0 {
		return values[0]
	}
	return ""
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// Pattern recognizers for common format-constraint regexes. Checked before
// falling back to the remote clarification text.
var (
	htmlExclusionPattern  = regexp.MustCompile(`\[\^.*[<>].*\]`)
	positiveIntPattern    = regexp.MustCompile(`^\^?\\?d\+\$?$|^\^?\[1-9\]\\d\*\$?$`)
	urlLikePattern        = regexp.MustCompile(`^\^?https?`)
	genericFormatTemplate = "value must match pattern %s"
)

// humanizeFormat turns a constraint regex into a short human explanation.
func humanizeFormat(regex, clarification string) string {
	switch {
	case htmlExclusionPattern.MatchString(regex):
		return "value must not contain HTML tags"
	case positiveIntPattern.MatchString(strings.TrimSpace(regex)):
		return "value must be a positive integer"
	case urlLikePattern.MatchString(strings.TrimSpace(regex)):
		return "value must be a valid URL"
	case clarification != "":
		return clarification
	default:
		return fmt.Sprintf(genericFormatTemplate, regex)
	}
}
