package propcache

import (
	"context"
	"testing"
	"time"

	"github.com/glam-tools/wikimapper/internal/wikibase"
)

func TestGetPropertyConstraintsClassifies(t *testing.T) {
	api := newFakeAPI()
	api.claims = map[string][]wikibase.ConstraintClaim{
		"P50": {
			{
				TypeID: FormatConstraintType,
				Rank:   "normal",
				Qualifiers: map[string][]string{
					RegexQualifier: {`[^<>]+`},
				},
			},
			{
				TypeID: ValueTypeConstraintType,
				Rank:   "preferred",
				Qualifiers: map[string][]string{
					ClassQualifier: {"Q5"},
				},
			},
			{
				// deprecated statements never participate
				TypeID: FormatConstraintType,
				Rank:   "deprecated",
				Qualifiers: map[string][]string{
					RegexQualifier: {`\d+`},
				},
			},
			{
				TypeID: "Q21503250",
				Rank:   "normal",
			},
		},
	}
	cache := New(api, time.Hour, "P2302")

	constraints := cache.GetPropertyConstraints(context.Background(), "P50")

	if len(constraints.Format) != 1 {
		t.Fatalf("expected 1 format constraint, got %d", len(constraints.Format))
	}
	if constraints.Format[0].Description != "value must not contain HTML tags" {
		t.Errorf("unexpected humanized description: %q", constraints.Format[0].Description)
	}
	if len(constraints.ValueType) != 1 {
		t.Fatalf("expected 1 value-type constraint, got %d", len(constraints.ValueType))
	}
	if constraints.ValueType[0].ClassLabels["Q5"] != "human" {
		t.Errorf("expected resolved class label, got %v", constraints.ValueType[0].ClassLabels)
	}
	if len(constraints.Other) != 1 || constraints.Other[0] != "Q21503250" {
		t.Errorf("unrecognized type should land in other, got %v", constraints.Other)
	}
}

func TestGetPropertyConstraintsCached(t *testing.T) {
	api := newFakeAPI()
	api.claims = map[string][]wikibase.ConstraintClaim{}
	cache := New(api, time.Hour, "P2302")

	cache.GetPropertyConstraints(context.Background(), "P50")
	cache.GetPropertyConstraints(context.Background(), "P50")
	if api.claimCalls != 1 {
		t.Errorf("expected 1 constraint fetch within TTL, got %d", api.claimCalls)
	}
}

func TestGetPropertyConstraintsDegradesOnFailure(t *testing.T) {
	api := newFakeAPI()
	api.failClaims = true
	cache := New(api, time.Hour, "P2302")

	constraints := cache.GetPropertyConstraints(context.Background(), "P50")
	if len(constraints.Format) != 0 || len(constraints.ValueType) != 0 || len(constraints.Other) != 0 {
		t.Errorf("expected empty constraint sets on total failure, got %+v", constraints)
	}
}

func TestGetPropertyConstraintsAugmentsCachedRecord(t *testing.T) {
	api := newFakeAPI()
	api.claims = map[string][]wikibase.ConstraintClaim{
		"P50": {
			{
				TypeID: ValueTypeConstraintType,
				Rank:   "normal",
				Qualifiers: map[string][]string{
					ClassQualifier: {"Q5"},
				},
			},
		},
	}
	cache := New(api, time.Hour, "P2302")

	before, err := cache.GetPropertyInfo(context.Background(), "P50")
	if err != nil {
		t.Fatalf("GetPropertyInfo: %v", err)
	}
	if before.ConstraintsFetched || before.Constraints != nil {
		t.Fatalf("record should start without constraint data: %+v", before)
	}

	cache.GetPropertyConstraints(context.Background(), "P50")

	after, err := cache.GetPropertyInfo(context.Background(), "P50")
	if err != nil {
		t.Fatalf("GetPropertyInfo: %v", err)
	}
	if !after.ConstraintsFetched || after.ConstraintsError != "" {
		t.Errorf("expected a clean constraint fetch on the record, got %+v", after)
	}
	if after.Constraints == nil || len(after.Constraints.ValueType) != 1 {
		t.Errorf("expected attached value-type constraints, got %+v", after.Constraints)
	}
	if api.entityCalls != 2 {
		t.Errorf("augmentation must not cost extra entity fetches, got %d calls", api.entityCalls)
	}
}

func TestConstraintFetchFailureRecordedOnRecord(t *testing.T) {
	api := newFakeAPI()
	cache := New(api, time.Hour, "P2302")

	if _, err := cache.GetPropertyInfo(context.Background(), "P50"); err != nil {
		t.Fatalf("GetPropertyInfo: %v", err)
	}
	api.failClaims = true
	cache.GetPropertyConstraints(context.Background(), "P50")

	record, err := cache.GetPropertyInfo(context.Background(), "P50")
	if err != nil {
		t.Fatalf("GetPropertyInfo: %v", err)
	}
	if record.ConstraintsFetched {
		t.Error("a failed fetch must not mark constraints as fetched")
	}
	if record.ConstraintsError == "" {
		t.Error("expected the fetch failure to be recorded on the record")
	}
}

func TestHumanizeFormat(t *testing.T) {
	tests := []struct {
		name          string
		regex         string
		clarification string
		expected      string
	}{
		{"html exclusion", `[^<>]+`, "", "value must not contain HTML tags"},
		{"positive integer", `[1-9]\d*`, "", "value must be a positive integer"},
		{"bare digits", `\d+`, "", "value must be a positive integer"},
		{"url", `^https?://.+`, "", "value must be a valid URL"},
		{"clarification fallback", `[A-Z]{3}`, "three uppercase letters", "three uppercase letters"},
		{"generic fallback", `[A-Z]{3}`, "", `value must match pattern [A-Z]{3}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := humanizeFormat(tt.regex, tt.clarification)
			if got != tt.expected {
				t.Errorf("humanizeFormat(%q, %q) = %q, want %q", tt.regex, tt.clarification, got, tt.expected)
			}
		})
	}
}
