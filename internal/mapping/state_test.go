package mapping

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/glam-tools/wikimapper/internal/propcache"
	"github.com/glam-tools/wikimapper/internal/wikibase"
)

func sampleKeys() []KeyRecord {
	return []KeyRecord{
		{Key: "o:id", Type: "number", Frequency: 10, TotalItems: 10},
		{Key: "creator", Type: "string", Frequency: 8, TotalItems: 10, SampleValue: "Rembrandt"},
		{Key: "title", Type: "string", Frequency: 10, TotalItems: 10, SampleValue: "The Night Watch"},
		{
			Key: "accession_number", Type: "string", Frequency: 10, TotalItems: 10,
			HasIdentifier:  true,
			IdentifierInfo: &IdentifierInfo{PropertyID: "P217", Label: "inventory number", Datatype: "external-id"},
		},
	}
}

func partitionOf(s *State) map[string]Category {
	p := s.Snapshot()
	out := make(map[string]Category)
	for _, k := range p.NonLinked {
		out[k.Key] = CategoryNonLinked
	}
	for _, k := range p.Mapped {
		out[k.Key] = CategoryMapped
	}
	for _, k := range p.Ignored {
		out[k.Key] = CategoryIgnored
	}
	return out
}

// assertPartition checks the core invariant: every known key sits in exactly
// one category.
func assertPartition(t *testing.T, s *State, keys []KeyRecord) {
	t.Helper()
	p := s.Snapshot()
	seen := make(map[string]int)
	for _, k := range p.NonLinked {
		seen[k.Key]++
	}
	for _, k := range p.Mapped {
		seen[k.Key]++
	}
	for _, k := range p.Ignored {
		seen[k.Key]++
	}
	for _, k := range keys {
		if seen[k.Key] != 1 {
			t.Errorf("key %q appears in %d categories, want exactly 1", k.Key, seen[k.Key])
		}
	}
}

func TestClassify(t *testing.T) {
	s := NewState()
	s.Classify(sampleKeys(), []string{"o:"})

	got := partitionOf(s)
	if got["o:id"] != CategoryIgnored {
		t.Errorf("o:id should match ignore pattern 'o:', got %s", got["o:id"])
	}
	if got["creator"] != CategoryNonLinked {
		t.Errorf("creator should start non-linked, got %s", got["creator"])
	}
	if got["accession_number"] != CategoryMapped {
		t.Errorf("identifier key should be auto-mapped, got %s", got["accession_number"])
	}

	p := s.Snapshot()
	if len(p.Mapped) != 1 {
		t.Fatalf("expected 1 auto-mapped key, got %d", len(p.Mapped))
	}
	auto := p.Mapped[0]
	if !auto.AutoMapped || auto.Property.ID != "P217" || auto.MappingID == "" {
		t.Errorf("unexpected auto-mapping: %+v", auto)
	}
	assertPartition(t, s, sampleKeys())
}

func TestMatchesIgnorePattern(t *testing.T) {
	tests := []struct {
		key      string
		patterns []string
		want     bool
	}{
		{"o:id", []string{"o:"}, true},
		{"creator", []string{"o:"}, false},
		{"thumbnail", []string{"thumbnail"}, true},
		{"thumbnails", []string{"thumbnail"}, false},
		{"@context", []string{"@"}, true},
		{"dcterms.title", []string{"dcterms."}, true},
		{"anything", nil, false},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s vs %v", tt.key, tt.patterns), func(t *testing.T) {
			if got := matchesIgnorePattern(tt.key, tt.patterns); got != tt.want {
				t.Errorf("matchesIgnorePattern(%q, %v) = %v, want %v", tt.key, tt.patterns, got, tt.want)
			}
		})
	}
}

func TestMoveKeyKeepsPartitionDisjoint(t *testing.T) {
	keys := sampleKeys()
	s := NewState()
	s.Classify(keys, []string{"o:"})

	moves := []struct {
		key    string
		target Category
	}{
		{"creator", CategoryIgnored},
		{"creator", CategoryNonLinked},
		{"o:id", CategoryNonLinked},
		{"accession_number", CategoryIgnored},
		{"title", CategoryIgnored},
		{"title", CategoryNonLinked},
	}
	for _, mv := range moves {
		if err := s.MoveKey(mv.key, mv.target); err != nil {
			t.Fatalf("MoveKey(%q, %s): %v", mv.key, mv.target, err)
		}
		assertPartition(t, s, keys)
	}
	if got := partitionOf(s); got["accession_number"] != CategoryIgnored {
		t.Errorf("accession_number should end ignored, got %s", got["accession_number"])
	}
}

func TestMoveKeyRejectsMappedTarget(t *testing.T) {
	s := NewState()
	s.Classify(sampleKeys(), nil)
	if err := s.MoveKey("creator", CategoryMapped); err == nil {
		t.Fatal("expected error moving to mapped without a property")
	}
	assertPartition(t, s, sampleKeys())
}

func TestMapKey(t *testing.T) {
	s := NewState()
	s.Classify(sampleKeys(), []string{"o:"})

	prop := propcache.PropertyRecord{ID: "P170", Datatype: "wikibase-item", Label: "creator"}
	mk, err := s.MapKey("creator", prop)
	if err != nil {
		t.Fatalf("MapKey: %v", err)
	}
	if mk.MappingID == "" || mk.MappedAt.IsZero() || !mk.JustMoved {
		t.Errorf("unexpected mapped key: %+v", mk)
	}
	if got := partitionOf(s); got["creator"] != CategoryMapped {
		t.Errorf("creator should be mapped, got %s", got["creator"])
	}
	assertPartition(t, s, sampleKeys())

	if _, err := s.MapKey("no_such_key", prop); err == nil {
		t.Error("expected error for unknown key")
	}
}

func TestAutoInjectMetadataFieldsIdempotent(t *testing.T) {
	s := NewState()
	s.AutoInjectMetadataFields()
	first := s.Snapshot().Manual
	s.AutoInjectMetadataFields()
	second := s.Snapshot().Manual

	if len(first) != 3 || len(second) != 3 {
		t.Fatalf("expected 3 metadata fields after both calls, got %d then %d", len(first), len(second))
	}
	for _, mp := range second {
		if !mp.IsMetadata || !mp.CannotRemove {
			t.Errorf("metadata field %s should be non-removable metadata: %+v", mp.Property.ID, mp)
		}
	}
	if s.RemoveManualProperty(MetadataLabel) == nil {
		t.Error("label pseudo-property should not be removable")
	}
}

type stubFetcher struct {
	record propcache.PropertyRecord
	err    error
	calls  int
}

func (f *stubFetcher) GetPropertyInfo(ctx context.Context, id string) (propcache.PropertyRecord, error) {
	f.calls++
	if f.err != nil {
		return propcache.PropertyRecord{}, f.err
	}
	return f.record, nil
}

func TestAutoInjectRequiredTypeProperty(t *testing.T) {
	fetcher := &stubFetcher{record: propcache.PropertyRecord{ID: "P31", Datatype: "wikibase-item", Label: "instance of"}}
	s := NewState()

	s.AutoInjectRequiredTypeProperty(context.Background(), fetcher, "P31")
	s.AutoInjectRequiredTypeProperty(context.Background(), fetcher, "P31")

	manual := s.Snapshot().Manual
	if len(manual) != 1 {
		t.Fatalf("expected exactly one injected property, got %d", len(manual))
	}
	mp := manual[0]
	if !mp.IsRequired || !mp.CannotRemove || mp.DefaultValue != "" {
		t.Errorf("unexpected injected property: %+v", mp)
	}
	if fetcher.calls != 1 {
		t.Errorf("second injection should be a no-op, fetcher called %d times", fetcher.calls)
	}
}

func TestAutoInjectRequiredTypePropertyFallsBackOnFetchFailure(t *testing.T) {
	fetcher := &stubFetcher{err: &wikibase.TransportError{URL: "fake", Err: errors.New("down")}}
	s := NewState()

	s.AutoInjectRequiredTypeProperty(context.Background(), fetcher, "P31")

	manual := s.Snapshot().Manual
	if len(manual) != 1 {
		t.Fatalf("requirement must survive a fetch failure, got %d manual properties", len(manual))
	}
	if !manual[0].Property.Fallback() {
		t.Errorf("expected fallback record, got %+v", manual[0].Property)
	}
}

func TestAutoInjectRequiredTypePropertySkipsWhenMapped(t *testing.T) {
	fetcher := &stubFetcher{record: propcache.PropertyRecord{ID: "P31"}}
	s := NewState()
	s.Classify([]KeyRecord{{Key: "type", Type: "string"}}, nil)
	if _, err := s.MapKey("type", propcache.PropertyRecord{ID: "P31", Label: "instance of"}); err != nil {
		t.Fatalf("MapKey: %v", err)
	}

	s.AutoInjectRequiredTypeProperty(context.Background(), fetcher, "P31")
	if len(s.Snapshot().Manual) != 0 {
		t.Error("no injection expected when the property is already mapped")
	}
	if fetcher.calls != 0 {
		t.Errorf("no fetch expected, got %d", fetcher.calls)
	}
}

func TestRestoreReturnsDisplacedKeysToNonLinked(t *testing.T) {
	keys := sampleKeys()
	s := NewState()
	s.Classify(keys, []string{"o:"})

	// restore a document that mentions none of the classified keys
	s.Restore(nil, nil, nil)

	got := partitionOf(s)
	for _, k := range []string{"o:id", "accession_number", "creator", "title"} {
		if got[k] != CategoryNonLinked {
			t.Errorf("key %q should fall back to non-linked after restore, got %q", k, got[k])
		}
	}
	assertPartition(t, s, keys)

	// a restore that keeps one key mapped displaces only the others
	s.Classify(keys, []string{"o:"})
	s.Restore(
		[]MappedKey{{
			KeyRecord: KeyRecord{Key: "creator"},
			Property:  propcache.PropertyRecord{ID: "P170"},
			MappingID: "m-1",
		}},
		nil, nil,
	)
	got = partitionOf(s)
	if got["creator"] != CategoryMapped {
		t.Errorf("creator should stay mapped, got %q", got["creator"])
	}
	if got["accession_number"] != CategoryNonLinked || got["o:id"] != CategoryNonLinked {
		t.Errorf("displaced keys should be non-linked, got %v", got)
	}
	assertPartition(t, s, keys)
}

func TestAddManualPropertyRejectsDuplicates(t *testing.T) {
	s := NewState()
	mp := ManualProperty{Property: propcache.PropertyRecord{ID: "P571", Label: "inception"}}
	if err := s.AddManualProperty(mp); err != nil {
		t.Fatalf("first add: %v", err)
	}
	if err := s.AddManualProperty(mp); err == nil {
		t.Error("expected duplicate rejection")
	}
}

func TestSetContext(t *testing.T) {
	s := NewState()
	s.Classify(sampleKeys(), []string{"o:"})
	if _, err := s.MapKey("creator", propcache.PropertyRecord{ID: "P170"}); err != nil {
		t.Fatalf("MapKey: %v", err)
	}

	ctx := NewContextMap()
	ctx.Set("role", "artist")
	if err := s.SetContext("creator", ctx); err != nil {
		t.Fatalf("SetContext: %v", err)
	}

	for _, mk := range s.Snapshot().Mapped {
		if mk.Key == "creator" {
			if v, ok := mk.Context.Get("role"); !ok || v != "artist" {
				t.Errorf("context not attached, got %v", mk.Context.ToMap())
			}
		}
	}

	if err := s.SetContext("title", NewContextMap()); err == nil {
		t.Error("expected error attaching context to a non-linked key")
	}
}

func TestContextMapOrderAndFlatten(t *testing.T) {
	m := NewContextMap()
	m.Set("z_key", "1")
	m.Set("a_key", "2")
	m.Set("z_key", "3")

	if got := m.Keys(); len(got) != 2 || got[0] != "z_key" || got[1] != "a_key" {
		t.Errorf("expected insertion order [z_key a_key], got %v", got)
	}
	flat := m.ToMap()
	if flat["z_key"] != "3" || flat["a_key"] != "2" {
		t.Errorf("unexpected flattened map: %v", flat)
	}

	restored := ContextMapFromMap(flat)
	if got := restored.Keys(); len(got) != 2 || got[0] != "a_key" || got[1] != "z_key" {
		t.Errorf("restored order should be sorted, got %v", got)
	}
}

func TestContextMapSurvivesJSON(t *testing.T) {
	ctx := NewContextMap()
	ctx.Set("P170", "Rembrandt")
	ctx.Set("P571", "1642")
	mk := MappedKey{
		KeyRecord: KeyRecord{Key: "creator"},
		Property:  propcache.PropertyRecord{ID: "P170"},
		Context:   ctx,
	}

	data, err := json.Marshal(mk)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if !strings.Contains(string(data), `"Rembrandt"`) {
		t.Fatalf("serialized mapped key lost its context associations: %s", data)
	}

	var back MappedKey
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if v, ok := back.Context.Get("P170"); !ok || v != "Rembrandt" {
		t.Errorf("context lost in round trip, got %v", back.Context.ToMap())
	}
	if got := back.Context.Keys(); len(got) != 2 {
		t.Errorf("expected 2 restored associations, got %v", got)
	}

	// a key without context serializes without the field entirely
	plain, err := json.Marshal(MappedKey{KeyRecord: KeyRecord{Key: "title"}})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if strings.Contains(string(plain), "contextMap") {
		t.Errorf("nil context should be omitted, got %s", plain)
	}
}
