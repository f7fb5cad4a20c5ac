// Package mapping maintains the classification of source fields: every known
// key sits in exactly one of the non-linked, mapped or ignored categories,
// plus a separate set of manual properties attached without a source field.
package mapping

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/glam-tools/wikimapper/internal/propcache"
	"github.com/google/uuid"
)

// PropertyFetcher is the slice of the property cache the state machine needs
// for required-property injection.
type PropertyFetcher interface {
	GetPropertyInfo(ctx context.Context, id string) (propcache.PropertyRecord, error)
}

// State is the classification state container. All mutation goes through its
// methods; the internal lock serializes them so a move is atomic from any
// caller's perspective.
type State struct {
	mu sync.Mutex

	nonLinked []KeyRecord
	mapped    []MappedKey
	ignored   []IgnoredKey
	manual    []ManualProperty

	entitySchema string

	// now and newID are swapped in tests
	now   func() time.Time
	newID func() string
}

// NewState returns an empty state container.
func NewState() *State {
	return &State{
		now:   time.Now,
		newID: uuid.NewString,
	}
}

// SetEntitySchema records the entity schema the mapping targets.
func (s *State) SetEntitySchema(schema string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entitySchema = schema
}

// EntitySchema returns the entity schema the mapping targets.
func (s *State) EntitySchema() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.entitySchema
}

// Classify partitions the analyzer's keys. Keys matching an ignore pattern go
// to ignored; keys with a detected identifier shape are auto-mapped to the
// identifier's property; everything else starts non-linked. Previous key
// categories are replaced, manual properties are kept.
func (s *State) Classify(keys []KeyRecord, ignorePatterns []string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nonLinked = nil
	s.mapped = nil
	s.ignored = nil

	for _, key := range keys {
		switch {
		case matchesIgnorePattern(key.Key, ignorePatterns):
			s.ignored = append(s.ignored, IgnoredKey{KeyRecord: key})
		case key.HasIdentifier && key.IdentifierInfo != nil:
			s.mapped = append(s.mapped, s.identifierMapping(key))
		default:
			s.nonLinked = append(s.nonLinked, key)
		}
	}
	slog.Debug("Classified dataset keys",
		"nonLinked", len(s.nonLinked), "mapped", len(s.mapped), "ignored", len(s.ignored))
}

// matchesIgnorePattern reports whether key matches one of the patterns: a
// pattern ending with a separator matches keys it prefixes, any pattern
// matches the identical key.
func matchesIgnorePattern(key string, patterns []string) bool {
	for _, pattern := range patterns {
		if pattern == "" {
			continue
		}
		if key == pattern {
			return true
		}
		if endsWithSeparator(pattern) && len(key) >= len(pattern) && key[:len(pattern)] == pattern {
			return true
		}
	}
	return false
}

func endsWithSeparator(pattern string) bool {
	switch pattern[len(pattern)-1] {
	case ':', '.', '/', '_', '@':
		return true
	}
	return false
}

// identifierMapping synthesizes the auto-mapping for a detected identifier
// field from the identifier's known semantics.
func (s *State) identifierMapping(key KeyRecord) MappedKey {
	info := key.IdentifierInfo
	datatype := info.Datatype
	if datatype == "" {
		datatype = "external-id"
	}
	return MappedKey{
		KeyRecord: key,
		Property: propcache.PropertyRecord{
			ID:            info.PropertyID,
			Datatype:      datatype,
			DatatypeLabel: propcache.DatatypeLabel(datatype),
			Label:         info.Label,
		},
		MappingID:  s.newID(),
		MappedAt:   s.now(),
		AutoMapped: true,
	}
}

// MapKey moves a key into the mapped category linked to the given property.
// The key is removed from whichever category holds it first, so the
// partition is never observed with the key in zero or two places.
func (s *State) MapKey(key string, property propcache.PropertyRecord) (MappedKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, found := s.removeLocked(key)
	if !found {
		return MappedKey{}, fmt.Errorf("unknown key %q", key)
	}
	mapped := MappedKey{
		KeyRecord: record,
		Property:  property,
		MappingID: s.newID(),
		MappedAt:  s.now(),
		JustMoved: true,
	}
	s.mapped = append(s.mapped, mapped)
	return mapped, nil
}

// AddCustomMapping creates a mapped entry for a key that does not come from
// the dataset. Custom mappings skip dataset-presence validation on import.
func (s *State) AddCustomMapping(key string, property propcache.PropertyRecord) MappedKey {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.removeLocked(key)
	mapped := MappedKey{
		KeyRecord: KeyRecord{Key: key},
		Property:  property,
		MappingID: s.newID(),
		MappedAt:  s.now(),
		Custom:    true,
		JustMoved: true,
	}
	s.mapped = append(s.mapped, mapped)
	return mapped
}

// MoveKey reclassifies a key into target. Moving into mapped requires the
// key to already carry a property (use MapKey to link one); moving out of
// mapped drops the link. The whole transition happens under one lock.
func (s *State) MoveKey(key string, target Category) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if target == CategoryMapped {
		return fmt.Errorf("cannot move %q to mapped without a property; use MapKey", key)
	}

	record, found := s.removeLocked(key)
	if !found {
		return fmt.Errorf("unknown key %q", key)
	}

	switch target {
	case CategoryNonLinked:
		s.nonLinked = append(s.nonLinked, record)
	case CategoryIgnored:
		s.ignored = append(s.ignored, IgnoredKey{KeyRecord: record, JustMoved: true})
	default:
		// put it back where a failed move cannot lose it
		s.nonLinked = append(s.nonLinked, record)
		return fmt.Errorf("unknown category %q", target)
	}
	return nil
}

// removeLocked extracts key from whichever category holds it. Categories are
// disjoint and small; a linear scan across all three is fine.
func (s *State) removeLocked(key string) (KeyRecord, bool) {
	for i, k := range s.nonLinked {
		if k.Key == key {
			record := k
			s.nonLinked = append(s.nonLinked[:i], s.nonLinked[i+1:]...)
			return record, true
		}
	}
	for i, k := range s.mapped {
		if k.Key == key {
			record := k.KeyRecord
			s.mapped = append(s.mapped[:i], s.mapped[i+1:]...)
			return record, true
		}
	}
	for i, k := range s.ignored {
		if k.Key == key {
			record := k.KeyRecord
			s.ignored = append(s.ignored[:i], s.ignored[i+1:]...)
			return record, true
		}
	}
	return KeyRecord{}, false
}

// RemoveManualProperty deletes a manual property unless it is marked
// non-removable.
func (s *State) RemoveManualProperty(propertyID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, mp := range s.manual {
		if mp.Property.ID != propertyID {
			continue
		}
		if mp.CannotRemove {
			return fmt.Errorf("property %s cannot be removed", propertyID)
		}
		s.manual = append(s.manual[:i], s.manual[i+1:]...)
		return nil
	}
	return fmt.Errorf("no manual property %s", propertyID)
}

// AddManualProperty attaches a property with no source field behind it.
// Duplicate property ids are rejected.
func (s *State) AddManualProperty(mp ManualProperty) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addManualLocked(mp)
}

func (s *State) addManualLocked(mp ManualProperty) error {
	for _, existing := range s.manual {
		if existing.Property.ID == mp.Property.ID {
			return fmt.Errorf("manual property %s already present", mp.Property.ID)
		}
	}
	if mp.AddedAt.IsZero() {
		mp.AddedAt = s.now()
	}
	s.manual = append(s.manual, mp)
	return nil
}

func (s *State) hasManualLocked(propertyID string) bool {
	for _, mp := range s.manual {
		if mp.Property.ID == propertyID {
			return true
		}
	}
	return false
}

func (s *State) hasMappedPropertyLocked(propertyID string) bool {
	for _, mk := range s.mapped {
		if mk.Property.ID == propertyID {
			return true
		}
	}
	return false
}

// AutoInjectMetadataFields ensures the label, description and aliases
// pseudo-properties exist exactly once, each non-removable. Idempotent.
func (s *State) AutoInjectMetadataFields() {
	s.mu.Lock()
	defer s.mu.Unlock()

	fields := []struct {
		id, label, description string
	}{
		{MetadataLabel, "Label", "the item's main name"},
		{MetadataDescription, "Description", "a short phrase disambiguating the item"},
		{MetadataAliases, "Aliases", "alternative names for the item"},
	}
	for _, f := range fields {
		if s.hasManualLocked(f.id) {
			continue
		}
		_ = s.addManualLocked(ManualProperty{
			Property: propcache.PropertyRecord{
				ID:            f.id,
				Datatype:      "monolingualtext",
				DatatypeLabel: propcache.DatatypeLabel("monolingualtext"),
				Label:         f.label,
				Description:   f.description,
			},
			IsMetadata:   true,
			CannotRemove: true,
			AddedAt:      s.now(),
		})
	}
}

// AutoInjectRequiredTypeProperty ensures the "instance of"-equivalent
// property is present, either as a mapped key or a manual property. When
// absent it is fetched and injected as a required, non-removable manual
// property; on fetch failure a fallback record is injected instead so the
// requirement is never dropped. Idempotent.
func (s *State) AutoInjectRequiredTypeProperty(ctx context.Context, fetcher PropertyFetcher, propertyID string) {
	s.mu.Lock()
	if s.hasManualLocked(propertyID) || s.hasMappedPropertyLocked(propertyID) {
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	// fetch outside the lock; injection re-checks under it
	record, err := fetcher.GetPropertyInfo(ctx, propertyID)
	if err != nil {
		slog.Warn("Required type property fetch failed, injecting fallback record", "property", propertyID, "err", err)
		record = propcache.FallbackRecord(propertyID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.hasManualLocked(propertyID) || s.hasMappedPropertyLocked(propertyID) {
		return
	}
	_ = s.addManualLocked(ManualProperty{
		Property:     record,
		DefaultValue: "",
		IsRequired:   true,
		CannotRemove: true,
		AddedAt:      s.now(),
	})
}
