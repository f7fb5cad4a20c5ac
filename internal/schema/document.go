// Package schema serializes the mapping configuration to a versioned JSON
// document and loads it back, reconciling the loaded keys against whatever
// dataset is currently open.
package schema

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/glam-tools/wikimapper/internal/mapping"
	"github.com/glam-tools/wikimapper/internal/propcache"
)

// Version is the current document format version. Unknown versions fail
// closed: no partial interpretation of a document this code never saw.
const Version = "1"

// FormatError indicates a persisted document that cannot be trusted: wrong
// shape, missing required fields, or an unknown version.
type FormatError struct {
	Reason string
}

func (e *FormatError) Error() string {
	return "invalid mapping document: " + e.Reason
}

// Document is the on-disk shape of a mapping configuration.
type Document struct {
	Version      string    `json:"version"`
	CreatedAt    time.Time `json:"createdAt"`
	EntitySchema string    `json:"entitySchema,omitempty"`
	Mappings     *Mappings `json:"mappings"`
}

// Mappings groups the persisted categories. Non-linked keys are derivable
// from the dataset and are not persisted.
type Mappings struct {
	Mapped           []MappedEntry  `json:"mapped"`
	Ignored          []IgnoredEntry `json:"ignored"`
	ManualProperties []ManualEntry  `json:"manualProperties"`
}

// MappedEntry is one mapped key. The ordered context association is
// flattened to a plain map for transport.
type MappedEntry struct {
	Key            string                   `json:"key"`
	Type           string                   `json:"type,omitempty"`
	Frequency      int                      `json:"frequency,omitempty"`
	TotalItems     int                      `json:"totalItems,omitempty"`
	SampleValue    string                   `json:"sampleValue,omitempty"`
	HasIdentifier  bool                     `json:"hasIdentifier,omitempty"`
	IdentifierInfo *mapping.IdentifierInfo  `json:"identifierInfo,omitempty"`
	Property       propcache.PropertyRecord `json:"property"`
	MappingID      string                   `json:"mappingId"`
	MappedAt       time.Time                `json:"mappedAt"`
	Context        map[string]string        `json:"contextMap,omitempty"`
	AutoMapped     bool                     `json:"autoMapped,omitempty"`
	Custom         bool                     `json:"custom,omitempty"`
}

// IgnoredEntry is one ignored key.
type IgnoredEntry struct {
	Key         string            `json:"key"`
	Type        string            `json:"type,omitempty"`
	Frequency   int               `json:"frequency,omitempty"`
	TotalItems  int               `json:"totalItems,omitempty"`
	SampleValue string            `json:"sampleValue,omitempty"`
	Context     map[string]string `json:"contextMap,omitempty"`
}

// ManualEntry is one manual property.
type ManualEntry struct {
	Property     propcache.PropertyRecord `json:"property"`
	DefaultValue string                   `json:"defaultValue"`
	IsRequired   bool                     `json:"isRequired,omitempty"`
	IsMetadata   bool                     `json:"isMetadata,omitempty"`
	CannotRemove bool                     `json:"cannotRemove,omitempty"`
	AddedAt      time.Time                `json:"addedAt"`
}

// Serialize captures the state's persistable content. Transient UI markers
// (just-moved, dataset-presence) are deliberately not part of the document.
func Serialize(state *mapping.State) *Document {
	return serializeAt(state, time.Now().UTC())
}

func serializeAt(state *mapping.State, createdAt time.Time) *Document {
	p := state.Snapshot()
	doc := &Document{
		Version:      Version,
		CreatedAt:    createdAt,
		EntitySchema: state.EntitySchema(),
		Mappings: &Mappings{
			Mapped:           make([]MappedEntry, 0, len(p.Mapped)),
			Ignored:          make([]IgnoredEntry, 0, len(p.Ignored)),
			ManualProperties: make([]ManualEntry, 0, len(p.Manual)),
		},
	}
	for _, mk := range p.Mapped {
		doc.Mappings.Mapped = append(doc.Mappings.Mapped, MappedEntry{
			Key:            mk.Key,
			Type:           mk.Type,
			Frequency:      mk.Frequency,
			TotalItems:     mk.TotalItems,
			SampleValue:    mk.SampleValue,
			HasIdentifier:  mk.HasIdentifier,
			IdentifierInfo: mk.IdentifierInfo,
			Property:       mk.Property,
			MappingID:      mk.MappingID,
			MappedAt:       mk.MappedAt,
			Context:        mk.Context.ToMap(),
			AutoMapped:     mk.AutoMapped,
			Custom:         mk.Custom,
		})
	}
	for _, ik := range p.Ignored {
		doc.Mappings.Ignored = append(doc.Mappings.Ignored, IgnoredEntry{
			Key:         ik.Key,
			Type:        ik.Type,
			Frequency:   ik.Frequency,
			TotalItems:  ik.TotalItems,
			SampleValue: ik.SampleValue,
			Context:     ik.Context.ToMap(),
		})
	}
	for _, mp := range p.Manual {
		doc.Mappings.ManualProperties = append(doc.Mappings.ManualProperties, ManualEntry{
			Property:     mp.Property,
			DefaultValue: mp.DefaultValue,
			IsRequired:   mp.IsRequired,
			IsMetadata:   mp.IsMetadata,
			CannotRemove: mp.CannotRemove,
			AddedAt:      mp.AddedAt,
		})
	}
	return doc
}

// Marshal renders the document as indented JSON for export.
func Marshal(doc *Document) ([]byte, error) {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal mapping document: %w", err)
	}
	return data, nil
}

// Parse decodes and validates an imported document. Every failure mode is a
// *FormatError with a reason a user can act on.
func Parse(data []byte) (*Document, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, &FormatError{Reason: fmt.Sprintf("not valid JSON: %v", err)}
	}
	if doc.Version == "" {
		return nil, &FormatError{Reason: "missing version field"}
	}
	if doc.Version != Version {
		return nil, &FormatError{Reason: fmt.Sprintf("unsupported version %q (this build reads version %s)", doc.Version, Version)}
	}
	if doc.Mappings == nil {
		return nil, &FormatError{Reason: "missing mappings section"}
	}
	return &doc, nil
}

// Deserialize parses data and restores it into state, replacing the mapped
// and ignored categories and the manual-property set wholesale. Restored
// keys absent from currentDatasetKeys are flagged notInCurrentDataset unless
// the mapping is custom; custom mappings never carry the flag.
func Deserialize(data []byte, currentDatasetKeys []string, state *mapping.State) (*Document, error) {
	doc, err := Parse(data)
	if err != nil {
		return nil, err
	}

	present := make(map[string]struct{}, len(currentDatasetKeys))
	for _, k := range currentDatasetKeys {
		present[k] = struct{}{}
	}
	inDataset := func(key string) bool {
		_, ok := present[key]
		return ok
	}

	mapped := make([]mapping.MappedKey, 0, len(doc.Mappings.Mapped))
	for _, entry := range doc.Mappings.Mapped {
		mk := mapping.MappedKey{
			KeyRecord: mapping.KeyRecord{
				Key:            entry.Key,
				Type:           entry.Type,
				Frequency:      entry.Frequency,
				TotalItems:     entry.TotalItems,
				SampleValue:    entry.SampleValue,
				HasIdentifier:  entry.HasIdentifier,
				IdentifierInfo: entry.IdentifierInfo,
			},
			Property:   entry.Property,
			MappingID:  entry.MappingID,
			MappedAt:   entry.MappedAt,
			Context:    mapping.ContextMapFromMap(entry.Context),
			AutoMapped: entry.AutoMapped,
			Custom:     entry.Custom,
		}
		if !entry.Custom {
			mk.NotInCurrentDataset = !inDataset(entry.Key)
		}
		mapped = append(mapped, mk)
	}

	ignored := make([]mapping.IgnoredKey, 0, len(doc.Mappings.Ignored))
	for _, entry := range doc.Mappings.Ignored {
		ignored = append(ignored, mapping.IgnoredKey{
			KeyRecord: mapping.KeyRecord{
				Key:         entry.Key,
				Type:        entry.Type,
				Frequency:   entry.Frequency,
				TotalItems:  entry.TotalItems,
				SampleValue: entry.SampleValue,
			},
			Context:             mapping.ContextMapFromMap(entry.Context),
			NotInCurrentDataset: !inDataset(entry.Key),
		})
	}

	manual := make([]mapping.ManualProperty, 0, len(doc.Mappings.ManualProperties))
	for _, entry := range doc.Mappings.ManualProperties {
		manual = append(manual, mapping.ManualProperty{
			Property:     entry.Property,
			DefaultValue: entry.DefaultValue,
			IsRequired:   entry.IsRequired,
			IsMetadata:   entry.IsMetadata,
			CannotRemove: entry.CannotRemove,
			AddedAt:      entry.AddedAt,
		})
	}

	state.Restore(mapped, ignored, manual)
	state.SetEntitySchema(doc.EntitySchema)
	return doc, nil
}
