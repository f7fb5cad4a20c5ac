package mapping

import (
	"time"

	"github.com/glam-tools/wikimapper/internal/propcache"
)

// KeyRecord is the analyzer's read-only summary of one source field.
type KeyRecord struct {
	Key            string          `json:"key"`
	Type           string          `json:"type"`
	Frequency      int             `json:"frequency"`
	TotalItems     int             `json:"totalItems"`
	SampleValue    string          `json:"sampleValue"`
	HasIdentifier  bool            `json:"hasIdentifier"`
	IdentifierInfo *IdentifierInfo `json:"identifierInfo,omitempty"`
}

// IdentifierInfo names the external-identifier property a detected
// identifier field corresponds to.
type IdentifierInfo struct {
	PropertyID string `json:"propertyId"`
	Label      string `json:"label"`
	Datatype   string `json:"datatype"`
}

// MappedKey is a source field linked to a knowledge-base property.
type MappedKey struct {
	KeyRecord
	Property   propcache.PropertyRecord `json:"property"`
	MappingID  string                   `json:"mappingId"`
	MappedAt   time.Time                `json:"mappedAt"`
	Context    *ContextMap              `json:"contextMap,omitempty"`
	AutoMapped bool                     `json:"autoMapped,omitempty"`
	// Custom marks mappings not derived from a dataset field; they are
	// exempt from dataset-presence validation on import.
	Custom bool `json:"custom,omitempty"`

	// Transient UI markers, never persisted.
	NotInCurrentDataset bool `json:"notInCurrentDataset,omitempty"`
	JustMoved           bool `json:"justMoved,omitempty"`
}

// IgnoredKey is a source field excluded from the output.
type IgnoredKey struct {
	KeyRecord
	Context *ContextMap `json:"contextMap,omitempty"`

	NotInCurrentDataset bool `json:"notInCurrentDataset,omitempty"`
	JustMoved           bool `json:"justMoved,omitempty"`
}

// ManualProperty is a property attached to output records without a source
// field behind it, e.g. the injected "instance of".
type ManualProperty struct {
	Property     propcache.PropertyRecord `json:"property"`
	DefaultValue string                   `json:"defaultValue"`
	IsRequired   bool                     `json:"isRequired"`
	IsMetadata   bool                     `json:"isMetadata,omitempty"`
	CannotRemove bool                     `json:"cannotRemove,omitempty"`
	AddedAt      time.Time                `json:"addedAt"`
}

// Category names the three partition buckets of the state machine.
type Category string

const (
	CategoryNonLinked Category = "nonLinked"
	CategoryMapped    Category = "mapped"
	CategoryIgnored   Category = "ignored"
)

// Metadata pseudo-property ids. These are not knowledge-base properties;
// they address the target entity's own terms.
const (
	MetadataLabel       = "label"
	MetadataDescription = "description"
	MetadataAliases     = "aliases"
)
