package propcache

// PropertyRecord holds the cached metadata for one knowledge-base property.
// Immutable once fetched, except that constraint data is attached after a
// separate fetch.
type PropertyRecord struct {
	ID                 string       `json:"id"`
	Datatype           string       `json:"datatype"`
	DatatypeLabel      string       `json:"datatypeLabel"`
	Label              string       `json:"label"`
	Description        string       `json:"description"`
	Constraints        *Constraints `json:"constraints,omitempty"`
	ConstraintsFetched bool         `json:"constraintsFetched"`
	ConstraintsError   string       `json:"constraintsError,omitempty"`
}

// Fallback reports whether the record is a minimal substitute created after
// a failed fetch.
func (p PropertyRecord) Fallback() bool {
	return p.Datatype == DatatypeUnknown
}

// DatatypeUnknown marks records the remote could not supply.
const DatatypeUnknown = "unknown"

// Constraints groups a property's constraint statements after rank filtering
// and classification. Unrecognized constraint types land in Other by their
// type id rather than being dropped silently.
type Constraints struct {
	Format    []FormatConstraint    `json:"format"`
	ValueType []ValueTypeConstraint `json:"valueType"`
	Other     []string              `json:"other"`
}

// FormatConstraint requires the literal value to match Regex. Description is
// a humanized explanation shown alongside validation warnings.
type FormatConstraint struct {
	Regex       string `json:"regex"`
	Description string `json:"description"`
	Rank        string `json:"rank"`
}

// ValueTypeConstraint expects matched entities to be instances of one of
// Classes.
type ValueTypeConstraint struct {
	Classes     []string          `json:"classes"`
	ClassLabels map[string]string `json:"classLabels"`
	Rank        string            `json:"rank"`
}

// datatypeLabels maps Wikibase datatypes to display labels.
var datatypeLabels = map[string]string{
	"wikibase-item":     "Item",
	"wikibase-property": "Property",
	"external-id":       "External identifier",
	"string":            "String",
	"url":               "URL",
	"time":              "Point in time",
	"quantity":          "Quantity",
	"monolingualtext":   "Monolingual text",
	"commonsMedia":      "Commons media file",
	"globe-coordinate":  "Geographic coordinates",
	DatatypeUnknown:     "Unknown",
}

// DatatypeLabel returns the display label for a Wikibase datatype, falling
// back to the raw datatype string.
func DatatypeLabel(datatype string) string {
	if label, ok := datatypeLabels[datatype]; ok {
		return label
	}
	return datatype
}

// FallbackRecord builds the minimal substitute used when a property cannot
// be fetched.
func FallbackRecord(id string) PropertyRecord {
	return PropertyRecord{
		ID:            id,
		Datatype:      DatatypeUnknown,
		DatatypeLabel: DatatypeLabel(DatatypeUnknown),
		Label:         id,
	}
}
