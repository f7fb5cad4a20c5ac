package analyzer

import (
	"github.com/glam-tools/wikimapper/internal/mapping"
	"github.com/glam-tools/wikimapper/internal/recon"
)

// maxContextProperties caps the property pairs sent with a reconciliation
// query; more than a handful stops helping disambiguation.
const maxContextProperties = 5

// ContextFor derives the contextual property pairs for one record: the values
// the record holds under its other mapped keys, paired with those keys'
// property ids. Custom mappings and keys absent from the dataset carry no
// record values and are skipped.
func ContextFor(record Record, mapped []mapping.MappedKey, currentKey string) []recon.ContextProperty {
	var out []recon.ContextProperty
	for _, mk := range mapped {
		if mk.Key == currentKey || mk.Custom || mk.NotInCurrentDataset {
			continue
		}
		values := Values(record, mk.Key)
		if len(values) == 0 {
			continue
		}
		out = append(out, recon.ContextProperty{PropertyID: mk.Property.ID, Value: values[0]})
		if len(out) == maxContextProperties {
			break
		}
	}
	return out
}
