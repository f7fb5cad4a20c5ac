package analyzer

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"

	"github.com/glam-tools/wikimapper/internal/mapping"
)

// identifierShapes recognizes source fields that carry a well-known external
// identifier. A recognized key is auto-mapped by the classifier to the
// listed property.
var identifierShapes = []struct {
	pattern *regexp.Regexp
	info    mapping.IdentifierInfo
}{
	{
		regexp.MustCompile(`(?i)^(accession|inventory|object)[ _.-]?(number|no|num|id)$`),
		mapping.IdentifierInfo{PropertyID: "P217", Label: "inventory number", Datatype: "string"},
	},
	{
		regexp.MustCompile(`(?i)^isbn([ _.-]?1[03])?$`),
		mapping.IdentifierInfo{PropertyID: "P212", Label: "ISBN-13", Datatype: "external-id"},
	},
	{
		regexp.MustCompile(`(?i)^issn$`),
		mapping.IdentifierInfo{PropertyID: "P236", Label: "ISSN", Datatype: "external-id"},
	},
	{
		regexp.MustCompile(`(?i)^oclc([ _.-]?(number|id))?$`),
		mapping.IdentifierInfo{PropertyID: "P243", Label: "OCLC control number", Datatype: "external-id"},
	},
	{
		regexp.MustCompile(`(?i)^viaf([ _.-]?id)?$`),
		mapping.IdentifierInfo{PropertyID: "P214", Label: "VIAF ID", Datatype: "external-id"},
	},
	{
		regexp.MustCompile(`(?i)^wikidata([ _.-]?(id|qid))?$`),
		mapping.IdentifierInfo{PropertyID: "P12934", Label: "Wikidata item ID", Datatype: "external-id"},
	},
}

// detectIdentifier matches a key name against the known identifier shapes.
func detectIdentifier(key string) *mapping.IdentifierInfo {
	for _, shape := range identifierShapes {
		if shape.pattern.MatchString(key) {
			info := shape.info
			return &info
		}
	}
	return nil
}

// Analyze summarizes field usage across the dataset: how often each key
// appears, what type its values have, and a sample value. Keys come back
// sorted by descending frequency, name breaking ties, so the UI order is
// stable.
func Analyze(records []Record) []mapping.KeyRecord {
	type usage struct {
		frequency int
		valueType string
		sample    string
	}
	usages := make(map[string]*usage)

	for _, record := range records {
		for key, value := range record {
			if value == nil {
				continue
			}
			u, ok := usages[key]
			if !ok {
				u = &usage{}
				usages[key] = u
			}
			u.frequency++
			if u.valueType == "" {
				u.valueType = typeOf(value)
			}
			if u.sample == "" {
				u.sample = sampleString(value)
			}
		}
	}

	keys := make([]mapping.KeyRecord, 0, len(usages))
	for key, u := range usages {
		kr := mapping.KeyRecord{
			Key:         key,
			Type:        u.valueType,
			Frequency:   u.frequency,
			TotalItems:  len(records),
			SampleValue: u.sample,
		}
		if info := detectIdentifier(key); info != nil {
			kr.HasIdentifier = true
			kr.IdentifierInfo = info
		}
		keys = append(keys, kr)
	}

	sort.Slice(keys, func(a, b int) bool {
		if keys[a].Frequency != keys[b].Frequency {
			return keys[a].Frequency > keys[b].Frequency
		}
		return keys[a].Key < keys[b].Key
	})
	return keys
}

func typeOf(value any) string {
	switch value.(type) {
	case string:
		return "string"
	case float64:
		return "number"
	case bool:
		return "boolean"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	default:
		return "unknown"
	}
}

const sampleMaxLen = 120

func sampleString(value any) string {
	var s string
	switch v := value.(type) {
	case string:
		s = v
	case float64:
		s = strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		s = strconv.FormatBool(v)
	case []any:
		if len(v) > 0 {
			return sampleString(v[0])
		}
		return ""
	default:
		s = fmt.Sprintf("%v", v)
	}
	if len(s) > sampleMaxLen {
		return s[:sampleMaxLen]
	}
	return s
}

// ItemValue pairs one item with the scalar values it holds under a key.
type ItemValue struct {
	ItemID string
	Values []string
}

// ValuesFor extracts each item's values for one key, flattening arrays into
// per-value entries so every scalar gets its own reconciliation cell.
func ValuesFor(records []Record, key string) []ItemValue {
	var out []ItemValue
	for i, record := range records {
		values := Values(record, key)
		if len(values) > 0 {
			out = append(out, ItemValue{ItemID: ItemID(record, i), Values: values})
		}
	}
	return out
}

// Values extracts the scalar values one record holds under key, flattening
// arrays.
func Values(record Record, key string) []string {
	raw, ok := record[key]
	if !ok || raw == nil {
		return nil
	}
	var values []string
	switch v := raw.(type) {
	case []any:
		for _, elem := range v {
			if s := sampleString(elem); s != "" {
				values = append(values, s)
			}
		}
	default:
		if s := sampleString(raw); s != "" {
			values = append(values, s)
		}
	}
	return values
}

// ItemID finds a usable item identifier, falling back to the record's
// position.
func ItemID(record Record, index int) string {
	for _, key := range []string{"o:id", "id", "identifier", "uri"} {
		if v, ok := record[key]; ok && v != nil {
			if s := sampleString(v); s != "" {
				return s
			}
		}
	}
	return strconv.Itoa(index)
}
