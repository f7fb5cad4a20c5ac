package recon

import (
	"regexp"
	"strings"
	"time"
)

// Date-shaped values never go to the reconciliation service; they need date
// input instead. The shapes below mirror what museum exports actually
// contain.
var datePatterns = []*regexp.Regexp{
	// ISO: 1990, 1990-05, 1990-05-17
	regexp.MustCompile(`^\d{4}(-\d{2}(-\d{2})?)?$`),
	// US: 5/17/1990, 05/17/90
	regexp.MustCompile(`^\d{1,2}/\d{1,2}/\d{2,4}$`),
	// month-name forms: May 17, 1990 / May 1990 / 17 May 1990
	regexp.MustCompile(`(?i)^(\d{1,2} )?(january|february|march|april|may|june|july|august|september|october|november|december)( \d{1,2},?)?( \d{4})?$`),
	// decade: 1990s
	regexp.MustCompile(`^\d{3}0s$`),
	// circa: c. 1900, ca 1900, circa 1900
	regexp.MustCompile(`(?i)^(c\.|ca\.?|circa) ?\d{4}$`),
	// range: 1900-1910, 1900–1910
	regexp.MustCompile(`^\d{4}\s*[-–]\s*\d{4}$`),
}

var dateLayouts = []string{
	"2006-01-02",
	"2006-01",
	"January 2, 2006",
	"January 2 2006",
	"Jan 2, 2006",
	"2 January 2006",
	"January 2006",
}

// temporalDatatypes are property datatypes whose values are always dates.
var temporalDatatypes = map[string]bool{
	"time": true,
}

// needsDateInput reports whether a value should bypass entity matching and
// be captured as a date instead: either the property's datatype is temporal,
// or the value itself is date-shaped.
func needsDateInput(value, datatype string) bool {
	if temporalDatatypes[datatype] {
		return true
	}
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return false
	}
	for _, pattern := range datePatterns {
		if pattern.MatchString(trimmed) {
			return true
		}
	}
	// last resort: anything a calendar parser accepts, as long as it is not
	// so short it could be a plain number or code
	if len(trimmed) > 3 {
		for _, layout := range dateLayouts {
			if _, err := time.Parse(layout, trimmed); err == nil {
				return true
			}
		}
	}
	return false
}
