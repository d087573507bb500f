// Package join builds the composite street/section key and the in-memory
// inspection index the classification engine looks segments up in.
package join

import (
	"strings"

	"github.com/sells-group/pci-audit/internal/model"
)

// noneLiteral stands in for a missing identifying component. Degenerate keys
// such as "None - None" are legitimate keys, not errors.
const noneLiteral = "None"

// NormalizeKey builds the canonical two-part key "{streetID} - {sectionID}".
// Components are trimmed; empty components render as the "None" literal.
func NormalizeKey(streetID, sectionID string) string {
	return part(streetID) + " - " + part(sectionID)
}

// NormalizeCombined normalizes a pre-combined StreetSec value. The value is
// used verbatim after trimming; no separator validation is performed.
func NormalizeCombined(streetSec string) string {
	s := strings.TrimSpace(streetSec)
	if s == "" {
		return noneLiteral
	}
	return s
}

func part(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return noneLiteral
	}
	return s
}

// SegmentKey returns the join key for a segment, preferring the pre-combined
// StreetSec field when present.
func SegmentKey(seg model.Segment) string {
	if strings.TrimSpace(seg.StreetSec) != "" {
		return NormalizeCombined(seg.StreetSec)
	}
	return NormalizeKey(seg.StreetID, seg.SectionID)
}

// RecordKey returns the join key for an inspection record.
func RecordKey(rec model.InspectionRecord) string {
	if strings.TrimSpace(rec.StreetSec) != "" {
		return NormalizeCombined(rec.StreetSec)
	}
	return NormalizeKey(rec.StreetID, rec.SectionID)
}
