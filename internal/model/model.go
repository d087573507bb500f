// Package model defines the typed records the audit pipeline passes between
// stages: road segments, inspection rows, and the classified join product.
package model

import (
	"time"

	"github.com/twpayne/go-geom"
)

// Classification tags the threshold outcome for a segment.
type Classification string

const (
	// ClassBelowLower means delta <= the lower threshold.
	ClassBelowLower Classification = "below"
	// ClassAboveHigher means delta >= the higher threshold.
	ClassAboveHigher Classification = "above"
	// ClassUnflagged means the delta fell strictly between both thresholds.
	ClassUnflagged Classification = "ok"
	// ClassMissingData means at least one PCI reading was null or unparseable.
	ClassMissingData Classification = "missing"
	// ClassUnmatched means no inspection record exists for the segment key.
	// Unmatched segments are excluded from every threshold output but still
	// counted in diagnostics.
	ClassUnmatched Classification = "unmatched"
)

// Flagged reports whether the classification lands in a threshold partition.
func (c Classification) Flagged() bool {
	return c == ClassBelowLower || c == ClassAboveHigher
}

// DeltaNA is the display sentinel written where a numeric delta does not
// exist. Numeric storage fields default to zero instead; display fields keep
// this text.
const DeltaNA = "N/A (missing PCI values)"

// Segment is one road-section line feature. It is read-only input: the
// pipeline joins and re-emits segments but never mutates them.
type Segment struct {
	FID        int    `json:"fid"` // stable within one run, unique, >= 0
	StreetID   string `json:"street_id,omitempty"`
	SectionID  string `json:"section_id,omitempty"`
	StreetSec  string `json:"street_sec,omitempty"` // pre-combined key field, used verbatim
	StreetName string `json:"street_name,omitempty"`
	BeginLoc   string `json:"begin_loc,omitempty"`
	EndLoc     string `json:"end_loc,omitempty"`

	Geometry *geom.MultiLineString `json:"-"`
}

// InspectionRecord is one row of the pavement-inspection table. PCI readings
// are nullable; a nil pointer is a first-class "no reading" value, not an
// error. Attrs carries the full source row for attribute copying; the typed
// fields drive classification.
type InspectionRecord struct {
	StreetID      string     `json:"street_id,omitempty"`
	SectionID     string     `json:"section_id,omitempty"`
	StreetSec     string     `json:"street_sec,omitempty"`
	StreetName    string     `json:"street_name,omitempty"`
	BeginLoc      string     `json:"begin_loc,omitempty"`
	EndLoc        string     `json:"end_loc,omitempty"`
	PrevPCI       *float64   `json:"prev_pci,omitempty"`
	LastPCI       *float64   `json:"last_pci,omitempty"`
	PrevDate      *time.Time `json:"prev_date,omitempty"`
	LastDate      *time.Time `json:"last_date,omitempty"`
	TreatmentDate *time.Time `json:"treatment_date,omitempty"`
	TreatmentName string     `json:"treatment_name,omitempty"`

	Attrs map[string]string `json:"attrs,omitempty"`
}

// Midpoint is the representative point derived for a segment, in both the
// native frame and geographic (EPSG:4326) coordinates.
type Midpoint struct {
	OrigFID int     `json:"orig_fid"`
	X       float64 `json:"x"` // native frame
	Y       float64 `json:"y"`
	Lon     float64 `json:"lon"`
	Lat     float64 `json:"lat"`
	Method  string  `json:"method"` // "parametric" or "centroid"
}

// ClassifiedSegment is the join product: a segment plus at most one matched
// inspection record and the computed delta.
//
// Delta convention: delta = prevPCI - lastPCI, so a positive delta means the
// section's condition declined since the previous inspection cycle.
type ClassifiedSegment struct {
	Segment        Segment           `json:"segment"`
	Record         *InspectionRecord `json:"record,omitempty"`
	Delta          *float64          `json:"delta,omitempty"` // nil when classification is missing/unmatched
	DeltaText      string            `json:"delta_text"`
	Classification Classification    `json:"classification"`
	Midpoint       *Midpoint         `json:"midpoint,omitempty"`
}

// DeltaOrZero returns the delta, or zero for non-nullable numeric storage.
func (c *ClassifiedSegment) DeltaOrZero() float64 {
	if c.Delta == nil {
		return 0
	}
	return *c.Delta
}
