package model

import "time"

// RunStatus represents the state of an audit run.
type RunStatus string

const (
	RunStatusRunning  RunStatus = "running"
	RunStatusComplete RunStatus = "complete"
	RunStatusFailed   RunStatus = "failed"
)

// PartitionCounts holds per-partition record counts for one run.
type PartitionCounts struct {
	Below       int `json:"below"`
	Above       int `json:"above"`
	Combined    int `json:"combined"`
	Unflagged   int `json:"unflagged"`
	MissingData int `json:"missing_data"`
	Unmatched   int `json:"unmatched"`
	Total       int `json:"total"`
}

// Run records one invocation of the audit pipeline.
type Run struct {
	ID              string           `json:"id"`
	SegmentSource   string           `json:"segment_source"`
	TableSource     string           `json:"table_source"`
	LowerThreshold  float64          `json:"lower_threshold"`
	HigherThreshold float64          `json:"higher_threshold"`
	Status          RunStatus        `json:"status"`
	Counts          *PartitionCounts `json:"counts,omitempty"`
	Error           string           `json:"error,omitempty"`
	StartedAt       time.Time        `json:"started_at"`
	CompletedAt     *time.Time       `json:"completed_at,omitempty"`
}

// SummaryRow is one row of the combined summary table: the fixed column set
// covering identity, location labels, inspection history, coordinates, and
// the externally-consumable viewer URLs.
type SummaryRow struct {
	RunID          string         `json:"run_id"`
	Key            string         `json:"key"`
	StreetName     string         `json:"street_name"`
	BeginLoc       string         `json:"begin_loc"`
	EndLoc         string         `json:"end_loc"`
	PrevDate       *time.Time     `json:"prev_date,omitempty"`
	LastDate       *time.Time     `json:"last_date,omitempty"`
	PrevPCI        *float64       `json:"prev_pci,omitempty"`
	LastPCI        *float64       `json:"last_pci,omitempty"`
	Delta          *float64       `json:"delta,omitempty"`
	Classification Classification `json:"classification"`
	Lat            float64        `json:"lat"`
	Lon            float64        `json:"lon"`
	ImageryURL     string         `json:"imagery_url"`
	PanoramaURL    string         `json:"panorama_url"`
}
