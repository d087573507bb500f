// Package binding loads the explicit schema binding that maps logical
// segment and inspection fields to source column names. Binding happens once
// at startup; the core never inspects field names itself.
package binding

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// Segments binds logical segment fields to shapefile attribute columns.
// StreetSec, when set, takes precedence over the StreetID/SectionID pair.
type Segments struct {
	StreetID   string `yaml:"street_id"`
	SectionID  string `yaml:"section_id"`
	StreetSec  string `yaml:"street_sec"`
	StreetName string `yaml:"street_name"`
	BeginLoc   string `yaml:"begin_loc"`
	EndLoc     string `yaml:"end_loc"`
	EPSG       int    `yaml:"epsg"`
}

// Table binds logical inspection fields to table columns.
type Table struct {
	StreetID      string `yaml:"street_id"`
	SectionID     string `yaml:"section_id"`
	StreetSec     string `yaml:"street_sec"`
	StreetName    string `yaml:"street_name"`
	BeginLoc      string `yaml:"begin_loc"`
	EndLoc        string `yaml:"end_loc"`
	PrevPCI       string `yaml:"prev_pci"`
	LastPCI       string `yaml:"last_pci"`
	PrevDate      string `yaml:"prev_date"`
	LastDate      string `yaml:"last_date"`
	TreatmentDate string `yaml:"treatment_date"`
	TreatmentName string `yaml:"treatment_name"`
	DateLayout    string `yaml:"date_layout"`
	Sheet         string `yaml:"sheet"` // XLSX only
}

// Binding is the full schema binding document.
type Binding struct {
	Segments Segments `yaml:"segments"`
	Table    Table    `yaml:"table"`
}

// Default returns the binding matching the municipal pavement-management
// export this tool was built against.
func Default() Binding {
	return Binding{
		Segments: Segments{
			StreetSec:  "StreetSec",
			StreetName: "STNAME",
			EPSG:       4326,
		},
		Table: Table{
			StreetID:   "Street_ID",
			SectionID:  "Section_ID",
			StreetName: "Street_Name",
			BeginLoc:   "Beg_Loc",
			EndLoc:     "End_Loc",
			PrevPCI:    "Prev_Insp_PCI",
			LastPCI:    "Last_Insp_PCI",
			PrevDate:   "Prev_Insp_Date",
			LastDate:   "Last_Insp_Date",
			DateLayout: "2006-01-02",
		},
	}
}

// Load reads a binding file, filling unset fields from Default.
func Load(path string) (Binding, error) {
	b := Default()
	if path == "" {
		return b, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return b, eris.Wrapf(err, "binding: read %s", path)
	}
	if err := yaml.Unmarshal(data, &b); err != nil {
		return b, eris.Wrapf(err, "binding: parse %s", path)
	}
	if err := b.Validate(); err != nil {
		return b, err
	}
	return b, nil
}

// Validate checks that the binding can identify segments and inspection rows.
func (b Binding) Validate() error {
	if b.Segments.StreetSec == "" && (b.Segments.StreetID == "" || b.Segments.SectionID == "") {
		return eris.New("binding: segments need street_sec or street_id + section_id")
	}
	if b.Table.StreetSec == "" && (b.Table.StreetID == "" || b.Table.SectionID == "") {
		return eris.New("binding: table needs street_sec or street_id + section_id")
	}
	if b.Table.PrevPCI == "" || b.Table.LastPCI == "" {
		return eris.New("binding: table needs prev_pci and last_pci columns")
	}
	return nil
}
