// Package inspection loads the pavement-inspection table from CSV or XLSX
// sources through the schema binding, producing typed records plus the
// column metadata the materializer needs for attribute copying.
package inspection

import (
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"

	"github.com/sells-group/pci-audit/internal/binding"
	"github.com/sells-group/pci-audit/internal/fieldmap"
	"github.com/sells-group/pci-audit/internal/model"
)

// systemFields are store-managed columns never copied to outputs.
var systemFields = map[string]bool{
	"OBJECTID":     true,
	"OID":          true,
	"FID":          true,
	"SHAPE":        true,
	"SHAPE_LENGTH": true,
	"SHAPE_AREA":   true,
	"GLOBALID":     true,
}

// Column describes one copyable source column.
type Column struct {
	Name   string
	Type   fieldmap.Type
	Length int
}

// Table is the loaded inspection table: typed records plus the copyable
// column set in source order.
type Table struct {
	Columns []Column
	Records []model.InspectionRecord
}

// Load reads the table at path, dispatching on extension (.csv or .xlsx).
func Load(path string, b binding.Table) (*Table, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return LoadCSV(path, b)
	case ".xlsx":
		return LoadXLSX(path, b)
	default:
		return nil, eris.Errorf("inspection: unsupported table format %q", filepath.Ext(path))
	}
}

// LoadCSV reads a CSV inspection table. The first row is the header.
func LoadCSV(path string, b binding.Table) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "inspection: open %s", path)
	}
	defer func() { _ = f.Close() }()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, eris.Wrapf(err, "inspection: read header of %s", path)
	}

	var rows [][]string
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, eris.Wrapf(err, "inspection: read %s", path)
		}
		rows = append(rows, record)
	}

	return build(header, rows, b)
}

// LoadXLSX reads an XLSX inspection table. The binding's sheet name selects
// the worksheet; the first sheet is used when unset. The first row is the
// header.
func LoadXLSX(path string, b binding.Table) (*Table, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "inspection: open %s", path)
	}

	var sheet *xlsx.Sheet
	if b.Sheet != "" {
		s, ok := f.Sheet[b.Sheet]
		if !ok {
			return nil, eris.Errorf("inspection: sheet %q not found in %s", b.Sheet, path)
		}
		sheet = s
	} else {
		if len(f.Sheets) == 0 {
			return nil, eris.Errorf("inspection: %s has no sheets", path)
		}
		sheet = f.Sheets[0]
	}

	if len(sheet.Rows) == 0 {
		return nil, eris.Errorf("inspection: sheet in %s is empty", path)
	}

	var header []string
	var rows [][]string
	for i, row := range sheet.Rows {
		cells := make([]string, len(row.Cells))
		for j, cell := range row.Cells {
			cells[j] = cell.String()
		}
		if i == 0 {
			header = cells
			continue
		}
		rows = append(rows, cells)
	}

	return build(header, rows, b)
}

func build(header []string, rows [][]string, b binding.Table) (*Table, error) {
	if len(header) == 0 {
		return nil, eris.New("inspection: empty header row")
	}

	colIdx := make(map[string]int, len(header))
	for i, h := range header {
		colIdx[strings.ToLower(strings.TrimSpace(h))] = i
	}

	cell := func(row []string, col string) string {
		if col == "" {
			return ""
		}
		i, ok := colIdx[strings.ToLower(col)]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	t := &Table{Records: make([]model.InspectionRecord, 0, len(rows))}
	for _, row := range rows {
		rec := model.InspectionRecord{
			StreetID:      cell(row, b.StreetID),
			SectionID:     cell(row, b.SectionID),
			StreetSec:     cell(row, b.StreetSec),
			StreetName:    cell(row, b.StreetName),
			BeginLoc:      cell(row, b.BeginLoc),
			EndLoc:        cell(row, b.EndLoc),
			TreatmentName: cell(row, b.TreatmentName),
			PrevPCI:       parsePCI(cell(row, b.PrevPCI), b.PrevPCI),
			LastPCI:       parsePCI(cell(row, b.LastPCI), b.LastPCI),
			PrevDate:      parseDate(cell(row, b.PrevDate), b.DateLayout),
			LastDate:      parseDate(cell(row, b.LastDate), b.DateLayout),
			TreatmentDate: parseDate(cell(row, b.TreatmentDate), b.DateLayout),
			Attrs:         make(map[string]string, len(header)),
		}
		for i, h := range header {
			name := strings.TrimSpace(h)
			if name == "" || systemFields[strings.ToUpper(name)] {
				continue
			}
			if i < len(row) {
				rec.Attrs[name] = strings.TrimSpace(row[i])
			}
		}
		t.Records = append(t.Records, rec)
	}

	t.Columns = inferColumns(header, rows, b)
	return t, nil
}

// parsePCI interprets a PCI cell. Empty means no reading; non-numeric text
// in a numeric column is a data-quality problem recovered as a missing
// value, never a failure.
func parsePCI(val, col string) *float64 {
	if val == "" || strings.EqualFold(val, "none") || strings.EqualFold(val, "null") {
		return nil
	}
	f, err := strconv.ParseFloat(val, 64)
	if err != nil {
		zap.L().Warn("inspection: non-numeric PCI value, treating as missing",
			zap.String("column", col),
			zap.String("value", val),
		)
		return nil
	}
	return &f
}

func parseDate(val, layout string) *time.Time {
	if val == "" {
		return nil
	}
	if layout == "" {
		layout = "2006-01-02"
	}
	ts, err := time.Parse(layout, val)
	if err != nil {
		return nil
	}
	return &ts
}

// inferColumns builds the copyable column set: system fields dropped, types
// inferred from the data (a column where every non-empty value parses as a
// number is numeric, dates follow the binding layout, everything else is
// text sized to its longest value).
func inferColumns(header []string, rows [][]string, b binding.Table) []Column {
	dateCols := map[string]bool{}
	for _, c := range []string{b.PrevDate, b.LastDate, b.TreatmentDate} {
		if c != "" {
			dateCols[strings.ToLower(c)] = true
		}
	}

	var cols []Column
	for i, h := range header {
		name := strings.TrimSpace(h)
		if name == "" || systemFields[strings.ToUpper(name)] {
			continue
		}

		if dateCols[strings.ToLower(name)] {
			cols = append(cols, Column{Name: name, Type: fieldmap.TypeDate})
			continue
		}

		numeric := false
		integral := true
		maxLen := 1
		seen := 0
		for _, row := range rows {
			if i >= len(row) {
				continue
			}
			v := strings.TrimSpace(row[i])
			if v == "" {
				continue
			}
			if len(v) > maxLen {
				maxLen = len(v)
			}
			if seen == 0 {
				numeric = true
			}
			seen++
			if _, err := strconv.ParseFloat(v, 64); err != nil {
				numeric = false
			} else if strings.ContainsAny(v, ".eE") {
				integral = false
			}
		}

		switch {
		case numeric && integral:
			cols = append(cols, Column{Name: name, Type: fieldmap.TypeLong})
		case numeric:
			cols = append(cols, Column{Name: name, Type: fieldmap.TypeDouble})
		default:
			cols = append(cols, Column{Name: name, Type: fieldmap.TypeText, Length: maxLen})
		}
	}
	return cols
}
