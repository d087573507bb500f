// Package materialize writes the classified join product to its output
// partitions: Below/Above/Combined line shapefiles, their midpoint point
// shapefiles, and the combined summary rows for the store.
package materialize

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/pci-audit/internal/classify"
	"github.com/sells-group/pci-audit/internal/fieldmap"
	"github.com/sells-group/pci-audit/internal/inspection"
	"github.com/sells-group/pci-audit/internal/join"
	"github.com/sells-group/pci-audit/internal/links"
	"github.com/sells-group/pci-audit/internal/model"
	"github.com/sells-group/pci-audit/internal/shape"
)

// Paths names the six shapefile outputs of a run.
type Paths struct {
	Below       string
	Above       string
	Combined    string
	BelowMid    string
	AboveMid    string
	CombinedMid string
}

// DefaultPaths builds the conventional timestamped output names under dir.
func DefaultPaths(dir string, now time.Time) Paths {
	ts := now.Format("20060102_150405")
	name := func(stem string) string {
		return filepath.Join(dir, stem+"_"+ts+".shp")
	}
	return Paths{
		Below:       name("PCI_Below"),
		Above:       name("PCI_Above"),
		Combined:    name("PCI_All"),
		BelowMid:    name("PCI_Below_Mid"),
		AboveMid:    name("PCI_Above_Mid"),
		CombinedMid: name("PCI_All_Mid"),
	}
}

type partition struct {
	name     string
	linePath string
	midPath  string
	include  func(model.Classification) bool
	meta     func(model.Classification) (string, float64)
}

// Write materializes every partition and returns the run's counts. A failed
// partition is logged and skipped; later partitions still run. Empty
// partitions produce no files.
func Write(results []model.ClassifiedSegment, cols []inspection.Column, th classify.Thresholds, paths Paths) model.PartitionCounts {
	var counts model.PartitionCounts
	counts.Total = len(results)
	for _, r := range results {
		switch r.Classification {
		case model.ClassBelowLower:
			counts.Below++
		case model.ClassAboveHigher:
			counts.Above++
		case model.ClassUnflagged:
			counts.Unflagged++
		case model.ClassMissingData:
			counts.MissingData++
		case model.ClassUnmatched:
			counts.Unmatched++
		}
	}
	counts.Combined = counts.Below + counts.Above

	partitions := []partition{
		{
			name:     "below",
			linePath: paths.Below,
			midPath:  paths.BelowMid,
			include:  func(c model.Classification) bool { return c == model.ClassBelowLower },
			meta: func(model.Classification) (string, float64) {
				return string(model.ClassBelowLower), th.Lower
			},
		},
		{
			name:     "above",
			linePath: paths.Above,
			midPath:  paths.AboveMid,
			include:  func(c model.Classification) bool { return c == model.ClassAboveHigher },
			meta: func(model.Classification) (string, float64) {
				return string(model.ClassAboveHigher), th.Higher
			},
		},
		{
			name:     "combined",
			linePath: paths.Combined,
			midPath:  paths.CombinedMid,
			include:  model.Classification.Flagged,
			meta: func(c model.Classification) (string, float64) {
				if c == model.ClassBelowLower {
					return fmt.Sprintf("Below %g", th.Lower), th.Lower
				}
				return fmt.Sprintf("Above %g", th.Higher), th.Higher
			},
		},
	}

	for _, p := range partitions {
		var subset []model.ClassifiedSegment
		for _, r := range results {
			if p.include(r.Classification) {
				subset = append(subset, r)
			}
		}
		if len(subset) == 0 {
			zap.L().Info("materialize: partition empty, skipping",
				zap.String("partition", p.name),
			)
			continue
		}
		if err := writePartition(p, subset, cols); err != nil {
			zap.L().Error("materialize: partition failed",
				zap.String("partition", p.name),
				zap.Error(err),
			)
		}
	}
	return counts
}

func writePartition(p partition, subset []model.ClassifiedSegment, cols []inspection.Column) error {
	if err := writeLines(p, subset, cols); err != nil {
		return err
	}
	return writeMidpoints(p, subset)
}

func writeLines(p partition, subset []model.ClassifiedSegment, cols []inspection.Column) error {
	w, err := shape.NewLineWriter(p.linePath)
	if err != nil {
		return eris.Wrapf(err, "materialize: create %s", p.linePath)
	}
	defer func() { _ = w.Close() }()

	names := make([]string, 0, len(cols)+4)
	for _, col := range cols {
		names = append(names, col.Name)
	}
	names = append(names, "ThreshType", "ThreshVal", "PCIDiff", "QC_Street")
	m := fieldmap.Build(names, fieldmap.DBFLimit)

	for _, col := range cols {
		ensureMapped(w, m, col.Name, col.Type, col.Length)
	}
	ensureMapped(w, m, "ThreshType", fieldmap.TypeText, 20)
	ensureMapped(w, m, "ThreshVal", fieldmap.TypeDouble, 0)
	ensureMapped(w, m, "PCIDiff", fieldmap.TypeDouble, 0)
	ensureMapped(w, m, "QC_Street", fieldmap.TypeText, 10)

	for i := range subset {
		r := &subset[i]
		row, err := w.WriteLine(r.Segment.Geometry)
		if err != nil {
			zap.L().Warn("materialize: skipping feature without geometry",
				zap.String("partition", p.name),
				zap.Int("fid", r.Segment.FID),
			)
			continue
		}
		for _, col := range cols {
			setAttr(w, row, m, col.Name, attrValue(r.Record, col))
		}
		ttype, tval := p.meta(r.Classification)
		setAttr(w, row, m, "ThreshType", ttype)
		setAttr(w, row, m, "ThreshVal", tval)
		setAttr(w, row, m, "PCIDiff", r.DeltaOrZero())
		setAttr(w, row, m, "QC_Street", fieldmap.MapName(streetOf(r), fieldmap.DBFLimit))
	}
	return w.Close()
}

func writeMidpoints(p partition, subset []model.ClassifiedSegment) error {
	var withMid []model.ClassifiedSegment
	for _, r := range subset {
		if r.Midpoint != nil {
			withMid = append(withMid, r)
		}
	}
	if len(withMid) == 0 {
		zap.L().Warn("materialize: no midpoints for partition, skipping point output",
			zap.String("partition", p.name),
		)
		return nil
	}

	w, err := shape.NewPointWriter(p.midPath)
	if err != nil {
		return eris.Wrapf(err, "materialize: create %s", p.midPath)
	}
	defer func() { _ = w.Close() }()

	m := fieldmap.Build([]string{"ORIG_FID", "MidptOf", "LAT", "LON", "ImgURL", "PanoURL"}, fieldmap.DBFLimit)
	ensureMapped(w, m, "ORIG_FID", fieldmap.TypeLong, 0)
	ensureMapped(w, m, "MidptOf", fieldmap.TypeText, 10)
	ensureMapped(w, m, "LAT", fieldmap.TypeDouble, 0)
	ensureMapped(w, m, "LON", fieldmap.TypeDouble, 0)
	ensureMapped(w, m, "ImgURL", fieldmap.TypeText, 254)
	ensureMapped(w, m, "PanoURL", fieldmap.TypeText, 254)

	for i := range withMid {
		r := &withMid[i]
		mp := r.Midpoint
		row, err := w.WritePoint(mp.X, mp.Y)
		if err != nil {
			zap.L().Warn("materialize: midpoint write failed",
				zap.String("partition", p.name),
				zap.Int("fid", r.Segment.FID),
				zap.Error(err),
			)
			continue
		}
		setAttr(w, row, m, "ORIG_FID", mp.OrigFID)
		setAttr(w, row, m, "MidptOf", fieldmap.MapName("Mid "+streetOf(r), fieldmap.DBFLimit))
		setAttr(w, row, m, "LAT", mp.Lat)
		setAttr(w, row, m, "LON", mp.Lon)
		setAttr(w, row, m, "ImgURL", links.Imagery(mp.Lat, mp.Lon))
		setAttr(w, row, m, "PanoURL", links.Panorama(mp.Lat, mp.Lon))
	}
	return w.Close()
}

func streetOf(r *model.ClassifiedSegment) string {
	if r.Segment.StreetName != "" {
		return r.Segment.StreetName
	}
	if r.Record != nil {
		return r.Record.StreetName
	}
	return ""
}

// ensureMapped creates the field only when it survived collision handling in
// the partition's mapping.
func ensureMapped(w *shape.Writer, m *fieldmap.Mapping, name string, ftype fieldmap.Type, length int) {
	if _, ok := m.Short(name); ok {
		fieldmap.Ensure(w, name, ftype, length, fieldmap.DBFLimit)
	}
}

// setAttr writes the value under the mapping's stored (possibly truncated)
// name. A column dropped by collision handling never reaches the writer, so
// it cannot overwrite the bytes of the field that owns the short name. A
// write failure is logged and the record keeps its remaining attributes.
func setAttr(w *shape.Writer, row int, m *fieldmap.Mapping, name string, value any) {
	stored, ok := m.Short(name)
	if !ok {
		return
	}
	if err := w.WriteAttr(row, stored, value); err != nil {
		zap.L().Warn("materialize: attribute write failed",
			zap.String("field", name),
			zap.Int("row", row),
			zap.Error(err),
		)
	}
}

// attrValue converts a source cell to the destination type with non-nullable
// defaults: 0 for numbers, "" for text, nil (unset) for dates.
func attrValue(rec *model.InspectionRecord, col inspection.Column) any {
	var raw string
	if rec != nil {
		raw = strings.TrimSpace(rec.Attrs[col.Name])
	}
	switch col.Type {
	case fieldmap.TypeLong:
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return 0
		}
		return int(f)
	case fieldmap.TypeDouble:
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return 0.0
		}
		return f
	case fieldmap.TypeDate:
		if raw == "" {
			return nil
		}
		return raw
	default:
		return raw
	}
}

// BuildSummary produces the combined summary rows for the flagged results,
// the row set the store persists alongside the run record.
func BuildSummary(runID string, results []model.ClassifiedSegment) []model.SummaryRow {
	var rows []model.SummaryRow
	for i := range results {
		r := &results[i]
		if !r.Classification.Flagged() {
			continue
		}
		row := model.SummaryRow{
			RunID:          runID,
			Key:            join.SegmentKey(r.Segment),
			StreetName:     streetOf(r),
			Classification: r.Classification,
			Delta:          r.Delta,
		}
		if r.Record != nil {
			row.BeginLoc = r.Record.BeginLoc
			row.EndLoc = r.Record.EndLoc
			row.PrevDate = r.Record.PrevDate
			row.LastDate = r.Record.LastDate
			row.PrevPCI = r.Record.PrevPCI
			row.LastPCI = r.Record.LastPCI
		}
		if row.BeginLoc == "" {
			row.BeginLoc = r.Segment.BeginLoc
		}
		if row.EndLoc == "" {
			row.EndLoc = r.Segment.EndLoc
		}
		if r.Midpoint != nil {
			row.Lat = r.Midpoint.Lat
			row.Lon = r.Midpoint.Lon
			row.ImageryURL = links.Imagery(r.Midpoint.Lat, r.Midpoint.Lon)
			row.PanoramaURL = links.Panorama(r.Midpoint.Lat, r.Midpoint.Lon)
		}
		rows = append(rows, row)
	}
	return rows
}
