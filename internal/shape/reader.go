package shape

import (
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/pci-audit/internal/binding"
	"github.com/sells-group/pci-audit/internal/model"
)

// ReadSegments reads a line shapefile into segment records using the given
// schema binding. The record index within the file becomes the segment FID
// (stable within one run). Records without usable line geometry are skipped
// with a diagnostic, not fatal.
func ReadSegments(path string, b binding.Segments) ([]model.Segment, error) {
	reader, err := shp.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "shape: open %s", path)
	}
	defer func() { _ = reader.Close() }()

	// Build field name -> index map, case-insensitive.
	fields := reader.Fields()
	fieldIdx := make(map[string]int, len(fields))
	for i, f := range fields {
		name := strings.TrimRight(f.String(), "\x00")
		fieldIdx[strings.ToLower(name)] = i
	}

	attr := func(col string) string {
		if col == "" {
			return ""
		}
		idx, ok := fieldIdx[strings.ToLower(col)]
		if !ok {
			return ""
		}
		val := strings.TrimRight(reader.Attribute(idx), "\x00")
		return strings.TrimSpace(val)
	}

	var segments []model.Segment
	var skipped int
	fid := 0

	for reader.Next() {
		_, sh := reader.Shape()

		pl, ok := sh.(*shp.PolyLine)
		if !ok || pl == nil {
			skipped++
			fid++
			continue
		}
		geometry := PolyLineToMultiLineString(pl, b.EPSG)
		if geometry == nil {
			skipped++
			fid++
			continue
		}

		segments = append(segments, model.Segment{
			FID:        fid,
			StreetID:   attr(b.StreetID),
			SectionID:  attr(b.SectionID),
			StreetSec:  attr(b.StreetSec),
			StreetName: attr(b.StreetName),
			BeginLoc:   attr(b.BeginLoc),
			EndLoc:     attr(b.EndLoc),
			Geometry:   geometry,
		})
		fid++
	}

	if skipped > 0 {
		zap.L().Warn("shape: skipped records without line geometry",
			zap.String("path", path),
			zap.Int("skipped", skipped),
		)
	}
	if len(segments) == 0 {
		return nil, eris.Errorf("shape: %s contains no line features", path)
	}

	return segments, nil
}
