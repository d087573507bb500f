// Package shape reads segment shapefiles and writes the classified line and
// midpoint outputs, bridging go-shp records and go-geom geometries.
package shape

import (
	"github.com/jonas-p/go-shp"
	"github.com/twpayne/go-geom"
)

// PolyLineToMultiLineString converts a shapefile PolyLine into a go-geom
// MultiLineString. Returns nil for nil or empty input.
func PolyLineToMultiLineString(pl *shp.PolyLine, srid int) *geom.MultiLineString {
	if pl == nil || pl.NumParts == 0 || len(pl.Points) == 0 {
		return nil
	}

	mls := geom.NewMultiLineString(geom.XY).SetSRID(srid)

	for i := int32(0); i < pl.NumParts; i++ {
		start := pl.Parts[i]
		var end int32
		if i+1 < pl.NumParts {
			end = pl.Parts[i+1]
		} else {
			end = int32(len(pl.Points))
		}

		flat := make([]float64, 0, (end-start)*2)
		for j := start; j < end; j++ {
			flat = append(flat, pl.Points[j].X, pl.Points[j].Y)
		}

		ls := geom.NewLineStringFlat(geom.XY, flat)
		if err := mls.Push(ls); err != nil {
			continue
		}
	}

	if mls.NumLineStrings() == 0 {
		return nil
	}
	return mls
}

// MultiLineStringToPolyLine converts a go-geom MultiLineString back into a
// shapefile PolyLine for writing.
func MultiLineStringToPolyLine(mls *geom.MultiLineString) *shp.PolyLine {
	if mls == nil || mls.NumLineStrings() == 0 {
		return nil
	}

	var parts []int32
	var points []shp.Point
	for i := 0; i < mls.NumLineStrings(); i++ {
		ls := mls.LineString(i)
		parts = append(parts, int32(len(points)))
		for j := 0; j < ls.NumCoords(); j++ {
			c := ls.Coord(j)
			points = append(points, shp.Point{X: c[0], Y: c[1]})
		}
	}

	pl := &shp.PolyLine{
		NumParts:  int32(len(parts)),
		NumPoints: int32(len(points)),
		Parts:     parts,
		Points:    points,
	}
	pl.Box = boundingBox(points)
	return pl
}

func boundingBox(points []shp.Point) shp.Box {
	if len(points) == 0 {
		return shp.Box{}
	}
	b := shp.Box{MinX: points[0].X, MinY: points[0].Y, MaxX: points[0].X, MaxY: points[0].Y}
	for _, p := range points[1:] {
		if p.X < b.MinX {
			b.MinX = p.X
		}
		if p.Y < b.MinY {
			b.MinY = p.Y
		}
		if p.X > b.MaxX {
			b.MaxX = p.X
		}
		if p.Y > b.MaxY {
			b.MaxY = p.Y
		}
	}
	return b
}
