// Package midpoint derives a representative point for each segment line:
// the parametric midpoint at half the line's length, with a centroid
// fallback when the parametric walk cannot produce a point.
package midpoint

import (
	"math"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"

	"github.com/sells-group/pci-audit/internal/model"
	"github.com/sells-group/pci-audit/internal/srs"
)

// Strategy names recorded on derived points.
const (
	MethodParametric = "parametric"
	MethodCentroid   = "centroid"
)

// ErrNoPoints is returned by DeriveBatch when no strategy produced a single
// point for any input; callers skip that midpoint output rather than emit an
// empty one silently.
var ErrNoPoints = eris.New("midpoint: no points produced")

// Parametric returns the point at fractional distance 0.5 along the line's
// total length, measured in the line's own linear units. Exact for
// single-part lines; for multi-part lines the walk continues across parts in
// order.
func Parametric(line *geom.MultiLineString) (float64, float64, error) {
	if line == nil || line.NumLineStrings() == 0 {
		return 0, 0, eris.New("midpoint: nil or empty geometry")
	}

	total := lineLength(line)
	if total <= 0 {
		return 0, 0, eris.New("midpoint: zero-length geometry")
	}

	target := total / 2
	var walked float64
	for i := 0; i < line.NumLineStrings(); i++ {
		ls := line.LineString(i)
		for j := 0; j+1 < ls.NumCoords(); j++ {
			a, b := ls.Coord(j), ls.Coord(j+1)
			seg := math.Hypot(b[0]-a[0], b[1]-a[1])
			if seg == 0 {
				continue
			}
			if walked+seg >= target {
				f := (target - walked) / seg
				return a[0] + f*(b[0]-a[0]), a[1] + f*(b[1]-a[1]), nil
			}
			walked += seg
		}
	}

	// Floating point left us a hair short of the target; use the final vertex.
	last := line.LineString(line.NumLineStrings() - 1)
	end := last.Coord(last.NumCoords() - 1)
	return end[0], end[1], nil
}

// Centroid is the fallback "feature to point, centroid mode" strategy: the
// length-weighted centroid of the line's segments.
func Centroid(line *geom.MultiLineString) (float64, float64, error) {
	if line == nil || line.NumLineStrings() == 0 {
		return 0, 0, eris.New("midpoint: nil or empty geometry")
	}

	var sumX, sumY, sumLen float64
	for i := 0; i < line.NumLineStrings(); i++ {
		ls := line.LineString(i)
		for j := 0; j+1 < ls.NumCoords(); j++ {
			a, b := ls.Coord(j), ls.Coord(j+1)
			seg := math.Hypot(b[0]-a[0], b[1]-a[1])
			sumX += (a[0] + b[0]) / 2 * seg
			sumY += (a[1] + b[1]) / 2 * seg
			sumLen += seg
		}
	}
	if sumLen <= 0 {
		return 0, 0, eris.New("midpoint: zero-length geometry")
	}
	return sumX / sumLen, sumY / sumLen, nil
}

// Derive produces the native and geographic representative point for one
// segment, preferring the parametric strategy. The geographic point always
// goes through the transformer; identity when the frame is already
// geographic.
func Derive(seg model.Segment, tr srs.Transformer) (*model.Midpoint, error) {
	x, y, err := Parametric(seg.Geometry)
	method := MethodParametric
	if err != nil {
		x, y, err = Centroid(seg.Geometry)
		method = MethodCentroid
		if err != nil {
			return nil, eris.Wrapf(err, "midpoint: segment %d", seg.FID)
		}
	}

	lon, lat, err := tr.ToGeographic(x, y)
	if err != nil {
		return nil, eris.Wrapf(err, "midpoint: reproject segment %d", seg.FID)
	}

	return &model.Midpoint{
		OrigFID: seg.FID,
		X:       x,
		Y:       y,
		Lon:     lon,
		Lat:     lat,
		Method:  method,
	}, nil
}

// DeriveBatch derives midpoints for every segment, skipping (and logging)
// per-segment failures. It returns ErrNoPoints when the batch produced
// nothing at all.
func DeriveBatch(segments []model.Segment, tr srs.Transformer) ([]model.Midpoint, error) {
	points := make([]model.Midpoint, 0, len(segments))
	for _, seg := range segments {
		mp, err := Derive(seg, tr)
		if err != nil {
			zap.L().Warn("midpoint: skipping segment",
				zap.Int("fid", seg.FID),
				zap.Error(err),
			)
			continue
		}
		points = append(points, *mp)
	}
	if len(segments) > 0 && len(points) == 0 {
		return nil, ErrNoPoints
	}
	return points, nil
}

func lineLength(line *geom.MultiLineString) float64 {
	var total float64
	for i := 0; i < line.NumLineStrings(); i++ {
		ls := line.LineString(i)
		for j := 0; j+1 < ls.NumCoords(); j++ {
			a, b := ls.Coord(j), ls.Coord(j+1)
			total += math.Hypot(b[0]-a[0], b[1]-a[1])
		}
	}
	return total
}
