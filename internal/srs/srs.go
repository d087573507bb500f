// Package srs provides spatial-reference descriptors and the projection
// capability the midpoint deriver calls to obtain geographic coordinates.
// The core never does projection math itself; it holds a Transformer.
package srs

import (
	"math"

	"github.com/rotisserie/eris"
)

// WGS84 ellipsoid constants (also GRS80 to within the precision used here).
const (
	semiMajor  = 6378137.0
	flattening = 1 / 298.257223563
)

// USFootToMeter converts US survey feet to meters.
const USFootToMeter = 1200.0 / 3937.0

// Kind distinguishes geographic from projected reference frames.
type Kind string

const (
	KindGeographic Kind = "geographic"
	KindProjected  Kind = "projected"
)

// SRS describes a spatial reference system.
type SRS struct {
	Name string
	EPSG int
	Kind Kind
}

// Geographic reports whether the frame is already longitude/latitude.
func (s SRS) Geographic() bool { return s.Kind == KindGeographic }

// Transformer converts native coordinates to geographic (EPSG:4326)
// longitude/latitude degrees.
type Transformer interface {
	ToGeographic(x, y float64) (lon, lat float64, err error)
}

// Identity is the no-op transformer for frames that are already geographic.
type Identity struct{}

// ToGeographic returns the input unchanged.
func (Identity) ToGeographic(x, y float64) (float64, float64, error) {
	if math.Abs(x) > 180 || math.Abs(y) > 90 {
		return 0, 0, eris.Errorf("srs: coordinate (%g, %g) outside geographic range", x, y)
	}
	return x, y, nil
}

// WebMercator is the inverse of the spherical Web Mercator projection
// (EPSG:3857).
type WebMercator struct{}

// ToGeographic converts Web Mercator meters to lon/lat degrees.
func (WebMercator) ToGeographic(x, y float64) (float64, float64, error) {
	lon := x / semiMajor * 180 / math.Pi
	lat := (2*math.Atan(math.Exp(y/semiMajor)) - math.Pi/2) * 180 / math.Pi
	if math.Abs(lon) > 180.000001 {
		return 0, 0, eris.Errorf("srs: web mercator x %g out of range", x)
	}
	return lon, lat, nil
}

// ForEPSG returns a Transformer for the known EPSG codes: 4326 (identity),
// 3857 (web mercator), 32601-32660 and 32701-32760 (UTM on WGS84), and the
// registered state-plane zones. Unknown codes are a configuration error the
// caller surfaces before the run starts.
func ForEPSG(code int) (Transformer, error) {
	switch {
	case code == 4326:
		return Identity{}, nil
	case code == 3857:
		return WebMercator{}, nil
	case code >= 32601 && code <= 32660:
		return NewUTM(code-32600, true), nil
	case code >= 32701 && code <= 32760:
		return NewUTM(code-32700, false), nil
	}
	if t, ok := statePlane[code]; ok {
		return t, nil
	}
	return nil, eris.Errorf("srs: unsupported EPSG code %d", code)
}

// statePlane registers the Lambert zones this tool is used against.
var statePlane = map[int]Transformer{
	// NAD83 / California zone 5 and 6, US survey feet.
	2229: NewLambert2SP(LambertParams{
		Phi1: 35.46666666666667, Phi2: 34.03333333333333,
		Phi0: 33.5, Lon0: -118.0,
		FalseEasting: 6561666.667 * USFootToMeter, FalseNorthing: 1640416.667 * USFootToMeter,
		UnitToMeter: USFootToMeter,
	}),
	2230: NewLambert2SP(LambertParams{
		Phi1: 33.88333333333333, Phi2: 32.78333333333333,
		Phi0: 32.16666666666666, Lon0: -116.25,
		FalseEasting: 6561666.667 * USFootToMeter, FalseNorthing: 1640416.667 * USFootToMeter,
		UnitToMeter: USFootToMeter,
	}),
}
