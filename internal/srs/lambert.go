package srs

import (
	"math"

	"github.com/rotisserie/eris"
)

// LambertParams parameterizes a Lambert Conformal Conic (2SP) zone.
// Latitudes and longitudes are degrees; false origins are meters.
// UnitToMeter converts native coordinates (state plane zones commonly use US
// survey feet) before the math runs.
type LambertParams struct {
	Phi1, Phi2    float64 // standard parallels
	Phi0, Lon0    float64 // false origin latitude / central meridian
	FalseEasting  float64
	FalseNorthing float64
	UnitToMeter   float64
}

// Lambert2SP is the inverse Lambert Conformal Conic projection with two
// standard parallels (EPSG method 9802).
type Lambert2SP struct {
	p              LambertParams
	e              float64
	n, f, rho0     float64
	lon0Rad        float64
}

// NewLambert2SP precomputes the zone constants.
func NewLambert2SP(p LambertParams) *Lambert2SP {
	if p.UnitToMeter == 0 {
		p.UnitToMeter = 1
	}
	e2 := flattening * (2 - flattening)
	e := math.Sqrt(e2)

	rad := func(deg float64) float64 { return deg * math.Pi / 180 }
	mFn := func(phi float64) float64 {
		s := math.Sin(phi)
		return math.Cos(phi) / math.Sqrt(1-e2*s*s)
	}
	tFn := func(phi float64) float64 {
		s := math.Sin(phi)
		return math.Tan(math.Pi/4-phi/2) / math.Pow((1-e*s)/(1+e*s), e/2)
	}

	phi1, phi2, phi0 := rad(p.Phi1), rad(p.Phi2), rad(p.Phi0)
	m1, m2 := mFn(phi1), mFn(phi2)
	t1, t2, t0 := tFn(phi1), tFn(phi2), tFn(phi0)

	n := (math.Log(m1) - math.Log(m2)) / (math.Log(t1) - math.Log(t2))
	f := m1 / (n * math.Pow(t1, n))
	rho0 := semiMajor * f * math.Pow(t0, n)

	return &Lambert2SP{p: p, e: e, n: n, f: f, rho0: rho0, lon0Rad: rad(p.Lon0)}
}

// ToGeographic converts native easting/northing to lon/lat degrees. The
// latitude is recovered iteratively; non-convergence (degenerate input far
// outside the zone) is reported as an error.
func (l *Lambert2SP) ToGeographic(x, y float64) (float64, float64, error) {
	xp := x*l.p.UnitToMeter - l.p.FalseEasting
	yp := y*l.p.UnitToMeter - l.p.FalseNorthing

	sign := 1.0
	if l.n < 0 {
		sign = -1.0
	}
	rho := sign * math.Sqrt(xp*xp+(l.rho0-yp)*(l.rho0-yp))
	if rho == 0 {
		return 0, 0, eris.Errorf("srs: lambert inverse degenerate at (%g, %g)", x, y)
	}
	tp := math.Pow(rho/(semiMajor*l.f), 1/l.n)
	theta := math.Atan2(sign*xp, sign*(l.rho0-yp))

	lon := theta/l.n + l.lon0Rad

	// Fixed-point iteration for latitude.
	phi := math.Pi/2 - 2*math.Atan(tp)
	for i := 0; i < 15; i++ {
		s := math.Sin(phi)
		next := math.Pi/2 - 2*math.Atan(tp*math.Pow((1-l.e*s)/(1+l.e*s), l.e/2))
		if math.Abs(next-phi) < 1e-12 {
			return lon * 180 / math.Pi, next * 180 / math.Pi, nil
		}
		phi = next
	}
	return 0, 0, eris.Errorf("srs: lambert latitude iteration did not converge at (%g, %g)", x, y)
}
