package srs

import "math"

// TransverseMercator is the ellipsoidal inverse transverse Mercator
// projection, parameterized the way UTM zones use it.
type TransverseMercator struct {
	lon0          float64 // central meridian, radians
	k0            float64
	falseEasting  float64
	falseNorthing float64
}

// NewUTM builds the inverse projection for a UTM zone on WGS84.
func NewUTM(zone int, north bool) *TransverseMercator {
	fn := 0.0
	if !north {
		fn = 10000000.0
	}
	return &TransverseMercator{
		lon0:          (float64(zone)*6 - 183) * math.Pi / 180,
		k0:            0.9996,
		falseEasting:  500000,
		falseNorthing: fn,
	}
}

// ToGeographic converts easting/northing meters to lon/lat degrees using the
// standard series expansion of the inverse projection.
func (t *TransverseMercator) ToGeographic(x, y float64) (float64, float64, error) {
	e2 := flattening * (2 - flattening)
	ep2 := e2 / (1 - e2)

	xp := x - t.falseEasting
	yp := y - t.falseNorthing

	m := yp / t.k0
	mu := m / (semiMajor * (1 - e2/4 - 3*e2*e2/64 - 5*e2*e2*e2/256))

	e1 := (1 - math.Sqrt(1-e2)) / (1 + math.Sqrt(1-e2))
	phi1 := mu +
		(3*e1/2-27*math.Pow(e1, 3)/32)*math.Sin(2*mu) +
		(21*e1*e1/16-55*math.Pow(e1, 4)/32)*math.Sin(4*mu) +
		(151*math.Pow(e1, 3)/96)*math.Sin(6*mu) +
		(1097*math.Pow(e1, 4)/512)*math.Sin(8*mu)

	sin1, cos1 := math.Sincos(phi1)
	tan1 := sin1 / cos1

	c1 := ep2 * cos1 * cos1
	t1 := tan1 * tan1
	n1 := semiMajor / math.Sqrt(1-e2*sin1*sin1)
	r1 := semiMajor * (1 - e2) / math.Pow(1-e2*sin1*sin1, 1.5)
	d := xp / (n1 * t.k0)

	phi := phi1 - (n1*tan1/r1)*(d*d/2-
		(5+3*t1+10*c1-4*c1*c1-9*ep2)*math.Pow(d, 4)/24+
		(61+90*t1+298*c1+45*t1*t1-252*ep2-3*c1*c1)*math.Pow(d, 6)/720)

	lon := t.lon0 + (d-
		(1+2*t1+c1)*math.Pow(d, 3)/6+
		(5-2*c1+28*t1-3*c1*c1+8*ep2+24*t1*t1)*math.Pow(d, 5)/120)/cos1

	return lon * 180 / math.Pi, phi * 180 / math.Pi, nil
}
