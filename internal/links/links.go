// Package links builds external viewer URLs for derived midpoints. The
// coordinates are interpolated directly as decimal degrees; consumers paste
// these into a browser, so the full float precision is kept.
package links

import "strconv"

const (
	imageryBase  = "http://maps.google.com/maps?q=&layer=c&cbll="
	panoramaBase = "https://www.google.com/maps/@?api=1&map_action=pano&viewpoint="
)

func coords(lat, lon float64) string {
	return strconv.FormatFloat(lat, 'f', -1, 64) + "," + strconv.FormatFloat(lon, 'f', -1, 64)
}

// Imagery returns the street-level imagery URL for a point.
func Imagery(lat, lon float64) string {
	return imageryBase + coords(lat, lon)
}

// Panorama returns the map panorama URL for a point.
func Panorama(lat, lon float64) string {
	return panoramaBase + coords(lat, lon)
}
