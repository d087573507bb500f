package shape

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jonas-p/go-shp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"

	"github.com/sells-group/pci-audit/internal/binding"
	"github.com/sells-group/pci-audit/internal/fieldmap"
)

func testLine(t *testing.T, flat ...float64) *geom.MultiLineString {
	t.Helper()
	m := geom.NewMultiLineString(geom.XY)
	require.NoError(t, m.Push(geom.NewLineStringFlat(geom.XY, flat)))
	return m
}

func TestPolyLineConversionRoundTrip(t *testing.T) {
	mls := geom.NewMultiLineString(geom.XY)
	require.NoError(t, mls.Push(geom.NewLineStringFlat(geom.XY, []float64{0, 0, 1, 1, 2, 0})))
	require.NoError(t, mls.Push(geom.NewLineStringFlat(geom.XY, []float64{5, 5, 6, 6})))

	pl := MultiLineStringToPolyLine(mls)
	require.NotNil(t, pl)
	assert.Equal(t, int32(2), pl.NumParts)
	assert.Equal(t, int32(5), pl.NumPoints)
	assert.Equal(t, []int32{0, 3}, pl.Parts)
	assert.Equal(t, shp.Box{MinX: 0, MinY: 0, MaxX: 6, MaxY: 6}, pl.Box)

	back := PolyLineToMultiLineString(pl, 4326)
	require.NotNil(t, back)
	assert.Equal(t, 2, back.NumLineStrings())
	assert.Equal(t, mls.FlatCoords(), back.FlatCoords())
	assert.Equal(t, 4326, back.SRID())
}

func TestPolyLineConversion_Degenerate(t *testing.T) {
	assert.Nil(t, PolyLineToMultiLineString(nil, 4326))
	assert.Nil(t, PolyLineToMultiLineString(&shp.PolyLine{}, 4326))
	assert.Nil(t, MultiLineStringToPolyLine(nil))
	assert.Nil(t, MultiLineStringToPolyLine(geom.NewMultiLineString(geom.XY)))
}

func TestWriterReaderRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.shp")

	w, err := NewLineWriter(path)
	require.NoError(t, err)
	require.NoError(t, w.AddField("StreetSec", fieldmap.TypeText, 20))
	require.NoError(t, w.AddField("STNAME", fieldmap.TypeText, 30))

	lines := []*geom.MultiLineString{
		testLine(t, 0, 0, 10, 0),
		testLine(t, 0, 5, 10, 5),
	}
	for i, line := range lines {
		row, err := w.WriteLine(line)
		require.NoError(t, err)
		assert.Equal(t, i, row)
		require.NoError(t, w.WriteAttr(row, "StreetSec", "100 - "+string(rune('1'+i))))
		require.NoError(t, w.WriteAttr(row, "STNAME", "MAIN ST"))
	}
	assert.Equal(t, 2, w.Count())
	require.NoError(t, w.Close())
	require.NoError(t, w.Close()) // idempotent

	segments, err := ReadSegments(path, binding.Segments{
		StreetSec:  "StreetSec",
		StreetName: "STNAME",
		EPSG:       4326,
	})
	require.NoError(t, err)
	require.Len(t, segments, 2)
	assert.Equal(t, 0, segments[0].FID)
	assert.Equal(t, "100 - 1", segments[0].StreetSec)
	assert.Equal(t, "MAIN ST", segments[0].StreetName)
	assert.Equal(t, "100 - 2", segments[1].StreetSec)
	require.NotNil(t, segments[0].Geometry)
	assert.Equal(t, []float64{0, 0, 10, 0}, segments[0].Geometry.FlatCoords())
}

func TestWriter_AttributeTableSidecar(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.shp")

	w, err := NewLineWriter(path)
	require.NoError(t, err)
	require.NoError(t, w.AddField("STNAME", fieldmap.TypeText, 30))
	row, err := w.WriteLine(testLine(t, 0, 0, 10, 0))
	require.NoError(t, err)
	require.NoError(t, w.WriteAttr(row, "STNAME", "MAIN ST"))
	require.NoError(t, w.Close())

	base := strings.TrimSuffix(path, ".shp")
	_, err = os.Stat(base + ".dbf")
	assert.NoError(t, err, "attribute table must live at <stem>.dbf")
	_, err = os.Stat(base + "dbf")
	assert.True(t, os.IsNotExist(err), "no stray dotless attribute file")

	r, err := shp.Open(path)
	require.NoError(t, err)
	defer r.Close()
	fields := r.Fields()
	require.Len(t, fields, 1)
	assert.Equal(t, "STNAME", strings.TrimRight(string(fields[0].Name[:]), "\x00"))
}

func TestWriter_DestructiveOverwrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.shp")

	w, err := NewLineWriter(path)
	require.NoError(t, err)
	require.NoError(t, w.AddField("StreetSec", fieldmap.TypeText, 20))
	for i := 0; i < 3; i++ {
		row, err := w.WriteLine(testLine(t, 0, float64(i), 5, float64(i)))
		require.NoError(t, err)
		require.NoError(t, w.WriteAttr(row, "StreetSec", "X"))
	}
	require.NoError(t, w.Close())

	// Second writer at the same path starts from nothing.
	w2, err := NewLineWriter(path)
	require.NoError(t, err)
	require.NoError(t, w2.AddField("StreetSec", fieldmap.TypeText, 20))
	row, err := w2.WriteLine(testLine(t, 0, 0, 1, 1))
	require.NoError(t, err)
	require.NoError(t, w2.WriteAttr(row, "StreetSec", "Y"))
	require.NoError(t, w2.Close())

	segments, err := ReadSegments(path, binding.Segments{StreetSec: "StreetSec", EPSG: 4326})
	require.NoError(t, err)
	assert.Len(t, segments, 1)
	assert.Equal(t, "Y", segments[0].StreetSec)
}

func TestWriter_SchemaFreezesOnFirstFeature(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.shp")
	w, err := NewPointWriter(path)
	require.NoError(t, err)
	require.NoError(t, w.AddField("LAT", fieldmap.TypeDouble, 0))

	_, err = w.WritePoint(1, 2)
	require.NoError(t, err)

	err = w.AddField("LON", fieldmap.TypeDouble, 0)
	assert.Error(t, err)
	require.NoError(t, w.Close())
}

func TestWriter_WriteAttrEdgeCases(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.shp")
	w, err := NewPointWriter(path)
	require.NoError(t, err)
	require.NoError(t, w.AddField("PCIDiff", fieldmap.TypeLong, 0))

	row, err := w.WritePoint(0, 0)
	require.NoError(t, err)

	// nil leaves the DBF default and is not an error.
	assert.NoError(t, w.WriteAttr(row, "PCIDiff", nil))
	// Case-insensitive resolution.
	assert.NoError(t, w.WriteAttr(row, "pcidiff", 5))
	// Unknown field is an error the caller can log and skip.
	assert.Error(t, w.WriteAttr(row, "Missing", 1))

	require.NoError(t, w.Close())
}

func TestReadSegments_MissingFile(t *testing.T) {
	_, err := ReadSegments(filepath.Join(t.TempDir(), "nope.shp"), binding.Segments{EPSG: 4326})
	assert.Error(t, err)
}
