package shape

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"

	"github.com/sells-group/pci-audit/internal/fieldmap"
)

// Writer writes one output shapefile (lines or points). Field definitions
// accumulate until the first feature is written, then the DBF schema is
// frozen. Creating a Writer destructively overwrites any existing shapefile
// at the path, sidecars included.
type Writer struct {
	path   string
	w      *shp.Writer
	defs   []shp.Field
	names  []string
	frozen bool
	rows   int
	closed bool
}

// NewLineWriter creates a polyline output at path, deleting any existing
// object there first.
func NewLineWriter(path string) (*Writer, error) {
	return newWriter(path, shp.POLYLINE)
}

// NewPointWriter creates a point output at path, deleting any existing
// object there first.
func NewPointWriter(path string) (*Writer, error) {
	return newWriter(path, shp.POINT)
}

func newWriter(path string, t shp.ShapeType) (*Writer, error) {
	removeExisting(path)

	w, err := shp.Create(path, t)
	if err != nil {
		return nil, eris.Wrapf(err, "shape: create %s", path)
	}
	return &Writer{path: path, w: w}, nil
}

// removeExisting deletes the shapefile and its sidecars. Overwrite is
// destructive by contract: stale outputs are never merged into.
func removeExisting(path string) {
	base := strings.TrimSuffix(path, filepath.Ext(path))
	// "dbf" without the dot is the attribute table as go-shp leaves it
	// before Close renames it into place.
	for _, ext := range []string{".shp", ".shx", ".dbf", "dbf", ".prj"} {
		if err := os.Remove(base + ext); err != nil && !os.IsNotExist(err) {
			zap.L().Warn("shape: could not remove stale output",
				zap.String("path", base+ext),
				zap.Error(err),
			)
		}
	}
}

// Path returns the output path.
func (w *Writer) Path() string { return w.path }

// Count returns the number of features written so far.
func (w *Writer) Count() int { return w.rows }

// FieldNames implements fieldmap.Destination.
func (w *Writer) FieldNames() []string {
	names := make([]string, len(w.names))
	copy(names, w.names)
	return names
}

// AddField implements fieldmap.Destination. Fields can only be added before
// the first feature is written.
func (w *Writer) AddField(name string, ftype fieldmap.Type, length int) error {
	if w.frozen {
		return eris.Errorf("shape: schema frozen, cannot add field %s", name)
	}

	var def shp.Field
	switch ftype {
	case fieldmap.TypeText:
		if length <= 0 {
			length = 64
		}
		if length > 254 {
			length = 254
		}
		def = shp.StringField(name, uint8(length))
	case fieldmap.TypeLong:
		def = shp.NumberField(name, 10)
	case fieldmap.TypeDouble:
		def = shp.FloatField(name, 18, 6)
	case fieldmap.TypeDate:
		def = shp.DateField(name)
	default:
		return eris.Errorf("shape: unknown field type %q", ftype)
	}

	w.defs = append(w.defs, def)
	w.names = append(w.names, name)
	return nil
}

func (w *Writer) freeze() {
	if w.frozen {
		return
	}
	w.w.SetFields(w.defs)
	w.frozen = true
}

// WriteLine appends a line feature and returns its row index.
func (w *Writer) WriteLine(mls *geom.MultiLineString) (int, error) {
	pl := MultiLineStringToPolyLine(mls)
	if pl == nil {
		return 0, eris.New("shape: refusing to write empty line geometry")
	}
	w.freeze()
	w.w.Write(pl)
	row := w.rows
	w.rows++
	return row, nil
}

// WritePoint appends a point feature and returns its row index.
func (w *Writer) WritePoint(x, y float64) (int, error) {
	w.freeze()
	w.w.Write(&shp.Point{X: x, Y: y})
	row := w.rows
	w.rows++
	return row, nil
}

// WriteAttr writes one attribute value by stored field name. A nil value is
// a no-op, leaving the DBF default; an unknown field is an error the caller
// logs and continues past.
func (w *Writer) WriteAttr(row int, name string, value any) error {
	if value == nil {
		return nil
	}
	idx := -1
	for i, n := range w.names {
		if strings.EqualFold(n, name) {
			idx = i
			break
		}
	}
	if idx < 0 {
		return eris.Errorf("shape: no field %q in %s", name, w.path)
	}
	if err := w.w.WriteAttribute(row, idx, value); err != nil {
		return eris.Wrapf(err, "shape: write %s row %d", name, row)
	}
	return nil
}

// Close flushes and closes the output. Safe to call more than once so every
// exit path can release the handle.
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	w.freeze()
	w.w.Close()

	// go-shp names the attribute table "<stem>dbf" while every reader,
	// its own included, opens "<stem>.dbf". Rename it into place so the
	// output is a complete shapefile.
	base := strings.TrimSuffix(w.path, filepath.Ext(w.path))
	if err := os.Rename(base+"dbf", base+".dbf"); err != nil && !os.IsNotExist(err) {
		return eris.Wrapf(err, "shape: finalize attribute table for %s", w.path)
	}
	return nil
}
