// Package fieldmap maps logical field names to storage-safe short names for
// destination stores that impose a name-length limit, and resolves the safe
// names back at read/write time. Every other component stays unaware of the
// limit.
package fieldmap

import (
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"
)

// DBFLimit is the field-name length limit of DBF attribute tables, the
// destination format every shapefile output writes through.
const DBFLimit = 10

// Type is the storage type of a destination field.
type Type string

const (
	TypeText   Type = "text"
	TypeLong   Type = "long"
	TypeDouble Type = "double"
	TypeDate   Type = "date"
)

// MapName returns name unchanged when it fits the limit, else its first
// limit bytes backed off to a rune boundary: the stored name never exceeds
// the destination's byte limit and never ends in a split multi-byte rune.
// Idempotent: MapName(MapName(n, l), l) == MapName(n, l).
func MapName(name string, limit int) string {
	if limit <= 0 || len(name) <= limit {
		return name
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(name[cut]) {
		cut--
	}
	return name[:cut]
}

// Mapping is a logical-name -> short-name mapping built once per
// destination. Truncation collisions are NOT resolved: the first logical
// name owning a short name wins and later colliders are skipped. That is the
// documented sharp edge of the destination format, not a bug to fix here.
type Mapping struct {
	limit   int
	byLong  map[string]string
	used    map[string]string // upper(short) -> owning logical name
	order   []string
	skipped []string
}

// Build creates a Mapping for the given logical field names.
func Build(fields []string, limit int) *Mapping {
	m := &Mapping{
		limit:  limit,
		byLong: make(map[string]string, len(fields)),
		used:   make(map[string]string, len(fields)),
	}
	for _, f := range fields {
		short := MapName(f, limit)
		key := strings.ToUpper(short)
		if owner, taken := m.used[key]; taken {
			if owner != f {
				m.skipped = append(m.skipped, f)
				zap.L().Warn("fieldmap: truncated name collision, skipping field",
					zap.String("field", f),
					zap.String("short", short),
					zap.String("owner", owner),
				)
			}
			continue
		}
		m.used[key] = f
		m.byLong[f] = short
		m.order = append(m.order, f)
	}
	return m
}

// Short returns the storage-safe name for a logical field and whether the
// field survived collision handling.
func (m *Mapping) Short(name string) (string, bool) {
	s, ok := m.byLong[name]
	return s, ok
}

// Fields returns the surviving logical names in build order.
func (m *Mapping) Fields() []string { return m.order }

// Skipped returns the logical names dropped by truncation collisions.
func (m *Mapping) Skipped() []string { return m.skipped }

// ResolveExisting searches existing store field names case-insensitively,
// first for the verbatim name, then for its truncated form. Returns the
// actual stored name, or "" when absent.
func ResolveExisting(existing []string, name string, limit int) string {
	upper := make(map[string]string, len(existing))
	for _, f := range existing {
		upper[strings.ToUpper(f)] = f
	}
	if actual, ok := upper[strings.ToUpper(name)]; ok {
		return actual
	}
	if actual, ok := upper[strings.ToUpper(MapName(name, limit))]; ok {
		return actual
	}
	return ""
}

// Destination is the minimal surface of a store the mapper ensures fields
// on. The shapefile writer implements it.
type Destination interface {
	FieldNames() []string
	AddField(name string, ftype Type, length int) error
}

// Ensure creates the field under its mapped short name unless a
// case-insensitive match already exists. Returns true only when a field was
// added. Creation failure is reported and swallowed: the caller proceeds
// without the field.
func Ensure(dest Destination, name string, ftype Type, length, limit int) bool {
	if ResolveExisting(dest.FieldNames(), name, limit) != "" {
		return false
	}
	short := MapName(name, limit)
	if short != name {
		zap.L().Debug("fieldmap: truncated field name for destination",
			zap.String("field", name),
			zap.String("short", short),
		)
	}
	if err := dest.AddField(short, ftype, length); err != nil {
		zap.L().Error("fieldmap: add field failed",
			zap.String("field", short),
			zap.Error(err),
		)
		return false
	}
	return true
}
