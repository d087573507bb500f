package join

import "github.com/sells-group/pci-audit/internal/model"

// Index maps a normalized key to every inspection record sharing it, in
// table iteration order. Duplicate rows are retained on purpose: only the
// first is consumed by classification, but the rest stay inspectable for
// diagnostics.
type Index map[string][]model.InspectionRecord

// BuildIndex builds the key -> records index in a single pass.
func BuildIndex(records []model.InspectionRecord) Index {
	idx := make(Index, len(records))
	for _, rec := range records {
		key := RecordKey(rec)
		idx[key] = append(idx[key], rec)
	}
	return idx
}

// First returns the first record for key, matching the deterministic
// first-row-wins join policy.
func (idx Index) First(key string) (model.InspectionRecord, bool) {
	recs, ok := idx[key]
	if !ok || len(recs) == 0 {
		return model.InspectionRecord{}, false
	}
	return recs[0], true
}

// Duplicates returns the keys that carry more than one inspection record.
func (idx Index) Duplicates() []string {
	var keys []string
	for k, recs := range idx {
		if len(recs) > 1 {
			keys = append(keys, k)
		}
	}
	return keys
}
