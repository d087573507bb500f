// Package classify implements the delta computation and dual-threshold
// classification engine.
package classify

import (
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"github.com/sells-group/pci-audit/internal/join"
	"github.com/sells-group/pci-audit/internal/model"
)

// Thresholds holds the operator-supplied classification bounds. Both checks
// are inclusive and evaluated independently: no ordering between the two
// values is validated, and the lower check runs first, so a delta equal to
// both classifies as below.
type Thresholds struct {
	Lower  float64
	Higher float64
}

// Default thresholds applied when operator input is not numeric.
const (
	DefaultLower  = -10
	DefaultHigher = 10
)

// DefaultThresholds returns the documented fallback thresholds.
func DefaultThresholds() Thresholds {
	return Thresholds{Lower: DefaultLower, Higher: DefaultHigher}
}

// ParseThresholds interprets operator threshold input. A non-numeric bound
// falls back to its default with a warning; the run continues.
func ParseThresholds(lower, higher string) Thresholds {
	th := DefaultThresholds()
	if lower != "" {
		if v, err := strconv.ParseFloat(lower, 64); err == nil {
			th.Lower = v
		} else {
			zap.L().Warn("classify: non-numeric lower threshold, using default",
				zap.String("input", lower),
				zap.Float64("default", DefaultLower),
			)
		}
	}
	if higher != "" {
		if v, err := strconv.ParseFloat(higher, 64); err == nil {
			th.Higher = v
		} else {
			zap.L().Warn("classify: non-numeric higher threshold, using default",
				zap.String("input", higher),
				zap.Float64("default", DefaultHigher),
			)
		}
	}
	return th
}

// Classify joins one segment against the inspection index and assigns its
// classification. A missing match and missing PCI readings are first-class
// outcomes, never errors.
//
// Delta convention: delta = prevPCI - lastPCI (positive = condition
// declined).
func Classify(seg model.Segment, idx join.Index, th Thresholds) model.ClassifiedSegment {
	out := model.ClassifiedSegment{Segment: seg}

	key := join.SegmentKey(seg)
	rec, ok := idx.First(key)
	if !ok {
		out.Classification = model.ClassUnmatched
		out.DeltaText = model.DeltaNA
		return out
	}
	out.Record = &rec

	if rec.PrevPCI == nil || rec.LastPCI == nil {
		out.Classification = model.ClassMissingData
		out.DeltaText = model.DeltaNA
		return out
	}

	delta := *rec.PrevPCI - *rec.LastPCI
	out.Delta = &delta
	out.DeltaText = fmt.Sprintf("%g", delta)

	switch {
	case delta <= th.Lower:
		out.Classification = model.ClassBelowLower
	case delta >= th.Higher:
		out.Classification = model.ClassAboveHigher
	default:
		out.Classification = model.ClassUnflagged
	}
	return out
}

// ClassifyAll classifies every segment in iteration order and tallies the
// partition counts.
func ClassifyAll(segments []model.Segment, idx join.Index, th Thresholds) ([]model.ClassifiedSegment, model.PartitionCounts) {
	classified := make([]model.ClassifiedSegment, 0, len(segments))
	var counts model.PartitionCounts

	for _, seg := range segments {
		cs := Classify(seg, idx, th)
		classified = append(classified, cs)

		counts.Total++
		switch cs.Classification {
		case model.ClassBelowLower:
			counts.Below++
			counts.Combined++
		case model.ClassAboveHigher:
			counts.Above++
			counts.Combined++
		case model.ClassUnflagged:
			counts.Unflagged++
		case model.ClassMissingData:
			counts.MissingData++
		case model.ClassUnmatched:
			counts.Unmatched++
		}
	}
	return classified, counts
}
