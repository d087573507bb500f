package classify

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/pci-audit/internal/join"
	"github.com/sells-group/pci-audit/internal/model"
)

func fp(v float64) *float64 { return &v }

func testIndex() join.Index {
	return join.BuildIndex([]model.InspectionRecord{
		{StreetID: "100", SectionID: "1", PrevPCI: fp(80), LastPCI: fp(65)},
		{StreetID: "100", SectionID: "2", PrevPCI: fp(70), LastPCI: fp(68)},
		{StreetID: "100", SectionID: "3", LastPCI: fp(50)},
		{StreetID: "100", SectionID: "4", PrevPCI: fp(55), LastPCI: fp(70)},
	})
}

func TestClassify(t *testing.T) {
	th := Thresholds{Lower: -10, Higher: 10}
	idx := testIndex()

	tests := []struct {
		name     string
		seg      model.Segment
		expected model.Classification
		delta    *float64
	}{
		{
			name:     "decline past higher threshold",
			seg:      model.Segment{StreetID: "100", SectionID: "1"},
			expected: model.ClassAboveHigher,
			delta:    fp(15),
		},
		{
			name:     "small change stays unflagged",
			seg:      model.Segment{StreetID: "100", SectionID: "2"},
			expected: model.ClassUnflagged,
			delta:    fp(2),
		},
		{
			name:     "null prev PCI is missing data",
			seg:      model.Segment{StreetID: "100", SectionID: "3"},
			expected: model.ClassMissingData,
		},
		{
			name:     "improvement past lower threshold",
			seg:      model.Segment{StreetID: "100", SectionID: "4"},
			expected: model.ClassBelowLower,
			delta:    fp(-15),
		},
		{
			name:     "absent key is unmatched",
			seg:      model.Segment{StreetID: "999", SectionID: "9"},
			expected: model.ClassUnmatched,
		},
		{
			name:     "pre-combined key matches the same record",
			seg:      model.Segment{StreetSec: "100 - 1"},
			expected: model.ClassAboveHigher,
			delta:    fp(15),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cs := Classify(tt.seg, idx, th)
			assert.Equal(t, tt.expected, cs.Classification)
			if tt.delta == nil {
				assert.Nil(t, cs.Delta)
				assert.Equal(t, model.DeltaNA, cs.DeltaText)
				assert.Equal(t, 0.0, cs.DeltaOrZero())
			} else {
				require.NotNil(t, cs.Delta)
				assert.Equal(t, *tt.delta, *cs.Delta)
			}
		})
	}
}

func TestClassify_InclusiveTies(t *testing.T) {
	idx := join.BuildIndex([]model.InspectionRecord{
		{StreetID: "1", SectionID: "1", PrevPCI: fp(60), LastPCI: fp(70)}, // delta -10
		{StreetID: "1", SectionID: "2", PrevPCI: fp(80), LastPCI: fp(70)}, // delta 10
		{StreetID: "1", SectionID: "3", PrevPCI: fp(75), LastPCI: fp(70)}, // delta 5
	})
	th := Thresholds{Lower: -10, Higher: 10}

	assert.Equal(t, model.ClassBelowLower,
		Classify(model.Segment{StreetID: "1", SectionID: "1"}, idx, th).Classification)
	assert.Equal(t, model.ClassAboveHigher,
		Classify(model.Segment{StreetID: "1", SectionID: "2"}, idx, th).Classification)

	// Equal thresholds: the lower check wins when both conditions hold.
	eq := Thresholds{Lower: 5, Higher: 5}
	assert.Equal(t, model.ClassBelowLower,
		Classify(model.Segment{StreetID: "1", SectionID: "3"}, idx, eq).Classification)
}

func TestClassify_InvertedThresholdsStillDisjoint(t *testing.T) {
	// lower > higher: the stated inequalities still apply, lower first.
	idx := join.BuildIndex([]model.InspectionRecord{
		{StreetID: "1", SectionID: "1", PrevPCI: fp(78), LastPCI: fp(70)}, // delta 8
	})
	th := Thresholds{Lower: 20, Higher: 5}

	cs := Classify(model.Segment{StreetID: "1", SectionID: "1"}, idx, th)
	assert.Equal(t, model.ClassBelowLower, cs.Classification)
}

func TestClassify_DuplicateKeyUsesFirstRecord(t *testing.T) {
	idx := join.BuildIndex([]model.InspectionRecord{
		{StreetID: "7", SectionID: "1", PrevPCI: fp(90), LastPCI: fp(60)}, // delta 30
		{StreetID: "7", SectionID: "1", PrevPCI: fp(60), LastPCI: fp(60)}, // delta 0
	})
	cs := Classify(model.Segment{StreetID: "7", SectionID: "1"}, idx, Thresholds{Lower: -10, Higher: 10})
	require.NotNil(t, cs.Delta)
	assert.Equal(t, 30.0, *cs.Delta)
	assert.Equal(t, model.ClassAboveHigher, cs.Classification)
}

func TestClassifyAll_Counts(t *testing.T) {
	idx := testIndex()
	segments := []model.Segment{
		{FID: 0, StreetID: "100", SectionID: "1"},
		{FID: 1, StreetID: "100", SectionID: "2"},
		{FID: 2, StreetID: "100", SectionID: "3"},
		{FID: 3, StreetID: "100", SectionID: "4"},
		{FID: 4, StreetID: "999", SectionID: "9"},
	}

	classified, counts := ClassifyAll(segments, idx, Thresholds{Lower: -10, Higher: 10})
	assert.Len(t, classified, 5)
	assert.Equal(t, model.PartitionCounts{
		Below: 1, Above: 1, Combined: 2, Unflagged: 1, MissingData: 1, Unmatched: 1, Total: 5,
	}, counts)
}

func TestClassifyAll_NoMatches(t *testing.T) {
	idx := join.BuildIndex(nil)
	segments := []model.Segment{
		{FID: 0, StreetID: "1", SectionID: "1"},
		{FID: 1, StreetID: "1", SectionID: "2"},
	}

	classified, counts := ClassifyAll(segments, idx, DefaultThresholds())
	assert.Len(t, classified, 2)
	assert.Equal(t, 2, counts.Unmatched)
	assert.Zero(t, counts.Below)
	assert.Zero(t, counts.Above)
	assert.Zero(t, counts.Combined)
}

func TestParseThresholds(t *testing.T) {
	tests := []struct {
		name   string
		lower  string
		higher string
		want   Thresholds
	}{
		{"both numeric", "-25", "5", Thresholds{Lower: -25, Higher: 5}},
		{"empty uses defaults", "", "", DefaultThresholds()},
		{"bad lower falls back", "abc", "7", Thresholds{Lower: DefaultLower, Higher: 7}},
		{"bad higher falls back", "-3", "xyz", Thresholds{Lower: -3, Higher: DefaultHigher}},
		{"both bad fall back", "??", "??", DefaultThresholds()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseThresholds(tt.lower, tt.higher))
		})
	}
}
