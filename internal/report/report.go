// Package report prints the console diagnostics of an audit run: the
// per-record findings, the sorted threshold summaries, and the partition
// counts.
package report

import (
	"fmt"
	"io"
	"sort"
	"text/tabwriter"

	"github.com/sells-group/pci-audit/internal/classify"
	"github.com/sells-group/pci-audit/internal/join"
	"github.com/sells-group/pci-audit/internal/model"
)

// SortedBelow returns the below-lower results ordered by delta ascending, so
// the worst decline prints first for a negative lower threshold.
func SortedBelow(results []model.ClassifiedSegment) []model.ClassifiedSegment {
	var out []model.ClassifiedSegment
	for _, r := range results {
		if r.Classification == model.ClassBelowLower {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].DeltaOrZero() < out[j].DeltaOrZero()
	})
	return out
}

// SortedAbove returns the above-higher results ordered by delta descending.
func SortedAbove(results []model.ClassifiedSegment) []model.ClassifiedSegment {
	var out []model.ClassifiedSegment
	for _, r := range results {
		if r.Classification == model.ClassAboveHigher {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].DeltaOrZero() > out[j].DeltaOrZero()
	})
	return out
}

// Print writes the full diagnostics block for a run.
func Print(out io.Writer, results []model.ClassifiedSegment, counts model.PartitionCounts, th classify.Thresholds) {
	_, _ = fmt.Fprintf(out, "Thresholds: lower %g, higher %g\n\n", th.Lower, th.Higher)

	printFindings(out, results)
	printSummary(out, fmt.Sprintf("Sections at or below %g", th.Lower), SortedBelow(results))
	printSummary(out, fmt.Sprintf("Sections at or above %g", th.Higher), SortedAbove(results))

	_, _ = fmt.Fprintln(out, "Counts:")
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "  below\t%d\n", counts.Below)
	_, _ = fmt.Fprintf(w, "  above\t%d\n", counts.Above)
	_, _ = fmt.Fprintf(w, "  combined\t%d\n", counts.Combined)
	_, _ = fmt.Fprintf(w, "  unflagged\t%d\n", counts.Unflagged)
	_, _ = fmt.Fprintf(w, "  missing data\t%d\n", counts.MissingData)
	_, _ = fmt.Fprintf(w, "  unmatched\t%d\n", counts.Unmatched)
	_, _ = fmt.Fprintf(w, "  total\t%d\n", counts.Total)
	_ = w.Flush()
}

// printFindings writes one line per flagged section in source order.
func printFindings(out io.Writer, results []model.ClassifiedSegment) {
	n := 0
	for i := range results {
		r := &results[i]
		if !r.Classification.Flagged() {
			continue
		}
		street := r.Segment.StreetName
		if street == "" && r.Record != nil {
			street = r.Record.StreetName
		}
		_, _ = fmt.Fprintf(out, "%s  %s  delta %s (%s)\n",
			join.SegmentKey(r.Segment), street, r.DeltaText, r.Classification)
		n++
	}
	if n > 0 {
		_, _ = fmt.Fprintln(out)
	}
}

func printSummary(out io.Writer, title string, rows []model.ClassifiedSegment) {
	_, _ = fmt.Fprintf(out, "%s: %d\n", title, len(rows))
	if len(rows) == 0 {
		_, _ = fmt.Fprintln(out)
		return
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "  KEY\tSTREET\tPREV\tLAST\tDELTA")
	for i := range rows {
		r := &rows[i]
		prev, last := "-", "-"
		street := r.Segment.StreetName
		if r.Record != nil {
			if r.Record.PrevPCI != nil {
				prev = fmt.Sprintf("%g", *r.Record.PrevPCI)
			}
			if r.Record.LastPCI != nil {
				last = fmt.Sprintf("%g", *r.Record.LastPCI)
			}
			if street == "" {
				street = r.Record.StreetName
			}
		}
		_, _ = fmt.Fprintf(w, "  %s\t%s\t%s\t%s\t%s\n",
			join.SegmentKey(r.Segment), street, prev, last, r.DeltaText)
	}
	_ = w.Flush()
	_, _ = fmt.Fprintln(out)
}
