package main

import (
	"os"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/pci-audit/internal/binding"
	"github.com/sells-group/pci-audit/internal/classify"
	"github.com/sells-group/pci-audit/internal/inspection"
	"github.com/sells-group/pci-audit/internal/join"
	"github.com/sells-group/pci-audit/internal/materialize"
	"github.com/sells-group/pci-audit/internal/midpoint"
	"github.com/sells-group/pci-audit/internal/model"
	"github.com/sells-group/pci-audit/internal/report"
	"github.com/sells-group/pci-audit/internal/shape"
	"github.com/sells-group/pci-audit/internal/srs"
)

var (
	analyzeSegments string
	analyzeTable    string
	analyzeBinding  string
	analyzeLower    string
	analyzeHigher   string
	analyzeOutDir   string
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Run the full audit: join, classify, derive midpoints, write outputs",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		segPath := firstNonEmpty(analyzeSegments, cfg.Inputs.Segments)
		tablePath := firstNonEmpty(analyzeTable, cfg.Inputs.Table)
		if segPath == "" || tablePath == "" {
			return eris.New("analyze: --segments and --table are required (flags or config)")
		}

		b := binding.Default()
		if bp := firstNonEmpty(analyzeBinding, cfg.Inputs.Binding); bp != "" {
			var err error
			b, err = binding.Load(bp)
			if err != nil {
				return err
			}
		}

		th := resolveThresholds(analyzeLower, analyzeHigher)

		segments, err := shape.ReadSegments(segPath, b.Segments)
		if err != nil {
			return err
		}
		table, err := inspection.Load(tablePath, b.Table)
		if err != nil {
			return err
		}

		idx := join.BuildIndex(table.Records)
		results, _ := classify.ClassifyAll(segments, idx, th)
		deriveMidpoints(results, b.Segments.EPSG)

		run := &model.Run{
			SegmentSource:   segPath,
			TableSource:     tablePath,
			LowerThreshold:  th.Lower,
			HigherThreshold: th.Higher,
		}
		st, err := initStore(ctx)
		if err != nil {
			zap.L().Warn("analyze: store unavailable, run will not be recorded", zap.Error(err))
			st = nil
		}
		if st != nil {
			defer func() { _ = st.Close() }()
			if err := st.CreateRun(ctx, run); err != nil {
				zap.L().Warn("analyze: could not record run", zap.Error(err))
			}
		}

		outDir := firstNonEmpty(analyzeOutDir, cfg.Outputs.Dir)
		paths := materialize.DefaultPaths(outDir, time.Now())
		counts := materialize.Write(results, table.Columns, th, paths)

		if st != nil {
			if err := st.AddSummary(ctx, materialize.BuildSummary(run.ID, results)); err != nil {
				zap.L().Warn("analyze: could not store summary rows", zap.Error(err))
			}
			if err := st.CompleteRun(ctx, run.ID, counts); err != nil {
				zap.L().Warn("analyze: could not complete run record", zap.Error(err))
			}
		}

		report.Print(os.Stdout, results, counts, th)
		return nil
	},
}

// deriveMidpoints attaches midpoints to the flagged results. A segment whose
// midpoint cannot be derived keeps a nil midpoint and is skipped in the
// point outputs; the run continues.
func deriveMidpoints(results []model.ClassifiedSegment, epsg int) {
	tr, err := srs.ForEPSG(epsg)
	if err != nil {
		zap.L().Warn("analyze: no transformer for frame, skipping midpoints",
			zap.Int("epsg", epsg),
			zap.Error(err),
		)
		return
	}
	for i := range results {
		if !results[i].Classification.Flagged() {
			continue
		}
		mp, err := midpoint.Derive(results[i].Segment, tr)
		if err != nil {
			zap.L().Warn("analyze: midpoint derivation failed",
				zap.Int("fid", results[i].Segment.FID),
				zap.Error(err),
			)
			continue
		}
		results[i].Midpoint = mp
	}
}

// resolveThresholds layers flag input over config over defaults.
func resolveThresholds(lowerFlag, higherFlag string) classify.Thresholds {
	lower := lowerFlag
	if lower == "" {
		lower = strconv.FormatFloat(cfg.Thresholds.Lower, 'g', -1, 64)
	}
	higher := higherFlag
	if higher == "" {
		higher = strconv.FormatFloat(cfg.Thresholds.Higher, 'g', -1, 64)
	}
	return classify.ParseThresholds(lower, higher)
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func init() {
	analyzeCmd.Flags().StringVar(&analyzeSegments, "segments", "", "road-segment shapefile (.shp)")
	analyzeCmd.Flags().StringVar(&analyzeTable, "table", "", "inspection table (.csv or .xlsx)")
	analyzeCmd.Flags().StringVar(&analyzeBinding, "binding", "", "schema binding file (yaml)")
	analyzeCmd.Flags().StringVar(&analyzeLower, "lower", "", "lower delta threshold (default from config)")
	analyzeCmd.Flags().StringVar(&analyzeHigher, "higher", "", "higher delta threshold (default from config)")
	analyzeCmd.Flags().StringVar(&analyzeOutDir, "out", "", "output directory (default from config)")
	rootCmd.AddCommand(analyzeCmd)
}
