package main

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/pci-audit/internal/binding"
	"github.com/sells-group/pci-audit/internal/fieldmap"
	"github.com/sells-group/pci-audit/internal/links"
	"github.com/sells-group/pci-audit/internal/midpoint"
	"github.com/sells-group/pci-audit/internal/shape"
	"github.com/sells-group/pci-audit/internal/srs"
)

var (
	midpointsBinding string
	midpointsOut     string
)

var midpointsCmd = &cobra.Command{
	Use:   "midpoints <segments.shp>",
	Short: "Derive segment midpoints into a point shapefile",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		b := binding.Default()
		if bp := firstNonEmpty(midpointsBinding, cfg.Inputs.Binding); bp != "" {
			var err error
			b, err = binding.Load(bp)
			if err != nil {
				return err
			}
		}

		segments, err := shape.ReadSegments(args[0], b.Segments)
		if err != nil {
			return err
		}

		tr, err := srs.ForEPSG(b.Segments.EPSG)
		if err != nil {
			return err
		}

		mids, err := midpoint.DeriveBatch(segments, tr)
		if err != nil {
			return err
		}

		streetByFID := make(map[int]string, len(segments))
		for _, seg := range segments {
			streetByFID[seg.FID] = seg.StreetName
		}

		out := midpointsOut
		if out == "" {
			out = "midpoints.shp"
		}
		w, err := shape.NewPointWriter(out)
		if err != nil {
			return err
		}
		defer func() { _ = w.Close() }()

		fieldmap.Ensure(w, "ORIG_FID", fieldmap.TypeLong, 0, fieldmap.DBFLimit)
		fieldmap.Ensure(w, "MidptOf", fieldmap.TypeText, 10, fieldmap.DBFLimit)
		fieldmap.Ensure(w, "LAT", fieldmap.TypeDouble, 0, fieldmap.DBFLimit)
		fieldmap.Ensure(w, "LON", fieldmap.TypeDouble, 0, fieldmap.DBFLimit)
		fieldmap.Ensure(w, "ImgURL", fieldmap.TypeText, 254, fieldmap.DBFLimit)
		fieldmap.Ensure(w, "PanoURL", fieldmap.TypeText, 254, fieldmap.DBFLimit)

		for _, m := range mids {
			row, err := w.WritePoint(m.X, m.Y)
			if err != nil {
				zap.L().Warn("midpoints: write failed", zap.Int("fid", m.OrigFID), zap.Error(err))
				continue
			}
			writeAttr(w, row, "ORIG_FID", m.OrigFID)
			writeAttr(w, row, "MidptOf", fieldmap.MapName("Mid "+streetByFID[m.OrigFID], fieldmap.DBFLimit))
			writeAttr(w, row, "LAT", m.Lat)
			writeAttr(w, row, "LON", m.Lon)
			writeAttr(w, row, "ImgURL", links.Imagery(m.Lat, m.Lon))
			writeAttr(w, row, "PanoURL", links.Panorama(m.Lat, m.Lon))
		}
		if err := w.Close(); err != nil {
			return eris.Wrap(err, "midpoints: close output")
		}

		fmt.Printf("Wrote %d midpoints to %s\n", w.Count(), out)
		return nil
	},
}

func writeAttr(w *shape.Writer, row int, name string, value any) {
	if err := w.WriteAttr(row, name, value); err != nil {
		zap.L().Warn("midpoints: attribute write failed",
			zap.String("field", name),
			zap.Error(err),
		)
	}
}

func init() {
	midpointsCmd.Flags().StringVar(&midpointsBinding, "binding", "", "schema binding file (yaml)")
	midpointsCmd.Flags().StringVar(&midpointsOut, "out", "", "output point shapefile (default midpoints.shp)")
	rootCmd.AddCommand(midpointsCmd)
}
