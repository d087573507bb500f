package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sells-group/pci-audit/internal/binding"
	"github.com/sells-group/pci-audit/internal/fieldmap"
	"github.com/sells-group/pci-audit/internal/inspection"
)

var fieldsBinding string

var fieldsCmd = &cobra.Command{
	Use:   "fields <table.csv|table.xlsx>",
	Short: "Show the storage-safe field mapping a shapefile output would use",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		b := binding.Default()
		if bp := firstNonEmpty(fieldsBinding, cfg.Inputs.Binding); bp != "" {
			var err error
			b, err = binding.Load(bp)
			if err != nil {
				return err
			}
		}

		table, err := inspection.Load(args[0], b.Table)
		if err != nil {
			return err
		}

		names := make([]string, 0, len(table.Columns))
		types := make(map[string]fieldmap.Type, len(table.Columns))
		for _, col := range table.Columns {
			names = append(names, col.Name)
			types[col.Name] = col.Type
		}
		mapping := fieldmap.Build(names, fieldmap.DBFLimit)

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		_, _ = fmt.Fprintln(w, "SOURCE\tSTORED\tTYPE")
		for _, name := range mapping.Fields() {
			short, _ := mapping.Short(name)
			marker := ""
			if short != name {
				marker = " (truncated)"
			}
			_, _ = fmt.Fprintf(w, "%s\t%s%s\t%s\n", name, short, marker, types[name])
		}
		_ = w.Flush()

		if skipped := mapping.Skipped(); len(skipped) > 0 {
			fmt.Println("\nSkipped (truncation collisions):")
			for _, name := range skipped {
				fmt.Printf("  %s\n", name)
			}
		}
		return nil
	},
}

func init() {
	fieldsCmd.Flags().StringVar(&fieldsBinding, "binding", "", "schema binding file (yaml)")
	rootCmd.AddCommand(fieldsCmd)
}
