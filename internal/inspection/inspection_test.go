package inspection

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/pci-audit/internal/binding"
	"github.com/sells-group/pci-audit/internal/fieldmap"
)

const testCSV = `OBJECTID,Street_ID,Section_ID,Street_Name,Prev_Insp_PCI,Last_Insp_PCI,Prev_Insp_Date,Last_Insp_Date,Beg_Loc,End_Loc
1,100,1,MAIN ST,80,65,2019-04-02,2024-06-11,Oak Ave,Elm Ave
2,100,2,MAIN ST,70,68,2019-04-02,2024-06-11,Elm Ave,Pine Ave
3,100,3,MAIN ST,,50,,2024-06-12,Pine Ave,1st St
4,100,4,SIDE RD,bogus,70,2019-05-01,2024-06-12,,
`

func writeCSV(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "inspections.csv")
	require.NoError(t, os.WriteFile(path, []byte(testCSV), 0o644))
	return path
}

func TestLoadCSV(t *testing.T) {
	table, err := Load(writeCSV(t), binding.Default().Table)
	require.NoError(t, err)
	require.Len(t, table.Records, 4)

	r := table.Records[0]
	assert.Equal(t, "100", r.StreetID)
	assert.Equal(t, "1", r.SectionID)
	assert.Equal(t, "MAIN ST", r.StreetName)
	require.NotNil(t, r.PrevPCI)
	require.NotNil(t, r.LastPCI)
	assert.Equal(t, 80.0, *r.PrevPCI)
	assert.Equal(t, 65.0, *r.LastPCI)
	require.NotNil(t, r.PrevDate)
	assert.Equal(t, "2019-04-02", r.PrevDate.Format("2006-01-02"))
	assert.Equal(t, "Oak Ave", r.BeginLoc)

	// Empty PCI cell is a missing reading.
	assert.Nil(t, table.Records[2].PrevPCI)
	require.NotNil(t, table.Records[2].LastPCI)

	// Non-numeric text in a numeric column recovers as missing, not error.
	assert.Nil(t, table.Records[3].PrevPCI)
}

func TestLoadCSV_AttrsSkipSystemFields(t *testing.T) {
	table, err := Load(writeCSV(t), binding.Default().Table)
	require.NoError(t, err)

	attrs := table.Records[0].Attrs
	assert.NotContains(t, attrs, "OBJECTID")
	assert.Equal(t, "MAIN ST", attrs["Street_Name"])
	assert.Equal(t, "80", attrs["Prev_Insp_PCI"])

	for _, col := range table.Columns {
		assert.NotEqual(t, "OBJECTID", col.Name)
	}
}

func TestInferColumns(t *testing.T) {
	table, err := Load(writeCSV(t), binding.Default().Table)
	require.NoError(t, err)

	byName := map[string]Column{}
	for _, c := range table.Columns {
		byName[c.Name] = c
	}

	assert.Equal(t, fieldmap.TypeLong, byName["Street_ID"].Type)
	assert.Equal(t, fieldmap.TypeText, byName["Street_Name"].Type)
	assert.Equal(t, fieldmap.TypeDate, byName["Prev_Insp_Date"].Type)
	// "bogus" in row 4 makes the column non-numeric.
	assert.Equal(t, fieldmap.TypeText, byName["Prev_Insp_PCI"].Type)
	assert.Equal(t, fieldmap.TypeLong, byName["Last_Insp_PCI"].Type)
}

func TestLoadXLSX(t *testing.T) {
	path := filepath.Join(t.TempDir(), "inspections.xlsx")

	f := xlsx.NewFile()
	sheet, err := f.AddSheet("PCI")
	require.NoError(t, err)

	addRow := func(values ...string) {
		row := sheet.AddRow()
		for _, v := range values {
			row.AddCell().Value = v
		}
	}
	addRow("Street_ID", "Section_ID", "Prev_Insp_PCI", "Last_Insp_PCI")
	addRow("200", "1", "55", "71")
	addRow("200", "2", "", "40")
	require.NoError(t, f.Save(path))

	b := binding.Default().Table
	b.Sheet = "PCI"
	table, err := Load(path, b)
	require.NoError(t, err)
	require.Len(t, table.Records, 2)
	require.NotNil(t, table.Records[0].PrevPCI)
	assert.Equal(t, 55.0, *table.Records[0].PrevPCI)
	assert.Nil(t, table.Records[1].PrevPCI)

	// Unknown sheet name is an error.
	b.Sheet = "Missing"
	_, err = Load(path, b)
	assert.Error(t, err)
}

func TestLoad_UnsupportedFormat(t *testing.T) {
	_, err := Load("table.parquet", binding.Default().Table)
	assert.Error(t, err)
}
