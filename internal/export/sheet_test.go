package export

import (
	"bytes"
	"testing"
	"time"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/tphakala/linewalk/internal/datastore"
	"github.com/tphakala/linewalk/internal/inspection"
)

func sampleRecord() *datastore.Record {
	return &datastore.Record{
		ID:   "lwt_1748873100000",
		Name: "LWT-Line Walk Through-2025-06-02",
		Header: inspection.Header{
			Category: "Line Walk Through",
			Style:    "STY001",
			Model:    "Air Max 270",
			Line:     "101",
			Auditor:  "Rina",
			Date:     "2025-06-02",
			Time:     "14:05",
		},
		Rows: []inspection.RowItem{
			{ID: "r1", Index: 1, Status: inspection.StatusOK, MaxScore: 10, ActualScore: 10, Tags: []string{}},
			{
				ID: "r2", Index: 2, Status: inspection.StatusNG, Description: "Toe cap",
				MaxScore: 10, ActualScore: 6.5, Note: "glue mark",
				Tags:       []string{"Hairy", "Stain", "Bonding Gap", "Wrinkle"},
				Attachment: &inspection.Attachment{Name: "toe.jpg", ContentType: "image/jpeg", Data: []byte{0xff, 0xd8}},
			},
		},
		SavedAt: time.Date(2025, 6, 2, 14, 5, 0, 0, time.UTC),
	}
}

func TestBuildSheet_TagSlots(t *testing.T) {
	t.Parallel()
	rec := &datastore.Record{
		Rows: []inspection.RowItem{
			{Index: 1, Status: inspection.StatusNG, MaxScore: 10, Tags: []string{"Hairy", "Damage", "Stain"}},
			{Index: 2, Status: inspection.StatusOK, MaxScore: 10, Tags: []string{}},
		},
	}

	sheet := BuildSheet(rec, Options{TagSlots: 10})
	require.Equal(t, 17, sheet.Columns)

	first := sheet.Rows[sheet.Layout.FirstDataRow]
	second := sheet.Rows[sheet.Layout.FirstDataRow+1]
	assert.Equal(t, []any{"Hairy", "Damage", "Stain", "", "", "", "", "", "", ""}, first[7:])
	for i, v := range second[7:] {
		assert.Equal(t, "", v, "slot %d", i+1)
	}
	assert.Equal(t, -1, sheet.Layout.SummaryRow)
	assert.Len(t, sheet.Rows, 7+1+2)
	assert.Equal(t, "LWT Data", sheet.Name)
}

func TestBuildSheet_Layout(t *testing.T) {
	t.Parallel()
	rec := sampleRecord()
	before := rec.Rows[1].Copy()

	sheet := BuildSheet(rec, Options{TagSlots: 3, Summary: true, SheetName: "Audit"})

	assert.Equal(t, Layout{HeaderRows: 7, ColumnHeaderRow: 7, FirstDataRow: 8, DataRows: 2, SummaryRow: 11}, sheet.Layout)
	require.Len(t, sheet.Merges, 7)
	for i, m := range sheet.Merges {
		assert.Equal(t, Merge{Row: i, FirstCol: 0, LastCol: 9}, m)
	}
	assert.Equal(t, "Category: Line Walk Through", sheet.Rows[2][0])
	assert.Equal(t, []any{2, "NG", "Toe cap", 10.0, 6.5, "glue mark", "Yes", "Hairy", "Stain", "Bonding Gap"}, sheet.Rows[9])
	assert.Equal(t, []any{"Percentage", 82.5, "", "", "", "", "", "", "", ""}, sheet.Rows[14])
	assert.Equal(t, before, rec.Rows[1], "record is not modified")
}

func TestCSVEncoder_Golden(t *testing.T) {
	t.Parallel()
	sheet := BuildSheet(sampleRecord(), Options{TagSlots: 3, Summary: true})

	var buf bytes.Buffer
	require.NoError(t, CSVEncoder{}.Encode(&buf, sheet))

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "sheet_csv", buf.Bytes())
}

func TestXLSXEncoder_Workbook(t *testing.T) {
	t.Parallel()
	sheet := BuildSheet(sampleRecord(), DefaultOptions())

	var buf bytes.Buffer
	require.NoError(t, XLSXEncoder{}.Encode(&buf, sheet))

	f, err := excelize.OpenReader(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	require.Equal(t, "LWT Data", f.GetSheetName(0))
	assert.Len(t, f.GetSheetList(), 1)

	merges, err := f.GetMergeCells("LWT Data")
	require.NoError(t, err)
	require.Len(t, merges, 7)
	axes := make(map[string]string, len(merges))
	for _, m := range merges {
		axes[m.GetStartAxis()] = m.GetEndAxis()
	}
	assert.Equal(t, "Q1", axes["A1"], "header rows span all 17 columns")
	assert.Equal(t, "Q7", axes["A7"])

	rows, err := f.GetRows("LWT Data")
	require.NoError(t, err)
	assert.Equal(t, "Auditor: Rina", rows[6][0])
	assert.Equal(t, ColumnHeaders(10), rows[7])
	assert.Equal(t, []string{"2", "NG", "Toe cap", "10", "6.5", "glue mark", "Yes", "Hairy", "Stain", "Bonding Gap", "Wrinkle"}, rows[9])

	styleID, err := f.GetCellStyle("LWT Data", "A8")
	require.NoError(t, err)
	style, err := f.GetStyle(styleID)
	require.NoError(t, err)
	require.NotNil(t, style.Font)
	assert.True(t, style.Font.Bold)
}

func TestColumnHeaders(t *testing.T) {
	t.Parallel()
	assert.Equal(t, []string{"No.", "OK/NG", "Description", "Max Score", "Actual Score", "Remark", "Photo Attached"}, ColumnHeaders(0))
	h := ColumnHeaders(2)
	assert.Equal(t, "Defect type 2", h[len(h)-1])
}
