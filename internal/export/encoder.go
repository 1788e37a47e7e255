package export

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/xuri/excelize/v2"

	"github.com/tphakala/linewalk/internal/errors"
)

// File formats
const (
	FormatXLSX = "xlsx"
	FormatCSV  = "csv"
)

// Encoder renders a sheet into a file format
type Encoder interface {
	Format() string
	ContentType() string
	Encode(w io.Writer, sheet *Sheet) error
}

// XLSXEncoder writes styled workbooks with excelize
type XLSXEncoder struct{}

func (XLSXEncoder) Format() string { return FormatXLSX }

func (XLSXEncoder) ContentType() string {
	return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
}

// Column widths in characters, indexed by column. Tag slots use the last value.
var xlsxColumnWidths = []float64{6, 8, 28, 11, 13, 28, 15, 16}

const (
	headerFillColor = "007BFF"
	bandFillColor   = "F2F6FC"
	borderColor     = "BFBFBF"
)

type xlsxStyles struct {
	headerBlock  int
	columnHeader int
	plain        int
	band         int
	summaryLabel int
}

func xlsxBorders() []excelize.Border {
	return []excelize.Border{
		{Type: "left", Color: borderColor, Style: 1},
		{Type: "top", Color: borderColor, Style: 1},
		{Type: "right", Color: borderColor, Style: 1},
		{Type: "bottom", Color: borderColor, Style: 1},
	}
}

func newXLSXStyles(f *excelize.File) (*xlsxStyles, error) {
	var s xlsxStyles
	defs := []struct {
		dst   *int
		style *excelize.Style
	}{
		{&s.headerBlock, &excelize.Style{
			Font:      &excelize.Font{Bold: true},
			Alignment: &excelize.Alignment{Horizontal: "left", Vertical: "center"},
		}},
		{&s.columnHeader, &excelize.Style{
			Font:      &excelize.Font{Bold: true, Color: "FFFFFF"},
			Fill:      excelize.Fill{Type: "pattern", Color: []string{headerFillColor}, Pattern: 1},
			Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center", WrapText: true},
			Border:    xlsxBorders(),
		}},
		{&s.plain, &excelize.Style{Border: xlsxBorders()}},
		{&s.band, &excelize.Style{
			Fill:   excelize.Fill{Type: "pattern", Color: []string{bandFillColor}, Pattern: 1},
			Border: xlsxBorders(),
		}},
		{&s.summaryLabel, &excelize.Style{Font: &excelize.Font{Bold: true}}},
	}
	for _, d := range defs {
		id, err := f.NewStyle(d.style)
		if err != nil {
			return nil, err
		}
		*d.dst = id
	}
	return &s, nil
}

// Encode writes sheet as a single-worksheet workbook
func (XLSXEncoder) Encode(w io.Writer, sheet *Sheet) (err error) {
	f := excelize.NewFile()
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	name := sheet.Name
	if err := f.SetSheetName(f.GetSheetName(0), name); err != nil {
		return encodeError(FormatXLSX, "rename sheet", err)
	}

	for r := range sheet.Rows {
		cell, err := excelize.CoordinatesToCellName(1, r+1)
		if err != nil {
			return encodeError(FormatXLSX, "cell name", err)
		}
		row := sheet.Rows[r]
		if err := f.SetSheetRow(name, cell, &row); err != nil {
			return encodeError(FormatXLSX, "write row", err)
		}
	}

	for _, m := range sheet.Merges {
		first, _ := excelize.CoordinatesToCellName(m.FirstCol+1, m.Row+1)
		last, _ := excelize.CoordinatesToCellName(m.LastCol+1, m.Row+1)
		if err := f.MergeCell(name, first, last); err != nil {
			return encodeError(FormatXLSX, "merge cells", err)
		}
	}

	if err := applyXLSXStyles(f, sheet); err != nil {
		return encodeError(FormatXLSX, "style cells", err)
	}

	if _, err := f.WriteTo(w); err != nil {
		return encodeError(FormatXLSX, "write workbook", err)
	}
	return nil
}

func applyXLSXStyles(f *excelize.File, sheet *Sheet) error {
	styles, err := newXLSXStyles(f)
	if err != nil {
		return err
	}
	name := sheet.Name
	lastCol := sheet.Columns

	rowRange := func(row int) (string, string) {
		first, _ := excelize.CoordinatesToCellName(1, row+1)
		last, _ := excelize.CoordinatesToCellName(lastCol, row+1)
		return first, last
	}

	l := sheet.Layout
	if l.HeaderRows > 0 {
		first, _ := rowRange(0)
		_, last := rowRange(l.HeaderRows - 1)
		if err := f.SetCellStyle(name, first, last, styles.headerBlock); err != nil {
			return err
		}
	}

	first, last := rowRange(l.ColumnHeaderRow)
	if err := f.SetCellStyle(name, first, last, styles.columnHeader); err != nil {
		return err
	}

	for i := range l.DataRows {
		style := styles.plain
		if i%2 == 1 {
			style = styles.band
		}
		first, last := rowRange(l.FirstDataRow + i)
		if err := f.SetCellStyle(name, first, last, style); err != nil {
			return err
		}
	}

	if l.SummaryRow >= 0 {
		first, _ := excelize.CoordinatesToCellName(1, l.SummaryRow+1)
		last, _ := excelize.CoordinatesToCellName(1, len(sheet.Rows))
		if err := f.SetCellStyle(name, first, last, styles.summaryLabel); err != nil {
			return err
		}
	}

	for col := 1; col <= lastCol; col++ {
		colName, err := excelize.ColumnNumberToName(col)
		if err != nil {
			return err
		}
		width := xlsxColumnWidths[min(col, len(xlsxColumnWidths))-1]
		if err := f.SetColWidth(name, colName, colName, width); err != nil {
			return err
		}
	}
	return nil
}

// CSVEncoder writes the plain grid. It is the fallback when xlsx fails.
type CSVEncoder struct{}

func (CSVEncoder) Format() string      { return FormatCSV }
func (CSVEncoder) ContentType() string { return "text/csv; charset=utf-8" }

// Encode writes every sheet row as a CSV record, without styling or merges
func (CSVEncoder) Encode(w io.Writer, sheet *Sheet) error {
	cw := csv.NewWriter(w)
	record := make([]string, sheet.Columns)
	for _, row := range sheet.Rows {
		for i := range record {
			record[i] = ""
			if i < len(row) {
				record[i] = cellText(row[i])
			}
		}
		if err := cw.Write(record); err != nil {
			return encodeError(FormatCSV, "write row", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return encodeError(FormatCSV, "flush", err)
	}
	return nil
}

func cellText(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case int:
		return strconv.Itoa(val)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		return ""
	}
}

func encodeError(format, op string, err error) error {
	return errors.New(err).
		Component("export").
		Category(errors.CategoryExport).
		Context("format", format).
		Context("operation", op).
		Build()
}
