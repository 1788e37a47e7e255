// Package export turns stored records into spreadsheet files.
//
// BuildSheet lays a record out as a grid of cells. Encoders render that grid
// as xlsx or csv, and the Exporter hands the encoded file to a target.
package export

import (
	"strconv"

	"github.com/tphakala/linewalk/internal/conf"
	"github.com/tphakala/linewalk/internal/datastore"
)

// Fixed columns before the defect tag slots
var baseColumns = []string{
	"No.", "OK/NG", "Description", "Max Score", "Actual Score", "Remark", "Photo Attached",
}

// Options control the sheet layout
type Options struct {
	TagSlots  int    // number of "Defect type N" columns
	Summary   bool   // append the totals block
	SheetName string // worksheet name
}

// DefaultOptions matches the configuration defaults
func DefaultOptions() Options {
	return Options{
		TagSlots:  conf.DefaultTagSlots,
		Summary:   true,
		SheetName: conf.DefaultSheetName,
	}
}

// OptionsFromSettings reads the layout options from the export settings
func OptionsFromSettings(s *conf.ExportSettings) Options {
	opts := DefaultOptions()
	if s == nil {
		return opts
	}
	if s.TagSlots > 0 {
		opts.TagSlots = s.TagSlots
	}
	opts.Summary = s.Summary
	if s.SheetName != "" {
		opts.SheetName = s.SheetName
	}
	return opts
}

// Merge is a horizontal merge of one row, zero-based and inclusive
type Merge struct {
	Row      int
	FirstCol int
	LastCol  int
}

// Layout records where each block of the sheet starts. Row indices are zero-based.
type Layout struct {
	HeaderRows      int // header block occupies rows [0, HeaderRows)
	ColumnHeaderRow int
	FirstDataRow    int
	DataRows        int
	SummaryRow      int // first summary row, -1 when there is no summary
}

// Sheet is an encoder-independent grid of cells
type Sheet struct {
	Name    string
	Columns int
	Rows    [][]any
	Merges  []Merge
	Layout  Layout
}

// ColumnHeaders returns the column header names for a tag slot count
func ColumnHeaders(tagSlots int) []string {
	out := make([]string, 0, len(baseColumns)+tagSlots)
	out = append(out, baseColumns...)
	for i := 1; i <= tagSlots; i++ {
		out = append(out, "Defect type "+strconv.Itoa(i))
	}
	return out
}

// BuildSheet lays out a record. It does not modify rec.
func BuildSheet(rec *datastore.Record, opts Options) *Sheet {
	if opts.TagSlots < 0 {
		opts.TagSlots = 0
	}
	if opts.SheetName == "" {
		opts.SheetName = conf.DefaultSheetName
	}

	headers := ColumnHeaders(opts.TagSlots)
	cols := len(headers)
	sheet := &Sheet{Name: opts.SheetName, Columns: cols}

	h := rec.Header
	labels := []struct{ label, value string }{
		{"Date", h.Date},
		{"Time", h.Time},
		{"Category", h.Category},
		{"Style", h.Style},
		{"Model", h.Model},
		{"Line", h.Line},
		{"Auditor", h.Auditor},
	}
	for _, l := range labels {
		sheet.Merges = append(sheet.Merges, Merge{Row: len(sheet.Rows), FirstCol: 0, LastCol: cols - 1})
		sheet.Rows = append(sheet.Rows, padRow([]any{l.label + ": " + l.value}, cols))
	}
	sheet.Layout.HeaderRows = len(labels)

	sheet.Layout.ColumnHeaderRow = len(sheet.Rows)
	headerRow := make([]any, cols)
	for i, name := range headers {
		headerRow[i] = name
	}
	sheet.Rows = append(sheet.Rows, headerRow)

	sheet.Layout.FirstDataRow = len(sheet.Rows)
	for i := range rec.Rows {
		r := &rec.Rows[i]
		photo := "No"
		if r.HasAttachment() {
			photo = "Yes"
		}
		row := make([]any, 0, cols)
		row = append(row, r.Index, string(r.Status), r.Description, r.MaxScore, r.ActualScore, r.Note, photo)
		for slot := range opts.TagSlots {
			if slot < len(r.Tags) {
				row = append(row, r.Tags[slot])
			} else {
				row = append(row, "")
			}
		}
		sheet.Rows = append(sheet.Rows, row)
	}
	sheet.Layout.DataRows = len(rec.Rows)

	sheet.Layout.SummaryRow = -1
	if opts.Summary {
		s := rec.Summary()
		sheet.Rows = append(sheet.Rows, padRow(nil, cols))
		sheet.Layout.SummaryRow = len(sheet.Rows)
		sheet.Rows = append(sheet.Rows,
			padRow([]any{"Total Items", s.TotalItems}, cols),
			padRow([]any{"Total Max", s.TotalMax}, cols),
			padRow([]any{"Total Actual", s.TotalActual}, cols),
			padRow([]any{"Percentage", s.Percentage}, cols),
		)
	}

	return sheet
}

func padRow(cells []any, cols int) []any {
	row := make([]any, cols)
	copy(row, cells)
	for i := len(cells); i < cols; i++ {
		row[i] = ""
	}
	return row
}
