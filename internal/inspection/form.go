// Package inspection holds the line walk form: header, rows, scores, summary,
// the reference catalog and the defect tag picker.
//
// A Form is not safe for concurrent use; the session layer serialises access.
package inspection

import (
	"slices"

	"github.com/tphakala/linewalk/internal/errors"
)

var (
	ErrRowNotFound        = errors.NewStd("row not found")
	ErrInvalidStatus      = errors.NewStd("invalid status")
	ErrInvalidScoreField  = errors.NewStd("invalid score field")
	ErrInvalidHeaderField = errors.NewStd("invalid header field")
	ErrTagsRequireNG      = errors.NewStd("defect tags require status NG")
)

// Header is the metadata block of a form
type Header struct {
	Category string `json:"category"`
	Style    string `json:"style"`
	Model    string `json:"model"`
	Line     string `json:"line"`
	Auditor  string `json:"auditor"`
	Date     string `json:"date"` // YYYY-MM-DD
	Time     string `json:"time"` // HH:MM
}

// Field returns a header value by its lowercase name
func (h *Header) Field(name string) (string, bool) {
	switch name {
	case "category":
		return h.Category, true
	case "style":
		return h.Style, true
	case "model":
		return h.Model, true
	case "line":
		return h.Line, true
	case "auditor":
		return h.Auditor, true
	case "date":
		return h.Date, true
	case "time":
		return h.Time, true
	default:
		return "", false
	}
}

// SetField assigns a header value by its lowercase name
func (h *Header) SetField(name, value string) error {
	switch name {
	case "category":
		h.Category = value
	case "style":
		h.Style = value
	case "model":
		h.Model = value
	case "line":
		h.Line = value
	case "auditor":
		h.Auditor = value
	case "date":
		h.Date = value
	case "time":
		h.Time = value
	default:
		return errors.New(ErrInvalidHeaderField).
			Component("inspection").
			Category(errors.CategoryValidation).
			Context("field", name).
			Build()
	}
	return nil
}

// Missing returns the required fields that are empty, in the order given
func (h *Header) Missing(required []string) []string {
	var missing []string
	for _, name := range required {
		if v, ok := h.Field(name); ok && v == "" {
			missing = append(missing, name)
		}
	}
	return missing
}

// Form is the inspection form being filled in
type Form struct {
	Header Header    `json:"header"`
	Rows   []RowItem `json:"rows"`
}

// NewForm creates a form with n default rows
func NewForm(n int, defaults RowDefaults) *Form {
	f := &Form{}
	f.Reset(n, defaults)
	return f
}

// Reset clears the header and rebuilds n default rows
func (f *Form) Reset(n int, defaults RowDefaults) {
	f.Header = Header{}
	f.Rows = make([]RowItem, 0, n)
	for range n {
		f.AddRow(defaults)
	}
}

// AddRow appends a default row and returns its id
func (f *Form) AddRow(defaults RowDefaults) string {
	row := newRow(len(f.Rows)+1, defaults)
	f.Rows = append(f.Rows, row)
	return row.ID
}

// Row returns the row with the given id
func (f *Form) Row(id string) (*RowItem, error) {
	i := f.indexOf(id)
	if i < 0 {
		return nil, rowNotFound(id)
	}
	return &f.Rows[i], nil
}

// DeleteRow removes a row and renumbers the rest 1..N
func (f *Form) DeleteRow(id string) error {
	i := f.indexOf(id)
	if i < 0 {
		return rowNotFound(id)
	}
	f.Rows = slices.Delete(f.Rows, i, i+1)
	f.renumber()
	return nil
}

// ResetRow clears status, tags, photo, scores and note while keeping id and index
func (f *Form) ResetRow(id string, defaults RowDefaults) error {
	row, err := f.Row(id)
	if err != nil {
		return err
	}
	*row = RowItem{
		ID:       row.ID,
		Index:    row.Index,
		MaxScore: defaults.MaxScore,
		Tags:     []string{},
	}
	return nil
}

// SetStatus sets a row's verdict. Any status other than NG clears its tags.
func (f *Form) SetStatus(id string, status Status) error {
	if _, ok := ParseStatus(string(status)); !ok {
		return errors.New(ErrInvalidStatus).
			Component("inspection").
			Category(errors.CategoryValidation).
			Context("status", string(status)).
			Build()
	}
	row, err := f.Row(id)
	if err != nil {
		return err
	}
	row.Status = status
	if status != StatusNG {
		row.Tags = []string{}
	}
	return nil
}

// SetTags replaces a row's defect tags, dropping duplicates. The row must be NG.
func (f *Form) SetTags(id string, tags []string) error {
	row, err := f.Row(id)
	if err != nil {
		return err
	}
	if row.Status != StatusNG {
		return errors.New(ErrTagsRequireNG).
			Component("inspection").
			Category(errors.CategoryState).
			Context("row_id", id).
			Build()
	}
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		if !slices.Contains(out, t) {
			out = append(out, t)
		}
	}
	row.Tags = out
	return nil
}

// SetScore parses input and stores it in the chosen field, keeping actual <= max.
// Malformed input is stored as 0 rather than rejected.
func (f *Form) SetScore(id string, field ScoreField, input string) (ScoreResult, error) {
	if field != ScoreMax && field != ScoreActual {
		return ScoreResult{}, errors.New(ErrInvalidScoreField).
			Component("inspection").
			Category(errors.CategoryValidation).
			Context("field", string(field)).
			Build()
	}
	row, err := f.Row(id)
	if err != nil {
		return ScoreResult{}, err
	}

	v := ParseScoreOrZero(input)
	clamped := false

	switch field {
	case ScoreMax:
		row.MaxScore = v
		if row.ActualScore > row.MaxScore {
			row.ActualScore = row.MaxScore
			clamped = true
		}
	case ScoreActual:
		if v > row.MaxScore {
			v = row.MaxScore
			clamped = true
		}
		row.ActualScore = v
	}

	return ScoreResult{MaxScore: row.MaxScore, ActualScore: row.ActualScore, Clamped: clamped}, nil
}

// SetNote sets the free-text remark of a row
func (f *Form) SetNote(id, note string) error {
	row, err := f.Row(id)
	if err != nil {
		return err
	}
	row.Note = note
	return nil
}

// SetDescription sets the item description of a row
func (f *Form) SetDescription(id, description string) error {
	row, err := f.Row(id)
	if err != nil {
		return err
	}
	row.Description = description
	return nil
}

// SetAttachment attaches a photo to a row, replacing any previous one
func (f *Form) SetAttachment(id string, att Attachment) error {
	row, err := f.Row(id)
	if err != nil {
		return err
	}
	att.Data = slices.Clone(att.Data)
	row.Attachment = &att
	return nil
}

// ClearAttachment removes a row's photo
func (f *Form) ClearAttachment(id string) error {
	row, err := f.Row(id)
	if err != nil {
		return err
	}
	row.Attachment = nil
	return nil
}

// Summary derives totals from the current rows
func (f *Form) Summary() Summary {
	return RecomputeSummary(f.Rows)
}

// Clone returns a deep copy; later edits to either side never leak into the other
func (f *Form) Clone() *Form {
	out := &Form{Header: f.Header, Rows: make([]RowItem, len(f.Rows))}
	for i := range f.Rows {
		out.Rows[i] = f.Rows[i].Copy()
	}
	return out
}

func (f *Form) indexOf(id string) int {
	return slices.IndexFunc(f.Rows, func(r RowItem) bool { return r.ID == id })
}

func (f *Form) renumber() {
	for i := range f.Rows {
		f.Rows[i].Index = i + 1
	}
}

func rowNotFound(id string) error {
	return errors.New(ErrRowNotFound).
		Component("inspection").
		Category(errors.CategoryNotFound).
		Context("row_id", id).
		Build()
}
