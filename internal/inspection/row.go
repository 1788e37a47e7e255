// row.go this code defines the inspection row model
package inspection

import (
	"slices"

	"github.com/google/uuid"
)

// Status is the pass/fail verdict of a row. The zero value means not inspected yet.
type Status string

const (
	StatusUnset Status = ""
	StatusOK    Status = "OK"
	StatusNG    Status = "NG"
)

// ParseStatus validates a raw status value.
func ParseStatus(s string) (Status, bool) {
	switch Status(s) {
	case StatusUnset, StatusOK, StatusNG:
		return Status(s), true
	default:
		return StatusUnset, false
	}
}

// Attachment is an optional photo attached to a row.
type Attachment struct {
	Name        string `json:"name"`
	ContentType string `json:"contentType"`
	Data        []byte `json:"data"` // base64 in JSON
}

// RowItem represents a single inspected pair or audit item
type RowItem struct {
	ID          string      `json:"id"`
	Index       int         `json:"index"` // 1-based, contiguous
	Status      Status      `json:"status"`
	Description string      `json:"description,omitempty"`
	MaxScore    float64     `json:"maxScore"`
	ActualScore float64     `json:"actualScore"` // never above MaxScore
	Tags        []string    `json:"tags"`        // defect tags, only while Status is NG
	Attachment  *Attachment `json:"attachment,omitempty"`
	Note        string      `json:"note,omitempty"`
}

// RowDefaults are the values a new or reset row starts from.
type RowDefaults struct {
	MaxScore float64
}

func newRow(index int, defaults RowDefaults) RowItem {
	return RowItem{
		ID:       uuid.NewString(),
		Index:    index,
		MaxScore: defaults.MaxScore,
		Tags:     []string{},
	}
}

// HasAttachment reports whether a photo is attached
func (r *RowItem) HasAttachment() bool {
	return r.Attachment != nil && len(r.Attachment.Data) > 0
}

// Inspected reports whether a status was chosen
func (r *RowItem) Inspected() bool {
	return r.Status != StatusUnset
}

// Copy creates a deep copy of the row
func (r RowItem) Copy() RowItem {
	out := r
	out.Tags = slices.Clone(r.Tags)
	if out.Tags == nil {
		out.Tags = []string{}
	}
	if r.Attachment != nil {
		att := *r.Attachment
		att.Data = slices.Clone(r.Attachment.Data)
		out.Attachment = &att
	}
	return out
}
