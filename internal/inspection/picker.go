package inspection

import (
	"slices"

	"github.com/tphakala/linewalk/internal/errors"
)

// PickerState is the state of a row's defect tag picker
type PickerState string

const (
	PickerDisabled PickerState = "disabled" // row is not NG
	PickerClosed   PickerState = "closed"
	PickerOpen     PickerState = "open"
)

var (
	ErrPickerDisabled = errors.NewStd("picker is disabled until the row is NG")
	ErrPickerNotOpen  = errors.NewStd("picker is not open")
	ErrUnknownDefect  = errors.NewStd("unknown defect type")
)

// Picker edits a row's defect tags. Selections are staged while open and only
// reach the row on Commit.
type Picker struct {
	rowID   string
	catalog *Catalog
	state   PickerState
	pending []string
}

// NewPicker creates a disabled picker for a row
func NewPicker(rowID string, catalog *Catalog) *Picker {
	return &Picker{rowID: rowID, catalog: catalog, state: PickerDisabled}
}

// RowID returns the row the picker belongs to
func (p *Picker) RowID() string { return p.rowID }

// State returns the current state
func (p *Picker) State() PickerState { return p.state }

// Pending returns a copy of the staged selection
func (p *Picker) Pending() []string { return slices.Clone(p.pending) }

// SyncStatus follows a row status change. NG enables the picker; anything else
// disables it and drops staged selections.
func (p *Picker) SyncStatus(status Status) {
	if status == StatusNG {
		if p.state == PickerDisabled {
			p.state = PickerClosed
		}
		return
	}
	p.state = PickerDisabled
	p.pending = nil
}

// Toggle opens a closed picker, staging the row's current tags, or closes an
// open one discarding staged changes. It reports whether the picker is now open.
func (p *Picker) Toggle(current []string) (bool, error) {
	switch p.state {
	case PickerDisabled:
		return false, p.stateError(ErrPickerDisabled)
	case PickerClosed:
		p.state = PickerOpen
		p.pending = slices.Clone(current)
		if p.pending == nil {
			p.pending = []string{}
		}
		return true, nil
	default:
		p.Cancel()
		return false, nil
	}
}

// Check stages or unstages a tag
func (p *Picker) Check(tag string, on bool) error {
	if p.state != PickerOpen {
		return p.stateError(ErrPickerNotOpen)
	}
	if !p.catalog.IsDefect(tag) {
		return errors.New(ErrUnknownDefect).
			Component("inspection").
			Category(errors.CategoryValidation).
			Context("tag", tag).
			Build()
	}

	has := slices.Contains(p.pending, tag)
	switch {
	case on && !has:
		p.pending = append(p.pending, tag)
	case !on && has:
		p.pending = slices.DeleteFunc(p.pending, func(t string) bool { return t == tag })
	}
	return nil
}

// Replace stages an entire selection at once
func (p *Picker) Replace(tags []string) error {
	if p.state != PickerOpen {
		return p.stateError(ErrPickerNotOpen)
	}
	for _, t := range tags {
		if !p.catalog.IsDefect(t) {
			return errors.New(ErrUnknownDefect).
				Component("inspection").
				Category(errors.CategoryValidation).
				Context("tag", t).
				Build()
		}
	}
	p.pending = slices.Clone(tags)
	return nil
}

// Commit closes the picker and returns the staged tags in vocabulary order.
// The caller writes them to the row.
func (p *Picker) Commit() ([]string, error) {
	if p.state != PickerOpen {
		return nil, p.stateError(ErrPickerNotOpen)
	}
	tags := p.catalog.OrderTags(p.pending)
	p.state = PickerClosed
	p.pending = nil
	return tags, nil
}

// Cancel closes an open picker and discards staged changes
func (p *Picker) Cancel() {
	if p.state == PickerOpen {
		p.state = PickerClosed
	}
	p.pending = nil
}

// Filter returns the vocabulary entries visible for a search query.
// It never changes the selection.
func (p *Picker) Filter(query string) []string {
	return p.catalog.FilterDefects(query)
}

func (p *Picker) stateError(err error) error {
	return errors.New(err).
		Component("inspection").
		Category(errors.CategoryState).
		Context("row_id", p.rowID).
		Context("state", string(p.state)).
		Build()
}

// Pickers holds one picker per row id
type Pickers map[string]*Picker

// For returns the picker of a row, creating it in sync with status if needed
func (ps Pickers) For(rowID string, status Status, catalog *Catalog) *Picker {
	p, ok := ps[rowID]
	if !ok {
		p = NewPicker(rowID, catalog)
		ps[rowID] = p
	}
	p.SyncStatus(status)
	return p
}

// CloseAll cancels every open picker and returns the ids that were open
func (ps Pickers) CloseAll() []string {
	var closed []string
	for id, p := range ps {
		if p.state == PickerOpen {
			p.Cancel()
			closed = append(closed, id)
		}
	}
	slices.Sort(closed)
	return closed
}
