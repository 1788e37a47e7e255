// Package session owns the application state of the line walk form and applies
// user commands to it one at a time.
package session

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/tphakala/linewalk/internal/datastore"
	"github.com/tphakala/linewalk/internal/errors"
	"github.com/tphakala/linewalk/internal/inspection"
	"github.com/tphakala/linewalk/internal/logger"
	"github.com/tphakala/linewalk/internal/notification"
	"github.com/tphakala/linewalk/internal/observability/metrics"
)

const component = "session"

var ErrUnknownCommand = errors.NewStd("unknown command")

// RecordStore is the subset of the datastore the session needs
type RecordStore interface {
	Validate(form *inspection.Form) error
	Save(ctx context.Context, form *inspection.Form) (*datastore.Record, error)
	Get(ctx context.Context, id string) (*datastore.Record, error)
	Delete(ctx context.Context, id string) (bool, error)
}

// Notifier shows transient messages
type Notifier interface {
	Notify(t notification.Type, component, message string) *notification.Toast
}

// EventPublisher is told about record changes, e.g. to forward them over MQTT
type EventPublisher interface {
	RecordSaved(ctx context.Context, rec *datastore.Record)
	RecordDeleted(ctx context.Context, id string)
}

// Config holds the form rules the session applies
type Config struct {
	TotalPairs int // rows on a fresh form; fewer inspected rows asks before saving
	Defaults   inspection.RowDefaults
}

// Option configures a Session
type Option func(*Session)

func WithNotifier(n Notifier) Option            { return func(s *Session) { s.notifier = n } }
func WithEvents(e EventPublisher) Option        { return func(s *Session) { s.events = e } }
func WithClock(now func() time.Time) Option     { return func(s *Session) { s.now = now } }
func WithLogger(l logger.Logger) Option         { return func(s *Session) { s.log = l } }
func WithMetrics(m *metrics.HTTPMetrics) Option { return func(s *Session) { s.metrics = m } }

// Session is the single in-process form. All mutations go through Dispatch.
type Session struct {
	mu sync.Mutex

	form       *inspection.Form
	gate       *Gate
	pickers    inspection.Pickers
	taggingRow string // row whose picker is open, "" when none
	dirty      bool
	lastSaved  *datastore.Record

	cfg      Config
	catalog  *inspection.Catalog
	store    RecordStore
	notifier Notifier
	events   EventPublisher
	now      func() time.Time
	log      logger.Logger
	metrics  *metrics.HTTPMetrics
}

// New creates a session with a fresh form of cfg.TotalPairs rows
func New(cfg Config, catalog *inspection.Catalog, store RecordStore, opts ...Option) *Session {
	s := &Session{
		form:    inspection.NewForm(cfg.TotalPairs, cfg.Defaults),
		gate:    &Gate{},
		pickers: inspection.Pickers{},
		cfg:     cfg,
		catalog: catalog,
		store:   store,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.log == nil {
		s.log = logger.Global().Module(component)
	}
	return s
}

// Catalog returns the reference data the session validates against
func (s *Session) Catalog() *inspection.Catalog { return s.catalog }

// Dispatch applies one command. Errors are also raised as error toasts.
func (s *Session) Dispatch(ctx context.Context, cmd Command) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.apply(ctx, cmd)
	if err != nil {
		s.log.Debug("command failed",
			logger.String("command", cmd.Kind.String()),
			logger.String("row_id", cmd.RowID),
			logger.Error(err))
		s.toast(notification.TypeError, userMessage(err))
		return Result{}, err
	}
	return res, nil
}

func (s *Session) apply(ctx context.Context, cmd Command) (Result, error) {
	switch cmd.Kind {
	case CmdSetHeader:
		return s.setHeader(cmd.Field, cmd.Value)
	case CmdSelectStyle:
		return s.selectStyle(cmd.Value)
	case CmdAddRow:
		id := s.form.AddRow(s.cfg.Defaults)
		s.dirty = true
		return s.rowResult(id)
	case CmdRequestDeleteRow:
		return s.requestDeleteRow(cmd.RowID)
	case CmdRequestResetRow:
		return s.requestResetRow(cmd.RowID)
	case CmdSetStatus:
		return s.setStatus(cmd.RowID, cmd.Status)
	case CmdSetScore:
		return s.setScore(cmd.RowID, inspection.ScoreField(cmd.Field), cmd.Value)
	case CmdSetNote:
		return s.mutateRow(cmd.RowID, func() error { return s.form.SetNote(cmd.RowID, cmd.Value) })
	case CmdSetDescription:
		return s.mutateRow(cmd.RowID, func() error { return s.form.SetDescription(cmd.RowID, cmd.Value) })
	case CmdSetPhoto:
		if cmd.Attachment == nil {
			return Result{}, errors.ValidationError("photo is empty")
		}
		return s.mutateRow(cmd.RowID, func() error { return s.form.SetAttachment(cmd.RowID, *cmd.Attachment) })
	case CmdClearPhoto:
		return s.mutateRow(cmd.RowID, func() error { return s.form.ClearAttachment(cmd.RowID) })
	case CmdTogglePicker:
		return s.togglePicker(cmd.RowID)
	case CmdCloseAllPickers:
		return Result{Closed: s.closeAllPickers()}, nil
	case CmdCheckTag:
		return s.editPicker(cmd.RowID, func(p *inspection.Picker) error { return p.Check(cmd.Tag, cmd.On) })
	case CmdSetPickerTags:
		return s.editPicker(cmd.RowID, func(p *inspection.Picker) error { return p.Replace(cmd.Tags) })
	case CmdSave:
		return s.requestSave(ctx)
	case CmdRequestDeleteRecord:
		return s.requestDeleteRecord(ctx, cmd.RecordID)
	case CmdResolve:
		return s.resolve(ctx, cmd.Ticket, cmd.Confirmed)
	default:
		return Result{}, errors.New(ErrUnknownCommand).
			Component(component).
			Category(errors.CategoryValidation).
			Context("kind", int(cmd.Kind)).
			Build()
	}
}

func (s *Session) setHeader(field, value string) (Result, error) {
	if err := s.form.Header.SetField(field, value); err != nil {
		return Result{}, err
	}
	if field == "style" {
		s.form.Header.Model = s.catalog.ModelFor(value)
	}
	s.dirty = true
	h := s.form.Header
	return Result{Header: &h}, nil
}

// selectStyle picks a style from suggestions and fills in its model
func (s *Session) selectStyle(style string) (Result, error) {
	style = strings.TrimSpace(style)
	s.form.Header.Style = style
	s.form.Header.Model = s.catalog.ModelFor(style)
	s.dirty = true
	h := s.form.Header
	return Result{Header: &h}, nil
}

func (s *Session) requestDeleteRow(id string) (Result, error) {
	row, err := s.form.Row(id)
	if err != nil {
		return Result{}, err
	}
	pending := s.ask(Confirmation{
		Kind:  KindDeleteRow,
		Title: "Delete row",
		Body:  fmt.Sprintf("Delete row %d? This cannot be undone.", row.Index),
		OnConfirm: func(context.Context) error {
			if err := s.form.DeleteRow(id); err != nil {
				return err
			}
			s.dropPicker(id)
			s.dirty = true
			return nil
		},
	})
	return Result{Confirmation: &pending}, nil
}

func (s *Session) requestResetRow(id string) (Result, error) {
	row, err := s.form.Row(id)
	if err != nil {
		return Result{}, err
	}
	pending := s.ask(Confirmation{
		Kind:  KindResetRow,
		Title: "Clear row",
		Body:  fmt.Sprintf("Clear status, defects, scores and photo of row %d?", row.Index),
		OnConfirm: func(context.Context) error {
			if err := s.form.ResetRow(id, s.cfg.Defaults); err != nil {
				return err
			}
			s.dropPicker(id)
			s.dirty = true
			return nil
		},
	})
	return Result{Confirmation: &pending}, nil
}

func (s *Session) setStatus(id string, status inspection.Status) (Result, error) {
	if err := s.form.SetStatus(id, status); err != nil {
		return Result{}, err
	}
	p := s.pickers.For(id, status, s.catalog)
	if p.State() == inspection.PickerDisabled && s.taggingRow == id {
		s.taggingRow = ""
		s.gate.ClearKind(KindCommitTags)
	}
	s.dirty = true
	return s.rowResult(id)
}

func (s *Session) setScore(id string, field inspection.ScoreField, input string) (Result, error) {
	score, err := s.form.SetScore(id, field, input)
	if err != nil {
		return Result{}, err
	}
	s.dirty = true
	res, err := s.rowResult(id)
	if err != nil {
		return Result{}, err
	}
	res.Score = &score
	return res, nil
}

func (s *Session) mutateRow(id string, fn func() error) (Result, error) {
	if err := fn(); err != nil {
		return Result{}, err
	}
	s.dirty = true
	return s.rowResult(id)
}

// togglePicker opens or closes a row's picker. Opening closes any other open
// picker and asks for the commit confirmation, like a modal.
func (s *Session) togglePicker(id string) (Result, error) {
	row, err := s.form.Row(id)
	if err != nil {
		return Result{}, err
	}
	p := s.pickers.For(id, row.Status, s.catalog)
	if p.State() == inspection.PickerClosed {
		s.closeAllPickers()
	}

	open, err := p.Toggle(row.Tags)
	if err != nil {
		return Result{}, err
	}

	if !open {
		s.taggingRow = ""
		s.gate.ClearKind(KindCommitTags)
		view := s.pickerView(p, row, "")
		return Result{Picker: &view}, nil
	}

	s.taggingRow = id
	pending := s.ask(Confirmation{
		Kind:  KindCommitTags,
		Title: "Defect types",
		Body:  fmt.Sprintf("Apply selected defect types to row %d?", row.Index),
		OnConfirm: func(context.Context) error {
			tags, err := p.Commit()
			if err != nil {
				return err
			}
			s.taggingRow = ""
			if err := s.form.SetTags(id, tags); err != nil {
				return err
			}
			s.dirty = true
			return nil
		},
		OnCancel: func(context.Context) error {
			p.Cancel()
			s.taggingRow = ""
			return nil
		},
	})
	view := s.pickerView(p, row, "")
	return Result{Picker: &view, Confirmation: &pending}, nil
}

func (s *Session) closeAllPickers() []string {
	closed := s.pickers.CloseAll()
	if len(closed) > 0 {
		s.taggingRow = ""
		s.gate.ClearKind(KindCommitTags)
	}
	return closed
}

func (s *Session) editPicker(id string, fn func(p *inspection.Picker) error) (Result, error) {
	row, err := s.form.Row(id)
	if err != nil {
		return Result{}, err
	}
	p := s.pickers.For(id, row.Status, s.catalog)
	if err := fn(p); err != nil {
		return Result{}, err
	}
	view := s.pickerView(p, row, "")
	return Result{Picker: &view}, nil
}

func (s *Session) dropPicker(id string) {
	delete(s.pickers, id)
	if s.taggingRow == id {
		s.taggingRow = ""
		s.gate.ClearKind(KindCommitTags)
	}
}

// requestSave validates the form and saves it, asking first when fewer rows
// were inspected than the form expects.
func (s *Session) requestSave(ctx context.Context) (Result, error) {
	if err := s.store.Validate(s.form); err != nil {
		return Result{}, err
	}

	summary := s.form.Summary()
	if s.cfg.TotalPairs > 0 && summary.InspectedItems < s.cfg.TotalPairs {
		pending := s.ask(Confirmation{
			Kind:  KindSaveIncomplete,
			Title: "Incomplete inspection",
			Body: fmt.Sprintf("Only %d of %d pairs have been inspected. Save anyway?",
				summary.InspectedItems, s.cfg.TotalPairs),
			OnConfirm: s.save,
		})
		return Result{Confirmation: &pending, Summary: &summary}, nil
	}

	if err := s.save(ctx); err != nil {
		return Result{}, err
	}
	return Result{Record: s.lastSaved}, nil
}

// save stores the form and starts a fresh one
func (s *Session) save(ctx context.Context) error {
	s.stamp()
	rec, err := s.store.Save(ctx, s.form)
	if err != nil {
		return err
	}
	s.lastSaved = rec
	s.toast(notification.TypeSuccess, "Saved "+rec.Name)
	if s.events != nil {
		s.events.RecordSaved(ctx, rec)
	}

	s.form.Reset(s.cfg.TotalPairs, s.cfg.Defaults)
	s.pickers = inspection.Pickers{}
	s.taggingRow = ""
	s.gate.ClearKind(KindCommitTags)
	s.dirty = false
	return nil
}

// stamp fills an empty header date and time with the current time
func (s *Session) stamp() {
	now := s.now()
	if s.form.Header.Date == "" {
		s.form.Header.Date = now.Format("2006-01-02")
	}
	if s.form.Header.Time == "" {
		s.form.Header.Time = now.Format("15:04")
	}
}

func (s *Session) requestDeleteRecord(ctx context.Context, id string) (Result, error) {
	rec, err := s.store.Get(ctx, id)
	if err != nil {
		return Result{}, err
	}
	pending := s.ask(Confirmation{
		Kind:  KindDeleteRecord,
		Title: "Delete record",
		Body:  fmt.Sprintf("Delete %s? This cannot be undone.", rec.Name),
		OnConfirm: func(ctx context.Context) error {
			deleted, err := s.store.Delete(ctx, id)
			if err != nil {
				return err
			}
			if deleted {
				s.toast(notification.TypeInfo, "Deleted "+rec.Name)
				if s.events != nil {
					s.events.RecordDeleted(ctx, id)
				}
			}
			return nil
		},
	})
	return Result{Confirmation: &pending}, nil
}

func (s *Session) resolve(ctx context.Context, ticket uint64, confirmed bool) (Result, error) {
	s.lastSaved = nil
	kind, err := s.gate.Resolve(ctx, ticket, confirmed)
	if kind != "" {
		s.metrics.RecordConfirmation(string(kind), confirmed)
	}
	if err != nil {
		return Result{}, err
	}
	res := Result{Resolved: kind}
	if kind == KindSaveIncomplete && confirmed {
		res.Record = s.lastSaved
	}
	if p, ok := s.gate.Pending(); ok {
		res.Confirmation = &p
	}
	return res, nil
}

// ask replaces the pending confirmation. Anything other than a tag commit
// dismisses open pickers like a click outside.
func (s *Session) ask(c Confirmation) PendingConfirmation {
	if c.Kind != KindCommitTags {
		s.closeAllPickers()
	}
	s.gate.Ask(c)
	p, _ := s.gate.Pending()
	return p
}

func (s *Session) rowResult(id string) (Result, error) {
	row, err := s.form.Row(id)
	if err != nil {
		return Result{}, err
	}
	cp := row.Copy()
	return Result{Row: &cp}, nil
}

func (s *Session) pickerView(p *inspection.Picker, row *inspection.RowItem, query string) PickerView {
	pending := p.Pending()
	if pending == nil {
		pending = []string{}
	}
	tags := make([]string, len(row.Tags))
	copy(tags, row.Tags)
	return PickerView{
		RowID:   row.ID,
		State:   p.State(),
		Pending: pending,
		Tags:    tags,
		Visible: p.Filter(query),
	}
}

func (s *Session) toast(t notification.Type, message string) {
	if s.notifier == nil {
		return
	}
	s.notifier.Notify(t, component, message)
}

// Snapshot returns a copy of the current state
func (s *Session) Snapshot() View {
	s.mu.Lock()
	defer s.mu.Unlock()

	clone := s.form.Clone()
	v := View{
		Header:     clone.Header,
		Rows:       clone.Rows,
		Summary:    clone.Summary(),
		Pickers:    make(map[string]inspection.PickerState, len(clone.Rows)),
		TaggingRow: s.taggingRow,
		Dirty:      s.dirty,
	}
	for i := range clone.Rows {
		id := clone.Rows[i].ID
		state := inspection.PickerDisabled
		if p, ok := s.pickers[id]; ok {
			state = p.State()
		} else if clone.Rows[i].Status == inspection.StatusNG {
			state = inspection.PickerClosed
		}
		v.Pickers[id] = state
	}
	if p, ok := s.gate.Pending(); ok {
		v.Confirmation = &p
	}
	return v
}

// Form returns a deep copy of the form
func (s *Session) Form() *inspection.Form {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.form.Clone()
}

// Summary recomputes totals for the current rows
func (s *Session) Summary() inspection.Summary {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.form.Summary()
}

// Picker returns a row's picker with the vocabulary filtered by query
func (s *Session) Picker(rowID, query string) (PickerView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row, err := s.form.Row(rowID)
	if err != nil {
		return PickerView{}, err
	}
	p := s.pickers.For(rowID, row.Status, s.catalog)
	return s.pickerView(p, row, query), nil
}

// Pending returns the confirmation awaiting an answer
func (s *Session) Pending() (PendingConfirmation, bool) {
	return s.gate.Pending()
}

// AutoSave stores a snapshot of a dirty form without resetting it.
// Validation failures become warning toasts and are not returned.
func (s *Session) AutoSave(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.dirty {
		return nil
	}

	snapshot := s.form.Clone()
	now := s.now()
	if snapshot.Header.Date == "" {
		snapshot.Header.Date = now.Format("2006-01-02")
	}
	if snapshot.Header.Time == "" {
		snapshot.Header.Time = now.Format("15:04")
	}

	rec, err := s.store.Save(ctx, snapshot)
	if err != nil {
		if errors.IsValidation(err) {
			s.toast(notification.TypeWarning, "Auto-save skipped: "+userMessage(err))
			return nil
		}
		s.toast(notification.TypeError, "Auto-save failed: "+userMessage(err))
		return err
	}

	s.dirty = false
	s.log.Info("form auto-saved",
		logger.String("record_id", rec.ID),
		logger.Float64("percentage", snapshot.Summary().Percentage))
	s.toast(notification.TypeInfo, "Auto-saved "+rec.Name)
	if s.events != nil {
		s.events.RecordSaved(ctx, rec)
	}
	return nil
}

// userMessage turns an error into text for a toast
func userMessage(err error) string {
	var ee *errors.EnhancedError
	if errors.As(err, &ee) {
		msg := ee.GetMessage()
		if missing, ok := ee.GetContext()["missing_fields"].(string); ok && missing != "" {
			msg += ": " + strings.ReplaceAll(missing, ",", ", ")
		}
		return capitalize(msg)
	}
	return capitalize(err.Error())
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
