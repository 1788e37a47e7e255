package datastore

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/tphakala/linewalk/internal/conf"
	"github.com/tphakala/linewalk/internal/errors"
	"github.com/tphakala/linewalk/internal/inspection"
	"github.com/tphakala/linewalk/internal/logger"
	"github.com/tphakala/linewalk/internal/observability/metrics"
)

const (
	recordIDPrefix   = "lwt_"
	recordNamePrefix = "LWT-"
	fallbackCategory = "DATA"
	dateLayout       = "2006-01-02"
)

var (
	ErrIncompleteHeader = errors.NewStd("required header fields are empty")
	ErrNoRows           = errors.NewStd("form has no inspected rows")
	ErrRecordNotFound   = errors.NewStd("record not found")
)

// Record is a saved snapshot of one form. It is never mutated after Save.
type Record struct {
	ID      string               `json:"id"`
	Name    string               `json:"name"`
	Header  inspection.Header    `json:"header"`
	Rows    []inspection.RowItem `json:"rows"`
	SavedAt time.Time            `json:"savedAt"`
}

// Summary derives totals from the stored rows
func (r *Record) Summary() inspection.Summary {
	return inspection.RecomputeSummary(r.Rows)
}

// StoreOption configures a Store
type StoreOption func(*Store)

// WithRequiredFields sets the header fields Save insists on
func WithRequiredFields(fields []string) StoreOption {
	return func(s *Store) { s.required = slices.Clone(fields) }
}

// WithStrict makes Save require at least one row with a status
func WithStrict(strict bool) StoreOption {
	return func(s *Store) { s.strict = strict }
}

// WithClock replaces time.Now, used for ids and names
func WithClock(now func() time.Time) StoreOption {
	return func(s *Store) { s.now = now }
}

// WithMetrics records operation counts on m
func WithMetrics(m *metrics.DatastoreMetrics) StoreOption {
	return func(s *Store) { s.metrics = m }
}

// WithLogger overrides the module logger
func WithLogger(l logger.Logger) StoreOption {
	return func(s *Store) { s.log = l }
}

// Store is the record list kept under one KV key
type Store struct {
	kv       KV
	key      string
	required []string
	strict   bool
	now      func() time.Time
	metrics  *metrics.DatastoreMetrics
	log      logger.Logger

	mu sync.Mutex // serialises read-modify-write cycles
}

// NewStore creates a store over kv. An empty key uses the default storage key.
func NewStore(kv KV, key string, opts ...StoreOption) *Store {
	if key == "" {
		key = conf.DefaultRecordsKey
	}
	s := &Store{
		kv:       kv,
		key:      key,
		required: slices.Clone(conf.DefaultRequiredFields),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.log == nil {
		s.log = GetLogger()
	}
	return s
}

// Key returns the KV key holding the record list
func (s *Store) Key() string { return s.key }

// List returns all records in the order they were saved
func (s *Store) List(ctx context.Context) ([]Record, error) {
	records, err := s.load(ctx)
	s.metrics.RecordRecordOperation("list", metrics.StatusLabel(err))
	return records, err
}

// Get returns the record with the given id
func (s *Store) Get(ctx context.Context, id string) (*Record, error) {
	records, err := s.load(ctx)
	if err != nil {
		s.metrics.RecordRecordOperation("get", metrics.StatusError)
		return nil, err
	}
	i := slices.IndexFunc(records, func(r Record) bool { return r.ID == id })
	if i < 0 {
		s.metrics.RecordRecordOperation("get", metrics.StatusError)
		return nil, errors.New(ErrRecordNotFound).
			Component("datastore").
			Category(errors.CategoryNotFound).
			Context("record_id", id).
			Build()
	}
	s.metrics.RecordRecordOperation("get", metrics.StatusSuccess)
	return &records[i], nil
}

// Validate checks a form against the save rules without touching storage
func (s *Store) Validate(form *inspection.Form) error {
	if missing := form.Header.Missing(s.required); len(missing) > 0 {
		s.metrics.RecordValidationFailure("header")
		return errors.New(ErrIncompleteHeader).
			Component("datastore").
			Category(errors.CategoryValidation).
			Context("missing_fields", strings.Join(missing, ",")).
			Build()
	}
	if len(form.Rows) == 0 {
		s.metrics.RecordValidationFailure("no_rows")
		return errors.New(ErrNoRows).
			Component("datastore").
			Category(errors.CategoryValidation).
			Context("rows", 0).
			Build()
	}
	if s.strict && !slices.ContainsFunc(form.Rows, func(r inspection.RowItem) bool { return r.Inspected() }) {
		s.metrics.RecordValidationFailure("no_rows")
		return errors.New(ErrNoRows).
			Component("datastore").
			Category(errors.CategoryValidation).
			Context("rows", len(form.Rows)).
			Context("strict", true).
			Build()
	}
	return nil
}

// Save validates form and appends a deep copy of it to the list.
// A failed validation leaves storage untouched.
func (s *Store) Save(ctx context.Context, form *inspection.Form) (*Record, error) {
	if err := s.Validate(form); err != nil {
		s.metrics.RecordRecordOperation("save", metrics.StatusError)
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.load(ctx)
	if err != nil {
		s.metrics.RecordRecordOperation("save", metrics.StatusError)
		return nil, err
	}

	now := s.now()
	snapshot := form.Clone()
	rec := Record{
		ID:      uniqueID(records, now),
		Name:    recordName(snapshot.Header, now),
		Header:  snapshot.Header,
		Rows:    snapshot.Rows,
		SavedAt: now.UTC().Truncate(time.Second),
	}
	records = append(records, rec)

	if err := s.store(ctx, records); err != nil {
		s.metrics.RecordRecordOperation("save", metrics.StatusError)
		return nil, err
	}
	s.metrics.RecordRecordOperation("save", metrics.StatusSuccess)
	s.metrics.SetRecordsStored(len(records))
	s.log.Info("record saved",
		logger.String("record_id", rec.ID),
		logger.String("name", rec.Name),
		logger.Int("rows", len(rec.Rows)))
	return &rec, nil
}

// Delete removes a record by id. Deleting an unknown id is a no-op and returns false.
func (s *Store) Delete(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.load(ctx)
	if err != nil {
		s.metrics.RecordRecordOperation("delete", metrics.StatusError)
		return false, err
	}
	kept := slices.DeleteFunc(slices.Clone(records), func(r Record) bool { return r.ID == id })
	if len(kept) == len(records) {
		s.metrics.RecordRecordOperation("delete", metrics.StatusSuccess)
		return false, nil
	}
	if err := s.store(ctx, kept); err != nil {
		s.metrics.RecordRecordOperation("delete", metrics.StatusError)
		return false, err
	}
	s.metrics.RecordRecordOperation("delete", metrics.StatusSuccess)
	s.metrics.SetRecordsStored(len(kept))
	s.log.Info("record deleted", logger.String("record_id", id))
	return true, nil
}

func (s *Store) load(ctx context.Context) ([]Record, error) {
	raw, ok, err := s.kv.Get(ctx, s.key)
	if err != nil {
		return nil, err
	}
	records := []Record{}
	if !ok || strings.TrimSpace(raw) == "" {
		return records, nil
	}
	if err := json.Unmarshal([]byte(raw), &records); err != nil {
		return nil, errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("key", s.key).
			Context("operation", "decode_records").
			Build()
	}
	return records, nil
}

func (s *Store) store(ctx context.Context, records []Record) error {
	data, err := json.Marshal(records)
	if err != nil {
		return errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("operation", "encode_records").
			Build()
	}
	return s.kv.Set(ctx, s.key, string(data))
}

// uniqueID returns lwt_<millis>, bumping the millisecond until no stored record uses it
func uniqueID(records []Record, now time.Time) string {
	ms := now.UnixMilli()
	for {
		id := fmt.Sprintf("%s%d", recordIDPrefix, ms)
		if !slices.ContainsFunc(records, func(r Record) bool { return r.ID == id }) {
			return id
		}
		ms++
	}
}

// recordName is LWT-<category>-<date>, using the header date when present
func recordName(h inspection.Header, now time.Time) string {
	category := h.Category
	if category == "" {
		category = fallbackCategory
	}
	date := h.Date
	if date == "" {
		date = now.Format(dateLayout)
	}
	return recordNamePrefix + category + "-" + date
}
