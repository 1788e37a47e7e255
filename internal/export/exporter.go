package export

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/tphakala/linewalk/internal/datastore"
	"github.com/tphakala/linewalk/internal/errors"
	"github.com/tphakala/linewalk/internal/export/targets"
	"github.com/tphakala/linewalk/internal/logger"
	"github.com/tphakala/linewalk/internal/notification"
	"github.com/tphakala/linewalk/internal/observability/metrics"
)

const (
	component       = "export"
	fileTimeLayout  = "20060102-150405"
	fallbackName    = "LWT"
	defaultPublishT = 2 * time.Minute
)

// ErrExportFailed is returned when neither xlsx nor the csv fallback could be stored
var ErrExportFailed = errors.NewStd("export failed")

// Notifier shows transient messages for background publishing failures
type Notifier interface {
	Notify(t notification.Type, component, message string) *notification.Toast
}

// Result describes a stored export
type Result struct {
	FileName    string `json:"fileName"`
	Format      string `json:"format"`
	ContentType string `json:"contentType"`
	Size        int    `json:"size"`
	Fallback    bool   `json:"fallback"` // true when the csv fallback was used
}

// Option configures an Exporter
type Option func(*Exporter)

// WithEncoders replaces the primary and fallback encoders
func WithEncoders(primary, fallback Encoder) Option {
	return func(e *Exporter) {
		e.primary = primary
		e.fallback = fallback
	}
}

// WithPublishTargets sets the targets that receive a copy of every export
func WithPublishTargets(ts ...targets.Target) Option {
	return func(e *Exporter) { e.publish = ts }
}

// WithPublishTimeout bounds one background publish run
func WithPublishTimeout(d time.Duration) Option {
	return func(e *Exporter) { e.timeout = d }
}

func WithNotifier(n Notifier) Option              { return func(e *Exporter) { e.notifier = n } }
func WithMetrics(m *metrics.ExportMetrics) Option { return func(e *Exporter) { e.metrics = m } }
func WithClock(now func() time.Time) Option       { return func(e *Exporter) { e.now = now } }
func WithLogger(l logger.Logger) Option           { return func(e *Exporter) { e.log = l } }
func WithOptions(opts Options) Option             { return func(e *Exporter) { e.opts = opts } }

// Exporter encodes records and stores them in targets
type Exporter struct {
	opts     Options
	primary  Encoder
	fallback Encoder
	publish  []targets.Target
	timeout  time.Duration
	notifier Notifier
	metrics  *metrics.ExportMetrics
	now      func() time.Time
	log      logger.Logger
	wg       sync.WaitGroup
}

// New creates an exporter with the xlsx encoder and csv fallback
func New(opts ...Option) *Exporter {
	e := &Exporter{
		opts:     DefaultOptions(),
		primary:  XLSXEncoder{},
		fallback: CSVEncoder{},
		timeout:  defaultPublishT,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.log == nil {
		e.log = logger.Global().Module(component)
	}
	return e
}

// FileName returns "<record name>_<yyyyMMdd-HHmmss>.xlsx" with unsafe characters replaced
func FileName(rec *datastore.Record, now time.Time) string {
	return baseName(rec, now) + "." + FormatXLSX
}

func baseName(rec *datastore.Record, now time.Time) string {
	name := strings.Map(func(r rune) rune {
		if r < 0x20 || r == '/' || r == '\\' || strings.ContainsRune(targets.InvalidNameChars, r) {
			return '_'
		}
		return r
	}, strings.TrimSpace(rec.Name))
	name = strings.TrimLeft(name, ".")
	if name == "" {
		name = fallbackName
	}
	return name + "_" + now.Format(fileTimeLayout)
}

// Export encodes rec as xlsx and stores it in target. When that fails it
// retries once as csv. Only when both fail is an export error returned.
func (e *Exporter) Export(ctx context.Context, rec *datastore.Record, target targets.Target) (*Result, error) {
	if rec == nil {
		return nil, errors.ValidationError("record is required")
	}
	sheet := BuildSheet(rec, e.opts)
	base := baseName(rec, e.now())

	res, primaryErr := e.encodeAndStore(ctx, sheet, base, e.primary, target)
	if primaryErr == nil {
		return res, nil
	}
	if e.fallback == nil {
		return nil, e.exportError(rec, target, primaryErr, nil)
	}

	e.log.Warn("export failed, retrying with fallback encoder",
		logger.String("record_id", rec.ID),
		logger.String("target", target.Name()),
		logger.String("format", e.primary.Format()),
		logger.String("fallback", e.fallback.Format()),
		logger.Error(primaryErr))
	e.metrics.RecordFallback()

	res, fallbackErr := e.encodeAndStore(ctx, sheet, base, e.fallback, target)
	if fallbackErr != nil {
		return nil, e.exportError(rec, target, primaryErr, fallbackErr)
	}
	res.Fallback = true
	return res, nil
}

func (e *Exporter) encodeAndStore(ctx context.Context, sheet *Sheet, base string, enc Encoder, target targets.Target) (res *Result, err error) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s encoder panicked: %v", enc.Format(), r)
		}
		size := 0
		if res != nil {
			size = res.Size
		}
		e.metrics.RecordExport(enc.Format(), metrics.StatusLabel(err), time.Since(start).Seconds(), size)
	}()

	var buf bytes.Buffer
	if err := enc.Encode(&buf, sheet); err != nil {
		return nil, err
	}
	name := base + "." + enc.Format()
	size := buf.Len()
	if err := target.Store(ctx, name, &buf); err != nil {
		return nil, err
	}
	return &Result{
		FileName:    name,
		Format:      enc.Format(),
		ContentType: enc.ContentType(),
		Size:        size,
	}, nil
}

func (e *Exporter) exportError(rec *datastore.Record, target targets.Target, primary, fallback error) error {
	b := errors.New(ErrExportFailed).
		Component(component).
		Category(errors.CategoryExport).
		Context("record_id", rec.ID).
		Context("target", target.Name()).
		Context("error", primary.Error())
	if fallback != nil {
		b = b.Context("fallback_error", fallback.Error())
	}
	err := b.Build()
	e.log.Error("export failed",
		logger.String("record_id", rec.ID),
		logger.String("target", target.Name()),
		logger.Error(err))
	return err
}

// HasPublishTargets reports whether background publishing is configured
func (e *Exporter) HasPublishTargets() bool { return len(e.publish) > 0 }

// Publish sends rec to every configured target in the background. Failures
// are logged and toasted; the caller does not wait.
func (e *Exporter) Publish(rec *datastore.Record) {
	if len(e.publish) == 0 || rec == nil {
		return
	}
	snapshot := *rec

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), e.timeout)
		defer cancel()

		for _, t := range e.publish {
			res, err := e.Export(ctx, &snapshot, t)
			e.metrics.RecordTargetStore(t.Name(), metrics.StatusLabel(err))
			if err != nil {
				if e.notifier != nil {
					e.notifier.Notify(notification.TypeError, component,
						fmt.Sprintf("Export of %s to %s failed", snapshot.Name, t.Name()))
				}
				continue
			}
			e.log.Info("export published",
				logger.String("record_id", snapshot.ID),
				logger.String("target", t.Name()),
				logger.String("file", res.FileName))
		}
	}()
}

// Wait blocks until background publishing has finished
func (e *Exporter) Wait() { e.wg.Wait() }
