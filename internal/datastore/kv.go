// Package datastore persists inspection records through a pluggable key-value backend.
//
// All records live under a single key as a JSON array. The backend has no
// partial-update primitive, so every save or delete rewrites the whole list.
package datastore

import (
	"context"
	"time"

	"github.com/tphakala/linewalk/internal/conf"
	"github.com/tphakala/linewalk/internal/errors"
	"github.com/tphakala/linewalk/internal/logger"
	"github.com/tphakala/linewalk/internal/observability/metrics"
)

// Backend names accepted by datastore.backend
const (
	BackendMemory = "memory"
	BackendFile   = "file"
	BackendSQLite = "sqlite"
	BackendMySQL  = "mysql"
	BackendRedis  = "redis"
)

// KV is the persistent string store records are written to
type KV interface {
	// Get returns the value for key; ok is false when the key has never been set.
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error
	Close() error
}

// NewKV opens the backend selected in settings
func NewKV(ctx context.Context, settings *conf.DatastoreSettings, log logger.Logger) (KV, error) {
	if log == nil {
		log = GetLogger()
	}

	var (
		kv  KV
		err error
	)
	switch settings.Backend {
	case BackendMemory:
		kv = NewMemoryKV()
	case BackendFile:
		kv, err = NewFileKV(settings.File.Path)
	case BackendSQLite:
		kv, err = OpenSQLiteKV(settings.SQLite.Path, log)
	case BackendMySQL:
		kv, err = OpenMySQLKV(&settings.MySQL, log)
	case BackendRedis:
		kv, err = OpenRedisKV(ctx, &settings.Redis)
	default:
		return nil, errors.Newf("unknown datastore backend %q", settings.Backend).
			Component("datastore").
			Category(errors.CategoryConfiguration).
			Context("backend", settings.Backend).
			Build()
	}
	if err != nil {
		return nil, err
	}

	log.Info("datastore opened", logger.String("backend", settings.Backend))
	return kv, nil
}

// Instrument wraps kv so every call is timed and counted under the backend label
func Instrument(kv KV, backend string, m *metrics.DatastoreMetrics) KV {
	if m == nil {
		return kv
	}
	return &instrumentedKV{KV: kv, backend: backend, metrics: m}
}

type instrumentedKV struct {
	KV
	backend string
	metrics *metrics.DatastoreMetrics
}

func (i *instrumentedKV) Get(ctx context.Context, key string) (string, bool, error) {
	start := time.Now()
	v, ok, err := i.KV.Get(ctx, key)
	i.metrics.RecordKVOperation(i.backend, "get", metrics.StatusLabel(err), time.Since(start).Seconds())
	return v, ok, err
}

func (i *instrumentedKV) Set(ctx context.Context, key, value string) error {
	start := time.Now()
	err := i.KV.Set(ctx, key, value)
	i.metrics.RecordKVOperation(i.backend, "set", metrics.StatusLabel(err), time.Since(start).Seconds())
	return err
}

func dbError(err error, backend, op string) error {
	return errors.New(err).
		Component("datastore").
		Category(errors.CategoryDatabase).
		Context("backend", backend).
		Context("operation", op).
		Build()
}
