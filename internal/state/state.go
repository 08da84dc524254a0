// Package state persists the power estimation state and a per-invocation
// sample history in a local sqlite database. The power_state table holds
// a single row; losing it only costs one interval of derived metrics
// (the estimator restarts cold).
package state

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"codeberg.org/mutker/powerlog/internal/errors"
	"codeberg.org/mutker/powerlog/internal/logger"
	"codeberg.org/mutker/powerlog/internal/power"
	"codeberg.org/mutker/powerlog/internal/sampler"
)

const defaultDirPerm = 0o755

const schemaSQL = `
	CREATE TABLE IF NOT EXISTS power_state (
		id          INTEGER PRIMARY KEY CHECK (id = 1),
		timestamp   INTEGER NOT NULL,
		bytes_sent  INTEGER NOT NULL,
		bytes_recv  INTEGER NOT NULL
	);
	CREATE TABLE IF NOT EXISTS samples (
		timestamp   INTEGER PRIMARY KEY,
		cpu_load    REAL NOT NULL,
		temperature REAL,
		ram_usage   REAL NOT NULL,
		disk_usage  REAL NOT NULL,
		bytes_sent  INTEGER NOT NULL,
		bytes_recv  INTEGER NOT NULL,
		watts       REAL NOT NULL,
		interval_wh REAL NOT NULL
	);`

type Config struct {
	DBPath string
}

func (c Config) Validate() error {
	if c.DBPath == "" {
		return errors.New().New(ErrInvalidDBPath)
	}
	return nil
}

// Repository stores power estimation state and sample history. All errors
// are degradable: callers fall back to a cold start rather than aborting
// the invocation.
type Repository interface {
	LoadPowerState(ctx context.Context) (*power.State, error)
	SavePowerState(ctx context.Context, st power.State) error
	RecordSample(ctx context.Context, snap sampler.Snapshot, derived power.Derived) error
	Close() error
}

type sqliteRepository struct {
	db *sql.DB
	mu sync.Mutex
}

func NewRepository(cfg Config) (Repository, error) {
	errFactory := errors.New()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger.Debug().Str("path", cfg.DBPath).Msg("Opening state store")

	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), defaultDirPerm); err != nil {
		return nil, errFactory.Wrap(ErrStorageInit, err)
	}

	db, err := sql.Open("sqlite3", cfg.DBPath)
	if err != nil {
		return nil, errFactory.Wrap(ErrStorageInit, err)
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, errFactory.Wrap(ErrStorageInit, err)
	}

	return &sqliteRepository{db: db}, nil
}

// LoadPowerState returns the persisted state, or nil when none exists yet
// (first-ever run).
func (r *sqliteRepository) LoadPowerState(ctx context.Context) (*power.State, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var (
		unix       int64
		sent, recv int64
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT timestamp, bytes_sent, bytes_recv
		FROM power_state
		WHERE id = 1
	`).Scan(&unix, &sent, &recv)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.New().Wrap(ErrStateCorrupt, err)
	}
	if sent < 0 || recv < 0 {
		return nil, errors.New().WithData(ErrStateCorrupt, "negative byte counter")
	}

	return &power.State{
		Timestamp: time.Unix(unix, 0),
		BytesSent: uint64(sent),
		BytesRecv: uint64(recv),
	}, nil
}

func (r *sqliteRepository) SavePowerState(ctx context.Context, st power.State) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO power_state (id, timestamp, bytes_sent, bytes_recv)
		VALUES (1, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			timestamp = excluded.timestamp,
			bytes_sent = excluded.bytes_sent,
			bytes_recv = excluded.bytes_recv
	`, st.Timestamp.Unix(), int64(st.BytesSent), int64(st.BytesRecv))
	if err != nil {
		return errors.New().Wrap(ErrStorageAccess, err)
	}

	return nil
}

// RecordSample appends one invocation's snapshot and derived metrics to
// the history table. An absent temperature is stored as NULL.
func (r *sqliteRepository) RecordSample(ctx context.Context, snap sampler.Snapshot, derived power.Derived) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	temperature := sql.NullFloat64{Float64: snap.Temperature, Valid: snap.HasTemperature}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO samples (
			timestamp, cpu_load, temperature, ram_usage, disk_usage,
			bytes_sent, bytes_recv, watts, interval_wh
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(timestamp) DO UPDATE SET
			cpu_load = excluded.cpu_load,
			temperature = excluded.temperature,
			ram_usage = excluded.ram_usage,
			disk_usage = excluded.disk_usage,
			bytes_sent = excluded.bytes_sent,
			bytes_recv = excluded.bytes_recv,
			watts = excluded.watts,
			interval_wh = excluded.interval_wh
	`,
		snap.Timestamp.Unix(),
		snap.CPULoad,
		temperature,
		snap.RAMUsage,
		snap.DiskUsage,
		int64(snap.BytesSent),
		int64(snap.BytesRecv),
		derived.Watts,
		derived.IntervalWh,
	)
	if err != nil {
		return errors.New().Wrap(ErrStorageAccess, err)
	}

	return nil
}

func (r *sqliteRepository) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.db.Close(); err != nil {
		return errors.New().Wrap(ErrStorageClose, err)
	}
	return nil
}
