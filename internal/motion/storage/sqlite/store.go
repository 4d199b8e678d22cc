package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/banshee-data/motion.match/internal/monitoring"
	"github.com/banshee-data/motion.match/internal/motion/calibration"
	"github.com/banshee-data/motion.match/internal/motion/feature"
	"github.com/banshee-data/motion.match/internal/motion/index"
	"github.com/banshee-data/motion.match/internal/motion/posedb"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a database or index is not stored.
var ErrNotFound = errors.New("not found")

var pragmas = []string{
	"PRAGMA journal_mode=WAL",
	"PRAGMA busy_timeout=5000",
	"PRAGMA synchronous=NORMAL",
	"PRAGMA foreign_keys=ON",
}

// Record summarises one stored pose database.
type Record struct {
	ID           string               `json:"database_id"`
	Name         string               `json:"name"`
	PoseCount    int                  `json:"pose_count"`
	AtomCount    int                  `json:"atom_count"`
	AnimCount    int                  `json:"anim_count"`
	PoseInterval float64              `json:"pose_interval"`
	Schema       []feature.Descriptor `json:"schema"`
	HasIndex     bool                 `json:"has_index"`
	CreatedAt    int64                `json:"created_at"`
}

func (r *Record) String() string {
	return fmt.Sprintf("%s %s (%d poses, %d atoms, index=%v, %s)", r.ID, r.Name, r.PoseCount, r.AtomCount, r.HasIndex,
		time.Unix(0, r.CreatedAt).UTC().Format(time.RFC3339))
}

// Store persists pose databases in one SQLite file.
type Store struct {
	db *sql.DB
}

// Open opens or creates the SQLite file at path and migrates it to the
// latest schema.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// A single connection keeps per-connection pragmas in force.
	db.SetMaxOpenConns(1)
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to execute %q: %w", p, err)
		}
	}
	s := &Store{db: db}
	if err := s.MigrateUp(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Save stores db and, when idx is non-nil, its index. A database already
// stored under the same name is replaced.
func (s *Store) Save(ctx context.Context, db *posedb.Database, idx *index.Index) (*Record, error) {
	blob, err := db.Encode()
	if err != nil {
		return nil, fmt.Errorf("encode database %s: %w", db.Name, err)
	}
	var idxBlob []byte
	if idx != nil {
		if idxBlob, err = idx.Encode(); err != nil {
			return nil, fmt.Errorf("encode index %s: %w", db.Name, err)
		}
	}
	descriptors := db.Schema.Descriptors()
	schemaJSON, err := json.Marshal(descriptors)
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}

	rec := &Record{
		ID:           uuid.New().String(),
		Name:         db.Name,
		PoseCount:    db.Len(),
		AtomCount:    db.AtomCount(),
		AnimCount:    len(db.Anims),
		PoseInterval: db.PoseInterval,
		Schema:       descriptors,
		HasIndex:     idxBlob != nil,
		CreatedAt:    time.Now().UnixNano(),
	}

	err = retryOnBusy(func() error {
		return s.inTx(ctx, func(tx *sql.Tx) error {
			if err := deleteByName(ctx, tx, db.Name); err != nil {
				return err
			}
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO motion_databases (
					database_id, name, pose_count, atom_count, anim_count,
					pose_interval, schema_json, database_blob, created_at
				) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				rec.ID, rec.Name, rec.PoseCount, rec.AtomCount, rec.AnimCount,
				rec.PoseInterval, string(schemaJSON), blob, rec.CreatedAt,
			); err != nil {
				return fmt.Errorf("insert database: %w", err)
			}
			if idxBlob != nil {
				if _, err := tx.ExecContext(ctx, `
					INSERT INTO motion_indexes (database_id, leaf_count, index_blob, created_at)
					VALUES (?, ?, ?, ?)`,
					rec.ID, idx.Stats().Leaves, idxBlob, rec.CreatedAt,
				); err != nil {
					return fmt.Errorf("insert index: %w", err)
				}
			}
			return insertCalibrations(ctx, tx, rec.ID, db)
		})
	})
	if err != nil {
		return nil, err
	}
	monitoring.Logf("[storage] saved %s as %s (%d poses, %d bytes)", rec.Name, rec.ID, rec.PoseCount, len(blob)+len(idxBlob))
	return rec, nil
}

func insertCalibrations(ctx context.Context, tx *sql.Tx, id string, db *posedb.Database) error {
	if db.Calibration == nil {
		return nil
	}
	for _, traits := range db.Calibration.Traits() {
		entryJSON, err := json.Marshal(db.Calibration.Entry(traits))
		if err != nil {
			return fmt.Errorf("marshal calibration 0x%x: %w", traits, err)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO motion_calibrations (calibration_id, database_id, traits, pose_count, entry_json)
			VALUES (?, ?, ?, ?, ?)`,
			uuid.New().String(), id, int64(traits), len(db.Partition(traits)), string(entryJSON),
		); err != nil {
			return fmt.Errorf("insert calibration 0x%x: %w", traits, err)
		}
	}
	return nil
}

func deleteByName(ctx context.Context, tx *sql.Tx, name string) error {
	var id string
	err := tx.QueryRowContext(ctx, `SELECT database_id FROM motion_databases WHERE name = ?`, name).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("lookup %s: %w", name, err)
	}
	_, err = deleteByID(ctx, tx, id)
	return err
}

func deleteByID(ctx context.Context, tx *sql.Tx, id string) (int64, error) {
	for _, table := range []string{"motion_calibrations", "motion_indexes"} {
		if _, err := tx.ExecContext(ctx, `DELETE FROM `+table+` WHERE database_id = ?`, id); err != nil {
			return 0, fmt.Errorf("delete from %s: %w", table, err)
		}
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM motion_databases WHERE database_id = ?`, id)
	if err != nil {
		return 0, fmt.Errorf("delete database: %w", err)
	}
	return res.RowsAffected()
}

func (s *Store) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

const recordColumns = `
	d.database_id, d.name, d.pose_count, d.atom_count, d.anim_count,
	d.pose_interval, d.schema_json, d.created_at, i.database_id IS NOT NULL
	FROM motion_databases d
	LEFT JOIN motion_indexes i ON i.database_id = d.database_id`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRecord(row rowScanner) (*Record, error) {
	var r Record
	var schemaJSON string
	if err := row.Scan(&r.ID, &r.Name, &r.PoseCount, &r.AtomCount, &r.AnimCount,
		&r.PoseInterval, &schemaJSON, &r.CreatedAt, &r.HasIndex); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(schemaJSON), &r.Schema); err != nil {
		return nil, fmt.Errorf("unmarshal schema of %s: %w", r.ID, err)
	}
	return &r, nil
}

// List returns every stored database, newest first.
func (s *Store) List(ctx context.Context) ([]*Record, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+recordColumns+` ORDER BY d.created_at DESC, d.name`)
	if err != nil {
		return nil, fmt.Errorf("query databases: %w", err)
	}
	defer rows.Close()

	var out []*Record
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan database row: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Get returns the record with id.
func (s *Store) Get(ctx context.Context, id string) (*Record, error) {
	r, err := scanRecord(s.db.QueryRowContext(ctx, `SELECT `+recordColumns+` WHERE d.database_id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("database %s: %w", id, ErrNotFound)
	}
	return r, err
}

// Find returns the record stored under name.
func (s *Store) Find(ctx context.Context, name string) (*Record, error) {
	r, err := scanRecord(s.db.QueryRowContext(ctx, `SELECT `+recordColumns+` WHERE d.name = ?`, name))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("database %q: %w", name, ErrNotFound)
	}
	return r, err
}

// Load decodes the pose database with id.
func (s *Store) Load(ctx context.Context, id string) (*posedb.Database, error) {
	var blob []byte
	err := s.db.QueryRowContext(ctx, `SELECT database_blob FROM motion_databases WHERE database_id = ?`, id).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("database %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load database %s: %w", id, err)
	}
	return posedb.Decode(blob)
}

// LoadIndex decodes the index stored for database id against db. It
// returns index.ErrStale when db does not match the stored layout.
func (s *Store) LoadIndex(ctx context.Context, id string, db *posedb.Database) (*index.Index, error) {
	var blob []byte
	err := s.db.QueryRowContext(ctx, `SELECT index_blob FROM motion_indexes WHERE database_id = ?`, id).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("index for %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load index %s: %w", id, err)
	}
	return index.Decode(blob, db)
}

// Calibrations returns the stored calibration entries of database id by
// trait bitfield.
func (s *Store) Calibrations(ctx context.Context, id string) (map[uint64]*calibration.Entry, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT traits, entry_json FROM motion_calibrations WHERE database_id = ? ORDER BY traits`, id)
	if err != nil {
		return nil, fmt.Errorf("query calibrations: %w", err)
	}
	defer rows.Close()

	out := make(map[uint64]*calibration.Entry)
	for rows.Next() {
		var traits int64
		var entryJSON string
		if err := rows.Scan(&traits, &entryJSON); err != nil {
			return nil, fmt.Errorf("scan calibration row: %w", err)
		}
		var e calibration.Entry
		if err := json.Unmarshal([]byte(entryJSON), &e); err != nil {
			return nil, fmt.Errorf("unmarshal calibration 0x%x: %w", traits, err)
		}
		out[uint64(traits)] = &e
	}
	return out, rows.Err()
}

// Delete removes database id with its index and calibration.
func (s *Store) Delete(ctx context.Context, id string) error {
	return retryOnBusy(func() error {
		return s.inTx(ctx, func(tx *sql.Tx) error {
			n, err := deleteByID(ctx, tx, id)
			if err != nil {
				return err
			}
			if n == 0 {
				return fmt.Errorf("database %s: %w", id, ErrNotFound)
			}
			return nil
		})
	})
}
