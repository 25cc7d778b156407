// Package store persists named Markov models in a SQLite database, so a
// single model library can hold many trained models side by side. Model
// bodies are stored as the binary encoding produced by the markov package;
// the database adds naming, identity, and timestamps on top.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/prattle-dev/prattle/pkg/markov"
)

// ErrModelNotFound is returned when no stored model matches the requested
// name.
var ErrModelNotFound = errors.New("store: model not found")

// ModelInfo holds the library metadata for one stored model.
type ModelInfo struct {
	Id        int
	UUID      string
	Name      string
	Order     int
	CreatedAt time.Time
}

// SetupSchema initializes the model table in the provided database. It is
// idempotent and safe to call on an already-initialized database.
func SetupSchema(db *sql.DB) error {
	const schema = `
CREATE TABLE IF NOT EXISTS markov_models (
    model_id INTEGER PRIMARY KEY,
    model_uuid TEXT NOT NULL UNIQUE,
    model_name TEXT NOT NULL UNIQUE,
    model_order INTEGER NOT NULL,
    created_at INTEGER NOT NULL,
    model_data BLOB NOT NULL
);
`
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("could not create model schema: %w", err)
	}
	return nil
}

// Store provides access to a model library. It holds the database
// connection and prepared SQL statements for efficient access.
type Store struct {
	db         *sql.DB
	stmtUpsert *sql.Stmt
	stmtGet    *sql.Stmt
	stmtList   *sql.Stmt
	stmtDelete *sql.Stmt
	logger     *slog.Logger
}

// New creates a Store on top of db, pre-compiling all necessary SQL
// statements. SetupSchema must have been called on the database first.
func New(db *sql.DB) (*Store, error) {
	stmtUpsert, err := db.Prepare(`
INSERT INTO markov_models (model_uuid, model_name, model_order, created_at, model_data) VALUES (?, ?, ?, ?, ?)
ON CONFLICT(model_name) DO UPDATE SET model_order = excluded.model_order, model_data = excluded.model_data
RETURNING model_id, model_uuid, created_at;`)
	if err != nil {
		return nil, err
	}

	stmtGet, err := db.Prepare(`SELECT model_id, model_uuid, model_order, created_at, model_data FROM markov_models WHERE model_name = ?;`)
	if err != nil {
		return nil, err
	}

	stmtList, err := db.Prepare(`SELECT model_id, model_uuid, model_name, model_order, created_at FROM markov_models ORDER BY model_name;`)
	if err != nil {
		return nil, err
	}

	stmtDelete, err := db.Prepare(`DELETE FROM markov_models WHERE model_name = ?;`)
	if err != nil {
		return nil, err
	}

	return &Store{
		db:         db,
		stmtUpsert: stmtUpsert,
		stmtGet:    stmtGet,
		stmtList:   stmtList,
		stmtDelete: stmtDelete,
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}, nil
}

// Close releases all prepared SQL statements held by the Store. It should
// be called when the Store is no longer needed.
func (s *Store) Close() {
	_ = s.stmtUpsert.Close()
	_ = s.stmtGet.Close()
	_ = s.stmtList.Close()
	_ = s.stmtDelete.Close()
}

// SetLogger sets the logger for the Store. By default, all logs are
// discarded.
func (s *Store) SetLogger(logger *slog.Logger) {
	if logger != nil {
		s.logger = logger
	}
}

// Save serializes m and inserts it into the library under name. Saving to
// an existing name replaces that model's data while keeping its identity
// (UUID and creation time).
func (s *Store) Save(ctx context.Context, name string, m *markov.Model) (ModelInfo, error) {
	data, err := m.MarshalBinary()
	if err != nil {
		return ModelInfo{}, fmt.Errorf("could not serialize model '%s': %w", name, err)
	}

	info := ModelInfo{Name: name, Order: m.Order()}
	var createdAt int64
	err = s.stmtUpsert.QueryRowContext(ctx, uuid.NewString(), name, m.Order(), time.Now().Unix(), data).
		Scan(&info.Id, &info.UUID, &createdAt)
	if err != nil {
		return ModelInfo{}, fmt.Errorf("could not save model '%s': %w", name, err)
	}
	info.CreatedAt = time.Unix(createdAt, 0)

	s.logger.InfoContext(ctx, "Model saved",
		slog.String("model_name", name),
		slog.String("model_uuid", info.UUID),
		slog.Int("model_order", info.Order),
		slog.Int("encoded_bytes", len(data)),
	)
	return info, nil
}

// Load retrieves a model by name and decodes it. A missing name returns
// ErrModelNotFound; a blob that fails to decode surfaces
// markov.ErrCorruptModel.
func (s *Store) Load(ctx context.Context, name string) (*markov.Model, ModelInfo, error) {
	info := ModelInfo{Name: name}
	var createdAt int64
	var data []byte
	err := s.stmtGet.QueryRowContext(ctx, name).Scan(&info.Id, &info.UUID, &info.Order, &createdAt, &data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ModelInfo{}, fmt.Errorf("%w: '%s'", ErrModelNotFound, name)
		}
		return nil, ModelInfo{}, fmt.Errorf("could not load model '%s': %w", name, err)
	}
	info.CreatedAt = time.Unix(createdAt, 0)

	m, err := markov.UnmarshalModel(data)
	if err != nil {
		return nil, ModelInfo{}, fmt.Errorf("could not decode model '%s': %w", name, err)
	}

	s.logger.DebugContext(ctx, "Model loaded",
		slog.String("model_name", name),
		slog.String("model_uuid", info.UUID),
		slog.Int("model_order", info.Order),
		slog.Int("states", m.Len()),
	)
	return m, info, nil
}

// List returns metadata for every model in the library, ordered by name.
func (s *Store) List(ctx context.Context) ([]ModelInfo, error) {
	rows, err := s.stmtList.QueryContext(ctx)
	if err != nil {
		return nil, err
	}
	defer func(rows *sql.Rows) {
		_ = rows.Close()
	}(rows)

	var infos []ModelInfo
	for rows.Next() {
		var info ModelInfo
		var createdAt int64
		if err = rows.Scan(&info.Id, &info.UUID, &info.Name, &info.Order, &createdAt); err != nil {
			return nil, err
		}
		info.CreatedAt = time.Unix(createdAt, 0)
		infos = append(infos, info)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	return infos, nil
}

// Delete removes a model from the library. Deleting a name that does not
// exist returns ErrModelNotFound.
func (s *Store) Delete(ctx context.Context, name string) error {
	res, err := s.stmtDelete.ExecContext(ctx, name)
	if err != nil {
		return fmt.Errorf("could not delete model '%s': %w", name, err)
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return fmt.Errorf("%w: '%s'", ErrModelNotFound, name)
	}

	s.logger.InfoContext(ctx, "Model deleted",
		slog.String("model_name", name),
	)
	return nil
}
