package export

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"go.uber.org/zap"
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/cnclabs/transe/pkg/embedding"
)

// Table kinds stored in the embeddings table
const (
	KindEntity   = "entity"
	KindRelation = "relation"
)

// ErrRunNotFound is returned when a run id has no stored embeddings
var ErrRunNotFound = errors.New("run not found")

// SQLiteExporter stores runs and their final embeddings in a SQLite file
type SQLiteExporter struct {
	db     *sql.DB
	logger *zap.Logger
}

// OpenSQLite opens (creating if needed) the database at path
func OpenSQLite(ctx context.Context, path string, logger *zap.Logger) (*SQLiteExporter, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	dsn := fmt.Sprintf("%s?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	e := &SQLiteExporter{db: db, logger: logger}
	if err := e.createTables(ctx); err != nil {
		db.Close()
		return nil, err
	}
	logger.Debug("sqlite export opened", zap.String("path", path))
	return e, nil
}

func (e *SQLiteExporter) createTables(ctx context.Context) error {
	const schema = `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		created_at DATETIME NOT NULL,
		embed_dim INTEGER NOT NULL,
		lr REAL NOT NULL,
		margin REAL NOT NULL,
		norm INTEGER NOT NULL,
		epochs INTEGER NOT NULL,
		nbatches INTEGER NOT NULL,
		seed INTEGER NOT NULL,
		entities INTEGER NOT NULL,
		relations INTEGER NOT NULL,
		triples INTEGER NOT NULL,
		loss REAL NOT NULL
	);

	CREATE TABLE IF NOT EXISTS embeddings (
		run_id TEXT NOT NULL,
		kind TEXT NOT NULL,
		id INTEGER NOT NULL,
		vector BLOB NOT NULL,
		PRIMARY KEY (run_id, kind, id),
		FOREIGN KEY (run_id) REFERENCES runs(id) ON DELETE CASCADE
	);`
	if _, err := e.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create tables: %w", err)
	}
	return nil
}

// SaveRun inserts or replaces the run row
func (e *SQLiteExporter) SaveRun(ctx context.Context, run *Run) error {
	_, err := e.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO runs
			(id, created_at, embed_dim, lr, margin, norm, epochs, nbatches, seed, entities, relations, triples, loss)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.CreatedAt, run.EmbedDim, run.LearningRate, run.Margin, run.Norm, run.Epochs,
		run.Batches, run.Seed, run.Entities, run.Relations, run.Triples, run.Loss)
	if err != nil {
		return fmt.Errorf("save run %s: %w", run.ID, err)
	}
	return nil
}

// LoadRun reads back the run row saved by SaveRun
func (e *SQLiteExporter) LoadRun(ctx context.Context, runID string) (*Run, error) {
	var run Run
	err := e.db.QueryRowContext(ctx, `
		SELECT id, created_at, embed_dim, lr, margin, norm, epochs, nbatches, seed, entities, relations, triples, loss
		FROM runs WHERE id = ?`, runID).Scan(
		&run.ID, &run.CreatedAt, &run.EmbedDim, &run.LearningRate, &run.Margin, &run.Norm, &run.Epochs,
		&run.Batches, &run.Seed, &run.Entities, &run.Relations, &run.Triples, &run.Loss)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	if err != nil {
		return nil, fmt.Errorf("load run %s: %w", runID, err)
	}
	return &run, nil
}

// SaveTable stores every vector of t under (runID, kind) in one transaction
func (e *SQLiteExporter) SaveTable(ctx context.Context, runID, kind string, t *embedding.Table) error {
	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT OR REPLACE INTO embeddings (run_id, kind, id, vector) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()

	for _, id := range t.IDs() {
		v, err := t.Get(id)
		if err != nil {
			return err
		}
		if _, err := stmt.ExecContext(ctx, runID, kind, id, embedding.EncodeVector(v)); err != nil {
			return fmt.Errorf("insert %s %d: %w", kind, id, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	e.logger.Debug("embeddings exported",
		zap.String("run_id", runID),
		zap.String("kind", kind),
		zap.Int("count", t.Len()))
	return nil
}

// LoadTable reads back the vectors stored under (runID, kind)
func (e *SQLiteExporter) LoadTable(ctx context.Context, runID, kind string) (*embedding.Table, error) {
	rows, err := e.db.QueryContext(ctx,
		`SELECT id, vector FROM embeddings WHERE run_id = ? AND kind = ? ORDER BY id`, runID, kind)
	if err != nil {
		return nil, fmt.Errorf("query embeddings: %w", err)
	}
	defer rows.Close()

	var (
		ids  []int64
		vecs [][]float64
	)
	for rows.Next() {
		var (
			id   int64
			blob []byte
		)
		if err := rows.Scan(&id, &blob); err != nil {
			return nil, fmt.Errorf("scan embedding: %w", err)
		}
		v, err := embedding.DecodeVector(blob)
		if err != nil {
			return nil, fmt.Errorf("decode %s %d: %w", kind, id, err)
		}
		ids = append(ids, id)
		vecs = append(vecs, v)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("%w: %s (%s)", ErrRunNotFound, runID, kind)
	}

	t := embedding.New(ids, len(vecs[0]))
	for i, id := range ids {
		if err := t.Set(id, vecs[i]); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// Close closes the database
func (e *SQLiteExporter) Close() error {
	return e.db.Close()
}
