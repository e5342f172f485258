// Package storage provides the SQLite cache: the last good knowledge
// snapshot for cold starts and a persistent embedding cache keyed by
// model and question text.
package storage

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver for database/sql

	apperrors "github.com/peejay10/line-llama-chatbot/internal/errors"
	"github.com/peejay10/line-llama-chatbot/internal/knowledge"
)

// DB wraps the SQLite database connection
type DB struct {
	conn *sql.DB
	path string
}

// New creates a new database connection and initializes the schema.
func New(dbPath string) (*DB, error) {
	// Ensure directory exists (skip for in-memory database)
	if dbPath != ":memory:" {
		dir := filepath.Dir(dbPath)
		if dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("failed to create database directory: %w", err)
			}
		}
	}

	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	conn.SetMaxOpenConns(10)
	conn.SetMaxIdleConns(5)
	conn.SetConnMaxLifetime(time.Hour)

	// Enable WAL mode for better concurrency
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	if _, err := conn.Exec("PRAGMA busy_timeout=30000"); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	if _, err := conn.Exec("PRAGMA synchronous=NORMAL"); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to set synchronous mode: %w", err)
	}

	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db := &DB{
		conn: conn,
		path: dbPath,
	}

	if err := db.initSchema(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return db, nil
}

// Close closes the database connection
func (db *DB) Close() error {
	if db.conn != nil {
		return db.conn.Close()
	}
	return nil
}

// Path returns the database file path
func (db *DB) Path() string {
	return db.path
}

// Ping checks if the database is accessible.
func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

func (db *DB) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS snapshots (
		id TEXT PRIMARY KEY,
		loaded_at INTEGER NOT NULL,
		payload TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS embeddings (
		model TEXT NOT NULL,
		question TEXT NOT NULL,
		vector BLOB NOT NULL,
		created_at INTEGER NOT NULL,
		PRIMARY KEY (model, question)
	);
	`
	if _, err := db.conn.Exec(schema); err != nil {
		return err
	}
	return nil
}

// snapshotPayload is the JSON shape stored in the snapshots table.
type snapshotPayload struct {
	Records map[string][]knowledge.Record `json:"records"`
}

// SaveSnapshot persists a snapshot as the single last-good copy.
// Older snapshots are removed in the same transaction.
func (db *DB) SaveSnapshot(ctx context.Context, snap *knowledge.Snapshot) error {
	payload := snapshotPayload{Records: make(map[string][]knowledge.Record, len(snap.Records))}
	for c, recs := range snap.Records {
		payload.Records[c.String()] = recs
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "DELETE FROM snapshots"); err != nil {
		return fmt.Errorf("clear snapshots: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO snapshots (id, loaded_at, payload) VALUES (?, ?, ?)",
		snap.ID.String(), snap.LoadedAt.Unix(), string(data),
	); err != nil {
		return fmt.Errorf("insert snapshot: %w", err)
	}
	return tx.Commit()
}

// LoadSnapshot returns the last saved snapshot.
// Returns errors.ErrNoSnapshot if none has been saved.
func (db *DB) LoadSnapshot(ctx context.Context) (*knowledge.Snapshot, error) {
	var payload string
	err := db.conn.QueryRowContext(ctx,
		"SELECT payload FROM snapshots ORDER BY loaded_at DESC LIMIT 1",
	).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, apperrors.ErrNoSnapshot
	}
	if err != nil {
		return nil, fmt.Errorf("query snapshot: %w", err)
	}

	var decoded snapshotPayload
	if err := json.Unmarshal([]byte(payload), &decoded); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot: %w", err)
	}

	records := make(map[knowledge.Category][]knowledge.Record, len(knowledge.SearchOrder))
	for _, c := range knowledge.SearchOrder {
		records[c] = decoded.Records[c.String()]
	}
	return knowledge.NewSnapshot(records), nil
}

// GetEmbedding returns a cached embedding vector for (model, question).
// Returns errors.ErrNotFound on a cache miss.
func (db *DB) GetEmbedding(ctx context.Context, model, question string) ([]float32, error) {
	var blob []byte
	err := db.conn.QueryRowContext(ctx,
		"SELECT vector FROM embeddings WHERE model = ? AND question = ?",
		model, question,
	).Scan(&blob)
	if err == sql.ErrNoRows {
		return nil, apperrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query embedding: %w", err)
	}
	return decodeVector(blob)
}

// PutEmbedding stores an embedding vector for (model, question),
// replacing any existing entry.
func (db *DB) PutEmbedding(ctx context.Context, model, question string, vector []float32) error {
	if _, err := db.conn.ExecContext(ctx,
		"INSERT OR REPLACE INTO embeddings (model, question, vector, created_at) VALUES (?, ?, ?, ?)",
		model, question, encodeVector(vector), time.Now().Unix(),
	); err != nil {
		return fmt.Errorf("insert embedding: %w", err)
	}
	return nil
}

// PruneEmbeddings deletes cached embeddings older than the given age.
// Returns the number of rows removed.
func (db *DB) PruneEmbeddings(ctx context.Context, maxAge time.Duration) (int64, error) {
	cutoff := time.Now().Add(-maxAge).Unix()
	result, err := db.conn.ExecContext(ctx,
		"DELETE FROM embeddings WHERE created_at < ?", cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("prune embeddings: %w", err)
	}
	return result.RowsAffected()
}

// Vectors are stored as little-endian float32 blobs.
func encodeVector(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func decodeVector(blob []byte) ([]float32, error) {
	if len(blob)%4 != 0 {
		return nil, fmt.Errorf("malformed vector blob: %d bytes", len(blob))
	}
	v := make([]float32, len(blob)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(blob[i*4:]))
	}
	return v, nil
}
