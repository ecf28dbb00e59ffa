package store

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/ironsheep/dot-tracker-mcp/internal/graph"
	"github.com/ironsheep/dot-tracker-mcp/internal/pipeline"
	"github.com/ironsheep/dot-tracker-mcp/internal/refine"
)

// schema.sql creates the stacks table and the grid, feature and edge tables
// keyed by stack id.
//
//go:embed schema.sql
var schemaSQL string

// SQLiteStore keeps snapshots of many stacks in one database file.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens or creates the database at path and applies the schema.
func OpenSQLite(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Close releases the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Save replaces any snapshot stored for key and returns the new stack id.
func (s *SQLiteStore) Save(ctx context.Context, key string, snap *pipeline.Snapshot) (string, error) {
	cfgJSON, err := json.Marshal(snap.Config)
	if err != nil {
		return "", fmt.Errorf("encode config: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if err := deleteStack(ctx, tx, key); err != nil {
		return "", err
	}

	id := uuid.NewString()
	_, err = tx.ExecContext(ctx, `
		INSERT INTO stacks (id, source, version, frames, width, height, config_json, range_min, range_max, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, id, key, snap.Version, snap.Frames, snap.Width, snap.Height, string(cfgJSON),
		snap.Range.Min, snap.Range.Max, snap.CreatedAt.UnixNano())
	if err != nil {
		return "", fmt.Errorf("insert stack: %w", err)
	}

	gridStmt, err := tx.PrepareContext(ctx, `INSERT INTO grids (stack_id, frame, data) VALUES (?, ?, ?)`)
	if err != nil {
		return "", fmt.Errorf("prepare grids: %w", err)
	}
	defer gridStmt.Close()
	for i, g := range snap.Grids {
		if _, err := gridStmt.ExecContext(ctx, id, i, encodeValues(g.Values)); err != nil {
			return "", fmt.Errorf("insert grid %d: %w", i, err)
		}
	}

	featStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO features (stack_id, id, frame, x, y, confidence) VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return "", fmt.Errorf("prepare features: %w", err)
	}
	defer featStmt.Close()
	for i, f := range snap.Graph.Features {
		if _, err := featStmt.ExecContext(ctx, id, i, f.Frame, f.X, f.Y, f.Confidence); err != nil {
			return "", fmt.Errorf("insert feature %d: %w", i, err)
		}
	}

	edgeStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO edges (stack_id, seq, kind, from_id, to_id) VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		return "", fmt.Errorf("prepare edges: %w", err)
	}
	defer edgeStmt.Close()
	for i, e := range snap.Graph.Edges {
		if _, err := edgeStmt.ExecContext(ctx, id, i, e.Kind.String(), int(e.From), int(e.To)); err != nil {
			return "", fmt.Errorf("insert edge %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}
	return id, nil
}

// Load returns the snapshot stored for key.
func (s *SQLiteStore) Load(ctx context.Context, key string) (*pipeline.Snapshot, error) {
	var (
		id      string
		cfgJSON string
		created int64
		snap    = &pipeline.Snapshot{Graph: &graph.Record{}}
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, version, frames, width, height, config_json, range_min, range_max, created_at
		FROM stacks WHERE source = ?
	`, key).Scan(&id, &snap.Version, &snap.Frames, &snap.Width, &snap.Height, &cfgJSON,
		&snap.Range.Min, &snap.Range.Max, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	if err != nil {
		return nil, fmt.Errorf("load stack %s: %w", key, err)
	}
	if err := json.Unmarshal([]byte(cfgJSON), &snap.Config); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	snap.CreatedAt = time.Unix(0, created).UTC()
	snap.Graph.Frames = snap.Frames

	if snap.Grids, err = s.loadGrids(ctx, id, snap); err != nil {
		return nil, err
	}
	if snap.Graph.Features, err = s.loadFeatures(ctx, id); err != nil {
		return nil, err
	}
	if snap.Graph.Edges, err = s.loadEdges(ctx, id); err != nil {
		return nil, err
	}
	return snap, nil
}

// Delete removes the snapshot stored for key, if any.
func (s *SQLiteStore) Delete(ctx context.Context, key string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()
	if err := deleteStack(ctx, tx, key); err != nil {
		return err
	}
	return tx.Commit()
}

func deleteStack(ctx context.Context, tx *sql.Tx, key string) error {
	for _, q := range []string{
		`DELETE FROM grids WHERE stack_id IN (SELECT id FROM stacks WHERE source = ?)`,
		`DELETE FROM features WHERE stack_id IN (SELECT id FROM stacks WHERE source = ?)`,
		`DELETE FROM edges WHERE stack_id IN (SELECT id FROM stacks WHERE source = ?)`,
		`DELETE FROM stacks WHERE source = ?`,
	} {
		if _, err := tx.ExecContext(ctx, q, key); err != nil {
			return fmt.Errorf("delete stack %s: %w", key, err)
		}
	}
	return nil
}

func (s *SQLiteStore) loadGrids(ctx context.Context, id string, snap *pipeline.Snapshot) ([]*refine.ConfidenceGrid, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT frame, data FROM grids WHERE stack_id = ? ORDER BY frame`, id)
	if err != nil {
		return nil, fmt.Errorf("load grids: %w", err)
	}
	defer rows.Close()

	grids := make([]*refine.ConfidenceGrid, 0, snap.Frames)
	for rows.Next() {
		var (
			frame int
			data  []byte
		)
		if err := rows.Scan(&frame, &data); err != nil {
			return nil, fmt.Errorf("scan grid: %w", err)
		}
		values, err := decodeValues(data)
		if err != nil {
			return nil, fmt.Errorf("grid %d: %w", frame, err)
		}
		grids = append(grids, &refine.ConfidenceGrid{
			Index:  frame,
			Width:  snap.Width,
			Height: snap.Height,
			Values: values,
		})
	}
	return grids, rows.Err()
}

func (s *SQLiteStore) loadFeatures(ctx context.Context, id string) ([]graph.FeatureRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT frame, x, y, confidence FROM features WHERE stack_id = ? ORDER BY id
	`, id)
	if err != nil {
		return nil, fmt.Errorf("load features: %w", err)
	}
	defer rows.Close()

	var out []graph.FeatureRecord
	for rows.Next() {
		var f graph.FeatureRecord
		if err := rows.Scan(&f.Frame, &f.X, &f.Y, &f.Confidence); err != nil {
			return nil, fmt.Errorf("scan feature: %w", err)
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) loadEdges(ctx context.Context, id string) ([]graph.Edge, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT kind, from_id, to_id FROM edges WHERE stack_id = ? ORDER BY seq
	`, id)
	if err != nil {
		return nil, fmt.Errorf("load edges: %w", err)
	}
	defer rows.Close()

	var out []graph.Edge
	for rows.Next() {
		var (
			kind     string
			from, to int
			e        graph.Edge
		)
		if err := rows.Scan(&kind, &from, &to); err != nil {
			return nil, fmt.Errorf("scan edge: %w", err)
		}
		if err := e.Kind.UnmarshalText([]byte(kind)); err != nil {
			return nil, err
		}
		e.From, e.To = graph.FeatureID(from), graph.FeatureID(to)
		out = append(out, e)
	}
	return out, rows.Err()
}

// encodeValues packs grid values as little-endian float64 bits.
func encodeValues(values []float64) []byte {
	buf := make([]byte, 0, len(values)*8)
	for _, v := range values {
		buf = binary.LittleEndian.AppendUint64(buf, math.Float64bits(v))
	}
	return buf
}

func decodeValues(data []byte) ([]float64, error) {
	if len(data)%8 != 0 {
		return nil, fmt.Errorf("blob length %d is not a multiple of 8", len(data))
	}
	values := make([]float64, len(data)/8)
	for i := range values {
		values[i] = math.Float64frombits(binary.LittleEndian.Uint64(data[i*8:]))
	}
	return values, nil
}
