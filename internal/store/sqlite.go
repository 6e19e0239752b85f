package store

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// ErrNotImported is returned when a dataset has never been imported.
var ErrNotImported = errors.New("dataset not imported")

// Store keeps raw source dataset rows in SQLite. Rows are stored as the
// strings read from the source so the normalizer sees exactly what the
// original file contained.
type Store struct {
	db     *sql.DB
	logger *zap.Logger
}

func New(db *sql.DB, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{db: db, logger: logger.Named("store")}
}

// Import describes one stored copy of a source dataset.
type Import struct {
	ID         int64
	Dataset    string
	Location   string
	ImportedAt time.Time
	RowCount   int
	Header     []string
	// ContentHash is the SHA-256 of the header and rows.
	ContentHash string
	// Unchanged is set by ReplaceDataset when the stored copy already had
	// the same content and nothing was written.
	Unchanged bool
}

// ReplaceDataset stores header and rows as the current copy of dataset,
// removing any earlier import of the same dataset. If the current copy has
// identical content it is returned with Unchanged set and nothing is written.
func (s *Store) ReplaceDataset(dataset, location string, header []string, rows [][]string) (*Import, error) {
	headerJSON, err := json.Marshal(header)
	if err != nil {
		return nil, fmt.Errorf("marshal header: %w", err)
	}

	hash, err := ContentHash(header, rows)
	if err != nil {
		return nil, err
	}

	current, err := s.LatestImport(dataset)
	if err != nil {
		return nil, fmt.Errorf("check current import: %w", err)
	}
	if current != nil && current.ContentHash == hash {
		s.logger.Info("dataset unchanged, skipping import",
			zap.String("dataset", dataset),
			zap.String("hash", hash[:12]))
		current.Unchanged = true
		return current, nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`
		DELETE FROM source_rows
		WHERE import_id IN (SELECT id FROM source_imports WHERE dataset = ?)
	`, dataset); err != nil {
		return nil, fmt.Errorf("delete previous rows: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM source_imports WHERE dataset = ?`, dataset); err != nil {
		return nil, fmt.Errorf("delete previous import: %w", err)
	}

	imp := &Import{
		Dataset:     dataset,
		Location:    location,
		ImportedAt:  time.Now().UTC(),
		RowCount:    len(rows),
		Header:      header,
		ContentHash: hash,
	}

	result, err := tx.Exec(`
		INSERT INTO source_imports (dataset, location, imported_at, row_count, header, content_hash)
		VALUES (?, ?, ?, ?, ?, ?)
	`, imp.Dataset, imp.Location, imp.ImportedAt, imp.RowCount, string(headerJSON), imp.ContentHash)
	if err != nil {
		return nil, fmt.Errorf("insert import: %w", err)
	}
	imp.ID, err = result.LastInsertId()
	if err != nil {
		return nil, err
	}

	stmt, err := tx.Prepare(`INSERT INTO source_rows (import_id, row_index, fields) VALUES (?, ?, ?)`)
	if err != nil {
		return nil, fmt.Errorf("prepare row insert: %w", err)
	}
	defer stmt.Close()

	for i, row := range rows {
		fields, err := json.Marshal(row)
		if err != nil {
			return nil, fmt.Errorf("marshal row %d: %w", i, err)
		}
		if _, err := stmt.Exec(imp.ID, i, string(fields)); err != nil {
			return nil, fmt.Errorf("insert row %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit import: %w", err)
	}

	s.logger.Info("dataset imported",
		zap.String("dataset", dataset),
		zap.String("location", location),
		zap.Int("rows", len(rows)))
	return imp, nil
}

// LatestImport returns the current import of dataset, or nil if there is none.
func (s *Store) LatestImport(dataset string) (*Import, error) {
	row := s.db.QueryRow(`
		SELECT id, dataset, location, imported_at, row_count, header, content_hash
		FROM source_imports
		WHERE dataset = ?
		ORDER BY imported_at DESC, id DESC
		LIMIT 1
	`, dataset)

	imp, err := scanImport(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return imp, nil
}

func (s *Store) ListImports() ([]Import, error) {
	rows, err := s.db.Query(`
		SELECT id, dataset, location, imported_at, row_count, header, content_hash
		FROM source_imports
		ORDER BY dataset
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var imports []Import
	for rows.Next() {
		imp, err := scanImport(rows)
		if err != nil {
			return nil, err
		}
		imports = append(imports, *imp)
	}
	return imports, rows.Err()
}

// ReadDataset returns the header and rows of the current import of dataset,
// rows in their original order.
func (s *Store) ReadDataset(dataset string) ([]string, [][]string, error) {
	imp, err := s.LatestImport(dataset)
	if err != nil {
		return nil, nil, err
	}
	if imp == nil {
		return nil, nil, fmt.Errorf("%w: %s", ErrNotImported, dataset)
	}

	rows, err := s.db.Query(`
		SELECT fields FROM source_rows
		WHERE import_id = ?
		ORDER BY row_index ASC
	`, imp.ID)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	records := make([][]string, 0, imp.RowCount)
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, nil, err
		}
		var fields []string
		if err := json.Unmarshal([]byte(raw), &fields); err != nil {
			return nil, nil, fmt.Errorf("decode row %d: %w", len(records), err)
		}
		records = append(records, fields)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}
	return imp.Header, records, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanImport(row scanner) (*Import, error) {
	var imp Import
	var header string
	if err := row.Scan(&imp.ID, &imp.Dataset, &imp.Location, &imp.ImportedAt, &imp.RowCount, &header, &imp.ContentHash); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(header), &imp.Header); err != nil {
		return nil, fmt.Errorf("decode header: %w", err)
	}
	return &imp, nil
}

// ContentHash returns the hex SHA-256 of a dataset's header and rows.
func ContentHash(header []string, rows [][]string) (string, error) {
	h := sha256.New()
	enc := json.NewEncoder(h)
	if err := enc.Encode(header); err != nil {
		return "", fmt.Errorf("hash header: %w", err)
	}
	for _, row := range rows {
		if err := enc.Encode(row); err != nil {
			return "", fmt.Errorf("hash rows: %w", err)
		}
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
