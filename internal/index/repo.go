package index

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/starford/metacheck/internal/apperr"
	"github.com/starford/metacheck/internal/models"
)

// SaveRun stores a report with all its findings within a transaction.
func (db *DB) SaveRun(ctx context.Context, r *models.Report) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	s := r.Summarize()
	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (id, started_at, finished_at, files, clean, errors, warnings)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, r.RunID, r.StartedAt.UTC(), r.FinishedAt.UTC(), s.Files, s.Clean, s.Errors, s.Warnings)
	if err != nil {
		return fmt.Errorf("index: insert run: %w", err)
	}

	fileStmt, err := tx.PrepareContext(ctx, `INSERT INTO run_files (run_id, seq, path) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("index: prepare file insert: %w", err)
	}
	defer fileStmt.Close()
	findStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO findings (run_id, path, seq, kind, check_name, severity, attribute,
			expected, actual, entity, id_class, source_a, source_b, reason)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("index: prepare finding insert: %w", err)
	}
	defer findStmt.Close()

	for i, f := range r.Files {
		if _, err := fileStmt.ExecContext(ctx, r.RunID, i, f.Path); err != nil {
			return fmt.Errorf("index: insert file: %w", err)
		}
		for j, d := range f.Discrepancies {
			_, err := findStmt.ExecContext(ctx, r.RunID, f.Path, j, d.Kind, d.Check, d.Severity, d.Attribute,
				d.Expected, d.Actual, d.Entity, d.IDClass, d.SourceA, d.SourceB, d.Reason)
			if err != nil {
				return fmt.Errorf("index: insert finding: %w", err)
			}
		}
	}
	return tx.Commit()
}

// GetRun loads a stored report. Missing runs return apperr.ErrNotFound.
func (db *DB) GetRun(ctx context.Context, id string) (*models.Report, error) {
	r := &models.Report{RunID: id}
	err := db.conn.QueryRowContext(ctx, `SELECT started_at, finished_at FROM runs WHERE id = ?`, id).
		Scan(&r.StartedAt, &r.FinishedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("index: get run: %w", err)
	}

	rows, err := db.conn.QueryContext(ctx, `SELECT path FROM run_files WHERE run_id = ? ORDER BY seq`, id)
	if err != nil {
		return nil, fmt.Errorf("index: run files: %w", err)
	}
	pos := map[string]int{}
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			rows.Close()
			return nil, err
		}
		pos[p] = len(r.Files)
		r.Files = append(r.Files, models.FileResult{Path: p})
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	rows, err = db.conn.QueryContext(ctx, `
		SELECT path, kind, check_name, severity, attribute, expected, actual,
			entity, id_class, source_a, source_b, reason
		FROM findings WHERE run_id = ? ORDER BY path, seq
	`, id)
	if err != nil {
		return nil, fmt.Errorf("index: run findings: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		d, err := scanFinding(rows)
		if err != nil {
			return nil, err
		}
		i, ok := pos[d.Path]
		if !ok {
			continue
		}
		r.Files[i].Discrepancies = append(r.Files[i].Discrepancies, d)
	}
	return r, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanFinding(s scanner) (models.Discrepancy, error) {
	var d models.Discrepancy
	err := s.Scan(&d.Path, &d.Kind, &d.Check, &d.Severity, &d.Attribute, &d.Expected, &d.Actual,
		&d.Entity, &d.IDClass, &d.SourceA, &d.SourceB, &d.Reason)
	if err != nil {
		return d, fmt.Errorf("index: scan finding: %w", err)
	}
	return d, nil
}

// ListRuns returns run summaries newest first, with the total count.
func (db *DB) ListRuns(ctx context.Context, limit, offset int) ([]models.Summary, int, error) {
	var total int
	if err := db.conn.QueryRowContext(ctx, `SELECT count(*) FROM runs`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("index: count runs: %w", err)
	}
	rows, err := db.conn.QueryContext(ctx, `
		SELECT id, started_at, finished_at, files, clean, errors, warnings
		FROM runs ORDER BY started_at DESC, id LIMIT ? OFFSET ?
	`, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("index: list runs: %w", err)
	}
	defer rows.Close()

	var out []models.Summary
	for rows.Next() {
		var s models.Summary
		if err := rows.Scan(&s.RunID, &s.StartedAt, &s.FinishedAt, &s.Files, &s.Clean, &s.Errors, &s.Warnings); err != nil {
			return nil, 0, err
		}
		out = append(out, s)
	}
	return out, total, rows.Err()
}

// PathHistory returns the findings recorded for path across runs, newest
// run first.
func (db *DB) PathHistory(ctx context.Context, path string, limit int) ([]models.Discrepancy, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT f.path, f.kind, f.check_name, f.severity, f.attribute, f.expected, f.actual,
			f.entity, f.id_class, f.source_a, f.source_b, f.reason
		FROM findings f JOIN runs r ON r.id = f.run_id
		WHERE f.path = ? ORDER BY r.started_at DESC, f.seq LIMIT ?
	`, path, limit)
	if err != nil {
		return nil, fmt.Errorf("index: path history: %w", err)
	}
	defer rows.Close()
	var out []models.Discrepancy
	for rows.Next() {
		d, err := scanFinding(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// Fingerprint returns the stored fingerprint for path, or empty string if
// it was never checked.
func (db *DB) Fingerprint(path string) (string, error) {
	var fp string
	err := db.conn.QueryRow(`SELECT fingerprint FROM file_state WHERE path = ?`, path).Scan(&fp)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("index: fingerprint: %w", err)
	}
	return fp, nil
}

// SetFingerprint records that path was checked in state fingerprint.
func (db *DB) SetFingerprint(path, fingerprint, runID string) error {
	_, err := db.conn.Exec(`
		INSERT INTO file_state (path, fingerprint, run_id, checked_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			fingerprint = excluded.fingerprint,
			run_id      = excluded.run_id,
			checked_at  = excluded.checked_at
	`, path, fingerprint, runID, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("index: set fingerprint: %w", err)
	}
	return nil
}

// DeleteState forgets path.
func (db *DB) DeleteState(path string) error {
	if _, err := db.conn.Exec(`DELETE FROM file_state WHERE path = ?`, path); err != nil {
		return fmt.Errorf("index: delete state: %w", err)
	}
	return nil
}

// AllFingerprints returns a map of path → fingerprint for every known file.
func (db *DB) AllFingerprints() (map[string]string, error) {
	rows, err := db.conn.Query(`SELECT path, fingerprint FROM file_state`)
	if err != nil {
		return nil, fmt.Errorf("index: all fingerprints: %w", err)
	}
	defer rows.Close()
	out := make(map[string]string)
	for rows.Next() {
		var p, fp string
		if err := rows.Scan(&p, &fp); err != nil {
			return nil, err
		}
		out[p] = fp
	}
	return out, rows.Err()
}
