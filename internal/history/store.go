// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/scanforge/scanforge/internal/model"
)

// Store is the History Store contract from §4.H: atomic scan+finding
// persistence, plus list/get/compare/prune/vacuum/verify queries. Writes
// are single-writer (serialized by the underlying connection pool's
// transaction semantics); reads never block writers or each other.
type Store struct {
	db *sqlx.DB
}

// Open connects to dsn and runs pending migrations. It sets
// QueryExecModeDescribeExec on the underlying pgx connection: the cached
// default (QueryExecModeCacheStatement) holds prepared statement plans that
// go stale across a schema migration applied while scanforge is already
// running, which later queries would otherwise see as a cryptic SQLSTATE
// 0A000 failure.
func Open(ctx context.Context, dsn string) (*Store, error) {
	connConfig, err := pgx.ParseConfig(dsn)
	if err != nil {
		return nil, model.NewError(model.ErrStorageError, "", fmt.Errorf("history: parse dsn: %w", err))
	}
	connConfig.DefaultQueryExecMode = pgx.QueryExecModeDescribeExec

	sqlDB := stdlib.OpenDB(*connConfig)
	if err := sqlDB.PingContext(ctx); err != nil {
		return nil, model.NewError(model.ErrStorageError, "", fmt.Errorf("history: ping: %w", err))
	}

	if err := Migrate(sqlDB); err != nil {
		return nil, model.NewError(model.ErrStorageError, "", err)
	}

	return &Store{db: sqlx.NewDb(sqlDB, "pgx")}, nil
}

// OpenWithDB wraps an already-open *sql.DB (used by tests against
// go-sqlmock, which cannot be reached through Open's DSN parsing path).
func OpenWithDB(db *sql.DB) *Store {
	return &Store{db: sqlx.NewDb(db, "pgx")}
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// scanRow/findingRow are the sqlx-scannable shapes; model.ScanRecord and
// model.FindingRecord use field tags the driver can bind directly, but the
// JSONB and array columns need explicit (un)marshaling so they live here
// instead of on the shared model type.
type scanRow struct {
	ScanID      string    `db:"scan_id"`
	Timestamp   time.Time `db:"timestamp"`
	ProfileName string    `db:"profile_name"`
	Branch      string    `db:"branch"`
	Commit      string    `db:"commit"`
	Outcome     string    `db:"outcome"`
	DurationNS  int64     `db:"duration_ns"`
	Summary     []byte    `db:"summary"`
	Digest      string    `db:"digest"`
}

func (r scanRow) toScan() (model.Scan, error) {
	var summary model.Summary
	if len(r.Summary) > 0 {
		if err := json.Unmarshal(r.Summary, &summary); err != nil {
			return model.Scan{}, fmt.Errorf("history: decode summary: %w", err)
		}
	}
	return model.Scan{
		ScanID:      r.ScanID,
		Timestamp:   r.Timestamp,
		ProfileName: r.ProfileName,
		Summary:     summary,
		Duration:    time.Duration(r.DurationNS),
		Outcome:     model.ScanOutcome(r.Outcome),
	}, nil
}

// StoreScan persists scan and findings atomically: either both become
// queryable or neither does, per §4.H's contract. The scan's integrity
// digest is computed and stored alongside it for later Verify calls.
func (s *Store) StoreScan(ctx context.Context, scan model.Scan, findings []model.Finding, branch, commit string) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return model.NewError(model.ErrStorageError, "", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op once Commit succeeds

	summary, err := json.Marshal(scan.Summary)
	if err != nil {
		return model.NewError(model.ErrStorageError, "", err)
	}

	digest := Digest(findings)

	_, err = tx.ExecContext(ctx, `
		INSERT INTO scans (scan_id, timestamp, profile_name, branch, commit, outcome, duration_ns, summary, digest)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (scan_id) DO UPDATE SET
			outcome = EXCLUDED.outcome, duration_ns = EXCLUDED.duration_ns,
			summary = EXCLUDED.summary, digest = EXCLUDED.digest`,
		scan.ScanID, scan.Timestamp, scan.ProfileName, branch, commit,
		string(scan.Outcome), int64(scan.Duration), summary, digest)
	if err != nil {
		return model.NewError(model.ErrStorageError, "", fmt.Errorf("history: insert scan: %w", err))
	}

	for _, f := range findings {
		payload, err := json.Marshal(f)
		if err != nil {
			return model.NewError(model.ErrStorageError, "", err)
		}
		toolNames := make([]string, 0, len(f.DetectedBy))
		for _, t := range f.DetectedBy {
			toolNames = append(toolNames, t.Name)
		}
		if len(toolNames) == 0 {
			toolNames = []string{f.Tool.Name}
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO findings (scan_id, id, rule_id, severity, priority, path, tool_names, payload)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			ON CONFLICT (scan_id, id) DO UPDATE SET payload = EXCLUDED.payload`,
			scan.ScanID, string(f.ID), f.RuleID, int(f.Severity), f.Priority.Score, f.Location.Path,
			pq.Array(toolNames), payload)
		if err != nil {
			return model.NewError(model.ErrStorageError, "", fmt.Errorf("history: insert finding: %w", err))
		}
	}

	if err := tx.Commit(); err != nil {
		return model.NewError(model.ErrStorageError, "", fmt.Errorf("history: commit: %w", err))
	}
	return nil
}

// ListScans returns scans newest first, optionally restricted to branch.
func (s *Store) ListScans(ctx context.Context, limit int, branch string) ([]model.Scan, error) {
	var rows []scanRow
	var err error
	if branch == "" {
		err = s.db.SelectContext(ctx, &rows, `
			SELECT scan_id, timestamp, profile_name, branch, commit, outcome, duration_ns, summary, digest
			FROM scans ORDER BY timestamp DESC LIMIT $1`, limit)
	} else {
		err = s.db.SelectContext(ctx, &rows, `
			SELECT scan_id, timestamp, profile_name, branch, commit, outcome, duration_ns, summary, digest
			FROM scans WHERE branch = $1 ORDER BY timestamp DESC LIMIT $2`, branch, limit)
	}
	if err != nil {
		return nil, model.NewError(model.ErrStorageError, "", err)
	}

	scans := make([]model.Scan, 0, len(rows))
	for _, r := range rows {
		scan, err := r.toScan()
		if err != nil {
			return nil, model.NewError(model.ErrStorageError, "", err)
		}
		scans = append(scans, scan)
	}
	return scans, nil
}

// GetScan returns the full scan record plus every persisted finding.
func (s *Store) GetScan(ctx context.Context, scanID string) (model.Scan, []model.Finding, error) {
	var row scanRow
	if err := s.db.GetContext(ctx, &row, `
		SELECT scan_id, timestamp, profile_name, branch, commit, outcome, duration_ns, summary, digest
		FROM scans WHERE scan_id = $1`, scanID); err != nil {
		return model.Scan{}, nil, model.NewError(model.ErrStorageError, "", fmt.Errorf("history: get scan %s: %w", scanID, err))
	}

	scan, err := row.toScan()
	if err != nil {
		return model.Scan{}, nil, model.NewError(model.ErrStorageError, "", err)
	}

	findings, err := s.findingsForScan(ctx, scanID)
	if err != nil {
		return model.Scan{}, nil, err
	}
	return scan, findings, nil
}

func (s *Store) findingsForScan(ctx context.Context, scanID string) ([]model.Finding, error) {
	var payloads [][]byte
	if err := s.db.SelectContext(ctx, &payloads, `SELECT payload FROM findings WHERE scan_id = $1`, scanID); err != nil {
		return nil, model.NewError(model.ErrStorageError, "", fmt.Errorf("history: findings for scan %s: %w", scanID, err))
	}
	findings := make([]model.Finding, 0, len(payloads))
	for _, p := range payloads {
		var f model.Finding
		if err := json.Unmarshal(p, &f); err != nil {
			return nil, model.NewError(model.ErrStorageError, "", err)
		}
		findings = append(findings, f)
	}
	return findings, nil
}

// Compare returns the two finding sets for scans a and b, for the Diff
// Engine to classify.
func (s *Store) Compare(ctx context.Context, scanIDA, scanIDB string) ([]model.Finding, []model.Finding, error) {
	a, err := s.findingsForScan(ctx, scanIDA)
	if err != nil {
		return nil, nil, err
	}
	b, err := s.findingsForScan(ctx, scanIDB)
	if err != nil {
		return nil, nil, err
	}
	return a, b, nil
}

// Prune deletes scans beyond keepLastN (ordered newest first) or older
// than olderThanDays, whichever is supplied (zero value skips that
// criterion). Deletion cascades to findings via the foreign key.
func (s *Store) Prune(ctx context.Context, keepLastN int, olderThanDays int) (int64, error) {
	var total int64
	if keepLastN > 0 {
		res, err := s.db.ExecContext(ctx, `
			DELETE FROM scans WHERE scan_id IN (
				SELECT scan_id FROM scans ORDER BY timestamp DESC OFFSET $1
			)`, keepLastN)
		if err != nil {
			return total, model.NewError(model.ErrStorageError, "", err)
		}
		n, _ := res.RowsAffected()
		total += n
	}
	if olderThanDays > 0 {
		res, err := s.db.ExecContext(ctx, `
			DELETE FROM scans WHERE timestamp < now() - ($1 || ' days')::interval`, olderThanDays)
		if err != nil {
			return total, model.NewError(model.ErrStorageError, "", err)
		}
		n, _ := res.RowsAffected()
		total += n
	}
	return total, nil
}

// Vacuum reclaims space. VACUUM cannot run inside a transaction block, so
// this bypasses sqlx's transaction helpers and issues it directly.
func (s *Store) Vacuum(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "VACUUM"); err != nil {
		return model.NewError(model.ErrStorageError, "", fmt.Errorf("history: vacuum: %w", err))
	}
	return nil
}

// Verify recomputes the integrity digest for scanID's persisted findings
// and compares it against the digest stored at write time, per §4.H.
func (s *Store) Verify(ctx context.Context, scanID string) (bool, error) {
	var stored string
	if err := s.db.GetContext(ctx, &stored, `SELECT digest FROM scans WHERE scan_id = $1`, scanID); err != nil {
		return false, model.NewError(model.ErrStorageError, "", err)
	}
	findings, err := s.findingsForScan(ctx, scanID)
	if err != nil {
		return false, err
	}
	return Digest(findings) == stored, nil
}
