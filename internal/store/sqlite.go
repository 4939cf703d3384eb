package store

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/raysh454/a11yscan/internal/logging"
	"github.com/raysh454/a11yscan/internal/model"
	_ "modernc.org/sqlite" // SQLite driver
)

//go:embed schema.sql
var schemaFS embed.FS

// MemoryDSN opens a private in-memory database.
const MemoryDSN = ":memory:"

// SQLiteStore persists runs in a single SQLite file.
type SQLiteStore struct {
	db     *sql.DB
	logger logging.Logger
}

// NewSQLiteStore opens (creating if needed) the database at path.
func NewSQLiteStore(path string, logger logging.Logger) (*SQLiteStore, error) {
	if logger == nil {
		return nil, errors.New("store: nil logger provided")
	}
	if path != MemoryDSN {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if path == MemoryDSN {
		// Every connection to :memory: is a separate database.
		db.SetMaxOpenConns(1)
	}

	if err := applySchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	l := logger.With(logging.Field{Key: "component", Value: "sqlite-store"})
	l.Info("SQLiteStore initialized", logging.Field{Key: "path", Value: path})
	return &SQLiteStore{db: db, logger: l}, nil
}

// applySchema sets pragmas and creates tables.
func applySchema(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",        // Write-Ahead Logging for better concurrency
		"PRAGMA synchronous=NORMAL",      // Balance between safety and performance
		"PRAGMA foreign_keys=ON",         // Enable foreign key constraints
		"PRAGMA busy_timeout=5000",       // Wait up to 5 seconds on locked database
		"PRAGMA cache_size=-64000",       // 64MB cache (negative means KB)
		"PRAGMA temp_store=MEMORY",       // Store temp tables in memory
		"PRAGMA mmap_size=268435456",     // 256MB memory-mapped I/O
		"PRAGMA auto_vacuum=INCREMENTAL", // Incremental auto-vacuum
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to set pragma %q: %w", pragma, err)
		}
	}

	schemaSQL, err := schemaFS.ReadFile("schema.sql")
	if err != nil {
		return fmt.Errorf("failed to read schema.sql: %w", err)
	}
	if _, err := db.Exec(string(schemaSQL)); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}
	return nil
}

func (s *SQLiteStore) SaveRun(ctx context.Context, run *model.ScanRun) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	req := run.Request
	errKind, errMsg := runErrorCols(run.Error)
	_, err = tx.ExecContext(ctx, `
		INSERT INTO scan_runs (id, url, wcag_level, max_depth, max_pages, include_subdomains, status,
			created_at, started_at, completed_at, pages_discovered, compliance_score, error_kind, error_message)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			started_at = excluded.started_at,
			completed_at = excluded.completed_at,
			pages_discovered = excluded.pages_discovered,
			compliance_score = excluded.compliance_score,
			error_kind = excluded.error_kind,
			error_message = excluded.error_message`,
		run.ID, req.URL, string(req.WCAGLevel), req.MaxDepth, req.MaxPages, boolInt(req.IncludeSubdomains),
		string(run.Status), run.CreatedAt.UnixNano(), nullTime(run.StartedAt), nullTime(run.CompletedAt),
		run.PagesDiscovered, nullFloat(run.ComplianceScore), errKind, errMsg)
	if err != nil {
		return fmt.Errorf("upsert run: %w", err)
	}

	if _, err = tx.ExecContext(ctx, `DELETE FROM findings WHERE run_id = ?`, run.ID); err != nil {
		return fmt.Errorf("clear findings: %w", err)
	}
	if _, err = tx.ExecContext(ctx, `DELETE FROM page_results WHERE run_id = ?`, run.ID); err != nil {
		return fmt.Errorf("clear pages: %w", err)
	}

	pageStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO page_results (run_id, seq, url, depth, status_code, fetched_at, error_kind, error_message, rule_errors)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare page insert: %w", err)
	}
	defer pageStmt.Close()

	findingStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO findings (id, run_id, page_seq, ordinal, page_url, rule_id, severity, wcag_criterion,
			description, element_selector, snippet, auto_fixable, suggested_fix, fix_value, status, fixed_at, applied_patch)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare finding insert: %w", err)
	}
	defer findingStmt.Close()

	for _, p := range run.Pages {
		var ruleErrs sql.NullString
		if len(p.RuleErrors) > 0 {
			b, mErr := json.Marshal(p.RuleErrors)
			if mErr != nil {
				return fmt.Errorf("marshal rule errors: %w", mErr)
			}
			ruleErrs = sql.NullString{String: string(b), Valid: true}
		}
		pk, pm := runErrorCols(p.Error)
		if _, err = pageStmt.ExecContext(ctx, run.ID, p.Seq, p.URL, p.Depth, p.StatusCode,
			p.FetchedAt.UnixNano(), pk, pm, ruleErrs); err != nil {
			return fmt.Errorf("insert page %s: %w", p.URL, err)
		}

		for i, f := range p.Findings {
			if _, err = findingStmt.ExecContext(ctx, f.ID, run.ID, p.Seq, i, f.PageURL, f.RuleID,
				string(f.Severity), f.WCAGCriterion, f.Description, f.ElementSelector, f.Snippet,
				boolInt(f.AutoFixable), f.SuggestedFix, f.FixValue, string(f.Status),
				nullTime(f.FixedAt), f.AppliedPatch); err != nil {
				return fmt.Errorf("insert finding %s: %w", f.ID, err)
			}
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

const runColumns = `id, url, wcag_level, max_depth, max_pages, include_subdomains, status,
	created_at, started_at, completed_at, pages_discovered, compliance_score, error_kind, error_message`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*model.ScanRun, error) {
	var (
		run                model.ScanRun
		level, status      string
		subdomains         int
		created            int64
		started, completed sql.NullInt64
		score              sql.NullFloat64
		errKind, errMsg    sql.NullString
	)
	if err := row.Scan(&run.ID, &run.Request.URL, &level, &run.Request.MaxDepth, &run.Request.MaxPages,
		&subdomains, &status, &created, &started, &completed, &run.PagesDiscovered, &score,
		&errKind, &errMsg); err != nil {
		return nil, err
	}
	run.Request.WCAGLevel = model.WCAGLevel(level)
	run.Request.IncludeSubdomains = subdomains != 0
	run.Status = model.ScanStatus(status)
	run.CreatedAt = time.Unix(0, created).UTC()
	run.StartedAt = timePtr(started)
	run.CompletedAt = timePtr(completed)
	if score.Valid {
		v := score.Float64
		run.ComplianceScore = &v
	}
	run.Error = runError(errKind, errMsg)
	return &run, nil
}

func (s *SQLiteStore) GetRun(ctx context.Context, id string) (*model.ScanRun, error) {
	run, err := scanRun(s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM scan_runs WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get run %s: %w", id, err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, url, depth, status_code, fetched_at, error_kind, error_message, rule_errors
		FROM page_results WHERE run_id = ? ORDER BY seq`, id)
	if err != nil {
		return nil, fmt.Errorf("query pages: %w", err)
	}
	defer rows.Close()

	bySeq := map[int]int{}
	for rows.Next() {
		var (
			p               model.PageResult
			fetched         int64
			errKind, errMsg sql.NullString
			ruleErrs        sql.NullString
		)
		if err := rows.Scan(&p.Seq, &p.URL, &p.Depth, &p.StatusCode, &fetched, &errKind, &errMsg, &ruleErrs); err != nil {
			return nil, fmt.Errorf("scan page: %w", err)
		}
		p.FetchedAt = time.Unix(0, fetched).UTC()
		p.Error = runError(errKind, errMsg)
		if ruleErrs.Valid && ruleErrs.String != "" {
			if err := json.Unmarshal([]byte(ruleErrs.String), &p.RuleErrors); err != nil {
				return nil, fmt.Errorf("decode rule errors: %w", err)
			}
		}
		bySeq[p.Seq] = len(run.Pages)
		run.Pages = append(run.Pages, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pages: %w", err)
	}
	rows.Close()

	findings, seqs, err := s.queryFindings(ctx, id, FindingFilter{})
	if err != nil {
		return nil, err
	}
	for i, f := range findings {
		if pi, ok := bySeq[seqs[i]]; ok {
			run.Pages[pi].Findings = append(run.Pages[pi].Findings, f)
		}
	}
	return run, nil
}

func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]*model.ScanRun, error) {
	q := `SELECT ` + runColumns + ` FROM scan_runs ORDER BY created_at DESC, id`
	var args []any
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var out []*model.ScanRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		out = append(out, run)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) ListFindings(ctx context.Context, runID string, filter FindingFilter) ([]model.Finding, error) {
	var exists int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM scan_runs WHERE id = ?`, runID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("check run %s: %w", runID, err)
	}
	findings, _, err := s.queryFindings(ctx, runID, filter)
	return findings, err
}

// queryFindings returns matching findings and the page seq of each.
func (s *SQLiteStore) queryFindings(ctx context.Context, runID string, filter FindingFilter) ([]model.Finding, []int, error) {
	where := []string{"run_id = ?"}
	args := []any{runID}
	if filter.Severity != "" {
		where = append(where, "severity = ?")
		args = append(args, string(filter.Severity))
	}
	if filter.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(filter.Status))
	}
	if filter.RuleID != "" {
		where = append(where, "rule_id = ?")
		args = append(args, filter.RuleID)
	}
	if filter.PageURL != "" {
		where = append(where, "page_url = ?")
		args = append(args, filter.PageURL)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, run_id, page_seq, page_url, rule_id, severity, wcag_criterion, description,
			element_selector, snippet, auto_fixable, suggested_fix, fix_value, status, fixed_at, applied_patch
		FROM findings WHERE `+strings.Join(where, " AND ")+` ORDER BY page_seq, ordinal`, args...)
	if err != nil {
		return nil, nil, fmt.Errorf("query findings: %w", err)
	}
	defer rows.Close()

	var (
		out  []model.Finding
		seqs []int
	)
	for rows.Next() {
		var (
			f                                   model.Finding
			seq, fixable                        int
			severity, status                    string
			selector, snippet, fix, value, diff sql.NullString
			fixedAt                             sql.NullInt64
		)
		if err := rows.Scan(&f.ID, &f.RunID, &seq, &f.PageURL, &f.RuleID, &severity, &f.WCAGCriterion,
			&f.Description, &selector, &snippet, &fixable, &fix, &value, &status, &fixedAt, &diff); err != nil {
			return nil, nil, fmt.Errorf("scan finding: %w", err)
		}
		f.Severity = model.Severity(severity)
		f.Status = model.FindingStatus(status)
		f.ElementSelector = selector.String
		f.Snippet = snippet.String
		f.AutoFixable = fixable != 0
		f.SuggestedFix = fix.String
		f.FixValue = value.String
		f.FixedAt = timePtr(fixedAt)
		f.AppliedPatch = diff.String
		out = append(out, f)
		seqs = append(seqs, seq)
	}
	return out, seqs, rows.Err()
}

func (s *SQLiteStore) UpdateFinding(ctx context.Context, f model.Finding) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE findings SET status = ?, fixed_at = ?, applied_patch = ?
		WHERE id = ? AND run_id = ?`,
		string(f.Status), nullTime(f.FixedAt), f.AppliedPatch, f.ID, f.RunID)
	if err != nil {
		return fmt.Errorf("update finding %s: %w", f.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update finding %s: %w", f.ID, err)
	}
	if n == 0 {
		return ErrFindingNotFound
	}
	return nil
}

func (s *SQLiteStore) PurgeBefore(ctx context.Context, t time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM scan_runs WHERE created_at < ? AND status IN (?, ?)`,
		t.UnixNano(), string(model.StatusCompleted), string(model.StatusFailed))
	if err != nil {
		return 0, fmt.Errorf("purge runs: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("purge runs: %w", err)
	}
	if n > 0 {
		s.logger.Info("purged runs", logging.Field{Key: "count", Value: n})
	}
	return int(n), nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullTime(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UnixNano(), Valid: true}
}

func timePtr(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := time.Unix(0, v.Int64).UTC()
	return &t
}

func nullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}

func runErrorCols(e *model.RunError) (sql.NullString, sql.NullString) {
	if e == nil {
		return sql.NullString{}, sql.NullString{}
	}
	return sql.NullString{String: string(e.Kind), Valid: true}, sql.NullString{String: e.Message, Valid: true}
}

func runError(kind, msg sql.NullString) *model.RunError {
	if !kind.Valid {
		return nil
	}
	return &model.RunError{Kind: model.ErrorKind(kind.String), Message: msg.String}
}
