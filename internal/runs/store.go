package runs

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/scrolland/cuestionario-videos/internal/config"
	"github.com/scrolland/cuestionario-videos/internal/generation"
)

//go:embed schema.sql
var schemaSQL string

// schemaVersion is the current schema version. Bump this when the schema
// changes; existing databases must then be deleted and recreated.
const schemaVersion = 1

// ErrSchemaMismatch indicates the database schema version doesn't match
// the expected version.
var ErrSchemaMismatch = errors.New("schema version mismatch")

// Status is the lifecycle of one generation run.
type Status string

const (
	StatusSubmitted Status = "submitted"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusTimedOut  Status = "timed_out"
)

// Run is the bookkeeping row for one dual-tier generation.
type Run struct {
	ID            string
	ParticipantID string
	Status        Status
	PromptHigh    string
	PromptLow     string
	HighTaskID    string
	LowTaskID     string
	HighPath      string
	LowPath       string
	HighSizeMB    float64
	LowSizeMB     float64
	PollErrors    int
	ErrorMessage  string
	ElapsedSecs   float64
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Store manages generation-run persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the runs database under the data dir.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}

	dbPath := filepath.Join(cfg.Paths.DataDir, "runs.db")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) initSchema(ctx context.Context) error {
	var tableExists int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	).Scan(&tableExists)
	if err != nil {
		return fmt.Errorf("check schema_version table: %w", err)
	}

	if tableExists == 0 {
		if _, err := s.db.ExecContext(ctx, schemaSQL); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
		if _, err := s.db.ExecContext(ctx,
			"INSERT INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
			return fmt.Errorf("record schema version: %w", err)
		}
		return nil
	}

	var version int
	if err := s.db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if version != schemaVersion {
		return fmt.Errorf("%w: database has version %d, expected %d (delete %s to recreate)",
			ErrSchemaMismatch, version, schemaVersion, s.path)
	}
	return nil
}

// Create inserts a new submitted run and returns it.
func (s *Store) Create(ctx context.Context, participantID, promptHigh, promptLow string) (*Run, error) {
	id := uuid.NewString()
	timestamp := time.Now().UTC().Format(time.RFC3339Nano)

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO generation_runs (
            id, participant_id, status, prompt_high, prompt_low, created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id,
		nullableString(participantID),
		StatusSubmitted,
		promptHigh,
		promptLow,
		timestamp,
		timestamp,
	)
	if err != nil {
		return nil, fmt.Errorf("insert run: %w", err)
	}
	return s.GetByID(ctx, id)
}

// MarkCompleted records both tier outputs against a run.
func (s *Store) MarkCompleted(ctx context.Context, id string, result *generation.Result) error {
	timestamp := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := s.db.ExecContext(ctx,
		`UPDATE generation_runs SET
            status = ?, high_task_id = ?, low_task_id = ?,
            high_path = ?, low_path = ?, high_size_mb = ?, low_size_mb = ?,
            poll_errors = ?, elapsed_secs = ?, updated_at = ?
        WHERE id = ?`,
		StatusCompleted,
		nullableString(result.High.TaskID),
		nullableString(result.Low.TaskID),
		nullableString(result.High.Path),
		nullableString(result.Low.Path),
		result.High.SizeMB,
		result.Low.SizeMB,
		result.PollErrors,
		result.Elapsed.Seconds(),
		timestamp,
		id,
	)
	if err != nil {
		return fmt.Errorf("mark run completed: %w", err)
	}
	return nil
}

// MarkFailed records a terminal failure with its reason.
func (s *Store) MarkFailed(ctx context.Context, id string, status Status, message string) error {
	if status != StatusFailed && status != StatusTimedOut {
		return fmt.Errorf("invalid terminal status %q", status)
	}
	timestamp := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := s.db.ExecContext(ctx,
		"UPDATE generation_runs SET status = ?, error_message = ?, updated_at = ? WHERE id = ?",
		status, nullableString(message), timestamp, id)
	if err != nil {
		return fmt.Errorf("mark run failed: %w", err)
	}
	return nil
}

const runColumns = "id, participant_id, status, prompt_high, prompt_low, high_task_id, low_task_id, high_path, low_path, high_size_mb, low_size_mb, poll_errors, error_message, elapsed_secs, created_at, updated_at"

// GetByID fetches one run.
func (s *Store) GetByID(ctx context.Context, id string) (*Run, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+runColumns+" FROM generation_runs WHERE id = ?", id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run %s not found", id)
	}
	return run, err
}

// List returns the most recent runs, newest first.
func (s *Store) List(ctx context.Context, limit int) ([]*Run, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+runColumns+" FROM generation_runs ORDER BY created_at DESC LIMIT ?", limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

func scanRun(scanner interface{ Scan(dest ...any) error }) (*Run, error) {
	var (
		id            string
		participantID sql.NullString
		statusStr     string
		promptHigh    string
		promptLow     string
		highTaskID    sql.NullString
		lowTaskID     sql.NullString
		highPath      sql.NullString
		lowPath       sql.NullString
		highSizeMB    sql.NullFloat64
		lowSizeMB     sql.NullFloat64
		pollErrors    sql.NullInt64
		errorMessage  sql.NullString
		elapsedSecs   sql.NullFloat64
		createdRaw    string
		updatedRaw    string
	)

	if err := scanner.Scan(
		&id,
		&participantID,
		&statusStr,
		&promptHigh,
		&promptLow,
		&highTaskID,
		&lowTaskID,
		&highPath,
		&lowPath,
		&highSizeMB,
		&lowSizeMB,
		&pollErrors,
		&errorMessage,
		&elapsedSecs,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}

	return &Run{
		ID:            id,
		ParticipantID: participantID.String,
		Status:        Status(statusStr),
		PromptHigh:    promptHigh,
		PromptLow:     promptLow,
		HighTaskID:    highTaskID.String,
		LowTaskID:     lowTaskID.String,
		HighPath:      highPath.String,
		LowPath:       lowPath.String,
		HighSizeMB:    highSizeMB.Float64,
		LowSizeMB:     lowSizeMB.Float64,
		PollErrors:    int(pollErrors.Int64),
		ErrorMessage:  errorMessage.String,
		ElapsedSecs:   elapsedSecs.Float64,
		CreatedAt:     parseTimeString(createdRaw),
		UpdatedAt:     parseTimeString(updatedRaw),
	}, nil
}

func nullableString(value string) any {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return value
}

func parseTimeString(value string) time.Time {
	if value == "" {
		return time.Time{}
	}
	if parsed, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return parsed
	}
	if parsed, err := time.Parse(time.RFC3339, value); err == nil {
		return parsed
	}
	return time.Time{}
}
