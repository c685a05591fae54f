// Package sqlite provides a SQLite-backed implementation of the task store
// port, for deployments that want task records to survive a restart.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3" // register the driver

	"github.com/altolabs/clefshift/internal/core/domain"
	"github.com/altolabs/clefshift/internal/core/ports"
)

// Store implements ports.TaskStore on a SQLite database. Serialization of
// concurrent Update calls rides on a transaction per mutation.
type Store struct {
	db *sql.DB
}

var _ ports.TaskStore = (*Store)(nil)

// NewStore opens (or creates) the database and runs the schema migration.
func NewStore(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("sqlite: ping: %w", err)
	}
	// A single writer avoids SQLITE_BUSY on concurrent task updates.
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("sqlite: migrate: %w", err)
	}
	return s, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS tasks (
			id              TEXT PRIMARY KEY,
			state           TEXT NOT NULL,
			progress        INTEGER NOT NULL,
			message         TEXT NOT NULL,
			error           TEXT NOT NULL DEFAULT '',
			input_path      TEXT NOT NULL,
			filename        TEXT NOT NULL,
			options_json    TEXT NOT NULL,
			outputs_json    TEXT NOT NULL,
			notes_count     INTEGER NOT NULL DEFAULT 0,
			processing_time REAL NOT NULL DEFAULT 0,
			retry_of        TEXT NOT NULL DEFAULT '',
			created_at      TIMESTAMP NOT NULL,
			updated_at      TIMESTAMP NOT NULL
		)
	`)
	return err
}

func (s *Store) Create(ctx context.Context, t domain.Task) error {
	options, outputs, err := encodeJSON(t)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO tasks (id, state, progress, message, error, input_path, filename,
			options_json, outputs_json, notes_count, processing_time, retry_of, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, t.ID, string(t.State), t.Progress, t.Message, t.Error, t.InputPath, t.Filename,
		options, outputs, t.NotesCount, t.ProcessingTime, t.RetryOf, t.CreatedAt, t.UpdatedAt)
	if err != nil {
		return fmt.Errorf("sqlite: insert task: %w", err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, id string) (domain.Task, error) {
	row := s.db.QueryRowContext(ctx, selectColumns+" FROM tasks WHERE id = ?", id)
	return scanTask(row)
}

func (s *Store) Update(ctx context.Context, id string, fn func(*domain.Task) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: begin: %w", err)
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx, selectColumns+" FROM tasks WHERE id = ?", id)
	t, err := scanTask(row)
	if err != nil {
		return err
	}
	if err := fn(&t); err != nil {
		return err
	}
	options, outputs, err := encodeJSON(t)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `
		UPDATE tasks SET state = ?, progress = ?, message = ?, error = ?,
			options_json = ?, outputs_json = ?, notes_count = ?, processing_time = ?,
			retry_of = ?, updated_at = ?
		WHERE id = ?
	`, string(t.State), t.Progress, t.Message, t.Error,
		options, outputs, t.NotesCount, t.ProcessingTime, t.RetryOf, t.UpdatedAt, id)
	if err != nil {
		return fmt.Errorf("sqlite: update task: %w", err)
	}
	return tx.Commit()
}

func (s *Store) Delete(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM tasks WHERE id = ?", id); err != nil {
		return fmt.Errorf("sqlite: delete task: %w", err)
	}
	return nil
}

func (s *Store) CountActive(ctx context.Context) (int, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM tasks WHERE state NOT IN ('COMPLETED', 'FAILED', 'CANCELLED')")
	var n int
	if err := row.Scan(&n); err != nil {
		return 0, fmt.Errorf("sqlite: count active: %w", err)
	}
	return n, nil
}

func (s *Store) List(ctx context.Context) ([]domain.Task, error) {
	rows, err := s.db.QueryContext(ctx, selectColumns+" FROM tasks ORDER BY created_at ASC")
	if err != nil {
		return nil, fmt.Errorf("sqlite: list tasks: %w", err)
	}
	defer rows.Close()

	var out []domain.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: list tasks: %w", err)
	}
	return out, nil
}

const selectColumns = `SELECT id, state, progress, message, error, input_path, filename,
	options_json, outputs_json, notes_count, processing_time, retry_of, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (domain.Task, error) {
	var (
		t                    domain.Task
		state                string
		options, outputs     string
		createdAt, updatedAt time.Time
	)
	err := row.Scan(&t.ID, &state, &t.Progress, &t.Message, &t.Error, &t.InputPath, &t.Filename,
		&options, &outputs, &t.NotesCount, &t.ProcessingTime, &t.RetryOf, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return domain.Task{}, domain.ErrUnknownTask
	}
	if err != nil {
		return domain.Task{}, fmt.Errorf("sqlite: scan task: %w", err)
	}
	t.State = domain.TaskState(state)
	t.CreatedAt = createdAt
	t.UpdatedAt = updatedAt
	if err := json.Unmarshal([]byte(options), &t.Options); err != nil {
		return domain.Task{}, fmt.Errorf("sqlite: decode options: %w", err)
	}
	if err := json.Unmarshal([]byte(outputs), &t.OutputFiles); err != nil {
		return domain.Task{}, fmt.Errorf("sqlite: decode outputs: %w", err)
	}
	return t, nil
}

func encodeJSON(t domain.Task) (options, outputs string, err error) {
	ob, err := json.Marshal(t.Options)
	if err != nil {
		return "", "", fmt.Errorf("sqlite: encode options: %w", err)
	}
	if t.OutputFiles == nil {
		t.OutputFiles = map[string]string{}
	}
	fb, err := json.Marshal(t.OutputFiles)
	if err != nil {
		return "", "", fmt.Errorf("sqlite: encode outputs: %w", err)
	}
	return string(ob), string(fb), nil
}
