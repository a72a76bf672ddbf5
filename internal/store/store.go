// Package store is the durable home of task records and batch audit
// rows, backed by SQLite. It is the source of truth the similarity
// index is rebuilt from; on any disagreement the store wins.
package store

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"github.com/taskmint/taskmint/internal/types"
)

// timeLayout is RFC 3339 with a fixed nine-digit fraction so stored
// timestamps sort lexicographically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// dateLayout is the calendar-date form used for due dates.
const dateLayout = "2006-01-02"

// Store implements task persistence on SQLite.
type Store struct {
	db   *sql.DB
	path string

	// entropy feeds ULID generation; monotonic so that records inserted
	// within the same millisecond still get strictly ascending ids.
	mu      sync.Mutex
	entropy io.Reader
}

// New opens (creating if necessary) the task database at path.
func New(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	// WAL mode for concurrent readers; busy_timeout papers over the
	// brief write locks WAL still takes.
	db, err := sql.Open("sqlite3", "file:"+path+"?_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)&_pragma=busy_timeout(10000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &Store{
		db:      db,
		path:    path,
		entropy: ulid.Monotonic(rand.Reader, 0),
	}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// newID mints the next task id. ULIDs are lexicographically ordered by
// creation time, which is what makes ascending-id tie-breaks in the
// similarity index equivalent to oldest-first.
func (s *Store) newID(now time.Time) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(now), s.entropy).String()
}

// Insert persists a new task record. An empty ID is assigned here, and
// zero timestamps are set to now; the record is validated first.
func (s *Store) Insert(ctx context.Context, record *types.TaskRecord) error {
	now := time.Now().UTC()
	if record.ID == "" {
		record.ID = s.newID(now)
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	if record.UpdatedAt.IsZero() {
		record.UpdatedAt = now
	}

	if err := record.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tasks (
			id, title, priority, due_date, estimated_hours,
			source, notes, source_text, embedding,
			status, needs_review, review_reason, merged_into,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		record.ID, record.Title, string(record.Priority),
		nullableDate(record.DueDate), nullableFloat(record.EstimatedHours),
		record.Source, record.Notes, record.SourceText,
		nullableVector(record.Embedding),
		string(record.Status), boolToInt(record.NeedsReview),
		record.ReviewReason, nullableString(record.MergedInto),
		record.CreatedAt.Format(timeLayout), record.UpdatedAt.Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("failed to insert task: %w", err)
	}
	return nil
}

// taskColumns is the column list every task query selects, in the
// order scanTask expects.
const taskColumns = `id, title, priority, due_date, estimated_hours,
       source, notes, source_text, embedding,
       status, needs_review, review_reason, merged_into,
       created_at, updated_at`

// Get retrieves a task by ID. Returns (nil, nil) when no such task
// exists.
func (s *Store) Get(ctx context.Context, id string) (*types.TaskRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+taskColumns+`
		FROM tasks
		WHERE id = ?
	`, id)

	record, err := scanTask(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get task: %w", err)
	}
	return record, nil
}

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanTask(row scanner) (*types.TaskRecord, error) {
	var record types.TaskRecord
	var priority, status string
	var dueDate, mergedInto sql.NullString
	var estimatedHours sql.NullFloat64
	var embedding []byte
	var needsReview int
	var createdAt, updatedAt string

	err := row.Scan(
		&record.ID, &record.Title, &priority, &dueDate, &estimatedHours,
		&record.Source, &record.Notes, &record.SourceText, &embedding,
		&status, &needsReview, &record.ReviewReason, &mergedInto,
		&createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	record.Priority = types.Priority(priority)
	record.Status = types.Status(status)
	record.NeedsReview = needsReview != 0

	if dueDate.Valid && dueDate.String != "" {
		due, err := time.Parse(dateLayout, dueDate.String)
		if err != nil {
			return nil, fmt.Errorf("failed to parse due_date %q: %w", dueDate.String, err)
		}
		record.DueDate = &due
	}
	if estimatedHours.Valid {
		hours := estimatedHours.Float64
		record.EstimatedHours = &hours
	}
	if mergedInto.Valid {
		record.MergedInto = mergedInto.String
	}
	if len(embedding) > 0 {
		vec, err := decodeVector(embedding)
		if err != nil {
			return nil, fmt.Errorf("failed to decode embedding for %s: %w", record.ID, err)
		}
		record.Embedding = vec
	}

	if record.CreatedAt, err = time.Parse(timeLayout, createdAt); err != nil {
		return nil, fmt.Errorf("failed to parse created_at %q: %w", createdAt, err)
	}
	if record.UpdatedAt, err = time.Parse(timeLayout, updatedAt); err != nil {
		return nil, fmt.Errorf("failed to parse updated_at %q: %w", updatedAt, err)
	}

	return &record, nil
}

// UpdateFields is the set of columns Update may change. Nil pointers
// leave the column untouched; updated_at is always refreshed.
type UpdateFields struct {
	Title          *string
	Priority       *types.Priority
	DueDate        *time.Time
	EstimatedHours *float64
	Embedding      []float32
	Status         *types.Status
	NeedsReview    *bool
	ReviewReason   *string
	MergedInto     *string
}

// Update applies a partial update to a task.
func (s *Store) Update(ctx context.Context, id string, fields UpdateFields) error {
	setClauses := []string{"updated_at = ?"}
	args := []any{time.Now().UTC().Format(timeLayout)}

	if fields.Title != nil {
		if strings.TrimSpace(*fields.Title) == "" {
			return fmt.Errorf("title cannot be empty")
		}
		setClauses = append(setClauses, "title = ?")
		args = append(args, *fields.Title)
	}
	if fields.Priority != nil {
		if !fields.Priority.IsValid() {
			return fmt.Errorf("invalid priority: %s", *fields.Priority)
		}
		setClauses = append(setClauses, "priority = ?")
		args = append(args, string(*fields.Priority))
	}
	if fields.DueDate != nil {
		setClauses = append(setClauses, "due_date = ?")
		args = append(args, fields.DueDate.Format(dateLayout))
	}
	if fields.EstimatedHours != nil {
		if *fields.EstimatedHours < 0 {
			return fmt.Errorf("estimated_hours cannot be negative")
		}
		setClauses = append(setClauses, "estimated_hours = ?")
		args = append(args, *fields.EstimatedHours)
	}
	if fields.Embedding != nil {
		setClauses = append(setClauses, "embedding = ?")
		args = append(args, encodeVector(fields.Embedding))
	}
	if fields.Status != nil {
		if !fields.Status.IsValid() {
			return fmt.Errorf("invalid status: %s", *fields.Status)
		}
		setClauses = append(setClauses, "status = ?")
		args = append(args, string(*fields.Status))
	}
	if fields.NeedsReview != nil {
		setClauses = append(setClauses, "needs_review = ?")
		args = append(args, boolToInt(*fields.NeedsReview))
	}
	if fields.ReviewReason != nil {
		setClauses = append(setClauses, "review_reason = ?")
		args = append(args, *fields.ReviewReason)
	}
	if fields.MergedInto != nil {
		setClauses = append(setClauses, "merged_into = ?")
		args = append(args, nullableString(*fields.MergedInto))
	}

	args = append(args, id)
	query := fmt.Sprintf("UPDATE tasks SET %s WHERE id = ?", strings.Join(setClauses, ", "))

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update task: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("task %s not found", id)
	}
	return nil
}

// ListActive returns every ACTIVE task in ascending id order (ULIDs,
// so oldest first). Embeddings are included so the similarity index
// can be rebuilt from the result.
func (s *Store) ListActive(ctx context.Context) ([]*types.TaskRecord, error) {
	return s.list(ctx, `
		SELECT `+taskColumns+`
		FROM tasks
		WHERE status = 'ACTIVE'
		ORDER BY id ASC
	`)
}

// ListAll returns every task regardless of status, in ascending id
// order.
func (s *Store) ListAll(ctx context.Context) ([]*types.TaskRecord, error) {
	return s.list(ctx, `
		SELECT `+taskColumns+`
		FROM tasks
		ORDER BY id ASC
	`)
}

// ListRecent returns the most recently created tasks across all
// statuses, newest first.
func (s *Store) ListRecent(ctx context.Context, limit int) ([]*types.TaskRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	return s.list(ctx, fmt.Sprintf(`
		SELECT `+taskColumns+`
		FROM tasks
		ORDER BY id DESC
		LIMIT %d
	`, limit))
}

// ListNeedsReview returns ACTIVE tasks flagged for human review,
// oldest first.
func (s *Store) ListNeedsReview(ctx context.Context) ([]*types.TaskRecord, error) {
	return s.list(ctx, `
		SELECT `+taskColumns+`
		FROM tasks
		WHERE status = 'ACTIVE' AND needs_review = 1
		ORDER BY id ASC
	`)
}

func (s *Store) list(ctx context.Context, query string, args ...any) ([]*types.TaskRecord, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	defer rows.Close()

	var records []*types.TaskRecord
	for rows.Next() {
		record, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

// Stats returns aggregate corpus counts.
func (s *Store) Stats(ctx context.Context) (*types.Statistics, error) {
	var stats types.Statistics
	err := s.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COUNT(CASE WHEN status = 'ACTIVE' THEN 1 END),
			COUNT(CASE WHEN status = 'MERGED' THEN 1 END),
			COUNT(CASE WHEN status = 'ARCHIVED' THEN 1 END),
			COUNT(CASE WHEN status = 'ACTIVE' AND needs_review = 1 THEN 1 END),
			COUNT(CASE WHEN status = 'ACTIVE' AND embedding IS NULL THEN 1 END)
		FROM tasks
	`).Scan(
		&stats.TotalTasks, &stats.ActiveTasks, &stats.MergedTasks,
		&stats.ArchivedTasks, &stats.NeedsReview, &stats.Unembedded,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to compute stats: %w", err)
	}
	return &stats, nil
}

// Embeddings are stored as little-endian float32 blobs, 4 bytes per
// component. The dimension is implicit in the blob length.

func encodeVector(vec []float32) []byte {
	if vec == nil {
		return nil
	}
	buf := make([]byte, 4*len(vec))
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

func decodeVector(blob []byte) ([]float32, error) {
	if len(blob)%4 != 0 {
		return nil, fmt.Errorf("embedding blob length %d is not a multiple of 4", len(blob))
	}
	vec := make([]float32, len(blob)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(blob[i*4:]))
	}
	return vec, nil
}

func nullableDate(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.Format(dateLayout)
}

func nullableFloat(f *float64) any {
	if f == nil {
		return nil
	}
	return *f
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullableVector(vec []float32) any {
	if vec == nil {
		return nil
	}
	return encodeVector(vec)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
