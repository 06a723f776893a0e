package queue

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"sync"

	"cellarsync/internal/model"

	_ "modernc.org/sqlite" // Pure Go SQLite driver - no CGO required
)

// SQLiteStore implements Store on an embedded SQLite database. This is the
// default backend: the queue must survive process restarts on the device
// that recorded the offline mutations.
type SQLiteStore struct {
	db *sql.DB
	mu sync.Mutex
}

// NewSQLiteStore opens (creating if needed) the queue database at dbPath.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	// WAL keeps reads cheap while the sync engine drains.
	dsn := fmt.Sprintf("%s?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)", dbPath)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite: %w", err)
	}

	// SQLite only supports 1 writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := createTables(db); err != nil {
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	log.Printf("[SQLiteStore] Initialized with database: %s", dbPath)
	return &SQLiteStore{db: db}, nil
}

func createTables(db *sql.DB) error {
	query := `
	CREATE TABLE IF NOT EXISTS offline_jobs (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		job_type TEXT NOT NULL,
		item_id TEXT NOT NULL,
		created_ms INTEGER NOT NULL,
		payload TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_jobs_identity ON offline_jobs(job_type, item_id);
	CREATE TABLE IF NOT EXISTS pending_uploads (
		id TEXT PRIMARY KEY,
		item_id TEXT NOT NULL,
		kind TEXT NOT NULL,
		photo_uri TEXT NOT NULL,
		created_ms INTEGER NOT NULL
	);
	`
	_, err := db.Exec(query)
	return err
}

// Enqueue appends a job to the tail of the queue.
func (s *SQLiteStore) Enqueue(ctx context.Context, job model.OfflineJob) error {
	if err := job.Validate(); err != nil {
		return err
	}

	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to encode job: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO offline_jobs (job_type, item_id, created_ms, payload) VALUES (?, ?, ?, ?)`,
		string(job.Type), job.Identity(), job.Timestamp, string(payload))
	if err != nil {
		return fmt.Errorf("failed to enqueue job: %w", err)
	}
	return nil
}

// Dequeue removes and returns the head job, or nil when empty. A row whose
// payload no longer decodes is dropped and the next row is tried; query
// failures degrade to an empty queue.
func (s *SQLiteStore) Dequeue(ctx context.Context) (*model.OfflineJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for {
		var seq int64
		var payload string
		err := s.db.QueryRowContext(ctx,
			`SELECT seq, payload FROM offline_jobs ORDER BY seq LIMIT 1`).Scan(&seq, &payload)
		if err == sql.ErrNoRows {
			return nil, nil
		}
		if err != nil {
			log.Printf("[SQLiteStore] Dequeue read failed, treating queue as empty: %v", err)
			return nil, nil
		}

		if _, err := s.db.ExecContext(ctx, `DELETE FROM offline_jobs WHERE seq = ?`, seq); err != nil {
			return nil, fmt.Errorf("failed to remove dequeued job: %w", err)
		}

		var job model.OfflineJob
		if err := json.Unmarshal([]byte(payload), &job); err != nil {
			log.Printf("[SQLiteStore] Dropping malformed job payload at seq %d: %v", seq, err)
			continue
		}
		return &job, nil
	}
}

// Jobs returns all queued jobs in FIFO order.
func (s *SQLiteStore) Jobs(ctx context.Context) ([]model.OfflineJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.QueryContext(ctx, `SELECT seq, payload FROM offline_jobs ORDER BY seq`)
	if err != nil {
		log.Printf("[SQLiteStore] Jobs read failed, treating queue as empty: %v", err)
		return nil, nil
	}
	defer rows.Close()

	var jobs []model.OfflineJob
	for rows.Next() {
		var seq int64
		var payload string
		if err := rows.Scan(&seq, &payload); err != nil {
			log.Printf("[SQLiteStore] Jobs scan failed: %v", err)
			continue
		}
		var job model.OfflineJob
		if err := json.Unmarshal([]byte(payload), &job); err != nil {
			log.Printf("[SQLiteStore] Skipping malformed job payload at seq %d: %v", seq, err)
			continue
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// Size returns the number of queued jobs.
func (s *SQLiteStore) Size(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM offline_jobs`).Scan(&n); err != nil {
		log.Printf("[SQLiteStore] Size read failed: %v", err)
		return 0, nil
	}
	return n, nil
}

// Has reports whether a job of the given type exists for the item.
func (s *SQLiteStore) Has(ctx context.Context, jobType model.JobType, itemID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM offline_jobs WHERE job_type = ? AND item_id = ?`,
		string(jobType), itemID).Scan(&n)
	if err != nil {
		log.Printf("[SQLiteStore] Has read failed: %v", err)
		return false, nil
	}
	return n > 0, nil
}

// Remove deletes only the job matching the full (type, identity, timestamp) key.
func (s *SQLiteStore) Remove(ctx context.Context, job model.OfflineJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		`DELETE FROM offline_jobs WHERE job_type = ? AND item_id = ? AND created_ms = ?`,
		string(job.Type), job.Identity(), job.Timestamp)
	if err != nil {
		return fmt.Errorf("failed to remove job: %w", err)
	}
	return nil
}

// Ping verifies the queue table can serve reads, propagating the error the
// degraded read methods swallow.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM offline_jobs`).Scan(&n); err != nil {
		return fmt.Errorf("queue store unavailable: %w", err)
	}
	return nil
}

// Clear removes all queued jobs.
func (s *SQLiteStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.ExecContext(ctx, `DELETE FROM offline_jobs`); err != nil {
		return fmt.Errorf("failed to clear queue: %w", err)
	}
	return nil
}

// QueueUpload records a pending photo upload, replacing any existing pending
// upload for the same item and kind.
func (s *SQLiteStore) QueueUpload(ctx context.Context, up model.PendingUpload) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM pending_uploads WHERE item_id = ? AND kind = ?`, up.ItemID, string(up.Kind)); err != nil {
		return fmt.Errorf("failed to replace pending upload: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO pending_uploads (id, item_id, kind, photo_uri, created_ms) VALUES (?, ?, ?, ?, ?)`,
		up.ID, up.ItemID, string(up.Kind), up.PhotoURI, up.Timestamp); err != nil {
		return fmt.Errorf("failed to queue upload: %w", err)
	}
	return tx.Commit()
}

// PendingUploads returns all pending uploads in insertion order.
func (s *SQLiteStore) PendingUploads(ctx context.Context) ([]model.PendingUpload, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, item_id, kind, photo_uri, created_ms FROM pending_uploads ORDER BY created_ms, id`)
	if err != nil {
		log.Printf("[SQLiteStore] PendingUploads read failed: %v", err)
		return nil, nil
	}
	defer rows.Close()

	var ups []model.PendingUpload
	for rows.Next() {
		var up model.PendingUpload
		var kind string
		if err := rows.Scan(&up.ID, &up.ItemID, &kind, &up.PhotoURI, &up.Timestamp); err != nil {
			log.Printf("[SQLiteStore] PendingUploads scan failed: %v", err)
			continue
		}
		up.Kind = model.Kind(kind)
		ups = append(ups, up)
	}
	return ups, rows.Err()
}

// ClearUpload removes the pending upload with the given id.
func (s *SQLiteStore) ClearUpload(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.ExecContext(ctx, `DELETE FROM pending_uploads WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to clear pending upload: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Ensure SQLiteStore implements Store
var _ Store = (*SQLiteStore)(nil)
