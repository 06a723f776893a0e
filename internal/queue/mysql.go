package queue

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"cellarsync/internal/model"

	_ "github.com/go-sql-driver/mysql"
)

// MySQLStore implements Store on a shared MySQL database. Used for
// multi-station deployments where several scanning stations feed a single
// queue; for a single device prefer the SQLite backend.
type MySQLStore struct {
	db *sql.DB
}

// NewMySQLStore connects to MySQL and prepares the queue tables.
func NewMySQLStore(dsn string) (*MySQLStore, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open MySQL: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping MySQL: %w", err)
	}

	if err := createMySQLTables(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	log.Printf("[MySQLStore] Initialized")
	return &MySQLStore{db: db}, nil
}

func createMySQLTables(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS offline_jobs (
			seq BIGINT AUTO_INCREMENT PRIMARY KEY,
			job_type VARCHAR(32) NOT NULL,
			item_id VARCHAR(64) NOT NULL,
			created_ms BIGINT NOT NULL,
			payload TEXT NOT NULL,
			INDEX idx_jobs_identity (job_type, item_id)
		)`,
		`CREATE TABLE IF NOT EXISTS pending_uploads (
			id VARCHAR(128) PRIMARY KEY,
			item_id VARCHAR(64) NOT NULL,
			kind VARCHAR(16) NOT NULL,
			photo_uri TEXT NOT NULL,
			created_ms BIGINT NOT NULL
		)`,
	}
	for _, q := range stmts {
		if _, err := db.Exec(q); err != nil {
			return err
		}
	}
	return nil
}

// Enqueue appends a job to the tail of the queue.
func (s *MySQLStore) Enqueue(ctx context.Context, job model.OfflineJob) error {
	if err := job.Validate(); err != nil {
		return err
	}

	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to encode job: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO offline_jobs (job_type, item_id, created_ms, payload) VALUES (?, ?, ?, ?)`,
		string(job.Type), job.Identity(), job.Timestamp, string(payload))
	if err != nil {
		return fmt.Errorf("failed to enqueue job: %w", err)
	}
	return nil
}

// Dequeue removes and returns the head job, or nil when empty. The select and
// delete run in a transaction with a row lock so concurrent stations cannot
// drain the same job twice.
func (s *MySQLStore) Dequeue(ctx context.Context) (*model.OfflineJob, error) {
	for {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			log.Printf("[MySQLStore] Dequeue begin failed, treating queue as empty: %v", err)
			return nil, nil
		}

		var seq int64
		var payload string
		err = tx.QueryRowContext(ctx,
			`SELECT seq, payload FROM offline_jobs ORDER BY seq LIMIT 1 FOR UPDATE`).Scan(&seq, &payload)
		if err == sql.ErrNoRows {
			tx.Rollback()
			return nil, nil
		}
		if err != nil {
			tx.Rollback()
			log.Printf("[MySQLStore] Dequeue read failed, treating queue as empty: %v", err)
			return nil, nil
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM offline_jobs WHERE seq = ?`, seq); err != nil {
			tx.Rollback()
			return nil, fmt.Errorf("failed to remove dequeued job: %w", err)
		}
		if err := tx.Commit(); err != nil {
			return nil, fmt.Errorf("failed to commit dequeue: %w", err)
		}

		var job model.OfflineJob
		if err := json.Unmarshal([]byte(payload), &job); err != nil {
			log.Printf("[MySQLStore] Dropping malformed job payload at seq %d: %v", seq, err)
			continue
		}
		return &job, nil
	}
}

// Jobs returns all queued jobs in FIFO order.
func (s *MySQLStore) Jobs(ctx context.Context) ([]model.OfflineJob, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT seq, payload FROM offline_jobs ORDER BY seq`)
	if err != nil {
		log.Printf("[MySQLStore] Jobs read failed, treating queue as empty: %v", err)
		return nil, nil
	}
	defer rows.Close()

	var jobs []model.OfflineJob
	for rows.Next() {
		var seq int64
		var payload string
		if err := rows.Scan(&seq, &payload); err != nil {
			log.Printf("[MySQLStore] Jobs scan failed: %v", err)
			continue
		}
		var job model.OfflineJob
		if err := json.Unmarshal([]byte(payload), &job); err != nil {
			log.Printf("[MySQLStore] Skipping malformed job payload at seq %d: %v", seq, err)
			continue
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// Size returns the number of queued jobs.
func (s *MySQLStore) Size(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM offline_jobs`).Scan(&n); err != nil {
		log.Printf("[MySQLStore] Size read failed: %v", err)
		return 0, nil
	}
	return n, nil
}

// Has reports whether a job of the given type exists for the item.
func (s *MySQLStore) Has(ctx context.Context, jobType model.JobType, itemID string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM offline_jobs WHERE job_type = ? AND item_id = ?`,
		string(jobType), itemID).Scan(&n)
	if err != nil {
		log.Printf("[MySQLStore] Has read failed: %v", err)
		return false, nil
	}
	return n > 0, nil
}

// Remove deletes only the job matching the full (type, identity, timestamp) key.
func (s *MySQLStore) Remove(ctx context.Context, job model.OfflineJob) error {
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
func (s *MySQLStore) Ping(ctx context.Context) error {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM offline_jobs`).Scan(&n); err != nil {
		return fmt.Errorf("queue store unavailable: %w", err)
	}
	return nil
}

// Clear removes all queued jobs.
func (s *MySQLStore) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM offline_jobs`); err != nil {
		return fmt.Errorf("failed to clear queue: %w", err)
	}
	return nil
}

// QueueUpload records a pending photo upload, replacing any existing pending
// upload for the same item and kind.
func (s *MySQLStore) QueueUpload(ctx context.Context, up model.PendingUpload) error {
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
func (s *MySQLStore) PendingUploads(ctx context.Context) ([]model.PendingUpload, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, item_id, kind, photo_uri, created_ms FROM pending_uploads ORDER BY created_ms, id`)
	if err != nil {
		log.Printf("[MySQLStore] PendingUploads read failed: %v", err)
		return nil, nil
	}
	defer rows.Close()

	var ups []model.PendingUpload
	for rows.Next() {
		var up model.PendingUpload
		var kind string
		if err := rows.Scan(&up.ID, &up.ItemID, &kind, &up.PhotoURI, &up.Timestamp); err != nil {
			log.Printf("[MySQLStore] PendingUploads scan failed: %v", err)
			continue
		}
		up.Kind = model.Kind(kind)
		ups = append(ups, up)
	}
	return ups, rows.Err()
}

// ClearUpload removes the pending upload with the given id.
func (s *MySQLStore) ClearUpload(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM pending_uploads WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to clear pending upload: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *MySQLStore) Close() error {
	return s.db.Close()
}

// Ensure MySQLStore implements Store
var _ Store = (*MySQLStore)(nil)
