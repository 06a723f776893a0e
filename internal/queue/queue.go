package queue

import (
	"context"

	"cellarsync/internal/model"
)

// Store is the durable, process-wide offline job queue. Jobs are strictly
// FIFO for the happy path; Remove exists so the sync engine can retry a
// failed job in place without disturbing the order of the rest.
//
// All implementations share the queue's failure contract: write failures
// propagate to the caller, read failures are logged and degrade to an empty
// queue rather than crashing the scan flow.
type Store interface {
	// Enqueue appends a job to the tail. Persistence errors propagate.
	Enqueue(ctx context.Context, job model.OfflineJob) error

	// Dequeue removes and returns the head job, or nil when the queue is
	// empty. Malformed persisted payloads are dropped with a log line.
	Dequeue(ctx context.Context) (*model.OfflineJob, error)

	// Jobs returns all queued jobs in FIFO order without removing them.
	Jobs(ctx context.Context) ([]model.OfflineJob, error)

	// Size returns the number of queued jobs.
	Size(ctx context.Context) (int, error)

	// Has reports whether a job of the given type exists for the item.
	Has(ctx context.Context, jobType model.JobType, itemID string) (bool, error)

	// Remove deletes only the job matching the full (type, identity,
	// timestamp) key, preserving the relative order of all other jobs.
	Remove(ctx context.Context, job model.OfflineJob) error

	// Clear removes all queued jobs.
	Clear(ctx context.Context) error

	// Ping verifies the backing store can serve reads. Unlike the read
	// methods it propagates the failure; health checks need the error the
	// degrade-to-empty contract hides.
	Ping(ctx context.Context) error

	UploadStore

	// Close releases the underlying storage.
	Close() error
}

// UploadStore is the second persisted list: photo uploads awaiting retry,
// keyed by generated id for idempotent single-item clearing.
type UploadStore interface {
	// QueueUpload records a pending photo upload. An existing pending
	// upload for the same item and kind is replaced (last write wins).
	QueueUpload(ctx context.Context, up model.PendingUpload) error

	// PendingUploads returns all pending uploads in insertion order.
	PendingUploads(ctx context.Context) ([]model.PendingUpload, error)

	// ClearUpload removes the pending upload with the given id, if any.
	ClearUpload(ctx context.Context, id string) error
}
