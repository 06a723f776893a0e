package queue

import (
	"context"
	"sync"

	"cellarsync/internal/model"
)

// MemoryStore is an in-memory implementation of Store. Use it for
// development and tests; it does not survive process restarts.
type MemoryStore struct {
	mu      sync.Mutex
	jobs    []model.OfflineJob
	uploads []model.PendingUpload
}

// NewMemoryStore creates an empty in-memory queue.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Enqueue appends a job to the tail of the queue.
func (s *MemoryStore) Enqueue(ctx context.Context, job model.OfflineJob) error {
	if err := job.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs = append(s.jobs, job)
	return nil
}

// Dequeue removes and returns the head job, or nil when empty.
func (s *MemoryStore) Dequeue(ctx context.Context) (*model.OfflineJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.jobs) == 0 {
		return nil, nil
	}
	job := s.jobs[0]
	s.jobs = s.jobs[1:]
	return &job, nil
}

// Jobs returns a copy of all queued jobs in FIFO order.
func (s *MemoryStore) Jobs(ctx context.Context) ([]model.OfflineJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.OfflineJob, len(s.jobs))
	copy(out, s.jobs)
	return out, nil
}

// Size returns the number of queued jobs.
func (s *MemoryStore) Size(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.jobs), nil
}

// Has reports whether a job of the given type exists for the item.
func (s *MemoryStore) Has(ctx context.Context, jobType model.JobType, itemID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, j := range s.jobs {
		if j.Type == jobType && j.Identity() == itemID {
			return true, nil
		}
	}
	return false, nil
}

// Remove deletes only the job matching the full (type, identity, timestamp) key.
func (s *MemoryStore) Remove(ctx context.Context, job model.OfflineJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.jobs[:0]
	for _, j := range s.jobs {
		if j.Key() == job.Key() {
			continue
		}
		kept = append(kept, j)
	}
	s.jobs = kept
	return nil
}

// Ping always succeeds; the memory store has no backing storage to fail.
func (s *MemoryStore) Ping(ctx context.Context) error {
	return nil
}

// Clear removes all queued jobs.
func (s *MemoryStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs = nil
	return nil
}

// QueueUpload records a pending photo upload, replacing any existing pending
// upload for the same item and kind.
func (s *MemoryStore) QueueUpload(ctx context.Context, up model.PendingUpload) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.uploads[:0]
	for _, u := range s.uploads {
		if u.ItemID == up.ItemID && u.Kind == up.Kind {
			continue
		}
		kept = append(kept, u)
	}
	s.uploads = append(kept, up)
	return nil
}

// PendingUploads returns a copy of all pending uploads in insertion order.
func (s *MemoryStore) PendingUploads(ctx context.Context) ([]model.PendingUpload, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.PendingUpload, len(s.uploads))
	copy(out, s.uploads)
	return out, nil
}

// ClearUpload removes the pending upload with the given id.
func (s *MemoryStore) ClearUpload(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.uploads[:0]
	for _, u := range s.uploads {
		if u.ID == id {
			continue
		}
		kept = append(kept, u)
	}
	s.uploads = kept
	return nil
}

// Close is a no-op for the memory store.
func (s *MemoryStore) Close() error {
	return nil
}

// Ensure MemoryStore implements Store
var _ Store = (*MemoryStore)(nil)
