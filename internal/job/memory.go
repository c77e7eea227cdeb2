package job

import (
	"context"
	"sync"
	"time"
)

// Compile-time check that MemoryRepository implements Repository.
var _ Repository = (*MemoryRepository)(nil)

// MemoryRepository keeps job snapshots in a map guarded by a RWMutex.
// With a retention set, a snapshot expires that long after its last save,
// the way RedisRepository keys do. Jobs are lost on restart; use
// RedisRepository to keep them.
type MemoryRepository struct {
	mu        sync.RWMutex
	jobs      map[string]memoryEntry
	retention time.Duration
	now       func() time.Time
}

type memoryEntry struct {
	job       *Job
	expiresAt time.Time
}

func (e memoryEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && !now.Before(e.expiresAt)
}

// MemoryOption configures a MemoryRepository.
type MemoryOption func(*MemoryRepository)

// WithRetention expires snapshots ttl after their last save. Zero, the
// default, keeps them until Delete.
func WithRetention(ttl time.Duration) MemoryOption {
	return func(r *MemoryRepository) {
		r.retention = ttl
	}
}

// NewMemoryRepository creates a new in-memory job repository.
func NewMemoryRepository(opts ...MemoryOption) *MemoryRepository {
	r := &MemoryRepository{
		jobs: make(map[string]memoryEntry),
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Save stores a clone of job and refreshes its expiry. Expired snapshots of
// other jobs are swept on the way.
func (r *MemoryRepository) Save(_ context.Context, job *Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	entry := memoryEntry{job: job.Clone()}
	if r.retention > 0 {
		entry.expiresAt = now.Add(r.retention)
	}
	r.jobs[job.ID] = entry

	for id, e := range r.jobs {
		if e.expired(now) {
			delete(r.jobs, id)
		}
	}
	return nil
}

// FindByID returns a clone of the job so callers can mutate it freely.
func (r *MemoryRepository) FindByID(_ context.Context, id string) (*Job, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.jobs[id]
	if !ok || e.expired(r.now()) {
		return nil, ErrJobNotFound
	}
	return e.job.Clone(), nil
}

// List returns clones of every live job, newest first.
func (r *MemoryRepository) List(_ context.Context) ([]*Job, error) {
	r.mu.RLock()
	now := r.now()
	result := make([]*Job, 0, len(r.jobs))
	for _, e := range r.jobs {
		if !e.expired(now) {
			result = append(result, e.job.Clone())
		}
	}
	r.mu.RUnlock()

	sortNewestFirst(result)
	return result, nil
}

// Delete removes a job from storage.
func (r *MemoryRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.jobs[id]
	if !ok || e.expired(r.now()) {
		return ErrJobNotFound
	}
	delete(r.jobs, id)
	return nil
}
