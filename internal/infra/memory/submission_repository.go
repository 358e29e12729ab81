package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"competition-grader/internal/domain"
	"golang.org/x/sync/singleflight"
)

// SubmissionLoader fetches raw submissions from a backing store.
type SubmissionLoader interface {
	LoadSubmission(ctx context.Context, submissionID string) (domain.RawSubmission, error)
}

// SubmissionRepository caches submissions with TTL to avoid repeated DB hits.
// Submissions are read-only to grading, so a cached copy never goes stale.
type SubmissionRepository struct {
	loader SubmissionLoader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group
	rnd    *rand.Rand
	rndMu  sync.Mutex

	mu    sync.RWMutex
	cache map[string]cachedSubmission
}

type cachedSubmission struct {
	submission domain.RawSubmission
	expiresAt  time.Time
}

func NewSubmissionRepository(loader SubmissionLoader, ttl time.Duration) *SubmissionRepository {
	return &SubmissionRepository{
		loader: loader,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
		cache:  make(map[string]cachedSubmission),
	}
}

func (r *SubmissionRepository) GetSubmission(ctx context.Context, submissionID string) (domain.RawSubmission, error) {
	if sub, ok := r.cached(submissionID); ok {
		return sub, nil
	}

	result, err, _ := r.sf.Do(submissionID, func() (interface{}, error) {
		if sub, ok := r.cached(submissionID); ok {
			return sub, nil
		}

		sub, err := r.loader.LoadSubmission(ctx, submissionID)
		if err != nil {
			return domain.RawSubmission{}, err
		}

		r.mu.Lock()
		r.cache[submissionID] = cachedSubmission{
			submission: sub,
			expiresAt:  r.clock().Add(r.ttlWithJitter()),
		}
		r.mu.Unlock()
		return sub, nil
	})
	if err != nil {
		return domain.RawSubmission{}, err
	}
	return result.(domain.RawSubmission), nil
}

func (r *SubmissionRepository) cached(submissionID string) (domain.RawSubmission, bool) {
	now := r.clock()
	r.mu.RLock()
	defer r.mu.RUnlock()
	if entry, ok := r.cache[submissionID]; ok && entry.expiresAt.After(now) {
		return entry.submission, true
	}
	return domain.RawSubmission{}, false
}

func (r *SubmissionRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(r.ttl) / 10
	r.rndMu.Lock()
	defer r.rndMu.Unlock()
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}

// StaticSubmissionLoader is a simple loader backed by an in-memory map (useful for tests/demos).
type StaticSubmissionLoader struct {
	submissions map[string]domain.RawSubmission
}

func NewStaticSubmissionLoader(submissions map[string]domain.RawSubmission) *StaticSubmissionLoader {
	return &StaticSubmissionLoader{submissions: submissions}
}

func (l *StaticSubmissionLoader) LoadSubmission(_ context.Context, submissionID string) (domain.RawSubmission, error) {
	if sub, ok := l.submissions[submissionID]; ok {
		return sub, nil
	}
	return domain.RawSubmission{}, domain.ErrSubmissionNotFound
}
