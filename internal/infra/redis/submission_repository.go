package redis

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"math/rand"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"competition-grader/internal/domain"
	"competition-grader/internal/infra/memory"
)

// SubmissionRepository caches raw submissions in Redis and falls back to a
// loader on cache miss. Each submission is stored as JSON under
// submission:{submissionID}.
type SubmissionRepository struct {
	client *redis.Client
	loader memory.SubmissionLoader
	ttl    time.Duration
	sf     singleflight.Group
	rnd    *rand.Rand
	rndMu  sync.Mutex
}

func NewSubmissionRepository(client *redis.Client, loader memory.SubmissionLoader, ttl time.Duration) *SubmissionRepository {
	return &SubmissionRepository{
		client: client,
		loader: loader,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (r *SubmissionRepository) GetSubmission(ctx context.Context, submissionID string) (domain.RawSubmission, error) {
	if sub, ok := r.cached(ctx, submissionID); ok {
		return sub, nil
	}

	result, err, _ := r.sf.Do(submissionID, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if sub, ok := r.cached(ctx, submissionID); ok {
			return sub, nil
		}

		sub, err := r.loader.LoadSubmission(ctx, submissionID)
		if err != nil {
			return domain.RawSubmission{}, err
		}

		payload, err := json.Marshal(sub)
		if err != nil {
			return domain.RawSubmission{}, err
		}
		// A failed cache write only costs a reload later.
		if err := r.client.Set(ctx, r.key(submissionID), payload, r.ttlWithJitter()).Err(); err != nil {
			log.Printf("cache submission %s: %v", submissionID, err)
		}
		return sub, nil
	})
	if err != nil {
		return domain.RawSubmission{}, err
	}
	return result.(domain.RawSubmission), nil
}

func (r *SubmissionRepository) cached(ctx context.Context, submissionID string) (domain.RawSubmission, bool) {
	payload, err := r.client.Get(ctx, r.key(submissionID)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			log.Printf("read cached submission %s: %v", submissionID, err)
		}
		return domain.RawSubmission{}, false
	}
	var sub domain.RawSubmission
	if err := json.Unmarshal(payload, &sub); err != nil {
		log.Printf("decode cached submission %s: %v", submissionID, err)
		return domain.RawSubmission{}, false
	}
	return sub, true
}

func (r *SubmissionRepository) key(submissionID string) string {
	return "submission:" + submissionID
}

func (r *SubmissionRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	jitterMax := int64(r.ttl) / 10
	r.rndMu.Lock()
	defer r.rndMu.Unlock()
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}
