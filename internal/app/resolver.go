package app

import (
	"context"
	"errors"
	"fmt"

	"competition-grader/internal/domain"
)

// ResultStore persists grading results keyed by submission id.
type ResultStore interface {
	// GetResult returns domain.ErrResultNotFound when nothing is stored.
	GetResult(ctx context.Context, submissionID string) (domain.Result, error)
	// CreateResult stores result unless one already exists for its submission.
	// The check and the write must be a single atomic step. It returns the
	// stored result and whether this call created it.
	CreateResult(ctx context.Context, result domain.Result) (domain.Result, bool, error)
}

// ComputeFunc produces the result to store for a submission.
type ComputeFunc func(ctx context.Context) (domain.Result, error)

// ResultResolver guarantees at most one result per submission.
type ResultResolver struct {
	store ResultStore
}

func NewResultResolver(store ResultStore) *ResultResolver {
	return &ResultResolver{store: store}
}

// Lookup distinguishes "not graded yet" (found=false, nil error) from a
// store failure, which is always reported as retryable.
func (r *ResultResolver) Lookup(ctx context.Context, submissionID string) (domain.Result, bool, error) {
	result, err := r.store.GetResult(ctx, submissionID)
	switch {
	case err == nil:
		return result, true, nil
	case errors.Is(err, domain.ErrResultNotFound):
		return domain.Result{}, false, nil
	case domain.IsRetryable(err):
		return domain.Result{}, false, err
	default:
		return domain.Result{}, false, fmt.Errorf("lookup result %s: %w: %w", submissionID, domain.ErrStoreUnavailable, err)
	}
}

// ResolveOrCreate returns the stored result for submissionID, or computes and
// stores a new one. compute is not invoked when a result already exists. If
// another request stores a result first, that result is returned with
// IsExisting set and the computed one is discarded.
func (r *ResultResolver) ResolveOrCreate(ctx context.Context, submissionID string, compute ComputeFunc) (domain.Resolution, error) {
	existing, found, err := r.Lookup(ctx, submissionID)
	if err != nil {
		return domain.Resolution{}, err
	}
	if found {
		return domain.Resolution{Result: existing, IsExisting: true}, nil
	}

	result, err := compute(ctx)
	if err != nil {
		return domain.Resolution{}, err
	}
	result.SubmissionID = submissionID

	stored, created, err := r.store.CreateResult(ctx, result)
	if err != nil {
		if !domain.IsRetryable(err) {
			err = fmt.Errorf("create result %s: %w: %w", submissionID, domain.ErrStoreUnavailable, err)
		}
		return domain.Resolution{}, err
	}
	return domain.Resolution{Result: stored, IsExisting: !created}, nil
}
