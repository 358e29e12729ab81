package redis

import (
	"context"
	"errors"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"

	"competition-grader/internal/domain"
)

func TestResultStoreSetNX(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	ctx := context.Background()
	store := NewResultStore(newClient(mr))

	if _, err := store.GetResult(ctx, "sub-1"); !errors.Is(err, domain.ErrResultNotFound) {
		t.Fatalf("expected ErrResultNotFound, got %v", err)
	}

	first, created, err := store.CreateResult(ctx, domain.Result{ID: "r1", SubmissionID: "sub-1", TotalScore: 3, TotalQuestions: 4, PercentageScore: 75})
	if err != nil || !created {
		t.Fatalf("expected create, created=%v err=%v", created, err)
	}
	second, created, err := store.CreateResult(ctx, domain.Result{ID: "r2", SubmissionID: "sub-1"})
	if err != nil || created {
		t.Fatalf("expected existing, created=%v err=%v", created, err)
	}
	if second.ID != first.ID || second.PercentageScore != 75 {
		t.Fatalf("expected the first result back, got %+v", second)
	}
	if mr.TTL("result:sub-1") != 0 {
		t.Fatalf("results must not expire")
	}
}

func TestResultStoreUnavailable(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	client := newClient(mr)
	store := NewResultStore(client)
	mr.Close()

	if _, err := store.GetResult(context.Background(), "sub-1"); !domain.IsRetryable(err) {
		t.Fatalf("expected retryable error, got %v", err)
	}
}
