package redis

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"

	"competition-grader/internal/domain"
	"competition-grader/internal/grading"
)

func TestSessionStoreSetsAndClearsKeys(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	ctx := context.Background()
	store := NewSessionStore(newClient(mr), time.Minute)
	sub := grading.Normalize(domain.RawSubmission{
		ID:              "sub-1",
		CompetitionType: domain.QuestionCode,
		Questions:       []domain.Question{{ID: "q1"}, {ID: "q2"}},
	})

	if _, ok, err := store.Load(ctx, sub); err != nil || ok {
		t.Fatalf("expected no session, ok=%v err=%v", ok, err)
	}

	if err := store.Put(ctx, "sub-1", []domain.QuestionGrade{{QuestionID: "q1", IsCorrect: true}}); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := store.Put(ctx, "sub-1", []domain.QuestionGrade{{QuestionID: "q2", IsCorrect: false}}); err != nil {
		t.Fatalf("put: %v", err)
	}
	if !mr.Exists("grading:session:sub-1") {
		t.Fatalf("expected redis key to be set")
	}
	if got := mr.HGet("grading:session:sub-1:overrides", "q1"); got != "1" {
		t.Fatalf("expected q1 stored as 1, got %q", got)
	}

	set, ok, err := store.Load(ctx, sub)
	if err != nil || !ok {
		t.Fatalf("expected session, ok=%v err=%v", ok, err)
	}
	if got := set.Map(); len(got) != 2 || !got["q1"] || got["q2"] {
		t.Fatalf("unexpected overrides %v", got)
	}

	if err := store.Delete(ctx, "sub-1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if mr.Exists("grading:session:sub-1") || mr.Exists("grading:session:sub-1:overrides") {
		t.Fatalf("expected redis keys to be removed")
	}
}

func TestSessionStoreExpires(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	ctx := context.Background()
	store := NewSessionStore(newClient(mr), time.Minute)
	sub := grading.Normalize(domain.RawSubmission{
		ID:              "sub-1",
		CompetitionType: domain.QuestionText,
		Questions:       []domain.Question{{ID: "q1"}},
	})

	_ = store.Put(ctx, "sub-1", []domain.QuestionGrade{{QuestionID: "q1", IsCorrect: true}})
	mr.FastForward(2 * time.Minute)

	if _, ok, _ := store.Load(ctx, sub); ok {
		t.Fatalf("expected abandoned session to expire")
	}
}
