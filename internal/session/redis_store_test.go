package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

func setupTestRedis(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	s := miniredis.RunT(t)
	store, err := NewRedisStore("redis://"+s.Addr(), time.Hour)
	if err != nil {
		t.Fatalf("failed to create redis store: %v", err)
	}
	return store, s
}

func TestNewRedisStore(t *testing.T) {
	s := miniredis.RunT(t)
	defer s.Close()

	store, err := NewRedisStore("redis://"+s.Addr(), time.Hour)
	if err != nil {
		t.Fatalf("NewRedisStore failed: %v", err)
	}
	defer store.Close()

	if err := store.Ping(context.Background()); err != nil {
		t.Errorf("Ping failed: %v", err)
	}
}

func TestRedisCreateAndGet(t *testing.T) {
	store, s := setupTestRedis(t)
	defer store.Close()
	defer s.Close()

	ctx := context.Background()
	sess := newTestSession("wf_abc")
	sess.Stage = StageAwaitingResearchApproval

	if err := store.Create(ctx, sess); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	got, err := store.Get(ctx, "wf_abc")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Stage != StageAwaitingResearchApproval {
		t.Errorf("expected stage %s, got %s", StageAwaitingResearchApproval, got.Stage)
	}
	if got.Grievance != sess.Grievance {
		t.Errorf("grievance mismatch: %q", got.Grievance)
	}
}

func TestRedisGetMissing(t *testing.T) {
	store, s := setupTestRedis(t)
	defer store.Close()
	defer s.Close()

	if _, err := store.Get(context.Background(), "wf_missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestRedisUpdate(t *testing.T) {
	store, s := setupTestRedis(t)
	defer store.Close()
	defer s.Close()

	ctx := context.Background()
	_ = store.Create(ctx, newTestSession("wf_abc"))

	updated, err := store.Update(ctx, "wf_abc", func(sess Session) (Session, error) {
		sess.Stage = StageAwaitingDraftReview
		sess.Iteration = 1
		return sess, nil
	})
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if updated.Stage != StageAwaitingDraftReview || updated.Iteration != 1 {
		t.Errorf("unexpected updated session: %+v", updated)
	}

	got, err := store.Get(ctx, "wf_abc")
	if err != nil {
		t.Fatalf("Get after update failed: %v", err)
	}
	if got.Stage != StageAwaitingDraftReview {
		t.Errorf("update not persisted: stage=%s", got.Stage)
	}
}

func TestRedisUpdateMissing(t *testing.T) {
	store, s := setupTestRedis(t)
	defer store.Close()
	defer s.Close()

	_, err := store.Update(context.Background(), "wf_missing", func(sess Session) (Session, error) {
		return sess, nil
	})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestRedisUpdateFnErrorLeavesRecord(t *testing.T) {
	store, s := setupTestRedis(t)
	defer store.Close()
	defer s.Close()

	ctx := context.Background()
	_ = store.Create(ctx, newTestSession("wf_abc"))

	wantErr := errors.New("rejected")
	if _, err := store.Update(ctx, "wf_abc", func(sess Session) (Session, error) {
		sess.Stage = StageComplete
		return sess, wantErr
	}); !errors.Is(err, wantErr) {
		t.Fatalf("expected fn error, got %v", err)
	}

	got, err := store.Get(ctx, "wf_abc")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Stage != StageStarted {
		t.Errorf("failed update mutated the record: stage=%s", got.Stage)
	}
}

func TestRedisDelete(t *testing.T) {
	store, s := setupTestRedis(t)
	defer store.Close()
	defer s.Close()

	ctx := context.Background()
	_ = store.Create(ctx, newTestSession("wf_abc"))

	if err := store.Delete(ctx, "wf_abc"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := store.Get(ctx, "wf_abc"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
	if err := store.Delete(ctx, "wf_abc"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound deleting twice, got %v", err)
	}
}

func TestRedisSessionTTLExpiry(t *testing.T) {
	s := miniredis.RunT(t)
	defer s.Close()

	store, err := NewRedisStore("redis://"+s.Addr(), time.Minute)
	if err != nil {
		t.Fatalf("NewRedisStore failed: %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	_ = store.Create(ctx, newTestSession("wf_stale"))

	s.FastForward(2 * time.Minute)

	if _, err := store.Get(ctx, "wf_stale"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for evicted session, got %v", err)
	}
}

func TestRedisSessionIsolation(t *testing.T) {
	store, s := setupTestRedis(t)
	defer store.Close()
	defer s.Close()

	ctx := context.Background()
	_ = store.Create(ctx, newTestSession("wf_1"))
	_ = store.Create(ctx, newTestSession("wf_2"))

	if _, err := store.Update(ctx, "wf_1", func(sess Session) (Session, error) {
		sess.Stage = StageComplete
		return sess, nil
	}); err != nil {
		t.Fatalf("Update wf_1 failed: %v", err)
	}

	got, err := store.Get(ctx, "wf_2")
	if err != nil {
		t.Fatalf("Get wf_2 failed: %v", err)
	}
	if got.Stage != StageStarted {
		t.Errorf("update leaked across keys: wf_2 stage=%s", got.Stage)
	}
}
