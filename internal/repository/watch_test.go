package repository

import (
	"context"
	"testing"
	"time"

	"github.com/matheus3301/jobboard/internal/model"
)

func next[T any](t *testing.T, c <-chan []T) []T {
	t.Helper()
	select {
	case items, ok := <-c:
		if !ok {
			t.Fatal("subscription closed")
		}
		return items
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a snapshot")
	}
	return nil
}

func TestJobWatchEmitsOnChange(t *testing.T) {
	env := newEnv(t, false)
	r := env.jobs()
	ctx := context.Background()

	sub := r.Watch(ctx, JobFilter{EmployerID: 7})
	defer sub.Cancel()

	if got := next(t, sub.C); len(got) != 0 {
		t.Fatalf("initial snapshot = %+v, want empty", got)
	}
	if _, err := r.Create(ctx, newJob(7, "Go developer", 1000)); err != nil {
		t.Fatal(err)
	}
	var got []model.Job
	for len(got) == 0 {
		got = next(t, sub.C)
	}
	if len(got) != 1 || got[0].Title != "Go developer" {
		t.Errorf("snapshot = %+v", got)
	}
}

func TestWatchStopsWithContext(t *testing.T) {
	env := newEnv(t, false)
	ctx, cancel := context.WithCancel(context.Background())
	sub := env.jobs().Watch(ctx, JobFilter{})
	next(t, sub.C)

	cancel()
	select {
	case <-sub.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("subscription did not stop")
	}
	for range sub.C {
	}
}

func TestWatchWithoutBus(t *testing.T) {
	env := newEnv(t, false)
	r := NewJobs(env.db, env.remote, env.gate, nil)
	sub := r.Watch(context.Background(), JobFilter{})

	next(t, sub.C)
	sub.Cancel()
	if _, ok := <-sub.C; ok {
		t.Error("channel still open after Cancel")
	}
}
