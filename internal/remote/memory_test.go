package remote

import (
	"context"
	"errors"
	"testing"
)

func TestMemoryCRUD(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	id, err := m.Add(ctx, Jobs, map[string]any{"title": "Go", "createdAt": int64(5)})
	if err != nil {
		t.Fatal(err)
	}
	doc, err := m.Get(ctx, Jobs, id)
	if err != nil {
		t.Fatal(err)
	}
	if doc.Data["createdAt"] != 5.0 {
		t.Errorf("createdAt = %#v, want float64 5", doc.Data["createdAt"])
	}

	doc.Data["title"] = "mutated"
	again, _ := m.Get(ctx, Jobs, id)
	if again.Data["title"] != "Go" {
		t.Error("Get should return a copy")
	}

	if err := m.Update(ctx, Jobs, id, map[string]any{"city": "Kazan"}); err != nil {
		t.Fatal(err)
	}
	doc, _ = m.Get(ctx, Jobs, id)
	if doc.Data["city"] != "Kazan" || doc.Data["title"] != "Go" {
		t.Errorf("after merge: %v", doc.Data)
	}

	if err := m.Set(ctx, Jobs, id, map[string]any{"title": "Rust"}); err != nil {
		t.Fatal(err)
	}
	doc, _ = m.Get(ctx, Jobs, id)
	if _, ok := doc.Data["city"]; ok {
		t.Error("Set should replace the whole document")
	}

	if err := m.Delete(ctx, Jobs, id); err != nil {
		t.Fatal(err)
	}
	if _, err := m.Get(ctx, Jobs, id); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get after delete: %v, want ErrNotFound", err)
	}
	if err := m.Delete(ctx, Jobs, id); err != nil {
		t.Errorf("deleting twice: %v", err)
	}
	if err := m.Update(ctx, Jobs, "missing", map[string]any{"x": 1}); !errors.Is(err, ErrNotFound) {
		t.Errorf("Update missing: %v, want ErrNotFound", err)
	}
}

func TestMemoryQuery(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	for _, ts := range []int{30, 10, 20} {
		if _, err := m.Add(ctx, Messages, map[string]any{"receiverId": "2", "timestamp": ts}); err != nil {
			t.Fatal(err)
		}
	}
	_, _ = m.Add(ctx, Messages, map[string]any{"receiverId": "3", "timestamp": 40})

	got, err := m.Query(ctx, Messages, Where("receiverId", Eq, "2").Where("timestamp", Gt, 10).OrderBy("timestamp", false))
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0].Data["timestamp"] != 20.0 {
		t.Errorf("Query = %+v", got)
	}
	if m.Len(Messages) != 4 {
		t.Errorf("Len = %d, want 4", m.Len(Messages))
	}
}

func TestMemoryFailureInjection(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	boom := errors.New("unreachable")
	m.FailWith(boom)

	if _, err := m.Add(ctx, Users, map[string]any{}); !errors.Is(err, boom) {
		t.Errorf("Add: %v, want injected error", err)
	}
	if _, err := m.Query(ctx, Users, Query{}); !errors.Is(err, boom) {
		t.Errorf("Query: %v, want injected error", err)
	}
	if m.Calls("add") != 1 || m.Calls("query") != 1 {
		t.Errorf("calls add=%d query=%d", m.Calls("add"), m.Calls("query"))
	}

	m.FailWith(nil)
	if _, err := m.Add(ctx, Users, map[string]any{}); err != nil {
		t.Errorf("after clearing failure: %v", err)
	}

	_ = m.Close()
	if _, err := m.Get(ctx, Users, "x"); !errors.Is(err, ErrClosed) {
		t.Errorf("after Close: %v, want ErrClosed", err)
	}
}
