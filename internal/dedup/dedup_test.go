package dedup

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

type rec struct {
	Key   int64
	Name  string
	At    int64
	Fresh bool
}

var recKeys = Keys[rec]{
	Identity: func(r rec) string { return r.Name },
	Storage:  func(r rec) int64 { return r.Key },
}

func TestCollapseByIdentity(t *testing.T) {
	items := []rec{
		{Key: 30, Name: "a"},
		{Key: 10, Name: "b"},
		{Key: 20, Name: "a"},
	}
	kept, dropped := Collapse(items, recKeys)

	want := []rec{{Key: 20, Name: "a"}, {Key: 10, Name: "b"}}
	if diff := cmp.Diff(want, kept); diff != "" {
		t.Errorf("kept mismatch (-want +got):\n%s", diff)
	}
	if len(dropped) != 1 || dropped[0].Key != 30 {
		t.Errorf("dropped = %+v, want key 30", dropped)
	}
}

func TestCollapseByStorageKeyAfterIdentity(t *testing.T) {
	items := []rec{
		{Key: 5, Name: "a"},
		{Key: 5, Name: "b"},
	}
	kept, dropped := Collapse(items, recKeys)
	if len(kept) != 1 || len(dropped) != 1 {
		t.Fatalf("kept %d dropped %d, want 1 and 1", len(kept), len(dropped))
	}
	if kept[0].Name != "a" {
		t.Errorf("kept %+v, want first record", kept[0])
	}
}

func TestCollapsePrefersAssignedKeys(t *testing.T) {
	items := []rec{{Key: 0, Name: "a"}, {Key: 9, Name: "a"}}
	kept, _ := Collapse(items, recKeys)
	if kept[0].Key != 9 {
		t.Errorf("kept key %d, want 9", kept[0].Key)
	}
}

func TestCollapsePreferOverridesKeyOrder(t *testing.T) {
	keys := recKeys
	keys.Prefer = func(r rec) bool { return r.Fresh }
	items := []rec{{Key: 1, Name: "a"}, {Key: 2, Name: "a", Fresh: true}}
	kept, _ := Collapse(items, keys)
	if kept[0].Key != 2 {
		t.Errorf("kept key %d, want preferred 2", kept[0].Key)
	}
}

func TestCollapseNearWindow(t *testing.T) {
	keys := recKeys
	keys.Near = func(a, b rec) bool {
		d := a.At - b.At
		if d < 0 {
			d = -d
		}
		return d < 100
	}
	items := []rec{
		{Key: 1, Name: "hi", At: 0},
		{Key: 2, Name: "hi", At: 50},
		{Key: 3, Name: "hi", At: 500},
	}
	kept, dropped := Collapse(items, keys)
	if len(kept) != 2 {
		t.Fatalf("kept %d, want 2: %+v", len(kept), kept)
	}
	if len(dropped) != 1 || dropped[0].Key != 2 {
		t.Errorf("dropped = %+v, want key 2", dropped)
	}
}

func TestCollapseNearWindowDoesNotChain(t *testing.T) {
	keys := recKeys
	keys.Near = func(a, b rec) bool {
		d := a.At - b.At
		if d < 0 {
			d = -d
		}
		return d < 5000
	}
	items := []rec{
		{Key: 1, Name: "ok", At: 0},
		{Key: 2, Name: "ok", At: 4000},
		{Key: 3, Name: "ok", At: 8000},
		{Key: 4, Name: "ok", At: 12000},
	}
	kept, dropped := Collapse(items, keys)

	// 4000 joins the group anchored at 0; 8000 is too far from 0 and starts
	// its own group, which 12000 joins.
	want := []rec{items[0], items[2]}
	if diff := cmp.Diff(want, kept); diff != "" {
		t.Errorf("kept mismatch (-want +got):\n%s", diff)
	}
	if len(dropped) != 2 {
		t.Errorf("dropped = %+v, want 2 records", dropped)
	}
}

func TestCollapseIsDeterministic(t *testing.T) {
	a := []rec{{Key: 3, Name: "x"}, {Key: 1, Name: "x"}, {Key: 2, Name: "x"}}
	b := []rec{{Key: 2, Name: "x"}, {Key: 3, Name: "x"}, {Key: 1, Name: "x"}}
	ka, _ := Collapse(a, recKeys)
	kb, _ := Collapse(b, recKeys)
	if ka[0].Key != 1 || kb[0].Key != 1 {
		t.Errorf("representatives %d and %d, want 1 for both orders", ka[0].Key, kb[0].Key)
	}
}

type fakeDeleter struct {
	deleted []int64
	err     error
}

func (f *fakeDeleter) del(_ context.Context, key int64) error {
	f.deleted = append(f.deleted, key)
	return f.err
}

func TestResolverDeletesLosers(t *testing.T) {
	d := &fakeDeleter{}
	r := NewResolver("rec", recKeys, d.del, nil)

	items := []rec{{Key: 4, Name: "a"}, {Key: 2, Name: "a"}, {Key: 7, Name: "b"}}
	got := r.Resolve(context.Background(), items)
	if len(got) != 2 {
		t.Fatalf("got %d records, want 2", len(got))
	}
	if diff := cmp.Diff([]int64{4}, d.deleted); diff != "" {
		t.Errorf("deleted mismatch (-want +got):\n%s", diff)
	}

	// A second pass over the already collapsed set is a no-op.
	d.deleted = nil
	again := r.Resolve(context.Background(), got)
	if diff := cmp.Diff(got, again); diff != "" {
		t.Errorf("second pass changed result (-first +second):\n%s", diff)
	}
	if len(d.deleted) != 0 {
		t.Errorf("second pass deleted %v, want nothing", d.deleted)
	}
}

func TestResolverKeepsRowSharedWithRepresentative(t *testing.T) {
	d := &fakeDeleter{}
	r := NewResolver("rec", recKeys, d.del, nil)

	// Same storage key, different identities: the row itself is the
	// representative, so nothing may be deleted.
	r.Resolve(context.Background(), []rec{{Key: 5, Name: "a"}, {Key: 5, Name: "b"}})
	if len(d.deleted) != 0 {
		t.Errorf("deleted %v, want nothing", d.deleted)
	}
}

func TestResolverSwallowsDeleteErrors(t *testing.T) {
	d := &fakeDeleter{err: errors.New("disk full")}
	r := NewResolver("rec", recKeys, d.del, nil)

	got := r.Resolve(context.Background(), []rec{{Key: 1, Name: "a"}, {Key: 2, Name: "a"}})
	if len(got) != 1 || got[0].Key != 1 {
		t.Errorf("got %+v, want the representative despite cleanup failure", got)
	}
}

func TestResolverEmpty(t *testing.T) {
	d := &fakeDeleter{}
	r := NewResolver("rec", recKeys, d.del, nil)
	if got := r.Resolve(context.Background(), nil); len(got) != 0 {
		t.Errorf("got %v, want empty", got)
	}
	if len(d.deleted) != 0 {
		t.Errorf("deleted %v on empty input", d.deleted)
	}
}
