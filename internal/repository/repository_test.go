package repository

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/matheus3301/jobboard/internal/bus"
	"github.com/matheus3301/jobboard/internal/gate"
	"github.com/matheus3301/jobboard/internal/remote"
	"github.com/matheus3301/jobboard/internal/store"
	"go.uber.org/zap"
)

var errRemoteDown = errors.New("remote unavailable")

type testEnv struct {
	db     *store.DB
	remote *remote.Memory
	gate   *gate.Static
	bus    *bus.Bus
	now    time.Time
	opts   []Option
}

func newEnv(t *testing.T, online bool) *testEnv {
	t.Helper()
	db, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Migrate(); err != nil {
		t.Fatal(err)
	}
	b := bus.New()
	db.Attach(b)
	t.Cleanup(func() {
		b.Close()
		_ = db.Close()
	})

	env := &testEnv{
		db:     db,
		remote: remote.NewMemory(),
		gate:   gate.NewStatic(online),
		bus:    b,
		now:    time.UnixMilli(1_700_000_000_000),
	}
	env.opts = []Option{WithBus(b), WithClock(func() time.Time { return env.now })}
	return env
}

func (e *testEnv) jobs() *Jobs {
	return NewJobs(e.db, e.remote, e.gate, zap.NewNop(), e.opts...)
}

func (e *testEnv) users() *Users {
	return NewUsers(e.db, e.remote, e.gate, zap.NewNop(), e.opts...)
}

func (e *testEnv) messages(names NameResolver) *Messages {
	return NewMessages(e.db, e.remote, e.gate, names, zap.NewNop(), e.opts...)
}

func (e *testEnv) remoteDocs(t *testing.T, collection string) []remote.Document {
	t.Helper()
	e.remote.FailWith(nil)
	docs, err := e.remote.Query(context.Background(), collection, remote.Query{})
	if err != nil {
		t.Fatal(err)
	}
	return docs
}

func TestSourceString(t *testing.T) {
	tests := []struct {
		src  Source
		want string
	}{
		{SourceLocal, "local"},
		{SourceRemote, "remote"},
		{SourceLocalFallback, "local_fallback"},
		{Source(0), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.src.String(); got != tt.want {
			t.Errorf("Source(%d).String() = %q, want %q", tt.src, got, tt.want)
		}
	}
}

func TestNilGateIsOffline(t *testing.T) {
	env := newEnv(t, true)
	r := NewJobs(env.db, env.remote, nil, nil)

	res, err := r.List(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if res.Source != SourceLocal {
		t.Errorf("source = %v, want local", res.Source)
	}
	if n := env.remote.Calls("query"); n != 0 {
		t.Errorf("remote queried %d times with no gate", n)
	}
}
