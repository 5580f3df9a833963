package sync

import (
	"context"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/matheus3301/jobboard/internal/bus"
	"github.com/matheus3301/jobboard/internal/gate"
	"github.com/matheus3301/jobboard/internal/remote"
	"github.com/matheus3301/jobboard/internal/repository"
	"github.com/matheus3301/jobboard/internal/status"
	"github.com/matheus3301/jobboard/internal/store"
	"go.uber.org/zap"
)

func testDB(t *testing.T) *store.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	db, err := store.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Migrate(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestReconcilerCheckpoint(t *testing.T) {
	db := testDB(t)
	r := NewReconciler(db, nil)
	ctx := context.Background()

	v, err := r.Checkpoint(ctx, "k", 42)
	if err != nil || v != 42 {
		t.Fatalf("Checkpoint() = %d, %v; want default 42", v, err)
	}
	if err := r.SetCheckpoint(ctx, "k", 1000); err != nil {
		t.Fatal(err)
	}
	if v, _ := r.Checkpoint(ctx, "k", 42); v != 1000 {
		t.Errorf("Checkpoint() = %d, want 1000", v)
	}

	if err := db.PutState(ctx, "k", "garbage"); err != nil {
		t.Fatal(err)
	}
	if v, err := r.Checkpoint(ctx, "k", 7); err != nil || v != 7 {
		t.Errorf("corrupt checkpoint = %d, %v; want default 7", v, err)
	}
	if err := r.Reset(ctx, "k"); err != nil {
		t.Fatal(err)
	}
	if v, _ := r.Checkpoint(ctx, "k", 9); v != 9 {
		t.Errorf("after reset = %d, want 9", v)
	}
}

func TestSession(t *testing.T) {
	db := testDB(t)
	s := NewSession(db)
	ctx := context.Background()

	st, err := s.Current(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if st.SignedIn() || st.Guest {
		t.Errorf("fresh session = %+v", st)
	}

	if err := s.SignIn(ctx, 0); err == nil {
		t.Error("SignIn(0) should fail")
	}
	if err := s.SignIn(ctx, 77); err != nil {
		t.Fatal(err)
	}
	st, _ = s.Current(ctx)
	if !st.SignedIn() || st.UserID != 77 {
		t.Errorf("signed in session = %+v", st)
	}

	if err := s.SignInGuest(ctx); err != nil {
		t.Fatal(err)
	}
	st, _ = s.Current(ctx)
	if st.SignedIn() || !st.Guest {
		t.Errorf("guest session = %+v", st)
	}

	if err := s.SignOut(ctx); err != nil {
		t.Fatal(err)
	}
	st, _ = s.Current(ctx)
	if st != (SessionState{}) {
		t.Errorf("after sign out = %+v", st)
	}
}

type names map[int64]string

func (n names) DisplayName(_ context.Context, id int64) (string, error) {
	return n[id], nil
}

type pollerEnv struct {
	db      *store.DB
	remote  *remote.Memory
	gate    *gate.Static
	bus     *bus.Bus
	machine *status.Machine
	session *Session
	poller  *Poller
	now     time.Time
}

func newPollerEnv(t *testing.T) *pollerEnv {
	t.Helper()
	db := testDB(t)
	b := bus.New()
	t.Cleanup(b.Close)
	env := &pollerEnv{
		db:      db,
		remote:  remote.NewMemory(),
		gate:    gate.NewStatic(true),
		bus:     b,
		machine: status.NewMachine(nil),
		session: NewSession(db),
		now:     time.UnixMilli(10_000_000),
	}
	msgs := repository.NewMessages(db, env.remote, env.gate, nil, zap.NewNop())
	env.poller = NewPoller(PollerConfig{
		Inbox:      msgs,
		Names:      names{1: "Alice"},
		Session:    env.session,
		Reconciler: NewReconciler(db, nil),
		Machine:    env.machine,
		Bus:        b,
		Now:        func() time.Time { return env.now },
	})
	return env
}

func (e *pollerEnv) remoteMessage(t *testing.T, from, to int64, text string, ts int64) {
	t.Helper()
	_, err := e.remote.Add(context.Background(), remote.Messages, map[string]any{
		"senderId":   strconv.FormatInt(from, 10),
		"receiverId": strconv.FormatInt(to, 10),
		"text":       text,
		"timestamp":  ts,
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestPollerRequiresSignedInUser(t *testing.T) {
	env := newPollerEnv(t)
	env.remoteMessage(t, 1, 2, "hi", env.now.UnixMilli())

	n, err := env.poller.Poll(context.Background())
	if err != nil || n != 0 {
		t.Errorf("Poll() = %d, %v without a session", n, err)
	}
	if env.remote.Calls("query") != 0 {
		t.Error("remote queried without a session")
	}
}

func TestPollerAnnouncesNewMessages(t *testing.T) {
	env := newPollerEnv(t)
	ctx := context.Background()
	if err := env.session.SignIn(ctx, 2); err != nil {
		t.Fatal(err)
	}
	if err := env.machine.Transition(status.Online); err != nil {
		t.Fatal(err)
	}
	ch, unsub := env.bus.Subscribe(bus.KindMessageIncoming, 10)
	defer unsub()

	now := env.now.UnixMilli()
	env.remoteMessage(t, 1, 2, "too old", now-2*time.Hour.Milliseconds())
	env.remoteMessage(t, 1, 2, "hello", now-1000)
	env.remoteMessage(t, 1, 3, "not mine", now-1000)

	n, err := env.poller.Poll(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("Poll() = %d, want 1", n)
	}
	select {
	case evt := <-ch:
		in, ok := evt.Payload.(IncomingMessage)
		if !ok || in.Text != "hello" || in.SenderName != "Alice" {
			t.Errorf("payload = %+v", evt.Payload)
		}
	default:
		t.Fatal("no message.incoming event")
	}
	if env.machine.Current() != status.Online {
		t.Errorf("state after poll = %s, want ONLINE", env.machine.Current())
	}

	n, err = env.poller.Poll(ctx)
	if err != nil || n != 0 {
		t.Errorf("second Poll() = %d, %v; want nothing new", n, err)
	}

	cp, _ := NewReconciler(env.db, nil).Checkpoint(ctx, checkpointKey(2), 0)
	if cp != now-1000 {
		t.Errorf("checkpoint = %d, want %d", cp, now-1000)
	}
}

func TestPollerKeepsCheckpointOffline(t *testing.T) {
	env := newPollerEnv(t)
	ctx := context.Background()
	if err := env.session.SignIn(ctx, 2); err != nil {
		t.Fatal(err)
	}
	env.remoteMessage(t, 1, 2, "hello", env.now.UnixMilli())
	env.gate.Set(false)

	if n, err := env.poller.Poll(ctx); err != nil || n != 0 {
		t.Errorf("offline Poll() = %d, %v", n, err)
	}
	if _, ok, _ := env.db.GetState(ctx, checkpointKey(2)); ok {
		t.Error("checkpoint advanced while offline")
	}

	env.gate.Set(true)
	if n, _ := env.poller.Poll(ctx); n != 1 {
		t.Errorf("Poll() after reconnect = %d, want 1", n)
	}
}

func TestPollerStartStop(t *testing.T) {
	env := newPollerEnv(t)
	env.poller.interval = 10 * time.Millisecond
	env.poller.Start(context.Background())
	time.Sleep(30 * time.Millisecond)
	env.poller.Stop()
	env.poller.Stop()
}
