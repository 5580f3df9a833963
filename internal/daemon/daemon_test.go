package daemon

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/matheus3301/jobboard/internal/api"
	"github.com/matheus3301/jobboard/internal/config"
	"github.com/matheus3301/jobboard/internal/lock"
	"github.com/matheus3301/jobboard/internal/profile"
	"github.com/matheus3301/jobboard/internal/status"
	"go.uber.org/fx"
	"go.uber.org/fx/fxtest"
	"go.uber.org/zap"
)

// testHome points the profile tree at a short temp dir so socket paths stay
// under the unix socket length limit.
func testHome(t *testing.T) string {
	t.Helper()
	home, err := os.MkdirTemp("/tmp", "jb-daemon-*")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.RemoveAll(home) })
	t.Setenv(profile.HomeEnv, home)
	return home
}

func offlineParams(name string) Params {
	cfg := config.Default()
	cfg.PollInterval = time.Hour
	cfg.ProbeInterval = time.Hour
	return Params{ProfileName: name, Offline: true, Config: cfg}
}

func dial(t *testing.T, name string) *api.Client {
	t.Helper()
	c, err := api.Dial(profile.SocketPath(name))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestDaemonLifecycle(t *testing.T) {
	testHome(t)
	app := fxtest.New(t, fx.NopLogger, Module(offlineParams("test")))
	app.RequireStart()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	c := dial(t, "test")

	resp, err := c.Call(ctx, "GetStatus", nil)
	if err != nil {
		t.Fatalf("GetStatus error = %v", err)
	}
	if resp["profile"] != "test" {
		t.Errorf("profile = %v, want test", resp["profile"])
	}
	// The monitor's first probe runs before the server starts.
	if resp["status"] != string(status.Offline) || resp["online"] != false {
		t.Errorf("status = %v, want OFFLINE", resp)
	}

	reg, err := c.Call(ctx, "RegisterUser", map[string]any{
		"first_name": "Ivan",
		"last_name":  "Petrov",
		"email":      "ivan@example.com",
		"username":   "ivan",
		"password":   "secret",
	})
	if err != nil {
		t.Fatalf("RegisterUser error = %v", err)
	}
	if reg["mirrored"] != false {
		t.Errorf("offline register mirrored: %v", reg)
	}
	if _, err := c.Call(ctx, "Login", map[string]any{"email": "ivan@example.com", "password": "secret"}); err != nil {
		t.Fatalf("Login error = %v", err)
	}
	if _, err := c.Call(ctx, "CreateJob", map[string]any{"title": "Go developer"}); err != nil {
		t.Fatalf("CreateJob error = %v", err)
	}
	jobs, err := c.Call(ctx, "SearchJobs", nil)
	if err != nil {
		t.Fatal(err)
	}
	if items := jobs["items"].([]any); len(items) != 1 || jobs["source"] != "local" {
		t.Errorf("jobs = %v", jobs)
	}
	synced, err := c.Call(ctx, "SyncMessages", nil)
	if err != nil {
		t.Fatal(err)
	}
	if synced["incoming"] != float64(0) || synced["notified"] != float64(0) {
		t.Errorf("sync = %v", synced)
	}

	app.RequireStop()
	if _, err := os.Stat(profile.SocketPath("test")); !os.IsNotExist(err) {
		t.Errorf("socket left behind: %v", err)
	}
	if _, err := os.Stat(filepath.Join(profile.Dir("test"), lock.FileName)); !os.IsNotExist(err) {
		t.Errorf("lock left behind: %v", err)
	}
}

func TestDaemonStatePersists(t *testing.T) {
	testHome(t)
	ctx := context.Background()

	app := fxtest.New(t, fx.NopLogger, Module(offlineParams("persist")))
	app.RequireStart()
	c := dial(t, "persist")
	created, err := c.Call(ctx, "CreateJob", map[string]any{"title": "Go developer", "employer_id": "7"})
	if err != nil {
		t.Fatal(err)
	}
	app.RequireStop()

	app = fxtest.New(t, fx.NopLogger, Module(offlineParams("persist")))
	app.RequireStart()
	defer app.RequireStop()
	c = dial(t, "persist")
	got, err := c.Call(ctx, "GetJob", map[string]any{"id": created["id"]})
	if err != nil {
		t.Fatal(err)
	}
	if got["found"] != true {
		t.Errorf("job lost across restart: %v", got)
	}
}

func TestSecondDaemonRejected(t *testing.T) {
	testHome(t)
	first := fxtest.New(t, fx.NopLogger, Module(offlineParams("dup")))
	first.RequireStart()
	defer first.RequireStop()

	second := fx.New(fx.NopLogger, Module(offlineParams("dup")))
	err := second.Err()
	if err == nil {
		t.Fatal("second daemon on the same profile started")
	}
	if !errors.Is(err, lock.ErrHeld) {
		t.Errorf("err = %v, want lock.ErrHeld", err)
	}
}

// TestNewServerUsesSocketOverride verifies NewServer binds to Params.SocketPath.
func TestNewServerUsesSocketOverride(t *testing.T) {
	home := testHome(t)
	socketPath := filepath.Join(home, "d.sock")

	svc := api.NewService(api.Deps{Profile: "fxtest", Machine: status.NewMachine(nil)})
	srv, err := NewServer(Params{ProfileName: "fxtest", SocketPath: socketPath}, zap.NewNop(), svc)
	if err != nil {
		t.Fatalf("NewServer() failed: %v", err)
	}
	if _, statErr := os.Stat(socketPath); statErr != nil {
		t.Fatalf("socket not created at %s: %v", socketPath, statErr)
	}
	srv.Stop(context.Background())
	if _, statErr := os.Stat(socketPath); !os.IsNotExist(statErr) {
		t.Errorf("socket not removed: %v", statErr)
	}
}
