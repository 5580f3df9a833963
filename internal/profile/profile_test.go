package profile

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/matheus3301/jobboard/internal/config"
)

func TestDirUsesHomeOverride(t *testing.T) {
	base := t.TempDir()
	t.Setenv(HomeEnv, base)

	if got, want := Dir("main"), filepath.Join(base, "profiles", "main"); got != want {
		t.Errorf("Dir(main) = %q, want %q", got, want)
	}
	if got := DBPath("work"); got != filepath.Join(base, "profiles", "work", "jobboard.db") {
		t.Errorf("DBPath(work) = %q", got)
	}
}

func TestDefaultBaseDir(t *testing.T) {
	t.Setenv(HomeEnv, "")
	home, _ := os.UserHomeDir()
	if got := BaseDir(); got != filepath.Join(home, ".jobboard") {
		t.Errorf("BaseDir() = %q", got)
	}
}

func TestPaths(t *testing.T) {
	tests := []struct {
		got    string
		suffix string
	}{
		{SocketPath("test"), filepath.Join("profiles", "test", "daemon.sock")},
		{LockPath("test"), filepath.Join("profiles", "test", "LOCK")},
		{LogPath("test"), filepath.Join("profiles", "test", "logs", "jobboardd.log")},
	}
	for _, tt := range tests {
		if !strings.HasSuffix(tt.got, tt.suffix) {
			t.Errorf("%q does not end with %q", tt.got, tt.suffix)
		}
	}
}

func TestEnsureDir(t *testing.T) {
	t.Setenv(HomeEnv, t.TempDir())

	if err := EnsureDir("test"); err != nil {
		t.Fatal(err)
	}
	info, err := os.Stat(LogDir("test"))
	if err != nil {
		t.Fatalf("log dir not created: %v", err)
	}
	if !info.IsDir() || info.Mode().Perm() != 0700 {
		t.Errorf("log dir mode = %v", info.Mode())
	}
}

func TestResolve(t *testing.T) {
	t.Setenv(HomeEnv, t.TempDir())

	if got := Resolve(""); got != DefaultName {
		t.Errorf("Resolve() without config = %q, want %q", got, DefaultName)
	}
	cfg := config.Default()
	cfg.DefaultProfile = "work"
	if err := config.Save(ConfigPath(), cfg); err != nil {
		t.Fatal(err)
	}
	if got := Resolve(""); got != "work" {
		t.Errorf("Resolve() = %q, want work from config", got)
	}
	if got := Resolve("flag"); got != "flag" {
		t.Errorf("Resolve(flag) = %q, want flag", got)
	}
}

func TestValidateName(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"valid simple", "main", false},
		{"valid with numbers", "work123", false},
		{"valid with hyphen", "my-profile", false},
		{"valid with underscore", "my_profile", false},
		{"valid single char", "a", false},
		{"valid max length", strings.Repeat("a", 64), false},
		{"empty", "", true},
		{"uppercase", "Main", true},
		{"space", "my profile", true},
		{"dot", "my.profile", true},
		{"too long", strings.Repeat("a", 65), true},
		{"special chars", "my@profile", true},
		{"slash", "my/profile", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateName(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateName(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
		})
	}
}
