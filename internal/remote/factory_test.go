package remote

import (
	"context"
	"errors"
	"testing"
)

func TestOpen(t *testing.T) {
	ctx := context.Background()

	s, err := Open(ctx, "memory://")
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := s.(*Memory); !ok {
		t.Errorf("memory:// opened %T", s)
	}

	if _, err := Open(ctx, "  "); !errors.Is(err, ErrNoRemote) {
		t.Errorf("empty dsn: %v, want ErrNoRemote", err)
	}
	if _, err := Open(ctx, "ftp://host"); err == nil {
		t.Error("unsupported scheme should fail")
	}
}
