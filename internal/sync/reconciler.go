package sync

import (
	"context"
	"fmt"
	"strconv"

	"github.com/matheus3301/jobboard/internal/store"
	"go.uber.org/zap"
)

// Reconciler manages sync checkpoints.
type Reconciler struct {
	db     *store.DB
	logger *zap.Logger
}

// NewReconciler creates a new reconciler.
func NewReconciler(db *store.DB, logger *zap.Logger) *Reconciler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reconciler{db: db, logger: logger}
}

// Checkpoint returns the checkpoint stored under key, or def when none is
// stored. An unreadable value is logged and replaced by def.
func (r *Reconciler) Checkpoint(ctx context.Context, key string, def int64) (int64, error) {
	raw, ok, err := r.db.GetState(ctx, key)
	if err != nil {
		return 0, fmt.Errorf("read checkpoint %s: %w", key, err)
	}
	if !ok {
		return def, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		r.logger.Warn("discarding corrupt checkpoint", zap.String("key", key), zap.String("value", raw))
		return def, nil
	}
	return v, nil
}

// SetCheckpoint stores a checkpoint value.
func (r *Reconciler) SetCheckpoint(ctx context.Context, key string, v int64) error {
	if err := r.db.PutState(ctx, key, strconv.FormatInt(v, 10)); err != nil {
		return fmt.Errorf("write checkpoint %s: %w", key, err)
	}
	return nil
}

// Reset forgets a checkpoint.
func (r *Reconciler) Reset(ctx context.Context, key string) error {
	return r.db.DeleteState(ctx, key)
}
