// Package dedup collapses records that describe the same logical entity.
//
// Records reach the local store from direct writes and from remote mirroring,
// with no transaction spanning both, so duplicates are a steady-state condition.
// Collapse is two-pass: first by business identity, then by storage key.
package dedup

import (
	"context"

	"go.uber.org/zap"
)

// Keys tells the resolver how to look at a record type.
type Keys[T any] struct {
	// Identity returns the business identity of a record.
	Identity func(T) string
	// Storage returns the local storage key, zero when unassigned.
	Storage func(T) int64
	// Near, when set, narrows an identity group: a record joins a group only
	// if Near reports true against the first record of that group.
	Near func(a, b T) bool
	// Prefer marks records whose key should win a group, such as records
	// whose key was derived from the remote store.
	Prefer func(T) bool
}

// Collapse keeps one representative per duplicate group and returns the rest
// as dropped. Output order follows the first appearance of each group in items.
//
// The representative is deterministic: preferred records first, then records
// with an assigned storage key, then the smallest storage key, then input order.
func Collapse[T any](items []T, keys Keys[T]) (kept, dropped []T) {
	byIdentity, dropped := collapse(items, keys, func(a, b T) bool {
		if keys.Identity(a) != keys.Identity(b) {
			return false
		}
		return keys.Near == nil || keys.Near(a, b)
	})

	byStorage, more := collapse(byIdentity, keys, func(a, b T) bool {
		ka, kb := keys.Storage(a), keys.Storage(b)
		return ka != 0 && ka == kb
	})
	return byStorage, append(dropped, more...)
}

type group[T any] struct {
	members []T
}

func collapse[T any](items []T, keys Keys[T], same func(a, b T) bool) (kept, dropped []T) {
	var groups []*group[T]
	for _, it := range items {
		var home *group[T]
		for _, g := range groups {
			// Compare with the group's first record only, so Near windows
			// do not chain across a group.
			if same(g.members[0], it) {
				home = g
				break
			}
		}
		if home == nil {
			home = &group[T]{}
			groups = append(groups, home)
		}
		home.members = append(home.members, it)
	}

	kept = make([]T, 0, len(groups))
	for _, g := range groups {
		best := 0
		for i := 1; i < len(g.members); i++ {
			if better(g.members[i], g.members[best], keys) {
				best = i
			}
		}
		kept = append(kept, g.members[best])
		for i, m := range g.members {
			if i != best {
				dropped = append(dropped, m)
			}
		}
	}
	return kept, dropped
}

func better[T any](a, b T, keys Keys[T]) bool {
	if keys.Prefer != nil {
		pa, pb := keys.Prefer(a), keys.Prefer(b)
		if pa != pb {
			return pa
		}
	}
	ka, kb := keys.Storage(a), keys.Storage(b)
	if (ka != 0) != (kb != 0) {
		return ka != 0
	}
	return ka < kb
}

// DeleteFunc removes a local row by storage key.
type DeleteFunc func(ctx context.Context, key int64) error

// Resolver collapses records and deletes the losing rows from local storage.
type Resolver[T any] struct {
	keys   Keys[T]
	del    DeleteFunc
	logger *zap.Logger
	entity string
}

// NewResolver creates a resolver for one entity type.
func NewResolver[T any](entity string, keys Keys[T], del DeleteFunc, logger *zap.Logger) *Resolver[T] {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver[T]{keys: keys, del: del, logger: logger, entity: entity}
}

// Keys returns the resolver's key functions.
func (r *Resolver[T]) Keys() Keys[T] {
	return r.keys
}

// Resolve returns the deduplicated records. Dropped records whose storage key
// is not held by a kept record are deleted from local storage. Delete failures
// are logged and never affect the returned slice.
func (r *Resolver[T]) Resolve(ctx context.Context, items []T) []T {
	kept, dropped := Collapse(items, r.keys)
	if len(dropped) == 0 || r.del == nil {
		return kept
	}

	held := make(map[int64]bool, len(kept))
	for _, k := range kept {
		held[r.keys.Storage(k)] = true
	}
	deleted := make(map[int64]bool)
	for _, d := range dropped {
		key := r.keys.Storage(d)
		if key == 0 || held[key] || deleted[key] {
			continue
		}
		deleted[key] = true
		if err := r.del(ctx, key); err != nil {
			r.logger.Warn("duplicate cleanup failed",
				zap.String("entity", r.entity), zap.Int64("key", key), zap.Error(err))
		}
	}
	if len(deleted) > 0 {
		r.logger.Debug("duplicates removed", zap.String("entity", r.entity), zap.Int("count", len(deleted)))
	}
	return kept
}
