package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/matheus3301/jobboard/internal/dedup"
	"github.com/matheus3301/jobboard/internal/gate"
	"github.com/matheus3301/jobboard/internal/identity"
	"github.com/matheus3301/jobboard/internal/model"
	"github.com/matheus3301/jobboard/internal/remote"
	"github.com/matheus3301/jobboard/internal/store"
	"go.uber.org/zap"
)

// Users reconciles accounts between the local and remote stores.
//
// Passwords are stored and compared in plain text, as the existing remote
// data requires.
type Users struct {
	base
	byEmail    *dedup.Resolver[model.User]
	byUsername *dedup.Resolver[model.User]
}

func userKeys(field func(model.User) string) dedup.Keys[model.User] {
	return dedup.Keys[model.User]{
		Identity: func(u model.User) string { return field(u) },
		Storage:  func(u model.User) int64 { return u.ID },
		Prefer:   func(u model.User) bool { return u.ID != identity.UserKey(u.Email, u.Username) },
	}
}

// NewUsers creates the users repository.
func NewUsers(db *store.DB, rs remote.Store, g gate.Gate, logger *zap.Logger, opts ...Option) *Users {
	b := newBase(db, rs, g, logger, opts)
	return &Users{
		base:       b,
		byEmail:    dedup.NewResolver("user", userKeys(func(u model.User) string { return model.Normalize(u.Email) }), db.DeleteUser, b.logger),
		byUsername: dedup.NewResolver("user", userKeys(func(u model.User) string { return model.Normalize(u.Username) }), db.DeleteUser, b.logger),
	}
}

// resolve collapses users sharing an email, then users sharing a username.
func (r *Users) resolve(ctx context.Context, users []model.User) []model.User {
	return r.byUsername.Resolve(ctx, r.byEmail.Resolve(ctx, users))
}

func (r *Users) collapse(users []model.User) []model.User {
	kept, _ := dedup.Collapse(users, r.byEmail.Keys())
	kept, _ = dedup.Collapse(kept, r.byUsername.Keys())
	return kept
}

// Register validates u and stores it with email and username normalized.
// With the remote reachable the account is written there first, reusing
// the document that already holds the email, and the local key derives
// from the remote id. Otherwise the key derives from email and username.
func (r *Users) Register(ctx context.Context, u model.User) (WriteResult, error) {
	u = u.Normalized()
	if err := u.Validate(); err != nil {
		return WriteResult{}, err
	}

	u.ID = 0
	if r.online(ctx) {
		id, err := r.pushUser(ctx, u)
		if err != nil {
			r.remoteFailed("user write", err, zap.String("email", u.Email))
		} else {
			u.ID = identity.RemoteKey(id)
		}
	}
	mirrored := u.ID != 0
	if !mirrored {
		u.ID = identity.UserKey(u.Email, u.Username)
	}

	if err := r.mirror(ctx, u); err != nil {
		return WriteResult{}, err
	}
	return WriteResult{Key: u.ID, Mirrored: mirrored}, nil
}

func (r *Users) pushUser(ctx context.Context, u model.User) (string, error) {
	id, found, err := r.locate(ctx, u.Email)
	if err != nil {
		return "", err
	}
	if found {
		return id, r.remote.Set(ctx, remote.Users, id, userDocument(u))
	}
	return r.remote.Add(ctx, remote.Users, userDocument(u))
}

// locate finds the remote document for a normalized email.
func (r *Users) locate(ctx context.Context, email string) (string, bool, error) {
	docs, err := r.remote.Query(ctx, remote.Users,
		remote.Where("email", remote.Eq, model.Normalize(email)).Take(1))
	if err != nil || len(docs) == 0 {
		return "", false, err
	}
	return docs[0].ID, true, nil
}

// mirror stores u after removing rows that share its email or username
// under another key.
func (r *Users) mirror(ctx context.Context, u model.User) error {
	u = u.Normalized()
	dups, err := r.db.FindUsersByIdentity(ctx, u.Email, u.Username)
	if err != nil {
		r.logger.Warn("duplicate user lookup failed", zap.Int64("key", u.ID), zap.Error(err))
	}
	for _, d := range dups {
		if d.ID == u.ID {
			continue
		}
		if err := r.db.DeleteUser(ctx, d.ID); err != nil {
			r.logger.Warn("duplicate user cleanup failed", zap.Int64("key", d.ID), zap.Error(err))
		}
	}
	if err := r.db.UpsertUser(ctx, u); err != nil {
		return fmt.Errorf("save user: %w", err)
	}
	return nil
}

// Login returns the account matching email and password. A miss is
// Found == false, not an error.
func (r *Users) Login(ctx context.Context, email, password string) (Result[model.User], error) {
	return r.lookup(ctx,
		remote.Where("email", remote.Eq, model.Normalize(email)).Where("password", remote.Eq, password),
		func(ctx context.Context) (*model.User, error) {
			u, err := r.db.UserByEmail(ctx, email)
			if err != nil || u == nil || u.Password != password {
				return nil, err
			}
			return u, nil
		})
}

// ByEmail looks an account up by email.
func (r *Users) ByEmail(ctx context.Context, email string) (Result[model.User], error) {
	return r.lookup(ctx,
		remote.Where("email", remote.Eq, model.Normalize(email)),
		func(ctx context.Context) (*model.User, error) { return r.db.UserByEmail(ctx, email) })
}

// ByUsername looks an account up by username.
func (r *Users) ByUsername(ctx context.Context, username string) (Result[model.User], error) {
	return r.lookup(ctx,
		remote.Where("username", remote.Eq, model.Normalize(username)),
		func(ctx context.Context) (*model.User, error) { return r.db.UserByUsername(ctx, username) })
}

// lookup asks the remote store first and mirrors a hit. A remote miss or
// failure falls through to the local store.
func (r *Users) lookup(ctx context.Context, q remote.Query, local func(context.Context) (*model.User, error)) (Result[model.User], error) {
	src := SourceLocal
	if r.online(ctx) {
		u, found, err := r.fetchOne(ctx, q.Take(1))
		if err != nil {
			r.remoteFailed("user lookup", err)
		}
		if found {
			if err := r.mirror(ctx, u); err != nil {
				return Result[model.User]{}, err
			}
			return Result[model.User]{Value: u, Found: true, Source: SourceRemote}, nil
		}
		src = fallback(err)
	}

	u, err := local(ctx)
	if err != nil {
		return Result[model.User]{}, fmt.Errorf("lookup user: %w", err)
	}
	if u == nil {
		return Result[model.User]{Source: src}, nil
	}
	return Result[model.User]{Value: *u, Found: true, Source: src}, nil
}

func (r *Users) fetchOne(ctx context.Context, q remote.Query) (model.User, bool, error) {
	docs, err := r.remote.Query(ctx, remote.Users, q)
	if err != nil {
		return model.User{}, false, err
	}
	for _, doc := range docs {
		u, err := decodeUser(doc)
		if err != nil {
			r.skipDocument(remote.Users, err)
			continue
		}
		return u, true, nil
	}
	return model.User{}, false, nil
}

// Get returns the account stored under key, scanning the remote store
// when it is missing locally.
func (r *Users) Get(ctx context.Context, key int64) (Result[model.User], error) {
	local, err := r.db.GetUser(ctx, key)
	if err != nil {
		return Result[model.User]{}, fmt.Errorf("get user: %w", err)
	}
	if local != nil {
		return Result[model.User]{Value: *local, Found: true, Source: SourceLocal}, nil
	}
	if !r.online(ctx) {
		return Result[model.User]{Source: SourceLocal}, nil
	}

	docs, err := r.remote.Query(ctx, remote.Users, remote.Query{})
	if err != nil {
		r.remoteFailed("user scan", err, zap.Int64("key", key))
		return Result[model.User]{Source: SourceLocalFallback}, nil
	}
	for _, doc := range docs {
		if !matchesKey(doc.ID, key) {
			continue
		}
		u, err := decodeUser(doc)
		if err != nil {
			r.skipDocument(remote.Users, err)
			continue
		}
		u.ID = key
		if err := r.mirror(ctx, u); err != nil {
			return Result[model.User]{}, err
		}
		return Result[model.User]{Value: u, Found: true, Source: SourceRemote}, nil
	}
	return Result[model.User]{Source: SourceRemote}, nil
}

// List returns every account ordered by username.
func (r *Users) List(ctx context.Context) (ListResult[model.User], error) {
	if r.online(ctx) {
		docs, err := r.remote.Query(ctx, remote.Users, remote.Query{}.OrderBy("username", false))
		if err == nil {
			users, merr := r.mirrorAll(ctx, docs)
			if merr != nil {
				return ListResult[model.User]{}, merr
			}
			return ListResult[model.User]{Items: users, Source: SourceRemote}, nil
		}
		r.remoteFailed("user list", err)
		users, err := r.listLocal(ctx)
		return ListResult[model.User]{Items: users, Source: SourceLocalFallback}, err
	}
	users, err := r.listLocal(ctx)
	return ListResult[model.User]{Items: users, Source: SourceLocal}, err
}

func (r *Users) listLocal(ctx context.Context) ([]model.User, error) {
	users, err := r.db.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return r.resolve(ctx, users), nil
}

func (r *Users) mirrorAll(ctx context.Context, docs []remote.Document) ([]model.User, error) {
	users := make([]model.User, 0, len(docs))
	for _, doc := range docs {
		u, err := decodeUser(doc)
		if err != nil {
			r.skipDocument(remote.Users, err)
			continue
		}
		users = append(users, u)
	}
	users = r.collapse(users)
	for _, u := range users {
		if err := r.mirror(ctx, u); err != nil {
			return nil, err
		}
	}
	return users, nil
}

// Search finds accounts whose username, first name or last name starts
// with q, at most limit of them (store.DefaultUserSearchLimit when limit
// is not positive). Offline, the local store matches q anywhere in those
// fields and in the full name.
func (r *Users) Search(ctx context.Context, q string, limit int) (ListResult[model.User], error) {
	q = strings.Trim(strings.TrimSpace(q), "%")
	if limit <= 0 {
		limit = store.DefaultUserSearchLimit
	}
	if q == "" {
		return ListResult[model.User]{Source: SourceLocal}, nil
	}

	if r.online(ctx) {
		users, err := r.searchRemote(ctx, q, limit)
		if err == nil {
			return ListResult[model.User]{Items: users, Source: SourceRemote}, nil
		}
		r.remoteFailed("user search", err)
		users, err = r.searchLocal(ctx, q, limit)
		return ListResult[model.User]{Items: users, Source: SourceLocalFallback}, err
	}
	users, err := r.searchLocal(ctx, q, limit)
	return ListResult[model.User]{Items: users, Source: SourceLocal}, err
}

func (r *Users) searchRemote(ctx context.Context, q string, limit int) ([]model.User, error) {
	queries := []remote.Query{
		remote.Where("username", remote.Prefix, model.Normalize(q)).Take(limit),
		remote.Where("firstName", remote.Prefix, q).Take(limit),
		remote.Where("lastName", remote.Prefix, q).Take(limit),
	}
	seen := make(map[string]bool)
	var docs []remote.Document
	for _, query := range queries {
		found, err := r.remote.Query(ctx, remote.Users, query)
		if err != nil {
			return nil, err
		}
		for _, d := range found {
			if !seen[d.ID] {
				seen[d.ID] = true
				docs = append(docs, d)
			}
		}
	}
	users, err := r.mirrorAll(ctx, docs)
	if err != nil {
		return nil, err
	}
	if len(users) > limit {
		users = users[:limit]
	}
	return users, nil
}

func (r *Users) searchLocal(ctx context.Context, q string, limit int) ([]model.User, error) {
	users, err := r.db.SearchUsers(ctx, q, limit)
	if err != nil {
		return nil, fmt.Errorf("search users: %w", err)
	}
	return r.resolve(ctx, users), nil
}

// SetProfilePhoto selects a built-in avatar for the account stored under key.
func (r *Users) SetProfilePhoto(ctx context.Context, key int64, photoID int) (WriteResult, error) {
	if err := model.ValidatePhotoID(photoID); err != nil {
		return WriteResult{}, err
	}
	return r.patch(ctx, key, map[string]any{"profilePhotoId": photoID}, func(u *model.User) {
		u.PhotoID = photoID
	})
}

// SetProfilePhotoURL sets or, with an empty url, clears the uploaded photo.
func (r *Users) SetProfilePhotoURL(ctx context.Context, key int64, url string) (WriteResult, error) {
	url = strings.TrimSpace(url)
	return r.patch(ctx, key, map[string]any{"profilePhotoUrl": url}, func(u *model.User) {
		u.PhotoURL = url
	})
}

// patch applies a local change, then merges fields into the remote
// document located by the account's email.
func (r *Users) patch(ctx context.Context, key int64, fields map[string]any, apply func(*model.User)) (WriteResult, error) {
	u, err := r.db.GetUser(ctx, key)
	if err != nil {
		return WriteResult{}, fmt.Errorf("get user: %w", err)
	}
	if u == nil {
		return WriteResult{}, fmt.Errorf("%w: user %d", ErrNotFound, key)
	}
	apply(u)
	if err := r.db.UpsertUser(ctx, *u); err != nil {
		return WriteResult{}, fmt.Errorf("save user: %w", err)
	}

	res := WriteResult{Key: key}
	if !r.online(ctx) {
		return res, nil
	}
	id, found, err := r.locate(ctx, u.Email)
	if err != nil {
		r.remoteFailed("user locate", err, zap.Int64("key", key))
		return res, nil
	}
	if !found {
		return res, nil
	}
	if err := r.remote.Update(ctx, remote.Users, id, fields); err != nil {
		r.remoteFailed("user update", err, zap.Int64("key", key))
		return res, nil
	}
	res.Mirrored = true
	return res, nil
}

// DisplayName returns the account's display name, or "" when unknown.
func (r *Users) DisplayName(ctx context.Context, key int64) (string, error) {
	res, err := r.Get(ctx, key)
	if err != nil || !res.Found {
		return "", err
	}
	return res.Value.DisplayName(), nil
}
