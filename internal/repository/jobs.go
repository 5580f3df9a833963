package repository

import (
	"context"
	"fmt"

	"github.com/matheus3301/jobboard/internal/dedup"
	"github.com/matheus3301/jobboard/internal/gate"
	"github.com/matheus3301/jobboard/internal/identity"
	"github.com/matheus3301/jobboard/internal/model"
	"github.com/matheus3301/jobboard/internal/remote"
	"github.com/matheus3301/jobboard/internal/store"
	"go.uber.org/zap"
)

// JobFilter narrows job listings. See store.JobFilter.
type JobFilter = store.JobFilter

// Jobs reconciles job listings between the local and remote stores.
type Jobs struct {
	base
	resolver *dedup.Resolver[model.Job]
}

// JobKeys groups jobs by (employer, title, createdAt). A key derived from a
// remote id wins over the offline key of the same job.
func JobKeys() dedup.Keys[model.Job] {
	return dedup.Keys[model.Job]{
		Identity: func(j model.Job) string { return j.Identity().String() },
		Storage:  func(j model.Job) int64 { return j.ID },
		Prefer:   func(j model.Job) bool { return j.ID != identity.JobKey(j.Identity()) },
	}
}

// NewJobs creates the jobs repository.
func NewJobs(db *store.DB, rs remote.Store, g gate.Gate, logger *zap.Logger, opts ...Option) *Jobs {
	b := newBase(db, rs, g, logger, opts)
	return &Jobs{
		base:     b,
		resolver: dedup.NewResolver("job", JobKeys(), db.DeleteJob, b.logger),
	}
}

// List returns every job, newest first.
func (r *Jobs) List(ctx context.Context) (ListResult[model.Job], error) {
	return r.Search(ctx, JobFilter{})
}

// ListByEmployer returns the jobs posted by employerID, newest first.
func (r *Jobs) ListByEmployer(ctx context.Context, employerID int64) (ListResult[model.Job], error) {
	return r.Search(ctx, JobFilter{EmployerID: employerID})
}

// SearchByTitle returns jobs whose title starts with prefix, newest first.
func (r *Jobs) SearchByTitle(ctx context.Context, prefix string) (ListResult[model.Job], error) {
	return r.Search(ctx, JobFilter{TitlePrefix: prefix})
}

// Search returns jobs matching f, newest first. With the remote reachable
// the matching remote jobs are mirrored locally first. The listing always
// comes from the local store, so jobs written offline and not yet pushed
// stay visible after the gate opens.
func (r *Jobs) Search(ctx context.Context, f JobFilter) (ListResult[model.Job], error) {
	src := SourceLocal
	if r.online(ctx) {
		src = SourceRemote
		if err := r.pull(ctx, f); err != nil {
			r.remoteFailed("job query", err)
			src = SourceLocalFallback
		} else {
			r.compact(ctx)
		}
	}
	items, err := r.searchLocal(ctx, f)
	return ListResult[model.Job]{Items: items, Source: src}, err
}

// searchLocal reads f from the local store and resolves duplicates.
func (r *Jobs) searchLocal(ctx context.Context, f JobFilter) ([]model.Job, error) {
	jobs, err := r.db.ListJobs(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	return r.resolver.Resolve(ctx, jobs), nil
}

// compact runs the bulk duplicate cleanup after a pull. Every mirrored row
// has already displaced its offline twin, so keeping the lowest key per
// identity cannot discard a remote-keyed row. Failures are logged only.
func (r *Jobs) compact(ctx context.Context) {
	if _, err := r.db.DeleteDuplicateJobs(ctx); err != nil {
		r.logger.Warn("duplicate job cleanup failed", zap.Error(err))
	}
}

// pull queries the remote store and mirrors the deduplicated result locally.
func (r *Jobs) pull(ctx context.Context, f JobFilter) error {
	docs, err := r.remote.Query(ctx, remote.Jobs, remoteJobQuery(f))
	if err != nil {
		return err
	}
	jobs := make([]model.Job, 0, len(docs))
	for _, doc := range docs {
		j, err := decodeJob(doc)
		if err != nil {
			r.skipDocument(remote.Jobs, err)
			continue
		}
		jobs = append(jobs, j)
	}
	kept, _ := dedup.Collapse(jobs, r.resolver.Keys())
	for _, j := range kept {
		if err := r.mirror(ctx, j); err != nil {
			return err
		}
	}
	r.logger.Debug("jobs mirrored", zap.Int("count", len(kept)))
	return nil
}

// mirror stores j under its key after removing rows that carry the same
// business identity under another key.
func (r *Jobs) mirror(ctx context.Context, j model.Job) error {
	r.dropOtherKeys(ctx, j)
	if err := r.db.UpsertJob(ctx, j); err != nil {
		return fmt.Errorf("save job: %w", err)
	}
	return nil
}

func (r *Jobs) dropOtherKeys(ctx context.Context, j model.Job) {
	dups, err := r.db.FindJobsByIdentity(ctx, j.Identity())
	if err != nil {
		r.logger.Warn("duplicate job lookup failed", zap.Int64("key", j.ID), zap.Error(err))
		return
	}
	for _, d := range dups {
		if d.ID == j.ID {
			continue
		}
		if err := r.db.DeleteJob(ctx, d.ID); err != nil {
			r.logger.Warn("duplicate job cleanup failed", zap.Int64("key", d.ID), zap.Error(err))
		}
	}
}

func remoteJobQuery(f JobFilter) remote.Query {
	q := remote.Query{}
	if f.EmployerID != 0 {
		q = q.Where("employerId", remote.Eq, ref(f.EmployerID))
	}
	if f.TitlePrefix != "" {
		q = q.Where("title", remote.Prefix, f.TitlePrefix)
	}
	if f.CityPrefix != "" {
		q = q.Where("city", remote.Prefix, f.CityPrefix)
	}
	if f.Experience != "" {
		q = q.Where("experience", remote.Eq, f.Experience)
	}
	if f.MinSalary != nil {
		q = q.Where("salaryFrom", remote.Gte, *f.MinSalary)
	}
	return q.OrderBy("createdAt", true).Take(f.Limit)
}

// Get returns the job stored under key. A job missing locally is searched
// for in the remote store by scanning every document, and mirrored under
// key when found.
func (r *Jobs) Get(ctx context.Context, key int64) (Result[model.Job], error) {
	local, err := r.db.GetJob(ctx, key)
	if err != nil {
		return Result[model.Job]{}, fmt.Errorf("get job: %w", err)
	}
	if local != nil {
		return Result[model.Job]{Value: *local, Found: true, Source: SourceLocal}, nil
	}
	if !r.online(ctx) {
		return Result[model.Job]{Source: SourceLocal}, nil
	}

	docs, err := r.remote.Query(ctx, remote.Jobs, remote.Query{})
	if err != nil {
		r.remoteFailed("job scan", err, zap.Int64("key", key))
		return Result[model.Job]{Source: SourceLocalFallback}, nil
	}
	for _, doc := range docs {
		if !matchesKey(doc.ID, key) {
			continue
		}
		j, err := decodeJob(doc)
		if err != nil {
			r.skipDocument(remote.Jobs, err)
			continue
		}
		j.ID = key
		if err := r.mirror(ctx, j); err != nil {
			return Result[model.Job]{}, err
		}
		return Result[model.Job]{Value: j, Found: true, Source: SourceRemote}, nil
	}
	return Result[model.Job]{Source: SourceRemote}, nil
}

// matchesKey reports whether remote id maps to key, or spells it.
func matchesKey(id string, key int64) bool {
	return identity.RemoteKey(id) == key || id == ref(key)
}

// Create validates j and stores it. With the remote reachable the job is
// written there first and its local key derives from the remote id;
// otherwise the key derives from the job's business identity. Rows with the
// same identity under another key are removed before the write lands.
func (r *Jobs) Create(ctx context.Context, j model.Job) (WriteResult, error) {
	if j.CreatedAt == 0 {
		j.CreatedAt = r.nowMillis()
	}
	if j.Currency == "" {
		j.Currency = model.DefaultCurrency
	}
	if err := j.Validate(); err != nil {
		return WriteResult{}, err
	}

	j.ID = 0
	if r.online(ctx) {
		id, err := r.pushJob(ctx, j)
		if err != nil {
			r.remoteFailed("job write", err, zap.String("identity", j.Identity().String()))
		} else {
			j.ID = identity.RemoteKey(id)
		}
	}
	mirrored := j.ID != 0
	if !mirrored {
		j.ID = identity.JobKey(j.Identity())
	}

	if err := r.mirror(ctx, j); err != nil {
		return WriteResult{}, err
	}
	return WriteResult{Key: j.ID, Mirrored: mirrored}, nil
}

// pushJob writes j to the remote store, reusing the document that already
// carries j's identity so retried creates do not fan out.
func (r *Jobs) pushJob(ctx context.Context, j model.Job) (string, error) {
	id, found, err := r.locate(ctx, j.Identity())
	if err != nil {
		return "", err
	}
	if found {
		return id, r.remote.Set(ctx, remote.Jobs, id, jobDocument(j))
	}
	return r.remote.Add(ctx, remote.Jobs, jobDocument(j))
}

// locate finds the remote document carrying a business identity.
func (r *Jobs) locate(ctx context.Context, k model.JobIdentity) (string, bool, error) {
	docs, err := r.remote.Query(ctx, remote.Jobs, remote.
		Where("employerId", remote.Eq, ref(k.EmployerID)).
		Where("title", remote.Eq, k.Title).
		Where("createdAt", remote.Eq, k.CreatedAt).
		Take(1))
	if err != nil || len(docs) == 0 {
		return "", false, err
	}
	return docs[0].ID, true, nil
}

// Update validates j and replaces the local row stored under j.ID. It
// returns ErrNotFound when no such row exists. The creation timestamp never
// changes. The remote copy is re-located by the identity the job had before
// the update and overwritten when found.
func (r *Jobs) Update(ctx context.Context, j model.Job) (WriteResult, error) {
	if j.ID == 0 {
		return WriteResult{}, fmt.Errorf("%w: job key is required", model.ErrValidation)
	}
	old, err := r.db.GetJob(ctx, j.ID)
	if err != nil {
		return WriteResult{}, fmt.Errorf("get job: %w", err)
	}
	if old == nil {
		return WriteResult{}, fmt.Errorf("%w: job %d", ErrNotFound, j.ID)
	}
	j.CreatedAt = old.CreatedAt
	prev := old.Identity()
	if j.Currency == "" {
		j.Currency = model.DefaultCurrency
	}
	if err := j.Validate(); err != nil {
		return WriteResult{}, err
	}

	if err := r.db.UpsertJob(ctx, j); err != nil {
		return WriteResult{}, fmt.Errorf("save job: %w", err)
	}
	return WriteResult{Key: j.ID, Mirrored: r.overwriteRemote(ctx, prev, j)}, nil
}

func (r *Jobs) overwriteRemote(ctx context.Context, prev model.JobIdentity, j model.Job) bool {
	if !r.online(ctx) {
		return false
	}
	id, found, err := r.locate(ctx, prev)
	if err != nil {
		r.remoteFailed("job locate", err, zap.Int64("key", j.ID))
		return false
	}
	if !found {
		return false
	}
	if err := r.remote.Set(ctx, remote.Jobs, id, jobDocument(j)); err != nil {
		r.remoteFailed("job update", err, zap.Int64("key", j.ID))
		return false
	}
	return true
}

// Delete removes the job stored under key locally, then deletes its remote
// copy when one can be located.
func (r *Jobs) Delete(ctx context.Context, key int64) (WriteResult, error) {
	old, err := r.db.GetJob(ctx, key)
	if err != nil {
		return WriteResult{}, fmt.Errorf("get job: %w", err)
	}
	if err := r.db.DeleteJob(ctx, key); err != nil {
		return WriteResult{}, fmt.Errorf("delete job: %w", err)
	}
	res := WriteResult{Key: key}
	if old == nil || !r.online(ctx) {
		return res, nil
	}

	id, found, err := r.locate(ctx, old.Identity())
	if err != nil {
		r.remoteFailed("job locate", err, zap.Int64("key", key))
		return res, nil
	}
	if !found {
		return res, nil
	}
	if err := r.remote.Delete(ctx, remote.Jobs, id); err != nil {
		r.remoteFailed("job delete", err, zap.Int64("key", key))
		return res, nil
	}
	res.Mirrored = true
	return res, nil
}

// Watch emits a snapshot of f's listing now and again after every local
// change to the jobs table, until ctx ends or the subscription is cancelled.
func (r *Jobs) Watch(ctx context.Context, f JobFilter) *Subscription[model.Job] {
	return watch(ctx, r.bus, "jobs", r.logger,
		func(ctx context.Context) ([]model.Job, error) {
			res, err := r.Search(ctx, f)
			return res.Items, err
		},
		func(ctx context.Context) ([]model.Job, error) {
			return r.searchLocal(ctx, f)
		},
	)
}
