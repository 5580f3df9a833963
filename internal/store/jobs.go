package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/matheus3301/jobboard/internal/model"
)

const jobColumns = `id, title, salary_from, salary_to, currency, experience, description, city,
	about_us, required_qualities, offer, key_skills, employer_id, created_at`

// UpsertJob inserts or replaces the job stored under j.ID.
func (db *DB) UpsertJob(ctx context.Context, j model.Job) error {
	now := time.Now().UnixMilli()
	cur := j.Currency
	if cur == "" {
		cur = model.DefaultCurrency
	}
	res, err := db.ExecContext(ctx, `
		INSERT INTO jobs (`+jobColumns+`, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			salary_from = excluded.salary_from,
			salary_to = excluded.salary_to,
			currency = excluded.currency,
			experience = excluded.experience,
			description = excluded.description,
			city = excluded.city,
			about_us = excluded.about_us,
			required_qualities = excluded.required_qualities,
			offer = excluded.offer,
			key_skills = excluded.key_skills,
			employer_id = excluded.employer_id,
			created_at = excluded.created_at,
			updated_at = excluded.updated_at`,
		j.ID, j.Title, nullInt(j.SalaryFrom), nullInt(j.SalaryTo), cur, j.Experience, j.Description,
		j.City, j.AboutUs, j.RequiredQualities, j.Offer, j.KeySkills, j.EmployerID, j.CreatedAt, now)
	if err != nil {
		return err
	}
	db.changed("jobs", "upsert", j.ID, res)
	return nil
}

// GetJob returns the job stored under id, or nil if there is none.
func (db *DB) GetJob(ctx context.Context, id int64) (*model.Job, error) {
	row := db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id)
	j, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &j, nil
}

// DeleteJob removes the job stored under id. Deleting a missing row is not an error.
func (db *DB) DeleteJob(ctx context.Context, id int64) error {
	res, err := db.ExecContext(ctx, `DELETE FROM jobs WHERE id = ?`, id)
	if err != nil {
		return err
	}
	db.changed("jobs", "delete", id, res)
	return nil
}

// ListJobs returns jobs matching f, newest first.
func (db *DB) ListJobs(ctx context.Context, f JobFilter) ([]model.Job, error) {
	var (
		where []string
		args  []any
	)
	if f.EmployerID != 0 {
		where = append(where, "employer_id = ?")
		args = append(args, f.EmployerID)
	}
	if f.TitlePrefix != "" {
		where = append(where, "substr(title, 1, ?) = ?")
		args = append(args, utf8.RuneCountInString(f.TitlePrefix), f.TitlePrefix)
	}
	if f.CityPrefix != "" {
		where = append(where, "substr(city, 1, ?) = ?")
		args = append(args, utf8.RuneCountInString(f.CityPrefix), f.CityPrefix)
	}
	if f.Experience != "" {
		where = append(where, "experience = ?")
		args = append(args, f.Experience)
	}
	if f.MinSalary != nil {
		where = append(where, "salary_from IS NOT NULL AND salary_from >= ?")
		args = append(args, *f.MinSalary)
	}

	q := `SELECT ` + jobColumns + ` FROM jobs`
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY created_at DESC, id DESC"
	if f.Limit > 0 {
		q += " LIMIT ?"
		args = append(args, f.Limit)
	}
	return db.queryJobs(ctx, q, args...)
}

// FindJobsByIdentity returns every row carrying the given business identity.
func (db *DB) FindJobsByIdentity(ctx context.Context, k model.JobIdentity) ([]model.Job, error) {
	return db.queryJobs(ctx, `
		SELECT `+jobColumns+` FROM jobs
		WHERE employer_id = ? AND title = ? AND created_at = ?
		ORDER BY id ASC`, k.EmployerID, k.Title, k.CreatedAt)
}

// DeleteDuplicateJobs keeps the lowest key of each business identity and
// removes the rest. It returns the number of rows removed.
func (db *DB) DeleteDuplicateJobs(ctx context.Context) (int64, error) {
	res, err := db.ExecContext(ctx, `
		DELETE FROM jobs WHERE id NOT IN (
			SELECT MIN(id) FROM jobs GROUP BY employer_id, title, created_at
		)`)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	db.changed("jobs", "dedup", 0, res)
	return n, nil
}

func (db *DB) queryJobs(ctx context.Context, q string, args ...any) ([]model.Job, error) {
	rows, err := db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var jobs []model.Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanJob(s scanner) (model.Job, error) {
	var (
		j        model.Job
		from, to sql.NullInt64
	)
	err := s.Scan(&j.ID, &j.Title, &from, &to, &j.Currency, &j.Experience, &j.Description, &j.City,
		&j.AboutUs, &j.RequiredQualities, &j.Offer, &j.KeySkills, &j.EmployerID, &j.CreatedAt)
	if err != nil {
		return model.Job{}, err
	}
	if from.Valid {
		j.SalaryFrom = model.Salary(int(from.Int64))
	}
	if to.Valid {
		j.SalaryTo = model.Salary(int(to.Int64))
	}
	return j, nil
}

func nullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}
