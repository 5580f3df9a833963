package model

import (
	"fmt"
	"strconv"
)

// DefaultCurrency is used when a job does not name one.
const DefaultCurrency = "RUB"

// Job is a listing posted by an employer.
type Job struct {
	ID                int64  `json:"id"`
	Title             string `json:"title" validate:"required"`
	SalaryFrom        *int   `json:"salaryFrom,omitempty" validate:"omitempty,min=0"`
	SalaryTo          *int   `json:"salaryTo,omitempty" validate:"omitempty,min=0"`
	Currency          string `json:"salaryCurrency"`
	Experience        string `json:"experience"`
	Description       string `json:"description"`
	City              string `json:"city"`
	AboutUs           string `json:"aboutUs"`
	RequiredQualities string `json:"requiredQualities"`
	Offer             string `json:"offer"`
	KeySkills         string `json:"keySkills"`
	EmployerID        int64  `json:"employerId" validate:"required"`
	// CreatedAt is milliseconds since epoch, fixed at creation.
	CreatedAt int64 `json:"createdAt"`
}

// JobIdentity is the business identity of a job. Storage keys differ between
// stores; the identity does not.
type JobIdentity struct {
	EmployerID int64
	Title      string
	CreatedAt  int64
}

func (k JobIdentity) String() string {
	return strconv.FormatInt(k.EmployerID, 10) + "_" + k.Title + "_" + strconv.FormatInt(k.CreatedAt, 10)
}

// Identity returns the job's business identity.
func (j Job) Identity() JobIdentity {
	return JobIdentity{EmployerID: j.EmployerID, Title: j.Title, CreatedAt: j.CreatedAt}
}

// SalaryString renders the salary range for display, or "" when neither bound is set.
func (j Job) SalaryString() string {
	cur := j.Currency
	if cur == "" {
		cur = DefaultCurrency
	}
	switch {
	case j.SalaryFrom != nil && j.SalaryTo != nil:
		return fmt.Sprintf("%d - %d %s", *j.SalaryFrom, *j.SalaryTo, cur)
	case j.SalaryFrom != nil:
		return fmt.Sprintf("from %d %s", *j.SalaryFrom, cur)
	case j.SalaryTo != nil:
		return fmt.Sprintf("up to %d %s", *j.SalaryTo, cur)
	default:
		return ""
	}
}

// Salary returns a pointer to v, for building jobs with salary bounds.
func Salary(v int) *int {
	return &v
}
