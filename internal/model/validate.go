package model

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

var (
	// ErrValidation wraps every boundary validation failure.
	ErrValidation = errors.New("validation failed")
	// ErrInvalidSalaryRange is returned when salaryFrom exceeds salaryTo.
	ErrInvalidSalaryRange = fmt.Errorf("%w: salary from exceeds salary to", ErrValidation)
	// ErrInvalidPhoto is returned for a photo selector outside 0..MaxPhotoID.
	ErrInvalidPhoto = fmt.Errorf("%w: profile photo selector out of range", ErrValidation)
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterStructValidation(salaryRange, Job{})
	return v
}

func salaryRange(sl validator.StructLevel) {
	j, ok := sl.Current().Interface().(Job)
	if !ok {
		return
	}
	if j.SalaryFrom != nil && j.SalaryTo != nil && *j.SalaryFrom > *j.SalaryTo {
		sl.ReportError(j.SalaryFrom, "SalaryFrom", "SalaryFrom", "salaryrange", "")
	}
}

// Validate checks the job at the write boundary.
func (j Job) Validate() error {
	return check(j)
}

// Validate checks the user at the write boundary.
func (u User) Validate() error {
	return check(u)
}

// Validate checks the message at the write boundary.
func (m Message) Validate() error {
	return check(m)
}

// ValidatePhotoID checks a profile photo selector.
func ValidatePhotoID(id int) error {
	if id < 0 || id > MaxPhotoID {
		return fmt.Errorf("%w: %d", ErrInvalidPhoto, id)
	}
	return nil
}

func check(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	for _, fe := range fieldErrs {
		switch {
		case fe.Tag() == "salaryrange":
			return ErrInvalidSalaryRange
		case fe.Field() == "PhotoID":
			return fmt.Errorf("%w: %v", ErrInvalidPhoto, fe.Value())
		}
	}
	return fmt.Errorf("%w: %v", ErrValidation, fieldErrs)
}
