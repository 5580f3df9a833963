package api

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/matheus3301/jobboard/internal/model"
	"github.com/matheus3301/jobboard/internal/repository"
	"google.golang.org/grpc/codes"
	grpcstatus "google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// Keys are 63-bit hashes, beyond what a Struct number holds exactly, so
// they travel as decimal strings.

func key(id int64) string {
	return strconv.FormatInt(id, 10)
}

// ParseKey reads a key sent as a decimal string or an integral number.
func ParseKey(v any) (int64, error) {
	switch v := v.(type) {
	case string:
		return strconv.ParseInt(strings.TrimSpace(v), 10, 64)
	case float64:
		if v != math.Trunc(v) || math.Abs(v) > 1<<53 {
			return 0, fmt.Errorf("key %v is not an exact integer", v)
		}
		return int64(v), nil
	case nil:
		return 0, nil
	}
	return 0, fmt.Errorf("key of type %T", v)
}

// args reads request fields.
type args struct {
	m map[string]any
}

func argsOf(in *structpb.Struct) args {
	return args{m: in.AsMap()}
}

func (a args) has(k string) bool {
	_, ok := a.m[k]
	return ok
}

func (a args) str(k string) string {
	s, _ := a.m[k].(string)
	return s
}

func (a args) num(k string) (float64, bool) {
	f, ok := a.m[k].(float64)
	return f, ok
}

func (a args) int(k string) int {
	f, _ := a.num(k)
	return int(f)
}

func (a args) optInt(k string) *int {
	if f, ok := a.num(k); ok {
		return model.Salary(int(f))
	}
	return nil
}

func (a args) key(k string) (int64, error) {
	id, err := ParseKey(a.m[k])
	if err != nil {
		return 0, grpcstatus.Errorf(codes.InvalidArgument, "%s: %v", k, err)
	}
	return id, nil
}

func (a args) requiredKey(k string) (int64, error) {
	id, err := a.key(k)
	if err == nil && id == 0 {
		err = grpcstatus.Errorf(codes.InvalidArgument, "%s is required", k)
	}
	return id, err
}

func toStruct(m map[string]any) (*structpb.Struct, error) {
	s, err := structpb.NewStruct(m)
	if err != nil {
		return nil, grpcstatus.Errorf(codes.Internal, "encode response: %v", err)
	}
	return s, nil
}

// toStatus maps repository errors to gRPC codes.
func toStatus(op string, err error) error {
	switch {
	case errors.Is(err, model.ErrValidation):
		return grpcstatus.Errorf(codes.InvalidArgument, "%s: %v", op, err)
	case errors.Is(err, repository.ErrNotFound):
		return grpcstatus.Errorf(codes.NotFound, "%s: %v", op, err)
	default:
		return grpcstatus.Errorf(codes.Internal, "%s: %v", op, err)
	}
}

func jobMap(j model.Job) map[string]any {
	m := map[string]any{
		"id":                 key(j.ID),
		"title":              j.Title,
		"currency":           j.Currency,
		"experience":         j.Experience,
		"description":        j.Description,
		"city":               j.City,
		"about_us":           j.AboutUs,
		"required_qualities": j.RequiredQualities,
		"offer":              j.Offer,
		"key_skills":         j.KeySkills,
		"employer_id":        key(j.EmployerID),
		"created_at":         float64(j.CreatedAt),
		"salary":             j.SalaryString(),
	}
	if j.SalaryFrom != nil {
		m["salary_from"] = float64(*j.SalaryFrom)
	}
	if j.SalaryTo != nil {
		m["salary_to"] = float64(*j.SalaryTo)
	}
	return m
}

func jobFromArgs(a args) (model.Job, error) {
	employer, err := a.key("employer_id")
	if err != nil {
		return model.Job{}, err
	}
	created, _ := a.num("created_at")
	return model.Job{
		Title:             a.str("title"),
		SalaryFrom:        a.optInt("salary_from"),
		SalaryTo:          a.optInt("salary_to"),
		Currency:          a.str("currency"),
		Experience:        a.str("experience"),
		Description:       a.str("description"),
		City:              a.str("city"),
		AboutUs:           a.str("about_us"),
		RequiredQualities: a.str("required_qualities"),
		Offer:             a.str("offer"),
		KeySkills:         a.str("key_skills"),
		EmployerID:        employer,
		CreatedAt:         int64(created),
	}, nil
}

func filterFromArgs(a args) (repository.JobFilter, error) {
	employer, err := a.key("employer_id")
	if err != nil {
		return repository.JobFilter{}, err
	}
	return repository.JobFilter{
		EmployerID:  employer,
		TitlePrefix: a.str("title_prefix"),
		CityPrefix:  a.str("city_prefix"),
		Experience:  a.str("experience"),
		MinSalary:   a.optInt("min_salary"),
		Limit:       a.int("limit"),
	}, nil
}

// userMap leaves the password out.
func userMap(u model.User) map[string]any {
	url, selector := u.Photo()
	return map[string]any{
		"id":           key(u.ID),
		"first_name":   u.FirstName,
		"last_name":    u.LastName,
		"middle_name":  u.MiddleName,
		"email":        u.Email,
		"phone":        u.Phone,
		"username":     u.Username,
		"display_name": u.DisplayName(),
		"photo_id":     float64(selector),
		"photo_url":    url,
	}
}

func userFromArgs(a args) model.User {
	return model.User{
		FirstName:  a.str("first_name"),
		LastName:   a.str("last_name"),
		MiddleName: a.str("middle_name"),
		Email:      a.str("email"),
		Phone:      a.str("phone"),
		Username:   a.str("username"),
		Password:   a.str("password"),
		PhotoID:    a.int("photo_id"),
	}
}

func messageMap(m model.Message) map[string]any {
	return map[string]any{
		"id":          key(m.ID),
		"sender_id":   key(m.SenderID),
		"receiver_id": key(m.ReceiverID),
		"text":        m.Text,
		"timestamp":   float64(m.Timestamp),
	}
}

func writeMap(w repository.WriteResult) map[string]any {
	return map[string]any{
		"id":       key(w.Key),
		"mirrored": w.Mirrored,
		"existing": w.Existing,
	}
}

func itemsMap[T any](items []T, source repository.Source, conv func(T) map[string]any) map[string]any {
	out := make([]any, 0, len(items))
	for _, it := range items {
		out = append(out, conv(it))
	}
	m := map[string]any{"items": out}
	if source != 0 {
		m["source"] = source.String()
	}
	return m
}

func resultMap[T any](r repository.Result[T], name string, conv func(T) map[string]any) map[string]any {
	m := map[string]any{"found": r.Found, "source": r.Source.String()}
	if r.Found {
		m[name] = conv(r.Value)
	}
	return m
}
