package repository

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/matheus3301/jobboard/internal/identity"
	"github.com/matheus3301/jobboard/internal/model"
	"github.com/matheus3301/jobboard/internal/remote"
)

func TestDecodeJob(t *testing.T) {
	doc := remote.Document{ID: "abc", Data: map[string]any{
		"title":      "Go developer",
		"salaryFrom": float64(100),
		"resume":     "write Go",
		"weOffer":    "tea",
		"employerId": "9007199254740993",
		"createdAt":  float64(1000),
	}}
	got, err := decodeJob(doc)
	if err != nil {
		t.Fatal(err)
	}
	want := model.Job{
		ID:          identity.RemoteKey("abc"),
		Title:       "Go developer",
		SalaryFrom:  model.Salary(100),
		Currency:    model.DefaultCurrency,
		Description: "write Go",
		Offer:       "tea",
		EmployerID:  9007199254740993,
		CreatedAt:   1000,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("decodeJob (-want +got):\n%s", diff)
	}
}

func TestDecodeRejectsMalformed(t *testing.T) {
	tests := []struct {
		name   string
		decode func(remote.Document) error
		data   map[string]any
	}{
		{"job without title", func(d remote.Document) error { _, err := decodeJob(d); return err },
			map[string]any{"employerId": "1", "createdAt": float64(1)}},
		{"job with fractional employer", func(d remote.Document) error { _, err := decodeJob(d); return err },
			map[string]any{"title": "x", "employerId": 1.5, "createdAt": float64(1)}},
		{"user without email", func(d remote.Document) error { _, err := decodeUser(d); return err },
			map[string]any{"username": "ivan"}},
		{"user photo out of range", func(d remote.Document) error { _, err := decodeUser(d); return err },
			map[string]any{"email": "a@b.c", "username": "ivan", "profilePhotoId": float64(12)}},
		{"message with bad sender", func(d remote.Document) error { _, err := decodeMessage(d); return err },
			map[string]any{"senderId": "abc", "receiverId": "2", "text": "hi", "timestamp": float64(1)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.decode(remote.Document{ID: "x", Data: tt.data}); err == nil {
				t.Error("expected an error")
			}
		})
	}
}

func TestDecodeUserNormalizes(t *testing.T) {
	u, err := decodeUser(remote.Document{ID: "u1", Data: map[string]any{
		"email":    " Ivan@Example.com",
		"username": "IVAN",
	}})
	if err != nil {
		t.Fatal(err)
	}
	if u.Email != "ivan@example.com" || u.Username != "ivan" || u.ID != identity.RemoteKey("u1") {
		t.Errorf("user = %+v", u)
	}
}
