package model

import (
	"errors"
	"testing"
	"time"
)

func validJob() Job {
	return Job{Title: "Go developer", EmployerID: 7, CreatedAt: 1000}
}

func TestJobValidateSalaryRange(t *testing.T) {
	tests := []struct {
		name    string
		from    *int
		to      *int
		wantErr error
	}{
		{"both unset", nil, nil, nil},
		{"only from", Salary(5000), nil, nil},
		{"only to", nil, Salary(3000), nil},
		{"equal bounds", Salary(3000), Salary(3000), nil},
		{"from below to", Salary(3000), Salary(5000), nil},
		{"from above to", Salary(5000), Salary(3000), ErrInvalidSalaryRange},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			j := validJob()
			j.SalaryFrom, j.SalaryTo = tt.from, tt.to
			err := j.Validate()
			if tt.wantErr == nil && err != nil {
				t.Fatalf("Validate() error = %v, want nil", err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Fatalf("Validate() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestJobValidateRequiredFields(t *testing.T) {
	j := validJob()
	j.Title = ""
	if err := j.Validate(); !errors.Is(err, ErrValidation) {
		t.Errorf("empty title: error = %v, want ErrValidation", err)
	}

	j = validJob()
	j.EmployerID = 0
	if err := j.Validate(); !errors.Is(err, ErrValidation) {
		t.Errorf("missing employer: error = %v, want ErrValidation", err)
	}
}

func TestSalaryRangeIsValidationError(t *testing.T) {
	if !errors.Is(ErrInvalidSalaryRange, ErrValidation) {
		t.Error("ErrInvalidSalaryRange should wrap ErrValidation")
	}
}

func TestJobSalaryString(t *testing.T) {
	j := validJob()
	if got := j.SalaryString(); got != "" {
		t.Errorf("no bounds: got %q, want empty", got)
	}
	j.SalaryFrom, j.SalaryTo = Salary(100), Salary(200)
	if got := j.SalaryString(); got != "100 - 200 RUB" {
		t.Errorf("got %q, want %q", got, "100 - 200 RUB")
	}
	j.SalaryTo = nil
	j.Currency = "USD"
	if got := j.SalaryString(); got != "from 100 USD" {
		t.Errorf("got %q, want %q", got, "from 100 USD")
	}
}

func TestJobIdentityIgnoresStorageKey(t *testing.T) {
	a := validJob()
	b := validJob()
	a.ID, b.ID = 1, 2
	b.City = "Almaty"
	if a.Identity() != b.Identity() {
		t.Errorf("identity differs: %v vs %v", a.Identity(), b.Identity())
	}
	if a.Identity().String() != "7_Go developer_1000" {
		t.Errorf("identity string = %q", a.Identity().String())
	}
}

func TestUserValidate(t *testing.T) {
	u := User{FirstName: "Ann", LastName: "Lee", Email: "ann@example.com", Username: "ann", Password: "pw"}
	if err := u.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	u.PhotoID = 7
	if err := u.Validate(); !errors.Is(err, ErrInvalidPhoto) {
		t.Errorf("photo 7: error = %v, want ErrInvalidPhoto", err)
	}
	u.PhotoID = 0
	u.Email = "not-an-email"
	if err := u.Validate(); !errors.Is(err, ErrValidation) {
		t.Errorf("bad email: error = %v, want ErrValidation", err)
	}
}

func TestUserNormalizedAndDisplay(t *testing.T) {
	u := User{FirstName: "Ann", LastName: "Lee", Email: "  Ann@Example.COM ", Username: " AnnL"}
	n := u.Normalized()
	if n.Email != "ann@example.com" || n.Username != "annl" {
		t.Errorf("Normalized() = %q %q", n.Email, n.Username)
	}
	if got := u.DisplayName(); got != "Ann Lee" {
		t.Errorf("DisplayName() = %q, want Ann Lee", got)
	}

	u.PhotoID = 3
	if url, sel := u.Photo(); url != "" || sel != 3 {
		t.Errorf("Photo() = %q, %d; want selector 3", url, sel)
	}
	u.PhotoURL = "https://cdn.example.com/a.png"
	if url, sel := u.Photo(); url != u.PhotoURL || sel != 0 {
		t.Errorf("Photo() = %q, %d; want url to win", url, sel)
	}
}

func TestMessageNear(t *testing.T) {
	m := Message{SenderID: 1, ReceiverID: 2, Text: "hi", Timestamp: 10_000}
	o := m
	o.Timestamp = 12_999
	if !m.Near(o, 3*time.Second) {
		t.Error("2999ms apart should be near within 3s")
	}
	o.Timestamp = 13_000
	if m.Near(o, 3*time.Second) {
		t.Error("3000ms apart should not be near within 3s")
	}
	o = m
	o.SenderID, o.ReceiverID = 2, 1
	if m.Near(o, 3*time.Second) {
		t.Error("reversed direction is different content")
	}
}

func TestConversationOfIsUnordered(t *testing.T) {
	if ConversationOf(5, 3) != ConversationOf(3, 5) {
		t.Error("conversation should not depend on argument order")
	}
	m := Message{SenderID: 9, ReceiverID: 4}
	if got := m.Conversation(); got.Low != 4 || got.High != 9 {
		t.Errorf("Conversation() = %+v", got)
	}
}
