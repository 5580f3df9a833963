package model

import "strings"

// MaxPhotoID is the highest built-in profile photo selector. Zero is the default avatar.
const MaxPhotoID = 6

// User is a registered account. Email and Username are unique after Normalize.
type User struct {
	ID         int64  `json:"id"`
	FirstName  string `json:"firstName" validate:"required"`
	LastName   string `json:"lastName" validate:"required"`
	MiddleName string `json:"middleName,omitempty"`
	Email      string `json:"email" validate:"required,email"`
	Phone      string `json:"phone"`
	Username   string `json:"username" validate:"required"`
	// Password is stored and compared in plain text.
	Password string `json:"password" validate:"required"`
	PhotoID  int    `json:"profilePhotoId" validate:"min=0,max=6"`
	PhotoURL string `json:"profilePhotoUrl,omitempty"`
}

// Normalize lowercases and trims s the way emails and usernames are compared.
func Normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Normalized returns a copy of u with email and username normalized.
func (u User) Normalized() User {
	u.Email = Normalize(u.Email)
	u.Username = Normalize(u.Username)
	return u
}

// DisplayName returns "First Last", falling back to the username.
func (u User) DisplayName() string {
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name == "" {
		return u.Username
	}
	return name
}

// Photo reports which avatar to show. An uploaded photo URL wins over the selector.
func (u User) Photo() (url string, selector int) {
	if strings.TrimSpace(u.PhotoURL) != "" {
		return u.PhotoURL, 0
	}
	return "", u.PhotoID
}
