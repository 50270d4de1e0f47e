package models

import (
	"strings"
	"unicode/utf8"
)

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginResponse struct {
	Message string    `json:"message"`
	User    *AuthUser `json:"user"`
	Token   string    `json:"token"`
}

// AuthUser is the authenticated identity record. It is owned by the session
// service; everything else holds read-only copies.
type AuthUser struct {
	UserID     int    `json:"user_id"`
	Email      string `json:"email"`
	FirstName  string `json:"first_name"`
	MiddleName string `json:"middle_name,omitempty"`
	LastName   string `json:"last_name"`
	Role       string `json:"role,omitempty"`
	Campus     string `json:"campus,omitempty"`
	CampusID   int    `json:"campus_id,omitempty"`
}

// ProfileUpdate carries a partial profile change. Nil fields are left
// untouched by the server.
type ProfileUpdate struct {
	Email      *string `json:"email,omitempty"`
	FirstName  *string `json:"first_name,omitempty"`
	MiddleName *string `json:"middle_name,omitempty"`
	LastName   *string `json:"last_name,omitempty"`
	Campus     *string `json:"campus,omitempty"`
}

// FullName joins the non-empty name parts with single spaces.
func (u *AuthUser) FullName() string {
	if u == nil {
		return "Unknown User"
	}
	name := joinNameParts(u.FirstName, u.MiddleName, u.LastName)
	if name == "" {
		return "Unknown User"
	}
	return name
}

// Initials returns the uppercased first letter of every name part.
func (u *AuthUser) Initials() string {
	var b strings.Builder
	for _, part := range strings.Fields(u.FullName()) {
		r, _ := utf8.DecodeRuneInString(part)
		b.WriteString(strings.ToUpper(string(r)))
	}
	return b.String()
}

func joinNameParts(parts ...string) string {
	kept := parts[:0:0]
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part != "" {
			kept = append(kept, part)
		}
	}
	return strings.Join(kept, " ")
}
