// Package patients holds the patient registry backing case registration.
package patients

import (
	"errors"
	"time"
)

var (
	ErrNotFound    = errors.New("patient not found")
	ErrMissingName = errors.New("patient name is required")
)

type Patient struct {
	ID        string     `json:"id"`
	FirstName string     `json:"firstName"`
	LastName  string     `json:"lastName"`
	Email     string     `json:"email,omitempty"`
	Phone     string     `json:"phone,omitempty"`
	BirthDate *time.Time `json:"birthDate,omitempty"`
	Gender    string     `json:"gender,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

// FullName is the display name used on case rows and report emails.
func (p Patient) FullName() string {
	if p.LastName == "" {
		return p.FirstName
	}
	return p.FirstName + " " + p.LastName
}
