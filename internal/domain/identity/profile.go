// Package identity resolves the application profile behind an
// authenticated session. A token can outlive its profile row; that state is
// surfaced as a forced signout, never as a server error.
package identity

import (
	"errors"
	"time"

	"github.com/labflow/labflow/internal/platform/auth"
)

// ErrProfileNotFound marks an authenticated session whose profile row is
// gone. Handlers translate it to 401 with a forced-signout header so the
// client clears its session instead of retrying.
var ErrProfileNotFound = errors.New("profile not found for session")

// Branding is the per-user presentation preference, persisted server-side.
type Branding struct {
	LabName      string `json:"labName,omitempty"`
	LogoURL      string `json:"logoUrl,omitempty"`
	PrimaryColor string `json:"primaryColor,omitempty"`
}

// Profile is the application-level identity of a user within a laboratory.
type Profile struct {
	UserID    string    `json:"userId"`
	Email     string    `json:"email"`
	FullName  string    `json:"fullName"`
	Role      auth.Role `json:"role"`
	Branch    string    `json:"branch,omitempty"`
	Branding  Branding  `json:"branding"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
