// Package callcenter logs inbound patient calls; the whole area sits behind
// the callcenter feature flag.
package callcenter

import (
	"errors"
	"time"
)

// Call states.
const (
	StatusPendiente = "pendiente"
	StatusAtendido  = "atendido"
)

var (
	ErrNotFound      = errors.New("call log not found")
	ErrMissingCaller = errors.New("caller name or phone is required")
)

type CallLog struct {
	ID         string    `json:"id"`
	CallerName string    `json:"callerName,omitempty"`
	Phone      string    `json:"phone,omitempty"`
	CaseCode   string    `json:"caseCode,omitempty"`
	Reason     string    `json:"reason"`
	Notes      string    `json:"notes,omitempty"`
	Status     string    `json:"status"`
	CreatedBy  string    `json:"createdBy"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}
