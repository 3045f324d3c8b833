// Package laboratory manages the tenant's laboratory record: identity,
// branch list and the feature map that drives route and inline gating.
package laboratory

import (
	"errors"
	"time"
)

var ErrNotFound = errors.New("laboratory record not found")

// Laboratory is the single per-tenant configuration row.
type Laboratory struct {
	Name      string          `json:"name"`
	Branches  []string        `json:"branches"`
	Features  map[string]bool `json:"features"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
}
