package cases

import (
	"strings"
	"time"

	"github.com/labflow/labflow/pkg/pagination"
)

// Query collects every case-list filter into one value so the repository
// composes the WHERE clause in a single pass. User filters and session
// visibility restrictions live side by side; both are applied exactly once,
// in SQL, never re-applied on the result set.
type Query struct {
	pagination.Params

	Search         string
	ExamType       ExamType
	DocStatus      string
	PDFStatus      string
	CytologyStatus string
	Branch         string
	PaymentStatus  string
	Doctors        []string
	Origins        []string
	DateFrom       *time.Time
	DateTo         *time.Time

	// Visibility restrictions derived from the session role; set by
	// Restrict, never from request input.
	VisibleExamTypes []ExamType
	VisibleBranch    string
}

// Normalize cleans request input in place. A whitespace-only search term is
// dropped entirely so it never reaches the WHERE clause.
func (q *Query) Normalize() {
	q.Search = strings.TrimSpace(q.Search)
	q.Branch = strings.TrimSpace(q.Branch)
	q.Doctors = trimNonEmpty(q.Doctors)
	q.Origins = trimNonEmpty(q.Origins)
}

func trimNonEmpty(vals []string) []string {
	out := vals[:0]
	for _, v := range vals {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// Restrict stamps the session's visibility rules onto the query. A user
// filter that falls outside the visible set simply yields an empty result:
// both conditions land in the same WHERE clause.
func (q *Query) Restrict(role RoleView) {
	q.VisibleExamTypes = role.ExamTypes
	q.VisibleBranch = role.Branch
}

// Paginated reports whether the query carries a page window.
func (q Query) Paginated() bool {
	return q.PageSize > 0
}
