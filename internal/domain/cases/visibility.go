package cases

import (
	"github.com/labflow/labflow/internal/platform/auth"
)

// RoleView is the slice of the case table a session is allowed to see.
// Empty ExamTypes means every exam type; empty Branch means every branch.
type RoleView struct {
	ExamTypes []ExamType
	Branch    string
}

// Visibility derives the view for a role and its assigned branch.
// Residents see biopsies only, cytotechnologists cytologies only; owners,
// pathologists and the test role see every exam type. Employees, residents
// and cytotechnologists are pinned to their branch when one is assigned.
func Visibility(role auth.Role, branch string) RoleView {
	v := RoleView{}

	switch role {
	case auth.RoleResidente:
		v.ExamTypes = []ExamType{ExamBiopsia}
	case auth.RoleCitotecno:
		v.ExamTypes = []ExamType{ExamCitologia}
	}

	switch role {
	case auth.RoleEmployee, auth.RoleResidente, auth.RoleCitotecno:
		v.Branch = branch
	}

	return v
}

// Allows reports whether a single case falls inside the view.
func (v RoleView) Allows(c Case) bool {
	if v.Branch != "" && c.Branch != v.Branch {
		return false
	}
	if len(v.ExamTypes) == 0 {
		return true
	}
	for _, et := range v.ExamTypes {
		if c.ExamType == et {
			return true
		}
	}
	return false
}

// FilterVisible drops rows outside the view. It is the in-memory fallback
// for rows fetched without a page window; paginated queries carry the same
// rules in SQL and must not be filtered again.
func FilterVisible(rows []Case, v RoleView) []Case {
	out := make([]Case, 0, len(rows))
	for _, c := range rows {
		if v.Allows(c) {
			out = append(out, c)
		}
	}
	return out
}
