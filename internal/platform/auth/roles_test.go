package auth

import "testing"

func TestParseRole(t *testing.T) {
	tests := []struct {
		in     string
		want   Role
		wantOK bool
	}{
		{"owner", RoleOwner, true},
		{"employee", RoleEmployee, true},
		{"residente", RoleResidente, true},
		{"citotecno", RoleCitotecno, true},
		{"patologo", RolePatologo, true},
		{"test", RoleTest, true},
		{"others", "", false},
		{"admin", "", false},
		{"", "", false},
		{"OWNER", "", false},
	}

	for _, tt := range tests {
		got, ok := ParseRole(tt.in)
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("ParseRole(%q) = (%q, %v), want (%q, %v)", tt.in, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestDefaultPathIsTotal(t *testing.T) {
	for _, r := range AllRoles() {
		if r.DefaultPath() == EntryPath {
			t.Errorf("role %q falls through to the entry path; mapping must be total", r)
		}
	}
	if got := Role("unknown").DefaultPath(); got != EntryPath {
		t.Errorf("unknown role DefaultPath() = %q, want %q", got, EntryPath)
	}
}

func TestDefaultPaths(t *testing.T) {
	want := map[Role]string{
		RoleOwner:     "/dashboard",
		RoleEmployee:  "/cases",
		RoleResidente: "/cases",
		RoleCitotecno: "/screening",
		RolePatologo:  "/review",
		RoleTest:      "/dashboard",
	}
	for r, path := range want {
		if got := r.DefaultPath(); got != path {
			t.Errorf("%s.DefaultPath() = %q, want %q", r, got, path)
		}
	}
}
