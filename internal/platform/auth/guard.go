package auth

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// RequireRole returns middleware enforcing the role guard contract: no
// usable session → 401; role outside the allow-list → 303 to that role's
// own landing path (never a generic error page). The test role passes every
// role guard.
func RequireRole(allowed ...Role) echo.MiddlewareFunc {
	allowSet := make(map[Role]struct{}, len(allowed))
	for _, r := range allowed {
		allowSet[r] = struct{}{}
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			role, ok := RoleFromContext(c.Request().Context())
			if !ok {
				return echo.NewHTTPError(http.StatusUnauthorized, "no role resolved for session")
			}

			if role == RoleTest {
				return next(c)
			}
			if _, ok := allowSet[role]; ok {
				return next(c)
			}

			return c.Redirect(http.StatusSeeOther, role.DefaultPath())
		}
	}
}

// RequireAuth only checks that a usable session exists; any known role passes.
func RequireAuth() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if _, ok := RoleFromContext(c.Request().Context()); !ok {
				return echo.NewHTTPError(http.StatusUnauthorized, "no role resolved for session")
			}
			return next(c)
		}
	}
}
