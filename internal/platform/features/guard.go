package features

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/labflow/labflow/internal/platform/db"
)

// Require returns route-level middleware that denies the route unless the
// tenant's feature map marks key enabled. Unlike the inline check, the flag
// applies to every role uniformly — the test role included. When the tenant
// record cannot be resolved, allow-listed keys hold with 503 instead of
// redirecting to fallbackPath.
func Require(resolver *Resolver, key, fallbackPath string, logger zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := c.Request().Context()
			tenantID := db.TenantFromContext(ctx)

			flags, err := resolver.Resolve(ctx, tenantID)
			if err != nil {
				logger.Warn().Err(err).Str("tenant", tenantID).Str("feature", key).
					Msg("feature map unavailable")
				if HeldOnLoading(key) {
					return echo.NewHTTPError(http.StatusServiceUnavailable, "feature configuration loading")
				}
				return c.Redirect(http.StatusSeeOther, fallbackPath)
			}

			if !flags[key] {
				return c.Redirect(http.StatusSeeOther, fallbackPath)
			}

			return next(c)
		}
	}
}
