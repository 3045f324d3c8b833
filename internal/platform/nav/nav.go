// Package nav holds the declarative route table: each descriptor maps a
// path prefix to a mount function, an optional role allow-list, and an
// optional required feature key. Descriptors are defined at build time and
// never mutated at runtime.
package nav

import (
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/labflow/labflow/internal/platform/auth"
	"github.com/labflow/labflow/internal/platform/features"
)

// RouteDescriptor declares one guarded route subtree.
type RouteDescriptor struct {
	// Path is the URL prefix the subtree mounts under.
	Path string
	// Roles is the allow-list for the role guard; empty means any
	// authenticated role.
	Roles []auth.Role
	// Feature, when set, requires the tenant flag via the route-level
	// feature guard (applies to every role, test role included).
	Feature string
	// Fallback is where the feature guard redirects when the flag is off.
	// Empty means the entry path.
	Fallback string
	// Mount registers the subtree's handlers on the prepared group.
	Mount func(g *echo.Group)
}

// Register wires every descriptor onto the router with its guards in
// order: role guard first, then the feature guard.
func Register(e *echo.Echo, routes []RouteDescriptor, resolver *features.Resolver, logger zerolog.Logger) {
	for _, rd := range routes {
		var mw []echo.MiddlewareFunc

		if len(rd.Roles) > 0 {
			mw = append(mw, auth.RequireRole(rd.Roles...))
		} else {
			mw = append(mw, auth.RequireAuth())
		}

		if rd.Feature != "" {
			fallback := rd.Fallback
			if fallback == "" {
				fallback = auth.EntryPath
			}
			mw = append(mw, features.Require(resolver, rd.Feature, fallback, logger))
		}

		g := e.Group(rd.Path, mw...)
		if rd.Mount != nil {
			rd.Mount(g)
		}
	}
}
