package auth

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

const (
	RoleAdmin     = "admin"
	RoleExpert    = "expert"
	RoleCaregiver = "caregiver"
)

// RequireRole returns middleware that checks if the user has at least one of
// the specified roles. Admins pass every check.
func RequireRole(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			userRoles := RolesFromContext(c.Request().Context())
			for _, required := range roles {
				for _, has := range userRoles {
					if has == required || has == RoleAdmin {
						return next(c)
					}
				}
			}
			return echo.NewHTTPError(http.StatusForbidden,
				fmt.Sprintf("required role: %s", strings.Join(roles, " or ")))
		}
	}
}

// AuthorizePatient checks that the caller may act on patientID. Experts and
// admins see every patient; a caregiver only the child named in their
// token's patient claim.
func AuthorizePatient(ctx context.Context, patientID uuid.UUID) error {
	for _, r := range RolesFromContext(ctx) {
		if r == RoleExpert || r == RoleAdmin {
			return nil
		}
	}
	claimed, err := uuid.Parse(PatientFromContext(ctx))
	if err != nil || claimed != patientID {
		return echo.NewHTTPError(http.StatusForbidden, "access to this patient is not permitted")
	}
	return nil
}
