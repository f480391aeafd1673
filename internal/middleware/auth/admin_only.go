package auth

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/bookstore/internal/logging"
)

func RequireAdmin(src SnapshotSource) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			l := logging.FromContext(c.Request().Context())
			snap, err := authenticated(src)
			if err != nil {
				l.Warn("require_admin_denied", "state", snap.State.String())
				return err
			}
			if !snap.IsAdmin() {
				l.Warn("require_admin_denied", "user_id", snap.User.ID, "role", snap.User.RoleName)
				return echo.NewHTTPError(http.StatusForbidden, "you don't have enough rights")
			}
			setUserContext(c, snap.User)
			return next(c)
		}
	}
}
