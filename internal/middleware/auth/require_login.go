package auth

import (
	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/bookstore/internal/logging"
)

func RequireLogin(src SnapshotSource) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			snap, err := authenticated(src)
			if err != nil {
				logging.FromContext(c.Request().Context()).Warn("require_login_denied", "state", snap.State.String())
				return err
			}
			setUserContext(c, snap.User)
			return next(c)
		}
	}
}
