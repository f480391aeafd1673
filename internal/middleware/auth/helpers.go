package auth

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/bookstore/internal/models"
	"github.com/Skotchmaster/bookstore/internal/session"
)

const userKey = "user"

type SnapshotSource interface {
	Snapshot() session.Snapshot
}

func setUserContext(c echo.Context, user *models.UserIdentity) {
	c.Set(userKey, user)
}

// UserFromContext returns the identity a guard stored for this request.
func UserFromContext(c echo.Context) (*models.UserIdentity, bool) {
	user, ok := c.Get(userKey).(*models.UserIdentity)
	return user, ok && user != nil
}

// authenticated resolves the current snapshot or the error the guard should
// answer with. A session still hydrating is not yet a decision.
func authenticated(src SnapshotSource) (session.Snapshot, error) {
	snap := src.Snapshot()
	if snap.Loading {
		return snap, echo.NewHTTPError(http.StatusServiceUnavailable, "session is loading")
	}
	if !snap.IsAuthenticated() {
		return snap, echo.NewHTTPError(http.StatusUnauthorized, "login required")
	}
	return snap, nil
}
