package httpserver

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/bookstore/internal/query"
	"github.com/Skotchmaster/bookstore/internal/session"
	"github.com/Skotchmaster/bookstore/pkg/apiclient"
)

type Response struct {
	Status   string `json:"status"`
	Message  string `json:"message,omitempty"`
	Redirect string `json:"redirect,omitempty"`
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, query.ErrStale), errors.Is(err, session.ErrSuperseded):
		return http.StatusConflict
	case errors.Is(err, session.ErrEmptyToken):
		return http.StatusBadRequest
	case errors.Is(err, session.ErrClosed):
		return http.StatusServiceUnavailable
	}
	switch apiclient.KindOf(err) {
	case apiclient.KindUnauthorized:
		return http.StatusUnauthorized
	case apiclient.KindForbidden:
		return http.StatusForbidden
	case apiclient.KindNotFound:
		return http.StatusNotFound
	case apiclient.KindValidation:
		return http.StatusBadRequest
	case apiclient.KindServer:
		return http.StatusBadGateway
	case apiclient.KindNetwork:
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// fail answers with the status matching err. A 401 from the backend on an
// authenticated call means the token it was sent with is gone, so that
// session is expired too.
func fail(c echo.Context, l *slog.Logger, sessions Sessions, event string, err error, fallback string) error {
	status := statusFor(err)
	if status >= 500 {
		l.Error(event, "status", status, "error", err)
	} else {
		l.Warn(event, "status", status, "error", err)
	}

	if sessions != nil && apiclient.IsKind(err, apiclient.KindUnauthorized) {
		sessions.Expire(c.Request().Context(), apiclient.Bearer(err))
	}

	msg := fallback
	if status != http.StatusConflict {
		msg = apiclient.Message(err, fallback)
	}
	return c.JSON(status, Response{Status: "error", Message: msg})
}

func badRequest(c echo.Context, l *slog.Logger, event, msg string) error {
	l.Warn(event, "status", http.StatusBadRequest, "reason", msg)
	return c.JSON(http.StatusBadRequest, Response{Status: "error", Message: msg})
}

func pathID(c echo.Context, name string) (int64, error) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.New("invalid " + name)
	}
	return id, nil
}
