package httpserver

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/bookstore/internal/logging"
	"github.com/Skotchmaster/bookstore/internal/models"
	"github.com/Skotchmaster/bookstore/internal/session"
)

const minPasswordLength = 6

type Sessions interface {
	Snapshot() session.Snapshot
	Login(ctx context.Context, token string) (*models.UserIdentity, error)
	Logout(ctx context.Context)
	Expire(ctx context.Context, token string)
}

type AuthAPI interface {
	Login(ctx context.Context, creds models.Credentials) (string, error)
	Register(ctx context.Context, reg models.Registration) error
	Verify(ctx context.Context, email, code string) error
	ResendVerification(ctx context.Context, email string) error
	ForgotPassword(ctx context.Context, email string) error
	OAuth2Token(ctx context.Context, accessToken string) (string, error)
}

type AuthHTTP struct {
	API      AuthAPI
	Sessions Sessions
}

type sessionView struct {
	IsAuthenticated bool                 `json:"isAuthenticated"`
	IsAdmin         bool                 `json:"isAdmin"`
	Loading         bool                 `json:"loading"`
	State           string               `json:"state"`
	User            *models.UserIdentity `json:"user,omitempty"`
	ExpiresAt       *time.Time           `json:"expiresAt,omitempty"`
}

func viewOf(snap session.Snapshot) sessionView {
	v := sessionView{
		IsAuthenticated: snap.IsAuthenticated(),
		IsAdmin:         snap.IsAdmin(),
		Loading:         snap.Loading,
		State:           snap.State.String(),
		User:            snap.User,
	}
	if !snap.ExpiresAt.IsZero() {
		exp := snap.ExpiresAt
		v.ExpiresAt = &exp
	}
	return v
}

func (h *AuthHTTP) Session(c echo.Context) error {
	return c.JSON(http.StatusOK, viewOf(h.Sessions.Snapshot()))
}

func (h *AuthHTTP) Login(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth.login")

	var creds models.Credentials
	if err := c.Bind(&creds); err != nil {
		return badRequest(c, l, "login_error", "invalid body")
	}
	creds.Username = strings.TrimSpace(creds.Username)
	if creds.Username == "" || creds.Password == "" {
		return badRequest(c, l, "login_error", "username and password are required")
	}

	token, err := h.API.Login(ctx, creds)
	if err != nil {
		return fail(c, l, nil, "login_error", err, "Invalid username or password")
	}

	if _, err := h.Sessions.Login(ctx, token); err != nil {
		return h.loginFailed(c, err)
	}

	l.Info("login_success", "username", creds.Username)
	return c.JSON(http.StatusOK, viewOf(h.Sessions.Snapshot()))
}

type registerRequest struct {
	Username        string `json:"username"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
}

func (r registerRequest) validate() string {
	switch {
	case strings.TrimSpace(r.Username) == "" || strings.TrimSpace(r.Email) == "" || r.Password == "":
		return "All fields are required"
	case r.Password != r.ConfirmPassword:
		return "Passwords do not match"
	case len(r.Password) < minPasswordLength:
		return "Password must be at least 6 characters"
	}
	return ""
}

func (h *AuthHTTP) Register(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth.register")

	var req registerRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, l, "register_error", "invalid body")
	}
	if msg := req.validate(); msg != "" {
		return badRequest(c, l, "register_error", msg)
	}

	err := h.API.Register(ctx, models.Registration{
		Username: strings.TrimSpace(req.Username),
		Email:    strings.TrimSpace(req.Email),
		Password: req.Password,
	})
	if err != nil {
		return fail(c, l, nil, "register_error", err, "Registration failed. Please try again.")
	}

	l.Info("register_success", "username", req.Username)
	return c.JSON(http.StatusCreated, Response{Status: "ok", Message: "Registration successful. Check your email for the verification code."})
}

type emailRequest struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

func (h *AuthHTTP) Verify(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth.verify")

	var req emailRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, l, "verify_error", "invalid body")
	}
	if strings.TrimSpace(req.Code) == "" {
		return badRequest(c, l, "verify_error", "Please enter verification code")
	}

	if err := h.API.Verify(ctx, strings.TrimSpace(req.Email), strings.TrimSpace(req.Code)); err != nil {
		return fail(c, l, nil, "verify_error", err, "Invalid verification code. Please try again.")
	}

	l.Info("verify_success")
	return c.JSON(http.StatusOK, Response{Status: "ok", Message: "Account verified successfully! Please login.", Redirect: "/login"})
}

func (h *AuthHTTP) Resend(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth.resend")

	var req emailRequest
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.Email) == "" {
		return badRequest(c, l, "resend_error", "email is required")
	}

	if err := h.API.ResendVerification(ctx, strings.TrimSpace(req.Email)); err != nil {
		return fail(c, l, nil, "resend_error", err, "Failed to resend verification code.")
	}
	return c.JSON(http.StatusOK, Response{Status: "ok", Message: "Verification code has been resent to your email."})
}

func (h *AuthHTTP) ForgotPassword(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth.forgot_password")

	var req emailRequest
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.Email) == "" {
		return badRequest(c, l, "forgot_password_error", "email is required")
	}

	if err := h.API.ForgotPassword(ctx, strings.TrimSpace(req.Email)); err != nil {
		return fail(c, l, nil, "forgot_password_error", err, "Failed to send password reset email.")
	}
	return c.JSON(http.StatusOK, Response{Status: "ok", Message: "Password reset instructions have been sent to your email."})
}

func (h *AuthHTTP) Logout(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth.logout")

	h.Sessions.Logout(ctx)

	l.Info("logout_success")
	return c.JSON(http.StatusOK, viewOf(h.Sessions.Snapshot()))
}

// OAuth2Callback finishes a provider login. The provider redirects here with
// either an application token or a provider access token to exchange.
func (h *AuthHTTP) OAuth2Callback(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth.oauth2_callback")

	token := strings.TrimSpace(c.QueryParam("token"))
	if token == "" {
		access := strings.TrimSpace(c.QueryParam("access_token"))
		if access == "" {
			l.Warn("oauth2_callback_error", "status", http.StatusBadRequest, "reason", "no token")
			return c.JSON(http.StatusBadRequest, Response{
				Status:   "error",
				Message:  "No token received. Authentication failed.",
				Redirect: "/login",
			})
		}

		var err error
		token, err = h.API.OAuth2Token(ctx, access)
		if err != nil {
			return h.loginFailed(c, err)
		}
	}

	if _, err := h.Sessions.Login(ctx, token); err != nil {
		return h.loginFailed(c, err)
	}

	l.Info("oauth2_login_success")
	return c.JSON(http.StatusOK, Response{Status: "ok", Redirect: "/"})
}

func (h *AuthHTTP) loginFailed(c echo.Context, err error) error {
	l := logging.FromContext(c.Request().Context())
	status := http.StatusUnauthorized
	if errors.Is(err, session.ErrSuperseded) {
		status = http.StatusConflict
	}
	l.Warn("session_login_error", "status", status, "error", err)
	return c.JSON(status, Response{
		Status:   "error",
		Message:  "Failed to process authentication. Please try again.",
		Redirect: "/login",
	})
}
