package httpserver

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/bookstore/internal/session"
)

func TestSession_AnonymousAfterHydrate(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/api/session", "")
	require.Equal(t, http.StatusOK, rec.Code)

	view := decode[sessionView](t, rec)
	assert.False(t, view.IsAuthenticated)
	assert.False(t, view.IsAdmin)
	assert.False(t, view.Loading)
	assert.Equal(t, "anonymous", view.State)
	assert.Nil(t, view.User)
}

func TestLogin_Success(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/api/auth/login", `{"username":"root","password":"rootpw"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	view := decode[sessionView](t, rec)
	assert.True(t, view.IsAuthenticated)
	assert.True(t, view.IsAdmin)
	require.NotNil(t, view.User)
	assert.Equal(t, "root", view.User.Username)

	token, err := s.storage.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "tok-root", token)
}

func TestLogin_Failures(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		status  int
		message string
	}{
		{name: "missing password", body: `{"username":"ann"}`, status: http.StatusBadRequest, message: "username and password are required"},
		{name: "bad credentials", body: `{"username":"ann","password":"nope"}`, status: http.StatusUnauthorized, message: "Bad credentials"},
		{name: "token rejected by exchange", body: `{"username":"ghost","password":"x"}`, status: http.StatusUnauthorized, message: "Failed to process authentication. Please try again."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t)

			rec := s.do(t, http.MethodPost, "/api/auth/login", tt.body)
			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.message, decode[Response](t, rec).Message)

			snap := s.store.Snapshot()
			assert.False(t, snap.IsAuthenticated())
			_, err := s.storage.Load(context.Background())
			assert.ErrorIs(t, err, session.ErrNoToken)
		})
	}
}

func TestRegister_Validation(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		status  int
		message string
	}{
		{name: "mismatch", body: `{"username":"bob","email":"b@x.io","password":"secret1","confirmPassword":"secret2"}`, status: http.StatusBadRequest, message: "Passwords do not match"},
		{name: "too short", body: `{"username":"bob","email":"b@x.io","password":"abc","confirmPassword":"abc"}`, status: http.StatusBadRequest, message: "Password must be at least 6 characters"},
		{name: "missing email", body: `{"username":"bob","password":"secret1","confirmPassword":"secret1"}`, status: http.StatusBadRequest, message: "All fields are required"},
		{name: "backend conflict", body: `{"username":"taken","email":"t@x.io","password":"secret1","confirmPassword":"secret1"}`, status: http.StatusBadRequest, message: "Username already exists"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t)
			rec := s.do(t, http.MethodPost, "/api/auth/register", tt.body)
			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.message, decode[Response](t, rec).Message)
			assert.Empty(t, s.backend.registered)
		})
	}
}

func TestRegister_Success(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(t, http.MethodPost, "/api/auth/register", `{"username":"bob","email":"b@x.io","password":"secret1","confirmPassword":"secret1"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	require.Len(t, s.backend.registered, 1)
	assert.Equal(t, "bob", s.backend.registered[0].Username)
}

func TestVerify(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/api/auth/verify", `{"email":"b@x.io","code":"  "}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Please enter verification code", decode[Response](t, rec).Message)

	rec = s.do(t, http.MethodPost, "/api/auth/verify", `{"email":"b@x.io","code":"000000"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid verification code", decode[Response](t, rec).Message)

	rec = s.do(t, http.MethodPost, "/api/auth/verify", `{"email":"b@x.io","code":"123456"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "/login", decode[Response](t, rec).Redirect)
}

func TestLogout_ClearsSessionAndCaches(t *testing.T) {
	s := newTestServer(t)
	s.login(t, "ann", "secret1")

	rec := s.do(t, http.MethodGet, "/api/books?search=dune", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, 1, s.bookCache.Len())

	rec = s.do(t, http.MethodPost, "/api/auth/logout", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, decode[sessionView](t, rec).IsAuthenticated)

	assert.Equal(t, 0, s.bookCache.Len())
	assert.Equal(t, []string{"Bearer tok-ann"}, s.backend.loggedOut)
	_, err := s.storage.Load(context.Background())
	assert.ErrorIs(t, err, session.ErrNoToken)
}

func TestOAuth2Callback(t *testing.T) {
	tests := []struct {
		name     string
		target   string
		status   int
		redirect string
		message  string
		authed   bool
	}{
		{name: "no token", target: "/oauth2/callback", status: http.StatusBadRequest, redirect: "/login", message: "No token received. Authentication failed."},
		{name: "app token", target: "/oauth2/callback?token=tok-ann", status: http.StatusOK, redirect: "/", authed: true},
		{name: "provider token", target: "/oauth2/callback?access_token=provider-ok", status: http.StatusOK, redirect: "/", authed: true},
		{name: "rejected token", target: "/oauth2/callback?token=forged", status: http.StatusUnauthorized, redirect: "/login", message: "Failed to process authentication. Please try again."},
		{name: "rejected provider token", target: "/oauth2/callback?access_token=provider-bad", status: http.StatusUnauthorized, redirect: "/login", message: "Failed to process authentication. Please try again."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t)
			rec := s.do(t, http.MethodGet, tt.target, "")
			assert.Equal(t, tt.status, rec.Code)

			resp := decode[Response](t, rec)
			assert.Equal(t, tt.redirect, resp.Redirect)
			assert.Equal(t, tt.message, resp.Message)
			assert.Equal(t, tt.authed, s.store.Snapshot().IsAuthenticated())
		})
	}
}
