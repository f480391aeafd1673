package httpserver

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/bookstore/internal/logging"
	"github.com/Skotchmaster/bookstore/internal/models"
	"github.com/Skotchmaster/bookstore/internal/query"
	"github.com/Skotchmaster/bookstore/internal/session"
	"github.com/Skotchmaster/bookstore/pkg/apiclient"
)

func TestHealth(t *testing.T) {
	s := newTestServer(t)

	assert.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/health/live", "").Code)
	assert.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/health/ready", "").Code)
}

func TestRouteNotFound(t *testing.T) {
	s := newTestServer(t)
	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodGet, "/api/nope", "").Code)
}

func TestReadyAndGuardsWaitForHydration(t *testing.T) {
	srv := httptest.NewServer(newFakeBackend().handler())
	t.Cleanup(srv.Close)

	client := apiclient.NewClient(srv.URL)
	store := session.New(session.NewMemoryStorage(), client, client)
	t.Cleanup(store.Close)
	client.SetTokenSource(store.Token)

	e := echo.New()
	Register(e, &Deps{
		Auth:    &AuthHTTP{API: client, Sessions: store},
		Books:   &BooksHTTP{API: client, View: query.NewView(query.NewCache[models.Book](time.Minute), BookFetcher(client)), PageSize: 24},
		Cart:    &CartHTTP{API: client, Sessions: store},
		Admin:   &AdminHTTP{API: client, Sessions: store},
		Session: store,
		Logger:  logging.Discard(),
	})
	serve := func(target string) int {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
		return rec.Code
	}

	assert.Equal(t, http.StatusServiceUnavailable, serve("/health/ready"))
	assert.Equal(t, http.StatusServiceUnavailable, serve("/api/cart"))

	require.NoError(t, store.Hydrate(context.Background()))
	assert.Equal(t, http.StatusOK, serve("/health/ready"))
	assert.Equal(t, http.StatusUnauthorized, serve("/api/cart"))
}
