package httpserver

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/bookstore/internal/logging"
	"github.com/Skotchmaster/bookstore/internal/models"
	"github.com/Skotchmaster/bookstore/internal/query"
	"github.com/Skotchmaster/bookstore/internal/session"
	"github.com/Skotchmaster/bookstore/pkg/apiclient"
)

var (
	ann  = models.UserIdentity{ID: 1, Username: "ann", Email: "ann@example.com", RoleName: "USER"}
	root = models.UserIdentity{ID: 2, Username: "root", Email: "root@example.com", RoleName: models.RoleAdmin}
)

// fakeBackend is a minimal bookstore REST backend.
type fakeBackend struct {
	mu         sync.Mutex
	revoked    map[string]bool
	bookCalls  []string
	userCalls  []string
	cartItems  []models.ItemRequest
	added      []string
	deleted    []string
	registered []models.Registration
	loggedOut  []string
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{revoked: make(map[string]bool)}
}

func (b *fakeBackend) revoke(token string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.revoked[token] = true
}

func (b *fakeBackend) bearer(r *http.Request) (*models.UserIdentity, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	token := strings.TrimPrefix(r.Header.Get(echo.HeaderAuthorization), "Bearer ")
	if b.revoked[token] {
		return nil, false
	}
	switch token {
	case "tok-ann":
		u := ann
		return &u, true
	case "tok-root":
		u := root
		return &u, true
	}
	return nil, false
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (b *fakeBackend) handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /home/login", func(w http.ResponseWriter, r *http.Request) {
		var creds models.Credentials
		_ = json.NewDecoder(r.Body).Decode(&creds)
		switch {
		case creds.Username == "ann" && creds.Password == "secret1":
			_, _ = io.WriteString(w, "tok-ann")
		case creds.Username == "root" && creds.Password == "rootpw":
			_, _ = io.WriteString(w, "tok-root")
		case creds.Username == "ghost":
			_, _ = io.WriteString(w, "tok-ghost")
		default:
			writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "Bad credentials"})
		}
	})
	mux.HandleFunc("GET /home/token-info", func(w http.ResponseWriter, r *http.Request) {
		user, ok := b.bearer(r)
		if !ok {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		writeJSON(w, http.StatusOK, user)
	})
	mux.HandleFunc("GET /home/logout", func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		b.loggedOut = append(b.loggedOut, r.Header.Get(echo.HeaderAuthorization))
		b.mu.Unlock()
	})
	mux.HandleFunc("POST /home/register", func(w http.ResponseWriter, r *http.Request) {
		var reg models.Registration
		_ = json.NewDecoder(r.Body).Decode(&reg)
		if reg.Username == "taken" {
			http.Error(w, "Username already exists", http.StatusConflict)
			return
		}
		b.mu.Lock()
		b.registered = append(b.registered, reg)
		b.mu.Unlock()
		w.WriteHeader(http.StatusCreated)
	})
	mux.HandleFunc("GET /home/verify", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("code") != "123456" {
			http.Error(w, "Invalid verification code", http.StatusBadRequest)
		}
	})
	mux.HandleFunc("GET /home/oauth2/token", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get(echo.HeaderAuthorization) != "Bearer provider-ok" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = io.WriteString(w, "tok-ann")
	})
	mux.HandleFunc("GET /home/books", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		b.mu.Lock()
		b.bookCalls = append(b.bookCalls, q.Encode())
		b.mu.Unlock()
		page, _ := strconv.Atoi(q.Get("page"))
		size, _ := strconv.Atoi(q.Get("size"))
		writeJSON(w, http.StatusOK, models.Page[models.Book]{
			Content:       []models.Book{{ID: int64(100 + page), Title: q.Get("text"), Type: q.Get("type")}},
			TotalElements: 30,
			TotalPages:    2,
			Size:          size,
			Number:        page,
		})
	})
	mux.HandleFunc("GET /home/books/{id}", func(w http.ResponseWriter, r *http.Request) {
		if r.PathValue("id") != "7" {
			writeJSON(w, http.StatusNotFound, map[string]string{"message": "Book not found"})
			return
		}
		writeJSON(w, http.StatusOK, models.Book{ID: 7, Title: "Dune"})
	})
	mux.HandleFunc("GET /user/carts", func(w http.ResponseWriter, r *http.Request) {
		if _, ok := b.bearer(r); !ok {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		writeJSON(w, http.StatusOK, models.Cart{ID: 5, Items: []models.CartItem{{ID: 9, Quantity: 2, Book: models.Book{ID: 7}}}})
	})
	mux.HandleFunc("POST /user/carts/items/{id}", func(w http.ResponseWriter, r *http.Request) {
		var item models.ItemRequest
		_ = json.NewDecoder(r.Body).Decode(&item)
		b.mu.Lock()
		b.cartItems = append(b.cartItems, item)
		b.mu.Unlock()
	})
	mux.HandleFunc("PUT /user/items/{id}", func(w http.ResponseWriter, r *http.Request) {})
	mux.HandleFunc("DELETE /user/items/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("GET /admin/users", func(w http.ResponseWriter, r *http.Request) {
		if _, ok := b.bearer(r); !ok {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		b.mu.Lock()
		b.userCalls = append(b.userCalls, r.URL.Query().Encode())
		b.mu.Unlock()
		writeJSON(w, http.StatusOK, models.Page[models.UserIdentity]{Content: []models.UserIdentity{ann, root}, TotalElements: 2, TotalPages: 1})
	})
	mux.HandleFunc("PUT /admin/users/{id}", func(w http.ResponseWriter, r *http.Request) {})
	mux.HandleFunc("DELETE /admin/users/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("POST /admin/books", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		name := r.FormValue("title")
		for _, fh := range r.MultipartForm.File[imagesField] {
			name += "+" + fh.Filename
		}
		b.mu.Lock()
		b.added = append(b.added, name)
		b.mu.Unlock()
		w.WriteHeader(http.StatusCreated)
	})
	mux.HandleFunc("DELETE /admin/books/{id}", func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		b.deleted = append(b.deleted, r.PathValue("id"))
		b.mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	})
	return mux
}

func (b *fakeBackend) bookCallCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.bookCalls)
}

type recordedEvent struct {
	topic string
	key   string
	event any
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (p *recordingPublisher) PublishEvent(ctx context.Context, topic, key string, event any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, recordedEvent{topic: topic, key: key, event: event})
	return nil
}

func (p *recordingPublisher) snapshot() []recordedEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]recordedEvent(nil), p.events...)
}

type testServer struct {
	e          *echo.Echo
	backend    *fakeBackend
	backendURL string
	store      *session.Store
	storage    *session.MemoryStorage
	bookCache  *query.Cache[models.Book]
	userCache  *query.Cache[models.UserIdentity]
	events     *recordingPublisher
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	backend := newFakeBackend()
	srv := httptest.NewServer(backend.handler())
	t.Cleanup(srv.Close)

	bookCache := query.NewCache[models.Book](time.Minute)
	userCache := query.NewCache[models.UserIdentity](time.Minute)

	client := apiclient.NewClient(srv.URL)
	catalog := query.NewView(bookCache, BookFetcher(client))
	adminBooks := query.NewView(bookCache, BookFetcher(client))
	users := query.NewView(userCache, UserFetcher(client))

	storage := session.NewMemoryStorage()
	store := session.New(storage, client, client, session.WithSignOutHook(func() {
		bookCache.Clear()
		userCache.Clear()
		catalog.Reset()
		adminBooks.Reset()
		users.Reset()
	}))
	t.Cleanup(store.Close)
	client.SetTokenSource(store.Token)
	require.NoError(t, store.Hydrate(context.Background()))

	events := &recordingPublisher{}

	e := echo.New()
	Register(e, &Deps{
		Auth:  &AuthHTTP{API: client, Sessions: store},
		Books: &BooksHTTP{API: client, View: catalog, PageSize: 24},
		Cart:  &CartHTTP{API: client, Sessions: store, Events: events, Topic: "cart_events"},
		Admin: &AdminHTTP{
			API:       client,
			Sessions:  store,
			Users:     users,
			Books:     adminBooks,
			UserCache: userCache,
			BookCache: bookCache,
			PageSize:  10,
			Events:    events,
			Topic:     "admin_events",
		},
		Session: store,
		Stream:  store,
		Logger:  logging.Discard(),
	})

	return &testServer{e: e, backend: backend, backendURL: srv.URL, store: store, storage: storage, bookCache: bookCache, userCache: userCache, events: events}
}

func (s *testServer) do(t *testing.T, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) login(t *testing.T, username, password string) {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/api/auth/login", `{"username":"`+username+`","password":"`+password+`"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}
