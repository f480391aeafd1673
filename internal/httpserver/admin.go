package httpserver

import (
	"context"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/bookstore/internal/logging"
	"github.com/Skotchmaster/bookstore/internal/models"
	"github.com/Skotchmaster/bookstore/internal/query"
	"github.com/Skotchmaster/bookstore/internal/session"
)

const imagesField = "imageMultipartFiles"

type AdminAPI interface {
	Users(ctx context.Context, page, size int, username string) (*models.Page[models.UserIdentity], error)
	ToggleUserRole(ctx context.Context, userID int64) error
	DeleteUser(ctx context.Context, userID int64) error
	AddBook(ctx context.Context, form models.BookForm) error
	UpdateBook(ctx context.Context, id int64, form models.BookForm) error
	DeleteBook(ctx context.Context, id int64) error
}

type Invalidator interface {
	Invalidate(resource string) int
}

// UserFetcher resolves user listing keys; the key text is the username filter.
func UserFetcher(api AdminAPI) query.Fetcher[models.UserIdentity] {
	return func(ctx context.Context, key query.Key) (*models.Page[models.UserIdentity], error) {
		return api.Users(ctx, key.Page, key.Size, key.Text)
	}
}

type AdminHTTP struct {
	API      AdminAPI
	Sessions Sessions

	Users     *query.View[models.UserIdentity]
	Books     *query.View[models.Book]
	UserCache Invalidator
	BookCache Invalidator
	PageSize  int

	Events session.Publisher
	Topic  string
}

type AdminEvent struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	ActorID   int64     `json:"actor_id"`
	TargetID  int64     `json:"target_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

func (h *AdminHTTP) ListUsers(c echo.Context) error {
	ctx := c.Request().Context()
	key := listKey(c, ResourceUsers, h.PageSize)
	if u := strings.TrimSpace(c.QueryParam("username")); u != "" {
		key.Text = u
	}
	key.Type = ""
	l := logging.FromContext(ctx).With("handler", "admin.users.list", "key", key.String())

	page, err := h.Users.Select(ctx, key)
	if err != nil {
		return fail(c, l, h.Sessions, "list_users_error", err, "Failed to load users")
	}
	return c.JSON(http.StatusOK, page)
}

func (h *AdminHTTP) ToggleRole(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "admin.users.role")

	id, err := pathID(c, "id")
	if err != nil {
		return badRequest(c, l, "toggle_role_error", err.Error())
	}
	if err := h.API.ToggleUserRole(ctx, id); err != nil {
		return fail(c, l, h.Sessions, "toggle_role_error", err, "Failed to change user role")
	}

	h.UserCache.Invalidate(ResourceUsers)
	h.publish(ctx, "admin.user_role_toggled", id)
	l.Info("user_role_toggled", "user_id", id)
	return c.JSON(http.StatusOK, Response{Status: "ok"})
}

func (h *AdminHTTP) DeleteUser(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "admin.users.delete")

	id, err := pathID(c, "id")
	if err != nil {
		return badRequest(c, l, "delete_user_error", err.Error())
	}
	if err := h.API.DeleteUser(ctx, id); err != nil {
		return fail(c, l, h.Sessions, "delete_user_error", err, "Failed to delete user")
	}

	h.UserCache.Invalidate(ResourceUsers)
	h.publish(ctx, "admin.user_deleted", id)
	l.Info("user_deleted", "user_id", id)
	return c.NoContent(http.StatusNoContent)
}

func (h *AdminHTTP) ListBooks(c echo.Context) error {
	ctx := c.Request().Context()
	key := listKey(c, ResourceAdminBooks, h.PageSize)
	l := logging.FromContext(ctx).With("handler", "admin.books.list", "key", key.String())

	page, err := h.Books.Select(ctx, key)
	if err != nil {
		return fail(c, l, h.Sessions, "list_admin_books_error", err, "Failed to load books")
	}
	return c.JSON(http.StatusOK, page)
}

func (h *AdminHTTP) CreateBook(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "admin.books.create")

	form, err := readBookForm(c)
	if err != nil {
		return badRequest(c, l, "create_book_error", err.Error())
	}
	if form.Title == "" || form.Author == "" {
		return badRequest(c, l, "create_book_error", "title and author are required")
	}

	if err := h.API.AddBook(ctx, form); err != nil {
		return fail(c, l, h.Sessions, "create_book_error", err, "Failed to add book")
	}

	h.invalidateBooks()
	h.publish(ctx, "admin.book_created", 0)
	l.Info("book_created", "title", form.Title, "images", len(form.Images))
	return c.JSON(http.StatusCreated, Response{Status: "ok"})
}

func (h *AdminHTTP) UpdateBook(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "admin.books.update")

	id, err := pathID(c, "id")
	if err != nil {
		return badRequest(c, l, "update_book_error", err.Error())
	}
	form, err := readBookForm(c)
	if err != nil {
		return badRequest(c, l, "update_book_error", err.Error())
	}

	if err := h.API.UpdateBook(ctx, id, form); err != nil {
		return fail(c, l, h.Sessions, "update_book_error", err, "Failed to update book")
	}

	h.invalidateBooks()
	h.publish(ctx, "admin.book_updated", id)
	l.Info("book_updated", "book_id", id)
	return c.JSON(http.StatusOK, Response{Status: "ok"})
}

func (h *AdminHTTP) DeleteBook(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "admin.books.delete")

	id, err := pathID(c, "id")
	if err != nil {
		return badRequest(c, l, "delete_book_error", err.Error())
	}
	if err := h.API.DeleteBook(ctx, id); err != nil {
		return fail(c, l, h.Sessions, "delete_book_error", err, "Failed to delete book")
	}

	h.invalidateBooks()
	h.publish(ctx, "admin.book_deleted", id)
	l.Info("book_deleted", "book_id", id)
	return c.NoContent(http.StatusNoContent)
}

// Catalog and admin listings share one cache; a book mutation makes both stale.
func (h *AdminHTTP) invalidateBooks() {
	h.BookCache.Invalidate(ResourceBooks)
	h.BookCache.Invalidate(ResourceAdminBooks)
}

func (h *AdminHTTP) publish(ctx context.Context, typ string, target int64) {
	if h.Events == nil {
		return
	}
	ev := AdminEvent{
		ID:        uuid.NewString(),
		Type:      typ,
		TargetID:  target,
		CreatedAt: time.Now().UTC(),
	}
	if user := h.Sessions.Snapshot().User; user != nil {
		ev.ActorID = user.ID
	}
	if err := h.Events.PublishEvent(ctx, h.Topic, strconv.FormatInt(ev.ActorID, 10), ev); err != nil {
		logging.FromContext(ctx).Warn("admin_event_publish_failed", "type", typ, "error", err)
	}
}

type formError string

func (e formError) Error() string { return string(e) }

// readBookForm copies the browser's multipart form into the backend payload.
// A blank price stays unset.
func readBookForm(c echo.Context) (models.BookForm, error) {
	form := models.BookForm{
		Title:       strings.TrimSpace(c.FormValue("title")),
		Author:      strings.TrimSpace(c.FormValue("author")),
		Type:        strings.TrimSpace(c.FormValue("type")),
		Description: strings.TrimSpace(c.FormValue("description")),
	}
	if raw := strings.TrimSpace(c.FormValue("price")); raw != "" {
		price, err := strconv.ParseFloat(raw, 64)
		if err != nil || price < 0 {
			return form, formError("invalid price")
		}
		form.Price = &price
	}

	mf, err := c.MultipartForm()
	if err != nil {
		// url-encoded bodies carry no images
		return form, nil
	}
	for _, fh := range mf.File[imagesField] {
		f, err := fh.Open()
		if err != nil {
			return form, formError("unreadable image " + fh.Filename)
		}
		content, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			return form, formError("unreadable image " + fh.Filename)
		}
		form.Images = append(form.Images, models.Image{Filename: fh.Filename, Content: content})
	}
	return form, nil
}
