package httpserver

import (
	"context"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/bookstore/internal/logging"
	"github.com/Skotchmaster/bookstore/internal/models"
	"github.com/Skotchmaster/bookstore/internal/query"
	"github.com/Skotchmaster/bookstore/internal/util"
	"github.com/Skotchmaster/bookstore/pkg/apiclient"
)

const (
	ResourceBooks      = "books"
	ResourceAdminBooks = "admin-books"
	ResourceUsers      = "users"
)

type CatalogAPI interface {
	Books(ctx context.Context, search apiclient.BookSearch) (*models.Page[models.Book], error)
	Book(ctx context.Context, id int64) (*models.Book, error)
}

// BookFetcher resolves book listing keys against the backend search.
func BookFetcher(api CatalogAPI) query.Fetcher[models.Book] {
	return func(ctx context.Context, key query.Key) (*models.Page[models.Book], error) {
		return api.Books(ctx, apiclient.BookSearch{
			Text: key.Text,
			Type: key.Type,
			Page: key.Page,
			Size: key.Size,
		})
	}
}

// listKey builds the query key of a listing request. Every filter is part of
// the key so a filter change never reuses another key's page.
func listKey(c echo.Context, resource string, defSize int) query.Key {
	page, size := util.Calculate(
		util.ParseIntDefault(c.QueryParam("page"), 0),
		util.ParseIntDefault(c.QueryParam("size"), defSize),
		defSize,
	)
	return query.Key{
		Resource: resource,
		Page:     page,
		Size:     size,
		Text:     strings.TrimSpace(c.QueryParam("search")),
		Type:     strings.TrimSpace(c.QueryParam("type")),
	}
}

type BooksHTTP struct {
	API      CatalogAPI
	View     *query.View[models.Book]
	PageSize int
}

func (h *BooksHTTP) ListBooks(c echo.Context) error {
	ctx := c.Request().Context()
	key := listKey(c, ResourceBooks, h.PageSize)
	l := logging.FromContext(ctx).With("handler", "books.list", "key", key.String())

	page, err := h.View.Select(ctx, key)
	if err != nil {
		return fail(c, l, nil, "list_books_error", err, "Failed to load books")
	}
	return c.JSON(http.StatusOK, page)
}

func (h *BooksHTTP) GetBook(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "books.get")

	id, err := pathID(c, "id")
	if err != nil {
		return badRequest(c, l, "get_book_error", err.Error())
	}

	book, err := h.API.Book(ctx, id)
	if err != nil {
		return fail(c, l, nil, "get_book_error", err, "Failed to load book")
	}
	return c.JSON(http.StatusOK, book)
}
