package apiclient

import (
	"bytes"
	"context"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"

	"github.com/Skotchmaster/bookstore/internal/models"
)

type BookSearch struct {
	Text string
	Type string
	Page int
	Size int
}

func (s BookSearch) values() url.Values {
	return url.Values{
		"text": {s.Text},
		"type": {s.Type},
		"page": {strconv.Itoa(s.Page)},
		"size": {strconv.Itoa(s.Size)},
	}
}

func (c *Client) Books(ctx context.Context, search BookSearch) (*models.Page[models.Book], error) {
	var page models.Page[models.Book]
	err := c.do(ctx, request{
		op:     "books",
		method: http.MethodGet,
		path:   "/home/books",
		query:  search.values(),
	}, &page)
	if err != nil {
		return nil, err
	}
	return &page, nil
}

func (c *Client) Book(ctx context.Context, id int64) (*models.Book, error) {
	var book models.Book
	err := c.do(ctx, request{
		op:     "book",
		method: http.MethodGet,
		path:   fmt.Sprintf("/home/books/%d", id),
	}, &book)
	if err != nil {
		return nil, err
	}
	return &book, nil
}

func (c *Client) AddBook(ctx context.Context, form models.BookForm) error {
	body, contentType, err := encodeBookForm(form)
	if err != nil {
		return &Error{Kind: KindValidation, Op: "add_book", Err: err}
	}
	return c.do(ctx, request{
		op:          "add_book",
		method:      http.MethodPost,
		path:        "/admin/books",
		body:        body,
		contentType: contentType,
	}, nil)
}

func (c *Client) UpdateBook(ctx context.Context, id int64, form models.BookForm) error {
	body, contentType, err := encodeBookForm(form)
	if err != nil {
		return &Error{Kind: KindValidation, Op: "update_book", Err: err}
	}
	return c.do(ctx, request{
		op:          "update_book",
		method:      http.MethodPut,
		path:        fmt.Sprintf("/admin/books/%d", id),
		body:        body,
		contentType: contentType,
	}, nil)
}

func (c *Client) DeleteBook(ctx context.Context, id int64) error {
	return c.do(ctx, request{
		op:     "delete_book",
		method: http.MethodDelete,
		path:   fmt.Sprintf("/admin/books/%d", id),
	}, nil)
}

func encodeBookForm(form models.BookForm) (*bytes.Buffer, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	fields := [][2]string{
		{"title", form.Title},
		{"author", form.Author},
		{"type", form.Type},
	}
	if form.Price != nil {
		fields = append(fields, [2]string{"price", strconv.FormatFloat(*form.Price, 'f', -1, 64)})
	}
	fields = append(fields, [2]string{"description", form.Description})

	for _, f := range fields {
		if err := w.WriteField(f[0], f[1]); err != nil {
			return nil, "", fmt.Errorf("write field %s: %w", f[0], err)
		}
	}

	for _, img := range form.Images {
		part, err := w.CreateFormFile("imageMultipartFiles", img.Filename)
		if err != nil {
			return nil, "", fmt.Errorf("create image part: %w", err)
		}
		if _, err := part.Write(img.Content); err != nil {
			return nil, "", fmt.Errorf("write image part: %w", err)
		}
	}

	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("close multipart: %w", err)
	}
	return &buf, w.FormDataContentType(), nil
}
