package apiclient

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/Skotchmaster/bookstore/internal/models"
)

// Users lists accounts for the admin console. An empty username lists all.
func (c *Client) Users(ctx context.Context, page, size int, username string) (*models.Page[models.UserIdentity], error) {
	q := url.Values{
		"page": {strconv.Itoa(page)},
		"size": {strconv.Itoa(size)},
	}
	if username != "" {
		q.Set("username", username)
	}

	var out models.Page[models.UserIdentity]
	err := c.do(ctx, request{
		op:     "users",
		method: http.MethodGet,
		path:   "/admin/users",
		query:  q,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// ToggleUserRole flips a user between the ordinary and admin roles.
func (c *Client) ToggleUserRole(ctx context.Context, userID int64) error {
	return c.do(ctx, request{
		op:     "toggle_user_role",
		method: http.MethodPut,
		path:   fmt.Sprintf("/admin/users/%d", userID),
	}, nil)
}

func (c *Client) DeleteUser(ctx context.Context, userID int64) error {
	return c.do(ctx, request{
		op:     "delete_user",
		method: http.MethodDelete,
		path:   fmt.Sprintf("/admin/users/%d", userID),
	}, nil)
}
