package apiclient

import (
	"context"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/bookstore/internal/models"
)

func (c *Client) Cart(ctx context.Context) (*models.Cart, error) {
	var cart models.Cart
	err := c.do(ctx, request{
		op:     "cart",
		method: http.MethodGet,
		path:   "/user/carts",
	}, &cart)
	if err != nil {
		return nil, err
	}
	return &cart, nil
}

// AddCartItem puts bookID into the current user's cart.
func (c *Client) AddCartItem(ctx context.Context, bookID int64, item models.ItemRequest) error {
	return c.sendItem(ctx, "add_cart_item", http.MethodPost, fmt.Sprintf("/user/carts/items/%d", bookID), item)
}

func (c *Client) UpdateCartItem(ctx context.Context, itemID int64, item models.ItemRequest) error {
	return c.sendItem(ctx, "update_cart_item", http.MethodPut, fmt.Sprintf("/user/items/%d", itemID), item)
}

func (c *Client) DeleteCartItem(ctx context.Context, itemID int64) error {
	return c.do(ctx, request{
		op:     "delete_cart_item",
		method: http.MethodDelete,
		path:   fmt.Sprintf("/user/items/%d", itemID),
	}, nil)
}

func (c *Client) sendItem(ctx context.Context, op, method, path string, item models.ItemRequest) error {
	if item.Quantity <= 0 {
		return NewValidationError(op, "quantity must be greater than zero")
	}
	if item.Status == "" {
		item.Status = models.ItemPending
	}
	body, err := c.jsonBody(item)
	if err != nil {
		return err
	}
	return c.do(ctx, request{
		op:          op,
		method:      method,
		path:        path,
		body:        body,
		contentType: echo.MIMEApplicationJSON,
	}, nil)
}
