package httpserver

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/bookstore/internal/logging"
	"github.com/Skotchmaster/bookstore/internal/models"
	"github.com/Skotchmaster/bookstore/internal/session"
)

type CartAPI interface {
	Cart(ctx context.Context) (*models.Cart, error)
	AddCartItem(ctx context.Context, bookID int64, item models.ItemRequest) error
	UpdateCartItem(ctx context.Context, itemID int64, item models.ItemRequest) error
	DeleteCartItem(ctx context.Context, itemID int64) error
}

type CartHTTP struct {
	API      CartAPI
	Sessions Sessions
	Events   session.Publisher
	Topic    string
}

type quantityRequest struct {
	Quantity int `json:"quantity"`
}

type CartEvent struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	UserID    int64     `json:"user_id"`
	BookID    int64     `json:"book_id,omitempty"`
	ItemID    int64     `json:"item_id,omitempty"`
	Quantity  int       `json:"quantity,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

func (h *CartHTTP) GetCart(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "cart.get")

	cart, err := h.API.Cart(ctx)
	if err != nil {
		return fail(c, l, h.Sessions, "get_cart_error", err, "Failed to load cart")
	}

	l.Info("cart_loaded", "items", len(cart.Items))
	return c.JSON(http.StatusOK, cart)
}

func (h *CartHTTP) AddItem(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "cart.add")

	bookID, err := pathID(c, "bookId")
	if err != nil {
		return badRequest(c, l, "add_to_cart_error", err.Error())
	}
	req := quantityRequest{Quantity: 1}
	if err := c.Bind(&req); err != nil {
		return badRequest(c, l, "add_to_cart_error", "invalid body")
	}

	item := models.ItemRequest{Quantity: req.Quantity, Status: models.ItemPending}
	if err := h.API.AddCartItem(ctx, bookID, item); err != nil {
		return fail(c, l, h.Sessions, "add_to_cart_error", err, "Failed to add item to cart")
	}

	h.publish(ctx, CartEvent{Type: "cart.item_added", BookID: bookID, Quantity: req.Quantity})
	l.Info("cart_item_added", "book_id", bookID, "quantity", req.Quantity)
	return c.JSON(http.StatusCreated, Response{Status: "ok", Message: "Item added to cart!"})
}

func (h *CartHTTP) UpdateItem(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "cart.update")

	itemID, err := pathID(c, "id")
	if err != nil {
		return badRequest(c, l, "update_cart_error", err.Error())
	}
	var req quantityRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, l, "update_cart_error", "invalid body")
	}

	if err := h.API.UpdateCartItem(ctx, itemID, models.ItemRequest{Quantity: req.Quantity}); err != nil {
		return fail(c, l, h.Sessions, "update_cart_error", err, "Failed to update cart item")
	}

	h.publish(ctx, CartEvent{Type: "cart.item_updated", ItemID: itemID, Quantity: req.Quantity})
	return c.JSON(http.StatusOK, Response{Status: "ok"})
}

func (h *CartHTTP) DeleteItem(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "cart.delete")

	itemID, err := pathID(c, "id")
	if err != nil {
		return badRequest(c, l, "delete_cart_item_error", err.Error())
	}

	if err := h.API.DeleteCartItem(ctx, itemID); err != nil {
		return fail(c, l, h.Sessions, "delete_cart_item_error", err, "Failed to remove cart item")
	}

	h.publish(ctx, CartEvent{Type: "cart.item_removed", ItemID: itemID})
	return c.NoContent(http.StatusNoContent)
}

func (h *CartHTTP) publish(ctx context.Context, ev CartEvent) {
	if h.Events == nil {
		return
	}
	if user := h.Sessions.Snapshot().User; user != nil {
		ev.UserID = user.ID
	}
	ev.ID = uuid.NewString()
	ev.CreatedAt = time.Now().UTC()

	if err := h.Events.PublishEvent(ctx, h.Topic, strconv.FormatInt(ev.UserID, 10), ev); err != nil {
		logging.FromContext(ctx).Warn("cart_event_publish_failed", "type", ev.Type, "error", err)
	}
}
