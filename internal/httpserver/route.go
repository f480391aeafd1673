package httpserver

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	ecM "github.com/labstack/echo/v4/middleware"

	"github.com/Skotchmaster/bookstore/internal/middleware/auth"
	"github.com/Skotchmaster/bookstore/internal/middleware/csrf"
	"github.com/Skotchmaster/bookstore/internal/session"
	loggingmw "github.com/Skotchmaster/bookstore/pkg/middleware/logging"
)

type Deps struct {
	Auth  *AuthHTTP
	Books *BooksHTTP
	Cart  *CartHTTP
	Admin *AdminHTTP

	Session auth.SnapshotSource
	// Stream enables the live session feed when set.
	Stream SnapshotStream
	Logger *slog.Logger
	// CSRF guards the mutating routes when set.
	CSRF *csrf.Config
}

func Common(l *slog.Logger) []echo.MiddlewareFunc {
	return []echo.MiddlewareFunc{
		ecM.Recover(),
		ecM.RequestID(),
		loggingmw.RequestLogger(l),
		ecM.Secure(),
	}
}

func Register(e *echo.Echo, d *Deps) {
	e.GET("/health/live", func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	e.GET("/health/ready", func(c echo.Context) error {
		switch d.Session.Snapshot().State {
		case session.Uninitialized, session.Hydrating:
			return c.NoContent(http.StatusServiceUnavailable)
		}
		return c.NoContent(http.StatusOK)
	})

	for _, m := range Common(d.Logger) {
		e.Use(m)
	}

	e.GET("/oauth2/callback", d.Auth.OAuth2Callback)
	if d.Stream != nil {
		e.Any(streamPrefix+"/*", echo.WrapHandler(SessionStream(d.Stream, d.Logger)))
	}

	api := e.Group("/api")
	if d.CSRF != nil {
		api.Use(csrf.Middleware(*d.CSRF))
	}

	api.GET("/session", d.Auth.Session)

	authGroup := api.Group("/auth")
	authGroup.POST("/login", d.Auth.Login)
	authGroup.POST("/register", d.Auth.Register)
	authGroup.POST("/verify", d.Auth.Verify)
	authGroup.POST("/resend", d.Auth.Resend)
	authGroup.POST("/forgot-password", d.Auth.ForgotPassword)
	authGroup.POST("/logout", d.Auth.Logout)

	api.GET("/books", d.Books.ListBooks)
	api.GET("/books/:id", d.Books.GetBook)

	cart := api.Group("/cart")
	cart.Use(auth.RequireLogin(d.Session))
	cart.GET("", d.Cart.GetCart)
	cart.POST("/items/:bookId", d.Cart.AddItem)
	cart.PUT("/items/:id", d.Cart.UpdateItem)
	cart.DELETE("/items/:id", d.Cart.DeleteItem)

	admin := api.Group("/admin")
	admin.Use(auth.RequireAdmin(d.Session))
	admin.GET("/users", d.Admin.ListUsers)
	admin.PUT("/users/:id/role", d.Admin.ToggleRole)
	admin.DELETE("/users/:id", d.Admin.DeleteUser)
	admin.GET("/books", d.Admin.ListBooks)
	admin.POST("/books", d.Admin.CreateBook)
	admin.PUT("/books/:id", d.Admin.UpdateBook)
	admin.DELETE("/books/:id", d.Admin.DeleteBook)
}
