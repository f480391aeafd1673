package apiclient

import (
	"context"
	"net/http"
	"net/url"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/bookstore/internal/models"
)

func (c *Client) Login(ctx context.Context, creds models.Credentials) (string, error) {
	body, err := c.jsonBody(creds)
	if err != nil {
		return "", err
	}
	var token string
	err = c.do(ctx, request{
		op:          "login",
		method:      http.MethodPost,
		path:        "/home/login",
		body:        body,
		contentType: echo.MIMEApplicationJSON,
		anonymous:   true,
	}, &token)
	if err != nil {
		return "", err
	}
	if token == "" {
		return "", &Error{Kind: KindServer, Op: "login", Message: "empty token in response"}
	}
	return token, nil
}

func (c *Client) Register(ctx context.Context, reg models.Registration) error {
	body, err := c.jsonBody(reg)
	if err != nil {
		return err
	}
	return c.do(ctx, request{
		op:          "register",
		method:      http.MethodPost,
		path:        "/home/register",
		body:        body,
		contentType: echo.MIMEApplicationJSON,
		anonymous:   true,
	}, nil)
}

func (c *Client) Verify(ctx context.Context, email, code string) error {
	return c.do(ctx, request{
		op:        "verify",
		method:    http.MethodGet,
		path:      "/home/verify",
		query:     url.Values{"email": {email}, "code": {code}},
		anonymous: true,
	}, nil)
}

func (c *Client) ResendVerification(ctx context.Context, email string) error {
	return c.do(ctx, request{
		op:        "resend_verification",
		method:    http.MethodGet,
		path:      "/home/resend",
		query:     url.Values{"email": {email}},
		anonymous: true,
	}, nil)
}

func (c *Client) ForgotPassword(ctx context.Context, email string) error {
	return c.do(ctx, request{
		op:        "forgot_password",
		method:    http.MethodGet,
		path:      "/home/forgot-password",
		query:     url.Values{"email": {email}},
		anonymous: true,
	}, nil)
}

// TokenInfo resolves a token into the identity it was issued for.
func (c *Client) TokenInfo(ctx context.Context, token string) (*models.UserIdentity, error) {
	var user models.UserIdentity
	err := c.do(ctx, request{
		op:     "token_info",
		method: http.MethodGet,
		path:   "/home/token-info",
		query:  url.Values{"token": {token}},
		bearer: token,
	}, &user)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// Logout invalidates the given token server-side.
func (c *Client) Logout(ctx context.Context, token string) error {
	return c.do(ctx, request{
		op:        "logout",
		method:    http.MethodGet,
		path:      "/home/logout",
		bearer:    token,
		anonymous: token == "",
	}, nil)
}

// OAuth2Token exchanges a provider access token for an application token.
func (c *Client) OAuth2Token(ctx context.Context, accessToken string) (string, error) {
	var token string
	err := c.do(ctx, request{
		op:     "oauth2_token",
		method: http.MethodGet,
		path:   "/home/oauth2/token",
		bearer: accessToken,
	}, &token)
	if err != nil {
		return "", err
	}
	if token == "" {
		return "", &Error{Kind: KindServer, Op: "oauth2_token", Message: "empty token in response"}
	}
	return token, nil
}
