package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const maxErrorBody = 64 << 10

// TokenSource yields the bearer token attached to outgoing requests. An empty
// string means the request is sent without credentials.
type TokenSource func() string

type Client struct {
	baseURL    string
	httpClient *http.Client
	tokens     TokenSource
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

func WithTokenSource(ts TokenSource) Option {
	return func(c *Client) { c.tokens = ts }
}

func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.httpClient.Timeout = d }
}

func NewClient(backendURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(backendURL, "/"),
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
			Transport: otelhttp.NewTransport(&http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			}),
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetTokenSource is used when the token owner is built after the client, as
// the session store is.
func (c *Client) SetTokenSource(ts TokenSource) {
	c.tokens = ts
}

type request struct {
	op          string
	method      string
	path        string
	query       url.Values
	body        io.Reader
	contentType string
	// bearer overrides the token source when non-empty.
	bearer string
	// anonymous suppresses the Authorization header entirely.
	anonymous bool
}

func (c *Client) jsonBody(v any) (io.Reader, error) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(v); err != nil {
		return nil, fmt.Errorf("encode body: %w", err)
	}
	return &buf, nil
}

func (c *Client) newRequest(ctx context.Context, r request) (*http.Request, error) {
	u := c.baseURL + r.path
	if len(r.query) > 0 {
		u += "?" + r.query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, r.method, u, r.body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set(echo.HeaderXRequestID, uuid.NewString())
	req.Header.Set(echo.HeaderAccept, echo.MIMEApplicationJSON)
	if r.contentType != "" {
		req.Header.Set(echo.HeaderContentType, r.contentType)
	}

	token := r.bearer
	if token == "" && !r.anonymous && c.tokens != nil {
		token = c.tokens()
	}
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	return req, nil
}

// do sends the request and decodes a 2xx JSON body into out when out is
// non-nil. Non-2xx responses and transport failures become *Error.
func (c *Client) do(ctx context.Context, r request, out any) error {
	req, err := c.newRequest(ctx, r)
	if err != nil {
		return &Error{Kind: KindValidation, Op: r.op, Err: err}
	}

	bearer := strings.TrimPrefix(req.Header.Get(echo.HeaderAuthorization), "Bearer ")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &Error{Kind: KindNetwork, Op: r.op, Err: fmt.Errorf("do request: %w", err), bearer: bearer}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(r.op, resp, bearer)
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	if s, ok := out.(*string); ok {
		raw, err := io.ReadAll(resp.Body)
		if err != nil {
			return &Error{Kind: KindNetwork, Op: r.op, Status: resp.StatusCode, Err: fmt.Errorf("read response: %w", err)}
		}
		*s = decodeText(raw)
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &Error{Kind: KindServer, Op: r.op, Status: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

// decodeText accepts both a bare text body and a JSON encoded string.
func decodeText(raw []byte) string {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err == nil {
			return s
		}
	}
	return string(trimmed)
}

func decodeError(op string, resp *http.Response, bearer string) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	msg := ""
	if err := json.Unmarshal(raw, &payload); err == nil {
		msg = payload.Message
		if msg == "" {
			msg = payload.Error
		}
	} else if len(raw) > 0 && !bytes.HasPrefix(bytes.TrimSpace(raw), []byte("<")) {
		msg = decodeText(raw)
	}

	return &Error{
		Kind:    kindForStatus(resp.StatusCode),
		Op:      op,
		Status:  resp.StatusCode,
		Message: msg,
		bearer:  bearer,
	}
}
