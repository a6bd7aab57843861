package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/staffkeeper/internal/common"
)

// Client talks to the account service HTTP API. The access token and the
// refresh cookie live in memory only and are gone when the process exits.
type Client struct {
	baseURL string
	http    *http.Client

	mu              sync.Mutex
	access          string
	accessExpiresAt time.Time
	refresh         string
}

// New returns a client for the API rooted at baseURL.
func New(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

type request struct {
	method      string
	path        string
	body        []byte
	contentType string
	bearer      bool
	cookie      bool
}

func jsonRequest(method, path string, payload any) (request, error) {
	rq := request{method: method, path: path}
	if payload == nil {
		return rq, nil
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return rq, fmt.Errorf("encode request: %w", err)
	}
	rq.body = b
	rq.contentType = "application/json"
	return rq, nil
}

// LoggedIn reports whether a refresh cookie is held.
func (c *Client) LoggedIn() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.refresh != ""
}

// AccessExpiresAt returns the expiry of the current access token.
func (c *Client) AccessExpiresAt() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.accessExpiresAt
}

func (c *Client) setAccess(t tokenResponse) {
	c.mu.Lock()
	c.access = t.Access
	c.accessExpiresAt = t.AccessExpiresAt
	c.mu.Unlock()
}

func (c *Client) reset() {
	c.mu.Lock()
	c.access = ""
	c.accessExpiresAt = time.Time{}
	c.refresh = ""
	c.mu.Unlock()
}

// send performs one round trip. Transport failures wrap ErrUnavailable;
// non-2xx answers become *Error.
func (c *Client) send(ctx context.Context, rq request, out any) error {
	var body io.Reader
	if rq.body != nil {
		body = bytes.NewReader(rq.body)
	}

	req, err := http.NewRequestWithContext(ctx, rq.method, c.baseURL+rq.path, body)
	if err != nil {
		return err
	}
	if rq.contentType != "" {
		req.Header.Set("Content-Type", rq.contentType)
	}
	req.Header.Set("Accept", "application/json")

	c.mu.Lock()
	access, refresh := c.access, c.refresh
	c.mu.Unlock()

	if rq.bearer {
		if access == "" {
			return ErrNotLoggedIn
		}
		req.Header.Set(common.AuthorizationHeaderName, common.BearerPrefix+access)
	}
	// The cookie is attached by hand so it is sent even when the server
	// marks it Secure and the API is reached over plain HTTP.
	if rq.cookie && refresh != "" {
		req.AddCookie(&http.Cookie{Name: common.RefreshTokenCookieName, Value: refresh})
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	c.captureRefresh(resp)

	if resp.StatusCode >= http.StatusBadRequest {
		return decodeError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent || resp.StatusCode == http.StatusResetContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// captureRefresh keeps the refresh cookie from Set-Cookie, or forgets it
// when the server clears it.
func (c *Client) captureRefresh(resp *http.Response) {
	for _, ck := range resp.Cookies() {
		if ck.Name != common.RefreshTokenCookieName {
			continue
		}
		c.mu.Lock()
		if ck.MaxAge < 0 || ck.Value == "" {
			c.refresh = ""
		} else {
			c.refresh = ck.Value
		}
		c.mu.Unlock()
	}
}

func decodeError(resp *http.Response) error {
	apiErr := &Error{Status: resp.StatusCode, Code: http.StatusText(resp.StatusCode)}

	var er errorResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<16)).Decode(&er); err == nil && er.Error != "" {
		apiErr.Code = er.Error
		apiErr.Fields = er.Fields
	}
	return apiErr
}

// authorized sends rq with the access token. On a 401 it refreshes the
// session once and retries.
func (c *Client) authorized(ctx context.Context, rq request, out any) error {
	rq.bearer = true
	err := c.send(ctx, rq, out)
	if err == nil || !errors.Is(err, ErrUnauthorized) || !c.LoggedIn() {
		return err
	}

	if rerr := c.Refresh(ctx); rerr != nil {
		return err
	}
	return c.send(ctx, rq, out)
}

// Register creates an account. It does not log in.
func (c *Client) Register(ctx context.Context, in RegisterRequest) (*User, error) {
	rq, err := jsonRequest(http.MethodPost, "/register", in)
	if err != nil {
		return nil, err
	}
	var u User
	if err := c.send(ctx, rq, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// Login opens a session and keeps its tokens.
func (c *Client) Login(ctx context.Context, username, password string) (*User, error) {
	rq, err := jsonRequest(http.MethodPost, "/login", credentials{Username: username, Password: password})
	if err != nil {
		return nil, err
	}
	var t tokenResponse
	if err := c.send(ctx, rq, &t); err != nil {
		return nil, err
	}
	c.setAccess(t)
	return t.User, nil
}

// Refresh rotates the refresh cookie and replaces the access token. A
// rejected refresh drops the local session.
func (c *Client) Refresh(ctx context.Context) error {
	if !c.LoggedIn() {
		return ErrNotLoggedIn
	}
	var t tokenResponse
	err := c.send(ctx, request{method: http.MethodPost, path: "/token/refresh", cookie: true}, &t)
	if err != nil {
		if errors.Is(err, ErrUnauthorized) {
			c.reset()
		}
		return err
	}
	c.setAccess(t)
	return nil
}

// Logout revokes the refresh token on the server. The local session is
// dropped whatever the outcome.
func (c *Client) Logout(ctx context.Context) error {
	if !c.LoggedIn() {
		return ErrNotLoggedIn
	}
	defer c.reset()
	return c.authorized(ctx, request{method: http.MethodPost, path: "/logout", cookie: true}, nil)
}

// Profile returns the logged-in user.
func (c *Client) Profile(ctx context.Context) (*User, error) {
	var u User
	if err := c.authorized(ctx, request{method: http.MethodGet, path: "/profile"}, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// Departments lists every department.
func (c *Client) Departments(ctx context.Context) ([]Department, error) {
	var list []Department
	if err := c.authorized(ctx, request{method: http.MethodGet, path: "/departments"}, &list); err != nil {
		return nil, err
	}
	return list, nil
}

// CreateDepartment requires a staff session.
func (c *Client) CreateDepartment(ctx context.Context, name, description string) (*Department, error) {
	rq, err := jsonRequest(http.MethodPost, "/departments", map[string]string{
		"name":        name,
		"description": description,
	})
	if err != nil {
		return nil, err
	}
	var d Department
	if err := c.authorized(ctx, rq, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

// UpdateStatus changes status fields of another user; it requires a staff
// session. An empty value clears a nullable field. When avatarPath is set
// the request is sent as multipart with the file attached.
func (c *Client) UpdateStatus(ctx context.Context, userID string, fields map[string]string, avatarPath string) (*User, error) {
	path := "/users/" + userID + "/status"

	var (
		rq  request
		err error
	)
	if avatarPath == "" {
		rq, err = jsonRequest(http.MethodPatch, path, fields)
	} else {
		rq, err = multipartRequest(http.MethodPatch, path, fields, "avatar", avatarPath)
	}
	if err != nil {
		return nil, err
	}

	var u User
	if err := c.authorized(ctx, rq, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

func multipartRequest(method, path string, fields map[string]string, fileField, filePath string) (request, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return request{}, fmt.Errorf("read %s: %w", filePath, err)
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			return request{}, err
		}
	}

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, fileField, filepath.Base(filePath)))
	h.Set("Content-Type", http.DetectContentType(data))
	part, err := mw.CreatePart(h)
	if err != nil {
		return request{}, err
	}
	if _, err := part.Write(data); err != nil {
		return request{}, err
	}
	if err := mw.Close(); err != nil {
		return request{}, err
	}

	return request{method: method, path: path, body: buf.Bytes(), contentType: mw.FormDataContentType()}, nil
}
