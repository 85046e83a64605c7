package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dmitrijs2005/accountkeeper/internal/common"
)

const apiPrefix = "/api/v1"

// HTTPClient talks JSON to the accountkeeper HTTP API.
type HTTPClient struct {
	baseURL string
	http    *http.Client
}

func NewHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

func (c *HTTPClient) Register(ctx context.Context, req RegisterRequest) (*TokenPair, error) {
	var pair TokenPair
	if err := c.do(ctx, http.MethodPost, apiPrefix+"/register", "", req, &pair); err != nil {
		return nil, err
	}
	return &pair, nil
}

func (c *HTTPClient) Login(ctx context.Context, email, password string) (*TokenPair, error) {
	body := map[string]string{"email": email, "password": password}
	var pair TokenPair
	if err := c.do(ctx, http.MethodPost, apiPrefix+"/login", "", body, &pair); err != nil {
		return nil, err
	}
	return &pair, nil
}

func (c *HTTPClient) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	body := map[string]string{"refreshToken": refreshToken}
	var pair TokenPair
	if err := c.do(ctx, http.MethodPost, apiPrefix+"/refresh-token", "", body, &pair); err != nil {
		return nil, err
	}
	return &pair, nil
}

func (c *HTTPClient) VerifyEmail(ctx context.Context, identityID, token string) (string, error) {
	body := map[string]string{"identityId": identityID, "token": token}
	var out struct {
		Status string `json:"status"`
	}
	if err := c.do(ctx, http.MethodPost, apiPrefix+"/verify-email", "", body, &out); err != nil {
		return "", err
	}
	return out.Status, nil
}

func (c *HTTPClient) GetProfile(ctx context.Context, id string) (*Profile, error) {
	var p Profile
	if err := c.do(ctx, http.MethodGet, userPath(id), "", nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (c *HTTPClient) UpdateProfile(ctx context.Context, accessToken, id string, upd ProfileUpdate) (*Profile, error) {
	var p Profile
	if err := c.do(ctx, http.MethodPut, userPath(id), accessToken, upd, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (c *HTTPClient) PictureUpload(ctx context.Context, accessToken, id string) (*PictureUpload, error) {
	var u PictureUpload
	if err := c.do(ctx, http.MethodPost, userPath(id)+"/picture", accessToken, nil, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

func (c *HTTPClient) DeleteUser(ctx context.Context, accessToken, id string) error {
	return c.do(ctx, http.MethodDelete, userPath(id), accessToken, nil, nil)
}

func (c *HTTPClient) Ping(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/healthz", "", nil, nil)
}

func userPath(id string) string {
	return apiPrefix + "/users/" + url.PathEscape(id)
}

func (c *HTTPClient) do(ctx context.Context, method, path, accessToken string, in, out any) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if accessToken != "" {
		req.Header.Set(common.AuthorizationHeaderName, common.BearerPrefix+accessToken)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return err
		}
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var e struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&e)
		return &APIError{Status: resp.StatusCode, Message: e.Error}
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
