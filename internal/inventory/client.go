package inventory

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
)

var (
	ErrServiceBadStatus   = errors.New("inventory service bad status")
	ErrServiceUnavailable = errors.New("inventory service unavailable")
)

const clientTimeout = 3 * time.Second

// Client talks to the inventory HTTP API. A 400 from the service comes back
// wrapped in ErrInvalidInput.
type Client struct {
	BaseURL string
	Client  *http.Client
}

func NewClient(baseURL string) *Client {
	if u, err := url.Parse(baseURL); err == nil && u.Scheme != "" && u.Host != "" {
		baseURL = strings.TrimRight(baseURL, "/")
	}
	return &Client{
		BaseURL: baseURL,
		Client:  &http.Client{Timeout: clientTimeout},
	}
}

func (c *Client) Fetch(ctx context.Context) (Collection, error) {
	var out Collection
	if _, err := c.do(ctx, http.MethodGet, "/api/inventario", nil, &out); err != nil {
		return Collection{}, err
	}
	return out, nil
}

// Lookup reports false when the service answers 404.
func (c *Client) Lookup(ctx context.Context, code string) (ProductRecord, bool, error) {
	var p ProductRecord
	status, err := c.do(ctx, http.MethodGet, "/api/inventario/"+url.PathEscape(code), nil, &p)
	if status == http.StatusNotFound {
		return ProductRecord{}, false, nil
	}
	if err != nil {
		return ProductRecord{}, false, err
	}
	return p, true, nil
}

func (c *Client) Mutate(ctx context.Context, req MutateRequest) (Collection, error) {
	body := mutateReq{
		Code:   req.Code,
		Name:   req.Name,
		Action: req.Action,
		Amount: req.Amount,
	}

	var out mutateResp
	if _, err := c.do(ctx, http.MethodPost, "/api/inventario", body, &out); err != nil {
		return Collection{}, err
	}
	return out.Inventory, nil
}

func (c *Client) Delete(ctx context.Context, code string) (Collection, error) {
	var out mutateResp
	path := "/api/inventario?codigo=" + url.QueryEscape(code)
	if _, err := c.do(ctx, http.MethodDelete, path, nil, &out); err != nil {
		return Collection{}, err
	}
	return out.Inventory, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) (int, error) {
	var r io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return 0, err
		}
		r = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, r)
	if err != nil {
		return 0, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.Client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrServiceUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusBadRequest:
		return resp.StatusCode, fmt.Errorf("%w: %s", ErrInvalidInput, readErrorMessage(resp.Body))
	case resp.StatusCode == http.StatusServiceUnavailable || resp.StatusCode == http.StatusGatewayTimeout:
		_, _ = io.Copy(io.Discard, resp.Body)
		return resp.StatusCode, fmt.Errorf("%w: status=%d", ErrServiceUnavailable, resp.StatusCode)
	default:
		_, _ = io.Copy(io.Discard, resp.Body)
		return resp.StatusCode, fmt.Errorf("%w: status=%d", ErrServiceBadStatus, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return resp.StatusCode, err
	}
	return resp.StatusCode, nil
}

func readErrorMessage(r io.Reader) string {
	var e struct {
		Error string `json:"error"`
	}
	if err := json.NewDecoder(io.LimitReader(r, 64<<10)).Decode(&e); err != nil || e.Error == "" {
		return "bad request"
	}
	return e.Error
}
