package inventory_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"ScanInventory/internal/inventory"
	"ScanInventory/pkg/kit"
)

type collectionResp struct {
	Productos []inventory.ProductRecord `json:"productos"`
}

type mutateResp struct {
	Success    bool           `json:"success"`
	Inventario collectionResp `json:"inventario"`
}

func newInventoryTS(t *testing.T, b inventory.Backend, limiter *kit.IPRateLimiter, reg *prometheus.Registry) *httptest.Server {
	t.Helper()

	s := &inventory.Server{
		Service: &inventory.Service{
			Store: inventory.NewStore(b, inventory.StoreOptions{
				Now: func() time.Time { return now },
			}),
			Metrics: inventory.NewMetrics(reg),
		},
		Log:             zap.NewNop(),
		MutationLimiter: limiter,
	}

	h := inventory.NewHandler(s, inventory.HTTPDeps{
		Log:            zap.NewNop(),
		Service:        "inventory",
		Registry:       reg,
		MetricsEnabled: reg != nil,
		MetricsToken:   "metrics-token",
	})

	ts := httptest.NewServer(h)
	t.Cleanup(ts.Close)
	return ts
}

func doJSON(t *testing.T, method, url string, body any, headers map[string]string) (*http.Response, []byte) {
	t.Helper()

	var r io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		r = strings.NewReader(b)
	default:
		raw, err := json.Marshal(b)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		r = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(method, url, r)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp, raw
}

func decode[T any](t *testing.T, raw []byte) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		t.Fatalf("decode: %v body=%s", err, string(raw))
	}
	return v
}

func TestHTTP_ScanFlow(t *testing.T) {
	ts := newInventoryTS(t, inventory.NewMemBackend(), nil, nil)
	api := ts.URL + "/api/inventario"

	{
		resp, raw := doJSON(t, http.MethodGet, api, nil, nil)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("list status=%d body=%s", resp.StatusCode, string(raw))
		}
		if got := decode[collectionResp](t, raw); got.Productos == nil || len(got.Productos) != 0 {
			t.Fatalf("expected empty productos array, body=%s", string(raw))
		}
	}

	{
		resp, _ := doJSON(t, http.MethodGet, api+"/A1", nil, nil)
		if resp.StatusCode != http.StatusNotFound {
			t.Fatalf("lookup status=%d", resp.StatusCode)
		}
	}

	{
		resp, raw := doJSON(t, http.MethodPost, api, map[string]any{
			"codigo": "A1", "nombre": "Widget", "accion": "add", "cantidad": 5,
		}, nil)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("create status=%d body=%s", resp.StatusCode, string(raw))
		}
		got := decode[mutateResp](t, raw)
		if !got.Success || len(got.Inventario.Productos) != 1 {
			t.Fatalf("unexpected body=%s", string(raw))
		}
		p := got.Inventario.Productos[0]
		if p.Code != "A1" || p.Name != "Widget" || p.Quantity != 5 || !p.LastUpdated.Equal(now) {
			t.Fatalf("unexpected record %+v", p)
		}
	}

	{
		resp, raw := doJSON(t, http.MethodPost, api, map[string]any{
			"codigo": "A1", "accion": "quitar", "cantidad": 10,
		}, nil)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("remove status=%d body=%s", resp.StatusCode, string(raw))
		}
		if q := decode[mutateResp](t, raw).Inventario.Productos[0].Quantity; q != 0 {
			t.Fatalf("quantity=%d want 0", q)
		}
	}

	{
		resp, raw := doJSON(t, http.MethodGet, api+"/A1", nil, nil)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("lookup status=%d body=%s", resp.StatusCode, string(raw))
		}
		if p := decode[inventory.ProductRecord](t, raw); p.Name != "Widget" {
			t.Fatalf("name=%q", p.Name)
		}
	}

	{
		resp, raw := doJSON(t, http.MethodDelete, api+"?codigo=A1", nil, nil)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("delete status=%d body=%s", resp.StatusCode, string(raw))
		}
		if n := len(decode[mutateResp](t, raw).Inventario.Productos); n != 0 {
			t.Fatalf("productos=%d after delete", n)
		}
	}
}

func TestHTTP_DeleteByPath(t *testing.T) {
	ts := newInventoryTS(t, inventory.NewMemBackend(), nil, nil)
	api := ts.URL + "/api/inventario"

	doJSON(t, http.MethodPost, api, map[string]any{"codigo": "A1", "accion": "add"}, nil)
	doJSON(t, http.MethodPost, api, map[string]any{"codigo": "B2", "accion": "add"}, nil)

	resp, raw := doJSON(t, http.MethodDelete, api+"/A1", nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("delete status=%d body=%s", resp.StatusCode, string(raw))
	}
	got := decode[mutateResp](t, raw).Inventario.Productos
	if len(got) != 1 || got[0].Code != "B2" {
		t.Fatalf("unexpected productos %+v", got)
	}
}

func TestHTTP_BadRequests(t *testing.T) {
	ts := newInventoryTS(t, inventory.NewMemBackend(), nil, nil)
	api := ts.URL + "/api/inventario"

	tests := []struct {
		name   string
		method string
		url    string
		body   any
	}{
		{"missing code", http.MethodPost, api, map[string]any{"accion": "add"}},
		{"unknown action", http.MethodPost, api, map[string]any{"codigo": "A1", "accion": "bump"}},
		{"negative amount", http.MethodPost, api, map[string]any{"codigo": "A1", "accion": "set", "cantidad": -2}},
		{"unknown field", http.MethodPost, api, map[string]any{"codigo": "A1", "accion": "add", "precio": 3}},
		{"malformed json", http.MethodPost, api, `{"codigo":`},
		{"trailing data", http.MethodPost, api, `{"codigo":"A1","accion":"add"} {}`},
		{"delete without code", http.MethodDelete, api, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, raw := doJSON(t, tt.method, tt.url, tt.body, nil)
			if resp.StatusCode != http.StatusBadRequest {
				t.Fatalf("status=%d body=%s", resp.StatusCode, string(raw))
			}
			if e := decode[kit.ErrorResponse](t, raw); e.Error == "" || e.RequestID == "" {
				t.Fatalf("unexpected error body=%s", string(raw))
			}
		})
	}

	// nothing was persisted by the rejected requests
	resp, raw := doJSON(t, http.MethodGet, api, nil, nil)
	if resp.StatusCode != http.StatusOK || len(decode[collectionResp](t, raw).Productos) != 0 {
		t.Fatalf("state changed by bad requests: %s", string(raw))
	}
}

func TestHTTP_AddOverflowIsRejected(t *testing.T) {
	ts := newInventoryTS(t, inventory.NewMemBackend(), nil, nil)
	api := ts.URL + "/api/inventario"

	resp, raw := doJSON(t, http.MethodPost, api, map[string]any{
		"codigo": "A1", "accion": "add", "cantidad": math.MaxInt,
	}, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status=%d body=%s", resp.StatusCode, string(raw))
	}

	resp, raw = doJSON(t, http.MethodPost, api, map[string]any{"codigo": "A1", "accion": "add"}, nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("overflow status=%d body=%s", resp.StatusCode, string(raw))
	}

	resp, raw = doJSON(t, http.MethodGet, api+"/A1", nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("lookup status=%d body=%s", resp.StatusCode, string(raw))
	}
	if q := decode[inventory.ProductRecord](t, raw).Quantity; q != math.MaxInt {
		t.Fatalf("quantity=%d want %d", q, math.MaxInt)
	}
}

type brokenBackend struct{ inventory.MemBackend }

func (b *brokenBackend) Write(ctx context.Context, doc []byte) error {
	return errors.New("read-only filesystem")
}

func (b *brokenBackend) Ping(ctx context.Context) error {
	return errors.New("unreachable")
}

func TestHTTP_StorageFailure(t *testing.T) {
	ts := newInventoryTS(t, &brokenBackend{}, nil, nil)

	resp, raw := doJSON(t, http.MethodPost, ts.URL+"/api/inventario", map[string]any{"codigo": "A1", "accion": "add"}, nil)
	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("status=%d body=%s", resp.StatusCode, string(raw))
	}
	if e := decode[kit.ErrorResponse](t, raw); e.Error != "server error" {
		t.Fatalf("error=%q", e.Error)
	}

	resp, _ = doJSON(t, http.MethodGet, ts.URL+"/readyz", nil, nil)
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("readyz status=%d", resp.StatusCode)
	}

	resp, _ = doJSON(t, http.MethodGet, ts.URL+"/healthz", nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("healthz status=%d", resp.StatusCode)
	}
}

func TestHTTP_MutationRateLimit(t *testing.T) {
	ts := newInventoryTS(t, inventory.NewMemBackend(), kit.NewIPRateLimiter(2, 60), nil)
	api := ts.URL + "/api/inventario"

	for i := 0; i < 2; i++ {
		resp, raw := doJSON(t, http.MethodPost, api, map[string]any{"codigo": "A1", "accion": "add"}, nil)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("mutation %d status=%d body=%s", i, resp.StatusCode, string(raw))
		}
	}

	resp, _ := doJSON(t, http.MethodPost, api, map[string]any{"codigo": "A1", "accion": "add"}, nil)
	if resp.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("status=%d want 429", resp.StatusCode)
	}
	if resp.Header.Get("Retry-After") == "" {
		t.Fatalf("missing Retry-After")
	}

	// rotating X-Forwarded-For does not reset the budget
	resp, _ = doJSON(t, http.MethodPost, api, map[string]any{"codigo": "A1", "accion": "add"}, map[string]string{
		"X-Forwarded-For": "198.51.100.23",
	})
	if resp.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("forwarded status=%d want 429", resp.StatusCode)
	}

	// reads are not limited
	resp, _ = doJSON(t, http.MethodGet, api, nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list status=%d", resp.StatusCode)
	}
}

func TestHTTP_MetricsEndpoint(t *testing.T) {
	ts := newInventoryTS(t, inventory.NewMemBackend(), nil, prometheus.NewRegistry())

	doJSON(t, http.MethodPost, ts.URL+"/api/inventario", map[string]any{"codigo": "A1", "accion": "add"}, nil)

	resp, _ := doJSON(t, http.MethodGet, ts.URL+"/metrics", nil, nil)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("unauthenticated metrics status=%d", resp.StatusCode)
	}

	resp, raw := doJSON(t, http.MethodGet, ts.URL+"/metrics", nil, map[string]string{
		"Authorization": "Bearer metrics-token",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("metrics status=%d", resp.StatusCode)
	}
	body := string(raw)
	for _, want := range []string{
		`inventory_mutations_total{action="add",outcome="ok"} 1`,
		`http_requests_total{method="POST",path="/api/inventario`,
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("metrics missing %q", want)
		}
	}
}
