package backend

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/deeplooplabs/pagedcache"
)

type place struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func TestHTTP_Fetch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("q") != "pizza" {
			t.Errorf("expected q=pizza, got %q", q.Get("q"))
		}
		if cats := q["category"]; len(cats) != 2 || cats[0] != "food" || cats[1] != "italian" {
			t.Errorf("unexpected categories %v", cats)
		}
		if q.Get("at") != "52.52,13.405" || q.Get("radius") != "1500" {
			t.Errorf("unexpected area at=%q radius=%q", q.Get("at"), q.Get("radius"))
		}
		if q.Get("offset") != "2" || q.Get("limit") != "3" {
			t.Errorf("unexpected paging offset=%q limit=%q", q.Get("offset"), q.Get("limit"))
		}
		if q.Get("lang") != "de" {
			t.Errorf("expected query params to be forwarded, got lang=%q", q.Get("lang"))
		}
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Errorf("unexpected Authorization %q", r.Header.Get("Authorization"))
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"items":[{"id":"p3","name":"Trattoria"},{"id":"p4","name":"Da Mario"}],"total":4}`))
	}))
	defer server.Close()

	b, err := NewHTTP[place](NewConfig("places").WithEndpoint(server.URL + "/search").WithAPIKey("test-key"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if b.Name() != "places" {
		t.Errorf("expected 'places', got '%s'", b.Name())
	}

	q := pagedcache.NewQuery("pizza", "food", "italian").WithArea(52.52, 13.405, 1500)
	q.Set("lang", "de")

	page, err := b.Fetch(context.Background(), q, 2, 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if page.Total != 4 {
		t.Errorf("expected total 4, got %d", page.Total)
	}
	if len(page.Items) != 2 || page.Items[1].Name != "Da Mario" {
		t.Errorf("unexpected items %+v", page.Items)
	}
}

func TestHTTP_BasicAuth(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != "alice" || pass != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Write([]byte(`{"items":[],"total":0}`))
	}))
	defer server.Close()

	b, err := NewHTTP[place](NewConfig("places").WithEndpoint(server.URL).WithCredentials("alice", "secret"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := b.Fetch(context.Background(), pagedcache.NewQuery("x"), 0, 1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestHTTP_NotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	b, err := NewHTTP[place](NewConfig("places").WithEndpoint(server.URL))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	_, err = b.Fetch(context.Background(), pagedcache.NewQuery("x"), 0, 1)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestHTTP_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"items":[{"id":"p1"}],"total":1}`))
	}))
	defer server.Close()

	retry := DefaultRetryConfig()
	retry.InitialBackoff = time.Millisecond
	retry.Jitter = false

	b, err := NewHTTP[place](NewConfig("places").WithEndpoint(server.URL).WithRetryConfig(retry))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	page, err := b.Fetch(context.Background(), pagedcache.NewQuery("x"), 0, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(page.Items) != 1 {
		t.Errorf("expected 1 item, got %d", len(page.Items))
	}
	if calls.Load() != 3 {
		t.Errorf("expected 3 calls, got %d", calls.Load())
	}
}

func TestHTTP_RetriesExhausted(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte("upstream down"))
	}))
	defer server.Close()

	retry := DefaultRetryConfig()
	retry.MaxRetries = 1
	retry.InitialBackoff = time.Millisecond

	b, err := NewHTTP[place](NewConfig("places").WithEndpoint(server.URL).WithRetryConfig(retry))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	_, err = b.Fetch(context.Background(), pagedcache.NewQuery("x"), 0, 1)
	if err == nil {
		t.Fatal("expected an error")
	}
}

func TestNewHTTP_Validation(t *testing.T) {
	if _, err := NewHTTP[place](NewConfig("places")); err == nil {
		t.Error("expected error for missing endpoint")
	}
	if _, err := NewHTTP[place](NewConfig("places").WithEndpoint("http://localhost").WithProxy("://bad")); err == nil {
		t.Error("expected error for invalid proxy")
	}
}

func TestConfig_GetHTTPClient(t *testing.T) {
	config := NewConfig("places").WithTimeout(5 * time.Second).WithProxy("http://proxy.local:3128")
	client, err := config.GetHTTPClient()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if client.Timeout != 5*time.Second {
		t.Errorf("expected 5s timeout, got %v", client.Timeout)
	}

	transport := client.Transport.(*http.Transport)
	req, _ := http.NewRequest(http.MethodGet, "http://places.example.com", nil)
	proxy, err := transport.Proxy(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if proxy == nil || proxy.Host != "proxy.local:3128" {
		t.Errorf("unexpected proxy %v", proxy)
	}

	custom := &http.Client{}
	got, _ := NewConfig("x").WithHTTPClient(custom).GetHTTPClient()
	if got != custom {
		t.Error("expected configured client to be returned")
	}
}
