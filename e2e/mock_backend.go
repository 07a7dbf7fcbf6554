package e2e

import (
	"encoding/json"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/deeplooplabs/pagedcache/backend"
)

// Place is the item type served by the mock search service
type Place struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Category string  `json:"category"`
	Lat      float64 `json:"lat"`
	Lon      float64 `json:"lon"`
}

// PageRequest records one page request received by the mock service
type PageRequest struct {
	Term          string
	Categories    []string
	Area          string
	Offset        int
	Limit         int
	Authorization string
}

// E2EMockBackend is a place search service for E2E tests. It answers
//
//	GET /search?q=...&category=...&offset=N&limit=M
//
// the way the HTTP backend expects, and can hold responses until released.
type E2EMockBackend struct {
	mu sync.Mutex

	places   []Place
	requests []PageRequest

	// held responses wait on release
	hold    bool
	release chan struct{}

	// error simulation
	errorTerm string
	errorCode int

	// overTotal makes the service declare a total smaller than it serves
	overTotal bool
}

// NewE2EMockBackend creates a mock service over places
func NewE2EMockBackend(places []Place) *E2EMockBackend {
	return &E2EMockBackend{
		places:  places,
		release: make(chan struct{}),
	}
}

// Hold makes following responses wait until Release is called
func (m *E2EMockBackend) Hold() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hold = true
}

// Release lets every held response through and stops holding
func (m *E2EMockBackend) Release() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.hold {
		m.hold = false
		close(m.release)
		m.release = make(chan struct{})
	}
}

// SetError makes requests for term fail with the given status code
func (m *E2EMockBackend) SetError(term string, code int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errorTerm = term
	m.errorCode = code
}

// SetOverTotal makes the service under-declare its totals
func (m *E2EMockBackend) SetOverTotal(over bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.overTotal = over
}

// Requests returns the page requests received so far
func (m *E2EMockBackend) Requests() []PageRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.requests)
}

// Matching returns the places a query for term and categories matches, in
// result order
func (m *E2EMockBackend) Matching(term string, categories ...string) []Place {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.match(term, categories)
}

func (m *E2EMockBackend) match(term string, categories []string) []Place {
	var out []Place
	for _, p := range m.places {
		if term != "" && !strings.Contains(strings.ToLower(p.Name), strings.ToLower(term)) {
			continue
		}
		if len(categories) > 0 && !slices.Contains(categories, p.Category) {
			continue
		}
		out = append(out, p)
	}
	return out
}

// ServeHTTP implements http.Handler
func (m *E2EMockBackend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	values := r.URL.Query()
	offset, err := strconv.Atoi(values.Get("offset"))
	if err != nil {
		http.Error(w, "invalid offset", http.StatusBadRequest)
		return
	}
	limit, err := strconv.Atoi(values.Get("limit"))
	if err != nil {
		http.Error(w, "invalid limit", http.StatusBadRequest)
		return
	}

	req := PageRequest{
		Term:          values.Get("q"),
		Categories:    values["category"],
		Area:          values.Get("at"),
		Offset:        offset,
		Limit:         limit,
		Authorization: r.Header.Get("Authorization"),
	}

	m.mu.Lock()
	m.requests = append(m.requests, req)
	hold, release := m.hold, m.release
	errorTerm, errorCode := m.errorTerm, m.errorCode
	matched := m.match(req.Term, req.Categories)
	overTotal := m.overTotal
	m.mu.Unlock()

	if hold {
		select {
		case <-release:
		case <-r.Context().Done():
			return
		}
	}

	if errorCode != 0 && req.Term == errorTerm {
		http.Error(w, "search failed", errorCode)
		return
	}

	page := backend.Page[Place]{Total: len(matched)}
	if offset < len(matched) {
		page.Items = matched[offset:min(offset+limit, len(matched))]
	}
	if overTotal {
		page.Total = len(page.Items) - 1
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(page)
}

// DemoPlaces returns a small fixed place set
func DemoPlaces() []Place {
	return []Place{
		{ID: "p1", Name: "Central Coffee", Category: "cafe", Lat: 52.520, Lon: 13.405},
		{ID: "p2", Name: "Coffee Corner", Category: "cafe", Lat: 52.521, Lon: 13.410},
		{ID: "p3", Name: "Museum of Coffee", Category: "museum", Lat: 52.517, Lon: 13.389},
		{ID: "p4", Name: "Harbor Museum", Category: "museum", Lat: 52.505, Lon: 13.440},
		{ID: "p5", Name: "Riverside Park", Category: "park", Lat: 52.498, Lon: 13.420},
		{ID: "p6", Name: "Night Coffee Bar", Category: "bar", Lat: 52.530, Lon: 13.401},
		{ID: "p7", Name: "Old Town Bakery", Category: "cafe", Lat: 52.519, Lon: 13.398},
		{ID: "p8", Name: "Coffee Lab", Category: "cafe", Lat: 52.512, Lon: 13.415},
		{ID: "p9", Name: "City Park", Category: "park", Lat: 52.514, Lon: 13.350},
		{ID: "p10", Name: "Coffee & Books", Category: "cafe", Lat: 52.526, Lon: 13.430},
		{ID: "p11", Name: "Art Museum", Category: "museum", Lat: 52.509, Lon: 13.376},
		{ID: "p12", Name: "Coffee Kiosk", Category: "cafe", Lat: 52.523, Lon: 13.412},
	}
}
