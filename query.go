package pagedcache

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// GeoCircle is a circular search area
type GeoCircle struct {
	Latitude  float64
	Longitude float64
	// Radius in meters, zero means the backend default
	Radius float64
}

// Query scopes a result set. Queries are compared by identity: two Query
// values with the same criteria are still different queries.
type Query struct {
	ID               string
	CreatedAt        time.Time
	Term             string
	Categories       []string
	Area             *GeoCircle
	RecommendationID string

	params map[string]string
	mu     sync.RWMutex
}

// NewQuery creates a new query for the given search term and categories
func NewQuery(term string, categories ...string) *Query {
	return &Query{
		ID:         uuid.New().String(),
		CreatedAt:  time.Now(),
		Term:       term,
		Categories: categories,
		params:     make(map[string]string),
	}
}

// WithArea sets the search area
func (q *Query) WithArea(lat, lon, radius float64) *Query {
	q.Area = &GeoCircle{Latitude: lat, Longitude: lon, Radius: radius}
	return q
}

// WithRecommendation scopes the query to places similar to the given place id
func (q *Query) WithRecommendation(placeID string) *Query {
	q.RecommendationID = placeID
	return q
}

// Set stores a backend specific parameter
func (q *Query) Set(key, value string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.params == nil {
		q.params = make(map[string]string)
	}
	q.params[key] = value
}

// Get returns a backend specific parameter
func (q *Query) Get(key string) string {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.params[key]
}

// Params returns a copy of all backend specific parameters
func (q *Query) Params() map[string]string {
	q.mu.RLock()
	defer q.mu.RUnlock()
	out := make(map[string]string, len(q.params))
	for k, v := range q.params {
		out[k] = v
	}
	return out
}

// String returns a short description for logs
func (q *Query) String() string {
	if q == nil {
		return "<nil>"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%q", q.Term)
	if len(q.Categories) > 0 {
		fmt.Fprintf(&b, " categories=%s", strings.Join(q.Categories, ","))
	}
	if q.Area != nil {
		fmt.Fprintf(&b, " at=%g,%g r=%g", q.Area.Latitude, q.Area.Longitude, q.Area.Radius)
	}
	return b.String()
}

// LogValue implements slog.LogValuer
func (q *Query) LogValue() slog.Value {
	if q == nil {
		return slog.StringValue("none")
	}
	return slog.GroupValue(
		slog.String("id", q.ID),
		slog.String("term", q.Term),
	)
}
