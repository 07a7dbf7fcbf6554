package pagedcache

import (
	"strings"
	"testing"
)

func TestNewQuery(t *testing.T) {
	q := NewQuery("coffee", "cafe", "bakery")

	if q.ID == "" {
		t.Error("ID should not be empty")
	}
	if q.CreatedAt.IsZero() {
		t.Error("CreatedAt should not be zero")
	}
	if len(q.Categories) != 2 {
		t.Errorf("expected 2 categories, got %d", len(q.Categories))
	}
}

func TestQueryIdentity(t *testing.T) {
	a := NewQuery("coffee")
	b := NewQuery("coffee")

	if a == b {
		t.Error("equal criteria must still be distinct queries")
	}
	if a.ID == b.ID {
		t.Error("IDs should be unique")
	}
}

func TestQuerySetGet(t *testing.T) {
	q := NewQuery("museum")
	q.Set("locale", "de")

	if val := q.Get("locale"); val != "de" {
		t.Errorf("expected 'de', got '%v'", val)
	}
	if val := q.Get("nonexistent"); val != "" {
		t.Errorf("expected empty, got '%v'", val)
	}

	params := q.Params()
	params["locale"] = "fr"
	if q.Get("locale") != "de" {
		t.Error("Params should return a copy")
	}
}

func TestQueryString(t *testing.T) {
	q := NewQuery("park", "outdoor").WithArea(52.5, 13.4, 500)
	s := q.String()
	for _, want := range []string{`"park"`, "categories=outdoor", "at=52.5,13.4"} {
		if !strings.Contains(s, want) {
			t.Errorf("expected %q in %q", want, s)
		}
	}

	var nilQuery *Query
	if nilQuery.String() != "<nil>" {
		t.Errorf("unexpected nil string %q", nilQuery.String())
	}
}

func TestStatusString(t *testing.T) {
	if Idle.String() != "idle" || FetchingFirst.String() != "fetching_first" || FetchingMore.String() != "fetching_more" {
		t.Error("unexpected status names")
	}
	if Idle.Fetching() || !FetchingMore.Fetching() {
		t.Error("unexpected Fetching result")
	}
}
