package pagedcache

import "fmt"

// Status is the fetch state of a cache
type Status int

const (
	// Idle means no fetch is outstanding
	Idle Status = iota
	// FetchingFirst means the first batch of the current query is in flight
	FetchingFirst
	// FetchingMore means a follow-up batch is in flight
	FetchingMore
)

// String returns the string representation of Status
func (s Status) String() string {
	switch s {
	case Idle:
		return "idle"
	case FetchingFirst:
		return "fetching_first"
	case FetchingMore:
		return "fetching_more"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// Fetching reports whether a fetch is outstanding
func (s Status) Fetching() bool {
	return s == FetchingFirst || s == FetchingMore
}
