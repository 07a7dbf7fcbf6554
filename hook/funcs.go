package hook

import "github.com/deeplooplabs/pagedcache"

// Funcs adapts plain functions to every hook interface. Nil fields are skipped.
type Funcs struct {
	HookName          string
	TotalCountChanged func(q *pagedcache.Query, total int)
	FetchFailed       func(q *pagedcache.Query, offset int, err error)
	QueryChanged      func(q *pagedcache.Query)
	BatchSizeChanged  func(n int)
	ItemsInserted     func(q *pagedcache.Query, first, last int)
	StatusChanged     func(status pagedcache.Status)
	FetchFinished     func(f Fetch)
}

// Name returns the hook name
func (f *Funcs) Name() string {
	if f.HookName != "" {
		return f.HookName
	}
	return "funcs"
}

func (f *Funcs) OnTotalCountChanged(q *pagedcache.Query, total int) {
	if f.TotalCountChanged != nil {
		f.TotalCountChanged(q, total)
	}
}

func (f *Funcs) OnFetchFailed(q *pagedcache.Query, offset int, err error) {
	if f.FetchFailed != nil {
		f.FetchFailed(q, offset, err)
	}
}

func (f *Funcs) OnQueryChanged(q *pagedcache.Query) {
	if f.QueryChanged != nil {
		f.QueryChanged(q)
	}
}

func (f *Funcs) OnBatchSizeChanged(n int) {
	if f.BatchSizeChanged != nil {
		f.BatchSizeChanged(n)
	}
}

func (f *Funcs) OnItemsInserted(q *pagedcache.Query, first, last int) {
	if f.ItemsInserted != nil {
		f.ItemsInserted(q, first, last)
	}
}

func (f *Funcs) OnStatusChanged(status pagedcache.Status) {
	if f.StatusChanged != nil {
		f.StatusChanged(status)
	}
}

func (f *Funcs) OnFetchFinished(fetch Fetch) {
	if f.FetchFinished != nil {
		f.FetchFinished(fetch)
	}
}

var (
	_ TotalCountHook  = (*Funcs)(nil)
	_ FetchFailedHook = (*Funcs)(nil)
	_ QueryHook       = (*Funcs)(nil)
	_ BatchSizeHook   = (*Funcs)(nil)
	_ ItemsHook       = (*Funcs)(nil)
	_ StatusHook      = (*Funcs)(nil)
	_ FetchHook       = (*Funcs)(nil)
)
