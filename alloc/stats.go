package alloc

import (
	"github.com/joshuapare/spanalloc/span/central"
	"github.com/joshuapare/spanalloc/span/pageheap"
	"github.com/joshuapare/spanalloc/span/pagesource"
)

type counters struct {
	mallocs  int
	frees    int
	callocs  int
	reallocs int
	failures int
	fallback int
}

// Stats is a snapshot of allocator activity.
type Stats struct {
	State    string  `json:"state"`
	PageSize uintptr `json:"page_size"`
	Index    string  `json:"index"`

	Mallocs       int `json:"mallocs"`
	Frees         int `json:"frees"`
	Callocs       int `json:"callocs"`
	Reallocs      int `json:"reallocs"`
	Failures      int `json:"failures"`       // allocations that returned 0 for lack of memory
	FallbackCalls int `json:"fallback_calls"` // requests served by the fallback allocator

	IndexPages uintptr `json:"index_pages"` // pages registered in the span index
	IndexCap   uintptr `json:"index_cap"`
	SpanIDs    int     `json:"span_ids"` // identifiers minted so far

	Source pagesource.Stats `json:"source"`
	Heap   pageheap.Stats   `json:"heap"`
	Small  central.Stats    `json:"small"`
}

// Stats returns a snapshot of the allocator counters.
func (a *Allocator) Stats() Stats {
	a.lock()
	defer a.unlock()

	st := Stats{
		State:         a.state.String(),
		PageSize:      a.opts.PageSize,
		Index:         string(a.opts.Index),
		Mallocs:       a.counters.mallocs,
		Frees:         a.counters.frees,
		Callocs:       a.counters.callocs,
		Reallocs:      a.counters.reallocs,
		Failures:      a.counters.failures,
		FallbackCalls: a.counters.fallback,
	}
	if a.small == nil {
		return st
	}
	st.IndexPages = a.idx.Len()
	st.IndexCap = a.idx.Cap()
	st.SpanIDs = a.metas.Len()
	st.Source = a.src.Stats()
	st.Heap = a.heap.Stats()
	st.Small = a.small.Stats()
	return st
}
