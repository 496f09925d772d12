package promoclient

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// SearchResult delivers one completed typeahead lookup.
type SearchResult struct {
	Query  string
	Result *ListResult
	Err    error
}

// Searcher debounces keystroke-driven promotion searches. Only the
// latest query triggers a request, and responses that arrive after a
// newer query was issued are dropped rather than delivered out of
// order.
type Searcher struct {
	client *Client
	delay  time.Duration
	limit  int

	deliver func(SearchResult)

	seq atomic.Uint64

	mu    sync.Mutex
	timer *time.Timer
}

// NewSearcher creates a Searcher that waits delay after the last call
// to Search before issuing a request, delivering results to fn.
func NewSearcher(client *Client, delay time.Duration, fn func(SearchResult)) *Searcher {
	return &Searcher{
		client:  client,
		delay:   delay,
		limit:   20,
		deliver: fn,
	}
}

// Search schedules a lookup for query, resetting the debounce window.
// Calling again before the window elapses cancels the pending lookup.
func (s *Searcher) Search(ctx context.Context, query string) {
	seq := s.seq.Add(1)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = time.AfterFunc(s.delay, func() {
		s.run(ctx, seq, query)
	})
}

// Cancel drops any pending lookup and invalidates in-flight responses.
func (s *Searcher) Cancel() {
	s.seq.Add(1)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

func (s *Searcher) run(ctx context.Context, seq uint64, query string) {
	// A newer Search superseded this one while it waited.
	if s.seq.Load() != seq {
		return
	}

	res, err := s.client.ListPromotions(ctx, ListQuery{Search: query, Limit: s.limit})

	// The response is stale if another query was issued meanwhile.
	if s.seq.Load() != seq {
		return
	}
	s.deliver(SearchResult{Query: query, Result: res, Err: err})
}
