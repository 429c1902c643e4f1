package pagination

import (
	"context"
	"errors"

	"github.com/AndreasKatsouris/MerakiCaptivePortal-firebaseDB-sub003/pkg/docstore"
)

var (
	ErrNoMorePages    = errors.New("no more pages")
	ErrNoPreviousPage = errors.New("already on the first page")
)

// Fetcher fetches one page.
type Fetcher interface {
	FetchPage(ctx context.Context, req Request) (*Page, error)
}

// Session is the navigation state of one caller: the start cursor of every visited page.
// Backward navigation re-issues the forward query from the previous start cursor. A Session
// belongs to a single caller and must not be shared between concurrent requests. Its state only
// changes after a fetch succeeds, so a failed navigation can be retried.
type Session struct {
	Collection string
	Sort       SortSpec

	pageSize int
	// starts[i] is the cursor page i was fetched from; starts[0] is nil.
	starts  []*docstore.Cursor
	current *Page
}

func NewSession(collection string, sort SortSpec, pageSize int) *Session {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &Session{Collection: collection, Sort: sort, pageSize: pageSize}
}

// PageSize returns the current page size.
func (s *Session) PageSize() int {
	return s.pageSize
}

// PageIndex is the zero-based index of the current page, or -1 before the first fetch.
func (s *Session) PageIndex() int {
	return len(s.starts) - 1
}

// Current returns the last fetched page.
func (s *Session) Current() *Page {
	return s.current
}

func (s *Session) HasNext() bool {
	return s.current != nil && s.current.HasMore
}

func (s *Session) HasPrev() bool {
	return len(s.starts) > 1
}

// First fetches the first page and clears the history.
func (s *Session) First(ctx context.Context, f Fetcher) (*Page, error) {
	page, err := s.fetch(ctx, f, nil)
	if err != nil {
		return nil, err
	}
	s.starts = []*docstore.Cursor{nil}
	s.current = page
	return page, nil
}

// Next fetches the page after the current one. Before any fetch it behaves like First.
func (s *Session) Next(ctx context.Context, f Fetcher) (*Page, error) {
	if s.current == nil {
		return s.First(ctx, f)
	}
	if !s.current.HasMore {
		return nil, ErrNoMorePages
	}

	start := s.current.CursorKey
	page, err := s.fetch(ctx, f, start)
	if err != nil {
		return nil, err
	}
	s.starts = append(s.starts, start)
	s.current = page
	return page, nil
}

// Prev re-fetches the page before the current one.
func (s *Session) Prev(ctx context.Context, f Fetcher) (*Page, error) {
	if !s.HasPrev() {
		return nil, ErrNoPreviousPage
	}

	page, err := s.fetch(ctx, f, s.starts[len(s.starts)-2])
	if err != nil {
		return nil, err
	}
	s.starts = s.starts[:len(s.starts)-1]
	s.current = page
	return page, nil
}

// SetPageSize changes the page size and resets navigation to before the first page.
// Scroll position is not preserved.
func (s *Session) SetPageSize(pageSize int) {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	s.pageSize = pageSize
	s.Reset()
}

// Reset forgets the history.
func (s *Session) Reset() {
	s.starts = nil
	s.current = nil
}

func (s *Session) fetch(ctx context.Context, f Fetcher, cursor *docstore.Cursor) (*Page, error) {
	return f.FetchPage(ctx, Request{
		Collection: s.Collection,
		Sort:       s.Sort,
		PageSize:   s.pageSize,
		Cursor:     cursor,
		Direction:  Forward,
	})
}
