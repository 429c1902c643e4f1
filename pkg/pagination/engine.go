// Package pagination pages through ordered collections of the document store with keyset
// cursors. The store has no offsets, so a page is a range query that starts after the last
// record of the previous page and over-fetches by one record to learn whether more follow.
package pagination

import (
	"context"
	"sort"

	"github.com/Gobusters/ectologger"

	"github.com/AndreasKatsouris/MerakiCaptivePortal-firebaseDB-sub003/pkg/docstore"
	apperrors "github.com/AndreasKatsouris/MerakiCaptivePortal-firebaseDB-sub003/pkg/errors"
	"github.com/AndreasKatsouris/MerakiCaptivePortal-firebaseDB-sub003/pkg/metrics"
	"github.com/AndreasKatsouris/MerakiCaptivePortal-firebaseDB-sub003/pkg/tracing"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 500
)

// Direction of navigation. The engine only pages forward; Session rebuilds backward
// navigation from its cursor history.
type Direction int

const (
	Forward Direction = iota
	Backward
)

// Mode distinguishes keyset browsing from the unpaginated search path.
type Mode string

const (
	ModeBrowse Mode = "browse"
	ModeSearch Mode = "search"
)

// Request describes one page.
type Request struct {
	Collection string
	Sort       SortSpec
	PageSize   int
	// Cursor is the exclusive start position; nil for the first page.
	Cursor    *docstore.Cursor
	Direction Direction
}

// Page is one window of a collection.
type Page struct {
	Items []docstore.Entry `json:"items"`
	// CursorKey is the position of the last record kept; the next page starts after it.
	CursorKey *docstore.Cursor `json:"cursorKey,omitempty"`
	// NextCursor is the position of the over-fetched record, when there is one.
	NextCursor *docstore.Cursor `json:"nextCursor,omitempty"`
	HasMore    bool             `json:"hasMore"`
	// PartialSort is set when the ordering only holds within this page.
	PartialSort bool `json:"partialSort"`
	Mode        Mode `json:"mode"`
	// Truncated is set when a search hit the configured result cap.
	Truncated bool `json:"truncated,omitempty"`
}

// Engine builds pages from store range queries.
type Engine struct {
	store            docstore.Store
	logger           ectologger.Logger
	maxSearchResults int
}

// NewEngine creates a pagination engine. maxSearchResults caps search mode; 0 returns every match.
func NewEngine(store docstore.Store, logger ectologger.Logger, maxSearchResults int) *Engine {
	return &Engine{
		store:            store,
		logger:           logger,
		maxSearchResults: maxSearchResults,
	}
}

// FetchPage returns the page described by req. It has no side effects, so retrying a request
// yields the same page as long as the collection is unchanged.
func (e *Engine) FetchPage(ctx context.Context, req Request) (*Page, error) {
	ctx, span := tracing.StartSpan(ctx, "pagination.Engine.FetchPage")
	defer span.End()

	if err := validateRequest(req); err != nil {
		return nil, err
	}

	orderBy := req.Sort.orderBy()
	entries, err := e.store.RangeQuery(ctx, req.Collection, docstore.Query{
		OrderBy:    orderBy,
		StartAfter: req.Cursor,
		Limit:      req.PageSize + 1,
	})
	if err != nil {
		tracing.RecordError(span, err)
		e.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"collection": req.Collection,
			"sort":       req.Sort.String(),
			"page_size":  req.PageSize,
		}).Error("Failed to query page")
		return nil, err
	}

	page := &Page{Mode: ModeBrowse, PartialSort: req.Sort.PartialSort()}
	if len(entries) > req.PageSize {
		page.HasMore = true
		page.NextCursor = cursorFor(entries[req.PageSize], orderBy)
		entries = entries[:req.PageSize]
	}
	if len(entries) > 0 {
		page.CursorKey = cursorFor(entries[len(entries)-1], orderBy)
	}

	if req.Sort.PartialSort() && req.Sort.less != nil {
		sortWithinPage(entries, req.Sort)
	}
	page.Items = entries

	metrics.PagesServedTotal.WithLabelValues(req.Collection, string(ModeBrowse)).Inc()
	metrics.PageItems.WithLabelValues(string(ModeBrowse)).Observe(float64(len(entries)))

	return page, nil
}

func validateRequest(req Request) error {
	if _, err := docstore.SplitPath(req.Collection); err != nil || req.Collection == "" {
		return apperrors.NewValidationError("collection", "a valid collection path is required")
	}
	if req.PageSize < 1 || req.PageSize > MaxPageSize {
		return apperrors.NewValidationErrorf("page_size", "page size must be between 1 and %d", MaxPageSize)
	}
	if req.Direction != Forward {
		return apperrors.NewValidationError("direction", "pages can only be fetched forward")
	}
	if req.Sort.ServerOrderable() && req.Sort.Descending() {
		return apperrors.NewValidationError("sort", "descending order is not supported by the store")
	}
	if req.Sort.kind == sortByField && req.Sort.field == "" {
		return apperrors.NewValidationError("sort", "sort field is required")
	}
	if req.Sort.kind == sortByField {
		if _, err := docstore.SplitPath(req.Sort.field); err != nil {
			return apperrors.NewValidationErrorf("sort", "invalid sort field '%s'", req.Sort.field)
		}
	}
	return nil
}

// cursorFor is the exclusive start position after entry.
func cursorFor(entry docstore.Entry, orderBy string) *docstore.Cursor {
	cursor := &docstore.Cursor{Key: entry.Key}
	if orderBy != "" {
		cursor.Value = docstore.Field(entry.Value, orderBy)
	}
	return cursor
}

func sortWithinPage(entries []docstore.Entry, spec SortSpec) {
	sort.SliceStable(entries, func(i, j int) bool {
		if spec.descending {
			return spec.less(entries[j], entries[i])
		}
		return spec.less(entries[i], entries[j])
	})
}
