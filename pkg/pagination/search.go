package pagination

import (
	"context"
	"strings"

	"github.com/AndreasKatsouris/MerakiCaptivePortal-firebaseDB-sub003/pkg/docstore"
	apperrors "github.com/AndreasKatsouris/MerakiCaptivePortal-firebaseDB-sub003/pkg/errors"
	"github.com/AndreasKatsouris/MerakiCaptivePortal-firebaseDB-sub003/pkg/metrics"
	"github.com/AndreasKatsouris/MerakiCaptivePortal-firebaseDB-sub003/pkg/tracing"
)

// PrefixSentinel is the highest code point used to close a prefix range.
const PrefixSentinel = "\uf8ff"

// SearchRequest describes a search over one collection.
type SearchRequest struct {
	Collection string
	// Field is searched by prefix with a range scan. Term is the prefix.
	Field string
	Term  string
	// KeySubstring, when set, also matches records whose key contains it.
	KeySubstring string
}

// Search returns every record whose Field starts with Term, merged with every record whose key
// contains KeySubstring, in one unpaginated page. Prefix matches come first in field order,
// then the remaining key matches in key order. The engine's result cap, when set, truncates the
// page and flags it.
func (e *Engine) Search(ctx context.Context, req SearchRequest) (*Page, error) {
	ctx, span := tracing.StartSpan(ctx, "pagination.Engine.Search")
	defer span.End()

	if req.Collection == "" {
		return nil, apperrors.NewValidationError("collection", "collection is required")
	}
	if req.Term == "" && req.KeySubstring == "" {
		return nil, apperrors.NewValidationError("term", "a search term is required")
	}
	if req.Term != "" && req.Field == "" {
		return nil, apperrors.NewValidationError("field", "a search field is required")
	}

	log := e.logger.WithContext(ctx).WithFields(map[string]any{
		"collection": req.Collection,
		"field":      req.Field,
	})

	var items []docstore.Entry
	seen := map[string]bool{}

	if req.Term != "" {
		matches, err := e.store.RangeQuery(ctx, req.Collection, docstore.Query{
			OrderBy: req.Field,
			StartAt: &docstore.Bound{Value: req.Term},
			EndAt:   &docstore.Bound{Value: req.Term + PrefixSentinel},
		})
		if err != nil {
			tracing.RecordError(span, err)
			log.WithError(err).Error("Failed to run prefix search")
			return nil, err
		}
		for _, m := range matches {
			seen[m.Key] = true
			items = append(items, m)
		}
	}

	if req.KeySubstring != "" {
		all, err := e.store.RangeQuery(ctx, req.Collection, docstore.Query{})
		if err != nil {
			tracing.RecordError(span, err)
			log.WithError(err).Error("Failed to scan collection keys")
			return nil, err
		}
		for _, entry := range all {
			if !seen[entry.Key] && strings.Contains(entry.Key, req.KeySubstring) {
				seen[entry.Key] = true
				items = append(items, entry)
			}
		}
	}

	page := &Page{Items: items, Mode: ModeSearch}
	if e.maxSearchResults > 0 && len(items) > e.maxSearchResults {
		page.Items = items[:e.maxSearchResults]
		page.Truncated = true
		log.WithFields(map[string]any{
			"matches": len(items),
			"limit":   e.maxSearchResults,
		}).Warn("Search results truncated")
	}
	if page.Items == nil {
		page.Items = []docstore.Entry{}
	}

	metrics.PagesServedTotal.WithLabelValues(req.Collection, string(ModeSearch)).Inc()
	metrics.PageItems.WithLabelValues(string(ModeSearch)).Observe(float64(len(page.Items)))

	return page, nil
}
