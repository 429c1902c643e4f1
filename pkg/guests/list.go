package guests

import (
	"context"
	"strings"
	"time"

	"github.com/AndreasKatsouris/MerakiCaptivePortal-firebaseDB-sub003/internal/repositories/guest"
	"github.com/AndreasKatsouris/MerakiCaptivePortal-firebaseDB-sub003/pkg/aggregation"
	"github.com/AndreasKatsouris/MerakiCaptivePortal-firebaseDB-sub003/pkg/docstore"
	"github.com/AndreasKatsouris/MerakiCaptivePortal-firebaseDB-sub003/pkg/models"
	"github.com/AndreasKatsouris/MerakiCaptivePortal-firebaseDB-sub003/pkg/normalizers"
	"github.com/AndreasKatsouris/MerakiCaptivePortal-firebaseDB-sub003/pkg/pagination"
	"github.com/AndreasKatsouris/MerakiCaptivePortal-firebaseDB-sub003/pkg/tracing"
)

// ListGuestsPage returns a page of guests with their metrics.
//
// Browse mode pages with keyset cursors. Sorting by a metric orders each page on its own:
// pages are still cut in phone order, and PartialSort is set. Search mode returns every guest
// whose name starts with the search text, plus every guest whose phone contains its digits,
// in a single page.
func (s *Service) ListGuestsPage(ctx context.Context, req ListRequest) (_ *GuestPage, err error) {
	ctx, span := tracing.StartSpan(ctx, "guests.Service.ListGuestsPage")
	defer span.End()
	defer func() { observe("list", err) }()

	if err := Validate(req); err != nil {
		return nil, err
	}

	now := s.now()
	metricsFor := s.metricsMemo(s.aggregator.Index(s.loadTransactions(ctx)), now)

	if search := strings.TrimSpace(req.Search); search != "" {
		page, err := s.pager.Search(ctx, pagination.SearchRequest{
			Collection:   guest.Collection,
			Field:        "name",
			Term:         normalizers.SearchTerm(search),
			KeySubstring: phoneFragment(search),
		})
		if err != nil {
			return nil, err
		}
		return &GuestPage{
			Items:     enrich(page.Items, metricsFor),
			Mode:      string(page.Mode),
			Truncated: page.Truncated,
		}, nil
	}

	cursor, err := pagination.DecodeCursor(req.Cursor)
	if err != nil {
		return nil, err
	}
	pageSize := req.PageSize
	if pageSize == 0 {
		pageSize = pagination.DefaultPageSize
	}

	page, err := s.pager.FetchPage(ctx, pagination.Request{
		Collection: guest.Collection,
		Sort:       sortSpec(req.Sort, req.Order, metricsFor),
		PageSize:   pageSize,
		Cursor:     cursor,
	})
	if err != nil {
		return nil, err
	}

	out := &GuestPage{
		Items:       enrich(page.Items, metricsFor),
		HasMore:     page.HasMore,
		PartialSort: page.PartialSort,
		Mode:        string(page.Mode),
	}
	if page.HasMore {
		out.NextCursor = pagination.EncodeCursor(page.CursorKey)
	}
	return out, nil
}

type metricsFunc func(docstore.Entry) models.GuestMetrics

// metricsMemo computes each guest's metrics at most once per page load.
func (s *Service) metricsMemo(ix *aggregation.Index, now time.Time) metricsFunc {
	memo := map[string]models.GuestMetrics{}
	return func(e docstore.Entry) models.GuestMetrics {
		if m, ok := memo[e.Key]; ok {
			return m
		}
		m := ix.Metrics(guest.FromDocument(e.Key, e.Value), now)
		memo[e.Key] = m
		return m
	}
}

// sortSpec maps the listing sort names. Metric sorts are client-only and default to
// descending; stored fields sort server side and only ascending.
func sortSpec(name, order string, metricsFor metricsFunc) pagination.SortSpec {
	var spec pagination.SortSpec
	switch name {
	case "name":
		spec = pagination.ByField("name")
	case "createdAt":
		spec = pagination.ByField("createdAt")
	case "engagement":
		spec = pagination.ClientOnly(name, func(a, b docstore.Entry) bool {
			return metricsFor(a).EngagementScore < metricsFor(b).EngagementScore
		})
	case "lastVisit":
		spec = pagination.ClientOnly(name, func(a, b docstore.Entry) bool {
			return metricsFor(a).LastVisit.Before(metricsFor(b).LastVisit)
		})
	case "totalSpent":
		spec = pagination.ClientOnly(name, func(a, b docstore.Entry) bool {
			return metricsFor(a).TotalSpent < metricsFor(b).TotalSpent
		})
	case "visits":
		spec = pagination.ClientOnly(name, func(a, b docstore.Entry) bool {
			return metricsFor(a).VisitCount < metricsFor(b).VisitCount
		})
	default:
		spec = pagination.ByKey()
	}

	if order == "desc" || (order == "" && spec.PartialSort()) {
		spec = spec.Desc()
	}
	return spec
}

func enrich(entries []docstore.Entry, metricsFor metricsFunc) []models.GuestWithMetrics {
	items := make([]models.GuestWithMetrics, 0, len(entries))
	for _, e := range entries {
		items = append(items, models.GuestWithMetrics{
			GuestRecord: guest.FromDocument(e.Key, e.Value),
			Metrics:     metricsFor(e),
		})
	}
	return items
}

// phoneFragment is the part of a search that can match a stored phone key: its digits without
// a local trunk prefix. Searches with fewer than three digits do not scan keys.
func phoneFragment(search string) string {
	digits := strings.TrimLeft(normalizers.DigitsOnly(search), "0")
	if len(digits) < 3 {
		return ""
	}
	return digits
}

// loadTransactions reads the whole transactional collection once per page load. A collection
// that cannot be read yields no metrics rather than failing the listing.
func (s *Service) loadTransactions(ctx context.Context) []docstore.Entry {
	ctx, span := tracing.StartSpan(ctx, "guests.Service.loadTransactions")
	defer span.End()

	txns, err := s.store.RangeQuery(ctx, s.cfg.TransactionsCollection, docstore.Query{})
	if err != nil {
		tracing.RecordError(span, err)
		s.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"collection": s.cfg.TransactionsCollection,
		}).Warn("Transactions unavailable, metrics will be empty")
		return nil
	}
	return txns
}
