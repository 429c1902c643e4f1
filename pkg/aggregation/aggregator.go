// Package aggregation derives guest metrics from the transactional records that reference them.
// A page of guests is enriched from one in-memory pass over the whole transactional
// collection, so that collection has to fit in memory.
package aggregation

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/Gobusters/ectolinq"

	"github.com/AndreasKatsouris/MerakiCaptivePortal-firebaseDB-sub003/pkg/docstore"
	"github.com/AndreasKatsouris/MerakiCaptivePortal-firebaseDB-sub003/pkg/models"
	"github.com/AndreasKatsouris/MerakiCaptivePortal-firebaseDB-sub003/pkg/normalizers"
)

const (
	recencyWindowDays = 30
	recencyWeight     = 0.8
	consentWeight     = 0.2
)

// Config names the fields read from transactional records.
type Config struct {
	ForeignKeys      []string
	StatusField      string
	AcceptedStatuses []string
	AmountField      string
	// TimestampFields are tried in order; the first parsable one is the visit time.
	TimestampFields []string
	StoreField      string
	CountryCode     string
}

// DefaultConfig matches the receipts collection.
func DefaultConfig() Config {
	return Config{
		ForeignKeys:      []string{"guestPhone", "guestPhoneNumber"},
		StatusField:      "status",
		AcceptedStatuses: []string{"validated", "pending_validation"},
		AmountField:      "totalAmount",
		TimestampFields:  []string{"processedAt", "createdAt"},
		StoreField:       "storeName",
	}
}

// Aggregator computes GuestMetrics.
type Aggregator struct {
	cfg   Config
	phone normalizers.PhoneNormalizer
}

func NewAggregator(cfg Config) *Aggregator {
	defaults := DefaultConfig()
	if len(cfg.ForeignKeys) == 0 {
		cfg.ForeignKeys = defaults.ForeignKeys
	}
	if cfg.StatusField == "" {
		cfg.StatusField = defaults.StatusField
	}
	if len(cfg.AcceptedStatuses) == 0 {
		cfg.AcceptedStatuses = defaults.AcceptedStatuses
	}
	if cfg.AmountField == "" {
		cfg.AmountField = defaults.AmountField
	}
	if len(cfg.TimestampFields) == 0 {
		cfg.TimestampFields = defaults.TimestampFields
	}
	if cfg.StoreField == "" {
		cfg.StoreField = defaults.StoreField
	}
	return &Aggregator{cfg: cfg, phone: normalizers.NewPhoneNormalizer(cfg.CountryCode)}
}

type tally struct {
	visits     int
	spent      float64
	lastVisit  time.Time
	storeOrder []string
	storeCount map[string]int
}

// Index holds per-guest tallies from one pass over the transactional records.
type Index struct {
	agg     *Aggregator
	tallies map[string]*tally
}

// Index scans txns once. Records are visited in the given order, which decides favoriteStore
// ties.
func (a *Aggregator) Index(txns []docstore.Entry) *Index {
	ix := &Index{agg: a, tallies: map[string]*tally{}}
	for _, txn := range txns {
		if !a.accepted(txn.Value) {
			continue
		}
		owner := a.owner(txn.Value)
		if owner == "" {
			continue
		}
		t, ok := ix.tallies[owner]
		if !ok {
			t = &tally{storeCount: map[string]int{}}
			ix.tallies[owner] = t
		}

		t.visits++
		t.spent += amount(docstore.Field(txn.Value, a.cfg.AmountField))
		if ts, ok := a.timestamp(txn.Value); ok && ts.After(t.lastVisit) {
			t.lastVisit = ts
		}
		if store, ok := docstore.Field(txn.Value, a.cfg.StoreField).(string); ok && store != "" {
			if t.storeCount[store] == 0 {
				t.storeOrder = append(t.storeOrder, store)
			}
			t.storeCount[store]++
		}
	}
	return ix
}

// Metrics returns the metrics of one guest as of now.
func (ix *Index) Metrics(g models.GuestRecord, now time.Time) models.GuestMetrics {
	t, ok := ix.tallies[ix.agg.key(g.ID)]
	if !ok {
		t = &tally{}
	}

	m := models.GuestMetrics{
		VisitCount:    t.visits,
		TotalSpent:    round2(t.spent),
		LastVisit:     t.lastVisit,
		FavoriteStore: favorite(t),
	}
	if t.visits > 0 {
		m.AverageSpend = round2(t.spent / float64(t.visits))
	}
	if m.LastVisit.IsZero() {
		m.LastVisit = fallbackActivity(g)
	}
	m.EngagementScore = EngagementScore(daysSince(m.LastVisit, now), g.Consent)
	return m
}

// Compute returns the metrics of every guest keyed by guest ID.
func (a *Aggregator) Compute(guests []models.GuestRecord, txns []docstore.Entry, now time.Time) map[string]models.GuestMetrics {
	ix := a.Index(txns)
	out := make(map[string]models.GuestMetrics, len(guests))
	for _, g := range guests {
		out[g.ID] = ix.Metrics(g, now)
	}
	return out
}

// EngagementScore is round(recency*0.8 + consent*0.2) clamped to [0, 100], where recency falls
// linearly from 100 today to 0 after 30 days and consent is worth 100 when given.
func EngagementScore(daysSinceActivity int, consent bool) int {
	if daysSinceActivity < 0 {
		daysSinceActivity = 0
	}
	recency := math.Max(0, 100-float64(daysSinceActivity)*(100.0/recencyWindowDays))
	consentScore := 0.0
	if consent {
		consentScore = 100
	}
	score := int(math.Round(recency*recencyWeight + consentScore*consentWeight))
	return min(max(score, 0), 100)
}

func (a *Aggregator) key(id string) string {
	if normalized, err := a.phone.Normalize(id); err == nil {
		return normalized
	}
	return id
}

func (a *Aggregator) accepted(doc any) bool {
	raw := docstore.Field(doc, a.cfg.StatusField)
	if raw == nil {
		return true
	}
	status, ok := raw.(string)
	if !ok {
		return false
	}
	return status == "" || ectolinq.Contains(a.cfg.AcceptedStatuses, strings.ToLower(status))
}

// owner is the normalized guest key of the first populated foreign key alias.
func (a *Aggregator) owner(doc any) string {
	for _, field := range a.cfg.ForeignKeys {
		switch v := docstore.Field(doc, field).(type) {
		case string:
			if v != "" {
				return a.key(v)
			}
		case float64:
			return a.key(strconv.FormatFloat(v, 'f', -1, 64))
		}
	}
	return ""
}

func (a *Aggregator) timestamp(doc any) (time.Time, bool) {
	for _, field := range a.cfg.TimestampFields {
		if ts, ok := parseTime(docstore.Field(doc, field)); ok {
			return ts, true
		}
	}
	return time.Time{}, false
}

// parseTime accepts RFC3339 strings and unix milliseconds.
func parseTime(v any) (time.Time, bool) {
	switch t := v.(type) {
	case string:
		ts, err := time.Parse(time.RFC3339Nano, t)
		if err != nil {
			return time.Time{}, false
		}
		return ts, true
	case float64:
		if t <= 0 {
			return time.Time{}, false
		}
		return time.UnixMilli(int64(t)).UTC(), true
	}
	return time.Time{}, false
}

// amount reads a number or a numeric string; anything else counts as 0.
func amount(v any) float64 {
	switch t := v.(type) {
	case float64:
		return t
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return 0
		}
		return f
	}
	return 0
}

func favorite(t *tally) string {
	best, bestCount := "", 0
	for _, store := range t.storeOrder {
		if t.storeCount[store] > bestCount {
			best, bestCount = store, t.storeCount[store]
		}
	}
	return best
}

func fallbackActivity(g models.GuestRecord) time.Time {
	if !g.CreatedAt.IsZero() {
		return g.CreatedAt
	}
	if g.ConsentPromptedAt != nil {
		return *g.ConsentPromptedAt
	}
	return time.Time{}
}

// daysSince counts whole days; an unknown activity time is treated as long ago.
func daysSince(ts, now time.Time) int {
	if ts.IsZero() {
		return math.MaxInt32
	}
	return int(now.Sub(ts).Hours() / 24)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
