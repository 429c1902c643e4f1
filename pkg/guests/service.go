// Package guests exposes the caller-facing guest operations: identity creation, renames with
// fan-out propagation, bulk repair and the enriched guest listing.
package guests

import (
	"context"
	"time"

	"github.com/Gobusters/ectologger"

	"github.com/AndreasKatsouris/MerakiCaptivePortal-firebaseDB-sub003/internal/repositories/guest"
	"github.com/AndreasKatsouris/MerakiCaptivePortal-firebaseDB-sub003/pkg/aggregation"
	"github.com/AndreasKatsouris/MerakiCaptivePortal-firebaseDB-sub003/pkg/docstore"
	"github.com/AndreasKatsouris/MerakiCaptivePortal-firebaseDB-sub003/pkg/models"
	"github.com/AndreasKatsouris/MerakiCaptivePortal-firebaseDB-sub003/pkg/normalizers"
	"github.com/AndreasKatsouris/MerakiCaptivePortal-firebaseDB-sub003/pkg/pagination"
)

const (
	DefaultTransactionsCollection = "receipts"
	DefaultBulkRepairDelay        = 100 * time.Millisecond
	DefaultRepairPageSize         = 100
)

// Propagator fans a name change out to the denormalized copies.
type Propagator interface {
	Propagate(ctx context.Context, guestID, oldName, newName string) (*models.PropagationResult, error)
}

// Repairer re-syncs chosen collections for one guest.
type Repairer interface {
	RepairCollections(ctx context.Context, guestID, name string, collections ...string) (*models.PropagationResult, error)
}

// Pager pages through and searches collections.
type Pager interface {
	pagination.Fetcher
	Search(ctx context.Context, req pagination.SearchRequest) (*pagination.Page, error)
}

// Locker serializes work on one guest.
type Locker interface {
	WithLock(ctx context.Context, key string, fn func(ctx context.Context) error) error
}

// Emitter publishes guest lifecycle events.
type Emitter interface {
	EmitGuestCreated(ctx context.Context, guest *models.GuestRecord) error
	EmitGuestRenamed(ctx context.Context, guestID, oldName, newName string) error
	EmitGuestDeleted(ctx context.Context, guestID string) error
}

// Config controls the service.
type Config struct {
	// StrictIdentityCreate creates guests in a single-path transaction instead of read-then-write.
	StrictIdentityCreate bool
	// BulkRepairDelay is the pause between guests during bulk repair. Zero uses the default;
	// a negative delay disables the pause.
	BulkRepairDelay time.Duration
	RepairPageSize  int
	// TransactionsCollection feeds the guest metrics.
	TransactionsCollection string
	CountryCode            string
	Aggregation            aggregation.Config
}

// Service implements the guest operations
type Service struct {
	cfg        Config
	store      docstore.Store
	repo       guest.GuestRepository
	propagator Propagator
	pager      Pager
	aggregator *aggregation.Aggregator
	phone      normalizers.PhoneNormalizer
	logger     ectologger.Logger

	locker  Locker
	emitter Emitter
	now     func() time.Time
	sleep   func(ctx context.Context, d time.Duration) error
}

// Option customizes a Service.
type Option func(*Service)

// WithLocker serializes renames per guest.
func WithLocker(locker Locker) Option {
	return func(s *Service) { s.locker = locker }
}

// WithEmitter publishes lifecycle events.
func WithEmitter(emitter Emitter) Option {
	return func(s *Service) { s.emitter = emitter }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates a new guest service
func NewService(
	cfg Config,
	store docstore.Store,
	repo guest.GuestRepository,
	propagator Propagator,
	pager Pager,
	logger ectologger.Logger,
	opts ...Option,
) *Service {
	switch {
	case cfg.BulkRepairDelay == 0:
		cfg.BulkRepairDelay = DefaultBulkRepairDelay
	case cfg.BulkRepairDelay < 0:
		cfg.BulkRepairDelay = 0
	}
	if cfg.RepairPageSize <= 0 {
		cfg.RepairPageSize = DefaultRepairPageSize
	}
	if cfg.TransactionsCollection == "" {
		cfg.TransactionsCollection = DefaultTransactionsCollection
	}
	if cfg.Aggregation.CountryCode == "" {
		cfg.Aggregation.CountryCode = cfg.CountryCode
	}

	s := &Service{
		cfg:        cfg,
		store:      store,
		repo:       repo,
		propagator: propagator,
		pager:      pager,
		aggregator: aggregation.NewAggregator(cfg.Aggregation),
		phone:      normalizers.NewPhoneNormalizer(cfg.CountryCode),
		logger:     logger,
		now:        time.Now,
		sleep:      sleepContext,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// sleepContext waits for d or until ctx is done.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// normalizeID derives the guest key from raw phone input.
func (s *Service) normalizeID(raw string) (string, error) {
	return s.phone.Normalize(raw)
}
