package application

import (
	"context"
	"errors"
	"time"

	"storefront-insights/internal/domain"
	"storefront-insights/internal/ports"

	"github.com/rs/zerolog"
)

// Sync outcomes reported to metrics
const (
	SyncOutcomeSuccess = "success"
	SyncOutcomeFailure = "failure"
)

// SyncOptions configures a sync pass
type SyncOptions struct {
	Shop     string
	PageSize int
	Timeout  time.Duration // Bounds the upstream fetch; zero means no deadline
}

// SyncService runs one on-demand pass: fetch the first page of the shop's
// catalog and reconcile it into the entity store. There is no pagination
// and no retry. Entities stored before a failure stay stored.
type SyncService struct {
	store      ports.EntityStore
	fetcher    ports.CatalogFetcher
	reconciler *Reconciler
	notifier   ports.ChangeNotifier
	metrics    ports.Metrics
	opts       SyncOptions
	logger     zerolog.Logger
}

// NewSyncService creates a new sync service. notifier and metrics may be nil.
func NewSyncService(
	store ports.EntityStore,
	fetcher ports.CatalogFetcher,
	reconciler *Reconciler,
	notifier ports.ChangeNotifier,
	metrics ports.Metrics,
	opts SyncOptions,
	logger zerolog.Logger,
) *SyncService {
	return &SyncService{
		store:      store,
		fetcher:    fetcher,
		reconciler: reconciler,
		notifier:   notifier,
		metrics:    metrics,
		opts:       opts,
		logger:     logger,
	}
}

// Run performs one sync pass and reports a single outcome
func (s *SyncService) Run(ctx context.Context) (*domain.SyncResult, error) {
	started := time.Now().UTC()
	result := &domain.SyncResult{Shop: s.opts.Shop, StartedAt: started}

	err := s.run(ctx, result)
	result.FinishedAt = time.Now().UTC()

	outcome := SyncOutcomeSuccess
	if err != nil {
		outcome = SyncOutcomeFailure
	}
	if s.metrics != nil {
		s.metrics.ObserveSync(outcome, result.FinishedAt.Sub(started), result.ReconcileResult)
	}

	if err != nil {
		s.logger.Error().
			Err(err).
			Str("shop", s.opts.Shop).
			Int("customers", result.Customers).
			Int("products", result.Products).
			Int("orders", result.Orders).
			Msg("Sync pass failed")
		return nil, err
	}

	s.logger.Info().
		Str("shop", s.opts.Shop).
		Str("tenantId", result.TenantID).
		Dur("duration", result.FinishedAt.Sub(started)).
		Msg("Sync pass complete")
	return result, nil
}

func (s *SyncService) run(ctx context.Context, result *domain.SyncResult) error {
	tenant, err := s.store.UpsertTenant(ctx, s.opts.Shop)
	if err != nil {
		return err
	}
	result.TenantID = tenant.ID

	page, err := s.fetch(ctx)
	if err != nil {
		return err
	}

	result.ReconcileResult, err = s.reconciler.Reconcile(ctx, tenant.ID, page)
	// A partial pass still changed stored data.
	if s.notifier != nil && (err == nil || result.Customers+result.Products+result.Orders > 0) {
		s.notifier.Publish(ctx, domain.TenantChange{
			TenantID: tenant.ID,
			Source:   domain.ChangeSourceSync,
			At:       time.Now().UTC(),
		})
	}
	return err
}

func (s *SyncService) fetch(ctx context.Context) (*domain.CatalogPage, error) {
	if s.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.Timeout)
		defer cancel()
	}

	s.logger.Info().Str("shop", s.opts.Shop).Int("pageSize", s.opts.PageSize).Msg("Fetching catalog page")

	page, err := s.fetcher.FetchPage(ctx, s.opts.Shop, s.opts.PageSize)
	if err != nil {
		var upstream *domain.UpstreamFetchError
		if errors.As(err, &upstream) {
			return nil, err
		}
		return nil, &domain.UpstreamFetchError{Op: "fetch catalog page", Err: err}
	}
	return page, nil
}
