// Package inventory is the plot inventory store: the single source of
// truth for plot availability.  Reads go through a TTL cache; status
// mutations are guarded compare-and-swap transitions that invalidate
// every related cache key before returning.
package inventory

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/veridia/plot-reservation/internal/clock"
	"github.com/veridia/plot-reservation/internal/model"
	"github.com/veridia/plot-reservation/internal/repository"
)

// ErrInvalidTransition is returned for a target/expected status pair
// the store does not support, such as moving a sold plot anywhere.
var ErrInvalidTransition = errors.New("invalid status transition")

// PlotRepository is the data access the store needs.
type PlotRepository interface {
	LocationExists(ctx context.Context, key string) (bool, error)
	GetByID(ctx context.Context, location string, id uint64) (model.Plot, error)
	ListByLocation(ctx context.Context, location string) ([]model.Plot, error)
	Stats(ctx context.Context, location string) (model.LocationStats, error)
	Claim(ctx context.Context, p repository.ClaimParams) (model.Plot, error)
	MarkSold(ctx context.Context, p repository.MarkSoldParams) (model.Plot, error)
	Release(ctx context.Context, location string, plotID uint64, from model.PlotStatus) (model.Plot, error)
}

// Cache is the subset of the plot cache the store uses.
type Cache interface {
	GetPlot(ctx context.Context, location string, id uint64) (model.Plot, bool)
	SetPlot(ctx context.Context, p model.Plot)
	GetList(ctx context.Context, location string) ([]model.Plot, bool)
	SetList(ctx context.Context, location string, plots []model.Plot)
	GetStats(ctx context.Context, location string) (model.LocationStats, bool)
	SetStats(ctx context.Context, s model.LocationStats)
	Invalidate(ctx context.Context, location string, id uint64)
}

// StatusUpdater is the mutation surface consumed by the orchestrator
// and the outbox relay.  Service implements it in-process; Client
// implements it over the status RPC for split deployments.
type StatusUpdater interface {
	UpdateStatus(ctx context.Context, in UpdateStatusInput) (model.Plot, error)
}

// UpdateStatusInput describes one guarded status transition.  For
// mark-sold transitions, OwnerNationalID and ClaimedAt name the claim
// being converted into a sale; the transition conflicts when the plot
// is currently claimed by anyone else.
type UpdateStatusInput struct {
	PlotID          uint64
	Location        string
	Status          model.PlotStatus // target state
	ExpectedStatus  model.PlotStatus // guard; the transition fails on mismatch
	Customer        *model.Customer  // stamped when given
	PaidAmount      int64            // amount already paid toward the plot
	TransactionID   uint64           // ledger row driving the transition
	OwnerNationalID string           // claimant stamp, mark-sold only
	ClaimedAt       *time.Time       // claimant stamp, mark-sold only
}

// Service implements the plot inventory store over a repository and a
// cache.
type Service struct {
	repo    PlotRepository
	cache   Cache
	clock   clock.Clock
	log     *slog.Logger
	holdTTL time.Duration
}

// NewService constructs the store.  holdTTL bounds how long a deposit
// reservation blocks a plot before it lapses back to available.
func NewService(repo PlotRepository, cache Cache, clk clock.Clock, log *slog.Logger, holdTTL time.Duration) *Service {
	return &Service{repo: repo, cache: cache, clock: clk, log: log, holdTTL: holdTTL}
}

// GetPlot returns one plot, served from cache when possible.  An
// expired reservation is presented as available again; lapsed holds
// are reaped lazily on read and reclaimed by the next booking's
// compare-and-swap rather than by a background job.
func (s *Service) GetPlot(ctx context.Context, location string, id uint64) (model.Plot, error) {
	if err := s.checkLocation(ctx, location); err != nil {
		return model.Plot{}, err
	}
	now := s.clock.Now()
	if p, ok := s.cache.GetPlot(ctx, location, id); ok {
		return presentPlot(p, now), nil
	}
	p, err := s.repo.GetByID(ctx, location, id)
	if err != nil {
		return model.Plot{}, err
	}
	s.cache.SetPlot(ctx, p)
	return presentPlot(p, now), nil
}

// ListByLocation returns all plots in a location collection.
func (s *Service) ListByLocation(ctx context.Context, location string) ([]model.Plot, error) {
	if err := s.checkLocation(ctx, location); err != nil {
		return nil, err
	}
	now := s.clock.Now()
	if plots, ok := s.cache.GetList(ctx, location); ok {
		return presentPlots(plots, now), nil
	}
	plots, err := s.repo.ListByLocation(ctx, location)
	if err != nil {
		return nil, err
	}
	s.cache.SetList(ctx, location, plots)
	return presentPlots(plots, now), nil
}

// LocationStats returns aggregate statistics for a location, or the
// global aggregate when location is empty.
func (s *Service) LocationStats(ctx context.Context, location string) (model.LocationStats, error) {
	if location != "" {
		if err := s.checkLocation(ctx, location); err != nil {
			return model.LocationStats{}, err
		}
	}
	if stats, ok := s.cache.GetStats(ctx, location); ok {
		return stats, nil
	}
	stats, err := s.repo.Stats(ctx, location)
	if err != nil {
		return model.LocationStats{}, err
	}
	s.cache.SetStats(ctx, stats)
	return stats, nil
}

// UpdateStatus performs one guarded status transition and invalidates
// every cache key that could serve stale data about the plot before
// returning.  Supported transitions:
//
//	available -> reserved | hold   (booking claims the plot)
//	reserved | hold -> sold        (payment confirmed)
//	reserved | hold -> available   (compensating release)
//
// A transition already applied under the same transaction id reports
// success, so saga retries are safe.
func (s *Service) UpdateStatus(ctx context.Context, in UpdateStatusInput) (model.Plot, error) {
	if err := s.checkLocation(ctx, in.Location); err != nil {
		return model.Plot{}, err
	}
	now := s.clock.Now()

	var (
		p   model.Plot
		err error
	)
	switch in.Status {
	case model.PlotReserved, model.PlotHold:
		if in.ExpectedStatus != "" && in.ExpectedStatus != model.PlotAvailable {
			return model.Plot{}, ErrInvalidTransition
		}
		var customer model.Customer
		if in.Customer != nil {
			customer = *in.Customer
		}
		params := repository.ClaimParams{
			PlotID:     in.PlotID,
			Location:   in.Location,
			Status:     in.Status,
			Customer:   customer,
			PaidAmount: in.PaidAmount,
			ReservedAt: now,
		}
		if in.Status == model.PlotReserved {
			exp := now.Add(s.holdTTL)
			params.HoldExpiresAt = &exp
		}
		p, err = s.repo.Claim(ctx, params)
	case model.PlotSold:
		if !pendingStatus(in.ExpectedStatus) || in.ClaimedAt == nil {
			return model.Plot{}, ErrInvalidTransition
		}
		p, err = s.repo.MarkSold(ctx, repository.MarkSoldParams{
			PlotID:          in.PlotID,
			Location:        in.Location,
			From:            in.ExpectedStatus,
			TransactionID:   in.TransactionID,
			OwnerNationalID: in.OwnerNationalID,
			ClaimedAt:       *in.ClaimedAt,
			SoldAt:          now,
		})
	case model.PlotAvailable:
		if !pendingStatus(in.ExpectedStatus) {
			return model.Plot{}, ErrInvalidTransition
		}
		p, err = s.repo.Release(ctx, in.Location, in.PlotID, in.ExpectedStatus)
	default:
		return model.Plot{}, ErrInvalidTransition
	}
	if err != nil {
		return model.Plot{}, err
	}

	s.cache.Invalidate(ctx, in.Location, in.PlotID)
	s.log.Info("plot status updated",
		"plot_id", in.PlotID, "location", in.Location,
		"status", in.Status, "transaction_id", in.TransactionID)
	return p, nil
}

func (s *Service) checkLocation(ctx context.Context, location string) error {
	ok, err := s.repo.LocationExists(ctx, location)
	if err != nil {
		return err
	}
	if !ok {
		return repository.ErrUnknownLocation
	}
	return nil
}

func pendingStatus(st model.PlotStatus) bool {
	return st == model.PlotReserved || st == model.PlotHold
}

// presentPlot applies lazy hold expiry to a read: a reserved plot
// whose expiry has passed is reported available with its booking
// stamps cleared, matching what the next Claim will write.
func presentPlot(p model.Plot, now time.Time) model.Plot {
	if !p.ReservationExpired(now) {
		return p
	}
	p.Status = model.PlotAvailable
	p.HoldExpiresAt = nil
	p.ReservedAt = nil
	p.Customer = nil
	p.PaidAmount = 0
	p.RemainingAmount = p.Price
	p.TransactionID = nil
	return p
}

func presentPlots(plots []model.Plot, now time.Time) []model.Plot {
	out := make([]model.Plot, len(plots))
	for i, p := range plots {
		out[i] = presentPlot(p, now)
	}
	return out
}
