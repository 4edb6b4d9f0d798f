// Package tiermetrics computes sold/remaining/waitlisted counts per ticket tier
// and an overall capacity status for an event. Everything here is pure; the
// admission controller calls it inside its critical section with a live
// snapshot, and the availability endpoint calls it with a cached one.
package tiermetrics

import (
	eventmodels "clubhouse/internal/event/models"
	regmodels "clubhouse/internal/registration/models"
	id "clubhouse/pkg/domain"
)

// CapacityStatus summarizes an event's capacity across its active tiers.
type CapacityStatus string

const (
	CapacityWaitlisted      CapacityStatus = "WAITLISTED"
	CapacityFull            CapacityStatus = "FULL"
	CapacityUndersubscribed CapacityStatus = "UNDERSUBSCRIBED"
	CapacityUnknown         CapacityStatus = "UNKNOWN"
)

// TierMetrics are the counts for one active tier.
type TierMetrics struct {
	TierID      id.TierID
	Code        string
	Name        string
	Quantity    int
	Sold        int
	Remaining   int
	Waitlisted  int
	IsFull      bool
	HasWaitlist bool
}

// Summary aggregates all active tiers of an event.
type Summary struct {
	Tiers           []TierMetrics
	TotalAvailable  int
	TotalSold       int
	TotalRemaining  int
	TotalWaitlisted int
	CapacityStatus  CapacityStatus
}

// ForTier returns the metrics for tierID, if it is an active tier.
func (s Summary) ForTier(tierID id.TierID) (TierMetrics, bool) {
	for _, t := range s.Tiers {
		if t.TierID == tierID {
			return t, true
		}
	}
	return TierMetrics{}, false
}

type config struct {
	counting map[regmodels.Status]bool
}

// Option adjusts which registration states count against capacity.
type Option func(*config)

// WithCountingStatuses replaces the set of statuses that consume capacity.
// The default is CONFIRMED only. WAITLISTED, CANCELLED and REFUNDED are never
// counted as sold regardless of this option.
func WithCountingStatuses(statuses ...regmodels.Status) Option {
	return func(c *config) {
		c.counting = make(map[regmodels.Status]bool, len(statuses))
		for _, s := range statuses {
			switch s {
			case regmodels.StatusWaitlisted, regmodels.StatusCancelled, regmodels.StatusRefunded:
				continue
			}
			c.counting[s] = true
		}
	}
}

// Aggregate computes per-tier metrics and event totals.
//
// Registrations that reference an inactive or unknown tier, or that are
// CANCELLED or REFUNDED, are ignored entirely.
func Aggregate(tiers []*eventmodels.TicketTier, registrations []*regmodels.Registration, opts ...Option) Summary {
	cfg := &config{counting: map[regmodels.Status]bool{regmodels.StatusConfirmed: true}}
	for _, opt := range opts {
		opt(cfg)
	}

	index := make(map[id.TierID]int, len(tiers))
	summary := Summary{Tiers: make([]TierMetrics, 0, len(tiers))}
	for _, tier := range tiers {
		if tier == nil || !tier.IsActive {
			continue
		}
		if _, dup := index[tier.ID]; dup {
			continue
		}
		index[tier.ID] = len(summary.Tiers)
		summary.Tiers = append(summary.Tiers, TierMetrics{
			TierID:   tier.ID,
			Code:     tier.Code,
			Name:     tier.Name,
			Quantity: tier.Quantity,
		})
	}

	for _, reg := range registrations {
		if reg == nil {
			continue
		}
		i, ok := index[reg.TierID]
		if !ok {
			continue
		}
		switch {
		case reg.Status == regmodels.StatusWaitlisted:
			summary.Tiers[i].Waitlisted++
		case cfg.counting[reg.Status]:
			summary.Tiers[i].Sold++
		}
	}

	for i := range summary.Tiers {
		t := &summary.Tiers[i]
		t.Remaining = max(0, t.Quantity-t.Sold)
		t.IsFull = t.Remaining == 0
		t.HasWaitlist = t.Waitlisted > 0

		summary.TotalAvailable += t.Quantity
		summary.TotalSold += t.Sold
		summary.TotalRemaining += t.Remaining
		summary.TotalWaitlisted += t.Waitlisted
	}
	summary.CapacityStatus = capacityStatus(summary)
	return summary
}

// capacityStatus applies WAITLISTED > FULL > UNDERSUBSCRIBED, or UNKNOWN
// when there is nothing to measure.
func capacityStatus(s Summary) CapacityStatus {
	if len(s.Tiers) == 0 {
		return CapacityUnknown
	}
	for _, t := range s.Tiers {
		if t.HasWaitlist {
			return CapacityWaitlisted
		}
	}
	if s.TotalRemaining == 0 {
		return CapacityFull
	}
	return CapacityUndersubscribed
}
