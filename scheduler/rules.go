// Package scheduler advances orders as time passes. Tick is a pure function
// over a snapshot; Runner drives it on a fixed cadence.
package scheduler

import (
	"math"
	"time"

	"food-order-api/models"
)

// ReasonNoConfirmation is recorded when a pending order expires.
const ReasonNoConfirmation = "no confirmation"

// Firing is an event the scheduler wants applied to one order.
type Firing struct {
	OrderID uint               `json:"order_id"`
	Event   models.OrderEvent  `json:"event"`
	From    models.OrderStatus `json:"from"`
	Reason  string             `json:"reason,omitempty"`
}

// Rules holds the auto-progression thresholds in minutes.
type Rules struct {
	PendingTimeout  int     // pending → cancelled
	PrepareAfter    int     // confirmed → preparing
	ReadyFraction   float64 // preparing → ready at floor(fraction × estimate)
	CompleteGrace   int     // ready → delivered at estimate + grace
	DefaultEstimate int
}

func DefaultRules() Rules {
	return Rules{
		PendingTimeout:  30,
		PrepareAfter:    2,
		ReadyFraction:   0.75,
		CompleteGrace:   5,
		DefaultEstimate: models.DefaultEstimatedMinutes,
	}
}

// Tick evaluates the default rules against every order.
func Tick(now time.Time, orders []models.Order) []Firing {
	return DefaultRules().Tick(now, orders)
}

// Tick returns at most one firing per order. It reads nothing but its
// arguments, so repeating it over an unchanged snapshot yields the same
// firings.
func (r Rules) Tick(now time.Time, orders []models.Order) []Firing {
	var firings []Firing
	for _, o := range orders {
		if f, ok := r.Evaluate(now, o); ok {
			firings = append(firings, f)
		}
	}
	return firings
}

// Evaluate applies the first matching rule, in priority order.
func (r Rules) Evaluate(now time.Time, o models.Order) (Firing, bool) {
	estimate := r.estimate(o)
	elapsed := elapsedMinutes(now, o.CreatedAt)
	fire := func(event models.OrderEvent, reason string) (Firing, bool) {
		return Firing{OrderID: o.ID, Event: event, From: o.Status, Reason: reason}, true
	}

	switch o.Status {
	case models.StatusPending:
		if elapsed >= r.PendingTimeout {
			return fire(models.EventCancel, ReasonNoConfirmation)
		}
	case models.StatusConfirmed:
		if elapsed >= r.PrepareAfter {
			return fire(models.EventStartPreparing, "")
		}
	case models.StatusPreparing:
		threshold := int(math.Floor(r.ReadyFraction * float64(estimate)))
		if elapsed >= threshold {
			return fire(models.EventMarkReady, "")
		}
	case models.StatusReady:
		if elapsed >= estimate+r.CompleteGrace {
			return fire(models.EventComplete, "")
		}
	}
	return Firing{}, false
}

func (r Rules) estimate(o models.Order) int {
	if o.AdminEstimatedTime != nil && *o.AdminEstimatedTime > 0 {
		return *o.AdminEstimatedTime
	}
	return r.DefaultEstimate
}

// elapsedMinutes is whole minutes since ref; negative when ref is ahead of now.
func elapsedMinutes(now, ref time.Time) int {
	d := now.Sub(ref)
	if d < 0 {
		return -1
	}
	return int(d / time.Minute)
}
