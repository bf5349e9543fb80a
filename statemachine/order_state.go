package statemachine

import (
	"errors"
	"fmt"
	"strings"

	"food-order-api/models"
)

var (
	// ErrIllegalTransition is matched by every *IllegalTransitionError.
	ErrIllegalTransition = errors.New("illegal transition")
	ErrActorNotAllowed   = errors.New("actor may not request this event")
	ErrUnknownEvent      = errors.New("unknown event")
)

// Transition defines an event, the states it may be requested from, the
// resulting state and who can request it.
type Transition struct {
	Event  models.OrderEvent    `json:"event"`
	From   []models.OrderStatus `json:"from"`
	To     models.OrderStatus   `json:"to"`
	Actors []models.UserRole    `json:"actors"`
}

// validTransitions is the authoritative state machine definition
var validTransitions = []Transition{
	// Restaurant accepts a new order
	{Event: models.EventAccept, From: []models.OrderStatus{models.StatusPending}, To: models.StatusConfirmed,
		Actors: []models.UserRole{models.RoleRestaurant}},
	{Event: models.EventStartPreparing, From: []models.OrderStatus{models.StatusConfirmed}, To: models.StatusPreparing,
		Actors: []models.UserRole{models.RoleRestaurant, models.RoleSystem}},
	{Event: models.EventMarkReady, From: []models.OrderStatus{models.StatusPreparing}, To: models.StatusReady,
		Actors: []models.UserRole{models.RoleRestaurant, models.RoleSystem}},
	{Event: models.EventComplete, From: []models.OrderStatus{models.StatusReady}, To: models.StatusDelivered,
		Actors: []models.UserRole{models.RoleRestaurant, models.RoleSystem}},
	// Nothing can be cancelled once it is ready
	{Event: models.EventCancel, From: []models.OrderStatus{models.StatusPending, models.StatusConfirmed, models.StatusPreparing},
		To: models.StatusCancelled, Actors: []models.UserRole{models.RoleRestaurant, models.RoleCustomer, models.RoleSystem}},
	// Customer picks up / receives a ready order
	{Event: models.EventConfirmReceipt, From: []models.OrderStatus{models.StatusReady}, To: models.StatusDelivered,
		Actors: []models.UserRole{models.RoleCustomer}},
}

var allStatuses = []models.OrderStatus{
	models.StatusPending,
	models.StatusConfirmed,
	models.StatusPreparing,
	models.StatusReady,
	models.StatusDelivered,
	models.StatusCancelled,
}

// transitionKey is used to look up valid transitions quickly
type transitionKey struct {
	From  models.OrderStatus
	Event models.OrderEvent
}

// Build lookup maps for O(1) validation
var (
	transitionMap = func() map[transitionKey]models.OrderStatus {
		m := make(map[transitionKey]models.OrderStatus)
		for _, t := range validTransitions {
			for _, from := range t.From {
				m[transitionKey{From: from, Event: t.Event}] = t.To
			}
		}
		return m
	}()

	byEvent = func() map[models.OrderEvent]Transition {
		m := make(map[models.OrderEvent]Transition)
		for _, t := range validTransitions {
			m[t.Event] = t
		}
		return m
	}()
)

// IllegalTransitionError reports an event requested from a status that does
// not allow it.
type IllegalTransitionError struct {
	From  models.OrderStatus
	Event models.OrderEvent
}

func (e *IllegalTransitionError) Error() string {
	return fmt.Sprintf("illegal transition: %s is not allowed from %s. Valid events from %s are: %s",
		e.Event, e.From, e.From, describeValidFrom(e.From))
}

func (e *IllegalTransitionError) Unwrap() error { return ErrIllegalTransition }

// Apply returns the status that results from event, or an
// *IllegalTransitionError. It has no side effects.
func Apply(current models.OrderStatus, event models.OrderEvent) (models.OrderStatus, error) {
	if next, ok := transitionMap[transitionKey{From: current, Event: event}]; ok {
		return next, nil
	}
	return current, &IllegalTransitionError{From: current, Event: event}
}

// CanTransition reports whether event may be requested from current.
func CanTransition(current models.OrderStatus, event models.OrderEvent) bool {
	_, ok := transitionMap[transitionKey{From: current, Event: event}]
	return ok
}

// Authorize checks that role may request event at all.
func Authorize(event models.OrderEvent, role models.UserRole) error {
	t, ok := byEvent[event]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownEvent, event)
	}
	for _, r := range t.Actors {
		if r == role {
			return nil
		}
	}
	return fmt.Errorf("%w: %s cannot %s", ErrActorNotAllowed, role, event)
}

// ParseEvent validates an event name received from a client.
func ParseEvent(s string) (models.OrderEvent, error) {
	e := models.OrderEvent(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := byEvent[e]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownEvent, s)
	}
	return e, nil
}

// EventsFrom returns all events that may be requested from status
func EventsFrom(status models.OrderStatus) []models.OrderEvent {
	var events []models.OrderEvent
	for _, t := range validTransitions {
		if CanTransition(status, t.Event) {
			events = append(events, t.Event)
		}
	}
	return events
}

// IsTerminal reports whether no event is allowed from status.
func IsTerminal(status models.OrderStatus) bool {
	return len(EventsFrom(status)) == 0
}

// ListStatuses returns every status in lifecycle order.
func ListStatuses() []models.OrderStatus {
	return append([]models.OrderStatus(nil), allStatuses...)
}

// ListEvents returns every event in table order.
func ListEvents() []models.OrderEvent {
	events := make([]models.OrderEvent, 0, len(validTransitions))
	for _, t := range validTransitions {
		events = append(events, t.Event)
	}
	return events
}

// GetAllTransitions returns the full state machine for documentation. The
// result is a deep copy; editing it leaves the machine untouched.
func GetAllTransitions() []Transition {
	out := make([]Transition, len(validTransitions))
	for i, t := range validTransitions {
		t.From = append([]models.OrderStatus(nil), t.From...)
		t.Actors = append([]models.UserRole(nil), t.Actors...)
		out[i] = t
	}
	return out
}

// CanUpdateEstimate reports whether the estimated time may be changed. This is
// a side channel, not a status transition.
func CanUpdateEstimate(status models.OrderStatus) bool {
	switch status {
	case models.StatusPending, models.StatusConfirmed, models.StatusPreparing:
		return true
	}
	return false
}

// NotifiesEstimate reports whether an estimate change should be announced to
// the customer. Pending orders stay silent until accepted.
func NotifiesEstimate(status models.OrderStatus) bool {
	return status == models.StatusConfirmed || status == models.StatusPreparing
}

func describeValidFrom(status models.OrderStatus) string {
	events := EventsFrom(status)
	if len(events) == 0 {
		return "none (terminal state)"
	}
	parts := make([]string, len(events))
	for i, e := range events {
		parts[i] = string(e)
	}
	return strings.Join(parts, ", ")
}
