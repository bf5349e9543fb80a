package statemachine

import (
	"errors"
	"testing"

	"food-order-api/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApply_HappyPath(t *testing.T) {
	status := models.StatusPending
	for _, step := range []struct {
		event models.OrderEvent
		want  models.OrderStatus
	}{
		{models.EventAccept, models.StatusConfirmed},
		{models.EventStartPreparing, models.StatusPreparing},
		{models.EventMarkReady, models.StatusReady},
		{models.EventComplete, models.StatusDelivered},
	} {
		next, err := Apply(status, step.event)
		require.NoError(t, err, "event %s from %s", step.event, status)
		assert.Equal(t, step.want, next)
		status = next
	}
}

func TestApply_TransitionTable(t *testing.T) {
	allowed := map[models.OrderEvent]map[models.OrderStatus]models.OrderStatus{
		models.EventAccept:         {models.StatusPending: models.StatusConfirmed},
		models.EventStartPreparing: {models.StatusConfirmed: models.StatusPreparing},
		models.EventMarkReady:      {models.StatusPreparing: models.StatusReady},
		models.EventComplete:       {models.StatusReady: models.StatusDelivered},
		models.EventCancel: {
			models.StatusPending:   models.StatusCancelled,
			models.StatusConfirmed: models.StatusCancelled,
			models.StatusPreparing: models.StatusCancelled,
		},
		models.EventConfirmReceipt: {models.StatusReady: models.StatusDelivered},
	}

	for _, event := range ListEvents() {
		for _, from := range ListStatuses() {
			next, err := Apply(from, event)
			want, ok := allowed[event][from]
			if ok {
				require.NoError(t, err, "%s from %s", event, from)
				assert.Equal(t, want, next)
				assert.True(t, CanTransition(from, event))
				continue
			}
			assert.ErrorIs(t, err, ErrIllegalTransition, "%s from %s", event, from)
			assert.Equal(t, from, next, "rejected event must not change status")
			assert.False(t, CanTransition(from, event))
		}
	}
}

func TestApply_TerminalStatusesRejectEverything(t *testing.T) {
	for _, status := range []models.OrderStatus{models.StatusDelivered, models.StatusCancelled} {
		assert.True(t, IsTerminal(status))
		for _, event := range ListEvents() {
			_, err := Apply(status, event)
			var illegal *IllegalTransitionError
			require.True(t, errors.As(err, &illegal))
			assert.Equal(t, status, illegal.From)
			assert.Equal(t, event, illegal.Event)
			assert.Contains(t, err.Error(), "terminal state")
		}
	}
}

func TestApply_ReadyNeverMovesBack(t *testing.T) {
	earlier := map[models.OrderStatus]bool{
		models.StatusPending:   true,
		models.StatusConfirmed: true,
		models.StatusPreparing: true,
	}
	// Walk every reachable status from ready and make sure none is earlier.
	frontier := []models.OrderStatus{models.StatusReady}
	seen := map[models.OrderStatus]bool{}
	for len(frontier) > 0 {
		s := frontier[0]
		frontier = frontier[1:]
		if seen[s] {
			continue
		}
		seen[s] = true
		assert.False(t, earlier[s], "%s reachable from ready", s)
		for _, e := range EventsFrom(s) {
			next, err := Apply(s, e)
			require.NoError(t, err)
			frontier = append(frontier, next)
		}
	}
	assert.False(t, CanTransition(models.StatusReady, models.EventCancel))
}

func TestAuthorize(t *testing.T) {
	assert.NoError(t, Authorize(models.EventAccept, models.RoleRestaurant))
	assert.ErrorIs(t, Authorize(models.EventAccept, models.RoleSystem), ErrActorNotAllowed)
	assert.ErrorIs(t, Authorize(models.EventAccept, models.RoleCustomer), ErrActorNotAllowed)
	assert.NoError(t, Authorize(models.EventCancel, models.RoleCustomer))
	assert.NoError(t, Authorize(models.EventCancel, models.RoleSystem))
	assert.NoError(t, Authorize(models.EventConfirmReceipt, models.RoleCustomer))
	assert.ErrorIs(t, Authorize(models.EventConfirmReceipt, models.RoleRestaurant), ErrActorNotAllowed)
	assert.ErrorIs(t, Authorize("teleport", models.RoleAdmin), ErrUnknownEvent)
}

func TestParseEvent(t *testing.T) {
	e, err := ParseEvent(" Mark_Ready ")
	require.NoError(t, err)
	assert.Equal(t, models.EventMarkReady, e)

	_, err = ParseEvent("refund")
	assert.ErrorIs(t, err, ErrUnknownEvent)
}

func TestEstimateRules(t *testing.T) {
	assert.True(t, CanUpdateEstimate(models.StatusPending))
	assert.True(t, CanUpdateEstimate(models.StatusConfirmed))
	assert.True(t, CanUpdateEstimate(models.StatusPreparing))
	assert.False(t, CanUpdateEstimate(models.StatusReady))
	assert.False(t, CanUpdateEstimate(models.StatusCancelled))

	assert.False(t, NotifiesEstimate(models.StatusPending))
	assert.True(t, NotifiesEstimate(models.StatusConfirmed))
	assert.True(t, NotifiesEstimate(models.StatusPreparing))
}

func TestListings(t *testing.T) {
	assert.Len(t, ListStatuses(), 6)
	assert.Len(t, GetAllTransitions(), 6)
	assert.ElementsMatch(t,
		[]models.OrderEvent{models.EventStartPreparing, models.EventCancel},
		EventsFrom(models.StatusConfirmed))
	assert.ElementsMatch(t,
		[]models.OrderEvent{models.EventComplete, models.EventConfirmReceipt},
		EventsFrom(models.StatusReady))
}

func TestGetAllTransitions_ReturnsIndependentCopy(t *testing.T) {
	listed := GetAllTransitions()
	for i := range listed {
		listed[i].From[0] = models.StatusDelivered
		listed[i].Actors[0] = models.RoleAdmin
	}

	fresh := GetAllTransitions()
	assert.Equal(t, []models.OrderStatus{models.StatusPending}, fresh[0].From)
	assert.Equal(t, []models.UserRole{models.RoleRestaurant}, fresh[0].Actors)
	assert.True(t, CanTransition(models.StatusPending, models.EventAccept))
	assert.NoError(t, Authorize(models.EventAccept, models.RoleRestaurant))
	assert.Error(t, Authorize(models.EventAccept, models.RoleAdmin))
}
