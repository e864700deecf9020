package order

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusCanTransition_Forward(t *testing.T) {
	assert.True(t, StatusPending.CanTransition(StatusPaid))
	assert.True(t, StatusPaid.CanTransition(StatusShipped))
	assert.True(t, StatusShipped.CanTransition(StatusDelivered))

	// Forward jumps are permitted.
	assert.True(t, StatusPending.CanTransition(StatusShipped))
	assert.True(t, StatusPending.CanTransition(StatusDelivered))
}

func TestStatusCanTransition_Backward(t *testing.T) {
	assert.False(t, StatusPaid.CanTransition(StatusPending))
	assert.False(t, StatusShipped.CanTransition(StatusPaid))
	assert.False(t, StatusPending.CanTransition(StatusPending))
}

func TestStatusCanTransition_Cancel(t *testing.T) {
	assert.True(t, StatusPending.CanTransition(StatusCancelled))
	assert.True(t, StatusPaid.CanTransition(StatusCancelled))
	assert.True(t, StatusShipped.CanTransition(StatusCancelled))

	// Terminal states cannot be reopened or re-cancelled.
	assert.False(t, StatusDelivered.CanTransition(StatusCancelled))
	assert.False(t, StatusCancelled.CanTransition(StatusCancelled))
	assert.False(t, StatusCancelled.CanTransition(StatusPending))
	assert.False(t, StatusDelivered.CanTransition(StatusShipped))
}

func TestStatusValid(t *testing.T) {
	for _, s := range []Status{StatusPending, StatusPaid, StatusShipped, StatusDelivered, StatusCancelled} {
		assert.True(t, s.Valid(), string(s))
	}
	assert.False(t, Status("ARCHIVED").Valid())
	assert.False(t, Status("").Valid())
}

func TestStatusTerminal(t *testing.T) {
	assert.True(t, StatusDelivered.Terminal())
	assert.True(t, StatusCancelled.Terminal())
	assert.False(t, StatusPending.Terminal())
	assert.False(t, StatusShipped.Terminal())
}
