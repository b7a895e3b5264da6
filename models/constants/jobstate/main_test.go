package jobstate

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/captainzonks/GeneGnome/models/constants"
)

func TestStateMachineNeverReverts(t *testing.T) {
	assert.True(t, CanTransition(Pending, Processing))
	assert.True(t, CanTransition(Processing, Completed))
	assert.True(t, CanTransition(Processing, Failed))
	assert.True(t, CanTransition(Completed, Expired))

	assert.False(t, CanTransition(Processing, Pending))
	assert.False(t, CanTransition(Completed, Processing))
	assert.False(t, CanTransition(Expired, Completed))
	assert.False(t, CanTransition(Failed, Processing))
}

func TestUserDeletionReachableFromEveryLiveState(t *testing.T) {
	for _, from := range []constants.JobState{Pending, Processing, Completed} {
		assert.True(t, CanTransition(from, UserDeleted), string(from))
	}
	assert.False(t, CanTransition(Expired, UserDeleted))
}
