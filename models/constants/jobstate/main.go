package jobstate

import (
	"github.com/captainzonks/GeneGnome/models/constants"
)

const (
	Pending     constants.JobState = "pending"
	Processing  constants.JobState = "processing"
	Completed   constants.JobState = "completed"
	Failed      constants.JobState = "failed"
	Expired     constants.JobState = "expired"
	UserDeleted constants.JobState = "user_deleted"
)

// CanTransition encodes the monotone state machine:
// pending → processing → {completed, failed} and the terminal
// transitions completed → expired and any-live → user_deleted.
// No state ever reverts.
func CanTransition(from, to constants.JobState) bool {
	switch from {
	case Pending:
		return to == Processing || to == Failed || to == UserDeleted
	case Processing:
		return to == Completed || to == Failed || to == UserDeleted
	case Completed:
		return to == Expired || to == UserDeleted
	}
	return false
}

func IsTerminal(s constants.JobState) bool {
	switch s {
	case Failed, Expired, UserDeleted:
		return true
	}
	return false
}
