package attemptresult

import (
	"github.com/captainzonks/GeneGnome/models/constants"
)

const (
	Success             constants.AttemptResult = "success"
	InvalidToken        constants.AttemptResult = "invalid_token"
	InvalidPassword     constants.AttemptResult = "invalid_password"
	JobExpired          constants.AttemptResult = "job_expired"
	RateLimited         constants.AttemptResult = "rate_limited"
	MaxAttemptsExceeded constants.AttemptResult = "max_attempts_exceeded"
)
