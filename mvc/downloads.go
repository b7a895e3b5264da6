package mvc

import (
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo"

	"github.com/captainzonks/GeneGnome/models"
	"github.com/captainzonks/GeneGnome/models/constants"
	"github.com/captainzonks/GeneGnome/models/constants/attemptresult"
	"github.com/captainzonks/GeneGnome/models/constants/jobstate"
	"github.com/captainzonks/GeneGnome/models/dtos/errors"
	"github.com/captainzonks/GeneGnome/repositories/postgres"
)

/*
	The download endpoint is the only surface an attacker can probe
	with nothing but a URL, so every outcome lands in the append-only
	attempt log and the checks run in a fixed order: token, expiry,
	attempt budget, rate limit, then password. An unknown token gets a
	404 identical to a malformed one.
*/

// DownloadsGet verifies a download token and password, spends one
// attempt slot and streams the result archive.
func DownloadsGet(c echo.Context) error {
	gc, cfg, db, _ := RetrieveCommonElements(c)
	token := c.Param("token")

	job, err := postgres.GetJobByToken(db, token)
	if err != nil {
		fmt.Printf("[%s] - Download token lookup error: %v\n", time.Now(), err)
		return c.JSON(http.StatusInternalServerError, errors.CreateSimpleInternalServerError("Could not verify token"))
	}
	if job == nil {
		// no job row to attach an attempt row to; the audit log still
		// records the probe
		postgres.AppendAudit(db, &models.AuditEvent{
			EventType: "security",
			IPAddress: c.RealIP(),
			Action:    "download",
			Result:    string(attemptresult.InvalidToken),
			Details:   "unknown download token",
		})
		return c.JSON(http.StatusNotFound, errors.CreateSimpleNotFound("Unknown download token"))
	}

	password := c.Request().Header.Get("X-Download-Password")
	if len(password) == 0 {
		password = c.QueryParam("password")
	}
	passwordProvided := len(password) > 0

	recordAttempt := func(result constants.AttemptResult, passwordValid bool) {
		postgres.RecordAttempt(db, &models.DownloadAttempt{
			JobID:            job.ID,
			Result:           result,
			IPAddress:        c.RealIP(),
			UserAgent:        c.Request().UserAgent(),
			TokenProvided:    true,
			TokenValid:       true,
			PasswordProvided: passwordProvided,
			PasswordValid:    passwordValid,
		})
	}

	if job.State != jobstate.Completed || (job.ExpiresAt != nil && time.Now().After(*job.ExpiresAt)) {
		recordAttempt(attemptresult.JobExpired, false)
		return c.JSON(http.StatusGone, errors.CreateSimpleGone("Download expired"))
	}

	if job.DownloadAttempts >= job.MaxDownloadAttempts {
		recordAttempt(attemptresult.MaxAttemptsExceeded, false)
		postgres.AppendAudit(db, &models.AuditEvent{
			EventType: "security",
			UserID:    job.UserID,
			IPAddress: c.RealIP(),
			Action:    "download",
			Result:    string(attemptresult.MaxAttemptsExceeded),
			Details:   fmt.Sprintf("job=%s attempts=%d", job.ID, job.DownloadAttempts),
		})
		return c.JSON(http.StatusTooManyRequests, errors.CreateSimpleTooManyRequests("Download attempt limit reached"))
	}

	recent, countErr := postgres.CountRecentAttempts(db, job.ID, time.Minute)
	if countErr != nil {
		fmt.Printf("[%s] - Attempt count error (job %s): %v\n", time.Now(), job.ID, countErr)
		return c.JSON(http.StatusInternalServerError, errors.CreateSimpleInternalServerError("Could not verify token"))
	}
	if recent >= cfg.Download.RateLimitPerMinute {
		recordAttempt(attemptresult.RateLimited, false)
		return c.JSON(http.StatusTooManyRequests, errors.CreateSimpleTooManyRequests("Too many download attempts; slow down"))
	}

	valid, consumeErr := postgres.ConsumeDownloadAttempt(db, job.ID, func(passwordHash string) bool {
		return passwordProvided && gc.SecurityService.VerifyPassword(password, passwordHash)
	})
	if consumeErr != nil {
		fmt.Printf("[%s] - Attempt consume error (job %s): %v\n", time.Now(), job.ID, consumeErr)
		return c.JSON(http.StatusInternalServerError, errors.CreateSimpleInternalServerError("Could not verify password"))
	}
	if !valid {
		recordAttempt(attemptresult.InvalidPassword, false)
		postgres.AppendAudit(db, &models.AuditEvent{
			EventType: "security",
			UserID:    job.UserID,
			IPAddress: c.RealIP(),
			Action:    "download",
			Result:    string(attemptresult.InvalidPassword),
			Details:   fmt.Sprintf("job=%s", job.ID),
		})
		return c.JSON(http.StatusUnauthorized, errors.CreateSimpleUnauthorized("Invalid download password"))
	}

	recordAttempt(attemptresult.Success, true)
	postgres.AppendAudit(db, &models.AuditEvent{
		EventType: "download",
		UserID:    job.UserID,
		IPAddress: c.RealIP(),
		Action:    "download",
		Result:    string(attemptresult.Success),
		Details:   fmt.Sprintf("job=%s sha256=%s", job.ID, job.ResultSha256),
	})

	return c.Attachment(job.ResultPath, "results.tar.gz")
}
