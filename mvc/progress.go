package mvc

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/Jeffail/gabs"
	"github.com/google/uuid"
	"github.com/labstack/echo"
	"github.com/mitchellh/mapstructure"
	"github.com/redis/go-redis/v9"

	"github.com/captainzonks/GeneGnome/models/constants/jobstate"
	"github.com/captainzonks/GeneGnome/models/dtos"
	"github.com/captainzonks/GeneGnome/models/dtos/errors"
	"github.com/captainzonks/GeneGnome/repositories/postgres"
	"github.com/captainzonks/GeneGnome/repositories/queue"
)

/*
	Live progress is served as SSE over the job's Redis channel. The
	first frame is always the persisted job row, so a client attaching
	mid-run (or after the run) sees the current state without waiting
	for the next broadcast. Frames whose percentage would move
	backwards are dropped; pub/sub delivery order is not guaranteed
	across worker reconnects.
*/

// ProgressStream streams job progress frames as server-sent events
// until the job reaches a terminal frame or the client disconnects.
func ProgressStream(c echo.Context) error {
	gc, _, db, redisClient := RetrieveCommonElements(c)

	jobID, parseErr := uuid.Parse(c.Param("id"))
	if parseErr != nil {
		return c.JSON(http.StatusBadRequest, errors.CreateSimpleBadRequest("Invalid job id! Check your input"))
	}

	job, err := postgres.GetJobForUser(db, jobID, gc.UserID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, errors.CreateSimpleInternalServerError("Could not read job"))
	}
	if job == nil {
		return c.JSON(http.StatusNotFound, errors.CreateSimpleNotFound("No such job"))
	}

	response := c.Response()
	response.Header().Set(echo.HeaderContentType, "text/event-stream")
	response.Header().Set("Cache-Control", "no-cache")
	response.Header().Set("Connection", "keep-alive")
	response.WriteHeader(http.StatusOK)

	send := func(payload []byte) {
		fmt.Fprintf(response, "data: %s\n\n", payload)
		response.Flush()
	}

	statusFrame, _ := json.Marshal(&dtos.ProgressFrameDto{
		Type:        "status",
		JobID:       job.ID.String(),
		ProgressPct: job.ProgressPct,
		Message:     string(job.State),
		Error:       job.ErrorMessage,
	})
	send(statusFrame)

	// nothing more will ever be published for a settled job
	if job.State == jobstate.Completed || jobstate.IsTerminal(job.State) {
		return nil
	}

	ctx := c.Request().Context()
	sub := queue.SubscribeProgress(ctx, redisClient, jobID)
	defer sub.Close()

	lastPct := job.ProgressPct
	return relayFrames(ctx, sub, send, lastPct)
}

func relayFrames(ctx context.Context, sub *redis.PubSub, send func([]byte), lastPct float64) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case message, open := <-sub.Channel():
			if !open {
				return nil
			}

			frame, forward := filterFrame(message.Payload, &lastPct)
			if !forward {
				continue
			}

			send([]byte(message.Payload))
			if frame.Type == "completed" || frame.Type == "error" {
				return nil
			}
		}
	}
}

// filterFrame decides whether a raw pub/sub payload reaches the
// client. Malformed frames and frames that would move the percentage
// backwards are dropped; lastPct advances on every forwarded frame
// that carries a percentage.
func filterFrame(payload string, lastPct *float64) (*dtos.ProgressFrameDto, bool) {
	parsed, err := gabs.ParseJSON([]byte(payload))
	if err != nil {
		return nil, false
	}

	if pct, ok := parsed.Path("progress_pct").Data().(float64); ok {
		if pct < *lastPct {
			return nil, false
		}
		*lastPct = pct
	}

	var frame dtos.ProgressFrameDto
	if decodeErr := mapstructure.Decode(parsed.Data(), &frame); decodeErr != nil {
		return nil, false
	}
	return &frame, true
}
