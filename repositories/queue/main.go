// Package queue owns the Redis side of orchestration: the durable job
// queue, per-job progress channels and chunk-upload session state.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/captainzonks/GeneGnome/models/dtos"
)

const jobQueueKey = "genegnome:jobs"

func progressChannel(jobID uuid.UUID) string {
	return "genegnome:progress:" + jobID.String()
}

func chunkSessionKey(uploadID string) string {
	return "genegnome:chunks:" + uploadID
}

// Enqueue pushes a job id onto the work queue.
func Enqueue(ctx context.Context, client *redis.Client, jobID uuid.UUID) error {
	return client.LPush(ctx, jobQueueKey, jobID.String()).Err()
}

// Dequeue blocks up to timeout for the next job id. The false return
// means the timeout elapsed with an empty queue.
func Dequeue(ctx context.Context, client *redis.Client, timeout time.Duration) (uuid.UUID, bool, error) {
	values, err := client.BRPop(ctx, timeout, jobQueueKey).Result()
	if err == redis.Nil {
		return uuid.Nil, false, nil
	}
	if err != nil {
		return uuid.Nil, false, err
	}
	// BRPOP returns [key, value]
	jobID, err := uuid.Parse(values[1])
	if err != nil {
		return uuid.Nil, false, fmt.Errorf("non-uuid payload on job queue: %w", err)
	}
	return jobID, true, nil
}

// PublishProgress broadcasts one frame on the job's channel. Fire and
// forget: a frame nobody is subscribed to is simply dropped.
func PublishProgress(ctx context.Context, client *redis.Client, frame *dtos.ProgressFrameDto) error {
	payload, err := json.Marshal(frame)
	if err != nil {
		return err
	}
	jobID, err := uuid.Parse(frame.JobID)
	if err != nil {
		return err
	}
	return client.Publish(ctx, progressChannel(jobID), payload).Err()
}

// SubscribeProgress attaches to a job's live frame stream. The caller
// owns the returned subscription and must Close it.
func SubscribeProgress(ctx context.Context, client *redis.Client, jobID uuid.UUID) *redis.PubSub {
	return client.Subscribe(ctx, progressChannel(jobID))
}

// DecodeProgressFrame parses one pub/sub payload.
func DecodeProgressFrame(payload string) (*dtos.ProgressFrameDto, error) {
	var frame dtos.ProgressFrameDto
	if err := json.Unmarshal([]byte(payload), &frame); err != nil {
		return nil, err
	}
	return &frame, nil
}

// RecordChunk stores one received chunk's size in the upload session
// hash and refreshes the session's idle TTL. Chunks may arrive in any
// order; the hash is the arrival ledger finalize checks against.
// Filenames must not contain ':', which the chunk endpoint enforces;
// that keeps every hash field decodable from its prefix and its last
// colon alone.
func RecordChunk(ctx context.Context, client *redis.Client, uploadID, filename, fileType string, chunkIndex, totalChunks int, sizeBytes int64, idleTTL time.Duration) error {
	key := chunkSessionKey(uploadID)
	pipe := client.TxPipeline()
	pipe.HSet(ctx, key, fmt.Sprintf("chunk:%s:%d", filename, chunkIndex), sizeBytes)
	pipe.HSet(ctx, key, "total:"+filename, totalChunks)
	pipe.HSet(ctx, key, "type:"+filename, fileType)
	pipe.Expire(ctx, key, idleTTL)
	_, err := pipe.Exec(ctx)
	return err
}

// ChunkLedger is one upload session's arrival state per file.
type ChunkLedger struct {
	FileType    string
	TotalChunks int
	// Sizes maps chunk index to received byte count.
	Sizes map[int]int64
}

// ReadChunkSession loads the full arrival ledger for an upload.
func ReadChunkSession(ctx context.Context, client *redis.Client, uploadID string) (map[string]*ChunkLedger, error) {
	fields, err := client.HGetAll(ctx, chunkSessionKey(uploadID)).Result()
	if err != nil {
		return nil, err
	}
	return parseChunkFields(fields)
}

// parseChunkFields decodes the session hash into per-file ledgers.
// Fields are "chunk:<filename>:<index>", "total:<filename>" and
// "type:<filename>"; colon-free filenames make the split at the last
// colon unambiguous for any index width.
func parseChunkFields(fields map[string]string) (map[string]*ChunkLedger, error) {
	ledgers := make(map[string]*ChunkLedger)
	ledger := func(filename string) *ChunkLedger {
		l, ok := ledgers[filename]
		if !ok {
			l = &ChunkLedger{Sizes: make(map[int]int64)}
			ledgers[filename] = l
		}
		return l
	}

	for field, value := range fields {
		switch {
		case strings.HasPrefix(field, "total:"):
			total, convErr := strconv.Atoi(value)
			if convErr != nil {
				return nil, fmt.Errorf("bad total for %s: %w", field[len("total:"):], convErr)
			}
			ledger(field[len("total:"):]).TotalChunks = total

		case strings.HasPrefix(field, "type:"):
			ledger(field[len("type:"):]).FileType = value

		case strings.HasPrefix(field, "chunk:"):
			rest := field[len("chunk:"):]
			sep := strings.LastIndexByte(rest, ':')
			if sep < 1 || sep == len(rest)-1 {
				return nil, fmt.Errorf("unrecognized chunk field %q", field)
			}
			index, convErr := strconv.Atoi(rest[sep+1:])
			if convErr != nil || index < 0 {
				return nil, fmt.Errorf("bad chunk index in %q", field)
			}
			size, convErr := strconv.ParseInt(value, 10, 64)
			if convErr != nil {
				return nil, fmt.Errorf("bad chunk size in %q: %w", field, convErr)
			}
			ledger(rest[:sep]).Sizes[index] = size

		default:
			return nil, fmt.Errorf("unrecognized chunk field %q", field)
		}
	}
	return ledgers, nil
}

// ClearChunkSession drops the session ledger after finalize.
func ClearChunkSession(ctx context.Context, client *redis.Client, uploadID string) error {
	return client.Del(ctx, chunkSessionKey(uploadID)).Err()
}
