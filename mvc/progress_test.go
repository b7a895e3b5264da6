package mvc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFilterFrameForwardsAdvancingPercentages(t *testing.T) {
	lastPct := 10.0

	frame, forward := filterFrame(`{"type":"progress","jobId":"j","progress_pct":25.5,"message":"chromosome 5 merged"}`, &lastPct)
	require.True(t, forward)
	assert.Equal(t, "progress", frame.Type)
	assert.Equal(t, 25.5, lastPct)
}

func TestFilterFrameDropsBackwardsPercentages(t *testing.T) {
	lastPct := 50.0

	_, forward := filterFrame(`{"type":"progress","jobId":"j","progress_pct":40}`, &lastPct)
	assert.False(t, forward)
	assert.Equal(t, 50.0, lastPct, "a dropped frame must not move the watermark")

	// equal percentage is not backwards; status republishes are allowed
	_, forward = filterFrame(`{"type":"progress","jobId":"j","progress_pct":50}`, &lastPct)
	assert.True(t, forward)
}

func TestFilterFrameDropsMalformedPayloads(t *testing.T) {
	lastPct := 0.0

	_, forward := filterFrame(`{"type":`, &lastPct)
	assert.False(t, forward)
	assert.Equal(t, 0.0, lastPct)
}

func TestFilterFrameForwardsTerminalFrames(t *testing.T) {
	lastPct := 95.0

	frame, forward := filterFrame(`{"type":"completed","jobId":"j","progress_pct":100,"message":"results ready"}`, &lastPct)
	require.True(t, forward)
	assert.Equal(t, "completed", frame.Type)

	lastPct = 30.0
	frame, forward = filterFrame(`{"type":"error","jobId":"j","progress_pct":30,"error":"processing failed"}`, &lastPct)
	require.True(t, forward)
	assert.Equal(t, "error", frame.Type)
}
