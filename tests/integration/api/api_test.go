package api

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"net/http"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"

	common "github.com/captainzonks/GeneGnome/tests/common"
)

// These tests run against a live gateway (and its postgres/redis
// stack); they are skipped unless GENEGNOME_INTEGRATION is set.
func requireLiveStack(_t *testing.T) {
	if os.Getenv("GENEGNOME_INTEGRATION") == "" {
		_t.Skip("set GENEGNOME_INTEGRATION=1 to run against a live stack")
	}
}

func TestRootHit(t *testing.T) {
	requireLiveStack(t)
	cfg := common.InitConfig()

	response, err := http.Get(cfg.Api.Url)
	assert.Nil(t, err)
	defer response.Body.Close()

	assert.Equal(t, 200, response.StatusCode)
}

func TestJobSubmissionWithoutUserEmailIsRejected(t *testing.T) {
	requireLiveStack(t)
	cfg := common.InitConfig()

	response, err := http.Post(fmt.Sprintf(common.JobsPath, cfg.Api.Url), "multipart/form-data", nil)
	assert.Nil(t, err)
	defer response.Body.Close()

	assert.Equal(t, 400, response.StatusCode)
}

func TestUnknownJobStatusIsNotFound(t *testing.T) {
	requireLiveStack(t)
	cfg := common.InitConfig()

	url := fmt.Sprintf(common.JobStatusPath, cfg.Api.Url, "00000000-0000-0000-0000-000000000000")
	request, _ := http.NewRequest("GET", url, nil)
	request.Header.Set("X-User-Email", "nobody@example.org")

	response, err := (&http.Client{}).Do(request)
	assert.Nil(t, err)
	defer response.Body.Close()

	assert.Equal(t, 404, response.StatusCode)
}

func TestMalformedDownloadTokenIsNotFound(t *testing.T) {
	requireLiveStack(t)
	cfg := common.InitConfig()

	response := common.MakeDownloadAttempt(t, cfg, "not-a-real-token", "")
	defer response.Body.Close()

	assert.Equal(t, 404, response.StatusCode)
}

func TestUnknownDownloadTokenIsNotFound(t *testing.T) {
	requireLiveStack(t)
	cfg := common.InitConfig()

	// correctly shaped, never issued
	raw := make([]byte, 32)
	rand.Read(raw)
	token := base64.RawURLEncoding.EncodeToString(raw)

	response := common.MakeDownloadAttempt(t, cfg, token, "irrelevant")
	defer response.Body.Close()

	assert.Equal(t, 404, response.StatusCode)
}
