package common

import (
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	yaml "gopkg.in/yaml.v2"

	"github.com/captainzonks/GeneGnome/models"
	"github.com/captainzonks/GeneGnome/models/dtos"
)

const (
	JobsPath           string = "%s/jobs"
	JobStatusPath      string = "%s/jobs/%s"
	JobProgressPath    string = "%s/jobs/%s/progress"
	UploadChunksPath   string = "%s/upload/chunks"
	UploadFinalizePath string = "%s/upload/finalize"
	DownloadPath       string = "%s/download/%s"
)

func InitConfig() *models.Config {
	var cfg models.Config

	// get this file's path
	_, filename, _, _ := runtime.Caller(0)
	folderpath := path.Dir(filename)

	// retrieve common's test.config
	f, err := os.Open(fmt.Sprintf("%s/test.config.yml", folderpath))
	if err != nil {
		processError(err)
	}
	defer f.Close()

	decoder := yaml.NewDecoder(f)
	err = decoder.Decode(&cfg)
	if err != nil {
		processError(err)
	}

	if cfg.Debug {
		http.DefaultTransport.(*http.Transport).TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}

	return &cfg
}

func processError(err error) {
	fmt.Println(err)
	os.Exit(2)
}

// GetJobStatus fetches one job's persisted status as the given user.
func GetJobStatus(_t *testing.T, _cfg *models.Config, jobId string, userEmail string) dtos.JobStatusResponseDto {
	url := fmt.Sprintf(JobStatusPath, _cfg.Api.Url, jobId)
	request, _ := http.NewRequest("GET", url, nil)
	request.Header.Set("X-User-Email", userEmail)

	client := &http.Client{}
	response, responseErr := client.Do(request)
	assert.Nil(_t, responseErr)

	defer response.Body.Close()

	shouldBe := 200
	assert.Equal(_t, shouldBe, response.StatusCode, fmt.Sprintf("Error -- Api GET %s Status: %s ; Should be %d", url, response.Status, shouldBe))

	respBody, respBodyErr := io.ReadAll(response.Body)
	assert.Nil(_t, respBodyErr)

	var respDto dtos.JobStatusResponseDto
	jsonUnmarshallingError := json.Unmarshal(respBody, &respDto)
	assert.Nil(_t, jsonUnmarshallingError)

	return respDto
}

// MakeDownloadAttempt hits the download endpoint with an optional
// password and hands the raw response back to the caller, who owns
// both the status assertion and the body.
func MakeDownloadAttempt(_t *testing.T, _cfg *models.Config, token string, password string) *http.Response {
	url := fmt.Sprintf(DownloadPath, _cfg.Api.Url, token)
	request, _ := http.NewRequest("GET", url, nil)
	if password != "" {
		request.Header.Set("X-Download-Password", password)
	}

	client := &http.Client{}
	response, responseErr := client.Do(request)
	assert.Nil(_t, responseErr)

	return response
}
