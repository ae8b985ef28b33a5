package api

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/pkg/errors"

	"github.com/guspan-tanadi/osm-rawdatabyhotosm/database"
	"github.com/guspan-tanadi/osm-rawdatabyhotosm/query"
)

// Polling policy: every 2s for the first minute, every 10s afterwards,
// 600s total budget.
const (
	initialPollInterval = 2 * time.Second
	slowPollInterval    = 10 * time.Second
	slowPollAfter       = 60 * time.Second
	maxPollDuration     = 600 * time.Second
)

const statusSuccess = "SUCCESS"

type taskStatus struct {
	Status string `json:"status"`
	Result struct {
		DownloadURL string `json:"download_url"`
	} `json:"result"`
}

// poll blocks until the task reaches SUCCESS and returns its download
// URL. Any other status keeps polling and consumes budget; budget
// exhaustion yields ErrPollTimeout. Elapsed time is accounted from the
// intervals slept, so tests inject a sleep function instead of waiting.
func (c *Client) poll(taskID string) (string, error) {
	statusURL := fmt.Sprintf("%s/tasks/status/%s", c.baseURL, taskID)
	log.Debugf("raw data API query URL: %s", statusURL)

	interval := initialPollInterval
	var elapsed time.Duration
	for elapsed < maxPollDuration {
		status, err := c.taskStatus(statusURL)
		if err != nil {
			return "", err
		}
		if status.Status == statusSuccess {
			return status.Result.DownloadURL, nil
		}
		if elapsed > slowPollAfter {
			interval = slowPollInterval
		}
		log.Debugf("waiting %s before polling the API again", interval)
		c.sleep(interval)
		elapsed += interval
	}
	log.Errorf("%s elapsed, aborting data extract", maxPollDuration)
	return "", ErrPollTimeout
}

func (c *Client) taskStatus(statusURL string) (*taskStatus, error) {
	resp, err := c.get(statusURL)
	if err != nil {
		return nil, errors.Wrap(err, "polling task status")
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "reading task status")
	}
	status := &taskStatus{}
	if err := json.Unmarshal(data, status); err != nil {
		return nil, errors.Wrap(err, "decoding task status")
	}
	return status, nil
}

func newBackend(params database.ConnParams, qc *query.Config) (database.Extractor, error) {
	return New("", qc), nil
}

func init() {
	database.Register("rawdata-api", newBackend)
}
