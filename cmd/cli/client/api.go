// Package client is a thin HTTP client for the reportd API, used by
// the CLI.
package client

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/careops/reportd/internal/models"
	"github.com/careops/reportd/internal/scheduler"
)

type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

func New(baseURL, token string) *Client {
	return &Client{baseURL: baseURL, token: token, http: http.DefaultClient}
}

func (c *Client) Login(username, password string) (string, error) {
	body := map[string]string{"username": username, "password": password}
	var resp struct {
		Token string `json:"token"`
	}
	if err := c.do(http.MethodPost, "/api/v1/auth/login", body, &resp); err != nil {
		return "", err
	}
	return resp.Token, nil
}

func (c *Client) ListSchedules() ([]models.ScheduledReport, error) {
	var out []models.ScheduledReport
	err := c.do(http.MethodGet, "/api/v1/schedules", nil, &out)
	return out, err
}

func (c *Client) GetSchedule(id uint) (*models.ScheduledReport, error) {
	var out models.ScheduledReport
	if err := c.do(http.MethodGet, fmt.Sprintf("/api/v1/schedules/%d", id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) CreateSchedule(report interface{}) (*models.ScheduledReport, error) {
	var out models.ScheduledReport
	if err := c.do(http.MethodPost, "/api/v1/schedules", report, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UpdateSchedule(id uint, update interface{}) (*models.ScheduledReport, error) {
	var out models.ScheduledReport
	if err := c.do(http.MethodPut, fmt.Sprintf("/api/v1/schedules/%d", id), update, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeleteSchedule(id uint) error {
	return c.do(http.MethodDelete, fmt.Sprintf("/api/v1/schedules/%d", id), nil, nil)
}

func (c *Client) SetScheduleActive(id uint, active bool) (*models.ScheduledReport, error) {
	action := "disable"
	if active {
		action = "enable"
	}
	var out models.ScheduledReport
	if err := c.do(http.MethodPut, fmt.Sprintf("/api/v1/schedules/%d/%s", id, action), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) RunSchedule(id uint) (string, error) {
	var resp struct {
		Status string `json:"status"`
	}
	if err := c.do(http.MethodPost, fmt.Sprintf("/api/v1/schedules/%d/run", id), nil, &resp); err != nil {
		return "", err
	}
	return resp.Status, nil
}

func (c *Client) ListExecutions(id uint, limit int) ([]models.ReportExecution, error) {
	var out []models.ReportExecution
	path := fmt.Sprintf("/api/v1/schedules/%d/executions?limit=%d", id, limit)
	err := c.do(http.MethodGet, path, nil, &out)
	return out, err
}

func (c *Client) Tick() (*scheduler.TickSummary, error) {
	var out scheduler.TickSummary
	if err := c.do(http.MethodPost, "/api/v1/tick", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) do(method, path string, body, out interface{}) error {
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var apiErr struct {
			Error string `json:"error"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&apiErr); err == nil && apiErr.Error != "" {
			return fmt.Errorf("%s %s: %s", method, path, apiErr.Error)
		}
		return fmt.Errorf("%s %s: HTTP %d", method, path, resp.StatusCode)
	}

	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
