// Package client provides a Go client for the EcoTrac API.
package client

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ecotrac/ecotrac/internal/model"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyJoined = errors.New("already joined this challenge")
)

// Client is an EcoTrac API client.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
}

// Activities is the body of GET /my-activities.
type Activities struct {
	Activities []model.ActivityView `json:"activities"`
	Challenges []model.Document     `json:"challenges"`
}

// New creates a new EcoTrac client.
func New(baseURL string) *Client {
	return &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// ListChallenges fetches every challenge.
func (c *Client) ListChallenges() ([]model.Document, error) {
	var out []model.Document
	if err := c.call("list challenges", http.MethodGet, "/challenges", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetChallenge fetches one challenge. Unknown ids yield ErrNotFound.
func (c *Client) GetChallenge(id string) (model.Document, error) {
	var out model.Document
	if err := c.call("get challenge", http.MethodGet, "/challenges/"+url.PathEscape(id), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CreateChallenge stores a new challenge and returns its insert result.
func (c *Client) CreateChallenge(fields model.Document) (model.InsertResult, error) {
	var out struct {
		Result model.InsertResult `json:"result"`
	}
	if err := c.call("create challenge", http.MethodPost, "/challenges", fields, &out); err != nil {
		return model.InsertResult{}, err
	}
	return out.Result, nil
}

func (c *Client) UpdateChallenge(id string, fields model.Document) (model.UpdateResult, error) {
	var out struct {
		Result model.UpdateResult `json:"result"`
	}
	if err := c.call("update challenge", http.MethodPut, "/challenges/"+url.PathEscape(id), fields, &out); err != nil {
		return model.UpdateResult{}, err
	}
	return out.Result, nil
}

func (c *Client) DeleteChallenge(id string) (model.DeleteResult, error) {
	var out struct {
		Result model.DeleteResult `json:"result"`
	}
	if err := c.call("delete challenge", http.MethodDelete, "/challenges/"+url.PathEscape(id), nil, &out); err != nil {
		return model.DeleteResult{}, err
	}
	return out.Result, nil
}

// JoinChallenge joins a challenge on behalf of email. A repeated join
// returns ErrAlreadyJoined.
func (c *Client) JoinChallenge(id, email string) error {
	var out struct {
		Success bool   `json:"success"`
		Message string `json:"message"`
	}
	path := "/challenges/join/" + url.PathEscape(id)
	if err := c.call("join challenge", http.MethodPost, path, map[string]string{"email": email}, &out); err != nil {
		return err
	}
	if !out.Success {
		return ErrAlreadyJoined
	}
	return nil
}

// ListJoinedChallenges fetches the join audit log.
func (c *Client) ListJoinedChallenges() ([]model.JoinedChallenge, error) {
	var out []model.JoinedChallenge
	if err := c.call("list joined challenges", http.MethodGet, "/challenges/joinedChallenges", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// MyActivities fetches the activity feed of email, newest first.
func (c *Client) MyActivities(email string) (*Activities, error) {
	var out Activities
	path := "/my-activities?" + url.Values{"email": {email}}.Encode()
	if err := c.call("my activities", http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// PostTip shares a tip.
func (c *Client) PostTip(tip model.Document) (model.InsertResult, error) {
	var out struct {
		TipResult model.InsertResult `json:"tipResult"`
	}
	if err := c.call("post tip", http.MethodPost, "/api/tips", tip, &out); err != nil {
		return model.InsertResult{}, err
	}
	return out.TipResult, nil
}

// ListTips fetches tips in insertion order, or newest first when newest is set.
func (c *Client) ListTips(newest bool) ([]model.Document, error) {
	path := "/api/tips"
	if newest {
		path += "?sort=new"
	}
	var out []model.Document
	if err := c.call("list tips", http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Health reports whether the server can reach its store.
func (c *Client) Health() error {
	return c.call("health", http.MethodGet, "/healthz", nil, nil)
}

// call performs a request and decodes a 200 body into out.
func (c *Client) call(op, method, path string, body, out any) error {
	resp, err := c.doRequest(method, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("%s failed (%d): %s", op, resp.StatusCode, errorMessage(respBody))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s: decode response: %w", op, err)
	}
	return nil
}

func (c *Client) doRequest(method, path string, body any) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		bodyBytes, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		bodyReader = bytes.NewReader(bodyBytes)
	}

	req, err := http.NewRequest(method, c.BaseURL+path, bodyReader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	return c.HTTPClient.Do(req)
}

// errorMessage extracts the message of a {success:false,message} body.
func errorMessage(body []byte) string {
	var payload struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && payload.Message != "" {
		return payload.Message
	}
	return strings.TrimSpace(string(body))
}
