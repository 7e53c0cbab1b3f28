// Package remote adapts the ballot recorder's S2S HTTP surface to the
// issuer.RecorderClient interface. Calls carry the S2S bearer token and the
// request's correlation id; they never carry subject identity.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"ballotbox.org/internal/audit"
	"ballotbox.org/internal/election"
)

// ErrUnavailable indicates a transport failure or a recorder-side internal
// error. Callers surface it as a transient, retryable failure.
var ErrUnavailable = errors.New("ballot recorder unavailable")

const defaultTimeout = 5 * time.Second

// Client talks to the recorder's /s2s/v1 endpoints.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// New creates a client with a bounded per-call timeout.
func New(baseURL, token string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: timeout},
	}
}

// GetElection fetches one catalog record for the eligibility check.
func (c *Client) GetElection(ctx context.Context, electionID string) (election.Election, error) {
	var e election.Election
	err := c.do(ctx, http.MethodGet, "/s2s/v1/elections/"+electionID, nil, &e)
	if err != nil {
		return election.Election{}, err
	}
	return e, nil
}

type registerRequest struct {
	Token      string `json:"token"`
	ElectionID string `json:"election_id"`
}

// RegisterCredential registers a bare {token, election} pair. Safe to retry:
// registration is idempotent on the recorder side.
func (c *Client) RegisterCredential(ctx context.Context, token, electionID string) error {
	return c.do(ctx, http.MethodPost, "/s2s/v1/credentials", registerRequest{
		Token:      token,
		ElectionID: electionID,
	}, nil)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var payload io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		payload = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, payload)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if cid := audit.CorrelationIDFromContext(ctx); cid != "" {
		req.Header.Set("X-Correlation-ID", cid)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if out == nil {
			return nil
		}
		return json.NewDecoder(resp.Body).Decode(out)
	}

	var remoteErr struct {
		Error string `json:"error"`
		Code  string `json:"code"`
	}
	_ = json.NewDecoder(io.LimitReader(resp.Body, 1<<16)).Decode(&remoteErr)
	if remoteErr.Error == "" {
		remoteErr.Error = http.StatusText(resp.StatusCode)
	}
	if remoteErr.Code == "" {
		remoteErr.Code = "recorder_error"
	}

	switch resp.StatusCode {
	case http.StatusBadRequest:
		return election.Invalid(remoteErr.Code, remoteErr.Error)
	case http.StatusNotFound:
		return election.Missing(remoteErr.Code, remoteErr.Error)
	case http.StatusConflict:
		return election.Conflict(remoteErr.Code, remoteErr.Error)
	default:
		return fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}
}
