// Package mission is the client for the external mission controller: a
// synchronous command endpoint that begins takeoff or progresses the
// swarm to the next formation.
package mission

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// CommandStart is the single recognized advance command.
const CommandStart = "START"

// Client sends mode-change commands to the mission controller over HTTP.
// Every call carries its own timeout so a hung controller cannot stall
// the supervisor loop indefinitely; any error is fatal to the trial.
type Client struct {
	baseURL string
	timeout time.Duration
	http    *http.Client
}

// NewClient creates a Client for the controller at baseURL. A zero
// timeout defaults to 5 seconds.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout == 0 {
		timeout = 5 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		timeout: timeout,
		http:    &http.Client{},
	}
}

type advanceRequest struct {
	Command string `json:"command"`
}

// Advance requests the mission controller begin or advance the mission.
func (c *Client) Advance(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	body, err := json.Marshal(advanceRequest{Command: CommandStart})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/mode", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build mode request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("mode change request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("mode change rejected: %s: %s", resp.Status, msg)
	}
	return nil
}

// Ping confirms the controller endpoint is reachable. The supervisor
// calls this once before the first tick, mirroring the original design's
// wait-for-service requirement.
func (c *Client) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/healthz", nil)
	if err != nil {
		return fmt.Errorf("failed to build health request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("mission controller unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("mission controller unhealthy: %s", resp.Status)
	}
	return nil
}

// WaitReady polls Ping until it succeeds, the retry budget is exhausted,
// or the context is cancelled.
func (c *Client) WaitReady(ctx context.Context, attempts int, backoff time.Duration) error {
	var lastErr error
	for i := 0; i < attempts; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if lastErr = c.Ping(ctx); lastErr == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
	}
	return fmt.Errorf("mission controller not ready after %d attempts: %w", attempts, lastErr)
}
