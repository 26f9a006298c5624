// Package caption implements the Captioning and Tagging stages'
// external-service client (spec §4.2 stages 8-9): the image bytes a
// stage passes in are sent to a configured vision-model endpoint and the response stored
// as caption text or tag labels. Entirely optional — an empty endpoint
// disables the client, and a failed call (unreachable endpoint or a
// non-200 status) starts a cooldown during which every call fails fast
// with ErrDisabled (spec §7 ExternalDisabled).
//
// Interface style grounded on internal/service/lumen_service.go's
// LumenService (zap-logged, retrying black-box ML client), reimplemented
// against a plain HTTP endpoint instead of vendoring lumen-sdk.
package caption

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"photoindex/config"
)

// Client calls the configured vision-model endpoint for captions and
// tags, sharing one token-bucket limiter across both operations (spec
// §5: "external service stages ≤ 2 with a shared token bucket").
type Client struct {
	cfg     config.CaptionConfig
	http    *http.Client
	limiter *rate.Limiter
	log     *zap.Logger

	mu           sync.Mutex
	cooldownUntil time.Time
}

// New returns a Client for cfg. If cfg.BaseURL is empty, every call
// returns ErrDisabled immediately without making a network call.
func New(cfg config.CaptionConfig, log *zap.Logger) *Client {
	return &Client{
		cfg:     cfg,
		http:    &http.Client{Timeout: cfg.Timeout},
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1),
		log:     log,
	}
}

// ErrDisabled marks the endpoint as unconfigured or cooling down after
// a failed call (spec §7 ExternalDisabled).
var ErrDisabled = fmt.Errorf("captioning/tagging endpoint disabled")

const cooldown = 5 * time.Minute

func (c *Client) available() bool {
	if !c.cfg.Enabled() {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return time.Now().After(c.cooldownUntil)
}

func (c *Client) recordFailure() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cooldownUntil = time.Now().Add(cooldown)
}

type captionRequest struct {
	Image  []byte `json:"image"`
	Prompt string `json:"prompt"`
}

type captionResponse struct {
	Text string   `json:"text"`
	Tags []string `json:"tags"`
}

// Caption requests a caption for the given image bytes.
func (c *Client) Caption(ctx context.Context, image []byte) (string, error) {
	resp, err := c.call(ctx, "/caption", captionRequest{Image: image, Prompt: "Describe this photo."})
	if err != nil {
		return "", err
	}
	return resp.Text, nil
}

// Tags requests classification labels for the given image bytes.
func (c *Client) Tags(ctx context.Context, image []byte) ([]string, error) {
	resp, err := c.call(ctx, "/tags", captionRequest{Image: image, Prompt: "List labels for this photo."})
	if err != nil {
		return nil, err
	}
	return resp.Tags, nil
}

func (c *Client) call(ctx context.Context, path string, req captionRequest) (captionResponse, error) {
	if !c.available() {
		return captionResponse{}, ErrDisabled
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return captionResponse{}, fmt.Errorf("rate limiter: %w", err)
	}

	body, err := json.Marshal(req)
	if err != nil {
		return captionResponse{}, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return captionResponse{}, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		c.recordFailure()
		c.log.Warn("captioning endpoint unreachable, entering cooldown", zap.Error(err))
		return captionResponse{}, fmt.Errorf("call endpoint: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.recordFailure()
		return captionResponse{}, fmt.Errorf("endpoint returned status %d", resp.StatusCode)
	}

	var out captionResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return captionResponse{}, fmt.Errorf("decode response: %w", err)
	}
	return out, nil
}
