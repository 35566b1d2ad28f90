// Package extract calls an external model service that pulls structured
// findings out of free-text complaints. The engine works without it; callers
// treat any failure here as "no extra findings".
package extract

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"
)

// Extraction is the structured result for one free-text passage.
type Extraction struct {
	Symptoms  []string       `json:"symptoms"`
	Modifiers map[string]any `json:"modifiers"`
	Idade     any            `json:"idade,omitempty"`
	Sexo      string         `json:"sexo,omitempty"`
}

// Client talks to the extraction API.
type Client struct {
	http *resty.Client
	log  zerolog.Logger
}

func NewClient(baseURL, apiKey string, logger zerolog.Logger) *Client {
	http := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(10 * time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(200 * time.Millisecond).
		SetHeader("Content-Type", "application/json")
	if apiKey != "" {
		http.SetAuthToken(apiKey)
	}
	return &Client{http: http, log: logger}
}

type extractRequest struct {
	Text string `json:"text"`
}

// Extract submits the passage and returns the structured findings.
func (c *Client) Extract(ctx context.Context, text string) (*Extraction, error) {
	var out Extraction
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(extractRequest{Text: text}).
		SetResult(&out).
		Post("/v1/extract")
	if err != nil {
		return nil, fmt.Errorf("extraction request: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("extraction request: status %d", resp.StatusCode())
	}
	c.log.Debug().Int("symptoms", len(out.Symptoms)).Msg("free-text extraction succeeded")
	return &out, nil
}
