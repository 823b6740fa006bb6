package meowstatus

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"
)

const defaultFeedTimeout = 10 * time.Second

// FeedConfig configures the HTTP client for the status backend.
type FeedConfig struct {
	// BaseURL 状态后端地址，例如 https://m.ratf.cn。
	BaseURL string
	// QuoteURL 一言接口地址，与状态后端不同源。
	QuoteURL string
	// Token 写操作使用的共享凭证，通过 x-token 头透传。
	Token string
	// HTTPClient 可注入自定义 client；nil 时使用带超时的默认 client。
	HTTPClient *http.Client
}

// FeedClient talks to the status backend. All methods are plain
// request/response calls; retry policy belongs to the callers' cooldowns.
type FeedClient struct {
	baseURL    string
	quoteURL   string
	token      string
	httpClient *http.Client
}

// NewFeedClient validates the endpoint and builds a client.
func NewFeedClient(cfg FeedConfig) (*FeedClient, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, errors.New("feed base url is required")
	}
	if _, err := url.Parse(base); err != nil {
		return nil, errors.Wrap(err, "parse feed base url failed")
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultFeedTimeout}
	}
	return &FeedClient{
		baseURL:    base,
		quoteURL:   strings.TrimSpace(cfg.QuoteURL),
		token:      strings.TrimSpace(cfg.Token),
		httpClient: httpClient,
	}, nil
}

// PushHeartbeat posts one presence report. No response body is consumed.
func (c *FeedClient) PushHeartbeat(ctx context.Context, hb Heartbeat) error {
	return c.postJSON(ctx, c.baseURL+"/heartbeat", hb, nil)
}

// FetchStatus returns the device records. Any non-array payload is an error so
// the caller treats it like a failed fetch.
func (c *FeedClient) FetchStatus(ctx context.Context) ([]DeviceStatusRecord, error) {
	var records []DeviceStatusRecord
	if err := c.getJSON(ctx, c.baseURL+"/status", &records); err != nil {
		return nil, errors.Wrap(err, "fetch status failed")
	}
	if records == nil {
		return nil, errors.New("status payload is not a list")
	}
	return records, nil
}

// FetchSchedule returns the ordered schedule entries.
func (c *FeedClient) FetchSchedule(ctx context.Context) ([]ScheduleItem, error) {
	var items []ScheduleItem
	if err := c.getJSON(ctx, c.baseURL+"/schedule", &items); err != nil {
		return nil, errors.Wrap(err, "fetch schedule failed")
	}
	if items == nil {
		return nil, errors.New("schedule payload is not a list")
	}
	return items, nil
}

// FetchBlog returns the ordered blog post summaries.
func (c *FeedClient) FetchBlog(ctx context.Context) ([]BlogPostSummary, error) {
	var posts []BlogPostSummary
	if err := c.getJSON(ctx, c.baseURL+"/blog", &posts); err != nil {
		return nil, errors.Wrap(err, "fetch blog failed")
	}
	if posts == nil {
		return nil, errors.New("blog payload is not a list")
	}
	return posts, nil
}

// FetchBlogPost returns one post with its paragraphs.
func (c *FeedClient) FetchBlogPost(ctx context.Context, slug string) (BlogPost, error) {
	var post BlogPost
	slug = strings.TrimSpace(slug)
	if slug == "" {
		return post, errors.New("blog slug is required")
	}
	err := c.getJSON(ctx, c.baseURL+"/blog/"+url.PathEscape(slug), &post)
	return post, errors.Wrap(err, "fetch blog post failed")
}

// FetchQuote hits the quote endpoint; it lives on its own origin.
func (c *FeedClient) FetchQuote(ctx context.Context) (Quote, error) {
	var quote Quote
	if c.quoteURL == "" {
		return quote, errors.New("quote url is not configured")
	}
	err := c.getJSON(ctx, c.quoteURL, &quote)
	return quote, errors.Wrap(err, "fetch quote failed")
}

// FetchVisitorStats returns aggregate visit counts; absent fields decode to zero.
func (c *FeedClient) FetchVisitorStats(ctx context.Context) (VisitorStats, error) {
	var stats VisitorStats
	err := c.getJSON(ctx, c.baseURL+"/visitor", &stats)
	return stats, errors.Wrap(err, "fetch visitor stats failed")
}

// RecordVisit registers one visit for the opaque visitor identity.
func (c *FeedClient) RecordVisit(ctx context.Context, visitorID string) error {
	visitorID = strings.TrimSpace(visitorID)
	if visitorID == "" {
		return errors.New("visitor id is required")
	}
	payload := map[string]string{"visitor_id": visitorID}
	return c.postJSON(ctx, c.baseURL+"/visitor/visit", payload, nil)
}

func (c *FeedClient) getJSON(ctx context.Context, rawURL string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return errors.Wrap(err, "build request failed")
	}
	return c.do(req, out)
}

func (c *FeedClient) postJSON(ctx context.Context, rawURL string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return errors.Wrap(err, "encode payload failed")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, rawURL, bytes.NewReader(body))
	if err != nil {
		return errors.Wrap(err, "build request failed")
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("x-token", c.token)
	}
	return c.do(req, out)
}

func (c *FeedClient) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Wrap(err, "request failed")
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// Drain so the connection can be reused.
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("unexpected status %d from %s", resp.StatusCode, req.URL.Path)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrap(err, "decode payload failed")
	}
	return nil
}
