// Package api is the REST collaborator: chat metadata and message history
// pages. Transient failures are retried here, never in the session core.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/matheus3301/chatsync/internal/chat"
	"github.com/matheus3301/chatsync/internal/logging"
	"go.uber.org/zap"
)

// StatusError is returned for non-2xx responses.
type StatusError struct {
	Code int
	URL  string
	Body string
}

func (e *StatusError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("%s: HTTP %d: %s", e.URL, e.Code, e.Body)
	}
	return fmt.Sprintf("%s: HTTP %d", e.URL, e.Code)
}

// Options tunes the HTTP client.
type Options struct {
	Token        string
	RetryMax     int
	RetryWaitMin time.Duration
	RetryWaitMax time.Duration
	Timeout      time.Duration
}

// Client talks to the chat server's REST API.
type Client struct {
	base  *url.URL
	token string
	http  *retryablehttp.Client
}

// New creates a client for the API rooted at baseURL.
func New(baseURL string, opts Options, logger *zap.Logger) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("api: parse base url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("api: unsupported scheme %q", base.Scheme)
	}

	rc := retryablehttp.NewClient()
	rc.Logger = logging.Retryable(logger)
	rc.RetryMax = opts.RetryMax
	if opts.RetryWaitMin > 0 {
		rc.RetryWaitMin = opts.RetryWaitMin
	}
	if opts.RetryWaitMax > 0 {
		rc.RetryWaitMax = opts.RetryWaitMax
	}
	if opts.Timeout > 0 {
		rc.HTTPClient.Timeout = opts.Timeout
	}
	// Hand the last response back so callers see the status code.
	rc.ErrorHandler = retryablehttp.PassthroughErrorHandler

	return &Client{base: base, token: opts.Token, http: rc}, nil
}

type chatResponse struct {
	Chat chat.Details `json:"chat"`
}

// FetchChat loads chat metadata, including the member ids.
func (c *Client) FetchChat(ctx context.Context, chatID string) (chat.Details, error) {
	var res chatResponse
	if err := c.get(ctx, "/api/v1/chat/"+url.PathEscape(chatID), nil, &res); err != nil {
		return chat.Details{}, err
	}
	return res.Chat, nil
}

// FetchPage loads one page of a chat's history. Page 1 holds the newest
// messages; each page is ordered oldest to newest.
func (c *Client) FetchPage(ctx context.Context, chatID string, page int) (chat.Page, error) {
	q := url.Values{"page": {strconv.Itoa(page)}}
	var res chat.Page
	if err := c.get(ctx, "/api/v1/chat/message/"+url.PathEscape(chatID), q, &res); err != nil {
		return chat.Page{}, err
	}
	for i := range res.Messages {
		if res.Messages[i].ChatID == "" {
			res.Messages[i].ChatID = chatID
		}
	}
	return res, nil
}

func (c *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	u := *c.base
	u.Path += path
	u.RawQuery = query.Encode()

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return fmt.Errorf("api: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("api: GET %s: %w", u.Path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &StatusError{Code: resp.StatusCode, URL: u.Path, Body: strings.TrimSpace(string(body))}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("api: decode %s: %w", u.Path, err)
	}
	return nil
}
