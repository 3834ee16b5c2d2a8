// Package slack wraps the subset of the Slack Web API the sync and
// analytics engines consume. All calls pass through a single FIFO rate gate
// and a bounded 429 retry loop; history responses are metadata-only
// projections.
package slack

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/pulsedesk/slack-sync/internal/metrics"
	"github.com/pulsedesk/slack-sync/pkg/config"
)

// Client is a rate-limited, retrying wrapper around the Slack Web API.
type Client struct {
	baseURL    string
	token      string
	maxRetries int
	pageSize   int
	httpClient *http.Client
	gate       *gate
	logger     *zap.Logger
}

// NewClient creates a new Slack Web API client. A missing bot token is a
// configuration error and fails immediately, before any network call.
func NewClient(cfg *config.SlackConfig, logger *zap.Logger) (*Client, error) {
	if cfg.BotToken == "" {
		return nil, fmt.Errorf("slack bot token is not configured")
	}

	interval := cfg.MinRequestInterval
	if interval <= 0 {
		interval = 1200 * time.Millisecond
	}
	pageSize := cfg.HistoryPageSize
	if pageSize <= 0 {
		pageSize = 200
	}
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		token:      cfg.BotToken,
		maxRetries: cfg.MaxRetries,
		pageSize:   pageSize,
		httpClient: &http.Client{Timeout: timeout},
		gate:       newGate(interval),
		logger:     logger,
	}, nil
}

// AuthTest verifies the configured token against auth.test.
func (c *Client) AuthTest(ctx context.Context) (*AuthIdentity, error) {
	var resp authTestResponse
	if err := c.call(ctx, "auth.test", url.Values{}, &resp); err != nil {
		return nil, err
	}
	return &resp.AuthIdentity, nil
}

// ListUsers returns all workspace users, following pagination cursors until
// the upstream reports no more pages.
func (c *Client) ListUsers(ctx context.Context) ([]User, error) {
	var users []User
	cursor := ""
	for {
		params := url.Values{"limit": {strconv.Itoa(c.pageSize)}}
		if cursor != "" {
			params.Set("cursor", cursor)
		}
		var resp usersListResponse
		if err := c.call(ctx, "users.list", params, &resp); err != nil {
			return nil, err
		}
		users = append(users, resp.Members...)
		cursor = resp.nextCursor()
		if cursor == "" {
			return users, nil
		}
	}
}

// ListChannels returns all public and private channels visible to the bot,
// following pagination cursors until exhausted.
func (c *Client) ListChannels(ctx context.Context) ([]Channel, error) {
	var channels []Channel
	cursor := ""
	for {
		params := url.Values{
			"limit": {strconv.Itoa(c.pageSize)},
			"types": {"public_channel,private_channel"},
		}
		if cursor != "" {
			params.Set("cursor", cursor)
		}
		var resp conversationsListResponse
		if err := c.call(ctx, "conversations.list", params, &resp); err != nil {
			return nil, err
		}
		channels = append(channels, resp.Channels...)
		cursor = resp.nextCursor()
		if cursor == "" {
			return channels, nil
		}
	}
}

// GetChannelHistoryPage fetches one page of conversation history. The caller
// drives pagination so it can bound per-invocation work.
func (c *Client) GetChannelHistoryPage(ctx context.Context, channelID string, opts HistoryOptions) (*HistoryPage, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = c.pageSize
	}
	params := url.Values{
		"channel": {channelID},
		"limit":   {strconv.Itoa(limit)},
	}
	if opts.Oldest != "" {
		params.Set("oldest", opts.Oldest)
	}
	if opts.Latest != "" {
		params.Set("latest", opts.Latest)
	}
	if opts.Cursor != "" {
		params.Set("cursor", opts.Cursor)
	}

	var resp conversationsHistoryResponse
	if err := c.call(ctx, "conversations.history", params, &resp); err != nil {
		return nil, err
	}
	return &HistoryPage{
		Messages:   resp.Messages,
		HasMore:    resp.HasMore,
		NextCursor: resp.nextCursor(),
	}, nil
}

// GetChannelMembers returns the user ids of all channel members.
func (c *Client) GetChannelMembers(ctx context.Context, channelID string) ([]string, error) {
	var members []string
	cursor := ""
	for {
		params := url.Values{
			"channel": {channelID},
			"limit":   {strconv.Itoa(c.pageSize)},
		}
		if cursor != "" {
			params.Set("cursor", cursor)
		}
		var resp conversationsMembersResponse
		if err := c.call(ctx, "conversations.members", params, &resp); err != nil {
			return nil, err
		}
		members = append(members, resp.Members...)
		cursor = resp.nextCursor()
		if cursor == "" {
			return members, nil
		}
	}
}

// JoinChannel joins a public channel as the bot user.
func (c *Client) JoinChannel(ctx context.Context, channelID string) error {
	params := url.Values{"channel": {channelID}}
	var resp conversationsJoinResponse
	return c.call(ctx, "conversations.join", params, &resp)
}

// PostMessage posts a message and returns its timestamp.
func (c *Client) PostMessage(ctx context.Context, channelID, text string) (string, error) {
	params := url.Values{
		"channel": {channelID},
		"text":    {text},
	}
	var resp chatPostMessageResponse
	if err := c.call(ctx, "chat.postMessage", params, &resp); err != nil {
		return "", err
	}
	return resp.Ts, nil
}

// GetPermalink resolves a permalink for a message.
func (c *Client) GetPermalink(ctx context.Context, channelID, messageTs string) (string, error) {
	params := url.Values{
		"channel":    {channelID},
		"message_ts": {messageTs},
	}
	var resp chatGetPermalinkResponse
	if err := c.call(ctx, "chat.getPermalink", params, &resp); err != nil {
		return "", err
	}
	return resp.Permalink, nil
}

// call performs one Web API method call through the rate gate, retrying
// transient failures (429 and 5xx) up to the configured bound. 429 delays
// honor the server's Retry-After hint when present, otherwise an
// exponential backoff seeded from the gate interval.
func (c *Client) call(ctx context.Context, method string, params url.Values, out apiResponse) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.gate.interval
	bo.MaxElapsedTime = 0
	bo.Reset()

	for attempt := 0; ; attempt++ {
		if err := c.gate.wait(ctx); err != nil {
			return fmt.Errorf("slack api %s canceled: %w", method, err)
		}

		status, retryAfter, err := c.do(ctx, method, params, out)
		if err != nil {
			metrics.SlackAPICalls.WithLabelValues(method, "error").Inc()
			return err
		}

		switch {
		case status == http.StatusTooManyRequests || status >= 500:
			if attempt >= c.maxRetries {
				metrics.SlackAPICalls.WithLabelValues(method, "error").Inc()
				return &APIError{Method: method, Code: fmt.Sprintf("retries_exhausted_http_%d", status)}
			}
			delay := retryAfter
			if delay <= 0 {
				delay = bo.NextBackOff()
			}
			metrics.SlackAPIRetries.WithLabelValues(method).Inc()
			c.logger.Warn("Slack API transient failure, backing off",
				zap.String("method", method),
				zap.Int("status", status),
				zap.Duration("delay", delay),
				zap.Int("attempt", attempt+1))
			if err := sleep(ctx, delay); err != nil {
				return fmt.Errorf("slack api %s canceled: %w", method, err)
			}
			continue

		case status < 200 || status >= 300:
			metrics.SlackAPICalls.WithLabelValues(method, "error").Inc()
			return &APIError{Method: method, Code: fmt.Sprintf("http_%d", status)}

		case !out.apiOK():
			metrics.SlackAPICalls.WithLabelValues(method, "error").Inc()
			return &APIError{Method: method, Code: out.apiError()}
		}

		metrics.SlackAPICalls.WithLabelValues(method, "ok").Inc()
		return nil
	}
}

// do performs the HTTP exchange and decodes the body on 2xx.
func (c *Client) do(ctx context.Context, method string, params url.Values, out any) (int, time.Duration, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/"+method, strings.NewReader(params.Encode()))
	if err != nil {
		return 0, 0, fmt.Errorf("failed to build %s request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, 0, fmt.Errorf("slack api %s request failed: %w", method, err)
	}
	defer resp.Body.Close()

	var retryAfter time.Duration
	if ra := resp.Header.Get("Retry-After"); ra != "" {
		if secs, parseErr := strconv.Atoi(ra); parseErr == nil && secs > 0 {
			retryAfter = time.Duration(secs) * time.Second
		}
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, 0, fmt.Errorf("failed to decode %s response: %w", method, err)
		}
	}
	return resp.StatusCode, retryAfter, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
