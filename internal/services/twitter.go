package services

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

	"github.com/AnshRaj112/agentdesk-backend/internal/metrics"
	"golang.org/x/oauth2"
)

// TwitterUser is the subset of /2/users/me we use.
type TwitterUser struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Username string `json:"username"`
}

// TwitterAPI is the v2 API surface used for posting.
type TwitterAPI interface {
	// PostTweet creates a tweet, replying to replyTo when non-empty, and
	// returns the new tweet id.
	PostTweet(ctx context.Context, accessToken, text, replyTo string) (string, error)
	Me(ctx context.Context, accessToken string) (*TwitterUser, error)
}

// ProviderError is a non-2xx answer from the Twitter API.
type ProviderError struct {
	Status int
	Detail string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("twitter api: status %d: %s", e.Status, e.Detail)
}

// TwitterClient calls the Twitter v2 REST API with a user access token.
type TwitterClient struct {
	baseURL    string
	httpClient *http.Client
	metrics    *metrics.Collector
}

func NewTwitterClient(baseURL string, httpClient *http.Client, m *metrics.Collector) *TwitterClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &TwitterClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		metrics:    m,
	}
}

func (c *TwitterClient) authed(ctx context.Context, accessToken string) *http.Client {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
	return oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: accessToken,
		TokenType:   "Bearer",
	}))
}

type createTweetRequest struct {
	Text  string      `json:"text"`
	Reply *tweetReply `json:"reply,omitempty"`
}

type tweetReply struct {
	InReplyToTweetID string `json:"in_reply_to_tweet_id"`
}

type createTweetResponse struct {
	Data struct {
		ID   string `json:"id"`
		Text string `json:"text"`
	} `json:"data"`
}

func (c *TwitterClient) PostTweet(ctx context.Context, accessToken, text, replyTo string) (string, error) {
	body := createTweetRequest{Text: text}
	if replyTo != "" {
		body.Reply = &tweetReply{InReplyToTweetID: replyTo}
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/2/tweets", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	var out createTweetResponse
	if err := c.do(ctx, accessToken, req, &out); err != nil {
		return "", err
	}
	if out.Data.ID == "" {
		return "", fmt.Errorf("twitter api: response without tweet id")
	}
	return out.Data.ID, nil
}

func (c *TwitterClient) Me(ctx context.Context, accessToken string) (*TwitterUser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/2/users/me", nil)
	if err != nil {
		return nil, err
	}
	var out struct {
		Data TwitterUser `json:"data"`
	}
	if err := c.do(ctx, accessToken, req, &out); err != nil {
		return nil, err
	}
	return &out.Data, nil
}

func (c *TwitterClient) do(ctx context.Context, accessToken string, req *http.Request, dest interface{}) error {
	start := time.Now()
	resp, err := c.authed(ctx, accessToken).Do(req)
	if err != nil {
		c.metrics.RecordUpstream("twitter", err, time.Since(start))
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err == nil && (resp.StatusCode < 200 || resp.StatusCode > 299) {
		err = &ProviderError{Status: resp.StatusCode, Detail: providerDetail(data)}
	}
	c.metrics.RecordUpstream("twitter", err, time.Since(start))
	if err != nil {
		return err
	}
	return json.Unmarshal(data, dest)
}

// providerDetail pulls a readable message out of a Twitter error body.
func providerDetail(body []byte) string {
	var e struct {
		Title  string `json:"title"`
		Detail string `json:"detail"`
		Errors []struct {
			Message string `json:"message"`
		} `json:"errors"`
	}
	if json.Unmarshal(body, &e) == nil {
		switch {
		case e.Detail != "":
			return e.Detail
		case len(e.Errors) > 0 && e.Errors[0].Message != "":
			return e.Errors[0].Message
		case e.Title != "":
			return e.Title
		}
	}
	return strings.TrimSpace(string(body))
}

// mapTwitterError turns a TwitterAPI failure into the typed taxonomy.
// A 401 means the access token is expired or revoked; the user is asked to
// reconnect rather than refreshed silently.
func mapTwitterError(err error, action string) error {
	var pe *ProviderError
	if !errors.As(err, &pe) {
		return Upstream("Failed to "+action, err)
	}
	switch pe.Status {
	case http.StatusUnauthorized:
		return NewError(KindNotConnected, "Twitter authentication failed. Please reconnect your Twitter account.", err)
	case http.StatusForbidden:
		return NewError(KindForbidden, "Twitter rejected the request. Check your account permissions.", err)
	case http.StatusTooManyRequests:
		return NewError(KindRateLimited, "Twitter rate limit exceeded. Please try again later.", err)
	default:
		return Upstream("Failed to "+action, err)
	}
}
