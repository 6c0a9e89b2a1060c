// Package naver is a small client for the Naver news search API.
package naver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

const DefaultBaseURL = "https://openapi.naver.com"

const newsPath = "/v1/search/news.json"

// ErrMissingCredentials is returned when the client id or secret is empty.
var ErrMissingCredentials = errors.New("naver: client id and secret are required")

// Client calls the Naver search API with application credentials.
type Client struct {
	ClientID     string
	ClientSecret string
	BaseURL      string
	HTTP         *http.Client
}

// NewClient returns a client for the public endpoint using http.DefaultClient.
func NewClient(clientID, clientSecret string) *Client {
	return &Client{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		BaseURL:      DefaultBaseURL,
		HTTP:         http.DefaultClient,
	}
}

// Query is one news search. Zero fields use the API defaults
// (display=10, start=1, sort=sim).
type Query struct {
	Text    string
	Display int
	Start   int
	Sort    string // "sim" or "date"
}

// Result is the decoded search response.
type Result struct {
	LastBuildDate string `json:"lastBuildDate"`
	Total         int    `json:"total"`
	Start         int    `json:"start"`
	Display       int    `json:"display"`
	Items         []Item `json:"items"`
}

// Item is one article. Title and Description may contain <b> highlight markup.
type Item struct {
	Title        string `json:"title"`
	OriginalLink string `json:"originallink"`
	Link         string `json:"link"`
	Description  string `json:"description"`
	PubDate      string `json:"pubDate"`
}

// APIError is a non-200 response.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("naver: HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("naver: HTTP %d: %s (%s)", e.StatusCode, e.Message, e.Code)
}

// SearchNews runs a news search.
func (c *Client) SearchNews(ctx context.Context, q Query) (*Result, error) {
	if c.ClientID == "" || c.ClientSecret == "" {
		return nil, ErrMissingCredentials
	}
	if strings.TrimSpace(q.Text) == "" {
		return nil, fmt.Errorf("naver: empty query")
	}

	base := c.BaseURL
	if base == "" {
		base = DefaultBaseURL
	}
	params := url.Values{}
	params.Set("query", q.Text)
	if q.Display > 0 {
		params.Set("display", strconv.Itoa(q.Display))
	}
	if q.Start > 0 {
		params.Set("start", strconv.Itoa(q.Start))
	}
	if q.Sort != "" {
		params.Set("sort", q.Sort)
	}
	endpoint := strings.TrimRight(base, "/") + newsPath + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-Naver-Client-Id", c.ClientID)
	req.Header.Set("X-Naver-Client-Secret", c.ClientSecret)

	httpClient := c.HTTP
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("naver: read body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var payload struct {
			ErrorMessage string `json:"errorMessage"`
			ErrorCode    string `json:"errorCode"`
		}
		if json.Unmarshal(body, &payload) == nil {
			apiErr.Message = payload.ErrorMessage
			apiErr.Code = payload.ErrorCode
		}
		return nil, apiErr
	}

	var out Result
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("naver: decode: %w", err)
	}
	return &out, nil
}
