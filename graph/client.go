// Package graph is a thin Microsoft Graph mail client. It covers the
// calls the ingestion pipeline needs: folder listing, paged message
// fetches, immutable-ID translation and attachment downloads.
package graph

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/oauth2/clientcredentials"

	"mailbridge/utils"
)

const defaultBaseURL = "https://graph.microsoft.com/v1.0"

// Config identifies the Azure AD application and target mailbox.
type Config struct {
	TenantID     string
	ClientID     string
	ClientSecret string
	// UserID selects the mailbox. Empty means the delegated /me mailbox.
	UserID string
	// BaseURL overrides the Graph endpoint, used by tests.
	BaseURL string
}

// Client talks to the Graph mail API for one mailbox.
type Client struct {
	http     *http.Client
	baseURL  string
	userPath string
	log      *log.Entry
}

// NewClient builds a client authenticating with the client-credentials
// flow. The returned http.Client refreshes tokens transparently.
func NewClient(ctx context.Context, cfg Config, logger *log.Entry) *Client {
	cc := clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     fmt.Sprintf("https://login.microsoftonline.com/%s/oauth2/v2.0/token", cfg.TenantID),
		Scopes:       []string{"https://graph.microsoft.com/.default"},
	}
	return newClient(cc.Client(ctx), cfg, logger)
}

// NewClientWithHTTP builds a client over a caller-supplied http.Client,
// used by tests against a local server.
func NewClientWithHTTP(httpClient *http.Client, cfg Config, logger *log.Entry) *Client {
	return newClient(httpClient, cfg, logger)
}

func newClient(httpClient *http.Client, cfg Config, logger *log.Entry) *Client {
	if httpClient.Timeout == 0 {
		httpClient.Timeout = 60 * time.Second
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	userPath := "/me"
	if cfg.UserID != "" {
		userPath = "/users/" + url.PathEscape(cfg.UserID)
	}
	if logger == nil {
		logger = log.NewEntry(log.StandardLogger())
	}
	return &Client{
		http:     httpClient,
		baseURL:  strings.TrimSuffix(baseURL, "/"),
		userPath: userPath,
		log:      logger,
	}
}

// MessageQuery is the single parameter set for message listing calls.
type MessageQuery struct {
	Top    int
	Skip   int
	Select []string
	Expand []string
	Filter string
	// Count asks Graph for the folder's total message count. Only the
	// first page of a collection run sets it.
	Count bool
}

func (q MessageQuery) values() url.Values {
	v := url.Values{}
	if q.Top > 0 {
		v.Set("$top", strconv.Itoa(q.Top))
	}
	if q.Skip > 0 {
		v.Set("$skip", strconv.Itoa(q.Skip))
	}
	if len(q.Select) > 0 {
		v.Set("$select", strings.Join(q.Select, ","))
	}
	if len(q.Expand) > 0 {
		v.Set("$expand", strings.Join(q.Expand, ","))
	}
	if q.Filter != "" {
		v.Set("$filter", q.Filter)
	}
	if q.Count {
		v.Set("$count", "true")
	}
	return v
}

// get issues a GET and decodes the JSON response into out. Responses
// with an error status become API errors carrying the upstream code.
func (c *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	return c.do(ctx, http.MethodGet, path, query, nil, out)
}

// post issues a POST with a JSON body.
func (c *Client) post(ctx context.Context, path string, body, out any) error {
	return c.do(ctx, http.MethodPost, path, nil, body, out)
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request body: %w", err)
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("calling graph: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return c.apiError(resp)
	}
	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return utils.NewGraphResponseError(fmt.Sprintf("decoding %s response: %v", path, err))
	}
	return nil
}

// getRaw issues a GET and returns the body bytes, used for $value
// attachment content.
func (c *Client) getRaw(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling graph: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusBadRequest {
		return nil, c.apiError(resp)
	}
	return io.ReadAll(resp.Body)
}

type graphErrorBody struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (c *Client) apiError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var body graphErrorBody
	msg := strings.TrimSpace(string(raw))
	if err := json.Unmarshal(raw, &body); err == nil && body.Error.Message != "" {
		msg = body.Error.Code + ": " + body.Error.Message
	}
	c.log.WithFields(log.Fields{
		"status": resp.StatusCode,
		"url":    resp.Request.URL.Path,
	}).Warn("graph API error")
	return utils.NewAPIError(resp.StatusCode, msg, nil)
}
