package registry

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/rehttp"

	"github.com/franz/camo/internal/util"
)

const (
	// BaseURL is the Contentful Content Management API base URL
	BaseURL = "https://api.contentful.com"

	// UserAgent identifies this application to Contentful
	UserAgent = "camo/1.0.0 (https://github.com/franz/camo)"

	// MediaType is the CMA request content type
	MediaType = "application/vnd.contentful.management.v1+json"

	// maxRetries bounds retried requests on throttling and transient failures
	maxRetries = 3
)

// Config configures a Contentful ledger client
type Config struct {
	AccessToken     string
	SpaceID         string
	EnvironmentID   string
	ContentTypeID   string
	ContentTypeName string

	// BaseURL overrides the API endpoint, mostly for tests
	BaseURL string

	// Location formats apply times; defaults to time.Local
	Location *time.Location

	// Transport is wrapped with retries; defaults to http.DefaultTransport
	Transport http.RoundTripper
}

// Client is a Ledger backed by a Contentful content type
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
	space      string
	env        string
	typeID     string
	typeName   string
	loc        *time.Location
	locale     string
}

// APIError is a non-2xx response from the CMA
type APIError struct {
	StatusCode int
	ID         string // sys.id of the error, e.g. "NotFound"
	Message    string
}

func (e *APIError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("contentful API error %d (%s): %s", e.StatusCode, e.ID, e.Message)
	}
	return fmt.Sprintf("contentful API error %d: %s", e.StatusCode, e.Message)
}

// NewClient creates a Contentful ledger client. It does not touch the network;
// call Connect before reading or writing entries.
func NewClient(cfg Config) (*Client, error) {
	if cfg.AccessToken == "" {
		return nil, fmt.Errorf("%w: a management access token is required", util.ErrInvalidConfig)
	}
	if cfg.SpaceID == "" {
		return nil, fmt.Errorf("%w: a space id is required", util.ErrInvalidConfig)
	}

	c := &Client{
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		token:    cfg.AccessToken,
		space:    cfg.SpaceID,
		env:      cfg.EnvironmentID,
		typeID:   cfg.ContentTypeID,
		typeName: cfg.ContentTypeName,
		loc:      cfg.Location,
	}
	if c.baseURL == "" {
		c.baseURL = BaseURL
	}
	if c.env == "" {
		c.env = DefaultEnvironmentID
	}
	if c.typeID == "" {
		c.typeID = DefaultContentTypeID
	}
	if c.typeName == "" {
		c.typeName = DefaultContentTypeName
	}
	if c.loc == nil {
		c.loc = time.Local
	}

	base := cfg.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	c.httpClient = &http.Client{
		Timeout:   30 * time.Second,
		Transport: newRetryTransport(base),
	}

	return c, nil
}

// newRetryTransport retries throttled requests of any method, and transient
// failures of reads only. Entry creation is not idempotent.
func newRetryTransport(base http.RoundTripper) http.RoundTripper {
	return rehttp.NewTransport(
		base,
		rehttp.RetryAll(
			rehttp.RetryMaxRetries(maxRetries),
			rehttp.RetryAny(
				rehttp.RetryStatuses(http.StatusTooManyRequests),
				rehttp.RetryAll(
					rehttp.RetryHTTPMethods(http.MethodGet),
					rehttp.RetryAny(
						rehttp.RetryStatuses(http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout),
						rehttp.RetryTemporaryErr(),
					),
				),
			),
		),
		rehttp.ExpJitterDelay(500*time.Millisecond, 10*time.Second),
	)
}

// Locale returns the default locale found by Connect
func (c *Client) Locale() string {
	return c.locale
}

// ContentTypeID returns the id of the migration content type
func (c *Client) ContentTypeID() string {
	return c.typeID
}

type locale struct {
	Code    string `json:"code"`
	Default bool   `json:"default"`
}

// Connect looks up the environment's default locale, which every field
// read and write goes through
func (c *Client) Connect(ctx context.Context) error {
	var result struct {
		Items []locale `json:"items"`
	}
	if err := c.do(ctx, http.MethodGet, c.envPath("locales"), nil, nil, &result); err != nil {
		return fmt.Errorf("failed to fetch locales: %w", err)
	}

	for _, l := range result.Items {
		if l.Default {
			c.locale = l.Code
			util.DebugLog("Contentful: default locale is %s", c.locale)
			return nil
		}
	}
	return ErrNoDefaultLocale
}

// CheckContentType confirms the migration content type exists
func (c *Client) CheckContentType(ctx context.Context) error {
	err := c.do(ctx, http.MethodGet, c.envPath("content_types", c.typeID), nil, nil, nil)

	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%w: %s", ErrContentTypeNotFound, c.typeID)
	}
	return err
}

type sysVersion struct {
	Sys struct {
		Version int `json:"version"`
	} `json:"sys"`
}

// contentTypeBody is the migration content type: a unique, validated name
// and the migration source
func (c *Client) contentTypeBody() map[string]any {
	return map[string]any{
		"name":         c.typeName,
		"description":  "Records the migrations applied to this environment",
		"displayField": "name",
		"fields": []map[string]any{
			{
				"id":       "name",
				"name":     "Name",
				"type":     "Symbol",
				"required": true,
				"validations": []map[string]any{
					{"regexp": map[string]any{"pattern": NamePattern}},
					{"unique": true},
				},
			},
			{
				"id":       "content",
				"name":     "Content",
				"type":     "Text",
				"required": true,
			},
		},
	}
}

// CreateContentType creates, publishes and annotates the migration
// content type
func (c *Client) CreateContentType(ctx context.Context) error {
	path := c.envPath("content_types", c.typeID)

	// Create
	var created sysVersion
	if err := c.do(ctx, http.MethodPut, path, nil, c.contentTypeBody(), &created); err != nil {
		return fmt.Errorf("failed to create content type %s: %w", c.typeID, err)
	}

	// Publish
	headers := map[string]string{"X-Contentful-Version": strconv.Itoa(created.Sys.Version)}
	if err := c.do(ctx, http.MethodPut, path+"/published", headers, nil, nil); err != nil {
		return fmt.Errorf("failed to publish content type %s: %w", c.typeID, err)
	}

	// Help texts
	var editor sysVersion
	if err := c.do(ctx, http.MethodGet, path+"/editor_interface", nil, nil, &editor); err != nil {
		return fmt.Errorf("failed to fetch editor interface: %w", err)
	}
	controls := map[string]any{
		"controls": []map[string]any{
			{
				"fieldId":  "name",
				"widgetId": "singleLine",
				"settings": map[string]any{"helpText": "The migration filename"},
			},
			{
				"fieldId":  "content",
				"widgetId": "multipleLine",
				"settings": map[string]any{"helpText": "The migration source as it was applied"},
			},
		},
	}
	headers = map[string]string{"X-Contentful-Version": strconv.Itoa(editor.Sys.Version)}
	if err := c.do(ctx, http.MethodPut, path+"/editor_interface", headers, controls, nil); err != nil {
		return fmt.Errorf("failed to update editor interface: %w", err)
	}

	util.DebugLog("Contentful: created content type %s (%s)", c.typeID, c.typeName)
	return nil
}

type entryItem struct {
	Sys struct {
		ID        string `json:"id"`
		CreatedAt string `json:"createdAt"`
	} `json:"sys"`
	Fields map[string]map[string]string `json:"fields"`
}

// Entries fetches every registered migration, oldest first
func (c *Client) Entries(ctx context.Context) ([]Entry, error) {
	if c.locale == "" {
		return nil, ErrNotConnected
	}

	query := url.Values{}
	query.Set("content_type", c.typeID)
	query.Set("order", "sys.createdAt")
	query.Set("limit", strconv.Itoa(MaxEntries))

	var result struct {
		Total int         `json:"total"`
		Items []entryItem `json:"items"`
	}
	if err := c.do(ctx, http.MethodGet, c.envPath("entries")+"?"+query.Encode(), nil, nil, &result); err != nil {
		return nil, fmt.Errorf("failed to fetch registered migrations: %w", err)
	}
	if err := CheckTotal(result.Total); err != nil {
		return nil, err
	}

	entries := make([]Entry, 0, len(result.Items))
	for _, item := range result.Items {
		e := Entry{
			Name:      item.Fields["name"][c.locale],
			Content:   item.Fields["content"][c.locale],
			AppliedAt: item.Sys.CreatedAt,
		}
		if e.Name == "" {
			util.DebugLog("Contentful: entry %s has no name in %s, skipping", item.Sys.ID, c.locale)
			continue
		}
		if t, err := ParseAppliedAt(e.AppliedAt); err == nil {
			e.CreatedAt = t.In(c.loc)
		} else {
			util.WarnLog("Contentful: %v", err)
		}
		entries = append(entries, e)
	}

	util.DebugLog("Contentful: %d registered migrations", len(entries))
	return entries, nil
}

// Register creates an entry recording that a migration was applied
func (c *Client) Register(ctx context.Context, name, content string) error {
	if c.locale == "" {
		return ErrNotConnected
	}

	body := map[string]any{
		"fields": map[string]any{
			"name":    map[string]string{c.locale: name},
			"content": map[string]string{c.locale: content},
		},
	}
	headers := map[string]string{"X-Contentful-Content-Type": c.typeID}
	if err := c.do(ctx, http.MethodPost, c.envPath("entries"), headers, body, nil); err != nil {
		return fmt.Errorf("failed to register %s: %w", name, err)
	}

	util.DebugLog("Contentful: registered %s", name)
	return nil
}

func (c *Client) envPath(parts ...string) string {
	segments := []string{"spaces", url.PathEscape(c.space), "environments", url.PathEscape(c.env)}
	for _, p := range parts {
		segments = append(segments, url.PathEscape(p))
	}
	return "/" + strings.Join(segments, "/")
}

// do sends a CMA request and decodes the response into out, if given
func (c *Client) do(ctx context.Context, method, path string, headers map[string]string, in, out any) error {
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	util.DebugLog("Contentful API: %s %s", method, path)

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("User-Agent", UserAgent)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", MediaType)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(resp.Body)
		return decodeAPIError(resp.StatusCode, raw)
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func decodeAPIError(status int, raw []byte) error {
	apiErr := &APIError{StatusCode: status}

	var payload struct {
		Sys struct {
			ID string `json:"id"`
		} `json:"sys"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &payload); err == nil {
		apiErr.ID = payload.Sys.ID
		apiErr.Message = payload.Message
	}
	if apiErr.Message == "" {
		apiErr.Message = strings.TrimSpace(string(raw))
	}
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(status)
	}
	return apiErr
}
