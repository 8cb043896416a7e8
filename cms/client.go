// Package cms is a client for a Prismic-style headless content API.
//
// It resolves the master ref, runs predicate queries against the
// documents/search endpoint, fetches documents by UID and follows the
// opaque next_page cursors the API hands out.
package cms

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

	"github.com/rs/zerolog"

	"github.com/eringen/spacetraveling/paginate"
)

// maxBodySize bounds every API response read into memory.
const maxBodySize = 8 << 20

// Client talks to one content repository.
type Client struct {
	endpoint    *url.URL
	accessToken string
	httpClient  *http.Client
	logger      zerolog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the HTTP client used for every request.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithLogger sets the logger for request tracing. Clients log nothing
// without it.
func WithLogger(l zerolog.Logger) Option {
	return func(c *Client) {
		c.logger = l
	}
}

// New returns a client for the API rooted at endpoint,
// e.g. https://my-repo.cdn.prismic.io/api/v2.
func New(endpoint, accessToken string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(endpoint, "/"))
	if err != nil {
		return nil, fmt.Errorf("cms: parse endpoint: %w", err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("cms: endpoint %q must be an absolute http(s) URL", endpoint)
	}
	c := &Client{
		endpoint:    u,
		accessToken: accessToken,
		httpClient:  &http.Client{Timeout: 15 * time.Second},
		logger:      zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Endpoint returns the API root URL.
func (c *Client) Endpoint() string {
	return c.endpoint.String()
}

// Document is a raw content document. Data holds the type-specific fields.
type Document struct {
	ID                   string          `json:"id"`
	UID                  string          `json:"uid"`
	Type                 string          `json:"type"`
	Tags                 []string        `json:"tags"`
	Lang                 string          `json:"lang"`
	FirstPublicationDate string          `json:"first_publication_date"`
	LastPublicationDate  string          `json:"last_publication_date"`
	Data                 json.RawMessage `json:"data"`
}

// SearchResponse is one page of a documents/search query.
type SearchResponse struct {
	Page             int        `json:"page"`
	ResultsPerPage   int        `json:"results_per_page"`
	ResultsSize      int        `json:"results_size"`
	TotalResultsSize int        `json:"total_results_size"`
	TotalPages       int        `json:"total_pages"`
	NextPage         string     `json:"next_page"`
	PrevPage         string     `json:"prev_page"`
	Results          []Document `json:"results"`
}

// QueryOptions narrow a query. Zero values use the API defaults.
type QueryOptions struct {
	Fetch     []string
	PageSize  int
	Orderings string
	Lang      string // document language, e.g. "pt-br"; empty means the master locale
}

type apiInfo struct {
	Refs []struct {
		ID          string `json:"id"`
		Ref         string `json:"ref"`
		Label       string `json:"label"`
		IsMasterRef bool   `json:"isMasterRef"`
	} `json:"refs"`
}

// Ref returns the master ref, which pins queries to the published content.
func (c *Client) Ref(ctx context.Context) (string, error) {
	var info apiInfo
	if err := c.getJSON(ctx, c.withToken(c.endpoint.String(), nil), &info); err != nil {
		return "", fmt.Errorf("cms: resolve ref: %w", err)
	}
	for _, r := range info.Refs {
		if r.IsMasterRef {
			return r.Ref, nil
		}
	}
	return "", fmt.Errorf("cms: resolve ref: no master ref")
}

// Query runs the predicates against documents/search and returns the first
// requested page.
func (c *Client) Query(ctx context.Context, predicates []Predicate, opts QueryOptions) (SearchResponse, error) {
	ref, err := c.Ref(ctx)
	if err != nil {
		return SearchResponse{}, err
	}

	q := url.Values{}
	q.Set("ref", ref)
	if len(predicates) > 0 {
		q.Set("q", joinPredicates(predicates))
	}
	if len(opts.Fetch) > 0 {
		q.Set("fetch", strings.Join(opts.Fetch, ","))
	}
	if opts.PageSize > 0 {
		q.Set("pageSize", strconv.Itoa(opts.PageSize))
	}
	if opts.Orderings != "" {
		q.Set("orderings", opts.Orderings)
	}
	if opts.Lang != "" {
		q.Set("lang", opts.Lang)
	}

	var resp SearchResponse
	if err := c.getJSON(ctx, c.withToken(c.endpoint.String()+"/documents/search", q), &resp); err != nil {
		return SearchResponse{}, fmt.Errorf("cms: query: %w", err)
	}
	resp.NextPage = stripToken(resp.NextPage)
	resp.PrevPage = stripToken(resp.PrevPage)
	return resp, nil
}

// GetByUID returns the document of docType with the given UID, or a
// *NotFoundError. Only opts.Lang applies; one result is requested.
func (c *Client) GetByUID(ctx context.Context, docType, uid string, opts QueryOptions) (Document, error) {
	resp, err := c.Query(ctx, []Predicate{At("my."+docType+".uid", uid)}, QueryOptions{PageSize: 1, Lang: opts.Lang})
	if err != nil {
		return Document{}, err
	}
	if len(resp.Results) == 0 {
		return Document{}, &NotFoundError{Type: docType, UID: uid}
	}
	return resp.Results[0], nil
}

// FetchPage follows a next_page cursor. Cursors handed out by this client
// carry no access token; it is added back only for cursors on this API's
// host. A cursor that already has a token is requested as is.
//
// The next cursor of the returned page has its token stripped, so cursors
// can be embedded in public HTML.
func (c *Client) FetchPage(ctx context.Context, cursor string) (paginate.Page, error) {
	var page paginate.Page
	if err := c.getJSON(ctx, c.authorizeCursor(cursor), &page); err != nil {
		return paginate.Page{}, fmt.Errorf("cms: fetch page: %w", err)
	}
	page.NextPage = stripToken(page.NextPage)
	return page, nil
}

// OwnsCursor reports whether cursor is an absolute URL on this API's
// scheme and host. Cursors that come back from browsers must pass this
// check before they are fetched.
func (c *Client) OwnsCursor(cursor string) bool {
	u, err := url.Parse(cursor)
	if err != nil || !u.IsAbs() || u.User != nil {
		return false
	}
	return strings.EqualFold(u.Scheme, c.endpoint.Scheme) && strings.EqualFold(u.Host, c.endpoint.Host)
}

func (c *Client) authorizeCursor(cursor string) string {
	if c.accessToken == "" || !c.OwnsCursor(cursor) {
		return cursor
	}
	u, err := url.Parse(cursor)
	if err != nil || u.Query().Has("access_token") {
		return cursor
	}
	token := "access_token=" + url.QueryEscape(c.accessToken)
	if u.RawQuery == "" {
		u.RawQuery = token
	} else {
		u.RawQuery += "&" + token
	}
	return u.String()
}

// stripToken removes the access_token parameter from a cursor and keeps
// the other parameters in order.
func stripToken(cursor string) string {
	if cursor == "" {
		return ""
	}
	u, err := url.Parse(cursor)
	if err != nil || !u.Query().Has("access_token") {
		return cursor
	}
	params := strings.Split(u.RawQuery, "&")
	kept := params[:0]
	for _, p := range params {
		if key, _, _ := strings.Cut(p, "="); key != "access_token" {
			kept = append(kept, p)
		}
	}
	u.RawQuery = strings.Join(kept, "&")
	return u.String()
}

func (c *Client) withToken(base string, q url.Values) string {
	if q == nil {
		q = url.Values{}
	}
	if c.accessToken != "" {
		q.Set("access_token", c.accessToken)
	}
	if len(q) == 0 {
		return base
	}
	return base + "?" + q.Encode()
}

func (c *Client) getJSON(ctx context.Context, rawURL string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	c.logger.Debug().
		Str("url", redactToken(rawURL)).
		Int("status", resp.StatusCode).
		Dur("latency", time.Since(start)).
		Msg("cms request")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodySize))
		return &StatusError{Code: resp.StatusCode, URL: redactToken(rawURL)}
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodySize)).Decode(v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func redactToken(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	q := u.Query()
	if q.Has("access_token") {
		q.Set("access_token", "REDACTED")
		u.RawQuery = q.Encode()
	}
	return u.String()
}
