// Package sam wraps the SAM.gov opportunities search API.
package sam

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/fedresearch-cli/internal/resilience"
)

// Default base URL for the SAM.gov opportunities v2 API.
const defaultBaseURL = "https://api.sam.gov/opportunities/v2/search"

const defaultPageSize = 100

// Client defines the SAM.gov operations used by the fetch path.
type Client interface {
	// Search returns one page of opportunities.
	Search(ctx context.Context, q Query) (*SearchResponse, error)

	// SearchAll pages through all results for the query, invoking fn per
	// page. Paging stops when fn returns an error or a short page arrives.
	SearchAll(ctx context.Context, q Query, fn func(page *SearchResponse) error) error
}

// Query selects opportunities.
type Query struct {
	NAICS      string
	PostedFrom time.Time
	PostedTo   time.Time
	Limit      int // page size, defaults to 100
	Offset     int
}

// SearchResponse is the response from GET /opportunities/v2/search.
type SearchResponse struct {
	TotalRecords      int           `json:"totalRecords"`
	OpportunitiesData []Opportunity `json:"opportunitiesData"`
}

// Opportunity is one notice from the opportunities API.
type Opportunity struct {
	NoticeID           string     `json:"noticeId"`
	SolicitationNumber string     `json:"solicitationNumber"`
	Title              string     `json:"title"`
	Description        string     `json:"description"`
	FullParentPathName string     `json:"fullParentPathName"`
	FullParentPathCode string     `json:"fullParentPathCode"`
	NAICSCode          string     `json:"naicsCode"`
	ClassificationCode string     `json:"classificationCode"`
	PostedDate         string     `json:"postedDate"`
	Type               string     `json:"type"`
	Award              *Award     `json:"award"`
	PointOfContact     []Contact  `json:"pointOfContact"`
	OfficeAddress      *Address   `json:"officeAddress"`
}

// Award holds award details when the notice is an award notice.
type Award struct {
	Amount  json.Number `json:"amount"`
	Date    string      `json:"date"`
	Awardee *Awardee    `json:"awardee"`
}

// Awardee identifies the winning vendor.
type Awardee struct {
	Name     string   `json:"name"`
	UEI      string   `json:"ueiSAM"`
	DUNS     string   `json:"duns"`
	Location *Address `json:"location"`
}

// Address is a SAM.gov location block.
type Address struct {
	City    string `json:"city"`
	State   string `json:"state"`
	Zip     string `json:"zip"`
	Country string `json:"countryCode"`
}

// Contact is a point of contact on a notice.
type Contact struct {
	Type     string `json:"type"`
	FullName string `json:"fullName"`
	Title    string `json:"title"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
}

// Agency returns the top-level agency name from the parent path, which
// SAM.gov encodes as "DEPT.SUBAGENCY.OFFICE".
func (o Opportunity) Agency() string {
	return o.FullParentPathName
}

// APIError is returned when SAM.gov responds with a non-2xx status.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("sam: HTTP %d: %s", e.StatusCode, e.Body)
}

// Option configures the httpClient.
type Option func(*httpClient)

// WithBaseURL overrides the default base URL.
func WithBaseURL(u string) Option {
	return func(c *httpClient) {
		c.baseURL = u
	}
}

// WithHTTPClient sets a custom *http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithRateLimit caps outgoing requests per second. SAM.gov enforces a low
// per-key quota, so the default is a conservative 1 req/s.
func WithRateLimit(perSec float64) Option {
	return func(c *httpClient) {
		c.limiter = rate.NewLimiter(rate.Limit(perSec), 1)
	}
}

// httpClient implements Client using net/http.
type httpClient struct {
	apiKey  string
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
}

// NewClient creates a new SAM.gov client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		http: &http.Client{
			Timeout: 60 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		limiter: rate.NewLimiter(rate.Limit(1), 1),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *httpClient) Search(ctx context.Context, q Query) (*SearchResponse, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "sam: rate limit wait")
	}

	limit := q.Limit
	if limit <= 0 {
		limit = defaultPageSize
	}

	params := url.Values{}
	params.Set("api_key", c.apiKey)
	params.Set("limit", strconv.Itoa(limit))
	params.Set("offset", strconv.Itoa(q.Offset))
	if q.NAICS != "" {
		params.Set("naics", q.NAICS)
	}
	if !q.PostedFrom.IsZero() {
		params.Set("postedFrom", q.PostedFrom.Format("01/02/2006"))
	}
	if !q.PostedTo.IsZero() {
		params.Set("postedTo", q.PostedTo.Format("01/02/2006"))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, eris.Wrap(err, "sam: create request")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "sam: execute request")
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "sam: read response body")
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode, Body: string(data)}
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return nil, resilience.NewTransientError(apiErr, resp.StatusCode)
		}
		return nil, apiErr
	}

	var out SearchResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, eris.Wrap(err, "sam: decode response")
	}
	return &out, nil
}

func (c *httpClient) SearchAll(ctx context.Context, q Query, fn func(page *SearchResponse) error) error {
	limit := q.Limit
	if limit <= 0 {
		limit = defaultPageSize
	}
	q.Limit = limit

	retryCfg := resilience.DefaultRetryConfig()
	retryCfg.OnRetry = resilience.RetryLogger("sam", "search")

	log := zap.L()
	for {
		page, err := resilience.DoVal(ctx, retryCfg, func(ctx context.Context) (*SearchResponse, error) {
			return c.Search(ctx, q)
		})
		if err != nil {
			return eris.Wrapf(err, "sam: search page at offset %d", q.Offset)
		}
		if len(page.OpportunitiesData) == 0 {
			return nil
		}

		log.Debug("sam: fetched page",
			zap.Int("offset", q.Offset),
			zap.Int("count", len(page.OpportunitiesData)),
			zap.Int("total", page.TotalRecords),
		)

		if err := fn(page); err != nil {
			return err
		}

		if len(page.OpportunitiesData) < limit {
			return nil
		}
		q.Offset += limit
	}
}
