package catalog

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
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/singleflight"

	"github.com/MrSnakeDoc/watchlist/internal/domain"
	"github.com/MrSnakeDoc/watchlist/internal/logger"
)

// PageSize is the number of results the catalog returns per search page.
const PageSize = 10

// SearchPage is one page of search results.
type SearchPage struct {
	Query  string         `json:"query"`
	Page   int            `json:"page"`
	Movies []domain.Movie `json:"movies"`
	// Total is the number of matches the catalog reports for the query.
	Total int `json:"total"`
}

// Pages returns how many pages the catalog holds for the query.
func (p SearchPage) Pages() int {
	if p.Total <= 0 {
		return 0
	}
	return (p.Total + PageSize - 1) / PageSize
}

// PageCache stores raw search pages. Implemented by the redis store.
type PageCache interface {
	CacheSearchPage(ctx context.Context, query string, page int, data []byte, ttl time.Duration) error
	GetCachedSearchPage(ctx context.Context, query string, page int) ([]byte, error)
}

// Options configures a Client.
type Options struct {
	BaseURL         string
	APIKey          string
	Timeout         time.Duration
	DetailCacheSize int
	DetailCacheTTL  time.Duration
	PageCache       PageCache     // optional
	PageCacheTTL    time.Duration // 0 disables the page cache
	HTTPClient      *http.Client  // optional, overrides Timeout
}

// Client is a thin wrapper around an OMDb-compatible search and detail API.
// It keeps no session state; the detail cache only avoids repeated lookups.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	timeout    time.Duration
	details    *expirable.LRU[string, domain.MovieDetail]
	group      singleflight.Group
	pages      PageCache
	pageTTL    time.Duration
	logger     logger.Logger
}

// NewClient creates a catalog client.
func NewClient(opts Options, log logger.Logger) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}
	size := opts.DetailCacheSize
	if size <= 0 {
		size = 256
	}

	return &Client{
		baseURL:    opts.BaseURL,
		apiKey:     opts.APIKey,
		httpClient: httpClient,
		timeout:    timeout,
		details:    expirable.NewLRU[string, domain.MovieDetail](size, nil, opts.DetailCacheTTL),
		pages:      opts.PageCache,
		pageTTL:    opts.PageCacheTTL,
		logger:     log,
	}
}

// searchResponse is the payload of ?s= requests.
type searchResponse struct {
	Search []struct {
		Title  string `json:"Title"`
		Year   string `json:"Year"`
		IMDbID string `json:"imdbID"`
		Type   string `json:"Type"`
		Poster string `json:"Poster"`
	} `json:"Search"`
	TotalResults string `json:"totalResults"`
	Response     string `json:"Response"`
	Error        string `json:"Error"`
}

// detailResponse is the payload of ?i= requests.
type detailResponse struct {
	Title      string `json:"Title"`
	Year       string `json:"Year"`
	Rated      string `json:"Rated"`
	Runtime    string `json:"Runtime"`
	Genre      string `json:"Genre"`
	Director   string `json:"Director"`
	Actors     string `json:"Actors"`
	Plot       string `json:"Plot"`
	Poster     string `json:"Poster"`
	IMDbRating string `json:"imdbRating"`
	IMDbID     string `json:"imdbID"`
	Type       string `json:"Type"`
	Response   string `json:"Response"`
	Error      string `json:"Error"`
}

// notFoundErrors are remote answers that mean "no match" rather than failure.
var notFoundErrors = []string{
	"movie not found!",
	"series not found!",
	"episode not found!",
	"incorrect imdb id.",
}

func isNotFound(msg string) bool {
	msg = strings.ToLower(strings.TrimSpace(msg))
	for _, nf := range notFoundErrors {
		if msg == nf {
			return true
		}
	}
	return false
}

// Search requests one page of results for a free-text query.
// Zero matches returns an empty page and no error.
func (c *Client) Search(ctx context.Context, query string, page int) (SearchPage, error) {
	query = strings.TrimSpace(query)
	if page < 1 {
		page = 1
	}
	result := SearchPage{Query: query, Page: page, Movies: []domain.Movie{}}
	if query == "" {
		return result, nil
	}

	if cached, ok := c.cachedPage(ctx, query, page); ok {
		return cached, nil
	}

	params := url.Values{}
	params.Set("s", query)
	params.Set("page", strconv.Itoa(page))

	var resp searchResponse
	if err := c.get(ctx, "search", params, &resp); err != nil {
		return SearchPage{}, err
	}

	if !strings.EqualFold(resp.Response, "True") {
		if isNotFound(resp.Error) {
			c.logger.Debug("catalog search has no results",
				logger.String("query", query),
				logger.Int("page", page))
			return result, nil
		}
		return SearchPage{}, &domain.FetchError{Op: "search", Err: errors.New(resp.Error)}
	}

	result.Total, _ = strconv.Atoi(resp.TotalResults)
	for _, item := range resp.Search {
		result.Movies = append(result.Movies, domain.Movie{
			Key:    strings.TrimSpace(item.IMDbID),
			Title:  item.Title,
			Year:   item.Year,
			Poster: domain.NormalizeField(item.Poster),
			Type:   item.Type,
		})
	}

	c.storePage(ctx, result)
	return result, nil
}

// Detail requests the descriptive fields for one catalog key.
// Concurrent lookups of the same key share one request. The shared request
// is bounded by the client timeout only, so a caller giving up does not fail
// the others.
func (c *Client) Detail(ctx context.Context, key string) (domain.MovieDetail, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return domain.MovieDetail{}, domain.ErrNotFound
	}
	if d, ok := c.details.Get(key); ok {
		return d, nil
	}

	ch := c.group.DoChan(key, func() (interface{}, error) {
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
		defer cancel()
		return c.fetchDetail(fctx, key)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return domain.MovieDetail{}, res.Err
		}
		return res.Val.(domain.MovieDetail), nil
	case <-ctx.Done():
		return domain.MovieDetail{}, ctx.Err()
	}
}

func (c *Client) fetchDetail(ctx context.Context, key string) (domain.MovieDetail, error) {
	params := url.Values{}
	params.Set("i", key)
	params.Set("plot", "full")

	var resp detailResponse
	if err := c.get(ctx, "detail", params, &resp); err != nil {
		return domain.MovieDetail{}, err
	}
	if !strings.EqualFold(resp.Response, "True") {
		if isNotFound(resp.Error) {
			return domain.MovieDetail{}, domain.ErrNotFound
		}
		return domain.MovieDetail{}, &domain.FetchError{Op: "detail", Err: errors.New(resp.Error)}
	}

	detail := domain.MovieDetail{
		Movie: domain.Movie{
			Key:    resp.IMDbID,
			Title:  resp.Title,
			Year:   resp.Year,
			Poster: domain.NormalizeField(resp.Poster),
			Type:   resp.Type,
		},
		Genre:    domain.NormalizeField(resp.Genre),
		Director: domain.NormalizeField(resp.Director),
		Actors:   domain.NormalizeField(resp.Actors),
		Plot:     domain.NormalizeField(resp.Plot),
		Runtime:  domain.NormalizeField(resp.Runtime),
		Rated:    domain.NormalizeField(resp.Rated),
		Rating:   domain.NormalizeField(resp.IMDbRating),
	}
	if detail.Key == "" {
		detail.Key = key
	}

	c.details.Add(key, detail)
	return detail, nil
}

// get performs one API call and decodes the JSON body into target.
func (c *Client) get(ctx context.Context, op string, params url.Values, target interface{}) error {
	params.Set("apikey", c.apiKey)
	endpoint := c.baseURL
	if strings.Contains(endpoint, "?") {
		endpoint += "&" + params.Encode()
	} else {
		endpoint += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, http.NoBody)
	if err != nil {
		return &domain.FetchError{Op: op, Err: fmt.Errorf("failed to create request: %w", err)}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &domain.FetchError{Op: op, Err: err}
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return &domain.FetchError{Op: op, StatusCode: resp.StatusCode, Err: errors.New(http.StatusText(resp.StatusCode))}
	}

	if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
		return &domain.FetchError{Op: op, Err: fmt.Errorf("failed to decode response: %w", err)}
	}
	return nil
}

func (c *Client) cachedPage(ctx context.Context, query string, page int) (SearchPage, bool) {
	if c.pages == nil || c.pageTTL <= 0 {
		return SearchPage{}, false
	}
	data, err := c.pages.GetCachedSearchPage(ctx, query, page)
	if err != nil {
		c.logger.Debug("search page cache read failed", logger.Error(err))
		return SearchPage{}, false
	}
	if data == nil {
		return SearchPage{}, false
	}
	var cached SearchPage
	if err := json.Unmarshal(data, &cached); err != nil {
		return SearchPage{}, false
	}
	return cached, true
}

// storePage caches a non-empty page (best effort).
func (c *Client) storePage(ctx context.Context, page SearchPage) {
	if c.pages == nil || c.pageTTL <= 0 || len(page.Movies) == 0 {
		return
	}
	data, err := json.Marshal(page)
	if err != nil {
		return
	}
	if err := c.pages.CacheSearchPage(ctx, page.Query, page.Page, data, c.pageTTL); err != nil {
		c.logger.Debug("search page cache write failed", logger.Error(err))
	}
}
