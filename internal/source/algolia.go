package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	algoliaSourceName = "algolia"
	// DefaultAlgoliaBase is the public Hacker News search API.
	DefaultAlgoliaBase = "https://hn.algolia.com/api/v1"
	DefaultUserAgent   = "Mozilla/5.0 (compatible; hnpager/1.0; +https://github.com/ppiankov/hnpager)"
	searchTimeout      = 30 * time.Second
)

var errMalformed = errors.New("malformed search response")

// AlgoliaSearcher queries the Hacker News Algolia index ordered by date.
type AlgoliaSearcher struct {
	baseURL string
	client  *http.Client
}

// NewAlgolia creates an Algolia searcher. An empty baseURL uses DefaultAlgoliaBase.
func NewAlgolia(baseURL string, timeout time.Duration) *AlgoliaSearcher {
	if baseURL == "" {
		baseURL = DefaultAlgoliaBase
	}
	if timeout <= 0 {
		timeout = searchTimeout
	}
	return &AlgoliaSearcher{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  newHTTPClient(timeout, DefaultUserAgent),
	}
}

func (a *AlgoliaSearcher) Name() string {
	return algoliaSourceName
}

// algoliaHit mirrors one search hit. Pointers distinguish absent fields.
type algoliaHit struct {
	Title     *string `json:"title"`
	URL       *string `json:"url"`
	ObjectID  *string `json:"objectID"`
	Author    *string `json:"author"`
	CreatedAt *int64  `json:"created_at_i"`
}

type algoliaResponse struct {
	Hits *[]algoliaHit `json:"hits"`
}

// searchURL builds the story query for keyword created after lowerBound.
func (a *AlgoliaSearcher) searchURL(keyword string, lowerBound int64) string {
	q := url.Values{}
	q.Set("tags", "story")
	q.Set("query", keyword)
	q.Set("numericFilters", "created_at_i>"+strconv.FormatInt(lowerBound, 10))
	return a.baseURL + "/search_by_date?" + q.Encode()
}

func (a *AlgoliaSearcher) Search(ctx context.Context, keyword string, lowerBound int64) ([]Match, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.searchURL(keyword, lowerBound), nil)
	if err != nil {
		return nil, fmt.Errorf("algolia: build request: %w", err)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("algolia: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("algolia: HTTP %d", resp.StatusCode)
	}

	var body algoliaResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("algolia: decode: %w", err)
	}
	return parseHits(body)
}

// parseHits converts the response into matches. Any hit missing a required
// field rejects the whole response.
func parseHits(body algoliaResponse) ([]Match, error) {
	if body.Hits == nil {
		return nil, fmt.Errorf("algolia: %w: no hits field", errMalformed)
	}

	matches := make([]Match, 0, len(*body.Hits))
	for i, h := range *body.Hits {
		m, err := h.toMatch()
		if err != nil {
			return nil, fmt.Errorf("algolia: hit %d: %w", i, err)
		}
		matches = append(matches, m)
	}
	return matches, nil
}

func (h algoliaHit) toMatch() (Match, error) {
	switch {
	case h.Title == nil:
		return Match{}, fmt.Errorf("%w: missing title", errMalformed)
	case h.ObjectID == nil || *h.ObjectID == "":
		return Match{}, fmt.Errorf("%w: missing objectID", errMalformed)
	case h.Author == nil:
		return Match{}, fmt.Errorf("%w: missing author", errMalformed)
	case h.CreatedAt == nil:
		return Match{}, fmt.Errorf("%w: missing created_at_i", errMalformed)
	}

	m := Match{
		ID:        *h.ObjectID,
		Title:     *h.Title,
		Author:    *h.Author,
		CreatedAt: time.Unix(*h.CreatedAt, 0),
	}
	if h.URL != nil {
		m.ExternalURL = strings.TrimSpace(*h.URL)
	}
	return m, nil
}
