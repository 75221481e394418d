package itunes

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

// DefaultBaseURL is the public iTunes Search API root.
const DefaultBaseURL = "https://itunes.apple.com"

// Song is a single song search result.
type Song struct {
	ArtistName       string `json:"artistName"`
	TrackName        string `json:"trackName"`
	CollectionName   string `json:"collectionName"`
	ArtworkURL100    string `json:"artworkUrl100"`
	ReleaseDate      string `json:"releaseDate"`
	PrimaryGenreName string `json:"primaryGenreName"`
	TrackViewURL     string `json:"trackViewUrl"`
}

// Year returns the four-digit release year, if any.
func (s Song) Year() string {
	if len(s.ReleaseDate) >= 4 {
		return s.ReleaseDate[:4]
	}
	return ""
}

// ArtworkURL rewrites the 100px thumbnail URL to the requested square size.
func (s Song) ArtworkURL(size int) string {
	if s.ArtworkURL100 == "" {
		return ""
	}
	if size <= 0 {
		return s.ArtworkURL100
	}
	dim := strconv.Itoa(size)
	return strings.Replace(s.ArtworkURL100, "100x100bb", dim+"x"+dim+"bb", 1)
}

// Client searches the iTunes catalogue.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// New creates an iTunes search client.
func New(baseURL string, opts ...Option) *Client {
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	client := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

// SearchSong returns up to limit songs matching artist and title.
func (c *Client) SearchSong(ctx context.Context, artist, title string, limit int) ([]Song, error) {
	term := strings.TrimSpace(strings.TrimSpace(artist) + " " + strings.TrimSpace(title))
	if term == "" {
		return nil, errors.New("query must not be empty")
	}
	if limit <= 0 {
		limit = 5
	}
	params := url.Values{}
	params.Set("term", term)
	params.Set("media", "music")
	params.Set("entity", "song")
	params.Set("limit", strconv.Itoa(limit))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/search?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	requestStart := time.Now()
	resp, err := c.httpClient.Do(req)
	latency := time.Since(requestStart)
	if err != nil {
		return nil, fmt.Errorf("execute request (latency=%v): %w", latency, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("itunes search returned %d (latency=%v)", resp.StatusCode, latency)
	}

	var payload struct {
		ResultCount int    `json:"resultCount"`
		Results     []Song `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode itunes response: %w", err)
	}
	return payload.Results, nil
}
