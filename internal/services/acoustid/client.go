package acoustid

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// DefaultBaseURL is the public AcoustID API root.
const DefaultBaseURL = "https://api.acoustid.org/v2"

// MinScore is the lowest lookup score accepted as a match.
const MinScore = 0.5

const coverArtBase = "https://coverartarchive.org/release-group/"

// Fingerprint is a Chromaprint fingerprint with the duration it covers.
type Fingerprint struct {
	Duration    float64 `json:"duration"`
	Fingerprint string  `json:"fingerprint"`
}

// Result is an accepted AcoustID match resolved to a MusicBrainz recording.
type Result struct {
	RecordingID    string
	ReleaseGroupID string
	Title          string
	Artist         string
	Album          string
	Score          float64
}

// ArtworkURL returns the Cover Art Archive front image for the release group.
func (r Result) ArtworkURL(size int) string {
	if r.ReleaseGroupID == "" {
		return ""
	}
	switch {
	case size <= 250:
		return coverArtBase + r.ReleaseGroupID + "/front-250"
	case size <= 500:
		return coverArtBase + r.ReleaseGroupID + "/front-500"
	default:
		return coverArtBase + r.ReleaseGroupID + "/front-1200"
	}
}

// Client fingerprints files and queries AcoustID.
type Client struct {
	apiKey     string
	baseURL    string
	fpcalc     string
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

// New creates an AcoustID client.
func New(apiKey, baseURL, fpcalcBinary string, opts ...Option) (*Client, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("acoustid api key required")
	}
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	fpcalcBinary = strings.TrimSpace(fpcalcBinary)
	if fpcalcBinary == "" {
		fpcalcBinary = "fpcalc"
	}
	client := &Client{
		apiKey:     apiKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
		fpcalc:     fpcalcBinary,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// Fingerprint runs fpcalc against path.
func (c *Client) Fingerprint(ctx context.Context, path string) (Fingerprint, error) {
	cmd := exec.CommandContext(ctx, c.fpcalc, "-json", path) //nolint:gosec
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return Fingerprint{}, fmt.Errorf("fpcalc: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	var fp Fingerprint
	if err := json.Unmarshal(stdout.Bytes(), &fp); err != nil {
		return Fingerprint{}, fmt.Errorf("parse fpcalc output: %w", err)
	}
	if fp.Fingerprint == "" {
		return Fingerprint{}, errors.New("fpcalc returned empty fingerprint")
	}
	return fp, nil
}

// Lookup queries AcoustID and returns the best accepted match, or nil when
// no candidate reaches MinScore.
func (c *Client) Lookup(ctx context.Context, fp Fingerprint) (*Result, error) {
	params := url.Values{}
	params.Set("client", c.apiKey)
	params.Set("meta", "recordings releasegroups")
	params.Set("duration", strconv.Itoa(int(math.Round(fp.Duration))))
	params.Set("fingerprint", fp.Fingerprint)
	endpoint := c.baseURL + "/lookup?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
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

	var payload lookupResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("acoustid lookup returned %d (latency=%v)", resp.StatusCode, latency)
		}
		return nil, fmt.Errorf("decode acoustid response: %w", err)
	}
	if payload.Status != "ok" {
		return nil, fmt.Errorf("acoustid lookup error %d: %s", payload.Error.Code, payload.Error.Message)
	}
	return payload.best(), nil
}

// Identify fingerprints path and looks it up.
func (c *Client) Identify(ctx context.Context, path string) (*Result, error) {
	fp, err := c.Fingerprint(ctx, path)
	if err != nil {
		return nil, err
	}
	return c.Lookup(ctx, fp)
}

type lookupResponse struct {
	Status string `json:"status"`
	Error  struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
	Results []struct {
		ID         string      `json:"id"`
		Score      float64     `json:"score"`
		Recordings []recording `json:"recordings"`
	} `json:"results"`
}

type recording struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Artists []struct {
		Name       string `json:"name"`
		JoinPhrase string `json:"joinphrase"`
	} `json:"artists"`
	ReleaseGroups []releaseGroup `json:"releasegroups"`
}

type releaseGroup struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Type  string `json:"type"`
}

func (r lookupResponse) best() *Result {
	var best *Result
	for _, candidate := range r.Results {
		if candidate.Score < MinScore {
			continue
		}
		for _, rec := range candidate.Recordings {
			if strings.TrimSpace(rec.Title) == "" || len(rec.Artists) == 0 {
				continue
			}
			if best != nil && candidate.Score <= best.Score {
				continue
			}
			result := &Result{
				RecordingID: rec.ID,
				Title:       strings.TrimSpace(rec.Title),
				Artist:      joinArtists(rec),
				Score:       candidate.Score,
			}
			if group := preferredGroup(rec); group.ID != "" {
				result.ReleaseGroupID = group.ID
				result.Album = strings.TrimSpace(group.Title)
			}
			best = result
		}
	}
	return best
}

func joinArtists(rec recording) string {
	var builder strings.Builder
	for _, artist := range rec.Artists {
		builder.WriteString(artist.Name)
		builder.WriteString(artist.JoinPhrase)
	}
	return strings.TrimSpace(builder.String())
}

func preferredGroup(rec recording) releaseGroup {
	for _, candidate := range rec.ReleaseGroups {
		if strings.EqualFold(candidate.Type, "Album") {
			return candidate
		}
	}
	if len(rec.ReleaseGroups) > 0 {
		return rec.ReleaseGroups[0]
	}
	return releaseGroup{}
}
