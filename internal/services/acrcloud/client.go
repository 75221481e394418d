package acrcloud

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha1" //nolint:gosec // ACRCloud signature scheme
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const (
	identifyPath     = "/v1/identify"
	dataType         = "audio"
	signatureVersion = "1"

	codeSuccess       = 0
	codeNoResult      = 1001
	codeNoFingerprint = 2004
	codeLimitExceeded = 3003
	codeQPSLimit      = 3015
)

// ErrQuota is returned when ACRCloud rejects a request for rate or quota reasons.
var ErrQuota = errors.New("acrcloud quota exceeded")

// Result is the best music match returned by ACRCloud.
type Result struct {
	Title       string
	Artist      string
	Artists     []string
	Album       string
	ReleaseDate string
	Genre       string
	Label       string
	ISRC        string
	Score       float64
	PlayOffset  time.Duration
}

// Client calls the ACRCloud identify endpoint.
type Client struct {
	host         string
	accessKey    string
	accessSecret string
	httpClient   *http.Client
	now          func() time.Time
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

// WithClock overrides the timestamp source used for signatures.
func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		if now != nil {
			c.now = now
		}
	}
}

// New creates an ACRCloud client. host may be a bare hostname or a full base URL.
func New(host, accessKey, accessSecret string, opts ...Option) (*Client, error) {
	host = strings.TrimSpace(host)
	if host == "" {
		return nil, errors.New("acrcloud host required")
	}
	accessKey = strings.TrimSpace(accessKey)
	accessSecret = strings.TrimSpace(accessSecret)
	if accessKey == "" || accessSecret == "" {
		return nil, errors.New("acrcloud access key and secret required")
	}
	if !strings.Contains(host, "://") {
		host = "https://" + host
	}
	client := &Client{
		host:         strings.TrimRight(host, "/"),
		accessKey:    accessKey,
		accessSecret: accessSecret,
		httpClient:   &http.Client{Timeout: 15 * time.Second},
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// Sign computes the request signature for the given timestamp.
func Sign(accessKey, accessSecret, timestamp string) string {
	canonical := strings.Join([]string{http.MethodPost, identifyPath, accessKey, dataType, signatureVersion, timestamp}, "\n")
	mac := hmac.New(sha1.New, []byte(accessSecret))
	mac.Write([]byte(canonical))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// Identify uploads sample and returns the best match, or nil when ACRCloud
// reports no result.
func (c *Client) Identify(ctx context.Context, sample []byte) (*Result, error) {
	if len(sample) == 0 {
		return nil, errors.New("acrcloud identify: empty sample")
	}
	timestamp := strconv.FormatInt(c.now().Unix(), 10)

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	fields := [][2]string{
		{"access_key", c.accessKey},
		{"sample_bytes", strconv.Itoa(len(sample))},
		{"timestamp", timestamp},
		{"signature", Sign(c.accessKey, c.accessSecret, timestamp)},
		{"data_type", dataType},
		{"signature_version", signatureVersion},
	}
	for _, field := range fields {
		if err := writer.WriteField(field[0], field[1]); err != nil {
			return nil, fmt.Errorf("write form field: %w", err)
		}
	}
	part, err := writer.CreateFormFile("sample", "sample.wav")
	if err != nil {
		return nil, fmt.Errorf("create sample part: %w", err)
	}
	if _, err := part.Write(sample); err != nil {
		return nil, fmt.Errorf("write sample part: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("close multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.host+identifyPath, &body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	requestStart := time.Now()
	resp, err := c.httpClient.Do(req)
	latency := time.Since(requestStart)
	if err != nil {
		return nil, fmt.Errorf("execute request (latency=%v): %w", latency, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("acrcloud identify returned %d (latency=%v)", resp.StatusCode, latency)
	}

	var payload response
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode acrcloud response: %w", err)
	}
	return payload.result()
}

type response struct {
	Status struct {
		Code int    `json:"code"`
		Msg  string `json:"msg"`
	} `json:"status"`
	Metadata struct {
		Music []music `json:"music"`
	} `json:"metadata"`
}

type music struct {
	Title   string `json:"title"`
	Artists []struct {
		Name string `json:"name"`
	} `json:"artists"`
	Album struct {
		Name string `json:"name"`
	} `json:"album"`
	ReleaseDate string `json:"release_date"`
	Label       string `json:"label"`
	Genres      []struct {
		Name string `json:"name"`
	} `json:"genres"`
	ExternalIDs struct {
		ISRC string `json:"isrc"`
	} `json:"external_ids"`
	Score            float64 `json:"score"`
	PlayOffsetMillis int64   `json:"play_offset_ms"`
}

func (r response) result() (*Result, error) {
	switch r.Status.Code {
	case codeSuccess:
	case codeNoResult, codeNoFingerprint:
		return nil, nil
	case codeLimitExceeded, codeQPSLimit:
		return nil, fmt.Errorf("%w: %s (code %d)", ErrQuota, r.Status.Msg, r.Status.Code)
	default:
		return nil, fmt.Errorf("acrcloud status %d: %s", r.Status.Code, r.Status.Msg)
	}
	if len(r.Metadata.Music) == 0 {
		return nil, nil
	}
	best := r.Metadata.Music[0]
	for _, candidate := range r.Metadata.Music[1:] {
		if candidate.Score > best.Score {
			best = candidate
		}
	}
	result := &Result{
		Title:       strings.TrimSpace(best.Title),
		Album:       strings.TrimSpace(best.Album.Name),
		ReleaseDate: strings.TrimSpace(best.ReleaseDate),
		Label:       strings.TrimSpace(best.Label),
		ISRC:        strings.TrimSpace(best.ExternalIDs.ISRC),
		Score:       best.Score,
		PlayOffset:  time.Duration(best.PlayOffsetMillis) * time.Millisecond,
	}
	for _, artist := range best.Artists {
		if name := strings.TrimSpace(artist.Name); name != "" {
			result.Artists = append(result.Artists, name)
		}
	}
	if len(result.Artists) > 0 {
		result.Artist = result.Artists[0]
	}
	if len(best.Genres) > 0 {
		result.Genre = strings.TrimSpace(best.Genres[0].Name)
	}
	if result.Title == "" || result.Artist == "" {
		return nil, nil
	}
	return result, nil
}
