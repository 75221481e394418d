package tagging

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"mixsplit/internal/identification"
	"mixsplit/internal/logging"
	"mixsplit/internal/services/itunes"
)

// maxArtworkBytes bounds a single cover download.
const maxArtworkBytes = 10 << 20

var sizeTemplate = regexp.MustCompile(`\{w\}x\{h\}|\d{2,4}x\d{2,4}bb`)

// Artwork is a downloaded cover image.
type Artwork struct {
	Data   []byte
	MIME   string
	Source string
}

// SongSearcher is the subset of the iTunes client used for artwork.
type SongSearcher interface {
	SearchSong(ctx context.Context, artist, title string, limit int) ([]itunes.Song, error)
}

// Fetcher resolves and downloads cover art.
type Fetcher struct {
	HTTP       *http.Client
	ITunes     SongSearcher
	PageScrape bool
	Size       int
	Logger     *slog.Logger
}

// NewFetcher builds a fetcher. itunesClient may be nil to disable the
// catalogue fallback.
func NewFetcher(size int, timeout time.Duration, itunesClient SongSearcher, pageScrape bool, logger *slog.Logger) *Fetcher {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Fetcher{
		HTTP:       &http.Client{Timeout: timeout},
		ITunes:     itunesClient,
		PageScrape: pageScrape,
		Size:       size,
		Logger:     logging.NewComponentLogger(logger, "artwork"),
	}
}

// Fetch returns cover art for md, or nil when none could be found. Lookup
// problems are logged and never returned as errors.
func (f *Fetcher) Fetch(ctx context.Context, md identification.Metadata) *Artwork {
	if f == nil || !md.Complete() {
		return nil
	}
	if url := f.sized(md.ArtworkURL); url != "" {
		art, err := f.download(ctx, url)
		if err == nil {
			return art
		}
		f.Logger.Debug("provider artwork unavailable", logging.String("url", url), logging.Error(err))
	}
	if f.ITunes == nil {
		return nil
	}
	songs, err := f.ITunes.SearchSong(ctx, md.Artist, md.Title, 5)
	if err != nil {
		f.Logger.Debug("itunes artwork search failed", logging.Error(err))
		return nil
	}
	for _, song := range songs {
		if identification.Similarity(song.ArtistName, md.Artist) < identification.DefaultMinAgreement {
			continue
		}
		if url := song.ArtworkURL(f.Size); url != "" {
			if art, err := f.download(ctx, url); err == nil {
				return art
			}
		}
		if f.PageScrape && song.TrackViewURL != "" {
			if image, err := f.ScrapeImage(ctx, song.TrackViewURL); err == nil {
				if art, err := f.download(ctx, f.sized(image)); err == nil {
					return art
				}
			}
		}
	}
	return nil
}

// Enrich fills empty album, year and genre fields from the iTunes catalogue.
func (f *Fetcher) Enrich(ctx context.Context, md identification.Metadata) identification.Metadata {
	if f == nil || f.ITunes == nil || !md.Complete() {
		return md
	}
	if md.Album != "" && md.Year != "" && md.Genre != "" {
		return md
	}
	songs, err := f.ITunes.SearchSong(ctx, md.Artist, md.Title, 5)
	if err != nil {
		return md
	}
	for _, song := range songs {
		if identification.Similarity(song.ArtistName, md.Artist) < identification.DefaultMinAgreement ||
			identification.Similarity(song.TrackName, md.Title) < identification.DefaultMinAgreement {
			continue
		}
		return md.Merge(identification.Metadata{
			Album:      song.CollectionName,
			Year:       song.Year(),
			Genre:      song.PrimaryGenreName,
			ArtworkURL: song.ArtworkURL(f.Size),
		})
	}
	return md
}

// ScrapeImage returns the og:image (or twitter:image) URL of an HTML page.
func (f *Fetcher) ScrapeImage(ctx context.Context, pageURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	resp, err := f.HTTP.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch page: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("page returned %d", resp.StatusCode)
	}
	doc, err := goquery.NewDocumentFromReader(io.LimitReader(resp.Body, maxArtworkBytes))
	if err != nil {
		return "", fmt.Errorf("parse page: %w", err)
	}
	for _, selector := range []string{`meta[property="og:image"]`, `meta[name="twitter:image"]`} {
		if content := strings.TrimSpace(doc.Find(selector).First().AttrOr("content", "")); content != "" {
			return content, nil
		}
	}
	return "", errors.New("page has no image metadata")
}

func (f *Fetcher) download(ctx context.Context, url string) (*Artwork, error) {
	if url == "" {
		return nil, errors.New("empty artwork url")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	resp, err := f.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download artwork: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("artwork returned %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxArtworkBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read artwork: %w", err)
	}
	if len(data) > maxArtworkBytes {
		return nil, errors.New("artwork exceeds size limit")
	}
	mimeType := imageMIME(data, resp.Header.Get("Content-Type"))
	if mimeType == "" {
		return nil, errors.New("artwork is not an image")
	}
	return &Artwork{Data: data, MIME: mimeType, Source: url}, nil
}

func (f *Fetcher) sized(url string) string {
	if url == "" || f.Size <= 0 {
		return url
	}
	dim := strconv.Itoa(f.Size)
	return sizeTemplate.ReplaceAllStringFunc(url, func(match string) string {
		if strings.HasSuffix(match, "bb") {
			return dim + "x" + dim + "bb"
		}
		return dim + "x" + dim
	})
}

func imageMIME(data []byte, header string) string {
	if detected := http.DetectContentType(data); strings.HasPrefix(detected, "image/") {
		return detected
	}
	if mediaType, _, err := mime.ParseMediaType(header); err == nil && strings.HasPrefix(mediaType, "image/") {
		return mediaType
	}
	return ""
}
