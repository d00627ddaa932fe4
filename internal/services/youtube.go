package services

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"html"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/AnshRaj112/agentdesk-backend/internal/metrics"
	"github.com/PuerkitoBio/goquery"
	"github.com/microcosm-cc/bluemonday"
)

const (
	youtubeWatchBaseURL = "https://www.youtube.com"
	youtubeAPIBaseURL   = "https://www.googleapis.com"
	maxWatchPageBytes   = 4 << 20
	maxTrackBytes       = 2 << 20
)

var videoIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{11}$`)

// ErrNoTranscript is returned when a video has no caption track.
var ErrNoTranscript = &Error{Kind: KindNotFound, Message: "No transcript found for this video"}

// ParseVideoID extracts the 11-character id from a watch, short, embed or
// youtu.be URL.
func ParseVideoID(rawURL string) (string, error) {
	invalid := Validation("Invalid YouTube URL")

	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || u.Host == "" {
		return "", invalid
	}
	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	host = strings.TrimPrefix(host, "m.")

	var id string
	switch host {
	case "youtu.be":
		id = strings.SplitN(strings.TrimPrefix(u.Path, "/"), "/", 2)[0]
	case "youtube.com", "music.youtube.com":
		switch {
		case u.Query().Get("v") != "":
			id = u.Query().Get("v")
		case strings.HasPrefix(u.Path, "/shorts/"):
			id = strings.SplitN(strings.TrimPrefix(u.Path, "/shorts/"), "/", 2)[0]
		case strings.HasPrefix(u.Path, "/embed/"):
			id = strings.SplitN(strings.TrimPrefix(u.Path, "/embed/"), "/", 2)[0]
		}
	}

	if !ValidVideoID(id) {
		return "", invalid
	}
	return id, nil
}

// ValidVideoID reports whether id has the shape of a YouTube video id.
func ValidVideoID(id string) bool {
	return videoIDPattern.MatchString(id)
}

// TranscriptFetcher returns the plain-text transcript of a video.
type TranscriptFetcher interface {
	FetchTranscript(ctx context.Context, videoID string) (string, error)
}

// VideoMetadata returns the title of a video.
type VideoMetadata interface {
	VideoTitle(ctx context.Context, videoID string) (string, error)
}

// YouTubeClient scrapes caption tracks from the watch page and reads titles
// from the Data API (or the page's og:title when no API key is configured).
type YouTubeClient struct {
	watchBaseURL string
	apiBaseURL   string
	apiKey       string
	client       *http.Client
	// trackClient fetches caption URLs taken from third-party HTML and
	// refuses private and loopback destinations.
	trackClient *http.Client
	stripper    *bluemonday.Policy
	metrics     *metrics.Collector
}

func NewYouTubeClient(apiKey string, client, trackClient *http.Client, m *metrics.Collector) *YouTubeClient {
	return &YouTubeClient{
		watchBaseURL: youtubeWatchBaseURL,
		apiBaseURL:   youtubeAPIBaseURL,
		apiKey:       apiKey,
		client:       client,
		trackClient:  trackClient,
		stripper:     bluemonday.StrictPolicy(),
		metrics:      m,
	}
}

// WithBaseURLs points the client at alternative hosts.
func (c *YouTubeClient) WithBaseURLs(watchBaseURL, apiBaseURL string) *YouTubeClient {
	c.watchBaseURL = strings.TrimRight(watchBaseURL, "/")
	c.apiBaseURL = strings.TrimRight(apiBaseURL, "/")
	return c
}

type captionTrack struct {
	BaseURL      string `json:"baseUrl"`
	LanguageCode string `json:"languageCode"`
	Kind         string `json:"kind"`
}

type timedText struct {
	Texts []struct {
		Body string `xml:",chardata"`
	} `xml:"text"`
}

func (c *YouTubeClient) FetchTranscript(ctx context.Context, videoID string) (string, error) {
	start := time.Now()
	text, err := c.fetchTranscript(ctx, videoID)
	if !errors.Is(err, ErrNoTranscript) {
		c.metrics.RecordUpstream("youtube_transcript", err, time.Since(start))
	}
	return text, err
}

func (c *YouTubeClient) fetchTranscript(ctx context.Context, videoID string) (string, error) {
	page, err := c.watchPage(ctx, videoID)
	if err != nil {
		return "", err
	}

	tracks, err := captionTracks(page)
	if err != nil {
		return "", err
	}
	track, ok := pickTrack(tracks)
	if !ok {
		return "", ErrNoTranscript
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, track.BaseURL, nil)
	if err != nil {
		return "", err
	}
	resp, err := c.trackClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("caption track: status %d", resp.StatusCode)
	}

	var tt timedText
	if err := xml.NewDecoder(io.LimitReader(resp.Body, maxTrackBytes)).Decode(&tt); err != nil {
		return "", fmt.Errorf("caption track: %w", err)
	}

	parts := make([]string, 0, len(tt.Texts))
	for _, t := range tt.Texts {
		line := html.UnescapeString(c.stripper.Sanitize(html.UnescapeString(t.Body)))
		line = strings.Join(strings.Fields(line), " ")
		if line != "" {
			parts = append(parts, line)
		}
	}
	if len(parts) == 0 {
		return "", ErrNoTranscript
	}
	return strings.Join(parts, " "), nil
}

func (c *YouTubeClient) watchPage(ctx context.Context, videoID string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.watchBaseURL+"/watch?v="+url.QueryEscape(videoID), nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("watch page: status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxWatchPageBytes))
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// captionTracks finds the "captionTracks" JSON array embedded in the page.
func captionTracks(page string) ([]captionTrack, error) {
	const marker = `"captionTracks":`
	idx := strings.Index(page, marker)
	if idx == -1 {
		return nil, nil
	}
	raw, ok := extractJSONArray(page[idx+len(marker):])
	if !ok {
		return nil, nil
	}
	var tracks []captionTrack
	if err := json.Unmarshal([]byte(raw), &tracks); err != nil {
		return nil, fmt.Errorf("caption tracks: %w", err)
	}
	return tracks, nil
}

// extractJSONArray returns the balanced JSON array at the start of s.
func extractJSONArray(s string) (string, bool) {
	if !strings.HasPrefix(s, "[") {
		return "", false
	}
	depth := 0
	inString := false
	escaped := false
	for i := 0; i < len(s); i++ {
		ch := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case '[', '{':
			depth++
		case ']', '}':
			depth--
			if depth == 0 {
				return s[:i+1], true
			}
		}
	}
	return "", false
}

// pickTrack prefers manual English captions, then generated English, then
// whatever comes first.
func pickTrack(tracks []captionTrack) (captionTrack, bool) {
	var english, first *captionTrack
	for i := range tracks {
		t := &tracks[i]
		if t.BaseURL == "" {
			continue
		}
		if first == nil {
			first = t
		}
		if strings.HasPrefix(t.LanguageCode, "en") {
			if t.Kind != "asr" {
				return *t, true
			}
			if english == nil {
				english = t
			}
		}
	}
	switch {
	case english != nil:
		return *english, true
	case first != nil:
		return *first, true
	}
	return captionTrack{}, false
}

func (c *YouTubeClient) VideoTitle(ctx context.Context, videoID string) (string, error) {
	start := time.Now()
	var (
		title string
		err   error
	)
	if c.apiKey != "" {
		title, err = c.apiTitle(ctx, videoID)
	} else {
		title, err = c.pageTitle(ctx, videoID)
	}
	c.metrics.RecordUpstream("youtube_metadata", err, time.Since(start))
	return title, err
}

func (c *YouTubeClient) apiTitle(ctx context.Context, videoID string) (string, error) {
	q := url.Values{}
	q.Set("id", videoID)
	q.Set("key", c.apiKey)
	q.Set("part", "snippet")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.apiBaseURL+"/youtube/v3/videos?"+q.Encode(), nil)
	if err != nil {
		return "", err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("youtube data api: status %d", resp.StatusCode)
	}

	var out struct {
		Items []struct {
			Snippet struct {
				Title string `json:"title"`
			} `json:"snippet"`
		} `json:"items"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&out); err != nil {
		return "", err
	}
	if len(out.Items) == 0 {
		return "", &Error{Kind: KindNotFound, Message: "Video not found"}
	}
	return out.Items[0].Snippet.Title, nil
}

func (c *YouTubeClient) pageTitle(ctx context.Context, videoID string) (string, error) {
	page, err := c.watchPage(ctx, videoID)
	if err != nil {
		return "", err
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page))
	if err != nil {
		return "", err
	}
	if title, ok := doc.Find(`meta[property="og:title"]`).Attr("content"); ok {
		return strings.TrimSpace(title), nil
	}
	return strings.TrimSuffix(strings.TrimSpace(doc.Find("title").First().Text()), " - YouTube"), nil
}
