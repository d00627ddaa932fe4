package services

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseVideoID(t *testing.T) {
	valid := []string{
		"https://www.youtube.com/watch?v=dQw4w9WgXcQ",
		"https://youtube.com/watch?v=dQw4w9WgXcQ&t=42s",
		"https://youtu.be/dQw4w9WgXcQ?si=abc",
		"https://m.youtube.com/shorts/dQw4w9WgXcQ",
		"https://www.youtube.com/embed/dQw4w9WgXcQ",
		"  https://music.youtube.com/watch?v=dQw4w9WgXcQ  ",
	}
	for _, u := range valid {
		id, err := ParseVideoID(u)
		require.NoError(t, err, u)
		assert.Equal(t, "dQw4w9WgXcQ", id, u)
	}

	invalid := []string{
		"",
		"not a url",
		"https://vimeo.com/123456",
		"https://www.youtube.com/watch?v=short",
		"https://www.youtube.com/channel/UC123",
		"https://evil.com/watch?v=dQw4w9WgXcQ",
	}
	for _, u := range invalid {
		_, err := ParseVideoID(u)
		assert.Equal(t, KindValidation, KindOf(err), u)
	}
}

func TestExtractJSONArray(t *testing.T) {
	got, ok := extractJSONArray(`[{"a":"]"},[1,2]],"next":true}`)
	require.True(t, ok)
	assert.Equal(t, `[{"a":"]"},[1,2]]`, got)

	got, ok = extractJSONArray(`[{"q":"say \"hi\" ]"}] tail`)
	require.True(t, ok)
	assert.Equal(t, `[{"q":"say \"hi\" ]"}]`, got)

	_, ok = extractJSONArray(`{"a":1}`)
	assert.False(t, ok)
	_, ok = extractJSONArray(`[1,2`)
	assert.False(t, ok)
}

func TestPickTrack(t *testing.T) {
	tracks := []captionTrack{
		{BaseURL: "de", LanguageCode: "de"},
		{BaseURL: "en-asr", LanguageCode: "en", Kind: "asr"},
		{BaseURL: "en-gb", LanguageCode: "en-GB"},
	}
	got, ok := pickTrack(tracks)
	require.True(t, ok)
	assert.Equal(t, "en-gb", got.BaseURL)

	got, ok = pickTrack(tracks[:2])
	require.True(t, ok)
	assert.Equal(t, "en-asr", got.BaseURL)

	got, ok = pickTrack(tracks[:1])
	require.True(t, ok)
	assert.Equal(t, "de", got.BaseURL)

	_, ok = pickTrack([]captionTrack{{LanguageCode: "en"}})
	assert.False(t, ok)
}

const watchPageTemplate = `<html><head>
<meta property="og:title" content="Go Concurrency Patterns">
<title>Go Concurrency Patterns - YouTube</title>
</head><body><script>var ytInitialPlayerResponse = {"captions":{"playerCaptionsTracklistRenderer":{"captionTracks":[{"baseUrl":"%[1]s/timedtext?lang=de","languageCode":"de"},{"baseUrl":"%[1]s/timedtext?lang=en","languageCode":"en","kind":"asr"}]}}};</script></body></html>`

const timedTextBody = `<transcript><text start="0" dur="1.5">Hello &amp;amp; welcome</text><text start="1.5" dur="2">to   &lt;b&gt;Go&lt;/b&gt;</text><text start="4" dur="1"> </text></transcript>`

func newYouTubeServer(t *testing.T, page string) *httptest.Server {
	t.Helper()
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/watch":
			if page == "" {
				fmt.Fprintf(w, watchPageTemplate, srv.URL)
				return
			}
			fmt.Fprint(w, page)
		case "/timedtext":
			if r.URL.Query().Get("lang") != "en" {
				http.Error(w, "wrong track", http.StatusBadRequest)
				return
			}
			fmt.Fprint(w, timedTextBody)
		case "/youtube/v3/videos":
			if r.URL.Query().Get("key") != "api-key" {
				http.Error(w, "bad key", http.StatusForbidden)
				return
			}
			if r.URL.Query().Get("id") == "missingVid1" {
				fmt.Fprint(w, `{"items":[]}`)
				return
			}
			fmt.Fprint(w, `{"items":[{"snippet":{"title":"From The API"}}]}`)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestYouTubeClient_FetchTranscript(t *testing.T) {
	srv := newYouTubeServer(t, "")
	c := NewYouTubeClient("", srv.Client(), srv.Client(), nil).WithBaseURLs(srv.URL, srv.URL)

	text, err := c.FetchTranscript(context.Background(), "dQw4w9WgXcQ")
	require.NoError(t, err)
	assert.Equal(t, "Hello & welcome to Go", text)
}

func TestYouTubeClient_NoCaptions(t *testing.T) {
	srv := newYouTubeServer(t, `<html><body>no captions here</body></html>`)
	c := NewYouTubeClient("", srv.Client(), srv.Client(), nil).WithBaseURLs(srv.URL, srv.URL)

	_, err := c.FetchTranscript(context.Background(), "dQw4w9WgXcQ")
	assert.ErrorIs(t, err, ErrNoTranscript)
}

func TestYouTubeClient_PageTitle(t *testing.T) {
	srv := newYouTubeServer(t, "")
	c := NewYouTubeClient("", srv.Client(), srv.Client(), nil).WithBaseURLs(srv.URL, srv.URL)

	title, err := c.VideoTitle(context.Background(), "dQw4w9WgXcQ")
	require.NoError(t, err)
	assert.Equal(t, "Go Concurrency Patterns", title)
}

func TestYouTubeClient_APITitle(t *testing.T) {
	srv := newYouTubeServer(t, "")
	c := NewYouTubeClient("api-key", srv.Client(), srv.Client(), nil).WithBaseURLs(srv.URL, srv.URL)

	title, err := c.VideoTitle(context.Background(), "dQw4w9WgXcQ")
	require.NoError(t, err)
	assert.Equal(t, "From The API", title)

	_, err = c.VideoTitle(context.Background(), "missingVid1")
	assert.Equal(t, KindNotFound, KindOf(err))
}
