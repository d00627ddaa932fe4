package services

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/AnshRaj112/agentdesk-backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSources struct {
	sources []Source
	err     error
	calls   int
}

func (f *fakeSources) FindSources(ctx context.Context, topic string, max int) ([]Source, error) {
	f.calls++
	return f.sources, f.err
}

func TestResearchGenerate_Defaults(t *testing.T) {
	acts := &memActivityStore{}
	agent := NewResearchAgent(nil, NewActivityService(acts, nil, nil))

	paper, err := agent.Generate(context.Background(), "u1", PaperRequest{Topic: "  Quantum Computing "})
	require.NoError(t, err)
	assert.Equal(t, "Quantum Computing", paper.Topic)
	assert.True(t, strings.HasPrefix(paper.Paper, "# Quantum Computing: A Comprehensive Analysis"))
	assert.Contains(t, paper.Paper, "This academic paper explores Quantum Computing")
	assert.Contains(t, paper.Paper, "significance of quantum computing")
	assert.Contains(t, paper.Paper, "approximately 1500 words")
	assert.NotContains(t, paper.Paper, "## References")
	assert.NotContains(t, paper.Paper, "### Figures")

	recorded := acts.all()
	require.Len(t, recorded, 1)
	assert.Equal(t, models.ActivityResearch, recorded[0].Type)
	assert.Equal(t, "Quantum Computing", recorded[0].Title)
	assert.Equal(t, "1500", recorded[0].Metadata["wordCount"])
	assert.Equal(t, "academic", recorded[0].Metadata["paperType"])
}

func TestResearchGenerate_SourcesAndCharts(t *testing.T) {
	finder := &fakeSources{sources: []Source{
		{Title: "Attention Is All You Need", Link: "http://arxiv.org/abs/1706.03762", Authors: []string{"Vaswani", "Shazeer"}, Published: "2017"},
		{Title: "Untitled", Link: "http://arxiv.org/abs/2"},
	}}
	agent := NewResearchAgent(finder, NewActivityService(&memActivityStore{}, nil, nil))

	paper, err := agent.Generate(context.Background(), "u1", PaperRequest{
		Topic:          "Transformers",
		PaperType:      "review",
		WordCount:      "3000",
		IncludeSources: true,
		IncludeCharts:  true,
	})
	require.NoError(t, err)
	assert.Contains(t, paper.Paper, "This literature review paper explores")
	assert.Contains(t, paper.Paper, "### Figures")
	assert.Contains(t, paper.Paper, "1. Attention Is All You Need. Vaswani, Shazeer (2017). http://arxiv.org/abs/1706.03762")
	assert.Contains(t, paper.Paper, "2. Untitled. http://arxiv.org/abs/2")
	assert.Len(t, paper.Sources, 2)
}

func TestResearchGenerate_Validation(t *testing.T) {
	finder := &fakeSources{}
	acts := &memActivityStore{}
	agent := NewResearchAgent(finder, NewActivityService(acts, nil, nil))
	ctx := context.Background()

	bad := []PaperRequest{
		{Topic: ""},
		{Topic: strings.Repeat("t", 201)},
		{Topic: "x", PaperType: "poem"},
		{Topic: "x", WordCount: "lots"},
		{Topic: "x", WordCount: "50"},
		{Topic: "x", WordCount: "20000"},
	}
	for _, req := range bad {
		_, err := agent.Generate(ctx, "u1", req)
		assert.Equal(t, KindValidation, KindOf(err), fmt.Sprintf("%+v", req))
	}

	finder.err = errBoom
	_, err := agent.Generate(ctx, "u1", PaperRequest{Topic: "x", IncludeSources: true})
	assert.Equal(t, KindUpstream, KindOf(err))

	assert.Empty(t, acts.all())
}

const arxivFeed = `<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <title>ArXiv Query</title>
  <id>http://arxiv.org/api/query</id>
  <updated>2024-01-01T00:00:00Z</updated>
  <entry>
    <id>http://arxiv.org/abs/1706.03762v5</id>
    <title>Attention Is All
      You Need</title>
    <published>2017-06-12T17:57:34Z</published>
    <updated>2017-12-06T03:30:32Z</updated>
    <author><name>Ashish Vaswani</name></author>
    <author><name>Noam Shazeer</name></author>
    <link href="http://arxiv.org/abs/1706.03762v5" rel="alternate" type="text/html"/>
  </entry>
  <entry>
    <id>http://arxiv.org/abs/1810.04805v2</id>
    <title>BERT</title>
    <published>2018-10-11T00:50:01Z</published>
    <updated>2019-05-24T20:37:26Z</updated>
    <author><name>Jacob Devlin</name></author>
    <link href="http://arxiv.org/abs/1810.04805v2" rel="alternate" type="text/html"/>
  </entry>
</feed>`

func TestArxivClient_FindSources(t *testing.T) {
	var query string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query = r.URL.Query().Get("search_query")
		w.Header().Set("Content-Type", "application/atom+xml")
		fmt.Fprint(w, arxivFeed)
	}))
	defer srv.Close()

	c := NewArxivClient(srv.URL+"/api/query", srv.Client(), nil)
	sources, err := c.FindSources(context.Background(), "transformers", 1)
	require.NoError(t, err)
	assert.Equal(t, "all:transformers", query)

	require.Len(t, sources, 1)
	assert.Equal(t, "Attention Is All You Need", sources[0].Title)
	assert.Equal(t, "http://arxiv.org/abs/1706.03762v5", sources[0].Link)
	assert.Equal(t, []string{"Ashish Vaswani", "Noam Shazeer"}, sources[0].Authors)
	assert.Equal(t, "2017", sources[0].Published)
}
