package services

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/AnshRaj112/agentdesk-backend/internal/metrics"
	"github.com/AnshRaj112/agentdesk-backend/internal/models"
	"github.com/mmcdole/gofeed"
)

const maxResearchSources = 5

var paperTypes = map[string]bool{
	"academic":  true,
	"research":  true,
	"technical": true,
	"review":    true,
}

// Source is a reference cited in a generated paper.
type Source struct {
	Title     string   `json:"title"`
	Link      string   `json:"link"`
	Authors   []string `json:"authors,omitempty"`
	Published string   `json:"published,omitempty"`
}

// SourceFinder finds literature for a topic.
type SourceFinder interface {
	FindSources(ctx context.Context, topic string, max int) ([]Source, error)
}

// ArxivClient queries the arXiv Atom API.
type ArxivClient struct {
	apiURL  string
	parser  *gofeed.Parser
	metrics *metrics.Collector
}

func NewArxivClient(apiURL string, httpClient *http.Client, m *metrics.Collector) *ArxivClient {
	p := gofeed.NewParser()
	if httpClient != nil {
		p.Client = httpClient
	}
	return &ArxivClient{apiURL: apiURL, parser: p, metrics: m}
}

func (c *ArxivClient) FindSources(ctx context.Context, topic string, max int) ([]Source, error) {
	q := url.Values{}
	q.Set("search_query", "all:"+topic)
	q.Set("start", "0")
	q.Set("max_results", fmt.Sprint(max))
	q.Set("sortBy", "relevance")

	start := time.Now()
	feed, err := c.parser.ParseURLWithContext(c.apiURL+"?"+q.Encode(), ctx)
	c.metrics.RecordUpstream("arxiv", err, time.Since(start))
	if err != nil {
		return nil, err
	}

	sources := make([]Source, 0, len(feed.Items))
	for _, item := range feed.Items {
		if len(sources) == max {
			break
		}
		s := Source{Title: strings.Join(strings.Fields(item.Title), " "), Link: item.Link}
		for _, a := range item.Authors {
			if a != nil && a.Name != "" {
				s.Authors = append(s.Authors, a.Name)
			}
		}
		if item.PublishedParsed != nil {
			s.Published = item.PublishedParsed.Format("2006")
		}
		sources = append(sources, s)
	}
	return sources, nil
}

// PaperRequest is the input of a research paper generation.
type PaperRequest struct {
	Topic          string
	PaperType      string
	WordCount      string
	IncludeSources bool
	IncludeCharts  bool
}

// Paper is a generated research paper.
type Paper struct {
	Paper   string   `json:"paper"`
	Topic   string   `json:"topic"`
	Sources []Source `json:"sources,omitempty"`
}

// ResearchAgent generates templated research papers.
type ResearchAgent struct {
	sources    SourceFinder
	activities *ActivityService
}

func NewResearchAgent(sources SourceFinder, activities *ActivityService) *ResearchAgent {
	return &ResearchAgent{sources: sources, activities: activities}
}

func (a *ResearchAgent) Generate(ctx context.Context, userID string, req PaperRequest) (*Paper, error) {
	req.Topic = strings.TrimSpace(req.Topic)
	if req.Topic == "" {
		return nil, Validation("Topic is required")
	}
	if len([]rune(req.Topic)) > 200 {
		return nil, Validation("Topic must be at most 200 characters")
	}
	if req.PaperType == "" {
		req.PaperType = "academic"
	}
	if !paperTypes[req.PaperType] {
		return nil, Validation("Unknown paper type")
	}
	if req.WordCount == "" {
		req.WordCount = "1500"
	}
	if n, err := strconv.Atoi(req.WordCount); err != nil || n < 100 || n > 10000 {
		return nil, Validation("Word count must be a number between 100 and 10000")
	}

	var sources []Source
	if req.IncludeSources {
		if a.sources == nil {
			return nil, Upstream("Error generating research paper", fmt.Errorf("no source finder configured"))
		}
		var err error
		sources, err = a.sources.FindSources(ctx, req.Topic, maxResearchSources)
		if err != nil {
			return nil, Upstream("Error generating research paper", err)
		}
	}

	paperType := req.PaperType
	if paperType == "review" {
		paperType = "literature review"
	}
	text, err := render("paper", map[string]interface{}{
		"Topic":         req.Topic,
		"PaperType":     paperType,
		"WordCount":     req.WordCount,
		"IncludeCharts": req.IncludeCharts,
		"Sources":       sources,
	})
	if err != nil {
		return nil, Internal("Error generating research paper", err)
	}

	_, err = a.activities.Record(ctx, userID, models.ActivityResearch, req.Topic, text, map[string]interface{}{
		"paperType":      req.PaperType,
		"wordCount":      req.WordCount,
		"includeSources": req.IncludeSources,
		"includeCharts":  req.IncludeCharts,
	})
	if err != nil {
		return nil, err
	}

	return &Paper{Paper: text, Topic: req.Topic, Sources: sources}, nil
}
