package services

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/AnshRaj112/agentdesk-backend/internal/models"
)

const unknownVideoTitle = "Unknown Video"

// VideoSummary is the result of summarizing a video.
type VideoSummary struct {
	Summary          string `json:"summary"`
	VideoTitle       string `json:"videoTitle"`
	VideoID          string `json:"videoId"`
	TranscriptLength int    `json:"transcriptLength"`
}

// YouTubeAgent summarizes videos and answers questions about them.
type YouTubeAgent struct {
	transcripts TranscriptFetcher
	metadata    VideoMetadata
	cache       TranscriptCache
	activities  *ActivityService
}

func NewYouTubeAgent(transcripts TranscriptFetcher, metadata VideoMetadata, cache TranscriptCache, activities *ActivityService) *YouTubeAgent {
	return &YouTubeAgent{
		transcripts: transcripts,
		metadata:    metadata,
		cache:       cache,
		activities:  activities,
	}
}

// Summarize fetches transcript and title, fills the summary template and
// records one youtube activity.
func (a *YouTubeAgent) Summarize(ctx context.Context, userID, rawURL string) (*VideoSummary, error) {
	if strings.TrimSpace(rawURL) == "" {
		return nil, Validation("YouTube URL is required")
	}
	videoID, err := ParseVideoID(rawURL)
	if err != nil {
		return nil, err
	}

	transcript, err := a.transcript(ctx, videoID)
	if err != nil {
		return nil, err
	}

	title, err := a.metadata.VideoTitle(ctx, videoID)
	if err != nil {
		if KindOf(err) == KindNotFound {
			return nil, err
		}
		return nil, Upstream("Error processing video", err)
	}
	if strings.TrimSpace(title) == "" {
		title = unknownVideoTitle
	}

	summary, err := render("summary", map[string]string{"Title": title})
	if err != nil {
		return nil, Internal("Error processing video", err)
	}

	_, err = a.activities.Record(ctx, userID, models.ActivityYouTube, title, summary, map[string]interface{}{
		"videoId":          videoID,
		"url":              rawURL,
		"transcriptLength": len(transcript),
	})
	if err != nil {
		return nil, err
	}

	return &VideoSummary{
		Summary:          summary,
		VideoTitle:       title,
		VideoID:          videoID,
		TranscriptLength: len(transcript),
	}, nil
}

// Answer answers a question about a previously seen (or fetchable) video.
// Answers are not recorded as activities.
func (a *YouTubeAgent) Answer(ctx context.Context, videoID, question string) (string, error) {
	videoID = strings.TrimSpace(videoID)
	question = strings.TrimSpace(question)
	if videoID == "" || question == "" {
		return "", Validation("Video ID and question are required")
	}
	if !ValidVideoID(videoID) {
		return "", Validation("Invalid video ID")
	}
	if len([]rune(question)) > 500 {
		return "", Validation("Question must be at most 500 characters")
	}

	if _, err := a.transcript(ctx, videoID); err != nil {
		return "", err
	}

	answer, err := render("answer", map[string]string{"Question": question})
	if err != nil {
		return "", Internal("Error answering question", err)
	}
	return answer, nil
}

// transcript serves from the cache, falling back to a fetch that refills it.
func (a *YouTubeAgent) transcript(ctx context.Context, videoID string) (string, error) {
	if a.cache != nil {
		if t, ok, err := a.cache.GetTranscript(ctx, videoID); err != nil {
			slog.WarnContext(ctx, "transcript cache read failed", slog.String("video_id", videoID), slog.String("error", err.Error()))
		} else if ok {
			return t, nil
		}
	}

	t, err := a.transcripts.FetchTranscript(ctx, videoID)
	if err != nil {
		if errors.Is(err, ErrNoTranscript) {
			return "", ErrNoTranscript
		}
		return "", Upstream("Error fetching transcript", err)
	}
	if strings.TrimSpace(t) == "" {
		return "", ErrNoTranscript
	}

	if a.cache != nil {
		if err := a.cache.SetTranscript(ctx, videoID, t); err != nil {
			slog.WarnContext(ctx, "transcript cache write failed", slog.String("video_id", videoID), slog.String("error", err.Error()))
		}
	}
	return t, nil
}
