package models

import "time"

// ActivityType is the agent category of an activity.
type ActivityType string

const (
	ActivityYouTube  ActivityType = "youtube"
	ActivityResearch ActivityType = "research"
	ActivityTwitter  ActivityType = "twitter"
)

func (t ActivityType) Valid() bool {
	switch t {
	case ActivityYouTube, ActivityResearch, ActivityTwitter:
		return true
	}
	return false
}

// RecentActivityLimit bounds GET /activities.
const RecentActivityLimit = 10

// Activity is an append-only log entry of one completed agent action.
type Activity struct {
	ID        string                 `json:"_id"`
	UserID    string                 `json:"userId"`
	Type      ActivityType           `json:"type"`
	Title     string                 `json:"title"`
	Content   string                 `json:"content"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	CreatedAt time.Time              `json:"createdAt"`
}
