package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/AnshRaj112/agentdesk-backend/internal/metrics"
	"github.com/AnshRaj112/agentdesk-backend/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const activitiesCollection = "activities"

type activityDocument struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	UserID    string             `bson:"user_id"`
	Type      string             `bson:"type"`
	Title     string             `bson:"title"`
	Content   string             `bson:"content"`
	Metadata  bson.M             `bson:"metadata,omitempty"`
	CreatedAt time.Time          `bson:"created_at"`
}

// MongoActivityStore keeps activities in the "activities" collection.
type MongoActivityStore struct {
	col *mongo.Collection
}

func NewMongoActivityStore(db *mongo.Database) *MongoActivityStore {
	return &MongoActivityStore{col: db.Collection(activitiesCollection)}
}

// EnsureIndexes configures the (user_id, created_at desc) index used by
// RecentActivities.
func (s *MongoActivityStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.col.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{
			{Key: "user_id", Value: 1},
			{Key: "created_at", Value: -1},
		},
		Options: options.Index().SetName("idx_user_created_at"),
	})
	return err
}

func (s *MongoActivityStore) InsertActivity(ctx context.Context, a *models.Activity) error {
	doc := activityDocument{
		ID:        primitive.NewObjectID(),
		UserID:    a.UserID,
		Type:      string(a.Type),
		Title:     a.Title,
		Content:   a.Content,
		Metadata:  bson.M(a.Metadata),
		CreatedAt: a.CreatedAt,
	}
	if _, err := s.col.InsertOne(ctx, doc); err != nil {
		return err
	}
	a.ID = doc.ID.Hex()
	return nil
}

func (s *MongoActivityStore) RecentActivities(ctx context.Context, userID string, limit int64) ([]models.Activity, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}).
		SetLimit(limit)

	cursor, err := s.col.Find(ctx, bson.M{"user_id": userID}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var docs []activityDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}

	out := make([]models.Activity, 0, len(docs))
	for _, d := range docs {
		out = append(out, models.Activity{
			ID:        d.ID.Hex(),
			UserID:    d.UserID,
			Type:      models.ActivityType(d.Type),
			Title:     d.Title,
			Content:   d.Content,
			Metadata:  map[string]interface{}(d.Metadata),
			CreatedAt: d.CreatedAt,
		})
	}
	return out, nil
}

// ActivityPublisher pushes a freshly recorded activity to live subscribers.
type ActivityPublisher interface {
	Publish(ctx context.Context, activity *models.Activity) error
}

// ActivityService appends activity records and serves the recent list.
type ActivityService struct {
	store     ActivityStore
	publisher ActivityPublisher
	metrics   *metrics.Collector
	now       func() time.Time
}

func NewActivityService(store ActivityStore, publisher ActivityPublisher, m *metrics.Collector) *ActivityService {
	return &ActivityService{store: store, publisher: publisher, metrics: m, now: time.Now}
}

// Record appends exactly one activity. Publishing to live subscribers is best
// effort; a failed publish never fails the request.
func (s *ActivityService) Record(ctx context.Context, userID string, typ models.ActivityType, title, content string, metadata map[string]interface{}) (*models.Activity, error) {
	a := &models.Activity{
		UserID:    userID,
		Type:      typ,
		Title:     title,
		Content:   content,
		Metadata:  metadata,
		CreatedAt: s.now().UTC(),
	}
	if err := s.store.InsertActivity(ctx, a); err != nil {
		return nil, Internal("Failed to record activity", err)
	}
	s.metrics.RecordActivity(string(typ))

	if s.publisher != nil {
		if err := s.publisher.Publish(ctx, a); err != nil {
			slog.WarnContext(ctx, "activity publish failed",
				slog.String("user_id", userID),
				slog.String("error", err.Error()),
			)
		}
	}
	return a, nil
}

// Recent returns the newest activities for a user, newest first.
func (s *ActivityService) Recent(ctx context.Context, userID string) ([]models.Activity, error) {
	list, err := s.store.RecentActivities(ctx, userID, models.RecentActivityLimit)
	if err != nil {
		return nil, Internal("Failed to fetch activities", err)
	}
	if list == nil {
		list = []models.Activity{}
	}
	return list, nil
}
