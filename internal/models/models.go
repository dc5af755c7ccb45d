package models

import (
	"database/sql"
	"encoding/json"
	"time"
)

// Account is the current-state snapshot of an author. Mutated on every
// event that references it; never deleted.
type Account struct {
	ID             string
	InstanceID     string
	Username       string
	Acct           string
	DisplayName    string
	FollowersCount int64
	FollowingCount int64
	StatusesCount  int64
	Bot            bool
	Local          bool
	Domain         string
	AvatarURL      string
	FirstSeenAt    time.Time
	LastSeenAt     time.Time
}

// Post is the current-state row for a post. Engagement counters are
// overwritten in place on every sighting; DeletedAt is a soft-delete
// tombstone that is set once and never cleared.
type Post struct {
	ID                 string
	InstanceID         string
	AccountID          string
	URI                string
	URL                string
	Content            string
	ContentText        string
	SpoilerText        string
	Language           sql.NullString
	Visibility         string
	Sensitive          bool
	ReblogOfID         sql.NullString
	InReplyToID        sql.NullString
	InReplyToAccountID sql.NullString
	ReblogsCount       int64
	FavouritesCount    int64
	RepliesCount       int64
	EngagementScore    int64
	HasMedia           bool
	MediaCount         int
	SentimentAnalyzed  bool
	CreatedAt          time.Time
	EditedAt           sql.NullTime
	DeletedAt          sql.NullTime
	FirstSeenAt        time.Time
	LastSeenAt         time.Time
}

// PostVersion is one row of the append-only edit history. VersionSeq is
// dense and starts at 1 for each post.
type PostVersion struct {
	PostID      string
	InstanceID  string
	VersionSeq  int
	Content     string
	ContentText string
	SpoilerText string
	EditedAt    sql.NullTime
	CapturedAt  time.Time
}

// PostMetricSnapshot is one row of the engagement time series, appended on
// every upsert of an existing post.
type PostMetricSnapshot struct {
	PostID          string
	InstanceID      string
	ReblogsCount    int64
	FavouritesCount int64
	RepliesCount    int64
	EngagementScore int64
	CapturedAt      time.Time
}

// Hashtag is a normalized lowercase tag, unique per instance.
type Hashtag struct {
	ID          int64
	InstanceID  string
	Name        string
	FirstSeenAt time.Time
	LastSeenAt  time.Time
}

// PostMention links a post to a mentioned account descriptor. The mentioned
// account may not exist as an Account row.
type PostMention struct {
	PostID             string
	InstanceID         string
	MentionedAccountID string
	MentionedAcct      string
	MentionedUsername  string
}

// StreamEvent is the raw append-only event log, written regardless of
// processing outcome.
type StreamEvent struct {
	ID           int64
	InstanceID   string
	Kind         string
	Payload      json.RawMessage
	ReceivedAt   time.Time
	ProcessError sql.NullString
}

// HourlyStat is a materialized per-hour aggregate, fully recomputable from
// the post tables.
type HourlyStat struct {
	InstanceID      string
	HourStart       time.Time
	PostCount       int64
	TotalEngagement int64
	AvgEngagement   float64
	AvgSentiment    sql.NullFloat64
	ComputedAt      time.Time
}

// HashtagHourlyStat is the per-hashtag variant of HourlyStat.
type HashtagHourlyStat struct {
	InstanceID      string
	HashtagID       int64
	HashtagName     string
	HourStart       time.Time
	PostCount       int64
	AuthorCount     int64
	TotalEngagement int64
	ComputedAt      time.Time
}

// PostSentiment holds the sentiment result for a post, one row per post.
type PostSentiment struct {
	PostID      string
	InstanceID  string
	Label       string
	Score       float64
	Method      string
	ContentHash string
	AnalyzedAt  time.Time
}

// HourlyTopic is an AI-derived topic cluster record for one hour.
type HourlyTopic struct {
	ID         int64
	InstanceID string
	HourStart  time.Time
	Topics     json.RawMessage
	Model      string
	InputHash  string
	CreatedAt  time.Time
}

// DailySummary is an AI-derived narrative for one UTC day.
type DailySummary struct {
	InstanceID string
	Day        time.Time
	Summary    string
	Model      string
	InputHash  string
	CreatedAt  time.Time
}
