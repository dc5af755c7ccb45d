package store

import (
	"context"
	"fmt"
	"time"

	"github.com/cbattlegear/forkalytics/internal/models"
)

// SelectUnanalyzedPosts returns up to limit non-deleted posts with extracted
// text that have not been through sentiment analysis yet, oldest first.
func (s *Store) SelectUnanalyzedPosts(ctx context.Context, limit int) ([]models.Post, error) {
	const query = `
		SELECT id, content_text
		FROM posts
		WHERE instance_id = $1
		  AND deleted_at IS NULL
		  AND sentiment_analyzed = FALSE
		  AND content_text <> ''
		ORDER BY created_at
		LIMIT $2`

	rows, err := s.DB.QueryContext(ctx, query, s.InstanceID, limit)
	if err != nil {
		return nil, fmt.Errorf("select unanalyzed posts: %w", err)
	}
	defer rows.Close()

	var posts []models.Post
	for rows.Next() {
		post := models.Post{InstanceID: s.InstanceID}
		if err := rows.Scan(&post.ID, &post.ContentText); err != nil {
			return nil, fmt.Errorf("scan unanalyzed post: %w", err)
		}
		posts = append(posts, post)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("select unanalyzed posts: %w", err)
	}
	return posts, nil
}

// MarkPostAnalyzed flags a post as analyzed. Also called when scoring fails
// so a bad post cannot wedge the batch loop.
func (s *Store) MarkPostAnalyzed(ctx context.Context, q Querier, postID string) error {
	const query = `UPDATE posts SET sentiment_analyzed = TRUE WHERE id = $1 AND instance_id = $2`

	if _, err := q.ExecContext(ctx, query, postID, s.InstanceID); err != nil {
		return fmt.Errorf("mark post %s analyzed: %w", postID, err)
	}
	return nil
}

// UpsertPostSentiment writes the sentiment row for a post, replacing any
// previous result.
func (s *Store) UpsertPostSentiment(ctx context.Context, q Querier, sentiment *models.PostSentiment) error {
	const query = `
		INSERT INTO post_sentiments (
			post_id, instance_id, label, score, method, content_hash, analyzed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (post_id, instance_id) DO UPDATE SET
			label = EXCLUDED.label,
			score = EXCLUDED.score,
			method = EXCLUDED.method,
			content_hash = EXCLUDED.content_hash,
			analyzed_at = EXCLUDED.analyzed_at`

	_, err := q.ExecContext(ctx, query,
		sentiment.PostID, s.InstanceID, sentiment.Label, sentiment.Score,
		sentiment.Method, sentiment.ContentHash, sentiment.AnalyzedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert sentiment for post %s: %w", sentiment.PostID, err)
	}
	return nil
}

// CountPostsInRange counts non-deleted posts created in [start, end).
func (s *Store) CountPostsInRange(ctx context.Context, start, end time.Time) (int64, error) {
	const query = `
		SELECT COUNT(*)
		FROM posts
		WHERE instance_id = $1
		  AND deleted_at IS NULL
		  AND created_at >= $2
		  AND created_at < $3`

	var count int64
	if err := s.DB.QueryRowContext(ctx, query, s.InstanceID, start, end).Scan(&count); err != nil {
		return 0, fmt.Errorf("count posts in range: %w", err)
	}
	return count, nil
}

// TopPostsByEngagement returns the highest-engagement non-deleted posts
// created in [start, end), for the topic and summary prompts.
func (s *Store) TopPostsByEngagement(ctx context.Context, start, end time.Time, limit int) ([]models.Post, error) {
	const query = `
		SELECT id, content_text, engagement_score
		FROM posts
		WHERE instance_id = $1
		  AND deleted_at IS NULL
		  AND content_text <> ''
		  AND created_at >= $2
		  AND created_at < $3
		ORDER BY engagement_score DESC, created_at
		LIMIT $4`

	rows, err := s.DB.QueryContext(ctx, query, s.InstanceID, start, end, limit)
	if err != nil {
		return nil, fmt.Errorf("top posts by engagement: %w", err)
	}
	defer rows.Close()

	var posts []models.Post
	for rows.Next() {
		post := models.Post{InstanceID: s.InstanceID}
		if err := rows.Scan(&post.ID, &post.ContentText, &post.EngagementScore); err != nil {
			return nil, fmt.Errorf("scan top post: %w", err)
		}
		posts = append(posts, post)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("top posts by engagement: %w", err)
	}
	return posts, nil
}

// HourlyTopicExists reports whether a topic record already exists for the hour.
func (s *Store) HourlyTopicExists(ctx context.Context, hourStart time.Time) (bool, error) {
	const query = `
		SELECT EXISTS (
			SELECT 1 FROM hourly_topics WHERE instance_id = $1 AND hour_start = $2
		)`

	var exists bool
	if err := s.DB.QueryRowContext(ctx, query, s.InstanceID, hourStart).Scan(&exists); err != nil {
		return false, fmt.Errorf("check hourly topic: %w", err)
	}
	return exists, nil
}

// WriteHourlyTopics persists a topic record, replacing any existing row for
// the hour.
func (s *Store) WriteHourlyTopics(ctx context.Context, topic *models.HourlyTopic) error {
	const query = `
		INSERT INTO hourly_topics (instance_id, hour_start, topics, model, input_hash, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (instance_id, hour_start) DO UPDATE SET
			topics = EXCLUDED.topics,
			model = EXCLUDED.model,
			input_hash = EXCLUDED.input_hash,
			created_at = EXCLUDED.created_at`

	_, err := s.DB.ExecContext(ctx, query,
		s.InstanceID, topic.HourStart, []byte(topic.Topics),
		topic.Model, topic.InputHash, topic.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("write hourly topics %s: %w", topic.HourStart.Format(time.RFC3339), err)
	}
	return nil
}

// DailySummaryExists reports whether a summary already exists for the day.
func (s *Store) DailySummaryExists(ctx context.Context, day time.Time) (bool, error) {
	const query = `
		SELECT EXISTS (
			SELECT 1 FROM daily_summaries WHERE instance_id = $1 AND day = $2
		)`

	var exists bool
	if err := s.DB.QueryRowContext(ctx, query, s.InstanceID, day).Scan(&exists); err != nil {
		return false, fmt.Errorf("check daily summary: %w", err)
	}
	return exists, nil
}

// WriteDailySummary persists a summary, replacing any existing row for the day.
func (s *Store) WriteDailySummary(ctx context.Context, summary *models.DailySummary) error {
	const query = `
		INSERT INTO daily_summaries (instance_id, day, summary, model, input_hash, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (instance_id, day) DO UPDATE SET
			summary = EXCLUDED.summary,
			model = EXCLUDED.model,
			input_hash = EXCLUDED.input_hash,
			created_at = EXCLUDED.created_at`

	_, err := s.DB.ExecContext(ctx, query,
		s.InstanceID, summary.Day, summary.Summary,
		summary.Model, summary.InputHash, summary.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("write daily summary %s: %w", summary.Day.Format("2006-01-02"), err)
	}
	return nil
}

// DayStats aggregates one UTC day of non-deleted posts for the summary prompt.
type DayStats struct {
	PostCount       int64
	AuthorCount     int64
	TotalEngagement int64
	AvgSentiment    *float64
	TopHashtags     []string
}

// AggregateDay computes the day-level numbers fed into the daily summary.
func (s *Store) AggregateDay(ctx context.Context, dayStart time.Time) (*DayStats, error) {
	const query = `
		SELECT COUNT(*),
		       COUNT(DISTINCT p.account_id),
		       COALESCE(SUM(p.engagement_score), 0),
		       AVG(ps.score)
		FROM posts p
		LEFT JOIN post_sentiments ps
		       ON ps.post_id = p.id AND ps.instance_id = p.instance_id
		WHERE p.instance_id = $1
		  AND p.deleted_at IS NULL
		  AND p.created_at >= $2
		  AND p.created_at < $3`

	dayEnd := dayStart.Add(24 * time.Hour)
	stats := &DayStats{}
	err := s.DB.QueryRowContext(ctx, query, s.InstanceID, dayStart, dayEnd).Scan(
		&stats.PostCount, &stats.AuthorCount, &stats.TotalEngagement, &stats.AvgSentiment,
	)
	if err != nil {
		return nil, fmt.Errorf("aggregate day %s: %w", dayStart.Format("2006-01-02"), err)
	}

	const tagQuery = `
		SELECT h.name
		FROM post_hashtags ph
		JOIN hashtags h ON h.id = ph.hashtag_id
		JOIN posts p ON p.id = ph.post_id AND p.instance_id = ph.instance_id
		WHERE ph.instance_id = $1
		  AND p.deleted_at IS NULL
		  AND p.created_at >= $2
		  AND p.created_at < $3
		GROUP BY h.name
		ORDER BY COUNT(*) DESC
		LIMIT 10`

	rows, err := s.DB.QueryContext(ctx, tagQuery, s.InstanceID, dayStart, dayEnd)
	if err != nil {
		return nil, fmt.Errorf("aggregate day hashtags: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan day hashtag: %w", err)
		}
		stats.TopHashtags = append(stats.TopHashtags, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("aggregate day hashtags: %w", err)
	}
	return stats, nil
}

// RecentPostIDs lists ids of non-deleted public original posts created since
// the cutoff, for the engagement refresh poller. Reblogs and non-public posts
// never qualify: reblog engagement belongs to the original, and a non-public
// post 404s on an unauthenticated fetch, which the poller would read as a
// deletion.
func (s *Store) RecentPostIDs(ctx context.Context, since time.Time, limit int) ([]string, error) {
	const query = `
		SELECT id
		FROM posts
		WHERE instance_id = $1
		  AND deleted_at IS NULL
		  AND visibility = 'public'
		  AND reblog_of_id IS NULL
		  AND created_at >= $2
		ORDER BY created_at DESC
		LIMIT $3`

	rows, err := s.DB.QueryContext(ctx, query, s.InstanceID, since, limit)
	if err != nil {
		return nil, fmt.Errorf("recent post ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan recent post id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("recent post ids: %w", err)
	}
	return ids, nil
}
