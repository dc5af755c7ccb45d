package store

import (
	"context"
	"fmt"
	"time"

	"github.com/cbattlegear/forkalytics/internal/models"
)

// AggregateHour computes the hourly aggregate for [hourStart, hourStart+1h)
// over non-deleted posts. A zero PostCount means the hour has no data and no
// row should be written.
func (s *Store) AggregateHour(ctx context.Context, hourStart time.Time) (*models.HourlyStat, error) {
	const query = `
		SELECT COUNT(*),
		       COALESCE(SUM(p.engagement_score), 0),
		       COALESCE(AVG(p.engagement_score), 0),
		       AVG(ps.score)
		FROM posts p
		LEFT JOIN post_sentiments ps
		       ON ps.post_id = p.id AND ps.instance_id = p.instance_id
		WHERE p.instance_id = $1
		  AND p.deleted_at IS NULL
		  AND p.created_at >= $2
		  AND p.created_at < $3`

	stat := &models.HourlyStat{
		InstanceID: s.InstanceID,
		HourStart:  hourStart,
	}
	err := s.DB.QueryRowContext(ctx, query, s.InstanceID, hourStart, hourStart.Add(time.Hour)).Scan(
		&stat.PostCount, &stat.TotalEngagement, &stat.AvgEngagement, &stat.AvgSentiment,
	)
	if err != nil {
		return nil, fmt.Errorf("aggregate hour %s: %w", hourStart.Format(time.RFC3339), err)
	}
	return stat, nil
}

// WriteHourlyStat persists an hourly aggregate as a single conditional
// write. Without force an existing row wins and false is returned; with
// force the row is replaced. Safe under concurrent rollup runs.
func (s *Store) WriteHourlyStat(ctx context.Context, stat *models.HourlyStat, force bool) (bool, error) {
	query := `
		INSERT INTO hourly_stats (
			instance_id, hour_start, post_count, total_engagement,
			avg_engagement, avg_sentiment, computed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (instance_id, hour_start) DO NOTHING`
	if force {
		query = `
		INSERT INTO hourly_stats (
			instance_id, hour_start, post_count, total_engagement,
			avg_engagement, avg_sentiment, computed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (instance_id, hour_start) DO UPDATE SET
			post_count = EXCLUDED.post_count,
			total_engagement = EXCLUDED.total_engagement,
			avg_engagement = EXCLUDED.avg_engagement,
			avg_sentiment = EXCLUDED.avg_sentiment,
			computed_at = EXCLUDED.computed_at`
	}

	result, err := s.DB.ExecContext(ctx, query,
		s.InstanceID, stat.HourStart, stat.PostCount, stat.TotalEngagement,
		stat.AvgEngagement, stat.AvgSentiment, stat.ComputedAt,
	)
	if err != nil {
		return false, fmt.Errorf("write hourly stat %s: %w", stat.HourStart.Format(time.RFC3339), err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("write hourly stat %s: %w", stat.HourStart.Format(time.RFC3339), err)
	}
	return affected > 0, nil
}

// DeleteHourlyStat removes the materialized row for an hour. Used by forced
// recomputes that find no remaining data.
func (s *Store) DeleteHourlyStat(ctx context.Context, hourStart time.Time) error {
	const query = `DELETE FROM hourly_stats WHERE instance_id = $1 AND hour_start = $2`

	if _, err := s.DB.ExecContext(ctx, query, s.InstanceID, hourStart); err != nil {
		return fmt.Errorf("delete hourly stat %s: %w", hourStart.Format(time.RFC3339), err)
	}
	return nil
}

// AggregateHashtagHour computes per-hashtag aggregates for one hour. Only
// hashtags with at least one qualifying post are returned.
func (s *Store) AggregateHashtagHour(ctx context.Context, hourStart time.Time) ([]models.HashtagHourlyStat, error) {
	const query = `
		SELECT h.id, h.name,
		       COUNT(DISTINCT p.id),
		       COUNT(DISTINCT p.account_id),
		       COALESCE(SUM(p.engagement_score), 0)
		FROM post_hashtags ph
		JOIN hashtags h ON h.id = ph.hashtag_id
		JOIN posts p ON p.id = ph.post_id AND p.instance_id = ph.instance_id
		WHERE ph.instance_id = $1
		  AND p.deleted_at IS NULL
		  AND p.created_at >= $2
		  AND p.created_at < $3
		GROUP BY h.id, h.name`

	rows, err := s.DB.QueryContext(ctx, query, s.InstanceID, hourStart, hourStart.Add(time.Hour))
	if err != nil {
		return nil, fmt.Errorf("aggregate hashtag hour %s: %w", hourStart.Format(time.RFC3339), err)
	}
	defer rows.Close()

	var stats []models.HashtagHourlyStat
	for rows.Next() {
		stat := models.HashtagHourlyStat{
			InstanceID: s.InstanceID,
			HourStart:  hourStart,
		}
		if err := rows.Scan(&stat.HashtagID, &stat.HashtagName, &stat.PostCount, &stat.AuthorCount, &stat.TotalEngagement); err != nil {
			return nil, fmt.Errorf("scan hashtag hour stat: %w", err)
		}
		stats = append(stats, stat)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("aggregate hashtag hour %s: %w", hourStart.Format(time.RFC3339), err)
	}
	return stats, nil
}

// WriteHashtagHourlyStat mirrors WriteHourlyStat for the per-hashtag table.
func (s *Store) WriteHashtagHourlyStat(ctx context.Context, stat *models.HashtagHourlyStat, force bool) (bool, error) {
	query := `
		INSERT INTO hashtag_hourly_stats (
			instance_id, hashtag_id, hour_start, post_count,
			author_count, total_engagement, computed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (instance_id, hashtag_id, hour_start) DO NOTHING`
	if force {
		query = `
		INSERT INTO hashtag_hourly_stats (
			instance_id, hashtag_id, hour_start, post_count,
			author_count, total_engagement, computed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (instance_id, hashtag_id, hour_start) DO UPDATE SET
			post_count = EXCLUDED.post_count,
			author_count = EXCLUDED.author_count,
			total_engagement = EXCLUDED.total_engagement,
			computed_at = EXCLUDED.computed_at`
	}

	result, err := s.DB.ExecContext(ctx, query,
		s.InstanceID, stat.HashtagID, stat.HourStart, stat.PostCount,
		stat.AuthorCount, stat.TotalEngagement, stat.ComputedAt,
	)
	if err != nil {
		return false, fmt.Errorf("write hashtag hourly stat: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("write hashtag hourly stat: %w", err)
	}
	return affected > 0, nil
}

// DeleteHashtagHourlyStats clears all per-hashtag rows for an hour ahead of
// a forced recompute, so hashtags that dropped out of the hour disappear.
func (s *Store) DeleteHashtagHourlyStats(ctx context.Context, hourStart time.Time) error {
	const query = `DELETE FROM hashtag_hourly_stats WHERE instance_id = $1 AND hour_start = $2`

	if _, err := s.DB.ExecContext(ctx, query, s.InstanceID, hourStart); err != nil {
		return fmt.Errorf("delete hashtag hourly stats %s: %w", hourStart.Format(time.RFC3339), err)
	}
	return nil
}
