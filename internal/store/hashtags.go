package store

import (
	"context"
	"fmt"
	"time"

	"github.com/cbattlegear/forkalytics/internal/models"
)

// GetOrCreateHashtag returns the id of the named hashtag, creating it on
// first sight. last_seen_at is bumped either way. Names are expected to be
// lowercased by the normalizer already.
func (s *Store) GetOrCreateHashtag(ctx context.Context, q Querier, name string, now time.Time) (int64, error) {
	const query = `
		INSERT INTO hashtags (instance_id, name, first_seen_at, last_seen_at)
		VALUES ($1, $2, $3, $3)
		ON CONFLICT (instance_id, name) DO UPDATE SET last_seen_at = EXCLUDED.last_seen_at
		RETURNING id`

	var id int64
	if err := q.QueryRowContext(ctx, query, s.InstanceID, name, now).Scan(&id); err != nil {
		return 0, fmt.Errorf("get or create hashtag %q: %w", name, err)
	}
	return id, nil
}

// DeletePostHashtags removes all hashtag associations for a post, ahead of a
// reinsert on edit.
func (s *Store) DeletePostHashtags(ctx context.Context, q Querier, postID string) error {
	const query = `DELETE FROM post_hashtags WHERE post_id = $1 AND instance_id = $2`

	if _, err := q.ExecContext(ctx, query, postID, s.InstanceID); err != nil {
		return fmt.Errorf("delete hashtags for post %s: %w", postID, err)
	}
	return nil
}

// InsertPostHashtag links a post to a hashtag. Duplicate links are ignored
// so replays stay idempotent.
func (s *Store) InsertPostHashtag(ctx context.Context, q Querier, postID string, hashtagID int64) error {
	const query = `
		INSERT INTO post_hashtags (post_id, instance_id, hashtag_id)
		VALUES ($1, $2, $3)
		ON CONFLICT DO NOTHING`

	if _, err := q.ExecContext(ctx, query, postID, s.InstanceID, hashtagID); err != nil {
		return fmt.Errorf("insert hashtag link for post %s: %w", postID, err)
	}
	return nil
}

// DeletePostMentions removes all mention associations for a post.
func (s *Store) DeletePostMentions(ctx context.Context, q Querier, postID string) error {
	const query = `DELETE FROM post_mentions WHERE post_id = $1 AND instance_id = $2`

	if _, err := q.ExecContext(ctx, query, postID, s.InstanceID); err != nil {
		return fmt.Errorf("delete mentions for post %s: %w", postID, err)
	}
	return nil
}

// InsertPostMention links a post to a mentioned account descriptor.
func (s *Store) InsertPostMention(ctx context.Context, q Querier, mention *models.PostMention) error {
	const query = `
		INSERT INTO post_mentions (
			post_id, instance_id, mentioned_account_id, mentioned_acct, mentioned_username
		) VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT DO NOTHING`

	_, err := q.ExecContext(ctx, query,
		mention.PostID, s.InstanceID,
		mention.MentionedAccountID, mention.MentionedAcct, mention.MentionedUsername,
	)
	if err != nil {
		return fmt.Errorf("insert mention for post %s: %w", mention.PostID, err)
	}
	return nil
}
