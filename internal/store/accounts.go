package store

import (
	"context"
	"fmt"

	"github.com/cbattlegear/forkalytics/internal/models"
)

// UpsertAccount inserts a new account row or overwrites the mutable fields
// of an existing one, bumping last_seen_at. first_seen_at survives updates.
func (s *Store) UpsertAccount(ctx context.Context, q Querier, account *models.Account) error {
	const query = `
		INSERT INTO accounts (
			id, instance_id, username, acct, display_name,
			followers_count, following_count, statuses_count,
			bot, is_local, domain, avatar_url, first_seen_at, last_seen_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (id, instance_id) DO UPDATE SET
			username = EXCLUDED.username,
			acct = EXCLUDED.acct,
			display_name = EXCLUDED.display_name,
			followers_count = EXCLUDED.followers_count,
			following_count = EXCLUDED.following_count,
			statuses_count = EXCLUDED.statuses_count,
			bot = EXCLUDED.bot,
			is_local = EXCLUDED.is_local,
			domain = EXCLUDED.domain,
			avatar_url = EXCLUDED.avatar_url,
			last_seen_at = EXCLUDED.last_seen_at`

	_, err := q.ExecContext(ctx, query,
		account.ID, s.InstanceID, account.Username, account.Acct, account.DisplayName,
		account.FollowersCount, account.FollowingCount, account.StatusesCount,
		account.Bot, account.Local, account.Domain, account.AvatarURL,
		account.FirstSeenAt, account.LastSeenAt,
	)
	if err != nil {
		return fmt.Errorf("upsert account %s: %w", account.ID, err)
	}
	return nil
}
