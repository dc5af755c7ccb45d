// Package normalize turns decoded source payloads into canonical store
// rows. Everything here is pure; no I/O.
package normalize

import (
	"database/sql"
	"html"
	"regexp"
	"strings"
	"time"

	"github.com/cbattlegear/forkalytics/internal/event"
	"github.com/cbattlegear/forkalytics/internal/models"
)

// Engagement weights. Reblogs carry the most signal, replies the least.
const (
	reblogWeight    = 3
	favouriteWeight = 2
	replyWeight     = 1
)

var (
	brPattern  = regexp.MustCompile(`(?i)<br\s*/?>`)
	tagPattern = regexp.MustCompile(`<[^>]+>`)
)

// Result is the normalized form of one upsert/edit event.
type Result struct {
	Account  *models.Account
	Post     *models.Post
	Hashtags []string
	Mentions []models.PostMention
}

// Normalize converts a decoded source post into canonical rows scoped to
// instanceID. Returns nil for a nil or author-less payload; never panics.
func Normalize(instanceID string, src *event.SourcePost, now time.Time) *Result {
	if src == nil || src.Account == nil {
		return nil
	}

	account := normalizeAccount(instanceID, src.Account, now)
	post := normalizePost(instanceID, src, now)

	hashtags := make([]string, 0, len(src.Tags))
	seen := make(map[string]bool, len(src.Tags))
	for _, tag := range src.Tags {
		name := strings.ToLower(strings.TrimSpace(tag.Name))
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		hashtags = append(hashtags, name)
	}

	mentions := make([]models.PostMention, 0, len(src.Mentions))
	for _, m := range src.Mentions {
		if m.ID == "" {
			continue
		}
		mentions = append(mentions, models.PostMention{
			PostID:             src.ID,
			InstanceID:         instanceID,
			MentionedAccountID: m.ID,
			MentionedAcct:      m.Acct,
			MentionedUsername:  m.Username,
		})
	}

	return &Result{
		Account:  account,
		Post:     post,
		Hashtags: hashtags,
		Mentions: mentions,
	}
}

// EngagementScore computes the weighted engagement score. Upstream counts
// are never trusted; the score is recomputed on every normalization.
func EngagementScore(reblogs, favourites, replies int64) int64 {
	return reblogWeight*reblogs + favouriteWeight*favourites + replyWeight*replies
}

// ExtractText derives plain text from HTML content: <br> becomes a newline,
// each closing paragraph gets a trailing newline, then all tags are stripped
// and entities unescaped.
func ExtractText(content string) string {
	if content == "" {
		return ""
	}
	text := brPattern.ReplaceAllString(content, "\n")
	text = strings.ReplaceAll(text, "</p>", "</p>\n")
	text = tagPattern.ReplaceAllString(text, "")
	return strings.TrimSpace(html.UnescapeString(text))
}

// SplitAcct splits a webfinger-style handle into locality and domain. A
// handle without a domain suffix belongs to the local instance.
func SplitAcct(acct string) (local bool, domain string) {
	if idx := strings.LastIndex(acct, "@"); idx > 0 {
		return false, acct[idx+1:]
	}
	return true, ""
}

func normalizeAccount(instanceID string, src *event.SourceAccount, now time.Time) *models.Account {
	local, domain := SplitAcct(src.Acct)
	return &models.Account{
		ID:             src.ID,
		InstanceID:     instanceID,
		Username:       src.Username,
		Acct:           src.Acct,
		DisplayName:    src.DisplayName,
		FollowersCount: src.FollowersCount,
		FollowingCount: src.FollowingCount,
		StatusesCount:  src.StatusesCount,
		Bot:            src.Bot,
		Local:          local,
		Domain:         domain,
		AvatarURL:      src.Avatar,
		FirstSeenAt:    now,
		LastSeenAt:     now,
	}
}

func normalizePost(instanceID string, src *event.SourcePost, now time.Time) *models.Post {
	post := &models.Post{
		ID:                 src.ID,
		InstanceID:         instanceID,
		AccountID:          src.Account.ID,
		URI:                src.URI,
		URL:                src.URL,
		Content:            src.Content,
		ContentText:        ExtractText(src.Content),
		SpoilerText:        src.SpoilerText,
		Visibility:         src.Visibility,
		Sensitive:          src.Sensitive,
		ReblogsCount:       src.ReblogsCount,
		FavouritesCount:    src.FavouritesCount,
		RepliesCount:       src.RepliesCount,
		EngagementScore:    EngagementScore(src.ReblogsCount, src.FavouritesCount, src.RepliesCount),
		HasMedia:           len(src.MediaAttachments) > 0,
		MediaCount:         len(src.MediaAttachments),
		CreatedAt:          src.CreatedAt.UTC(),
		FirstSeenAt:        now,
		LastSeenAt:         now,
	}
	if src.Language != nil && *src.Language != "" {
		post.Language = sql.NullString{String: *src.Language, Valid: true}
	}
	if src.Reblog != nil && src.Reblog.ID != "" {
		post.ReblogOfID = sql.NullString{String: src.Reblog.ID, Valid: true}
	}
	if src.InReplyToID != nil && *src.InReplyToID != "" {
		post.InReplyToID = sql.NullString{String: *src.InReplyToID, Valid: true}
	}
	if src.InReplyToAccountID != nil && *src.InReplyToAccountID != "" {
		post.InReplyToAccountID = sql.NullString{String: *src.InReplyToAccountID, Valid: true}
	}
	if src.EditedAt != nil {
		post.EditedAt = sql.NullTime{Time: src.EditedAt.UTC(), Valid: true}
	}
	return post
}
