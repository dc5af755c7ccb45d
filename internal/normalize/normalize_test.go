package normalize

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cbattlegear/forkalytics/internal/event"
)

func TestEngagementScore(t *testing.T) {
	assert.Equal(t, int64(17), EngagementScore(2, 5, 1))
	assert.Equal(t, int64(0), EngagementScore(0, 0, 0))
}

func TestExtractText(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{
			name:    "paragraphs and breaks",
			content: "<p>first line<br>second line</p><p>next paragraph</p>",
			want:    "first line\nsecond line\nnext paragraph",
		},
		{
			name:    "self closing break",
			content: "one<br/>two<br />three",
			want:    "one\ntwo\nthree",
		},
		{
			name:    "entities unescaped",
			content: "<p>fish &amp; chips</p>",
			want:    "fish & chips",
		},
		{
			name:    "links stripped",
			content: `<p>see <a href="https://example.com">this</a></p>`,
			want:    "see this",
		},
		{
			name:    "empty",
			content: "",
			want:    "",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractText(tt.content))
		})
	}
}

func TestSplitAcct(t *testing.T) {
	local, domain := SplitAcct("alice")
	assert.True(t, local)
	assert.Empty(t, domain)

	local, domain = SplitAcct("bob@other.example")
	assert.False(t, local)
	assert.Equal(t, "other.example", domain)
}

func TestNormalize(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	lang := "en"
	src := &event.SourcePost{
		ID:              "101",
		URI:             "https://social.example/users/alice/statuses/101",
		Content:         "<p>Hello <br>world</p>",
		Language:        &lang,
		Visibility:      "public",
		ReblogsCount:    2,
		FavouritesCount: 5,
		RepliesCount:    1,
		Account: &event.SourceAccount{
			ID:       "7",
			Username: "alice",
			Acct:     "alice",
		},
		Tags: []event.SourceTag{
			{Name: "Python"},
			{Name: "python"},
			{Name: "golang"},
		},
		Mentions: []event.SourceMention{
			{ID: "9", Acct: "bob@other.example", Username: "bob"},
		},
		MediaAttachments: []event.SourceMedia{{Type: "image"}},
		CreatedAt:        now.Add(-time.Hour),
	}

	result := Normalize("social.example", src, now)
	require.NotNil(t, result)

	assert.Equal(t, "social.example", result.Post.InstanceID)
	assert.Equal(t, int64(17), result.Post.EngagementScore)
	assert.Equal(t, "Hello \nworld", result.Post.ContentText)
	assert.True(t, result.Post.HasMedia)
	assert.False(t, result.Post.EditedAt.Valid)
	assert.True(t, result.Account.Local)

	// Case-insensitive dedup
	assert.Equal(t, []string{"python", "golang"}, result.Hashtags)

	require.Len(t, result.Mentions, 1)
	assert.Equal(t, "9", result.Mentions[0].MentionedAccountID)
	assert.Equal(t, "101", result.Mentions[0].PostID)
}

func TestNormalizeReblog(t *testing.T) {
	now := time.Now().UTC()
	src := &event.SourcePost{
		ID:      "202",
		Account: &event.SourceAccount{ID: "7", Acct: "alice"},
		Reblog: &event.SourcePost{
			ID: "101",
		},
		CreatedAt: now,
	}

	result := Normalize("social.example", src, now)
	require.NotNil(t, result)
	require.True(t, result.Post.ReblogOfID.Valid)
	assert.Equal(t, "101", result.Post.ReblogOfID.String)
}

func TestNormalizeNilPayload(t *testing.T) {
	assert.Nil(t, Normalize("social.example", nil, time.Now()))
	assert.Nil(t, Normalize("social.example", &event.SourcePost{ID: "1"}, time.Now()))
}
