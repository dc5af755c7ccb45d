package ingest

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cbattlegear/forkalytics/internal/models"
	"github.com/cbattlegear/forkalytics/internal/normalize"
	"github.com/cbattlegear/forkalytics/internal/store"
	"github.com/cbattlegear/forkalytics/pkg/logging"
)

const testInstance = "social.example"

func newTestEngine(t *testing.T) (*Engine, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	logger := logging.NewLogger()
	st := store.New(db, testInstance, logger)
	engine := NewEngine(db, st, logger, nil)
	engine.now = func() time.Time {
		return time.Date(2025, 6, 1, 12, 30, 0, 0, time.UTC)
	}
	return engine, mock
}

func testResult() *normalize.Result {
	now := time.Date(2025, 6, 1, 12, 30, 0, 0, time.UTC)
	return &normalize.Result{
		Account: &models.Account{
			ID:          "7",
			InstanceID:  testInstance,
			Username:    "alice",
			Acct:        "alice",
			Local:       true,
			FirstSeenAt: now,
			LastSeenAt:  now,
		},
		Post: &models.Post{
			ID:              "101",
			InstanceID:      testInstance,
			AccountID:       "7",
			URI:             "https://social.example/users/alice/statuses/101",
			Content:         "<p>hello</p>",
			ContentText:     "hello",
			Visibility:      "public",
			ReblogsCount:    2,
			FavouritesCount: 5,
			RepliesCount:    1,
			EngagementScore: 17,
			CreatedAt:       now.Add(-time.Hour),
			FirstSeenAt:     now,
			LastSeenAt:      now,
		},
		Hashtags: []string{"golang"},
		Mentions: []models.PostMention{
			{PostID: "101", InstanceID: testInstance, MentionedAccountID: "9"},
		},
	}
}

func postColumns() []string {
	return []string{
		"id", "instance_id", "account_id", "uri", "url", "content", "content_text",
		"spoiler_text", "language", "visibility", "sensitive",
		"reblog_of_id", "in_reply_to_id", "in_reply_to_account_id",
		"reblogs_count", "favourites_count", "replies_count", "engagement_score",
		"has_media", "media_count", "sentiment_analyzed",
		"created_at", "edited_at", "deleted_at", "first_seen_at", "last_seen_at",
	}
}

func existingPostRow(editedAt interface{}) *sqlmock.Rows {
	created := time.Date(2025, 6, 1, 11, 30, 0, 0, time.UTC)
	return sqlmock.NewRows(postColumns()).AddRow(
		"101", testInstance, "7", "https://social.example/users/alice/statuses/101", "",
		"<p>old</p>", "old", "", nil, "public", false,
		nil, nil, nil,
		1, 2, 0, 7,
		false, 0, false,
		created, editedAt, nil, created, created,
	)
}

func TestApplyCreatesNewPost(t *testing.T) {
	engine, mock := newTestEngine(t)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO accounts").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("FROM posts").WillReturnError(sql.ErrNoRows)
	mock.ExpectExec("INSERT INTO posts").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO post_metric_snapshots").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("DELETE FROM post_hashtags").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("DELETE FROM post_mentions").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("INSERT INTO hashtags").WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(3)))
	mock.ExpectExec("INSERT INTO post_hashtags").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO post_mentions").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	outcome, err := engine.Apply(context.Background(), testResult())
	require.NoError(t, err)
	assert.Equal(t, OutcomeCreated, outcome)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApplyUnchangedPostUpdatesInPlace(t *testing.T) {
	engine, mock := newTestEngine(t)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO accounts").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("FROM posts").WillReturnRows(existingPostRow(nil))
	mock.ExpectExec("UPDATE posts SET").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO post_metric_snapshots").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	outcome, err := engine.Apply(context.Background(), testResult())
	require.NoError(t, err)
	assert.Equal(t, OutcomeUpdated, outcome)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApplyEditAppendsVersionAndReplacesAssociations(t *testing.T) {
	engine, mock := newTestEngine(t)

	result := testResult()
	result.Post.EditedAt = sql.NullTime{
		Time:  time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		Valid: true,
	}

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO accounts").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("FROM posts").WillReturnRows(existingPostRow(nil))
	mock.ExpectQuery("SELECT COUNT").WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectExec("INSERT INTO post_versions").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE posts SET").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO post_metric_snapshots").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("DELETE FROM post_hashtags").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("DELETE FROM post_mentions").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("INSERT INTO hashtags").WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(3)))
	mock.ExpectExec("INSERT INTO post_hashtags").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO post_mentions").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	outcome, err := engine.Apply(context.Background(), result)
	require.NoError(t, err)
	assert.Equal(t, OutcomeEdited, outcome)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApplyRollsBackOnStoreFailure(t *testing.T) {
	engine, mock := newTestEngine(t)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO accounts").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("FROM posts").WillReturnError(sql.ErrNoRows)
	mock.ExpectExec("INSERT INTO posts").WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	_, err := engine.Apply(context.Background(), testResult())
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApplyDeletionSetsTombstone(t *testing.T) {
	engine, mock := newTestEngine(t)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE posts SET deleted_at").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	outcome, err := engine.ApplyDeletion(context.Background(), "101")
	require.NoError(t, err)
	assert.Equal(t, OutcomeDeleted, outcome)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApplyDeletionMissingPostIsNoOp(t *testing.T) {
	engine, mock := newTestEngine(t)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE posts SET deleted_at").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	outcome, err := engine.ApplyDeletion(context.Background(), "nope")
	require.NoError(t, err)
	assert.Equal(t, OutcomeSkipped, outcome)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEditedAtChanged(t *testing.T) {
	t1 := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	t2 := t1.Add(time.Minute)

	assert.False(t, editedAtChanged(sql.NullTime{}, sql.NullTime{}))
	assert.True(t, editedAtChanged(sql.NullTime{}, sql.NullTime{Time: t1, Valid: true}))
	assert.True(t, editedAtChanged(sql.NullTime{Time: t1, Valid: true}, sql.NullTime{Time: t2, Valid: true}))
	assert.False(t, editedAtChanged(sql.NullTime{Time: t1, Valid: true}, sql.NullTime{Time: t1, Valid: true}))
}
