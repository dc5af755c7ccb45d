package enrich

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cbattlegear/forkalytics/internal/store"
	"github.com/cbattlegear/forkalytics/pkg/logging"
)

func newTestAnalyzer(t *testing.T) (*SentimentAnalyzer, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	logger := logging.NewLogger()
	st := store.New(db, "social.example", logger)
	return NewSentimentAnalyzer(db, st, logger), mock
}

func TestAnalyzeBatchScoresAndMarksPosts(t *testing.T) {
	analyzer, mock := newTestAnalyzer(t)

	mock.ExpectQuery("sentiment_analyzed = FALSE").
		WillReturnRows(sqlmock.NewRows([]string{"id", "content_text"}).
			AddRow("1", "short").
			AddRow("2", "this is a wonderful day, I love it"))

	// Post 1 is below the length floor: marked analyzed, no sentiment row
	mock.ExpectExec("UPDATE posts SET sentiment_analyzed").
		WillReturnResult(sqlmock.NewResult(0, 1))

	// Post 2 is scored inside one transaction
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO post_sentiments").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE posts SET sentiment_analyzed").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	scored, err := analyzer.AnalyzeBatch(context.Background(), 100)
	require.NoError(t, err)
	assert.Equal(t, 1, scored)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAnalyzeBatchEmptySelection(t *testing.T) {
	analyzer, mock := newTestAnalyzer(t)

	mock.ExpectQuery("sentiment_analyzed = FALSE").
		WillReturnRows(sqlmock.NewRows([]string{"id", "content_text"}))

	scored, err := analyzer.AnalyzeBatch(context.Background(), 100)
	require.NoError(t, err)
	assert.Equal(t, 0, scored)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAnalyzeBatchMarksPostOnStoreFailure(t *testing.T) {
	analyzer, mock := newTestAnalyzer(t)

	mock.ExpectQuery("sentiment_analyzed = FALSE").
		WillReturnRows(sqlmock.NewRows([]string{"id", "content_text"}).
			AddRow("1", "this is a wonderful day, I love it"))

	// Sentiment write fails and rolls back; the post is still marked
	// analyzed so it cannot wedge the next batch.
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO post_sentiments").
		WillReturnError(assert.AnError)
	mock.ExpectRollback()
	mock.ExpectExec("UPDATE posts SET sentiment_analyzed").
		WillReturnResult(sqlmock.NewResult(0, 1))

	scored, err := analyzer.AnalyzeBatch(context.Background(), 100)
	require.NoError(t, err)
	assert.Equal(t, 0, scored)
	assert.NoError(t, mock.ExpectationsWereMet())
}
