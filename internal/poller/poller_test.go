package poller

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cbattlegear/forkalytics/internal/ingest"
	"github.com/cbattlegear/forkalytics/internal/mastodon"
	"github.com/cbattlegear/forkalytics/internal/store"
	"github.com/cbattlegear/forkalytics/pkg/logging"
)

func newTestPoller(t *testing.T, handler http.HandlerFunc) (*Poller, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	logger := logging.NewLogger()
	st := store.New(db, "social.example", logger)
	engine := ingest.NewEngine(db, st, logger, nil)
	client := mastodon.NewClient(server.URL, "", logger)

	return New(client, engine, st, time.Hour, logger), mock
}

func TestPollTombstonesDeletedPosts(t *testing.T) {
	p, mock := newTestPoller(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	mock.ExpectQuery("FROM posts").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("114"))
	mock.ExpectBegin()
	mock.ExpectExec("UPDATE posts SET deleted_at").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	applied, err := p.Poll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, applied)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPollSkipsReblogs(t *testing.T) {
	p, mock := newTestPoller(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"id": "115",
			"account": {"id": "7", "acct": "alice"},
			"created_at": "2026-08-24T12:00:00Z",
			"reblog": {"id": "90", "account": {"id": "8", "acct": "bob"}, "created_at": "2026-08-24T11:00:00Z"}
		}`))
	})

	mock.ExpectQuery("FROM posts").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("115"))

	applied, err := p.Poll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, applied)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPollContinuesPastFetchFailures(t *testing.T) {
	calls := 0
	p, mock := newTestPoller(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusForbidden)
	})

	mock.ExpectQuery("FROM posts").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("1").AddRow("2"))

	applied, err := p.Poll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, applied)
	assert.Equal(t, 2, calls)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPollSelectsOnlyPublicOriginals(t *testing.T) {
	fetches := 0
	p, mock := newTestPoller(t, func(w http.ResponseWriter, r *http.Request) {
		fetches++
		w.WriteHeader(http.StatusNotFound)
	})

	// Reblogs and non-public posts must be excluded at selection time; a
	// non-public post 404s on the unauthenticated fetch and would be
	// tombstoned as if deleted upstream.
	mock.ExpectQuery(`(?s)visibility = 'public'.*reblog_of_id IS NULL`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	applied, err := p.Poll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, applied)
	assert.Equal(t, 0, fetches)
	assert.NoError(t, mock.ExpectationsWereMet())
}
