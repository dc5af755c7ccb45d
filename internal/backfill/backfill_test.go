package backfill

import (
	"context"
	"fmt"
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

func newTestBackfiller(t *testing.T, handler http.HandlerFunc) (*Backfiller, sqlmock.Sqlmock) {
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

	return New(client, engine, logger), mock
}

func timelinePost(id string, created time.Time) string {
	return fmt.Sprintf(`{
		"id": %q,
		"account": {"id": "7", "acct": "alice"},
		"created_at": %q
	}`, id, created.Format(time.RFC3339))
}

func TestRunPagesWithLastPostIDWhenLinkHeaderAbsent(t *testing.T) {
	end := time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC)
	start := end.Add(-24 * time.Hour)

	// Both posts are newer than end, so they are skipped without touching
	// the store; pagination must still continue to the next page.
	var maxIDs []string
	handler := func(w http.ResponseWriter, r *http.Request) {
		maxIDs = append(maxIDs, r.URL.Query().Get("max_id"))
		w.Header().Set("Content-Type", "application/json")
		if len(maxIDs) == 1 {
			fmt.Fprintf(w, "[%s,%s]",
				timelinePost("200", end.Add(2*time.Hour)),
				timelinePost("150", end.Add(time.Hour)))
			return
		}
		fmt.Fprint(w, "[]")
	}

	b, mock := newTestBackfiller(t, handler)

	applied, err := b.Run(context.Background(), start, end)
	require.NoError(t, err)
	assert.Equal(t, 0, applied)
	require.Len(t, maxIDs, 2)
	assert.Equal(t, "", maxIDs[0])
	assert.Equal(t, "150", maxIDs[1])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunStopsAtRangeStart(t *testing.T) {
	end := time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC)
	start := end.Add(-24 * time.Hour)

	calls := 0
	handler := func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, "[%s]", timelinePost("90", start.Add(-time.Hour)))
	}

	b, mock := newTestBackfiller(t, handler)

	applied, err := b.Run(context.Background(), start, end)
	require.NoError(t, err)
	assert.Equal(t, 0, applied)
	assert.Equal(t, 1, calls)
	assert.NoError(t, mock.ExpectationsWereMet())
}
