package admin

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cbattlegear/forkalytics/internal/enrich"
	"github.com/cbattlegear/forkalytics/internal/jobs"
	"github.com/cbattlegear/forkalytics/internal/rollup"
	"github.com/cbattlegear/forkalytics/internal/store"
	"github.com/cbattlegear/forkalytics/pkg/logging"
)

func newTestRouter(t *testing.T) (*gin.Engine, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	gin.SetMode(gin.TestMode)
	logger := logging.NewLogger()
	st := store.New(db, "social.example", logger)

	runner := jobs.NewRunner(
		enrich.NewSentimentAnalyzer(db, st, logger),
		rollup.NewEngine(st, logger),
		enrich.NewTopicExtractor(st, nil, "", logger),
		enrich.NewSummaryGenerator(st, nil, "", logger),
		logger,
	)

	router := gin.New()
	RegisterRoutes(router, runner, logger)
	return router, mock
}

func TestSentimentTriggerRunsBatch(t *testing.T) {
	router, mock := newTestRouter(t)

	mock.ExpectQuery("sentiment_analyzed = FALSE").
		WillReturnRows(sqlmock.NewRows([]string{"id", "content_text"}))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/admin/jobs/sentiment", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"ok"`)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSentimentTriggerRejectsBadBatchSize(t *testing.T) {
	router, _ := newTestRouter(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/admin/jobs/sentiment?batch_size=nope", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHourlyStatsTriggerRejectsBadHour(t *testing.T) {
	router, _ := newTestRouter(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/admin/jobs/hourly-stats?hour=yesterday", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestTopicsTriggerSkipsWithoutProvider(t *testing.T) {
	router, mock := newTestRouter(t)

	// No LLM provider configured: the job is a skip, not an error.
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/admin/jobs/topics?hour=2026-08-24T13:00:00Z", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReprocessRequiresStart(t *testing.T) {
	router, _ := newTestRouter(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/admin/jobs/reprocess", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}
