package mastodon

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cbattlegear/forkalytics/pkg/logging"
)

func TestNextMaxID(t *testing.T) {
	link := `<https://social.example/api/v1/timelines/public?limit=40&max_id=109384>; rel="next", ` +
		`<https://social.example/api/v1/timelines/public?limit=40&min_id=110212>; rel="prev"`
	assert.Equal(t, "109384", nextMaxID(link))
	assert.Equal(t, "", nextMaxID(""))
	assert.Equal(t, "", nextMaxID(`<https://social.example/x?min_id=1>; rel="prev"`))
}

func TestPublicTimeline(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/timelines/public" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		if r.URL.Query().Get("local") != "true" {
			t.Fatalf("expected local=true")
		}
		w.Header().Set("Link", `<`+r.Host+`?max_id=99>; rel="next"`)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[{"id": "101", "content": "<p>hi</p>", "account": {"id": "7", "acct": "alice"}}]`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "", logging.NewLogger())
	posts, next, err := client.PublicTimeline(context.Background(), TimelineOptions{Local: true, Limit: 40})
	require.NoError(t, err)
	require.Len(t, posts, 1)
	assert.Equal(t, "101", posts[0].ID)
	assert.Equal(t, "99", next)
}

func TestGetStatusNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "", logging.NewLogger())
	_, err := client.GetStatus(context.Background(), "gone")
	assert.True(t, errors.Is(err, ErrNotFound))
}
