package platform

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kureha2310/youtube-timestamp-scraper/internal/model"
	"github.com/kureha2310/youtube-timestamp-scraper/internal/ratelimit"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c := New("test-key", ratelimit.NewGovernor(1e6, 0))
	c.http.SetBaseURL(srv.URL)
	return c
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func TestListUploads_StopsAtSince(t *testing.T) {
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	since := now.Add(-2 * time.Hour)

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{
			"items": []map[string]any{
				{"contentDetails": map[string]any{"videoId": "new1", "videoPublishedAt": now.Format(time.RFC3339)}},
				{"contentDetails": map[string]any{"videoId": "old1", "videoPublishedAt": since.Add(-time.Hour).Format(time.RFC3339)}},
			},
		})
	})

	refs, err := c.ListUploads(context.Background(), "UCabc", since)
	require.NoError(t, err)
	require.Len(t, refs, 1)
	assert.Equal(t, "new1", refs[0].ID)
}

func TestGetVideos_ParsesMetadata(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{
			"items": []map[string]any{{
				"id": "v1",
				"snippet": map[string]any{
					"channelId":   "UCabc",
					"title":       "hello",
					"description": "desc",
					"publishedAt": "2026-06-01T00:00:00Z",
				},
				"contentDetails": map[string]any{"duration": "PT1H2M3S"},
				"statistics":     map[string]any{"viewCount": "100", "commentCount": "5"},
			}},
		})
	})

	videos, err := c.GetVideos(context.Background(), []string{"v1"})
	require.NoError(t, err)
	require.Len(t, videos, 1)
	assert.Equal(t, "hello", videos[0].Title)
	assert.Equal(t, 3723, videos[0].DurationS)
	assert.Equal(t, int64(100), videos[0].ViewCount)
}

func TestGetVideos_BatchesAt50Ids(t *testing.T) {
	var requests int
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		requests++
		writeJSON(w, map[string]any{"items": []map[string]any{}})
	})

	ids := make([]string, 120)
	for i := range ids {
		ids[i] = fmt.Sprintf("v%d", i)
	}
	_, err := c.GetVideos(context.Background(), ids)
	require.NoError(t, err)
	assert.Equal(t, 3, requests) // 50 + 50 + 20
}

func TestListComments_TreatsNotFoundAsEmptyWithoutError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	comments, err := c.ListComments(context.Background(), "missing-video", 10)
	require.NoError(t, err)
	assert.Empty(t, comments)
}

func TestListComments_HashesAuthorAndStripsRawID(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{
			"items": []map[string]any{{
				"snippet": map[string]any{
					"topLevelComment": map[string]any{
						"snippet": map[string]any{
							"authorChannelId": map[string]any{"value": "UCraw"},
							"textOriginal":    "1:00 song / artist",
							"likeCount":       3,
							"publishedAt":     "2026-06-01T00:00:00Z",
						},
					},
				},
			}},
		})
	})

	comments, err := c.ListComments(context.Background(), "v1", 10)
	require.NoError(t, err)
	require.Len(t, comments, 1)
	assert.NotContains(t, comments[0].AuthorHash, "UCraw")
	assert.NotEmpty(t, comments[0].AuthorHash)
}

func TestListComments_ReturnsQuotaExceededOn403(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})

	_, err := c.ListComments(context.Background(), "v1", 10)
	require.Error(t, err)
	assert.Equal(t, model.KindQuotaExceeded, model.KindOf(err))
}
