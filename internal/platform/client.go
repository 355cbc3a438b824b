// Package platform wraps the video-platform data API (spec §4.1, §6):
// listing channel uploads, fetching batched video metadata, and paging
// top-level comments, with retry, a circuit breaker, and quota/rate
// governance layered on top of a resty HTTP client.
package platform

import (
	"context"
	"fmt"
	"math/rand"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sony/gobreaker/v2"

	"github.com/kureha2310/youtube-timestamp-scraper/internal/model"
	"github.com/kureha2310/youtube-timestamp-scraper/internal/ratelimit"
)

const (
	baseURL = "https://www.googleapis.com/youtube/v3"

	maxAttempts  = 3
	retryBase    = 1 * time.Second
	retryCap     = 30 * time.Second
	videoBatch   = 50
)

// Client is the Platform Client (C1).
type Client struct {
	http     *resty.Client
	governor *ratelimit.Governor
	breaker  *gobreaker.CircuitBreaker[*resty.Response]
}

// New builds a Client authenticated with apiKey, gated by governor.
func New(apiKey string, governor *ratelimit.Governor) *Client {
	h := resty.New().
		SetBaseURL(baseURL).
		SetQueryParam("key", apiKey).
		SetTimeout(30 * time.Second)

	breaker := gobreaker.NewCircuitBreaker[*resty.Response](gobreaker.Settings{
		Name:        "platform-api",
		MaxRequests: 1,
		Interval:    30 * time.Second,
		Timeout:     15 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		// NotFound and QuotaExceeded are answers from a reachable platform,
		// so only the remaining (Transient) errors count as failures.
		IsSuccessful: func(err error) bool {
			kind := model.KindOf(err)
			return err == nil || kind == model.KindNotFound || kind == model.KindQuotaExceeded
		},
	})

	return &Client{http: h, governor: governor, breaker: breaker}
}

// uploadsPage is the contentDetails-shaped response for channel uploads.
type uploadsPage struct {
	Items []struct {
		ContentDetails struct {
			VideoID   string    `json:"videoId"`
			VideoPublishedAt time.Time `json:"videoPublishedAt"`
		} `json:"contentDetails"`
	} `json:"items"`
	NextPageToken string `json:"nextPageToken"`
}

// ListUploads enumerates uploads after since (strict), newest first,
// stopping at the first video whose published_at <= since (spec §4.1,
// §4.7). The returned slice is already in reverse-chronological order as
// the API returns it.
func (c *Client) ListUploads(ctx context.Context, channelID string, since time.Time) ([]model.VideoRef, error) {
	var refs []model.VideoRef
	pageToken := ""

	for {
		if err := c.governor.Acquire(ctx, ratelimit.CostList); err != nil {
			return refs, err
		}

		var page uploadsPage
		err := c.doWithRetry(ctx, func() (*resty.Response, error) {
			req := c.http.R().SetContext(ctx).SetResult(&page).
				SetQueryParams(map[string]string{
					"part":       "contentDetails",
					"channelId":  channelID,
					"maxResults": "50",
				})
			if pageToken != "" {
				req.SetQueryParam("pageToken", pageToken)
			}
			return req.Get("/activities")
		})
		if err != nil {
			return refs, err
		}

		stop := false
		for _, item := range page.Items {
			ts := item.ContentDetails.VideoPublishedAt
			if !ts.After(since) {
				stop = true
				break
			}
			refs = append(refs, model.VideoRef{ID: item.ContentDetails.VideoID, PublishedAt: ts})
		}
		if stop || page.NextPageToken == "" {
			break
		}
		pageToken = page.NextPageToken
	}
	return refs, nil
}

type videosResponse struct {
	Items []struct {
		ID      string `json:"id"`
		Snippet struct {
			ChannelID   string    `json:"channelId"`
			Title       string    `json:"title"`
			Description string    `json:"description"`
			PublishedAt time.Time `json:"publishedAt"`
		} `json:"snippet"`
		ContentDetails struct {
			Duration string `json:"duration"`
		} `json:"contentDetails"`
		Statistics struct {
			ViewCount    string `json:"viewCount"`
			CommentCount string `json:"commentCount"`
		} `json:"statistics"`
	} `json:"items"`
}

// GetVideos batch-fetches metadata for up to videoBatch ids per call
// (spec §4.1).
func (c *Client) GetVideos(ctx context.Context, ids []string) ([]model.Video, error) {
	var out []model.Video
	for start := 0; start < len(ids); start += videoBatch {
		end := start + videoBatch
		if end > len(ids) {
			end = len(ids)
		}
		batch := ids[start:end]

		if err := c.governor.Acquire(ctx, ratelimit.CostVideoList); err != nil {
			return out, err
		}

		var resp videosResponse
		err := c.doWithRetry(ctx, func() (*resty.Response, error) {
			return c.http.R().SetContext(ctx).SetResult(&resp).
				SetQueryParams(map[string]string{
					"part": "snippet,contentDetails,statistics",
					"id":   joinComma(batch),
				}).
				Get("/videos")
		})
		if err != nil {
			return out, err
		}

		for _, item := range resp.Items {
			out = append(out, model.Video{
				ID:           item.ID,
				ChannelID:    item.Snippet.ChannelID,
				Title:        item.Snippet.Title,
				Description:  item.Snippet.Description,
				PublishedAt:  item.Snippet.PublishedAt,
				DurationS:    parseISO8601Duration(item.ContentDetails.Duration),
				ViewCount:    parseInt64(item.Statistics.ViewCount),
				CommentCount: parseInt64(item.Statistics.CommentCount),
			})
		}
	}
	return out, nil
}

type commentThreadsResponse struct {
	Items []struct {
		Snippet struct {
			TopLevelComment struct {
				Snippet struct {
					AuthorChannelID struct {
						Value string `json:"value"`
					} `json:"authorChannelId"`
					TextOriginal string    `json:"textOriginal"`
					LikeCount    int64     `json:"likeCount"`
					PublishedAt  time.Time `json:"publishedAt"`
				} `json:"snippet"`
			} `json:"topLevelComment"`
		} `json:"snippet"`
	} `json:"items"`
	NextPageToken string `json:"nextPageToken"`
}

// ListComments returns up to max top-level comments by relevance (spec
// §4.1). Each comment keeps its text, video_id, like count, publish time
// and a one-way author hash; no raw author id crosses this boundary
// (spec §3).
func (c *Client) ListComments(ctx context.Context, videoID string, max int) ([]model.Comment, error) {
	var out []model.Comment
	pageToken := ""

	for len(out) < max {
		if err := c.governor.Acquire(ctx, ratelimit.CostComments); err != nil {
			return out, err
		}

		var page commentThreadsResponse
		err := c.doWithRetry(ctx, func() (*resty.Response, error) {
			req := c.http.R().SetContext(ctx).SetResult(&page).
				SetQueryParams(map[string]string{
					"part":       "snippet",
					"videoId":    videoID,
					"order":      "relevance",
					"maxResults": "100",
					"textFormat": "plainText",
				})
			if pageToken != "" {
				req.SetQueryParam("pageToken", pageToken)
			}
			return req.Get("/commentThreads")
		})
		if model.KindOf(err) == model.KindNotFound {
			return out, nil // comments disabled or video missing: skip, don't fail the video
		}
		if err != nil {
			return out, err
		}

		for _, item := range page.Items {
			s := item.Snippet.TopLevelComment.Snippet
			out = append(out, model.Comment{
				VideoID:     videoID,
				AuthorHash:  hashAuthor(s.AuthorChannelID.Value),
				Text:        s.TextOriginal,
				LikeCount:   s.LikeCount,
				PublishedAt: s.PublishedAt,
			})
			if len(out) >= max {
				break
			}
		}
		if page.NextPageToken == "" || len(out) >= max {
			break
		}
		pageToken = page.NextPageToken
	}
	return out, nil
}

// doWithRetry runs call through the circuit breaker, retrying Transient
// failures with exponential backoff and jitter (spec §4.1): up to
// maxAttempts, base 1s, cap 30s. QuotaExceeded is never retried.
func (c *Client) doWithRetry(ctx context.Context, call func() (*resty.Response, error)) error {
	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			d := backoffDelay(attempt)
			select {
			case <-ctx.Done():
				return model.NewError(model.KindTransient, "platform.retry", ctx.Err())
			case <-time.After(d):
			}
		}

		_, err := c.breaker.Execute(func() (*resty.Response, error) {
			resp, err := call()
			if err != nil {
				return resp, err
			}
			return resp, classifyStatus(resp)
		})
		if err == nil {
			return nil
		}

		kind := model.KindOf(err)
		if kind == model.KindQuotaExceeded || kind == model.KindNotFound {
			return err // not retried
		}
		lastErr = err
		if gobreaker.ErrOpenState == err || gobreaker.ErrTooManyRequests == err {
			return model.NewError(model.KindTransient, "platform.doWithRetry", err)
		}
	}
	return model.NewError(model.KindTransient, "platform.doWithRetry", lastErr)
}

// classifyStatus turns an HTTP response into the spec §6/§7 error
// taxonomy: 200 ok, 403 QuotaExceeded (or forbidden, also surfaced as
// QuotaExceeded per spec's "status signalling daily quota"), 404
// NotFound, 5xx Transient.
func classifyStatus(resp *resty.Response) error {
	if resp == nil {
		return model.NewError(model.KindTransient, "platform.classifyStatus", fmt.Errorf("nil response"))
	}
	switch {
	case resp.StatusCode() == http.StatusOK:
		return nil
	case resp.StatusCode() == http.StatusForbidden:
		return model.NewError(model.KindQuotaExceeded, "platform.classifyStatus", fmt.Errorf("quota or forbidden: %s", resp.Status()))
	case resp.StatusCode() == http.StatusNotFound:
		return model.NewError(model.KindNotFound, "platform.classifyStatus", fmt.Errorf("not found: %s", resp.Status()))
	case resp.StatusCode() >= 500:
		return model.NewError(model.KindTransient, "platform.classifyStatus", fmt.Errorf("server error: %s", resp.Status()))
	default:
		return model.NewError(model.KindTransient, "platform.classifyStatus", fmt.Errorf("unexpected status: %s", resp.Status()))
	}
}

// backoffDelay is exponential with jitter, base 1s, cap 30s.
func backoffDelay(attempt int) time.Duration {
	d := retryBase * time.Duration(1<<uint(attempt-1))
	if d > retryCap {
		d = retryCap
	}
	jitter := time.Duration(rand.Int63n(int64(d) / 2))
	return d/2 + jitter
}
