package chatsync

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAPI(t *testing.T, register func(r *gin.Engine)) *HTTPStore {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		if c.GetHeader("Authorization") != "Bearer tok" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
			return
		}
		c.Next()
	})
	register(r)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return NewHTTPStore(srv.URL+"/", StaticSession{Token: "tok", Identity: "u1"}, srv.Client())
}

func TestHTTPStoreFetchPage(t *testing.T) {
	store := newTestAPI(t, func(r *gin.Engine) {
		r.GET("/api/events/:eventID/messages", func(c *gin.Context) {
			assert.Equal(t, "ev1", c.Param("eventID"))
			assert.Equal(t, "private", c.Query("channel"))
			assert.Equal(t, "t1", c.Query("thread_id"))
			assert.Equal(t, "50", c.Query("offset"))
			assert.Equal(t, "25", c.Query("limit"))
			c.JSON(http.StatusOK, gin.H{
				"messages": []gin.H{{
					"id":                    "m1",
					"content":               "hi",
					"author_participant_id": "p1",
					"created_at":            t0.Format(time.RFC3339Nano),
					"channel":               "private",
					"private_thread_id":     "t1",
				}},
				"has_more": true,
			})
		})
	})

	page, err := store.FetchPage(context.Background(), thread("t1"), 50, 25)
	require.NoError(t, err)
	assert.True(t, page.HasMore)
	require.Len(t, page.Messages, 1)
	assert.Equal(t, "m1", page.Messages[0].ID)
	assert.True(t, t0.Equal(page.Messages[0].CreatedAt))
}

func TestHTTPStoreSubmitNewThread(t *testing.T) {
	store := newTestAPI(t, func(r *gin.Engine) {
		r.POST("/api/events/:eventID/messages", func(c *gin.Context) {
			var req submitRequest
			assert.NoError(t, c.ShouldBindJSON(&req))
			assert.Equal(t, ChannelPrivate, req.Channel)
			assert.Empty(t, req.ThreadID)
			assert.Equal(t, "p-b", req.RecipientID)
			assert.True(t, req.Anonymous)
			assert.Equal(t, "ref-1", req.ClientRef)
			c.JSON(http.StatusCreated, gin.H{
				"message":   gin.H{"id": "m1", "content": req.Content, "channel": "private", "private_thread_id": "t1"},
				"thread_id": "t1",
			})
		})
	})

	scope := Scope{EventID: "ev1", Channel: ChannelPrivate, RecipientID: "p-b", Anonymous: true}
	res, err := store.Submit(context.Background(), scope, "hello", "ref-1")
	require.NoError(t, err)
	assert.Equal(t, "t1", res.ThreadID)
	assert.Equal(t, "m1", res.Message.ID)
	assert.Equal(t, "hello", res.Message.Content)
}

func TestHTTPStoreStatusMapping(t *testing.T) {
	cases := []struct {
		status int
		want   error
	}{
		{http.StatusUnauthorized, ErrUnauthorized},
		{http.StatusForbidden, ErrUnauthorized},
		{http.StatusBadRequest, ErrValidation},
		{http.StatusNotFound, ErrValidation},
		{http.StatusRequestEntityTooLarge, ErrValidation},
		{http.StatusTooManyRequests, ErrStoreUnavailable},
		{http.StatusInternalServerError, ErrStoreUnavailable},
		{http.StatusBadGateway, ErrStoreUnavailable},
	}
	for _, tc := range cases {
		t.Run(http.StatusText(tc.status), func(t *testing.T) {
			store := newTestAPI(t, func(r *gin.Engine) {
				r.POST("/api/events/:eventID/messages", func(c *gin.Context) {
					c.JSON(tc.status, gin.H{"error": "nope"})
				})
			})
			_, err := store.Submit(context.Background(), broadcast, "hello", "ref")
			assert.ErrorIs(t, err, tc.want)
			assert.Contains(t, err.Error(), "nope")
		})
	}
}

func TestHTTPStoreBadToken(t *testing.T) {
	store := newTestAPI(t, func(r *gin.Engine) {
		r.GET("/api/events/:eventID/threads", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"threads": []gin.H{}})
		})
	})
	store.session = StaticSession{Token: "stale", Identity: "u1"}

	_, err := store.ListThreads(context.Background(), "ev1")
	assert.ErrorIs(t, err, ErrUnauthorized)

	store.session = StaticSession{}
	_, err = store.ListThreads(context.Background(), "ev1")
	assert.ErrorIs(t, err, ErrNotReady)
}

func TestHTTPStoreLookupParticipantAndThreads(t *testing.T) {
	store := newTestAPI(t, func(r *gin.Engine) {
		r.GET("/api/events/:eventID/participants/:userID", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{
				"id": "p-" + c.Param("userID"), "event_id": c.Param("eventID"),
				"display_name": "Alice", "pseudonym": "Fox", "color": "#123456",
			})
		})
		r.GET("/api/events/:eventID/threads", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"threads": []gin.H{
				{"id": "t1", "event_id": "ev1", "counterpart_id": "p-b", "role": "anonymous"},
			}})
		})
	})

	p, err := store.LookupParticipant(context.Background(), "ev1", "u1")
	require.NoError(t, err)
	assert.Equal(t, Participant{ID: "p-u1", EventID: "ev1", DisplayName: "Alice", Pseudonym: "Fox", Color: "#123456"}, p)

	threads, err := store.ListThreads(context.Background(), "ev1")
	require.NoError(t, err)
	require.Len(t, threads, 1)
	assert.Equal(t, RoleAnonymous, threads[0].Role)
}

func TestHTTPStoreTransportErrors(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()
	store := NewHTTPStore(srv.URL, StaticSession{Token: "tok"}, nil)

	_, err := store.FetchPage(context.Background(), broadcast, 0, 10)
	assert.ErrorIs(t, err, ErrStoreUnavailable)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = store.FetchPage(ctx, broadcast, 0, 10)
	assert.True(t, IsCancelled(err))
}
