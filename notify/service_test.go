package notify_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	session "github.com/goliatone/go-erp-session"
	"github.com/goliatone/go-erp-session/notify"
)

type recordedRequest struct {
	Method string
	Path   string
	Auth   string
}

func newAPI(t *testing.T, handler http.HandlerFunc) (*session.Client, *[]recordedRequest) {
	t.Helper()
	var mu sync.Mutex
	var seen []recordedRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		seen = append(seen, recordedRequest{Method: r.Method, Path: r.URL.Path, Auth: r.Header.Get("Authorization")})
		mu.Unlock()
		handler(w, r)
	}))
	t.Cleanup(srv.Close)

	client, err := session.NewClient(srv.URL, func() string { return "tok-123" },
		session.WithClientLogger(session.NopLogger()),
	)
	require.NoError(t, err)
	return client, &seen
}

func TestRESTServiceList(t *testing.T) {
	client, seen := newAPI(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[
			{"id":1,"content":"Invoice overdue","isRead":false,"timestamp":"2024-05-01T08:00:00","status":"ERROR","recipientRoles":["ACCOUNTANT"]},
			{"id":2,"content":"Welcome","isRead":true,"timestamp":"2024-05-01T09:00:00","status":"NORMAL","recipientRoles":["ALL"]}
		]`))
	})

	items, err := notify.NewRESTService(client).List(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, notify.ID("1"), items[0].ID)
	assert.Equal(t, notify.StatusError, items[0].Status)
	assert.True(t, items[1].IsRead)

	require.Len(t, *seen, 1)
	assert.Equal(t, recordedRequest{Method: http.MethodGet, Path: "/api/notifications", Auth: "Bearer tok-123"}, (*seen)[0])
}

func TestRESTServiceMutations(t *testing.T) {
	client, seen := newAPI(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	svc := notify.NewRESTService(client)
	ctx := context.Background()

	require.NoError(t, svc.MarkRead(ctx, "7"))
	require.NoError(t, svc.MarkAllRead(ctx))
	require.NoError(t, svc.Delete(ctx, "7"))

	assert.Equal(t, []recordedRequest{
		{Method: http.MethodPut, Path: "/api/notifications/7/read", Auth: "Bearer tok-123"},
		{Method: http.MethodPut, Path: "/api/notifications/read-all", Auth: "Bearer tok-123"},
		{Method: http.MethodDelete, Path: "/api/notifications/7", Auth: "Bearer tok-123"},
	}, *seen)
}

func TestRESTServiceSurfacesRemoteErrors(t *testing.T) {
	client, _ := newAPI(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"not found"}`, http.StatusNotFound)
	})

	err := notify.NewRESTService(client).Delete(context.Background(), "404")
	require.Error(t, err)
	assert.Equal(t, http.StatusNotFound, session.StatusCode(err))
}
