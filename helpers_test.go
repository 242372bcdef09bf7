package session_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	session "github.com/goliatone/go-erp-session"
	"github.com/goliatone/go-erp-session/storage"
)

func signedToken(t *testing.T, exp time.Time) string {
	t.Helper()
	claims := jwt.RegisteredClaims{
		Subject:   "user-1",
		IssuedAt:  jwt.NewNumericDate(exp.Add(-time.Hour)),
		ExpiresAt: jwt.NewNumericDate(exp),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return token
}

func seedPrincipal(t *testing.T, backend session.Backend, p *session.Principal) {
	t.Helper()
	data, err := session.MarshalPrincipal(p)
	require.NoError(t, err)
	require.NoError(t, backend.Set(context.Background(), session.DefaultStorageKey, data))
}

func hydratedStore(t *testing.T, backend session.Backend) *session.Store {
	t.Helper()
	store := session.NewStore(backend, session.WithStoreLogger(session.NopLogger()))
	require.NoError(t, store.Hydrate(context.Background()))
	return store
}

func accountant(token string) *session.Principal {
	return &session.Principal{
		Email:       "ana@example.com",
		FullName:    "Ana Petrovic",
		Roles:       []session.Role{session.RoleAccountant},
		AccessToken: token,
		TokenType:   "Bearer",
	}
}

// recordedRequest is what fakeAPI saw for one call.
type recordedRequest struct {
	Method        string
	Path          string
	Query         string
	Authorization string
	RequestID     string
	Body          map[string]any
}

// fakeAPI routes by "METHOD /path" and records every request.
type fakeAPI struct {
	t      *testing.T
	server *httptest.Server

	mu       sync.Mutex
	requests []recordedRequest
	routes   map[string]http.HandlerFunc
}

func newFakeAPI(t *testing.T) *fakeAPI {
	t.Helper()
	api := &fakeAPI{t: t, routes: map[string]http.HandlerFunc{}}
	api.server = httptest.NewServer(http.HandlerFunc(api.serve))
	t.Cleanup(api.server.Close)
	return api
}

func (a *fakeAPI) handle(route string, h http.HandlerFunc) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.routes[route] = h
}

func (a *fakeAPI) respond(route string, status int, body any) {
	a.handle(route, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, status, body)
	})
}

func (a *fakeAPI) serve(w http.ResponseWriter, r *http.Request) {
	rec := recordedRequest{
		Method:        r.Method,
		Path:          r.URL.Path,
		Query:         r.URL.RawQuery,
		Authorization: r.Header.Get("Authorization"),
		RequestID:     r.Header.Get(session.RequestIDHeader),
	}
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&rec.Body)
	}

	a.mu.Lock()
	a.requests = append(a.requests, rec)
	h, ok := a.routes[r.Method+" "+r.URL.Path]
	a.mu.Unlock()

	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "no route"})
		return
	}
	h(w, r)
}

func (a *fakeAPI) calls() []recordedRequest {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]recordedRequest(nil), a.requests...)
}

func (a *fakeAPI) client(t *testing.T, tokens session.TokenSource, opts ...session.ClientOption) *session.Client {
	t.Helper()
	opts = append([]session.ClientOption{session.WithClientLogger(session.NopLogger())}, opts...)
	c, err := session.NewClient(a.server.URL, tokens, opts...)
	require.NoError(t, err)
	return c
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body != nil {
		_ = json.NewEncoder(w).Encode(body)
	}
}

// gatewayFixture wires a store, client and gateway against a fakeAPI.
type gatewayFixture struct {
	api     *fakeAPI
	backend *storage.Memory
	store   *session.Store
	gateway *session.Gateway

	mu     sync.Mutex
	events []session.ActivityEvent
}

func newGatewayFixture(t *testing.T) *gatewayFixture {
	t.Helper()
	f := &gatewayFixture{api: newFakeAPI(t), backend: storage.NewMemory()}
	f.store = hydratedStore(t, f.backend)

	var gw *session.Gateway
	client := f.api.client(t, f.store.AccessToken, session.WithUnauthorizedHandler(func(ctx context.Context) {
		gw.CredentialRejected(ctx)
	}))
	gw = session.NewGateway(client, f.store,
		session.WithGatewayLogger(session.NopLogger()),
		session.WithActivitySink(session.ActivitySinkFunc(func(_ context.Context, e session.ActivityEvent) error {
			f.mu.Lock()
			defer f.mu.Unlock()
			f.events = append(f.events, e)
			return nil
		})),
	)
	f.gateway = gw
	return f
}

func (f *gatewayFixture) eventTypes() []session.ActivityEventType {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]session.ActivityEventType, len(f.events))
	for i, e := range f.events {
		out[i] = e.EventType
	}
	return out
}
