package session

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	signinPath  = "/api/auth/signin"
	signupPath  = "/api/auth/signup"
	verifyPath  = "/api/auth/verify"
	profilePath = "/users/me"

	verifyStatusSuccess = "SUCCESS"
)

// signinResponse mirrors the API answer. Extra fields are ignored.
type signinResponse struct {
	ID          json.RawMessage `json:"id,omitempty"`
	Email       string          `json:"email"`
	FullName    string          `json:"fullName"`
	Roles       []Role          `json:"roles"`
	AccessToken string          `json:"accessToken"`
	TokenType   string          `json:"tokenType"`
}

type fieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

type apiErrorEnvelope struct {
	Message string       `json:"message"`
	Status  string       `json:"status"`
	Errors  []fieldError `json:"errors"`
}

// VerifyResult is the structured answer of the email verification call.
type VerifyResult struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// Gateway mediates every credential changing operation and keeps the Store
// in sync with their outcome.
type Gateway struct {
	client       *Client
	store        *Store
	logger       Logger
	activitySink ActivitySink
	now          func() time.Time
}

// GatewayOption customizes a Gateway.
type GatewayOption func(*Gateway)

// WithGatewayLogger sets the logger
func WithGatewayLogger(logger Logger) GatewayOption {
	return func(g *Gateway) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// WithActivitySink wires an ActivitySink for auth events.
func WithActivitySink(sink ActivitySink) GatewayOption {
	return func(g *Gateway) {
		g.activitySink = normalizeActivitySink(sink)
	}
}

// WithGatewayClock injects a custom clock.
func WithGatewayClock(now func() time.Time) GatewayOption {
	return func(g *Gateway) {
		if now != nil {
			g.now = now
		}
	}
}

// NewGateway wires a Gateway to a Client and the Store it updates.
func NewGateway(client *Client, store *Store, opts ...GatewayOption) *Gateway {
	g := &Gateway{
		client:       client,
		store:        store,
		logger:       defLogger(),
		activitySink: noopActivitySink{},
		now:          time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(g)
		}
	}
	return g
}

// Login authenticates against the API and persists the resulting Principal.
// A response without a credential or without roles is a failure and leaves
// the slot empty.
func (g *Gateway) Login(ctx context.Context, email, password string) (*Principal, error) {
	payload := LoginPayload{Email: strings.TrimSpace(email), Password: password}
	if err := payload.Validate(); err != nil {
		return nil, err
	}

	var res signinResponse
	err := g.client.Do(ctx, http.MethodPost, signinPath, payload, &res, Anonymous())
	if err != nil {
		err = g.mapLoginError(err)
		g.loginFailed(ctx, payload.Email, err)
		return nil, err
	}

	if res.AccessToken == "" {
		g.clearAfterFailedLogin(ctx)
		err := derive(ErrInvalidCredentials, "API did not return an access token", nil)
		g.loginFailed(ctx, payload.Email, err)
		return nil, err
	}

	if len(NewRoleSet(res.Roles...)) == 0 {
		g.clearAfterFailedLogin(ctx)
		err := derive(ErrNoRolesAssigned, "", map[string]any{"email": payload.Email})
		g.loginFailed(ctx, payload.Email, err)
		return nil, err
	}

	email = res.Email
	if email == "" {
		email = payload.Email
	}
	p := &Principal{
		ID:          rawID(res.ID),
		Email:       email,
		FullName:    res.FullName,
		Roles:       res.Roles,
		AccessToken: res.AccessToken,
		TokenType:   res.TokenType,
	}

	if err := g.store.Save(ctx, p); err != nil {
		return nil, err
	}

	g.logger.Info("login succeeded", "email", p.Email, "roles", RoleStrings(p.Roles))
	g.record(ctx, ActivityEvent{
		EventType: ActivityEventLoginSuccess,
		Email:     p.Email,
		Metadata:  map[string]any{"roles": RoleStrings(p.Roles)},
	})
	return p.Clone(), nil
}

func (g *Gateway) mapLoginError(err error) error {
	switch status := StatusCode(err); {
	case IsNetworkError(err):
		return err
	case status == http.StatusBadRequest || status == http.StatusUnauthorized:
		return derive(ErrInvalidCredentials, remoteMessageOr(err, ErrInvalidCredentials.Message), map[string]any{
			"status": status,
		})
	default:
		return err
	}
}

// clearAfterFailedLogin drops any previous session so a rejected signin
// answer never leaves an older principal in the slot.
func (g *Gateway) clearAfterFailedLogin(ctx context.Context) {
	if err := g.store.Clear(ctx); err != nil {
		g.logger.Warn("failed to clear session after rejected login", "error", err)
	}
}

func (g *Gateway) loginFailed(ctx context.Context, email string, err error) {
	g.logger.Info("login failed", "email", email, "error", err)
	g.record(ctx, ActivityEvent{
		EventType: ActivityEventLoginFailure,
		Email:     email,
		Metadata:  map[string]any{"code": textCode(err)},
	})
}

// Register submits the signup form. No Principal is created: the account
// must be verified by email first. Server side field errors come back as a
// ValidationError.
func (g *Gateway) Register(ctx context.Context, payload RegistrationPayload) error {
	payload.Email = strings.TrimSpace(payload.Email)
	if err := payload.Validate(); err != nil {
		return err
	}

	err := g.client.Do(ctx, http.MethodPost, signupPath, payload, nil, Anonymous())
	if err != nil {
		if fields := serverFieldErrors(err); len(fields) > 0 {
			return NewValidationError(fields)
		}
		g.logger.Info("registration failed", "email", payload.Email, "error", err)
		return err
	}

	g.logger.Info("registration submitted", "email", payload.Email)
	g.record(ctx, ActivityEvent{EventType: ActivityEventRegistered, Email: payload.Email})
	return nil
}

// Verify confirms an email verification code. Success is a 2xx answer
// whose status is SUCCESS; a missing status is a failure.
func (g *Gateway) Verify(ctx context.Context, code string) (*VerifyResult, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, NewValidationError(map[string]string{"code": "Verification code is required"})
	}

	var res VerifyResult
	err := g.client.Do(ctx, http.MethodGet, verifyPath, nil, &res,
		Anonymous(),
		WithQuery(url.Values{"code": []string{code}}),
	)
	if err != nil {
		if IsNetworkError(err) {
			return nil, err
		}
		verr := derive(ErrVerificationFailed, remoteMessageOr(err, ErrVerificationFailed.Message), map[string]any{
			"status": StatusCode(err),
		})
		g.record(ctx, ActivityEvent{EventType: ActivityEventVerifyFailure})
		return nil, verr
	}

	if !strings.EqualFold(strings.TrimSpace(res.Status), verifyStatusSuccess) {
		g.record(ctx, ActivityEvent{EventType: ActivityEventVerifyFailure, Metadata: map[string]any{"status": res.Status}})
		msg := res.Message
		if msg == "" || res.Status == "" {
			msg = "verification response did not report SUCCESS"
		}
		return &res, derive(ErrVerificationFailed, msg, map[string]any{"status": res.Status})
	}

	res.Status = verifyStatusSuccess
	g.record(ctx, ActivityEvent{EventType: ActivityEventVerified})
	return &res, nil
}

// Logout clears the session. Safe to call with no active session.
func (g *Gateway) Logout(ctx context.Context) error {
	current := g.store.Current()
	if err := g.store.Clear(ctx); err != nil {
		return err
	}
	if current != nil {
		g.logger.Info("logged out", "email", current.Email)
		g.record(ctx, ActivityEvent{EventType: ActivityEventLogout, Email: current.Email})
	}
	return nil
}

// Current returns the persisted principal, nil when absent.
func (g *Gateway) Current() *Principal {
	return g.store.Current()
}

// HasAnyRole is true iff the current principal holds one of required.
func (g *Gateway) HasAnyRole(required ...Role) bool {
	return g.store.HasAnyRole(required...)
}

// Profile fetches the current user record from the API.
func (g *Gateway) Profile(ctx context.Context) (map[string]any, error) {
	if g.store.Current() == nil {
		return nil, derive(ErrNotAuthenticated, "", nil)
	}
	out := map[string]any{}
	if err := g.client.Do(ctx, http.MethodGet, profilePath, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CredentialRejected is meant to be used as the Client UnauthorizedHandler:
// it drops the session and records the event.
func (g *Gateway) CredentialRejected(ctx context.Context) {
	current := g.store.Current()
	if current == nil {
		return
	}
	if err := g.store.Clear(ctx); err != nil {
		g.logger.Error("failed to clear rejected session", "error", err)
		return
	}
	g.logger.Warn("session cleared after credential rejection", "email", current.Email)
	g.record(ctx, ActivityEvent{EventType: ActivityEventCredentialRejected, Email: current.Email})
}

func (g *Gateway) record(ctx context.Context, event ActivityEvent) {
	recordActivity(ctx, g.activitySink, g.logger, g.now, event)
}

func serverFieldErrors(err error) map[string]string {
	body := ResponseBody(err)
	if len(body) == 0 {
		return nil
	}
	var env apiErrorEnvelope
	if json.Unmarshal(body, &env) != nil || len(env.Errors) == 0 {
		return nil
	}
	fields := make(map[string]string, len(env.Errors))
	for _, fe := range env.Errors {
		if fe.Field == "" {
			continue
		}
		fields[fe.Field] = fe.Message
	}
	return fields
}

func remoteMessageOr(err error, fallback string) string {
	body := ResponseBody(err)
	var env apiErrorEnvelope
	if len(body) > 0 && json.Unmarshal(body, &env) == nil && strings.TrimSpace(env.Message) != "" {
		return env.Message
	}
	return fallback
}

func rawID(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}
