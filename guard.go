package session

import (
	"context"
	"sync"
	"time"
)

// GuardState is the resolution state of a Guard.
type GuardState string

const (
	GuardLoading    GuardState = "loading"
	GuardAuthorized GuardState = "authorized"
	GuardDenied     GuardState = "denied"
)

// Decision is the outcome of a Guard resolution.
type Decision struct {
	State         GuardState
	RequestedPath string
	// RedirectTo is the login entry point when denied.
	RedirectTo string
	// Reason is ErrNotAuthenticated or ErrPermissionDenied when denied.
	Reason    error
	Principal *Principal
}

// Allowed reports an authorized decision.
func (d *Decision) Allowed() bool {
	return d != nil && d.State == GuardAuthorized
}

// GuardTransition is passed to guard hooks.
type GuardTransition struct {
	From     GuardState
	To       GuardState
	Decision Decision
}

// GuardHook observes a guard transition.
type GuardHook func(ctx context.Context, t GuardTransition)

// Guard decides render-or-redirect for one protected view. It moves from
// Loading to Authorized or Denied exactly once and never decides before the
// Store finished its first hydration.
type Guard struct {
	store        *Store
	redirects    *RedirectStore
	allowed      []Role
	loginPath    string
	logger       Logger
	activitySink ActivitySink
	now          func() time.Time
	hooks        []GuardHook
	transitions  map[GuardState]map[GuardState]struct{}

	resolveMu sync.Mutex
	mu        sync.RWMutex
	state     GuardState
	decision  *Decision
}

// GuardOption customizes a Guard.
type GuardOption func(*Guard)

// WithLoginPath overrides the redirect target on denial.
func WithLoginPath(path string) GuardOption {
	return func(g *Guard) {
		if path != "" {
			g.loginPath = path
		}
	}
}

// WithGuardLogger sets the logger
func WithGuardLogger(logger Logger) GuardOption {
	return func(g *Guard) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// WithGuardActivitySink records each resolution.
func WithGuardActivitySink(sink ActivitySink) GuardOption {
	return func(g *Guard) {
		g.activitySink = normalizeActivitySink(sink)
	}
}

// WithGuardHook adds a hook executed after the guard leaves Loading.
func WithGuardHook(h GuardHook) GuardOption {
	return func(g *Guard) {
		if h != nil {
			g.hooks = append(g.hooks, h)
		}
	}
}

// NewGuard builds a Guard admitting principals holding any of allowed. An
// empty allowed list admits every authenticated principal. redirects may be
// nil, in which case denied paths are not remembered.
func NewGuard(store *Store, redirects *RedirectStore, allowed []Role, opts ...GuardOption) *Guard {
	g := &Guard{
		store:        store,
		redirects:    redirects,
		allowed:      append([]Role(nil), allowed...),
		loginPath:    DefaultLoginPath,
		logger:       defLogger(),
		activitySink: noopActivitySink{},
		now:          time.Now,
		state:        GuardLoading,
		transitions: map[GuardState]map[GuardState]struct{}{
			GuardLoading: {
				GuardAuthorized: {},
				GuardDenied:     {},
			},
		},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(g)
		}
	}
	return g
}

// State returns the current state.
func (g *Guard) State() GuardState {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.state
}

// Decision returns the resolved decision, nil while Loading.
func (g *Guard) Decision() *Decision {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if g.decision == nil {
		return nil
	}
	d := *g.decision
	d.Principal = g.decision.Principal.Clone()
	return &d
}

// Resolve waits for the Store to hydrate, then decides. Later calls return
// the first decision. A cancelled ctx leaves the guard in Loading.
func (g *Guard) Resolve(ctx context.Context, requestedPath string) (*Decision, error) {
	g.resolveMu.Lock()
	defer g.resolveMu.Unlock()

	if d := g.Decision(); d != nil {
		return d, nil
	}

	select {
	case <-g.store.Ready():
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	p := g.store.Current()
	d := Decision{
		RequestedPath: requestedPath,
		Principal:     p,
	}

	switch {
	case !p.IsAuthenticated():
		d.State = GuardDenied
		d.Reason = derive(ErrNotAuthenticated, "", map[string]any{"path": requestedPath})
	case len(g.allowed) > 0 && !Authorize(p, g.allowed):
		d.State = GuardDenied
		d.Reason = derive(ErrPermissionDenied, "", map[string]any{
			"path":    requestedPath,
			"allowed": RoleStrings(g.allowed),
		})
	default:
		d.State = GuardAuthorized
	}

	if d.State == GuardDenied {
		d.RedirectTo = g.loginPath
		if g.redirects != nil {
			if err := g.redirects.Remember(ctx, requestedPath); err != nil {
				g.logger.Warn("failed to remember redirect", "path", requestedPath, "error", err)
			}
		}
	} else if g.redirects != nil {
		g.redirects.Discard(ctx)
	}

	if err := g.transition(ctx, d); err != nil {
		return nil, err
	}
	return g.Decision(), nil
}

func (g *Guard) transition(ctx context.Context, d Decision) error {
	g.mu.Lock()
	from := g.state
	if _, ok := g.transitions[from][d.State]; !ok {
		g.mu.Unlock()
		return derive(ErrInvalidTransition, "", map[string]any{
			"from": string(from),
			"to":   string(d.State),
		})
	}
	g.state = d.State
	stored := d
	g.decision = &stored
	g.mu.Unlock()

	g.logger.Debug("guard resolved", "path", d.RequestedPath, "state", d.State, "reason", textCode(d.Reason))

	email := ""
	if d.Principal != nil {
		email = d.Principal.Email
	}
	recordActivity(ctx, g.activitySink, g.logger, g.now, ActivityEvent{
		EventType: ActivityEventGuardResolved,
		Email:     email,
		Metadata: map[string]any{
			"path":  d.RequestedPath,
			"state": string(d.State),
		},
	})

	for _, h := range g.hooks {
		h(ctx, GuardTransition{From: from, To: d.State, Decision: d})
	}
	return nil
}

// ResumeTarget returns where a freshly logged in principal should go: the
// remembered path if one is pending, otherwise landing.
func ResumeTarget(ctx context.Context, redirects *RedirectStore, landing string) string {
	if landing == "" {
		landing = DefaultLandingPath
	}
	if redirects == nil {
		return landing
	}
	if path, ok := redirects.Peek(ctx); ok {
		return path
	}
	return landing
}
