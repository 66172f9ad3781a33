package http

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"minshare/internal/auth"
	"minshare/internal/cache"
	"minshare/internal/core"
	"minshare/internal/events"
	"minshare/internal/log"
	"minshare/internal/middleware/ratelimit"
	"minshare/internal/middleware/security"
	"minshare/internal/middleware/trace"
	"minshare/internal/services"
)

// StatusEngine is the member-facing allocation surface.
type StatusEngine interface {
	CurrentKey(memberID string) (core.StatusKey, error)
	Resolver() core.Resolver
	Hub() *events.Hub
	Status(ctx context.Context, key core.StatusKey) (core.PeriodStatus, error)
	Watch(ctx context.Context, key core.StatusKey) (<-chan core.PeriodStatus, error)
	RecordTransaction(ctx context.Context, key core.StatusKey, amount core.Money, description string) (core.PeriodStatus, error)
	MarkFullUsage(ctx context.Context, key core.StatusKey) (core.PeriodStatus, error)
	DonateSurplus(ctx context.Context, key core.StatusKey, target core.AllocationTarget) (core.PeriodStatus, error)
	ResetPeriod(ctx context.Context, key core.StatusKey) (core.PeriodStatus, error)
}

// Deps are the collaborators the handlers call into.
type Deps struct {
	Engine    StatusEngine
	Admin     *services.AdminService
	Profiles  *services.ProfileService
	Contacts  *services.ContactService
	Allowlist auth.Allowlist
	// Ready reports backend health for /readyz. Nil means always ready.
	Ready  func(ctx context.Context) error
	Logger *log.Logger
}

// Config holds listener and middleware settings.
type Config struct {
	Addr               string
	RateLimitPerMinute int
	TrustedProxies     []string
	// StreamHeartbeat is the comment interval on event streams.
	StreamHeartbeat time.Duration
	CacheCleanup    time.Duration
}

// Server wraps http.Server with the application handlers.
type Server struct {
	http.Server

	engine    StatusEngine
	admin     *services.AdminService
	profiles  *services.ProfileService
	contacts  *services.ContactService
	allowlist auth.Allowlist
	ready     func(ctx context.Context) error
	logger    *log.Logger

	rateLimiter      *ratelimit.Limiter
	securityDetector *security.Detector
	traceMiddleware  *trace.Middleware
	cacheManager     *cache.Manager
	heartbeat        time.Duration

	appMetrics appMetrics
	stopOnce   sync.Once
}

type appMetrics struct {
	uptime        time.Time
	openStreams   int64
	mu            sync.Mutex
	operations    map[core.Operation]int64
	storeFailures int64
}

func (m *appMetrics) countOperation(op core.Operation) {
	m.mu.Lock()
	m.operations[op]++
	m.mu.Unlock()
}

func (m *appMetrics) operationCount(op core.Operation) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.operations[op]
}

// NewServer configures routes and middleware, returning a ready-to-run server.
func NewServer(cfg Config, deps Deps) *Server {
	if deps.Logger == nil {
		deps.Logger = log.Discard()
	}
	if cfg.StreamHeartbeat <= 0 {
		cfg.StreamHeartbeat = 25 * time.Second
	}
	if cfg.CacheCleanup <= 0 {
		cfg.CacheCleanup = time.Minute
	}

	s := &Server{
		engine:           deps.Engine,
		admin:            deps.Admin,
		profiles:         deps.Profiles,
		contacts:         deps.Contacts,
		allowlist:        deps.Allowlist,
		ready:            deps.Ready,
		logger:           deps.Logger.WithComponent(log.ComponentHTTP),
		rateLimiter:      ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: cfg.RateLimitPerMinute}),
		securityDetector: security.NewDetector(),
		traceMiddleware:  trace.NewMiddleware(),
		cacheManager:     cache.NewManager(deps.Logger),
		heartbeat:        cfg.StreamHeartbeat,
		appMetrics: appMetrics{
			uptime:     time.Now(),
			operations: map[core.Operation]int64{},
		},
	}
	for _, cidr := range cfg.TrustedProxies {
		if err := s.securityDetector.AddTrustedProxy(cidr); err != nil {
			s.logger.Warn("Ignoring trusted proxy", log.FieldError, err.Error())
		}
	}

	s.engine.Hub().OnChange(func(ctx context.Context, c events.Change) {
		s.appMetrics.countOperation(c.Operation)
	})
	if s.admin != nil {
		s.cacheManager.Register(s.admin.Cache())
		s.cacheManager.StartCleanup(cfg.CacheCleanup)
	}

	mux := http.NewServeMux()
	s.routes(mux)

	var handler http.Handler = mux
	handler = s.securityDetector.Middleware(handler)
	handler = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(handler)
	handler = log.Middleware(deps.Logger, trace.RequestID, s.securityDetector.ExtractClientIP)(handler)
	handler = s.traceMiddleware.Middleware(handler)

	s.Server = http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

func (s *Server) routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /metrics", s.handleMetrics)

	mux.HandleFunc("GET /api/status", s.member(s.handleStatus))
	mux.HandleFunc("GET /api/status/stream", s.member(s.handleStatusStream))
	mux.Handle("POST /api/transactions", s.limited(s.member(s.handleRecordTransaction)))
	mux.Handle("POST /api/full-usage", s.limited(s.member(s.handleMarkFullUsage)))
	mux.Handle("POST /api/donation", s.limited(s.member(s.handleDonateSurplus)))
	mux.Handle("POST /api/reset", s.limited(s.member(s.handleResetPeriod)))

	mux.HandleFunc("GET /api/profile", s.member(s.handleGetProfile))
	mux.Handle("PUT /api/profile", s.limited(s.member(s.handleSaveProfile)))
	mux.Handle("POST /api/contact", s.limited(http.HandlerFunc(s.handleContact)))

	mux.HandleFunc("GET /admin/overview", s.privileged(s.handleAdminOverview))
	mux.Handle("DELETE /admin/members/{memberId}/status", s.limited(s.privileged(s.handleAdminReset)))
	mux.HandleFunc("GET /admin/contacts", s.privileged(s.handleAdminContacts))
}

// Shutdown stops background helpers and drains the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	s.stopOnce.Do(func() {
		s.rateLimiter.Stop()
		s.cacheManager.Stop()
	})
	return s.Server.Shutdown(ctx)
}

// memberHandler is a handler that already knows the caller.
type memberHandler func(w http.ResponseWriter, r *http.Request, id auth.Identity)

// member rejects requests without the identity headers.
func (s *Server) member(next memberHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := auth.FromRequest(r)
		if err != nil {
			UnauthorizedError().Write(w)
			return
		}
		next(w, r.WithContext(auth.NewContext(r.Context(), id)), id)
	}
}

// privileged additionally requires the caller to be on the admin allowlist.
func (s *Server) privileged(next memberHandler) http.HandlerFunc {
	return s.member(func(w http.ResponseWriter, r *http.Request, id auth.Identity) {
		if !s.allowlist.IsPrivileged(id) {
			log.FromContext(r.Context()).WithComponent(log.ComponentSecurity).WarnContext(r.Context(),
				"Admin access denied",
				log.FieldMemberID, id.MemberID,
				log.FieldPath, r.URL.Path,
				"error_type", log.ErrorTypeAuth)
			ForbiddenError().Write(w)
			return
		}
		if s.admin == nil {
			NotFoundError("admin tools are not configured").Write(w)
			return
		}
		next(w, r, id)
	})
}

// limited applies the write rate limit, keyed by member when known.
func (s *Server) limited(next http.Handler) http.Handler {
	key := func(r *http.Request) string {
		if id, err := auth.FromRequest(r); err == nil {
			return "member:" + id.MemberID
		}
		return "ip:" + s.securityDetector.ExtractClientIP(r)
	}
	onLimit := func(w http.ResponseWriter, r *http.Request) {
		log.FromContext(r.Context()).WithComponent(log.ComponentRateLimit).WarnContext(r.Context(),
			"Rate limit exceeded",
			log.FieldClientIP, s.securityDetector.ExtractClientIP(r),
			log.FieldPath, r.URL.Path)
		TooManyRequestsError().Write(w)
	}
	return s.rateLimiter.Middleware(key, onLimit)(next)
}

// writeError maps err and logs store failures with the request logger.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	resp := FromError(err)
	if resp.StatusCode() >= http.StatusInternalServerError {
		atomic.AddInt64(&s.appMetrics.storeFailures, 1)
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Request failed",
			log.NewFields().
				WithHTTPRequest(r.Method, r.URL.Path, r.URL.RawQuery, "").
				WithError(err).
				With("error_type", log.ErrorTypeDatabase).
				ToSlice()...)
	}
	resp.Write(w)
}
